package ledger

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/google/renameio/v2"
	"golang.org/x/crypto/argon2"
)

const storeVersion = "1.0"

// StoreConfig contains configuration for file-backed stores
type StoreConfig struct {
	// Dir holds one node_<x>.json file per replica
	Dir string

	// FileMode is the Unix file permissions (default: 0600)
	FileMode os.FileMode

	// Passphrase enables at-rest encryption when non-empty
	Passphrase string

	// Argon2 KDF parameters
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
	Argon2KeyLen  uint32
}

// DefaultStoreConfig returns a plaintext store configuration rooted at dir
func DefaultStoreConfig(dir string) *StoreConfig {
	return &StoreConfig{
		Dir:           dir,
		FileMode:      0600,
		Argon2Time:    3,
		Argon2Memory:  64 * 1024,
		Argon2Threads: 4,
		Argon2KeyLen:  32,
	}
}

// Validate validates the store configuration
func (c *StoreConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("store directory cannot be empty")
	}

	if c.FileMode&0077 != 0 {
		return fmt.Errorf("insecure file permissions: %o (should be 0600)", c.FileMode)
	}

	if c.Passphrase == "" {
		return nil
	}

	if len(c.Passphrase) < 12 {
		return fmt.Errorf("store passphrase must be at least 12 characters")
	}

	if c.Argon2Time < 1 {
		return fmt.Errorf("argon2 time cost must be at least 1")
	}

	if c.Argon2Memory < 8*1024 {
		return fmt.Errorf("argon2 memory cost must be at least 8 MB")
	}

	if c.Argon2Threads < 1 {
		return fmt.Errorf("argon2 threads must be at least 1")
	}

	if c.Argon2KeyLen != 32 {
		return fmt.Errorf("key length must be 32 bytes for AES-256")
	}

	return nil
}

// Path returns the file backing node's store
func (c *StoreConfig) Path(node string) string {
	return filepath.Join(c.Dir, "node_"+strings.ToLower(node)+".json")
}

// KDFParams contains key derivation function parameters
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
	KeyLen  uint32 `json:"key_len"`
	Salt    []byte `json:"salt"`
}

type plainFile struct {
	Records []Record `json:"records"`
}

// encryptedFile is the on-disk form when a passphrase is configured
type encryptedFile struct {
	Version       string    `json:"version"`
	Node          string    `json:"node"`
	ModifiedAt    time.Time `json:"modified_at"`
	EncryptionAlg string    `json:"encryption_alg"`
	KDFAlg        string    `json:"kdf_alg"`
	KDFParams     KDFParams `json:"kdf_params"`
	Nonce         []byte    `json:"nonce"`
	Ciphertext    []byte    `json:"ciphertext"`
}

// fileHeader tells the two file layouts apart
type fileHeader struct {
	Records    json.RawMessage `json:"records"`
	Ciphertext []byte          `json:"ciphertext"`
}

// FileStore is a Store persisted as a JSON file, rewritten atomically on
// every append
type FileStore struct {
	node   string
	path   string
	config *StoreConfig
	idx    *index

	// key and salt are set when the store is encrypted; both, and closed,
	// are guarded by idx.mu once the store is open
	key       []byte
	salt      []byte
	encrypted bool
	closed    bool
}

// OpenFileStore opens (or creates on first append) node's store
func OpenFileStore(cfg *StoreConfig, node string) (*FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := security.ValidateNodeName(node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}

	fs := &FileStore{
		node:   node,
		path:   cfg.Path(node),
		config: cfg,
	}

	records, err := fs.load()
	if err != nil {
		return nil, err
	}

	if cfg.Passphrase != "" && fs.key == nil {
		salt, err := generateSalt()
		if err != nil {
			return nil, err
		}
		fs.salt = salt
		fs.key = cfg.deriveKey(salt)
	}

	idx, err := newIndex(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	fs.idx = idx
	fs.encrypted = fs.key != nil

	return fs, nil
}

func (fs *FileStore) load() ([]Record, error) {
	data, err := readSecureFile(fs.path, fs.config.FileMode)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var p fileHeader
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, fs.path, err)
	}

	if p.Ciphertext == nil {
		var f plainFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, fs.path, err)
		}
		return f.Records, nil
	}

	if fs.config.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	var enc encryptedFile
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, fs.path, err)
	}
	if enc.Version != storeVersion {
		return nil, ErrVersionMismatch
	}

	key := fs.config.deriveKeyWith(enc.KDFParams)
	plaintext, err := decryptData(enc.Ciphertext, enc.Nonce, key)
	if err != nil {
		security.SecureZero(key)
		return nil, err
	}
	defer security.SecureZero(plaintext)

	var f plainFile
	if err := json.Unmarshal(plaintext, &f); err != nil {
		security.SecureZero(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, fs.path, err)
	}

	fs.key = key
	fs.salt = enc.KDFParams.Salt
	return f.Records, nil
}

func (fs *FileStore) persist(records []Record) error {
	if err := os.MkdirAll(fs.config.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	plain, err := json.MarshalIndent(plainFile{Records: records}, "", " ")
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}

	data := plain
	if fs.encrypted {
		if fs.key == nil {
			return ErrStoreClosed
		}
		defer security.SecureZero(plain)

		nonce, ciphertext, err := encryptData(plain, fs.key)
		if err != nil {
			return err
		}

		data, err = json.Marshal(&encryptedFile{
			Version:       storeVersion,
			Node:          fs.node,
			ModifiedAt:    time.Now().UTC(),
			EncryptionAlg: "AES-256-GCM",
			KDFAlg:        "Argon2id",
			KDFParams:     fs.config.kdfParams(fs.salt),
			Nonce:         nonce,
			Ciphertext:    ciphertext,
		})
		if err != nil {
			return fmt.Errorf("failed to serialize encrypted store: %w", err)
		}
	}

	return renameio.WriteFile(fs.path, data, fs.config.FileMode)
}

// Node implements Store
func (fs *FileStore) Node() string { return fs.node }

// Path returns the backing file
func (fs *FileStore) Path() string { return fs.path }

// Encrypted reports whether records are encrypted at rest
func (fs *FileStore) Encrypted() bool { return fs.encrypted }

// Append implements Store. The in-memory state is rolled back if the write
// fails.
func (fs *FileStore) Append(rec Record) error {
	if err := ValidateRecord(rec.Record); err != nil {
		return err
	}

	fs.idx.mu.Lock()
	defer fs.idx.mu.Unlock()

	if fs.closed {
		return ErrStoreClosed
	}
	if err := fs.idx.add(rec); err != nil {
		return err
	}
	if err := fs.persist(fs.idx.records); err != nil {
		fs.idx.rollback()
		return err
	}
	return nil
}

// Records implements Store
func (fs *FileStore) Records() ([]Record, error) {
	fs.idx.mu.RLock()
	closed := fs.closed
	fs.idx.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}
	return fs.idx.snapshot(), nil
}

// HasSequence implements Store
func (fs *FileStore) HasSequence(seq uint64) bool { return fs.idx.has(seq) }

// Get implements Store
func (fs *FileStore) Get(seq uint64) (Record, bool) { return fs.idx.get(seq) }

// Len implements Store
func (fs *FileStore) Len() int { return fs.idx.len() }

// Since returns records with sequence >= from, ordered by sequence
func (fs *FileStore) Since(from uint64) []Record { return fs.idx.since(from) }

// Close scrubs the cached encryption key. Later appends fail with
// ErrStoreClosed.
func (fs *FileStore) Close() error {
	fs.idx.mu.Lock()
	defer fs.idx.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true
	security.SecureZero(fs.key)
	fs.key = nil
	return nil
}

func (c *StoreConfig) kdfParams(salt []byte) KDFParams {
	return KDFParams{
		Time:    c.Argon2Time,
		Memory:  c.Argon2Memory,
		Threads: c.Argon2Threads,
		KeyLen:  c.Argon2KeyLen,
		Salt:    salt,
	}
}

// deriveKey derives an encryption key from the passphrase using Argon2id
func (c *StoreConfig) deriveKey(salt []byte) []byte {
	return c.deriveKeyWith(c.kdfParams(salt))
}

func (c *StoreConfig) deriveKeyWith(p KDFParams) []byte {
	return argon2.IDKey([]byte(c.Passphrase), p.Salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// generateSalt generates a cryptographically secure random salt
func generateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// encryptData encrypts data using AES-256-GCM
func encryptData(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, ErrEncryptionFailed
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

// decryptData decrypts data using AES-256-GCM
func decryptData(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, ErrStoreCorrupted
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}

	return plaintext, nil
}

// readSecureFile reads path, tightening permissions that are looser than mode
func readSecureFile(path string, mode os.FileMode) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.Mode().Perm()&^mode != 0 {
		if err := os.Chmod(path, mode); err != nil {
			return nil, fmt.Errorf("%w: %s has permissions %o, expected %o",
				ErrPermissionDenied, path, info.Mode().Perm(), mode)
		}
	}

	return os.ReadFile(path)
}
