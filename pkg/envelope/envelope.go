// Package envelope seals responses for a single RSA recipient. A random
// unit k mod n is encapsulated under the recipient key, HKDF turns k into an
// AES-256-GCM key and the payload is encrypted under it.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/crypto/hash"
	"github.com/Caqil/harn-ledger/pkg/crypto/rand"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/rsasig"
)

// Version is the envelope format version
const Version = 1

const kdfContext = "officer-envelope"

var (
	// ErrInvalidEnvelope is returned when an envelope cannot be parsed
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrEncryptionFailed is returned when sealing fails
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when the key or ciphertext does not authenticate
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Envelope is a sealed payload
type Envelope struct {
	Version         int    `json:"version"`
	EncapsulatedKey string `json:"encapsulated_key"`
	Nonce           []byte `json:"nonce"`
	Ciphertext      []byte `json:"ciphertext"`
}

// Seal encrypts plaintext for the holder of pub
func Seal(pub keygen.PublicKey, plaintext []byte) (*Envelope, error) {
	k, c, err := rsasig.Encapsulate(pub)
	if err != nil {
		return nil, err
	}
	defer security.SecureZeroBigInt(k)

	aead, err := newAEAD(k, pub.Size())
	if err != nil {
		return nil, err
	}

	nonce, err := rand.GenerateRandomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	encKey := c.String()
	return &Envelope{
		Version:         Version,
		EncapsulatedKey: encKey,
		Nonce:           nonce,
		Ciphertext:      aead.Seal(nil, nonce, plaintext, []byte(encKey)),
	}, nil
}

// Open decrypts env with the recipient's private key
func Open(kp *keygen.KeyPair, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != Version {
		return nil, ErrInvalidEnvelope
	}

	c, ok := new(big.Int).SetString(env.EncapsulatedKey, 10)
	if !ok {
		return nil, fmt.Errorf("%w: encapsulated key is not a decimal integer", ErrInvalidEnvelope)
	}

	k, err := rsasig.Decapsulate(kp, c)
	if err != nil {
		if errors.Is(err, rsasig.ErrInvalidCiphertext) {
			return nil, ErrDecryptionFailed
		}
		return nil, err
	}
	defer security.SecureZeroBigInt(k)

	aead, err := newAEAD(k, kp.Public().Size())
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length", ErrInvalidEnvelope)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(env.EncapsulatedKey))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newAEAD(k *big.Int, size int) (cipher.AEAD, error) {
	secret := k.FillBytes(make([]byte, size))
	defer security.SecureZero(secret)

	key, err := hash.DeriveKey(secret, kdfContext, 32)
	if err != nil {
		return nil, err
	}
	defer security.SecureZero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	return aead, nil
}

// Encode renders env as a single URL-safe token
func Encode(env *Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode
func Decode(token string) (*Envelope, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return &env, nil
}

// SealString seals plaintext and encodes the envelope
func SealString(pub keygen.PublicKey, plaintext []byte) (string, error) {
	env, err := Seal(pub, plaintext)
	if err != nil {
		return "", err
	}
	return Encode(env)
}

// OpenString decodes and opens a token produced by SealString
func OpenString(kp *keygen.KeyPair, token string) ([]byte, error) {
	env, err := Decode(token)
	if err != nil {
		return nil, err
	}
	return Open(kp, env)
}
