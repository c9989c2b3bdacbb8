// Package rsasig implements the textbook RSA signatures replicas attach to
// consensus messages, and the RSA key encapsulation used for sealed responses.
//
// A signature over message m under (e, d, n) is
//
//	h = SHA-256(m) mod n
//	s = h^d mod n
//
// and verifies when s^e mod n == h. There is no padding; moduli must exceed
// 256 bits so the digest is never reduced.
package rsasig

import (
	"errors"
	"math/big"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/crypto/hash"
	"github.com/Caqil/harn-ledger/pkg/crypto/rand"
	"github.com/Caqil/harn-ledger/pkg/keygen"
)

var (
	// ErrNilKey is returned when a key is missing
	ErrNilKey = errors.New("key cannot be nil")

	// ErrInvalidSignature is returned when a signature is outside [0, n)
	ErrInvalidSignature = errors.New("signature out of range")

	// ErrInvalidCiphertext is returned when an encapsulated key is outside [1, n)
	ErrInvalidCiphertext = errors.New("ciphertext out of range")
)

// Verification carries the intermediate values of a verification so callers
// can display them.
type Verification struct {
	Valid         bool
	OriginalHash  *big.Int
	RecoveredHash *big.Int
	PublicKey     keygen.PublicKey
}

// Digest returns SHA-256(message) mod n
func Digest(message []byte, n *big.Int) (*big.Int, error) {
	return hash.HashToInt(message, n)
}

// Sign signs message with the private exponent of kp
func Sign(kp *keygen.KeyPair, message []byte) (*big.Int, error) {
	if kp == nil {
		return nil, ErrNilKey
	}
	if kp.Cleared() {
		return nil, keygen.ErrKeyCleared
	}

	h, err := Digest(message, kp.N)
	if err != nil {
		return nil, err
	}
	return imath.ModExp(h, kp.D, kp.N)
}

// Verify checks sig against message under pub
func Verify(pub keygen.PublicKey, message []byte, sig *big.Int) (*Verification, error) {
	if pub.N == nil || pub.E == nil {
		return nil, ErrNilKey
	}
	if sig == nil || sig.Sign() < 0 || sig.Cmp(pub.N) >= 0 {
		return nil, ErrInvalidSignature
	}

	original, err := Digest(message, pub.N)
	if err != nil {
		return nil, err
	}
	recovered, err := imath.ModExp(sig, pub.E, pub.N)
	if err != nil {
		return nil, err
	}

	return &Verification{
		Valid:         security.ConstantTimeEqualInt(original, recovered, pub.Size()),
		OriginalHash:  original,
		RecoveredHash: recovered,
		PublicKey:     pub,
	}, nil
}

// Encapsulate draws a random unit k mod n and returns (k, k^e mod n)
func Encapsulate(pub keygen.PublicKey) (secret, ciphertext *big.Int, err error) {
	if pub.N == nil || pub.E == nil {
		return nil, nil, ErrNilKey
	}

	k, err := rand.GenerateRandomUnit(pub.N)
	if err != nil {
		return nil, nil, err
	}
	c, err := imath.ModExp(k, pub.E, pub.N)
	if err != nil {
		return nil, nil, err
	}
	return k, c, nil
}

// Decapsulate recovers k = c^d mod n
func Decapsulate(kp *keygen.KeyPair, ciphertext *big.Int) (*big.Int, error) {
	if kp == nil {
		return nil, ErrNilKey
	}
	if kp.Cleared() {
		return nil, keygen.ErrKeyCleared
	}
	if err := security.ValidateInRange(ciphertext, kp.N); err != nil {
		return nil, ErrInvalidCiphertext
	}
	return imath.ModExp(ciphertext, kp.D, kp.N)
}
