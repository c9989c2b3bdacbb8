// Package rand provides cryptographically secure random number generation
package rand

import (
	"crypto/rand"
	"io"
	"math/big"

	imath "github.com/Caqil/harn-ledger/internal/math"
)

// Reader is the default cryptographically secure random number generator
var Reader io.Reader = rand.Reader

// GenerateRandomBytes generates n cryptographically secure random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidLength
	}

	bytes := make([]byte, n)
	if _, err := io.ReadFull(Reader, bytes); err != nil {
		return nil, err
	}

	return bytes, nil
}

// GenerateRandomUnit returns a uniformly random element of [2, n) that is
// coprime to n. Harn nonces and RSA-KEM secrets are drawn from here.
func GenerateRandomUnit(n *big.Int) (*big.Int, error) {
	if n == nil {
		return nil, ErrNilMax
	}
	if n.Cmp(big.NewInt(3)) < 0 {
		return nil, ErrInvalidMax
	}

	for {
		v, err := rand.Int(Reader, n)
		if err != nil {
			return nil, err
		}
		if v.Cmp(big.NewInt(2)) >= 0 && imath.IsUnit(v, n) {
			return v, nil
		}
	}
}

// GenerateRandomPrime generates a random prime of the specified bit size
func GenerateRandomPrime(bits int) (*big.Int, error) {
	if bits < 16 {
		return nil, ErrInvalidBitSize
	}

	return rand.Prime(Reader, bits)
}
