// Package keygen builds the RSA key pairs held by ledger replicas, the Harn
// private key generator (PKG) and the procurement officer.
package keygen

import (
	"errors"
	"fmt"
	"math/big"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/crypto/rand"
)

// DefaultExponent is used by Generate when no exponent is supplied
const DefaultExponent = 65537

// PublicKey is an RSA public key (e, n)
type PublicKey struct {
	E *big.Int
	N *big.Int
}

// Size returns the modulus length in bytes
func (pk PublicKey) Size() int {
	return (pk.N.BitLen() + 7) / 8
}

// KeyPair is an RSA key pair with its factorisation
type KeyPair struct {
	// Name identifies the holder (replica name, "pkg", "officer")
	Name string

	P *big.Int
	Q *big.Int
	E *big.Int
	N *big.Int

	// D is e^-1 mod phi(n)
	D *big.Int
}

// NewKeyPair derives n and d from the factors and public exponent
func NewKeyPair(name string, p, q, e *big.Int) (*KeyPair, error) {
	two := big.NewInt(2)
	if p == nil || q == nil || p.Cmp(two) < 0 || q.Cmp(two) < 0 {
		return nil, ErrInvalidPrime
	}
	if p.Cmp(q) == 0 {
		return nil, ErrEqualPrimes
	}
	if e == nil || e.Cmp(big.NewInt(3)) < 0 {
		return nil, ErrInvalidExponent
	}

	phi := imath.Phi(p, q)
	d, err := imath.ModInverse(e, phi)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidExponent)
	}

	return &KeyPair{
		Name: name,
		P:    new(big.Int).Set(p),
		Q:    new(big.Int).Set(q),
		E:    new(big.Int).Set(e),
		N:    new(big.Int).Mul(p, q),
		D:    d,
	}, nil
}

// Generate creates a key pair with two fresh primes of bits/2 bits each.
// A nil exponent selects DefaultExponent.
func Generate(name string, bits int, e *big.Int) (*KeyPair, error) {
	if e == nil {
		e = big.NewInt(DefaultExponent)
	}

	for {
		p, err := rand.GenerateRandomPrime(bits / 2)
		if err != nil {
			return nil, err
		}
		q, err := rand.GenerateRandomPrime(bits - bits/2)
		if err != nil {
			return nil, err
		}

		kp, err := NewKeyPair(name, p, q, e)
		if err == nil {
			return kp, nil
		}
		if !errors.Is(err, ErrEqualPrimes) && !errors.Is(err, ErrInvalidExponent) {
			return nil, err
		}
		// gcd(e, phi) != 1 or p == q: draw again
	}
}

// Public returns the public half
func (kp *KeyPair) Public() PublicKey {
	return PublicKey{E: kp.E, N: kp.N}
}

// Phi returns (p-1)(q-1)
func (kp *KeyPair) Phi() *big.Int {
	return imath.Phi(kp.P, kp.Q)
}

// Cleared reports whether Zero has been called
func (kp *KeyPair) Cleared() bool {
	return kp.D == nil || kp.D.Sign() == 0
}

// Zero scrubs the private exponent and factors
func (kp *KeyPair) Zero() {
	security.SecureZeroBigInt(kp.D)
	security.SecureZeroBigInt(kp.P)
	security.SecureZeroBigInt(kp.Q)
}
