// Package math implements the modular arithmetic shared by the RSA and Harn
// signature code.
package math

import (
	"fmt"
	"math/big"
	"strings"
)

var one = big.NewInt(1)

// ModExp computes base^exp mod m. The base is reduced first, so negative or
// oversized bases are accepted.
func ModExp(base, exp, m *big.Int) (*big.Int, error) {
	if base == nil || exp == nil {
		return nil, ErrNilOperand
	}
	if m == nil || m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if exp.Sign() < 0 {
		return nil, ErrNegativeExponent
	}

	b := new(big.Int).Mod(base, m)
	return b.Exp(b, exp, m), nil
}

// MustModExp is ModExp for operands already validated by the caller.
func MustModExp(base, exp, m *big.Int) *big.Int {
	r, err := ModExp(base, exp, m)
	if err != nil {
		panic(err)
	}
	return r
}

// ModInverse returns a^-1 mod m
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if a == nil {
		return nil, ErrNilOperand
	}
	if m == nil || m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}

	inv := new(big.Int).ModInverse(new(big.Int).Mod(a, m), m)
	if inv == nil {
		return nil, ErrNotInvertible
	}
	return inv, nil
}

// ModMul returns a*b mod m
func ModMul(a, b, m *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, m)
}

// ProductMod returns the product of all factors reduced mod m
func ProductMod(factors []*big.Int, m *big.Int) (*big.Int, error) {
	if m == nil || m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if len(factors) == 0 {
		return nil, ErrEmptyProduct
	}

	acc := big.NewInt(1)
	for _, f := range factors {
		if f == nil {
			return nil, ErrNilOperand
		}
		acc.Mul(acc, f)
		acc.Mod(acc, m)
	}
	return acc, nil
}

// IsUnit reports whether a is in [1, m) and coprime to m
func IsUnit(a, m *big.Int) bool {
	if a == nil || m == nil || a.Sign() <= 0 || a.Cmp(m) >= 0 {
		return false
	}
	return new(big.Int).GCD(nil, nil, a, m).Cmp(one) == 0
}

// Phi returns (p-1)(q-1)
func Phi(p, q *big.Int) *big.Int {
	pm := new(big.Int).Sub(p, one)
	qm := new(big.Int).Sub(q, one)
	return pm.Mul(pm, qm)
}

// ParseDecimal parses a base-10 integer, tolerating surrounding whitespace.
func ParseDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return v, nil
}
