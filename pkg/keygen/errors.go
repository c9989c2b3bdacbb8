package keygen

import "errors"

var (
	// ErrInvalidPrime is returned when a factor is missing or below 2
	ErrInvalidPrime = errors.New("invalid prime factor")

	// ErrEqualPrimes is returned when p == q
	ErrEqualPrimes = errors.New("prime factors must differ")

	// ErrInvalidExponent is returned when e is not invertible mod phi(n)
	ErrInvalidExponent = errors.New("public exponent is not invertible modulo phi(n)")

	// ErrKeyCleared is returned when a key pair is used after Zero
	ErrKeyCleared = errors.New("key pair has been cleared")
)
