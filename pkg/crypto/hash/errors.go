package hash

import "errors"

var (
	// ErrInvalidModulus is returned when a reduction modulus is nil or not positive
	ErrInvalidModulus = errors.New("modulus must be positive")

	// ErrInvalidLength is returned when an invalid length is specified
	ErrInvalidLength = errors.New("length must be positive")
)

// ErrNilCommitment is returned when a challenge is requested without a valid commitment
var ErrNilCommitment = errors.New("commitment must be a non-negative integer")
