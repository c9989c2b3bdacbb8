package math

import "errors"

var (
	// ErrInvalidModulus is returned when modulus is nil or not positive
	ErrInvalidModulus = errors.New("modulus must be positive")

	// ErrNilOperand is returned when a nil operand is provided
	ErrNilOperand = errors.New("operand cannot be nil")

	// ErrNegativeExponent is returned when an exponent is negative
	ErrNegativeExponent = errors.New("exponent must be non-negative")

	// ErrNotInvertible is returned when a value has no inverse modulo n
	ErrNotInvertible = errors.New("value is not invertible modulo n")

	// ErrEmptyProduct is returned when a product is taken over no factors
	ErrEmptyProduct = errors.New("product requires at least one factor")

	// ErrInvalidDecimal is returned when a decimal string cannot be parsed
	ErrInvalidDecimal = errors.New("invalid decimal integer")
)
