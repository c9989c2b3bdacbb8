package security

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	// ErrInvalidFaultBound is returned when replicas cannot tolerate the requested faults
	ErrInvalidFaultBound = errors.New("invalid fault bound: need n >= 3f+1")

	// ErrInvalidReplicaCount is returned when there are too few replicas
	ErrInvalidReplicaCount = errors.New("invalid replica count: must be >= 1")

	// ErrInvalidNodeName is returned when a node name is malformed
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrInvalidModulus is returned when an RSA modulus is unusable
	ErrInvalidModulus = errors.New("invalid modulus")

	// ErrInvalidRange is returned when a value is outside [1, max)
	ErrInvalidRange = errors.New("value out of valid range")

	// ErrInputTooLong is returned when text exceeds its length limit
	ErrInputTooLong = errors.New("input exceeds maximum length")

	// ErrNullByte is returned when text contains a NUL byte
	ErrNullByte = errors.New("input contains null bytes")
)

var nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// MaxFaulty returns the largest f with n >= 3f+1
func MaxFaulty(replicas int) int {
	if replicas < 1 {
		return 0
	}
	return (replicas - 1) / 3
}

// ValidateFaultBound checks that n replicas can tolerate f Byzantine faults
func ValidateFaultBound(faulty, replicas int) error {
	if replicas < 1 {
		return ErrInvalidReplicaCount
	}

	if faulty < 0 || replicas < 3*faulty+1 {
		return fmt.Errorf("%w: n=%d f=%d", ErrInvalidFaultBound, replicas, faulty)
	}

	return nil
}

// ValidateNodeName checks that a node name is short and path-safe; names are
// used in ledger file names.
func ValidateNodeName(name string) error {
	if !nodeNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidNodeName, name)
	}
	return nil
}

// ValidateModulus checks that n is large enough to hold a SHA-256 digest
// without reduction.
func ValidateModulus(n *big.Int) error {
	if n == nil || n.Sign() <= 0 {
		return ErrInvalidModulus
	}

	if n.BitLen() <= 256 {
		return fmt.Errorf("%w: %d bits, need more than 256", ErrInvalidModulus, n.BitLen())
	}

	return nil
}

// ValidateInRange checks that value lies in [1, max)
func ValidateInRange(value, max *big.Int) error {
	if value == nil || max == nil || value.Sign() <= 0 || value.Cmp(max) >= 0 {
		return ErrInvalidRange
	}
	return nil
}

// ValidateText rejects input longer than maxLength bytes or holding a NUL
// byte; ledger records end up in JSON files and log lines.
func ValidateText(input string, maxLength int) error {
	if len(input) > maxLength {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLong, len(input), maxLength)
	}
	if strings.IndexByte(input, 0) >= 0 {
		return ErrNullByte
	}
	return nil
}
