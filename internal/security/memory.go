// Package security provides validation and secret-handling helpers
package security

import (
	"crypto/subtle"
	"math/big"
	"runtime"
)

// SecureZero zeros a byte slice holding secret material
func SecureZero(data []byte) {
	if len(data) == 0 {
		return
	}

	zeros := make([]byte, len(data))
	subtle.ConstantTimeCopy(1, data, zeros)

	runtime.KeepAlive(data)
}

// SecureZeroBigInt clears a big.Int holding a private exponent or secret key.
// Go's big.Int does not expose its backing words, so this sets the value to
// zero and leaves the old buffer to the garbage collector.
func SecureZeroBigInt(b *big.Int) {
	if b == nil {
		return
	}

	b.SetInt64(0)
	runtime.KeepAlive(b)
}

// ConstantTimeCompare compares two byte slices in constant time
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ConstantTimeEqualInt compares two non-negative integers as fixed-width
// big-endian byte strings of the given width.
func ConstantTimeEqualInt(a, b *big.Int, width int) bool {
	if a == nil || b == nil || a.Sign() < 0 || b.Sign() < 0 {
		return false
	}
	if a.BitLen() > width*8 || b.BitLen() > width*8 {
		return false
	}

	ab := a.FillBytes(make([]byte, width))
	bb := b.FillBytes(make([]byte, width))
	return ConstantTimeCompare(ab, bb)
}
