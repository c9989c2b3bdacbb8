package rand

import (
	"math/big"
	"testing"

	imath "github.com/Caqil/harn-ledger/internal/math"
)

func TestGenerateRandomBytes(t *testing.T) {
	b, err := GenerateRandomBytes(32)
	if err != nil {
		t.Fatalf("GenerateRandomBytes failed: %v", err)
	}
	if len(b) != 32 {
		t.Errorf("Expected 32 bytes, got %d", len(b))
	}

	if _, err := GenerateRandomBytes(0); err != ErrInvalidLength {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}
}

func TestGenerateRandomUnit(t *testing.T) {
	n := big.NewInt(3 * 5 * 7 * 11)
	for i := 0; i < 200; i++ {
		v, err := GenerateRandomUnit(n)
		if err != nil {
			t.Fatalf("GenerateRandomUnit failed: %v", err)
		}
		if v.Cmp(big.NewInt(2)) < 0 || !imath.IsUnit(v, n) {
			t.Fatalf("Value %s is not a unit >= 2 mod %s", v, n)
		}
	}

	if _, err := GenerateRandomUnit(nil); err != ErrNilMax {
		t.Errorf("Expected ErrNilMax, got %v", err)
	}
	if _, err := GenerateRandomUnit(big.NewInt(2)); err != ErrInvalidMax {
		t.Errorf("Expected ErrInvalidMax, got %v", err)
	}
}

func TestGenerateRandomPrime(t *testing.T) {
	p, err := GenerateRandomPrime(64)
	if err != nil {
		t.Fatalf("GenerateRandomPrime failed: %v", err)
	}
	if p.BitLen() != 64 || !p.ProbablyPrime(20) {
		t.Errorf("Expected 64-bit prime, got %s", p)
	}

	if _, err := GenerateRandomPrime(8); err != ErrInvalidBitSize {
		t.Errorf("Expected ErrInvalidBitSize, got %v", err)
	}
}
