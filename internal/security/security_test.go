package security

import (
	"errors"
	"math/big"
	"testing"
)

func TestValidateFaultBound(t *testing.T) {
	tests := []struct {
		name     string
		faulty   int
		replicas int
		wantErr  error
	}{
		{"four replicas one fault", 1, 4, nil},
		{"single replica", 0, 1, nil},
		{"too many faults", 2, 4, ErrInvalidFaultBound},
		{"negative faults", -1, 4, ErrInvalidFaultBound},
		{"no replicas", 0, 0, ErrInvalidReplicaCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFaultBound(tt.faulty, tt.replicas)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMaxFaulty(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 3: 0, 4: 1, 6: 1, 7: 2, 10: 3}
	for n, want := range cases {
		if got := MaxFaulty(n); got != want {
			t.Errorf("MaxFaulty(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestValidateNodeName(t *testing.T) {
	for _, ok := range []string{"A", "node-1", "replica_B"} {
		if err := ValidateNodeName(ok); err != nil {
			t.Errorf("Expected %q to be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../etc", "a b", "x/y"} {
		if err := ValidateNodeName(bad); !errors.Is(err, ErrInvalidNodeName) {
			t.Errorf("Expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestValidateModulus(t *testing.T) {
	small := new(big.Int).Lsh(big.NewInt(1), 255)
	if err := ValidateModulus(small); !errors.Is(err, ErrInvalidModulus) {
		t.Errorf("Expected 256-bit modulus to be rejected, got %v", err)
	}

	large := new(big.Int).Lsh(big.NewInt(1), 300)
	if err := ValidateModulus(large); err != nil {
		t.Errorf("Expected 301-bit modulus to be accepted: %v", err)
	}
}

func TestConstantTimeEqualInt(t *testing.T) {
	a := big.NewInt(123456789)
	b := big.NewInt(123456789)
	c := big.NewInt(987654321)

	if !ConstantTimeEqualInt(a, b, 32) {
		t.Error("Equal values should compare equal")
	}
	if ConstantTimeEqualInt(a, c, 32) {
		t.Error("Different values should not compare equal")
	}
	if ConstantTimeEqualInt(a, nil, 32) {
		t.Error("Nil operand should not compare equal")
	}

	wide := new(big.Int).Lsh(big.NewInt(1), 300)
	if ConstantTimeEqualInt(wide, wide, 32) {
		t.Error("Values wider than the width should be rejected")
	}
}

func TestSecureZeroBigInt(t *testing.T) {
	v := big.NewInt(42)
	SecureZeroBigInt(v)
	if v.Sign() != 0 {
		t.Errorf("Expected zero, got %s", v)
	}

	buf := []byte{1, 2, 3}
	SecureZero(buf)
	for i, b := range buf {
		if b != 0 {
			t.Errorf("byte %d not zeroed", i)
		}
	}
}

func TestValidateInRange(t *testing.T) {
	max := big.NewInt(100)
	tests := []struct {
		name    string
		value   *big.Int
		max     *big.Int
		wantErr bool
	}{
		{"one", big.NewInt(1), max, false},
		{"max minus one", big.NewInt(99), max, false},
		{"zero", big.NewInt(0), max, true},
		{"negative", big.NewInt(-5), max, true},
		{"equal to max", big.NewInt(100), max, true},
		{"nil value", nil, max, true},
		{"nil max", big.NewInt(1), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInRange(tt.value, tt.max)
			if tt.wantErr && !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("Expected ErrInvalidRange, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		wantErr error
	}{
		{"plain", "A:001:32:12", 64, nil},
		{"empty", "", 64, nil},
		{"at limit", "abcd", 4, nil},
		{"too long", "abcde", 4, ErrInputTooLong},
		{"null byte", "A:001\x00:32", 64, ErrNullByte},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.input, tt.max)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
