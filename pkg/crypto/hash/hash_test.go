package hash

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"testing"
)

func TestHashToInt(t *testing.T) {
	data := []byte("A:item-1:10:5")
	sum := sha256.Sum256(data)
	want := new(big.Int).SetBytes(sum[:])

	large := new(big.Int).Lsh(big.NewInt(1), 300)
	got, err := HashToInt(data, large)
	if err != nil {
		t.Fatalf("HashToInt failed: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Errorf("Digest below modulus must not be reduced")
	}

	small := big.NewInt(97)
	got, err = HashToInt(data, small)
	if err != nil {
		t.Fatalf("HashToInt failed: %v", err)
	}
	if got.Cmp(new(big.Int).Mod(want, small)) != 0 {
		t.Errorf("Expected reduction mod 97, got %s", got)
	}

	if _, err := HashToInt(data, nil); err != ErrInvalidModulus {
		t.Errorf("Expected ErrInvalidModulus, got %v", err)
	}
}

func TestChallengeUsesDecimalCommitment(t *testing.T) {
	n := new(big.Int).Lsh(big.NewInt(1), 300)
	tval := big.NewInt(123456)
	msg := []byte("Item 001: Quantity 32, Price 12")

	got, err := Challenge(tval, msg, n)
	if err != nil {
		t.Fatalf("Challenge failed: %v", err)
	}

	want, _ := HashToInt([]byte("123456|Item 001: Quantity 32, Price 12"), n)
	if got.Cmp(want) != 0 {
		t.Errorf("Challenge mismatch: got %s, want %s", got, want)
	}
}

func TestChallengeSeparatesCommitmentFromMessage(t *testing.T) {
	n := new(big.Int).Lsh(big.NewInt(1), 300)

	a, err := Challenge(big.NewInt(12), []byte("3x"), n)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Challenge(big.NewInt(123), []byte("x"), n)
	if err != nil {
		t.Fatal(err)
	}
	if a.Cmp(b) == 0 {
		t.Error("(12, \"3x\") and (123, \"x\") produced the same challenge")
	}

	if _, err := Challenge(big.NewInt(-1), []byte("x"), n); err == nil {
		t.Error("expected negative commitment to fail")
	}
}

func TestHMAC(t *testing.T) {
	key := []byte("key")
	mac := HMAC(key, []byte("data"))
	if len(mac) != 32 {
		t.Fatalf("expected 32-byte MAC, got %d", len(mac))
	}
	if !bytes.Equal(mac, HMAC(key, []byte("da"), []byte("ta"))) {
		t.Error("HMAC over split parts should equal HMAC over the whole")
	}
	if bytes.Equal(mac, HMAC(key, []byte("other"))) {
		t.Error("HMAC over different data should differ")
	}
	if bytes.Equal(mac, HMAC([]byte("other key"), []byte("data"))) {
		t.Error("HMAC under a different key should differ")
	}
}

func TestDeriveKey(t *testing.T) {
	secret := []byte("shared secret material")

	k1, err := DeriveKey(secret, "envelope", 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, _ := DeriveKey(secret, "envelope", 32)
	k3, _ := DeriveKey(secret, "storage", 32)

	if len(k1) != 32 {
		t.Errorf("Expected 32 bytes, got %d", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("Derivation should be deterministic")
	}
	if bytes.Equal(k1, k3) {
		t.Error("Different contexts should derive different keys")
	}

	if _, err := DeriveKey(secret, "x", 0); err != ErrInvalidLength {
		t.Errorf("Expected ErrInvalidLength, got %v", err)
	}
}
