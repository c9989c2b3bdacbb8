package rsasig

import (
	"math/big"
	"testing"

	"github.com/Caqil/harn-ledger/pkg/keygen"
)

func testKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	p, _ := new(big.Int).SetString("787435686772982288169641922308628444877260947", 10)
	q, _ := new(big.Int).SetString("1325305233886096053310340418467385397239375379", 10)
	e, _ := new(big.Int).SetString("692450682143089563609787", 10)
	kp, err := keygen.NewKeyPair("B", p, q, e)
	if err != nil {
		t.Fatalf("NewKeyPair failed: %v", err)
	}
	return kp
}

func TestSignVerify(t *testing.T) {
	kp := testKey(t)
	msg := []byte("B:widget:10:25")

	sig, err := Sign(kp, msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	v, err := Verify(kp.Public(), msg, sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !v.Valid {
		t.Fatal("signature should verify")
	}
	if v.OriginalHash.Cmp(v.RecoveredHash) != 0 {
		t.Error("hashes should match for a valid signature")
	}

	v, err = Verify(kp.Public(), []byte("B:widget:10:26"), sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.Valid {
		t.Error("signature over a different record must not verify")
	}
}

func TestVerifyWrongKey(t *testing.T) {
	kp := testKey(t)
	other, err := keygen.Generate("other", 320, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	sig, _ := Sign(kp, []byte("record"))
	if sig.Cmp(other.N) >= 0 {
		if _, err := Verify(other.Public(), []byte("record"), sig); err != ErrInvalidSignature {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
		return
	}
	v, err := Verify(other.Public(), []byte("record"), sig)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if v.Valid {
		t.Error("signature must not verify under another key")
	}
}

func TestVerifyRange(t *testing.T) {
	kp := testKey(t)
	if _, err := Verify(kp.Public(), []byte("m"), new(big.Int).Set(kp.N)); err != ErrInvalidSignature {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
	if _, err := Verify(kp.Public(), []byte("m"), nil); err != ErrInvalidSignature {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestSignClearedKey(t *testing.T) {
	kp := testKey(t)
	kp.Zero()
	if _, err := Sign(kp, []byte("m")); err != keygen.ErrKeyCleared {
		t.Errorf("Expected ErrKeyCleared, got %v", err)
	}
}

func TestEncapsulate(t *testing.T) {
	kp := testKey(t)

	k, c, err := Encapsulate(kp.Public())
	if err != nil {
		t.Fatalf("Encapsulate failed: %v", err)
	}

	got, err := Decapsulate(kp, c)
	if err != nil {
		t.Fatalf("Decapsulate failed: %v", err)
	}
	if got.Cmp(k) != 0 {
		t.Error("decapsulated secret mismatch")
	}

	if _, err := Decapsulate(kp, big.NewInt(0)); err != ErrInvalidCiphertext {
		t.Errorf("Expected ErrInvalidCiphertext, got %v", err)
	}
}
