// Package hash provides the digest and key-derivation primitives used by the
// ledger signatures and the Harn multi-signature.
package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// domain prefix for derived keys
const kdfDomain = "harn-ledger-v1"

// Sum256 computes the SHA-256 digest of data
func Sum256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DigestInt interprets SHA-256(data) as a big-endian integer
func DigestInt(data []byte) *big.Int {
	return new(big.Int).SetBytes(Sum256(data))
}

// HashToInt converts data to an integer in [0, modulus) by hash-and-reduce:
// SHA-256(data) mod modulus
func HashToInt(data []byte, modulus *big.Int) (*big.Int, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}

	v := DigestInt(data)
	return v.Mod(v, modulus), nil
}

// ChallengeSeparator sits between dec(t) and the message. It is not a decimal
// digit, so the encoding of (t, message) is unambiguous.
const ChallengeSeparator = '|'

// Challenge computes the Harn challenge h = SHA-256(dec(t) || "|" || message)
// mod n. The commitment is rendered in base 10 so that verifiers outside Go
// can reproduce it from the decimal strings on the wire.
func Challenge(t *big.Int, message []byte, modulus *big.Int) (*big.Int, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if t == nil || t.Sign() < 0 {
		return nil, ErrNilCommitment
	}

	buf := make([]byte, 0, len(message)+modulus.BitLen()/3+2)
	buf = append(buf, t.String()...)
	buf = append(buf, ChallengeSeparator)
	buf = append(buf, message...)
	return HashToInt(buf, modulus)
}

// HMAC computes HMAC-SHA256 over the concatenation of parts
func HMAC(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

// HKDF derives key material using HKDF-SHA256
func HKDF(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}

	reader := hkdf.New(sha256.New, secret, salt, info)

	key := make([]byte, length)
	if _, err := reader.Read(key); err != nil {
		return nil, err
	}

	return key, nil
}

// DeriveKey derives a key from secret material and a context label with
// domain separation
func DeriveKey(secret []byte, context string, length int) ([]byte, error) {
	info := []byte(kdfDomain + "|" + context)
	return HKDF(secret, nil, info, length)
}
