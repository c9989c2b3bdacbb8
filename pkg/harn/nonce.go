package harn

import (
	"crypto/sha256"
	"math/big"
	"sort"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/pkg/crypto/hash"
)

// maxNonceAttempts bounds the DRBG loop; only a degenerate modulus with
// few units exhausts it
const maxNonceAttempts = 64

// deriveNonce produces r in [2, n) coprime to n with the HMAC-DRBG of
// RFC 6979 §3.2, keyed by the signer secret. The session input binds the
// salt, the message and the sorted signer set, so r changes whenever the
// challenge h can change.
func deriveNonce(secret *big.Int, salt, message []byte, identities []*big.Int, n *big.Int) (*big.Int, error) {
	qlen := n.BitLen()
	rlen := ((qlen + 7) / 8) * 8

	x := int2octets(secret, rlen)
	h1 := sessionDigest(salt, message, identities)

	V := make([]byte, sha256.Size)
	for i := range V {
		V[i] = 0x01
	}
	K := make([]byte, sha256.Size)

	K = hmacUpdate(K, V, 0x00, x, h1)
	V = hmacHash(K, V)
	K = hmacUpdate(K, V, 0x01, x, h1)
	V = hmacHash(K, V)

	two := big.NewInt(2)
	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		var T []byte
		for len(T)*8 < qlen {
			V = hmacHash(K, V)
			T = append(T, V...)
		}

		r := bits2int(T, qlen)
		if r.Cmp(two) >= 0 && imath.IsUnit(r, n) {
			return r, nil
		}

		K = hmacUpdate(K, V, 0x00)
		V = hmacHash(K, V)
	}
	return nil, ErrInvalidNonce
}

// sessionDigest hashes everything that determines the challenge
func sessionDigest(salt, message []byte, identities []*big.Int) []byte {
	ids := make([]*big.Int, 0, len(identities))
	for _, id := range identities {
		if id != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	h := sha256.New()
	h.Write(salt)
	h.Write([]byte{0x00})
	h.Write(message)
	h.Write([]byte{0x00})
	for _, id := range ids {
		h.Write([]byte(id.String()))
		h.Write([]byte{','})
	}
	return h.Sum(nil)
}

func hmacHash(key, data []byte) []byte {
	return hash.HMAC(key, data)
}

// hmacUpdate computes HMAC(key, V || marker || data...)
func hmacUpdate(key, V []byte, marker byte, data ...[]byte) []byte {
	parts := append([][]byte{V, {marker}}, data...)
	return hash.HMAC(key, parts...)
}

// bits2int converts a bit string to an integer per RFC 6979
func bits2int(b []byte, qlen int) *big.Int {
	v := new(big.Int).SetBytes(b)
	if blen := len(b) * 8; blen > qlen {
		v.Rsh(v, uint(blen-qlen))
	}
	return v
}

// int2octets left-pads or truncates v to rlen bits
func int2octets(v *big.Int, rlen int) []byte {
	out := v.Bytes()
	rolen := rlen / 8

	switch {
	case len(out) < rolen:
		padded := make([]byte, rolen)
		copy(padded[rolen-len(out):], out)
		return padded
	case len(out) > rolen:
		return out[len(out)-rolen:]
	}
	return out
}
