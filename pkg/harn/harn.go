// Package harn implements Harn's identity-based multi-signature over an RSA
// modulus held by a private key generator (PKG).
//
// SETUP
//
//	The PKG owns an RSA key (e, d, n). A signer with public identity ID_i
//	receives the secret key g_i = ID_i^d mod n.
//
// SIGNING (two rounds)
//
//	Round 1 - commitment:
//	  each signer picks a nonce r_i in Z_n* and broadcasts t_i = r_i^e mod n
//
//	Aggregation:
//	  t = Π t_i mod n
//	  h = SHA-256(dec(t) || "|" || m) mod n
//
//	Round 2 - response:
//	  each signer broadcasts s_i = g_i · r_i^h mod n
//
//	Combination:
//	  s = Π s_i mod n; the multi-signature is (t, s)
//
// VERIFICATION
//
//	s^e ≡ (Π ID_i) · t^h (mod n)
//	and for a single share: s_i^e ≡ ID_i · t_i^h (mod n)
//
// Nonces are derived deterministically from the signer's secret, the message
// and the full signer set (see nonce.go). A signer computes the aggregate
// itself from the round 1 commitments, requires its own commitment among
// them and answers each session for one aggregate only, so a nonce is never
// used under two different challenges.
package harn

import (
	"fmt"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/keygen"
)

// Params are the public PKG parameters
type Params struct {
	N *big.Int
	E *big.Int
}

// PKG is the private key generator
type PKG struct {
	key *keygen.KeyPair
}

// NewPKG wraps an RSA key pair as a PKG. The modulus must exceed 256 bits.
func NewPKG(kp *keygen.KeyPair) (*PKG, error) {
	if kp == nil || kp.Cleared() {
		return nil, ErrNilPKG
	}
	if err := security.ValidateModulus(kp.N); err != nil {
		return nil, err
	}
	return &PKG{key: kp}, nil
}

// Params returns the public parameters
func (p *PKG) Params() Params {
	return Params{N: p.key.N, E: p.key.E}
}

// ExtractKey computes the identity secret key g = ID^d mod n
func (p *PKG) ExtractKey(identity *big.Int) (*big.Int, error) {
	if !validIdentity(identity, p.key.N) {
		return nil, ErrInvalidIdentity
	}
	return imath.ModExp(identity, p.key.D, p.key.N)
}

// Extract issues a signer for the named identity. salt is mixed into nonce
// derivation and may be nil.
func (p *PKG) Extract(name string, identity *big.Int, salt []byte) (*Signer, error) {
	g, err := p.ExtractKey(identity)
	if err != nil {
		return nil, err
	}

	sessions, err := lru.New(sessionCacheSize)
	if err != nil {
		return nil, err
	}

	return &Signer{
		Name:     name,
		Identity: new(big.Int).Set(identity),
		params:   p.Params(),
		secret:   g,
		salt:     append([]byte(nil), salt...),
		sessions: sessions,
	}, nil
}

// sessionCacheSize is the number of answered sessions a signer remembers
const sessionCacheSize = 4096

func validIdentity(id, n *big.Int) bool {
	return id != nil && id.Cmp(big.NewInt(1)) > 0 && imath.IsUnit(id, n)
}

// Signer holds one identity's secret key
type Signer struct {
	Name     string
	Identity *big.Int

	params Params
	secret *big.Int
	salt   []byte

	// sessions maps a session digest to the aggregate it was answered for
	sessions *lru.Cache
	mu       sync.Mutex
}

// SecretKey returns a copy of g_i
func (s *Signer) SecretKey() *big.Int {
	return new(big.Int).Set(s.secret)
}

// Params returns the PKG parameters the signer was issued under
func (s *Signer) Params() Params {
	return s.params
}

// Commitment is a round 1 message
type Commitment struct {
	Signer   string
	Identity *big.Int
	T        *big.Int
}

// PartialSignature is a round 2 message
type PartialSignature struct {
	Signer   string
	Identity *big.Int

	// T is the signer's own commitment t_i
	T *big.Int

	// S is s_i = g_i · r_i^h mod n
	S *big.Int
}

// MultiSignature is a combined Harn signature on Message by Identities
type MultiSignature struct {
	Message    []byte
	Identities []*big.Int
	T          *big.Int
	S          *big.Int
}

// Commit runs round 1 for message under the given signer set
func (s *Signer) Commit(message []byte, identities []*big.Int) (*Commitment, error) {
	r, err := s.nonce(message, identities)
	if err != nil {
		return nil, err
	}
	defer security.SecureZeroBigInt(r)

	t, err := imath.ModExp(r, s.params.E, s.params.N)
	if err != nil {
		return nil, err
	}

	return &Commitment{Signer: s.Name, Identity: new(big.Int).Set(s.Identity), T: t}, nil
}

// respond runs round 2. The aggregate t is computed from commitments, which
// must hold the signer's own round 1 commitment for this session. A session
// already answered for a different aggregate is refused.
func (s *Signer) respond(message []byte, commitments []*Commitment) (*PartialSignature, *big.Int, error) {
	ids := make([]*big.Int, len(commitments))
	for i, c := range commitments {
		if c == nil || c.Identity == nil {
			return nil, nil, ErrInvalidCommitment
		}
		ids[i] = c.Identity
	}

	r, err := s.nonce(message, ids)
	if err != nil {
		return nil, nil, err
	}
	defer security.SecureZeroBigInt(r)

	own, err := imath.ModExp(r, s.params.E, s.params.N)
	if err != nil {
		return nil, nil, err
	}
	var found bool
	for _, c := range commitments {
		if c.Identity.Cmp(s.Identity) == 0 {
			if c.T == nil || c.T.Cmp(own) != 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrCommitmentMismatch, s.Name)
			}
			found = true
		}
	}
	if !found {
		return nil, nil, ErrNotParticipant
	}

	aggregate, err := Aggregate(s.params, commitments)
	if err != nil {
		return nil, nil, err
	}
	if err := s.bindSession(message, ids, aggregate); err != nil {
		return nil, nil, err
	}

	h, err := Challenge(s.params, aggregate, message)
	if err != nil {
		return nil, nil, err
	}
	rh, err := imath.ModExp(r, h, s.params.N)
	if err != nil {
		return nil, nil, err
	}

	return &PartialSignature{
		Signer:   s.Name,
		Identity: new(big.Int).Set(s.Identity),
		T:        own,
		S:        imath.ModMul(s.secret, rh, s.params.N),
	}, aggregate, nil
}

// bindSession records the aggregate a session is answered for and rejects
// any other
func (s *Signer) bindSession(message []byte, ids []*big.Int, aggregate *big.Int) error {
	key := string(sessionDigest(s.salt, message, ids))

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions.Get(key); ok {
		if prev.(*big.Int).Cmp(aggregate) != 0 {
			return fmt.Errorf("%w: %s", ErrSessionConflict, s.Name)
		}
		return nil
	}
	s.sessions.Add(key, new(big.Int).Set(aggregate))
	return nil
}

func (s *Signer) nonce(message []byte, identities []*big.Int) (*big.Int, error) {
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	if !containsIdentity(identities, s.Identity) {
		return nil, ErrNotParticipant
	}
	return deriveNonce(s.secret, s.salt, message, identities, s.params.N)
}

func containsIdentity(ids []*big.Int, id *big.Int) bool {
	for _, v := range ids {
		if v != nil && v.Cmp(id) == 0 {
			return true
		}
	}
	return false
}
