package harn

import (
	"fmt"
	"math/big"
)

// Coordinator drives a signing session over a fixed set of registered
// signers. Because nonces are deterministic, a single share can be
// recomputed on demand without session state.
type Coordinator struct {
	params  Params
	signers map[string]*Signer
	order   []string
}

// Session is the full transcript of one signing session
type Session struct {
	Message     []byte
	Signers     []string
	Identities  []*big.Int
	Commitments []*Commitment
	Aggregate   *big.Int
	Challenge   *big.Int
	Partials    []*PartialSignature
	Signature   *MultiSignature
}

// PartialResult is one signer's contribution to a session
type PartialResult struct {
	Commitment *Commitment
	Aggregate  *big.Int
	Challenge  *big.Int
	Partial    *PartialSignature
}

// NewCoordinator registers signers in the given order
func NewCoordinator(params Params, signers ...*Signer) (*Coordinator, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}

	c := &Coordinator{
		params:  params,
		signers: make(map[string]*Signer, len(signers)),
		order:   make([]string, 0, len(signers)),
	}
	for _, s := range signers {
		if s == nil {
			return nil, ErrUnknownSigner
		}
		if _, exists := c.signers[s.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, s.Name)
		}
		if s.params.N.Cmp(params.N) != 0 || s.params.E.Cmp(params.E) != 0 {
			return nil, fmt.Errorf("%w: %s issued under different parameters", ErrInvalidIdentity, s.Name)
		}
		c.signers[s.Name] = s
		c.order = append(c.order, s.Name)
	}

	return c, nil
}

// Params returns the PKG parameters
func (c *Coordinator) Params() Params {
	return c.params
}

// Names returns the registered signer names in registration order
func (c *Coordinator) Names() []string {
	return append([]string(nil), c.order...)
}

// Signer looks up a registered signer
func (c *Coordinator) Signer(name string) (*Signer, bool) {
	s, ok := c.signers[name]
	return s, ok
}

// resolve maps names to signers; an empty list selects every signer
func (c *Coordinator) resolve(names []string) ([]*Signer, []*big.Int, error) {
	if len(names) == 0 {
		names = c.order
	}

	signers := make([]*Signer, 0, len(names))
	ids := make([]*big.Int, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, name)
		}
		seen[name] = true

		s, ok := c.signers[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSigner, name)
		}
		signers = append(signers, s)
		ids = append(ids, s.Identity)
	}

	return signers, ids, nil
}

func (c *Coordinator) commitAll(message []byte, signers []*Signer, ids []*big.Int) ([]*Commitment, *big.Int, *big.Int, error) {
	commitments := make([]*Commitment, len(signers))
	for i, s := range signers {
		cm, err := s.Commit(message, ids)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("commit %s: %w", s.Name, err)
		}
		commitments[i] = cm
	}

	t, err := Aggregate(c.params, commitments)
	if err != nil {
		return nil, nil, nil, err
	}
	h, err := Challenge(c.params, t, message)
	if err != nil {
		return nil, nil, nil, err
	}

	return commitments, t, h, nil
}

// Sign runs both rounds for the named signers and returns the verified
// transcript
func (c *Coordinator) Sign(message []byte, names []string) (*Session, error) {
	signers, ids, err := c.resolve(names)
	if err != nil {
		return nil, err
	}

	commitments, t, h, err := c.commitAll(message, signers, ids)
	if err != nil {
		return nil, err
	}

	partials := make([]*PartialSignature, len(signers))
	for i, s := range signers {
		p, st, err := s.respond(message, commitments)
		if err != nil {
			return nil, fmt.Errorf("respond %s: %w", s.Name, err)
		}
		if st.Cmp(t) != 0 || p.T.Cmp(commitments[i].T) != 0 || !VerifyPartial(c.params, message, t, p) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPartial, s.Name)
		}
		partials[i] = p
	}

	sig, err := Combine(c.params, message, t, partials)
	if err != nil {
		return nil, err
	}
	if !Verify(c.params, sig) {
		return nil, ErrInvalidSignature
	}

	sessionNames := make([]string, len(signers))
	for i, s := range signers {
		sessionNames[i] = s.Name
	}

	return &Session{
		Message:     append([]byte(nil), message...),
		Signers:     sessionNames,
		Identities:  ids,
		Commitments: commitments,
		Aggregate:   t,
		Challenge:   h,
		Partials:    partials,
		Signature:   sig,
	}, nil
}

// PartialFor returns the named signer's share of the session defined by
// message and names
func (c *Coordinator) PartialFor(name string, message []byte, names []string) (*PartialResult, error) {
	signers, ids, err := c.resolve(names)
	if err != nil {
		return nil, err
	}

	self, ok := c.signers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigner, name)
	}
	if !containsIdentity(ids, self.Identity) {
		return nil, ErrNotParticipant
	}

	commitments, t, h, err := c.commitAll(message, signers, ids)
	if err != nil {
		return nil, err
	}

	p, st, err := self.respond(message, commitments)
	if err != nil {
		return nil, err
	}
	if st.Cmp(t) != 0 || !VerifyPartial(c.params, message, t, p) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPartial, name)
	}

	var own *Commitment
	for _, cm := range commitments {
		if cm.Signer == name {
			own = cm
		}
	}

	return &PartialResult{Commitment: own, Aggregate: t, Challenge: h, Partial: p}, nil
}
