package harn

import (
	"fmt"
	"math/big"
	"sync"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/pkg/crypto/hash"
)

// Aggregate computes t = Π t_i mod n
func Aggregate(params Params, commitments []*Commitment) (*big.Int, error) {
	if len(commitments) == 0 {
		return nil, ErrNoSigners
	}

	ts := make([]*big.Int, 0, len(commitments))
	seen := make(map[string]bool, len(commitments))
	for _, c := range commitments {
		if c == nil || c.Identity == nil || !imath.IsUnit(c.T, params.N) {
			return nil, ErrInvalidCommitment
		}
		key := c.Identity.String()
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, c.Signer)
		}
		seen[key] = true
		ts = append(ts, c.T)
	}

	return imath.ProductMod(ts, params.N)
}

// Challenge computes h = SHA-256(dec(t) || "|" || m) mod n
func Challenge(params Params, t *big.Int, message []byte) (*big.Int, error) {
	return hash.Challenge(t, message, params.N)
}

// IdentityProduct returns Π ID_i mod n
func IdentityProduct(params Params, identities []*big.Int) (*big.Int, error) {
	return imath.ProductMod(identities, params.N)
}

// Combine multiplies the partial signatures into a multi-signature over the
// aggregate commitment. Each partial's own commitment must be part of the
// aggregate; the product of partial commitments must equal t.
func Combine(params Params, message []byte, aggregate *big.Int, partials []*PartialSignature) (*MultiSignature, error) {
	if len(partials) == 0 {
		return nil, ErrNoSigners
	}

	commitments := make([]*Commitment, len(partials))
	ss := make([]*big.Int, len(partials))
	ids := make([]*big.Int, len(partials))
	for i, p := range partials {
		if p == nil || p.S == nil {
			return nil, ErrInvalidPartial
		}
		commitments[i] = &Commitment{Signer: p.Signer, Identity: p.Identity, T: p.T}
		ss[i] = p.S
		ids[i] = new(big.Int).Set(p.Identity)
	}

	t, err := Aggregate(params, commitments)
	if err != nil {
		return nil, err
	}
	if aggregate == nil || t.Cmp(aggregate) != 0 {
		return nil, ErrCommitmentMismatch
	}

	s, err := imath.ProductMod(ss, params.N)
	if err != nil {
		return nil, err
	}

	return &MultiSignature{
		Message:    append([]byte(nil), message...),
		Identities: ids,
		T:          t,
		S:          s,
	}, nil
}

// VerifyPartial checks s_i^e ≡ ID_i · t_i^h (mod n) where h is derived from
// the aggregate commitment.
func VerifyPartial(params Params, message []byte, aggregate *big.Int, p *PartialSignature) bool {
	if p == nil || p.S == nil || p.T == nil || !validIdentity(p.Identity, params.N) {
		return false
	}
	h, err := Challenge(params, aggregate, message)
	if err != nil {
		return false
	}
	return checkEquation(params, p.S, p.Identity, p.T, h)
}

// Verify checks s^e ≡ (Π ID_i) · t^h (mod n)
func Verify(params Params, sig *MultiSignature) bool {
	if sig == nil || sig.S == nil || sig.T == nil || len(sig.Identities) == 0 {
		return false
	}
	if !imath.IsUnit(sig.T, params.N) {
		return false
	}

	seen := make(map[string]bool, len(sig.Identities))
	for _, id := range sig.Identities {
		if !validIdentity(id, params.N) || seen[id.String()] {
			return false
		}
		seen[id.String()] = true
	}

	idProduct, err := IdentityProduct(params, sig.Identities)
	if err != nil {
		return false
	}
	h, err := Challenge(params, sig.T, sig.Message)
	if err != nil {
		return false
	}
	return checkEquation(params, sig.S, idProduct, sig.T, h)
}

// Equation holds both sides of the verification equation
type Equation struct {
	Left  *big.Int
	Right *big.Int
}

// Holds reports whether both sides agree
func (e Equation) Holds() bool {
	return e.Left != nil && e.Right != nil && e.Left.Cmp(e.Right) == 0
}

func equation(params Params, s, id, t, h *big.Int) Equation {
	left := imath.MustModExp(s, params.E, params.N)
	th := imath.MustModExp(t, h, params.N)
	return Equation{Left: left, Right: imath.ModMul(id, th, params.N)}
}

func checkEquation(params Params, s, id, t, h *big.Int) bool {
	if s.Sign() < 0 || s.Cmp(params.N) >= 0 {
		return false
	}
	return equation(params, s, id, t, h).Holds()
}

// BatchVerifyResult represents the result of batch verification
type BatchVerifyResult struct {
	Valid         bool
	FailedIndices []int
	TotalChecked  int
}

// BatchVerify verifies multiple multi-signatures
func BatchVerify(params Params, sigs []*MultiSignature) *BatchVerifyResult {
	result := &BatchVerifyResult{
		Valid:         true,
		FailedIndices: []int{},
		TotalChecked:  len(sigs),
	}

	for i, sig := range sigs {
		if !Verify(params, sig) {
			result.Valid = false
			result.FailedIndices = append(result.FailedIndices, i)
		}
	}

	return result
}

// ConcurrentBatchVerify verifies multiple multi-signatures on a worker pool.
// Failed indices are returned in ascending order.
func ConcurrentBatchVerify(params Params, sigs []*MultiSignature, workers int) *BatchVerifyResult {
	if workers <= 0 {
		workers = 4
	}

	failed := make([]bool, len(sigs))
	tasks := make(chan int, len(sigs))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				failed[i] = !Verify(params, sigs[i])
			}
		}()
	}

	for i := range sigs {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	result := &BatchVerifyResult{
		Valid:         true,
		FailedIndices: []int{},
		TotalChecked:  len(sigs),
	}
	for i, f := range failed {
		if f {
			result.Valid = false
			result.FailedIndices = append(result.FailedIndices, i)
		}
	}
	return result
}
