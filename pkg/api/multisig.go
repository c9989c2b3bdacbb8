package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	imath "github.com/Caqil/harn-ledger/internal/math"
	"github.com/Caqil/harn-ledger/pkg/harn"
)

func (s *Server) handleNodeInfo(w http.ResponseWriter, _ *http.Request) {
	params := s.coordinator.Params()
	resp := NodeInfoResponse{
		PKG:   PKGInfo{N: params.N.String(), E: params.E.String()},
		Order: s.coordinator.Names(),
		Nodes: make(map[string]NodeInfo),
	}

	for _, name := range resp.Order {
		signer, _ := s.coordinator.Signer(name)
		info := NodeInfo{
			ID:        name,
			Identity:  signer.Identity.String(),
			SecretKey: signer.SecretKey().String(),
		}
		if rv, ok := s.randomVals[name]; ok && rv != nil {
			info.RandomVal = rv.String()
		}
		if pub, ok := s.engine.PublicKey(name); ok {
			info.PublicN = pub.N.String()
			info.PublicE = pub.E.String()
		}
		resp.Nodes[name] = info
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.NodeID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "node_id and message are required")
		return
	}

	res, err := s.coordinator.PartialFor(req.NodeID, []byte(req.Message), req.Signers)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SignResponse{
		NodeID:              req.NodeID,
		Identity:            res.Partial.Identity.String(),
		Message:             req.Message,
		Commitment:          res.Commitment.T.String(),
		AggregateCommitment: res.Aggregate.String(),
		Challenge:           res.Challenge.String(),
		PartialSignature:    res.Partial.S.String(),
	})
}

func (s *Server) handleMultiSign(w http.ResponseWriter, r *http.Request) {
	var req MultiSignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	session, err := s.coordinator.Sign([]byte(req.Message), req.Signers)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, multiSignResponse(s.coordinator.Params(), session))
}

func multiSignResponse(params harn.Params, session *harn.Session) MultiSignResponse {
	resp := MultiSignResponse{
		Message:    string(session.Message),
		Signers:    session.Signers,
		Identities: make([]string, len(session.Identities)),
		T:          session.Aggregate.String(),
		Challenge:  session.Challenge.String(),
		Signature:  session.Signature.S.String(),
		Partials:   make([]Partial, len(session.Partials)),
		Valid:      harn.Verify(params, session.Signature),
	}
	for i, id := range session.Identities {
		resp.Identities[i] = id.String()
	}
	for i, p := range session.Partials {
		resp.Partials[i] = Partial{
			Node:       p.Signer,
			Identity:   p.Identity.String(),
			Commitment: p.T.String(),
			Signature:  p.S.String(),
		}
	}
	return resp
}

// identities resolves signer names to their registered identities
func (s *Server) identities(names []string) ([]*big.Int, error) {
	ids := make([]*big.Int, 0, len(names))
	for _, name := range names {
		signer, ok := s.coordinator.Signer(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", harn.ErrUnknownSigner, name)
		}
		ids = append(ids, signer.Identity)
	}
	return ids, nil
}

func (s *Server) handleHarnVerify(w http.ResponseWriter, r *http.Request) {
	var req HarnVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Message == "" || len(req.Signers) == 0 {
		writeError(w, http.StatusBadRequest, "message and signers are required")
		return
	}

	t, err := imath.ParseDecimal(req.T)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t")
		return
	}
	sig, err := imath.ParseDecimal(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	ids, err := s.identities(req.Signers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid := harn.Verify(s.coordinator.Params(), &harn.MultiSignature{
		Message:    []byte(req.Message),
		Identities: ids,
		T:          t,
		S:          sig,
	})
	writeJSON(w, http.StatusOK, HarnVerifyResponse{Valid: valid})
}

func (s *Server) handleWalkthrough(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	message := q.Get("message")
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var names []string
	if v := q.Get("signers"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}

	wt, err := s.coordinator.Walkthrough([]byte(message), names)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, WalkthroughResponse{
		Message: message,
		Signers: wt.Session.Signers,
		Steps:   wt.Steps,
		Valid:   wt.Valid(),
	})
}
