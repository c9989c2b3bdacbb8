package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/Caqil/harn-ledger/pkg/envelope"
	"github.com/Caqil/harn-ledger/pkg/ledger"
)

// Verification states of a verified query
const (
	VerificationVerified = "verified"
	VerificationPending  = "pending"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid input")
		return
	}

	store, ok := s.engine.Store(req.Node)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	results, err := ledger.Query(store, req.ItemID)
	if err != nil {
		s.log.ErrorEvent().Err(err).Node(req.Node).Msg("query failed")
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Success:     true,
		NodeQueried: req.Node,
		ItemID:      req.ItemID,
		Count:       len(results),
		Results:     results,
	})
}

// verifyMessage is the string the replicas co-sign for a verified query:
// the item id followed by the distinct matching records in sorted order
func verifyMessage(itemID string, records []string) string {
	sorted := append([]string(nil), records...)
	sort.Strings(sorted)
	return "verify-query:" + itemID + "\n" + strings.Join(sorted, "\n")
}

// collectVerified gathers matching records from every replica. Replicas
// holding the complete set of distinct matching records become signers.
func (s *Server) collectVerified(itemID string) ([]VerifiedItem, []string, []string, error) {
	results := make([]VerifiedItem, 0)
	union := make(map[string]bool)
	held := make(map[string]map[string]bool)

	names := s.engine.Names()
	for _, name := range names {
		store, _ := s.engine.Store(name)
		records, err := store.Records()
		if err != nil {
			return nil, nil, nil, err
		}

		own := make(map[string]bool)
		for _, rec := range ledger.MatchItem(records, itemID) {
			item, _ := ledger.ParseItem(rec.Record)
			results = append(results, VerifiedItem{
				Node:      item.Node,
				ItemID:    item.ItemID,
				Quantity:  item.Quantity,
				Price:     item.Price,
				Signature: rec.Signature,
			})
			own[rec.Record] = true
			union[rec.Record] = true
		}
		held[name] = own
	}

	var signers []string
	for _, name := range names {
		if _, ok := s.coordinator.Signer(name); !ok {
			continue
		}
		if len(held[name]) > 0 && len(held[name]) == len(union) {
			signers = append(signers, name)
		}
	}

	distinct := make([]string, 0, len(union))
	for rec := range union {
		distinct = append(distinct, rec)
	}

	return results, signers, distinct, nil
}

func (s *Server) handleVerifyQuery(w http.ResponseWriter, r *http.Request) {
	var req VerifyQueryRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "Item ID required")
		return
	}

	results, signers, distinct, err := s.collectVerified(req.ItemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if len(signers) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no replica holds the complete record set")
		return
	}

	message := verifyMessage(req.ItemID, distinct)
	session, err := s.coordinator.Sign([]byte(message), signers)
	if err != nil {
		s.log.ErrorEvent().Err(err).Str("item_id", req.ItemID).Msg("verified query signing failed")
		writeError(w, statusFor(err), err.Error())
		return
	}

	partials := make([]NodePartial, len(session.Partials))
	for i, p := range session.Partials {
		partials[i] = NodePartial{Node: p.Signer, PartialSignature: p.S.String()}
	}

	status := VerificationPending
	if len(signers) >= s.engine.Quorum() {
		status = VerificationVerified
	}

	payload := VerifiedQuery{
		ItemID:             req.ItemID,
		Results:            results,
		Message:            message,
		Signers:            session.Signers,
		PartialSignatures:  partials,
		Commitment:         session.Aggregate.String(),
		CombinedSignature:  session.Signature.S.String(),
		VerificationStatus: status,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	token, err := envelope.SealString(s.officer.Public(), data)
	if err != nil {
		s.log.ErrorEvent().Err(err).Msg("sealing verified query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.DebugEvent().
		Str("item_id", req.ItemID).
		Strs("signers", session.Signers).
		Str("status", status).
		BigInt("signature", session.Signature.S).
		Msg("verified query sealed")

	params := s.coordinator.Params()
	writeJSON(w, http.StatusOK, VerifyQueryResponse{
		EncryptedResponse: token,
		VerificationParameters: VerificationParameters{
			CombinedSignature: payload.CombinedSignature,
			Commitment:        payload.Commitment,
			Signers:           payload.Signers,
			PartialSignatures: partials,
			PKGN:              params.N.String(),
			PKGE:              params.E.String(),
		},
	})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req DecryptRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Encrypted == "" {
		writeError(w, http.StatusBadRequest, "Missing encrypted message")
		return
	}

	plaintext, err := envelope.OpenString(s.officer, req.Encrypted)
	if err != nil {
		s.audit.LogDecryptionFailure(err)
		writeFailure(w, http.StatusBadRequest, "Decryption failed: "+err.Error())
		return
	}

	var decoded any
	if err := json.Unmarshal(plaintext, &decoded); err == nil {
		writeJSON(w, http.StatusOK, DecryptResponse{Success: true, Decrypted: decoded, Format: "json"})
		return
	}
	writeJSON(w, http.StatusOK, DecryptResponse{Success: true, Decrypted: string(plaintext), Format: "text"})
}
