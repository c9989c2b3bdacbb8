package api

import (
	"github.com/Caqil/harn-ledger/pkg/harn"
	"github.com/Caqil/harn-ledger/pkg/ledger"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
}

// SubmitRequest is the body of POST /submit
type SubmitRequest struct {
	Node   string `json:"node"`
	Record string `json:"record"`
}

// ViewChangeRequest is the body of POST /view-change
type ViewChangeRequest struct {
	Node string `json:"node"`
	View uint64 `json:"view"`
}

// FaultRequest is the body of POST /api/faults
type FaultRequest struct {
	Node   string `json:"node"`
	Faulty bool   `json:"faulty"`
}

// FaultResponse confirms a fault state change
type FaultResponse struct {
	Success bool   `json:"success"`
	Node    string `json:"node"`
	Faulty  bool   `json:"faulty"`
}

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Node   string `json:"node"`
	ItemID string `json:"item_id"`
}

// QueryResponse lists one replica's matching records
type QueryResponse struct {
	Success     bool                 `json:"success"`
	NodeQueried string               `json:"node_queried"`
	ItemID      string               `json:"item_id"`
	Count       int                  `json:"count"`
	Results     []ledger.QueryResult `json:"results"`
}

// VerifyQueryRequest is the body of POST /api/verify-query
type VerifyQueryRequest struct {
	ItemID string `json:"item_id"`
}

// NodePartial is one replica's Harn share in a verified query
type NodePartial struct {
	Node             string `json:"node"`
	PartialSignature string `json:"partial_signature"`
}

// VerifiedItem is a matching record as seen by one replica
type VerifiedItem struct {
	Node      string `json:"node"`
	ItemID    string `json:"item_id"`
	Quantity  *int64 `json:"quantity"`
	Price     *int64 `json:"price"`
	Signature string `json:"signature"`
}

// VerifiedQuery is the sealed payload of a verified query
type VerifiedQuery struct {
	ItemID             string         `json:"item_id"`
	Results            []VerifiedItem `json:"results"`
	Message            string         `json:"message"`
	Signers            []string       `json:"signers"`
	PartialSignatures  []NodePartial  `json:"partial_signatures"`
	Commitment         string         `json:"commitment"`
	CombinedSignature  string         `json:"combined_signature"`
	VerificationStatus string         `json:"verification_status"`
}

// VerificationParameters are the public values needed to check a verified
// query without decrypting it
type VerificationParameters struct {
	CombinedSignature string        `json:"combined_signature"`
	Commitment        string        `json:"commitment"`
	Signers           []string      `json:"signers"`
	PartialSignatures []NodePartial `json:"partial_signatures"`
	PKGN              string        `json:"pkg_n"`
	PKGE              string        `json:"pkg_e"`
}

// VerifyQueryResponse is returned by POST /api/verify-query
type VerifyQueryResponse struct {
	EncryptedResponse      string                 `json:"encrypted_response"`
	VerificationParameters VerificationParameters `json:"verification_parameters"`
}

// DecryptRequest is the body of POST /api/decrypt
type DecryptRequest struct {
	Encrypted string `json:"encrypted"`
}

// DecryptResponse carries the opened envelope. Format is "json" when the
// plaintext parses as JSON and "text" otherwise.
type DecryptResponse struct {
	Success   bool   `json:"success"`
	Decrypted any    `json:"decrypted"`
	Format    string `json:"format"`
}

// PKGInfo is the public PKG key
type PKGInfo struct {
	N string `json:"n"`
	E string `json:"e"`
}

// NodeInfo describes one signer
type NodeInfo struct {
	ID        string `json:"id"`
	Identity  string `json:"identity"`
	RandomVal string `json:"random_val,omitempty"`
	SecretKey string `json:"secret_key"`
	PublicN   string `json:"public_n"`
	PublicE   string `json:"public_e"`
}

// NodeInfoResponse is returned by GET /api/node-info
type NodeInfoResponse struct {
	PKG   PKGInfo             `json:"pkg"`
	Order []string            `json:"order"`
	Nodes map[string]NodeInfo `json:"nodes"`
}

// SignRequest is the body of POST /api/sign
type SignRequest struct {
	NodeID  string   `json:"node_id"`
	Message string   `json:"message"`
	Signers []string `json:"signers,omitempty"`
}

// SignResponse is one signer's share
type SignResponse struct {
	NodeID              string `json:"node_id"`
	Identity            string `json:"identity"`
	Message             string `json:"message"`
	Commitment          string `json:"commitment"`
	AggregateCommitment string `json:"aggregate_commitment"`
	Challenge           string `json:"challenge"`
	PartialSignature    string `json:"partial_signature"`
}

// MultiSignRequest is the body of POST /api/multisign
type MultiSignRequest struct {
	Message string   `json:"message"`
	Signers []string `json:"signers,omitempty"`
}

// Partial is a signer's share in a multi-signature response
type Partial struct {
	Node       string `json:"node"`
	Identity   string `json:"identity"`
	Commitment string `json:"commitment"`
	Signature  string `json:"signature"`
}

// MultiSignResponse is a combined Harn signature
type MultiSignResponse struct {
	Message    string    `json:"message"`
	Signers    []string  `json:"signers"`
	Identities []string  `json:"identities"`
	T          string    `json:"t"`
	Challenge  string    `json:"challenge"`
	Signature  string    `json:"signature"`
	Partials   []Partial `json:"partials"`
	Valid      bool      `json:"valid"`
}

// HarnVerifyRequest is the body of POST /api/harn/verify
type HarnVerifyRequest struct {
	Message   string   `json:"message"`
	T         string   `json:"t"`
	Signature string   `json:"signature"`
	Signers   []string `json:"signers"`
}

// HarnVerifyResponse reports the verification outcome
type HarnVerifyResponse struct {
	Valid bool `json:"valid"`
}

// WalkthroughResponse is returned by GET /api/walkthrough
type WalkthroughResponse struct {
	Message string      `json:"message"`
	Signers []string    `json:"signers"`
	Steps   []harn.Step `json:"steps"`
	Valid   bool        `json:"valid"`
}

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
}
