// Package client is a typed HTTP client for the ledger node service
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

// maxResponseBytes caps response bodies read by the client
const maxResponseBytes = 4 << 20

var (
	// ErrTransport wraps failures to reach the server or read its reply
	ErrTransport = errors.New("transport error")

	// ErrInvalidBaseURL is returned for a malformed server address
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one node service
type Client struct {
	base *url.URL
	http *http.Client
	log  *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %s", ErrInvalidBaseURL, u.Scheme)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Component("client")
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	c.log.DebugEvent().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrTransport, err)
	}
	return nil
}

// Submit sends a record to node
func (c *Client) Submit(ctx context.Context, node, record string) (*pbft.SubmitResult, error) {
	var out pbft.SubmitResult
	err := c.do(ctx, http.MethodPost, "/submit", nil, api.SubmitRequest{Node: node, Record: record}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status reports the state of one sequence. An empty node asks the cluster.
func (c *Client) Status(ctx context.Context, seq, view uint64, node string) (*pbft.StatusResult, error) {
	q := url.Values{}
	q.Set("sequence", strconv.FormatUint(seq, 10))
	q.Set("view", strconv.FormatUint(view, 10))
	if node != "" {
		q.Set("node", node)
	}

	var out pbft.StatusResult
	if err := c.do(ctx, http.MethodGet, "/status", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemStatus returns cluster totals
func (c *Client) SystemStatus(ctx context.Context) (*pbft.SystemStatus, error) {
	var out pbft.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ViewChange asks node to move the cluster to view
func (c *Client) ViewChange(ctx context.Context, node string, view uint64) (*pbft.ViewChangeResult, error) {
	var out pbft.ViewChangeResult
	err := c.do(ctx, http.MethodPost, "/view-change", nil, api.ViewChangeRequest{Node: node, View: view}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetFaulty silences or restores a replica
func (c *Client) SetFaulty(ctx context.Context, node string, faulty bool) (*api.FaultResponse, error) {
	var out api.FaultResponse
	err := c.do(ctx, http.MethodPost, "/api/faults", nil, api.FaultRequest{Node: node, Faulty: faulty}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Query lists one replica's records for itemID; empty itemID lists all
func (c *Client) Query(ctx context.Context, node, itemID string) (*api.QueryResponse, error) {
	var out api.QueryResponse
	err := c.do(ctx, http.MethodPost, "/api/query", nil, api.QueryRequest{Node: node, ItemID: itemID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyQuery requests a multi-signed query sealed for the officer
func (c *Client) VerifyQuery(ctx context.Context, itemID string) (*api.VerifyQueryResponse, error) {
	var out api.VerifyQueryResponse
	err := c.do(ctx, http.MethodPost, "/api/verify-query", nil, api.VerifyQueryRequest{ItemID: itemID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Decrypt opens a sealed response
func (c *Client) Decrypt(ctx context.Context, encrypted string) (*api.DecryptResponse, error) {
	var out api.DecryptResponse
	err := c.do(ctx, http.MethodPost, "/api/decrypt", nil, api.DecryptRequest{Encrypted: encrypted}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NodeInfo returns the PKG parameters and signer table
func (c *Client) NodeInfo(ctx context.Context) (*api.NodeInfoResponse, error) {
	var out api.NodeInfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/node-info", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sign requests one signer's share
func (c *Client) Sign(ctx context.Context, req api.SignRequest) (*api.SignResponse, error) {
	var out api.SignResponse
	if err := c.do(ctx, http.MethodPost, "/api/sign", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MultiSign runs a full signing session; no signers selects every node
func (c *Client) MultiSign(ctx context.Context, message string, signers []string) (*api.MultiSignResponse, error) {
	var out api.MultiSignResponse
	err := c.do(ctx, http.MethodPost, "/api/multisign", nil, api.MultiSignRequest{Message: message, Signers: signers}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyHarn checks a multi-signature
func (c *Client) VerifyHarn(ctx context.Context, req api.HarnVerifyRequest) (bool, error) {
	var out api.HarnVerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/harn/verify", nil, req, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Walkthrough returns every intermediate value of a signing session
func (c *Client) Walkthrough(ctx context.Context, message string, signers []string) (*api.WalkthroughResponse, error) {
	q := url.Values{}
	q.Set("message", message)
	if len(signers) > 0 {
		q.Set("signers", strings.Join(signers, ","))
	}

	var out api.WalkthroughResponse
	if err := c.do(ctx, http.MethodGet, "/api/walkthrough", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the service is up
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
