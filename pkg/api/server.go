// Package api exposes the ledger cluster over HTTP: PBFT submission and
// status, per-replica queries, Harn multi-signatures and verified queries
// sealed for the procurement officer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Caqil/harn-ledger/pkg/audit"
	"github.com/Caqil/harn-ledger/pkg/harn"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/ledger"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/metrics"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 64 << 10

var (
	// ErrMissingEngine is returned when no consensus engine is configured
	ErrMissingEngine = errors.New("consensus engine is required")

	// ErrMissingCoordinator is returned when no Harn coordinator is configured
	ErrMissingCoordinator = errors.New("harn coordinator is required")

	// ErrMissingOfficer is returned when no officer key is configured
	ErrMissingOfficer = errors.New("officer key is required")
)

// Config wires the server to the cluster
type Config struct {
	Engine      *pbft.Engine
	Coordinator *harn.Coordinator
	Officer     *keygen.KeyPair

	// RandomVals are the per-node values reported by node-info
	RandomVals map[string]*big.Int

	CORSOrigins []string

	// RequestsPerSecond of zero disables rate limiting
	RequestsPerSecond float64
	Burst             int

	Metrics *metrics.Metrics
	Audit   *audit.Logger
	Logger  *logger.Logger
}

// Server serves the HTTP API
type Server struct {
	engine      *pbft.Engine
	coordinator *harn.Coordinator
	officer     *keygen.KeyPair
	randomVals  map[string]*big.Int

	limiter *RateLimiter
	metrics *metrics.Metrics
	audit   *audit.Logger
	log     *logger.Logger

	handler http.Handler
}

// New builds the router and middleware chain
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, ErrMissingEngine
	}
	if cfg.Coordinator == nil {
		return nil, ErrMissingCoordinator
	}
	if cfg.Officer == nil || cfg.Officer.Cleared() {
		return nil, ErrMissingOfficer
	}

	s := &Server{
		engine:      cfg.Engine,
		coordinator: cfg.Coordinator,
		officer:     cfg.Officer,
		randomVals:  cfg.RandomVals,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		log:         cfg.Logger,
	}
	if s.log == nil {
		s.log = logger.Component("api")
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter, err := NewRateLimiter(cfg.RequestsPerSecond, burst)
		if err != nil {
			return nil, err
		}
		s.limiter = limiter
	}

	r := mux.NewRouter()
	r.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/view-change", s.handleViewChange).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/verify-query", s.handleVerifyQuery).Methods(http.MethodPost)
	api.HandleFunc("/decrypt", s.handleDecrypt).Methods(http.MethodPost)
	api.HandleFunc("/node-info", s.handleNodeInfo).Methods(http.MethodGet)
	api.HandleFunc("/sign", s.handleSign).Methods(http.MethodPost)
	api.HandleFunc("/multisign", s.handleMultiSign).Methods(http.MethodPost)
	api.HandleFunc("/harn/verify", s.handleHarnVerify).Methods(http.MethodPost)
	api.HandleFunc("/walkthrough", s.handleWalkthrough).Methods(http.MethodGet)
	api.HandleFunc("/faults", s.handleFault).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.Use(s.recoverPanic, s.instrument)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)

	return s, nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. A non-nil tlsParams enables HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsParams *TLSParams) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsParams != nil {
		tlsConfig, err := ServerTLSConfig(*tlsParams)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoEvent().Str("addr", addr).Bool("tls", tlsParams != nil).Msg("http server listening")
		var err error
		if tlsParams != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := s.metrics.RequestStarted()
		defer done()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeTemplate(r)
		s.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		s.log.DebugEvent().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.ErrorEvent().
					Str("route", routeTemplate(r)).
					Str("panic", fmt.Sprint(v)).
					Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

// writeFailure is writeError for routes whose bodies carry a success flag
func writeFailure(w http.ResponseWriter, code int, msg string) {
	ok := false
	writeJSON(w, code, ErrorResponse{Success: &ok, Error: msg})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, pbft.ErrInvalidInput),
		errors.Is(err, pbft.ErrStaleView),
		errors.Is(err, pbft.ErrUnknownReplica),
		errors.Is(err, ledger.ErrInvalidRecord),
		errors.Is(err, harn.ErrEmptyMessage),
		errors.Is(err, harn.ErrUnknownSigner),
		errors.Is(err, harn.ErrDuplicateSigner),
		errors.Is(err, harn.ErrNotParticipant),
		errors.Is(err, harn.ErrInvalidCommitment):
		return http.StatusBadRequest
	case errors.Is(err, pbft.ErrNotPrimary),
		errors.Is(err, pbft.ErrNotNextPrimary):
		return http.StatusForbidden
	case errors.Is(err, pbft.ErrReplicaFaulty),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Nodes: len(s.engine.Names())})
}
