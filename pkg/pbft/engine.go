// Package pbft runs a PBFT-style agreement among a fixed set of replicas
// hosted in one process. A request is signed by the receiving replica
// (pre-prepare), acknowledged by the others (prepare) and, once 2f prepares
// are collected, committed by every live replica. With 2f+1 commits the
// record is written to each replica's ledger.
package pbft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Caqil/harn-ledger/internal/security"
	"github.com/Caqil/harn-ledger/pkg/audit"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/ledger"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/metrics"
	"github.com/Caqil/harn-ledger/pkg/rsasig"
)

// Record states reported by Status
const (
	StateCommitted = "committed"
	StatePending   = "pending"
	StateUnknown   = "unknown"
)

// Replica pairs a signing key with the replica's ledger
type Replica struct {
	Key   *keygen.KeyPair
	Store ledger.Store
}

type slot struct {
	seq  uint64
	view uint64
}

type replica struct {
	name     string
	key      *keygen.KeyPair
	store    ledger.Store
	view     uint64
	sequence uint64
	faulty   bool
	prepares map[slot]Message
	commits  map[slot]Message
	log      []Message
}

// request is a sequenced record that has not committed yet. It leaves the
// table as soon as it commits.
type request struct {
	node      string
	record    string
	seq       uint64
	view      uint64
	isPrimary bool
	signature string
	timestamp string
	prepares  []Message
	commits   []Message
	committed bool
}

// backlog is a committed record that some replicas still lack
type backlog struct {
	rec     ledger.Record
	missing map[string]bool
}

// Option configures an Engine
type Option func(*Engine)

// WithAudit sets the audit log
func WithAudit(a *audit.Logger) Option {
	return func(e *Engine) { e.audit = a }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine coordinates the replicas
type Engine struct {
	mu sync.Mutex

	cfg      *Config
	names    []string
	replicas map[string]*replica
	f        int

	globalSeq uint64
	requests  map[uint64]*request
	catchup   map[uint64]*backlog

	cache   *lru.Cache
	audit   *audit.Logger
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewEngine builds an engine over replicas in the given order. The global
// sequence resumes after the highest sequence found in any store.
func NewEngine(cfg *Config, replicas []Replica, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(replicas) == 0 {
		return nil, ErrNoReplicas
	}

	f := cfg.MaxFaulty
	if f < 0 {
		f = security.MaxFaulty(len(replicas))
	}
	if err := security.ValidateFaultBound(f, len(replicas)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cache, err := lru.New(cfg.VerifyCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		names:    make([]string, 0, len(replicas)),
		replicas: make(map[string]*replica, len(replicas)),
		f:        f,
		requests: make(map[uint64]*request),
		catchup:  make(map[uint64]*backlog),
		cache:    cache,
		log:      logger.Component("pbft"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, r := range replicas {
		if r.Key == nil || r.Store == nil {
			return nil, fmt.Errorf("%w: replica needs a key and a store", ErrInvalidConfig)
		}
		name := r.Key.Name
		if err := security.ValidateNodeName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if _, exists := e.replicas[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReplica, name)
		}

		rep := &replica{
			name:     name,
			key:      r.Key,
			store:    r.Store,
			prepares: make(map[slot]Message),
			commits:  make(map[slot]Message),
		}
		records, err := r.Store.Records()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		for _, rec := range records {
			if rec.Sequence > rep.sequence {
				rep.sequence = rec.Sequence
			}
		}
		if rep.sequence > e.globalSeq {
			e.globalSeq = rep.sequence
		}

		e.replicas[name] = rep
		e.names = append(e.names, name)
	}

	e.metrics.SetSequence(e.globalSeq)
	return e, nil
}

// Names returns replica names in configured order
func (e *Engine) Names() []string {
	return append([]string(nil), e.names...)
}

// MaxFaulty returns f
func (e *Engine) MaxFaulty() int { return e.f }

// PrepareThreshold returns the number of prepares (besides the pre-prepare)
// needed to enter the commit phase
func (e *Engine) PrepareThreshold() int { return 2 * e.f }

// Quorum returns the number of commits needed to commit a record
func (e *Engine) Quorum() int { return 2*e.f + 1 }

// Primary returns the primary replica of view
func (e *Engine) Primary(view uint64) string {
	return e.names[view%uint64(len(e.names))]
}

// Store returns a replica's ledger
func (e *Engine) Store(name string) (ledger.Store, bool) {
	r, ok := e.replicas[name]
	if !ok {
		return nil, false
	}
	return r.store, true
}

// PublicKey returns a replica's verification key
func (e *Engine) PublicKey(name string) (keygen.PublicKey, bool) {
	r, ok := e.replicas[name]
	if !ok {
		return keygen.PublicKey{}, false
	}
	return r.key.Public(), true
}

// SubmitResult describes the outcome of one request
type SubmitResult struct {
	Status           string `json:"status"`
	RecordStatus     string `json:"record_status"`
	Record           string `json:"record"`
	Signature        string `json:"signature"`
	Sequence         uint64 `json:"sequence"`
	View             uint64 `json:"view"`
	PreparesCount    int    `json:"prepares_count"`
	CommitsCount     int    `json:"commits_count"`
	PrePrepare       Vote   `json:"pre_prepare"`
	Prepares         []Vote `json:"prepares"`
	Commits          []Vote `json:"commits"`
	IsPrimary        bool   `json:"is_primary"`
	Primary          string `json:"primary"`
	ConsensusReached bool   `json:"consensus_reached"`
}

// Submit runs the three phases for record received by node
func (e *Engine) Submit(ctx context.Context, node, record string) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rep, ok := e.replicas[node]
	if !ok || ledger.ValidateRecord(record) != nil {
		e.metrics.ObserveSubmission("rejected")
		e.audit.LogRejected(node, 0, ErrInvalidInput)
		return nil, ErrInvalidInput
	}
	if rep.faulty {
		e.metrics.ObserveSubmission("rejected")
		e.audit.LogRejected(node, rep.view, ErrReplicaFaulty)
		return nil, fmt.Errorf("%w: %s", ErrReplicaFaulty, node)
	}

	view := rep.view
	primary := e.Primary(view)
	isPrimary := node == primary
	if e.cfg.RequirePrimary && !isPrimary {
		e.metrics.ObserveSubmission("rejected")
		e.audit.LogRejected(node, view, ErrNotPrimary)
		return nil, fmt.Errorf("%w: primary is %s", ErrNotPrimary, primary)
	}

	sig, err := rsasig.Sign(rep.key, []byte(record))
	if err != nil {
		return nil, fmt.Errorf("pre-prepare: %w", err)
	}

	e.globalSeq++
	seq := e.globalSeq
	rep.sequence = seq
	e.metrics.SetSequence(seq)

	req := &request{
		node:      node,
		record:    record,
		seq:       seq,
		view:      view,
		isPrimary: isPrimary,
		signature: sig.String(),
		timestamp: e.now().UTC().Format(time.RFC3339Nano),
	}
	e.requests[seq] = req

	e.appendLog(rep, Message{
		Sequence:  seq,
		View:      view,
		Phase:     MessageTypePrePrepare,
		Record:    record,
		Signature: req.signature,
		Sender:    node,
		IsPrimary: isPrimary,
	})

	e.log.DebugEvent().
		Node(node).
		Seq(seq).
		View(view).
		Bool("primary", isPrimary).
		Msg("pre-prepare")

	e.drive(req)

	if req.committed {
		e.metrics.ObserveSubmission(StateCommitted)
	} else {
		e.metrics.ObserveSubmission(StatePending)
		e.audit.LogOutcome(node, seq, view, false, len(req.prepares), len(req.commits))
	}
	e.metrics.SetPending(e.pendingCount())

	return e.result(req, primary), nil
}

func (e *Engine) result(req *request, primary string) *SubmitResult {
	state := StatePending
	if req.committed {
		state = StateCommitted
	}

	return &SubmitResult{
		Status:        "Consensus " + state,
		RecordStatus:  state,
		Record:        req.record,
		Signature:     req.signature,
		Sequence:      req.seq,
		View:          req.view,
		PreparesCount: len(req.prepares),
		CommitsCount:  len(req.commits),
		PrePrepare: Vote{
			Sender:    req.node,
			Record:    req.record,
			Signature: req.signature,
		},
		Prepares:         votes(req.prepares),
		Commits:          votes(req.commits),
		IsPrimary:        req.isPrimary,
		Primary:          primary,
		ConsensusReached: req.committed,
	}
}

// drive collects whatever prepares and commits the live replicas can add
// and commits the record once a quorum is reached. Must hold e.mu.
func (e *Engine) drive(req *request) {
	if req.committed {
		return
	}

	k := slot{seq: req.seq, view: req.view}

	for _, name := range e.names {
		if name == req.node {
			continue
		}
		rep := e.replicas[name]
		if rep.faulty {
			continue
		}
		if _, done := rep.prepares[k]; done {
			continue
		}
		if !e.verify(req.node, req.record, req.signature) {
			e.log.WarnEvent().Node(name).Str("sender", req.node).Seq(req.seq).
				Msg("pre-prepare signature rejected")
			continue
		}

		msg, err := e.sign(rep, MessageTypePrepare, req, prepareDigest(req.seq, req.view, req.record))
		if err != nil {
			e.log.ErrorEvent().Err(err).Node(name).Msg("prepare signing failed")
			continue
		}
		rep.prepares[k] = msg
		req.prepares = append(req.prepares, msg)
		e.metrics.ObserveMessage(MessageTypePrepare.String(), 1)
	}

	if len(req.prepares) < e.PrepareThreshold() {
		return
	}

	for _, name := range e.names {
		rep := e.replicas[name]
		if rep.faulty {
			continue
		}
		if _, done := rep.commits[k]; done {
			continue
		}

		msg, err := e.sign(rep, MessageTypeCommit, req, commitDigest(req.seq, req.view, req.record))
		if err != nil {
			e.log.ErrorEvent().Err(err).Node(name).Msg("commit signing failed")
			continue
		}
		rep.commits[k] = msg
		req.commits = append(req.commits, msg)
		e.metrics.ObserveMessage(MessageTypeCommit.String(), 1)
	}

	if len(req.commits) < e.Quorum() {
		return
	}

	req.committed = true
	e.persist(req)
	e.retire(req)
	e.audit.LogOutcome(req.node, req.seq, req.view, true, len(req.prepares), len(req.commits))
	e.log.InfoEvent().
		Node(req.node).
		Seq(req.seq).
		View(req.view).
		Int("commits", len(req.commits)).
		Msg("record committed")
}

// sign produces a phase message from rep. Must hold e.mu.
func (e *Engine) sign(rep *replica, phase MessageType, req *request, digest string) (Message, error) {
	sig, err := rsasig.Sign(rep.key, []byte(digest))
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Sequence:  req.seq,
		View:      req.view,
		Phase:     phase,
		Record:    req.record,
		Signature: sig.String(),
		Sender:    rep.name,
	}
	e.appendLog(rep, msg)
	return msg, nil
}

// persist writes a committed request to every live replica lacking it and
// keeps a backlog entry for the replicas that could not take it.
// Must hold e.mu.
func (e *Engine) persist(req *request) {
	partials := make([]ledger.PartialSignature, len(req.commits))
	for i, c := range req.commits {
		partials[i] = ledger.PartialSignature{Signature: c.Signature, SignedBy: c.Sender}
	}

	rec := ledger.Record{
		Record:            req.record,
		Signature:         req.signature,
		Status:            StateCommitted,
		VerifiedBy:        "PBFT",
		Sequence:          req.seq,
		View:              req.view,
		Timestamp:         req.timestamp,
		IsPrimary:         req.isPrimary,
		PartialSignatures: partials,
	}

	missing := e.deliver(rec, e.names)
	if len(missing) == 0 {
		return
	}
	b := &backlog{rec: rec, missing: make(map[string]bool, len(missing))}
	for _, name := range missing {
		b.missing[name] = true
	}
	e.catchup[req.seq] = b
}

// deliver appends rec to the named replicas and returns those that still
// lack it. Must hold e.mu.
func (e *Engine) deliver(rec ledger.Record, names []string) []string {
	var missing []string
	for _, name := range names {
		rep := e.replicas[name]
		if rep.store.HasSequence(rec.Sequence) {
			continue
		}
		if rep.faulty {
			missing = append(missing, name)
			continue
		}
		if err := rep.store.Append(rec); err != nil {
			e.log.ErrorEvent().Err(err).Node(name).Seq(rec.Sequence).
				Msg("failed to persist committed record")
			missing = append(missing, name)
			continue
		}
		if rec.Sequence > rep.sequence {
			rep.sequence = rec.Sequence
		}
	}
	return missing
}

// retire drops a committed request and its phase messages. Must hold e.mu.
func (e *Engine) retire(req *request) {
	k := slot{seq: req.seq, view: req.view}
	for _, rep := range e.replicas {
		delete(rep.prepares, k)
		delete(rep.commits, k)
	}
	delete(e.requests, req.seq)
}

// verify checks sender's signature on record through the LRU cache
func (e *Engine) verify(sender, record, signature string) bool {
	sum := sha256.Sum256([]byte(record))
	key := sender + "|" + hex.EncodeToString(sum[:]) + "|" + signature

	if v, ok := e.cache.Get(key); ok {
		e.metrics.ObserveCache(true)
		return v.(bool)
	}
	e.metrics.ObserveCache(false)

	valid := false
	if s, ok := new(big.Int).SetString(signature, 10); ok {
		if v, err := rsasig.Verify(e.replicas[sender].key.Public(), []byte(record), s); err == nil {
			valid = v.Valid
		}
	}

	e.cache.Add(key, valid)
	return valid
}

// appendLog records msg in rep's bounded message log. Must hold e.mu.
func (e *Engine) appendLog(rep *replica, msg Message) {
	rep.log = append(rep.log, msg)
	if over := len(rep.log) - e.cfg.MaxLogSize; over > 0 {
		rep.log = append(rep.log[:0:0], rep.log[over:]...)
	}
	e.audit.LogPhase(phaseEvent(msg.Phase), rep.name, msg.Sequence, msg.View)
	if msg.Phase == MessageTypePrePrepare {
		e.metrics.ObserveMessage(msg.Phase.String(), 1)
	}
}

func phaseEvent(t MessageType) string {
	switch t {
	case MessageTypePrePrepare:
		return audit.EventPrePrepare
	case MessageTypePrepare:
		return audit.EventPrepare
	case MessageTypeCommit:
		return audit.EventCommit
	default:
		return audit.EventViewChange
	}
}

// pendingCount must hold e.mu
func (e *Engine) pendingCount() int {
	return len(e.requests)
}

// backlogCount returns the number of committed records some replica still
// lacks. Must hold e.mu.
func (e *Engine) backlogCount() int {
	return len(e.catchup)
}

// StatusResult reports the state of one sequence
type StatusResult struct {
	State            string `json:"state"`
	Sequence         uint64 `json:"sequence"`
	View             uint64 `json:"view"`
	Node             string `json:"node,omitempty"`
	RecordView       uint64 `json:"record_view"`
	ViewMismatch     bool   `json:"view_mismatch,omitempty"`
	Prepares         int    `json:"prepares"`
	Commits          int    `json:"commits"`
	RequiredPrepares int    `json:"required_prepares"`
	RequiredCommits  int    `json:"required_commits"`
}

// Status reports whether seq is committed. With a node, the node's own
// ledger decides; otherwise any replica holding the record does. View echoes
// the caller's view; RecordView is the view seq was ordered in, and
// ViewMismatch is set when the two differ. Prepares are only known while the
// request is in flight.
func (e *Engine) Status(seq, view uint64, node string) (*StatusResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := &StatusResult{
		State:            StateUnknown,
		Sequence:         seq,
		View:             view,
		Node:             node,
		RequiredPrepares: e.PrepareThreshold(),
		RequiredCommits:  e.Quorum(),
	}

	var stores []ledger.Store
	if node != "" {
		rep, ok := e.replicas[node]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReplica, node)
		}
		stores = []ledger.Store{rep.store}
	} else {
		for _, name := range e.names {
			stores = append(stores, e.replicas[name].store)
		}
	}

	known := false
	if req, ok := e.requests[seq]; ok {
		res.Prepares = len(req.prepares)
		res.Commits = len(req.commits)
		res.RecordView = req.view
		known = true
	} else if b, ok := e.catchup[seq]; ok {
		res.Commits = len(b.rec.PartialSignatures)
		res.RecordView = b.rec.View
		known = true
	}

	for _, s := range stores {
		if rec, ok := s.Get(seq); ok {
			res.State = StateCommitted
			res.Commits = len(rec.PartialSignatures)
			res.RecordView = rec.View
			res.ViewMismatch = rec.View != view
			return res, nil
		}
	}

	if seq > 0 && seq <= e.globalSeq {
		res.State = StatePending
		res.ViewMismatch = known && res.RecordView != view
	}
	return res, nil
}

// NodeStatus is one replica's row in SystemStatus
type NodeStatus struct {
	Name    string `json:"name"`
	View    uint64 `json:"view"`
	Seq     uint64 `json:"seq"`
	Primary bool   `json:"primary"`
	Faulty  bool   `json:"faulty"`
	Records int    `json:"records"`
}

// SystemStatus summarises the cluster
type SystemStatus struct {
	TotalNodes           int          `json:"total_nodes"`
	ConsensusThreshold   int          `json:"consensus_threshold"`
	MaxFaulty            int          `json:"max_faulty"`
	RecordsStored        int          `json:"records_stored"`
	GlobalSequenceNumber uint64       `json:"global_sequence_number"`
	Pending              int          `json:"pending"`
	Backlog              int          `json:"backlog"`
	Nodes                []NodeStatus `json:"nodes"`
}

// SystemStatus returns totals and per-replica state. RecordsStored counts
// distinct committed sequences.
func (e *Engine) SystemStatus() *SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	committed := make(map[uint64]bool)
	st := &SystemStatus{
		TotalNodes:           len(e.names),
		ConsensusThreshold:   e.Quorum(),
		MaxFaulty:            e.f,
		GlobalSequenceNumber: e.globalSeq,
		Pending:              e.pendingCount(),
		Backlog:              e.backlogCount(),
		Nodes:                make([]NodeStatus, 0, len(e.names)),
	}

	for _, name := range e.names {
		rep := e.replicas[name]
		records, err := rep.store.Records()
		if err != nil {
			e.log.ErrorEvent().Err(err).Node(name).Msg("failed to read ledger")
		}
		for _, r := range records {
			if r.Sequence != 0 {
				committed[r.Sequence] = true
			}
		}
		st.Nodes = append(st.Nodes, NodeStatus{
			Name:    name,
			View:    rep.view,
			Seq:     rep.sequence,
			Primary: e.Primary(rep.view) == name,
			Faulty:  rep.faulty,
			Records: len(records),
		})
	}
	st.RecordsStored = len(committed)

	return st
}

// ViewChangeResult is returned by ViewChange
type ViewChangeResult struct {
	Status             string    `json:"status"`
	NewView            uint64    `json:"new_view"`
	Primary            string    `json:"primary"`
	OldPrimary         string    `json:"old_primary"`
	CheckpointMessages []Message `json:"checkpoint_messages"`
}

// ViewChange moves every replica to newView. Only the primary of newView may
// initiate it.
func (e *Engine) ViewChange(node string, newView uint64) (*ViewChangeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep, ok := e.replicas[node]
	if !ok || newView == 0 {
		e.audit.LogRejected(node, newView, ErrInvalidInput)
		return nil, ErrInvalidInput
	}
	if newView <= rep.view {
		e.audit.LogRejected(node, newView, ErrStaleView)
		return nil, fmt.Errorf("%w: current view is %d", ErrStaleView, rep.view)
	}
	if expected := e.Primary(newView); node != expected {
		e.audit.LogRejected(node, newView, ErrNotNextPrimary)
		return nil, fmt.Errorf("%w: next primary is %s", ErrNotNextPrimary, expected)
	}

	oldView := rep.view
	oldPrimary := e.Primary(oldView)

	checkpoint := make([]Message, 0, len(e.names)*e.cfg.CheckpointSize)
	for _, name := range e.names {
		msgs := e.replicas[name].log
		from := len(msgs) - e.cfg.CheckpointSize
		if from < 0 {
			from = 0
		}
		checkpoint = append(checkpoint, msgs[from:]...)
	}

	for _, name := range e.names {
		e.replicas[name].view = newView
	}
	e.metrics.SetView(newView)
	e.audit.LogViewChange(node, oldView, newView, oldPrimary, node)
	e.log.InfoEvent().
		Str("initiator", node).
		Uint64("old_view", oldView).
		Uint64("new_view", newView).
		Str("primary", node).
		Msg("view changed")

	return &ViewChangeResult{
		Status:             "View changed",
		NewView:            newView,
		Primary:            node,
		OldPrimary:         oldPrimary,
		CheckpointMessages: checkpoint,
	}, nil
}

// View returns a replica's current view
func (e *Engine) View(node string) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep, ok := e.replicas[node]
	if !ok {
		return 0, false
	}
	return rep.view, true
}

// SetFaulty marks a replica silent (it drops prepare and commit work) or
// restores it
func (e *Engine) SetFaulty(node string, faulty bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep, ok := e.replicas[node]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReplica, node)
	}
	rep.faulty = faulty
	e.audit.LogFault(node, faulty)
	e.log.WarnEvent().Node(node).Bool("faulty", faulty).Msg("fault state changed")
	return nil
}

// Reconcile re-drives every pending request and copies committed records to
// live replicas that missed them. It returns the number of requests that
// committed during this pass.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seqs := make([]uint64, 0, len(e.requests))
	for seq := range e.requests {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	newly := 0
	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return newly, err
		}

		req := e.requests[seq]
		e.drive(req)
		if req.committed {
			newly++
			e.metrics.ObserveSubmission("reconciled")
		}
	}

	seqs = seqs[:0]
	for seq := range e.catchup {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return newly, err
		}

		b := e.catchup[seq]
		names := make([]string, 0, len(b.missing))
		for _, name := range e.names {
			if b.missing[name] {
				names = append(names, name)
			}
		}
		missing := e.deliver(b.rec, names)
		if len(missing) == 0 {
			delete(e.catchup, seq)
			continue
		}
		b.missing = make(map[string]bool, len(missing))
		for _, name := range missing {
			b.missing[name] = true
		}
	}

	e.metrics.SetPending(e.pendingCount())
	return newly, nil
}

// Run reconciles every interval until ctx is cancelled
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = e.cfg.ReconcileInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := e.Reconcile(ctx)
			if err != nil && ctx.Err() == nil {
				e.log.ErrorEvent().Err(err).Msg("reconcile failed")
				continue
			}
			if n > 0 {
				e.log.InfoEvent().Int("committed", n).Msg("pending requests committed")
			}
		}
	}
}
