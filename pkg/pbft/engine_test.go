package pbft

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/Caqil/harn-ledger/pkg/audit"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/ledger"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/rsasig"
)

var testNodes = []struct {
	name    string
	p, q, e string
}{
	{"A", "1210613765735147311106936311866593978079938707", "1247842850282035753615951347964437248190231863", "815459040813953176289801"},
	{"B", "787435686772982288169641922308628444877260947", "1325305233886096053310340418467385397239375379", "692450682143089563609787"},
	{"C", "1014247300991039444864201518275018240361205111", "904030450302158058469475048755214591704639633", "1158749422015035388438057"},
	{"D", "1287737200891425621338551020762858710281638317", "1330909125725073469794953234151525201084537607", "33981230465225879849295979"},
}

func mustInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad integer %q", s)
	}
	return v
}

func testReplicas(t *testing.T) []Replica {
	t.Helper()
	replicas := make([]Replica, len(testNodes))
	for i, n := range testNodes {
		kp, err := keygen.NewKeyPair(n.name, mustInt(t, n.p), mustInt(t, n.q), mustInt(t, n.e))
		if err != nil {
			t.Fatalf("NewKeyPair %s failed: %v", n.name, err)
		}
		replicas[i] = Replica{Key: kp, Store: ledger.NewMemoryStore(n.name)}
	}
	return replicas
}

func newTestEngine(t *testing.T, cfg *Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	e, err := NewEngine(cfg, testReplicas(t), opts...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestThresholds(t *testing.T) {
	e := newTestEngine(t, nil)

	if e.MaxFaulty() != 1 || e.PrepareThreshold() != 2 || e.Quorum() != 3 {
		t.Errorf("unexpected thresholds f=%d prepare=%d quorum=%d", e.MaxFaulty(), e.PrepareThreshold(), e.Quorum())
	}

	for view, want := range []string{"A", "B", "C", "D", "A"} {
		if got := e.Primary(uint64(view)); got != want {
			t.Errorf("Primary(%d) = %s, want %s", view, got, want)
		}
	}
}

func TestNewEngineErrors(t *testing.T) {
	if _, err := NewEngine(nil, nil); !errors.Is(err, ErrNoReplicas) {
		t.Errorf("expected ErrNoReplicas, got %v", err)
	}

	replicas := testReplicas(t)
	dup := append(replicas, replicas[0])
	if _, err := NewEngine(nil, dup); !errors.Is(err, ErrDuplicateReplica) {
		t.Errorf("expected ErrDuplicateReplica, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.MaxFaulty = 2
	if _, err := NewEngine(cfg, testReplicas(t)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for f=2 with 4 replicas, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.CheckpointSize = 0
	if _, err := NewEngine(cfg, testReplicas(t)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSubmitCommits(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(t, nil, WithAudit(audit.NewWriter(&buf)))

	res, err := e.Submit(context.Background(), "A", "A:002:32:12")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if res.RecordStatus != StateCommitted || !res.ConsensusReached || res.Status != "Consensus committed" {
		t.Errorf("expected committed, got %+v", res)
	}
	if res.Sequence != 1 || res.View != 0 || !res.IsPrimary || res.Primary != "A" {
		t.Errorf("unexpected envelope %+v", res)
	}
	if res.PreparesCount != 3 || len(res.Prepares) != 3 {
		t.Errorf("expected 3 prepares, got %d", res.PreparesCount)
	}
	if res.CommitsCount != 4 || len(res.Commits) != 4 {
		t.Errorf("expected 4 commits, got %d", res.CommitsCount)
	}
	if res.PrePrepare.Sender != "A" || res.PrePrepare.Record != "A:002:32:12" {
		t.Errorf("unexpected pre-prepare %+v", res.PrePrepare)
	}

	for _, name := range e.Names() {
		store, _ := e.Store(name)
		rec, ok := store.Get(1)
		if !ok {
			t.Fatalf("replica %s should hold sequence 1", name)
		}
		if rec.Status != StateCommitted || rec.VerifiedBy != "PBFT" || len(rec.PartialSignatures) != 4 {
			t.Errorf("unexpected stored record on %s: %+v", name, rec)
		}
	}

	// every prepare is a valid RSA signature of seq:view:record
	for _, p := range res.Prepares {
		pub, _ := e.PublicKey(p.Sender)
		sig, _ := new(big.Int).SetString(p.Signature, 10)
		v, err := rsasig.Verify(pub, []byte("1:0:A:002:32:12"), sig)
		if err != nil || !v.Valid {
			t.Errorf("prepare from %s does not verify", p.Sender)
		}
	}

	if !strings.Contains(buf.String(), `"event_type":"committed"`) {
		t.Error("audit log should record the commit")
	}
}

func TestSubmitSequencesAreGlobal(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i, node := range []string{"A", "B", "C"} {
		res, err := e.Submit(ctx, node, node+":item:1:1")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if res.Sequence != uint64(i+1) {
			t.Errorf("expected sequence %d, got %d", i+1, res.Sequence)
		}
		if res.IsPrimary != (node == "A") {
			t.Errorf("%s: unexpected primary flag %v", node, res.IsPrimary)
		}
	}

	st := e.SystemStatus()
	if st.GlobalSequenceNumber != 3 || st.RecordsStored != 3 || st.TotalNodes != 4 || st.ConsensusThreshold != 3 {
		t.Errorf("unexpected system status %+v", st)
	}
	if st.Nodes[2].Seq != 3 {
		t.Errorf("C should report sequence 3, got %d", st.Nodes[2].Seq)
	}
}

func TestSubmitInvalid(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Submit(ctx, "Z", "Z:1:1:1"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.Submit(ctx, "A", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Submit(cancelled, "A", "A:1:1:1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if st := e.SystemStatus(); st.GlobalSequenceNumber != 0 {
		t.Errorf("rejected requests should not consume sequence numbers, got %d", st.GlobalSequenceNumber)
	}
}

func TestRequirePrimary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequirePrimary = true
	e := newTestEngine(t, cfg)

	if _, err := e.Submit(context.Background(), "B", "B:1:1:1"); !errors.Is(err, ErrNotPrimary) {
		t.Errorf("expected ErrNotPrimary, got %v", err)
	}
	if _, err := e.Submit(context.Background(), "A", "A:1:1:1"); err != nil {
		t.Errorf("primary submit failed: %v", err)
	}
}

func TestOneFaultyReplica(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if err := e.SetFaulty("D", true); err != nil {
		t.Fatalf("SetFaulty failed: %v", err)
	}

	res, err := e.Submit(ctx, "A", "A:bolt:5:1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.RecordStatus != StateCommitted || res.PreparesCount != 2 || res.CommitsCount != 3 {
		t.Errorf("one fault should be tolerated, got %+v", res)
	}

	st, err := e.Status(res.Sequence, res.View, "D")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StatePending {
		t.Errorf("silent replica should not hold the record, got %s", st.State)
	}

	if err := e.SetFaulty("D", false); err != nil {
		t.Fatalf("SetFaulty failed: %v", err)
	}
	if _, err := e.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	st, _ = e.Status(res.Sequence, res.View, "D")
	if st.State != StateCommitted {
		t.Errorf("recovered replica should catch up, got %s", st.State)
	}
}

func TestTwoFaultyReplicasStayPending(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	_ = e.SetFaulty("C", true)
	_ = e.SetFaulty("D", true)

	res, err := e.Submit(ctx, "A", "A:nut:1:1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.RecordStatus != StatePending || res.ConsensusReached {
		t.Fatalf("expected pending, got %+v", res)
	}
	if res.PreparesCount != 1 || res.CommitsCount != 0 {
		t.Errorf("unexpected counts %+v", res)
	}

	st, _ := e.Status(res.Sequence, res.View, "")
	if st.State != StatePending || st.Prepares != 1 || st.RequiredPrepares != 2 || st.RequiredCommits != 3 {
		t.Errorf("unexpected status %+v", st)
	}
	if sys := e.SystemStatus(); sys.Pending != 1 || sys.RecordsStored != 0 {
		t.Errorf("unexpected system status %+v", sys)
	}

	if _, err := e.Submit(ctx, "C", "C:x:1:1"); !errors.Is(err, ErrReplicaFaulty) {
		t.Errorf("expected ErrReplicaFaulty, got %v", err)
	}

	_ = e.SetFaulty("C", false)
	n, err := e.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one request to commit, got %d", n)
	}

	st, _ = e.Status(res.Sequence, res.View, "A")
	if st.State != StateCommitted {
		t.Errorf("expected committed after recovery, got %+v", st)
	}
}

func TestStatusUnknown(t *testing.T) {
	e := newTestEngine(t, nil)

	st, err := e.Status(42, 0, "")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateUnknown {
		t.Errorf("expected unknown, got %s", st.State)
	}

	if _, err := e.Status(1, 0, "Q"); !errors.Is(err, ErrUnknownReplica) {
		t.Errorf("expected ErrUnknownReplica, got %v", err)
	}
}

func TestViewChange(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := e.Submit(ctx, "A", "A:item:1:1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	tests := []struct {
		name string
		node string
		view uint64
		err  error
	}{
		{"zero view", "B", 0, ErrInvalidInput},
		{"unknown node", "Z", 1, ErrInvalidInput},
		{"not next primary", "C", 1, ErrNotNextPrimary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ViewChange(tt.node, tt.view); !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
		})
	}

	res, err := e.ViewChange("B", 1)
	if err != nil {
		t.Fatalf("ViewChange failed: %v", err)
	}
	if res.Status != "View changed" || res.NewView != 1 || res.Primary != "B" || res.OldPrimary != "A" {
		t.Errorf("unexpected view change %+v", res)
	}
	// 4 replicas, each with at most 10 checkpoint messages
	if len(res.CheckpointMessages) != 40 {
		t.Errorf("expected 40 checkpoint messages, got %d", len(res.CheckpointMessages))
	}

	if _, err := e.ViewChange("B", 1); !errors.Is(err, ErrStaleView) {
		t.Errorf("expected ErrStaleView, got %v", err)
	}

	for _, name := range e.Names() {
		if v, _ := e.View(name); v != 1 {
			t.Errorf("%s should be in view 1, got %d", name, v)
		}
	}

	sub, err := e.Submit(ctx, "B", "B:item:2:2")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !sub.IsPrimary || sub.View != 1 {
		t.Errorf("B should be primary in view 1, got %+v", sub)
	}
}

func TestResumesSequence(t *testing.T) {
	replicas := testReplicas(t)
	_ = replicas[1].Store.Append(ledger.Record{Record: "B:old:1:1", Sequence: 7})

	e, err := NewEngine(nil, replicas, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	res, err := e.Submit(context.Background(), "A", "A:new:1:1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Sequence != 8 {
		t.Errorf("expected sequence 8, got %d", res.Sequence)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestMessageTypeText(t *testing.T) {
	for _, mt := range []MessageType{MessageTypePrePrepare, MessageTypePrepare, MessageTypeCommit, MessageTypeViewChange} {
		b, _ := mt.MarshalText()
		var back MessageType
		if err := back.UnmarshalText(b); err != nil || back != mt {
			t.Errorf("round trip of %s failed: %v", mt, err)
		}
	}

	var mt MessageType
	if err := mt.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestCommittedRequestsAreRetired(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	const submits = 50
	for i := 0; i < submits; i++ {
		res, err := e.Submit(ctx, "A", "A:widget:1:1")
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		if res.RecordStatus != StateCommitted || len(res.Commits) != 4 {
			t.Fatalf("Submit %d did not commit: %+v", i, res)
		}
	}

	if n := len(e.requests); n != 0 {
		t.Errorf("requests retained after commit: %d", n)
	}
	if n := len(e.catchup); n != 0 {
		t.Errorf("backlog should be empty with every replica live, got %d", n)
	}
	if n := e.pendingCount(); n != 0 {
		t.Errorf("pendingCount = %d, want 0", n)
	}
	for _, name := range e.Names() {
		rep := e.replicas[name]
		if len(rep.prepares) != 0 || len(rep.commits) != 0 {
			t.Errorf("%s keeps %d prepares and %d commits", name, len(rep.prepares), len(rep.commits))
		}
		if s, _ := e.Store(name); s.Len() != submits {
			t.Errorf("%s stores %d records, want %d", name, s.Len(), submits)
		}
	}

	st, err := e.Status(1, 0, "")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != StateCommitted || st.Commits != 4 || st.RecordView != 0 || st.ViewMismatch {
		t.Errorf("unexpected status after retirement %+v", st)
	}

	if n, err := e.Reconcile(ctx); err != nil || n != 0 {
		t.Errorf("Reconcile = %d, %v; want 0, nil", n, err)
	}
}

func TestBacklogTracksSilentReplica(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	_ = e.SetFaulty("D", true)

	var seqs []uint64
	for i := 0; i < 3; i++ {
		res, err := e.Submit(ctx, "A", "A:gear:2:3")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		seqs = append(seqs, res.Sequence)
	}

	if n := len(e.requests); n != 0 {
		t.Errorf("committed requests should be retired, %d left", n)
	}
	if n := len(e.catchup); n != 3 {
		t.Fatalf("backlog = %d, want 3", n)
	}
	for _, seq := range seqs {
		b := e.catchup[seq]
		if len(b.missing) != 1 || !b.missing["D"] {
			t.Errorf("seq %d backlog should name only D, got %v", seq, b.missing)
		}
	}
	if sys := e.SystemStatus(); sys.Backlog != 3 || sys.Pending != 0 || sys.RecordsStored != 3 {
		t.Errorf("unexpected system status %+v", sys)
	}

	st, _ := e.Status(seqs[0], 0, "D")
	if st.State != StatePending || st.Commits != 3 {
		t.Errorf("silent replica status %+v", st)
	}

	// still silent: nothing moves
	if _, err := e.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n := len(e.catchup); n != 3 {
		t.Errorf("backlog = %d while D is silent, want 3", n)
	}

	_ = e.SetFaulty("D", false)
	if _, err := e.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if n := len(e.catchup); n != 0 {
		t.Errorf("backlog = %d after recovery, want 0", n)
	}
	d, _ := e.Store("D")
	for _, seq := range seqs {
		if !d.HasSequence(seq) {
			t.Errorf("D missing sequence %d after recovery", seq)
		}
	}
	if sys := e.SystemStatus(); sys.Backlog != 0 {
		t.Errorf("unexpected system status %+v", sys)
	}
}

func TestStatusReportsViewMismatch(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.ViewChange("B", 1); err != nil {
		t.Fatalf("ViewChange failed: %v", err)
	}
	res, err := e.Submit(ctx, "B", "B:valve:1:9")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.View != 1 {
		t.Fatalf("expected view 1, got %d", res.View)
	}

	st, _ := e.Status(res.Sequence, 0, "")
	if st.View != 0 || st.RecordView != 1 || !st.ViewMismatch || st.State != StateCommitted {
		t.Errorf("caller's view should be kept and the mismatch reported, got %+v", st)
	}

	st, _ = e.Status(res.Sequence, 1, "")
	if st.View != 1 || st.RecordView != 1 || st.ViewMismatch {
		t.Errorf("matching view reported as mismatch %+v", st)
	}

	_ = e.SetFaulty("C", true)
	_ = e.SetFaulty("D", true)
	pending, err := e.Submit(ctx, "B", "B:valve:2:9")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	st, _ = e.Status(pending.Sequence, 3, "")
	if st.State != StatePending || st.View != 3 || st.RecordView != 1 || !st.ViewMismatch {
		t.Errorf("pending mismatch not reported %+v", st)
	}
}

// brokenStore fails Records once broken is set
type brokenStore struct {
	ledger.Store
	broken bool
}

var errLedgerUnreadable = errors.New("ledger unreadable")

func (s *brokenStore) Records() ([]ledger.Record, error) {
	if s.broken {
		return nil, errLedgerUnreadable
	}
	return s.Store.Records()
}

func TestSystemStatusLogsLedgerErrors(t *testing.T) {
	var buf bytes.Buffer
	replicas := testReplicas(t)
	bad := &brokenStore{Store: replicas[2].Store}
	replicas[2].Store = bad

	e, err := NewEngine(nil, replicas, WithLogger(logger.New(&logger.Config{Level: "error", Output: &buf})))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := e.Submit(context.Background(), "A", "A:pipe:1:1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	bad.broken = true
	sys := e.SystemStatus()
	if sys.RecordsStored != 1 || sys.Nodes[2].Records != 0 {
		t.Errorf("unexpected system status %+v", sys)
	}

	out := buf.String()
	if !strings.Contains(out, errLedgerUnreadable.Error()) || !strings.Contains(out, `"node":"C"`) {
		t.Errorf("ledger read error not logged: %s", out)
	}
}
