package ledger

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

// Store holds one replica's committed records
type Store interface {
	// Node returns the replica name the store belongs to
	Node() string

	// Append adds a committed record; a sequence may be stored once
	Append(rec Record) error

	// Records returns every record in append order
	Records() ([]Record, error)

	// HasSequence reports whether a record with the sequence is stored
	HasSequence(seq uint64) bool

	// Get returns the record stored for a sequence
	Get(seq uint64) (Record, bool)

	// Len returns the number of stored records
	Len() int
}

type seqEntry struct {
	seq uint64
	pos int
}

func seqLess(a, b seqEntry) bool {
	return a.seq < b.seq
}

// index keeps records in append order plus a B-tree by sequence.
// Rows without a sequence (hand-seeded files) are kept but not indexed.
type index struct {
	mu      sync.RWMutex
	records []Record
	bySeq   *btree.BTreeG[seqEntry]
}

func newIndex(records []Record) (*index, error) {
	idx := &index{bySeq: btree.NewG(16, seqLess)}
	for _, rec := range records {
		if err := idx.add(rec); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// add must be called with mu held for writing (or before publication)
func (idx *index) add(rec Record) error {
	if rec.Sequence != 0 {
		if _, ok := idx.bySeq.Get(seqEntry{seq: rec.Sequence}); ok {
			return fmt.Errorf("%w: %d", ErrDuplicateSequence, rec.Sequence)
		}
		idx.bySeq.ReplaceOrInsert(seqEntry{seq: rec.Sequence, pos: len(idx.records)})
	}
	idx.records = append(idx.records, rec)
	return nil
}

// rollback removes the last appended record
func (idx *index) rollback() {
	n := len(idx.records)
	if n == 0 {
		return
	}
	last := idx.records[n-1]
	if last.Sequence != 0 {
		idx.bySeq.Delete(seqEntry{seq: last.Sequence})
	}
	idx.records = idx.records[:n-1]
}

func (idx *index) snapshot() []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Record, len(idx.records))
	copy(out, idx.records)
	return out
}

func (idx *index) has(seq uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bySeq.Has(seqEntry{seq: seq})
}

func (idx *index) get(seq uint64) (Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.bySeq.Get(seqEntry{seq: seq})
	if !ok {
		return Record{}, false
	}
	return idx.records[e.pos], true
}

func (idx *index) len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Since returns records with sequence >= from in sequence order
func (idx *index) since(from uint64) []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Record
	idx.bySeq.AscendGreaterOrEqual(seqEntry{seq: from}, func(e seqEntry) bool {
		out = append(out, idx.records[e.pos])
		return true
	})
	return out
}

// MemoryStore is a Store without persistence
type MemoryStore struct {
	node string
	idx  *index
}

// NewMemoryStore creates an empty in-memory store for node
func NewMemoryStore(node string) *MemoryStore {
	idx, _ := newIndex(nil)
	return &MemoryStore{node: node, idx: idx}
}

// Node implements Store
func (m *MemoryStore) Node() string { return m.node }

// Append implements Store
func (m *MemoryStore) Append(rec Record) error {
	if err := ValidateRecord(rec.Record); err != nil {
		return err
	}
	m.idx.mu.Lock()
	defer m.idx.mu.Unlock()
	return m.idx.add(rec)
}

// Records implements Store
func (m *MemoryStore) Records() ([]Record, error) { return m.idx.snapshot(), nil }

// HasSequence implements Store
func (m *MemoryStore) HasSequence(seq uint64) bool { return m.idx.has(seq) }

// Get implements Store
func (m *MemoryStore) Get(seq uint64) (Record, bool) { return m.idx.get(seq) }

// Len implements Store
func (m *MemoryStore) Len() int { return m.idx.len() }

// Since returns records with sequence >= from, ordered by sequence
func (m *MemoryStore) Since(from uint64) []Record { return m.idx.since(from) }
