package journal

import (
	"context"
	"sync"
)

// MemoryStore is an ephemeral, thread-safe Store. It is what a session uses
// when no journal file is configured, so the status server can still list
// the cycles of the current process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{byID: map[string]int{}}
}

// EnsureSchema is a no-op.
func (m *MemoryStore) EnsureSchema(context.Context) error {
	return nil
}

// Record stores rec, assigning an id when it has none.
func (m *MemoryStore) Record(_ context.Context, rec Record) error {
	rec = prepare(rec)
	rec.Inputs = rec.Inputs.Clone()
	rec.Outputs = rec.Outputs.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[rec.ID]; ok {
		m.records[i] = rec
		return nil
	}
	m.byID[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return nil
}

// Get returns the record with id, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return m.records[i], nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]Record, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
