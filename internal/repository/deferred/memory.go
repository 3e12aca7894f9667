// Package deferred holds the storage backends for the deferred write queue.
package deferred

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

// Memory is an in-process queue. Records are lost on exit.
type Memory struct {
	mu      sync.Mutex
	records map[string]domdef.Record
	pending map[string]domdef.Pending
	now     func() time.Time
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]domdef.Record),
		pending: make(map[string]domdef.Pending),
		now:     time.Now,
	}
}

// WithClock overrides the timestamp source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Enqueue stores a new record.
func (m *Memory) Enqueue(
	_ context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	rec, err := domdef.New(method, payload, docKey, errMsg, m.now())
	if err != nil {
		return domdef.Record{}, err
	}
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return rec, nil
}

// List returns all records oldest first.
func (m *Memory) List(_ context.Context) ([]domdef.Record, error) {
	m.mu.Lock()
	out := make([]domdef.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	m.mu.Unlock()
	slices.SortFunc(out, domdef.Compare)
	return out, nil
}

// Remove deletes a record. Removing a missing record is not an error.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}

// Update replaces the error message of a record.
func (m *Memory) Update(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, domain.ErrDeferredNotFound)
	}
	r.Error = errMsg
	m.records[id] = r
	return nil
}

// Push queues a record key for the next queued indexing run.
func (m *Memory) Push(_ context.Context, typeKey, recordID string) (domdef.Pending, error) {
	p, err := domdef.NewPending(typeKey, recordID, m.now())
	if err != nil {
		return domdef.Pending{}, err
	}
	m.mu.Lock()
	m.pending[p.ID] = p
	m.mu.Unlock()
	return p, nil
}

// Pending returns the queued keys oldest first.
func (m *Memory) Pending(_ context.Context) ([]domdef.Pending, error) {
	m.mu.Lock()
	out := make([]domdef.Pending, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p)
	}
	m.mu.Unlock()
	slices.SortFunc(out, domdef.ComparePending)
	return out, nil
}

// Ack removes queued keys by id.
func (m *Memory) Ack(_ context.Context, ids ...string) error {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.pending, id)
	}
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
