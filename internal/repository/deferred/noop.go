package deferred

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

// Noop validates and discards records. Use it when failed writes should
// not be retried.
type Noop struct{}

// Enqueue validates the method and returns a record that is not stored.
func (Noop) Enqueue(
	_ context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	return domdef.New(method, payload, docKey, errMsg, time.Now())
}

// List always returns an empty queue.
func (Noop) List(context.Context) ([]domdef.Record, error) { return nil, nil }

// Remove does nothing.
func (Noop) Remove(context.Context, string) error { return nil }

// Update does nothing.
func (Noop) Update(context.Context, string, string) error { return nil }

// Push fails: queued keys would never be indexed.
func (Noop) Push(_ context.Context, typeKey, recordID string) (domdef.Pending, error) {
	return domdef.Pending{}, fmt.Errorf("push %s/%s: %w", typeKey, recordID, domain.ErrQueueDisabled)
}

// Pending always returns an empty queue.
func (Noop) Pending(context.Context) ([]domdef.Pending, error) { return nil, nil }

// Ack does nothing.
func (Noop) Ack(context.Context, ...string) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
