package indexing

import (
	"context"

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// Backend is the write side of the search backend connection.
type Backend interface {
	Add(ctx context.Context, docs []string, commit bool) result.Updates
	Delete(ctx context.Context, ids []string, commit bool) result.Updates
	Optimize(ctx context.Context) *result.Update
}

// Queue records writes that failed against the backend.
type Queue interface {
	Enqueue(ctx context.Context, method domdef.Method, payload, docKey, errMsg string) (domdef.Record, error)
}

// KeyQueue holds record keys waiting for a queued indexing run.
type KeyQueue interface {
	Push(ctx context.Context, typeKey, recordID string) (domdef.Pending, error)
	Pending(ctx context.Context) ([]domdef.Pending, error)
	Ack(ctx context.Context, ids ...string) error
}

// SchemaLookup resolves the document schema for a type key.
type SchemaLookup interface {
	Lookup(typeKey string) (*document.Schema, error)
}

// RecordStore enumerates and fetches source records.
type RecordStore interface {
	All(ctx context.Context, typeKey string) ([]domain.Record, error)
	Get(ctx context.Context, typeKey, id string) (domain.Record, error)
}
