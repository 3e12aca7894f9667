package search

import (
	"context"

	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/query"
)

// Selecter runs a query against the search backend.
type Selecter interface {
	Select(ctx context.Context, q *query.Query) (url string, body []byte, err error)
}

// SchemaLookup resolves the document schema for a type key.
type SchemaLookup interface {
	Lookup(typeKey string) (*document.Schema, error)
}
