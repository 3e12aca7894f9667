package search

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kailas-cloud/solango/internal/domain/facet"
	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/result"
)

// MatchAll is the query used when the caller gives none.
const MatchAll = "*:*"

// Service merges default parameters into caller queries and parses results.
type Service struct {
	backend  Selecter
	schemas  SchemaLookup
	defaults *query.Query
	facets   facet.Options
}

// New creates a search service.
func New(backend Selecter, schemas SchemaLookup) *Service {
	return &Service{backend: backend, schemas: schemas, defaults: query.New()}
}

// WithDefaults sets the parameters every query starts from. Caller values
// for single parameters win; accumulating parameters are unioned.
func (s *Service) WithDefaults(q *query.Query) *Service {
	if q != nil {
		s.defaults = q
	}
	return s
}

// WithFacetOptions sets the separators and date formats used to rebuild facets.
func (s *Service) WithFacetOptions(opts facet.Options) *Service {
	s.facets = opts
	return s
}

// Query returns the defaults merged with q.
func (s *Service) Query(q *query.Query) *query.Query {
	out := s.defaults.Clone()
	out.Merge(q)
	if !out.Has("q") {
		_ = out.Set("q", MatchAll)
	}
	return out
}

// Search runs q and returns the parsed result set. Backend failures and
// unparseable responses are returned as errors.
func (s *Service) Search(ctx context.Context, q *query.Query) (*result.Select, error) {
	u, body, err := s.backend.Select(ctx, s.Query(q))
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return result.ParseSelect(u, body, s.schemas.Lookup, s.facets)
}

// SearchValues parses v as query parameters and runs the query.
func (s *Service) SearchValues(ctx context.Context, v url.Values) (*result.Select, error) {
	q, err := query.FromValues(v)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, q)
}
