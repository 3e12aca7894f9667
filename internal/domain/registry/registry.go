package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/document"
)

// Registry maps record type keys to document schemas. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*document.Schema
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{schemas: make(map[string]*document.Schema)}
}

// Register binds a schema to a type key.
func (r *Registry) Register(typeKey string, schema *document.Schema) error {
	if typeKey == "" {
		return fmt.Errorf("empty type key: %w", domain.ErrInvalidSchema)
	}
	if schema == nil {
		return fmt.Errorf("nil schema for %q: %w", typeKey, domain.ErrInvalidSchema)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[typeKey]; ok {
		return fmt.Errorf("%q: %w", typeKey, domain.ErrAlreadyRegistered)
	}
	r.schemas[typeKey] = schema
	return nil
}

// Lookup returns the schema registered for a type key.
func (r *Registry) Lookup(typeKey string) (*document.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typeKey]
	if !ok {
		return nil, fmt.Errorf("%q: %w", typeKey, domain.ErrNotRegistered)
	}
	return s, nil
}

// Unregister removes a type key.
func (r *Registry) Unregister(typeKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[typeKey]; !ok {
		return fmt.Errorf("%q: %w", typeKey, domain.ErrNotRegistered)
	}
	delete(r.schemas, typeKey)
	return nil
}

// Keys returns the registered type keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Document builds a write-path document for a record.
func (r *Registry) Document(rec domain.Record) (*document.Document, error) {
	s, err := r.Lookup(rec.TypeKey())
	if err != nil {
		return nil, err
	}
	return document.FromRecord(s, rec), nil
}
