// Package records provides a JSON Lines record source for reindexing.
//
// Each line is one record:
//
//	{"type":"blog__post","id":"1","url":"/blog/1","attrs":{"title":"Hello"}}
//
// A later line for the same type and id replaces an earlier one. A line
// with "deleted": true removes the record.
package records

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/kailas-cloud/solango/internal/domain"
)

const maxLineSize = 4 << 20

type line struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	URL     string         `json:"url,omitempty"`
	Deleted bool           `json:"deleted,omitempty"`
	Attrs   map[string]any `json:"attrs"`
}

type key struct{ typeKey, id string }

// Store is an in-memory record set loaded from a JSONL file.
type Store struct {
	path string

	mu    sync.RWMutex
	recs  map[key]*domain.MapRecord
	order []key
}

// Open loads records from path.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read loads records from r. The returned store cannot be reloaded.
func Read(r io.Reader) (*Store, error) {
	s := &Store{}
	if err := s.load(r); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(filepath.Clean(s.path))
	if err != nil {
		return fmt.Errorf("open records %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()
	return s.load(f)
}

func (s *Store) load(r io.Reader) error {
	recs := make(map[key]*domain.MapRecord)
	var order []key

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return fmt.Errorf("records line %d: %w", n, err)
		}
		if l.Type == "" || l.ID == "" {
			return fmt.Errorf("records line %d: type and id are required: %w", n, domain.ErrInvalidValue)
		}

		k := key{l.Type, l.ID}
		if l.Deleted {
			delete(recs, k)
			continue
		}
		if _, ok := recs[k]; !ok {
			order = append(order, k)
		}
		rec := domain.NewMapRecord(l.Type, l.ID, l.Attrs)
		rec.URL = l.URL
		recs[k] = rec
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	order = slices.DeleteFunc(order, func(k key) bool { return recs[k] == nil })

	s.mu.Lock()
	s.recs, s.order = recs, order
	s.mu.Unlock()
	return nil
}

// All returns the records of typeKey in file order.
func (s *Store) All(ctx context.Context, typeKey string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, k := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if k.typeKey == typeKey {
			out = append(out, s.recs[k])
		}
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(_ context.Context, typeKey, id string) (domain.Record, error) {
	s.mu.RLock()
	rec, ok := s.recs[key{typeKey, id}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", typeKey, id, domain.ErrRecordNotFound)
	}
	return rec, nil
}

// TypeKeys returns the distinct type keys in first-seen order.
func (s *Store) TypeKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, k := range s.order {
		if !slices.Contains(out, k.typeKey) {
			out = append(out, k.typeKey)
		}
	}
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
