package deferred

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/solango/internal/domain"
)

// Method is the update operation a deferred record replays.
type Method string

// Deferred methods.
const (
	Delete   Method = "delete"
	Add      Method = "add"
	Commit   Method = "commit"
	Optimize Method = "optimize"
)

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case Delete, Add, Commit, Optimize:
		return true
	}
	return false
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%q: %w", s, domain.ErrInvalidMethod)
	}
	return m, nil
}

// Record is a buffered write awaiting replay.
type Record struct {
	ID        string    `json:"id"`
	Method    Method    `json:"method"`
	DocKey    string    `json:"doc_key,omitempty"`
	Payload   string    `json:"payload"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a record with a time-ordered id.
func New(method Method, payload, docKey, errMsg string, now time.Time) (Record, error) {
	if !method.IsValid() {
		return Record{}, fmt.Errorf("%q: %w", method, domain.ErrInvalidMethod)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("generate id: %w", err)
	}
	return Record{
		ID:        id.String(),
		Method:    method,
		DocKey:    docKey,
		Payload:   payload,
		Error:     errMsg,
		Timestamp: now.UTC(),
	}, nil
}

// Less orders records oldest first, breaking ties by id.
func Less(a, b Record) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Compare is Less in slices.SortFunc form.
func Compare(a, b Record) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}

// Pending is a record key waiting for the next queued indexing run.
type Pending struct {
	ID        string    `json:"id"`
	TypeKey   string    `json:"type_key"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPending creates a pending key with a time-ordered id.
func NewPending(typeKey, recordID string, now time.Time) (Pending, error) {
	if typeKey == "" || recordID == "" {
		return Pending{}, fmt.Errorf("pending key %q/%q: %w", typeKey, recordID, domain.ErrInvalidKey)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Pending{}, fmt.Errorf("generate id: %w", err)
	}
	return Pending{ID: id.String(), TypeKey: typeKey, RecordID: recordID, Timestamp: now.UTC()}, nil
}

// ComparePending orders pending keys oldest first, breaking ties by id.
func ComparePending(a, b Pending) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
