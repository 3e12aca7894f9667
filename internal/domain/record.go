package domain

import (
	"maps"
	"strings"
)

// DefaultSeparator joins a type key and a record id into a primary key.
// It avoids Lucene special characters.
const DefaultSeparator = "__"

// Record is an application record that can be turned into an index document.
type Record interface {
	// TypeKey identifies the record type, e.g. "blog__post".
	TypeKey() string
	// RecordID is the record identifier unique within its type.
	RecordID() string
	// Attr returns a named attribute of the record.
	Attr(name string) (any, bool)
}

// URLer is implemented by records that have a canonical URL.
type URLer interface {
	AbsoluteURL() string
}

// MakeKey builds the index-wide unique key for a record.
func MakeKey(typeKey, id, separator string) string {
	return typeKey + separator + id
}

// SplitKey returns the record id part of a primary key.
func SplitKey(key, separator string) string {
	if i := strings.LastIndex(key, separator); i >= 0 {
		return key[i+len(separator):]
	}
	return key
}

// MapRecord is a Record backed by an attribute map.
type MapRecord struct {
	Type  string
	ID    string
	URL   string
	Attrs map[string]any
}

// NewMapRecord creates a MapRecord with a copy of attrs.
func NewMapRecord(typeKey, id string, attrs map[string]any) *MapRecord {
	return &MapRecord{Type: typeKey, ID: id, Attrs: maps.Clone(attrs)}
}

// TypeKey implements Record.
func (r *MapRecord) TypeKey() string { return r.Type }

// RecordID implements Record.
func (r *MapRecord) RecordID() string { return r.ID }

// Attr implements Record.
func (r *MapRecord) Attr(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok
}

// AbsoluteURL implements URLer.
func (r *MapRecord) AbsoluteURL() string { return r.URL }
