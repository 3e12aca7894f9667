package field

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/solango/internal/domain"
)

// Kind is the value type of a field.
type Kind string

// Field kinds.
const (
	String   Kind = "string"
	Text     Kind = "text"
	Integer  Kind = "integer"
	Long     Kind = "long"
	Float    Kind = "float"
	Double   Kind = "double"
	Boolean  Kind = "boolean"
	Date     Kind = "date"
	DateTime Kind = "datetime"
)

var suffixes = map[Kind]string{
	String:   "s",
	Text:     "t",
	Integer:  "i",
	Long:     "l",
	Float:    "f",
	Double:   "d",
	Boolean:  "b",
	Date:     "dt",
	DateTime: "dt",
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	_, ok := suffixes[k]
	return ok
}

// Suffix returns the dynamic field suffix, e.g. "i" for integers.
func (k Kind) Suffix() string { return suffixes[k] }

// BackendType returns the schema type name used by the search backend.
func (k Kind) BackendType() string {
	if k == DateTime {
		return string(Date)
	}
	return string(k)
}

// Role selects the default transform of a field.
type Role int

// Field roles.
const (
	RolePlain Role = iota
	RolePrimaryKey
	RoleModel
	RoleSite
	RoleURL
	RoleFullText
)

// DefaultCopyDest is the catch-all full-text field.
const DefaultCopyDest = "text"

// Spec is an immutable field declaration.
type Spec struct {
	name        string
	kind        Kind
	role        Role
	required    bool
	indexed     bool
	stored      bool
	multiValued bool
	omitNorms   bool
	dynamic     bool
	copyTo      []string
	boost       float64
}

// Option configures a Spec.
type Option func(*Spec)

// Required marks the field as required.
func Required() Option { return func(s *Spec) { s.required = true } }

// Indexed sets whether the field is searchable, sortable and facetable.
func Indexed(v bool) Option { return func(s *Spec) { s.indexed = v } }

// Stored sets whether the field value is retrievable.
func Stored(v bool) Option { return func(s *Spec) { s.stored = v } }

// MultiValued marks the field as holding a list of values.
func MultiValued() Option { return func(s *Spec) { s.multiValued = true } }

// OmitNorms disables length normalization for the field.
func OmitNorms() Option { return func(s *Spec) { s.omitNorms = true } }

// Dynamic makes the wire name carry the kind suffix.
func Dynamic() Option { return func(s *Spec) { s.dynamic = true } }

// Boost sets an index-time boost.
func Boost(b float64) Option { return func(s *Spec) { s.boost = b } }

// CopyTo copies the field value into the given fields. With no arguments
// the value is copied into DefaultCopyDest.
func CopyTo(dest ...string) Option {
	return func(s *Spec) {
		if len(dest) == 0 {
			dest = []string{DefaultCopyDest}
		}
		s.copyTo = append([]string(nil), dest...)
	}
}

// New declares a field. Declarations are validated by Validate.
func New(name string, kind Kind, opts ...Option) Spec {
	s := Spec{name: name, kind: kind, indexed: true, stored: true}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// PrimaryKey declares the field holding the index-wide unique key.
func PrimaryKey(name string) Spec {
	s := New(name, String, Required())
	s.role = RolePrimaryKey
	return s
}

// Model declares the field holding the record type key.
func Model(name string) Spec {
	s := New(name, String, Required())
	s.role = RoleModel
	return s
}

// Site declares the field holding the configured site id.
func Site(name string) Spec {
	s := New(name, Integer, Required())
	s.role = RoleSite
	return s
}

// URL declares the field holding the record's canonical URL.
func URL(name string) Spec {
	s := New(name, String)
	s.role = RoleURL
	return s
}

// FullText declares a backend-populated catch-all text field. It is never
// transformed from the record; copy fields fill it at index time.
func FullText(name string) Spec {
	s := New(name, Text, MultiValued())
	s.role = RoleFullText
	return s
}

// Validate checks the declaration.
func (s Spec) Validate() error {
	if s.name == "" {
		return fmt.Errorf("field name is required: %w", domain.ErrInvalidSchema)
	}
	if strings.ContainsAny(s.name, " \t\n\"<>&") {
		return fmt.Errorf("field name %q contains invalid characters: %w", s.name, domain.ErrInvalidSchema)
	}
	if !s.kind.IsValid() {
		return fmt.Errorf("invalid field kind %q for %q: %w", s.kind, s.name, domain.ErrInvalidSchema)
	}
	if s.boost < 0 {
		return fmt.Errorf("negative boost for %q: %w", s.name, domain.ErrInvalidSchema)
	}
	return nil
}

// Name returns the declared name.
func (s Spec) Name() string { return s.name }

// Kind returns the value kind.
func (s Spec) Kind() Kind { return s.kind }

// Role returns the field role.
func (s Spec) Role() Role { return s.role }

// WireName is the name used in index documents: name, or name_suffix when dynamic.
func (s Spec) WireName() string {
	if s.dynamic {
		return s.name + "_" + s.kind.Suffix()
	}
	return s.name
}

// IsRequired reports whether the field is required.
func (s Spec) IsRequired() bool { return s.required }

// IsIndexed reports whether the field is indexed.
func (s Spec) IsIndexed() bool { return s.indexed }

// IsStored reports whether the field is stored.
func (s Spec) IsStored() bool { return s.stored }

// IsMultiValued reports whether the field holds a list.
func (s Spec) IsMultiValued() bool { return s.multiValued }

// IsDynamic reports whether the wire name carries the kind suffix.
func (s Spec) IsDynamic() bool { return s.dynamic }

// OmitsNorms reports whether norms are omitted.
func (s Spec) OmitsNorms() bool { return s.omitNorms }

// CopyDest returns the copy destinations in declaration order.
func (s Spec) CopyDest() []string { return append([]string(nil), s.copyTo...) }

// BoostValue returns the index-time boost, 0 when unset.
func (s Spec) BoostValue() float64 { return s.boost }

// WithName returns a copy of the declaration renamed.
func (s Spec) WithName(name string) Spec {
	s.name = name
	s.copyTo = append([]string(nil), s.copyTo...)
	return s
}

// Instance creates an empty per-document field.
func (s Spec) Instance() *Field {
	s.copyTo = append([]string(nil), s.copyTo...)
	return &Field{spec: s}
}

// Field is one field of one document: a declaration plus its current value.
type Field struct {
	spec      Spec
	value     any
	highlight string
}

// Spec returns the field declaration.
func (f *Field) Spec() Spec { return f.spec }

// Name returns the declared name.
func (f *Field) Name() string { return f.spec.name }

// WireName returns the name used in index documents.
func (f *Field) WireName() string { return f.spec.WireName() }

// Value returns the native value: nil, a scalar, or []any for multi-valued fields.
func (f *Field) Value() any { return f.value }

// Highlight returns the highlighted snippet attached on the read path.
func (f *Field) Highlight() string { return f.highlight }

// SetHighlight attaches a highlighted snippet.
func (f *Field) SetHighlight(h string) { f.highlight = h }

// Set coerces v to the field kind and stores it. On error the value is nil.
func (f *Field) Set(v any) error {
	var (
		nv  any
		err error
	)
	if f.spec.multiValued {
		nv, err = coerceMulti(f.spec.kind, v)
	} else {
		nv, err = coerce(f.spec.kind, v)
	}
	if err != nil {
		f.value = nil
		return fmt.Errorf("field %q: %w", f.spec.name, err)
	}
	f.value = nv
	return nil
}

// Transform sets the value from the record attribute of the same name.
// A missing attribute leaves the value nil.
func (f *Field) Transform(rec domain.Record) error {
	v, ok := rec.Attr(f.spec.name)
	if !ok {
		f.value = nil
		return nil
	}
	return f.Set(v)
}

// Clean converts a raw backend value into the native type. nil is kept as nil.
func (f *Field) Clean(raw any) error {
	return f.Set(raw)
}

// IsEmpty reports whether the field renders nothing.
func (f *Field) IsEmpty() bool {
	return len(f.Elements()) == 0
}

// Element is one serialized value of a field.
type Element struct {
	Name  string
	Boost float64
	Value string
}

// Elements returns one element per scalar value. Empty values are omitted.
func (f *Field) Elements() []Element {
	var values []any
	if list, ok := f.value.([]any); ok {
		values = list
	} else if f.value != nil {
		values = []any{f.value}
	}

	out := make([]Element, 0, len(values))
	for _, v := range values {
		s := format(f.spec.kind, v)
		if s == "" {
			continue
		}
		out = append(out, Element{Name: f.WireName(), Boost: f.spec.boost, Value: s})
	}
	return out
}

// Render returns the XML elements of the field.
func (f *Field) Render() string {
	var b strings.Builder
	for _, e := range f.Elements() {
		WriteElement(&b, e)
	}
	return b.String()
}

// FormatBoost renders a boost attribute value.
func FormatBoost(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}
