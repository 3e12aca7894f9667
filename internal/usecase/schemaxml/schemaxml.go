// Package schemaxml renders the backend schema.xml for registered document schemas.
package schemaxml

import (
	_ "embed"
	"fmt"
	"io"
	"slices"
	"text/template"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/field"
)

// Defaults for the rendered schema.
const (
	DefaultName            = "solango"
	DefaultOperator        = "OR"
	DefaultSearchFieldName = field.DefaultCopyDest
)

//go:embed schema.xml.tmpl
var schemaTemplate string

var tmpl = template.Must(template.New("schema.xml").Parse(schemaTemplate))

// SchemaSource lists the registered schemas.
type SchemaSource interface {
	Keys() []string
	Lookup(typeKey string) (*document.Schema, error)
}

// Field is one static field declaration.
type Field struct {
	Name        string
	Type        string
	Indexed     bool
	Stored      bool
	OmitNorms   bool
	Required    bool
	MultiValued bool
}

// DynamicField is a suffix pattern for dynamically named fields.
type DynamicField struct {
	Suffix string
	Type   string
}

// Copy is one copyField directive.
type Copy struct {
	Source string
	Dest   string
}

// Schema is the template input.
type Schema struct {
	Name            string
	Fields          []Field
	Dynamic         []DynamicField
	Copies          []Copy
	UniqueKey       string
	DefaultField    string
	DefaultOperator string
}

// Service builds schema.xml from a schema source.
type Service struct {
	src      SchemaSource
	name     string
	operator string
}

// New creates a schema renderer.
func New(src SchemaSource) *Service {
	return &Service{src: src, name: DefaultName, operator: DefaultOperator}
}

// WithDefaultOperator sets the query parser default operator (AND or OR).
func (s *Service) WithDefaultOperator(op string) *Service {
	if op != "" {
		s.operator = op
	}
	return s
}

// WithName sets the schema name attribute.
func (s *Service) WithName(name string) *Service {
	if name != "" {
		s.name = name
	}
	return s
}

// Build collects the union of fields across all schemas in type key order.
// A field declared twice with different kinds is an error.
func (s *Service) Build() (*Schema, error) {
	out := &Schema{
		Name:            s.name,
		DefaultField:    DefaultSearchFieldName,
		DefaultOperator: s.operator,
	}
	kinds := make(map[string]field.Kind)
	suffixes := make(map[string]bool)
	copies := make(map[Copy]bool)

	for _, key := range s.src.Keys() {
		schema, err := s.src.Lookup(key)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", key, err)
		}
		if out.UniqueKey == "" {
			out.UniqueKey = schema.PrimaryKey().Name()
		}

		for _, spec := range schema.Fields() {
			if spec.IsDynamic() {
				if sfx := spec.Kind().Suffix(); !suffixes[sfx] {
					suffixes[sfx] = true
					out.Dynamic = append(out.Dynamic, DynamicField{Suffix: sfx, Type: spec.Kind().BackendType()})
				}
			} else if k, ok := kinds[spec.Name()]; ok {
				if k != spec.Kind() {
					return nil, fmt.Errorf("field %q is %s in one schema and %s in %s: %w",
						spec.Name(), k, spec.Kind(), key, domain.ErrInvalidSchema)
				}
			} else {
				kinds[spec.Name()] = spec.Kind()
				out.Fields = append(out.Fields, Field{
					Name:        spec.Name(),
					Type:        spec.Kind().BackendType(),
					Indexed:     spec.IsIndexed(),
					Stored:      spec.IsStored(),
					OmitNorms:   spec.OmitsNorms(),
					Required:    spec.IsRequired(),
					MultiValued: spec.IsMultiValued(),
				})
			}

			for _, dest := range spec.CopyDest() {
				c := Copy{Source: spec.WireName(), Dest: dest}
				if !copies[c] {
					copies[c] = true
					out.Copies = append(out.Copies, c)
				}
			}
		}
	}

	if out.UniqueKey == "" {
		return nil, fmt.Errorf("no schemas registered: %w", domain.ErrNoPrimaryKey)
	}
	slices.SortFunc(out.Dynamic, func(a, b DynamicField) int {
		switch {
		case a.Suffix < b.Suffix:
			return -1
		case a.Suffix > b.Suffix:
			return 1
		}
		return 0
	})
	return out, nil
}

// Render writes schema.xml to w.
func (s *Service) Render(w io.Writer) error {
	schema, err := s.Build()
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, schema); err != nil {
		return fmt.Errorf("render schema.xml: %w", err)
	}
	return nil
}
