package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/facet"
	"github.com/kailas-cloud/solango/internal/domain/field"
	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/registry"
)

// DocumentConfig declares the index document of one record type. Every
// document also carries the standard id, model, site_id, url and text fields.
type DocumentConfig struct {
	Fields []FieldConfig `yaml:"fields"`
	// IndexableIf names a record attribute that must be truthy for the
	// record to be indexed. Empty means every record is indexed.
	IndexableIf string `yaml:"indexable_if"`
	// BoostField names a numeric record attribute used as document boost.
	BoostField string `yaml:"boost_field"`
}

// FieldConfig declares one document field.
type FieldConfig struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Indexed     *bool    `yaml:"indexed"`
	Stored      *bool    `yaml:"stored"`
	MultiValued bool     `yaml:"multi_valued"`
	OmitNorms   bool     `yaml:"omit_norms"`
	Dynamic     bool     `yaml:"dynamic"`
	Copy        bool     `yaml:"copy"`
	CopyTo      []string `yaml:"copy_to"`
	Boost       float64  `yaml:"boost"`
}

func (d DocumentConfig) validate() error {
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d].name is required", i)
		}
		if !field.Kind(f.Type).IsValid() {
			return fmt.Errorf("fields[%d].type %q is not a known field type", i, f.Type)
		}
	}
	return nil
}

// Spec converts the declaration into a field spec.
func (f FieldConfig) Spec() field.Spec {
	var opts []field.Option
	if f.Required {
		opts = append(opts, field.Required())
	}
	if f.Indexed != nil {
		opts = append(opts, field.Indexed(*f.Indexed))
	}
	if f.Stored != nil {
		opts = append(opts, field.Stored(*f.Stored))
	}
	if f.MultiValued {
		opts = append(opts, field.MultiValued())
	}
	if f.OmitNorms {
		opts = append(opts, field.OmitNorms())
	}
	if f.Dynamic {
		opts = append(opts, field.Dynamic())
	}
	if f.Copy || len(f.CopyTo) > 0 {
		opts = append(opts, field.CopyTo(f.CopyTo...))
	}
	if f.Boost != 0 {
		opts = append(opts, field.Boost(f.Boost))
	}
	return field.New(f.Name, field.Kind(f.Type), opts...)
}

// Schema builds the document schema.
func (d DocumentConfig) Schema(idx IndexConfig) (*document.Schema, error) {
	b := document.Standard(document.WithSeparator(idx.Separator), document.WithSiteID(idx.SiteID))
	for _, f := range d.Fields {
		b.Field(f.Spec())
	}
	if attr := d.IndexableIf; attr != "" {
		b.Indexable(func(rec domain.Record) bool {
			v, ok := rec.Attr(attr)
			return ok && truthy(v)
		})
	}
	if attr := d.BoostField; attr != "" {
		b.Boost(func(rec domain.Record) float64 {
			v, _ := rec.Attr(attr)
			switch n := v.(type) {
			case float64:
				return n
			case int:
				return float64(n)
			case int64:
				return float64(n)
			}
			return 0
		})
	}
	return b.Build()
}

// Registry builds a schema registry from the declared documents.
func (c *Config) Registry() (*registry.Registry, error) {
	reg := registry.New()
	keys := make([]string, 0, len(c.Documents))
	for k := range c.Documents {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, typeKey := range keys {
		s, err := c.Documents[typeKey].Schema(c.Index)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", typeKey, err)
		}
		if err := reg.Register(typeKey, s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Query builds the default search query from search.params.
func (s SearchConfig) Query() (*query.Query, error) {
	q := query.New()
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if err := q.Add(k, s.Params[k]); err != nil {
			return nil, fmt.Errorf("search.params.%s: %w", k, err)
		}
	}
	if s.DefaultOperator != "" && !q.Has("q.op") {
		if err := q.Set("q.op", strings.ToUpper(s.DefaultOperator)); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// FacetOptions returns the facet label and tree settings.
func (c *Config) FacetOptions() facet.Options {
	return facet.Options{
		PathSeparator:   c.Index.FacetSeparator,
		SearchSeparator: c.Index.Separator,
		DateFormats:     c.Search.DateFormats,
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(x) {
		case "true", "1", "yes", "on":
			return true
		}
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return false
}
