package document

import (
	"fmt"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/field"
)

// TransformFunc extracts a field value from a record.
type TransformFunc func(rec domain.Record) (any, error)

// CleanFunc converts a raw backend value into a native field value.
type CleanFunc func(raw any) (any, error)

// BoostFunc computes a per-document boost, 0 for none.
type BoostFunc func(rec domain.Record) float64

// IndexableFunc decides whether a record belongs in the index.
type IndexableFunc func(rec domain.Record) bool

// Schema is an immutable, validated document schema.
type Schema struct {
	specs      []field.Spec
	index      map[string]int
	pk         int
	transforms []TransformFunc // nil entries are never transformed
	cleaners   []CleanFunc     // nil entries use the field's own clean
	overrides  map[string]TransformFunc
	boost      BoostFunc
	indexable  IndexableFunc
	separator  string
	siteID     int
}

// Fields returns the field declarations in document order.
func (s *Schema) Fields() []field.Spec { return append([]field.Spec(nil), s.specs...) }

// Field returns the declaration of the named field.
func (s *Schema) Field(name string) (field.Spec, bool) {
	i, ok := s.index[name]
	if !ok {
		return field.Spec{}, false
	}
	return s.specs[i], true
}

// PrimaryKey returns the primary-key field declaration.
func (s *Schema) PrimaryKey() field.Spec { return s.specs[s.pk] }

// Separator returns the type key / id separator.
func (s *Schema) Separator() string { return s.separator }

// SiteID returns the site id written into site fields.
func (s *Schema) SiteID() int { return s.siteID }

// Indexable reports whether rec should be added (true) or deleted (false).
func (s *Schema) Indexable(rec domain.Record) bool {
	if s.indexable == nil {
		return true
	}
	return s.indexable(rec)
}

// Key builds the primary key of a record of the given type.
func (s *Schema) Key(typeKey, id string) string {
	return domain.MakeKey(typeKey, id, s.separator)
}

// Option configures a Builder.
type Option func(*Builder)

// WithSeparator sets the type key / id separator. Defaults to domain.DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(b *Builder) {
		if sep != "" {
			b.separator = sep
		}
	}
}

// WithSiteID sets the value of site fields.
func WithSiteID(id int) Option {
	return func(b *Builder) { b.siteID = id }
}

// Builder collects field declarations and per-field overrides.
type Builder struct {
	base       []field.Spec
	specs      []field.Spec
	transforms map[string]TransformFunc
	cleaners   map[string]CleanFunc
	boost      BoostFunc
	indexable  IndexableFunc
	separator  string
	siteID     int
}

// NewBuilder creates an empty schema builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		transforms: make(map[string]TransformFunc),
		cleaners:   make(map[string]CleanFunc),
		separator:  domain.DefaultSeparator,
		siteID:     1,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Standard returns a builder preloaded with the base fields every document
// carries: id, model, site_id, url and text.
func Standard(opts ...Option) *Builder {
	b := NewBuilder(opts...)
	b.base = []field.Spec{
		field.PrimaryKey("id"),
		field.Model("model"),
		field.Site("site_id"),
		field.URL("url"),
		field.FullText("text"),
	}
	return b
}

// Extend prepends the fields and overrides of base. Declarations added to
// the builder replace base fields of the same name in place.
func (b *Builder) Extend(base *Schema) *Builder {
	b.base = append(b.base, base.specs...)
	for name, fn := range base.overrides {
		if _, ok := b.transforms[name]; !ok {
			b.transforms[name] = fn
		}
	}
	for i, spec := range base.specs {
		if fn := base.cleaners[i]; fn != nil {
			if _, ok := b.cleaners[spec.Name()]; !ok {
				b.cleaners[spec.Name()] = fn
			}
		}
	}
	if b.boost == nil {
		b.boost = base.boost
	}
	if b.indexable == nil {
		b.indexable = base.indexable
	}
	return b
}

// Field declares fields in order.
func (b *Builder) Field(specs ...field.Spec) *Builder {
	b.specs = append(b.specs, specs...)
	return b
}

// Transform overrides how the named field is extracted from records.
func (b *Builder) Transform(name string, fn TransformFunc) *Builder {
	b.transforms[name] = fn
	return b
}

// Clean overrides how the named field is cleaned from responses.
func (b *Builder) Clean(name string, fn CleanFunc) *Builder {
	b.cleaners[name] = fn
	return b
}

// Boost sets the per-document boost hook.
func (b *Builder) Boost(fn BoostFunc) *Builder {
	b.boost = fn
	return b
}

// Indexable sets the indexability policy hook.
func (b *Builder) Indexable(fn IndexableFunc) *Builder {
	b.indexable = fn
	return b
}

// Build validates the declarations and resolves the transform table.
func (b *Builder) Build() (*Schema, error) {
	specs, err := b.merge()
	if err != nil {
		return nil, err
	}

	s := &Schema{
		specs:      specs,
		index:      make(map[string]int, len(specs)),
		pk:         -1,
		transforms: make([]TransformFunc, len(specs)),
		cleaners:   make([]CleanFunc, len(specs)),
		overrides:  make(map[string]TransformFunc, len(b.transforms)),
		boost:      b.boost,
		indexable:  b.indexable,
		separator:  b.separator,
		siteID:     b.siteID,
	}

	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		s.index[spec.Name()] = i
		if spec.Role() == field.RolePrimaryKey {
			if s.pk >= 0 {
				return nil, fmt.Errorf("fields %q and %q are both primary keys: %w",
					specs[s.pk].Name(), spec.Name(), domain.ErrInvalidSchema)
			}
			s.pk = i
		}
		s.transforms[i] = b.transformFor(spec)
		s.cleaners[i] = b.cleaners[spec.Name()]
	}
	if s.pk < 0 {
		return nil, domain.ErrNoPrimaryKey
	}

	for name, fn := range b.transforms {
		if _, ok := s.index[name]; !ok {
			return nil, fmt.Errorf("transform for undeclared field %q: %w", name, domain.ErrInvalidSchema)
		}
		s.overrides[name] = fn
	}
	for name := range b.cleaners {
		if _, ok := s.index[name]; !ok {
			return nil, fmt.Errorf("cleaner for undeclared field %q: %w", name, domain.ErrInvalidSchema)
		}
	}
	return s, nil
}

// MustBuild is like Build but panics on error. For package-level schemas.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) merge() ([]field.Spec, error) {
	out := make([]field.Spec, 0, len(b.base)+len(b.specs))
	pos := make(map[string]int, len(b.base)+len(b.specs))
	for _, spec := range b.base {
		if i, ok := pos[spec.Name()]; ok {
			out[i] = spec
			continue
		}
		pos[spec.Name()] = len(out)
		out = append(out, spec)
	}

	declared := make(map[string]bool, len(b.specs))
	for _, spec := range b.specs {
		if declared[spec.Name()] {
			return nil, fmt.Errorf("duplicate field %q: %w", spec.Name(), domain.ErrInvalidSchema)
		}
		declared[spec.Name()] = true
		if i, ok := pos[spec.Name()]; ok {
			out[i] = spec
			continue
		}
		pos[spec.Name()] = len(out)
		out = append(out, spec)
	}
	return out, nil
}

func (b *Builder) transformFor(spec field.Spec) TransformFunc {
	if fn, ok := b.transforms[spec.Name()]; ok {
		return fn
	}
	name := spec.Name()
	switch spec.Role() {
	case field.RolePrimaryKey:
		sep := b.separator
		return func(rec domain.Record) (any, error) {
			return domain.MakeKey(rec.TypeKey(), rec.RecordID(), sep), nil
		}
	case field.RoleModel:
		return func(rec domain.Record) (any, error) { return rec.TypeKey(), nil }
	case field.RoleSite:
		site := b.siteID
		return func(domain.Record) (any, error) { return site, nil }
	case field.RoleURL:
		return func(rec domain.Record) (any, error) {
			if u, ok := rec.(domain.URLer); ok {
				return u.AbsoluteURL(), nil
			}
			return "", nil
		}
	case field.RoleFullText:
		return nil
	default:
		return func(rec domain.Record) (any, error) {
			v, _ := rec.Attr(name)
			return v, nil
		}
	}
}
