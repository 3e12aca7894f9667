package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/solango/internal/domain"
	"github.com/kailas-cloud/solango/internal/domain/field"
)

// FetchFunc loads one record by type key and id.
// It returns domain.ErrRecordNotFound when the record no longer exists.
type FetchFunc func(typeKey, id string) (domain.Record, error)

// Document is the index representation of one record.
// Write-path documents own a record, read-path documents own a source map.
type Document struct {
	schema    *Schema
	fields    []*field.Field
	pk        *field.Field
	record    domain.Record
	source    map[string]any
	typeKey   string
	boost     float64
	highlight string
	deleted   bool

	transformed bool
	cleaned     bool
	errs        []error
}

func newDocument(schema *Schema) *Document {
	specs := schema.specs
	d := &Document{schema: schema, fields: make([]*field.Field, len(specs))}
	for i, spec := range specs {
		d.fields[i] = spec.Instance()
	}
	d.pk = d.fields[schema.pk]
	return d
}

// FromRecord creates a write-path document. The primary key is transformed immediately.
func FromRecord(schema *Schema, rec domain.Record) *Document {
	d := newDocument(schema)
	d.record = rec
	d.typeKey = rec.TypeKey()
	d.transformField(schema.pk)
	if schema.boost != nil {
		d.boost = schema.boost(rec)
	}
	return d
}

// FromResponse creates a read-path document from one backend result and cleans it.
func FromResponse(schema *Schema, raw map[string]any) *Document {
	d := newDocument(schema)
	d.source = raw
	d.Clean()
	for _, f := range d.fields {
		if f.Spec().Role() == field.RoleModel {
			if s, ok := f.Value().(string); ok {
				d.typeKey = s
			}
			break
		}
	}
	return d
}

// FromKey creates a document for the delete path. When fetch reports the
// record as gone the document is marked deleted and carries only its key.
func FromKey(schema *Schema, typeKey, id string, fetch FetchFunc) (*Document, error) {
	rec, err := fetch(typeKey, id)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		d := newDocument(schema)
		d.typeKey = typeKey
		d.deleted = true
		_ = d.pk.Set(schema.Key(typeKey, id))
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("fetch %s: %w", schema.Key(typeKey, id), err)
	}
	return FromRecord(schema, rec), nil
}

// Schema returns the document schema.
func (d *Document) Schema() *Schema { return d.schema }

// Record returns the source record, nil on the read and delete paths.
func (d *Document) Record() domain.Record { return d.record }

// Source returns the raw backend map, nil on the write path.
func (d *Document) Source() map[string]any { return d.source }

// TypeKey returns the record type key.
func (d *Document) TypeKey() string { return d.typeKey }

// IsDeleted reports whether the source record no longer exists.
func (d *Document) IsDeleted() bool { return d.deleted }

// PrimaryKey returns the rendered primary key.
func (d *Document) PrimaryKey() string {
	return field.FormatValue(d.pk.Spec().Kind(), d.pk.Value())
}

// RecordID returns the record id part of the primary key.
func (d *Document) RecordID() string {
	return domain.SplitKey(d.PrimaryKey(), d.schema.separator)
}

// Boost returns the document boost, 0 for none.
func (d *Document) Boost() float64 { return d.boost }

// Highlight returns the document-level highlight snippet.
func (d *Document) Highlight() string { return d.highlight }

// SetHighlight attaches a document-level highlight snippet.
func (d *Document) SetHighlight(h string) { d.highlight = h }

// Fields returns the document fields in schema order.
func (d *Document) Fields() []*field.Field { return d.fields }

// Field returns the named field.
func (d *Document) Field(name string) (*field.Field, bool) {
	i, ok := d.schema.index[name]
	if !ok {
		return nil, false
	}
	return d.fields[i], true
}

// Get returns the value of the named field, nil when absent.
func (d *Document) Get(name string) any {
	if f, ok := d.Field(name); ok {
		return f.Value()
	}
	return nil
}

// Values returns field values keyed by field name, skipping nil values.
func (d *Document) Values() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		if v := f.Value(); v != nil {
			out[f.Name()] = v
		}
	}
	return out
}

// Err returns the validation problems recorded so far, or nil.
func (d *Document) Err() error { return errors.Join(d.errs...) }

// Transform populates every field from the source record. Only the first call has effect.
func (d *Document) Transform() {
	if d.transformed || d.record == nil {
		return
	}
	d.transformed = true
	for i := range d.fields {
		if i == d.schema.pk {
			continue
		}
		d.transformField(i)
	}
	for _, f := range d.fields {
		if f.Spec().IsRequired() && f.IsEmpty() {
			d.errs = append(d.errs, fmt.Errorf("%s: %w", f.Name(), domain.ErrMissingRequired))
		}
	}
}

func (d *Document) transformField(i int) {
	fn := d.schema.transforms[i]
	if fn == nil {
		return
	}
	f := d.fields[i]
	v, err := fn(d.record)
	if err == nil {
		err = f.Set(v)
	}
	if err != nil {
		_ = f.Set(nil)
		d.errs = append(d.errs, fmt.Errorf("transform %s: %w", f.Name(), err))
	}
}

// Clean converts the source map into native values. Fields absent from
// the source are set to nil. Only the first call has effect.
func (d *Document) Clean() {
	if d.cleaned || d.source == nil {
		return
	}
	d.cleaned = true
	for i, f := range d.fields {
		raw, ok := d.source[f.WireName()]
		if !ok {
			_ = f.Set(nil)
			continue
		}
		var err error
		if fn := d.schema.cleaners[i]; fn != nil {
			var v any
			if v, err = fn(raw); err == nil {
				err = f.Set(v)
			}
		} else {
			err = f.Clean(raw)
		}
		if err != nil {
			d.errs = append(d.errs, fmt.Errorf("clean %s: %w", f.Name(), err))
		}
	}
}

// AddFragment renders the <doc> element of an add request.
func (d *Document) AddFragment() string {
	d.Transform()

	var b strings.Builder
	b.WriteString("<doc")
	if d.boost > 0 {
		b.WriteString(` boost="`)
		b.WriteString(field.FormatBoost(d.boost))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	for _, f := range d.fields {
		b.WriteString(f.Render())
	}
	b.WriteString("</doc>")
	return b.String()
}

// DeleteFragment renders the <id> element of a delete request.
func (d *Document) DeleteFragment() string {
	return "<id>" + field.Escape(d.PrimaryKey()) + "</id>"
}
