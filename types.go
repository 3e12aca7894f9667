package solango

import (
	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/facet"
	"github.com/kailas-cloud/solango/internal/domain/field"
	"github.com/kailas-cloud/solango/internal/domain/query"
	"github.com/kailas-cloud/solango/internal/domain/result"
	indexinguc "github.com/kailas-cloud/solango/internal/usecase/indexing"
	replayuc "github.com/kailas-cloud/solango/internal/usecase/replay"
)

type (
	// Record is an application object that can be indexed.
	Record = domain.Record
	// MapRecord is a Record backed by an attribute map.
	MapRecord = domain.MapRecord

	// Schema describes how records of one type become backend documents.
	Schema = document.Schema
	// SchemaBuilder assembles a Schema.
	SchemaBuilder = document.Builder
	// SchemaOption configures a SchemaBuilder.
	SchemaOption = document.Option
	// Document pairs a schema with a record or a select hit.
	Document = document.Document

	// Field is a declared document field.
	Field = field.Spec
	// FieldKind is the type of a document field.
	FieldKind = field.Kind
	// FieldOption configures a Field.
	FieldOption = field.Option

	// Query is a set of search parameters.
	Query = query.Query
	// SearchResult is a parsed select response.
	SearchResult = result.Select
	// Facet is one facet of a SearchResult.
	Facet = facet.Facet
	// FacetOptions controls facet label resolution.
	FacetOptions = facet.Options

	// IndexReport summarizes an indexing call.
	IndexReport = indexinguc.Report
	// ReplayReport summarizes a deferred queue drain.
	ReplayReport = replayuc.Report
	// Deferred is a failed write waiting for replay.
	Deferred = domdef.Record
)

// Field kinds.
const (
	String   = field.String
	Text     = field.Text
	Integer  = field.Integer
	Long     = field.Long
	Float    = field.Float
	Double   = field.Double
	Boolean  = field.Boolean
	Date     = field.Date
	DateTime = field.DateTime
)

// Errors callers can match with errors.Is.
var (
	ErrNotRegistered    = domain.ErrNotRegistered
	ErrUnavailable      = domain.ErrUnavailable
	ErrUnknownParam     = domain.ErrUnknownParam
	ErrInvalidSchema    = domain.ErrInvalidSchema
	ErrNoPrimaryKey     = domain.ErrNoPrimaryKey
	ErrRecordNotFound   = domain.ErrRecordNotFound
	ErrDrainInProgress  = domain.ErrDrainInProgress
	ErrDeferredNotFound = domain.ErrDeferredNotFound
)

// NewRecord creates a map-backed record.
func NewRecord(typeKey, id string, attrs map[string]any) *MapRecord {
	return domain.NewMapRecord(typeKey, id, attrs)
}

// StandardSchema starts a schema with the id, model, site_id, url and text fields.
func StandardSchema(opts ...SchemaOption) *SchemaBuilder { return document.Standard(opts...) }

// WithSeparator sets the separator joining type key and record id.
func WithSeparator(sep string) SchemaOption { return document.WithSeparator(sep) }

// WithSiteID sets the site id written to every document.
func WithSiteID(id int) SchemaOption { return document.WithSiteID(id) }

// NewField declares a field.
func NewField(name string, kind FieldKind, opts ...FieldOption) Field {
	return field.New(name, kind, opts...)
}

// Field options.
var (
	Required    = field.Required
	Indexed     = field.Indexed
	Stored      = field.Stored
	MultiValued = field.MultiValued
	OmitNorms   = field.OmitNorms
	Dynamic     = field.Dynamic
	Boost       = field.Boost
	CopyTo      = field.CopyTo
)

// NewQuery creates an empty query.
func NewQuery() *Query { return query.New() }

// TextQuery creates a free-text query.
func TextQuery(q string) *Query { return query.Text(q) }

// ParseQuery builds a query from a raw query string.
func ParseQuery(raw string) (*Query, error) { return query.Parse(raw) }
