package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/kailas-cloud/solango/internal/domain/document"
	"github.com/kailas-cloud/solango/internal/domain/facet"
)

// Lookup resolves a type key to its document schema.
type Lookup func(typeKey string) (*document.Schema, error)

// DefaultRows is the page size assumed when the response does not echo rows.
const DefaultRows = 10

// unmerged facet fields are listed flat.
var unmerged = map[string]bool{"model": true, "id": true}

// Header is the response header of a select request.
type Header struct {
	Status int                 `json:"status"`
	QTime  int                 `json:"qtime"`
	Params map[string][]string `json:"params,omitempty"`
}

// Select is a parsed select response.
type Select struct {
	URL       string                         `json:"-"`
	Header    Header                         `json:"header"`
	Count     int64                          `json:"count"`
	Start     int64                          `json:"start"`
	Rows      int64                          `json:"rows"`
	Documents []*document.Document           `json:"-"`
	Facets    []*facet.Facet                 `json:"facets"`
	Highlight map[string]map[string][]string `json:"highlighting,omitempty"`
	DateGap   string                         `json:"date_gap,omitempty"`
	// Unresolved holds raw documents whose model has no registered schema.
	Unresolved []map[string]any `json:"-"`
}

// Facet returns the facet with the given name.
func (s *Select) Facet(name string) (*facet.Facet, bool) {
	for _, f := range s.Facets {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

type selectBody struct {
	ResponseHeader *struct {
		Status int    `json:"status"`
		QTime  int    `json:"QTime"`
		Params object `json:"params"`
	} `json:"responseHeader"`
	Response *struct {
		NumFound int64             `json:"numFound"`
		Start    int64             `json:"start"`
		Docs     *[]map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts *struct {
		Queries object `json:"facet_queries"`
		Fields  object `json:"facet_fields"`
		Dates   object `json:"facet_dates"`
	} `json:"facet_counts"`
	Highlighting map[string]map[string][]string `json:"highlighting"`
}

// ParseSelect decodes a JSON select response. Documents are cleaned
// through the schema registered for their model field.
func ParseSelect(url string, body []byte, lookup Lookup, opts facet.Options) (*Select, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw selectBody
	if err := dec.Decode(&raw); err != nil {
		return nil, parseError(url, err)
	}
	if raw.ResponseHeader == nil {
		return nil, parseError(url, errors.New("missing responseHeader"))
	}
	if raw.Response == nil {
		return nil, parseError(url, errors.New("missing response"))
	}
	if raw.Response.Docs == nil {
		return nil, parseError(url, errors.New("missing docs"))
	}

	s := &Select{
		URL: url,
		Header: Header{
			Status: raw.ResponseHeader.Status,
			QTime:  raw.ResponseHeader.QTime,
			Params: make(map[string][]string, len(raw.ResponseHeader.Params)),
		},
		Count: raw.Response.NumFound,
		Start: raw.Response.Start,
		Rows:  DefaultRows,
	}
	for _, m := range raw.ResponseHeader.Params {
		s.Header.Params[m.Key] = stringsOf(m.Value)
	}
	if v := s.param("rows"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.Rows = n
		}
	}

	for _, d := range *raw.Response.Docs {
		typeKey, _ := d["model"].(string)
		schema, err := lookup(typeKey)
		if err != nil {
			s.Unresolved = append(s.Unresolved, d)
			continue
		}
		s.Documents = append(s.Documents, document.FromResponse(schema, d))
	}

	if fc := raw.FacetCounts; fc != nil {
		s.parseFacetFields(fc.Fields, opts)
		s.parseFacetQueries(fc.Queries, opts)
		s.parseFacetDates(fc.Dates, opts)
	}

	s.Highlight = raw.Highlighting
	s.attachHighlights()
	return s, nil
}

func (s *Select) param(name string) string {
	if v := s.Header.Params[name]; len(v) > 0 {
		return v[len(v)-1]
	}
	return ""
}

func (s *Select) parseFacetFields(fields object, opts facet.Options) {
	for _, m := range fields {
		var flat []json.RawMessage
		if err := json.Unmarshal(m.Value, &flat); err != nil {
			continue
		}
		pairs := make([]facet.Pair, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			var value string
			if err := json.Unmarshal(flat[i], &value); err != nil {
				continue
			}
			pairs = append(pairs, facet.Pair{Value: value, Count: count(flat[i+1])})
		}
		s.Facets = append(s.Facets, facet.New(m.Key, pairs, !unmerged[m.Key], opts))
	}
}

func (s *Select) parseFacetQueries(queries object, opts facet.Options) {
	var names []string
	grouped := make(map[string][]facet.Pair)
	for _, m := range queries {
		name, value, ok := strings.Cut(m.Key, ":")
		if !ok {
			continue
		}
		if _, seen := grouped[name]; !seen {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], facet.Pair{Value: value, Count: count(m.Value)})
	}
	for _, name := range names {
		s.Facets = append(s.Facets, facet.New(name, grouped[name], false, opts))
	}
}

func (s *Select) parseFacetDates(dates object, opts facet.Options) {
	global := s.param("facet.date.gap")
	if global == "" {
		global = facet.DefaultGap
	}
	s.DateGap = global

	for _, m := range dates {
		var buckets object
		if err := json.Unmarshal(m.Value, &buckets); err != nil {
			continue
		}
		gap := s.param("f." + m.Key + ".facet.date.gap")
		pairs := make([]facet.Pair, 0, len(buckets))
		for _, b := range buckets {
			if b.Key == "gap" {
				if g := stringsOf(b.Value); len(g) == 1 && gap == "" {
					gap = g[0]
				}
				continue
			}
			if facet.IsDateMeta(b.Key) {
				continue
			}
			pairs = append(pairs, facet.Pair{Value: b.Key, Count: count(b.Value)})
		}
		if gap == "" {
			gap = global
		}
		s.Facets = append(s.Facets, facet.NewDate(m.Key, pairs, gap, opts))
	}
}

func (s *Select) attachHighlights() {
	if len(s.Highlight) == 0 {
		return
	}
	for _, d := range s.Documents {
		byField, ok := s.Highlight[d.PrimaryKey()]
		if !ok {
			continue
		}
		var all []string
		for _, f := range d.Fields() {
			snippets, ok := byField[f.WireName()]
			if !ok {
				continue
			}
			joined := strings.Join(snippets, " ")
			f.SetHighlight(joined)
			all = append(all, joined)
		}
		d.SetHighlight(strings.Join(all, " "))
	}
}

func count(raw json.RawMessage) int64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return int64(f)
}
