package query

import (
	"net/url"
	"slices"
	"strings"
)

// Kind defines how a parameter accumulates values.
type Kind int

// Parameter kinds.
const (
	// Single keeps the last value written.
	Single Kind = iota
	// Multi appends every value.
	Multi
	// Unique keeps distinct values in insertion order.
	Unique
	// Delimited is Unique serialized as one comma-joined value.
	Delimited
	// Clause appends query clauses joined with AND.
	Clause
)

const clauseOperator = " AND "

type entry struct {
	field string // per-field override target, empty for the global value
	value string
}

type param struct {
	name     string // wire name, e.g. "facet.limit"
	kind     Kind
	perField bool
	entries  []entry
}

func (p *param) clone() *param {
	c := *p
	c.entries = slices.Clone(p.entries)
	return &c
}

func (p *param) empty() bool { return len(p.entries) == 0 }

func (p *param) add(field string, values []string) {
	for _, v := range values {
		e := entry{field: field, value: v}
		switch p.kind {
		case Single:
			p.entries = []entry{e}
		case Unique, Delimited:
			if !slices.Contains(p.entries, e) {
				p.entries = append(p.entries, e)
			}
		default:
			p.entries = append(p.entries, e)
		}
	}
}

func (p *param) set(field string, values []string) {
	p.entries = p.entries[:0:0]
	p.add(field, values)
}

func (p *param) values() []string {
	out := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		if e.field == "" {
			out = append(out, e.value)
		}
	}
	return out
}

func (p *param) fieldValues(field string) []string {
	var out []string
	for _, e := range p.entries {
		if e.field == field {
			out = append(out, e.value)
		}
	}
	return out
}

// pairs returns the key/value pairs the parameter serializes to.
func (p *param) pairs() [][2]string {
	if p.empty() {
		return nil
	}
	switch p.kind {
	case Delimited:
		return [][2]string{{p.name, strings.Join(p.values(), ",")}}
	case Clause:
		return [][2]string{{p.name, strings.Join(p.values(), clauseOperator)}}
	}

	out := make([][2]string, 0, len(p.entries))
	for _, e := range p.entries {
		name := p.name
		if e.field != "" {
			name = "f." + e.field + "." + p.name
		}
		out = append(out, [2]string{name, e.value})
	}
	return out
}

func encodePairs(b *strings.Builder, pairs [][2]string) {
	for _, kv := range pairs {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
}

type paramDef struct {
	name     string
	kind     Kind
	perField bool
}

func buildParams(prefix string, defs []paramDef) ([]*param, map[string]*param) {
	list := make([]*param, len(defs))
	index := make(map[string]*param, len(defs))
	for i, d := range defs {
		p := &param{name: prefix + d.name, kind: d.kind, perField: d.perField}
		list[i] = p
		index[d.name] = p
	}
	return list, index
}

var mainParams = []paramDef{
	{name: "q", kind: Clause},
	{name: "sort", kind: Unique},
	{name: "start", kind: Single},
	{name: "rows", kind: Single},
	{name: "fq", kind: Unique},
	{name: "fl", kind: Delimited},
	{name: "debugQuery", kind: Single},
	{name: "explainOther", kind: Single},
	{name: "defType", kind: Single},
	{name: "timeAllowed", kind: Single},
	{name: "omitHeader", kind: Single},
	{name: "wt", kind: Single},
	{name: "q.alt", kind: Clause},
	{name: "qf", kind: Unique},
	{name: "mm", kind: Single},
	{name: "pf", kind: Unique},
	{name: "ps", kind: Single},
	{name: "tie", kind: Single},
	{name: "bq", kind: Clause},
	{name: "bf", kind: Unique},
	{name: "qt", kind: Single},
	{name: "df", kind: Single},
	{name: "q.op", kind: Single},
}

var facetParams = []paramDef{
	{name: "query", kind: Unique},
	{name: "field", kind: Unique},
	{name: "prefix", kind: Unique, perField: true},
	{name: "sort", kind: Unique, perField: true},
	{name: "limit", kind: Unique, perField: true},
	{name: "offset", kind: Unique, perField: true},
	{name: "mincount", kind: Unique, perField: true},
	{name: "missing", kind: Unique, perField: true},
	{name: "method", kind: Unique, perField: true},
	{name: "enum.cache.minDf", kind: Unique, perField: true},
	{name: "date", kind: Unique},
	{name: "date.start", kind: Unique, perField: true},
	{name: "date.end", kind: Unique, perField: true},
	{name: "date.gap", kind: Unique, perField: true},
	{name: "date.hardend", kind: Unique, perField: true},
	{name: "date.other", kind: Unique, perField: true},
}

var highlightParams = []paramDef{
	{name: "fl", kind: Delimited},
	{name: "snippets", kind: Unique, perField: true},
	{name: "fragsize", kind: Unique, perField: true},
	{name: "mergeContiguous", kind: Unique, perField: true},
	{name: "requireFieldMatch", kind: Single},
	{name: "maxAnalyzedChars", kind: Single},
	{name: "alternateField", kind: Unique, perField: true},
	{name: "formatter", kind: Single},
	{name: "simple.pre", kind: Single},
	{name: "simple.post", kind: Single},
	{name: "fragmenter", kind: Unique, perField: true},
	{name: "usePhraseHighlighter", kind: Single},
	{name: "highlightMultiTerm", kind: Single},
	{name: "regex.slop", kind: Single},
	{name: "regex.pattern", kind: Single},
	{name: "regex.maxAnalyzedChars", kind: Single},
}
