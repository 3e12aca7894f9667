package query

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/kailas-cloud/solango/internal/domain"
)

const (
	facetFlag     = "facet"
	highlightFlag = "hl"
)

// DefaultWriter is the response writer requested from the backend.
const DefaultWriter = "json"

type group struct {
	flag   string
	params []*param
	index  map[string]*param
	forced bool
}

func newGroup(flag string, defs []paramDef) *group {
	list, index := buildParams(flag+".", defs)
	return &group{flag: flag, params: list, index: index}
}

func (g *group) clone() *group {
	c := &group{flag: g.flag, params: make([]*param, len(g.params)), index: make(map[string]*param, len(g.index)), forced: g.forced}
	for i, p := range g.params {
		cp := p.clone()
		c.params[i] = cp
		c.index[strings.TrimPrefix(cp.name, g.flag+".")] = cp
	}
	return c
}

func (g *group) enabled() bool {
	if g.forced {
		return true
	}
	for _, p := range g.params {
		if !p.empty() {
			return true
		}
	}
	return false
}

func (g *group) pairs() [][2]string {
	if !g.enabled() {
		return nil
	}
	out := [][2]string{{g.flag, "true"}}
	for _, p := range g.params {
		out = append(out, p.pairs()...)
	}
	return out
}

// Query is a set of declared search parameters with facet and highlight groups.
// The zero value is not usable; create queries with New.
type Query struct {
	params []*param
	index  map[string]*param
	facet  *group
	hl     *group
}

// New creates an empty query requesting JSON responses.
func New() *Query {
	list, index := buildParams("", mainParams)
	q := &Query{
		params: list,
		index:  index,
		facet:  newGroup(facetFlag, facetParams),
		hl:     newGroup(highlightFlag, highlightParams),
	}
	q.index["wt"].add("", []string{DefaultWriter})
	return q
}

// Text creates a query for a free-text search string.
func Text(s string) *Query {
	q := New()
	if s != "" {
		q.index["q"].add("", []string{s})
	}
	return q
}

// FromValues builds a query from decoded URL parameters. Keys are applied in
// sorted order so that the result does not depend on map iteration.
func FromValues(v url.Values) (*Query, error) {
	q := New()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := q.Add(k, v[k]); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Parse builds a query from a raw query string.
func Parse(raw string) (*Query, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return FromValues(v)
}

type target struct {
	grp   *group // nil for main parameters
	param *param // nil for group flags and free-text clauses
	field string
	name  string
}

func (q *Query) resolve(key string) (target, error) {
	var t target
	if strings.HasPrefix(key, "f.") {
		parts := strings.SplitN(key, ".", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return t, fmt.Errorf("malformed per-field key %q: %w", key, domain.ErrUnknownParam)
		}
		t.field, key = parts[1], parts[2]
	}
	t.name = key

	switch {
	case key == facetFlag || strings.HasPrefix(key, facetFlag+"."):
		t.grp = q.facet
	case key == highlightFlag || strings.HasPrefix(key, highlightFlag+"."):
		t.grp = q.hl
	}

	if t.grp != nil {
		if key == t.grp.flag {
			if t.field != "" {
				return t, fmt.Errorf("per-field %q: %w", key, domain.ErrUnknownParam)
			}
			return t, nil
		}
		p, ok := t.grp.index[strings.TrimPrefix(key, t.grp.flag+".")]
		if !ok {
			return t, fmt.Errorf("%q: %w", key, domain.ErrUnknownParam)
		}
		t.param = p
	} else if p, ok := q.index[key]; ok {
		t.param = p
	}

	if t.field != "" && (t.param == nil || !t.param.perField) {
		return t, fmt.Errorf("%q has no per-field form: %w", key, domain.ErrUnknownParam)
	}
	return t, nil
}

// Add adds value to the parameter named by key. Keys of the form
// f.<field>.<param> address per-field overrides. Keys outside the declared
// set are added to q as key:value clauses.
func (q *Query) Add(key string, value any) error {
	return q.apply(key, value, false)
}

// Set replaces the values of the parameter named by key.
func (q *Query) Set(key string, value any) error {
	return q.apply(key, value, true)
}

func (q *Query) apply(key string, value any, replace bool) error {
	t, err := q.resolve(key)
	if err != nil {
		return err
	}
	values := normalize(value)

	switch {
	case t.grp != nil && t.param == nil:
		t.grp.forced = truthy(values)
	case t.param == nil:
		clauses := make([]string, len(values))
		for i, v := range values {
			clauses[i] = t.name + ":" + v
		}
		q.index["q"].add("", clauses)
	case replace:
		t.param.set(t.field, values)
	default:
		t.param.add(t.field, values)
	}
	return nil
}

// Merge adds every parameter value of other into q. Unique parameters take
// the union, single parameters take the value from other.
func (q *Query) Merge(other *Query) {
	if other == nil {
		return
	}
	mergeParams(q.params, other.params)
	mergeParams(q.facet.params, other.facet.params)
	mergeParams(q.hl.params, other.hl.params)
	q.facet.forced = q.facet.forced || other.facet.forced
	q.hl.forced = q.hl.forced || other.hl.forced
}

func mergeParams(dst, src []*param) {
	for i, p := range src {
		for _, e := range p.entries {
			dst[i].add(e.field, []string{e.value})
		}
	}
}

// Get returns the global values of a parameter, or the per-field values
// for f.<field>.<param> keys.
func (q *Query) Get(key string) []string {
	t, err := q.resolve(key)
	if err != nil || t.param == nil {
		if err == nil && t.grp != nil && t.grp.enabled() {
			return []string{"true"}
		}
		return nil
	}
	if t.field != "" {
		return t.param.fieldValues(t.field)
	}
	return t.param.values()
}

// Has reports whether the parameter named by key holds a value.
func (q *Query) Has(key string) bool {
	return len(q.Get(key)) > 0
}

// Clone returns a deep copy.
func (q *Query) Clone() *Query {
	c := &Query{
		params: make([]*param, len(q.params)),
		index:  make(map[string]*param, len(q.index)),
		facet:  q.facet.clone(),
		hl:     q.hl.clone(),
	}
	for i, p := range q.params {
		cp := p.clone()
		c.params[i] = cp
		c.index[cp.name] = cp
	}
	return c
}

// EnableFacet forces faceting on even without facet parameters.
func (q *Query) EnableFacet() { q.facet.forced = true }

// EnableHighlight forces highlighting on even without highlight parameters.
func (q *Query) EnableHighlight() { q.hl.forced = true }

// FacetEnabled reports whether the serialized query requests facets.
func (q *Query) FacetEnabled() bool { return q.facet.enabled() }

// HighlightEnabled reports whether the serialized query requests highlighting.
func (q *Query) HighlightEnabled() bool { return q.hl.enabled() }

func (q *Query) pairs() [][2]string {
	var out [][2]string
	for _, p := range q.params {
		out = append(out, p.pairs()...)
	}
	out = append(out, q.facet.pairs()...)
	return append(out, q.hl.pairs()...)
}

// URL serializes non-empty parameters in declaration order, without a leading '?'.
func (q *Query) URL() string {
	var b strings.Builder
	encodePairs(&b, q.pairs())
	return b.String()
}

func (q *Query) String() string { return q.URL() }

// Values returns the serialized parameters as url.Values.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	for _, kv := range q.pairs() {
		v.Add(kv[0], kv[1])
	}
	return v
}
