package facet

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Default separators.
const (
	DefaultPathSeparator   = ";;"
	DefaultSearchSeparator = "__"
)

// ExpandableMarker is appended to the label of values that have children.
const ExpandableMarker = "*"

// Pair is one flat (value, count) entry as returned by the backend.
type Pair struct {
	Value string
	Count int64
}

// Options controls labels and tree reconstruction.
type Options struct {
	// PathSeparator encodes hierarchy inside a facet value, e.g. "a;;b".
	PathSeparator string
	// SearchSeparator joins type keys and ids; labels drop everything before it.
	SearchSeparator string
	// DateFormats maps a gap unit (YEAR, MONTH, DAY) to a time layout.
	DateFormats map[string]string
}

func (o Options) withDefaults() Options {
	if o.PathSeparator == "" {
		o.PathSeparator = DefaultPathSeparator
	}
	if o.SearchSeparator == "" {
		o.SearchSeparator = DefaultSearchSeparator
	}
	if o.DateFormats == nil {
		o.DateFormats = DefaultDateFormats()
	}
	return o
}

// Value is one facet value. After reconstruction Count includes the counts
// of all descendants.
type Value struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	Count      int64  `json:"count"`
	Level      int    `json:"level"`
	Expandable bool   `json:"expandable,omitempty"`
	// Synthetic marks zero-count parents created to connect deep paths.
	// They do not exist in the backend response.
	Synthetic bool   `json:"synthetic,omitempty"`
	Encoded   string `json:"encoded"`

	parent   *Value
	children []*Value
}

// Parent returns the parent value, nil for roots.
func (v *Value) Parent() *Value { return v.parent }

// Children returns the direct children.
func (v *Value) Children() []*Value { return v.children }

// Facet is a named list of values in depth-first order.
type Facet struct {
	Name   string   `json:"name"`
	Date   bool     `json:"date,omitempty"`
	Values []*Value `json:"values"`
}

// Label derives a display label from a facet value.
func Label(value string, opts Options) string {
	opts = opts.withDefaults()
	name := value
	if i := strings.LastIndex(name, opts.SearchSeparator); i >= 0 {
		name = name[i+len(opts.SearchSeparator):]
	}
	if i := strings.LastIndex(name, opts.PathSeparator); i >= 0 {
		name = name[i+len(opts.PathSeparator):]
	}
	return cases.Title(language.Und).String(name)
}

// quote wraps values containing spaces in double quotes.
func quote(value string) string {
	if strings.Contains(value, " ") {
		return `"` + value + `"`
	}
	return value
}

// encode escapes a value for use as a query parameter value. Reserved query
// characters such as '&', '+' and '=' are escaped.
func encode(value string) string {
	return url.QueryEscape(quote(value))
}

func newValue(value string, count int64, opts Options) *Value {
	return &Value{
		Value:   value,
		Label:   Label(value, opts),
		Count:   count,
		Encoded: encode(value),
	}
}

// New builds a facet from flat pairs. When merge is set, values related by
// the path separator are reconstructed into a tree and flattened back in
// depth-first order.
func New(name string, pairs []Pair, merge bool, opts Options) *Facet {
	opts = opts.withDefaults()
	values := make([]*Value, len(pairs))
	for i, p := range pairs {
		values[i] = newValue(p.Value, p.Count, opts)
	}
	f := &Facet{Name: name, Values: values}
	if merge {
		f.Values = mergeValues(values, opts)
	}
	return f
}

// mergeValues links every value to its parent, rolls counts up through the
// ancestors and flattens the forest depth first.
func mergeValues(values []*Value, opts Options) []*Value {
	byValue := make(map[string]*Value, len(values))
	for _, v := range values {
		if _, ok := byValue[v.Value]; !ok {
			byValue[v.Value] = v
		}
	}

	var roots []*Value
	// values grows while iterating: synthetic parents get linked too.
	for i := 0; i < len(values); i++ {
		v := values[i]
		n := strings.LastIndex(v.Value, opts.PathSeparator)
		if n < 0 {
			roots = append(roots, v)
			continue
		}
		key := v.Value[:n]
		parent, ok := byValue[key]
		if !ok {
			parent = newValue(key, 0, opts)
			parent.Synthetic = true
			byValue[key] = parent
			values = append(values, parent)
		}
		addToParent(parent, v)
	}

	out := make([]*Value, 0, len(values))
	for _, r := range roots {
		out = flatten(out, r)
	}
	return out
}

func addToParent(parent, child *Value) {
	child.parent = parent
	parent.children = append(parent.children, child)
	for p := parent; p != nil; p = p.parent {
		p.Count += child.Count
	}
}

func flatten(out []*Value, v *Value) []*Value {
	out = append(out, v)
	if v.parent != nil {
		v.Level = v.parent.Level + 1
	}
	if len(v.children) > 0 && !v.Expandable {
		v.Expandable = true
		v.Label += ExpandableMarker
	}
	for _, c := range v.children {
		out = flatten(out, c)
	}
	return out
}
