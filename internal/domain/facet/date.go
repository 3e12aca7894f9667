package facet

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultGap is used when the response does not echo facet.date.gap.
const DefaultGap = "+1YEAR"

const fallbackDateFormat = "January 02 2006"

// DefaultDateFormats returns the label layouts per gap unit.
func DefaultDateFormats() map[string]string {
	return map[string]string{
		"DAY":   "_2 Jan 2006",
		"MONTH": "January 2006",
		"YEAR":  "2006",
	}
}

var dateMetaKeys = []string{"gap", "start", "end", "before", "after", "between"}

// IsDateMeta reports whether a date facet key is metadata rather than a bucket.
func IsDateMeta(key string) bool { return slices.Contains(dateMetaKeys, key) }

// GapUnit returns the unit of a date gap, e.g. "MONTH" for "+1MONTH".
func GapUnit(gap string) string {
	return strings.TrimLeft(gap, "+-0123456789")
}

// DateLabel formats a bucket timestamp for the given gap.
func DateLabel(ts, gap string, formats map[string]string) string {
	t, err := parseBucket(ts)
	if err != nil {
		return ts
	}
	layout, ok := formats[GapUnit(gap)]
	if !ok {
		layout = fallbackDateFormat
	}
	return t.Format(layout)
}

func parseBucket(ts string) (time.Time, error) {
	if i := strings.LastIndex(ts, "."); i >= 0 {
		ts = ts[:i] + "Z"
	}
	return time.Parse("2006-01-02T15:04:05Z", ts)
}

// NewDate builds a date facet. Metadata keys are skipped and buckets keep
// the response order; values then go through the same tree merge as field
// facets. Each value encodes a [start TO start+gap] range.
func NewDate(name string, pairs []Pair, gap string, opts Options) *Facet {
	opts = opts.withDefaults()
	if gap == "" {
		gap = DefaultGap
	}

	buckets := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if !IsDateMeta(p.Value) {
			buckets = append(buckets, p)
		}
	}

	values := make([]*Value, len(buckets))
	for i, p := range buckets {
		v := newValue(p.Value, p.Count, opts)
		v.Label = DateLabel(p.Value, gap, opts.DateFormats)
		v.Encoded = encodeRange(p.Value, gap)
		values[i] = v
	}
	return &Facet{Name: name, Date: true, Values: mergeValues(values, opts)}
}

func encodeRange(value, gap string) string {
	value = quote(value)
	return url.QueryEscape("[" + value + " TO " + value + gap + "]")
}
