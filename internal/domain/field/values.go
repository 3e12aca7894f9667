package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/solango/internal/domain"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05.000Z"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	cdataPattern = regexp.MustCompile(`<!\[CDATA\[|\]\]>`)
)

// StripMarkup removes markup tags and collapses whitespace.
func StripMarkup(s string) string {
	s = cdataPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func coerceMulti(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	items, isList := listOf(v)
	if !isList {
		items = []any{v}
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		c, err := coerce(kind, item)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func coerce(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if items, ok := listOf(v); ok {
		switch {
		case kind == String || kind == Text:
			parts := make([]string, 0, len(items))
			for _, item := range items {
				c, err := coerce(kind, item)
				if err != nil {
					return nil, err
				}
				if s, _ := c.(string); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) == 0 {
				return nil, nil
			}
			return strings.Join(parts, " "), nil
		case len(items) == 0:
			return nil, nil
		case len(items) == 1:
			return coerce(kind, items[0])
		default:
			return nil, fmt.Errorf("%d values for single-valued %s: %w", len(items), kind, domain.ErrInvalidValue)
		}
	}

	if s, ok := v.(string); ok && kind != String && kind != Text && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch kind {
	case String:
		return toString(v), nil
	case Text:
		return StripMarkup(toString(v)), nil
	case Integer, Long:
		return toInt(v)
	case Float, Double:
		return toFloat(v)
	case Boolean:
		return toBool(v)
	case Date:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case DateTime:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return t.Truncate(time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown kind %q: %w", kind, domain.ErrInvalidValue)
	}
}

func listOf(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows: %w", n, domain.ErrInvalidValue)
		}
		return int64(n), nil
	case float32:
		return integral(float64(n))
	case float64:
		return integral(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("integer %q: %w", n, domain.ErrInvalidValue)
		}
		return integral(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %q: %w", n, domain.ErrInvalidValue)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("integer from %T: %w", v, domain.ErrInvalidValue)
	}
}

func integral(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("integer %v: %w", f, domain.ErrInvalidValue)
	}
	return int64(f), nil
}

func toFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("float %q: %w", n, domain.ErrInvalidValue)
		}
		return f, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("float %q: %w", n, domain.ErrInvalidValue)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("float from %T: %w", v, domain.ErrInvalidValue)
	}
}

func toBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "":
			return nil, nil
		}
	}
	return nil, fmt.Errorf("boolean from %v: %w", v, domain.ErrInvalidValue)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t != nil {
			return t.UTC(), nil
		}
	case string:
		s := strings.TrimSpace(t)
		if p, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return p.UTC(), nil
		}
		if p, err := time.Parse(dateLayout, s); err == nil {
			return p, nil
		}
		return time.Time{}, fmt.Errorf("date %q: %w", t, domain.ErrInvalidValue)
	}
	return time.Time{}, fmt.Errorf("date from %T: %w", v, domain.ErrInvalidValue)
}

func format(kind Kind, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if kind == Date {
			return x.UTC().Format(dateLayout) + "T00:00:00.000Z"
		}
		return x.UTC().Format(dateTimeLayout)
	default:
		return toString(v)
	}
}

// FormatValue renders a native value of the given kind in wire format.
func FormatValue(kind Kind, v any) string { return format(kind, v) }
