package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// normalize flattens a loosely typed value into parameter strings.
// Empty strings and nil are dropped.
func normalize(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []string:
		out := make([]string, 0, len(x))
		for _, s := range x {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case bool:
		return []string{strconv.FormatBool(x)}
	case int:
		return []string{strconv.Itoa(x)}
	case int64:
		return []string{strconv.FormatInt(x, 10)}
	case float64:
		return []string{strconv.FormatFloat(x, 'f', -1, 64)}
	case float32:
		return []string{strconv.FormatFloat(float64(x), 'f', -1, 32)}
	case fmt.Stringer:
		return normalize(x.String())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		var out []string
		for i := range rv.Len() {
			out = append(out, normalize(rv.Index(i).Interface())...)
		}
		return out
	}
	return normalize(fmt.Sprint(v))
}

func truthy(values []string) bool {
	if len(values) == 0 {
		return false
	}
	switch strings.ToLower(values[len(values)-1]) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
