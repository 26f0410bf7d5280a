package tracker

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Separator joins nested keys and the prefix.
const Separator = "."

// #region flatten
// Flatten turns nested map[string]any values into dotted keys, prepending
// prefix when it is non-empty: Flatten({"a": {"b": 1}}, "p") == {"p.a.b": 1}.
func Flatten(m map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(m))
	flattenInto(out, m, prefix)
	return out
}

func flattenInto(out, m map[string]any, prefix string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + Separator + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = v
	}
}

// #endregion flatten

// #region coerce
// numeric converts supported number types to float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// numericOnly flattens metrics and keeps numeric leaves.
func numericOnly(metrics map[string]any, prefix string) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range Flatten(metrics, prefix) {
		if f, ok := numeric(v); ok {
			out[k] = f
		}
	}
	return out
}

// stringify renders a param value: strings as-is, nil as "", composites as JSON.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	if f, ok := numeric(v); ok {
		return fmt.Sprint(f)
	}
	if b, ok := v.(bool); ok {
		return fmt.Sprint(b)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// sortedKeys returns the keys of m in order, for deterministic writes.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// #endregion coerce
