package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StructuredFilters is a sparse set of catalog constraints keyed by field name.
// Values keep the shape they were decoded with: float64, string, bool or []any.
type StructuredFilters map[string]any

func (f StructuredFilters) Clone() StructuredFilters {
	out := make(StructuredFilters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// MergeFilters copies auto and writes every explicit key over it.
// Nested values are not merged and nothing is validated.
func MergeFilters(auto, explicit StructuredFilters) StructuredFilters {
	merged := auto.Clone()
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}

// FirstNumber returns the first key holding a non-zero numeric value.
func (f StructuredFilters) FirstNumber(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := f[key]
		if !ok || !Truthy(v) {
			continue
		}
		if n, ok := NumberValue(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Number returns the numeric value of key when the key is present, zero included.
func (f StructuredFilters) Number(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	return NumberValue(v)
}

// Scalar returns a string value for key, collapsing lists to their first element.
func (f StructuredFilters) Scalar(key string) (string, bool) {
	v, ok := f[key]
	if !ok || !Truthy(v) {
		return "", false
	}
	if list, isList := v.([]any); isList {
		v = list[0]
	}
	if list, isList := v.([]string); isList {
		v = list[0]
	}
	if !Truthy(v) {
		return "", false
	}
	return StringValue(v), true
}

func (f StructuredFilters) Flag(key string) bool {
	v, ok := f[key]
	return ok && Truthy(v)
}

func NumberValue(v any) (float64, bool) {
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
	case json.Number:
		parsed, err := n.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// Truthy reports whether v counts as set: non-zero numbers, non-empty strings
// and collections, and true booleans. Strings that parse as booleans use that value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return parsed
		}
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if n, ok := NumberValue(v); ok {
			return n != 0
		}
		return true
	}
}

func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
