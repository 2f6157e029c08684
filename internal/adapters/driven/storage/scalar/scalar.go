// Package scalar flattens structured metadata values for storage
// backends that only accept scalar fields, and restores them on read.
//
// Lists and maps are serialised to JSON strings on the way in. On the
// way out every string value is offered to the JSON parser; values
// that parse are replaced by the parsed form, the rest stay strings.
package scalar

import (
	"encoding/json"
	"reflect"
)

// Encode returns a copy of the metadata with list and map values
// serialised to JSON strings. Scalar values pass through unchanged.
func Encode(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	encoded := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if isScalar(value) {
			encoded[key] = value
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			// Unserialisable values are stored as-is and left to the
			// backend to reject.
			encoded[key] = value
			continue
		}
		encoded[key] = string(data)
	}
	return encoded
}

// Decode returns a copy of the metadata with JSON string values parsed
// back into structured values.
func Decode(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	decoded := make(map[string]any, len(metadata))
	for key, value := range metadata {
		str, ok := value.(string)
		if !ok {
			decoded[key] = value
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(str), &parsed); err != nil {
			decoded[key] = str
			continue
		}
		decoded[key] = parsed
	}
	return decoded
}

// Matches reports whether the metadata satisfies an exact-match
// filter. Numeric values compare by value across int and float types,
// so a filter built with int 3 matches a stored float64 3.
func Matches(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool:
		return true
	default:
		_, ok := toFloat(v)
		return ok
	}
}
