// Package payload provides typed access to event payload fields.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrFieldMissing indicates the payload has no value for the key.
	ErrFieldMissing = errors.New("payload: field missing")
	// ErrFieldType indicates the value cannot be coerced to the requested type.
	ErrFieldType = errors.New("payload: field has wrong type")
)

// Map carries event-specific fields consumed by accounting rules.
// Accessors fail loudly on missing or mistyped fields instead of
// returning zero values.
type Map map[string]any

// Has reports whether the key is present.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Float returns the value coerced to float64. JSON decoding produces
// float64 or json.Number depending on decoder settings, so both are
// accepted, alongside integer values set programmatically.
func (m Map) Float(key string) (float64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrFieldMissing, key)
	}
	val, ok := toFloat(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, want number", ErrFieldType, key, raw)
	}
	return val, nil
}

// Int returns the value coerced to int64, rejecting fractional numbers.
func (m Map) Int(key string) (int64, error) {
	val, err := m.Float(key)
	if err != nil {
		return 0, err
	}
	whole := int64(val)
	if float64(whole) != val {
		return 0, fmt.Errorf("%w: %q is fractional, want integer", ErrFieldType, key)
	}
	return whole, nil
}

// String returns the value as a string.
func (m Map) String(key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldMissing, key)
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrFieldType, key, raw)
	}
	return str, nil
}

// OptionalInt returns the value and true when present and integral,
// used for back-reference keys that rules may or may not supply.
func (m Map) OptionalInt(key string) (int64, bool) {
	if !m.Has(key) {
		return 0, false
	}
	val, err := m.Int(key)
	if err != nil {
		return 0, false
	}
	return val, true
}

// Clone returns a shallow copy so snapshots cannot be mutated by callers.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
