package instance

import (
	"encoding/json"
	"fmt"
)

// Value is one dynamically-typed property value. The concrete types below
// are the only implementations, so property-handling code can switch over
// them exhaustively instead of working against bare interface{} values.
type Value interface {
	isValue()
}

type String string

type Number float64

type Bool bool

type Null struct{}

type List []Value

type Map map[string]Value

func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (List) isValue()   {}
func (Map) isValue()    {}

// FromAny converts a decoded-JSON value (string, float64, bool, nil,
// []any, map[string]any) into a Value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case []any:
		out := make(List, 0, len(t))
		for i, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out = append(out, val)
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(t))
		for k, item := range t {
			val, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported property type %T", v)
	}
}

// ToAny converts a Value back to the plain form json.Marshal understands.
func ToAny(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Number:
		return float64(t)
	case Bool:
		return bool(t)
	case Null:
		return nil
	case List:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, ToAny(item))
		}
		return out
	case Map:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = ToAny(item)
		}
		return out
	default:
		// Unreachable for values built through this package.
		return nil
	}
}

// MapFromJSON decodes a JSON object into a Map. Empty input decodes to an
// empty map.
func MapFromJSON(raw []byte) (Map, error) {
	if len(raw) == 0 {
		return Map{}, nil
	}
	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	val, err := FromAny(plain)
	if err != nil {
		return nil, err
	}
	m, ok := val.(Map)
	if !ok {
		return Map{}, nil
	}
	return m, nil
}

// JSON encodes the map as a JSON object.
func (m Map) JSON() ([]byte, error) {
	raw, err := json.Marshal(ToAny(m))
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	return raw, nil
}

// Clone returns a deep copy of the value.
func Clone(v Value) Value {
	switch t := v.(type) {
	case List:
		out := make(List, 0, len(t))
		for _, item := range t {
			out = append(out, Clone(item))
		}
		return out
	case Map:
		out := make(Map, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	default:
		// Scalars are immutable.
		return v
	}
}

// Clone returns a deep copy of the map. A nil map clones to an empty map so
// callers can always assign into the result.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}
