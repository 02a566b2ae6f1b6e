package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the runtime type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
)

// Value is an extracted field value: null, a string, an integer or a float.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	n    float64
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(n int) Value { return Value{kind: KindInt, n: float64(n)} }
func Float(f float64) Value { return Value{kind: KindFloat, n: f} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Valid() bool { return v.kind != KindNull }
func (v Value) String() string { return v.Format() }

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// IntValue returns the integer payload.
func (v Value) IntValue() (int, bool) {
	return int(v.n), v.kind == KindInt
}

// FloatValue returns the numeric payload of an int or float value.
func (v Value) FloatValue() (float64, bool) {
	return v.n, v.kind == KindInt || v.kind == KindFloat
}

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.s == o.s && v.n == o.n
}

// Is reports whether v is the string s.
func (v Value) Is(s string) bool {
	return v.kind == KindString && v.s == s
}

// Format renders the value as a CSV/XML cell. Null renders empty.
func (v Value) Format() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.Itoa(int(v.n))
	case KindFloat:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return ""
	}
}

// Any returns nil, string, int or float64.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return int(v.n)
	case KindFloat:
		return v.n
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON accepts null, strings and numbers. Numbers decode as floats
// unless they are written without a fraction; catalog coercion settles the
// final type.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	}
	if n, err := strconv.Atoi(string(b)); err == nil {
		*v = Int(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("unsupported field value %s", b)
	}
	*v = Float(f)
	return nil
}

// Result maps field keys to values for one extraction pass.
type Result map[string]Value
