package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the variants of Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

// Value is the tagged variant carried in outgoing records. Dates and
// datetimes flow through as strings; the transport layer serializes
// each variant natively.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	b    bool
	s    string
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// Int wraps an integer value
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a floating-point value
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool wraps a boolean value
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String wraps a string value
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the variant tag
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload; valid only for KindInt
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the float payload; valid only for KindFloat
func (v Value) AsFloat() float64 { return v.f }

// AsBool returns the boolean payload; valid only for KindBool
func (v Value) AsBool() bool { return v.b }

// AsString returns the string payload; valid only for KindString
func (v Value) AsString() string { return v.s }

// Text renders the value for display and CSV output. Null renders as
// the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return ""
}

// MarshalJSON serializes each variant as its native JSON type
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.s)
	}
	return []byte("null"), nil
}

// Record is the typed field map sent to the target instance for one
// row
type Record map[string]Value

// CellText renders a JSON-decoded query value as a CSV cell. Numbers
// that are whole render without a decimal point; null renders empty.
func CellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
