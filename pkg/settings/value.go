package settings

import (
	"fmt"
	"strconv"
)

// Kind identifies the native type of a stored value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindString
	KindInt32
	KindFloat32
	KindInt64
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindString:  "string",
	KindInt32:   "int32",
	KindFloat32: "float32",
	KindInt64:   "int64",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a persisted kind name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", name)
}

// Value is one natively stored setting. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	s    string
	i    int64
	f    float32
}

func Bool(v bool) Value       { return Value{kind: KindBool, b: v} }
func String(v string) Value   { return Value{kind: KindString, s: v} }
func Int32(v int32) Value     { return Value{kind: KindInt32, i: int64(v)} }
func Float32(v float32) Value { return Value{kind: KindFloat32, f: v} }
func Int64(v int64) Value     { return Value{kind: KindInt64, i: v} }

// Kind returns the native kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Interface returns the payload as bool, string, int32, float32 or int64.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindInt32:
		return int32(v.i)
	case KindFloat32:
		return v.f
	case KindInt64:
		return v.i
	default:
		return nil
	}
}

// Text returns the canonical text form of the payload. Parse(v.Kind(), v.Text())
// returns v.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	default:
		return ""
	}
}

func (v Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.kind.String() + "(" + v.Text() + ")"
}

// Parse decodes text produced by Value.Text for the given kind.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q: %w", text, err)
		}
		return Bool(b), nil
	case KindString:
		return String(text), nil
	case KindInt32:
		i, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int32 %q: %w", text, err)
		}
		return Int32(int32(i)), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float32 %q: %w", text, err)
		}
		return Float32(float32(f)), nil
	case KindInt64:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int64 %q: %w", text, err)
		}
		return Int64(i), nil
	default:
		return Value{}, fmt.Errorf("cannot parse value of %s", kind)
	}
}
