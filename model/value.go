package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid is the zero Kind.
	KindInvalid Kind = iota
	// KindString represents a byte string.
	KindString
	// KindInt represents a signed integer.
	KindInt
	// KindFloat represents a float. It only appears nested in lists and dicts.
	KindFloat
	// KindList represents an ordered list of values.
	KindList
	// KindDict represents an insertion-ordered map.
	KindDict
	// KindArray represents a numeric array.
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// ErrNotConcatenable is returned by Concat for kinds without a + operation.
var ErrNotConcatenable = errors.New("values cannot be concatenated")

// Value is a tagged union of the supported shapes.
//
// Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	S    string
	I64  int64
	F64  float64
	L    []Value
	D    *Dict
	A    *Array
}

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, S: s} }

// Bytes returns a string Value holding a copy of b.
func Bytes(b []byte) Value { return Value{Kind: KindString, S: string(b)} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// List returns a list Value. A nil slice is an empty list.
func List(v []Value) Value {
	if v == nil {
		v = []Value{}
	}
	return Value{Kind: KindList, L: v}
}

// Ints returns a list of integer Values.
func Ints(v ...int64) Value {
	l := make([]Value, len(v))
	for i, x := range v {
		l[i] = Int(x)
	}
	return List(l)
}

// Strings returns a list of string Values.
func Strings(v ...string) Value {
	l := make([]Value, len(v))
	for i, x := range v {
		l[i] = String(x)
	}
	return List(l)
}

// DictValue returns a dict Value. A nil dict is an empty dict.
func DictValue(d *Dict) Value {
	if d == nil {
		d = NewDict()
	}
	return Value{Kind: KindDict, D: d}
}

// ArrayValue returns an array Value.
func ArrayValue(a *Array) Value { return Value{Kind: KindArray, A: a} }

// AsString returns the string if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// AsBytes returns the string as bytes if Kind is KindString.
func (v Value) AsBytes() ([]byte, bool) {
	if v.Kind != KindString {
		return nil, false
	}
	return []byte(v.S), true
}

// AsInt64 returns the integer if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the float if Kind is KindFloat.
func (v Value) AsFloat64() (float64, bool) {
	if v.Kind != KindFloat {
		return 0, false
	}
	return v.F64, true
}

// AsList returns the elements if Kind is KindList.
func (v Value) AsList() ([]Value, bool) {
	if v.Kind != KindList {
		return nil, false
	}
	return v.L, true
}

// AsDict returns the dict if Kind is KindDict.
func (v Value) AsDict() (*Dict, bool) {
	if v.Kind != KindDict {
		return nil, false
	}
	return v.D, true
}

// AsArray returns the array if Kind is KindArray.
func (v Value) AsArray() (*Array, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// Len returns the element count of a list, the byte length of a string, the
// entry count of a dict, and the element count of an array. Other kinds are 0.
func (v Value) Len() int {
	switch v.Kind {
	case KindString:
		return len(v.S)
	case KindList:
		return len(v.L)
	case KindDict:
		return v.D.Len()
	case KindArray:
		return v.A.Len()
	default:
		return 0
	}
}

// Equal reports whether v and o hold the same kind and content.
// Dicts compare equal regardless of key order.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindInt:
		return v.I64 == o.I64
	case KindFloat:
		return v.F64 == o.F64
	case KindList:
		if len(v.L) != len(o.L) {
			return false
		}
		for i := range v.L {
			if !v.L[i].Equal(o.L[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return v.D.Equal(o.D)
	case KindArray:
		return v.A.Equal(o.A)
	default:
		return true
	}
}

// Concat joins two values of the same concatenable kind (list or string).
func Concat(a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		return Value{}, fmt.Errorf("%w: %s + %s", ErrNotConcatenable, a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindString:
		return String(a.S + b.S), nil
	case KindList:
		l := make([]Value, 0, len(a.L)+len(b.L))
		l = append(l, a.L...)
		l = append(l, b.L...)
		return List(l), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrNotConcatenable, a.Kind)
	}
}

// ConcatAll joins parts left to right. All parts must share one
// concatenable kind. A single part is returned unchanged.
func ConcatAll(parts ...Value) (Value, error) {
	if len(parts) == 0 {
		return Value{}, fmt.Errorf("%w: no values", ErrNotConcatenable)
	}
	first := parts[0]
	if len(parts) == 1 {
		return first, nil
	}
	n := 0
	for _, p := range parts {
		if p.Kind != first.Kind {
			return Value{}, fmt.Errorf("%w: %s + %s", ErrNotConcatenable, first.Kind, p.Kind)
		}
		n += p.Len()
	}
	switch first.Kind {
	case KindString:
		var b strings.Builder
		b.Grow(n)
		for _, p := range parts {
			b.WriteString(p.S)
		}
		return String(b.String()), nil
	case KindList:
		l := make([]Value, 0, n)
		for _, p := range parts {
			l = append(l, p.L...)
		}
		return List(l), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrNotConcatenable, first.Kind)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.S)
	case KindInt:
		return fmt.Sprintf("%d", v.I64)
	case KindFloat:
		return fmt.Sprintf("%g", v.F64)
	case KindList:
		return fmt.Sprintf("%v", v.L)
	case KindDict:
		return v.D.String()
	case KindArray:
		return v.A.String()
	default:
		return "<invalid>"
	}
}
