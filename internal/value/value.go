// Package value implements the generic polymorphic value tree shared by the
// config KV adapter, EventStream payload decoding, and recipe documents: a
// value is one of null, boolean, int64, float64, a byte buffer, an ordered
// list of values, or an ordered map whose keys are buffers.
package value

import (
	"fmt"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// Kind tags the concrete type a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBuffer
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBuffer:
		return "buffer"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// MaxDepth is the maximum nesting depth for a value tree. The config store
// bounds key paths by it (store.MaxKeyDepth); recipe documents are not
// checked against it.
const MaxDepth = 10

// Value is a polymorphic tree node. Only the field matching Kind is
// meaningful; zero value is KindNull.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Buffer []byte
	List   []*Value
	Map    *Map
}

// Null returns the null value.
func Null() *Value { return &Value{Kind: KindNull} }

// BoolValue wraps a bool.
func BoolValue(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }

// IntValue wraps a 64-bit signed integer.
func IntValue(i int64) *Value { return &Value{Kind: KindInt, Int: i} }

// FloatValue wraps a 64-bit float.
func FloatValue(f float64) *Value { return &Value{Kind: KindFloat, Float: f} }

// BufferValue wraps a byte buffer (UTF-8 string or opaque bytes).
func BufferValue(b []byte) *Value { return &Value{Kind: KindBuffer, Buffer: b} }

// StringValue wraps a Go string as a buffer value.
func StringValue(s string) *Value { return BufferValue([]byte(s)) }

// ListValue wraps an ordered list of values.
func ListValue(items []*Value) *Value { return &Value{Kind: KindList, List: items} }

// MapValue wraps an ordered map.
func MapValue(m *Map) *Value { return &Value{Kind: KindMap, Map: m} }

// IsNull reports whether v is null (including a nil receiver).
func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// AsString returns the buffer value as a Go string, or an error if v is not
// a buffer.
func (v *Value) AsString() (string, error) {
	if v == nil || v.Kind != KindBuffer {
		return "", apierrors.WrapKind(fmt.Errorf("value is %s, not buffer", kindOf(v)), apierrors.ErrConfig, "as string")
	}
	return string(v.Buffer), nil
}

// AsInt returns the int value, or an error if v is not an int.
func (v *Value) AsInt() (int64, error) {
	if v == nil || v.Kind != KindInt {
		return 0, apierrors.WrapKind(fmt.Errorf("value is %s, not int", kindOf(v)), apierrors.ErrConfig, "as int")
	}
	return v.Int, nil
}

// AsMap returns the underlying map, or an error if v is not a map.
func (v *Value) AsMap() (*Map, error) {
	if v == nil || v.Kind != KindMap {
		return nil, apierrors.WrapKind(fmt.Errorf("value is %s, not map", kindOf(v)), apierrors.ErrConfig, "as map")
	}
	return v.Map, nil
}

func kindOf(v *Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind
}

// Equal reports deep structural equality.
func Equal(a, b *Value) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindBuffer:
		return string(a.Buffer) == string(b.Buffer)
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.Map.Equal(b.Map)
	default:
		return true
	}
}
