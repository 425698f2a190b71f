// Package runtime implements the dynamic object model shared by both
// execution engines: the universal Value type, prototype objects,
// environments and callable values.
package runtime

import "strconv"

// ValueType tags the variants of Value.
type ValueType uint8

const (
	TypeUndefined ValueType = iota
	TypeInteger
	TypeString
	TypeObject
)

// String returns a human-readable name for the value type.
func (vt ValueType) String() string {
	switch vt {
	case TypeUndefined:
		return "undefined"
	case TypeInteger:
		return "integer"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the universal runtime value: an integer, a string, the
// undefined sentinel, or an Object (which covers plain objects,
// environments and functions uniformly).
type Value struct {
	typ     ValueType
	integer int
	str     string
	obj     *Object
}

// Undefined is the unique absent-value sentinel. It is distinct from any
// user value and from an error state: a total lookup miss yields it, and
// it is usable as a normal value.
var Undefined = Value{typ: TypeUndefined}

// NewInteger wraps an int.
func NewInteger(i int) Value { return Value{typ: TypeInteger, integer: i} }

// NewString wraps a string.
func NewString(s string) Value { return Value{typ: TypeString, str: s} }

// NewObjectValue wraps an object reference.
func NewObjectValue(o *Object) Value { return Value{typ: TypeObject, obj: o} }

func (v Value) Type() ValueType   { return v.typ }
func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }
func (v Value) IsInteger() bool   { return v.typ == TypeInteger }
func (v Value) IsString() bool    { return v.typ == TypeString }
func (v Value) IsObject() bool    { return v.typ == TypeObject }

// AsInteger returns the int payload. Only valid when IsInteger.
func (v Value) AsInteger() int { return v.integer }

// AsString returns the string payload. Only valid when IsString.
func (v Value) AsString() string { return v.str }

// AsObject returns the object payload. Only valid when IsObject.
func (v Value) AsObject() *Object { return v.obj }

// IsCallable reports whether the value is an object with invocation
// behavior.
func (v Value) IsCallable() bool {
	return v.typ == TypeObject && v.obj.invoker != nil
}

// IsTruthy applies the language's truthiness rule: only the integer 0 is
// falsy. Strings, objects and undefined are all truthy.
func (v Value) IsTruthy() bool {
	return !(v.typ == TypeInteger && v.integer == 0)
}

// Equals compares by value for integers and strings and by identity for
// objects. Undefined equals only undefined.
func (v Value) Equals(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeUndefined:
		return true
	case TypeInteger:
		return v.integer == other.integer
	case TypeString:
		return v.str == other.str
	case TypeObject:
		return v.obj == other.obj
	default:
		return false
	}
}

// Inspect returns the printed representation used by the print builtin.
func (v Value) Inspect() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeInteger:
		return strconv.Itoa(v.integer)
	case TypeString:
		return v.str
	case TypeObject:
		return v.obj.Inspect()
	default:
		return "unknown"
	}
}
