package runtime

import (
	"strings"

	"smallscript/pkg/errors"
)

// Invoker is the invocation behavior of a function object: it receives the
// function object itself, the this-binding and the evaluated arguments.
type Invoker func(self *Object, this Value, args []Value) (Value, error)

// Object is a mutable property bag with a single-level-recursive prototype
// fallback. Environments and functions are Objects too: an environment
// chains to its enclosing scope through the proto link, and a function
// carries an Invoker.
type Object struct {
	properties map[string]Value
	keys       []string // insertion order, for deterministic printing
	proto      *Object  // non-owning fallback reference, never cyclic
	invoker    Invoker
	name       string // function name, for diagnostics
	version    uint32 // bumped when a new key appears (layout change)
}

// NewEnv creates an environment chained to parent (nil for the global
// environment). Always succeeds.
func NewEnv(parent *Object) *Object {
	return &Object{properties: make(map[string]Value), proto: parent}
}

// NewObject creates an empty property bag with an optional prototype.
// Since the new object is fresh, no prototype cycle can be formed and no
// mutator allows one afterwards.
func NewObject(proto *Object) *Object {
	return &Object{properties: make(map[string]Value), proto: proto}
}

// NewFunction wraps a callable into a function object.
func NewFunction(name string, invoker Invoker) *Object {
	return &Object{properties: make(map[string]Value), name: name, invoker: invoker}
}

// Name returns the function name, or "" for non-function objects.
func (o *Object) Name() string { return o.name }

// Proto returns the prototype link, nil when absent.
func (o *Object) Proto() *Object { return o.proto }

// Version identifies the object's property layout. It changes exactly when
// a new key is registered, never on value overwrite, so the bytecode
// backend's caches can guard on (identity, version).
func (o *Object) Version() uint32 { return o.version }

// Length is the slot count: the number of distinct keys registered so far.
// The bytecode backend uses it to assign local-variable slots.
func (o *Object) Length() int { return len(o.properties) }

// Keys returns the property names in insertion order.
func (o *Object) Keys() []string { return o.keys }

// GetOwn reads a direct property, bypassing the prototype chain.
func (o *Object) GetOwn(name string) (Value, bool) {
	v, ok := o.properties[name]
	return v, ok
}

// Lookup walks the prototype chain and returns Undefined on a total miss.
// It never fails.
func (o *Object) Lookup(name string) Value {
	for obj := o; obj != nil; obj = obj.proto {
		if v, ok := obj.properties[name]; ok {
			return v
		}
	}
	return Undefined
}

// LookupOwner returns the object in the prototype chain that directly owns
// the key, or nil on a total miss. The inline caches use it to pin the
// resolved holder of a property.
func (o *Object) LookupOwner(name string) *Object {
	for obj := o; obj != nil; obj = obj.proto {
		if _, ok := obj.properties[name]; ok {
			return obj
		}
	}
	return nil
}

// Register writes a property locally, creating or overwriting it. It is the
// only mutator and always succeeds.
func (o *Object) Register(name string, v Value) {
	if _, ok := o.properties[name]; !ok {
		o.keys = append(o.keys, name)
		o.version++
	}
	o.properties[name] = v
}

// IsCallable reports whether the object carries invocation behavior.
func (o *Object) IsCallable() bool { return o.invoker != nil }

// Invoke forwards to the object's invocation behavior, failing with an
// InvocationError for a plain object.
func (o *Object) Invoke(this Value, args []Value) (Value, error) {
	if o.invoker == nil {
		return Undefined, &errors.InvocationError{
			Msg: "object " + o.Inspect() + " is not invocable",
		}
	}
	return o.invoker(o, this, args)
}

// Inspect renders functions as "function <name>" and plain objects as
// "{ k: v ... }" in key-insertion order. Reference cycles through
// properties print as "...".
func (o *Object) Inspect() string {
	return o.inspect(map[*Object]bool{})
}

func (o *Object) inspect(seen map[*Object]bool) string {
	if o.invoker != nil {
		return "function " + o.name
	}
	if seen[o] {
		return "..."
	}
	seen[o] = true
	defer delete(seen, o)

	if len(o.keys) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{ ")
	for i, k := range o.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		v := o.properties[k]
		if v.IsObject() {
			sb.WriteString(v.AsObject().inspect(seen))
		} else {
			sb.WriteString(v.Inspect())
		}
	}
	sb.WriteString(" }")
	return sb.String()
}
