package compiler

import "smallscript/pkg/runtime"

// slotTable assigns dense frame slots to declared names: this first, then
// parameters in order, then each first-seen declaration. It is backed by a
// prototype-less runtime object whose slot count is the next free slot
// (the same trick the runtime plays for environments), but this instance
// exists only at compile time and decides whether a name resolves to a
// fixed local slot or must fall back to a dynamic lookup site.
type slotTable struct {
	env *runtime.Object
}

func newSlotTable() *slotTable {
	return &slotTable{env: runtime.NewEnv(nil)}
}

// define assigns the next free slot to name and returns it.
func (t *slotTable) define(name string) int {
	slot := t.env.Length()
	t.env.Register(name, runtime.NewInteger(slot))
	return slot
}

// resolve returns the slot for name, if it has one.
func (t *slotTable) resolve(name string) (int, bool) {
	v, ok := t.env.GetOwn(name)
	if !ok {
		return 0, false
	}
	return v.AsInteger(), true
}

// defined reports whether name already has a slot.
func (t *slotTable) defined(name string) bool {
	_, ok := t.env.GetOwn(name)
	return ok
}

func (t *slotTable) len() int {
	return t.env.Length()
}
