package vm

import (
	"testing"

	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

func constantFn(name string, result int) runtime.Value {
	fn := runtime.NewFunction(name, func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return runtime.NewInteger(result), nil
	})
	return runtime.NewObjectValue(fn)
}

func TestCallSiteStateMachine(t *testing.T) {
	s := &callSite{siteCommon: siteCommon{line: 1}}
	if s.state != SiteUnlinked {
		t.Fatalf("fresh site state = %v", s.state)
	}

	a := constantFn("a", 1)
	b := constantFn("b", 2)

	got, err := s.execute(a, runtime.Undefined, nil)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if !got.Equals(runtime.NewInteger(1)) || s.state != SiteMonomorphic {
		t.Errorf("after first call: result %s, state %v", got.Inspect(), s.state)
	}

	// Same callee hits the monomorphic stub.
	if _, err := s.execute(a, runtime.Undefined, nil); err != nil {
		t.Fatalf("repeat call failed: %v", err)
	}
	if s.hits != 2 {
		t.Errorf("hits = %d, want 2", s.hits)
	}

	// A different callee must miss, go generic, and still dispatch right.
	got, err = s.execute(b, runtime.Undefined, nil)
	if err != nil {
		t.Fatalf("polymorphic call failed: %v", err)
	}
	if !got.Equals(runtime.NewInteger(2)) {
		t.Errorf("generic dispatch returned %s, want 2", got.Inspect())
	}
	if s.state != SiteGeneric || s.misses != 1 {
		t.Errorf("state = %v misses = %d, want GENERIC/1", s.state, s.misses)
	}

	// Generic still dispatches the original callee correctly.
	if got, _ := s.execute(a, runtime.Undefined, nil); !got.Equals(runtime.NewInteger(1)) {
		t.Errorf("generic dispatch of first callee returned %s", got.Inspect())
	}
}

func TestCallSiteRejectsNonCallable(t *testing.T) {
	s := &callSite{siteCommon: siteCommon{line: 7}}
	_, err := s.execute(runtime.NewInteger(3), runtime.Undefined, nil)
	nfe, ok := err.(*errors.NotAFunctionError)
	if !ok {
		t.Fatalf("expected NotAFunctionError, got %T", err)
	}
	if nfe.Pos().Line != 7 {
		t.Errorf("line = %d, want 7", nfe.Pos().Line)
	}

	// A generic site must keep reporting the error.
	s.execute(constantFn("a", 1), runtime.Undefined, nil)
	s.execute(constantFn("b", 2), runtime.Undefined, nil)
	if _, err := s.execute(runtime.NewString("x"), runtime.Undefined, nil); err == nil {
		t.Error("generic site accepted a non-callable")
	}
}

func TestMethodSitePolymorphicReceivers(t *testing.T) {
	makeRecv := func(result int) runtime.Value {
		o := runtime.NewObject(nil)
		o.Register("get", constantFn("get", result))
		return runtime.NewObjectValue(o)
	}
	a := makeRecv(10)
	b := makeRecv(20)

	s := &methodSite{siteCommon: siteCommon{line: 1}, name: "get"}
	if got, err := s.execute(a, nil); err != nil || !got.Equals(runtime.NewInteger(10)) {
		t.Fatalf("first receiver: %v, %v", got, err)
	}
	if s.state != SiteMonomorphic {
		t.Fatalf("state = %v after link", s.state)
	}
	if got, err := s.execute(b, nil); err != nil || !got.Equals(runtime.NewInteger(20)) {
		t.Fatalf("second receiver: %v, %v", got, err)
	}
	if s.state != SiteGeneric {
		t.Errorf("state = %v, want GENERIC after a second receiver shape", s.state)
	}
	// Alternating receivers keep resolving per-receiver methods.
	if got, _ := s.execute(a, nil); !got.Equals(runtime.NewInteger(10)) {
		t.Errorf("alternating dispatch broke: %s", got.Inspect())
	}
}

func TestMethodSiteErrors(t *testing.T) {
	s := &methodSite{siteCommon: siteCommon{line: 3}, name: "m"}
	if _, err := s.execute(runtime.NewInteger(1), nil); err == nil {
		t.Error("expected a type error on a non-object receiver")
	} else if _, ok := err.(*errors.TypeError); !ok {
		t.Errorf("expected TypeError, got %T", err)
	}

	o := runtime.NewObject(nil)
	o.Register("m", runtime.NewInteger(5))
	s2 := &methodSite{siteCommon: siteCommon{line: 3}, name: "m"}
	if _, err := s2.execute(runtime.NewObjectValue(o), nil); err == nil {
		t.Error("expected an error calling a non-callable property")
	} else if _, ok := err.(*errors.NotAMethodError); !ok {
		t.Errorf("expected NotAMethodError, got %T", err)
	}
}

func TestMethodSiteSeesOverwrittenMethod(t *testing.T) {
	o := runtime.NewObject(nil)
	o.Register("m", constantFn("m", 1))
	recv := runtime.NewObjectValue(o)

	s := &methodSite{siteCommon: siteCommon{line: 1}, name: "m"}
	if got, err := s.execute(recv, nil); err != nil || !got.Equals(runtime.NewInteger(1)) {
		t.Fatalf("first call: %v, %v", got, err)
	}

	// Overwriting an existing key does not bump the layout version, so the
	// guard still holds; the stub must re-read the method from the owner.
	o.Register("m", constantFn("m", 2))
	if got, err := s.execute(recv, nil); err != nil || !got.Equals(runtime.NewInteger(2)) {
		t.Fatalf("stale method after overwrite: %v, %v", got, err)
	}
	if s.state != SiteMonomorphic {
		t.Errorf("overwrite must not invalidate the layout guard, state = %v", s.state)
	}

	// Overwriting with a non-callable surfaces the same error as a fresh
	// lookup would.
	o.Register("m", runtime.NewInteger(7))
	if _, err := s.execute(recv, nil); err == nil {
		t.Error("expected an error after the method became a plain value")
	} else if _, ok := err.(*errors.NotAMethodError); !ok {
		t.Errorf("expected NotAMethodError, got %T", err)
	}
}

func TestGetSiteReadsThroughPrototype(t *testing.T) {
	proto := runtime.NewObject(nil)
	proto.Register("x", runtime.NewInteger(1))
	obj := runtime.NewObject(proto)
	recv := runtime.NewObjectValue(obj)

	s := &getSite{siteCommon: siteCommon{line: 1}, name: "x"}
	if got, err := s.execute(recv); err != nil || !got.Equals(runtime.NewInteger(1)) {
		t.Fatalf("prototype read: %v, %v", got, err)
	}

	// Value overwrites on the cached owner stay visible without a relink.
	proto.Register("x", runtime.NewInteger(2))
	if got, _ := s.execute(recv); !got.Equals(runtime.NewInteger(2)) {
		t.Errorf("stale cached value: %s", got.Inspect())
	}
	if s.state != SiteMonomorphic {
		t.Errorf("overwrite must not invalidate the layout guard, state = %v", s.state)
	}
}

func TestGetSiteInvalidatesOnShadowing(t *testing.T) {
	proto := runtime.NewObject(nil)
	proto.Register("x", runtime.NewInteger(1))
	obj := runtime.NewObject(proto)
	recv := runtime.NewObjectValue(obj)

	s := &getSite{siteCommon: siteCommon{line: 1}, name: "x"}
	s.execute(recv) // links against proto as owner

	// The receiver gains its own x, shadowing the prototype: the chain
	// layout changed, so the cached owner is no longer valid.
	obj.Register("x", runtime.NewInteger(99))
	got, err := s.execute(recv)
	if err != nil {
		t.Fatalf("read after shadowing failed: %v", err)
	}
	if !got.Equals(runtime.NewInteger(99)) {
		t.Errorf("read %s after shadowing, want 99", got.Inspect())
	}
	if s.state != SiteGeneric {
		t.Errorf("state = %v, want GENERIC after layout change", s.state)
	}
}

func TestGetSiteMissingPropertyIsUndefined(t *testing.T) {
	obj := runtime.NewObject(nil)
	recv := runtime.NewObjectValue(obj)
	s := &getSite{siteCommon: siteCommon{line: 1}, name: "nope"}

	if got, err := s.execute(recv); err != nil || !got.IsUndefined() {
		t.Fatalf("miss should be undefined: %v, %v", got, err)
	}
	// Registering the property invalidates the cached miss.
	obj.Register("nope", runtime.NewInteger(5))
	if got, _ := s.execute(recv); !got.Equals(runtime.NewInteger(5)) {
		t.Errorf("cached miss survived a registration: %s", got.Inspect())
	}
}

func TestSetSite(t *testing.T) {
	a := runtime.NewObject(nil)
	b := runtime.NewObject(nil)
	s := &setSite{siteCommon: siteCommon{line: 1}, name: "x"}

	if err := s.execute(runtime.NewObjectValue(a), runtime.NewInteger(1)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if got := a.Lookup("x"); !got.Equals(runtime.NewInteger(1)) {
		t.Errorf("write missed: %s", got.Inspect())
	}
	// Second receiver sends the site generic but the write still lands.
	if err := s.execute(runtime.NewObjectValue(b), runtime.NewInteger(2)); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if got := b.Lookup("x"); !got.Equals(runtime.NewInteger(2)) {
		t.Errorf("generic write missed: %s", got.Inspect())
	}
	if err := s.execute(runtime.NewInteger(9), runtime.NewInteger(0)); err == nil {
		t.Error("expected a type error writing to a non-object")
	}
}

func TestTruthSiteSpecialization(t *testing.T) {
	s := &truthSite{siteCommon: siteCommon{line: 1}}
	if s.execute(runtime.NewInteger(0)) {
		t.Error("0 must be false")
	}
	if !s.execute(runtime.NewInteger(5)) {
		t.Error("5 must be true")
	}
	if s.state != SiteMonomorphic {
		t.Errorf("state = %v after integer-only traffic", s.state)
	}
	// A string forces the generic path; everything non-zero stays true.
	if !s.execute(runtime.NewString("")) {
		t.Error("strings are always true")
	}
	if s.state != SiteGeneric {
		t.Errorf("state = %v, want GENERIC", s.state)
	}
	if s.execute(runtime.NewInteger(0)) {
		t.Error("generic path broke the zero rule")
	}
	if !s.execute(runtime.Undefined) {
		t.Error("undefined is true")
	}
}

func TestTruthSiteNonIntegerFirst(t *testing.T) {
	s := &truthSite{siteCommon: siteCommon{line: 1}}
	if !s.execute(runtime.NewString("x")) {
		t.Error("string must be true")
	}
	// Integer traffic after a string specialization must still honor zero.
	if s.execute(runtime.NewInteger(0)) {
		t.Error("0 must stay false after relinking")
	}
}

func TestLookupSite(t *testing.T) {
	global := runtime.NewEnv(nil)
	global.Register("x", runtime.NewInteger(1))
	env := runtime.NewEnv(global)

	s := &lookupSite{siteCommon: siteCommon{line: 1}, name: "x"}
	if got := s.execute(env); !got.Equals(runtime.NewInteger(1)) {
		t.Fatalf("chained lookup = %s", got.Inspect())
	}
	// A local shadow invalidates the cached resolution.
	env.Register("x", runtime.NewInteger(2))
	if got := s.execute(env); !got.Equals(runtime.NewInteger(2)) {
		t.Errorf("shadowed lookup = %s, want 2", got.Inspect())
	}

	miss := &lookupSite{siteCommon: siteCommon{line: 1}, name: "ghost"}
	if got := miss.execute(env); !got.IsUndefined() {
		t.Errorf("total miss = %s, want undefined", got.Inspect())
	}
}

func TestRegisterSiteModes(t *testing.T) {
	env := runtime.NewEnv(nil)

	declare := &registerSite{siteCommon: siteCommon{line: 1}, name: "x", mode: RegisterDeclare}
	if err := declare.execute(env, runtime.NewInteger(1)); err != nil {
		t.Fatalf("first declaration failed: %v", err)
	}

	redeclare := &registerSite{siteCommon: siteCommon{line: 2}, name: "x", mode: RegisterDeclare}
	if err := redeclare.execute(env, runtime.NewInteger(2)); err == nil {
		t.Error("expected declare-twice to fail")
	} else if _, ok := err.(*errors.DeclarationError); !ok {
		t.Errorf("expected DeclarationError, got %T", err)
	}

	assign := &registerSite{siteCommon: siteCommon{line: 3}, name: "x", mode: RegisterAssign}
	if err := assign.execute(env, runtime.NewInteger(3)); err != nil {
		t.Fatalf("assignment to a bound name failed: %v", err)
	}
	if got := env.Lookup("x"); !got.Equals(runtime.NewInteger(3)) {
		t.Errorf("assignment missed: %s", got.Inspect())
	}

	orphan := &registerSite{siteCommon: siteCommon{line: 4}, name: "y", mode: RegisterAssign}
	if err := orphan.execute(env, runtime.NewInteger(4)); err == nil {
		t.Error("expected assignment to an unbound name to fail")
	}

	fun := &registerSite{siteCommon: siteCommon{line: 5}, name: "x", mode: RegisterFun}
	if err := fun.execute(env, constantFn("x", 0)); err != nil {
		t.Errorf("function registration must be unconditional: %v", err)
	}
}

func TestConstSiteMaterializesOnce(t *testing.T) {
	s := &constSite{siteCommon: siteCommon{line: 1}, integer: 42}
	first := s.execute()
	second := s.execute()
	if !first.Equals(runtime.NewInteger(42)) || !first.Equals(second) {
		t.Errorf("constant site yielded %s then %s", first.Inspect(), second.Inspect())
	}
	if s.hits != 2 {
		t.Errorf("hits = %d, want 2", s.hits)
	}
}

func TestCacheStatsAggregation(t *testing.T) {
	c := &Chunk{}
	site := c.AddCallSite(1)
	c.callSites[site].execute(constantFn("f", 1), runtime.Undefined, nil)
	c.callSites[site].execute(constantFn("g", 2), runtime.Undefined, nil)

	st := c.CacheStats()
	if st.Sites != 1 || st.Generic != 1 {
		t.Errorf("stats = %+v, want one generic site", st)
	}
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", st.Hits, st.Misses)
	}
}
