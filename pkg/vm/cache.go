package vm

import (
	"fmt"
	"strings"

	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

// SiteState represents the linkage state of a call site.
type SiteState uint8

const (
	SiteUnlinked    SiteState = iota // never executed
	SiteMonomorphic                  // specialized for one observed callee/shape
	SiteGeneric                      // gave up specializing after a cache miss
)

func (s SiteState) String() string {
	switch s {
	case SiteUnlinked:
		return "UNLINKED"
	case SiteMonomorphic:
		return "MONOMORPHIC"
	case SiteGeneric:
		return "GENERIC"
	default:
		return "UNKNOWN"
	}
}

// siteCommon holds the state machine and counters shared by all site kinds.
// A site transitions unlinked -> monomorphic on first execution and
// monomorphic -> generic on the first guard failure; each transition
// happens at most once.
type siteCommon struct {
	state  SiteState
	line   int
	hits   uint32
	misses uint32
}

// chainGuard pins the property layout of a receiver's prototype chain up
// to (and including) the resolved owner of a key. It holds as long as no
// object in the chain gained a new property, which is exactly when a
// cached resolution could have become stale (registered values may change
// freely; the stub re-reads the owner's map).
type chainGuard struct {
	objs     []*runtime.Object
	versions []uint32
}

func captureChain(recv *runtime.Object, name string) (owner *runtime.Object, guard chainGuard) {
	for obj := recv; obj != nil; obj = obj.Proto() {
		guard.objs = append(guard.objs, obj)
		guard.versions = append(guard.versions, obj.Version())
		if _, ok := obj.GetOwn(name); ok {
			return obj, guard
		}
	}
	return nil, guard
}

func (g *chainGuard) holds(recv *runtime.Object) bool {
	if len(g.objs) == 0 || g.objs[0] != recv {
		return false
	}
	for i, obj := range g.objs {
		if obj.Version() != g.versions[i] {
			return false
		}
	}
	return true
}

// --- function-call site ---

type callSite struct {
	siteCommon
	stub func(callee, this runtime.Value, args []runtime.Value) (runtime.Value, error)
}

func (s *callSite) execute(callee, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if s.state == SiteUnlinked {
		if err := s.link(callee); err != nil {
			return runtime.Undefined, err
		}
	}
	return s.stub(callee, this, args)
}

// link resolves the first observed callee and installs a monomorphic stub
// guarded by callee identity.
func (s *callSite) link(callee runtime.Value) error {
	if !callee.IsCallable() {
		return &errors.NotAFunctionError{
			Position: errors.Position{Line: s.line},
			Msg:      "not a function " + callee.Inspect(),
		}
	}
	target := callee.AsObject()
	s.state = SiteMonomorphic
	s.stub = func(callee, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if callee.IsObject() && callee.AsObject() == target {
			s.hits++
			return invokeAt(target, this, args, s.line)
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(callee, this, args)
	}
	return nil
}

// relinkGeneric installs the fully dynamic dispatch path; it performs the
// same invoke semantics as the evaluator on every call.
func (s *callSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(callee, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if !callee.IsCallable() {
			return runtime.Undefined, &errors.NotAFunctionError{
				Position: errors.Position{Line: s.line},
				Msg:      "not a function " + callee.Inspect(),
			}
		}
		return invokeAt(callee.AsObject(), this, args, s.line)
	}
}

func invokeAt(fn *runtime.Object, this runtime.Value, args []runtime.Value, line int) (runtime.Value, error) {
	result, err := fn.Invoke(this, args)
	if err != nil {
		return runtime.Undefined, errors.WithLine(err, line)
	}
	return result, nil
}

// --- method-call site: lookup-then-invoke, cached per receiver shape ---

type methodSite struct {
	siteCommon
	name string
	stub func(recv runtime.Value, args []runtime.Value) (runtime.Value, error)
}

func (s *methodSite) execute(recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if s.state == SiteUnlinked {
		if err := s.link(recv); err != nil {
			return runtime.Undefined, err
		}
	}
	return s.stub(recv, args)
}

// link pins the owner that holds the method behind a prototype-chain
// layout guard. The method value itself is re-read from the owner's map
// on every hit, so overwriting the method is visible without a relink.
func (s *methodSite) link(recv runtime.Value) error {
	obj, _, err := s.resolve(recv)
	if err != nil {
		return err
	}
	owner, guard := captureChain(obj, s.name)
	s.state = SiteMonomorphic
	s.stub = func(recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if recv.IsObject() && guard.holds(recv.AsObject()) {
			s.hits++
			method, _ := owner.GetOwn(s.name)
			if !method.IsCallable() {
				return runtime.Undefined, &errors.NotAMethodError{
					Position: errors.Position{Line: s.line},
					Msg:      "no method " + s.name + " on " + recv.AsObject().Inspect(),
				}
			}
			return invokeAt(method.AsObject(), recv, args, s.line)
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(recv, args)
	}
	return nil
}

func (s *methodSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		_, method, err := s.resolve(recv)
		if err != nil {
			return runtime.Undefined, err
		}
		return invokeAt(method.AsObject(), recv, args, s.line)
	}
}

func (s *methodSite) resolve(recv runtime.Value) (*runtime.Object, runtime.Value, error) {
	if !recv.IsObject() {
		return nil, runtime.Undefined, &errors.TypeError{
			Position: errors.Position{Line: s.line},
			Msg:      "type error " + recv.Inspect() + " is not an object",
		}
	}
	obj := recv.AsObject()
	method := obj.Lookup(s.name)
	if !method.IsCallable() {
		return nil, runtime.Undefined, &errors.NotAMethodError{
			Position: errors.Position{Line: s.line},
			Msg:      "no method " + s.name + " on " + obj.Inspect(),
		}
	}
	return obj, method, nil
}

// --- field-get site ---

type getSite struct {
	siteCommon
	name string
	stub func(recv runtime.Value) (runtime.Value, error)
}

func (s *getSite) execute(recv runtime.Value) (runtime.Value, error) {
	if s.state == SiteUnlinked {
		if err := s.link(recv); err != nil {
			return runtime.Undefined, err
		}
	}
	return s.stub(recv)
}

// link resolves property presence on the first-seen receiver and pins the
// resolved owner behind a prototype-chain layout guard.
func (s *getSite) link(recv runtime.Value) error {
	obj, err := s.receiver(recv)
	if err != nil {
		return err
	}
	owner, guard := captureChain(obj, s.name)
	s.state = SiteMonomorphic
	s.stub = func(recv runtime.Value) (runtime.Value, error) {
		if recv.IsObject() && guard.holds(recv.AsObject()) {
			s.hits++
			if owner == nil {
				return runtime.Undefined, nil
			}
			v, _ := owner.GetOwn(s.name)
			return v, nil
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(recv)
	}
	return nil
}

func (s *getSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(recv runtime.Value) (runtime.Value, error) {
		obj, err := s.receiver(recv)
		if err != nil {
			return runtime.Undefined, err
		}
		return obj.Lookup(s.name), nil
	}
}

func (s *getSite) receiver(recv runtime.Value) (*runtime.Object, error) {
	if !recv.IsObject() {
		return nil, &errors.TypeError{
			Position: errors.Position{Line: s.line},
			Msg:      "type error " + recv.Inspect() + " is not an object",
		}
	}
	return recv.AsObject(), nil
}

// --- field-set site ---

type setSite struct {
	siteCommon
	name string
	stub func(recv, value runtime.Value) error
}

func (s *setSite) execute(recv, value runtime.Value) error {
	if s.state == SiteUnlinked {
		if err := s.link(recv); err != nil {
			return err
		}
	}
	return s.stub(recv, value)
}

// Register is chain-insensitive, so the monomorphic guard is receiver
// identity alone; the cache only spares repeated type checks.
func (s *setSite) link(recv runtime.Value) error {
	obj, err := s.receiver(recv)
	if err != nil {
		return err
	}
	target := obj
	s.state = SiteMonomorphic
	s.stub = func(recv, value runtime.Value) error {
		if recv.IsObject() && recv.AsObject() == target {
			s.hits++
			target.Register(s.name, value)
			return nil
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(recv, value)
	}
	return nil
}

func (s *setSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(recv, value runtime.Value) error {
		obj, err := s.receiver(recv)
		if err != nil {
			return err
		}
		obj.Register(s.name, value)
		return nil
	}
}

func (s *setSite) receiver(recv runtime.Value) (*runtime.Object, error) {
	if !recv.IsObject() {
		return nil, &errors.TypeError{
			Position: errors.Position{Line: s.line},
			Msg:      "type error " + recv.Inspect() + " is not an object",
		}
	}
	return recv.AsObject(), nil
}

// --- truthiness coercion site ---

// truthSite converts a value to a machine boolean: only the integer 0 is
// false. The cache spares repeated type tests; it cannot affect
// correctness.
type truthSite struct {
	siteCommon
	stub func(v runtime.Value) bool
}

func (s *truthSite) execute(v runtime.Value) bool {
	if s.state == SiteUnlinked {
		s.link(v)
	}
	return s.stub(v)
}

func (s *truthSite) link(v runtime.Value) {
	observed := v.Type()
	s.state = SiteMonomorphic
	if observed == runtime.TypeInteger {
		s.stub = func(v runtime.Value) bool {
			if v.IsInteger() {
				s.hits++
				return v.AsInteger() != 0
			}
			s.misses++
			s.relinkGeneric()
			return s.stub(v)
		}
		return
	}
	// Non-integer types are always truthy.
	s.stub = func(v runtime.Value) bool {
		if v.Type() == observed {
			s.hits++
			return true
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(v)
	}
}

func (s *truthSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(v runtime.Value) bool { return v.IsTruthy() }
}

// --- free-name lookup site ---

// lookupSite resolves a name the compiler could not map to a local slot.
// It routes through the environment chain exactly as the evaluator's
// lookup and returns undefined on a total miss.
type lookupSite struct {
	siteCommon
	name string
	stub func(env *runtime.Object) runtime.Value
}

func (s *lookupSite) execute(env *runtime.Object) runtime.Value {
	if s.state == SiteUnlinked {
		s.link(env)
	}
	return s.stub(env)
}

func (s *lookupSite) link(env *runtime.Object) {
	owner, guard := captureChain(env, s.name)
	s.state = SiteMonomorphic
	s.stub = func(env *runtime.Object) runtime.Value {
		if guard.holds(env) {
			s.hits++
			if owner == nil {
				return runtime.Undefined
			}
			v, _ := owner.GetOwn(s.name)
			return v
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(env)
	}
}

func (s *lookupSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(env *runtime.Object) runtime.Value { return env.Lookup(s.name) }
}

// --- free-name registration site ---

// RegisterMode selects the declaration discipline a registration site
// enforces on its first execution.
type RegisterMode uint8

const (
	// RegisterDeclare fails if the name is already bound (declare-twice).
	RegisterDeclare RegisterMode = iota
	// RegisterAssign fails if the name is not yet bound.
	RegisterAssign
	// RegisterFun registers unconditionally (named function literals).
	RegisterFun
)

type registerSite struct {
	siteCommon
	name string
	mode RegisterMode
	stub func(env *runtime.Object, v runtime.Value) error
}

func (s *registerSite) execute(env *runtime.Object, v runtime.Value) error {
	if s.state == SiteUnlinked {
		if err := s.link(env); err != nil {
			return err
		}
	}
	return s.stub(env, v)
}

// link enforces the declare/assign rule once, at the site's first
// execution, then installs a plain registration stub.
func (s *registerSite) link(env *runtime.Object) error {
	current := env.Lookup(s.name)
	switch s.mode {
	case RegisterDeclare:
		if !current.IsUndefined() {
			return &errors.DeclarationError{
				Position: errors.Position{Line: s.line},
				Msg:      "declaration of already defined variable " + s.name,
			}
		}
	case RegisterAssign:
		if current.IsUndefined() {
			return &errors.DeclarationError{
				Position: errors.Position{Line: s.line},
				Msg:      "assignment to undefined variable " + s.name,
			}
		}
	}
	target := env
	s.state = SiteMonomorphic
	s.stub = func(env *runtime.Object, v runtime.Value) error {
		if env == target {
			s.hits++
			target.Register(s.name, v)
			return nil
		}
		s.misses++
		s.relinkGeneric()
		return s.stub(env, v)
	}
	return nil
}

func (s *registerSite) relinkGeneric() {
	s.state = SiteGeneric
	s.stub = func(env *runtime.Object, v runtime.Value) error {
		env.Register(s.name, v)
		return nil
	}
}

// --- constant materialization site ---

// constSite produces a boxed integer constant once, at its first
// execution, and caches it thereafter.
type constSite struct {
	siteCommon
	integer int
	value   runtime.Value
}

func (s *constSite) execute() runtime.Value {
	if s.state == SiteUnlinked {
		s.state = SiteMonomorphic
		s.value = runtime.NewInteger(s.integer)
	}
	s.hits++
	return s.value
}

// --- closure reification site ---

// closureSite reifies a nested function literal at most once and caches
// the resulting callable, mirroring a constant call site: each literal
// occurrence yields one function object for the lifetime of the chunk.
type closureSite struct {
	siteCommon
	funOrd int
	value  runtime.Value
}

func (s *closureSite) execute(c *Chunk, global *runtime.Object) (runtime.Value, error) {
	if s.state == SiteUnlinked {
		fn, err := c.CompileNested(c.Functions[s.funOrd], global)
		if err != nil {
			return runtime.Undefined, err
		}
		s.value = runtime.NewObjectValue(fn)
		s.state = SiteMonomorphic
	}
	s.hits++
	return s.value, nil
}

// --- statistics, for the -cache-stats debugging surface ---

// CacheStats aggregates call-site behavior over a chunk.
type CacheStats struct {
	Sites       int
	Unlinked    int
	Monomorphic int
	Generic     int
	Hits        uint64
	Misses      uint64
}

func (st *CacheStats) add(c siteCommon) {
	st.Sites++
	switch c.state {
	case SiteUnlinked:
		st.Unlinked++
	case SiteMonomorphic:
		st.Monomorphic++
	case SiteGeneric:
		st.Generic++
	}
	st.Hits += uint64(c.hits)
	st.Misses += uint64(c.misses)
}

// CacheStats collects site statistics for this chunk only; nested
// functions carry their own chunks.
func (c *Chunk) CacheStats() CacheStats {
	var st CacheStats
	for _, s := range c.callSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.methodSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.getSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.setSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.truthSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.lookupSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.registerSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.constSites {
		st.add(s.siteCommon)
	}
	for _, s := range c.closureSites {
		st.add(s.siteCommon)
	}
	return st
}

func (st CacheStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sites: %d (unlinked %d, monomorphic %d, generic %d), hits %d, misses %d",
		st.Sites, st.Unlinked, st.Monomorphic, st.Generic, st.Hits, st.Misses)
	return sb.String()
}
