// Package vm executes the stack bytecode produced by the compiler. Every
// late-bound operation (calls, field access, free-name lookup, truthiness
// coercion, constant materialization) compiles to a call site that links
// itself lazily on first execution; see cache.go.
package vm

import (
	"fmt"
	"strings"

	"smallscript/pkg/ast"
	"smallscript/pkg/runtime"
)

// OpCode defines the type for bytecode instructions.
type OpCode uint8

// Stack machine opcodes. A and B are the instruction operands; "site"
// means an index into the chunk's site table of the matching kind.
const (
	OpConstString OpCode = iota // A=constIdx: push string constant Constants[A]
	OpConstInt                  // A=site: push the site's lazily materialized integer
	OpPop                       // discard top of stack
	OpLoadLocal                 // A=slot: push locals[A]
	OpStoreLocal                // A=slot: pop into locals[A]
	OpLookup                    // A=site: push the dynamically resolved value of the site's name
	OpRegisterName              // A=site: register top of stack under the site's name (value stays)
	OpCall                      // A=site B=argc: pop argc args then callee, push result
	OpMethodCall                // A=site B=argc: pop argc args then receiver, push result
	OpGetField                  // A=site: pop receiver, push the site's property
	OpSetField                  // A=site: pop value then receiver, register property
	OpNewObject                 // A=nameBase B=count: pop count values, build object keyed Names[A..A+count)
	OpClosure                   // A=site: reify the site's function literal, push it
	OpJump                      // A=target: jump to absolute instruction index A
	OpJumpIfFalse               // A=site B=target: pop condition, coerce through truth site, jump if false
	OpReturn                    // pop and return from the current function
	OpReturnUndefined           // return undefined from the current function
)

func (op OpCode) String() string {
	switch op {
	case OpConstString:
		return "OpConstString"
	case OpConstInt:
		return "OpConstInt"
	case OpPop:
		return "OpPop"
	case OpLoadLocal:
		return "OpLoadLocal"
	case OpStoreLocal:
		return "OpStoreLocal"
	case OpLookup:
		return "OpLookup"
	case OpRegisterName:
		return "OpRegisterName"
	case OpCall:
		return "OpCall"
	case OpMethodCall:
		return "OpMethodCall"
	case OpGetField:
		return "OpGetField"
	case OpSetField:
		return "OpSetField"
	case OpNewObject:
		return "OpNewObject"
	case OpClosure:
		return "OpClosure"
	case OpJump:
		return "OpJump"
	case OpJumpIfFalse:
		return "OpJumpIfFalse"
	case OpReturn:
		return "OpReturn"
	case OpReturnUndefined:
		return "OpReturnUndefined"
	default:
		return fmt.Sprintf("OpCode(%d)", op)
	}
}

// Instruction is one decoded instruction. Operand meaning depends on the
// opcode; unused operands are zero.
type Instruction struct {
	Op OpCode
	A  int
	B  int
}

// FunProto is a nested function literal registered in the chunk's side
// table by synthetic id, reified into a callable at its closure site's
// first execution.
type FunProto struct {
	Name       string
	Parameters []string
	Body       *ast.Block
	Line       int
}

// CompileNestedFn compiles a nested function literal against the global
// environment. The compiler installs it on each chunk it produces; the
// indirection keeps vm free of a dependency on the compiler.
type CompileNestedFn func(proto *FunProto, global *runtime.Object) (*runtime.Object, error)

// Chunk is one compiled function body: code, line table, constants, the
// nested-function side table and the self-linking call sites.
type Chunk struct {
	Name      string
	NumParams int
	NumLocals int // including slot 0 (this) and parameters
	FunLine   int // line of the function literal, used by arity errors

	Code      []Instruction
	Lines     []int // per-instruction source lines
	Constants []runtime.Value
	Names     []string
	Functions []*FunProto

	CompileNested CompileNestedFn

	callSites     []*callSite
	methodSites   []*methodSite
	getSites      []*getSite
	setSites      []*setSite
	truthSites    []*truthSite
	lookupSites   []*lookupSite
	registerSites []*registerSite
	constSites    []*constSite
	closureSites  []*closureSite
}

// Emit appends an instruction and its source line, returning its index.
func (c *Chunk) Emit(op OpCode, a, b, line int) int {
	c.Code = append(c.Code, Instruction{Op: op, A: a, B: b})
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant interns a string constant and returns its index.
func (c *Chunk) AddConstant(v runtime.Value) int {
	for i, existing := range c.Constants {
		if existing.Equals(v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// AddName appends a property name and returns its index. Names for one
// OpNewObject are appended contiguously, so no interning here.
func (c *Chunk) AddName(name string) int {
	c.Names = append(c.Names, name)
	return len(c.Names) - 1
}

// AddFunction registers a nested function literal, returning its synthetic id.
func (c *Chunk) AddFunction(proto *FunProto) int {
	c.Functions = append(c.Functions, proto)
	return len(c.Functions) - 1
}

// --- site constructors, used by the emission pass ---

func (c *Chunk) AddCallSite(line int) int {
	c.callSites = append(c.callSites, &callSite{siteCommon: siteCommon{line: line}})
	return len(c.callSites) - 1
}

func (c *Chunk) AddMethodSite(name string, line int) int {
	c.methodSites = append(c.methodSites, &methodSite{siteCommon: siteCommon{line: line}, name: name})
	return len(c.methodSites) - 1
}

func (c *Chunk) AddGetSite(name string, line int) int {
	c.getSites = append(c.getSites, &getSite{siteCommon: siteCommon{line: line}, name: name})
	return len(c.getSites) - 1
}

func (c *Chunk) AddSetSite(name string, line int) int {
	c.setSites = append(c.setSites, &setSite{siteCommon: siteCommon{line: line}, name: name})
	return len(c.setSites) - 1
}

func (c *Chunk) AddTruthSite(line int) int {
	c.truthSites = append(c.truthSites, &truthSite{siteCommon: siteCommon{line: line}})
	return len(c.truthSites) - 1
}

func (c *Chunk) AddLookupSite(name string, line int) int {
	c.lookupSites = append(c.lookupSites, &lookupSite{siteCommon: siteCommon{line: line}, name: name})
	return len(c.lookupSites) - 1
}

func (c *Chunk) AddRegisterSite(name string, mode RegisterMode, line int) int {
	c.registerSites = append(c.registerSites, &registerSite{siteCommon: siteCommon{line: line}, name: name, mode: mode})
	return len(c.registerSites) - 1
}

func (c *Chunk) AddIntSite(n int, line int) int {
	c.constSites = append(c.constSites, &constSite{siteCommon: siteCommon{line: line}, integer: n})
	return len(c.constSites) - 1
}

func (c *Chunk) AddClosureSite(funOrd, line int) int {
	c.closureSites = append(c.closureSites, &closureSite{siteCommon: siteCommon{line: line}, funOrd: funOrd})
	return len(c.closureSites) - 1
}

// Disassemble renders the chunk for debugging.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s (params=%d locals=%d) ==\n", c.Name, c.NumParams, c.NumLocals)
	for i, instr := range c.Code {
		fmt.Fprintf(&sb, "%04d %4d %-16s", i, c.Lines[i], instr.Op)
		switch instr.Op {
		case OpConstString:
			fmt.Fprintf(&sb, " %d (%q)", instr.A, c.Constants[instr.A].AsString())
		case OpConstInt:
			fmt.Fprintf(&sb, " site=%d (%d)", instr.A, c.constSites[instr.A].integer)
		case OpLookup:
			fmt.Fprintf(&sb, " site=%d (%s)", instr.A, c.lookupSites[instr.A].name)
		case OpRegisterName:
			fmt.Fprintf(&sb, " site=%d (%s)", instr.A, c.registerSites[instr.A].name)
		case OpGetField:
			fmt.Fprintf(&sb, " site=%d (.%s)", instr.A, c.getSites[instr.A].name)
		case OpSetField:
			fmt.Fprintf(&sb, " site=%d (.%s)", instr.A, c.setSites[instr.A].name)
		case OpMethodCall:
			fmt.Fprintf(&sb, " site=%d (.%s) argc=%d", instr.A, c.methodSites[instr.A].name, instr.B)
		case OpCall:
			fmt.Fprintf(&sb, " site=%d argc=%d", instr.A, instr.B)
		case OpLoadLocal, OpStoreLocal:
			fmt.Fprintf(&sb, " slot=%d", instr.A)
		case OpNewObject:
			fmt.Fprintf(&sb, " keys=%v", c.Names[instr.A:instr.A+instr.B])
		case OpClosure:
			site := c.closureSites[instr.A]
			fmt.Fprintf(&sb, " site=%d (%s)", instr.A, c.Functions[site.funOrd].Name)
		case OpJump:
			fmt.Fprintf(&sb, " -> %04d", instr.A)
		case OpJumpIfFalse:
			fmt.Fprintf(&sb, " site=%d -> %04d", instr.A, instr.B)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
