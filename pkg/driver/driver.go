// Package driver composes the lexer, parser and the two execution engines
// behind one session facade used by the CLI, the REPL, the conformance
// suite and the tests.
package driver

import (
	"fmt"
	"io"

	"smallscript/pkg/ast"
	"smallscript/pkg/builtins"
	"smallscript/pkg/compiler"
	"smallscript/pkg/interp"
	"smallscript/pkg/parser"
	"smallscript/pkg/runtime"
	"smallscript/pkg/vm"
)

// Engine selects an execution strategy.
type Engine string

const (
	// EngineAST is the tree-walking evaluator.
	EngineAST Engine = "ast"
	// EngineBytecode is the compiling backend with self-linking call sites.
	EngineBytecode Engine = "bytecode"
)

// ParseEngine validates an engine name from a flag.
func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case EngineAST, EngineBytecode:
		return Engine(name), nil
	default:
		return "", fmt.Errorf("unknown engine %q (want %q or %q)", name, EngineAST, EngineBytecode)
	}
}

// Session is a persistent interpreter session: the global environment
// survives across evaluations, so REPL definitions carry over.
type Session struct {
	engine    Engine
	out       io.Writer
	global    *runtime.Object
	lastChunk *vm.Chunk
}

// NewSession creates a session with a fresh global environment and the
// builtin library installed.
func NewSession(engine Engine, out io.Writer) *Session {
	global := runtime.NewEnv(nil)
	builtins.Install(global, out)
	return &Session{engine: engine, out: out, global: global}
}

// Global exposes the session's global environment.
func (s *Session) Global() *runtime.Object { return s.global }

// RunString parses and executes source code in the session.
func (s *Session) RunString(src string) error {
	script, err := parser.Parse(src)
	if err != nil {
		return err
	}
	return s.RunScript(script)
}

// RunScript executes an already-parsed script under the session's engine.
func (s *Session) RunScript(script *ast.Script) error {
	switch s.engine {
	case EngineBytecode:
		chunk, err := compiler.CompileScript(script.Body)
		if err != nil {
			return err
		}
		s.lastChunk = chunk
		main := vm.MakeFunction(chunk, s.global)
		_, err = main.Invoke(runtime.Undefined, nil)
		return err
	default:
		return interp.Run(script, s.global)
	}
}

// CacheStats reports the call-site statistics of the most recently
// executed top-level chunk. Only meaningful for the bytecode engine.
func (s *Session) CacheStats() (vm.CacheStats, bool) {
	if s.lastChunk == nil {
		return vm.CacheStats{}, false
	}
	return s.lastChunk.CacheStats(), true
}

// Disassemble renders the most recently compiled top-level chunk.
func (s *Session) Disassemble() (string, bool) {
	if s.lastChunk == nil {
		return "", false
	}
	return s.lastChunk.Disassemble(), true
}

// RunInterpreted executes a script against a fresh global environment
// under the tree-walking evaluator; the core's first public entry point.
func RunInterpreted(script *ast.Script, out io.Writer) error {
	return interp.Interpret(script, out)
}

// CompileFunction produces a compiled callable bound to globalEnv; the
// core's second public entry point. The full-script compiled mode is its
// composition: an implicit top-level routine plus lazily compiled nested
// function literals.
func CompileFunction(name string, parameters []string, body *ast.Block, globalEnv *runtime.Object) (*runtime.Object, error) {
	return compiler.CompileFunction(name, parameters, body, globalEnv)
}
