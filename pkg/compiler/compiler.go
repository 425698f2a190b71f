// Package compiler translates function bodies into stack bytecode in two
// passes: a variable discovery pass assigning dense local slots, and an
// emission pass producing instructions whose late-bound operations link
// themselves lazily at run time (see pkg/vm).
package compiler

import (
	"fmt"

	"smallscript/pkg/ast"
	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
	"smallscript/pkg/vm"
)

// CompileFunction compiles a function body into a callable object bound to
// the given global environment. Nested function literals are compiled
// lazily, at their closure site's first execution, against the same
// global environment.
func CompileFunction(name string, parameters []string, body *ast.Block, global *runtime.Object) (*runtime.Object, error) {
	chunk, err := Compile(name, parameters, body)
	if err != nil {
		return nil, err
	}
	return vm.MakeFunction(chunk, global), nil
}

// Compile produces the chunk for a function body without binding it to an
// environment; the driver uses it to reach cache statistics and the
// disassembler. The chunk only meets its global environment when wrapped
// by vm.MakeFunction.
func Compile(name string, parameters []string, body *ast.Block) (*vm.Chunk, error) {
	return compileProto(&vm.FunProto{
		Name:       name,
		Parameters: parameters,
		Body:       body,
		Line:       body.LineNum,
	}, false)
}

// CompileScript compiles a whole script as the implicit top-level routine.
// Top-level variables live in the global environment rather than in local
// slots, so they stay visible to function bodies and survive across the
// evaluations of a session, exactly as under the evaluator. Declaration
// discipline is then enforced at run time by the registration sites.
func CompileScript(body *ast.Block) (*vm.Chunk, error) {
	return compileProto(&vm.FunProto{Name: "main", Body: body, Line: body.LineNum}, true)
}

func compileProto(proto *vm.FunProto, topLevel bool) (*vm.Chunk, error) {
	c := &compiler{
		chunk: &vm.Chunk{
			Name:      proto.Name,
			NumParams: len(proto.Parameters),
			FunLine:   proto.Line,
		},
		slots: newSlotTable(),
	}

	c.slots.define("this")
	for _, param := range proto.Parameters {
		c.slots.define(param)
	}
	if !topLevel {
		if err := c.collectLocals(proto.Body); err != nil {
			return nil, err
		}
	}
	c.chunk.NumLocals = c.slots.len()

	if err := c.compile(proto.Body); err != nil {
		return nil, err
	}
	c.chunk.Emit(vm.OpReturnUndefined, 0, 0, proto.Line)

	c.chunk.CompileNested = func(p *vm.FunProto, global *runtime.Object) (*runtime.Object, error) {
		nested, err := compileProto(p, false)
		if err != nil {
			return nil, err
		}
		return vm.MakeFunction(nested, global), nil
	}
	return c.chunk, nil
}

type compiler struct {
	chunk *vm.Chunk
	slots *slotTable
}

// collectLocals is the variable discovery pass: it walks the body
// assigning each declared name a slot. Nested function literals are not
// descended (they compile with their own table); both arms of a
// conditional are. Declaring a name twice is a compile-time
// DeclarationError, matching the evaluator's rule and line.
func (c *compiler) collectLocals(node ast.Expr) error {
	switch node := node.(type) {
	case *ast.Block:
		for _, instr := range node.Instrs {
			if err := c.collectLocals(instr); err != nil {
				return err
			}
		}
	case *ast.LocalVarAssignment:
		if node.Declaration {
			if c.slots.defined(node.Name) {
				return &errors.DeclarationError{
					Position: errors.Position{Line: node.LineNum},
					Msg:      "declaration of already defined variable " + node.Name,
				}
			}
			c.slots.define(node.Name)
		}
	case *ast.If:
		if err := c.collectLocals(node.TrueBlock); err != nil {
			return err
		}
		if err := c.collectLocals(node.FalseBlock); err != nil {
			return err
		}
	case *ast.Literal, *ast.LocalVarAccess, *ast.Fun, *ast.Return,
		*ast.New, *ast.FieldAccess, *ast.FieldAssignment,
		*ast.FunCall, *ast.MethodCall:
		// no declarations underneath
	default:
		panic(fmt.Sprintf("compiler: unhandled AST node %T", node))
	}
	return nil
}

// compile is the emission pass.
func (c *compiler) compile(node ast.Expr) error {
	line := node.Line()

	switch node := node.(type) {
	case *ast.Block:
		for _, instr := range node.Instrs {
			if err := c.compile(instr); err != nil {
				return err
			}
			// Discard the value of a non-effect statement.
			if !instr.IsInstr() {
				c.chunk.Emit(vm.OpPop, 0, 0, instr.Line())
			}
		}

	case *ast.Literal:
		switch v := node.Value.(type) {
		case int:
			site := c.chunk.AddIntSite(v, line)
			c.chunk.Emit(vm.OpConstInt, site, 0, line)
		case string:
			idx := c.chunk.AddConstant(runtime.NewString(v))
			c.chunk.Emit(vm.OpConstString, idx, 0, line)
		default:
			panic(fmt.Sprintf("compiler: unsupported literal %T", node.Value))
		}

	case *ast.LocalVarAccess:
		if slot, ok := c.slots.resolve(node.Name); ok {
			c.chunk.Emit(vm.OpLoadLocal, slot, 0, line)
		} else {
			site := c.chunk.AddLookupSite(node.Name, line)
			c.chunk.Emit(vm.OpLookup, site, 0, line)
		}

	case *ast.LocalVarAssignment:
		if err := c.compile(node.Expr); err != nil {
			return err
		}
		if slot, ok := c.slots.resolve(node.Name); ok {
			c.chunk.Emit(vm.OpStoreLocal, slot, 0, line)
			return nil
		}
		// No slot: the write targets the global environment through a
		// registration site, which enforces the declaration discipline
		// when it links.
		mode := vm.RegisterAssign
		if node.Declaration {
			mode = vm.RegisterDeclare
		}
		site := c.chunk.AddRegisterSite(node.Name, mode, line)
		c.chunk.Emit(vm.OpRegisterName, site, 0, line)
		c.chunk.Emit(vm.OpPop, 0, 0, line)

	case *ast.Fun:
		name := node.Name
		if name == "" {
			name = "lambda"
		}
		funOrd := c.chunk.AddFunction(&vm.FunProto{
			Name:       name,
			Parameters: node.Parameters,
			Body:       node.Body,
			Line:       line,
		})
		site := c.chunk.AddClosureSite(funOrd, line)
		c.chunk.Emit(vm.OpClosure, site, 0, line)
		if node.Name != "" {
			reg := c.chunk.AddRegisterSite(node.Name, vm.RegisterFun, line)
			c.chunk.Emit(vm.OpRegisterName, reg, 0, line)
		}

	case *ast.Return:
		if err := c.compile(node.Expr); err != nil {
			return err
		}
		c.chunk.Emit(vm.OpReturn, 0, 0, line)

	case *ast.If:
		if err := c.compile(node.Condition); err != nil {
			return err
		}
		truth := c.chunk.AddTruthSite(line)
		jumpFalse := c.chunk.Emit(vm.OpJumpIfFalse, truth, 0, line)
		if err := c.compile(node.TrueBlock); err != nil {
			return err
		}
		jumpEnd := c.chunk.Emit(vm.OpJump, 0, 0, line)
		c.chunk.Code[jumpFalse].B = len(c.chunk.Code)
		if err := c.compile(node.FalseBlock); err != nil {
			return err
		}
		c.chunk.Code[jumpEnd].A = len(c.chunk.Code)

	case *ast.New:
		nameBase := len(c.chunk.Names)
		for _, key := range node.Keys {
			c.chunk.AddName(key)
		}
		for _, value := range node.Values {
			if err := c.compile(value); err != nil {
				return err
			}
		}
		c.chunk.Emit(vm.OpNewObject, nameBase, len(node.Keys), line)

	case *ast.FieldAccess:
		if err := c.compile(node.Receiver); err != nil {
			return err
		}
		site := c.chunk.AddGetSite(node.Name, line)
		c.chunk.Emit(vm.OpGetField, site, 0, line)

	case *ast.FieldAssignment:
		if err := c.compile(node.Receiver); err != nil {
			return err
		}
		if err := c.compile(node.Expr); err != nil {
			return err
		}
		site := c.chunk.AddSetSite(node.Name, line)
		c.chunk.Emit(vm.OpSetField, site, 0, line)

	case *ast.FunCall:
		if err := c.compile(node.Qualifier); err != nil {
			return err
		}
		for _, arg := range node.Args {
			if err := c.compile(arg); err != nil {
				return err
			}
		}
		site := c.chunk.AddCallSite(line)
		c.chunk.Emit(vm.OpCall, site, len(node.Args), line)

	case *ast.MethodCall:
		if err := c.compile(node.Receiver); err != nil {
			return err
		}
		for _, arg := range node.Args {
			if err := c.compile(arg); err != nil {
				return err
			}
		}
		site := c.chunk.AddMethodSite(node.Name, line)
		c.chunk.Emit(vm.OpMethodCall, site, len(node.Args), line)

	default:
		panic(fmt.Sprintf("compiler: unhandled AST node %T", node))
	}
	return nil
}
