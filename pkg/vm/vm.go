package vm

import (
	"fmt"

	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

// MakeFunction wraps a compiled chunk into a callable object. The invoker
// checks arity, builds the local-slot frame (this in slot 0, then
// parameters, remaining slots initialized to undefined) and runs the code.
func MakeFunction(chunk *Chunk, global *runtime.Object) *runtime.Object {
	return runtime.NewFunction(chunk.Name, func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if len(args) != chunk.NumParams {
			return runtime.Undefined, &errors.ArityError{
				Position: errors.Position{Line: chunk.FunLine},
				Msg: fmt.Sprintf("expected %d arguments, %d arguments given to function %s",
					chunk.NumParams, len(args), chunk.Name),
			}
		}
		return run(chunk, global, this, args)
	})
}

// frame is one function activation: fixed local slots plus an operand
// stack. Execution is single-threaded and never suspends.
type frame struct {
	locals []runtime.Value
	stack  []runtime.Value
}

func (f *frame) push(v runtime.Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() runtime.Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) peek() runtime.Value { return f.stack[len(f.stack)-1] }

// popN removes the top n values and returns them in push order.
func (f *frame) popN(n int) []runtime.Value {
	vals := make([]runtime.Value, n)
	copy(vals, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return vals
}

func run(chunk *Chunk, global *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	f := &frame{locals: make([]runtime.Value, chunk.NumLocals)}
	f.locals[0] = this
	copy(f.locals[1:], args)
	for i := 1 + len(args); i < chunk.NumLocals; i++ {
		f.locals[i] = runtime.Undefined
	}

	ip := 0
	for ip < len(chunk.Code) {
		instr := chunk.Code[ip]
		ip++

		switch instr.Op {
		case OpConstString:
			f.push(chunk.Constants[instr.A])

		case OpConstInt:
			f.push(chunk.constSites[instr.A].execute())

		case OpPop:
			f.pop()

		case OpLoadLocal:
			f.push(f.locals[instr.A])

		case OpStoreLocal:
			f.locals[instr.A] = f.pop()

		case OpLookup:
			f.push(chunk.lookupSites[instr.A].execute(global))

		case OpRegisterName:
			// The registered value stays on the stack: a named function
			// literal is still an expression.
			if err := chunk.registerSites[instr.A].execute(global, f.peek()); err != nil {
				return runtime.Undefined, err
			}

		case OpCall:
			callArgs := f.popN(instr.B)
			callee := f.pop()
			result, err := chunk.callSites[instr.A].execute(callee, runtime.Undefined, callArgs)
			if err != nil {
				return runtime.Undefined, err
			}
			f.push(result)

		case OpMethodCall:
			callArgs := f.popN(instr.B)
			recv := f.pop()
			result, err := chunk.methodSites[instr.A].execute(recv, callArgs)
			if err != nil {
				return runtime.Undefined, err
			}
			f.push(result)

		case OpGetField:
			recv := f.pop()
			v, err := chunk.getSites[instr.A].execute(recv)
			if err != nil {
				return runtime.Undefined, err
			}
			f.push(v)

		case OpSetField:
			value := f.pop()
			recv := f.pop()
			if err := chunk.setSites[instr.A].execute(recv, value); err != nil {
				return runtime.Undefined, err
			}

		case OpNewObject:
			vals := f.popN(instr.B)
			obj := runtime.NewObject(nil)
			for i, v := range vals {
				obj.Register(chunk.Names[instr.A+i], v)
			}
			f.push(runtime.NewObjectValue(obj))

		case OpClosure:
			v, err := chunk.closureSites[instr.A].execute(chunk, global)
			if err != nil {
				return runtime.Undefined, err
			}
			f.push(v)

		case OpJump:
			ip = instr.A

		case OpJumpIfFalse:
			cond := f.pop()
			if !chunk.truthSites[instr.A].execute(cond) {
				ip = instr.B
			}

		case OpReturn:
			return f.pop(), nil

		case OpReturnUndefined:
			return runtime.Undefined, nil

		default:
			panic(fmt.Sprintf("vm: unhandled opcode %s", instr.Op))
		}
	}

	// Emission always ends a chunk with a return; getting here is a
	// compiler bug.
	panic("vm: fell off end of chunk " + chunk.Name)
}
