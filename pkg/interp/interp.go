// Package interp is the tree-walking evaluator: a structural recursion over
// the AST producing runtime values, with semantics identical to the
// bytecode backend.
package interp

import (
	"fmt"
	"io"

	"smallscript/pkg/ast"
	"smallscript/pkg/builtins"
	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

// returnSignal is the non-local exit channel for `return`: it travels up
// the evaluation as an error and is consumed by the nearest enclosing
// invocation frame, never escaping it.
type returnSignal struct {
	value runtime.Value
}

func (r *returnSignal) Error() string { return "return outside function" }

// Interpret runs a script against a fresh global environment, writing
// print output to out. The implicit top-level routine counts as an
// invocation frame, so a top-level return simply ends the script.
func Interpret(script *ast.Script, out io.Writer) error {
	global := runtime.NewEnv(nil)
	builtins.Install(global, out)
	return Run(script, global)
}

// Run executes a script against an existing global environment, which
// must already carry the builtin library. Used by sessions that persist
// the environment across evaluations.
func Run(script *ast.Script, global *runtime.Object) error {
	_, err := evaluate(script.Body, global)
	if _, ok := err.(*returnSignal); ok {
		return nil
	}
	return err
}

func evaluate(node ast.Expr, env *runtime.Object) (runtime.Value, error) {
	switch node := node.(type) {
	case *ast.Block:
		for _, instr := range node.Instrs {
			if _, err := evaluate(instr, env); err != nil {
				return runtime.Undefined, err
			}
		}
		return runtime.Undefined, nil

	case *ast.Literal:
		switch v := node.Value.(type) {
		case int:
			return runtime.NewInteger(v), nil
		case string:
			return runtime.NewString(v), nil
		default:
			panic(fmt.Sprintf("interp: unsupported literal %T", node.Value))
		}

	case *ast.LocalVarAccess:
		return env.Lookup(node.Name), nil

	case *ast.LocalVarAssignment:
		current := env.Lookup(node.Name)
		if node.Declaration && !current.IsUndefined() {
			return runtime.Undefined, &errors.DeclarationError{
				Position: errors.Position{Line: node.LineNum},
				Msg:      "declaration of already defined variable " + node.Name,
			}
		}
		if !node.Declaration && current.IsUndefined() {
			return runtime.Undefined, &errors.DeclarationError{
				Position: errors.Position{Line: node.LineNum},
				Msg:      "assignment to undefined variable " + node.Name,
			}
		}
		v, err := evaluate(node.Expr, env)
		if err != nil {
			return runtime.Undefined, err
		}
		env.Register(node.Name, v)
		return runtime.Undefined, nil

	case *ast.Fun:
		return evaluateFun(node, env), nil

	case *ast.Return:
		v, err := evaluate(node.Expr, env)
		if err != nil {
			return runtime.Undefined, err
		}
		return runtime.Undefined, &returnSignal{value: v}

	case *ast.If:
		cond, err := evaluate(node.Condition, env)
		if err != nil {
			return runtime.Undefined, err
		}
		if cond.IsTruthy() {
			return evaluate(node.TrueBlock, env)
		}
		return evaluate(node.FalseBlock, env)

	case *ast.New:
		obj := runtime.NewObject(nil)
		for i, key := range node.Keys {
			v, err := evaluate(node.Values[i], env)
			if err != nil {
				return runtime.Undefined, err
			}
			obj.Register(key, v)
		}
		return runtime.NewObjectValue(obj), nil

	case *ast.FieldAccess:
		recv, err := evaluateReceiver(node.Receiver, env, node.LineNum)
		if err != nil {
			return runtime.Undefined, err
		}
		return recv.Lookup(node.Name), nil

	case *ast.FieldAssignment:
		recv, err := evaluateReceiver(node.Receiver, env, node.LineNum)
		if err != nil {
			return runtime.Undefined, err
		}
		v, err := evaluate(node.Expr, env)
		if err != nil {
			return runtime.Undefined, err
		}
		recv.Register(node.Name, v)
		return runtime.Undefined, nil

	case *ast.FunCall:
		callee, err := evaluate(node.Qualifier, env)
		if err != nil {
			return runtime.Undefined, err
		}
		if !callee.IsCallable() {
			return runtime.Undefined, &errors.NotAFunctionError{
				Position: errors.Position{Line: node.LineNum},
				Msg:      "not a function " + callee.Inspect(),
			}
		}
		args, err := evaluateArgs(node.Args, env)
		if err != nil {
			return runtime.Undefined, err
		}
		result, err := callee.AsObject().Invoke(runtime.Undefined, args)
		if err != nil {
			return runtime.Undefined, errors.WithLine(err, node.LineNum)
		}
		return result, nil

	case *ast.MethodCall:
		recv, err := evaluateReceiver(node.Receiver, env, node.LineNum)
		if err != nil {
			return runtime.Undefined, err
		}
		method := recv.Lookup(node.Name)
		if !method.IsCallable() {
			return runtime.Undefined, &errors.NotAMethodError{
				Position: errors.Position{Line: node.LineNum},
				Msg:      "no method " + node.Name + " on " + recv.Inspect(),
			}
		}
		args, err := evaluateArgs(node.Args, env)
		if err != nil {
			return runtime.Undefined, err
		}
		result, err := method.AsObject().Invoke(runtime.NewObjectValue(recv), args)
		if err != nil {
			return runtime.Undefined, errors.WithLine(err, node.LineNum)
		}
		return result, nil

	default:
		panic(fmt.Sprintf("interp: unhandled AST node %T", node))
	}
}

// evaluateFun builds a closure over the defining environment. A named
// literal is registered in that environment before the value is returned,
// so a directly self-referential function resolves its own name.
func evaluateFun(node *ast.Fun, env *runtime.Object) runtime.Value {
	name := node.Name
	if name == "" {
		name = "lambda"
	}
	invoker := func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if len(args) != len(node.Parameters) {
			return runtime.Undefined, &errors.ArityError{
				Position: errors.Position{Line: node.LineNum},
				Msg: fmt.Sprintf("expected %d arguments, %d arguments given to function %s",
					len(node.Parameters), len(args), name),
			}
		}
		local := runtime.NewEnv(env)
		local.Register("this", this)
		for i, param := range node.Parameters {
			local.Register(param, args[i])
		}
		v, err := evaluate(node.Body, local)
		if rs, ok := err.(*returnSignal); ok {
			return rs.value, nil
		}
		if err != nil {
			return runtime.Undefined, err
		}
		return v, nil
	}
	function := runtime.NewFunction(name, invoker)
	value := runtime.NewObjectValue(function)
	if node.Name != "" {
		env.Register(node.Name, value)
	}
	return value
}

func evaluateReceiver(expr ast.Expr, env *runtime.Object, line int) (*runtime.Object, error) {
	v, err := evaluate(expr, env)
	if err != nil {
		return nil, err
	}
	if !v.IsObject() {
		return nil, &errors.TypeError{
			Position: errors.Position{Line: line},
			Msg:      "type error " + v.Inspect() + " is not an object",
		}
	}
	return v.AsObject(), nil
}

func evaluateArgs(exprs []ast.Expr, env *runtime.Object) ([]runtime.Value, error) {
	args := make([]runtime.Value, len(exprs))
	for i, e := range exprs {
		v, err := evaluate(e, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}
