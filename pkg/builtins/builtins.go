// Package builtins installs the fixed builtin library into a global
// environment: print, the arithmetic operators and the comparison
// operators. Both engines consume the same installation.
package builtins

import (
	"fmt"
	"io"
	"strings"

	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

// Install registers the builtin globals into env exactly once, before
// execution begins. The fixed names are: global, print, + - * / % and
// == != < <= > >=.
func Install(env *runtime.Object, out io.Writer) {
	env.Register("global", runtime.NewObjectValue(env))

	env.Register("print", fn("print", func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.Inspect()
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return runtime.Undefined, nil
	}))

	arith(env, "+", func(a, b int) (int, error) { return a + b, nil })
	arith(env, "-", func(a, b int) (int, error) { return a - b, nil })
	arith(env, "*", func(a, b int) (int, error) { return a * b, nil })
	arith(env, "/", func(a, b int) (int, error) {
		if b == 0 {
			return 0, &errors.TypeError{Msg: "division by zero"}
		}
		return a / b, nil
	})
	arith(env, "%", func(a, b int) (int, error) {
		if b == 0 {
			return 0, &errors.TypeError{Msg: "modulo by zero"}
		}
		return a % b, nil
	})

	env.Register("==", fn("==", func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if err := checkArity("==", args, 2); err != nil {
			return runtime.Undefined, err
		}
		return boolInt(args[0].Equals(args[1])), nil
	}))
	env.Register("!=", fn("!=", func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if err := checkArity("!=", args, 2); err != nil {
			return runtime.Undefined, err
		}
		return boolInt(!args[0].Equals(args[1])), nil
	}))

	compare(env, "<", func(c int) bool { return c < 0 })
	compare(env, "<=", func(c int) bool { return c <= 0 })
	compare(env, ">", func(c int) bool { return c > 0 })
	compare(env, ">=", func(c int) bool { return c >= 0 })
}

func fn(name string, invoker runtime.Invoker) runtime.Value {
	return runtime.NewObjectValue(runtime.NewFunction(name, invoker))
}

func boolInt(b bool) runtime.Value {
	if b {
		return runtime.NewInteger(1)
	}
	return runtime.NewInteger(0)
}

func checkArity(name string, args []runtime.Value, want int) error {
	if len(args) != want {
		return &errors.ArityError{
			Msg: fmt.Sprintf("expected %d arguments, %d arguments given to %s", want, len(args), name),
		}
	}
	return nil
}

// arith registers an integer-only binary operator. A non-integer operand is
// a TypeError; there is no implicit coercion.
func arith(env *runtime.Object, name string, op func(a, b int) (int, error)) {
	env.Register(name, fn(name, func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if err := checkArity(name, args, 2); err != nil {
			return runtime.Undefined, err
		}
		if !args[0].IsInteger() || !args[1].IsInteger() {
			return runtime.Undefined, &errors.TypeError{
				Msg: fmt.Sprintf("operator %s requires integers, got %s and %s",
					name, args[0].Type(), args[1].Type()),
			}
		}
		n, err := op(args[0].AsInteger(), args[1].AsInteger())
		if err != nil {
			return runtime.Undefined, err
		}
		return runtime.NewInteger(n), nil
	}))
}

// compare registers an ordering operator over two integers or two strings,
// yielding integer 1/0 to stay consistent with the truthiness rule.
func compare(env *runtime.Object, name string, accept func(c int) bool) {
	env.Register(name, fn(name, func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
		if err := checkArity(name, args, 2); err != nil {
			return runtime.Undefined, err
		}
		a, b := args[0], args[1]
		switch {
		case a.IsInteger() && b.IsInteger():
			return boolInt(accept(intCompare(a.AsInteger(), b.AsInteger()))), nil
		case a.IsString() && b.IsString():
			return boolInt(accept(strings.Compare(a.AsString(), b.AsString()))), nil
		default:
			return runtime.Undefined, &errors.TypeError{
				Msg: fmt.Sprintf("operator %s cannot order %s and %s", name, a.Type(), b.Type()),
			}
		}
	}))
}

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
