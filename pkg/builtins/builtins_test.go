package builtins

import (
	"bytes"
	"testing"

	"smallscript/pkg/errors"
	"smallscript/pkg/runtime"
)

func installed(t *testing.T) (*runtime.Object, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	env := runtime.NewEnv(nil)
	Install(env, &buf)
	return env, &buf
}

func call(t *testing.T, env *runtime.Object, name string, args ...runtime.Value) (runtime.Value, error) {
	t.Helper()
	fn := env.Lookup(name)
	if !fn.IsCallable() {
		t.Fatalf("builtin %q is not installed", name)
	}
	return fn.AsObject().Invoke(runtime.Undefined, args)
}

func TestAllBuiltinsInstalled(t *testing.T) {
	env, _ := installed(t)
	for _, name := range []string{"print", "+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">="} {
		if !env.Lookup(name).IsCallable() {
			t.Errorf("missing builtin %q", name)
		}
	}
}

func TestGlobalNamesItsEnvironment(t *testing.T) {
	env, _ := installed(t)
	got := env.Lookup("global")
	if !got.IsObject() || got.AsObject() != env {
		t.Error("global must be bound to the environment it was installed into")
	}
}

func TestPrintJoinsWithSpaces(t *testing.T) {
	env, buf := installed(t)
	_, err := call(t, env, "print",
		runtime.NewInteger(1), runtime.NewString("two"), runtime.Undefined)
	if err != nil {
		t.Fatalf("print failed: %v", err)
	}
	if got := buf.String(); got != "1 two undefined\n" {
		t.Errorf("printed %q", got)
	}
}

func TestArithmetic(t *testing.T) {
	env, _ := installed(t)
	cases := []struct {
		op   string
		a, b int
		want int
	}{
		{"+", 2, 3, 5},
		{"-", 2, 3, -1},
		{"*", 4, 5, 20},
		{"/", 17, 5, 3},
		{"%", 17, 5, 2},
	}
	for _, tc := range cases {
		got, err := call(t, env, tc.op, runtime.NewInteger(tc.a), runtime.NewInteger(tc.b))
		if err != nil {
			t.Errorf("%d %s %d failed: %v", tc.a, tc.op, tc.b, err)
			continue
		}
		if !got.Equals(runtime.NewInteger(tc.want)) {
			t.Errorf("%d %s %d = %s, want %d", tc.a, tc.op, tc.b, got.Inspect(), tc.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	env, _ := installed(t)
	for _, op := range []string{"/", "%"} {
		_, err := call(t, env, op, runtime.NewInteger(1), runtime.NewInteger(0))
		if _, ok := err.(*errors.TypeError); !ok {
			t.Errorf("%s by zero: expected TypeError, got %T", op, err)
		}
	}
}

func TestComparisonsYieldIntegers(t *testing.T) {
	env, _ := installed(t)
	one, zero := runtime.NewInteger(1), runtime.NewInteger(0)
	cases := []struct {
		op   string
		a, b runtime.Value
		want runtime.Value
	}{
		{"<", runtime.NewInteger(1), runtime.NewInteger(2), one},
		{"<", runtime.NewInteger(2), runtime.NewInteger(1), zero},
		{"<=", runtime.NewInteger(2), runtime.NewInteger(2), one},
		{">", runtime.NewInteger(3), runtime.NewInteger(2), one},
		{">=", runtime.NewInteger(1), runtime.NewInteger(2), zero},
		{"==", runtime.NewString("a"), runtime.NewString("a"), one},
		{"!=", runtime.NewString("a"), runtime.NewString("b"), one},
		{"<", runtime.NewString("a"), runtime.NewString("b"), one},
	}
	for _, tc := range cases {
		got, err := call(t, env, tc.op, tc.a, tc.b)
		if err != nil {
			t.Errorf("%s %s %s failed: %v", tc.a.Inspect(), tc.op, tc.b.Inspect(), err)
			continue
		}
		if !got.Equals(tc.want) {
			t.Errorf("%s %s %s = %s, want %s",
				tc.a.Inspect(), tc.op, tc.b.Inspect(), got.Inspect(), tc.want.Inspect())
		}
	}
}

func TestMixedTypeOperandsFail(t *testing.T) {
	env, _ := installed(t)
	for _, op := range []string{"+", "<", "=="} {
		_, err := call(t, env, op, runtime.NewInteger(1), runtime.NewString("x"))
		if op == "==" {
			// Equality is defined across types and never fails.
			if err != nil {
				t.Errorf("== across types: %v", err)
			}
			continue
		}
		if _, ok := err.(*errors.TypeError); !ok {
			t.Errorf("%s across types: expected TypeError, got %T", op, err)
		}
	}
}

func TestOperatorArity(t *testing.T) {
	env, _ := installed(t)
	_, err := call(t, env, "+", runtime.NewInteger(1))
	if _, ok := err.(*errors.ArityError); !ok {
		t.Errorf("expected ArityError, got %T", err)
	}
}
