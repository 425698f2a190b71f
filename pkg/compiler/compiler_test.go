package compiler

import (
	"testing"

	"smallscript/pkg/errors"
	"smallscript/pkg/parser"
	"smallscript/pkg/runtime"
	"smallscript/pkg/vm"
)

func compileSource(t *testing.T, parameters []string, src string) (*vm.Chunk, error) {
	t.Helper()
	script, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return Compile("test", parameters, script.Body)
}

func mustCompile(t *testing.T, parameters []string, src string) *vm.Chunk {
	t.Helper()
	chunk, err := compileSource(t, parameters, src)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return chunk
}

func TestSlotLayout(t *testing.T) {
	// Slot 0 is the receiver, then parameters, then declared variables.
	chunk := mustCompile(t, []string{"p", "q"}, `var a = 1; var b = 2;`)
	if chunk.NumParams != 2 {
		t.Errorf("NumParams = %d, want 2", chunk.NumParams)
	}
	if chunk.NumLocals != 5 {
		t.Errorf("NumLocals = %d, want 5 (this + 2 params + 2 vars)", chunk.NumLocals)
	}
}

func TestNoParametersStillReservesReceiverSlot(t *testing.T) {
	chunk := mustCompile(t, nil, `print(1);`)
	if chunk.NumLocals != 1 {
		t.Errorf("NumLocals = %d, want 1", chunk.NumLocals)
	}
}

func TestBranchArmsGetSlots(t *testing.T) {
	chunk := mustCompile(t, nil, `
if (1) { var a = 1; } else { var b = 2; }
`)
	if chunk.NumLocals != 3 {
		t.Errorf("NumLocals = %d, want 3 (this + a + b)", chunk.NumLocals)
	}
}

func TestNestedFunctionBodiesAreSeparateChunks(t *testing.T) {
	chunk := mustCompile(t, nil, `
var outer = 1;
function f(x) { var inner = 2; return inner; }
`)
	// f's locals must not leak into the enclosing chunk, and a named
	// function registers by name rather than taking a slot.
	if chunk.NumLocals != 2 {
		t.Errorf("NumLocals = %d, want 2 (this + outer)", chunk.NumLocals)
	}
	if len(chunk.Functions) != 1 {
		t.Fatalf("expected one nested function prototype, got %d", len(chunk.Functions))
	}
	proto := chunk.Functions[0]
	if proto.Name != "f" || len(proto.Parameters) != 1 {
		t.Errorf("unexpected prototype %q with %d parameters", proto.Name, len(proto.Parameters))
	}
}

func TestDeclareTwiceFailsAtCompileTime(t *testing.T) {
	_, err := compileSource(t, nil, `var x = 1; var x = 2;`)
	if err == nil {
		t.Fatal("expected a declaration error")
	}
	de, ok := err.(*errors.DeclarationError)
	if !ok {
		t.Fatalf("expected DeclarationError, got %T: %v", err, err)
	}
	if de.Pos().Line != 1 {
		t.Errorf("line = %d, want 1", de.Pos().Line)
	}
}

func TestParameterRedeclarationFails(t *testing.T) {
	_, err := compileSource(t, []string{"x"}, `var x = 1;`)
	if _, ok := err.(*errors.DeclarationError); !ok {
		t.Fatalf("expected DeclarationError, got %T: %v", err, err)
	}
}

func TestAssignmentWithoutSlotDefersToRuntime(t *testing.T) {
	// An assignment to a name with no slot compiles to a registration
	// site; the discipline check happens when the site links.
	chunk := mustCompile(t, nil, "var a = 1;\nmissing = 2;\n")
	global := runtime.NewEnv(nil)
	fn := vm.MakeFunction(chunk, global)
	_, err := fn.Invoke(runtime.Undefined, nil)
	de, ok := err.(*errors.DeclarationError)
	if !ok {
		t.Fatalf("expected DeclarationError, got %T: %v", err, err)
	}
	if de.Pos().Line != 2 {
		t.Errorf("line = %d, want 2", de.Pos().Line)
	}
}

func TestScriptChunkUsesGlobalEnvironment(t *testing.T) {
	script, err := parser.Parse("var x = 5;\nprint(x);\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	chunk, err := CompileScript(script.Body)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	// Top-level declarations go through registration sites, not slots.
	if chunk.NumLocals != 1 {
		t.Errorf("NumLocals = %d, want 1 (this only)", chunk.NumLocals)
	}

	global := runtime.NewEnv(nil)
	global.Register("print", runtime.NewObjectValue(runtime.NewFunction("print",
		func(self *runtime.Object, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
			return runtime.Undefined, nil
		})))
	fn := vm.MakeFunction(chunk, global)
	if _, err := fn.Invoke(runtime.Undefined, nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := global.Lookup("x"); !got.Equals(runtime.NewInteger(5)) {
		t.Errorf("top-level var must land in the global environment, got %s", got.Inspect())
	}
}

func TestScriptRedeclarationFailsAtRuntime(t *testing.T) {
	script, err := parser.Parse("var x = 1;\nvar x = 2;\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	chunk, err := CompileScript(script.Body)
	if err != nil {
		t.Fatalf("top-level chunks must compile without a discovery pass: %v", err)
	}
	fn := vm.MakeFunction(chunk, runtime.NewEnv(nil))
	_, err = fn.Invoke(runtime.Undefined, nil)
	de, ok := err.(*errors.DeclarationError)
	if !ok {
		t.Fatalf("expected DeclarationError, got %T: %v", err, err)
	}
	if de.Pos().Line != 2 {
		t.Errorf("line = %d, want 2", de.Pos().Line)
	}
}

func TestChunkEndsWithImplicitReturn(t *testing.T) {
	chunk := mustCompile(t, nil, `print(1);`)
	if len(chunk.Code) == 0 {
		t.Fatal("empty chunk")
	}
	last := chunk.Code[len(chunk.Code)-1]
	if last.Op != vm.OpReturnUndefined {
		t.Errorf("last opcode = %v, want OpReturnUndefined", last.Op)
	}
}

func TestSlotTable(t *testing.T) {
	st := newSlotTable()
	if got := st.define("this"); got != 0 {
		t.Errorf("first slot = %d, want 0", got)
	}
	if got := st.define("x"); got != 1 {
		t.Errorf("second slot = %d, want 1", got)
	}
	if slot, ok := st.resolve("x"); !ok || slot != 1 {
		t.Errorf("resolve(x) = %d,%v, want 1,true", slot, ok)
	}
	if _, ok := st.resolve("missing"); ok {
		t.Error("resolve of an unknown name must fail")
	}
}
