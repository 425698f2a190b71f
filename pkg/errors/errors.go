package errors

import (
	"fmt"
	"os"
	"strings"
)

// ScriptError is the interface implemented by all smallscript errors.
// Both execution engines must produce the same Kind and Pos for the same
// malformed program; message text may differ.
type ScriptError interface {
	error
	Pos() Position
	Kind() string // e.g. "Syntax", "Type", "Declaration", "Arity"
	// Message returns the specific error message without position info.
	Message() string
	Unwrap() error
}

// --- Concrete Error Types ---

// SyntaxError represents an error during lexing or parsing.
type SyntaxError struct {
	Position
	Msg   string
	Cause error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Syntax Error at line %d: %s", e.Line, e.Msg)
}
func (e *SyntaxError) Pos() Position   { return e.Position }
func (e *SyntaxError) Kind() string    { return "Syntax" }
func (e *SyntaxError) Message() string { return e.Msg }
func (e *SyntaxError) Unwrap() error   { return e.Cause }

// TypeError represents a value used where an object, callable or integer
// was required (field access on a non-object, arithmetic on non-integers).
type TypeError struct {
	Position
	Msg   string
	Cause error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Type Error at line %d: %s", e.Line, e.Msg)
}
func (e *TypeError) Pos() Position   { return e.Position }
func (e *TypeError) Kind() string    { return "Type" }
func (e *TypeError) Message() string { return e.Msg }
func (e *TypeError) Unwrap() error   { return e.Cause }

// NotAFunctionError represents a call whose target has no invocation
// behavior, detected at the call expression itself.
type NotAFunctionError struct {
	Position
	Msg   string
	Cause error
}

func (e *NotAFunctionError) Error() string {
	return fmt.Sprintf("Not A Function Error at line %d: %s", e.Line, e.Msg)
}
func (e *NotAFunctionError) Pos() Position   { return e.Position }
func (e *NotAFunctionError) Kind() string    { return "NotAFunction" }
func (e *NotAFunctionError) Message() string { return e.Msg }
func (e *NotAFunctionError) Unwrap() error   { return e.Cause }

// NotAMethodError represents a method call whose resolved property is not
// callable (or missing).
type NotAMethodError struct {
	Position
	Msg   string
	Cause error
}

func (e *NotAMethodError) Error() string {
	return fmt.Sprintf("Not A Method Error at line %d: %s", e.Line, e.Msg)
}
func (e *NotAMethodError) Pos() Position   { return e.Position }
func (e *NotAMethodError) Kind() string    { return "NotAMethod" }
func (e *NotAMethodError) Message() string { return e.Msg }
func (e *NotAMethodError) Unwrap() error   { return e.Cause }

// ArityError represents an argument count mismatch at invocation.
type ArityError struct {
	Position
	Msg   string
	Cause error
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("Arity Error at line %d: %s", e.Line, e.Msg)
}
func (e *ArityError) Pos() Position   { return e.Position }
func (e *ArityError) Kind() string    { return "Arity" }
func (e *ArityError) Message() string { return e.Msg }
func (e *ArityError) Unwrap() error   { return e.Cause }

// DeclarationError represents re-declaring an already-declared variable or
// assigning to a never-declared one. The bytecode backend raises it at
// compile time for unslotted assignments; the evaluator raises it at
// the offending statement.
type DeclarationError struct {
	Position
	Msg   string
	Cause error
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("Declaration Error at line %d: %s", e.Line, e.Msg)
}
func (e *DeclarationError) Pos() Position   { return e.Position }
func (e *DeclarationError) Kind() string    { return "Declaration" }
func (e *DeclarationError) Message() string { return e.Msg }
func (e *DeclarationError) Unwrap() error   { return e.Cause }

// InvocationError is raised by the object model's Invoke when the target
// object carries no invocation behavior. The engines usually detect the
// situation earlier and raise NotAFunctionError/NotAMethodError instead;
// this one is the last line of defense at the model boundary.
type InvocationError struct {
	Position
	Msg   string
	Cause error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("Invocation Error at line %d: %s", e.Line, e.Msg)
}
func (e *InvocationError) Pos() Position   { return e.Position }
func (e *InvocationError) Kind() string    { return "Invocation" }
func (e *InvocationError) Message() string { return e.Msg }
func (e *InvocationError) Unwrap() error   { return e.Cause }

// --- Error Reporting ---

// DisplayError prints a single error to stderr with the offending source
// line when the position is known.
func DisplayError(source string, err error) {
	serr, ok := err.(ScriptError)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	pos := serr.Pos()
	fmt.Fprintf(os.Stderr, "%s Error at line %d: %s\n", serr.Kind(), pos.Line, serr.Message())

	lines := strings.Split(source, "\n")
	lineIdx := pos.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s\n", strings.TrimRight(lines[lineIdx], "\r\n\t "))
}
