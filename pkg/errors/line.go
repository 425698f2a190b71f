package errors

// WithLine fills in the source line of a ScriptError that was raised
// without position information (builtins and the object model do not know
// where the offending operation sits). An error that already carries a
// line, or is not a ScriptError, is returned unchanged.
func WithLine(err error, line int) error {
	switch e := err.(type) {
	case *TypeError:
		if e.Line == 0 {
			e.Line = line
		}
	case *NotAFunctionError:
		if e.Line == 0 {
			e.Line = line
		}
	case *NotAMethodError:
		if e.Line == 0 {
			e.Line = line
		}
	case *ArityError:
		if e.Line == 0 {
			e.Line = line
		}
	case *DeclarationError:
		if e.Line == 0 {
			e.Line = line
		}
	case *InvocationError:
		if e.Line == 0 {
			e.Line = line
		}
	}
	return err
}
