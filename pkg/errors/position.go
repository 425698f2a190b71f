package errors

// Position represents a location in the source script.
// Runtime errors usually only know the line of the operation that failed,
// so Column may be zero.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number (rune index within the line)
}
