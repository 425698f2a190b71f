// Package ast defines the node set shared by the tree-walking evaluator and
// the bytecode backend. The set is closed: Expr has an unexported marker
// method, and both engines type-switch over every kind, panicking on an
// unhandled node.
package ast

import (
	"fmt"
	"strings"
)

// Expr is the base interface for all AST nodes.
type Expr interface {
	// Line returns the 1-based source line the node starts on, used for
	// error messages.
	Line() int
	// IsInstr reports whether the node is an instruction (produces no
	// useful value). The bytecode backend discards the result of
	// non-instruction statements.
	IsInstr() bool
	String() string
	exprNode()
}

// Script is the root of a parsed program: an ordered top-level block.
type Script struct {
	Body *Block
}

// Block is an ordered sequence of statements. Evaluating it runs each child
// for effect and yields undefined.
type Block struct {
	Instrs  []Expr
	LineNum int
}

func (b *Block) Line() int     { return b.LineNum }
func (b *Block) IsInstr() bool { return true }
func (b *Block) exprNode()     {}
func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for _, instr := range b.Instrs {
		sb.WriteString(instr.String())
		sb.WriteString("; ")
	}
	sb.WriteString("}")
	return sb.String()
}

// Literal is an embedded constant: an int or a string.
type Literal struct {
	Value   any
	LineNum int
}

func (l *Literal) Line() int     { return l.LineNum }
func (l *Literal) IsInstr() bool { return false }
func (l *Literal) exprNode()     {}
func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

// LocalVarAccess reads a variable by name.
type LocalVarAccess struct {
	Name    string
	LineNum int
}

func (a *LocalVarAccess) Line() int      { return a.LineNum }
func (a *LocalVarAccess) IsInstr() bool  { return false }
func (a *LocalVarAccess) exprNode()      {}
func (a *LocalVarAccess) String() string { return a.Name }

// LocalVarAssignment declares (var x = e) or assigns (x = e) a variable.
type LocalVarAssignment struct {
	Name        string
	Expr        Expr
	Declaration bool
	LineNum     int
}

func (a *LocalVarAssignment) Line() int     { return a.LineNum }
func (a *LocalVarAssignment) IsInstr() bool { return true }
func (a *LocalVarAssignment) exprNode()     {}
func (a *LocalVarAssignment) String() string {
	if a.Declaration {
		return fmt.Sprintf("var %s = %s", a.Name, a.Expr)
	}
	return fmt.Sprintf("%s = %s", a.Name, a.Expr)
}

// Fun is a function literal. Name is empty for anonymous functions; a named
// literal additionally binds the name in its defining environment before
// the value is returned, so the body can refer to itself.
type Fun struct {
	Name       string
	Parameters []string
	Body       *Block
	LineNum    int
}

func (f *Fun) Line() int     { return f.LineNum }
func (f *Fun) IsInstr() bool { return false }
func (f *Fun) exprNode()     {}
func (f *Fun) String() string {
	return fmt.Sprintf("function %s(%s) %s", f.Name, strings.Join(f.Parameters, ", "), f.Body)
}

// Return exits the nearest enclosing function invocation with a value.
type Return struct {
	Expr    Expr
	LineNum int
}

func (r *Return) Line() int      { return r.LineNum }
func (r *Return) IsInstr() bool  { return true }
func (r *Return) exprNode()      {}
func (r *Return) String() string { return fmt.Sprintf("return %s", r.Expr) }

// If is a two-armed conditional. FalseBlock is never nil; an absent else
// clause parses to an empty block.
type If struct {
	Condition  Expr
	TrueBlock  *Block
	FalseBlock *Block
	LineNum    int
}

func (i *If) Line() int     { return i.LineNum }
func (i *If) IsInstr() bool { return true }
func (i *If) exprNode()     {}
func (i *If) String() string {
	return fmt.Sprintf("if (%s) %s else %s", i.Condition, i.TrueBlock, i.FalseBlock)
}

// New constructs a fresh prototype-less object from keyed initializers,
// evaluated in the enclosing environment in source order. Later duplicate
// keys overwrite earlier ones.
type New struct {
	Keys    []string
	Values  []Expr
	LineNum int
}

func (n *New) Line() int     { return n.LineNum }
func (n *New) IsInstr() bool { return false }
func (n *New) exprNode()     {}
func (n *New) String() string {
	var sb strings.Builder
	sb.WriteString("new { ")
	for i, k := range n.Keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", k, n.Values[i])
	}
	sb.WriteString(" }")
	return sb.String()
}

// FieldAccess reads a property of an object-valued receiver.
type FieldAccess struct {
	Receiver Expr
	Name     string
	LineNum  int
}

func (f *FieldAccess) Line() int      { return f.LineNum }
func (f *FieldAccess) IsInstr() bool  { return false }
func (f *FieldAccess) exprNode()      {}
func (f *FieldAccess) String() string { return fmt.Sprintf("%s.%s", f.Receiver, f.Name) }

// FieldAssignment writes a property of an object-valued receiver.
type FieldAssignment struct {
	Receiver Expr
	Name     string
	Expr     Expr
	LineNum  int
}

func (f *FieldAssignment) Line() int     { return f.LineNum }
func (f *FieldAssignment) IsInstr() bool { return true }
func (f *FieldAssignment) exprNode()     {}
func (f *FieldAssignment) String() string {
	return fmt.Sprintf("%s.%s = %s", f.Receiver, f.Name, f.Expr)
}

// FunCall calls a callee expression with eagerly evaluated arguments. The
// this-binding of a plain call is undefined.
type FunCall struct {
	Qualifier Expr
	Args      []Expr
	LineNum   int
}

func (c *FunCall) Line() int     { return c.LineNum }
func (c *FunCall) IsInstr() bool { return false }
func (c *FunCall) exprNode()     {}
func (c *FunCall) String() string {
	return fmt.Sprintf("%s(%s)", c.Qualifier, joinExprs(c.Args))
}

// MethodCall looks a method up on the receiver and invokes it with the
// receiver as this-binding.
type MethodCall struct {
	Receiver Expr
	Name     string
	Args     []Expr
	LineNum  int
}

func (m *MethodCall) Line() int     { return m.LineNum }
func (m *MethodCall) IsInstr() bool { return false }
func (m *MethodCall) exprNode()     {}
func (m *MethodCall) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.Receiver, m.Name, joinExprs(m.Args))
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
