// Package parser turns tokens into the closed AST node set. Binary
// operators parse into calls of the same-named builtin function, which is
// how the language defines them.
package parser

import (
	"fmt"
	"strconv"

	"smallscript/pkg/ast"
	"smallscript/pkg/errors"
	"smallscript/pkg/lexer"
)

// Operator precedence levels.
const (
	_ int = iota
	LOWEST
	EQUALS      // == !=
	LESSGREATER // < <= > >=
	SUM         // + -
	PRODUCT     // * / %
	CALL        // f(x) o.f
)

var precedences = map[lexer.TokenType]int{
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.LE:       LESSGREATER,
	lexer.GE:       LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.ASTERISK: PRODUCT,
	lexer.SLASH:    PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LPAREN:   CALL,
	lexer.DOT:      CALL,
}

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// Parser builds an AST from a token stream.
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errs      []*errors.SyntaxError

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// NewParser creates a parser over the given lexer.
func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = map[lexer.TokenType]prefixParseFn{
		lexer.IDENT:    p.parseIdentifier,
		lexer.INT:      p.parseIntegerLiteral,
		lexer.STRING:   p.parseStringLiteral,
		lexer.LPAREN:   p.parseGroupedExpression,
		lexer.FUNCTION: p.parseFunctionLiteral,
		lexer.NEW:      p.parseNewExpression,
	}
	p.infixParseFns = map[lexer.TokenType]infixParseFn{
		lexer.PLUS:     p.parseBinaryExpression,
		lexer.MINUS:    p.parseBinaryExpression,
		lexer.ASTERISK: p.parseBinaryExpression,
		lexer.SLASH:    p.parseBinaryExpression,
		lexer.PERCENT:  p.parseBinaryExpression,
		lexer.EQ:       p.parseBinaryExpression,
		lexer.NOT_EQ:   p.parseBinaryExpression,
		lexer.LT:       p.parseBinaryExpression,
		lexer.GT:       p.parseBinaryExpression,
		lexer.LE:       p.parseBinaryExpression,
		lexer.GE:       p.parseBinaryExpression,
		lexer.LPAREN:   p.parseCallExpression,
		lexer.DOT:      p.parseFieldExpression,
	}

	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

// Parse consumes the whole input and returns the script, or the first
// syntax error encountered.
func Parse(src string) (*ast.Script, error) {
	p := NewParser(lexer.NewLexer(src))
	script := p.parseScript()
	if len(p.errs) > 0 {
		return nil, p.errs[0]
	}
	return script, nil
}

func (p *Parser) parseScript() *ast.Script {
	block := &ast.Block{LineNum: 1}
	for !p.curTokenIs(lexer.EOF) && len(p.errs) == 0 {
		if stmt := p.parseStatement(); stmt != nil {
			block.Instrs = append(block.Instrs, stmt)
		}
		p.nextToken()
	}
	return &ast.Script{Body: block}
}

func (p *Parser) parseStatement() ast.Expr {
	switch {
	case p.curTokenIs(lexer.VAR):
		return p.parseVarStatement()
	case p.curTokenIs(lexer.RETURN):
		return p.parseReturnStatement()
	case p.curTokenIs(lexer.IF):
		return p.parseIfStatement()
	case p.curTokenIs(lexer.IDENT) && p.peekTokenIs(lexer.ASSIGN):
		return p.parseAssignStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// var x = e;
func (p *Parser) parseVarStatement() ast.Expr {
	line := p.curToken.Line
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek(lexer.ASSIGN) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	p.skipSemicolon()
	return &ast.LocalVarAssignment{Name: name, Expr: value, Declaration: true, LineNum: line}
}

// x = e;
func (p *Parser) parseAssignStatement() ast.Expr {
	line := p.curToken.Line
	name := p.curToken.Literal
	p.nextToken() // onto '='
	p.nextToken()
	value := p.parseExpression(LOWEST)
	p.skipSemicolon()
	return &ast.LocalVarAssignment{Name: name, Expr: value, Declaration: false, LineNum: line}
}

// return e;
func (p *Parser) parseReturnStatement() ast.Expr {
	line := p.curToken.Line
	p.nextToken()
	value := p.parseExpression(LOWEST)
	p.skipSemicolon()
	return &ast.Return{Expr: value, LineNum: line}
}

// if (cond) { ... } else { ... }; the else arm is optional and defaults
// to an empty block.
func (p *Parser) parseIfStatement() ast.Expr {
	line := p.curToken.Line
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	trueBlock := p.parseBlock()
	falseBlock := &ast.Block{LineNum: p.curToken.Line}
	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		if !p.expectPeek(lexer.LBRACE) {
			return nil
		}
		falseBlock = p.parseBlock()
	}
	return &ast.If{Condition: cond, TrueBlock: trueBlock, FalseBlock: falseBlock, LineNum: line}
}

// parseExpressionStatement also recognizes field assignment, which is only
// legal in statement position: e.name = value;
func (p *Parser) parseExpressionStatement() ast.Expr {
	expr := p.parseExpression(LOWEST)
	if field, ok := expr.(*ast.FieldAccess); ok && p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken() // onto '='
		line := p.curToken.Line
		p.nextToken()
		value := p.parseExpression(LOWEST)
		p.skipSemicolon()
		return &ast.FieldAssignment{Receiver: field.Receiver, Name: field.Name, Expr: value, LineNum: line}
	}
	p.skipSemicolon()
	return expr
}

// parseBlock parses statements between the current '{' and its '}'.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{LineNum: p.curToken.Line}
	p.nextToken()
	for !p.curTokenIs(lexer.RBRACE) && !p.curTokenIs(lexer.EOF) && len(p.errs) == 0 {
		if stmt := p.parseStatement(); stmt != nil {
			block.Instrs = append(block.Instrs, stmt)
		}
		p.nextToken()
	}
	if p.curTokenIs(lexer.EOF) {
		p.addError(p.curToken.Line, "unterminated block, expected }")
	}
	return block
}

func (p *Parser) parseExpression(precedence int) ast.Expr {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError(p.curToken.Line, fmt.Sprintf("unexpected token %s", p.curToken.Type))
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() && len(p.errs) == 0 {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expr {
	return &ast.LocalVarAccess{Name: p.curToken.Literal, LineNum: p.curToken.Line}
}

func (p *Parser) parseIntegerLiteral() ast.Expr {
	n, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.addError(p.curToken.Line, fmt.Sprintf("could not parse %q as integer", p.curToken.Literal))
		return nil
	}
	return &ast.Literal{Value: n, LineNum: p.curToken.Line}
}

func (p *Parser) parseStringLiteral() ast.Expr {
	return &ast.Literal{Value: p.curToken.Literal, LineNum: p.curToken.Line}
}

func (p *Parser) parseGroupedExpression() ast.Expr {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return expr
}

// a + b parses into a call of the builtin function named "+".
func (p *Parser) parseBinaryExpression(left ast.Expr) ast.Expr {
	op := p.curToken.Literal
	line := p.curToken.Line
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	return &ast.FunCall{
		Qualifier: &ast.LocalVarAccess{Name: op, LineNum: line},
		Args:      []ast.Expr{left, right},
		LineNum:   line,
	}
}

// parseCallExpression handles f(args) and, when the callee is a field
// access, o.m(args) as a method call with o as receiver.
func (p *Parser) parseCallExpression(callee ast.Expr) ast.Expr {
	line := p.curToken.Line
	args := p.parseExpressionList(lexer.RPAREN)
	if field, ok := callee.(*ast.FieldAccess); ok {
		return &ast.MethodCall{Receiver: field.Receiver, Name: field.Name, Args: args, LineNum: line}
	}
	return &ast.FunCall{Qualifier: callee, Args: args, LineNum: line}
}

func (p *Parser) parseFieldExpression(receiver ast.Expr) ast.Expr {
	line := p.curToken.Line
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	return &ast.FieldAccess{Receiver: receiver, Name: p.curToken.Literal, LineNum: line}
}

// function name(params) { ... }; the name is optional.
func (p *Parser) parseFunctionLiteral() ast.Expr {
	line := p.curToken.Line
	name := ""
	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		name = p.curToken.Literal
	}
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	params := p.parseParameters()
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	return &ast.Fun{Name: name, Parameters: params, Body: body, LineNum: line}
}

func (p *Parser) parseParameters() []string {
	params := []string{}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, p.curToken.Literal)
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, p.curToken.Literal)
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return params
}

// new { k: e, ... }
func (p *Parser) parseNewExpression() ast.Expr {
	line := p.curToken.Line
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	node := &ast.New{LineNum: line}
	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		key := p.curToken.Literal
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		node.Keys = append(node.Keys, key)
		node.Values = append(node.Values, p.parseExpression(LOWEST))
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken() // onto '}'
	return node
}

func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expr {
	list := []ast.Expr{}
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}

// --- token helpers ---

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(p.peekToken.Line, fmt.Sprintf("expected %s, got %s", t, p.peekToken.Type))
	return false
}

func (p *Parser) skipSemicolon() {
	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) addError(line int, msg string) {
	p.errs = append(p.errs, &errors.SyntaxError{
		Position: errors.Position{Line: line},
		Msg:      msg,
	})
}
