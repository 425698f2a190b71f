package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `var five = 5;
function add(a, b) { return a + b; }
// a comment to skip
if (five <= 10) { five = five % 3; }
var o = new { x: "hi" };
print(o.x, 1 == 1, 1 != 2, 2 > 1, 2 >= 2, 1 < 2);
`

	expected := []struct {
		typ     TokenType
		literal string
		line    int
	}{
		{VAR, "var", 1}, {IDENT, "five", 1}, {ASSIGN, "=", 1}, {INT, "5", 1}, {SEMICOLON, ";", 1},
		{FUNCTION, "function", 2}, {IDENT, "add", 2}, {LPAREN, "(", 2},
		{IDENT, "a", 2}, {COMMA, ",", 2}, {IDENT, "b", 2}, {RPAREN, ")", 2},
		{LBRACE, "{", 2}, {RETURN, "return", 2}, {IDENT, "a", 2}, {PLUS, "+", 2},
		{IDENT, "b", 2}, {SEMICOLON, ";", 2}, {RBRACE, "}", 2},
		{IF, "if", 4}, {LPAREN, "(", 4}, {IDENT, "five", 4}, {LE, "<=", 4},
		{INT, "10", 4}, {RPAREN, ")", 4}, {LBRACE, "{", 4},
		{IDENT, "five", 4}, {ASSIGN, "=", 4}, {IDENT, "five", 4}, {PERCENT, "%", 4},
		{INT, "3", 4}, {SEMICOLON, ";", 4}, {RBRACE, "}", 4},
		{VAR, "var", 5}, {IDENT, "o", 5}, {ASSIGN, "=", 5}, {NEW, "new", 5},
		{LBRACE, "{", 5}, {IDENT, "x", 5}, {COLON, ":", 5}, {STRING, "hi", 5},
		{RBRACE, "}", 5}, {SEMICOLON, ";", 5},
		{IDENT, "print", 6}, {LPAREN, "(", 6}, {IDENT, "o", 6}, {DOT, ".", 6},
		{IDENT, "x", 6}, {COMMA, ",", 6},
		{INT, "1", 6}, {EQ, "==", 6}, {INT, "1", 6}, {COMMA, ",", 6},
		{INT, "1", 6}, {NOT_EQ, "!=", 6}, {INT, "2", 6}, {COMMA, ",", 6},
		{INT, "2", 6}, {GT, ">", 6}, {INT, "1", 6}, {COMMA, ",", 6},
		{INT, "2", 6}, {GE, ">=", 6}, {INT, "2", 6}, {COMMA, ",", 6},
		{INT, "1", 6}, {LT, "<", 6}, {INT, "2", 6}, {RPAREN, ")", 6},
		{SEMICOLON, ";", 6},
		{EOF, "", 7},
	}

	l := NewLexer(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want.typ {
			t.Fatalf("token %d: type = %q, want %q (literal %q)", i, tok.Type, want.typ, tok.Literal)
		}
		if tok.Literal != want.literal {
			t.Fatalf("token %d: literal = %q, want %q", i, tok.Literal, want.literal)
		}
		if tok.Line != want.line {
			t.Errorf("token %d (%q): line = %d, want %d", i, tok.Literal, tok.Line, want.line)
		}
	}
}

func TestIllegalCharacter(t *testing.T) {
	l := NewLexer("@")
	tok := l.NextToken()
	if tok.Type != ILLEGAL {
		t.Errorf("type = %q, want ILLEGAL", tok.Type)
	}
}

func TestCommentToEndOfFile(t *testing.T) {
	l := NewLexer("1 // trailing")
	if tok := l.NextToken(); tok.Type != INT {
		t.Fatalf("first token = %q", tok.Type)
	}
	if tok := l.NextToken(); tok.Type != EOF {
		t.Errorf("expected EOF after trailing comment, got %q", tok.Type)
	}
}
