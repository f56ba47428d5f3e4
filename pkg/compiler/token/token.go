package token

import "fmt"

type TokenType string

// Position is a 1-based source location.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// Pos returns the token position.
func (t Token) Pos() Position {
	return Position{Line: t.Line, Column: t.Column}
}

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + Literals
	IDENT     = "IDENT"     // speed, LPadX
	TYPE_NAME = "TYPE_NAME" // Counter, once struct Counter {...}; is declared
	INT_LIT   = "INT_LIT"   // 123, 0xff
	FLOAT_LIT = "FLOAT_LIT" // 1.5, .25e-1

	// Operators and Delimiters
	ASSIGN       = "="
	MULT_ASSIGN  = "*="
	DIV_ASSIGN   = "/="
	PLUS_ASSIGN  = "+="
	MINUS_ASSIGN = "-="
	PLUS         = "+"
	MINUS        = "-"
	ASTERISK     = "*"
	SLASH        = "/"
	INC          = "++"
	DEC          = "--"
	COMMA        = ","
	SEMICOLON    = ";"
	DOT          = "."
	LPAREN       = "("
	RPAREN       = ")"
	LBRACE       = "{"
	RBRACE       = "}"

	BANG   = "!"
	EQ     = "=="
	NOT_EQ = "!="
	LT     = "<"
	GT     = ">"
	LTE    = "<="
	GTE    = ">="
	AND    = "&&"
	OR     = "||"

	// Keywords
	INT      = "INT"
	FLOAT    = "FLOAT"
	VOID     = "VOID"
	STRUCT   = "STRUCT"
	STATE    = "STATE"
	YIELD    = "YIELD"
	IF       = "IF"
	ELSE     = "ELSE"
	WHILE    = "WHILE"
	RETURN   = "RETURN"
	GO       = "GO"
	BREAK    = "BREAK"
	CONTINUE = "CONTINUE"
)

var keywords = map[string]TokenType{
	"int":      INT,
	"float":    FLOAT,
	"void":     VOID,
	"struct":   STRUCT,
	"state":    STATE,
	"yield":    YIELD,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"return":   RETURN,
	"go":       GO,
	"break":    BREAK,
	"continue": CONTINUE,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsAssignment reports whether t is one of the assignment operators.
func IsAssignment(t TokenType) bool {
	switch t {
	case ASSIGN, MULT_ASSIGN, DIV_ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN:
		return true
	}
	return false
}
