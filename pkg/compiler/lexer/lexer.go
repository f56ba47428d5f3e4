package lexer

import (
	"github.com/zurustar/padscript/pkg/compiler/token"
)

// Classifier reports whether an identifier currently names a type.
type Classifier func(name string) bool

// Lexer tokenizes preprocessed action source.
type Lexer struct {
	input        string
	position     int  // current position in input
	readPosition int  // current reading position (after current char)
	ch           byte // current char
	line         int  // current line number
	column       int  // current column number

	isType Classifier
}

// New creates a new Lexer.
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// SetClassifier installs the callback turning identifiers into TYPE_NAME tokens.
func (l *Lexer) SetClassifier(c Classifier) {
	l.isType = c
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	tok.Line = l.line
	tok.Column = l.column

	switch l.ch {
	case '=':
		tok = l.twoCharToken('=', token.EQ, token.ASSIGN)
	case '+':
		if l.peekChar() == '+' {
			tok = l.pairToken(token.INC)
		} else {
			tok = l.twoCharToken('=', token.PLUS_ASSIGN, token.PLUS)
		}
	case '-':
		if l.peekChar() == '-' {
			tok = l.pairToken(token.DEC)
		} else {
			tok = l.twoCharToken('=', token.MINUS_ASSIGN, token.MINUS)
		}
	case '*':
		tok = l.twoCharToken('=', token.MULT_ASSIGN, token.ASTERISK)
	case '/':
		tok = l.twoCharToken('=', token.DIV_ASSIGN, token.SLASH)
	case '!':
		tok = l.twoCharToken('=', token.NOT_EQ, token.BANG)
	case '<':
		tok = l.twoCharToken('=', token.LTE, token.LT)
	case '>':
		tok = l.twoCharToken('=', token.GTE, token.GT)
	case '&':
		tok = l.twoCharToken('&', token.AND, token.ILLEGAL)
	case '|':
		tok = l.twoCharToken('|', token.OR, token.ILLEGAL)
	case '(':
		tok = l.newToken(token.LPAREN, l.ch)
	case ')':
		tok = l.newToken(token.RPAREN, l.ch)
	case '{':
		tok = l.newToken(token.LBRACE, l.ch)
	case '}':
		tok = l.newToken(token.RBRACE, l.ch)
	case ',':
		tok = l.newToken(token.COMMA, l.ch)
	case ';':
		tok = l.newToken(token.SEMICOLON, l.ch)
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber(tok.Line, tok.Column)
		}
		tok = l.newToken(token.DOT, l.ch)
	case 0:
		tok.Literal = ""
		tok.Type = token.EOF
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			if tok.Type == token.IDENT && l.isType != nil && l.isType(tok.Literal) {
				tok.Type = token.TYPE_NAME
			}
			return tok
		} else if isDigit(l.ch) {
			return l.readNumber(tok.Line, tok.Column)
		} else {
			tok = l.newToken(token.ILLEGAL, l.ch)
		}
	}

	l.readChar()
	return tok
}

// twoCharToken returns two if the next character is second, one otherwise.
func (l *Lexer) twoCharToken(second byte, two, one token.TokenType) token.Token {
	if l.peekChar() == second {
		return l.pairToken(two)
	}
	return l.newToken(one, l.ch)
}

// pairToken consumes the current character and returns a token made of it and the next one.
func (l *Lexer) pairToken(t token.TokenType) token.Token {
	line, column := l.line, l.column
	ch := l.ch
	l.readChar()
	return token.Token{Type: t, Literal: string(ch) + string(l.ch), Line: line, Column: column}
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// readIdentifier reads an identifier.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer, hexadecimal or float literal.
func (l *Lexer) readNumber(line, column int) token.Token {
	position := l.position

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar() // consume '0'
		l.readChar() // consume 'x' or 'X'
		for isHexDigit(l.ch) {
			l.readChar()
		}
		literal := l.input[position:l.position]
		if len(literal) == 2 {
			return token.Token{Type: token.ILLEGAL, Literal: literal, Line: line, Column: column}
		}
		return token.Token{Type: token.INT_LIT, Literal: literal, Line: line, Column: column}
	}

	for isDigit(l.ch) {
		l.readChar()
	}

	// A float needs at least one digit after the point.
	if l.ch != '.' || !isDigit(l.peekChar()) {
		return token.Token{Type: token.INT_LIT, Literal: l.input[position:l.position], Line: line, Column: column}
	}
	l.readChar() // consume '.'
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == 'e' || l.ch == 'E' {
		save := l.save()
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			l.restore(save)
		}
	}

	return token.Token{Type: token.FLOAT_LIT, Literal: l.input[position:l.position], Line: line, Column: column}
}

type lexerState struct {
	position, readPosition, line, column int
	ch                                   byte
}

func (l *Lexer) save() lexerState {
	return lexerState{l.position, l.readPosition, l.line, l.column, l.ch}
}

func (l *Lexer) restore(s lexerState) {
	l.position, l.readPosition, l.line, l.column, l.ch = s.position, s.readPosition, s.line, s.column, s.ch
}

// skipWhitespace skips whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// newToken creates a new token.
func (l *Lexer) newToken(tokenType token.TokenType, ch byte) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

// isLetter checks if a character can start an identifier.
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// isDigit checks if a character is a digit.
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// isHexDigit checks if a character is a hexadecimal digit.
func isHexDigit(ch byte) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

// GetSource returns the source code as a string
func (l *Lexer) GetSource() string {
	return l.input
}
