package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/diag"
	"github.com/zurustar/padscript/pkg/compiler/lexer"
	"github.com/zurustar/padscript/pkg/compiler/token"
)

const phase = "parser"

// Precedence levels for operators.
const (
	_ int = iota
	LOWEST
	OR          // ||
	AND         // &&
	EQUALS      // ==
	LESSGREATER // > or <
	SUM         // +
	PRODUCT     // *
	PREFIX      // -X or !X
	POSTFIX     // x.y, x++, f(X)
)

var precedences = map[token.TokenType]int{
	token.OR:       OR,
	token.AND:      AND,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.LTE:      LESSGREATER,
	token.GT:       LESSGREATER,
	token.GTE:      LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.LPAREN:   POSTFIX,
	token.DOT:      POSTFIX,
	token.INC:      POSTFIX,
	token.DEC:      POSTFIX,
}

// Parser turns preprocessed source into an AST, resolving names and
// checking types as each construct is recognised.
type Parser struct {
	l     *lexer.Lexer
	unit  *ast.Unit
	scope ast.ScopeID

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// bailout carries a fatal diagnostic up to ParseProgram.
type bailout struct {
	d diag.Diagnostic
}

// New creates a parser writing into unit.
func New(l *lexer.Lexer, unit *ast.Unit) *Parser {
	p := &Parser{
		l:     l,
		unit:  unit,
		scope: unit.Global,
	}
	l.SetClassifier(p.isTypeName)

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT_LIT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT_LIT, p.parseFloatLiteral)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.BANG, p.parseUnaryExpression)
	p.registerPrefix(token.MINUS, p.parseUnaryExpression)
	p.registerPrefix(token.PLUS, p.parseUnaryExpression)
	p.registerPrefix(token.INC, p.parsePrefixIncDec)
	p.registerPrefix(token.DEC, p.parsePrefixIncDec)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, t := range []token.TokenType{
		token.OR, token.AND, token.EQ, token.NOT_EQ, token.LT, token.LTE,
		token.GT, token.GTE, token.PLUS, token.MINUS, token.ASTERISK, token.SLASH,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parseAccessExpression)
	p.registerInfix(token.INC, p.parsePostfixIncDec)
	p.registerInfix(token.DEC, p.parsePostfixIncDec)

	return p
}

// Parse parses src into a fresh unit. On a fatal error the unit has no root
// and the error is the last entry of unit.Diags.Errors.
func Parse(src string) *ast.Unit {
	unit := ast.NewUnit()
	New(lexer.New(src), unit).ParseProgram()
	return unit
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// ParseProgram parses the whole unit and stores the root in unit.Root.
func (p *Parser) ParseProgram() (root *ast.Compound) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			p.unit.Diags.Errors = append(p.unit.Diags.Errors, b.d)
			p.unit.Root = nil
			root = nil
		}
	}()

	p.nextToken()
	p.nextToken()

	root = &ast.Compound{Token: p.curToken, Scope: p.unit.Global}
	for !p.curTokenIs(token.EOF) {
		root.Statements = append(root.Statements, p.parseProgramUnit())
		p.nextToken()
	}

	start := token.Position{Line: 1, Column: 1}
	if s, ok := p.unit.Tables.Get(p.unit.Global).Find("idle"); !ok {
		p.unit.Diags.Error(phase, start, "missing idle state")
	} else if _, isState := s.Binding.(*ast.StateDecl); !isState {
		p.unit.Diags.Error(phase, start, `global "idle" symbol is not a state`)
	}

	p.unit.Root = root
	return root
}

func (p *Parser) parseProgramUnit() ast.Node {
	switch p.curToken.Type {
	case token.STRUCT:
		decl := p.parseStructSpecifier()
		p.expectPeek(token.SEMICOLON)
		return decl
	case token.STATE:
		decl := p.parseStateSpecifier()
		p.expectPeek(token.SEMICOLON)
		return decl
	case token.INT, token.FLOAT, token.VOID, token.TYPE_NAME:
		typeTok := p.curToken
		t := p.parseTypeSpecifier()
		p.expectPeek(token.IDENT)
		if p.peekTokenIs(token.LPAREN) {
			fn := &ast.FunctionDecl{}
			p.parseCallable(&fn.CallableDecl, typeTok, t, ast.FunctionKind)
			p.declare(fn.Name, fn, 0)
			return fn
		}
		return p.parseVarDeclRest(typeTok, t)
	}
	p.unexpected()
	return nil
}

// Errors returns the messages of the errors recorded so far.
func (p *Parser) Errors() []string {
	msgs := make([]string, 0, len(p.unit.Diags.Errors))
	for _, d := range p.unit.Diags.Errors {
		msgs = append(msgs, d.Message)
	}
	return msgs
}

// Token plumbing

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	if p.peekToken.Type == token.ILLEGAL {
		panic(bailout{diag.Diagnostic{
			Phase:   "lexer",
			Message: fmt.Sprintf("illegal character %q", p.peekToken.Literal),
			Pos:     p.peekToken.Pos(),
		}})
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) {
	if !p.peekTokenIs(t) {
		p.fatal(p.peekToken.Pos(), "expected next token to be %s, got %s instead", describeType(t), describe(p.peekToken))
	}
	p.nextToken()
}

// expectName accepts an identifier that may already name a type, so that
// a duplicate declaration is reported as such.
func (p *Parser) expectName() {
	if p.peekTokenIs(token.TYPE_NAME) {
		p.nextToken()
		return
	}
	p.expectPeek(token.IDENT)
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) unexpected() {
	p.fatal(p.curToken.Pos(), "unexpected %s", describe(p.curToken))
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", tok.Literal)
}

func describeType(t token.TokenType) string {
	switch t {
	case token.IDENT:
		return "identifier"
	case token.EOF:
		return "end of input"
	}
	if strings.ToUpper(string(t)) == string(t) && len(t) > 2 {
		return strings.ToLower(string(t))
	}
	return fmt.Sprintf("%q", string(t))
}

// Diagnostics

func (p *Parser) fatal(pos token.Position, format string, args ...any) {
	panic(bailout{diag.Diagnostic{Phase: phase, Message: fmt.Sprintf(format, args...), Pos: pos}})
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) {
	p.unit.Diags.Error(phase, pos, format, args...)
}

func (p *Parser) warnf(pos token.Position, format string, args ...any) {
	p.unit.Diags.Warn(phase, pos, format, args...)
}

// Scopes

func (p *Parser) pushScope() ast.ScopeID {
	p.scope = p.unit.Tables.New(p.scope)
	return p.scope
}

func (p *Parser) popScope() *ast.Table {
	t := p.unit.Tables.Get(p.scope)
	p.scope = t.Parent
	return t
}

func (p *Parser) table() *ast.Table {
	return p.unit.Tables.Get(p.scope)
}

func (p *Parser) declare(name string, b ast.Binding, size int) {
	p.table().Add(name, b, size)
}

// checkRedefinition reports a same-scope redefinition or an outer-scope shadowing.
func (p *Parser) checkRedefinition(pos token.Position, name string) {
	if p.unit.Tables.Has(p.scope, name, false) {
		p.errorf(pos, "%q redefined", name)
	} else if p.unit.Tables.Has(p.scope, name, true) {
		p.warnf(pos, "%q shadows variable in outer scope", name)
	}
}

func (p *Parser) isTypeName(name string) bool {
	s, ok := p.unit.Tables.Lookup(p.scope, name)
	if !ok {
		return false
	}
	_, isType := s.Binding.(*ast.TypeName)
	return isType
}

// Declarations

func (p *Parser) parseTypeSpecifier() *ast.Type {
	switch p.curToken.Type {
	case token.INT:
		return ast.Int
	case token.FLOAT:
		return ast.Float
	case token.VOID:
		return ast.Void
	case token.TYPE_NAME:
		s, _ := p.unit.Tables.Lookup(p.scope, p.curToken.Literal)
		return s.Binding.(*ast.TypeName).T
	}
	p.fatal(p.curToken.Pos(), "expected type name, got %s", describe(p.curToken))
	return nil
}

func isTypeStart(t token.TokenType) bool {
	switch t {
	case token.INT, token.FLOAT, token.VOID, token.TYPE_NAME:
		return true
	}
	return false
}

// parseVarDeclRest parses the rest of "type name [= expr];" with curToken on name.
func (p *Parser) parseVarDeclRest(typeTok token.Token, t *ast.Type) *ast.VarDecl {
	nameTok := p.curToken
	pos := typeTok.Pos()

	var init ast.Expr = ast.NewEmpty(nameTok)
	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		init = p.parseExpression(LOWEST)
	}
	p.expectPeek(token.SEMICOLON)

	p.checkRedefinition(pos, nameTok.Literal)
	if t.Kind == ast.VoidKind {
		p.errorf(pos, `cannot declare variable of type "void"`)
		t = ast.Int
	}

	if init.IsRValue() {
		converted, err := ast.EnsureType(t, init)
		if err != nil {
			p.fatal(pos, "%s", err)
		}
		init = converted
	}

	v := &ast.VarDecl{Token: typeTok, Name: nameTok.Literal, T: t, Init: init}
	p.declare(v.Name, v, t.Size())
	return v
}

// parseMemberRest parses the rest of "type name;" inside a struct or a state.
func (p *Parser) parseMemberRest(typeTok token.Token, t *ast.Type) *ast.MemberDecl {
	nameTok := p.curToken
	p.expectPeek(token.SEMICOLON)

	p.checkRedefinition(typeTok.Pos(), nameTok.Literal)
	if t.Kind == ast.VoidKind {
		p.errorf(typeTok.Pos(), `cannot declare member of type "void"`)
		t = ast.Int
	}

	m := &ast.MemberDecl{Token: typeTok, Name: nameTok.Literal, T: t}
	p.declare(m.Name, m, t.Size())
	return m
}

// parseCallable parses "(params) { body }" with curToken on the callable name.
// It leaves the parameter table, of kind ArgsScope, in c.Scope.
func (p *Parser) parseCallable(c *ast.CallableDecl, typeTok token.Token, ret *ast.Type, kind ast.TypeKind) {
	c.Token = typeTok
	c.Name = p.curToken.Literal
	if ret.Kind == ast.StructKind {
		p.errorf(typeTok.Pos(), "cannot return struct %q by value", ret.Name)
		ret = ast.Int
	}
	c.Ret = ret

	p.expectPeek(token.LPAREN)
	c.Scope = p.pushScope()
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
	} else {
		for {
			p.nextToken()
			paramTok := p.curToken
			t := p.parseTypeSpecifier()
			p.expectPeek(token.IDENT)
			name := p.curToken.Literal
			switch t.Kind {
			case ast.VoidKind:
				p.errorf(paramTok.Pos(), `cannot declare parameter of type "void"`)
				t = ast.Int
			case ast.StructKind:
				p.errorf(paramTok.Pos(), "cannot pass struct %q by value", t.Name)
				t = ast.Int
			}
			if p.unit.Tables.Has(p.scope, name, false) {
				p.errorf(paramTok.Pos(), "%q redefined", name)
			}
			param := &ast.Param{Token: paramTok, Name: name, T: t}
			c.Params = append(c.Params, param)
			p.declare(name, param, t.Size())
			if !p.peekTokenIs(token.COMMA) {
				break
			}
			p.nextToken()
		}
		p.expectPeek(token.RPAREN)
	}

	p.expectPeek(token.LBRACE)
	c.Body = p.parseCompoundStatement()

	args := p.popScope()
	args.Kind = ast.ArgsScope
	args.AddSize(ret.Size())
	if kind == ast.MethodKind {
		args.AddSize(ast.NewCallableType(kind, ret, nil).SaveSize())
	}
}

func (p *Parser) parseStructSpecifier() *ast.StructDecl {
	structTok := p.curToken
	p.expectName()
	decl := &ast.StructDecl{Token: structTok, Name: p.curToken.Literal}
	p.expectPeek(token.LBRACE)
	decl.Scope = p.pushScope()

	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		typeTok := p.curToken
		t := p.parseTypeSpecifier()
		p.expectPeek(token.IDENT)
		if p.peekTokenIs(token.LPAREN) {
			m := &ast.MethodDecl{Owner: decl}
			p.parseCallable(&m.CallableDecl, typeTok, t, ast.MethodKind)
			decl.Methods = append(decl.Methods, m)
			p.declare(m.Name, m, 0)
		} else {
			decl.Members = append(decl.Members, p.parseMemberRest(typeTok, t))
		}
		p.nextToken()
	}

	p.popScope().Kind = ast.ThisScope
	if p.unit.Tables.Has(p.scope, decl.Name, false) {
		p.errorf(structTok.Pos(), "duplicate identifier %q", decl.Name)
	}
	decl.T = ast.NewStructType(decl)
	p.declare(decl.Name, &ast.TypeName{T: decl.T}, 0)
	return decl
}

func (p *Parser) parseStateSpecifier() *ast.StateDecl {
	stateTok := p.curToken
	pos := stateTok.Pos()
	p.expectName()
	decl := &ast.StateDecl{Token: stateTok, Name: p.curToken.Literal}
	p.expectPeek(token.LBRACE)
	decl.Scope = p.pushScope()

	var methods []*ast.StateMethodDecl
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if isTypeStart(p.curToken.Type) {
			typeTok := p.curToken
			t := p.parseTypeSpecifier()
			p.expectPeek(token.IDENT)
			decl.Members = append(decl.Members, p.parseMemberRest(typeTok, t))
		} else {
			methods = append(methods, p.parseStateMethod())
		}
		p.nextToken()
	}
	p.popScope().Kind = ast.InheritedScope

	if p.unit.Tables.Has(p.scope, decl.Name, false) {
		p.errorf(pos, "duplicate identifier %q", decl.Name)
	}

	seen := make(map[string]bool)
	for _, m := range methods {
		if seen[m.Name] {
			p.errorf(pos, "duplicate state method name %q in state %q", m.Name, decl.Name)
			continue
		}
		seen[m.Name] = true
		switch m.Name {
		case "enter":
			decl.Enter = m
		case decl.Name:
			decl.Main = m
		default:
			p.errorf(pos, "invalid state method name %q in state %q", m.Name, decl.Name)
		}
	}

	p.declare(decl.Name, decl, 0)
	return decl
}

func (p *Parser) parseStateMethod() *ast.StateMethodDecl {
	if !p.curTokenIs(token.IDENT) {
		p.unexpected()
	}
	m := &ast.StateMethodDecl{}
	m.Token = p.curToken
	m.Name = p.curToken.Literal
	m.Ret = ast.Void
	p.expectPeek(token.LPAREN)
	p.expectPeek(token.RPAREN)
	p.expectPeek(token.LBRACE)

	m.Scope = p.pushScope()
	m.Body = p.parseCompoundStatement()
	p.popScope().Kind = ast.LocalScope

	p.declare(m.Name, m, 0)
	return m
}

// Statements

func (p *Parser) parseCompoundStatement() *ast.Compound {
	c := &ast.Compound{Token: p.curToken}
	c.Scope = p.pushScope()

	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.fatal(p.curToken.Pos(), "expected \"}\", got end of input")
		}
		c.Statements = append(c.Statements, p.parseStatement(true))
		p.nextToken()
	}

	p.popScope().Kind = ast.InheritedScope
	return c
}

func (p *Parser) parseStatement(allowDecl bool) ast.Node {
	tok := p.curToken
	switch tok.Type {
	case token.LBRACE:
		return p.parseCompoundStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.CONTINUE:
		p.expectPeek(token.SEMICOLON)
		return &ast.Continue{Token: tok}
	case token.BREAK:
		p.expectPeek(token.SEMICOLON)
		return &ast.Break{Token: tok}
	case token.YIELD:
		p.expectPeek(token.SEMICOLON)
		return &ast.Yield{Token: tok}
	case token.GO:
		p.expectPeek(token.IDENT)
		target := p.curToken.Literal
		p.expectPeek(token.SEMICOLON)
		return &ast.Go{Token: tok, Target: target}
	case token.RETURN:
		var value ast.Expr = ast.NewEmpty(tok)
		if !p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
			value = p.parseExpression(LOWEST)
		}
		p.expectPeek(token.SEMICOLON)
		return &ast.Return{Token: tok, Value: value}
	case token.INT, token.FLOAT, token.VOID, token.TYPE_NAME:
		if !allowDecl {
			p.fatal(tok.Pos(), "declaration is not allowed here")
		}
		t := p.parseTypeSpecifier()
		p.expectPeek(token.IDENT)
		return p.parseVarDeclRest(tok, t)
	}
	return p.parseExpressionOrAssignment()
}

func (p *Parser) parseIfStatement() *ast.If {
	stmt := &ast.If{Token: p.curToken}
	p.expectPeek(token.LPAREN)
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN)

	if !stmt.Cond.Type().IsNumeric() {
		p.errorf(stmt.Token.Pos(), "cannot use expression of type %q as condition", stmt.Cond.Type().Name)
		stmt.Cond = ast.NewInt(stmt.Token, 0)
	}

	p.nextToken()
	stmt.Then = p.parseStatement(false)
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.Else = p.parseStatement(false)
	}
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.While {
	stmt := &ast.While{Token: p.curToken}
	p.expectPeek(token.LPAREN)
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN)

	converted, err := ast.EnsureType(ast.Int, cond)
	if err != nil {
		p.errorf(stmt.Token.Pos(), "%s", err)
		converted = ast.NewInt(stmt.Token, 0)
	}
	stmt.Cond = converted

	p.nextToken()
	stmt.Body = p.parseStatement(false)
	return stmt
}

func (p *Parser) parseExpressionOrAssignment() ast.Node {
	start := p.curToken
	target := p.parseExpression(LOWEST)

	if !token.IsAssignment(p.peekToken.Type) {
		p.expectPeek(token.SEMICOLON)
		return target
	}

	p.nextToken()
	op := p.curToken.Literal
	p.nextToken()
	value := p.parseExpression(LOWEST)
	p.expectPeek(token.SEMICOLON)

	pos := start.Pos()
	if !target.IsLValue() {
		p.errorf(pos, "assignment target is not an lvalue")
	}
	if !value.IsRValue() {
		p.errorf(pos, "assignment expression is not an rvalue")
		value = ast.NewInt(start, 0)
	}
	converted, err := ast.EnsureType(target.Type(), value)
	if err != nil {
		p.errorf(pos, "%s", err)
		return ast.NewEmpty(start)
	}
	return &ast.Assign{Token: start, Op: op, Target: target, Value: converted}
}

// Expressions

func (p *Parser) parseExpression(precedence int) ast.Expr {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.unexpected()
	}
	left := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		// A call result cannot be accessed, called or incremented.
		if _, isCall := left.(*ast.Call); isCall && p.peekPrecedence() == POSTFIX {
			p.fatal(p.peekToken.Pos(), "unexpected %s after call", describe(p.peekToken))
		}
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
	name := p.curToken.Literal
	s, ok := p.unit.Tables.Lookup(p.scope, name)
	if !ok {
		p.fatal(p.curToken.Pos(), "undeclared identifier %q", name)
	}
	return ast.NewIdentifier(p.curToken, name, s.Binding)
}

func (p *Parser) parseIntegerLiteral() ast.Expr {
	lit := p.curToken.Literal
	var value int64
	var err error
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		value, err = strconv.ParseInt(lit[2:], 16, 64)
	} else {
		value, err = strconv.ParseInt(lit, 10, 64)
	}
	if err != nil {
		p.fatal(p.curToken.Pos(), "could not parse %q as integer", lit)
	}
	return ast.NewInt(p.curToken, value)
}

func (p *Parser) parseFloatLiteral() ast.Expr {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.fatal(p.curToken.Pos(), "could not parse %q as float", p.curToken.Literal)
	}
	return ast.NewFloat(p.curToken, value)
}

func (p *Parser) parseGroupedExpression() ast.Expr {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN)
	return exp
}

func (p *Parser) parseUnaryExpression() ast.Expr {
	tok := p.curToken
	p.nextToken()
	x := p.parseExpression(PREFIX)

	if !x.IsRValue() {
		p.errorf(tok.Pos(), "%q unary operator target is not an rvalue", tok.Literal)
		return x
	}
	if !x.Type().IsNumeric() {
		p.errorf(tok.Pos(), "%q unary operator cannot be applied to type %q", tok.Literal, x.Type().Name)
		return x
	}
	return ast.NewUnary(tok, tok.Literal, x)
}

func (p *Parser) parsePrefixIncDec() ast.Expr {
	tok := p.curToken
	p.nextToken()
	target := p.parseExpression(PREFIX)
	if !target.IsLValue() {
		p.errorf(tok.Pos(), "prefix increment/decrement target is not an lvalue")
	}
	return &ast.PrefixUnary{Token: tok, Op: tok.Literal, Target: target}
}

func (p *Parser) parsePostfixIncDec(target ast.Expr) ast.Expr {
	tok := p.curToken
	if !target.IsLValue() {
		p.errorf(tok.Pos(), "postfix increment/decrement target is not an lvalue")
	}
	return &ast.PostfixUnary{Token: tok, Op: tok.Literal, Target: target}
}

func (p *Parser) parseAccessExpression(target ast.Expr) ast.Expr {
	tok := p.curToken
	p.expectPeek(token.IDENT)
	name := p.curToken.Literal

	t := target.Type()
	if t.Kind != ast.StructKind || !t.HasMember(name) {
		p.errorf(tok.Pos(), "Variable of type %q has no %q member", t.Name, name)
		return ast.NewInt(tok, 0)
	}
	return ast.NewAccess(tok, target, name)
}

func (p *Parser) parseInfixExpression(left ast.Expr) ast.Expr {
	tok := p.curToken
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)

	if !left.IsRValue() {
		p.fatal(tok.Pos(), "left operand of %q is not an rvalue", tok.Literal)
	}
	if !right.IsRValue() {
		p.fatal(tok.Pos(), "right operand of %q is not an rvalue", tok.Literal)
	}

	for _, operand := range []ast.Expr{left, right} {
		if !operand.Type().IsNumeric() {
			p.errorf(tok.Pos(), "operator %q is not defined on type %q", tok.Literal, operand.Type().Name)
			return left
		}
	}

	b, err := ast.NewBinary(tok, tok.Literal, left, right)
	if err != nil {
		p.errorf(tok.Pos(), "%s", err)
		return left
	}
	return b
}

func (p *Parser) parseCallExpression(target ast.Expr) ast.Expr {
	tok := p.curToken
	ftype := target.Type()
	if !ftype.IsCallable() {
		p.fatal(tok.Pos(), "expression of type %q is not callable", ftype.Name)
	}
	if ftype.Kind == ast.StateMethodKind {
		p.fatal(tok.Pos(), "state method %q cannot be called", target.String())
	}

	var args []ast.Expr
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
	} else {
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			args = append(args, p.parseExpression(LOWEST))
		}
		p.expectPeek(token.RPAREN)
	}

	if len(args) != len(ftype.Params) {
		p.fatal(tok.Pos(), "argument count mismatch")
	}
	call, err := ast.NewCall(tok, target, args)
	if err != nil {
		p.fatal(tok.Pos(), "%s", err)
	}
	return call
}
