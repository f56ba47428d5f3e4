package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/token"
)

type Node interface {
	TokenLiteral() string
	String() string
	Pos() token.Position
	node()
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	Type() *Type
	IsLValue() bool
	IsRValue() bool
	Tok() token.Token
}

// Callable is implemented by functions, methods and state methods.
type Callable interface {
	Node
	Binding
	Decl() *CallableDecl
}

// Empty stands for a missing expression or statement.
type Empty struct {
	Token token.Token
}

func NewEmpty(tok token.Token) *Empty { return &Empty{Token: tok} }

func (e *Empty) Type() *Type    { return Void }
func (e *Empty) IsLValue() bool { return false }
func (e *Empty) IsRValue() bool { return false }
func (e *Empty) String() string { return "" }

// Constant is an int or float literal.
type Constant struct {
	Token   token.Token
	IsFloat bool
	Int     int64
	Float   float64
}

func NewInt(tok token.Token, v int64) *Constant { return &Constant{Token: tok, Int: v} }

func NewFloat(tok token.Token, v float64) *Constant {
	return &Constant{Token: tok, IsFloat: true, Float: v}
}

func (c *Constant) Type() *Type {
	if c.IsFloat {
		return Float
	}
	return Int
}

func (c *Constant) IsLValue() bool { return false }
func (c *Constant) IsRValue() bool { return true }

// Value returns the constant as a float64 regardless of its type.
func (c *Constant) Value() float64 {
	if c.IsFloat {
		return c.Float
	}
	return float64(c.Int)
}

// Convert returns a copy of the constant with type t. Float to int truncates.
func (c *Constant) Convert(t *Type) *Constant {
	if t.Kind == FloatKind {
		return NewFloat(c.Token, c.Value())
	}
	if c.IsFloat {
		return NewInt(c.Token, int64(c.Float))
	}
	return NewInt(c.Token, c.Int)
}

func (c *Constant) String() string {
	if c.IsFloat {
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(c.Int, 10)
}

// Identifier is a name resolved to its binding at parse time.
type Identifier struct {
	Token   token.Token
	Name    string
	Binding Binding
}

func NewIdentifier(tok token.Token, name string, b Binding) *Identifier {
	return &Identifier{Token: tok, Name: name, Binding: b}
}

func (i *Identifier) Type() *Type    { return i.Binding.Type() }
func (i *Identifier) IsLValue() bool { return IsLValueBinding(i.Binding) }
func (i *Identifier) IsRValue() bool { return IsRValueBinding(i.Binding) }
func (i *Identifier) String() string { return i.Name }

// PostfixUnary is x++ or x--.
type PostfixUnary struct {
	Token  token.Token
	Op     string
	Target Expr
}

func (p *PostfixUnary) Type() *Type    { return p.Target.Type() }
func (p *PostfixUnary) IsLValue() bool { return false }
func (p *PostfixUnary) IsRValue() bool { return true }
func (p *PostfixUnary) String() string { return "(" + p.Target.String() + p.Op + ")" }

// PrefixUnary is ++x or --x.
type PrefixUnary struct {
	Token  token.Token
	Op     string
	Target Expr
}

func (p *PrefixUnary) Type() *Type    { return p.Target.Type() }
func (p *PrefixUnary) IsLValue() bool { return false }
func (p *PrefixUnary) IsRValue() bool { return true }
func (p *PrefixUnary) String() string { return "(" + p.Op + p.Target.String() + ")" }

// Unary is -x, +x, !x or one of the implicit casts casti and castf.
type Unary struct {
	Token token.Token
	Op    string
	X     Expr
}

func NewUnary(tok token.Token, op string, x Expr) *Unary {
	return &Unary{Token: tok, Op: op, X: x}
}

func (u *Unary) Type() *Type {
	switch u.Op {
	case "casti":
		return Int
	case "castf":
		return Float
	}
	return u.X.Type()
}

func (u *Unary) IsLValue() bool { return false }
func (u *Unary) IsRValue() bool { return true }

func (u *Unary) String() string {
	if u.Op == "casti" || u.Op == "castf" {
		return u.Op + "(" + u.X.String() + ")"
	}
	return "(" + u.Op + u.X.String() + ")"
}

// Binary is an arithmetic, comparison or logical operation. Both operands
// have already been converted to T.
type Binary struct {
	Token token.Token
	Op    string
	X     Expr
	Y     Expr
	T     *Type
}

// NewBinary builds a binary node, converting both operands to their common type.
func NewBinary(tok token.Token, op string, x, y Expr) (*Binary, error) {
	t, err := MaxType(x.Type(), y.Type())
	if err != nil {
		return nil, err
	}
	if x, err = EnsureType(t, x); err != nil {
		return nil, err
	}
	if y, err = EnsureType(t, y); err != nil {
		return nil, err
	}
	return &Binary{Token: tok, Op: op, X: x, Y: y, T: t}, nil
}

func (b *Binary) Type() *Type    { return b.T }
func (b *Binary) IsLValue() bool { return false }
func (b *Binary) IsRValue() bool { return true }

func (b *Binary) String() string {
	return "(" + b.X.String() + " " + b.Op + " " + b.Y.String() + ")"
}

// Call invokes a function or a method. Arguments are converted to the
// parameter types.
type Call struct {
	Token  token.Token
	Target Expr
	Args   []Expr
}

// NewCall builds a call node. The caller has checked the argument count.
func NewCall(tok token.Token, target Expr, args []Expr) (*Call, error) {
	params := target.Type().Params
	converted := make([]Expr, 0, len(args))
	for i, arg := range args {
		a, err := EnsureType(params[i], arg)
		if err != nil {
			return nil, err
		}
		converted = append(converted, a)
	}
	return &Call{Token: tok, Target: target, Args: converted}, nil
}

func (c *Call) Type() *Type    { return c.Target.Type().Return }
func (c *Call) IsLValue() bool { return false }
func (c *Call) IsRValue() bool { return c.Type().Kind != VoidKind }

func (c *Call) String() string {
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		args = append(args, a.String())
	}
	return c.Target.String() + "(" + strings.Join(args, ", ") + ")"
}

// Callee returns the function or method invoked by the call, or nil.
func (c *Call) Callee() Callable {
	switch t := c.Target.(type) {
	case *Identifier:
		if fn, ok := t.Binding.(Callable); ok {
			return fn
		}
	case *Access:
		if typ := t.Target.Type(); typ != nil && typ.Kind == StructKind {
			for _, m := range typ.Struct.Methods {
				if m.Name == t.Name {
					return m
				}
			}
		}
	}
	return nil
}

// Access is a struct member access, target.name.
type Access struct {
	Token  token.Token
	Target Expr
	Name   string
}

func NewAccess(tok token.Token, target Expr, name string) *Access {
	return &Access{Token: tok, Target: target, Name: name}
}

func (a *Access) Type() *Type    { return a.Target.Type().MemberType(a.Name) }
func (a *Access) IsLValue() bool { return a.Type().IsNumeric() }
func (a *Access) IsRValue() bool { return a.Target.IsRValue() }
func (a *Access) String() string { return a.Target.String() + "." + a.Name }

// VarDecl declares a variable with an optional initialiser.
type VarDecl struct {
	Token token.Token
	Name  string
	T     *Type
	Init  Expr // *Empty when absent
}

func (v *VarDecl) Type() *Type { return v.T }

func (v *VarDecl) String() string {
	if v.Init.IsRValue() {
		return v.T.Name + " " + v.Name + " = " + v.Init.String() + ";"
	}
	return v.T.Name + " " + v.Name + ";"
}

// MemberDecl is a struct or state member.
type MemberDecl struct {
	Token token.Token
	Name  string
	T     *Type
}

func (m *MemberDecl) Type() *Type    { return m.T }
func (m *MemberDecl) String() string { return m.T.Name + " " + m.Name + ";" }

// Param is a callable parameter.
type Param struct {
	Token token.Token
	Name  string
	T     *Type
}

func (p *Param) Type() *Type    { return p.T }
func (p *Param) String() string { return p.T.Name + " " + p.Name }

// Builtin is a register-mapped controller variable.
type Builtin struct {
	Name     string
	T        *Type
	ReadOnly bool
}

func (b *Builtin) Type() *Type { return b.T }

// StructDecl declares a struct type.
type StructDecl struct {
	Token   token.Token
	Name    string
	Members []*MemberDecl
	Methods []*MethodDecl
	Scope   ScopeID
	T       *Type
}

func (s *StructDecl) String() string {
	var out bytes.Buffer
	out.WriteString("struct " + s.Name + " {")
	for _, m := range s.Members {
		out.WriteString(" " + m.String())
	}
	for _, m := range s.Methods {
		out.WriteString(" " + m.String())
	}
	out.WriteString(" };")
	return out.String()
}

// StateDecl declares a state with an optional enter method and a recurring body.
type StateDecl struct {
	Token   token.Token
	Name    string
	Members []*MemberDecl
	Enter   *StateMethodDecl // nil when absent
	Main    *StateMethodDecl // nil when absent
	Scope   ScopeID
}

func (s *StateDecl) Type() *Type { return State }

func (s *StateDecl) String() string {
	var out bytes.Buffer
	out.WriteString("state " + s.Name + " {")
	for _, m := range s.Members {
		out.WriteString(" " + m.String())
	}
	if s.Enter != nil {
		out.WriteString(" " + s.Enter.String())
	}
	if s.Main != nil {
		out.WriteString(" " + s.Main.String())
	}
	out.WriteString(" };")
	return out.String()
}

// If is a conditional statement.
type If struct {
	Token token.Token
	Cond  Expr
	Then  Node
	Else  Node // nil when absent
}

func (i *If) String() string {
	s := "if (" + i.Cond.String() + ") " + i.Then.String()
	if i.Else != nil {
		s += " else " + i.Else.String()
	}
	return s
}

// While is a loop. Its condition is converted to int.
type While struct {
	Token token.Token
	Cond  Expr
	Body  Node
}

func (w *While) String() string {
	return "while (" + w.Cond.String() + ") " + w.Body.String()
}

// Assign is target op value; with op one of = *= /= += -=.
type Assign struct {
	Token  token.Token
	Op     string
	Target Expr
	Value  Expr
}

func (a *Assign) String() string {
	return a.Target.String() + " " + a.Op + " " + a.Value.String() + ";"
}

type Continue struct {
	Token token.Token
}

func (c *Continue) String() string { return "continue;" }

type Break struct {
	Token token.Token
}

func (b *Break) String() string { return "break;" }

type Yield struct {
	Token token.Token
}

func (y *Yield) String() string { return "yield;" }

// Go switches the running state.
type Go struct {
	Token  token.Token
	Target string
	State  *StateDecl // resolved by the return checker
}

func (g *Go) String() string { return "go " + g.Target + ";" }

// Return leaves the enclosing function or method.
type Return struct {
	Token token.Token
	Value Expr     // *Empty when absent
	Func  Callable // resolved by the return checker
}

func (r *Return) String() string {
	if r.Value.IsRValue() {
		return "return " + r.Value.String() + ";"
	}
	return "return;"
}

// CallableDecl holds what functions, methods and state methods share.
type CallableDecl struct {
	Token  token.Token
	Name   string
	Ret    *Type
	Params []*Param
	Body   *Compound
	Scope  ScopeID
}

func (c *CallableDecl) Decl() *CallableDecl { return c }

func (c *CallableDecl) paramTypes() []*Type {
	types := make([]*Type, 0, len(c.Params))
	for _, p := range c.Params {
		types = append(types, p.T)
	}
	return types
}

func (c *CallableDecl) String() string {
	params := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		params = append(params, p.String())
	}
	return c.Ret.Name + " " + c.Name + "(" + strings.Join(params, ", ") + ") " + c.Body.String()
}

type FunctionDecl struct {
	CallableDecl
}

func (f *FunctionDecl) Type() *Type {
	return NewCallableType(FunctionKind, f.Ret, f.paramTypes())
}

type MethodDecl struct {
	CallableDecl
	Owner *StructDecl
}

func (m *MethodDecl) Type() *Type {
	return NewCallableType(MethodKind, m.Ret, m.paramTypes())
}

type StateMethodDecl struct {
	CallableDecl
}

func (s *StateMethodDecl) Type() *Type {
	return NewCallableType(StateMethodKind, Void, nil)
}

// Compound is a braced block, or the whole program for the global scope.
type Compound struct {
	Token      token.Token
	Statements []Node
	Scope      ScopeID
}

func (c *Compound) String() string {
	var out bytes.Buffer
	out.WriteString("{")
	for _, s := range c.Statements {
		out.WriteString(" " + s.String())
	}
	out.WriteString(" }")
	return out.String()
}

// Node plumbing.

func (e *Empty) node()                {}
func (e *Empty) TokenLiteral() string { return e.Token.Literal }
func (e *Empty) Pos() token.Position  { return e.Token.Pos() }
func (e *Empty) Tok() token.Token     { return e.Token }

func (c *Constant) node()                {}
func (c *Constant) TokenLiteral() string { return c.Token.Literal }
func (c *Constant) Pos() token.Position  { return c.Token.Pos() }
func (c *Constant) Tok() token.Token     { return c.Token }

func (i *Identifier) node()                {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) Pos() token.Position  { return i.Token.Pos() }
func (i *Identifier) Tok() token.Token     { return i.Token }

func (p *PostfixUnary) node()                {}
func (p *PostfixUnary) TokenLiteral() string { return p.Token.Literal }
func (p *PostfixUnary) Pos() token.Position  { return p.Token.Pos() }
func (p *PostfixUnary) Tok() token.Token     { return p.Token }

func (p *PrefixUnary) node()                {}
func (p *PrefixUnary) TokenLiteral() string { return p.Token.Literal }
func (p *PrefixUnary) Pos() token.Position  { return p.Token.Pos() }
func (p *PrefixUnary) Tok() token.Token     { return p.Token }

func (u *Unary) node()                {}
func (u *Unary) TokenLiteral() string { return u.Token.Literal }
func (u *Unary) Pos() token.Position  { return u.Token.Pos() }
func (u *Unary) Tok() token.Token     { return u.Token }

func (b *Binary) node()                {}
func (b *Binary) TokenLiteral() string { return b.Token.Literal }
func (b *Binary) Pos() token.Position  { return b.Token.Pos() }
func (b *Binary) Tok() token.Token     { return b.Token }

func (c *Call) node()                {}
func (c *Call) TokenLiteral() string { return c.Token.Literal }
func (c *Call) Pos() token.Position  { return c.Token.Pos() }
func (c *Call) Tok() token.Token     { return c.Token }

func (a *Access) node()                {}
func (a *Access) TokenLiteral() string { return a.Token.Literal }
func (a *Access) Pos() token.Position  { return a.Token.Pos() }
func (a *Access) Tok() token.Token     { return a.Token }

func (v *VarDecl) node()                {}
func (v *VarDecl) TokenLiteral() string { return v.Token.Literal }
func (v *VarDecl) Pos() token.Position  { return v.Token.Pos() }

func (m *MemberDecl) node()                {}
func (m *MemberDecl) TokenLiteral() string { return m.Token.Literal }
func (m *MemberDecl) Pos() token.Position  { return m.Token.Pos() }

func (p *Param) node()                {}
func (p *Param) TokenLiteral() string { return p.Token.Literal }
func (p *Param) Pos() token.Position  { return p.Token.Pos() }

func (s *StructDecl) node()                {}
func (s *StructDecl) TokenLiteral() string { return s.Token.Literal }
func (s *StructDecl) Pos() token.Position  { return s.Token.Pos() }

func (s *StateDecl) node()                {}
func (s *StateDecl) TokenLiteral() string { return s.Token.Literal }
func (s *StateDecl) Pos() token.Position  { return s.Token.Pos() }

func (i *If) node()                {}
func (i *If) TokenLiteral() string { return i.Token.Literal }
func (i *If) Pos() token.Position  { return i.Token.Pos() }

func (w *While) node()                {}
func (w *While) TokenLiteral() string { return w.Token.Literal }
func (w *While) Pos() token.Position  { return w.Token.Pos() }

func (a *Assign) node()                {}
func (a *Assign) TokenLiteral() string { return a.Token.Literal }
func (a *Assign) Pos() token.Position  { return a.Token.Pos() }

func (c *Continue) node()                {}
func (c *Continue) TokenLiteral() string { return c.Token.Literal }
func (c *Continue) Pos() token.Position  { return c.Token.Pos() }

func (b *Break) node()                {}
func (b *Break) TokenLiteral() string { return b.Token.Literal }
func (b *Break) Pos() token.Position  { return b.Token.Pos() }

func (y *Yield) node()                {}
func (y *Yield) TokenLiteral() string { return y.Token.Literal }
func (y *Yield) Pos() token.Position  { return y.Token.Pos() }

func (g *Go) node()                {}
func (g *Go) TokenLiteral() string { return g.Token.Literal }
func (g *Go) Pos() token.Position  { return g.Token.Pos() }

func (r *Return) node()                {}
func (r *Return) TokenLiteral() string { return r.Token.Literal }
func (r *Return) Pos() token.Position  { return r.Token.Pos() }

func (c *CallableDecl) node()                {}
func (c *CallableDecl) TokenLiteral() string { return c.Token.Literal }
func (c *CallableDecl) Pos() token.Position  { return c.Token.Pos() }

func (c *Compound) node()                {}
func (c *Compound) TokenLiteral() string { return c.Token.Literal }
func (c *Compound) Pos() token.Position  { return c.Token.Pos() }
