// Package ic lowers the checked AST into intermediate code: a flat list of
// three-address operations over variables, temporaries and constants, with
// labels in place of structured control flow.
package ic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/ast"
)

// Operand is a value read or written by an operation.
type Operand interface {
	Type() *ast.Type
	String() string
	operand()
}

// Var is a declared variable, member, parameter or builtin.
type Var struct {
	Name    string
	Binding ast.Binding
}

func (v Var) Type() *ast.Type { return v.Binding.Type() }
func (v Var) String() string  { return v.Name }

// Temp is a compiler-generated variable. Its storage is added to the table
// of the scope it was created in.
type Temp struct {
	ID int
	T  *ast.Type
}

func (t *Temp) Type() *ast.Type { return t.T }
func (t *Temp) String() string  { return "var_" + strconv.Itoa(t.ID) }

// Const is an int or float literal.
type Const struct {
	IsFloat bool
	Int     int64
	Float   float64
}

func (c Const) Type() *ast.Type {
	if c.IsFloat {
		return ast.Float
	}
	return ast.Int
}

func (c Const) String() string {
	if c.IsFloat {
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(c.Int, 10)
}

// Retval is the return slot of the callable just called, in the caller's frame.
type Retval struct {
	Func ast.Callable
}

func (r Retval) Type() *ast.Type { return r.Func.Decl().Ret }
func (r Retval) String() string  { return "retval" }

// Member is a field path rooted at a struct variable, like a.b.c.
type Member struct {
	Root Var
	Path string // dot separated field names
	T    *ast.Type
}

func (m Member) Type() *ast.Type { return m.T }
func (m Member) String() string  { return m.Root.Name + "." + m.Path }

// Fields returns the field names of the path.
func (m Member) Fields() []string { return strings.Split(m.Path, ".") }

// This is the receiver of the method being compiled.
type This struct {
	T *ast.Type
}

func (t This) Type() *ast.Type { return t.T }
func (t This) String() string  { return "this" }

func (Var) operand()    {}
func (*Temp) operand()  {}
func (Const) operand()  {}
func (Retval) operand() {}
func (Member) operand() {}
func (This) operand()   {}

// LabelKind tells the code generator what a label stands for.
type LabelKind int

const (
	PlainLabel LabelKind = iota
	CallableLabel
	StateEnterLabel
	CompoundStartLabel
	CompoundEndLabel
)

// Op is one intermediate operation.
type Op interface {
	String() string
	op()
}

// Label marks a jump target. Scope is the table whose frame a state-enter
// or compound label reserves or releases.
type Label struct {
	ID    int
	Kind  LabelKind
	Scope ast.ScopeID
	Name  string
}

// LineMarker records the source line of the operations that follow.
type LineMarker struct {
	Line int
}

// UnaryOp is Dst = Op X, with Op one of - ! casti castf.
type UnaryOp struct {
	Scope ast.ScopeID
	Dst   Operand
	Op    string
	X     Operand
}

// BinaryOp is Dst = X Op Y.
type BinaryOp struct {
	Scope ast.ScopeID
	Dst   Operand
	Op    string
	X     Operand
	Y     Operand
}

// Assign is Dst = Src.
type Assign struct {
	Scope ast.ScopeID
	Dst   Operand
	Src   Operand
}

// Return stores Value, if any, in the return slot and leaves Func.
type Return struct {
	Scope ast.ScopeID
	Func  ast.Callable
	Value Operand
}

// IfFalse jumps to Target when Cond is zero.
type IfFalse struct {
	Scope  ast.ScopeID
	Cond   Operand
	Target int
}

// Jump continues at Target.
type Jump struct {
	Target int
}

// Exit jumps to Target out of the blocks nested between Scope and Outer,
// releasing their frames. Break and continue lower to it.
type Exit struct {
	Scope  ast.ScopeID
	Outer  ast.ScopeID
	Target int
}

// Arg pushes a call argument.
type Arg struct {
	Scope ast.ScopeID
	Value Operand
}

// FunctionCall calls a function. Target is resolved once every callable has a label.
type FunctionCall struct {
	Func   *ast.FunctionDecl
	Target int
}

// MethodCall calls Method with Receiver as its instance.
type MethodCall struct {
	Scope    ast.ScopeID
	Receiver Operand
	Method   *ast.MethodDecl
	Target   int
}

// Yield suspends the action until the next tick.
type Yield struct{}

// Go switches to State, discarding every frame but the global one.
type Go struct {
	Scope  ast.ScopeID
	State  *ast.StateDecl
	Target int
}

func (l *Label) String() string {
	if l.Name != "" {
		return fmt.Sprintf("label_%d: ; %s", l.ID, l.Name)
	}
	return fmt.Sprintf("label_%d:", l.ID)
}

func (l *LineMarker) String() string { return fmt.Sprintf("# %d", l.Line) }

func (o *UnaryOp) String() string {
	return fmt.Sprintf("\t%s <- %s %s", o.Dst, o.Op, o.X)
}

func (o *BinaryOp) String() string {
	return fmt.Sprintf("\t%s <- %s %s %s", o.Dst, o.X, o.Op, o.Y)
}

func (o *Assign) String() string { return fmt.Sprintf("\t%s <- %s", o.Dst, o.Src) }

func (o *Return) String() string {
	if o.Value == nil {
		return "\tret"
	}
	return "\tret " + o.Value.String()
}

func (o *IfFalse) String() string { return fmt.Sprintf("\tifz %s label_%d", o.Cond, o.Target) }
func (o *Jump) String() string    { return fmt.Sprintf("\tjmp label_%d", o.Target) }
func (o *Exit) String() string    { return fmt.Sprintf("\texit label_%d", o.Target) }
func (o *Arg) String() string     { return "\targ " + o.Value.String() }

func (o *FunctionCall) String() string {
	return fmt.Sprintf("\tfcall %s label_%d", o.Func.Name, o.Target)
}

func (o *MethodCall) String() string {
	return fmt.Sprintf("\tmcall %d, %s.%s label_%d", len(o.Method.Params), o.Receiver, o.Method.Name, o.Target)
}

func (*Yield) String() string { return "\tyield" }
func (o *Go) String() string  { return fmt.Sprintf("\tgo %s label_%d", o.State.Name, o.Target) }

func (*Label) op()        {}
func (*LineMarker) op()   {}
func (*UnaryOp) op()      {}
func (*BinaryOp) op()     {}
func (*Assign) op()       {}
func (*Return) op()       {}
func (*IfFalse) op()      {}
func (*Jump) op()         {}
func (*Exit) op()         {}
func (*Arg) op()          {}
func (*FunctionCall) op() {}
func (*MethodCall) op()   {}
func (*Yield) op()        {}
func (*Go) op()           {}

// Listing renders operations one per line.
func Listing(ops []Op) string {
	var out strings.Builder
	for _, o := range ops {
		out.WriteString(o.String())
		out.WriteByte('\n')
	}
	return out.String()
}
