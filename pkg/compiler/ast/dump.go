package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented tree of n.
func Dump(w io.Writer, n Node) {
	d := &dumper{w: w}
	d.node(n)
}

type dumper struct {
	w     io.Writer
	depth int
}

func (d *dumper) line(format string, args ...any) {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.depth), fmt.Sprintf(format, args...))
}

func (d *dumper) child(label string, n Node) {
	d.depth++
	if label != "" {
		d.line("%s:", label)
		d.depth++
	}
	d.node(n)
	if label != "" {
		d.depth--
	}
	d.depth--
}

func (d *dumper) node(n Node) {
	if n == nil {
		d.line("<nil>")
		return
	}
	switch v := n.(type) {
	case *Empty:
		d.line("Empty")
	case *Constant:
		d.line("Constant %s (%s)", v, v.Type())
	case *Identifier:
		d.line("Identifier %s (%s)", v.Name, v.Type())
	case *PostfixUnary:
		d.line("PostfixUnary %s", v.Op)
		d.child("", v.Target)
	case *PrefixUnary:
		d.line("PrefixUnary %s", v.Op)
		d.child("", v.Target)
	case *Unary:
		d.line("Unary %s (%s)", v.Op, v.Type())
		d.child("", v.X)
	case *Binary:
		d.line("Binary %s (%s)", v.Op, v.T)
		d.child("", v.X)
		d.child("", v.Y)
	case *Call:
		d.line("Call (%s)", v.Type())
		d.child("target", v.Target)
		for i, a := range v.Args {
			d.child(fmt.Sprintf("arg %d", i), a)
		}
	case *Access:
		d.line("Access .%s (%s)", v.Name, v.Type())
		d.child("", v.Target)
	case *VarDecl:
		d.line("Variable %s %s", v.T, v.Name)
		if v.Init.IsRValue() {
			d.child("init", v.Init)
		}
	case *MemberDecl:
		d.line("Member %s %s", v.T, v.Name)
	case *Param:
		d.line("Argument %s %s", v.T, v.Name)
	case *StructDecl:
		d.line("Struct %s (size %d)", v.Name, v.T.Size())
		for _, m := range v.Members {
			d.child("", m)
		}
		for _, m := range v.Methods {
			d.child("", m)
		}
	case *StateDecl:
		d.line("State %s", v.Name)
		for _, m := range v.Members {
			d.child("", m)
		}
		if v.Enter != nil {
			d.child("enter", v.Enter.Body)
		}
		if v.Main != nil {
			d.child("main", v.Main.Body)
		}
	case *If:
		d.line("If")
		d.child("cond", v.Cond)
		d.child("then", v.Then)
		if v.Else != nil {
			d.child("else", v.Else)
		}
	case *While:
		d.line("While")
		d.child("cond", v.Cond)
		d.child("body", v.Body)
	case *Assign:
		d.line("Assignment %s", v.Op)
		d.child("", v.Target)
		d.child("", v.Value)
	case *Continue:
		d.line("Continue")
	case *Break:
		d.line("Break")
	case *Yield:
		d.line("Yield")
	case *Go:
		d.line("Go %s", v.Target)
	case *Return:
		d.line("Return")
		if v.Value.IsRValue() {
			d.child("", v.Value)
		}
	case *FunctionDecl:
		d.callable("Function", &v.CallableDecl)
	case *MethodDecl:
		d.callable("Method", &v.CallableDecl)
	case *StateMethodDecl:
		d.callable("StateMethod", &v.CallableDecl)
	case *Compound:
		d.line("Compound (scope %d)", v.Scope)
		for _, s := range v.Statements {
			d.child("", s)
		}
	default:
		d.line("%T", n)
	}
}

func (d *dumper) callable(kind string, c *CallableDecl) {
	d.line("%s %s %s", kind, c.Ret, c.Name)
	for _, p := range c.Params {
		d.child("", p)
	}
	d.child("body", c.Body)
}
