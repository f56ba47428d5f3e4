package codegen

import (
	"fmt"

	"github.com/zurustar/padscript/pkg/compiler/ast"
)

// returnAddressSize is the number of bytes CALL pushes.
const returnAddressSize = 2

type stackCounter struct {
	unit   *ast.Unit
	depths map[ast.Callable]int
	active map[ast.Callable]bool
	err    error
}

// StackSize returns the worst-case number of stack bytes the program of
// unit uses, globals included. Recursive calls make the depth unbounded
// and are reported as an error.
func StackSize(unit *ast.Unit) (int, error) {
	c := &stackCounter{
		unit:   unit,
		depths: make(map[ast.Callable]int),
		active: make(map[ast.Callable]bool),
	}
	size := c.statement(unit.Root)
	if c.err != nil {
		return 0, c.err
	}
	return size, nil
}

func (c *stackCounter) tableSize(id ast.ScopeID) int {
	return c.unit.Table(id).Size()
}

func (c *stackCounter) statement(n ast.Node) int {
	switch n := n.(type) {
	case nil:
		return 0
	case *ast.Compound:
		d := 0
		for _, s := range n.Statements {
			d = max(d, c.statement(s))
		}
		return c.tableSize(n.Scope) + d
	case *ast.VarDecl:
		return c.expr(n.Init)
	case *ast.Assign:
		return max(c.expr(n.Target), c.expr(n.Value))
	case *ast.If:
		return c.expr(n.Cond) + max(c.statement(n.Then), c.statement(n.Else))
	case *ast.While:
		return max(c.expr(n.Cond), c.statement(n.Body))
	case *ast.Return:
		return c.expr(n.Value)
	case *ast.StateDecl:
		return c.tableSize(n.Scope) + max(c.stateMethod(n.Enter), c.stateMethod(n.Main))
	case ast.Expr:
		return c.expr(n)
	}
	return 0
}

func (c *stackCounter) stateMethod(m *ast.StateMethodDecl) int {
	if m == nil {
		return 0
	}
	return c.tableSize(m.Scope) + c.statement(m.Body)
}

func (c *stackCounter) expr(e ast.Expr) int {
	switch e := e.(type) {
	case *ast.Call:
		return c.call(e)
	case *ast.Binary:
		return max(c.expr(e.X), c.expr(e.Y))
	case *ast.Unary:
		return c.expr(e.X)
	case *ast.PrefixUnary:
		return c.expr(e.Target)
	case *ast.PostfixUnary:
		return c.expr(e.Target)
	case *ast.Access:
		return c.expr(e.Target)
	}
	return 0
}

func (c *stackCounter) call(e *ast.Call) int {
	d, pushed := 0, 0
	for _, arg := range e.Args {
		d = max(d, pushed+c.expr(arg))
		pushed += arg.Type().Size()
	}
	callee := e.Callee()
	if callee == nil {
		return d
	}
	return max(d, c.callable(callee))
}

// callable returns the depth of a call frame: arguments, return slot,
// saved registers, return address and the body.
func (c *stackCounter) callable(fn ast.Callable) int {
	if d, ok := c.depths[fn]; ok {
		return d
	}
	decl := fn.Decl()
	if c.active[fn] {
		if c.err == nil {
			c.err = fmt.Errorf("%s: recursive call to %q", decl.Pos(), decl.Name)
		}
		return 0
	}
	c.active[fn] = true
	d := c.tableSize(decl.Scope) + returnAddressSize + c.statement(decl.Body)
	c.active[fn] = false
	c.depths[fn] = d
	return d
}
