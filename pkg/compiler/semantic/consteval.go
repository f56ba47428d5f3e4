// Package semantic holds the passes run over a parsed unit before code
// generation: constant folding, return checking and loop checking.
package semantic

import (
	"math"

	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/token"
)

const phase = "semantic"

// ConstEvaluator folds operators applied to literal operands into literals.
type ConstEvaluator struct {
	unit  *ast.Unit
	count int
}

// NewConstEvaluator creates a folding pass reporting into unit.
func NewConstEvaluator(unit *ast.Unit) *ConstEvaluator {
	return &ConstEvaluator{unit: unit}
}

// Fold rewrites constant subexpressions of root in place and returns the
// number of nodes replaced by literals.
func (c *ConstEvaluator) Fold(root *ast.Compound) int {
	c.count = 0
	c.node(root)
	return c.count
}

func (c *ConstEvaluator) node(n ast.Node) {
	switch n := n.(type) {
	case nil:
	case *ast.Compound:
		for i, s := range n.Statements {
			if e, ok := s.(ast.Expr); ok {
				n.Statements[i] = c.expr(e)
				continue
			}
			c.node(s)
		}
	case *ast.VarDecl:
		n.Init = c.expr(n.Init)
	case *ast.If:
		n.Cond = c.expr(n.Cond)
		c.node(n.Then)
		c.node(n.Else)
	case *ast.While:
		n.Cond = c.expr(n.Cond)
		c.node(n.Body)
	case *ast.Assign:
		n.Value = c.expr(n.Value)
	case *ast.Return:
		n.Value = c.expr(n.Value)
	case *ast.StructDecl:
		for _, m := range n.Methods {
			c.node(m.Body)
		}
	case *ast.StateDecl:
		if n.Enter != nil {
			c.node(n.Enter.Body)
		}
		if n.Main != nil {
			c.node(n.Main.Body)
		}
	case *ast.FunctionDecl:
		c.node(n.Body)
	case *ast.MethodDecl:
		c.node(n.Body)
	case *ast.StateMethodDecl:
		c.node(n.Body)
	case ast.Expr:
		c.expr(n)
	case *ast.MemberDecl, *ast.Param, *ast.Continue, *ast.Break, *ast.Yield, *ast.Go:
	}
}

// expr folds e and returns its replacement.
func (c *ConstEvaluator) expr(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.Binary:
		e.X = c.expr(e.X)
		e.Y = c.expr(e.Y)
		x, okx := e.X.(*ast.Constant)
		y, oky := e.Y.(*ast.Constant)
		if !okx || !oky {
			return e
		}
		folded, ok := c.binary(e, x, y)
		if !ok {
			return e
		}
		c.count++
		return folded
	case *ast.Unary:
		e.X = c.expr(e.X)
		x, ok := e.X.(*ast.Constant)
		if !ok {
			return e
		}
		c.count++
		return unary(e, x)
	case *ast.Call:
		for i, a := range e.Args {
			e.Args[i] = c.expr(a)
		}
		return e
	}
	return e
}

func unary(e *ast.Unary, x *ast.Constant) *ast.Constant {
	tok := e.Token
	switch e.Op {
	case "!":
		return constant(tok, e.Type(), truth(x.Value() == 0))
	case "-":
		if x.IsFloat {
			return constant(tok, ast.Float, -x.Float)
		}
		return constant(tok, ast.Int, float64(-x.Int))
	case "casti":
		return constant(tok, ast.Int, math.Trunc(x.Value()))
	case "castf":
		return constant(tok, ast.Float, x.Value())
	}
	return constant(tok, e.Type(), x.Value())
}

func (c *ConstEvaluator) binary(e *ast.Binary, x, y *ast.Constant) (*ast.Constant, bool) {
	a, b := x.Value(), y.Value()
	var v float64
	switch e.Op {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		if e.T.Kind == ast.FloatKind {
			v = float64(float32(a) / float32(b))
			break
		}
		if b == 0 {
			c.unit.Diags.Error(phase, e.Pos(), "integer division by zero in constant expression")
			return nil, false
		}
		v = math.Floor(a / b)
	case "<":
		v = truth(a < b)
	case ">":
		v = truth(a > b)
	case "<=":
		v = truth(a <= b)
	case ">=":
		v = truth(a >= b)
	case "==":
		v = truth(a == b)
	case "!=":
		v = truth(a != b)
	case "&&":
		v = truth(a != 0 && b != 0)
	case "||":
		v = truth(a != 0 || b != 0)
	default:
		return nil, false
	}
	return constant(e.Token, e.T, v), true
}

// constant builds a literal of type t. Integers saturate to the int16 range
// and floats are rounded to single precision, as the machine does.
func constant(tok token.Token, t *ast.Type, v float64) *ast.Constant {
	if t.Kind == ast.FloatKind {
		return ast.NewFloat(tok, float64(float32(v)))
	}
	return ast.NewInt(tok, int64(saturate(v)))
}

func saturate(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
