package semantic

import (
	"github.com/zurustar/padscript/pkg/compiler/ast"
)

// frame tracks the callable being checked. fn is nil inside state methods.
type frame struct {
	fn       ast.Callable
	level    int
	returned bool
	state    bool
}

// ReturnChecker resolves return and go statements and makes sure every
// callable returns.
type ReturnChecker struct {
	unit  *ast.Unit
	stack []*frame
}

// NewReturnChecker creates a return checking pass reporting into unit.
func NewReturnChecker(unit *ast.Unit) *ReturnChecker {
	return &ReturnChecker{unit: unit}
}

// Check walks root. Void callables without a return at their outermost
// level get one appended.
func (r *ReturnChecker) Check(root *ast.Compound) {
	r.stack = []*frame{{}}
	r.node(root)
}

func (r *ReturnChecker) top() *frame {
	return r.stack[len(r.stack)-1]
}

func (r *ReturnChecker) enter(fn ast.Callable) {
	r.stack = append(r.stack, &frame{fn: fn})
	decl := fn.Decl()
	r.node(decl.Body)
	f := r.top()
	r.stack = r.stack[:len(r.stack)-1]

	if f.returned {
		return
	}
	if decl.Ret.Kind == ast.VoidKind {
		decl.Body.Statements = append(decl.Body.Statements, &ast.Return{
			Token: decl.Body.Token,
			Value: ast.NewEmpty(decl.Body.Token),
			Func:  fn,
		})
		return
	}
	r.unit.Diags.Error(phase, decl.Pos(), "no return statement in function")
}

func (r *ReturnChecker) enterState(m *ast.StateMethodDecl) {
	if m == nil {
		return
	}
	r.stack = append(r.stack, &frame{state: true})
	r.node(m.Body)
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *ReturnChecker) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Compound:
		for _, s := range n.Statements {
			r.node(s)
		}
	case *ast.If:
		r.top().level++
		r.node(n.Then)
		if n.Else != nil {
			r.node(n.Else)
		}
		r.top().level--
	case *ast.While:
		r.top().level++
		r.node(n.Body)
		r.top().level--
	case *ast.Return:
		r.checkReturn(n)
	case *ast.Go:
		r.checkGo(n)
	case *ast.StructDecl:
		for _, m := range n.Methods {
			r.enter(m)
		}
	case *ast.StateDecl:
		r.enterState(n.Enter)
		r.enterState(n.Main)
	case *ast.FunctionDecl:
		r.enter(n)
	}
}

func (r *ReturnChecker) checkReturn(n *ast.Return) {
	f := r.top()
	if f.fn == nil {
		r.unit.Diags.Error(phase, n.Pos(), "return statement outside of function/method")
		return
	}
	n.Func = f.fn

	ret := f.fn.Decl().Ret
	switch {
	case ret.Kind == ast.VoidKind && n.Value.IsRValue():
		r.unit.Diags.Error(phase, n.Pos(), "void function cannot return a value")
	case ret.Kind != ast.VoidKind:
		value, err := ast.EnsureType(ret, n.Value)
		if err != nil {
			r.unit.Diags.Error(phase, n.Pos(), "%s", err)
			break
		}
		n.Value = value
	}

	if f.level == 0 {
		f.returned = true
	}
}

func (r *ReturnChecker) checkGo(n *ast.Go) {
	if !r.top().state {
		r.unit.Diags.Error(phase, n.Pos(), "go statement outside of state method")
		return
	}
	s, ok := r.unit.Table(r.unit.Global).Find(n.Target)
	if !ok {
		r.unit.Diags.Error(phase, n.Pos(), "unknown state name %q", n.Target)
		return
	}
	state, ok := s.Binding.(*ast.StateDecl)
	if !ok {
		r.unit.Diags.Error(phase, n.Pos(), "go statement target is not a state (%s)", s.Binding.Type())
		return
	}
	n.State = state
}
