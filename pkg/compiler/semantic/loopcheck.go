package semantic

import "github.com/zurustar/padscript/pkg/compiler/ast"

// LoopChecker reports break and continue statements outside of a loop.
type LoopChecker struct {
	unit  *ast.Unit
	depth int
}

// NewLoopChecker creates a loop checking pass reporting into unit.
func NewLoopChecker(unit *ast.Unit) *LoopChecker {
	return &LoopChecker{unit: unit}
}

// Check walks root.
func (l *LoopChecker) Check(root *ast.Compound) {
	l.depth = 0
	l.node(root)
}

func (l *LoopChecker) node(n ast.Node) {
	switch n := n.(type) {
	case *ast.Compound:
		for _, s := range n.Statements {
			l.node(s)
		}
	case *ast.If:
		l.node(n.Then)
		if n.Else != nil {
			l.node(n.Else)
		}
	case *ast.While:
		l.depth++
		l.node(n.Body)
		l.depth--
	case *ast.Continue:
		if l.depth == 0 {
			l.unit.Diags.Error(phase, n.Pos(), "continue statement out of loop")
		}
	case *ast.Break:
		if l.depth == 0 {
			l.unit.Diags.Error(phase, n.Pos(), "break statement out of loop")
		}
	case *ast.StructDecl:
		for _, m := range n.Methods {
			l.node(m.Body)
		}
	case *ast.StateDecl:
		if n.Enter != nil {
			l.node(n.Enter.Body)
		}
		if n.Main != nil {
			l.node(n.Main.Body)
		}
	case *ast.FunctionDecl:
		l.node(n.Body)
	}
}
