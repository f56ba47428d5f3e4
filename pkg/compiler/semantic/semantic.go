package semantic

import "github.com/zurustar/padscript/pkg/compiler/ast"

// Analyze runs the semantic passes over the root of unit in order.
func Analyze(unit *ast.Unit) {
	if unit.Root == nil {
		return
	}
	NewConstEvaluator(unit).Fold(unit.Root)
	NewReturnChecker(unit).Check(unit.Root)
	NewLoopChecker(unit).Check(unit.Root)
}
