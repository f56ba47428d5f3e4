package semantic

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/parser"
)

const idle = "\nstate idle { idle() { } };"

func parse(t *testing.T, src string) *ast.Unit {
	t.Helper()
	unit := parser.Parse(src)
	if unit.Root == nil || unit.Diags.HasErrors() {
		t.Fatalf("parse failed: %v", unit.Diags.Errors)
	}
	return unit
}

// initOf returns the initialiser of the first global variable.
func initOf(t *testing.T, unit *ast.Unit) ast.Expr {
	t.Helper()
	for _, n := range unit.Root.Statements {
		if v, ok := n.(*ast.VarDecl); ok && v.Name == "x" {
			return v.Init
		}
	}
	t.Fatal("no variable x")
	return nil
}

func TestFold(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		isFloat bool
		want    float64
	}{
		{"precedence", "int x = 1 + 2 * 3;", false, 7},
		{"floor division", "int x = 7 / 2;", false, 3},
		{"negative floor division", "int x = -7 / 2;", false, -4},
		{"float division", "float x = 7.0 / 2;", true, 3.5},
		{"saturating add", "int x = 30000 + 30000;", false, 32767},
		{"saturating sub", "int x = -30000 - 30000;", false, -32768},
		{"float comparison", "float x = 1.5 < 2.0;", true, 1},
		{"float comparison cast to int", "int x = 1.5 < 2;", false, 1},
		{"logical and", "int x = 1 && 0;", false, 0},
		{"logical or", "int x = 0 || 3;", false, 1},
		{"not", "int x = !0;", false, 1},
		{"nested casts", "int x = 2.75 * 2;", false, 5},
		{"equality", "int x = 3 == 3;", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := parse(t, tt.src+idle)
			NewConstEvaluator(unit).Fold(unit.Root)
			if unit.Diags.HasErrors() {
				t.Fatalf("unexpected errors %v", unit.Diags.Errors)
			}

			c, ok := initOf(t, unit).(*ast.Constant)
			if !ok {
				t.Fatalf("initialiser was not folded: %s", initOf(t, unit))
			}
			if c.IsFloat != tt.isFloat || c.Value() != tt.want {
				t.Errorf("expected %v (float=%v), got %v (float=%v)", tt.want, tt.isFloat, c.Value(), c.IsFloat)
			}
		})
	}
}

func TestFold_PartiallyConstant(t *testing.T) {
	unit := parse(t, "int y;\nint x = y + 2 * 3;"+idle)
	n := NewConstEvaluator(unit).Fold(unit.Root)
	if n != 1 {
		t.Errorf("expected 1 rewrite, got %d", n)
	}
	if got := initOf(t, unit).String(); got != "(y + 6)" {
		t.Errorf("expected (y + 6), got %s", got)
	}
}

func TestFold_Statements(t *testing.T) {
	src := `
	int f(int a) { return a; }
	state idle {
		idle() {
			LPadX = 2 * 8;
			if (1 < 2) { LPadY = f(3 + 4); }
			while (0) { }
		}
	};`
	unit := parse(t, src)
	NewConstEvaluator(unit).Fold(unit.Root)

	st := unit.Root.Statements[1].(*ast.StateDecl)
	body := st.Main.Body.Statements
	if got := body[0].String(); got != "LPadX = 16;" {
		t.Errorf("assignment: got %s", got)
	}
	ifStmt := body[1].(*ast.If)
	if got := ifStmt.Cond.String(); got != "1" {
		t.Errorf("if condition: got %s", got)
	}
	if got := ifStmt.Then.String(); got != "{ LPadY = f(7); }" {
		t.Errorf("call argument: got %s", got)
	}
}

func TestFold_DivisionByZero(t *testing.T) {
	unit := parse(t, "int x = 1 / 0;"+idle)
	NewConstEvaluator(unit).Fold(unit.Root)
	if len(unit.Diags.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", unit.Diags.Errors)
	}
	if _, ok := initOf(t, unit).(*ast.Binary); !ok {
		t.Errorf("division by zero should not be folded")
	}
}

func TestFold_FloatDivisionByZero(t *testing.T) {
	unit := parse(t, "float x = 1.0 / 0;"+idle)
	NewConstEvaluator(unit).Fold(unit.Root)
	if unit.Diags.HasErrors() {
		t.Fatalf("unexpected errors %v", unit.Diags.Errors)
	}
	if _, ok := initOf(t, unit).(*ast.Constant); !ok {
		t.Errorf("float division by zero should fold")
	}
}

func TestProperty_FoldIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	ops := gen.OneConstOf("+", "-", "*", "/", "<", ">=", "==", "!=", "&&", "||")

	properties.Property("a second fold performs no rewrite", prop.ForAll(
		func(a, b, c int, op1, op2 string, float bool) bool {
			typ := "int"
			if float {
				typ = "float"
			}
			src := fmt.Sprintf("int y;\n%s x = (%d %s %d) %s (y + %d);\n%s z = %d %s %d;%s",
				typ, a, op1, b, op2, c, typ, b, op2, a, idle)
			unit := parser.Parse(src)
			if unit.Root == nil {
				return false
			}
			ce := NewConstEvaluator(unit)
			ce.Fold(unit.Root)
			return ce.Fold(unit.Root) == 0
		},
		gen.IntRange(-500, 500),
		gen.IntRange(1, 500),
		gen.IntRange(-500, 500),
		ops,
		ops,
		gen.Bool(),
	))

	properties.Property("folded integers stay within int16", prop.ForAll(
		func(a, b int, op string) bool {
			unit := parser.Parse(fmt.Sprintf("int x = %d %s %d;%s", a, op, b, idle))
			if unit.Root == nil {
				return false
			}
			NewConstEvaluator(unit).Fold(unit.Root)
			for _, n := range unit.Root.Statements {
				if v, ok := n.(*ast.VarDecl); ok {
					c, ok := v.Init.(*ast.Constant)
					return ok && c.Int >= -32768 && c.Int <= 32767
				}
			}
			return false
		},
		gen.IntRange(0, 32767),
		gen.IntRange(0, 32767),
		gen.OneConstOf("+", "-", "*"),
	))

	properties.TestingRun(t)
}
