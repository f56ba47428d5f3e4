package compiler

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCompileError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CompileError
		contains []string
	}{
		{
			name: "lexer error without context",
			err: &CompileError{
				Phase:   "lexer",
				Message: "illegal character '@'",
				Line:    5,
				Column:  10,
			},
			contains: []string{"lexer error", "line 5", "column 10", "illegal character '@'"},
		},
		{
			name: "parser error without context",
			err: &CompileError{
				Phase:   "parser",
				Message: "expected ';', got '}'",
				Line:    12,
				Column:  25,
			},
			contains: []string{"parser error", "line 12", "column 25", "expected ';', got '}'"},
		},
		{
			name: "codegen error without location",
			err: &CompileError{
				Phase:   "codegen",
				Message: "offset -1100 out of range",
			},
			contains: []string{"codegen error", "line 0", "column 0", "out of range"},
		},
		{
			name: "error with context",
			err: &CompileError{
				Phase:   "parser",
				Message: "unexpected token",
				Line:    3,
				Column:  5,
				Context: "> 3 | int x = ;\n      ^",
			},
			contains: []string{"parser error", "line 3", "column 5", "unexpected token", "> 3 |"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("Error() = %q, want to contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestGenerateErrorContext(t *testing.T) {
	source := `int a = 1;
int b = 2;
int c = 3;
int d = ;
int e = 5;
int f = 6;
int g = 7;`

	tests := []struct {
		name        string
		source      string
		line        int
		column      int
		contains    []string
		notContains []string
	}{
		{
			name:   "error in middle of file",
			source: source,
			line:   4,
			column: 9,
			contains: []string{
				"2 |", "int b = 2;",
				"3 |", "int c = 3;",
				"> 4 |", "int d = ;",
				"^",
				"5 |", "int e = 5;",
				"6 |", "int f = 6;",
			},
			notContains: []string{"1 |", "7 |"},
		},
		{
			name:   "error at beginning of file",
			source: source,
			line:   1,
			column: 5,
			contains: []string{
				"> 1 |", "int a = 1;",
				"^",
				"2 |", "int b = 2;",
				"3 |", "int c = 3;",
			},
			notContains: []string{"4 |"},
		},
		{
			name:   "error at end of file",
			source: source,
			line:   7,
			column: 5,
			contains: []string{
				"5 |", "int e = 5;",
				"6 |", "int f = 6;",
				"> 7 |", "int g = 7;",
				"^",
			},
			notContains: []string{"4 |"},
		},
		{name: "empty source", source: "", line: 1, column: 1},
		{name: "invalid line number", source: source, line: 0, column: 1},
		{name: "line number exceeds source", source: source, line: 100, column: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			context := GenerateErrorContext(tt.source, tt.line, tt.column)
			if len(tt.contains) == 0 && context != "" {
				t.Errorf("GenerateErrorContext() = %q, want empty", context)
			}
			for _, substr := range tt.contains {
				if !strings.Contains(context, substr) {
					t.Errorf("GenerateErrorContext() = %q, want to contain %q", context, substr)
				}
			}
			for _, substr := range tt.notContains {
				if strings.Contains(context, substr) {
					t.Errorf("GenerateErrorContext() = %q, should not contain %q", context, substr)
				}
			}
		})
	}
}

func TestGenerateErrorContext_PointerPosition(t *testing.T) {
	source := "int x = 5;"
	for _, column := range []int{1, 5, 10} {
		t.Run(fmt.Sprintf("column %d", column), func(t *testing.T) {
			lines := strings.Split(GenerateErrorContext(source, 1, column), "\n")
			if len(lines) < 2 {
				t.Fatalf("expected a pointer line, got %q", lines)
			}
			// "> 1 | " is 6 columns wide.
			if got := strings.Index(lines[1], "^"); got != 6+column-1 {
				t.Errorf("pointer at %d, want %d in %q", got, 6+column-1, lines[1])
			}
			if lines[0][6+column-1] != source[column-1] {
				t.Errorf("pointer is not under column %d", column)
			}
		})
	}
}

func TestIsCompileError(t *testing.T) {
	ce := &CompileError{Phase: "lexer", Message: "test", Line: 1, Column: 1}
	tests := []struct {
		name      string
		err       error
		wantOk    bool
		wantPhase string
	}{
		{"CompileError", ce, true, "lexer"},
		{"wrapped CompileError", fmt.Errorf("building: %w", ce), true, "lexer"},
		{"standard error", errors.New("standard error"), false, ""},
		{"nil error", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IsCompileError(tt.err)
			if ok != tt.wantOk {
				t.Errorf("IsCompileError() ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && got.Phase != tt.wantPhase {
				t.Errorf("IsCompileError() Phase = %q, want %q", got.Phase, tt.wantPhase)
			}
		})
	}
}

func TestBytecodeGenError(t *testing.T) {
	err := &BytecodeGenError{Errors: []*CompileError{
		{Phase: "parser", Message: `undeclared identifier "x"`},
		{Phase: "parser", Message: "missing idle state"},
	}}
	want := `undeclared identifier "x", missing idle state`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
