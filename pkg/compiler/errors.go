package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/diag"
)

// CompileError is a warning or error with its source location.
type CompileError struct {
	// Phase names the stage that reported it: "preprocessor", "lexer",
	// "parser", "semantic", "ic", "codegen" or "assembler".
	Phase string

	Message string

	// Line and Column are 1-based. Zero means the location is unknown.
	Line   int
	Column int

	// Context holds the source lines around the location with a pointer
	// under the column, as produced by GenerateErrorContext.
	Context string
}

// Error returns the phase, location and message, followed by the context
// when there is one.
func (e *CompileError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s error at line %d, column %d: %s\n%s",
			e.Phase, e.Line, e.Column, e.Message, e.Context)
	}
	return fmt.Sprintf("%s error at line %d, column %d: %s",
		e.Phase, e.Line, e.Column, e.Message)
}

// fromDiagnostic converts a diagnostic and attaches context from source.
func fromDiagnostic(d diag.Diagnostic, source string) *CompileError {
	return &CompileError{
		Phase:   d.Phase,
		Message: d.Message,
		Line:    d.Pos.Line,
		Column:  d.Pos.Column,
		Context: GenerateErrorContext(source, d.Pos.Line, d.Pos.Column),
	}
}

func fromDiagnostics(ds []diag.Diagnostic, source string) []*CompileError {
	out := make([]*CompileError, 0, len(ds))
	for _, d := range ds {
		out = append(out, fromDiagnostic(d, source))
	}
	return out
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// BytecodeGenError is returned when a source produced at least one error.
type BytecodeGenError struct {
	Errors []*CompileError
}

func (e *BytecodeGenError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = ce.Message
	}
	return strings.Join(msgs, ", ")
}

// GenerateErrorContext renders up to 2 lines before and after line, marks
// the line with > and puts a ^ under column.
//
//	  2 | int x = 5;
//	  3 | int y = 10;
//	> 4 | int z = ;
//	              ^
//	  5 | int w = 20;
func GenerateErrorContext(source string, line, column int) string {
	if source == "" || line <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	start := max(line-3, 0)
	end := min(line+2, len(lines))
	width := len(fmt.Sprintf("%d", end))

	var buf strings.Builder
	for i := start; i < end; i++ {
		n := i + 1
		if n != line {
			fmt.Fprintf(&buf, "  %*d | %s\n", width, n, lines[i])
			continue
		}
		fmt.Fprintf(&buf, "> %*d | %s\n", width, n, lines[i])
		indent := 2 + width + 3
		if column > 1 {
			indent += column - 1
		}
		fmt.Fprintf(&buf, "%s^\n", strings.Repeat(" ", indent))
	}
	return buf.String()
}
