// Package diag collects compile-time warnings and errors in source order.
package diag

import (
	"fmt"

	"github.com/zurustar/padscript/pkg/compiler/token"
)

// Diagnostic is a single warning or error produced by a compile phase.
type Diagnostic struct {
	Phase   string
	Message string
	Pos     token.Position
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

// List accumulates diagnostics for one compile unit.
type List struct {
	Warnings []Diagnostic
	Errors   []Diagnostic
}

// Warn records a warning.
func (l *List) Warn(phase string, pos token.Position, format string, args ...any) {
	l.Warnings = append(l.Warnings, Diagnostic{Phase: phase, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// Error records an error.
func (l *List) Error(phase string, pos token.Position, format string, args ...any) {
	l.Errors = append(l.Errors, Diagnostic{Phase: phase, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// HasErrors reports whether any error was recorded.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}
