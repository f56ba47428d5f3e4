// Package preprocessor implements the line-based macro pass run before lexing.
//
// Supported directives:
//   - #define NAME [value]
//   - #undef NAME
//   - #ifdef NAME / #ifndef NAME / #else / #endif
//
// Everything from "//" to the end of a line is dropped. Directive lines and
// lines inside a disabled conditional block are replaced by empty lines so
// that line numbers reported by later phases match the original source.
package preprocessor

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/zurustar/padscript/pkg/compiler/diag"
	"github.com/zurustar/padscript/pkg/compiler/token"
	"github.com/zurustar/padscript/pkg/logger"
)

const phase = "preprocessor"

// maxExpansions bounds the rewrites of a single line; self-referencing
// macros would otherwise never stop expanding.
const maxExpansions = 1000

// Error is a directive or expansion error on a source line.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func lineError(line int, format string, args ...any) error {
	return &Error{Line: line, Err: fmt.Errorf(format, args...)}
}

type macro struct {
	name  string
	value string
	re    *regexp.Regexp
}

// Preprocessor expands macros and evaluates conditional blocks.
type Preprocessor struct {
	macros []*macro
	log    *slog.Logger
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithDefines predefines macros, as if declared with #define before the source.
func WithDefines(defines map[string]string) Option {
	return func(p *Preprocessor) {
		names := make([]string, 0, len(defines))
		for name := range defines {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p.define(name, defines[name])
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Preprocessor) {
		p.log = log
	}
}

// New creates a preprocessor.
func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Defined reports whether a macro is currently defined.
func (p *Preprocessor) Defined(name string) bool {
	return p.lookup(name) >= 0
}

func (p *Preprocessor) lookup(name string) int {
	for i, m := range p.macros {
		if m.name == name {
			return i
		}
	}
	return -1
}

// define adds or replaces a macro and reports whether it already existed.
// The value is expanded before it is stored.
func (p *Preprocessor) define(name, value string) (bool, error) {
	expanded, err := p.Expand(value)
	if err != nil {
		return false, err
	}
	m := &macro{
		name:  name,
		value: expanded,
		re:    regexp.MustCompile(`(?:\W|\A)(` + regexp.QuoteMeta(name) + `)(?:\W|$)`),
	}
	if i := p.lookup(name); i >= 0 {
		p.macros[i] = m
		return true, nil
	}
	p.macros = append(p.macros, m)
	return false, nil
}

func (p *Preprocessor) undefine(name string) bool {
	i := p.lookup(name)
	if i < 0 {
		return false
	}
	p.macros = append(p.macros[:i], p.macros[i+1:]...)
	return true
}

// Expand substitutes macros in s until none applies. Each round replaces
// the first match of the first macro, in definition order, that matches.
func (p *Preprocessor) Expand(s string) (string, error) {
	for n := 0; ; n++ {
		changed := false
		for _, m := range p.macros {
			loc := m.re.FindStringSubmatchIndex(s)
			if loc == nil {
				continue
			}
			if n >= maxExpansions {
				return "", fmt.Errorf("expansion of macro %q does not terminate", m.name)
			}
			s = s[:loc[2]] + m.value + s[loc[3]:]
			changed = true
			break
		}
		if !changed {
			return s, nil
		}
	}
}

// Process reads source lines from r and writes the preprocessed lines to w.
// It returns the warnings collected on the way. Errors abort processing.
func (p *Preprocessor) Process(r io.Reader, w io.Writer) ([]diag.Diagnostic, error) {
	var warnings []diag.Diagnostic
	warn := func(line int, format string, args ...any) {
		warnings = append(warnings, diag.Diagnostic{
			Phase:   phase,
			Message: fmt.Sprintf(format, args...),
			Pos:     token.Position{Line: line, Column: 1},
		})
	}

	bw := bufio.NewWriter(w)
	emit := func(s string) {
		bw.WriteString(s)
		bw.WriteByte('\n')
	}

	stack := []bool{true}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimRight(line, " \t\r\n")
		directive, arg := splitDirective(line)

		switch directive {
		case "else":
			if len(stack) < 2 {
				return warnings, lineError(lineno, "#else without #ifdef")
			}
			stack[len(stack)-1] = !stack[len(stack)-1]
			emit("")
			continue
		case "endif":
			if len(stack) < 2 {
				return warnings, lineError(lineno, "#endif without #ifdef")
			}
			stack = stack[:len(stack)-1]
			emit("")
			continue
		case "ifdef", "ifndef":
			if arg == "" {
				return warnings, lineError(lineno, "#%s without macro name", directive)
			}
			stack = append(stack, p.Defined(arg) == (directive == "ifdef"))
			emit("")
			continue
		}

		if !enabled(stack) {
			emit("")
			continue
		}

		switch directive {
		case "define":
			name, value := arg, ""
			if i := strings.IndexAny(arg, " \t"); i >= 0 {
				name, value = arg[:i], strings.TrimSpace(arg[i:])
			}
			if name == "" {
				return warnings, lineError(lineno, "#define without macro name")
			}
			redefined, err := p.define(name, value)
			if err != nil {
				return warnings, lineError(lineno, "%w", err)
			}
			if redefined {
				warn(lineno, "macro %q redefined", name)
			}
			p.log.Debug("macro defined", "name", name, "line", lineno)
			emit("")
			continue
		case "undef":
			if !p.undefine(arg) {
				warn(lineno, "macro %q is not defined", arg)
			}
			emit("")
			continue
		}

		expanded, err := p.Expand(line)
		if err != nil {
			return warnings, lineError(lineno, "%w", err)
		}
		emit(expanded)
	}
	if err := scanner.Err(); err != nil {
		return warnings, err
	}
	if len(stack) > 1 {
		warn(lineno, "unterminated conditional block")
	}
	return warnings, bw.Flush()
}

// ProcessString is Process for in-memory sources.
func (p *Preprocessor) ProcessString(src string) (string, []diag.Diagnostic, error) {
	var out strings.Builder
	warnings, err := p.Process(strings.NewReader(src), &out)
	return out.String(), warnings, err
}

// splitDirective returns the directive name and its argument if line is a
// directive, or two empty strings otherwise.
func splitDirective(line string) (string, string) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "#") {
		return "", ""
	}
	s = s[1:]
	name := s
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		name = s[:i]
	}
	switch name {
	case "define", "undef", "ifdef", "ifndef", "else", "endif":
		return name, strings.TrimSpace(s[len(name):])
	}
	return "", ""
}

func enabled(stack []bool) bool {
	for _, b := range stack {
		if !b {
			return false
		}
	}
	return true
}
