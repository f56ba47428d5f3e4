// Package conformance runs suites of action programs described in YAML
// against the compiler and the VM.
package conformance

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/padscript/pkg/compiler"
	"github.com/zurustar/padscript/pkg/fileutil"
	"github.com/zurustar/padscript/pkg/vm"
)

// Suite is a named list of cases.
type Suite struct {
	Name  string `yaml:"name"`
	Tests []Case `yaml:"tests"`

	// File is the path the suite was loaded from.
	File string `yaml:"-"`
}

// Case is one program with its inputs and expectations.
type Case struct {
	Name    string             `yaml:"name"`
	Source  string             `yaml:"source"`
	Defines map[string]string  `yaml:"defines,omitempty"`
	Input   map[string]float64 `yaml:"input,omitempty"`

	// Ticks is the number of times the action runs. It defaults to 1
	// when a report is expected.
	Ticks int `yaml:"ticks,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect lists what a case checks. Errors and warnings match when every
// listed substring occurs in some diagnostic.
type Expect struct {
	Errors       []string           `yaml:"errors,omitempty"`
	Warnings     []string           `yaml:"warnings,omitempty"`
	Report       map[string]float64 `yaml:"report,omitempty"`
	StackSize    *int               `yaml:"stack_size,omitempty"`
	RuntimeError string             `yaml:"runtime_error,omitempty"`
}

// Result is the outcome of one case.
type Result struct {
	Suite string
	Case  string
	Err   error
}

// Passed reports whether the case met its expectations.
func (r Result) Passed() bool { return r.Err == nil }

func (r Result) String() string {
	if r.Err == nil {
		return fmt.Sprintf("PASS %s/%s", r.Suite, r.Case)
	}
	return fmt.Sprintf("FAIL %s/%s: %v", r.Suite, r.Case, r.Err)
}

// ParseSuite decodes one suite.
func ParseSuite(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if s.Name == "" {
		return nil, errors.New("suite has no name")
	}
	for i, c := range s.Tests {
		if c.Name == "" {
			return nil, fmt.Errorf("suite %q: test %d has no name", s.Name, i+1)
		}
	}
	return &s, nil
}

// LoadSuites loads every .yaml and .yml file under fsys.
func LoadSuites(fsys fs.FS) ([]*Suite, error) {
	files, err := fileutil.FilesWithExt(fsys, ".", ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	suites := make([]*Suite, 0, len(files))
	for _, name := range files {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		s, err := ParseSuite(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.File = name
		suites = append(suites, s)
	}
	return suites, nil
}

// Run runs every case of the suite.
func (s *Suite) Run(opts ...compiler.Option) []Result {
	results := make([]Result, len(s.Tests))
	for i, c := range s.Tests {
		results[i] = Result{Suite: s.Name, Case: c.Name, Err: Run(c, opts...)}
	}
	return results
}

// Run compiles the case's source and checks it against the case's
// expectations. The returned error describes every mismatch.
func Run(c Case, opts ...compiler.Option) error {
	opts = append(opts[:len(opts):len(opts)], compiler.WithDefines(c.Defines))
	art, warnings, err := compiler.Generate(c.Source, opts...)

	var failures []string
	failf := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	failures = append(failures, missing("warning", c.Expect.Warnings, messages(warnings))...)

	if err != nil {
		var ge *compiler.BytecodeGenError
		if !errors.As(err, &ge) {
			return err
		}
		if len(c.Expect.Errors) == 0 {
			failf("unexpected compile error: %v", err)
		}
		failures = append(failures, missing("error", c.Expect.Errors, messages(ge.Errors))...)
		return joinFailures(failures)
	}
	if len(c.Expect.Errors) > 0 {
		failf("expected compile errors %q, compilation succeeded", c.Expect.Errors)
	}
	if c.Expect.StackSize != nil && art.StackSize != *c.Expect.StackSize {
		failf("stack size = %d, want %d", art.StackSize, *c.Expect.StackSize)
	}

	ticks := c.Ticks
	if ticks == 0 && (len(c.Expect.Report) > 0 || c.Expect.RuntimeError != "") {
		ticks = 1
	}
	if ticks > 0 {
		failures = append(failures, execute(c, art.Bytes, ticks)...)
	}
	return joinFailures(failures)
}

func execute(c Case, image []byte, ticks int) []string {
	m, err := vm.Load(image)
	if err != nil {
		return []string{err.Error()}
	}

	r := vm.NewReport()
	for _, name := range sortedKeys(c.Input) {
		if err := r.SetField(name, c.Input[name]); err != nil {
			return []string{fmt.Sprintf("input: %v", err)}
		}
	}

	var failures []string
	var runErr error
	for i := 0; i < ticks && runErr == nil; i++ {
		runErr = m.Run(r)
	}
	switch {
	case runErr == nil && c.Expect.RuntimeError != "":
		failures = append(failures, fmt.Sprintf("expected runtime error %s, ran %d ticks", c.Expect.RuntimeError, ticks))
	case runErr != nil && c.Expect.RuntimeError == "":
		return []string{fmt.Sprintf("runtime error: %v", runErr)}
	case runErr != nil && !strings.Contains(runErr.Error(), c.Expect.RuntimeError):
		failures = append(failures, fmt.Sprintf("runtime error %v, want %s", runErr, c.Expect.RuntimeError))
	}

	for _, name := range sortedKeys(c.Expect.Report) {
		want := c.Expect.Report[name]
		got, err := r.Field(name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("report: %v", err))
			continue
		}
		if math.Abs(got-want) > 1e-4 {
			failures = append(failures, fmt.Sprintf("%s = %g, want %g", name, got, want))
		}
	}
	return failures
}

func messages(errs []*compiler.CompileError) []string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return msgs
}

func missing(kind string, want, got []string) []string {
	var failures []string
	for _, w := range want {
		if !slices.ContainsFunc(got, func(g string) bool { return strings.Contains(g, w) }) {
			failures = append(failures, fmt.Sprintf("no %s matching %q in %q", kind, w, got))
		}
	}
	return failures
}

func joinFailures(failures []string) error {
	if len(failures) == 0 {
		return nil
	}
	return errors.New(strings.Join(failures, "; "))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
