// Package compiler is the host entry point for turning action source into
// bytecode. It chains the phases in order:
//  1. Preprocessor: macros and conditional blocks
//  2. Parser: tokens, AST and symbol tables
//  3. Semantic: constant folding, return and loop checks
//  4. IC: intermediate code with local common subexpression reuse
//  5. Codegen: instruction selection and stack sizing
//  6. Assembler: the binary image with its stack-size header
//
// Any phase that reports an error stops the pipeline. Warnings from all
// phases that ran are returned either way.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/zurustar/padscript/pkg/bytecode"
	"github.com/zurustar/padscript/pkg/compiler/ast"
	"github.com/zurustar/padscript/pkg/compiler/codegen"
	"github.com/zurustar/padscript/pkg/compiler/ic"
	"github.com/zurustar/padscript/pkg/compiler/parser"
	"github.com/zurustar/padscript/pkg/compiler/preprocessor"
	"github.com/zurustar/padscript/pkg/compiler/semantic"
	"github.com/zurustar/padscript/pkg/logger"
)

type options struct {
	defines  map[string]string
	log      *slog.Logger
	encoding string
}

// Option configures a compilation.
type Option func(*options)

// WithDefines predefines macros as if by #define at the top of the source.
// Repeated options add to the set; a later value for a name wins.
func WithDefines(defines map[string]string) Option {
	return func(o *options) {
		if o.defines == nil {
			o.defines = make(map[string]string, len(defines))
		}
		maps.Copy(o.defines, defines)
	}
}

// WithLogger sets the logger for phase timing and diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithEncoding names the source encoding used by CompileFile, e.g.
// "shift_jis" or "windows-1252". Without it the encoding is detected.
func WithEncoding(name string) Option {
	return func(o *options) {
		o.encoding = name
	}
}

func newOptions(opts []Option) options {
	o := options{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Compiler runs the front end over one source.
type Compiler struct {
	opts options

	// raw is the source as given, used for error context. src is the
	// preprocessed text; both have the same number of lines.
	raw string
	src string
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	return &Compiler{opts: newOptions(opts)}
}

// Preprocess reads the source from r and runs the preprocessor over it.
// The returned error is a *CompileError when it refers to a source line.
func (c *Compiler) Preprocess(r io.Reader) ([]*CompileError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	c.raw = string(data)

	pp := preprocessor.New(preprocessor.WithDefines(c.opts.defines), preprocessor.WithLogger(c.opts.log))
	var out bytes.Buffer
	diags, err := pp.Process(strings.NewReader(c.raw), &out)
	warnings := fromDiagnostics(diags, c.raw)
	if err != nil {
		var pe *preprocessor.Error
		if errors.As(err, &pe) {
			return warnings, &CompileError{
				Phase:   "preprocessor",
				Message: pe.Err.Error(),
				Line:    pe.Line,
				Context: GenerateErrorContext(c.raw, pe.Line, 0),
			}
		}
		return warnings, err
	}
	c.src = out.String()
	return warnings, nil
}

// Compile parses the preprocessed source and runs the semantic passes.
// The unit is nil when parsing was aborted.
func (c *Compiler) Compile() (*ast.Unit, []*CompileError, []*CompileError) {
	unit := parser.Parse(c.src)
	semantic.Analyze(unit)
	warnings := fromDiagnostics(unit.Diags.Warnings, c.raw)
	errs := fromDiagnostics(unit.Diags.Errors, c.raw)
	if unit.Root == nil {
		return nil, warnings, errs
	}
	return unit, warnings, errs
}

// Artifacts holds the output of every phase of a successful compilation.
type Artifacts struct {
	Unit         *ast.Unit
	IC           []ic.Op
	Instructions []bytecode.Instruction
	StackSize    int

	// Bytes is the assembled image: a u16 stack size followed by code.
	Bytes []byte
}

// Generate compiles source through every phase. On failure the error is a
// *BytecodeGenError listing every error of the failing phase.
func Generate(source string, opts ...Option) (*Artifacts, []*CompileError, error) {
	c := New(opts...)
	log := c.opts.log
	start := time.Now()

	warnings, err := c.Preprocess(strings.NewReader(source))
	if err != nil {
		ce, ok := IsCompileError(err)
		if !ok {
			ce = &CompileError{Phase: "preprocessor", Message: err.Error()}
		}
		return nil, warnings, &BytecodeGenError{Errors: []*CompileError{ce}}
	}

	unit, w, errs := c.Compile()
	warnings = append(warnings, w...)
	log.Debug("front end finished",
		"warnings", len(warnings), "errors", len(errs), "elapsed", time.Since(start))
	if len(errs) > 0 {
		return nil, warnings, &BytecodeGenError{Errors: errs}
	}

	art := &Artifacts{Unit: unit}

	ig := ic.New(unit)
	art.IC = ig.Generate(unit.Root)
	if msgs := ig.Errors(); len(msgs) > 0 {
		return nil, warnings, phaseError("ic", msgs)
	}

	cg := codegen.New(unit)
	art.Instructions = cg.Generate(art.IC)
	if msgs := cg.Errors(); len(msgs) > 0 {
		return nil, warnings, phaseError("codegen", msgs)
	}

	art.StackSize, err = codegen.StackSize(unit)
	if err != nil {
		return nil, warnings, phaseError("codegen", []string{err.Error()})
	}

	art.Bytes, err = bytecode.Assemble(art.StackSize, art.Instructions)
	if err != nil {
		return nil, warnings, phaseError("assembler", []string{err.Error()})
	}

	log.Debug("bytecode generated",
		"ops", len(art.IC), "bytes", len(art.Bytes), "stack", art.StackSize, "elapsed", time.Since(start))
	return art, warnings, nil
}

// GenerateBytecode compiles source to a bytecode image.
func GenerateBytecode(source string, opts ...Option) ([]*CompileError, []byte, error) {
	art, warnings, err := Generate(source, opts...)
	if err != nil {
		return warnings, nil, err
	}
	return warnings, art.Bytes, nil
}

// CompileFile reads and decodes the file at path and compiles it.
func CompileFile(path string, opts ...Option) (*Artifacts, []*CompileError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	o := newOptions(opts)
	source, err := DecodeSource(data, o.encoding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return Generate(source, opts...)
}

func phaseError(phase string, msgs []string) *BytecodeGenError {
	errs := make([]*CompileError, len(msgs))
	for i, m := range msgs {
		errs[i] = &CompileError{Phase: phase, Message: m}
	}
	return &BytecodeGenError{Errors: errs}
}
