package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/zurustar/padscript/pkg/compiler"
	"github.com/zurustar/padscript/pkg/fileutil"
	"github.com/zurustar/padscript/pkg/logger"
)

// Diagnostic is a compile warning or error of one action.
type Diagnostic struct {
	Configuration string
	Action        string
	Err           *compiler.CompileError
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s/%s: %s", d.Configuration, d.Action, d.Err.Error())
}

// ActionError reports an action that failed to build.
type ActionError struct {
	Configuration string
	Action        string
	Err           error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Configuration, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Diagnostics returns the compile errors of the action, if any.
func (e *ActionError) Diagnostics() []Diagnostic {
	var ge *compiler.BytecodeGenError
	if !errors.As(e.Err, &ge) {
		return nil
	}
	diags := make([]Diagnostic, len(ge.Errors))
	for i, ce := range ge.Errors {
		diags[i] = Diagnostic{Configuration: e.Configuration, Action: e.Action, Err: ce}
	}
	return diags
}

// Build compiles every action of the enabled configurations. Action files
// are resolved in fsys. opts apply to every action, after which the
// manifest's and the action's own defines are added.
//
// Every action is compiled even after a failure; the returned error then
// joins one *ActionError per failing action and the image is nil.
func Build(m *Manifest, fsys fs.FS, opts ...compiler.Option) (*Image, []Diagnostic, error) {
	log := logger.GetLogger()
	start := time.Now()

	img := &Image{}
	var warnings []Diagnostic
	var errs []error

	for _, cs := range m.Configurations {
		if !cs.IsEnabled() {
			log.Debug("configuration disabled", "configuration", cs.Name)
			continue
		}
		conf := Configuration{Name: cs.Name}
		for _, as := range cs.Actions {
			code, w, err := buildAction(m, as, fsys, opts, log)
			for _, ce := range w {
				warnings = append(warnings, Diagnostic{Configuration: cs.Name, Action: as.Name, Err: ce})
			}
			if err != nil {
				errs = append(errs, &ActionError{Configuration: cs.Name, Action: as.Name, Err: err})
				continue
			}
			conf.Actions = append(conf.Actions, Action{Name: as.Name, Bytecode: code})
		}
		img.Configurations = append(img.Configurations, conf)
	}

	if len(errs) > 0 {
		return nil, warnings, errors.Join(errs...)
	}
	log.Info("workspace built",
		"configurations", len(img.Configurations), "bytes", img.Size(), "elapsed", time.Since(start))
	return img, warnings, nil
}

func buildAction(m *Manifest, as ActionSpec, fsys fs.FS, opts []compiler.Option, log *slog.Logger) ([]byte, []*compiler.CompileError, error) {
	source := as.Source
	if as.File != "" {
		data, err := fileutil.ReadFile(fsys, as.File)
		if err != nil {
			return nil, nil, err
		}
		source, err = compiler.DecodeSource(data, m.Encoding)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode %s: %w", as.File, err)
		}
	}

	opts = append(opts[:len(opts):len(opts)], compiler.WithDefines(m.Defines), compiler.WithDefines(as.Defines))
	warnings, code, err := compiler.GenerateBytecode(source, opts...)
	if err != nil {
		return nil, warnings, err
	}
	log.Debug("action compiled", "action", as.Name, "bytes", len(code))
	return code, warnings, nil
}
