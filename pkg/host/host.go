// Package host runs the actions of a configuration against controller
// reports, one tick at a time.
package host

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zurustar/padscript/pkg/logger"
	"github.com/zurustar/padscript/pkg/vm"
	"github.com/zurustar/padscript/pkg/workspace"
)

// ErrNoConfiguration is returned by Tick when the host has nothing to run.
var ErrNoConfiguration = errors.New("no configuration")

// Instance is one action running in its own VM.
type Instance struct {
	Name string
	VM   *vm.VM
}

// Configuration is an ordered list of action instances.
type Configuration struct {
	Name      string
	Instances []*Instance
}

// Run runs every instance once, in order, on the same report. An instance
// stopped by a fatal error is skipped; the others keep running.
func (c *Configuration) Run(r *vm.Report) error {
	var errs []error
	for _, inst := range c.Instances {
		if inst.VM.Err() != nil {
			continue
		}
		if err := inst.VM.Run(r); err != nil {
			errs = append(errs, fmt.Errorf("action %q: %w", inst.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Reset rewinds every instance.
func (c *Configuration) Reset() {
	for _, inst := range c.Instances {
		inst.VM.Reset()
	}
}

// Host holds the configurations and tracks the current one.
//
// With more than one configuration the host starts in selection mode:
// pressing and releasing the hat north cycles through the configurations
// and PS leaves selection mode. The current configuration keeps running
// while selecting.
type Host struct {
	configs []*Configuration
	current int

	selecting  bool
	hatPressed bool

	log *slog.Logger
}

// Option configures a Host.
type Option func(*options)

type options struct {
	log  *slog.Logger
	vmOp []vm.Option
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithVMOptions applies opts to every VM FromImage creates.
func WithVMOptions(opts ...vm.Option) Option {
	return func(o *options) {
		o.vmOp = append(o.vmOp, opts...)
	}
}

func newOptions(opts []Option) options {
	o := options{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a host over configs.
func New(configs []*Configuration, opts ...Option) *Host {
	o := newOptions(opts)
	return &Host{
		configs:   configs,
		selecting: len(configs) > 1,
		log:       o.log,
	}
}

// FromImage instantiates one VM per action of img.
func FromImage(img *workspace.Image, opts ...Option) (*Host, error) {
	o := newOptions(opts)
	vmOpts := append([]vm.Option{vm.WithLogger(o.log)}, o.vmOp...)

	configs := make([]*Configuration, 0, len(img.Configurations))
	count := 0
	for i, c := range img.Configurations {
		conf := &Configuration{Name: c.Name}
		if conf.Name == "" {
			conf.Name = fmt.Sprintf("configuration %d", i+1)
		}
		for j, a := range c.Actions {
			name := a.Name
			if name == "" {
				name = fmt.Sprintf("action %d", j+1)
			}
			m, err := vm.Load(a.Bytecode, vmOpts...)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", conf.Name, name, err)
			}
			conf.Instances = append(conf.Instances, &Instance{Name: name, VM: m})
			count++
		}
		configs = append(configs, conf)
	}
	o.log.Info("VMs instantiated", "configurations", len(configs), "actions", count)
	return New(configs, opts...), nil
}

// Configurations returns the configurations in order.
func (h *Host) Configurations() []*Configuration { return h.configs }

// Current returns the index of the current configuration.
func (h *Host) Current() int { return h.current }

// Selecting reports whether the host is in selection mode.
func (h *Host) Selecting() bool { return h.selecting }

// Select makes configuration i current.
func (h *Host) Select(i int) error {
	if i < 0 || i >= len(h.configs) {
		return fmt.Errorf("configuration %d out of range [0, %d)", i, len(h.configs))
	}
	if i != h.current {
		h.current = i
		h.log.Info("configuration selected", "index", i, "name", h.configs[i].Name)
	}
	return nil
}

// Tick runs the current configuration on r, then handles selection mode
// on the resulting report.
func (h *Host) Tick(r *vm.Report) error {
	if len(h.configs) == 0 {
		return ErrNoConfiguration
	}
	err := h.configs[h.current].Run(r)
	if err != nil {
		h.log.Error("tick failed", "configuration", h.configs[h.current].Name, "error", err)
	}

	if h.selecting {
		if r.PS != 0 {
			h.selecting = false
			h.log.Info("selection mode left", "configuration", h.configs[h.current].Name)
		} else if !h.hatPressed {
			h.hatPressed = r.Hat == 0
		} else if r.Hat != 0 {
			h.hatPressed = false
			_ = h.Select((h.current + 1) % len(h.configs))
		}
	}
	return err
}
