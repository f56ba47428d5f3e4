// Package watch calls back when watched files change, coalescing bursts of
// writes into one notification per file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zurustar/padscript/pkg/logger"
)

// DefaultDebounce is how long a file must stay quiet before its change is
// reported.
const DefaultDebounce = 200 * time.Millisecond

type backend interface {
	add(path string) error
	run(ctx context.Context, notify func(path string)) error
	close() error
}

// Watcher watches files and reports changes to a callback.
type Watcher struct {
	backend  backend
	onChange func(string)
	debounce time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// New creates a watcher calling onChange with the absolute path of each
// changed file. onChange runs on its own goroutine.
func New(onChange func(string), opts ...Option) (*Watcher, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		backend:  b,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      logger.GetLogger(),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add starts watching the file at path, which must exist.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if err := w.backend.add(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.log.Debug("watching", "path", abs)
	return nil
}

// Run delivers changes until ctx is done. Pending notifications are
// dropped when it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	return w.backend.run(ctx, w.changed)
}

// Close releases the watcher's resources.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.backend.close()
}

func (w *Watcher) changed(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.log.Info("file changed", "path", path)
		w.onChange(path)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
