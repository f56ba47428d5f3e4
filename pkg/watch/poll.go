package watch

import (
	"context"
	"os"
	"sync"
	"time"
)

type fileState struct {
	modTime time.Time
	size    int64
}

// poller compares modification times and sizes at a fixed interval.
type poller struct {
	interval time.Duration

	mu    sync.Mutex
	files map[string]fileState
}

func newPoller(interval time.Duration) *poller {
	return &poller{interval: interval, files: make(map[string]fileState)}
}

func stat(path string) fileState {
	fi, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{modTime: fi.ModTime(), size: fi.Size()}
}

func (p *poller) add(path string) error {
	p.mu.Lock()
	p.files[path] = stat(path)
	p.mu.Unlock()
	return nil
}

func (p *poller) run(ctx context.Context, notify func(string)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var changed []string
		p.mu.Lock()
		for path, old := range p.files {
			if cur := stat(path); cur != old {
				p.files[path] = cur
				changed = append(changed, path)
			}
		}
		p.mu.Unlock()

		for _, path := range changed {
			notify(path)
		}
	}
}

func (p *poller) close() error { return nil }
