//go:build !linux

package watch

import "time"

func newBackend() (backend, error) {
	return newPoller(250 * time.Millisecond), nil
}
