//go:build linux

package watch

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_CREATE

// inotify watches the parent directories of the files so that editors
// replacing a file by rename are still seen.
type inotify struct {
	fd int

	mu    sync.Mutex
	dirs  map[int]string
	files map[string]bool
}

func newBackend() (backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &inotify{fd: fd, dirs: make(map[int]string), files: make(map[string]bool)}, nil
}

func (in *inotify) add(path string) error {
	dir := filepath.Dir(path)
	wd, err := unix.InotifyAddWatch(in.fd, dir, inotifyMask)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.dirs[wd] = dir
	in.files[path] = true
	in.mu.Unlock()
	return nil
}

func (in *inotify) run(ctx context.Context, notify func(string)) error {
	buf := make([]byte, (unix.SizeofInotifyEvent+unix.NAME_MAX+1)*16)
	fds := []unix.PollFd{{Fd: int32(in.fd), Events: unix.POLLIN}}

	for ctx.Err() == nil {
		n, err := unix.Poll(fds, 100)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		n, err = unix.Read(in.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return err
		}

		for offset := 0; offset+unix.SizeofInotifyEvent <= n; {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameStart := offset + unix.SizeofInotifyEvent
			offset = nameStart + int(event.Len)
			if event.Mask&inotifyMask == 0 || event.Len == 0 {
				continue
			}
			name := string(bytes.TrimRight(buf[nameStart:offset], "\x00"))

			in.mu.Lock()
			path := filepath.Join(in.dirs[int(event.Wd)], name)
			watched := in.files[path]
			in.mu.Unlock()

			if watched {
				notify(path)
			}
		}
	}
	return nil
}

func (in *inotify) close() error {
	return unix.Close(in.fd)
}
