//go:build !windows

package fsatomic

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// fileLock is an flock(2) held on a sidecar file. The file itself stays.
type fileLock struct {
	f    *os.File
	once sync.Once
}

func acquire(lockPath string) (*fileLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() {
	l.once.Do(func() {
		_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
		_ = l.f.Close()
	})
}
