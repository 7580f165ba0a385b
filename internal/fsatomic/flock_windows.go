//go:build windows

package fsatomic

import (
	"errors"
	"os"
	"sync"
	"time"
)

const lockWait = 5 * time.Second

// fileLock stands in for flock with an O_EXCL sidecar file that is removed
// on release.
type fileLock struct {
	f    *os.File
	path string
	once sync.Once
}

func acquire(lockPath string) (*fileLock, error) {
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err == nil {
			return &fileLock{f: f, path: lockPath}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errors.New("fsatomic: timed out waiting for " + lockPath)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func (l *fileLock) release() {
	l.once.Do(func() {
		_ = l.f.Close()
		_ = os.Remove(l.path)
	})
}
