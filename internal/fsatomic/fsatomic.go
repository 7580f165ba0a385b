// Package fsatomic persists small JSON state files (cookie jars, rate-limit
// buckets, secrets) with write-then-rename semantics and an advisory lock.
package fsatomic

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const defaultPerm fs.FileMode = 0o600

// SaveJSON writes v as indented JSON to path+".tmp", syncs it and renames it
// over path. The temp file is removed on any failure. A zero perm means 0600.
func SaveJSON(ctx context.Context, path string, v any, perm fs.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return SaveBytes(ctx, path, append(b, '\n'), perm)
}

// SaveBytes is SaveJSON for callers that already hold the encoded payload.
func SaveBytes(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	if perm == 0 {
		perm = defaultPerm
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeSynced(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := renameRetry(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return fsyncDir(dir)
}

func writeSynced(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// renameRetry retries briefly on Windows, where a reader holding the
// destination open makes the rename fail.
func renameRetry(from, to string) error {
	var err error
	for i := 0; i < 5; i++ {
		if err = os.Rename(from, to); err == nil {
			return nil
		}
		if runtime.GOOS != "windows" {
			return err
		}
		_ = os.Remove(to)
		time.Sleep(time.Duration(10*(i+1)) * time.Millisecond)
	}
	return errors.New("fsatomic: rename failed after retries: " + err.Error())
}

// LoadJSON decodes path into v. It reports false with a nil error when the
// file does not exist, and removes a stale temp file left by a crash.
func LoadJSON(path string, v any) (bool, error) {
	_ = os.Remove(path + ".tmp")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// WithLock runs fn while holding an exclusive advisory lock on path+".lock".
func WithLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	l, err := acquire(path + ".lock")
	if err != nil {
		return err
	}
	defer l.release()
	return fn()
}

func fsyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
