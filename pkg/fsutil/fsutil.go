// Package fsutil provides the file primitives shared by the local
// repository writers: exclusive locks keyed by file identity and atomic
// replacement of file contents.
package fsutil

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is the polling interval while waiting for a contended lock.
const lockRetry = 20 * time.Millisecond

// LockPath is the sidecar file used to lock path. Locking a sidecar keeps
// the lock valid across the rename that replaces path.
func LockPath(path string) string { return path + ".lock" }

// WithLock runs fn while holding an exclusive lock on path. The lock is
// released on every exit path, including panics in fn.
func WithLock(ctx context.Context, path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fl := flock.New(LockPath(path))
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Err()
	}
	defer fl.Unlock()
	return fn()
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	_, err := WriteFrom(path, bytes.NewReader(data))
	return err
}

// WriteFrom atomically replaces path with the contents of r and returns
// the number of bytes written. Readers of path observe either the old or
// the new contents, never a partial file.
func WriteFrom(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

// CopyFile atomically copies src to dst.
func CopyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = WriteFrom(dst, f)
	return err
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
