package repository

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/fsutil"
)

// LocalTransport serves a repository laid out in a directory.
type LocalTransport struct {
	root string
}

// NewLocalTransport returns a transport rooted at dir.
func NewLocalTransport(dir string) *LocalTransport {
	return &LocalTransport{root: dir}
}

// Root is the repository directory.
func (l *LocalTransport) Root() string { return l.root }

func (l *LocalTransport) Get(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, transferError(path, err)
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		f.Close()
		return nil, notFound(path)
	}
	return f, nil
}

// Put writes data atomically while holding the file's lock.
func (l *LocalTransport) Put(ctx context.Context, path string, data []byte) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	err = fsutil.WithLock(ctx, full, func() error {
		return fsutil.WriteFile(full, data)
	})
	if err != nil {
		return transferError(path, err)
	}
	return nil
}

// resolve maps a repository path into the root, rejecting paths that
// escape it.
func (l *LocalTransport) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if strings.Contains(path, "..") {
		return "", transferError(path, os.ErrPermission)
	}
	return filepath.Join(l.root, clean), nil
}
