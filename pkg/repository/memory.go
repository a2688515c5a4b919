package repository

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryTransport keeps files in memory. It counts requests so tests can
// assert that a remote was not consulted.
type MemoryTransport struct {
	mu    sync.RWMutex
	files map[string][]byte
	gets  int
	puts  int
	fail  map[string]error
}

// NewMemoryTransport returns an empty in-memory repository.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{files: make(map[string][]byte), fail: make(map[string]error)}
}

func (m *MemoryTransport) Get(_ context.Context, path string) (io.ReadCloser, error) {
	path = strings.TrimPrefix(path, "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if err, ok := m.fail[path]; ok {
		return nil, transferError(path, err)
	}
	data, ok := m.files[path]
	if !ok {
		return nil, notFound(path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryTransport) Put(_ context.Context, path string, data []byte) error {
	path = strings.TrimPrefix(path, "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.files[path] = bytes.Clone(data)
	return nil
}

// Add stores a file without counting it as a request.
func (m *MemoryTransport) Add(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[strings.TrimPrefix(path, "/")] = bytes.Clone(data)
}

// Fail makes every Get of path fail with a transfer error caused by err.
func (m *MemoryTransport) Fail(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[strings.TrimPrefix(path, "/")] = err
}

// File returns the stored contents of path.
func (m *MemoryTransport) File(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[strings.TrimPrefix(path, "/")]
	return data, ok
}

// Paths lists the stored paths in sorted order.
func (m *MemoryTransport) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Gets is the number of Get calls so far.
func (m *MemoryTransport) Gets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets
}

// Puts is the number of Put calls so far.
func (m *MemoryTransport) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
