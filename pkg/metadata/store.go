package metadata

import (
	"context"
	"os"
	"time"

	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/fsutil"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Load reads and parses a document. It returns (nil, nil) when the file
// does not exist.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Store reads and writes metadata documents of one session. Parsed
// documents are cached by path and invalidated when the file changes.
type Store struct {
	sess *session.Session
	docs *cache.Map[string, cachedDoc]
}

type cachedDoc struct {
	mod  time.Time
	size int64
	doc  *Metadata
}

// ForSession returns the store of s, creating it on first use.
func ForSession(s *session.Session) *Store {
	return session.Value(s, "metadata.store", func() *Store {
		return &Store{sess: s, docs: cache.NewMap[string, cachedDoc]()}
	})
}

// Read returns the document at path, or nil when it is absent. A document
// that cannot be parsed is reported to the session listener as
// EventMetadataInvalid and treated as absent.
func (st *Store) Read(ctx context.Context, path string) *Metadata {
	fi, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if c, ok := st.docs.Get(path); ok && c.mod.Equal(fi.ModTime()) && c.size == fi.Size() {
		observability.Cache().OnCacheHit(ctx, "metadata")
		return c.doc.Clone()
	}
	observability.Cache().OnCacheMiss(ctx, "metadata")

	m, err := Load(path)
	if err != nil {
		st.sess.Notify(ctx, observability.Event{
			Type: observability.EventMetadataInvalid,
			File: path,
			Err:  err,
		})
		return nil
	}
	if m == nil {
		return nil
	}
	st.docs.Set(path, cachedDoc{mod: fi.ModTime(), size: fi.Size(), doc: m})
	return m.Clone()
}

// Write replaces the document at path under an exclusive file lock.
func (st *Store) Write(ctx context.Context, path string, m *Metadata) error {
	return fsutil.WithLock(ctx, path, func() error {
		return st.write(path, m)
	})
}

// Update merges m over the document currently at path and writes the
// result, all under one exclusive file lock. A corrupt existing document
// is reported and replaced.
func (st *Store) Update(ctx context.Context, path string, m *Metadata) (*Metadata, error) {
	return st.Modify(ctx, path, func(existing *Metadata) (*Metadata, error) {
		return Merge(m, existing), nil
	})
}

// Modify replaces the document at path with the result of fn, which is
// handed the current document or nil. The read and the write happen under
// one exclusive file lock.
func (st *Store) Modify(ctx context.Context, path string, fn func(existing *Metadata) (*Metadata, error)) (*Metadata, error) {
	var out *Metadata
	err := fsutil.WithLock(ctx, path, func() error {
		st.docs.Delete(path)
		m, err := fn(st.Read(ctx, path))
		if err != nil {
			return err
		}
		out = m
		return st.write(path, m)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (st *Store) write(path string, m *Metadata) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFile(path, data); err != nil {
		return err
	}
	st.docs.Delete(path)
	return nil
}
