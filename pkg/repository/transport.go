// Package repository provides access to artifact repositories.
//
// A [Transport] moves raw files by repository-relative path. Every
// implementation reports a missing file as [ErrNotFound] and any other
// failure wrapped in [ErrTransfer], so the update-check layer can cache
// the two outcomes differently.
//
// Implementations:
//
//   - [HTTPTransport]: remote repositories over HTTP(S), with DNS caching
//     and retries
//   - [BreakerTransport]: a per-host circuit breaker around another
//     transport
//   - [LocalTransport]: a repository directory on disk (file:// URLs)
//   - [MemoryTransport]: an in-memory repository for tests and tooling
//
// A [Connector] binds a transport to one remote repository and speaks in
// artifacts and metadata rather than paths. [NewServer] exposes a local
// repository directory over HTTP.
package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
)

var (
	// ErrNotFound reports that the requested file does not exist.
	ErrNotFound = errors.New(errors.ErrCodeNotFound, "not found")

	// ErrTransfer reports any failure other than not-found.
	ErrTransfer = errors.New(errors.ErrCodeTransfer, "transfer failed")
)

// Transport reads and writes files of one repository by relative path.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Get opens the file at path. The caller closes the reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put stores data at path, replacing any existing file.
	Put(ctx context.Context, path string, data []byte) error
}

// transferError wraps cause so that errors.Is(err, ErrTransfer) holds.
func transferError(path string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransfer, path, cause)
}

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Factory creates the transport for a remote repository.
type Factory func(repo artifact.RemoteRepository) (Transport, error)

// Registry hands out one transport per repository id, created on demand by
// the factory.
type Registry struct {
	factory    Factory
	mu         sync.Mutex
	transports map[string]Transport
}

// NewRegistry returns a registry using factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, transports: make(map[string]Transport)}
}

// Transport returns the transport for repo.
func (r *Registry) Transport(repo artifact.RemoteRepository) (Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repo.ID + "|" + repo.NormalizedURL()
	if t, ok := r.transports[key]; ok {
		return t, nil
	}
	t, err := r.factory(repo)
	if err != nil {
		return nil, err
	}
	r.transports[key] = t
	return t, nil
}

// Connector returns a connector for repo.
func (r *Registry) Connector(repo artifact.RemoteRepository) (*Connector, error) {
	t, err := r.Transport(repo)
	if err != nil {
		return nil, err
	}
	return NewConnector(repo, t), nil
}

// DefaultFactory serves file:// repositories from disk and everything
// else over HTTP. HTTP transports share one client and one circuit
// breaker per host; repository credentials are applied per transport.
func DefaultFactory(threshold int, opts ...Option) Factory {
	client := NewHTTPClient()
	breakers := NewBreakers(threshold, func(repo artifact.RemoteRepository) Transport {
		o := append([]Option{WithHTTPClient(client)}, opts...)
		if repo.Auth != nil {
			o = append(o, WithBasicAuth(repo.Auth.Username, repo.Auth.Password))
		}
		return NewHTTPTransport(repo.URL, o...)
	})
	return func(repo artifact.RemoteRepository) (Transport, error) {
		u, err := url.Parse(repo.URL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "repository %s has an invalid url", repo.ID)
		}
		switch strings.ToLower(u.Scheme) {
		case "file":
			return NewLocalTransport(u.Path), nil
		case "http", "https":
			return breakers.For(repo), nil
		}
		return nil, errors.New(errors.ErrCodeUnsupported, "repository %s: unsupported url scheme %q", repo.ID, u.Scheme)
	}
}

func isNotFound(err error) bool { return stderrors.Is(err, ErrNotFound) }
