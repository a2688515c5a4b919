// Package session carries the state shared by one resolution session.
//
// A Session is passed explicitly to every resolution operation; nothing in
// the resolver looks up a "current" session. It owns the session-scoped
// caches (metadata documents, version resolutions, the update-check
// memo) which are torn down together with the session.
//
// Sessions are safe for concurrent use. Derived sessions created with
// [Session.WithDescriptorPolicy] share the identity and caches of their
// parent.
package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
)

// UpdateCheckMode controls the per-session memo of update checks.
type UpdateCheckMode string

const (
	// UpdateCheckEnabled checks each (file, repository) pair at most once
	// per session.
	UpdateCheckEnabled UpdateCheckMode = "enabled"
	// UpdateCheckBypass evaluates the update policy every time but still
	// records checks.
	UpdateCheckBypass UpdateCheckMode = "bypass"
	// UpdateCheckDisabled neither consults nor records the memo.
	UpdateCheckDisabled UpdateCheckMode = "disabled"
)

// ParseUpdateCheckMode parses a mode name. The empty string is enabled.
func ParseUpdateCheckMode(s string) (UpdateCheckMode, error) {
	switch m := UpdateCheckMode(s); m {
	case "":
		return UpdateCheckEnabled, nil
	case UpdateCheckEnabled, UpdateCheckBypass, UpdateCheckDisabled:
		return m, nil
	}
	return "", errors.New(errors.ErrCodeInvalidPolicy, "unknown update check mode %q", s)
}

// ErrorCachePolicy selects which failed transfers are remembered in
// tracking files so they are not retried before the update policy allows.
type ErrorCachePolicy uint8

const (
	CacheNotFound ErrorCachePolicy = 1 << iota
	CacheTransferError
)

// CacheAllErrors remembers both kinds of failure.
const CacheAllErrors = CacheNotFound | CacheTransferError

// DescriptorPolicy selects descriptor failures that are tolerated.
type DescriptorPolicy uint8

const (
	IgnoreMissing DescriptorPolicy = 1 << iota
	IgnoreInvalid
)

// Config configures a new session.
type Config struct {
	// LocalRepository is the directory of the local artifact cache.
	LocalRepository string

	// Offline forbids any remote access.
	Offline bool

	// UpdatePolicy, when set, overrides the update policy of every
	// repository (e.g. "always" for a forced update).
	UpdatePolicy string

	UpdateCheckMode  UpdateCheckMode
	ErrorCachePolicy ErrorCachePolicy
	DescriptorPolicy DescriptorPolicy

	// Listener receives diagnostics. Defaults to a no-op listener.
	Listener observability.Listener

	// Logger defaults to log.Default().
	Logger *log.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time

	// CacheSize bounds each LRU session cache.
	CacheSize int

	// Properties are system properties available for interpolation in
	// descriptors (e.g. java.version).
	Properties map[string]string
}

// Session is the explicit context of a resolution.
type Session struct {
	id     string
	cfg    Config
	caches *cache.Map[string, any]
}

// New validates cfg and creates a session with a fresh identity.
func New(cfg Config) (*Session, error) {
	if cfg.LocalRepository == "" {
		return nil, errors.New(errors.ErrCodeInvalidSettings, "local repository directory is required")
	}
	dir, err := filepath.Abs(cfg.LocalRepository)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "local repository %q", cfg.LocalRepository)
	}
	cfg.LocalRepository = dir

	mode, err := ParseUpdateCheckMode(string(cfg.UpdateCheckMode))
	if err != nil {
		return nil, err
	}
	cfg.UpdateCheckMode = mode
	if cfg.Listener == nil {
		cfg.Listener = observability.NoopListener{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		caches: cache.NewMap[string, any](),
	}, nil
}

// ID is the unique session identity.
func (s *Session) ID() string { return s.id }

func (s *Session) LocalRepository() string            { return s.cfg.LocalRepository }
func (s *Session) Offline() bool                      { return s.cfg.Offline }
func (s *Session) UpdatePolicy() string               { return s.cfg.UpdatePolicy }
func (s *Session) UpdateCheckMode() UpdateCheckMode   { return s.cfg.UpdateCheckMode }
func (s *Session) ErrorCachePolicy() ErrorCachePolicy { return s.cfg.ErrorCachePolicy }
func (s *Session) DescriptorPolicy() DescriptorPolicy { return s.cfg.DescriptorPolicy }
func (s *Session) Logger() *log.Logger                { return s.cfg.Logger }
func (s *Session) Listener() observability.Listener   { return s.cfg.Listener }
func (s *Session) Properties() map[string]string      { return s.cfg.Properties }
func (s *Session) CacheSize() int                     { return s.cfg.CacheSize }

// Now returns the session clock's current time.
func (s *Session) Now() time.Time { return s.cfg.Clock() }

// Notify forwards an event to the session listener.
func (s *Session) Notify(ctx context.Context, e observability.Event) {
	s.cfg.Listener.OnEvent(ctx, e)
}

// WithDescriptorPolicy returns a session that differs only in its
// descriptor policy. Identity and caches are shared.
func (s *Session) WithDescriptorPolicy(p DescriptorPolicy) *Session {
	cp := *s
	cp.cfg.DescriptorPolicy = p
	return &cp
}

// WithOffline returns a session that differs only in its offline flag.
func (s *Session) WithOffline(offline bool) *Session {
	cp := *s
	cp.cfg.Offline = offline
	return &cp
}

// LocalPath is the absolute path of an artifact in the local repository.
func (s *Session) LocalPath(a artifact.Artifact) string {
	return filepath.Join(s.cfg.LocalRepository, filepath.FromSlash(artifact.ArtifactPath(a)))
}

// LocalMetadataPath is the absolute path of the local copy of a metadata
// document fetched from repoID, or installed locally when repoID is
// artifact.LocalRepositoryID.
func (s *Session) LocalMetadataPath(m artifact.MetadataRef, repoID string) string {
	return filepath.Join(s.cfg.LocalRepository, filepath.FromSlash(artifact.LocalMetadataPath(m, repoID)))
}

// Value returns the session-scoped value stored under key, creating it
// with create on first use. Components use it to hang their caches off the
// session.
func Value[T any](s *Session, key string, create func() T) T {
	if v, ok := s.caches.Get(key); ok {
		return v.(T)
	}
	s.caches.SetIfAbsent(key, create())
	v, _ := s.caches.Get(key)
	return v.(T)
}
