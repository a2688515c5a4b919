// Package resolver turns coordinates into concrete versions and files.
//
// Three operations build on each other:
//
//   - [Resolver.ResolveVersion] maps LATEST, RELEASE and SNAPSHOT versions
//     to concrete ones using the metadata of the local repository and every
//     remote repository, the newest lastUpdated stamp winning.
//   - [Resolver.ResolveVersionRange] lists the versions of every
//     repository that fall into a range, ascending.
//   - [Resolver.ResolveArtifact] locates the artifact file, checking the
//     local repository first and downloading from the remotes whose update
//     policy asks for it.
//
// Every operation takes the [session.Session] explicitly. Results that do
// not depend on remote state changing mid-session are cached in the
// session.
package resolver

import (
	"context"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/session"
	"github.com/matzehuels/mvnresolve/pkg/updatecheck"
)

// Resolver resolves versions, version ranges and artifacts against the
// repositories reachable through its transport registry.
type Resolver struct {
	registry  *repository.Registry
	downloads singleflight.Group

	// parallelism bounds concurrent remote metadata reads.
	parallelism int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParallelism bounds the number of concurrent remote requests.
func WithParallelism(n int) Option {
	return func(r *Resolver) { r.parallelism = n }
}

// New returns a resolver using registry for remote access.
func New(registry *repository.Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: registry, parallelism: 8}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry is the transport registry of the resolver.
func (r *Resolver) Registry() *repository.Registry { return r.registry }

// =============================================================================
// Metadata resolution
// =============================================================================

// metadataResult is one repository's copy of a metadata document. Repo is
// nil for the local repository.
type metadataResult struct {
	Repo *artifact.RemoteRepository
	Doc  *metadata.Metadata
	Err  error
}

// resolveMetadata returns the local copy of ref followed by the copy of
// each remote repository that serves ref's nature, in repository order.
// Remote copies are refreshed when the update policy requires it.
func (r *Resolver) resolveMetadata(ctx context.Context, s *session.Session, ref artifact.MetadataRef, repos []artifact.RemoteRepository) []metadataResult {
	store := metadata.ForSession(s)
	results := []metadataResult{{Doc: store.Read(ctx, s.LocalMetadataPath(ref, artifact.LocalRepositoryID))}}

	var remotes []artifact.RemoteRepository
	for _, repo := range repos {
		if repo.Accepts(ref.Nature) {
			remotes = append(remotes, repo)
		}
	}
	remote := make([]metadataResult, len(remotes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.parallelism, 1))
	for i, repo := range remotes {
		g.Go(func() error {
			path := s.LocalMetadataPath(ref, repo.ID)
			res := metadataResult{Repo: &repo}
			if err := r.refreshMetadata(gctx, s, ref, repo, path); err != nil && !updatecheck.IsNotFound(err) {
				res.Err = err
			}
			res.Doc = store.Read(gctx, path)
			remote[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return append(results, remote...)
}

// refreshMetadata downloads ref from repo into path when the update check
// requires it. A missing remote document removes the cached copy.
func (r *Resolver) refreshMetadata(ctx context.Context, s *session.Session, ref artifact.MetadataRef, repo artifact.RemoteRepository, path string) error {
	if s.Offline() {
		return nil
	}
	mgr := updatecheck.ForSession(s)
	check := &updatecheck.Check{
		Item:       ref.String(),
		File:       path,
		FileValid:  true,
		Policy:     updatecheck.EffectivePolicy(s, repo, ref.Nature == artifact.NatureSnapshot),
		Repository: repo,
	}
	mgr.CheckMetadata(ctx, check)
	if !check.Required {
		return check.Err
	}

	conn, err := r.registry.Connector(repo)
	if err != nil {
		return err
	}
	err = conn.FetchMetadata(ctx, ref, path)
	switch {
	case err == nil:
		s.Notify(ctx, observability.Event{
			Type:       observability.EventMetadataDownloaded,
			Artifact:   ref.String(),
			Repository: repo.ID,
			File:       path,
		})
	case updatecheck.IsNotFound(err):
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.Logger().Debug("remove stale metadata", "file", path, "err", rmErr)
		}
	default:
		s.Logger().Debug("metadata transfer failed", "metadata", ref.String(), "repo", repo.ID, "err", err)
	}
	check.Err = err
	if touchErr := mgr.TouchMetadata(ctx, check); touchErr != nil {
		s.Logger().Debug("record metadata check", "file", path, "err", touchErr)
	}
	return err
}

// sessionCaches are the per-session caches of the resolver.
type sessionCaches struct {
	versions *cache.LRU[string, VersionResult]
	ranges   *cache.LRU[string, RangeResult]
}

func caches(s *session.Session) *sessionCaches {
	return session.Value(s, "resolver.caches", func() *sessionCaches {
		return &sessionCaches{
			versions: cache.NewLRU[string, VersionResult]("version", s.CacheSize()),
			ranges:   cache.NewLRU[string, RangeResult]("version_range", s.CacheSize()),
		}
	})
}

// requestKey identifies a request within a session. Offline and online
// views of a session share caches, so the flag is part of the key.
func requestKey(s *session.Session, coords string, repos []artifact.RemoteRepository) string {
	var b strings.Builder
	b.WriteString(coords)
	if s.Offline() {
		b.WriteString("|offline")
	}
	for _, r := range repos {
		b.WriteString("|")
		b.WriteString(r.ID)
		b.WriteString("=")
		b.WriteString(r.NormalizedURL())
	}
	return b.String()
}
