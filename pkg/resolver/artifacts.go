package resolver

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/session"
	"github.com/matzehuels/mvnresolve/pkg/updatecheck"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// ArtifactRequest asks for the file of Artifact.
type ArtifactRequest struct {
	Artifact     artifact.Artifact
	Repositories []artifact.RemoteRepository
}

// ArtifactResult is a resolved artifact with its File set. Repository is
// nil when the file was already present in the local repository.
type ArtifactResult struct {
	Artifact   artifact.Artifact
	Repository *artifact.RemoteRepository

	// Errors are failures of repositories consulted before the one that
	// delivered the file.
	Errors []error
}

// ResolveArtifact locates the file of req.Artifact. Snapshot versions are
// first expanded through ResolveVersion. The local repository is checked
// before any remote, and remotes are only contacted when their update
// check requires it.
func (r *Resolver) ResolveArtifact(ctx context.Context, s *session.Session, req ArtifactRequest) (ArtifactResult, error) {
	a := req.Artifact
	repos := req.Repositories

	vr, err := r.ResolveVersion(ctx, s, VersionRequest{Artifact: a, Repositories: repos})
	if err != nil {
		return ArtifactResult{}, err
	}
	a = a.WithVersion(vr.Version)
	if vr.Repository != nil {
		repos = []artifact.RemoteRepository{*vr.Repository}
	}
	errs := vr.Errors

	path := s.LocalPath(a)
	movingSnapshot := strings.HasSuffix(a.Version, version.Snapshot)
	local := fileExists(path)
	if local && (!movingSnapshot || s.Offline()) {
		return ArtifactResult{Artifact: a.WithFile(path), Errors: errs}, nil
	}
	if s.Offline() {
		return ArtifactResult{}, &errors.ArtifactNotFoundError{
			Coordinate: a.String(),
			Cause:      errors.New(errors.ErrCodeOffline, "session is offline and %s is not in the local repository", a),
		}
	}

	nature := artifact.NatureRelease
	if a.IsSnapshot() {
		nature = artifact.NatureSnapshot
	}
	installed := installedAt(s, a)
	mgr := updatecheck.ForSession(s)
	for _, repo := range repos {
		if !repo.Accepts(nature) {
			continue
		}
		check := &updatecheck.Check{
			Item:             a.String(),
			File:             path,
			FileValid:        !movingSnapshot,
			LocalLastUpdated: installed,
			Policy:           updatecheck.EffectivePolicy(s, repo, a.IsSnapshot()),
			Repository:       repo,
		}
		mgr.CheckArtifact(ctx, check)
		if !check.Required {
			if check.Err != nil {
				errs = append(errs, check.Err)
				continue
			}
			if fileExists(path) {
				return ArtifactResult{Artifact: a.WithFile(path), Errors: errs}, nil
			}
			continue
		}

		err := r.download(ctx, a, repo, path)
		if err != nil {
			err = classify(a, repo, err)
		}
		check.Err = err
		if touchErr := mgr.TouchArtifact(ctx, check); touchErr != nil {
			s.Logger().Debug("record artifact check", "file", path, "err", touchErr)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Notify(ctx, observability.Event{
			Type:       observability.EventArtifactDownloaded,
			Artifact:   a.String(),
			Repository: repo.ID,
			File:       path,
		})
		return ArtifactResult{Artifact: a.WithFile(path), Repository: &repo, Errors: errs}, nil
	}

	if local {
		// A moving snapshot whose remotes had nothing newer.
		return ArtifactResult{Artifact: a.WithFile(path), Errors: errs}, nil
	}
	return ArtifactResult{}, notResolved(a, errs)
}

// ResolveArtifacts resolves every request concurrently. Results keep the
// order of reqs. The first failure is returned after all requests finish.
func (r *Resolver) ResolveArtifacts(ctx context.Context, s *session.Session, reqs []ArtifactRequest) ([]ArtifactResult, error) {
	results := make([]ArtifactResult, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(max(r.parallelism, 1))
	for i, req := range reqs {
		g.Go(func() error {
			results[i], errs[i] = r.ResolveArtifact(ctx, s, req)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// download fetches a from repo into path. Concurrent requests for the same
// file and repository share one transfer.
func (r *Resolver) download(ctx context.Context, a artifact.Artifact, repo artifact.RemoteRepository, path string) error {
	_, err, _ := r.downloads.Do(path+"|"+repo.ID, func() (any, error) {
		conn, err := r.registry.Connector(repo)
		if err != nil {
			return nil, err
		}
		return nil, conn.FetchArtifact(ctx, a, path)
	})
	return err
}

// classify turns a transport error into the typed error of the artifact.
func classify(a artifact.Artifact, repo artifact.RemoteRepository, err error) error {
	if updatecheck.IsNotFound(err) {
		return &errors.ArtifactNotFoundError{Coordinate: a.String(), Repository: repo.String(), Cause: err}
	}
	return &errors.TransferError{Coordinate: a.String(), Repository: repo.String(), Cause: err}
}

// notResolved summarizes the failures of every repository. A transfer
// failure takes precedence over not-found, since retrying may help.
func notResolved(a artifact.Artifact, errs []error) error {
	for _, err := range errs {
		var te *errors.TransferError
		if stderrors.As(err, &te) {
			return err
		}
	}
	for _, err := range errs {
		var nf *errors.ArtifactNotFoundError
		if stderrors.As(err, &nf) {
			return err
		}
	}
	return &errors.ArtifactNotFoundError{Coordinate: a.String(), Cause: stderrors.Join(errs...)}
}

// installedAt returns when a moving snapshot was installed into the local
// repository, judged by its local snapshot metadata. The zero time means
// it was never installed locally.
func installedAt(s *session.Session, a artifact.Artifact) time.Time {
	if !strings.HasSuffix(a.Version, version.Snapshot) {
		return time.Time{}
	}
	fi, err := os.Stat(s.LocalMetadataPath(artifact.SnapshotMetadata(a), artifact.LocalRepositoryID))
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
