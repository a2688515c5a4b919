package deploy

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/fsutil"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// InstallRequest lists the artifacts of one install. Every artifact must
// carry its File. Metadata holds the documents returned by an earlier
// install of the same build.
type InstallRequest struct {
	Artifacts []artifact.Artifact
	Metadata  []Metadata
}

// InstallResult reports what was written to the local repository.
type InstallResult struct {
	Artifacts []artifact.Artifact
	Metadata  []Metadata
}

// Installer copies artifacts into the local repository of a session and
// maintains the local metadata.
type Installer struct{}

// NewInstaller creates an Installer.
func NewInstaller() *Installer { return &Installer{} }

// Install copies the artifacts and merges the generated metadata into
// the maven-metadata-local.xml documents under a lock.
func (in *Installer) Install(ctx context.Context, s *session.Session, req InstallRequest) (*InstallResult, error) {
	if err := checkFiles(req.Artifacts); err != nil {
		return nil, err
	}
	gens := generators{
		NewLocalSnapshotGenerator(req.Metadata),
		NewVersionsGenerator(req.Metadata),
		NewPluginPrefixGenerator(req.Metadata),
	}
	res := &InstallResult{}
	pending := gens.prepare(req.Artifacts)

	for _, a := range req.Artifacts {
		a = gens.transform(a)
		dst := s.LocalPath(a)
		if err := installFile(ctx, a.File, dst); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to install %s", a)
		}
		a = a.WithFile(dst)
		res.Artifacts = append(res.Artifacts, a)
		s.Notify(ctx, observability.Event{Type: observability.EventArtifactInstalled, Artifact: a.String(), File: dst})
	}

	store := metadata.ForSession(s)
	for _, md := range dedupe(append(pending, gens.finish(req.Artifacts)...)) {
		path := s.LocalMetadataPath(md.Ref(), artifact.LocalRepositoryID)
		_, err := store.Modify(ctx, path, func(existing *metadata.Metadata) (*metadata.Metadata, error) {
			return md.Merge(existing, s.Now()), nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to install metadata %s", md.Ref())
		}
		res.Metadata = append(res.Metadata, md)
		s.Notify(ctx, observability.Event{Type: observability.EventMetadataInstalled, Artifact: md.Ref().String(), File: path})
	}
	return res, nil
}

func installFile(ctx context.Context, src, dst string) error {
	if same(src, dst) {
		return nil
	}
	return fsutil.WithLock(ctx, dst, func() error {
		return fsutil.CopyFile(src, dst)
	})
}

func same(a, b string) bool {
	x, err1 := filepath.Abs(a)
	y, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && x == y
}

func checkFiles(as []artifact.Artifact) error {
	for _, a := range as {
		if a.File == "" {
			return errors.New(errors.ErrCodeInvalidInput, "artifact %s has no file", a)
		}
		if !fsutil.Exists(a.File) {
			return errors.New(errors.ErrCodeInvalidInput, "file %s of artifact %s does not exist", a.File, a)
		}
	}
	return nil
}
