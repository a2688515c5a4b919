// Package deploy installs artifacts into the local repository and deploys
// them to remote repositories, maintaining the repository metadata of
// both.
//
// Metadata is produced by [Generator]s. For a deploy the remote snapshot
// generator merges the snapshot document before any upload so that every
// file of the build shares one timestamp and build number; the versions
// and plugin prefix documents are merged and uploaded after the files.
// Installs write the same documents as maven-metadata-local.xml, with
// snapshots marked as local copies and left unexpanded.
//
// Builds that deploy in several batches pass the Metadata of the previous
// result into the next request, which keeps the snapshot number stable
// across the batches.
package deploy

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// DeployRequest lists the artifacts of one deploy. Every artifact must
// carry its File.
type DeployRequest struct {
	Repository artifact.RemoteRepository
	Artifacts  []artifact.Artifact
	Metadata   []Metadata
}

// DeployResult reports the uploaded artifacts with their final versions.
type DeployResult struct {
	Artifacts []artifact.Artifact
	Metadata  []Metadata
}

// Deployer uploads artifacts through the connectors of a registry.
type Deployer struct {
	registry    *repository.Registry
	buildNumber int
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithSnapshotBuildNumber forces the build number of deployed snapshots.
func WithSnapshotBuildNumber(n int) Option {
	return func(d *Deployer) { d.buildNumber = n }
}

// NewDeployer creates a Deployer.
func NewDeployer(registry *repository.Registry, opts ...Option) *Deployer {
	d := &Deployer{registry: registry}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy uploads the artifacts to req.Repository and then the merged
// metadata. A copy of every uploaded document is kept in the local
// repository as the cached remote metadata.
func (d *Deployer) Deploy(ctx context.Context, s *session.Session, req DeployRequest) (*DeployResult, error) {
	if s.Offline() {
		return nil, errors.New(errors.ErrCodeOffline, "cannot deploy to %s in offline mode", req.Repository)
	}
	if err := checkFiles(req.Artifacts); err != nil {
		return nil, err
	}
	conn, err := d.registry.Connector(req.Repository)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to connect to %s", req.Repository)
	}

	gens := generators{
		NewRemoteSnapshotGenerator(req.Metadata, d.buildNumber),
		NewVersionsGenerator(req.Metadata),
		NewPluginPrefixGenerator(req.Metadata),
	}
	prepared := gens.prepare(req.Artifacts)
	for _, md := range prepared {
		if err := d.merge(ctx, s, conn, md); err != nil {
			return nil, err
		}
	}

	res := &DeployResult{}
	for _, a := range req.Artifacts {
		a = gens.transform(a)
		if err := conn.PutArtifact(ctx, a, a.File); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to deploy %s to %s", a, req.Repository)
		}
		res.Artifacts = append(res.Artifacts, a)
		s.Notify(ctx, observability.Event{
			Type:       observability.EventArtifactDeployed,
			Artifact:   a.String(),
			Repository: req.Repository.String(),
			File:       a.File,
		})
	}

	finished := gens.finish(req.Artifacts)
	for _, md := range finished {
		if err := d.merge(ctx, s, conn, md); err != nil {
			return nil, err
		}
	}

	store := metadata.ForSession(s)
	for _, md := range dedupe(append(prepared, finished...)) {
		data, err := metadata.Marshal(md.Document())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to encode metadata %s", md.Ref())
		}
		if err := conn.PutMetadata(ctx, md.Ref(), data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDeploy, err, "failed to deploy metadata %s to %s", md.Ref(), req.Repository)
		}
		local := s.LocalMetadataPath(md.Ref(), req.Repository.ID)
		if err := store.Write(ctx, local, md.Document()); err != nil {
			s.Logger().Warn("failed to cache deployed metadata", "metadata", md.Ref(), "path", local, "err", err)
		}
		res.Metadata = append(res.Metadata, md)
		s.Notify(ctx, observability.Event{
			Type:       observability.EventMetadataDeployed,
			Artifact:   md.Ref().String(),
			Repository: req.Repository.String(),
		})
	}
	return res, nil
}

// merge combines md with the document currently in the repository. A
// missing document merges as nil; any other read failure aborts the
// deploy rather than overwrite metadata that could not be seen.
func (d *Deployer) merge(ctx context.Context, s *session.Session, conn *repository.Connector, md Metadata) error {
	if md.Document() != nil {
		return nil
	}
	existing, err := conn.ReadMetadata(ctx, md.Ref())
	if err != nil {
		if !stderrors.Is(err, repository.ErrNotFound) {
			return errors.Wrap(errors.ErrCodeDeploy, err, "failed to read metadata %s", md.Ref())
		}
		existing = nil
	}
	md.Merge(existing, s.Now())
	return nil
}
