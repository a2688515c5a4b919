package resolver

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/session"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// VersionRequest asks for the concrete version of Artifact.
type VersionRequest struct {
	Artifact     artifact.Artifact
	Repositories []artifact.RemoteRepository

	// Path is the dependency path that led to the request, for errors.
	Path []string
}

// VersionResult is a resolved version and the repository whose metadata
// supplied it. Repository is nil when the version came from the local
// repository or needed no metadata.
type VersionResult struct {
	Version    string
	Repository *artifact.RemoteRepository

	// Errors are transfer failures that did not prevent resolution.
	Errors []error
}

// versionInfo is a candidate version with the stamp of the document that
// named it.
type versionInfo struct {
	version   string
	timestamp string
	repo      *artifact.RemoteRepository
}

func (vi *versionInfo) outdated(timestamp string) bool {
	return timestamp != "" && timestamp > vi.timestamp
}

func sameRepo(a, b *artifact.RemoteRepository) bool {
	switch {
	case a == nil || b == nil:
		return a == b
	default:
		return a.ID == b.ID
	}
}

// ResolveVersion maps the meta versions RELEASE and LATEST and snapshot
// versions to concrete versions. Every other version is returned as is.
//
// An unresolvable SNAPSHOT keeps its version. An unresolvable RELEASE or
// LATEST fails with a VersionResolutionError.
func (r *Resolver) ResolveVersion(ctx context.Context, s *session.Session, req VersionRequest) (VersionResult, error) {
	a := req.Artifact
	var ref artifact.MetadataRef
	switch {
	case a.Version == version.Release:
		ref = artifact.VersionsMetadata(a.GroupID, a.ArtifactID, artifact.NatureRelease)
	case a.Version == version.Latest:
		ref = artifact.VersionsMetadata(a.GroupID, a.ArtifactID, artifact.NatureReleaseOrSnapshot)
	case strings.HasSuffix(a.Version, version.Snapshot):
		ref = artifact.SnapshotMetadata(a)
	default:
		return VersionResult{Version: a.Version}, nil
	}

	key := requestKey(s, a.String(), req.Repositories)
	vc := caches(s).versions
	if res, ok := vc.Get(ctx, key); ok {
		return res, nil
	}

	var (
		infos = map[string]*versionInfo{}
		errs  []error
	)
	for _, md := range r.resolveMetadata(ctx, s, ref, req.Repositories) {
		if md.Err != nil {
			errs = append(errs, md.Err)
		}
		doc := md.Doc
		if md.Repo == nil {
			doc = repairLocal(ctx, s, ref, doc)
		}
		collectInfos(infos, a, doc, md.Repo)
	}

	res := VersionResult{Errors: errs}
	switch a.Version {
	case version.Release:
		res.apply(infos[version.Release])
	case version.Latest:
		if !res.apply(infos[version.Latest]) {
			res.apply(infos[version.Release])
		}
		if strings.HasSuffix(res.Version, version.Snapshot) {
			// The winning snapshot is expanded against the repository that
			// announced it only.
			sub := req
			sub.Artifact = a.WithVersion(res.Version)
			sub.Repositories = nil
			if res.Repository != nil {
				sub.Repositories = []artifact.RemoteRepository{*res.Repository}
			}
			snap, err := r.ResolveVersion(ctx, s, sub)
			if err != nil {
				return VersionResult{}, err
			}
			res.Version = snap.Version
			if snap.Repository != nil {
				res.Repository = snap.Repository
			}
			res.Errors = append(res.Errors, snap.Errors...)
		}
	default:
		snapKey := snapshotKey(a.Classifier, a.Extension)
		mergeInfo(infos, version.Snapshot, snapKey)
		if !res.apply(infos[snapKey]) {
			res.Version = a.Version
		}
	}

	if res.Version == "" {
		return VersionResult{}, &errors.VersionResolutionError{
			Coordinate:   a.String(),
			Repositories: repoNames(req.Repositories),
			Path:         req.Path,
			Cause:        stderrors.Join(errs...),
		}
	}
	vc.Add(ctx, key, res)
	return res, nil
}

func (res *VersionResult) apply(vi *versionInfo) bool {
	if vi == nil || vi.version == "" {
		return false
	}
	res.Version = vi.version
	res.Repository = vi.repo
	return true
}

func snapshotKey(classifier, extension string) string {
	return version.Snapshot + classifier + ":" + extension
}

// collectInfos records the candidates named by doc.
func collectInfos(infos map[string]*versionInfo, a artifact.Artifact, doc *metadata.Metadata, repo *artifact.RemoteRepository) {
	if doc == nil || doc.Versioning == nil {
		return
	}
	v := doc.Versioning
	put := func(key, ver, ts string) {
		if ver == "" {
			return
		}
		cur, ok := infos[key]
		if !ok || cur.outdated(ts) {
			infos[key] = &versionInfo{version: ver, timestamp: ts, repo: repo}
		}
	}
	put(version.Release, v.Release, v.LastUpdated)
	put(version.Latest, v.Latest, v.LastUpdated)
	for _, sv := range v.SnapshotVersions {
		put(snapshotKey(sv.Classifier, sv.Extension), sv.Value, sv.Updated)
	}
	if v.Snapshot != nil && len(v.SnapshotVersions) == 0 {
		ver := a.BaseVersion()
		if v.Snapshot.Timestamp != "" && v.Snapshot.BuildNumber > 0 {
			ver = version.ExpandSnapshot(ver, v.Snapshot.Timestamp, v.Snapshot.BuildNumber)
		}
		put(version.Snapshot, ver, v.LastUpdated)
	}
}

// mergeInfo lets the generic snapshot candidate src replace the file
// specific candidate dst when dst is missing, or when src is newer and
// comes from another repository.
func mergeInfo(infos map[string]*versionInfo, src, dst string) {
	s, d := infos[src], infos[dst]
	if s == nil {
		return
	}
	if d == nil || (d.outdated(s.timestamp) && !sameRepo(s.repo, d.repo)) {
		infos[dst] = s
	}
}

// repairLocal treats locally installed snapshot metadata that carries a
// remote build number as a plain local copy. Such documents come from
// older tools that copied remote metadata into the local repository.
func repairLocal(ctx context.Context, s *session.Session, ref artifact.MetadataRef, doc *metadata.Metadata) *metadata.Metadata {
	if doc == nil || doc.Versioning == nil || doc.Versioning.Snapshot == nil || doc.Versioning.Snapshot.BuildNumber <= 0 {
		return doc
	}
	path := s.LocalMetadataPath(ref, artifact.LocalRepositoryID)
	s.Notify(ctx, observability.Event{
		Type:     observability.EventMetadataInvalid,
		Artifact: ref.String(),
		File:     path,
		Message:  "snapshot metadata corrupted, treating as local copy",
		Err:      errors.New(errors.ErrCodeInvalidFormat, "local snapshot metadata has build number %d", doc.Versioning.Snapshot.BuildNumber),
	})
	return &metadata.Metadata{
		GroupID:    doc.GroupID,
		ArtifactID: doc.ArtifactID,
		Version:    doc.Version,
		Versioning: &metadata.Versioning{
			LastUpdated: doc.Versioning.LastUpdated,
			Snapshot:    &metadata.Snapshot{LocalCopy: true},
		},
	}
}

func repoNames(repos []artifact.RemoteRepository) []string {
	names := make([]string, 0, len(repos)+1)
	names = append(names, artifact.LocalRepositoryID)
	for _, r := range repos {
		names = append(names, r.String())
	}
	return names
}
