package resolver

import (
	"context"
	"slices"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/session"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// RangeRequest asks for the versions of Artifact that satisfy its version
// constraint.
type RangeRequest struct {
	Artifact     artifact.Artifact
	Repositories []artifact.RemoteRepository
}

// RangeResult lists matching versions in ascending order.
type RangeResult struct {
	Constraint version.Constraint
	Versions   []version.Version

	// Repositories maps a version string to the repository that listed it
	// first. Versions known from the local repository map to nil.
	Repositories map[string]*artifact.RemoteRepository

	Errors []error
}

// Highest returns the greatest matching version.
func (r RangeResult) Highest() (version.Version, bool) {
	if len(r.Versions) == 0 {
		return version.Version{}, false
	}
	return r.Versions[len(r.Versions)-1], true
}

// Repository returns the repository that listed v.
func (r RangeResult) Repository(v version.Version) *artifact.RemoteRepository {
	return r.Repositories[v.String()]
}

// ResolveVersionRange expands a range into the versions listed by the
// versions metadata of the local and remote repositories. A plain version
// is returned as the only element without consulting metadata.
func (r *Resolver) ResolveVersionRange(ctx context.Context, s *session.Session, req RangeRequest) (RangeResult, error) {
	a := req.Artifact
	c, err := version.ParseConstraint(a.Version)
	if err != nil {
		return RangeResult{}, err
	}
	if !c.IsRange() {
		return RangeResult{
			Constraint:   c,
			Versions:     []version.Version{*c.Version},
			Repositories: map[string]*artifact.RemoteRepository{},
		}, nil
	}

	key := requestKey(s, a.VersionlessID()+":"+a.Version, req.Repositories)
	rc := caches(s).ranges
	if res, ok := rc.Get(ctx, key); ok {
		return res, nil
	}

	res := RangeResult{Constraint: c, Repositories: map[string]*artifact.RemoteRepository{}}
	ref := artifact.VersionsMetadata(a.GroupID, a.ArtifactID, artifact.NatureReleaseOrSnapshot)
	for _, md := range r.resolveMetadata(ctx, s, ref, req.Repositories) {
		if md.Err != nil {
			res.Errors = append(res.Errors, md.Err)
		}
		for _, raw := range md.Doc.Versions() {
			if _, seen := res.Repositories[raw]; seen {
				continue
			}
			v, err := version.Parse(raw)
			if err != nil {
				res.Errors = append(res.Errors, err)
				continue
			}
			if !c.Range.Contains(v) {
				continue
			}
			res.Repositories[raw] = md.Repo
			res.Versions = append(res.Versions, v)
		}
	}
	slices.SortStableFunc(res.Versions, func(x, y version.Version) int { return x.Compare(y) })
	rc.Add(ctx, key, res)
	return res, nil
}
