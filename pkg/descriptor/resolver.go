package descriptor

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// RepositoryModelResolver resolves parent and imported POMs through the
// artifact resolver. Repositories declared by the models being built are
// appended to the ones it started with.
type RepositoryModelResolver struct {
	sess     *session.Session
	resolver *resolver.Resolver
	repos    []artifact.RemoteRepository
	ids      map[string]bool
}

// NewModelResolver returns a model resolver over repos.
func NewModelResolver(s *session.Session, r *resolver.Resolver, repos []artifact.RemoteRepository) *RepositoryModelResolver {
	return &RepositoryModelResolver{
		sess:     s,
		resolver: r,
		repos:    slices.Clone(repos),
		ids:      map[string]bool{},
	}
}

// Repositories returns the current repository list.
func (m *RepositoryModelResolver) Repositories() []artifact.RemoteRepository {
	return slices.Clone(m.repos)
}

func (m *RepositoryModelResolver) ResolveModel(ctx context.Context, groupID, artifactID, ver string) (ModelSource, error) {
	pom := artifact.New(groupID, artifactID, "pom", "", ver)
	res, err := m.resolver.ResolveArtifact(ctx, m.sess, resolver.ArtifactRequest{Artifact: pom, Repositories: m.repos})
	if err != nil {
		return ModelSource{}, &errors.UnresolvableModelError{GroupID: groupID, ArtifactID: artifactID, Version: ver, Cause: err}
	}
	return ModelSource{Path: res.Artifact.File, GroupID: groupID, ArtifactID: artifactID, Version: ver}, nil
}

func (m *RepositoryModelResolver) ResolveParent(ctx context.Context, p Parent) (ModelSource, Parent, error) {
	v, err := m.highest(ctx, p.GroupID, p.ArtifactID, p.Version, "parent")
	if err != nil {
		return ModelSource{}, p, err
	}
	p.Version = v
	src, err := m.ResolveModel(ctx, p.GroupID, p.ArtifactID, v)
	return src, p, err
}

func (m *RepositoryModelResolver) ResolveDependency(ctx context.Context, d Dependency) (ModelSource, Dependency, error) {
	v, err := m.highest(ctx, d.GroupID, d.ArtifactID, d.Version, "dependency")
	if err != nil {
		return ModelSource{}, d, err
	}
	d.Version = v
	src, err := m.ResolveModel(ctx, d.GroupID, d.ArtifactID, v)
	return src, d, err
}

// highest resolves a version or bounded range to the greatest available
// version.
func (m *RepositoryModelResolver) highest(ctx context.Context, groupID, artifactID, ver, what string) (string, error) {
	fail := func(cause error) error {
		return &errors.UnresolvableModelError{GroupID: groupID, ArtifactID: artifactID, Version: ver, Cause: cause}
	}
	pom := artifact.New(groupID, artifactID, "pom", "", ver)
	res, err := m.resolver.ResolveVersionRange(ctx, m.sess, resolver.RangeRequest{Artifact: pom, Repositories: m.repos})
	if err != nil {
		return "", fail(err)
	}
	if res.Constraint.IsRange() {
		if err := res.Constraint.Range.RequireUpperBound(pom.VersionlessID()); err != nil {
			return "", fail(fmt.Errorf("the requested %s version range %q does not specify an upper bound: %w", what, ver, err))
		}
	}
	hi, ok := res.Highest()
	if !ok {
		return "", fail(fmt.Errorf("no versions matched the requested %s version range %q", what, ver))
	}
	return hi.String(), nil
}

func (m *RepositoryModelResolver) AddRepository(repo Repository, replace bool) {
	if m.ids[repo.ID] {
		if !replace {
			return
		}
		m.repos = slices.DeleteFunc(m.repos, func(r artifact.RemoteRepository) bool { return r.ID == repo.ID })
	}
	m.ids[repo.ID] = true
	m.repos = artifact.MergeRepositories(m.repos, []artifact.RemoteRepository{repo.ToRemoteRepository()})
}

func (m *RepositoryModelResolver) NewCopy() ModelResolver {
	return &RepositoryModelResolver{
		sess:     m.sess,
		resolver: m.resolver,
		repos:    slices.Clone(m.repos),
		ids:      maps.Clone(m.ids),
	}
}
