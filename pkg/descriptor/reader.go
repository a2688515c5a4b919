// Package descriptor reads artifact descriptors: the effective POM of an
// artifact reduced to what dependency collection needs.
//
// [Reader.Read] resolves the artifact's version, locates its POM, builds
// the effective model through a [ModelBuilder] and follows relocations
// until it reaches an artifact that does not relocate. Relocation chains
// that revisit a groupId:artifactId:baseVersion fail instead of looping.
//
// The session's descriptor policy decides whether a missing or invalid
// POM is an error or an empty descriptor. Listeners hear about both in
// either case.
package descriptor

import (
	"context"
	stderrors "errors"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Request asks for the descriptor of Artifact.
type Request struct {
	Artifact     artifact.Artifact
	Repositories []artifact.RemoteRepository

	// Path is the dependency path that led to the request, for errors.
	Path []string
}

// Result is the descriptor of one artifact.
type Result struct {
	// Artifact is the requested artifact with its version resolved and
	// relocations applied.
	Artifact artifact.Artifact

	// Relocations lists the artifacts that relocated, in the order they
	// were followed.
	Relocations []artifact.Artifact

	// Aliases are further coordinates the artifact is known under.
	Aliases []artifact.Artifact

	// Repository supplied the POM. Nil means the local repository.
	Repository *artifact.RemoteRepository

	Dependencies        []artifact.Dependency
	ManagedDependencies []artifact.Dependency
	Repositories        []artifact.RemoteRepository
	Properties          map[string]string

	// Prerequisites is the minimum Maven version of a plugin, if declared.
	Prerequisites string

	// Model is the effective model, or nil when a missing or invalid POM
	// was tolerated by policy.
	Model *Project
}

// Reader reads artifact descriptors.
type Reader struct {
	resolver *resolver.Resolver
	builder  ModelBuilder
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithModelBuilder replaces the default model builder.
func WithModelBuilder(b ModelBuilder) ReaderOption {
	return func(r *Reader) { r.builder = b }
}

// NewReader returns a reader that resolves POMs through r.
func NewReader(r *resolver.Resolver, opts ...ReaderOption) *Reader {
	rd := &Reader{resolver: r, builder: NewBuilder()}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Resolver is the artifact resolver POMs are located with.
func (r *Reader) Resolver() *resolver.Resolver { return r.resolver }

// Read returns the descriptor of req.Artifact.
func (r *Reader) Read(ctx context.Context, s *session.Session, req Request) (*Result, error) {
	res := &Result{Artifact: req.Artifact}
	model, err := r.load(ctx, s, req, res)
	if err != nil {
		return nil, err
	}
	if model != nil {
		populate(res, model)
	}
	return res, nil
}

// ReadProject returns the descriptor of the project whose POM lives at
// path. Parents and imports resolve through repos. Unlike Read, a broken
// project POM is always an error.
func (r *Reader) ReadProject(ctx context.Context, s *session.Session, path string, repos []artifact.RemoteRepository) (*Result, error) {
	model, err := r.builder.Build(ctx, BuildRequest{
		Source:     ModelSource{Path: path},
		Resolver:   NewModelResolver(s, r.resolver, repos),
		Properties: s.Properties(),
		Cache:      modelCache(s),
	})
	if err != nil {
		var um *errors.UnresolvableModelError
		var invalid *errors.DescriptorInvalidError
		if stderrors.As(err, &um) || stderrors.As(err, &invalid) {
			return nil, err
		}
		return nil, &errors.DescriptorInvalidError{Coordinate: path, Cause: err}
	}
	res := &Result{Artifact: artifact.FromType(model.GroupID, model.ArtifactID, model.Packaging, "", model.Version)}
	populate(res, model)
	return res, nil
}

func (r *Reader) load(ctx context.Context, s *session.Session, req Request, res *Result) (*Project, error) {
	var chain []string
	visited := map[string]bool{}
	for a := req.Artifact; ; {
		vr, err := r.resolver.ResolveVersion(ctx, s, resolver.VersionRequest{Artifact: a, Repositories: req.Repositories, Path: req.Path})
		if err != nil {
			return nil, err
		}
		// The POM resolves its own snapshot version: its timestamp may
		// differ from the main file's.
		pom := a.Pom()
		a = a.WithVersion(vr.Version)
		res.Artifact = a

		id := a.ID()
		if visited[id] {
			cycle := &errors.RelocationCycleError{Coordinate: id, Chain: chain}
			s.Notify(ctx, observability.Event{Type: observability.EventDescriptorInvalid, Artifact: a.String(), Err: cycle})
			if s.DescriptorPolicy()&session.IgnoreInvalid != 0 {
				return nil, nil
			}
			return nil, cycle
		}
		visited[id] = true
		chain = append(chain, id)

		pr, err := r.resolver.ResolveArtifact(ctx, s, resolver.ArtifactRequest{Artifact: pom, Repositories: req.Repositories})
		if err != nil {
			var nf *errors.ArtifactNotFoundError
			if stderrors.As(err, &nf) {
				s.Notify(ctx, observability.Event{Type: observability.EventDescriptorMissing, Artifact: a.String(), Err: err})
				if s.DescriptorPolicy()&session.IgnoreMissing != 0 {
					return nil, nil
				}
				return nil, &errors.DescriptorMissingError{Coordinate: a.String(), Path: req.Path, Cause: err}
			}
			return nil, err
		}
		res.Repository = pr.Repository

		model, err := r.builder.Build(ctx, BuildRequest{
			Source: ModelSource{
				Path:       pr.Artifact.File,
				GroupID:    pom.GroupID,
				ArtifactID: pom.ArtifactID,
				Version:    pr.Artifact.Version,
			},
			Resolver:   NewModelResolver(s, r.resolver, req.Repositories),
			Properties: s.Properties(),
			Cache:      modelCache(s),
		})
		if err != nil {
			var um *errors.UnresolvableModelError
			if stderrors.As(err, &um) {
				return nil, err
			}
			s.Notify(ctx, observability.Event{Type: observability.EventDescriptorInvalid, Artifact: a.String(), Err: err})
			if s.DescriptorPolicy()&session.IgnoreInvalid != 0 {
				return nil, nil
			}
			var invalid *errors.DescriptorInvalidError
			if stderrors.As(err, &invalid) {
				return nil, err
			}
			return nil, &errors.DescriptorInvalidError{Coordinate: a.String(), Path: req.Path, Cause: err}
		}

		target, ok := relocationTarget(a, model)
		if !ok {
			return model, nil
		}
		if target.GroupID == a.GroupID && target.ArtifactID == a.ArtifactID && target.Version == a.Version {
			// Relocation within the same coordinate shares the model.
			res.Artifact = target
			return model, nil
		}
		msg := ""
		if rel := model.Relocation(); rel != nil {
			msg = rel.Message
		}
		s.Notify(ctx, observability.Event{
			Type:     observability.EventArtifactRelocated,
			Artifact: a.String(),
			Target:   target.String(),
			Message:  msg,
		})
		res.Relocations = append(res.Relocations, a)
		a = target
		res.Artifact = a
	}
}

// relocationTarget applies the model's relocation to a. Empty relocation
// fields keep a's values.
func relocationTarget(a artifact.Artifact, model *Project) (artifact.Artifact, bool) {
	rel := model.Relocation()
	if rel == nil {
		return a, false
	}
	return a.WithCoordinates(rel.GroupID, rel.ArtifactID, rel.Version), true
}

func modelCache(s *session.Session) *cache.LRU[string, *Project] {
	return session.Value(s, "descriptor.models", func() *cache.LRU[string, *Project] {
		return cache.NewLRU[string, *Project]("pom", s.CacheSize())
	})
}

// populate copies the parts of the effective model collection needs.
func populate(res *Result, model *Project) {
	res.Model = model
	for _, d := range model.Dependencies {
		res.Dependencies = append(res.Dependencies, d.ToDependency())
	}
	for _, d := range model.ManagedDependencies() {
		res.ManagedDependencies = append(res.ManagedDependencies, d.ToDependency())
	}
	for _, repo := range model.Repositories {
		res.Repositories = append(res.Repositories, repo.ToRemoteRepository())
	}
	res.Properties = map[string]string{}
	for k, v := range model.Properties {
		res.Properties[k] = v
	}
	if model.Prerequisites != nil {
		res.Prerequisites = model.Prerequisites.Maven
	}
	if model.GroupID != res.Artifact.GroupID || model.ArtifactID != res.Artifact.ArtifactID || model.Version != res.Artifact.BaseVersion() {
		if model.GroupID != "" && model.ArtifactID != "" && model.Version != "" {
			res.Aliases = append(res.Aliases, res.Artifact.WithCoordinates(model.GroupID, model.ArtifactID, model.Version))
		}
	}
}
