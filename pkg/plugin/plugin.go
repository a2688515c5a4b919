// Package plugin resolves build plugins and their runtime classpath.
//
// A plugin is resolved in two steps. [Resolver.ResolvePluginArtifact]
// locates the plugin jar through its descriptor, tolerating a missing POM.
// [Resolver.CollectPluginDependencies] then collects the dependency graph
// below the plugin: the dependencies declared on the plugin in the build
// join those of its POM at runtime scope, management entries of the
// caller take precedence over the plugin's own, and the [WagonExcluder]
// is added to the default selectors.
package plugin

import (
	"context"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Packaging is the artifact type of plugins.
const Packaging = "maven-plugin"

// Plugin is a plugin as declared in a build.
type Plugin struct {
	GroupID    string
	ArtifactID string
	Version    string

	// Dependencies are declared on the plugin in the build and extend the
	// dependencies of its POM.
	Dependencies []artifact.Dependency
}

// Parse reads "groupId:artifactId:version".
func Parse(coords string) (Plugin, error) {
	a, err := artifact.Parse(coords)
	if err != nil {
		return Plugin{}, err
	}
	return Plugin{GroupID: a.GroupID, ArtifactID: a.ArtifactID, Version: a.Version}, nil
}

// Artifact is the plugin jar.
func (p Plugin) Artifact() artifact.Artifact {
	return artifact.New(p.GroupID, p.ArtifactID, "jar", "", p.Version).
		WithProperties(map[string]string{artifact.PropType: Packaging})
}

func (p Plugin) String() string { return p.GroupID + ":" + p.ArtifactID + ":" + p.Version }

// Resolved is a located plugin.
type Resolved struct {
	// Artifact has its File set. It differs in coordinates from the
	// requested plugin when the plugin was relocated.
	Artifact   artifact.Artifact
	Repository *artifact.RemoteRepository

	// Prerequisites is the minimum Maven version the plugin declares.
	Prerequisites string

	Descriptor *descriptor.Result
}

// Dependencies is the collected classpath of a plugin.
type Dependencies struct {
	Root      *collect.Node
	Artifacts []artifact.Artifact
	Conflicts []collect.Conflict
}

// CollectRequest configures CollectPluginDependencies.
type CollectRequest struct {
	Plugin   Plugin
	Resolved *Resolved

	// Filter narrows the classpath further. Provided and test dependencies
	// are always dropped.
	Filter collect.Filter

	// ManagedDependencies are the exports of the running core. They take
	// precedence over the management of the plugin POM.
	ManagedDependencies []artifact.Dependency

	Repositories []artifact.RemoteRepository
}

// Resolver resolves plugins.
type Resolver struct {
	reader    *descriptor.Reader
	collector *collect.Collector
}

// New creates a Resolver reading descriptors with reader.
func New(reader *descriptor.Reader, opts ...collect.Option) *Resolver {
	return &Resolver{reader: reader, collector: collect.New(reader, opts...)}
}

// ResolvePluginArtifact locates the jar of p. A missing plugin POM is
// tolerated; an invalid one is not. Failures are reported as a
// PluginResolutionError.
func (r *Resolver) ResolvePluginArtifact(ctx context.Context, s *session.Session, p Plugin,
	repos []artifact.RemoteRepository) (*Resolved, error) {
	ds := s.WithDescriptorPolicy(session.IgnoreMissing)
	desc, err := r.reader.Read(ctx, ds, descriptor.Request{Artifact: p.Artifact(), Repositories: repos})
	if err != nil {
		return nil, &mverrors.PluginResolutionError{Plugin: p.String(), Cause: err}
	}
	a := desc.Artifact
	if len(desc.Relocations) > 0 {
		s.Logger().Warn("plugin relocated", "plugin", p, "to", a)
	}

	ar, err := r.reader.Resolver().ResolveArtifact(ctx, s, resolver.ArtifactRequest{
		Artifact:     a,
		Repositories: artifact.MergeRepositories(repos, desc.Repositories),
	})
	if err != nil {
		return nil, &mverrors.PluginResolutionError{Plugin: p.String(), Cause: err}
	}
	return &Resolved{
		Artifact:      ar.Artifact,
		Repository:    ar.Repository,
		Prerequisites: desc.Prerequisites,
		Descriptor:    desc,
	}, nil
}

// CollectPluginDependencies collects and resolves the runtime classpath of
// req.Plugin, excluding the plugin jar itself. The plugin is resolved
// first when req.Resolved is nil.
func (r *Resolver) CollectPluginDependencies(ctx context.Context, s *session.Session, req CollectRequest) (*Dependencies, error) {
	p := req.Plugin
	resolved := req.Resolved
	if resolved == nil {
		var err error
		if resolved, err = r.ResolvePluginArtifact(ctx, s, p, req.Repositories); err != nil {
			return nil, err
		}
	}
	desc := resolved.Descriptor

	res, err := r.collector.Collect(ctx, s, collect.Request{
		Root:                artifact.Dependency{Artifact: resolved.Artifact, Scope: artifact.ScopeRuntime},
		Dependencies:        mergeDependencies(runtimeScoped(p.Dependencies), desc.Dependencies),
		ManagedDependencies: append(append([]artifact.Dependency(nil), req.ManagedDependencies...), desc.ManagedDependencies...),
		Repositories:        artifact.MergeRepositories(req.Repositories, desc.Repositories),
		Selector:            collect.AndSelector(collect.DefaultSelector(), &WagonExcluder{}),
	})
	if err != nil {
		return nil, &mverrors.PluginResolutionError{Plugin: p.String(), Cause: err}
	}

	filter := collect.AndFilter(
		collect.ScopeFilter(nil, []artifact.Scope{artifact.ScopeProvided, artifact.ScopeTest}),
		req.Filter,
	)
	nodes := collect.Nodes(res.Root, filter)
	out := &Dependencies{Root: res.Root, Conflicts: res.Conflicts}

	var reqs []resolver.ArtifactRequest
	for _, n := range nodes {
		if n.Scope() == artifact.ScopeSystem {
			continue
		}
		reqs = append(reqs, resolver.ArtifactRequest{Artifact: n.Artifact(), Repositories: n.Repositories})
	}
	results, err := r.reader.Resolver().ResolveArtifacts(ctx, s, reqs)
	if err != nil {
		return nil, &mverrors.PluginResolutionError{Plugin: p.String(), Cause: err}
	}
	i := 0
	for _, n := range nodes {
		if n.Scope() == artifact.ScopeSystem {
			a := n.Artifact()
			out.Artifacts = append(out.Artifacts, a.WithFile(a.Property(artifact.PropLocalPath, "")))
			continue
		}
		out.Artifacts = append(out.Artifacts, results[i].Artifact)
		i++
	}
	return out, nil
}

// runtimeScoped moves build-declared plugin dependencies to runtime scope.
// System dependencies keep their scope since their file is not resolved.
func runtimeScoped(deps []artifact.Dependency) []artifact.Dependency {
	out := make([]artifact.Dependency, len(deps))
	for i, d := range deps {
		if d.Scope != artifact.ScopeSystem {
			d = d.WithScope(artifact.ScopeRuntime)
		}
		out[i] = d
	}
	return out
}

// mergeDependencies returns dominant followed by the entries of recessive
// whose key dominant does not declare.
func mergeDependencies(dominant, recessive []artifact.Dependency) []artifact.Dependency {
	seen := make(map[string]bool, len(dominant))
	out := make([]artifact.Dependency, 0, len(dominant)+len(recessive))
	for _, d := range dominant {
		seen[d.Artifact.Key()] = true
		out = append(out, d)
	}
	for _, d := range recessive {
		if !seen[d.Artifact.Key()] {
			out = append(out, d)
		}
	}
	return out
}
