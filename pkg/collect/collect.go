// Package collect expands a root dependency into its transitive dependency
// graph.
//
// Collection descends recursively. For the children of every node the
// [Selector] decides which dependencies are expanded and the [Manager]
// applies dependency management; both are derived per node so policies can
// change with depth without shared mutable state. Version ranges are
// resolved to the highest matching version and each child's descriptor is
// read to continue the descent.
//
// Once the tree is complete the [Transformer] pipeline runs. The default
// pipeline is a single [ConflictResolver] which keeps the nearest version
// of every artifact, then settles scope and optionality.
//
// # Usage
//
//	c := collect.New(descriptor.NewReader(res))
//	result, err := c.Collect(ctx, sess, collect.Request{
//	    Root:         artifact.Dependency{Artifact: root},
//	    Repositories: []artifact.RemoteRepository{artifact.Central()},
//	})
//	runtime, _ := collect.ClasspathFilter("runtime")
//	artifacts := collect.Flatten(result.Root, runtime)
package collect

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

const defaultParallelism = 8

// Request describes one collection.
type Request struct {
	// Root is the dependency to collect. Unless Dependencies is set, its
	// descriptor supplies the direct dependencies, the management entries
	// and further repositories.
	Root artifact.Dependency

	// Dependencies replaces the direct dependencies of the root. Set it
	// when the root model is already built, as for a project POM.
	Dependencies []artifact.Dependency

	// ManagedDependencies take precedence over those of the root
	// descriptor.
	ManagedDependencies []artifact.Dependency

	Repositories []artifact.RemoteRepository

	// Selector, Manager and Transformers default to DefaultSelector,
	// NewManager and DefaultTransformers.
	Selector     Selector
	Manager      Manager
	Transformers []Transformer
}

// Result is a collected graph. Failed dependencies are missing from the
// graph and listed in Errors.
type Result struct {
	Root      *Node
	Errors    []error
	Cycles    [][]string
	Conflicts []Conflict
}

// Collector builds dependency graphs.
type Collector struct {
	reader      *descriptor.Reader
	parallelism int
}

// Option configures a Collector.
type Option func(*Collector)

// WithParallelism bounds the number of descriptors read concurrently for
// the children of one node.
func WithParallelism(n int) Option {
	return func(c *Collector) { c.parallelism = max(n, 1) }
}

// New creates a Collector reading descriptors with reader.
func New(reader *descriptor.Reader, opts ...Option) *Collector {
	c := &Collector{reader: reader, parallelism: defaultParallelism}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect builds the graph of req.Root. A failure to read the root
// descriptor is returned as a CollectionError with no result. Failures
// below the root leave a partial graph in the result; the returned error
// then joins one CollectionError per failed dependency.
func (c *Collector) Collect(ctx context.Context, s *session.Session, req Request) (*Result, error) {
	name := req.Root.Artifact.String()
	start := time.Now()
	observability.Pipeline().OnCollectStart(ctx, name)

	res, err := c.collect(ctx, s, req)

	count := 0
	if res != nil {
		count = res.Root.Count()
	}
	observability.Pipeline().OnCollectComplete(ctx, name, count, time.Since(start), err)
	return res, err
}

func (c *Collector) collect(ctx context.Context, s *session.Session, req Request) (*Result, error) {
	sel, mgr, transformers := req.Selector, req.Manager, req.Transformers
	if sel == nil {
		sel = DefaultSelector()
	}
	if mgr == nil {
		mgr = NewManager()
	}
	if transformers == nil {
		transformers = DefaultTransformers()
	}

	root := &Node{Dependency: req.Root, Repositories: req.Repositories}
	deps := req.Dependencies
	managed := req.ManagedDependencies
	repos := req.Repositories

	st := &collection{
		session:     s,
		root:        req.Root.Artifact.String(),
		descriptors: cache.NewMap[string, descriptorEntry](),
	}

	if deps == nil && req.Root.Artifact.ArtifactID != "" {
		desc, err := c.descriptor(ctx, st, req.Root.Artifact, repos, nil)
		if err != nil {
			return nil, &mverrors.CollectionError{Root: st.root, Cause: err}
		}
		adoptDescriptor(root, desc)
		deps = desc.Dependencies
		managed = slices.Concat(managed, desc.ManagedDependencies)
		repos = artifact.MergeRepositories(repos, desc.Repositories)
		root.Repositories = repos
	}

	if err := c.expand(ctx, st, root, deps, managed, repos, sel, mgr, []*Node{root}); err != nil {
		return nil, err
	}

	tc := &TransformContext{Session: s}
	for _, t := range transformers {
		var err error
		if root, err = t.Transform(ctx, root, tc); err != nil {
			return nil, &mverrors.CollectionError{Root: st.root, Cause: err}
		}
	}

	res := &Result{Root: root, Errors: st.errs, Cycles: st.cycles, Conflicts: tc.Conflicts}
	if len(st.errs) > 0 {
		return res, errors.Join(st.errs...)
	}
	return res, nil
}

// =============================================================================
// Descent
// =============================================================================

type collection struct {
	session     *session.Session
	root        string
	descriptors *cache.Map[string, descriptorEntry]
	errs        []error
	cycles      [][]string
}

type descriptorEntry struct {
	result *descriptor.Result
	err    error
}

func (st *collection) fail(trail []*Node, a artifact.Artifact, err error) {
	path := append(pathOf(trail), a.String())
	st.errs = append(st.errs, &mverrors.CollectionError{Root: st.root, Path: path, Cause: err})
}

type child struct {
	node *Node
	desc *descriptor.Result
	err  error
}

// expand adds the children of n. Only context cancellation aborts the
// descent; every other failure is recorded and the dependency skipped.
func (c *Collector) expand(ctx context.Context, st *collection, n *Node, deps, managed []artifact.Dependency,
	repos []artifact.RemoteRepository, sel Selector, mgr Manager, trail []*Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dc := Context{Session: st.session, Depth: n.Depth, Dependency: n.Dependency, Managed: managed}
	sel = sel.DeriveChild(ctx, dc)
	mgr = mgr.DeriveChild(ctx, dc)

	var kids []*child
	for _, d := range deps {
		if !sel.Select(d) {
			continue
		}
		d, pre := mgr.Manage(d).Apply(d)
		d.Scope = d.Scope.Or(artifact.ScopeCompile)
		node := &Node{
			Dependency:   d,
			Depth:        n.Depth + 1,
			Constraint:   d.Artifact.Version,
			Premanaged:   pre,
			Repositories: repos,
		}

		v, err := c.selectVersion(ctx, st.session, d.Artifact, repos, trail)
		if err != nil {
			st.fail(trail, d.Artifact, err)
			continue
		}
		node.Dependency.Artifact = d.Artifact.WithVersion(v)

		if onPath(trail, node.Dependency.Artifact) {
			node.Cycle = true
			st.cycles = append(st.cycles, append(pathOf(trail), node.Dependency.Artifact.String()))
			n.Children = append(n.Children, node)
			continue
		}
		kids = append(kids, &child{node: node})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, k := range kids {
		if k.node.Dependency.Scope == artifact.ScopeSystem {
			continue
		}
		g.Go(func() error {
			k.desc, k.err = c.descriptor(gctx, st, k.node.Dependency.Artifact, repos, pathOf(trail))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := st.session.Logger()
	for _, k := range kids {
		node := k.node
		if k.err != nil {
			st.fail(trail, node.Dependency.Artifact, k.err)
			continue
		}
		if k.desc == nil {
			n.Children = append(n.Children, node)
			continue
		}
		if len(k.desc.Relocations) > 0 || isMetaVersion(node.Dependency.Artifact.Version) {
			node.Dependency.Artifact = k.desc.Artifact
			if !sel.Select(node.Dependency) {
				continue
			}
		}
		adoptDescriptor(node, k.desc)
		n.Children = append(n.Children, node)
		logger.Debug("collected dependency", "artifact", node.Dependency.Artifact, "scope", node.Dependency.Scope, "depth", node.Depth)

		childRepos := artifact.MergeRepositories(repos, k.desc.Repositories)
		// Management comes from the root only. The dependencyManagement of
		// k.desc is ignored at every depth, unlike Maven's classic manager
		// which also gathers it for direct dependencies.
		if err := c.expand(ctx, st, node, k.desc.Dependencies, nil, childRepos, sel, mgr, append(trail, node)); err != nil {
			return err
		}
	}
	return nil
}

// selectVersion resolves the version constraint of a to the highest
// matching version.
func (c *Collector) selectVersion(ctx context.Context, s *session.Session, a artifact.Artifact,
	repos []artifact.RemoteRepository, trail []*Node) (string, error) {
	rr, err := c.reader.Resolver().ResolveVersionRange(ctx, s, resolver.RangeRequest{Artifact: a, Repositories: repos})
	if err != nil {
		return "", err
	}
	if !rr.Constraint.IsRange() {
		return a.Version, nil
	}
	v, ok := rr.Highest()
	if !ok {
		names := make([]string, 0, len(repos))
		for _, r := range repos {
			names = append(names, r.String())
		}
		return "", &mverrors.VersionResolutionError{
			Coordinate:   a.String(),
			Repositories: names,
			Path:         pathOf(trail),
			Cause:        errors.Join(rr.Errors...),
		}
	}
	return v.String(), nil
}

func (c *Collector) descriptor(ctx context.Context, st *collection, a artifact.Artifact,
	repos []artifact.RemoteRepository, path []string) (*descriptor.Result, error) {
	key := a.String()
	for _, r := range repos {
		key += "|" + r.ID
	}
	if e, ok := st.descriptors.Get(key); ok {
		return e.result, e.err
	}
	res, err := c.reader.Read(ctx, st.session, descriptor.Request{Artifact: a, Repositories: repos, Path: path})
	if err == nil || ctx.Err() == nil {
		st.descriptors.Set(key, descriptorEntry{result: res, err: err})
	}
	return res, err
}

func adoptDescriptor(n *Node, desc *descriptor.Result) {
	n.Relocations = desc.Relocations
	n.Aliases = desc.Aliases
	n.Repository = desc.Repository
}

func onPath(trail []*Node, a artifact.Artifact) bool {
	for _, n := range trail {
		if n.Dependency.Artifact.Key() == a.Key() && n.Dependency.Artifact.Version == a.Version {
			return true
		}
	}
	return false
}

func isMetaVersion(v string) bool {
	return v == version.Latest || v == version.Release
}
