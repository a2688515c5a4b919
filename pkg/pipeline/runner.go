package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	graphio "github.com/matzehuels/mvnresolve/pkg/io"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/render/nodelink"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Runner executes the pipeline with render caching.
//
// The Runner keeps no per-run state. Multiple goroutines can share one
// Runner with different sessions and options.
type Runner struct {
	Reader    *descriptor.Reader
	Collector *collect.Collector
	Cache     cache.Cache
	Keyer     cache.Keyer
	Logger    *log.Logger
}

// NewRunner creates a runner. A nil cache disables render caching, a nil
// keyer uses cache.DefaultKeyer and a nil logger uses log.Default.
func NewRunner(reader *descriptor.Reader, collector *collect.Collector, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Reader:    reader,
		Collector: collector,
		Cache:     c,
		Keyer:     keyer,
		Logger:    logger,
	}
}

// Execute runs resolve, filter and render. When some dependencies fail to
// collect, Execute still renders the partial graph and returns it along
// with the joined collection errors.
func (r *Runner) Execute(ctx context.Context, s *session.Session, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	start := time.Now()
	root, coll, collectErr := r.Resolve(ctx, s, opts)
	if coll == nil {
		return nil, collectErr
	}
	result := &Result{Root: root, Collection: coll, Outputs: map[string][]byte{}}
	result.Stats.ResolveTime = time.Since(start)
	result.Stats.Conflicts = len(coll.Conflicts)
	if collectErr != nil {
		r.Logger.Warn("collected partial graph", "failures", len(coll.Errors))
	}

	filter, _ := collect.ClasspathFilter(opts.Scope)
	pruned := collect.Prune(coll.Root, filter)
	if opts.ResolveFiles {
		result.Unresolved = r.resolveFiles(ctx, s, pruned)
	}

	result.Graph = graphio.FromTree(pruned)
	result.Stats.NodeCount = len(result.Graph.Nodes)
	result.Stats.EdgeCount = len(result.Graph.Edges)
	var buf bytes.Buffer
	if err := graphio.WriteJSON(result.Graph, &buf); err != nil {
		return nil, err
	}
	result.GraphHash = cache.Hash(buf.Bytes())

	r.Logger.Info("resolved dependencies",
		"root", root,
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"conflicts", result.Stats.Conflicts,
		"duration", result.Stats.ResolveTime)

	renderStart := time.Now()
	outputs, hit, err := r.RenderWithCacheInfo(ctx, pruned, result.Graph, result.GraphHash, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Outputs = outputs
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)

	return result, collectErr
}

// Resolve collects the dependency graph of opts.Project or
// opts.Coordinate. The collection result is nil only when the root itself
// failed.
func (r *Runner) Resolve(ctx context.Context, s *session.Session, opts Options) (artifact.Artifact, *collect.Result, error) {
	req := collect.Request{Repositories: opts.Repositories}
	if opts.Project != "" {
		desc, err := r.Reader.ReadProject(ctx, s, opts.Project, opts.Repositories)
		if err != nil {
			return artifact.Artifact{}, nil, err
		}
		req.Root = artifact.Dependency{Artifact: desc.Artifact}
		// A project without dependencies must not fall back to reading
		// its own descriptor from a repository.
		req.Dependencies = append([]artifact.Dependency{}, desc.Dependencies...)
		req.ManagedDependencies = desc.ManagedDependencies
		req.Repositories = artifact.MergeRepositories(opts.Repositories, desc.Repositories)
	} else {
		a, err := artifact.Parse(opts.Coordinate)
		if err != nil {
			return artifact.Artifact{}, nil, err
		}
		req.Root = artifact.Dependency{Artifact: a}
	}

	opts.Logger.Debug("collecting", "root", req.Root.Artifact, "repositories", len(req.Repositories))
	res, err := r.Collector.Collect(ctx, s, req)
	if res == nil {
		return req.Root.Artifact, nil, err
	}
	return res.Root.Artifact(), res, err
}

// resolveFiles resolves the artifact of every node below root in place.
// System-scoped nodes take their file from the declared system path.
func (r *Runner) resolveFiles(ctx context.Context, s *session.Session, root *collect.Node) []error {
	nodes := collect.Nodes(root, nil)
	var (
		reqs    []resolver.ArtifactRequest
		targets []*collect.Node
	)
	for _, n := range nodes {
		if n.Scope() == artifact.ScopeSystem {
			a := n.Artifact()
			n.Dependency.Artifact = a.WithFile(a.Property(artifact.PropLocalPath, ""))
			continue
		}
		reqs = append(reqs, resolver.ArtifactRequest{Artifact: n.Artifact(), Repositories: n.Repositories})
		targets = append(targets, n)
	}
	results, _ := r.Reader.Resolver().ResolveArtifacts(ctx, s, reqs)

	var errs []error
	for i, n := range targets {
		if results[i].Artifact.File == "" {
			errs = append(errs, fmt.Errorf("%s: not resolved", n.Artifact()))
			continue
		}
		n.Dependency.Artifact = results[i].Artifact
	}
	// Duplicate nodes of one artifact share the resolved file.
	files := map[string]string{}
	for _, n := range nodes {
		if f := n.Artifact().File; f != "" {
			files[n.Artifact().String()] = f
		}
	}
	root.Walk(func(n *collect.Node, _ []*collect.Node) bool {
		if f, ok := files[n.Artifact().String()]; ok && n.Artifact().File == "" {
			n.Dependency.Artifact = n.Artifact().WithFile(f)
		}
		return true
	})
	return errs
}

// RenderWithCacheInfo produces the requested outputs for a filtered graph.
// Only SVG goes through the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, root *collect.Node, g *graphio.Graph, graphHash string, opts Options) (map[string][]byte, bool, error) {
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	outputs := make(map[string][]byte, len(opts.Formats))
	hit := false
	var err error
	for _, format := range opts.Formats {
		var data []byte
		switch format {
		case FormatSVG:
			data, hit, err = r.renderSVG(ctx, g, graphHash, opts)
		default:
			data, err = Render(root, g, format, opts)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", format, err)
			break
		}
		outputs[format] = data
	}

	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	return outputs, hit, nil
}

func (r *Runner) renderSVG(ctx context.Context, g *graphio.Graph, graphHash string, opts Options) ([]byte, bool, error) {
	format := FormatSVG
	if opts.Detailed {
		format += "+detailed"
	}
	key := r.Keyer.RenderKey(graphHash, format)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			return data, true, nil
		}
	}
	data, err := nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.Detailed}))
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, DefaultRenderTTL); err != nil {
		r.Logger.Debug("render cache write failed", "err", err)
	}
	return data, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// IsPartial reports whether err from Execute came with a usable partial
// result.
func IsPartial(res *Result, err error) bool {
	return res != nil && err != nil
}
