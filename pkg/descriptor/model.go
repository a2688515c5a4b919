package descriptor

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/errors"
)

// ModelSource locates a POM file on disk together with the coordinate it
// was resolved for.
type ModelSource struct {
	Path       string
	GroupID    string
	ArtifactID string
	Version    string
}

func (s ModelSource) String() string { return s.GroupID + ":" + s.ArtifactID + ":" + s.Version }

// ModelResolver locates the POMs a model build needs beyond the one it
// starts from: parents and imported BOMs. Failures are reported as
// *errors.UnresolvableModelError carrying the requested coordinate.
type ModelResolver interface {
	// ResolveModel locates the POM of an exact coordinate.
	ResolveModel(ctx context.Context, groupID, artifactID, version string) (ModelSource, error)

	// ResolveParent locates a parent POM. The version may be a bounded
	// range; the returned parent carries the chosen version.
	ResolveParent(ctx context.Context, p Parent) (ModelSource, Parent, error)

	// ResolveDependency locates an imported POM. The version may be a
	// bounded range; the returned dependency carries the chosen version.
	ResolveDependency(ctx context.Context, d Dependency) (ModelSource, Dependency, error)

	// AddRepository makes repo available to later lookups. An existing
	// repository with the same id is kept unless replace is set.
	AddRepository(repo Repository, replace bool)

	// NewCopy returns an independent resolver with the same repositories.
	NewCopy() ModelResolver
}

// BuildRequest is the input of a model build.
type BuildRequest struct {
	Source   ModelSource
	Resolver ModelResolver

	// Properties are available to interpolation with lower precedence than
	// the model's own properties.
	Properties map[string]string

	// Cache holds raw POMs by path. Nil disables caching.
	Cache *cache.LRU[string, *Project]
}

// ModelBuilder turns a POM into its effective model.
type ModelBuilder interface {
	Build(ctx context.Context, req BuildRequest) (*Project, error)
}

// maxLineage bounds parent chains as a last line of defence against
// runaway inheritance.
const maxLineage = 64

// DefaultBuilder applies parent inheritance, property interpolation,
// import-scope dependency management and management injection. It is a
// deliberately small stand-in for a full model builder: profiles, plugin
// configuration and model validation are out of its reach.
type DefaultBuilder struct{}

// NewBuilder returns the default model builder.
func NewBuilder() *DefaultBuilder { return &DefaultBuilder{} }

// Build computes the effective model of req.Source.
func (b *DefaultBuilder) Build(ctx context.Context, req BuildRequest) (*Project, error) {
	return b.build(ctx, req, nil)
}

func (b *DefaultBuilder) build(ctx context.Context, req BuildRequest, imports []string) (*Project, error) {
	raw, err := readRaw(ctx, req.Cache, req.Source.Path)
	if err != nil {
		return nil, err
	}
	res := req.Resolver.NewCopy()

	lineage, err := b.lineage(ctx, req, res, raw)
	if err != nil {
		return nil, err
	}

	model := lineage[len(lineage)-1].Clone()
	for i := len(lineage) - 2; i >= 0; i-- {
		model = inherit(lineage[i], model)
	}
	model.interpolate(req.Properties)

	if err := b.importManagement(ctx, req, res, model, append(slices.Clone(imports), model.Coordinate())); err != nil {
		return nil, err
	}
	model.injectManagement()
	return model, nil
}

// lineage returns raw followed by its ancestors, nearest first.
func (b *DefaultBuilder) lineage(ctx context.Context, req BuildRequest, res ModelResolver, raw *Project) ([]*Project, error) {
	lineage := []*Project{raw}
	seen := map[string]bool{raw.Coordinate(): true}
	for cur := raw; cur.Parent != nil; {
		for _, r := range cur.Repositories {
			res.AddRepository(interpolateRepository(r, cur, req.Properties), false)
		}
		parent := *cur.Parent
		if parent.Version == "" {
			return nil, &errors.DescriptorInvalidError{
				Coordinate: raw.Coordinate(),
				Cause:      fmt.Errorf("%s: parent %s:%s has no version", req.Source.Path, parent.GroupID, parent.ArtifactID),
			}
		}
		src, chosen, err := res.ResolveParent(ctx, parent)
		if err != nil {
			return nil, err
		}
		key := chosen.String()
		if seen[key] || len(lineage) >= maxLineage {
			chain := make([]string, 0, len(lineage)+1)
			for _, p := range lineage {
				chain = append(chain, p.Coordinate())
			}
			return nil, &errors.DescriptorInvalidError{
				Coordinate: raw.Coordinate(),
				Cause:      fmt.Errorf("%s: parents form a cycle: %s -> %s", req.Source.Path, strings.Join(chain, " -> "), key),
			}
		}
		seen[key] = true

		p, err := readRaw(ctx, req.Cache, src.Path)
		if err != nil {
			return nil, err
		}
		// The child names the parent version actually chosen.
		if chosen.Version != cur.Parent.Version {
			cur = cur.Clone()
			cur.Parent.Version = chosen.Version
			lineage[len(lineage)-1] = cur
		}
		lineage = append(lineage, p)
		cur = p
	}
	return lineage, nil
}

func readRaw(ctx context.Context, c *cache.LRU[string, *Project], path string) (*Project, error) {
	if c != nil {
		if p, ok := c.Get(ctx, path); ok {
			return p, nil
		}
	}
	p, err := ReadPOM(path)
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Add(ctx, path, p)
	}
	return p, nil
}

// =============================================================================
// Inheritance
// =============================================================================

// inherit merges the effective parent into a clone of child.
func inherit(child, parent *Project) *Project {
	m := child.Clone()
	if m.GroupID == "" && m.Parent != nil {
		m.GroupID = m.Parent.GroupID
	}
	if m.Version == "" && m.Parent != nil {
		m.Version = m.Parent.Version
	}

	props := make(Properties, len(parent.Properties)+len(m.Properties))
	for k, v := range parent.Properties {
		props[k] = v
	}
	for k, v := range m.Properties {
		props[k] = v
	}
	m.Properties = props

	m.Dependencies = mergeDeps(m.Dependencies, parent.Dependencies)
	if managed := mergeDeps(m.ManagedDependencies(), parent.ManagedDependencies()); len(managed) > 0 {
		m.DependencyManagement = &DependencyManagement{Dependencies: managed}
	}
	m.Repositories = mergeRepos(m.Repositories, parent.Repositories)
	m.PluginRepositories = mergeRepos(m.PluginRepositories, parent.PluginRepositories)
	if m.URL == "" {
		m.URL = parent.URL
	}
	return m
}

// mergeDeps keeps the dominant entries and appends recessive ones with new
// management keys.
func mergeDeps(dominant, recessive []Dependency) []Dependency {
	if len(recessive) == 0 {
		return dominant
	}
	out := cloneDeps(dominant)
	seen := make(map[string]bool, len(dominant))
	for _, d := range dominant {
		seen[d.ManagementKey()] = true
	}
	for _, d := range cloneDeps(recessive) {
		if !seen[d.ManagementKey()] {
			seen[d.ManagementKey()] = true
			out = append(out, d)
		}
	}
	return out
}

func mergeRepos(dominant, recessive []Repository) []Repository {
	out := append([]Repository(nil), dominant...)
	for _, r := range recessive {
		if !slices.ContainsFunc(out, func(o Repository) bool { return o.ID == r.ID }) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// Import scope
// =============================================================================

// importManagement replaces import-scope pom entries of the dependency
// management with the managed dependencies of the imported models. Entries
// already present win over imported ones.
func (b *DefaultBuilder) importManagement(ctx context.Context, req BuildRequest, res ModelResolver, model *Project, chain []string) error {
	managed := model.ManagedDependencies()
	if len(managed) == 0 {
		return nil
	}
	var (
		kept     []Dependency
		imported [][]Dependency
	)
	for _, d := range managed {
		if d.Scope != "import" || d.Type != "pom" {
			kept = append(kept, d)
			continue
		}
		src, chosen, err := res.ResolveDependency(ctx, d)
		if err != nil {
			return err
		}
		key := chosen.GroupID + ":" + chosen.ArtifactID + ":" + chosen.Version
		if slices.Contains(chain, key) {
			return &errors.DescriptorInvalidError{
				Coordinate: model.Coordinate(),
				Cause:      fmt.Errorf("%s: import cycle: %s -> %s", req.Source.Path, strings.Join(chain, " -> "), key),
			}
		}
		sub := req
		sub.Source = src
		sub.Resolver = res
		bom, err := b.build(ctx, sub, chain)
		if err != nil {
			var um *errors.UnresolvableModelError
			if stderrors.As(err, &um) {
				return err
			}
			return &errors.DescriptorInvalidError{Coordinate: model.Coordinate(), Cause: fmt.Errorf("%s: import %s: %w", req.Source.Path, key, err)}
		}
		imported = append(imported, bom.ManagedDependencies())
	}
	for _, deps := range imported {
		kept = mergeDeps(kept, deps)
	}
	model.DependencyManagement = &DependencyManagement{Dependencies: kept}
	return nil
}

// injectManagement fills missing versions, scopes and exclusions of the
// model's dependencies from its dependency management.
func (p *Project) injectManagement() {
	managed := map[string]Dependency{}
	for _, d := range p.ManagedDependencies() {
		managed[d.ManagementKey()] = d
	}
	for i := range p.Dependencies {
		d := &p.Dependencies[i]
		m, ok := managed[d.ManagementKey()]
		if !ok {
			continue
		}
		if d.Version == "" {
			d.Version = m.Version
		}
		if d.Scope == "" {
			d.Scope = m.Scope
		}
		if d.SystemPath == "" {
			d.SystemPath = m.SystemPath
		}
		if len(d.Exclusions) == 0 {
			d.Exclusions = append([]Exclusion(nil), m.Exclusions...)
		}
	}
}

// =============================================================================
// Interpolation
// =============================================================================

var expression = regexp.MustCompile(`\$\{([^}]+)\}`)

// maxInterpolationPasses bounds nested property references.
const maxInterpolationPasses = 10

// interpolate resolves ${...} expressions in the fields the resolver reads.
// Unknown expressions are left as written.
func (p *Project) interpolate(external map[string]string) {
	values := p.values(external)
	expand := func(s string) string { return expandString(s, values) }

	for _, s := range []*string{&p.GroupID, &p.ArtifactID, &p.Version, &p.Packaging} {
		*s = expand(*s)
	}
	if p.Parent != nil {
		p.Parent.Version = expand(p.Parent.Version)
	}
	for k, v := range p.Properties {
		p.Properties[k] = expand(v)
	}
	expandDeps(p.Dependencies, expand)
	if p.DependencyManagement != nil {
		expandDeps(p.DependencyManagement.Dependencies, expand)
	}
	for i := range p.Repositories {
		p.Repositories[i].URL = expand(p.Repositories[i].URL)
	}
	for i := range p.PluginRepositories {
		p.PluginRepositories[i].URL = expand(p.PluginRepositories[i].URL)
	}
	if rel := p.Relocation(); rel != nil {
		rel.GroupID, rel.ArtifactID, rel.Version = expand(rel.GroupID), expand(rel.ArtifactID), expand(rel.Version)
	}
	if p.Prerequisites != nil {
		p.Prerequisites.Maven = expand(p.Prerequisites.Maven)
	}
}

// values builds the interpolation table. Model properties win over the
// external ones, project.* expressions win over both.
func (p *Project) values(external map[string]string) map[string]string {
	v := make(map[string]string, len(external)+len(p.Properties)+8)
	for k, val := range external {
		v[k] = val
	}
	for k, val := range p.Properties {
		v[k] = val
	}
	project := map[string]string{
		"groupId":    p.GroupID,
		"artifactId": p.ArtifactID,
		"version":    p.Version,
		"packaging":  p.Packaging,
		"name":       p.Name,
		"url":        p.URL,
	}
	if project["packaging"] == "" {
		project["packaging"] = "jar"
	}
	if p.Parent != nil {
		project["parent.groupId"] = p.Parent.GroupID
		project["parent.artifactId"] = p.Parent.ArtifactID
		project["parent.version"] = p.Parent.Version
	}
	for k, val := range project {
		v["project."+k] = val
		v["pom."+k] = val
	}
	return v
}

func expandString(s string, values map[string]string) string {
	for range maxInterpolationPasses {
		if !strings.Contains(s, "${") {
			return s
		}
		next := expression.ReplaceAllStringFunc(s, func(m string) string {
			if v, ok := values[m[2:len(m)-1]]; ok {
				return v
			}
			return m
		})
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func expandDeps(deps []Dependency, expand func(string) string) {
	for i := range deps {
		d := &deps[i]
		for _, s := range []*string{&d.GroupID, &d.ArtifactID, &d.Version, &d.Type, &d.Classifier, &d.Scope, &d.SystemPath, &d.Optional} {
			*s = expand(*s)
		}
		for j := range d.Exclusions {
			d.Exclusions[j].GroupID = expand(d.Exclusions[j].GroupID)
			d.Exclusions[j].ArtifactID = expand(d.Exclusions[j].ArtifactID)
		}
	}
}

func interpolateRepository(r Repository, p *Project, external map[string]string) Repository {
	r.URL = expandString(r.URL, p.values(external))
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
