package collect

import (
	"context"
	"slices"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Context describes the node whose children are about to be selected and
// managed.
type Context struct {
	Session *session.Session

	// Depth is the depth of the node. The root has depth 0, so the
	// policies derived for it apply to the direct dependencies at depth 1.
	Depth int

	Dependency artifact.Dependency

	// Managed lists the management entries in effect. It is only set for
	// the root.
	Managed []artifact.Dependency
}

// Selector decides which dependencies are expanded. DeriveChild returns
// the selector for the children of the node described by c; it never
// mutates the receiver, so sibling subtrees can share one instance.
type Selector interface {
	Select(d artifact.Dependency) bool
	DeriveChild(ctx context.Context, c Context) Selector
}

// DefaultSelector drops test and provided dependencies and optional ones
// below the direct dependencies, and honors exclusions.
func DefaultSelector() Selector {
	return AndSelector(
		NewScopeSelector(artifact.ScopeTest, artifact.ScopeProvided),
		&OptionalSelector{},
		&ExclusionSelector{},
	)
}

// =============================================================================
// Scope
// =============================================================================

// ScopeSelector drops transitive dependencies in the excluded scopes.
// Direct dependencies are always selected.
type ScopeSelector struct {
	excluded []artifact.Scope
	depth    int
}

func NewScopeSelector(excluded ...artifact.Scope) *ScopeSelector {
	return &ScopeSelector{excluded: excluded}
}

func (s *ScopeSelector) Select(d artifact.Dependency) bool {
	return s.depth <= 1 || !slices.Contains(s.excluded, d.Scope)
}

func (s *ScopeSelector) DeriveChild(_ context.Context, c Context) Selector {
	if s.depth > 1 {
		return s
	}
	return &ScopeSelector{excluded: s.excluded, depth: c.Depth + 1}
}

// =============================================================================
// Optional
// =============================================================================

// OptionalSelector drops optional dependencies of dependencies.
type OptionalSelector struct {
	depth int
}

func (s *OptionalSelector) Select(d artifact.Dependency) bool {
	return s.depth <= 1 || !d.Optional
}

func (s *OptionalSelector) DeriveChild(_ context.Context, c Context) Selector {
	if s.depth > 1 {
		return s
	}
	return &OptionalSelector{depth: c.Depth + 1}
}

// =============================================================================
// Exclusions
// =============================================================================

// ExclusionSelector drops dependencies matched by an exclusion declared on
// any ancestor.
type ExclusionSelector struct {
	exclusions []artifact.Exclusion
}

func (s *ExclusionSelector) Select(d artifact.Dependency) bool {
	for _, e := range s.exclusions {
		if e.Matches(d.Artifact) {
			return false
		}
	}
	return true
}

func (s *ExclusionSelector) DeriveChild(_ context.Context, c Context) Selector {
	if len(c.Dependency.Exclusions) == 0 {
		return s
	}
	merged := artifact.Dependency{Exclusions: s.exclusions}.WithExclusions(c.Dependency.Exclusions)
	return &ExclusionSelector{exclusions: merged.Exclusions}
}

// =============================================================================
// Composition
// =============================================================================

type andSelector []Selector

// AndSelector selects a dependency only when every selector does. Nil
// entries are skipped.
func AndSelector(selectors ...Selector) Selector {
	out := make(andSelector, 0, len(selectors))
	for _, s := range selectors {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (a andSelector) Select(d artifact.Dependency) bool {
	for _, s := range a {
		if !s.Select(d) {
			return false
		}
	}
	return true
}

func (a andSelector) DeriveChild(ctx context.Context, c Context) Selector {
	out := make(andSelector, len(a))
	for i, s := range a {
		out[i] = s.DeriveChild(ctx, c)
	}
	return out
}
