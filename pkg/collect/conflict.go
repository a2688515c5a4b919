package collect

import (
	"context"
	"slices"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

// Transformer rewrites a collected graph. Transformers run in order once
// the descent is complete.
type Transformer interface {
	Transform(ctx context.Context, root *Node, tc *TransformContext) (*Node, error)
}

// TransformContext is shared by the transformers of one collection.
type TransformContext struct {
	Session *session.Session

	// Conflicts is filled by the ConflictResolver.
	Conflicts []Conflict
}

// Conflict reports an artifact that was reached with more than one
// version.
type Conflict struct {
	Key    string
	Winner string
	Losers []string

	// RequestedBy names the parent that declared each losing version.
	RequestedBy []string
}

// DefaultTransformers returns the pipeline used when a request names none.
func DefaultTransformers() []Transformer {
	return []Transformer{NewConflictResolver()}
}

// DefaultScopeDominance orders scopes from the one that wins a scope
// conflict to the one that loses it.
var DefaultScopeDominance = []artifact.Scope{
	artifact.ScopeCompile,
	artifact.ScopeRuntime,
	artifact.ScopeSystem,
	artifact.ScopeProvided,
	artifact.ScopeTest,
}

// ConflictResolver keeps one node per artifact key. It runs four steps in
// a fixed order: nearest-wins version selection, scope conflict
// resolution, scope derivation and optionality resolution.
type ConflictResolver struct {
	// Dominance orders scopes, winner first.
	Dominance []artifact.Scope

	// Derive combines the effective scope of a parent with the declared
	// scope of a child.
	Derive func(parent, child artifact.Scope) artifact.Scope
}

func NewConflictResolver() *ConflictResolver {
	return &ConflictResolver{Dominance: DefaultScopeDominance, Derive: DeriveScope}
}

// DeriveScope returns the scope a child declared with scope child gets
// when reached through a parent with effective scope parent.
func DeriveScope(parent, child artifact.Scope) artifact.Scope {
	child = child.Or(artifact.ScopeCompile)
	switch {
	case child == artifact.ScopeSystem || child == artifact.ScopeTest:
		return child
	case parent == "" || parent == artifact.ScopeCompile:
		return child
	case parent == artifact.ScopeTest || parent == artifact.ScopeRuntime:
		return parent
	default:
		return artifact.ScopeProvided
	}
}

type occurrence struct {
	node   *Node
	parent *Node
}

type conflictState struct {
	root    *Node
	winners map[string]*Node
	occurs  map[string][]occurrence
	order   []string
	scopes  map[string]artifact.Scope
	pending map[string]bool
}

func (r *ConflictResolver) Transform(_ context.Context, root *Node, tc *TransformContext) (*Node, error) {
	st := &conflictState{
		root:    root,
		winners: map[string]*Node{root.Dependency.Artifact.Key(): root},
		occurs:  map[string][]occurrence{},
		scopes:  map[string]artifact.Scope{},
		pending: map[string]bool{},
	}
	st.selectNearest()
	for _, key := range st.order {
		st.winners[key].Dependency.Scope = r.scope(st, key)
	}
	for _, key := range st.order {
		st.winners[key].Dependency.Optional = optional(st, key)
	}
	tc.Conflicts = append(tc.Conflicts, st.conflicts()...)
	return root, nil
}

// =============================================================================
// Nearest wins
// =============================================================================

// selectNearest walks the graph breadth-first, so the first node seen for
// a key is the shallowest one and, among equally deep nodes, the first
// declared. Later nodes for the key are dropped with their subtrees, and
// nodes below dropped ones never take part.
func (st *conflictState) selectNearest() {
	queue := []*Node{st.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		kept := n.Children[:0:0]
		for _, c := range n.Children {
			key := c.Dependency.Artifact.Key()
			st.occurs[key] = append(st.occurs[key], occurrence{node: c, parent: n})
			if _, ok := st.winners[key]; ok {
				continue
			}
			st.winners[key] = c
			st.order = append(st.order, key)
			kept = append(kept, c)
			queue = append(queue, c)
		}
		n.Children = kept
	}
}

// =============================================================================
// Scope
// =============================================================================

// scope settles the scope of a key. A direct dependency keeps its declared
// scope. Otherwise every occurrence contributes the scope derived from its
// parent's settled scope and the most dominant one wins.
func (r *ConflictResolver) scope(st *conflictState, key string) artifact.Scope {
	if s, ok := st.scopes[key]; ok {
		return s
	}
	w := st.winners[key]
	if w == st.root {
		return w.Dependency.Scope
	}
	if st.pending[key] {
		return w.Dependency.Scope.Or(artifact.ScopeCompile)
	}
	st.pending[key] = true
	defer delete(st.pending, key)

	var candidates []artifact.Scope
	for _, o := range st.occurs[key] {
		if o.parent == st.root {
			st.scopes[key] = o.node.Dependency.Scope.Or(artifact.ScopeCompile)
			return st.scopes[key]
		}
		parent := r.scope(st, o.parent.Dependency.Artifact.Key())
		candidates = append(candidates, r.Derive(parent, o.node.Dependency.Scope))
	}
	s := r.dominant(candidates)
	st.scopes[key] = s
	return s
}

func (r *ConflictResolver) dominant(scopes []artifact.Scope) artifact.Scope {
	for _, s := range r.Dominance {
		if slices.Contains(scopes, s) {
			return s
		}
	}
	if len(scopes) > 0 {
		return scopes[0]
	}
	return artifact.ScopeCompile
}

// =============================================================================
// Optionality
// =============================================================================

// optional keeps the flag of a direct dependency. Deeper artifacts are
// optional only when every occurrence is.
func optional(st *conflictState, key string) bool {
	occ := st.occurs[key]
	for _, o := range occ {
		if o.parent == st.root {
			return o.node.Dependency.Optional
		}
	}
	for _, o := range occ {
		if !o.node.Dependency.Optional {
			return false
		}
	}
	return len(occ) > 0
}

// =============================================================================
// Reporting
// =============================================================================

func (st *conflictState) conflicts() []Conflict {
	var out []Conflict
	for _, key := range st.order {
		w := st.winners[key]
		c := Conflict{Key: key, Winner: w.Dependency.Artifact.Version}
		for _, o := range st.occurs[key] {
			if o.node == w {
				continue
			}
			v := o.node.Dependency.Artifact.Version
			if v == c.Winner || slices.Contains(c.Losers, v) {
				continue
			}
			c.Losers = append(c.Losers, v)
			c.RequestedBy = append(c.RequestedBy, o.parent.Dependency.Artifact.String())
		}
		if len(c.Losers) > 0 {
			out = append(out, c)
		}
	}
	return out
}
