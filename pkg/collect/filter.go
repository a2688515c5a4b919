package collect

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/errors"
)

// Filter decides whether a node of a resolved graph is part of a result.
// Rejecting a node does not hide its children.
type Filter interface {
	Accept(n *Node, parents []*Node) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(n *Node, parents []*Node) bool

func (f FilterFunc) Accept(n *Node, parents []*Node) bool { return f(n, parents) }

// ScopeFilter accepts nodes whose scope is included, or any scope when
// included is empty, and not excluded.
func ScopeFilter(included, excluded []artifact.Scope) Filter {
	return FilterFunc(func(n *Node, _ []*Node) bool {
		s := n.Dependency.Scope.Or(artifact.ScopeCompile)
		if len(included) > 0 && !slices.Contains(included, s) {
			return false
		}
		return !slices.Contains(excluded, s)
	})
}

var classpaths = map[string][]artifact.Scope{
	"compile":         {artifact.ScopeCompile, artifact.ScopeProvided, artifact.ScopeSystem},
	"runtime":         {artifact.ScopeCompile, artifact.ScopeRuntime},
	"compile+runtime": {artifact.ScopeCompile, artifact.ScopeProvided, artifact.ScopeSystem, artifact.ScopeRuntime},
	"runtime+system":  {artifact.ScopeCompile, artifact.ScopeRuntime, artifact.ScopeSystem},
	"test": {
		artifact.ScopeCompile, artifact.ScopeProvided, artifact.ScopeSystem,
		artifact.ScopeRuntime, artifact.ScopeTest,
	},
}

// ClasspathFilter accepts the scopes that make up a classpath: "compile",
// "runtime", "test", "compile+runtime" or "runtime+system".
func ClasspathFilter(classpath string) (Filter, error) {
	scopes, ok := classpaths[classpath]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown classpath %q", classpath)
	}
	return ScopeFilter(scopes, nil), nil
}

type andFilter []Filter

// AndFilter accepts a node only when every filter does. Nil entries are
// skipped.
func AndFilter(filters ...Filter) Filter {
	out := make(andFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (a andFilter) Accept(n *Node, parents []*Node) bool {
	for _, f := range a {
		if !f.Accept(n, parents) {
			return false
		}
	}
	return true
}

// ExclusionsFilter rejects artifacts named by "artifactId" or
// "groupId:artifactId" patterns.
func ExclusionsFilter(patterns ...string) Filter {
	return FilterFunc(func(n *Node, _ []*Node) bool {
		a := n.Dependency.Artifact
		for _, p := range patterns {
			g, id, qualified := strings.Cut(p, ":")
			if !qualified {
				g, id = "", p
			}
			if id == a.ArtifactID && (g == "" || g == a.GroupID) {
				return false
			}
		}
		return true
	})
}

// =============================================================================
// Flattening
// =============================================================================

// Nodes lists the accepted nodes below root in pre-order. A node whose
// artifact was already listed is skipped.
func Nodes(root *Node, f Filter) []*Node {
	var out []*Node
	seen := map[string]bool{}
	root.Walk(func(n *Node, parents []*Node) bool {
		if n == root {
			return true
		}
		id := n.Dependency.Artifact.String()
		if seen[id] || (f != nil && !f.Accept(n, parents)) {
			return true
		}
		seen[id] = true
		out = append(out, n)
		return true
	})
	return out
}

// Flatten lists the accepted artifacts below root in pre-order without
// duplicates.
func Flatten(root *Node, f Filter) []artifact.Artifact {
	nodes := Nodes(root, f)
	out := make([]artifact.Artifact, len(nodes))
	for i, n := range nodes {
		out[i] = n.Dependency.Artifact
	}
	return out
}

// Prune returns a copy of the graph holding only the nodes f accepts.
// A rejected node takes its subtree with it; the root is always kept.
func Prune(root *Node, f Filter) *Node {
	return prune(root, nil, f)
}

func prune(n *Node, parents []*Node, f Filter) *Node {
	cp := *n
	cp.Children = nil
	parents = append(parents, n)
	for _, c := range n.Children {
		if f != nil && !f.Accept(c, parents) {
			continue
		}
		cp.Children = append(cp.Children, prune(c, parents, f))
	}
	return &cp
}

// Dump writes the graph as an indented tree, two spaces per level.
func Dump(w io.Writer, root *Node) error {
	var err error
	root.Walk(func(n *Node, parents []*Node) bool {
		if err != nil {
			return false
		}
		line := strings.Repeat("  ", len(parents)) + n.String()
		if !n.Premanaged.IsZero() {
			line += " " + premanagedNote(n.Premanaged)
		}
		if n.Cycle {
			line += " (cycle)"
		}
		_, err = fmt.Fprintln(w, line)
		return true
	})
	return err
}

func premanagedNote(p Premanaged) string {
	var parts []string
	if p.Version != "" {
		parts = append(parts, "version managed from "+p.Version)
	}
	if p.Scope != "" {
		parts = append(parts, "scope managed from "+string(p.Scope))
	}
	if p.Optional != nil {
		parts = append(parts, fmt.Sprintf("optional managed from %t", *p.Optional))
	}
	return "(" + strings.Join(parts, "; ") + ")"
}
