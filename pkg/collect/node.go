package collect

import (
	"github.com/matzehuels/mvnresolve/pkg/artifact"
)

// Node is one dependency in a collected graph. The root node carries the
// collected artifact and has depth 0; its dependency scope is empty.
type Node struct {
	Dependency artifact.Dependency
	Children   []*Node
	Depth      int

	// Constraint is the version the dependency was declared with, before
	// range resolution. It is a range for range-resolved nodes.
	Constraint string

	// Premanaged holds the values management replaced, if any.
	Premanaged Premanaged

	Relocations []artifact.Artifact
	Aliases     []artifact.Artifact

	// Repository supplied the node's descriptor. Nil means the local
	// repository or that no descriptor was read.
	Repository *artifact.RemoteRepository

	// Repositories are the remotes the node's artifact should be resolved
	// from: the request repositories merged with those its ancestors
	// declared.
	Repositories []artifact.RemoteRepository

	// Cycle is set when the artifact already appears on the path from the
	// root. Such nodes are not expanded.
	Cycle bool
}

// Premanaged records the declaration that dependency management replaced.
// Empty fields were left alone.
type Premanaged struct {
	Version  string
	Scope    artifact.Scope
	Optional *bool
}

// IsZero reports whether management changed nothing.
func (p Premanaged) IsZero() bool {
	return p.Version == "" && p.Scope == "" && p.Optional == nil
}

// Artifact returns the node's artifact.
func (n *Node) Artifact() artifact.Artifact { return n.Dependency.Artifact }

// Scope returns the node's effective scope.
func (n *Node) Scope() artifact.Scope { return n.Dependency.Scope }

// Optional reports whether the node is optional.
func (n *Node) Optional() bool { return n.Dependency.Optional }

// String renders g:a:ext[:cls]:version [scope] with an "(optional)" marker.
func (n *Node) String() string {
	s := n.Dependency.Artifact.String()
	if n.Dependency.Scope != "" {
		s += " [" + string(n.Dependency.Scope) + "]"
	}
	if n.Dependency.Optional {
		s += " (optional)"
	}
	return s
}

// Walk visits the graph in pre-order. parents lists the ancestors of n,
// root first. Returning false from fn skips the children of n.
func (n *Node) Walk(fn func(n *Node, parents []*Node) bool) {
	n.walk(nil, fn)
}

func (n *Node) walk(parents []*Node, fn func(*Node, []*Node) bool) {
	if !fn(n, parents) {
		return
	}
	parents = append(parents, n)
	for _, c := range n.Children {
		c.walk(parents, fn)
	}
}

// Count returns the number of nodes in the graph, the root included.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, []*Node) bool {
		count++
		return true
	})
	return count
}

// Find returns the first node in pre-order whose artifact key equals key.
func (n *Node) Find(key string) (*Node, bool) {
	var found *Node
	n.Walk(func(c *Node, _ []*Node) bool {
		if found != nil {
			return false
		}
		if c.Dependency.Artifact.Key() == key {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}

func pathOf(trail []*Node) []string {
	out := make([]string, len(trail))
	for i, n := range trail {
		out[i] = n.Dependency.Artifact.String()
	}
	return out
}
