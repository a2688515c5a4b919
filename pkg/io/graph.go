package io

import (
	"github.com/matzehuels/mvnresolve/pkg/collect"
)

// Graph is a resolved dependency graph.
type Graph struct {
	Root  string `json:"root"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one artifact of a graph.
type Node struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version"`
	Extension  string `json:"extension,omitempty"`
	Classifier string `json:"classifier,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	Depth      int    `json:"depth"`
	PURL       string `json:"purl,omitempty"`

	// ManagedFrom holds the declared version and scope when dependency
	// management replaced them.
	ManagedFrom *Managed `json:"managed_from,omitempty"`

	Repository string `json:"repository,omitempty"`
	File       string `json:"file,omitempty"`
}

// Managed records values replaced by dependency management.
type Managed struct {
	Version string `json:"version,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

// Edge points from a dependent to its dependency.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Cycle bool   `json:"cycle,omitempty"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Children returns the ids of the direct dependencies of id in edge order.
func (g *Graph) Children(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// FromTree flattens a resolved tree. Nodes are listed in pre-order; the
// first occurrence of an artifact supplies its node.
func FromTree(root *collect.Node) *Graph {
	g := &Graph{Root: root.Artifact().String()}
	seen := map[string]bool{}
	edges := map[Edge]bool{}

	root.Walk(func(n *collect.Node, parents []*collect.Node) bool {
		id := n.Artifact().String()
		if !seen[id] {
			seen[id] = true
			g.Nodes = append(g.Nodes, toNode(n))
		}
		if len(parents) > 0 {
			e := Edge{From: parents[len(parents)-1].Artifact().String(), To: id, Cycle: n.Cycle}
			if !edges[e] {
				edges[e] = true
				g.Edges = append(g.Edges, e)
			}
		}
		return true
	})
	return g
}

func toNode(n *collect.Node) Node {
	a := n.Artifact()
	out := Node{
		ID:         a.String(),
		GroupID:    a.GroupID,
		ArtifactID: a.ArtifactID,
		Version:    a.Version,
		Extension:  a.Extension,
		Classifier: a.Classifier,
		Scope:      string(n.Scope()),
		Optional:   n.Optional(),
		Depth:      n.Depth,
		PURL:       a.PackageURL(),
		File:       a.File,
	}
	if p := n.Premanaged; p.Version != "" || p.Scope != "" {
		out.ManagedFrom = &Managed{Version: p.Version, Scope: string(p.Scope)}
	}
	if n.Repository != nil {
		out.Repository = n.Repository.ID
	}
	return out
}
