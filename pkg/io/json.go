package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteJSON encodes g as indented JSON.
func WriteJSON(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes g to a JSON file at path.
func ExportJSON(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}

// ReadJSON decodes a graph written by WriteJSON. It fails on duplicate
// node ids and on edges naming unknown nodes.
func ReadJSON(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node without id")
		}
		if ids[n.ID] {
			return nil, fmt.Errorf("node %s: duplicate id", n.ID)
		}
		ids[n.ID] = true
	}
	if g.Root != "" && !ids[g.Root] {
		return nil, fmt.Errorf("root %s: unknown node", g.Root)
	}
	for _, e := range g.Edges {
		if !ids[e.From] || !ids[e.To] {
			return nil, fmt.Errorf("edge %s->%s: unknown node", e.From, e.To)
		}
	}
	return &g, nil
}

// ImportJSON reads a graph from the JSON file at path.
func ImportJSON(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
