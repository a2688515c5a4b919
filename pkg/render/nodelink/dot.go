// Package nodelink renders resolved dependency graphs as node-link
// diagrams.
//
// [ToDOT] produces Graphviz DOT source from a graph of pkg/io, and
// [RenderSVG] lays it out in-process with [github.com/goccy/go-graphviz]:
//
//	g := io.FromTree(result.Root)
//	svg, err := nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{}))
//
// The root is drawn filled, optional dependencies dashed, and test or
// provided dependencies greyed out. Edges that close a cycle are red.
package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mvnresolve/pkg/io"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds the group id, scope and management details to node
	// labels. Otherwise nodes show artifactId and version.
	Detailed bool
}

// ToDOT converts g to Graphviz DOT source.
func ToDOT(g *io.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		attrs := fmtAttrs(n, n.ID == g.Root, fmtLabel(n, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		if e.Cycle {
			fmt.Fprintf(&buf, "  %q -> %q [color=red, style=dashed];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n io.Node, detailed bool) string {
	name := n.ArtifactID
	if n.Classifier != "" {
		name += ":" + n.Classifier
	}
	if !detailed {
		return name + "\n" + n.Version
	}

	parts := []string{n.GroupID, name, n.Version}
	if n.Scope != "" {
		parts = append(parts, "scope: "+n.Scope)
	}
	if m := n.ManagedFrom; m != nil {
		if m.Version != "" {
			parts = append(parts, "managed from "+m.Version)
		}
		if m.Scope != "" {
			parts = append(parts, "scope managed from "+m.Scope)
		}
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n io.Node, root bool, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case root:
		attrs = append(attrs, "fillcolor=lightblue")
	case n.Optional:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	if n.Scope == "test" || n.Scope == "provided" {
		attrs = append(attrs, "fontcolor=grey40", "color=grey60")
	}
	return attrs
}

// RenderSVG lays out DOT source with Graphviz and returns the SVG.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the svg tag so the image scales from its
// viewBox origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
