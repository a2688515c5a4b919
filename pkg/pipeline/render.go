package pipeline

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/mvnresolve/pkg/collect"
	graphio "github.com/matzehuels/mvnresolve/pkg/io"
	"github.com/matzehuels/mvnresolve/pkg/render/nodelink"
)

// Render produces one uncached output of a filtered graph. root and g must
// describe the same graph.
func Render(root *collect.Node, g *graphio.Graph, format string, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTree:
		if err := collect.Dump(&buf, root); err != nil {
			return nil, err
		}
	case FormatList:
		writeList(&buf, root)
	case FormatJSON:
		if err := graphio.WriteJSON(g, &buf); err != nil {
			return nil, err
		}
	case FormatDOT:
		buf.WriteString(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.Detailed}))
	case FormatSVG:
		return nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.Detailed}))
	default:
		return nil, ValidateFormat(format)
	}
	return buf.Bytes(), nil
}

// writeList prints the flattened graph one artifact per line, followed by
// its file when resolved.
func writeList(buf *bytes.Buffer, root *collect.Node) {
	for _, n := range collect.Nodes(root, nil) {
		if f := n.Artifact().File; f != "" {
			fmt.Fprintf(buf, "%s -> %s\n", n, f)
			continue
		}
		fmt.Fprintln(buf, n)
	}
}
