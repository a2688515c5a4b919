package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/io"
	"github.com/matzehuels/mvnresolve/pkg/pipeline"
	"github.com/matzehuels/mvnresolve/pkg/render/nodelink"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file path (or base path for multiple outputs)
	formats  string // comma-separated output formats: dot, svg
	detailed bool   // show group, scope and management details
}

// renderCommand creates the render command for drawing a graph exported
// with "resolve --format json".
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <graph.json>",
		Short: "Render an exported dependency graph",
		Long: `Render a graph written by "resolve --format json" as Graphviz DOT or SVG.

Examples:
  mvnresolve render deps.json -o deps.svg
  mvnresolve render deps.json -f dot,svg -o deps --detailed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", pipeline.FormatSVG, "output format(s): dot, svg (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show group, scope and management details")

	return cmd
}

func (c *CLI) runRender(_ context.Context, input string, opts *renderOpts) error {
	formats := parseFormats(opts.formats)
	for _, f := range formats {
		if f != pipeline.FormatDOT && f != pipeline.FormatSVG {
			return fmt.Errorf("render supports dot and svg, got %q", f)
		}
	}
	multiple := len(formats) > 1
	if multiple && opts.output == "" {
		return fmt.Errorf("--output is required with several formats")
	}

	g, err := io.ImportJSON(input)
	if err != nil {
		return err
	}
	c.Logger.Debug("graph loaded", "file", input, "nodes", len(g.Nodes), "edges", len(g.Edges))

	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed})
	for _, format := range formats {
		data := []byte(dot)
		if format == pipeline.FormatSVG {
			if data, err = nodelink.RenderSVG(dot); err != nil {
				return fmt.Errorf("render svg: %w", err)
			}
		}
		path := outputPath(opts.output, format, multiple)
		if err := c.writeOutput(path, data); err != nil {
			return err
		}
		if path != "" {
			printFile(c.Out, path)
		}
	}
	return nil
}
