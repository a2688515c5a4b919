package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/pipeline"
)

// resolveOpts holds the command-line flags for the resolve command.
type resolveOpts struct {
	repoFlags
	scope        string // classpath to keep
	formats      string // comma-separated output formats
	output       string // output file, or base path for several formats
	detailed     bool   // detailed node labels in dot/svg
	resolveFiles bool   // download artifact files
	refresh      bool   // bypass the render cache
	noCache      bool   // disable the render cache
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts

	cmd := &cobra.Command{
		Use:   "resolve <pom.xml | groupId:artifactId[:ext[:classifier]]:version>",
		Short: "Resolve the dependency graph of a project or artifact",
		Long: `Resolve the dependency graph of a project POM or of an artifact's own POM.

The graph is collected with nearest-wins conflict resolution, filtered to the
requested classpath and written in one or more formats.

Examples:
  mvnresolve resolve pom.xml
  mvnresolve resolve pom.xml --scope runtime --format list
  mvnresolve resolve org.slf4j:slf4j-simple:2.0.9 -f json,svg -o deps`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", pipeline.DefaultScope, "classpath: compile, runtime, test, compile+runtime, runtime+system")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): tree (default), list, json, dot, svg (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show group, scope and management details in dot/svg")
	cmd.Flags().BoolVar(&opts.resolveFiles, "resolve", false, "download the artifact files of the graph")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the render cache")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

// isProjectArg reports whether arg names a POM file rather than a
// coordinate.
func isProjectArg(arg string) bool {
	if strings.HasSuffix(arg, ".xml") {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

func (c *CLI) runResolve(ctx context.Context, arg string, opts *resolveOpts) error {
	repos, err := c.repositories(&opts.repoFlags)
	if err != nil {
		return err
	}
	s, err := c.settings.Session(sessionFlags{offline: opts.offline, update: opts.update}, c.Logger)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := pipeline.Options{
		Scope:        opts.scope,
		Formats:      parseFormats(opts.formats),
		Detailed:     opts.detailed,
		ResolveFiles: opts.resolveFiles,
		Refresh:      opts.refresh,
		Repositories: repos,
		Logger:       c.Logger,
	}
	if isProjectArg(arg) {
		popts.Project = arg
	} else {
		popts.Coordinate = arg
	}

	multiple := len(popts.Formats) > 1
	if multiple && opts.output == "" {
		return errors.New("--output is required with several formats")
	}

	prog := newProgress(c.Logger)
	sp := c.startSpinner(ctx, "Resolving "+arg)
	res, err := runner.Execute(ctx, s, popts)
	sp.Stop()
	if res == nil {
		return err
	}
	collectErr := err

	for _, format := range popts.Formats {
		path := outputPath(opts.output, format, multiple)
		if err := c.writeOutput(path, res.Outputs[format]); err != nil {
			return err
		}
		if path != "" {
			printFile(c.Out, path)
		}
	}
	if opts.output != "" {
		printStats(c.Out, res.Stats.NodeCount, res.Stats.EdgeCount, res.CacheInfo.RenderHit)
	}

	for _, conflict := range res.Collection.Conflicts {
		c.Logger.Debug("version conflict", "key", conflict.Key, "winner", conflict.Winner, "losers", conflict.Losers)
	}
	for _, e := range res.Unresolved {
		c.Logger.Warn("artifact not resolved", "err", e)
	}
	if pipeline.IsPartial(res, collectErr) {
		for _, e := range res.Collection.Errors {
			c.Logger.Error("dependency not collected", "err", e)
		}
		return collectErr
	}
	prog.done("Resolved", "root", res.Root, "nodes", res.Stats.NodeCount)
	return nil
}
