package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	"github.com/matzehuels/mvnresolve/pkg/plugin"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// =============================================================================
// descriptor
// =============================================================================

func (c *CLI) descriptorCommand() *cobra.Command {
	var flags repoFlags

	cmd := &cobra.Command{
		Use:   "descriptor <groupId:artifactId[:ext[:classifier]]:version>",
		Short: "Show the effective descriptor of an artifact",
		Long: `Read the POM of an artifact with its parents, imports and relocations
applied, and print its direct dependencies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDescriptor(cmd.Context(), args[0], &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runDescriptor(ctx context.Context, coords string, flags *repoFlags) error {
	a, err := artifact.Parse(coords)
	if err != nil {
		return err
	}
	repos, err := c.repositories(flags)
	if err != nil {
		return err
	}
	s, err := c.settings.Session(sessionFlags{offline: flags.offline, update: flags.update}, c.Logger)
	if err != nil {
		return err
	}

	res, err := c.newReader().Read(ctx, s, descriptor.Request{Artifact: a, Repositories: repos})
	if err != nil {
		return err
	}

	printTitle(c.Out, res.Artifact.String())
	printKeyValue(c.Out, "repository", repositoryName(res.Repository))
	for _, r := range res.Relocations {
		printKeyValue(c.Out, "relocated", r.String())
	}
	if res.Prerequisites != "" {
		printKeyValue(c.Out, "prerequisites", res.Prerequisites)
	}
	printKeyValue(c.Out, "managed", strconv.Itoa(len(res.ManagedDependencies)))
	if res.Model == nil {
		printWarning(c.Out, "descriptor missing or invalid, dependencies unknown")
		return nil
	}
	if len(res.Dependencies) == 0 {
		printInfo(c.Out, "No dependencies")
		return nil
	}
	rows := make([][]string, 0, len(res.Dependencies))
	for _, d := range res.Dependencies {
		a := d.Artifact
		optional := ""
		if d.Optional {
			optional = "yes"
		}
		rows = append(rows, []string{a.VersionlessID(), a.Version, string(d.Scope.Or(artifact.ScopeCompile)), optional})
	}
	printTable(c.Out, []string{"Dependency", "Version", "Scope", "Optional"}, rows)
	return nil
}

func repositoryName(r *artifact.RemoteRepository) string {
	if r == nil {
		return artifact.LocalRepositoryID
	}
	return r.String()
}

// =============================================================================
// plugin
// =============================================================================

type pluginOpts struct {
	repoFlags
	classpath string
	exclude   []string
}

func (c *CLI) pluginCommand() *cobra.Command {
	var opts pluginOpts

	cmd := &cobra.Command{
		Use:   "plugin <groupId:artifactId:version>",
		Short: "Resolve a build plugin and its runtime classpath",
		Long: `Resolve the jar of a build plugin and the artifacts of its runtime
classpath. Provided and test dependencies are never part of it.

Examples:
  mvnresolve plugin org.apache.maven.plugins:maven-compiler-plugin:3.11.0
  mvnresolve plugin org.example:demo-plugin:1.0 --exclude plexus-utils`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlugin(cmd.Context(), args[0], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.classpath, "classpath", "runtime", "classpath filter applied to the plugin dependencies")
	cmd.Flags().StringArrayVar(&opts.exclude, "exclude", nil, "artifactId or groupId:artifactId to drop (repeatable)")
	return cmd
}

func (c *CLI) runPlugin(ctx context.Context, coords string, opts *pluginOpts) error {
	p, err := plugin.Parse(coords)
	if err != nil {
		return err
	}
	filter, err := collect.ClasspathFilter(opts.classpath)
	if err != nil {
		return err
	}
	if len(opts.exclude) > 0 {
		filter = collect.AndFilter(filter, collect.ExclusionsFilter(opts.exclude...))
	}
	repos, err := c.repositories(&opts.repoFlags)
	if err != nil {
		return err
	}
	s, err := c.settings.Session(sessionFlags{offline: opts.offline, update: opts.update}, c.Logger)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	sp := c.startSpinner(ctx, "Resolving "+p.String())
	r := plugin.New(c.newReader())
	resolved, err := r.ResolvePluginArtifact(ctx, s, p, repos)
	if err != nil {
		sp.Stop()
		return err
	}
	deps, err := r.CollectPluginDependencies(ctx, s, plugin.CollectRequest{
		Plugin:       p,
		Resolved:     resolved,
		Filter:       filter,
		Repositories: repos,
	})
	sp.Stop()
	if err != nil {
		return err
	}

	printTitle(c.Out, resolved.Artifact.String())
	printFile(c.Out, resolved.Artifact.File)
	if resolved.Prerequisites != "" {
		printKeyValue(c.Out, "prerequisites", resolved.Prerequisites)
	}
	for _, a := range deps.Artifacts {
		printDetail(c.Out, "%s -> %s", a, a.File)
	}
	for _, conflict := range deps.Conflicts {
		c.Logger.Debug("version conflict", "key", conflict.Key, "winner", conflict.Winner)
	}
	prog.done("Resolved plugin", "plugin", resolved.Artifact, "dependencies", len(deps.Artifacts))
	return nil
}

// =============================================================================
// versions and compare
// =============================================================================

type versionsOpts struct {
	repoFlags
	constraint string
}

func (c *CLI) versionsCommand() *cobra.Command {
	var opts versionsOpts

	cmd := &cobra.Command{
		Use:   "versions <groupId:artifactId>",
		Short: "List the available versions of an artifact",
		Long: `List the versions of an artifact known to the local and remote
repositories, filtered by a version range.

Examples:
  mvnresolve versions junit:junit
  mvnresolve versions junit:junit --range "[4.0,5.0)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVersions(cmd.Context(), args[0], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.constraint, "range", "[0,)", "version range to match")
	return cmd
}

func (c *CLI) runVersions(ctx context.Context, ga string, opts *versionsOpts) error {
	if !version.IsRange(opts.constraint) {
		return fmt.Errorf("--range %q is not a version range", opts.constraint)
	}
	a, err := artifact.Parse(ga + ":" + opts.constraint)
	if err != nil {
		return err
	}
	repos, err := c.repositories(&opts.repoFlags)
	if err != nil {
		return err
	}
	s, err := c.settings.Session(sessionFlags{offline: opts.offline, update: opts.update}, c.Logger)
	if err != nil {
		return err
	}

	res, err := c.newReader().Resolver().ResolveVersionRange(ctx, s, resolver.RangeRequest{Artifact: a, Repositories: repos})
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		c.Logger.Warn("versions metadata not read", "err", e)
	}
	for _, v := range res.Versions {
		fmt.Fprintf(c.Out, "%s\t%s\n", v, repositoryName(res.Repository(v)))
	}
	if len(res.Versions) == 0 {
		printInfo(c.Out, "No versions match %s", res.Constraint)
	}
	return nil
}

func (c *CLI) compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <version> <version>",
		Short: "Compare two versions",
		Long: `Compare two versions by Maven ordering and print their canonical forms.

Example:
  mvnresolve compare 1.0-alpha-1 1.0-SNAPSHOT`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := version.Parse(args[0])
			if err != nil {
				return err
			}
			b, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			op := "=="
			switch cmp := a.Compare(b); {
			case cmp < 0:
				op = "<"
			case cmp > 0:
				op = ">"
			}
			fmt.Fprintf(c.Out, "%s %s %s\n", a, op, b)
			printDetail(c.Out, "%s -> %s", a, a.Canonical())
			printDetail(c.Out, "%s -> %s", b, b.Canonical())
			return nil
		},
	}
}
