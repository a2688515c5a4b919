package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/pipeline"
)

// classpaths are the values accepted by --scope and --classpath.
var classpaths = []string{"compile", "runtime", "test", "compile+runtime", "runtime+system"}

// completionCommand prints a completion script. Beyond command names the
// scripts complete classpaths, output formats and the repository ids of
// the settings file.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Print a shell completion script",
		Long: `Print a completion script for mvnresolve.

Completion covers subcommands, --scope and --classpath values, the
formats of --format (one comma-separated entry at a time) and the ids of
the repositories in settings.toml for --repo.

  bash:        source <(mvnresolve completion bash)
  zsh:         mvnresolve completion zsh > "${fpath[1]}/_mvnresolve"
  fish:        mvnresolve completion fish > ~/.config/fish/completions/mvnresolve.fish
  powershell:  mvnresolve completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, w := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}

// registerCompletions attaches value completion to the flags of every
// subcommand of root that declares them.
func (c *CLI) registerCompletions(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		for _, name := range []string{"scope", "classpath"} {
			if cmd.Flags().Lookup(name) != nil {
				_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(classpaths, cobra.ShellCompDirectiveNoFileComp))
			}
		}
		if cmd.Flags().Lookup("format") != nil {
			formats := []string{pipeline.FormatTree, pipeline.FormatList, pipeline.FormatJSON, pipeline.FormatDOT, pipeline.FormatSVG}
			if cmd.Name() == "render" {
				formats = []string{pipeline.FormatDOT, pipeline.FormatSVG}
			}
			_ = cmd.RegisterFlagCompletionFunc("format", completeFormats(formats))
		}
		if cmd.Flags().Lookup("repo") != nil {
			_ = cmd.RegisterFlagCompletionFunc("repo", c.completeRepositories)
		}
	}
}

// completeFormats completes the last entry of a comma-separated format
// list, skipping formats already named.
func completeFormats(formats []string) cobra.CompletionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix, last := "", toComplete
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix, last = toComplete[:i+1], toComplete[i+1:]
		}
		used := strings.Split(strings.TrimSuffix(prefix, ","), ",")
		var out []string
		for _, f := range formats {
			if strings.HasPrefix(f, last) && !slices.Contains(used, f) {
				out = append(out, prefix+f)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
}

// completeRepositories offers id=url for each configured repository.
func (c *CLI) completeRepositories(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	s := c.settings
	if s == nil {
		var err error
		if s, err = loadSettings(c.settingsPath, false, c.Logger); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}
	var out []string
	for _, r := range s.RemoteRepositories() {
		if v := r.ID + "=" + r.URL; strings.HasPrefix(v, toComplete) {
			out = append(out, v)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
