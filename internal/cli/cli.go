// Package cli implements the mvnresolve command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/buildinfo"
	"github.com/matzehuels/mvnresolve/pkg/cache"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	"github.com/matzehuels/mvnresolve/pkg/pipeline"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "mvnresolve"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives command output. It defaults to stdout.
	Out io.Writer

	// Err receives logs and progress.
	Err io.Writer

	settingsPath string
	verbose      bool
	logJSON      bool
	settings     *Settings
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mvnresolve resolves Maven dependency graphs",
		Long: `mvnresolve resolves the dependency graph of a Maven project or artifact against
remote repositories and a local repository, and installs or deploys artifacts
with their repository metadata.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			if c.logJSON {
				useJSON(c.Logger)
			}
			return c.loadSettings(cmd.Flags().Changed("settings"))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&c.logJSON, "log-json", false, "write logs as JSON lines")
	root.PersistentFlags().StringVar(&c.settingsPath, "settings", defaultSettingsPath(), "settings file")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.pluginCommand())
	root.AddCommand(c.descriptorCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.deployCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	c.registerCompletions(root)

	return root
}

func (c *CLI) loadSettings(explicit bool) error {
	s, err := loadSettings(c.settingsPath, explicit, c.Logger)
	if err != nil {
		return err
	}
	c.settings = s
	return nil
}

// =============================================================================
// Component Factories
// =============================================================================

// repoFlags are the flags shared by commands that talk to repositories.
type repoFlags struct {
	repos   []string
	offline bool
	update  bool
}

func (f *repoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.repos, "repo", nil, "extra remote repository as id=url (repeatable, searched first)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "never contact remote repositories")
	cmd.Flags().BoolVarP(&f.update, "update", "U", false, "force update checks of releases and snapshots")
}

// repositories returns the --repo repositories followed by the configured
// ones.
func (c *CLI) repositories(f *repoFlags) ([]artifact.RemoteRepository, error) {
	var extra []artifact.RemoteRepository
	for _, v := range f.repos {
		r, err := parseRepositoryFlag(v)
		if err != nil {
			return nil, err
		}
		extra = append(extra, r)
	}
	return artifact.MergeRepositories(extra, c.settings.RemoteRepositories()), nil
}

func (c *CLI) newRegistry() *repository.Registry {
	return repository.NewRegistry(c.settings.Factory())
}

func (c *CLI) newReader() *descriptor.Reader {
	return descriptor.NewReader(resolver.New(c.newRegistry()))
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	rc, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	reader := c.newReader()
	keyer := cache.NewScopedKeyer(nil, buildinfo.Version+":")
	return pipeline.NewRunner(reader, collect.New(reader), rc, keyer, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mvnresolve/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory (~/.config/mvnresolve/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

func defaultSettingsPath() string {
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "settings.toml")
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatTree}
	}
	return strings.Split(s, ",")
}

// outputPath returns where one format of several is written. A single
// format goes to base itself.
func outputPath(base, format string, multiple bool) string {
	if !multiple {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + format
}

// writeOutput writes data to path, or to the CLI output when path is
// empty.
func (c *CLI) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := c.Out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
