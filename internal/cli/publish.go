package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/deploy"
)

// publishOpts holds the flags shared by install and deploy.
type publishOpts struct {
	pom       string // descriptor to publish alongside the file
	packaging string // artifact type, e.g. maven-plugin
}

func (o *publishOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.pom, "pom", "", "POM to publish with the file (generated when omitted)")
	cmd.Flags().StringVar(&o.packaging, "packaging", "", "artifact type, e.g. jar, war, maven-plugin")
}

// artifacts returns the main artifact bound to file and its POM. The
// returned cleanup removes a generated POM.
func (o *publishOpts) artifacts(file, coords string) ([]artifact.Artifact, func(), error) {
	a, err := artifact.Parse(coords)
	if err != nil {
		return nil, nil, err
	}
	if o.packaging != "" {
		a = artifact.FromType(a.GroupID, a.ArtifactID, o.packaging, a.Classifier, a.Version)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, nil, err
	}
	a = a.WithFile(abs)

	cleanup := func() {}
	pomFile := o.pom
	if pomFile == "" {
		if pomFile, err = generatePom(a, o.packaging); err != nil {
			return nil, nil, err
		}
		cleanup = func() { os.Remove(pomFile) }
	}
	pom := a.Pom().WithFile(pomFile)
	if a.Extension == "pom" && a.Classifier == "" {
		return []artifact.Artifact{a}, cleanup, nil
	}
	return []artifact.Artifact{a, pom}, cleanup, nil
}

// generatePom writes a minimal descriptor for a to a temporary file.
func generatePom(a artifact.Artifact, packaging string) (string, error) {
	if packaging == "" {
		packaging = a.Extension
	}
	f, err := os.CreateTemp("", "mvnresolve-*.pom")
	if err != nil {
		return "", fmt.Errorf("create pom: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
  <packaging>%s</packaging>
</project>
`, a.GroupID, a.ArtifactID, a.Version, packaging)
	if err != nil {
		return "", fmt.Errorf("write pom: %w", err)
	}
	return f.Name(), nil
}

// =============================================================================
// install
// =============================================================================

func (c *CLI) installCommand() *cobra.Command {
	var opts publishOpts

	cmd := &cobra.Command{
		Use:   "install <file> <groupId:artifactId[:ext[:classifier]]:version>",
		Short: "Install a file into the local repository",
		Long: `Copy a file and its POM into the local repository and update the
local metadata.

Example:
  mvnresolve install target/app-1.0.jar org.example:app:1.0 --pom pom.xml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd.Context(), args[0], args[1], &opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func (c *CLI) runInstall(ctx context.Context, file, coords string, opts *publishOpts) error {
	as, cleanup, err := opts.artifacts(file, coords)
	if err != nil {
		return err
	}
	defer cleanup()
	s, err := c.settings.Session(sessionFlags{}, c.Logger)
	if err != nil {
		return err
	}

	res, err := deploy.NewInstaller().Install(ctx, s, deploy.InstallRequest{Artifacts: as})
	if err != nil {
		return err
	}
	for _, a := range res.Artifacts {
		printSuccess(c.Out, "Installed %s", a)
		printFile(c.Out, a.File)
	}
	return nil
}

// =============================================================================
// deploy
// =============================================================================

type deployOpts struct {
	publishOpts
	repository  string
	buildNumber int
}

func (c *CLI) deployCommand() *cobra.Command {
	var opts deployOpts

	cmd := &cobra.Command{
		Use:   "deploy <file> <groupId:artifactId[:ext[:classifier]]:version>",
		Short: "Deploy a file to a remote repository",
		Long: `Upload a file and its POM to a remote repository and merge the
repository metadata. Snapshots are deployed with a timestamped version.

Credentials are taken from the settings repository with the same id.

Example:
  mvnresolve deploy target/app-1.0-SNAPSHOT.jar org.example:app:1.0-SNAPSHOT \
    --repo snapshots=https://repo.example.com/snapshots`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDeploy(cmd.Context(), args[0], args[1], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.repository, "repo", "", "target repository as id=url")
	cmd.Flags().IntVar(&opts.buildNumber, "build-number", 0, "force the snapshot build number")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func (c *CLI) runDeploy(ctx context.Context, file, coords string, opts *deployOpts) error {
	repo, err := parseRepositoryFlag(opts.repository)
	if err != nil {
		return err
	}
	for _, r := range c.settings.RemoteRepositories() {
		if r.ID == repo.ID {
			repo.Auth = r.Auth
		}
	}
	as, cleanup, err := opts.artifacts(file, coords)
	if err != nil {
		return err
	}
	defer cleanup()
	s, err := c.settings.Session(sessionFlags{}, c.Logger)
	if err != nil {
		return err
	}

	var dopts []deploy.Option
	if opts.buildNumber > 0 {
		dopts = append(dopts, deploy.WithSnapshotBuildNumber(opts.buildNumber))
	}
	prog := newProgress(c.Logger)
	res, err := deploy.NewDeployer(c.newRegistry(), dopts...).Deploy(ctx, s, deploy.DeployRequest{
		Repository: repo,
		Artifacts:  as,
	})
	if err != nil {
		return err
	}
	for _, a := range res.Artifacts {
		printSuccess(c.Out, "Deployed %s", a)
	}
	for _, md := range res.Metadata {
		printDetail(c.Out, "%s", md.Ref())
	}
	prog.done("Deployed", "repository", repo.ID, "artifacts", len(res.Artifacts))
	return nil
}
