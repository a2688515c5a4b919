package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
)

const testGroup = "org.example"

// testEnv is a settings file pointing at a file:// remote repository and
// an empty local repository.
type testEnv struct {
	t        *testing.T
	dir      string
	remote   string
	local    string
	settings string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		t:        t,
		dir:      dir,
		remote:   filepath.Join(dir, "remote"),
		local:    filepath.Join(dir, "local"),
		settings: filepath.Join(dir, "settings.toml"),
	}
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	content := fmt.Sprintf(`local_repository = %q

[[repository]]
id = "test"
url = "file://%s"
`, env.local, filepath.ToSlash(env.remote))
	require.NoError(t, os.WriteFile(env.settings, []byte(content), 0o644))
	return env
}

func (e *testEnv) write(path string, data string) {
	e.t.Helper()
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(data), 0o644))
}

func pomDependencies(deps []string) string {
	var b strings.Builder
	b.WriteString("<dependencies>")
	for _, d := range deps {
		id, ver, _ := strings.Cut(d, ":")
		fmt.Fprintf(&b, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></dependency>",
			testGroup, id, ver)
	}
	b.WriteString("</dependencies>")
	return b.String()
}

// publish writes the POM of artifactId:version into the remote repository.
func (e *testEnv) publish(coords string, deps ...string) {
	id, ver, _ := strings.Cut(coords, ":")
	pom := fmt.Sprintf(`<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>%s</project>`,
		testGroup, id, ver, pomDependencies(deps))
	e.write(filepath.Join(e.remote, artifact.ArtifactPath(artifact.New(testGroup, id, "pom", "", ver))), pom)
}

func (e *testEnv) project(deps ...string) string {
	path := filepath.Join(e.dir, "pom.xml")
	e.write(path, fmt.Sprintf(`<project><groupId>%s</groupId><artifactId>app</artifactId><version>1.0</version>%s</project>`,
		testGroup, pomDependencies(deps)))
	return path
}

// run executes the command line and returns its output.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out, logs bytes.Buffer
	c := New(&logs, LogInfo)
	c.Out = &out
	root := c.RootCommand()
	root.SetArgs(append(args, "--settings", e.settings))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveProject(t *testing.T) {
	env := newTestEnv(t)
	env.publish("a:1.0", "x:1.0")
	env.publish("x:1.0")

	out, err := env.run("resolve", env.project("a:1.0"), "--format", "list")
	require.NoError(t, err)
	require.Equal(t, "org.example:a:jar:1.0 [compile]\norg.example:x:jar:1.0 [compile]\n", out)

	out, err = env.run("resolve", "org.example:a:1.0")
	require.NoError(t, err)
	require.Equal(t, "org.example:a:jar:1.0\n  org.example:x:jar:1.0 [compile]\n", out)
}

func TestResolveOfflineUsesLocalRepository(t *testing.T) {
	env := newTestEnv(t)
	env.publish("a:1.0")
	pom := env.project("a:1.0")

	_, err := env.run("resolve", pom)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(env.remote))

	out, err := env.run("resolve", pom, "--offline", "--format", "list")
	require.NoError(t, err)
	require.Equal(t, "org.example:a:jar:1.0 [compile]\n", out)
}

func TestResolvePartial(t *testing.T) {
	env := newTestEnv(t)
	env.publish("a:1.0")

	out, err := env.run("resolve", env.project("a:1.0", "missing:1.0"), "--format", "list")
	require.Error(t, err)
	require.Equal(t, "org.example:a:jar:1.0 [compile]\n", out)
}

func TestResolveMultipleFormatsNeedOutput(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("resolve", env.project(), "--format", "list,json")
	require.ErrorContains(t, err, "--output")
}

func TestResolveAndRender(t *testing.T) {
	env := newTestEnv(t)
	env.publish("a:1.0")

	base := filepath.Join(env.dir, "deps")
	out, err := env.run("resolve", env.project("a:1.0"), "--format", "json,list", "--output", base)
	require.NoError(t, err)
	require.Contains(t, out, base+".json")
	require.FileExists(t, base+".list")

	dot := filepath.Join(env.dir, "deps.dot")
	_, err = env.run("render", base+".json", "--format", "dot", "--output", dot)
	require.NoError(t, err)
	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "digraph G {"), string(data))
	require.Contains(t, string(data), "org.example:a:jar:1.0")

	_, err = env.run("render", base+".json", "--format", "png")
	require.Error(t, err)
}

func TestInstall(t *testing.T) {
	env := newTestEnv(t)
	jar := filepath.Join(env.dir, "lib.jar")
	env.write(jar, "jar content")

	out, err := env.run("install", jar, "org.example:lib:1.0")
	require.NoError(t, err)
	require.Contains(t, out, "Installed org.example:lib:jar:1.0")

	installed := filepath.Join(env.local, "org", "example", "lib", "1.0")
	data, err := os.ReadFile(filepath.Join(installed, "lib-1.0.jar"))
	require.NoError(t, err)
	require.Equal(t, "jar content", string(data))
	require.FileExists(t, filepath.Join(installed, "lib-1.0.pom"))
	require.FileExists(t, filepath.Join(env.local, "org", "example", "lib", "maven-metadata-local.xml"))

	out, err = env.run("descriptor", "org.example:lib:1.0", "--offline")
	require.NoError(t, err)
	require.Contains(t, out, "org.example:lib:jar:1.0")
	require.Contains(t, out, "No dependencies")
}

func TestDeploySnapshot(t *testing.T) {
	env := newTestEnv(t)
	jar := filepath.Join(env.dir, "lib.jar")
	env.write(jar, "jar content")
	target := filepath.Join(env.dir, "deployed")

	out, err := env.run("deploy", jar, "org.example:lib:1.0-SNAPSHOT",
		"--repo", "snapshots=file://"+filepath.ToSlash(target), "--build-number", "3")
	require.NoError(t, err)
	require.Contains(t, out, "Deployed org.example:lib:jar:1.0-")

	dir := filepath.Join(target, "org", "example", "lib", "1.0-SNAPSHOT")
	require.FileExists(t, filepath.Join(dir, "maven-metadata.xml"))
	jars, err := filepath.Glob(filepath.Join(dir, "lib-1.0-*-3.jar"))
	require.NoError(t, err)
	require.Len(t, jars, 1)
	require.FileExists(t, filepath.Join(target, "org", "example", "lib", "maven-metadata.xml"))
}

func TestDeployRequiresRepository(t *testing.T) {
	env := newTestEnv(t)
	jar := filepath.Join(env.dir, "lib.jar")
	env.write(jar, "jar content")

	_, err := env.run("deploy", jar, "org.example:lib:1.0")
	require.Error(t, err)
}

func TestVersions(t *testing.T) {
	env := newTestEnv(t)
	env.write(filepath.Join(env.remote, "org", "example", "lib", "maven-metadata.xml"), `<metadata>
  <groupId>org.example</groupId>
  <artifactId>lib</artifactId>
  <versioning>
    <versions>
      <version>1.0</version>
      <version>2.0</version>
      <version>3.0-beta</version>
    </versions>
  </versioning>
</metadata>`)

	out, err := env.run("versions", "org.example:lib", "--range", "[1.5,3.0)")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	require.True(t, strings.HasPrefix(lines[0], "2.0\ttest"), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "3.0-beta\ttest"), lines[1])

	_, err = env.run("versions", "org.example:lib", "--range", "1.0")
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		a, b, want string
	}{
		{"1.0-alpha-1", "1.0", "1.0-alpha-1 < 1.0"},
		{"1.0.0", "1", "1.0.0 == 1"},
		{"1.0-SNAPSHOT", "1.0-rc1", "1.0-SNAPSHOT > 1.0-rc1"},
	}
	for _, tt := range tests {
		out, err := env.run("compare", tt.a, tt.b)
		require.NoError(t, err)
		first, _, _ := strings.Cut(out, "\n")
		require.Equal(t, tt.want, first)
	}
}
