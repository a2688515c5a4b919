package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/descriptor"
	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

type fixture struct {
	remote   *repository.MemoryTransport
	repos    []artifact.RemoteRepository
	events   *observability.Recorder
	sess     *session.Session
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote: repository.NewMemoryTransport(),
		repos:  []artifact.RemoteRepository{artifact.NewRemoteRepository("central", "https://repo.example.com/maven2")},
		events: &observability.Recorder{},
	}
	s, err := session.New(session.Config{
		LocalRepository: t.TempDir(),
		Listener:        f.events,
		Clock:           func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.sess = s
	r := resolver.New(repository.NewRegistry(func(artifact.RemoteRepository) (repository.Transport, error) {
		return f.remote, nil
	}))
	f.resolver = New(descriptor.NewReader(r))
	return f
}

// depsXML renders "groupId:artifactId:version[:scope]" declarations.
func depsXML(coords []string) string {
	var b strings.Builder
	b.WriteString("<dependencies>")
	for _, c := range coords {
		p := strings.Split(c, ":")
		fmt.Fprintf(&b, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>", p[0], p[1], p[2])
		if len(p) > 3 {
			fmt.Fprintf(&b, "<scope>%s</scope>", p[3])
		}
		b.WriteString("</dependency>")
	}
	b.WriteString("</dependencies>")
	return b.String()
}

// publish adds the POM and jar of coords. extra is appended to the POM.
func (f *fixture) publish(coords string, deps, managed []string, extra string) {
	p := strings.Split(coords, ":")
	body := depsXML(deps)
	if len(managed) > 0 {
		body += "<dependencyManagement>" + depsXML(managed) + "</dependencyManagement>"
	}
	pom := fmt.Sprintf(`<project><modelVersion>4.0.0</modelVersion>
<groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>%s%s</project>`, p[0], p[1], p[2], body, extra)
	f.remote.Add(artifact.ArtifactPath(artifact.New(p[0], p[1], "pom", "", p[2])), []byte(pom))
	f.addJar(coords)
}

func (f *fixture) addJar(coords string) {
	p := strings.Split(coords, ":")
	f.remote.Add(artifact.ArtifactPath(artifact.New(p[0], p[1], "jar", "", p[2])), []byte(coords))
}

func strs(as []artifact.Artifact) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

func TestResolvePluginArtifact(t *testing.T) {
	f := newFixture(t)
	f.publish("org.example:demo-maven-plugin:1.0", nil, nil, "<prerequisites><maven>3.6.0</maven></prerequisites>")

	p, err := Parse("org.example:demo-maven-plugin:1.0")
	require.NoError(t, err)
	res, err := f.resolver.ResolvePluginArtifact(context.Background(), f.sess, p, f.repos)
	require.NoError(t, err)

	require.Equal(t, "3.6.0", res.Prerequisites)
	require.Equal(t, Packaging, res.Artifact.Property(artifact.PropType, ""))
	data, err := os.ReadFile(res.Artifact.File)
	require.NoError(t, err)
	require.Equal(t, "org.example:demo-maven-plugin:1.0", string(data))
}

func TestResolvePluginMissingPOM(t *testing.T) {
	f := newFixture(t)
	f.addJar("org.example:bare-plugin:1.0")

	res, err := f.resolver.ResolvePluginArtifact(context.Background(), f.sess,
		Plugin{GroupID: "org.example", ArtifactID: "bare-plugin", Version: "1.0"}, f.repos)
	require.NoError(t, err)
	require.Nil(t, res.Descriptor.Model)
	require.NotEmpty(t, res.Artifact.File)
	require.Len(t, f.events.OfType(observability.EventDescriptorMissing), 1)

	deps, err := f.resolver.CollectPluginDependencies(context.Background(), f.sess, CollectRequest{
		Plugin:       Plugin{GroupID: "org.example", ArtifactID: "bare-plugin", Version: "1.0"},
		Resolved:     res,
		Repositories: f.repos,
	})
	require.NoError(t, err)
	require.Empty(t, deps.Artifacts)
}

func TestResolvePluginFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.Add(artifact.ArtifactPath(artifact.New("org.example", "broken-plugin", "pom", "", "1.0")), []byte("<project"))

	p := Plugin{GroupID: "org.example", ArtifactID: "broken-plugin", Version: "1.0"}
	_, err := f.resolver.ResolvePluginArtifact(context.Background(), f.sess, p, f.repos)
	require.Error(t, err)

	var pe *mverrors.PluginResolutionError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, p.String(), pe.Plugin)
	require.True(t, mverrors.Is(err, mverrors.ErrCodeDescriptorInvalid))

	_, err = f.resolver.ResolvePluginArtifact(context.Background(), f.sess,
		Plugin{GroupID: "org.example", ArtifactID: "absent-plugin", Version: "1.0"}, f.repos)
	require.True(t, mverrors.Is(err, mverrors.ErrCodePluginResolution))
}

// The plugin's own management overrides transitive versions but leaves the
// plugin's direct dependencies alone. Core exports outrank the plugin POM.
func TestCollectPluginDependenciesManagement(t *testing.T) {
	f := newFixture(t)
	f.publish("org.example:p-plugin:1.0",
		[]string{"org.example:a:1.0", "org.example:d:1.0", "org.example:t:1.0:test", "org.example:v:1.0:provided"},
		[]string{"org.example:d:3.0", "org.example:e:3.0"}, "")
	f.publish("org.example:a:1.0", []string{"org.example:e:2.0", "org.example:f:2.0"}, nil, "")
	f.publish("org.example:d:1.0", nil, nil, "")
	f.publish("org.example:e:3.0", nil, nil, "")
	f.publish("org.example:f:2.0", nil, nil, "")
	f.publish("org.example:f:2.5", nil, nil, "")
	f.publish("org.example:t:1.0", nil, nil, "")
	f.publish("org.example:v:1.0", nil, nil, "")
	f.publish("org.example:x:1.0", nil, nil, "")

	ctx := context.Background()
	p := Plugin{
		GroupID: "org.example", ArtifactID: "p-plugin", Version: "1.0",
		Dependencies: []artifact.Dependency{{Artifact: artifact.New("org.example", "x", "", "", "1.0"), Scope: artifact.ScopeCompile}},
	}
	deps, err := f.resolver.CollectPluginDependencies(ctx, f.sess, CollectRequest{Plugin: p, Repositories: f.repos})
	require.NoError(t, err)
	require.Equal(t, []string{
		"org.example:x:jar:1.0",
		"org.example:a:jar:1.0",
		"org.example:e:jar:3.0",
		"org.example:f:jar:2.0",
		"org.example:d:jar:1.0",
	}, strs(deps.Artifacts))
	for _, a := range deps.Artifacts {
		require.FileExists(t, a.File)
	}

	x, ok := deps.Root.Find("org.example:x:jar:")
	require.True(t, ok)
	require.Equal(t, artifact.ScopeRuntime, x.Scope())
	e, ok := deps.Root.Find("org.example:e:jar:")
	require.True(t, ok)
	require.Equal(t, "2.0", e.Premanaged.Version)

	deps, err = f.resolver.CollectPluginDependencies(ctx, f.sess, CollectRequest{
		Plugin:              p,
		Repositories:        f.repos,
		ManagedDependencies: []artifact.Dependency{{Artifact: artifact.New("org.example", "f", "", "", "2.5")}},
		Filter:              collect.ExclusionsFilter("x"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"org.example:a:jar:1.0",
		"org.example:e:jar:3.0",
		"org.example:f:jar:2.5",
		"org.example:d:jar:1.0",
	}, strs(deps.Artifacts))
}

func TestCollectPluginDependenciesExcludesLegacyWagons(t *testing.T) {
	f := newFixture(t)
	f.publish("org.example:w-plugin:1.0",
		[]string{"org.apache.maven:maven-artifact:2.0.6", "org.apache.maven.wagon:wagon-http:2.0"}, nil, "")
	f.publish("org.apache.maven:maven-artifact:2.0.6",
		[]string{"org.apache.maven.wagon:wagon-provider-api:1.0", "org.example:util:1.0"}, nil, "")
	f.publish("org.apache.maven.wagon:wagon-http:2.0", nil, nil, "")
	f.publish("org.apache.maven.wagon:wagon-provider-api:1.0", nil, nil, "")
	f.publish("org.example:util:1.0", nil, nil, "")

	deps, err := f.resolver.CollectPluginDependencies(context.Background(), f.sess, CollectRequest{
		Plugin:       Plugin{GroupID: "org.example", ArtifactID: "w-plugin", Version: "1.0"},
		Repositories: f.repos,
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"org.apache.maven:maven-artifact:jar:2.0.6",
		"org.example:util:jar:1.0",
		"org.apache.maven.wagon:wagon-http:jar:2.0",
	}, strs(deps.Artifacts))

	legacy := f.events.OfType(observability.EventLegacyArtifact)
	require.Len(t, legacy, 1)
	require.Equal(t, "org.apache.maven:maven-artifact:jar:2.0.6", legacy[0].Artifact)
}

func TestWagonExcluder(t *testing.T) {
	ctx := context.Background()
	wagon := artifact.Dependency{Artifact: artifact.New("org.apache.maven.wagon", "wagon-file", "", "", "1.0")}
	core := artifact.Dependency{Artifact: artifact.New("org.apache.maven", "maven-core", "", "", "2.2.1")}
	modern := artifact.Dependency{Artifact: artifact.New("org.apache.maven", "maven-core", "", "", "3.9.0")}

	w := &WagonExcluder{}
	require.True(t, w.Select(wagon))
	require.Same(t, collect.Selector(w), w.DeriveChild(ctx, collect.Context{Depth: 1, Dependency: modern}))

	below := w.DeriveChild(ctx, collect.Context{Depth: 1, Dependency: core})
	require.False(t, below.Select(wagon))
	require.True(t, below.Select(modern))
	require.Same(t, below, below.DeriveChild(ctx, collect.Context{Depth: 2, Dependency: modern}))

	require.True(t, IsLegacyCoreArtifact(core.Artifact))
	require.False(t, IsLegacyCoreArtifact(artifact.New("org.apache.maven.plugins", "maven-compiler-plugin", "", "", "2.5")))
}
