package descriptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/resolver"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

type fixture struct {
	remote *repository.MemoryTransport
	repos  []artifact.RemoteRepository
	events *observability.Recorder
	reader *Reader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote: repository.NewMemoryTransport(),
		repos:  []artifact.RemoteRepository{artifact.NewRemoteRepository("central", "https://repo.example.com/maven2")},
		events: &observability.Recorder{},
	}
	r := resolver.New(repository.NewRegistry(func(artifact.RemoteRepository) (repository.Transport, error) {
		return f.remote, nil
	}))
	f.reader = NewReader(r)
	return f
}

func (f *fixture) session(t *testing.T, policy session.DescriptorPolicy) *session.Session {
	t.Helper()
	s, err := session.New(session.Config{
		LocalRepository:  t.TempDir(),
		Listener:         f.events,
		DescriptorPolicy: policy,
		Properties:       map[string]string{"java.version": "17"},
		Clock:            func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// addPOM publishes a POM for g:a:v with the given body inside <project>.
func (f *fixture) addPOM(g, a, v, body string) {
	pom := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
%s
</project>`, g, a, v, body)
	f.remote.Add(artifact.ArtifactPath(artifact.New(g, a, "pom", "", v)), []byte(pom))
}

func (f *fixture) read(t *testing.T, s *session.Session, coords string) (*Result, error) {
	t.Helper()
	a, err := artifact.Parse(coords)
	if err != nil {
		t.Fatal(err)
	}
	return f.reader.Read(context.Background(), s, Request{Artifact: a, Repositories: f.repos})
}

func depStrings(deps []artifact.Dependency) []string {
	var out []string
	for _, d := range deps {
		out = append(out, d.String())
	}
	return out
}

// =============================================================================
// POM parsing
// =============================================================================

func TestParsePOM(t *testing.T) {
	p, err := ParsePOM([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <parent>
    <groupId> org.example </groupId>
    <artifactId>parent</artifactId>
    <version>1</version>
  </parent>
  <artifactId>app</artifactId>
  <properties>
    <lib.version>2.0</lib.version>
    <empty/>
  </properties>
  <dependencies>
    <dependency>
      <groupId>org.example</groupId>
      <artifactId>lib</artifactId>
      <version>${lib.version}</version>
      <type>test-jar</type>
      <optional>true</optional>
      <exclusions>
        <exclusion><groupId>*</groupId><artifactId>*</artifactId></exclusion>
      </exclusions>
    </dependency>
  </dependencies>
  <distributionManagement>
    <relocation><artifactId>app2</artifactId><message>renamed</message></relocation>
  </distributionManagement>
</project>`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Coordinate() != "org.example:app:1" {
		t.Errorf("Coordinate() = %q", p.Coordinate())
	}
	if diff := cmp.Diff(Properties{"lib.version": "2.0", "empty": ""}, p.Properties); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
	d := p.Dependencies[0].ToDependency()
	if d.Artifact.Classifier != "tests" || d.Artifact.Extension != "jar" || !d.Optional {
		t.Errorf("dependency = %+v", d)
	}
	if len(d.Exclusions) != 1 || !d.Excludes(artifact.New("any", "thing", "zip", "x", "1")) {
		t.Errorf("wildcard exclusion = %+v", d.Exclusions)
	}
	if rel := p.Relocation(); rel == nil || rel.ArtifactID != "app2" || rel.Message != "renamed" {
		t.Errorf("Relocation() = %+v", rel)
	}
}

func TestParsePOMRejectsOtherDocuments(t *testing.T) {
	for _, doc := range []string{"", "not xml", "<metadata><groupId>g</groupId></metadata>", "<project><dependencies>"} {
		if _, err := ParsePOM([]byte(doc)); !mverrors.Is(err, mverrors.ErrCodeInvalidFormat) {
			t.Errorf("ParsePOM(%q) error = %v, want invalid format", doc, err)
		}
	}
}

// =============================================================================
// Model building
// =============================================================================

func TestReadInheritsFromParent(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "parent", "1", `
  <packaging>pom</packaging>
  <properties><slf4j.version>2.0.9</slf4j.version><jdk>${java.version}</jdk></properties>
  <dependencyManagement><dependencies>
    <dependency><groupId>org.slf4j</groupId><artifactId>slf4j-api</artifactId><version>${slf4j.version}</version></dependency>
    <dependency><groupId>junit</groupId><artifactId>junit</artifactId><version>4.13</version><scope>test</scope></dependency>
  </dependencies></dependencyManagement>
  <dependencies>
    <dependency><groupId>junit</groupId><artifactId>junit</artifactId></dependency>
  </dependencies>
  <repositories>
    <repository><id>extra</id><url>https://extra.example.com/maven</url><snapshots><enabled>false</enabled></snapshots></repository>
  </repositories>`)
	f.remote.Add("org/example/app/1.5/app-1.5.pom", []byte(`<project>
  <parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>1</version></parent>
  <artifactId>app</artifactId>
  <version>1.5</version>
  <dependencies>
    <dependency><groupId>org.slf4j</groupId><artifactId>slf4j-api</artifactId></dependency>
    <dependency><groupId>${project.groupId}</groupId><artifactId>core</artifactId><version>${project.version}</version></dependency>
  </dependencies>
</project>`))

	res, err := f.read(t, f.session(t, 0), "org.example:app:1.5")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"org.slf4j:slf4j-api:jar:2.0.9",
		"org.example:core:jar:1.5",
		"junit:junit:jar:4.13 (test)",
	}
	if diff := cmp.Diff(want, depStrings(res.Dependencies)); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if len(res.ManagedDependencies) != 2 {
		t.Errorf("managed dependencies = %v", depStrings(res.ManagedDependencies))
	}
	if res.Properties["jdk"] != "17" {
		t.Errorf("jdk property = %q, want session value", res.Properties["jdk"])
	}
	if len(res.Repositories) != 1 || res.Repositories[0].ID != "extra" || res.Repositories[0].Snapshots.Enabled {
		t.Errorf("repositories = %+v", res.Repositories)
	}
	if res.Repository == nil || res.Repository.ID != "central" {
		t.Errorf("Repository = %v", res.Repository)
	}
}

func TestReadImportsManagement(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "bom", "3.0", `
  <packaging>pom</packaging>
  <dependencyManagement><dependencies>
    <dependency><groupId>org.example</groupId><artifactId>lib</artifactId><version>3.0</version></dependency>
    <dependency><groupId>org.example</groupId><artifactId>util</artifactId><version>3.0</version></dependency>
  </dependencies></dependencyManagement>`)
	f.addPOM("org.example", "app", "1", `
  <dependencyManagement><dependencies>
    <dependency><groupId>org.example</groupId><artifactId>util</artifactId><version>2.5</version></dependency>
    <dependency><groupId>org.example</groupId><artifactId>bom</artifactId><version>3.0</version><type>pom</type><scope>import</scope></dependency>
  </dependencies></dependencyManagement>
  <dependencies>
    <dependency><groupId>org.example</groupId><artifactId>lib</artifactId></dependency>
    <dependency><groupId>org.example</groupId><artifactId>util</artifactId></dependency>
  </dependencies>`)

	res, err := f.read(t, f.session(t, 0), "org.example:app:1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"org.example:lib:jar:3.0", "org.example:util:jar:2.5"}
	if diff := cmp.Diff(want, depStrings(res.Dependencies)); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	for _, d := range res.ManagedDependencies {
		if d.Scope == artifact.ScopeImport {
			t.Errorf("import entry %s left in management", d)
		}
	}
}

func TestReadParentCycle(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "a", "1", `<parent><groupId>org.example</groupId><artifactId>b</artifactId><version>1</version></parent>`)
	f.addPOM("org.example", "b", "1", `<parent><groupId>org.example</groupId><artifactId>a</artifactId><version>1</version></parent>`)

	_, err := f.read(t, f.session(t, 0), "org.example:a:1")
	var invalid *mverrors.DescriptorInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *DescriptorInvalidError", err)
	}
	if invalid.Path != nil {
		t.Errorf("Path = %v, want no dependency path for a direct read", invalid.Path)
	}
	if msg := invalid.Cause.Error(); !strings.Contains(msg, "a-1.pom") || !strings.Contains(msg, "parents form a cycle") {
		t.Errorf("cause %q should name the POM file and the cycle", msg)
	}
}

func TestReadParentRangeNeedsUpperBound(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "app", "1", `<parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>[1,)</version></parent>`)

	_, err := f.read(t, f.session(t, 0), "org.example:app:1")
	var um *mverrors.UnresolvableModelError
	if !errors.As(err, &um) || um.ArtifactID != "parent" {
		t.Fatalf("error = %v, want *UnresolvableModelError for the parent", err)
	}
	var ub *mverrors.UnboundedRangeError
	if !errors.As(err, &ub) {
		t.Errorf("error = %v, want an unbounded range cause", err)
	}
}

func TestReadMissingParent(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "app", "1", `<parent><groupId>org.example</groupId><artifactId>gone</artifactId><version>1</version></parent>`)

	// Model resolution failures are never tolerated.
	_, err := f.read(t, f.session(t, session.IgnoreMissing|session.IgnoreInvalid), "org.example:app:1")
	if !mverrors.Is(err, mverrors.ErrCodeUnresolvableModel) {
		t.Fatalf("error = %v, want unresolvable model", err)
	}
}

// =============================================================================
// Relocation and policies
// =============================================================================

func TestReadFollowsRelocation(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.old", "lib", "1.0", `
  <distributionManagement><relocation><groupId>org.new</groupId><message>moved</message></relocation></distributionManagement>`)
	f.addPOM("org.new", "lib", "1.0", `
  <dependencies><dependency><groupId>org.new</groupId><artifactId>core</artifactId><version>1.0</version></dependency></dependencies>`)

	res, err := f.read(t, f.session(t, 0), "org.old:lib:1.0")
	if err != nil {
		t.Fatal(err)
	}
	if res.Artifact.GroupID != "org.new" {
		t.Errorf("Artifact = %s, want the relocation target", res.Artifact)
	}
	if len(res.Relocations) != 1 || res.Relocations[0].GroupID != "org.old" {
		t.Errorf("Relocations = %v", res.Relocations)
	}
	events := f.events.OfType(observability.EventArtifactRelocated)
	if len(events) != 1 || events[0].Message != "moved" || events[0].Target != "org.new:lib:jar:1.0" {
		t.Errorf("relocation events = %+v", events)
	}
	if len(res.Dependencies) != 1 {
		t.Errorf("dependencies = %v", depStrings(res.Dependencies))
	}
}

func TestReadRelocationCycle(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "a", "1", `<distributionManagement><relocation><artifactId>b</artifactId></relocation></distributionManagement>`)
	f.addPOM("org.example", "b", "1", `<distributionManagement><relocation><artifactId>a</artifactId></relocation></distributionManagement>`)

	_, err := f.read(t, f.session(t, 0), "org.example:a:1")
	var cycle *mverrors.RelocationCycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("error = %v, want *RelocationCycleError", err)
	}
	if diff := cmp.Diff([]string{"org.example:a:1", "org.example:b:1"}, cycle.Chain); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
	if got := f.remote.Gets(); got > 3 {
		t.Errorf("cycle detection made %d requests, want at most 3", got)
	}

	res, err := f.read(t, f.session(t, session.IgnoreInvalid), "org.example:a:1")
	if err != nil || res.Model != nil {
		t.Errorf("tolerated cycle = %+v, %v; want empty descriptor", res, err)
	}
}

func TestReadMissingDescriptor(t *testing.T) {
	f := newFixture(t)

	_, err := f.read(t, f.session(t, 0), "org.example:missing:1")
	var missing *mverrors.DescriptorMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *DescriptorMissingError", err)
	}

	res, err := f.read(t, f.session(t, session.IgnoreMissing), "org.example:missing:1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != nil || len(res.Dependencies) != 0 {
		t.Errorf("tolerated missing descriptor = %+v", res)
	}
	if got := f.events.OfType(observability.EventDescriptorMissing); len(got) != 2 {
		t.Errorf("missing events = %d, want one per read", len(got))
	}
}

func TestReadInvalidDescriptor(t *testing.T) {
	f := newFixture(t)
	f.remote.Add("org/example/broken/1/broken-1.pom", []byte("<project><dependencies>"))

	_, err := f.read(t, f.session(t, session.IgnoreMissing), "org.example:broken:1")
	var invalid *mverrors.DescriptorInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *DescriptorInvalidError", err)
	}

	res, err := f.read(t, f.session(t, session.IgnoreInvalid), "org.example:broken:1")
	if err != nil || res.Model != nil {
		t.Errorf("tolerated invalid descriptor = %+v, %v", res, err)
	}
	if got := f.events.OfType(observability.EventDescriptorInvalid); len(got) != 2 {
		t.Errorf("invalid events = %d, want 2", len(got))
	}
}

func TestReadResolvesReleaseVersion(t *testing.T) {
	f := newFixture(t)
	f.remote.Add("org/example/lib/maven-metadata.xml", []byte(`<metadata>
  <groupId>org.example</groupId><artifactId>lib</artifactId>
  <versioning><release>2.1</release><versions><version>2.1</version></versions><lastUpdated>20240101000000</lastUpdated></versioning>
</metadata>`))
	f.addPOM("org.example", "lib", "2.1", "")

	res, err := f.read(t, f.session(t, 0), "org.example:lib:RELEASE")
	if err != nil {
		t.Fatal(err)
	}
	if res.Artifact.Version != "2.1" || res.Model == nil {
		t.Errorf("Read = %s, model %v", res.Artifact, res.Model != nil)
	}
}

func TestReadProject(t *testing.T) {
	f := newFixture(t)
	f.addPOM("org.example", "parent", "1", `
  <packaging>pom</packaging>
  <dependencyManagement><dependencies>
    <dependency><groupId>org.example</groupId><artifactId>lib</artifactId><version>2.0</version></dependency>
  </dependencies></dependencyManagement>`)

	path := filepath.Join(t.TempDir(), "pom.xml")
	if err := os.WriteFile(path, []byte(`<project>
  <parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>1</version></parent>
  <artifactId>app</artifactId>
  <packaging>war</packaging>
  <dependencies>
    <dependency><groupId>org.example</groupId><artifactId>lib</artifactId></dependency>
  </dependencies>
</project>`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := f.session(t, session.IgnoreMissing|session.IgnoreInvalid)
	res, err := f.reader.ReadProject(context.Background(), s, path, f.repos)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Artifact.String(); got != "org.example:app:war:1" {
		t.Errorf("Artifact = %s", got)
	}
	if diff := cmp.Diff([]string{"org.example:lib:jar:2.0"}, depStrings(res.Dependencies)); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	broken := filepath.Join(t.TempDir(), "pom.xml")
	if err := os.WriteFile(broken, []byte("<project><dependencies>"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = f.reader.ReadProject(context.Background(), s, broken, f.repos)
	var invalid *mverrors.DescriptorInvalidError
	if !errors.As(err, &invalid) {
		t.Errorf("error = %v, want *DescriptorInvalidError even when tolerated by policy", err)
	}
}
