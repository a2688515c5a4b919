package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	mverrors "github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/observability"
	"github.com/matzehuels/mvnresolve/pkg/repository"
	"github.com/matzehuels/mvnresolve/pkg/session"
)

var noon = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	sess     *session.Session
	events   *observability.Recorder
	remote   *repository.MemoryTransport
	repo     artifact.RemoteRepository
	deployer *Deployer
	now      time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		events: &observability.Recorder{},
		remote: repository.NewMemoryTransport(),
		repo:   artifact.NewRemoteRepository("releases", "https://repo.example.com/maven2"),
		now:    noon,
	}
	s, err := session.New(session.Config{
		LocalRepository: t.TempDir(),
		Listener:        f.events,
		Clock:           func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.sess = s
	f.deployer = NewDeployer(repository.NewRegistry(func(artifact.RemoteRepository) (repository.Transport, error) {
		return f.remote, nil
	}), opts...)
	return f
}

// file creates an artifact backed by a temporary file.
func file(t *testing.T, coords string) artifact.Artifact {
	t.Helper()
	a, err := artifact.Parse(coords)
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), filepath.Base(artifact.ArtifactPath(a)))
	if err := os.WriteFile(p, []byte(coords), 0o644); err != nil {
		t.Fatal(err)
	}
	return a.WithFile(p)
}

func (f *fixture) deploy(t *testing.T, prior []Metadata, as ...artifact.Artifact) *DeployResult {
	t.Helper()
	res, err := f.deployer.Deploy(context.Background(), f.sess, DeployRequest{Repository: f.repo, Artifacts: as, Metadata: prior})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	return res
}

func (f *fixture) remoteDoc(t *testing.T, ref artifact.MetadataRef) *metadata.Metadata {
	t.Helper()
	data, ok := f.remote.File(artifact.MetadataPath(ref))
	if !ok {
		t.Fatalf("no remote metadata at %s", artifact.MetadataPath(ref))
	}
	doc, err := metadata.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func versions(as []artifact.Artifact) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Version
	}
	return out
}

func TestDeploySnapshotBuildNumbers(t *testing.T) {
	f := newFixture(t)
	jar := file(t, "org.example:lib:1.0-SNAPSHOT")
	pom := file(t, "org.example:lib:pom:1.0-SNAPSHOT")

	for build, want := range []string{"1.0-20240102.120000-1", "1.0-20240102.120000-2", "1.0-20240102.120000-3"} {
		res := f.deploy(t, nil, jar, pom)
		if diff := cmp.Diff([]string{want, want}, versions(res.Artifacts)); diff != "" {
			t.Fatalf("deploy %d versions mismatch (-want +got):\n%s", build+1, diff)
		}
		if _, ok := f.remote.File("org/example/lib/1.0-SNAPSHOT/lib-" + want + ".jar"); !ok {
			t.Errorf("deploy %d: jar not uploaded as %s", build+1, want)
		}
	}

	doc := f.remoteDoc(t, artifact.SnapshotMetadata(jar))
	if got := doc.Versioning.Snapshot; got.BuildNumber != 3 || got.Timestamp != "20240102.120000" {
		t.Errorf("snapshot = %+v", got)
	}
	if v, _ := doc.SnapshotVersionFor("", "pom"); v != "1.0-20240102.120000-3" {
		t.Errorf("pom snapshot version = %q", v)
	}
	if doc.ModelVersion != metadata.ModelVersion {
		t.Errorf("modelVersion = %q", doc.ModelVersion)
	}

	ga := f.remoteDoc(t, artifact.VersionsMetadata("org.example", "lib", artifact.NatureReleaseOrSnapshot))
	if diff := cmp.Diff([]string{"1.0-SNAPSHOT"}, ga.Versions()); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if ga.Versioning.Latest != "1.0-SNAPSHOT" || ga.Versioning.Release != "" {
		t.Errorf("latest/release = %q/%q", ga.Versioning.Latest, ga.Versioning.Release)
	}

	if n := len(f.events.OfType(observability.EventArtifactDeployed)); n != 6 {
		t.Errorf("artifact deployed events = %d, want 6", n)
	}
	local := f.sess.LocalMetadataPath(artifact.SnapshotMetadata(jar), f.repo.ID)
	if cached, err := metadata.Load(local); err != nil || cached.Versioning.Snapshot.BuildNumber != 3 {
		t.Errorf("local copy of remote metadata not updated: %v", err)
	}
}

func TestDeployContinuesRemoteBuildNumber(t *testing.T) {
	f := newFixture(t)
	jar := file(t, "org.example:lib:1.0-SNAPSHOT")
	existing := &metadata.Metadata{
		GroupID: "org.example", ArtifactID: "lib", Version: "1.0-SNAPSHOT",
		Versioning: &metadata.Versioning{
			Snapshot:    &metadata.Snapshot{Timestamp: "20231201.080000", BuildNumber: 5},
			LastUpdated: "20231201080000",
			SnapshotVersions: []metadata.SnapshotVersion{
				{Extension: "jar", Value: "1.0-20231201.080000-7"},
				{Classifier: "sources", Extension: "jar", Value: "1.0-20231201.080000-7"},
			},
		},
	}
	data, err := metadata.Marshal(existing)
	if err != nil {
		t.Fatal(err)
	}
	f.remote.Add(artifact.MetadataPath(artifact.SnapshotMetadata(jar)), data)

	res := f.deploy(t, nil, jar)
	if got := res.Artifacts[0].Version; got != "1.0-20240102.120000-8" {
		t.Errorf("version = %q, want build 8", got)
	}
	doc := f.remoteDoc(t, artifact.SnapshotMetadata(jar))
	if v, _ := doc.SnapshotVersionFor("sources", "jar"); v != "1.0-20231201.080000-7" {
		t.Errorf("sources entry = %q, want the old entry kept", v)
	}
}

func TestDeployOverLegacyMetadata(t *testing.T) {
	f := newFixture(t)
	jar := file(t, "org.example:lib:1.0-SNAPSHOT")
	data, err := metadata.Marshal(&metadata.Metadata{
		GroupID: "org.example", ArtifactID: "lib", Version: "1.0-SNAPSHOT",
		Versioning: &metadata.Versioning{
			Snapshot:    &metadata.Snapshot{Timestamp: "20231201.080000", BuildNumber: 2},
			LastUpdated: "20231201080000",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.remote.Add(artifact.MetadataPath(artifact.SnapshotMetadata(jar)), data)

	res := f.deploy(t, nil, jar)
	doc := f.remoteDoc(t, artifact.SnapshotMetadata(jar))
	v, ok := doc.SnapshotVersionFor("", "jar")
	if !ok || v != res.Artifacts[0].Version {
		t.Errorf("jar entry = %q, want %q", v, res.Artifacts[0].Version)
	}
	if doc.Versioning.Snapshot.BuildNumber != 3 {
		t.Errorf("BuildNumber = %d, want 3", doc.Versioning.Snapshot.BuildNumber)
	}
}

func TestDeployForcedBuildNumber(t *testing.T) {
	f := newFixture(t, WithSnapshotBuildNumber(42))
	res := f.deploy(t, nil, file(t, "org.example:lib:1.0-SNAPSHOT"))
	if got := res.Artifacts[0].Version; got != "1.0-20240102.120000-42" {
		t.Errorf("version = %q", got)
	}
}

func TestDeployReleaseUnionsVersions(t *testing.T) {
	f := newFixture(t)
	ref := artifact.VersionsMetadata("org.example", "lib", artifact.NatureReleaseOrSnapshot)
	data, err := metadata.Marshal(&metadata.Metadata{
		GroupID: "org.example", ArtifactID: "lib",
		Versioning: &metadata.Versioning{Release: "0.9", Latest: "0.9", Versions: []string{"0.9"}, LastUpdated: "20230101000000"},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.remote.Add(artifact.MetadataPath(ref), data)

	res := f.deploy(t, nil, file(t, "org.example:lib:1.0"))
	if got := res.Artifacts[0].Version; got != "1.0" {
		t.Errorf("release version rewritten to %q", got)
	}
	doc := f.remoteDoc(t, ref)
	if diff := cmp.Diff([]string{"0.9", "1.0"}, doc.Versions()); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if doc.Versioning.Release != "1.0" || doc.Versioning.Latest != "1.0" {
		t.Errorf("release/latest = %q/%q", doc.Versioning.Release, doc.Versioning.Latest)
	}
	if doc.Versioning.LastUpdated != "20240102120000" {
		t.Errorf("lastUpdated = %q", doc.Versioning.LastUpdated)
	}
}

func TestDeployPluginPrefix(t *testing.T) {
	f := newFixture(t)
	plugin := file(t, "org.example.plugins:maven-foo-plugin:1.0").
		WithProperties(map[string]string{artifact.PropType: PluginPackaging})
	other := file(t, "org.example.plugins:helper:1.0")

	f.deploy(t, nil, plugin, other)

	doc := f.remoteDoc(t, artifact.GroupMetadata("org.example.plugins"))
	want := []metadata.Plugin{{Prefix: "foo", ArtifactID: "maven-foo-plugin"}}
	if diff := cmp.Diff(want, doc.Plugins); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
}

func TestDeployBatchesShareSnapshot(t *testing.T) {
	f := newFixture(t)
	first := f.deploy(t, nil, file(t, "org.example:lib:1.0-SNAPSHOT"))

	f.now = noon.Add(time.Minute)
	second := f.deploy(t, first.Metadata, file(t, "org.example:lib:pom:1.0-SNAPSHOT"))

	if a, b := first.Artifacts[0].Version, second.Artifacts[0].Version; a != b || a != "1.0-20240102.120000-1" {
		t.Errorf("batch versions = %q and %q, want both 1.0-20240102.120000-1", a, b)
	}
	doc := f.remoteDoc(t, artifact.SnapshotMetadata(first.Artifacts[0]))
	if v, _ := doc.SnapshotVersionFor("", "pom"); v != "1.0-20240102.120000-1" {
		t.Errorf("pom entry = %q", v)
	}
	if v, _ := doc.SnapshotVersionFor("", "jar"); v != "1.0-20240102.120000-1" {
		t.Errorf("jar entry = %q", v)
	}
}

func TestDeployFailures(t *testing.T) {
	f := newFixture(t)
	jar := file(t, "org.example:lib:1.0")

	_, err := f.deployer.Deploy(context.Background(), f.sess.WithOffline(true), DeployRequest{Repository: f.repo, Artifacts: []artifact.Artifact{jar}})
	if !mverrors.Is(err, mverrors.ErrCodeOffline) {
		t.Errorf("offline deploy err = %v", err)
	}

	missing := jar.WithFile(filepath.Join(t.TempDir(), "missing.jar"))
	_, err = f.deployer.Deploy(context.Background(), f.sess, DeployRequest{Repository: f.repo, Artifacts: []artifact.Artifact{missing}})
	if !mverrors.Is(err, mverrors.ErrCodeInvalidInput) {
		t.Errorf("missing file err = %v", err)
	}
	if f.remote.Puts() != 0 {
		t.Errorf("failed deploys uploaded %d files", f.remote.Puts())
	}
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := NewInstaller()

	snap := file(t, "org.example:lib:1.0-SNAPSHOT")
	res, err := in.Install(ctx, f.sess, InstallRequest{Artifacts: []artifact.Artifact{snap}})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	installed := res.Artifacts[0]
	if installed.Version != "1.0-SNAPSHOT" || installed.File != f.sess.LocalPath(snap) {
		t.Errorf("installed = %s at %s", installed, installed.File)
	}
	if data, err := os.ReadFile(installed.File); err != nil || string(data) != "org.example:lib:1.0-SNAPSHOT" {
		t.Errorf("installed file = %q, %v", data, err)
	}

	doc, err := metadata.Load(f.sess.LocalMetadataPath(artifact.SnapshotMetadata(snap), artifact.LocalRepositoryID))
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Versioning.Snapshot.LocalCopy {
		t.Error("snapshot not marked as local copy")
	}
	if v, _ := doc.SnapshotVersionFor("", "jar"); v != "1.0-SNAPSHOT" {
		t.Errorf("jar entry = %q", v)
	}

	if _, err := in.Install(ctx, f.sess, InstallRequest{Artifacts: []artifact.Artifact{file(t, "org.example:lib:2.0")}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	ga, err := metadata.Load(f.sess.LocalMetadataPath(
		artifact.VersionsMetadata("org.example", "lib", artifact.NatureReleaseOrSnapshot), artifact.LocalRepositoryID))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1.0-SNAPSHOT", "2.0"}, ga.Versions()); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if ga.Versioning.Release != "2.0" {
		t.Errorf("release = %q", ga.Versioning.Release)
	}
	if n := len(f.events.OfType(observability.EventMetadataInstalled)); n != 3 {
		t.Errorf("metadata installed events = %d, want 3", n)
	}
}

func TestGoalPrefix(t *testing.T) {
	for id, want := range map[string]string{
		"maven-compiler-plugin": "compiler",
		"compiler-maven-plugin": "compiler",
		"exec-plugin":           "exec",
		"plugin":                "plugin",
		"jetty":                 "jetty",
	} {
		if got := GoalPrefix(id); got != want {
			t.Errorf("GoalPrefix(%q) = %q, want %q", id, got, want)
		}
	}
}
