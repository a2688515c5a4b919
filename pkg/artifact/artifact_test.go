package artifact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Artifact
	}{
		{"org.example:lib:1.0", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "jar", Version: "1.0"}},
		{"org.example:lib:pom:1.0", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "pom", Version: "1.0"}},
		{"org.example:lib:jar:tests:[1.0,2.0)", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "jar", Classifier: "tests", Version: "[1.0,2.0)"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}

	for _, bad := range []string{"lib", "g:a", "g:a:b:c:d:e", "g::1.0", "../g:a:1.0", "g:a:../1"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}

func TestArtifactIdentity(t *testing.T) {
	a := New("org.example", "lib", "jar", "sources", "1.0-20240102.030405-7")
	if got := a.Key(); got != "org.example:lib:jar:sources" {
		t.Errorf("Key() = %q", got)
	}
	if got := a.ID(); got != "org.example:lib:1.0-SNAPSHOT" {
		t.Errorf("ID() = %q", got)
	}
	if got := a.String(); got != "org.example:lib:jar:sources:1.0-20240102.030405-7" {
		t.Errorf("String() = %q", got)
	}
	if !a.IsSnapshot() {
		t.Error("timestamped version should be a snapshot")
	}
	p := a.Pom()
	if p.Extension != "pom" || p.Classifier != "" || p.Version != a.Version {
		t.Errorf("Pom() = %v", p)
	}
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		a    Artifact
		want string
	}{
		{New("org.example", "lib", "jar", "", "1.0"), "org/example/lib/1.0/lib-1.0.jar"},
		{New("org.example", "lib", "pom", "", "1.0"), "org/example/lib/1.0/lib-1.0.pom"},
		{New("org.example", "lib", "jar", "tests", "1.0"), "org/example/lib/1.0/lib-1.0-tests.jar"},
		{New("org.example", "lib", "jar", "", "1.0-20240102.030405-7"), "org/example/lib/1.0-SNAPSHOT/lib-1.0-20240102.030405-7.jar"},
	}
	for _, tt := range tests {
		if got := ArtifactPath(tt.a); got != tt.want {
			t.Errorf("ArtifactPath(%v) = %q, want %q", tt.a, got, tt.want)
		}
	}
}

func TestMetadataPaths(t *testing.T) {
	ga := VersionsMetadata("org.example", "lib", NatureRelease)
	if got := MetadataPath(ga); got != "org/example/lib/maven-metadata.xml" {
		t.Errorf("MetadataPath = %q", got)
	}
	if got := LocalMetadataPath(ga, "central"); got != "org/example/lib/maven-metadata-central.xml" {
		t.Errorf("LocalMetadataPath = %q", got)
	}
	snap := SnapshotMetadata(New("org.example", "lib", "jar", "", "1.0-20240102.030405-7"))
	if got := LocalMetadataPath(snap, LocalRepositoryID); got != "org/example/lib/1.0-SNAPSHOT/maven-metadata-local.xml" {
		t.Errorf("LocalMetadataPath = %q", got)
	}
	if got := MetadataPath(GroupMetadata("org.apache.maven.plugins")); got != "org/apache/maven/plugins/maven-metadata.xml" {
		t.Errorf("MetadataPath = %q", got)
	}
}

func TestExclusionMatches(t *testing.T) {
	a := New("org.apache.maven.wagon", "wagon-http", "jar", "", "1.0")
	tests := []struct {
		ex   Exclusion
		want bool
	}{
		{Exclusion{GroupID: "org.apache.maven.wagon", ArtifactID: "wagon-http"}, true},
		{Exclusion{GroupID: "org.apache.maven.wagon", ArtifactID: "*"}, true},
		{Exclusion{GroupID: "*", ArtifactID: "*"}, true},
		{Exclusion{GroupID: "org.apache.maven.wagon", ArtifactID: "wagon-file"}, false},
		{Exclusion{GroupID: "*", ArtifactID: "wagon-http", Extension: "war"}, false},
		{Exclusion{GroupID: "*", ArtifactID: "wagon-http", Classifier: "*", Extension: "*"}, true},
	}
	for _, tt := range tests {
		if got := tt.ex.Matches(a); got != tt.want {
			t.Errorf("%v.Matches(%v) = %v, want %v", tt.ex, a, got, tt.want)
		}
	}
}

func TestWithExclusionsDeduplicates(t *testing.T) {
	e1 := Exclusion{GroupID: "g", ArtifactID: "a"}
	e2 := Exclusion{GroupID: "g", ArtifactID: "b"}
	d := Dependency{Exclusions: []Exclusion{e1}}
	got := d.WithExclusions([]Exclusion{e1, e2}).Exclusions
	if diff := cmp.Diff([]Exclusion{e1, e2}, got); diff != "" {
		t.Errorf("WithExclusions mismatch (-want +got):\n%s", diff)
	}
	if len(d.Exclusions) != 1 {
		t.Error("WithExclusions must not modify the receiver")
	}
}

func TestFromType(t *testing.T) {
	tests := []struct {
		typ, classifier     string
		wantExt, wantClassf string
	}{
		{"", "", "jar", ""},
		{"test-jar", "", "jar", "tests"},
		{"maven-plugin", "", "jar", ""},
		{"pom", "", "pom", ""},
		{"ejb-client", "", "jar", "client"},
		{"zip", "bin", "zip", "bin"},
	}
	for _, tt := range tests {
		a := FromType("g", "a", tt.typ, tt.classifier, "1")
		if a.Extension != tt.wantExt || a.Classifier != tt.wantClassf {
			t.Errorf("FromType(%q, %q) = %s:%s, want %s:%s", tt.typ, tt.classifier, a.Extension, a.Classifier, tt.wantExt, tt.wantClassf)
		}
	}
}

func TestPackageURL(t *testing.T) {
	tests := []struct {
		a    Artifact
		want string
	}{
		{New("org.example", "lib", "jar", "", "1.0"), "pkg:maven/org.example/lib@1.0"},
		{New("org.example", "lib", "pom", "", "1.0"), "pkg:maven/org.example/lib@1.0?type=pom"},
		{New("org.example", "lib", "jar", "sources", "1.0"), "pkg:maven/org.example/lib@1.0?classifier=sources"},
	}
	for _, tt := range tests {
		if got := tt.a.PackageURL(); got != tt.want {
			t.Errorf("PackageURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestRepositoryPolicies(t *testing.T) {
	c := Central()
	if c.Accepts(NatureSnapshot) || !c.Accepts(NatureRelease) || !c.Accepts(NatureReleaseOrSnapshot) {
		t.Errorf("central policies = %+v / %+v", c.Releases, c.Snapshots)
	}
	r := NewRemoteRepository("x", "HTTPS://Repo.Example.COM/maven2/")
	if got := r.NormalizedURL(); got != "https://repo.example.com/maven2" {
		t.Errorf("NormalizedURL() = %q", got)
	}
	merged := MergeRepositories([]RemoteRepository{c}, []RemoteRepository{r, Central()})
	if len(merged) != 2 || merged[0].ID != "central" || merged[1].ID != "x" {
		t.Errorf("MergeRepositories = %v", merged)
	}
}
