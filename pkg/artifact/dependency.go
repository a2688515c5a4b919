package artifact

import "strings"

// Scope classifies how a dependency is used and whether it propagates.
// The empty scope means "not declared" and is backfilled by management or
// defaulted to compile during collection.
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
	ScopeTest     Scope = "test"
	ScopeImport   Scope = "import"
)

// Or returns s, or def when s is empty.
func (s Scope) Or(def Scope) Scope {
	if s == "" {
		return def
	}
	return s
}

// Exclusion removes matching artifacts from a dependency's subtree. Any
// field may be the wildcard "*"; empty classifier and extension match
// anything.
type Exclusion struct {
	GroupID    string
	ArtifactID string
	Classifier string
	Extension  string
}

// Wildcard matches any value in an exclusion field.
const Wildcard = "*"

// Matches reports whether the exclusion applies to a.
func (e Exclusion) Matches(a Artifact) bool {
	return matchField(e.GroupID, a.GroupID) &&
		matchField(e.ArtifactID, a.ArtifactID) &&
		(e.Classifier == "" || matchField(e.Classifier, a.Classifier)) &&
		(e.Extension == "" || matchField(e.Extension, a.Extension))
}

func (e Exclusion) String() string {
	s := e.GroupID + ":" + e.ArtifactID
	if e.Classifier != "" || e.Extension != "" {
		s += ":" + e.Extension + ":" + e.Classifier
	}
	return s
}

func matchField(pattern, value string) bool {
	return pattern == Wildcard || pattern == value
}

// Dependency is an artifact declared with a scope, optional flag and
// exclusions.
type Dependency struct {
	Artifact   Artifact
	Scope      Scope
	Optional   bool
	Exclusions []Exclusion
}

// WithArtifact returns a copy referring to a.
func (d Dependency) WithArtifact(a Artifact) Dependency {
	d.Artifact = a
	return d
}

// WithScope returns a copy with scope s.
func (d Dependency) WithScope(s Scope) Dependency {
	d.Scope = s
	return d
}

// WithExclusions returns a copy with the given exclusions appended to the
// existing ones, skipping duplicates.
func (d Dependency) WithExclusions(ex []Exclusion) Dependency {
	merged := make([]Exclusion, 0, len(d.Exclusions)+len(ex))
	seen := make(map[Exclusion]bool, cap(merged))
	for _, list := range [][]Exclusion{d.Exclusions, ex} {
		for _, e := range list {
			if !seen[e] {
				seen[e] = true
				merged = append(merged, e)
			}
		}
	}
	d.Exclusions = merged
	return d
}

// Excludes reports whether any of the dependency's exclusions match a.
func (d Dependency) Excludes(a Artifact) bool {
	for _, e := range d.Exclusions {
		if e.Matches(a) {
			return true
		}
	}
	return false
}

func (d Dependency) String() string {
	s := d.Artifact.String()
	if d.Scope != "" {
		s += " (" + string(d.Scope)
		if d.Optional {
			s += "?"
		}
		s += ")"
	} else if d.Optional {
		s += " (?)"
	}
	return s
}

// typeInfo maps a dependency type to the extension and classifier of the
// file it names.
type typeInfo struct {
	extension  string
	classifier string
}

var knownTypes = map[string]typeInfo{
	"pom":          {extension: "pom"},
	"jar":          {extension: "jar"},
	"maven-plugin": {extension: "jar"},
	"ejb":          {extension: "jar"},
	"ejb-client":   {extension: "jar", classifier: "client"},
	"test-jar":     {extension: "jar", classifier: "tests"},
	"javadoc":      {extension: "jar", classifier: "javadoc"},
	"java-source":  {extension: "jar", classifier: "sources"},
	"war":          {extension: "war"},
	"ear":          {extension: "ear"},
	"rar":          {extension: "rar"},
	"par":          {extension: "par"},
	"bundle":       {extension: "jar"},
}

// FromType builds an artifact whose extension and default classifier are
// derived from a dependency type. Unknown types use the type as extension.
func FromType(groupID, artifactID, typ, classifier, ver string) Artifact {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = "jar"
	}
	info, ok := knownTypes[typ]
	if !ok {
		info = typeInfo{extension: typ}
	}
	if classifier == "" {
		classifier = info.classifier
	}
	a := New(groupID, artifactID, info.extension, classifier, ver)
	a.Properties = map[string]string{PropType: typ}
	return a
}
