// Package artifact defines the coordinates the resolver works with:
// artifacts, dependencies, exclusions, scopes and repositories, plus the
// default repository layout that maps them to paths.
//
// All types are values. Methods that "modify" an artifact return a copy.
package artifact

import (
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/matzehuels/mvnresolve/pkg/errors"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// PropType is the artifact property holding the dependency type
// ("jar", "test-jar", "maven-plugin") the extension was derived from.
const PropType = "type"

// PropLocalPath is the artifact property holding the file of a
// system-scope dependency.
const PropLocalPath = "localPath"

// DefaultExtension is used when a coordinate omits the extension.
const DefaultExtension = "jar"

// Artifact identifies a single file in a repository.
type Artifact struct {
	GroupID    string
	ArtifactID string
	Classifier string
	Extension  string
	Version    string

	// File is the local path once the artifact has been resolved.
	File string

	// Properties carry type information such as the artifact "type"
	// ("maven-plugin", "test-jar") from which the extension was derived.
	Properties map[string]string
}

// New returns an artifact with the given coordinate parts. An empty
// extension defaults to "jar".
func New(groupID, artifactID, extension, classifier, ver string) Artifact {
	if extension == "" {
		extension = DefaultExtension
	}
	return Artifact{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Classifier: classifier,
		Extension:  extension,
		Version:    ver,
	}
}

// Parse reads a coordinate of the form
// <groupId>:<artifactId>[:<extension>[:<classifier>]]:<version>.
func Parse(coords string) (Artifact, error) {
	parts := strings.Split(coords, ":")
	var a Artifact
	switch len(parts) {
	case 3:
		a = New(parts[0], parts[1], "", "", parts[2])
	case 4:
		a = New(parts[0], parts[1], parts[2], "", parts[3])
	case 5:
		a = New(parts[0], parts[1], parts[2], parts[3], parts[4])
	default:
		return Artifact{}, errors.New(errors.ErrCodeInvalidCoordinate,
			"bad artifact coordinates %q, expected format is <groupId>:<artifactId>[:<extension>[:<classifier>]]:<version>", coords)
	}
	if err := a.Validate(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// Validate checks that the coordinate parts are usable as path segments.
func (a Artifact) Validate() error {
	if err := errors.ValidateCoordinatePart("groupId", a.GroupID); err != nil {
		return err
	}
	if err := errors.ValidateCoordinatePart("artifactId", a.ArtifactID); err != nil {
		return err
	}
	if err := errors.ValidateCoordinatePart("extension", a.Extension); err != nil {
		return err
	}
	return errors.ValidateVersionString(a.Version)
}

// Key identifies the artifact independent of its version:
// groupId:artifactId:extension:classifier. Conflict resolution and
// dependency management are keyed on it.
func (a Artifact) Key() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.Extension + ":" + a.Classifier
}

// VersionlessID is groupId:artifactId.
func (a Artifact) VersionlessID() string {
	return a.GroupID + ":" + a.ArtifactID
}

// ID is groupId:artifactId:baseVersion, the identity used to detect
// relocation cycles.
func (a Artifact) ID() string {
	return a.GroupID + ":" + a.ArtifactID + ":" + a.BaseVersion()
}

// String renders groupId:artifactId:extension[:classifier]:version.
func (a Artifact) String() string {
	var b strings.Builder
	b.WriteString(a.GroupID)
	b.WriteByte(':')
	b.WriteString(a.ArtifactID)
	b.WriteByte(':')
	b.WriteString(a.Extension)
	if a.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(a.Classifier)
	}
	b.WriteByte(':')
	b.WriteString(a.Version)
	return b.String()
}

// BaseVersion maps a timestamped snapshot version to its -SNAPSHOT form.
func (a Artifact) BaseVersion() string { return version.BaseVersion(a.Version) }

// IsSnapshot reports whether the artifact version is a snapshot.
func (a Artifact) IsSnapshot() bool { return version.IsSnapshot(a.Version) }

// WithVersion returns a copy with the given version.
func (a Artifact) WithVersion(v string) Artifact {
	a.Version = v
	return a
}

// WithFile returns a copy bound to a local file.
func (a Artifact) WithFile(file string) Artifact {
	a.File = file
	return a
}

// WithCoordinates returns a copy with a new groupId, artifactId and version,
// keeping classifier, extension and properties. Empty arguments keep the
// current value.
func (a Artifact) WithCoordinates(groupID, artifactID, ver string) Artifact {
	if groupID != "" {
		a.GroupID = groupID
	}
	if artifactID != "" {
		a.ArtifactID = artifactID
	}
	if ver != "" {
		a.Version = ver
	}
	return a
}

// WithProperties returns a copy with the given properties merged over the
// existing ones.
func (a Artifact) WithProperties(props map[string]string) Artifact {
	merged := make(map[string]string, len(a.Properties)+len(props))
	for k, v := range a.Properties {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	a.Properties = merged
	return a
}

// Property returns a property value or def if unset.
func (a Artifact) Property(key, def string) string {
	if v, ok := a.Properties[key]; ok {
		return v
	}
	return def
}

// Pom returns the descriptor coordinate of this artifact.
func (a Artifact) Pom() Artifact {
	return Artifact{GroupID: a.GroupID, ArtifactID: a.ArtifactID, Extension: "pom", Version: a.Version}
}

// SameCoordinates reports whether both artifacts name the same file.
func (a Artifact) SameCoordinates(o Artifact) bool {
	return a.Key() == o.Key() && a.Version == o.Version
}

// PackageURL renders the artifact as a pkg:maven package URL.
func (a Artifact) PackageURL() string {
	q := map[string]string{}
	if a.Classifier != "" {
		q["classifier"] = a.Classifier
	}
	if a.Extension != "" && a.Extension != DefaultExtension {
		q["type"] = a.Extension
	}
	p := packageurl.NewPackageURL(packageurl.TypeMaven, a.GroupID, a.ArtifactID, a.Version,
		packageurl.QualifiersFromMap(q), "")
	return p.ToString()
}
