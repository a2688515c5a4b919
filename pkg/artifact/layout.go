package artifact

import (
	"path"
	"strings"
)

// Nature tells which repository policy governs a metadata document.
type Nature int

const (
	NatureReleaseOrSnapshot Nature = iota
	NatureRelease
	NatureSnapshot
)

// MetadataFile is the file name of repository metadata documents.
const MetadataFile = "maven-metadata.xml"

// MetadataRef locates a metadata document. Level follows from which
// fields are set: group (plugin prefixes), groupId:artifactId (versions)
// or groupId:artifactId:version (snapshot builds).
type MetadataRef struct {
	GroupID    string
	ArtifactID string
	Version    string
	Type       string
	Nature     Nature
}

// GroupMetadata returns the group-level metadata reference.
func GroupMetadata(groupID string) MetadataRef {
	return MetadataRef{GroupID: groupID, Type: MetadataFile, Nature: NatureRelease}
}

// VersionsMetadata returns the groupId:artifactId metadata reference.
func VersionsMetadata(groupID, artifactID string, n Nature) MetadataRef {
	return MetadataRef{GroupID: groupID, ArtifactID: artifactID, Type: MetadataFile, Nature: n}
}

// SnapshotMetadata returns the groupId:artifactId:baseVersion reference for
// a snapshot artifact.
func SnapshotMetadata(a Artifact) MetadataRef {
	return MetadataRef{
		GroupID:    a.GroupID,
		ArtifactID: a.ArtifactID,
		Version:    a.BaseVersion(),
		Type:       MetadataFile,
		Nature:     NatureSnapshot,
	}
}

// Key identifies the document independent of its repository.
func (m MetadataRef) Key() string {
	return m.GroupID + ":" + m.ArtifactID + ":" + m.Version + ":" + m.Type
}

func (m MetadataRef) String() string {
	parts := []string{m.GroupID}
	if m.ArtifactID != "" {
		parts = append(parts, m.ArtifactID)
	}
	if m.Version != "" {
		parts = append(parts, m.Version)
	}
	return strings.Join(parts, ":") + "/" + m.Type
}

// ArtifactPath returns the repository-relative path of a:
// <group/as/path>/<artifactId>/<baseVersion>/<artifactId>-<version>[-<classifier>].<extension>
func ArtifactPath(a Artifact) string {
	name := a.ArtifactID + "-" + a.Version
	if a.Classifier != "" {
		name += "-" + a.Classifier
	}
	if a.Extension != "" {
		name += "." + a.Extension
	}
	return path.Join(groupPath(a.GroupID), a.ArtifactID, a.BaseVersion(), name)
}

// MetadataDir returns the repository-relative directory of a metadata
// document.
func MetadataDir(m MetadataRef) string {
	p := groupPath(m.GroupID)
	if m.ArtifactID != "" {
		p = path.Join(p, m.ArtifactID)
		if m.Version != "" {
			p = path.Join(p, m.Version)
		}
	}
	return p
}

// MetadataPath returns the remote path of a metadata document.
func MetadataPath(m MetadataRef) string {
	return path.Join(MetadataDir(m), m.Type)
}

// LocalMetadataPath returns the path of the locally cached copy of a
// metadata document. Remote copies are suffixed with the repository id
// (maven-metadata-central.xml); locally installed data uses "local".
func LocalMetadataPath(m MetadataRef, repoID string) string {
	name := m.Type
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext) + "-" + repoID + ext
	} else {
		name += "-" + repoID
	}
	return path.Join(MetadataDir(m), name)
}

// LocalRepositoryID names locally installed metadata.
const LocalRepositoryID = "local"

func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}
