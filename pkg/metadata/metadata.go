// Package metadata models repository metadata documents
// (maven-metadata.xml) and implements their merge, read and write rules.
//
// Three document levels exist:
//
//   - group level: plugin prefix mappings
//   - groupId:artifactId level: known versions plus latest and release
//   - groupId:artifactId:version level: snapshot timestamp, build number
//     and per-file snapshot versions
//
// [Merge] combines two documents. The document with the newer (or equal)
// lastUpdated stamp dominates scalar fields; collections are unioned by
// their natural key with dominant entries winning.
package metadata

import (
	"bytes"
	"encoding/xml"
	"slices"
	"time"
)

// Timestamp layouts used inside metadata documents, always in UTC.
const (
	LastUpdatedLayout = "20060102150405"
	SnapshotLayout    = "20060102.150405"
)

// ModelVersion is written on documents that carry snapshot versions.
const ModelVersion = "1.1.0"

// Metadata is a maven-metadata.xml document.
type Metadata struct {
	XMLName      xml.Name    `xml:"metadata"`
	ModelVersion string      `xml:"modelVersion,attr,omitempty"`
	GroupID      string      `xml:"groupId,omitempty"`
	ArtifactID   string      `xml:"artifactId,omitempty"`
	Version      string      `xml:"version,omitempty"`
	Versioning   *Versioning `xml:"versioning,omitempty"`
	Plugins      []Plugin    `xml:"plugins>plugin,omitempty"`
}

// Versioning holds the version information of GA and GAV documents.
type Versioning struct {
	Latest           string            `xml:"latest,omitempty"`
	Release          string            `xml:"release,omitempty"`
	Snapshot         *Snapshot         `xml:"snapshot,omitempty"`
	Versions         []string          `xml:"versions>version,omitempty"`
	LastUpdated      string            `xml:"lastUpdated,omitempty"`
	SnapshotVersions []SnapshotVersion `xml:"snapshotVersions>snapshotVersion,omitempty"`
}

// Snapshot is the current snapshot build of a GAV.
type Snapshot struct {
	Timestamp   string `xml:"timestamp,omitempty"`
	BuildNumber int    `xml:"buildNumber,omitempty"`
	LocalCopy   bool   `xml:"localCopy,omitempty"`
}

// SnapshotVersion maps one file of a snapshot build to its timestamped
// version.
type SnapshotVersion struct {
	Classifier string `xml:"classifier,omitempty"`
	Extension  string `xml:"extension,omitempty"`
	Value      string `xml:"value"`
	Updated    string `xml:"updated,omitempty"`
}

// Key is the natural key of a snapshot version: classifier:extension.
func (sv SnapshotVersion) Key() string { return sv.Classifier + ":" + sv.Extension }

// Plugin maps a goal prefix to a plugin artifact.
type Plugin struct {
	Name       string `xml:"name,omitempty"`
	Prefix     string `xml:"prefix"`
	ArtifactID string `xml:"artifactId"`
}

// FormatLastUpdated renders t in the lastUpdated layout.
func FormatLastUpdated(t time.Time) string { return t.UTC().Format(LastUpdatedLayout) }

// FormatSnapshot renders t in the snapshot timestamp layout.
func FormatSnapshot(t time.Time) string { return t.UTC().Format(SnapshotLayout) }

// Parse decodes a document.
func Parse(data []byte) (*Metadata, error) {
	var m Metadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal encodes a document with an XML declaration and indentation.
func Marshal(m *Metadata) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Clone returns a deep copy of m. A nil m clones to nil.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Plugins = slices.Clone(m.Plugins)
	if m.Versioning != nil {
		v := *m.Versioning
		v.Versions = slices.Clone(m.Versioning.Versions)
		v.SnapshotVersions = slices.Clone(m.Versioning.SnapshotVersions)
		if m.Versioning.Snapshot != nil {
			s := *m.Versioning.Snapshot
			v.Snapshot = &s
		}
		c.Versioning = &v
	}
	return &c
}

// versioning returns the versioning block, creating it when absent.
func (m *Metadata) versioning() *Versioning {
	if m.Versioning == nil {
		m.Versioning = &Versioning{}
	}
	return m.Versioning
}

// LastUpdated returns the lastUpdated stamp or "".
func (m *Metadata) LastUpdated() string {
	if m == nil || m.Versioning == nil {
		return ""
	}
	return m.Versioning.LastUpdated
}

// Versions returns the known versions.
func (m *Metadata) Versions() []string {
	if m == nil || m.Versioning == nil {
		return nil
	}
	return m.Versioning.Versions
}

// SnapshotVersionFor returns the timestamped version of the file with the
// given classifier and extension.
func (m *Metadata) SnapshotVersionFor(classifier, extension string) (string, bool) {
	if m == nil || m.Versioning == nil {
		return "", false
	}
	for _, sv := range m.Versioning.SnapshotVersions {
		if sv.Classifier == classifier && sv.Extension == extension {
			return sv.Value, true
		}
	}
	return "", false
}

// AddVersion appends v to the version list unless already present.
func (m *Metadata) AddVersion(v string) {
	vs := m.versioning()
	if !slices.Contains(vs.Versions, v) {
		vs.Versions = append(vs.Versions, v)
	}
}
