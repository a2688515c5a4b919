package deploy

import (
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/metadata"
	"github.com/matzehuels/mvnresolve/pkg/version"
)

// Metadata is a metadata document generated for a batch of artifacts.
//
// Merge combines the generated content with the document already present
// in the target repository, nil when there is none, and remembers the
// result: later calls return it unchanged, so an instance handed back from
// an earlier partial batch is never merged twice. Artifacts bound after
// the merge are added to the remembered document.
type Metadata interface {
	Ref() artifact.MetadataRef
	Key() string
	Merge(existing *metadata.Metadata, now time.Time) *metadata.Metadata
	Document() *metadata.Metadata
}

// =============================================================================
// Remote snapshot
// =============================================================================

// SnapshotMetadata is the groupId:artifactId:version document of a
// snapshot deployed to a remote repository. Merging allocates one
// timestamp and build number for every artifact of the build.
type SnapshotMetadata struct {
	ref         artifact.MetadataRef
	artifacts   []artifact.Artifact
	buildNumber int

	timestamp string
	build     int
	doc       *metadata.Metadata
}

func newSnapshotMetadata(a artifact.Artifact, buildNumber int) *SnapshotMetadata {
	return &SnapshotMetadata{ref: artifact.SnapshotMetadata(a), buildNumber: buildNumber}
}

func (m *SnapshotMetadata) Ref() artifact.MetadataRef    { return m.ref }
func (m *SnapshotMetadata) Key() string                  { return "snapshot:" + m.ref.Key() }
func (m *SnapshotMetadata) Document() *metadata.Metadata { return m.doc }

// ExpandedVersion returns the timestamped version, or "" before the
// merge.
func (m *SnapshotMetadata) ExpandedVersion() string {
	if m.doc == nil {
		return ""
	}
	return version.ExpandSnapshot(m.ref.Version, m.timestamp, m.build)
}

func (m *SnapshotMetadata) bind(a artifact.Artifact) {
	m.artifacts = append(m.artifacts, a)
	if m.doc != nil {
		addSnapshotVersions(m.doc, snapshotVersions([]artifact.Artifact{a}, m.ExpandedVersion(), m.doc.LastUpdated()))
	}
}

// Merge numbers the build one past the highest build recorded in
// existing, unless a build number was configured.
func (m *SnapshotMetadata) Merge(existing *metadata.Metadata, now time.Time) *metadata.Metadata {
	if m.doc != nil {
		return m.doc
	}
	m.timestamp = metadata.FormatSnapshot(now)
	m.build = m.buildNumber
	if m.build <= 0 {
		m.build = highestBuild(existing) + 1
	}
	lastUpdated := metadata.FormatLastUpdated(now)
	snap := &metadata.Snapshot{Timestamp: m.timestamp, BuildNumber: m.build}
	gen := &metadata.Metadata{
		ModelVersion: metadata.ModelVersion,
		GroupID:      m.ref.GroupID,
		ArtifactID:   m.ref.ArtifactID,
		Version:      m.ref.Version,
		Versioning: &metadata.Versioning{
			Snapshot:         snap,
			LastUpdated:      lastUpdated,
			SnapshotVersions: snapshotVersions(m.artifacts, m.ExpandedVersion(), lastUpdated),
		},
	}
	m.doc = writtenAs(metadata.Merge(gen, existing), gen.Versioning)
	return m.doc
}

func highestBuild(doc *metadata.Metadata) int {
	if doc == nil || doc.Versioning == nil {
		return 0
	}
	highest := 0
	if s := doc.Versioning.Snapshot; s != nil {
		highest = s.BuildNumber
	}
	for _, sv := range doc.Versioning.SnapshotVersions {
		if _, bn, ok := version.SnapshotTimestamp(sv.Value); ok {
			if n, err := strconv.Atoi(bn); err == nil && n > highest {
				highest = n
			}
		}
	}
	return highest
}

// =============================================================================
// Local snapshot
// =============================================================================

// LocalSnapshotMetadata marks an installed snapshot as a local copy.
type LocalSnapshotMetadata struct {
	ref       artifact.MetadataRef
	artifacts []artifact.Artifact
	doc       *metadata.Metadata
}

func (m *LocalSnapshotMetadata) Ref() artifact.MetadataRef    { return m.ref }
func (m *LocalSnapshotMetadata) Key() string                  { return "local-snapshot:" + m.ref.Key() }
func (m *LocalSnapshotMetadata) Document() *metadata.Metadata { return m.doc }

func (m *LocalSnapshotMetadata) bind(a artifact.Artifact) {
	m.artifacts = append(m.artifacts, a)
	if m.doc != nil {
		addSnapshotVersions(m.doc, snapshotVersions([]artifact.Artifact{a}, m.ref.Version, m.doc.LastUpdated()))
	}
}

func (m *LocalSnapshotMetadata) Merge(existing *metadata.Metadata, now time.Time) *metadata.Metadata {
	if m.doc != nil {
		return m.doc
	}
	lastUpdated := metadata.FormatLastUpdated(now)
	snap := &metadata.Snapshot{LocalCopy: true}
	gen := &metadata.Metadata{
		ModelVersion: metadata.ModelVersion,
		GroupID:      m.ref.GroupID,
		ArtifactID:   m.ref.ArtifactID,
		Version:      m.ref.Version,
		Versioning: &metadata.Versioning{
			Snapshot:         snap,
			LastUpdated:      lastUpdated,
			SnapshotVersions: snapshotVersions(m.artifacts, m.ref.Version, lastUpdated),
		},
	}
	m.doc = writtenAs(metadata.Merge(gen, existing), gen.Versioning)
	return m.doc
}

// writtenAs pins doc to the snapshot being written. An existing document
// stamped later, or a legacy one that dropped the file list, must not
// hide the files of this build.
func writtenAs(doc *metadata.Metadata, gen *metadata.Versioning) *metadata.Metadata {
	doc.Versioning.Snapshot = gen.Snapshot
	doc.Versioning.LastUpdated = gen.LastUpdated
	addSnapshotVersions(doc, gen.SnapshotVersions)
	return doc
}

func snapshotVersions(as []artifact.Artifact, value, updated string) []metadata.SnapshotVersion {
	out := make([]metadata.SnapshotVersion, 0, len(as))
	for _, a := range as {
		out = append(out, metadata.SnapshotVersion{
			Classifier: a.Classifier,
			Extension:  a.Extension,
			Value:      value,
			Updated:    updated,
		})
	}
	return out
}

// addSnapshotVersions puts svs into doc, replacing entries with the same
// classifier and extension.
func addSnapshotVersions(doc *metadata.Metadata, svs []metadata.SnapshotVersion) {
	v := doc.Versioning
	for _, sv := range svs {
		i := slices.IndexFunc(v.SnapshotVersions, func(o metadata.SnapshotVersion) bool { return o.Key() == sv.Key() })
		if i >= 0 {
			v.SnapshotVersions[i] = sv
		} else {
			v.SnapshotVersions = append(v.SnapshotVersions, sv)
		}
	}
	if len(v.SnapshotVersions) > 0 {
		doc.ModelVersion = metadata.ModelVersion
	}
}

// =============================================================================
// Versions
// =============================================================================

// VersionsMetadata is the groupId:artifactId document listing the
// versions of an artifact.
type VersionsMetadata struct {
	ref      artifact.MetadataRef
	versions []string
	doc      *metadata.Metadata
}

func newVersionsMetadata(a artifact.Artifact) *VersionsMetadata {
	return &VersionsMetadata{ref: artifact.VersionsMetadata(a.GroupID, a.ArtifactID, artifact.NatureReleaseOrSnapshot)}
}

func (m *VersionsMetadata) Ref() artifact.MetadataRef    { return m.ref }
func (m *VersionsMetadata) Key() string                  { return "versions:" + m.ref.Key() }
func (m *VersionsMetadata) Document() *metadata.Metadata { return m.doc }

func (m *VersionsMetadata) bind(a artifact.Artifact) {
	v := a.BaseVersion()
	if !slices.Contains(m.versions, v) {
		m.versions = append(m.versions, v)
	}
	if m.doc != nil {
		m.doc.AddVersion(v)
		setPointers(m.doc.Versioning, v)
	}
}

// Merge unions the versions. The latest pointer moves to the version
// bound last and the release pointer to the last non-snapshot one.
func (m *VersionsMetadata) Merge(existing *metadata.Metadata, now time.Time) *metadata.Metadata {
	if m.doc != nil {
		return m.doc
	}
	gen := &metadata.Metadata{
		GroupID:    m.ref.GroupID,
		ArtifactID: m.ref.ArtifactID,
		Versioning: &metadata.Versioning{Versions: slices.Clone(m.versions), LastUpdated: metadata.FormatLastUpdated(now)},
	}
	m.doc = metadata.Merge(gen, existing)
	m.doc.Versioning.LastUpdated = gen.Versioning.LastUpdated
	for _, v := range m.versions {
		setPointers(m.doc.Versioning, v)
	}
	return m.doc
}

func setPointers(vs *metadata.Versioning, v string) {
	vs.Latest = v
	if !version.IsSnapshot(v) {
		vs.Release = v
	}
}

// =============================================================================
// Plugin prefixes
// =============================================================================

// PluginPrefixMetadata is the group document mapping goal prefixes to the
// plugins of a group.
type PluginPrefixMetadata struct {
	ref     artifact.MetadataRef
	plugins []metadata.Plugin
	doc     *metadata.Metadata
}

func (m *PluginPrefixMetadata) Ref() artifact.MetadataRef    { return m.ref }
func (m *PluginPrefixMetadata) Key() string                  { return "plugins:" + m.ref.Key() }
func (m *PluginPrefixMetadata) Document() *metadata.Metadata { return m.doc }

func (m *PluginPrefixMetadata) bind(a artifact.Artifact) {
	p := metadata.Plugin{
		Name:       a.Property(PropPluginName, ""),
		Prefix:     a.Property(PropGoalPrefix, GoalPrefix(a.ArtifactID)),
		ArtifactID: a.ArtifactID,
	}
	if slices.ContainsFunc(m.plugins, func(o metadata.Plugin) bool { return o.Prefix == p.Prefix }) {
		return
	}
	m.plugins = append(m.plugins, p)
	if m.doc != nil {
		m.doc = metadata.Merge(&metadata.Metadata{Plugins: []metadata.Plugin{p}}, m.doc)
	}
}

func (m *PluginPrefixMetadata) Merge(existing *metadata.Metadata, _ time.Time) *metadata.Metadata {
	if m.doc != nil {
		return m.doc
	}
	m.doc = metadata.Merge(&metadata.Metadata{Plugins: slices.Clone(m.plugins)}, existing)
	return m.doc
}

// Artifact properties read by the plugin prefix generator.
const (
	PropGoalPrefix = "goalPrefix"
	PropPluginName = "pluginName"
)

var prefixNoise = []*regexp.Regexp{
	regexp.MustCompile(`-?maven-?`),
	regexp.MustCompile(`-?plugin-?`),
}

// GoalPrefix derives a goal prefix from a plugin artifact id by dropping
// the "maven" and "plugin" parts: maven-compiler-plugin and
// compiler-maven-plugin both give "compiler".
func GoalPrefix(artifactID string) string {
	p := artifactID
	for _, re := range prefixNoise {
		p = re.ReplaceAllString(p, "")
	}
	if p == "" {
		return artifactID
	}
	return p
}
