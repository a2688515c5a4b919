package deploy

import (
	"github.com/matzehuels/mvnresolve/pkg/artifact"
)

// Generator produces the metadata for a batch of installed or deployed
// artifacts.
//
// Prepare runs before any file is transferred and returns the documents
// that must be merged first because they change artifact coordinates.
// TransformArtifact then rewrites each artifact, and Finish returns the
// documents written after all files are in place.
type Generator interface {
	Prepare(artifacts []artifact.Artifact) []Metadata
	TransformArtifact(a artifact.Artifact) artifact.Artifact
	Finish(artifacts []artifact.Artifact) []Metadata
}

// registry indexes metadata by Key. Generators take the metadata returned
// by earlier batches of the same build so that they keep binding into the
// same instances instead of creating fresh ones.
type registry[M Metadata] map[string]M

func newRegistry[M Metadata](prior []Metadata) registry[M] {
	r := registry[M]{}
	for _, md := range prior {
		if m, ok := md.(M); ok {
			r[m.Key()] = m
		}
	}
	return r
}

func (r registry[M]) get(key string, create func() M) M {
	if m, ok := r[key]; ok {
		return m
	}
	m := create()
	r[m.Key()] = m
	return m
}

// =============================================================================
// Remote snapshots
// =============================================================================

type remoteSnapshotGenerator struct {
	buildNumber int
	snapshots   registry[*SnapshotMetadata]
}

// NewRemoteSnapshotGenerator numbers the snapshot artifacts of a deploy.
// A positive buildNumber replaces the number derived from the remote
// document.
func NewRemoteSnapshotGenerator(prior []Metadata, buildNumber int) Generator {
	return &remoteSnapshotGenerator{buildNumber: buildNumber, snapshots: newRegistry[*SnapshotMetadata](prior)}
}

func (g *remoteSnapshotGenerator) Prepare(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	seen := map[string]bool{}
	for _, a := range artifacts {
		if !a.IsSnapshot() {
			continue
		}
		key := (&SnapshotMetadata{ref: artifact.SnapshotMetadata(a)}).Key()
		m := g.snapshots.get(key, func() *SnapshotMetadata { return newSnapshotMetadata(a, g.buildNumber) })
		m.bind(a)
		if !seen[key] {
			seen[key] = true
			out = append(out, m)
		}
	}
	return out
}

func (g *remoteSnapshotGenerator) TransformArtifact(a artifact.Artifact) artifact.Artifact {
	if !a.IsSnapshot() {
		return a
	}
	m, ok := g.snapshots[(&SnapshotMetadata{ref: artifact.SnapshotMetadata(a)}).Key()]
	if !ok {
		return a
	}
	if v := m.ExpandedVersion(); v != "" {
		return a.WithVersion(v)
	}
	return a
}

func (g *remoteSnapshotGenerator) Finish([]artifact.Artifact) []Metadata { return nil }

// =============================================================================
// Local snapshots
// =============================================================================

type localSnapshotGenerator struct {
	snapshots registry[*LocalSnapshotMetadata]
}

// NewLocalSnapshotGenerator marks installed snapshots as local copies.
func NewLocalSnapshotGenerator(prior []Metadata) Generator {
	return &localSnapshotGenerator{snapshots: newRegistry[*LocalSnapshotMetadata](prior)}
}

func (g *localSnapshotGenerator) Prepare([]artifact.Artifact) []Metadata { return nil }

func (g *localSnapshotGenerator) TransformArtifact(a artifact.Artifact) artifact.Artifact { return a }

func (g *localSnapshotGenerator) Finish(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	seen := map[string]bool{}
	for _, a := range artifacts {
		if !a.IsSnapshot() {
			continue
		}
		ref := artifact.SnapshotMetadata(a)
		m := g.snapshots.get((&LocalSnapshotMetadata{ref: ref}).Key(), func() *LocalSnapshotMetadata {
			return &LocalSnapshotMetadata{ref: ref}
		})
		m.bind(a)
		if !seen[m.Key()] {
			seen[m.Key()] = true
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// Versions
// =============================================================================

type versionsGenerator struct {
	versions registry[*VersionsMetadata]
}

// NewVersionsGenerator records the base version of every artifact in its
// groupId:artifactId document.
func NewVersionsGenerator(prior []Metadata) Generator {
	return &versionsGenerator{versions: newRegistry[*VersionsMetadata](prior)}
}

func (g *versionsGenerator) Prepare([]artifact.Artifact) []Metadata { return nil }

func (g *versionsGenerator) TransformArtifact(a artifact.Artifact) artifact.Artifact { return a }

func (g *versionsGenerator) Finish(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	seen := map[string]bool{}
	for _, a := range artifacts {
		m := g.versions.get(newVersionsMetadata(a).Key(), func() *VersionsMetadata { return newVersionsMetadata(a) })
		m.bind(a)
		if !seen[m.Key()] {
			seen[m.Key()] = true
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// Plugin prefixes
// =============================================================================

// PluginPackaging is the artifact type of build plugins.
const PluginPackaging = "maven-plugin"

type pluginPrefixGenerator struct {
	groups registry[*PluginPrefixMetadata]
}

// NewPluginPrefixGenerator maps the goal prefix of every plugin artifact
// in its group document.
func NewPluginPrefixGenerator(prior []Metadata) Generator {
	return &pluginPrefixGenerator{groups: newRegistry[*PluginPrefixMetadata](prior)}
}

func (g *pluginPrefixGenerator) Prepare([]artifact.Artifact) []Metadata { return nil }

func (g *pluginPrefixGenerator) TransformArtifact(a artifact.Artifact) artifact.Artifact { return a }

func (g *pluginPrefixGenerator) Finish(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	seen := map[string]bool{}
	for _, a := range artifacts {
		if a.Property(artifact.PropType, "") != PluginPackaging {
			continue
		}
		ref := artifact.GroupMetadata(a.GroupID)
		m := g.groups.get((&PluginPrefixMetadata{ref: ref}).Key(), func() *PluginPrefixMetadata {
			return &PluginPrefixMetadata{ref: ref}
		})
		m.bind(a)
		if !seen[m.Key()] {
			seen[m.Key()] = true
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// Pipeline
// =============================================================================

// generators runs several generators as one.
type generators []Generator

func (gs generators) prepare(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	for _, g := range gs {
		out = append(out, g.Prepare(artifacts)...)
	}
	return out
}

func (gs generators) transform(a artifact.Artifact) artifact.Artifact {
	for _, g := range gs {
		a = g.TransformArtifact(a)
	}
	return a
}

func (gs generators) finish(artifacts []artifact.Artifact) []Metadata {
	var out []Metadata
	for _, g := range gs {
		out = append(out, g.Finish(artifacts)...)
	}
	return out
}

// dedupe drops repeated keys, keeping the first.
func dedupe(ms []Metadata) []Metadata {
	seen := map[string]bool{}
	out := ms[:0:0]
	for _, m := range ms {
		if !seen[m.Key()] {
			seen[m.Key()] = true
			out = append(out, m)
		}
	}
	return out
}
