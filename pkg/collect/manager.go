package collect

import (
	"context"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
)

// Manager applies dependency management. DeriveChild returns the manager
// for the children of the node described by c.
type Manager interface {
	Manage(d artifact.Dependency) Management
	DeriveChild(ctx context.Context, c Context) Manager
}

// Management lists the values a manager imposes on one dependency. Empty
// fields leave the declaration alone.
type Management struct {
	Version    string
	Scope      artifact.Scope
	Optional   *bool
	Exclusions []artifact.Exclusion

	// LocalPath is the file of a dependency managed into system scope.
	LocalPath string
}

// Apply returns d with the management applied, and the values it replaced.
func (m Management) Apply(d artifact.Dependency) (artifact.Dependency, Premanaged) {
	var pre Premanaged
	if m.Version != "" && m.Version != d.Artifact.Version {
		pre.Version = d.Artifact.Version
		d.Artifact = d.Artifact.WithVersion(m.Version)
	}
	if m.Scope != "" && m.Scope != d.Scope {
		pre.Scope = d.Scope.Or(artifact.ScopeCompile)
		d.Scope = m.Scope
		if m.Scope == artifact.ScopeSystem && m.LocalPath != "" {
			d.Artifact = d.Artifact.WithProperties(map[string]string{artifact.PropLocalPath: m.LocalPath})
		}
	}
	if m.Optional != nil && *m.Optional != d.Optional {
		was := d.Optional
		pre.Optional = &was
		d.Optional = *m.Optional
	}
	if len(m.Exclusions) > 0 {
		d = d.WithExclusions(m.Exclusions)
	}
	return d, pre
}

// DefaultManager manages dependencies with the entries of the root. The
// entries are gathered once, when deriving for the root. Direct
// dependencies only get a missing version or scope filled in, deeper ones
// have version, scope and optional flag overridden. Exclusions are merged
// at every depth.
type DefaultManager struct {
	depth   int
	entries map[string]artifact.Dependency
}

func NewManager() *DefaultManager { return &DefaultManager{} }

func (m *DefaultManager) DeriveChild(_ context.Context, c Context) Manager {
	if c.Depth == 0 {
		entries := make(map[string]artifact.Dependency, len(c.Managed))
		for _, d := range c.Managed {
			key := d.Artifact.Key()
			if _, ok := entries[key]; !ok {
				entries[key] = d
			}
		}
		return &DefaultManager{depth: 1, entries: entries}
	}
	if m.depth > 1 {
		return m
	}
	return &DefaultManager{depth: c.Depth + 1, entries: m.entries}
}

func (m *DefaultManager) Manage(d artifact.Dependency) Management {
	entry, ok := m.entries[d.Artifact.Key()]
	if !ok || m.depth == 0 {
		return Management{}
	}
	mg := Management{Exclusions: entry.Exclusions}
	if m.depth >= 2 {
		mg.Version = entry.Artifact.Version
		mg.Scope = entry.Scope
		if entry.Optional {
			mg.Optional = &entry.Optional
		}
	} else {
		if d.Artifact.Version == "" {
			mg.Version = entry.Artifact.Version
		}
		if d.Scope == "" {
			mg.Scope = entry.Scope
		}
	}
	if mg.Scope == artifact.ScopeSystem {
		mg.LocalPath = entry.Artifact.Property(artifact.PropLocalPath, "")
	}
	return mg
}
