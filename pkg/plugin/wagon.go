package plugin

import (
	"context"
	"strings"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	"github.com/matzehuels/mvnresolve/pkg/observability"
)

// WagonExcluder keeps transport providers pulled in by a 2.x core
// artifact off the plugin classpath, where they would outrank the current
// ones. It switches on below the first legacy core artifact of a path and
// stays on for that subtree only.
type WagonExcluder struct {
	active bool
}

// Select drops org.apache.maven.wagon:wagon-* once active.
func (w *WagonExcluder) Select(d artifact.Dependency) bool {
	if !w.active {
		return true
	}
	a := d.Artifact
	return !(a.GroupID == "org.apache.maven.wagon" && strings.HasPrefix(a.ArtifactID, "wagon-"))
}

func (w *WagonExcluder) DeriveChild(ctx context.Context, c collect.Context) collect.Selector {
	if w.active || !IsLegacyCoreArtifact(c.Dependency.Artifact) {
		return w
	}
	if c.Session != nil {
		c.Session.Notify(ctx, observability.Event{
			Type:     observability.EventLegacyArtifact,
			Artifact: c.Dependency.Artifact.String(),
			Message:  "excluding wagon providers below legacy core artifact",
		})
	}
	return &WagonExcluder{active: true}
}

// IsLegacyCoreArtifact reports whether a is an org.apache.maven:maven-*
// artifact of the 2.x line.
func IsLegacyCoreArtifact(a artifact.Artifact) bool {
	return a.GroupID == "org.apache.maven" &&
		strings.HasPrefix(a.ArtifactID, "maven-") &&
		strings.HasPrefix(a.Version, "2.")
}
