package observability

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// EventType identifies a diagnostic event.
type EventType string

const (
	// EventArtifactRelocated fires for every relocation followed while
	// reading a descriptor. Artifact is the requested coordinate and Target
	// the one it moved to.
	EventArtifactRelocated EventType = "artifact_relocated"

	// EventMetadataInvalid fires when a metadata document could not be
	// parsed and is treated as absent.
	EventMetadataInvalid EventType = "metadata_invalid"

	// EventDescriptorMissing and EventDescriptorInvalid fire even when the
	// session policy tolerates the condition.
	EventDescriptorMissing EventType = "descriptor_missing"
	EventDescriptorInvalid EventType = "descriptor_invalid"

	// EventLegacyArtifact fires when a 2.x core artifact activates the
	// legacy transport exclusion below it.
	EventLegacyArtifact EventType = "legacy_artifact"

	// Transfer events.
	EventArtifactDownloaded EventType = "artifact_downloaded"
	EventMetadataDownloaded EventType = "metadata_downloaded"
	EventArtifactInstalled  EventType = "artifact_installed"
	EventArtifactDeployed   EventType = "artifact_deployed"
	EventMetadataInstalled  EventType = "metadata_installed"
	EventMetadataDeployed   EventType = "metadata_deployed"
)

// Event is a diagnostic notification. Coordinates are rendered strings so
// this package stays independent of the resolution model.
type Event struct {
	Type       EventType
	Artifact   string
	Target     string
	Repository string
	File       string
	Message    string
	Err        error
}

// Listener receives diagnostic events. Implementations must be safe for
// concurrent use.
type Listener interface {
	OnEvent(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }

// NoopListener discards all events.
type NoopListener struct{}

func (NoopListener) OnEvent(context.Context, Event) {}

// Multi fans events out to several listeners. Nil entries are skipped.
func Multi(ls ...Listener) Listener {
	out := make(multi, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type multi []Listener

func (m multi) OnEvent(ctx context.Context, e Event) {
	for _, l := range m {
		l.OnEvent(ctx, e)
	}
}

// LogListener writes events as structured log lines. Diagnostics that a
// user should act on go to warn level, transfers to debug level.
type LogListener struct {
	Logger *log.Logger
}

func (l LogListener) OnEvent(_ context.Context, e Event) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch e.Type {
	case EventArtifactRelocated:
		msg := "artifact relocated"
		if e.Message != "" {
			msg += ": " + e.Message
		}
		logger.Warn(msg, "from", e.Artifact, "to", e.Target)
	case EventMetadataInvalid:
		logger.Warn("metadata invalid", "file", e.File, "err", e.Err)
	case EventDescriptorMissing:
		logger.Warn("descriptor missing", "artifact", e.Artifact, "err", e.Err)
	case EventDescriptorInvalid:
		logger.Warn("descriptor invalid", "artifact", e.Artifact, "err", e.Err)
	case EventLegacyArtifact:
		logger.Warn("legacy artifact excludes its wagon providers", "artifact", e.Artifact)
	default:
		kv := []any{"artifact", e.Artifact}
		if e.Repository != "" {
			kv = append(kv, "repo", e.Repository)
		}
		if e.File != "" {
			kv = append(kv, "file", e.File)
		}
		logger.Debug(string(e.Type), kv...)
	}
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
