package errors

import (
	"fmt"
	"strings"
)

// VersionParseError reports a malformed version, range or constraint string.
type VersionParseError struct {
	Input  string
	Reason string
}

func (e *VersionParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid version %q", e.Input)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

func (e *VersionParseError) Code() Code { return ErrCodeVersionParse }

// UnboundedRangeError reports a range without an upper bound where one is
// mandatory (parent and dependency resolution).
type UnboundedRangeError struct {
	Coordinate string
	Range      string
	Path       []string
}

func (e *UnboundedRangeError) Error() string {
	return fmt.Sprintf("version range %s of %s has no upper bound%s", e.Range, e.Coordinate, formatPath(e.Path))
}

func (e *UnboundedRangeError) Code() Code { return ErrCodeUnboundedRange }

// RelocationCycleError reports a relocation chain that revisits a coordinate.
type RelocationCycleError struct {
	Coordinate string
	Chain      []string
}

func (e *RelocationCycleError) Error() string {
	return fmt.Sprintf("relocation cycle at %s: %s", e.Coordinate, strings.Join(append(e.Chain, e.Coordinate), " -> "))
}

func (e *RelocationCycleError) Code() Code { return ErrCodeRelocationCycle }

// DescriptorMissingError reports that no descriptor document exists for an
// otherwise valid coordinate.
type DescriptorMissingError struct {
	Coordinate string
	Path       []string
	Cause      error
}

func (e *DescriptorMissingError) Error() string {
	msg := fmt.Sprintf("missing descriptor for %s%s", e.Coordinate, formatPath(e.Path))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DescriptorMissingError) Unwrap() error { return e.Cause }
func (e *DescriptorMissingError) Code() Code    { return ErrCodeDescriptorMissing }

// DescriptorInvalidError reports a descriptor that exists but cannot be
// parsed or built into an effective model.
type DescriptorInvalidError struct {
	Coordinate string
	Path       []string
	Cause      error
}

func (e *DescriptorInvalidError) Error() string {
	msg := fmt.Sprintf("invalid descriptor for %s%s", e.Coordinate, formatPath(e.Path))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DescriptorInvalidError) Unwrap() error { return e.Cause }
func (e *DescriptorInvalidError) Code() Code    { return ErrCodeDescriptorInvalid }

// VersionResolutionError reports a version (symbolic, snapshot or range)
// that no repository metadata could satisfy.
type VersionResolutionError struct {
	Coordinate   string
	Repositories []string
	Path         []string
	Cause        error
}

func (e *VersionResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve version for %s%s", e.Coordinate, formatPath(e.Path))
	if len(e.Repositories) > 0 {
		msg += fmt.Sprintf(" (searched %s)", strings.Join(e.Repositories, ", "))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *VersionResolutionError) Unwrap() error { return e.Cause }
func (e *VersionResolutionError) Code() Code    { return ErrCodeVersionResolution }

// ArtifactNotFoundError reports an artifact absent from every repository
// consulted. Cached is true when the outcome came from a tracking file
// rather than a fresh network check.
type ArtifactNotFoundError struct {
	Coordinate string
	Repository string
	Cached     bool
	Cause      error
}

func (e *ArtifactNotFoundError) Error() string {
	msg := fmt.Sprintf("could not find artifact %s", e.Coordinate)
	if e.Repository != "" {
		msg += " in " + e.Repository
	}
	if e.Cached {
		msg += " (cached, will not retry until the update interval elapses)"
	}
	return msg
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Cause }
func (e *ArtifactNotFoundError) Code() Code    { return ErrCodeArtifactNotFound }

// TransferError reports a failed transfer that is not a plain not-found.
type TransferError struct {
	Coordinate string
	Repository string
	Cached     bool
	Cause      error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("could not transfer %s", e.Coordinate)
	if e.Repository != "" {
		msg += " from " + e.Repository
	}
	if e.Cached {
		msg += " (cached)"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() error { return e.Cause }
func (e *TransferError) Code() Code    { return ErrCodeTransfer }

// UnresolvableModelError is returned by model resolvers when no descriptor
// matches the requested coordinate.
type UnresolvableModelError struct {
	GroupID    string
	ArtifactID string
	Version    string
	Cause      error
}

func (e *UnresolvableModelError) Error() string {
	msg := fmt.Sprintf("unresolvable model %s:%s:%s", e.GroupID, e.ArtifactID, e.Version)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnresolvableModelError) Unwrap() error { return e.Cause }
func (e *UnresolvableModelError) Code() Code    { return ErrCodeUnresolvableModel }

// CollectionError wraps the first failure met while expanding a dependency
// graph, together with the path from the root to the failing node.
type CollectionError struct {
	Root  string
	Path  []string
	Cause error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("failed to collect dependencies of %s%s: %v", e.Root, formatPath(e.Path), e.Cause)
}

func (e *CollectionError) Unwrap() error { return e.Cause }
func (e *CollectionError) Code() Code    { return ErrCodeCollection }

// PluginResolutionError wraps any failure while resolving a plugin artifact
// or its dependency graph.
type PluginResolutionError struct {
	Plugin string
	Cause  error
}

func (e *PluginResolutionError) Error() string {
	return fmt.Sprintf("plugin %s or one of its dependencies could not be resolved: %v", e.Plugin, e.Cause)
}

func (e *PluginResolutionError) Unwrap() error { return e.Cause }
func (e *PluginResolutionError) Code() Code    { return ErrCodePluginResolution }

func formatPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return " (path: " + strings.Join(path, " -> ") + ")"
}
