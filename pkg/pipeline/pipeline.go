// Package pipeline runs a complete resolution: project POM or coordinate,
// dependency collection, classpath filtering and the outputs a caller asked
// for.
//
// The CLI and the repository server share this package so a graph is
// resolved and rendered the same way whatever the entry point.
//
// # Stages
//
//  1. Resolve: read the project POM (or take a coordinate) and collect its
//     dependency graph through pkg/collect.
//  2. Filter: prune the graph to the requested classpath.
//  3. Render: produce tree, list, json, dot or svg outputs. SVG layout is
//     the only expensive step and is cached by graph content.
//
// # Usage
//
//	runner := pipeline.NewRunner(reader, collector, cache, nil, logger)
//	result, err := runner.Execute(ctx, s, pipeline.Options{
//	    Project: "pom.xml",
//	    Scope:   "runtime",
//	    Formats: []string{"tree"},
//	})
//	os.Stdout.Write(result.Outputs["tree"])
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mvnresolve/pkg/artifact"
	"github.com/matzehuels/mvnresolve/pkg/collect"
	graphio "github.com/matzehuels/mvnresolve/pkg/io"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultScope is the classpath used when Options.Scope is empty. It keeps
// every scope.
const DefaultScope = "test"

// DefaultRenderTTL is how long a rendered SVG stays in the cache.
const DefaultRenderTTL = 7 * 24 * time.Hour

// Format constants for output formats.
const (
	FormatTree = "tree"
	FormatList = "list"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatTree: true,
	FormatList: true,
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// Project is the path of a pom.xml. Exactly one of Project and
	// Coordinate is set.
	Project string `json:"project,omitempty"`

	// Coordinate is a groupId:artifactId[:extension[:classifier]]:version
	// whose own descriptor supplies the dependencies.
	Coordinate string `json:"coordinate,omitempty"`

	// Scope names the classpath to keep: compile, runtime, test,
	// compile+runtime or runtime+system.
	Scope string `json:"scope,omitempty"`

	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// ResolveFiles downloads the artifact of every kept node and records
	// its local path.
	ResolveFiles bool `json:"resolve_files,omitempty"`

	// Refresh bypasses the render cache.
	Refresh bool `json:"refresh,omitempty"`

	Repositories []artifact.RemoteRepository `json:"-"`
	Logger       *log.Logger                 `json:"-"`

	validated bool
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: tree, list, json, dot, svg)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it again has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	switch {
	case o.Project == "" && o.Coordinate == "":
		return fmt.Errorf("project or coordinate is required")
	case o.Project != "" && o.Coordinate != "":
		return fmt.Errorf("project and coordinate are mutually exclusive")
	}
	if o.Scope == "" {
		o.Scope = DefaultScope
	}
	if _, err := collect.ClasspathFilter(o.Scope); err != nil {
		return err
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatTree}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Root is the project or coordinate the graph was collected for.
	Root artifact.Artifact

	// Collection is the unfiltered collection result.
	Collection *collect.Result

	// Graph is the filtered graph in its exported form.
	Graph *graphio.Graph

	// GraphHash is the content hash of the exported graph.
	GraphHash string

	// Outputs contains rendered outputs keyed by format.
	Outputs map[string][]byte

	// Unresolved lists the kept artifacts whose files could not be
	// resolved when Options.ResolveFiles is set.
	Unresolved []error

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	Conflicts   int
	ResolveTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	RenderHit bool
}
