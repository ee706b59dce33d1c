// Package pipeline provides the simplify → layout → render pipeline shared
// by the CLI and the API server.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Simplify: elide technical declarations, reduce transitive edges and
//     prune orphans ([transform.Simplify])
//  2. Layout: seed a [layout.Engine] with saved positions and solve it
//  3. Render: export the simplified graph as DOT, SVG or layout JSON
//
// Each stage can be run independently or as part of the complete pipeline.
// Simplify and layout results are cached by content hash.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	runner.Positions = store
//	opts := pipeline.DefaultOptions()
//	opts.Project = "mathlib"
//	result, err := runner.Execute(ctx, g, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	positions := result.Layout.Positions
//
// Run individual stages:
//
//	simplified, report, err := runner.Simplify(ctx, g, opts)
//	l, err := runner.Layout(ctx, simplified, report, opts)
//	svg, err := runner.Render(ctx, simplified, l, opts)
//
// Simulations driven by a [stability.Controller] hand their stable
// snapshots to a [StableSink], which merges them into the positions store
// and publishes them as events.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/astrolabe/pkg/cache"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/render/nodelink"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultSeed is the default random seed for reproducible spawning.
	DefaultSeed = uint64(42)

	// DefaultProject keys positions when no project is named.
	DefaultProject = "default"

	// DefaultClusterDepth is the namespace depth used to group nodes in
	// rendered diagrams.
	DefaultClusterDepth = 1

	// DefaultFormat is the default render format.
	DefaultFormat = FormatSVG
)

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatSVG:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Project keys persisted positions.
	Project string `json:"project,omitempty"`

	// Simplify options. The zero value applies no simplification; start
	// from [DefaultOptions] for the standard view.
	Simplify transform.Options `json:"simplify"`

	// Layout options. Zero values are replaced by the layout defaults.
	Physics layout.PhysicsConfig `json:"physics"`
	Solve   layout.SolveOptions  `json:"solve"`
	Seed    uint64               `json:"seed,omitempty"`

	// Positions seeds the layout. When nil, positions are loaded from the
	// runner's store for Project.
	Positions map[string]geom.Vec3 `json:"positions,omitempty"`

	// Persist merges solved positions back into the runner's store.
	Persist bool `json:"persist,omitempty"`

	// Refresh bypasses cache reads. Results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Render options
	Format       string `json:"format,omitempty"`
	ClusterDepth int    `json:"cluster_depth,omitempty"`
	Detailed     bool   `json:"detailed,omitempty"`
	// Pinned renders SVG with nodes fixed at their solved XY positions.
	Pinned bool `json:"pinned,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// DefaultOptions returns options with every stage at its default.
func DefaultOptions() Options {
	return Options{
		Project:      DefaultProject,
		Simplify:     transform.DefaultOptions(),
		Physics:      layout.DefaultPhysics(),
		Solve:        layout.DefaultSolveOptions(),
		Seed:         DefaultSeed,
		Format:       DefaultFormat,
		ClusterDepth: DefaultClusterDepth,
	}
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Input is the graph as read, before simplification.
	Input *dag.DAG

	// Graph is the simplified graph.
	Graph *dag.DAG

	// GraphHash is the content hash of the simplified graph.
	GraphHash string

	// Simplify reports what simplification removed.
	Simplify transform.Result

	// Layout holds the simplified graph with solved positions.
	Layout graph.Layout

	// Artifact is the rendered output in Options.Format.
	Artifact []byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount       int
	EdgeCount       int
	SimplifiedNodes int
	SimplifiedEdges int
	SimplifyTime    time.Duration
	LayoutTime      time.Duration
	RenderTime      time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SimplifyHit bool // Whether the simplified graph came from cache
	LayoutHit   bool // Whether the layout came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput,
			"invalid format: %q (must be one of: dot, svg, json)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults for the
// full pipeline. This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.Project == "" {
		o.Project = DefaultProject
	}
	if o.Physics == (layout.PhysicsConfig{}) {
		o.Physics = layout.DefaultPhysics()
	}
	if o.Solve == (layout.SolveOptions{}) {
		o.Solve = layout.DefaultSolveOptions()
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForLayout sets defaults and validates layout options.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if err := errors.ValidateProject(o.Project); err != nil {
		return err
	}
	if err := o.Physics.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid physics")
	}
	for id, p := range o.Positions {
		if !p.IsFinite() {
			return errors.New(errors.ErrCodeInvalidInput, "position of %q must be finite", id)
		}
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender sets defaults and validates render options.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if o.ClusterDepth < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cluster_depth must not be negative")
	}
	return ValidateFormat(o.Format)
}

// SimplifyKeyOpts returns cache key options for simplification.
func (o *Options) SimplifyKeyOpts() cache.SimplifyKeyOpts {
	return cache.SimplifyKeyOpts{
		HideTechnical:       o.Simplify.HideTechnical,
		TransitiveReduction: o.Simplify.TransitiveReduction,
		HideOrphaned:        o.Simplify.HideOrphaned,
		BreakCycles:         o.Simplify.BreakCycles,
	}
}

// LayoutKeyOpts returns cache key options for a layout seeded with saved.
func (o *Options) LayoutKeyOpts(saved map[string]geom.Vec3) cache.LayoutKeyOpts {
	k := cache.LayoutKeyOpts{
		Seed: o.Seed,
		ConfigHash: cache.HashJSON(struct {
			Physics layout.PhysicsConfig
			Solve   layout.SolveOptions
		}{o.Physics, o.Solve}),
	}
	if len(saved) > 0 {
		k.PositionsHash = cache.HashJSON(saved)
	}
	return k
}

// RenderEngine returns the Graphviz layout engine for the options.
func (o *Options) RenderEngine() string {
	if o.Pinned {
		return nodelink.EngineNeato
	}
	return nodelink.EngineDot
}
