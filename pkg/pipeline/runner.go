package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/astrolabe/pkg/cache"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/events"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/observability"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

// Runner encapsulates pipeline execution with caching and position
// persistence. Both CLI and API use it to avoid duplicating that logic.
//
// The Runner is stateless except for its backends and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache     cache.Cache
	Keyer     cache.Keyer
	Positions positions.Store
	Publisher events.Publisher
	Logger    *log.Logger

	// TTL overrides the per-stage cache TTLs when positive.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// Positions and Publisher start as no-ops; set the fields to enable them.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:     c,
		Keyer:     keyer,
		Positions: positions.NullStore{},
		Publisher: events.NopPublisher{},
		Logger:    logger,
	}
}

// Execute runs the complete simplify → layout → render pipeline.
func (r *Runner) Execute(ctx context.Context, g *dag.DAG, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{Input: g}
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()

	// Stage 1: Simplify
	start := time.Now()
	simplified, report, hit, err := r.SimplifyWithCacheInfo(ctx, g, opts)
	if err != nil {
		return nil, fmt.Errorf("simplify: %w", err)
	}
	result.Graph = simplified
	result.Simplify = report
	result.Stats.SimplifyTime = time.Since(start)
	result.Stats.SimplifiedNodes = simplified.NodeCount()
	result.Stats.SimplifiedEdges = simplified.EdgeCount()
	result.CacheInfo.SimplifyHit = hit
	if data, err := graph.MarshalGraph(simplified); err == nil {
		result.GraphHash = cache.Hash(data)
	}

	r.Logger.Info("simplified graph",
		"nodes", g.NodeCount(),
		"kept", simplified.NodeCount(),
		"synthetic", report.SyntheticEdgesCreated,
		"duration", result.Stats.SimplifyTime)

	// Stage 2: Layout
	start = time.Now()
	l, hit, err := r.LayoutWithCacheInfo(ctx, simplified, report, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(start)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("computed layout",
		"positions", len(l.Positions),
		"fast_path", l.Solve.FastPath,
		"iterations", l.Solve.Warmup.Iterations,
		"duration", result.Stats.LayoutTime)

	// Stage 3: Render
	start = time.Now()
	artifact, err := r.Render(ctx, simplified, l, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifact = artifact
	result.Stats.RenderTime = time.Since(start)

	r.Logger.Debug("rendered output",
		"format", opts.Format,
		"bytes", len(artifact),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// simplifyEntry is the cached form of a simplification.
type simplifyEntry struct {
	Graph  graph.Graph      `json:"graph"`
	Result transform.Result `json:"result"`
}

// SimplifyWithCacheInfo simplifies a copy of g with caching and returns
// cache hit info. The input graph is never modified.
func (r *Runner) SimplifyWithCacheInfo(ctx context.Context, g *dag.DAG, opts Options) (*dag.DAG, transform.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, transform.Result{}, false, err
	}
	r.applyLogger(&opts)

	graphData, err := graph.MarshalGraph(g)
	if err != nil {
		return nil, transform.Result{}, false, fmt.Errorf("serialize graph for cache key: %w", err)
	}
	cacheKey := r.Keyer.SimplifyKey(cache.Hash(graphData), opts.SimplifyKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var entry simplifyEntry
			if err := json.Unmarshal(data, &entry); err == nil {
				simplified, _ := graph.ToDAG(entry.Graph)
				observability.Cache().OnCacheHit(ctx, cache.KeyTypeSimplify)
				return simplified, entry.Result, true, nil
			}
		} else if err != nil {
			opts.Logger.Warn("cache read failed", "key_type", cache.KeyTypeSimplify, "error", err)
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeSimplify)
	}

	hooks := observability.Pipeline()
	hooks.OnSimplifyStart(ctx, g.NodeCount())
	start := time.Now()

	simplified := g.Clone()
	report := transform.Simplify(simplified, opts.Simplify)

	hooks.OnSimplifyComplete(ctx, g.NodeCount(), report.RemovedNodes+report.OrphanedNodes, time.Since(start), nil)

	data, err := json.Marshal(simplifyEntry{Graph: graph.FromDAG(simplified), Result: report})
	if err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, r.ttl(cache.DefaultSimplifyTTL)); err != nil {
			opts.Logger.Warn("cache write failed", "key_type", cache.KeyTypeSimplify, "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cache.KeyTypeSimplify, len(data))
		}
	}

	return simplified, report, false, nil
}

// Simplify is a convenience wrapper that calls SimplifyWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Simplify(ctx context.Context, g *dag.DAG, opts Options) (*dag.DAG, transform.Result, error) {
	simplified, report, _, err := r.SimplifyWithCacheInfo(ctx, g, opts)
	return simplified, report, err
}

// LayoutWithCacheInfo solves positions for a simplified graph with caching
// and returns cache hit info.
//
// The engine is seeded with opts.Positions, or with the positions stored
// for opts.Project when opts.Positions is nil. With opts.Persist the solved
// positions are merged back into the store.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, g *dag.DAG, report transform.Result, opts Options) (graph.Layout, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		return graph.Layout{}, false, err
	}

	saved, err := r.savedPositions(ctx, opts)
	if err != nil {
		return graph.Layout{}, false, err
	}

	// Compute cache key
	graphData, err := graph.MarshalGraph(g)
	if err != nil {
		return graph.Layout{}, false, fmt.Errorf("serialize graph for cache key: %w", err)
	}
	cacheKey := r.Keyer.LayoutKey(cache.Hash(graphData), opts.LayoutKeyOpts(saved))

	// Try cache first
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			cached, err := graph.UnmarshalLayout(data)
			if err == nil {
				observability.Cache().OnCacheHit(ctx, cache.KeyTypeLayout)
				return cached, true, r.persist(ctx, opts, cached.Positions)
			}
			// If deserialization fails, fall through to recompute
		}
		observability.Cache().OnCacheMiss(ctx, cache.KeyTypeLayout)
	}

	l, err := r.solve(ctx, g, report, saved, opts)
	if err != nil {
		return graph.Layout{}, false, err
	}

	// Cache the result
	if data, err := graph.MarshalLayout(l); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, r.ttl(cache.DefaultLayoutTTL)); err != nil {
			opts.Logger.Warn("cache write failed", "key_type", cache.KeyTypeLayout, "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cache.KeyTypeLayout, len(data))
		}
	}

	return l, false, r.persist(ctx, opts, l.Positions)
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, g *dag.DAG, report transform.Result, opts Options) (graph.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, g, report, opts)
	return l, err
}

func (r *Runner) solve(ctx context.Context, g *dag.DAG, report transform.Result, saved map[string]geom.Vec3, opts Options) (graph.Layout, error) {
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, g.NodeCount())
	start := time.Now()

	engine := layout.New(layout.WithSeed(opts.Seed))
	sync := engine.SetGraph(g, saved)
	res, err := engine.Solve(ctx, opts.Physics, opts.Solve)
	hooks.OnLayoutComplete(ctx, res.Warmup.Iterations, res.FastPath, time.Since(start), err)
	if err != nil {
		return graph.Layout{}, errors.Wrap(errors.ErrCodeTimeout, err, "layout solve interrupted")
	}

	opts.Logger.Debug("solved layout",
		"restored", sync.Restored,
		"spawned", sync.Spawned,
		"dense", res.Dense,
		"converged", res.Warmup.Converged)

	return graph.NewLayout(graph.FromDAG(g), engine.Positions(), report, res, opts.Solve.TargetRadius), nil
}

func (r *Runner) savedPositions(ctx context.Context, opts Options) (map[string]geom.Vec3, error) {
	if opts.Positions != nil {
		return opts.Positions, nil
	}
	saved, err := r.Positions.Load(ctx, opts.Project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "load positions for %q", opts.Project)
	}
	return saved, nil
}

func (r *Runner) persist(ctx context.Context, opts Options, p map[string]geom.Vec3) error {
	if !opts.Persist || len(p) == 0 {
		return nil
	}
	total, err := r.Positions.Merge(ctx, opts.Project, p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "save positions for %q", opts.Project)
	}
	opts.Logger.Debug("persisted positions", "project", opts.Project, "written", len(p), "stored", total)
	return nil
}

// SavePositions merges p into the stored positions of project and returns
// the total stored count.
func (r *Runner) SavePositions(ctx context.Context, project string, p map[string]geom.Vec3) (int, error) {
	if err := errors.ValidateProject(project); err != nil {
		return 0, err
	}
	if err := positions.Validate(p); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid positions")
	}
	total, err := r.Positions.Merge(ctx, project, p)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStorage, err, "save positions for %q", project)
	}
	return total, nil
}

// LoadPositions returns the stored positions of project.
func (r *Runner) LoadPositions(ctx context.Context, project string) (map[string]geom.Vec3, error) {
	if err := errors.ValidateProject(project); err != nil {
		return nil, err
	}
	p, err := r.Positions.Load(ctx, project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "load positions for %q", project)
	}
	return p, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var first error
	for _, c := range []interface{ Close() error }{r.Cache, r.Positions, r.Publisher} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
