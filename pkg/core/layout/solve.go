package layout

import (
	"context"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// Warmup and fit defaults.
const (
	DefaultWarmupMin          = 200
	DefaultWarmupMax          = 1600
	DefaultWarmupPerNode      = 10
	DefaultWarmupThreshold    = 0.01
	DefaultWarmupQuietTicks   = 10
	DefaultWarmupDt           = time.Second / 60
	DefaultTargetRadius       = 60.0
	DefaultDenseMinNodes      = 150
	DefaultDenseEdgesPerNode  = 2.0
	DefaultFastPathSavedRatio = 0.5
)

// WarmupOptions bounds a batch solve.
type WarmupOptions struct {
	MinIterations   int           `json:"min_iterations" toml:"min_iterations" yaml:"min_iterations"`
	MaxIterations   int           `json:"max_iterations" toml:"max_iterations" yaml:"max_iterations"`
	PerNode         int           `json:"per_node" toml:"per_node" yaml:"per_node"`
	Threshold       float64       `json:"threshold" toml:"threshold" yaml:"threshold"`
	QuietIterations int           `json:"quiet_iterations" toml:"quiet_iterations" yaml:"quiet_iterations"`
	Dt              time.Duration `json:"dt" toml:"dt" yaml:"dt"`
}

// DefaultWarmupOptions returns the standard warmup bounds.
func DefaultWarmupOptions() WarmupOptions {
	return WarmupOptions{
		MinIterations:   DefaultWarmupMin,
		MaxIterations:   DefaultWarmupMax,
		PerNode:         DefaultWarmupPerNode,
		Threshold:       DefaultWarmupThreshold,
		QuietIterations: DefaultWarmupQuietTicks,
		Dt:              DefaultWarmupDt,
	}
}

// Iterations returns the iteration budget for a graph of n nodes:
// n*PerNode bounded to [MinIterations, MaxIterations].
func (o WarmupOptions) Iterations(n int) int {
	return min(o.MaxIterations, max(o.MinIterations, n*o.PerNode))
}

// WarmupResult reports how a batch solve ended.
type WarmupResult struct {
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Movement   float64 `json:"movement"` // average movement of the last iteration
}

// Warmup runs the simulation without pacing until movement stays below
// opts.Threshold for opts.QuietIterations consecutive iterations or the
// iteration budget is spent.
//
// The solve runs on a private copy of the position buffer. The result is
// committed only when the solve completes; if ctx is cancelled the engine
// is left exactly as it was and ctx.Err() is returned.
func (e *Engine) Warmup(ctx context.Context, cfg PhysicsConfig, opts WarmupOptions) (WarmupResult, error) {
	var res WarmupResult
	n := e.cur.store.Len()
	if n == 0 {
		res.Converged = true
		return res, nil
	}

	sim := e.cur.clone()
	budget := opts.Iterations(n)
	quiet := 0
	for res.Iterations < budget {
		if err := ctx.Err(); err != nil {
			return WarmupResult{}, err
		}
		step := e.step(sim, opts.Dt, cfg)
		res.Iterations++
		res.Movement = step.Average
		if step.Average < opts.Threshold {
			quiet++
			if quiet >= opts.QuietIterations {
				res.Converged = true
				break
			}
		} else {
			quiet = 0
		}
	}
	e.cur = sim
	return res, nil
}

// FitResult reports the transform applied by [Engine.Fit].
type FitResult struct {
	Center geom.Vec3 `json:"center"` // center of mass before recentering
	Radius float64   `json:"radius"` // bounding radius before scaling
	Scale  float64   `json:"scale"`
}

// Fit recenters the layout on its center of mass and scales it so the
// bounding radius equals targetRadius. Layouts are only ever shrunk unless
// allowGrow is set. Velocities are cleared.
func (e *Engine) Fit(targetRadius float64, allowGrow bool) FitResult {
	slots := e.cur.store.slots
	res := FitResult{Scale: 1}

	var pts []geom.Vec3
	for i := range slots {
		if slots[i].live {
			pts = append(pts, slots[i].pos)
		}
	}
	if len(pts) == 0 {
		return res
	}
	res.Center = geom.Mean(pts)
	for _, p := range pts {
		res.Radius = max(res.Radius, p.Dist(res.Center))
	}
	if res.Radius > 0 && targetRadius > 0 && (res.Radius > targetRadius || allowGrow) {
		res.Scale = targetRadius / res.Radius
	}

	for i := range slots {
		if !slots[i].live {
			continue
		}
		slots[i].pos = slots[i].pos.Sub(res.Center).Scale(res.Scale)
		slots[i].vel = geom.Vec3{}
	}
	clear(e.cur.centroids)
	return res
}

// DenseOptions classifies graphs that are allowed to grow when fitted.
type DenseOptions struct {
	MinNodes     int     `json:"min_nodes" toml:"min_nodes" yaml:"min_nodes"`
	EdgesPerNode float64 `json:"edges_per_node" toml:"edges_per_node" yaml:"edges_per_node"`
}

// Dense reports whether a graph with the given size counts as dense.
func Dense(nodes, edges int, opts DenseOptions) bool {
	return nodes >= opts.MinNodes && float64(edges) >= opts.EdgesPerNode*float64(nodes)
}

// SolveOptions configures [Engine.Solve].
type SolveOptions struct {
	TargetRadius float64       `json:"target_radius" toml:"target_radius" yaml:"target_radius"`
	SavedRatio   float64       `json:"saved_ratio" toml:"saved_ratio" yaml:"saved_ratio"`
	Warmup       WarmupOptions `json:"warmup" toml:"warmup" yaml:"warmup"`
	Dense        DenseOptions  `json:"dense" toml:"dense" yaml:"dense"`
}

// DefaultSolveOptions returns the standard solve configuration.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		TargetRadius: DefaultTargetRadius,
		SavedRatio:   DefaultFastPathSavedRatio,
		Warmup:       DefaultWarmupOptions(),
		Dense: DenseOptions{
			MinNodes:     DefaultDenseMinNodes,
			EdgesPerNode: DefaultDenseEdgesPerNode,
		},
	}
}

// SolveResult reports what [Engine.Solve] did.
type SolveResult struct {
	FastPath bool         `json:"fast_path"`
	Dense    bool         `json:"dense"`
	Warmup   WarmupResult `json:"warmup"`
	Fit      FitResult    `json:"fit"`
}

// Solve produces a display-ready layout for the graph last passed to
// [Engine.SetGraph].
//
// When more than opts.SavedRatio of the nodes were restored from saved
// positions and the graph is not dense, warmup is skipped and the layout is
// only refitted. Otherwise a full warmup runs first.
func (e *Engine) Solve(ctx context.Context, cfg PhysicsConfig, opts SolveOptions) (SolveResult, error) {
	n := e.NodeCount()
	res := SolveResult{Dense: Dense(n, e.edgeIDs, opts.Dense)}
	if n == 0 {
		return res, nil
	}

	restored := n - e.lastSync.Spawned
	if !res.Dense && float64(restored) > opts.SavedRatio*float64(n) {
		res.FastPath = true
		res.Fit = e.Fit(opts.TargetRadius, false)
		return res, nil
	}

	w, err := e.Warmup(ctx, cfg, opts.Warmup)
	if err != nil {
		return res, err
	}
	res.Warmup = w
	res.Fit = e.Fit(opts.TargetRadius, res.Dense)
	return res, nil
}
