package stability

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
)

// Defaults for stability detection.
const (
	DefaultThreshold    = 0.02
	DefaultStableTicks  = 60
	DefaultRebuildRatio = 0.5
)

// Config controls convergence detection and re-stabilization.
type Config struct {
	// Threshold is the average per-node movement per tick below which a
	// tick counts toward the stable streak.
	Threshold float64 `json:"threshold" toml:"threshold" yaml:"threshold"`

	// StableTicks is the streak length that triggers the stable notification.
	StableTicks int `json:"stable_ticks" toml:"stable_ticks" yaml:"stable_ticks"`

	// RebuildRatio is the fraction of changed membership above which
	// [Controller.Update] runs a fresh warmup instead of ticking on.
	RebuildRatio float64 `json:"rebuild_ratio" toml:"rebuild_ratio" yaml:"rebuild_ratio"`

	Physics layout.PhysicsConfig `json:"physics" toml:"physics" yaml:"physics"`
	Solve   layout.SolveOptions  `json:"solve" toml:"solve" yaml:"solve"`
}

// DefaultConfig returns the standard controller configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:    DefaultThreshold,
		StableTicks:  DefaultStableTicks,
		RebuildRatio: DefaultRebuildRatio,
		Physics:      layout.DefaultPhysics(),
		Solve:        layout.DefaultSolveOptions(),
	}
}

// Snapshot is the position set published when the layout stabilizes.
type Snapshot struct {
	ID        uuid.UUID            `json:"id"`
	Tick      uint64               `json:"tick"`
	At        time.Time            `json:"at"`
	Positions map[string]geom.Vec3 `json:"positions"`
}

// TickResult reports a single controller tick.
type TickResult struct {
	layout.StepResult
	Streak int  // consecutive low-movement ticks so far
	Stable bool // the stable notification fired on this tick
}

// UpdateResult reports how [Controller.Update] absorbed a new graph.
type UpdateResult struct {
	Sync    layout.SyncResult
	Rebuilt bool
	Warmup  layout.WarmupResult
	Fit     layout.FitResult
}

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller drives a [layout.Engine] and decides when the layout is
// stable.
//
// Exactly one stable notification fires per stabilization episode. The
// controller re-arms when movement rises above the threshold, when nodes
// are added or removed, and when a drag is released. While a node is being
// dragged the streak is held at zero.
//
// Controller is not safe for concurrent use.
type Controller struct {
	engine    *layout.Engine
	cfg       Config
	streak    int
	fired     bool
	ticks     uint64
	listeners []func(Snapshot)
	logger    *log.Logger
	now       func() time.Time
}

// New wraps engine in a controller.
func New(engine *layout.Engine, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		engine: engine,
		cfg:    cfg,
		logger: log.New(io.Discard),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine returns the wrapped layout engine.
func (c *Controller) Engine() *layout.Engine { return c.engine }

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// SetPhysics replaces the physics parameters used by subsequent ticks and
// re-arms the stable notification.
func (c *Controller) SetPhysics(p layout.PhysicsConfig) {
	c.cfg.Physics = p
	c.rearm()
}

// OnStable registers fn to be called with a snapshot each time the layout
// stabilizes.
func (c *Controller) OnStable(fn func(Snapshot)) {
	c.listeners = append(c.listeners, fn)
}

// Stable reports whether the current episode has already fired.
func (c *Controller) Stable() bool { return c.fired }

// Ticks returns the number of ticks processed.
func (c *Controller) Ticks() uint64 { return c.ticks }

// Load replaces the graph, restores saved positions and solves the layout
// for first display.
func (c *Controller) Load(ctx context.Context, g *dag.DAG, saved map[string]geom.Vec3) (layout.SolveResult, error) {
	c.engine.SetGraph(g, saved)
	res, err := c.engine.Solve(ctx, c.cfg.Physics, c.cfg.Solve)
	if err != nil {
		return res, err
	}
	c.rearm()
	c.logger.Debug("layout loaded",
		"nodes", c.engine.NodeCount(),
		"fast_path", res.FastPath,
		"iterations", res.Warmup.Iterations,
		"converged", res.Warmup.Converged)
	return res, nil
}

// Update absorbs a changed graph. Small membership changes keep ticking
// from the current layout with newcomers spawned near their neighbours;
// changes above RebuildRatio run a fresh warmup.
func (c *Controller) Update(ctx context.Context, g *dag.DAG) (UpdateResult, error) {
	prev := c.engine.NodeCount()
	sync := c.engine.SetGraph(g, nil)
	res := UpdateResult{Sync: sync}

	if sync.Added == 0 && sync.Removed == 0 {
		return res, nil
	}
	c.rearm()

	base := max(prev, c.engine.NodeCount())
	if base == 0 || float64(sync.Added+sync.Removed)/float64(base) <= c.cfg.RebuildRatio {
		c.logger.Debug("incremental update", "added", sync.Added, "removed", sync.Removed)
		return res, nil
	}

	w, err := c.engine.Warmup(ctx, c.cfg.Physics, c.cfg.Solve.Warmup)
	if err != nil {
		return res, err
	}
	dense := layout.Dense(c.engine.NodeCount(), c.engine.EdgeCount(), c.cfg.Solve.Dense)
	res.Rebuilt, res.Warmup = true, w
	res.Fit = c.engine.Fit(c.cfg.Solve.TargetRadius, dense)
	c.logger.Debug("rebuilt layout", "added", sync.Added, "removed", sync.Removed, "iterations", w.Iterations)
	return res, nil
}

// Drag pins id to target for subsequent ticks.
func (c *Controller) Drag(id string, target geom.Vec3) bool {
	if !c.engine.Drag(id, target) {
		return false
	}
	c.streak = 0
	return true
}

// Release ends a drag and re-arms the stable notification.
func (c *Controller) Release() {
	if !c.engine.Dragging() {
		return
	}
	c.engine.Release()
	c.rearm()
}

// Tick advances the simulation by dt and updates the stable streak. An
// empty graph is a no-op.
func (c *Controller) Tick(dt time.Duration) TickResult {
	if c.engine.NodeCount() == 0 {
		return TickResult{}
	}
	c.ticks++
	step := c.engine.Step(dt, c.cfg.Physics)
	res := TickResult{StepResult: step}

	if c.engine.Dragging() {
		c.streak = 0
		return res
	}
	if step.Average >= c.cfg.Threshold {
		c.streak = 0
		c.fired = false
		return res
	}

	c.streak++
	res.Streak = c.streak
	if c.streak >= c.cfg.StableTicks && !c.fired {
		c.fired = true
		res.Stable = true
		snap := c.Snapshot()
		c.logger.Debug("layout stable", "tick", c.ticks, "nodes", len(snap.Positions))
		for _, fn := range c.listeners {
			fn(snap)
		}
	}
	return res
}

// Snapshot captures the current positions.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		Tick:      c.ticks,
		At:        c.now(),
		Positions: c.engine.Positions(),
	}
}

func (c *Controller) rearm() {
	c.streak = 0
	c.fired = false
}
