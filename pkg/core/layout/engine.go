package layout

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/cluster"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// Spawn defaults.
const (
	DefaultSeed        uint64 = 42
	DefaultSpawnRadius        = 30.0
	DefaultSpawnJitter        = 2.0
)

// Option configures an [Engine].
type Option func(*Engine)

// WithSeed sets the random seed used for spawn positions.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithSpawnRadius sets the radius of the shell that unconnected new nodes
// spawn on.
func WithSpawnRadius(r float64) Option {
	return func(e *Engine) { e.spawnRadius = r }
}

// WithSpawnJitter sets how far from a positioned neighbour a new node spawns.
func WithSpawnJitter(j float64) Option {
	return func(e *Engine) { e.spawnJitter = j }
}

// state is everything a tick mutates. Warmup runs on a copy of it.
type state struct {
	store     *Store
	centroids map[string]geom.Vec3
}

func (s *state) clone() *state {
	c := &state{store: s.store.Clone(), centroids: make(map[string]geom.Vec3, len(s.centroids))}
	for k, v := range s.centroids {
		c.centroids[k] = v
	}
	return c
}

// SyncResult reports how [Engine.SetGraph] changed the node set.
type SyncResult struct {
	Added    int // nodes that were not in the engine before
	Removed  int // nodes deleted from the engine
	Restored int // added nodes placed at a saved position
	Spawned  int // added nodes placed by the spawn rule
}

// StepResult reports the movement of a single tick.
type StepResult struct {
	Nodes    int     // nodes integrated (dragged node excluded)
	Movement float64 // sum of per-node displacement
	Average  float64 // Movement / Nodes
}

// Engine is a 3D force-directed layout simulation.
//
// The engine is step-based and owns no clock: callers supply dt to
// [Engine.Step] at whatever cadence they render. It is not safe for
// concurrent use.
type Engine struct {
	cur *state

	nodes   []*dag.Node
	edges   [][2]int // slot index pairs, self-loops excluded
	degree  map[int]int
	edgeIDs int

	groups      cluster.Groups
	groupsDepth int

	drag       Handle
	dragTarget geom.Vec3
	dragging   bool

	lastSync SyncResult

	seed        uint64
	rng         *rand.Rand
	spawnRadius float64
	spawnJitter float64
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cur:         &state{store: NewStore(), centroids: map[string]geom.Vec3{}},
		degree:      map[int]int{},
		groupsDepth: -1,
		seed:        DefaultSeed,
		spawnRadius: DefaultSpawnRadius,
		spawnJitter: DefaultSpawnJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rng = rand.New(rand.NewPCG(e.seed, e.seed^0xdeadbeef))
	return e
}

// SetGraph synchronizes the engine with g.
//
// Nodes no longer in g are deleted immediately. Nodes already present keep
// their position and velocity. New nodes are placed at saved[id] when
// available, otherwise next to an already positioned neighbour, otherwise on
// a random point of the spawn shell. No node is ever placed at the origin.
func (e *Engine) SetGraph(g *dag.DAG, saved map[string]geom.Vec3) SyncResult {
	var res SyncResult
	st := e.cur.store

	present := make(map[string]bool, g.NodeCount())
	for _, id := range g.NodeIDs() {
		present[id] = true
	}
	for _, id := range st.IDs() {
		if !present[id] {
			st.Remove(id)
			res.Removed++
		}
	}

	for _, n := range g.Nodes() {
		if _, ok := st.Handle(n.ID); ok {
			continue
		}
		res.Added++
		if p, ok := saved[n.ID]; ok && p.IsFinite() && !p.IsZero() {
			st.Insert(n.ID, p)
			res.Restored++
			continue
		}
		st.Insert(n.ID, e.spawn(g, n.ID))
		res.Spawned++
	}

	e.nodes = g.Nodes()
	e.edges = e.edges[:0]
	e.degree = make(map[int]int, len(e.nodes))
	for _, edge := range g.Edges() {
		if edge.From == edge.To {
			continue
		}
		a, _ := st.Handle(edge.From)
		b, _ := st.Handle(edge.To)
		e.edges = append(e.edges, [2]int{a.Index, b.Index})
	}
	for _, n := range e.nodes {
		h, _ := st.Handle(n.ID)
		e.degree[h.Index] = g.Degree(n.ID).Total
	}
	e.edgeIDs = g.EdgeCount()
	e.groupsDepth = -1
	clear(e.cur.centroids)

	if e.dragging && !st.Valid(e.drag) {
		e.dragging = false
	}
	e.lastSync = res
	return res
}

func (e *Engine) spawn(g *dag.DAG, id string) geom.Vec3 {
	st := e.cur.store
	for _, nbrs := range [][]string{g.Children(id), g.Parents(id)} {
		for _, nb := range nbrs {
			if nb == id {
				continue
			}
			if p, ok := st.Lookup(nb); ok {
				return e.nonOrigin(p.Add(e.randomUnit().Scale(e.spawnJitter)))
			}
		}
	}
	r := e.spawnRadius * (0.8 + 0.4*e.rng.Float64())
	return e.nonOrigin(e.randomUnit().Scale(r))
}

func (e *Engine) nonOrigin(p geom.Vec3) geom.Vec3 {
	for p.IsZero() {
		p = e.randomUnit().Scale(e.spawnJitter)
	}
	return p
}

func (e *Engine) randomUnit() geom.Vec3 {
	// Marsaglia: uniform point on the unit sphere.
	for {
		u := 2*e.rng.Float64() - 1
		v := 2*e.rng.Float64() - 1
		s := u*u + v*v
		if s >= 1 || s == 0 {
			continue
		}
		k := 2 * math.Sqrt(1-s)
		return geom.Vec3{X: u * k, Y: v * k, Z: 1 - 2*s}
	}
}

// LastSync returns the result of the most recent [Engine.SetGraph].
func (e *Engine) LastSync() SyncResult { return e.lastSync }

// NodeCount returns the number of nodes in the simulation.
func (e *Engine) NodeCount() int { return e.cur.store.Len() }

// EdgeCount returns the number of edges of the graph last set.
func (e *Engine) EdgeCount() int { return e.edgeIDs }

// Positions returns a snapshot of every node position.
func (e *Engine) Positions() map[string]geom.Vec3 { return e.cur.store.Positions() }

// Position returns the current position of id.
func (e *Engine) Position(id string) (geom.Vec3, bool) { return e.cur.store.Lookup(id) }

// Store exposes the position arena for read access.
func (e *Engine) Store() *Store { return e.cur.store }

// Centroids returns the namespace centroids of the current positions.
func (e *Engine) Centroids(depth int) map[string]geom.Vec3 {
	return cluster.Centroids(cluster.Group(e.nodes, depth), e.Positions())
}

// Drag pins id to target until [Engine.Release]. Returns false if id is
// unknown.
func (e *Engine) Drag(id string, target geom.Vec3) bool {
	h, ok := e.cur.store.Handle(id)
	if !ok {
		return false
	}
	e.drag, e.dragTarget, e.dragging = h, target, true
	return true
}

// Release ends any active drag. The node resumes normal integration from
// rest.
func (e *Engine) Release() { e.dragging = false }

// Dragging reports whether a node is currently pinned.
func (e *Engine) Dragging() bool { return e.dragging }

// Step advances the simulation by dt. dt is clamped to cfg.MaxStep; a
// non-positive dt or an empty graph is a no-op.
func (e *Engine) Step(dt time.Duration, cfg PhysicsConfig) StepResult {
	return e.step(e.cur, dt, cfg)
}

func (e *Engine) step(st *state, dt time.Duration, cfg PhysicsConfig) StepResult {
	scale := cfg.stepScale(dt)
	slots := st.store.slots
	if scale == 0 || st.store.Len() == 0 {
		return StepResult{}
	}

	forces := make([]geom.Vec3, len(slots))
	e.applyRepulsion(slots, forces, cfg)
	e.applySprings(slots, forces, cfg)

	var groups cluster.Groups
	if cfg.Clustering.Enabled {
		groups = e.clusterGroups(cfg.Clustering.Depth)
	}
	for i := range slots {
		if !slots[i].live {
			continue
		}
		p := slots[i].pos
		forces[i] = forces[i].Sub(p.Scale(cfg.CenterStrength))
		if cfg.Clustering.Enabled {
			if c, ok := st.centroids[groups.NodeNamespace[slots[i].id]]; ok {
				forces[i] = forces[i].Add(cluster.Force(p, c, cfg.Clustering.Strength))
			}
		}
	}

	var res StepResult
	for i := range slots {
		sl := &slots[i]
		if !sl.live {
			continue
		}
		if e.dragging && i == e.drag.Index && sl.gen == e.drag.Gen {
			sl.pos, sl.vel = e.dragTarget, geom.Vec3{}
			continue
		}
		v := sl.vel.Add(forces[i].Scale(scale)).Scale(cfg.Damping).ClampLen(cfg.MaxVelocity)
		if !v.IsFinite() {
			v = geom.Vec3{}
		}
		delta := v.Scale(scale)
		sl.vel = v
		sl.pos = sl.pos.Add(delta)
		res.Nodes++
		res.Movement += delta.Len()
	}
	if res.Nodes > 0 {
		res.Average = res.Movement / float64(res.Nodes)
	}

	if cfg.Clustering.Enabled {
		st.centroids = cluster.Centroids(groups, st.store.Positions())
	}
	return res
}

func (e *Engine) clusterGroups(depth int) cluster.Groups {
	if e.groupsDepth != depth {
		e.groups = cluster.Group(e.nodes, depth)
		e.groupsDepth = depth
	}
	return e.groups
}

func (e *Engine) applyRepulsion(slots []slot, forces []geom.Vec3, cfg PhysicsConfig) {
	if cfg.RepulsionStrength == 0 {
		return
	}
	cutoff := cfg.RepulsionCutoff
	// Shifted so the force falls to exactly zero at the cutoff.
	shift := 0.0
	if cutoff > 0 {
		shift = cfg.RepulsionStrength / (cutoff * cutoff)
	}

	pair := func(i, j int) {
		d := slots[i].pos.Sub(slots[j].pos)
		l := d.Len()
		if cutoff > 0 && l >= cutoff {
			return
		}
		var dir geom.Vec3
		if l == 0 {
			dir = e.randomUnit()
		} else {
			dir = d.Scale(1 / l)
		}
		dist := max(l, cfg.MinDistance)
		f := cfg.RepulsionStrength/(dist*dist) - shift
		forces[i] = forces[i].Add(dir.Scale(f))
		forces[j] = forces[j].Sub(dir.Scale(f))
	}

	if cutoff <= 0 {
		for i := range slots {
			if !slots[i].live {
				continue
			}
			for j := i + 1; j < len(slots); j++ {
				if slots[j].live {
					pair(i, j)
				}
			}
		}
		return
	}

	g := newGrid(cutoff, len(slots))
	for i := range slots {
		if slots[i].live {
			g.insert(i, slots[i].pos)
		}
	}
	for i := range slots {
		if !slots[i].live {
			continue
		}
		g.neighbors(slots[i].pos, func(j int) {
			if j > i {
				pair(i, j)
			}
		})
	}
}

func (e *Engine) applySprings(slots []slot, forces []geom.Vec3, cfg PhysicsConfig) {
	if cfg.SpringStrength == 0 {
		return
	}
	for _, ed := range e.edges {
		a, b := ed[0], ed[1]
		d := slots[b].pos.Sub(slots[a].pos)
		l := d.Len()
		if l == 0 {
			continue
		}
		rest := cfg.RestLength(e.degree[a], e.degree[b])
		f := d.Scale(cfg.SpringStrength * (l - rest) / l)
		forces[a] = forces[a].Add(f)
		forces[b] = forces[b].Sub(f)
	}
}
