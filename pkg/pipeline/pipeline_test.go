package pipeline

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/stability"
	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/events"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

// memCache is an in-memory cache.Cache that counts reads and writes.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// proofGraph: a theorem using a definition through a technical instance,
// plus a redundant direct edge and an isolated lemma.
func proofGraph() *dag.DAG {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "Nat.add_comm", Kind: dag.KindTheorem})
	g.AddNode(dag.Node{ID: "Nat.instAddNat", Kind: dag.KindInstance})
	g.AddNode(dag.Node{ID: "Nat.add", Kind: dag.KindDefinition})
	g.AddNode(dag.Node{ID: "Nat.succ", Kind: dag.KindDefinition})
	g.AddNode(dag.Node{ID: "Nat.lonely", Kind: dag.KindTheorem})
	g.AddEdge(dag.Edge{From: "Nat.add_comm", To: "Nat.instAddNat"})
	g.AddEdge(dag.Edge{From: "Nat.instAddNat", To: "Nat.add"})
	g.AddEdge(dag.Edge{From: "Nat.add", To: "Nat.succ"})
	g.AddEdge(dag.Edge{From: "Nat.add_comm", To: "Nat.succ"})
	return g
}

func hideTechnical() Options {
	opts := DefaultOptions()
	opts.Simplify.HideTechnical = true
	return opts
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"dot", false},
		{"svg", false},
		{"json", false},
		{"png", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("zero options should validate: %v", err)
	}
	if opts.Project != DefaultProject || opts.Seed != DefaultSeed || opts.Format != DefaultFormat {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.Physics.MaxVelocity == 0 || opts.Solve.TargetRadius == 0 {
		t.Error("physics and solve defaults not applied")
	}
	if opts.Logger == nil {
		t.Error("logger default not applied")
	}
	if opts.Simplify.TransitiveReduction {
		t.Error("zero simplify options must stay zero")
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		code   errors.Code
	}{
		{"BadProject", func(o *Options) { o.Project = "../etc" }, errors.ErrCodeInvalidProject},
		{"NegativeClusterDepth", func(o *Options) { o.ClusterDepth = -1 }, errors.ErrCodeInvalidInput},
		{"NaNPosition", func(o *Options) {
			o.Positions = map[string]geom.Vec3{"a": {X: math.NaN()}}
		}, errors.ErrCodeInvalidInput},
		{"BadDamping", func(o *Options) { o.Physics.Damping = 1 }, errors.ErrCodeInvalidConfig},
		{"BadFormat", func(o *Options) { o.Format = "pdf" }, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %s, want %s (%v)", got, tt.code, err)
			}
		})
	}
}

func TestLayoutKeyOpts(t *testing.T) {
	opts := DefaultOptions()
	empty := opts.LayoutKeyOpts(nil)
	if empty.PositionsHash != "" {
		t.Error("no saved positions should give an empty positions hash")
	}

	a := opts.LayoutKeyOpts(map[string]geom.Vec3{"x": {X: 1}})
	b := opts.LayoutKeyOpts(map[string]geom.Vec3{"x": {X: 2}})
	if a.PositionsHash == b.PositionsHash {
		t.Error("different saved positions must give different keys")
	}

	opts.Physics.RepulsionStrength *= 2
	if opts.LayoutKeyOpts(nil).ConfigHash == empty.ConfigHash {
		t.Error("physics changes must change the config hash")
	}
}

func TestRunnerSimplifyCaches(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	g := proofGraph()

	first, report, hit, err := r.SimplifyWithCacheInfo(ctx, g, hideTechnical())
	if err != nil {
		t.Fatalf("simplify: %v", err)
	}
	if hit {
		t.Error("first run should miss")
	}
	if report.RemovedNodes != 1 || report.SyntheticEdgesCreated != 1 || report.OrphanedNodes != 1 {
		t.Errorf("report = %+v", report)
	}
	if g.NodeCount() != 5 {
		t.Error("input graph must not be modified")
	}

	second, cached, hit, err := r.SimplifyWithCacheInfo(ctx, g, hideTechnical())
	if err != nil {
		t.Fatalf("simplify: %v", err)
	}
	if !hit {
		t.Error("second run should hit")
	}
	if cached != report {
		t.Errorf("cached report = %+v, want %+v", cached, report)
	}
	if second.NodeCount() != first.NodeCount() || second.EdgeCount() != first.EdgeCount() {
		t.Errorf("cached graph differs: %d/%d vs %d/%d",
			second.NodeCount(), second.EdgeCount(), first.NodeCount(), first.EdgeCount())
	}
	e, ok := second.Edge("Nat.add_comm", "Nat.add")
	if !ok || !e.Synthetic {
		t.Errorf("synthetic flag lost in cache: %+v", e)
	}

	opts := hideTechnical()
	opts.Refresh = true
	if _, _, hit, _ := r.SimplifyWithCacheInfo(ctx, g, opts); hit {
		t.Error("refresh should bypass the cache")
	}
}

func TestRunnerExecute(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newMemCache(), nil, nil)
	opts := hideTechnical()
	opts.Format = FormatJSON

	res, err := r.Execute(ctx, proofGraph(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.NodeCount != 5 || res.Stats.SimplifiedNodes != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
	// add_comm -> add is synthetic, add -> succ real; the direct add_comm -> succ is implied.
	if res.Stats.SimplifiedEdges != 2 || res.Simplify.TransitiveEdgesRemoved != 1 {
		t.Errorf("edges = %d, report = %+v", res.Stats.SimplifiedEdges, res.Simplify)
	}
	if len(res.Layout.Positions) != 3 {
		t.Errorf("positions = %d, want 3", len(res.Layout.Positions))
	}
	for id, p := range res.Layout.Positions {
		if !p.IsFinite() || p.IsZero() {
			t.Errorf("position of %s = %+v", id, p)
		}
	}
	if res.GraphHash == "" {
		t.Error("graph hash missing")
	}
	if !strings.Contains(string(res.Artifact), `"positions"`) {
		t.Error("json artifact should contain positions")
	}

	again, err := r.Execute(ctx, proofGraph(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !again.CacheInfo.SimplifyHit || !again.CacheInfo.LayoutHit {
		t.Errorf("cache info = %+v", again.CacheInfo)
	}
}

func TestRunnerLayoutUsesStoredPositions(t *testing.T) {
	ctx := context.Background()
	store, err := positions.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	saved := map[string]geom.Vec3{
		"Nat.add_comm": {X: 10, Y: 0, Z: 0},
		"Nat.add":      {X: 0, Y: 10, Z: 0},
		"Nat.succ":     {X: 0, Y: 0, Z: 10},
	}
	if err := store.Save(ctx, "mathlib", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r := NewRunner(nil, nil, nil)
	r.Positions = store
	opts := hideTechnical()
	opts.Project = "mathlib"
	opts.Persist = true

	simplified, report, err := r.Simplify(ctx, proofGraph(), opts)
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	l, err := r.Layout(ctx, simplified, report, opts)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !l.Solve.FastPath {
		t.Error("fully restored graph should take the fast path")
	}
	if l.Simplify != report {
		t.Errorf("layout report = %+v", l.Simplify)
	}

	stored, err := store.Load(ctx, "mathlib")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for id, p := range l.Positions {
		if stored[id] != p {
			t.Errorf("stored %s = %+v, want %+v", id, stored[id], p)
		}
	}
}

func TestRunnerRenderDOT(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)
	opts := hideTechnical()
	opts.Format = FormatDOT

	res, err := r.Execute(ctx, proofGraph(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	dot := string(res.Artifact)
	if !strings.Contains(dot, `"Nat.add_comm" -> "Nat.add" [style=dashed`) {
		t.Errorf("synthetic edge should be dashed:\n%s", dot)
	}
	if !strings.Contains(dot, `subgraph "cluster_Nat"`) {
		t.Error("default cluster depth should group the Nat namespace")
	}

	opts.Pinned = true
	pinned, err := r.Render(ctx, res.Graph, res.Layout, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Count(string(pinned), "pos=") != 3 {
		t.Error("pinned render should fix every node")
	}
}

func TestSavePositions(t *testing.T) {
	ctx := context.Background()
	store, _ := positions.NewFileStore(t.TempDir())
	r := NewRunner(nil, nil, nil)
	r.Positions = store

	total, err := r.SavePositions(ctx, "p", map[string]geom.Vec3{"a": {X: 1}})
	if err != nil || total != 1 {
		t.Fatalf("SavePositions = %d, %v", total, err)
	}
	total, err = r.SavePositions(ctx, "p", map[string]geom.Vec3{"b": {X: 2}})
	if err != nil || total != 2 {
		t.Fatalf("merge should keep a: %d, %v", total, err)
	}

	if _, err := r.SavePositions(ctx, "p", map[string]geom.Vec3{"c": {X: math.Inf(1)}}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("infinite position error = %v", err)
	}
	if _, err := r.LoadPositions(ctx, ""); !errors.Is(err, errors.ErrCodeInvalidProject) {
		t.Errorf("empty project error = %v", err)
	}

	got, err := r.LoadPositions(ctx, "p")
	if err != nil || len(got) != 2 {
		t.Errorf("LoadPositions = %v, %v", got, err)
	}
}

func TestStableSink(t *testing.T) {
	ctx := context.Background()
	store, _ := positions.NewFileStore(t.TempDir())
	pub := &recordingPublisher{}
	r := NewRunner(nil, nil, nil)
	r.Positions = store
	r.Publisher = pub

	sink := r.StableSink("flt")
	snap := stability.Snapshot{Tick: 90, Positions: map[string]geom.Vec3{"a": {X: 1}}}

	if !sink.Stable(ctx, snap) {
		t.Fatal("Stable should succeed")
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeStable || pub.events[0].Tick != 90 {
		t.Errorf("events = %+v", pub.events)
	}
	stored, _ := store.Load(ctx, "flt")
	if stored["a"].X != 1 {
		t.Errorf("stored = %v", stored)
	}

	sink.Rebuilt(ctx, 12, 91)
	if len(pub.events) != 2 || pub.events[1].Type != events.TypeRebuilt || pub.events[1].NodeCount != 12 {
		t.Errorf("rebuilt event = %+v", pub.events)
	}

	pub.err = context.DeadlineExceeded
	if sink.Stable(ctx, snap) {
		t.Error("Stable should report publish failures")
	}
}

func TestNodeDeps(t *testing.T) {
	g := proofGraph()

	d, err := NodeDeps(g, "Nat.add")
	if err != nil {
		t.Fatalf("NodeDeps: %v", err)
	}
	if len(d.DependsOn) != 1 || d.DependsOn[0] != "Nat.succ" {
		t.Errorf("depends_on = %v", d.DependsOn)
	}
	if len(d.UsedBy) != 1 || d.UsedBy[0] != "Nat.instAddNat" {
		t.Errorf("used_by = %v", d.UsedBy)
	}

	lonely, err := NodeDeps(g, "Nat.lonely")
	if err != nil || lonely.DependsOn == nil || lonely.UsedBy == nil {
		t.Errorf("isolated node should have empty, non-nil lists: %+v, %v", lonely, err)
	}

	if _, err := NodeDeps(g, "Nat.missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing node error = %v", err)
	}
}
