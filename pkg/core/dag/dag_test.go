package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestAddNode(t *testing.T) {
	g := New(nil)
	if err := g.AddNode(Node{ID: "a"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("duplicate: got %v, want ErrDuplicateNodeID", err)
	}
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("empty: got %v, want ErrInvalidNodeID", err)
	}
	n, _ := g.Node("a")
	if n.Name != "a" {
		t.Errorf("Name = %q, want defaulted to ID", n.Name)
	}
	if n.Meta == nil {
		t.Error("Meta should be initialized")
	}
}

func TestAddEdge(t *testing.T) {
	g := New(nil)
	_ = g.AddNode(Node{ID: "a"})
	_ = g.AddNode(Node{ID: "b"})

	tests := []struct {
		name string
		edge Edge
		want error
	}{
		{"valid", Edge{From: "a", To: "b"}, nil},
		{"unknown source", Edge{From: "x", To: "b"}, ErrUnknownSourceNode},
		{"unknown target", Edge{From: "a", To: "x"}, ErrUnknownTargetNode},
		{"duplicate ignored", Edge{From: "a", To: "b"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.AddEdge(tt.edge); !errors.Is(err, tt.want) {
				t.Errorf("AddEdge() = %v, want %v", err, tt.want)
			}
		})
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}
	e, ok := g.Edge("a", "b")
	if !ok || e.ID != "a->b" {
		t.Errorf("Edge(a,b) = %+v, %v", e, ok)
	}
}

func TestAddEdgeRealReplacesSynthetic(t *testing.T) {
	g := New(nil)
	_ = g.AddNode(Node{ID: "a"})
	_ = g.AddNode(Node{ID: "b"})
	_ = g.AddEdge(Edge{From: "a", To: "b", Synthetic: true})
	_ = g.AddEdge(Edge{From: "a", To: "b"})

	e, _ := g.Edge("a", "b")
	if e.Synthetic {
		t.Error("real edge should replace synthetic duplicate")
	}
	if g.EdgeCount() != 1 || len(g.Children("a")) != 1 {
		t.Errorf("expected a single a->b edge, got %d", g.EdgeCount())
	}
}

func TestBuildDropsDanglingEdges(t *testing.T) {
	g, dropped := Build(
		[]Node{{ID: "a"}, {ID: "b"}},
		[]Edge{{From: "a", To: "b"}, {From: "a", To: "ghost"}, {From: "ghost", To: "b"}},
	)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}
}

func TestRemoveNodes(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "a", To: "c"}},
	)
	if n := g.RemoveNodes(map[string]bool{"b": true, "missing": true}); n != 1 {
		t.Fatalf("RemoveNodes = %d, want 1", n)
	}
	if got := g.NodeIDs(); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("NodeIDs = %v", got)
	}
	if g.EdgeCount() != 1 || !g.HasEdge("a", "c") {
		t.Errorf("edges = %v", g.Edges())
	}
	if len(g.Parents("c")) != 1 {
		t.Errorf("Parents(c) = %v", g.Parents("c"))
	}
}

func TestRemoveEdge(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}},
	)
	g.RemoveEdge("a", "b")
	g.RemoveEdge("a", "c")
	if g.HasEdge("a", "b") {
		t.Error("a->b should be removed")
	}
	if len(g.Children("a")) != 0 || len(g.Parents("b")) != 0 {
		t.Error("adjacency not updated")
	}
	if !g.HasEdge("b", "c") {
		t.Error("b->c should survive")
	}
}

func TestDegreesSelfLoop(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "a"}, {ID: "b"}},
		[]Edge{{From: "a", To: "a"}, {From: "a", To: "b"}},
	)
	deg := g.Degrees()
	if deg["a"] != (Degree{In: 1, Out: 2, Total: 3}) {
		t.Errorf("a = %+v", deg["a"])
	}
	if deg["b"] != (Degree{In: 1, Out: 0, Total: 1}) {
		t.Errorf("b = %+v", deg["b"])
	}
}

func TestDegreeSums(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}, {From: "d", To: "d"}, {From: "a", To: "c"}},
	)
	var in, out int
	for _, d := range g.Degrees() {
		in += d.In
		out += d.Out
		if d.Total != d.In+d.Out {
			t.Errorf("Total %d != In+Out %d", d.Total, d.In+d.Out)
		}
	}
	if in != g.EdgeCount() || out != g.EdgeCount() {
		t.Errorf("sum in=%d out=%d, want %d", in, out, g.EdgeCount())
	}
}

func TestStats(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "top"}, {ID: "mid"}, {ID: "leaf"}, {ID: "x"}, {ID: "y"}},
		[]Edge{
			{From: "top", To: "mid"}, {From: "mid", To: "leaf"}, {From: "top", To: "leaf"},
			{From: "x", To: "y"}, {From: "y", To: "x"},
		},
	)
	stats := g.Stats()

	want := map[string]NodeStats{
		"top":  {DependsOn: 2, UsedBy: 0, Depth: 2},
		"mid":  {DependsOn: 1, UsedBy: 1, Depth: 1},
		"leaf": {DependsOn: 0, UsedBy: 2, Depth: 0},
	}
	for id, w := range want {
		if stats[id] != w {
			t.Errorf("%s = %+v, want %+v", id, stats[id], w)
		}
	}
	// Cycle members terminate with a finite depth.
	if stats["x"].Depth > 2 || stats["y"].Depth > 2 {
		t.Errorf("cycle depth not bounded: x=%d y=%d", stats["x"].Depth, stats["y"].Depth)
	}
}

func TestClone(t *testing.T) {
	g, _ := Build([]Node{{ID: "a"}, {ID: "b"}}, []Edge{{From: "a", To: "b", Synthetic: true}})
	c := g.Clone()
	c.RemoveEdge("a", "b")
	n, _ := c.Node("a")
	n.Meta["x"] = 1

	if !g.HasEdge("a", "b") {
		t.Error("clone mutation leaked into original edges")
	}
	orig, _ := g.Node("a")
	if _, ok := orig.Meta["x"]; ok {
		t.Error("clone mutation leaked into original metadata")
	}
}

func TestSourcesSinks(t *testing.T) {
	g, _ := Build(
		[]Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}},
	)
	if s := g.Sources(); len(s) != 1 || s[0].ID != "a" {
		t.Errorf("Sources = %v", s)
	}
	if s := g.Sinks(); len(s) != 1 || s[0].ID != "c" {
		t.Errorf("Sinks = %v", s)
	}
}
