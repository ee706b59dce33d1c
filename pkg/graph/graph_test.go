package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
)

func TestFromDAG(t *testing.T) {
	tests := []struct {
		name      string
		build     func() *dag.DAG
		wantNodes int
		wantEdges int
		check     func(t *testing.T, g Graph)
	}{
		{
			name:  "Empty",
			build: func() *dag.DAG { return dag.New(nil) },
		},
		{
			name: "SortedWithStats",
			build: func() *dag.DAG {
				g := dag.New(nil)
				g.AddNode(dag.Node{ID: "b"})
				g.AddNode(dag.Node{ID: "a"})
				g.AddEdge(dag.Edge{From: "a", To: "b", Synthetic: true})
				return g
			},
			wantNodes: 2,
			wantEdges: 1,
			check: func(t *testing.T, g Graph) {
				if g.Nodes[0].ID != "a" {
					t.Errorf("first node = %s, want a", g.Nodes[0].ID)
				}
				if g.Nodes[0].DependsOn != 1 || g.Nodes[0].Depth != 1 {
					t.Errorf("a stats = %+v", g.Nodes[0])
				}
				if g.Nodes[1].UsedBy != 1 {
					t.Errorf("b used_by = %d", g.Nodes[1].UsedBy)
				}
				if e := g.Edges[0]; !e.Synthetic || e.ID != "a->b" {
					t.Errorf("edge = %+v", e)
				}
			},
		},
		{
			name: "PromotesMetadata",
			build: func() *dag.DAG {
				g := dag.New(nil)
				g.AddNode(dag.Node{
					ID:   "Nat.add_comm",
					Kind: dag.KindTheorem,
					Meta: dag.Metadata{
						MetaFilePath:   "Nat/Basic.lean",
						MetaLineNumber: 42,
						"notes":        "keep",
					},
				})
				return g
			},
			wantNodes: 1,
			check: func(t *testing.T, g Graph) {
				n := g.Nodes[0]
				if n.FilePath != "Nat/Basic.lean" || n.LineNumber != 42 {
					t.Errorf("source location = %s:%d", n.FilePath, n.LineNumber)
				}
				if _, ok := n.Meta[MetaFilePath]; ok {
					t.Error("promoted key should not remain in meta")
				}
				if n.Meta["notes"] != "keep" {
					t.Errorf("meta = %v", n.Meta)
				}
				if n.Name != "" {
					t.Errorf("name equal to ID should be omitted, got %q", n.Name)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := FromDAG(tt.build())
			if len(g.Nodes) != tt.wantNodes {
				t.Errorf("nodes = %d, want %d", len(g.Nodes), tt.wantNodes)
			}
			if len(g.Edges) != tt.wantEdges {
				t.Errorf("edges = %d, want %d", len(g.Edges), tt.wantEdges)
			}
			if g.Version != Version {
				t.Errorf("version = %q", g.Version)
			}
			if tt.check != nil {
				tt.check(t, g)
			}
		})
	}
}

func TestToDAGDropsDangling(t *testing.T) {
	gj := Graph{
		Nodes: []Node{{ID: "a", FilePath: "A.lean", LineNumber: 3}, {ID: "b"}, {ID: "a"}},
		Edges: []Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "ghost"}},
	}

	g, dropped := ToDAG(gj)

	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Errorf("graph = %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
	n, _ := g.Node("a")
	if n.Meta[MetaFilePath] != "A.lean" || n.Meta[MetaLineNumber] != 3 {
		t.Errorf("meta = %v", n.Meta)
	}
}

func TestReadGraph(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"valid", `{"version":"1.0","nodes":[{"id":"a"}],"edges":[]}`, ""},
		{"no version", `{"nodes":[{"id":"a"}],"edges":[]}`, ""},
		{"bad version", `{"version":"2.0","nodes":[],"edges":[]}`, "unsupported graph version"},
		{"empty id", `{"nodes":[{"id":""}],"edges":[]}`, "node ID must not be empty"},
		{"bad json", `{`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGraph(strings.NewReader(tt.input))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRoundTripFile(t *testing.T) {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "x", Name: "Foo.x", Kind: dag.KindDefinition, Meta: dag.Metadata{MetaLineNumber: 7}})
	g.AddNode(dag.Node{ID: "y"})
	g.AddEdge(dag.Edge{From: "x", To: "y"})

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := WriteGraphFile(g, path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}
	gj, err := ReadGraphFile(path)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	back, dropped := ToDAG(gj)
	if dropped != 0 || back.EdgeCount() != 1 {
		t.Fatalf("round trip lost data: dropped=%d edges=%d", dropped, back.EdgeCount())
	}
	x, _ := back.Node("x")
	if x.Name != "Foo.x" || x.Kind != dag.KindDefinition || x.Meta[MetaLineNumber] != 7 {
		t.Errorf("x = %+v", x)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	gj := Graph{Nodes: []Node{{ID: "a"}}, Edges: []Edge{}}
	l := NewLayout(gj, map[string]geom.Vec3{"a": {X: 1}}, transform.Result{OrphanedNodes: 2}, layout.SolveResult{FastPath: true}, 60)

	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteLayoutFile(l, path); err != nil {
		t.Fatalf("WriteLayoutFile: %v", err)
	}
	got, err := ReadLayoutFile(path)
	if err != nil {
		t.Fatalf("ReadLayoutFile: %v", err)
	}
	if got.Positions["a"].X != 1 || got.Simplify.OrphanedNodes != 2 || !got.Solve.FastPath {
		t.Errorf("layout = %+v", got)
	}

	data, _ := os.ReadFile(path)
	if !bytes.Contains(data, []byte(`"positions"`)) {
		t.Error("positions should be flattened into the layout object")
	}
}

func TestUnmarshalLayoutMissingPosition(t *testing.T) {
	_, err := UnmarshalLayout([]byte(`{"nodes":[{"id":"a"}],"edges":[]}`))
	if err == nil {
		t.Fatal("expected error for node without position")
	}
}
