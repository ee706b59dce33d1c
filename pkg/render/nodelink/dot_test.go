package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

func sample() *dag.DAG {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "Nat.add_comm", Kind: dag.KindTheorem})
	g.AddNode(dag.Node{ID: "Nat.add", Kind: dag.KindDefinition})
	g.AddNode(dag.Node{ID: "Int.neg", Kind: dag.KindDefinition})
	g.AddEdge(dag.Edge{From: "Nat.add_comm", To: "Nat.add"})
	g.AddEdge(dag.Edge{From: "Nat.add_comm", To: "Int.neg", Synthetic: true})
	return g
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(sample(), Options{})

	for _, want := range []string{
		"digraph G",
		`"Nat.add" [label="Nat.add", fillcolor="#dcfce7"]`,
		`"Nat.add_comm" -> "Nat.add";`,
		`"Nat.add_comm" -> "Int.neg" [style=dashed, color=grey50];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q in:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "subgraph") {
		t.Error("ToDOT() without ClusterDepth should not emit subgraphs")
	}
}

func TestToDOT_Clusters(t *testing.T) {
	dot := ToDOT(sample(), Options{ClusterDepth: 1})

	if !strings.Contains(dot, `subgraph "cluster_Nat"`) {
		t.Error("ToDOT() missing Nat cluster")
	}
	if !strings.Contains(dot, `subgraph "cluster_Int"`) {
		t.Error("ToDOT() missing Int cluster")
	}
	if strings.Index(dot, "cluster_Int") > strings.Index(dot, "cluster_Nat") {
		t.Error("clusters should be sorted by namespace")
	}
}

func TestToDOT_RootNamespaceStaysTopLevel(t *testing.T) {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "propext", Kind: dag.KindAxiom})

	dot := ToDOT(g, Options{ClusterDepth: 1})

	if strings.Contains(dot, "subgraph") {
		t.Errorf("root namespace should not get a subgraph:\n%s", dot)
	}
	if !strings.Contains(dot, `  "propext" [`) {
		t.Error("root node missing")
	}
}

func TestToDOT_Positions(t *testing.T) {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "a"})
	g.AddNode(dag.Node{ID: "b"})

	dot := ToDOT(g, Options{Positions: map[string]geom.Vec3{"a": {X: 1, Y: -2, Z: 9}}, Scale: 10})

	if !strings.Contains(dot, `pos="10.00,-20.00!"`) {
		t.Errorf("pinned position missing:\n%s", dot)
	}
	if strings.Count(dot, "pos=") != 1 {
		t.Error("only positioned nodes should be pinned")
	}
	if !strings.Contains(dot, "overlap=false") {
		t.Error("pinned output should disable overlap removal")
	}
}

func TestFmtLabel(t *testing.T) {
	tests := []struct {
		name     string
		node     dag.Node
		detailed bool
		want     string
	}{
		{"IDFallback", dag.Node{ID: "x"}, false, "x"},
		{"Name", dag.Node{ID: "x", Name: "Foo.x"}, false, "Foo.x"},
		{"DetailedEmpty", dag.Node{ID: "x"}, true, "x"},
		{
			"Detailed",
			dag.Node{ID: "x", Kind: "theorem", Meta: dag.Metadata{"line_number": 3, "file_path": "A.lean"}},
			true,
			"x\nkind: theorem\nfile_path: A.lean\nline_number: 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmtLabel(tt.node, tt.detailed); got != tt.want {
				t.Errorf("fmtLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderSVG_UnknownEngine(t *testing.T) {
	if _, err := RenderSVG(context.Background(), "digraph G {}", "circo"); err == nil {
		t.Error("expected error for unsupported engine")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 100.50 200.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.50 200.00" width="100" height="200"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}

	plain := []byte(`<svg><g/></svg>`)
	if string(normalizeViewBox(plain)) != string(plain) {
		t.Error("svg without viewBox should be unchanged")
	}
}
