package transform

import "github.com/matzehuels/astrolabe/pkg/core/dag"

// BreakCycles removes back-edges so the graph becomes acyclic and returns
// the number of edges removed. Self-loops count as back-edges.
//
// A depth-first search with white/gray/black coloring starts from every
// source node, then from any node not yet visited (pure cycles have no
// source). An edge into a gray node closes a cycle and is removed. The
// choice is deterministic for a given insertion order but not a minimum
// feedback arc set.
//
// Simplify runs this step only when [Options.BreakCycles] is set; by
// default cyclic regions are left for [TransitiveReduction] to handle on a
// best-effort basis.
func BreakCycles(g *dag.DAG) int {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, g.NodeCount())
	back := make(map[[2]string]bool)

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		for _, child := range g.Children(node) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				back[[2]string{node, child}] = true
			}
		}
		color[node] = black
	}

	for _, n := range g.Sources() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	for _, id := range g.NodeIDs() {
		if color[id] == white {
			dfs(id)
		}
	}

	if len(back) == 0 {
		return 0
	}
	return g.RemoveEdgesFunc(func(e dag.Edge) bool { return back[[2]string{e.From, e.To}] })
}
