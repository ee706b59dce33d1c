package transform

import "github.com/matzehuels/astrolabe/pkg/core/dag"

// ElideTechnical removes every node for which [IsTechnical] holds and
// bridges the gaps with synthetic edges.
//
// For each technical node T, every pair of a non-technical dependent A
// (A→T) and a non-technical dependency B (T→B) yields one synthetic edge
// A→B, unless A == B, the pair was already bridged, or a real edge A→B
// exists. Adjacency is taken from the graph before anything is removed.
//
// Contraction is a single pass: in a chain A→T1→T2→B neither T1 nor T2
// has non-technical neighbours on both sides, so no edge A→B is produced.
//
// Returns the number of removed nodes and created synthetic edges.
func ElideTechnical(g *dag.DAG) (removed, synthetic int) {
	technical := make(map[string]bool)
	for _, n := range g.Nodes() {
		if IsTechnical(n) {
			technical[n.ID] = true
		}
	}
	if len(technical) == 0 {
		return 0, 0
	}

	var bridges []dag.Edge
	seen := make(map[[2]string]bool)
	for _, t := range g.NodeIDs() {
		if !technical[t] {
			continue
		}
		for _, a := range g.Parents(t) {
			if technical[a] {
				continue
			}
			for _, b := range g.Children(t) {
				if technical[b] || a == b {
					continue
				}
				key := [2]string{a, b}
				if seen[key] {
					continue
				}
				seen[key] = true
				if e, ok := g.Edge(a, b); ok && !e.Synthetic {
					continue
				}
				bridges = append(bridges, dag.Edge{From: a, To: b, Synthetic: true})
			}
		}
	}

	removed = g.RemoveNodes(technical)
	for _, e := range bridges {
		if g.HasEdge(e.From, e.To) {
			continue
		}
		if err := g.AddEdge(e); err == nil {
			synthetic++
		}
	}
	return removed, synthetic
}
