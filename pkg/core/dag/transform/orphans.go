package transform

import "github.com/matzehuels/astrolabe/pkg/core/dag"

// PruneOrphans removes nodes that no edge touches and returns how many were
// removed. A node whose only edge is a self-loop is not an orphan.
func PruneOrphans(g *dag.DAG) int {
	touched := make(map[string]bool, g.NodeCount())
	for _, e := range g.Edges() {
		touched[e.From] = true
		touched[e.To] = true
	}
	orphans := make(map[string]bool)
	for _, id := range g.NodeIDs() {
		if !touched[id] {
			orphans[id] = true
		}
	}
	return g.RemoveNodes(orphans)
}
