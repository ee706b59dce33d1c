package dag

// Degree is the in/out edge count of a node under the current edge set.
// A self-loop contributes once to In and once to Out.
type Degree struct {
	In    int
	Out   int
	Total int
}

// Degree returns the degree of a single node. Unknown nodes have zero degree.
func (d *DAG) Degree(id string) Degree {
	in, out := len(d.incoming[id]), len(d.outgoing[id])
	return Degree{In: in, Out: out, Total: in + out}
}

// Degrees returns the degree of every node, keyed by node ID.
func (d *DAG) Degrees() map[string]Degree {
	out := make(map[string]Degree, len(d.nodes))
	for _, id := range d.order {
		out[id] = d.Degree(id)
	}
	return out
}

// NodeStats summarizes a node's position in the dependency structure.
type NodeStats struct {
	DependsOn int // number of direct dependencies
	UsedBy    int // number of direct dependents
	Depth     int // 0 for leaves, otherwise 1 + max depth of dependencies
}

// Stats computes per-node statistics.
//
// Depth follows outgoing edges. A dependency already on the current path
// counts as depth 0, so cycles terminate.
func (d *DAG) Stats() map[string]NodeStats {
	stats := make(map[string]NodeStats, len(d.nodes))
	depth := make(map[string]int, len(d.nodes))
	onPath := make(map[string]bool)

	var visit func(id string) int
	visit = func(id string) int {
		if v, ok := depth[id]; ok {
			return v
		}
		if onPath[id] {
			return 0
		}
		deps := d.outgoing[id]
		if len(deps) == 0 {
			depth[id] = 0
			return 0
		}
		onPath[id] = true
		best := 0
		for _, dep := range deps {
			best = max(best, visit(dep))
		}
		delete(onPath, id)
		depth[id] = best + 1
		return best + 1
	}

	for _, id := range d.order {
		stats[id] = NodeStats{
			DependsOn: len(d.outgoing[id]),
			UsedBy:    len(d.incoming[id]),
			Depth:     visit(id),
		}
	}
	return stats
}
