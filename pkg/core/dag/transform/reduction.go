package transform

import "github.com/matzehuels/astrolabe/pkg/core/dag"

// TransitiveReduction removes redundant edges from the graph and returns the
// number of edges removed.
//
// An edge (u, v) is redundant when v is reachable from u without using that
// edge. For example, if A→B, B→C and A→C all exist, A→C is removed because A
// reaches C via B. Self-loops are always implied and are removed.
//
// # Algorithm
//
// For each edge a breadth-first search starts from u's other neighbours and
// never takes the hop u→v. Every search is bounded by its own visited set,
// so cycles cannot loop forever. All redundant edges are collected against
// the unmodified adjacency and removed together, which makes the result
// independent of edge order.
//
// # Cycles
//
// On acyclic graphs the result is the unique transitive reduction and a
// second run removes nothing. Inside a cycle two edges may each be implied
// through the other and both get removed; callers that need strict
// reachability there run [BreakCycles] first.
//
// # Performance
//
// Time complexity is O(E·(V+E)) in the worst case. Space is O(V) per search
// plus the adjacency index.
func TransitiveReduction(g *dag.DAG) int {
	if g.EdgeCount() == 0 {
		return 0
	}

	redundant := make(map[[2]string]bool)
	for _, e := range g.Edges() {
		if e.From == e.To || reachableWithout(g, e.From, e.To) {
			redundant[[2]string{e.From, e.To}] = true
		}
	}
	if len(redundant) == 0 {
		return 0
	}
	return g.RemoveEdgesFunc(func(e dag.Edge) bool { return redundant[[2]string{e.From, e.To}] })
}

// reachableWithout reports whether v can be reached from u through at least
// one intermediate node, never using the direct edge u→v.
func reachableWithout(g *dag.DAG, u, v string) bool {
	visited := map[string]bool{}
	var queue []string
	push := func(from string) {
		for _, next := range g.Children(from) {
			if from == u && next == v {
				continue
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	push(u)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == v {
			return true
		}
		push(cur)
	}
	return false
}
