// Package dag provides the graph model shared by the simplifier, the
// cluster analyzer and the layout engine.
//
// # Overview
//
// A [DAG] holds declarations ([Node]) and "depends on" relations ([Edge])
// of a proof project. Edges point from the dependent to the dependency:
// an edge A→B means A uses B.
//
// The graph preserves insertion order for nodes and edges and keeps at
// most one edge per (From, To) pair. Cycles and self-loops are tolerated;
// callers that need an acyclic graph run transform.BreakCycles.
//
// # Building
//
// [Build] assembles a graph from raw lists and silently drops edges whose
// endpoints are unknown, which is the normal case after a filtered export:
//
//	g, dropped := dag.Build(nodes, edges)
//
// # Derived data
//
// [DAG.Degrees] and [DAG.Stats] compute in/out degree, dependency counts
// and dependency depth from the current edge set. Both are recomputed on
// demand; nothing is cached on the graph.
package dag
