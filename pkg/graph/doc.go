// Package graph provides serialization types for declaration graphs and
// their layouts.
//
// This package defines the wire format used for input files, API bodies,
// caching and persisted positions.
//
// # Architecture
//
// The package sits at the serialization boundary:
//
//   - [Graph], [Layout]: serialization types (this package)
//   - pkg/core/dag.DAG: internal graph representation
//   - pkg/core/layout.Engine: internal position state
//
// Use [FromDAG] and [ToDAG] to convert between them.
//
// # Graph Serialization
//
// Graphs use a node-link JSON format:
//
//	{
//	  "version": "1.0",
//	  "nodes": [{"id": "Nat.add_comm", "kind": "theorem", "file_path": "Nat/Basic.lean", "line_number": 12}],
//	  "edges": [{"source": "Nat.add_comm", "target": "Nat.add"}]
//	}
//
// Edges point from dependent to dependency. Edges whose endpoints are
// missing are dropped on conversion, not rejected.
//
// Common operations:
//
//	gj, _ := graph.ReadGraphFile("graph.json")  // File → Graph
//	g, dropped := graph.ToDAG(gj)               // Graph → DAG
//	graph.WriteGraphFile(g, "simplified.json")  // DAG → File
//
// # Layout Serialization
//
// A [Layout] embeds the graph and adds positions plus the simplification
// and solver reports:
//
//	l, _ := graph.ReadLayoutFile("layout.json")
//	p := l.Positions["Nat.add_comm"]
//
// # Concurrency
//
// All functions are safe for concurrent reads but not concurrent writes.
package graph
