// Package pkg provides the core libraries for Astrolabe proof-graph layout.
//
// # Overview
//
// Astrolabe turns the dependency graph of a formal proof project (theorems,
// definitions, instances and the lemmas they use) into a readable 3D
// layout. Compiler-generated declarations are elided, redundant edges are
// reduced away, and a force-directed simulation places the rest so that
// namespaces cluster together. Positions persist per project, so a graph
// that grows keeps its shape between runs. The pkg directory is organized
// into these areas:
//
//  1. [core] - Domain logic (graph model, simplification, clustering, layout, stability)
//  2. [graph] - JSON wire format for graphs and layouts
//  3. [pipeline] - Orchestration (simplify → layout → render) shared by CLI and API
//  4. Infrastructure - [cache], [positions], [events], [config], [observability], [errors]
//  5. Surfaces - [api] (HTTP) and [render/nodelink] (DOT and SVG export)
//
// # Architecture
//
// The typical data flow:
//
//	graph.json (nodes, edges)
//	         ↓
//	    [graph] ToDAG (dangling edges dropped)
//	         ↓
//	    [core/dag/transform] Simplify (elide, reduce, prune)
//	         ↓
//	    [core/layout] Engine.Solve (warmup or fast path, fit)
//	         ↓
//	    [core/stability] Controller.Tick until stable → [positions] + [events]
//
// # Quick Start
//
//	g, _ := dag.Build(nodes, edges)
//	transform.Simplify(g, transform.DefaultOptions())
//
//	e := layout.New(layout.WithSeed(42))
//	e.SetGraph(g, saved)
//	res, err := e.Solve(ctx, layout.DefaultPhysics(), layout.DefaultSolveOptions())
//	positions := e.Positions()
//
// # Testing
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/core/...     # Domain logic only
//	go test -run Example ./... # Examples only
//
// [core]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/core
// [core/dag/transform]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/core/dag/transform
// [core/layout]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/core/layout
// [core/stability]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/core/stability
// [graph]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/graph
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/cache
// [positions]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/positions
// [events]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/events
// [config]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/errors
// [api]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/api
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/astrolabe/pkg/render/nodelink
package pkg
