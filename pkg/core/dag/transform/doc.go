// Package transform simplifies a raw declaration graph into the view that
// is laid out and rendered.
//
// # Overview
//
// Dependency graphs exported from a proof project are dominated by
// implementation details and redundant edges. [Simplify] applies up to four
// steps, each of which can be used on its own:
//
//   - [ElideTechnical] removes technical nodes ([IsTechnical]) and bridges
//     A→T→B with a synthetic edge A→B so reachability survives.
//   - [BreakCycles] removes back-edges (opt-in).
//   - [TransitiveReduction] removes edges implied by longer paths.
//   - [PruneOrphans] removes nodes left without any edge.
//
// Every step mutates the graph in place and reports exact counts, which
// [Simplify] aggregates into a [Result].
//
// # Usage
//
//	g, _ := dag.Build(nodes, edges)
//	res := transform.Simplify(g, transform.Options{
//		HideTechnical:       true,
//		TransitiveReduction: true,
//		HideOrphaned:        true,
//	})
//
// # Limitations
//
// Technical chains (A→T1→T2→B) are contracted in a single pass and do not
// produce A→B. Transitive reduction on cyclic regions is best-effort; see
// [TransitiveReduction].
package transform
