package transform

import "github.com/matzehuels/astrolabe/pkg/core/dag"

// Result contains exact counts of what [Simplify] changed.
type Result struct {
	// RemovedNodes is the number of technical nodes elided.
	RemovedNodes int `json:"removed_nodes"`

	// SyntheticEdgesCreated is the number of through-links added to bridge
	// elided nodes.
	SyntheticEdgesCreated int `json:"synthetic_edges_created"`

	// OrphanedNodes is the number of nodes pruned because no edge touched
	// them after elision and reduction.
	OrphanedNodes int `json:"orphaned_nodes"`

	// TransitiveEdgesRemoved is the number of redundant edges removed.
	TransitiveEdgesRemoved int `json:"transitive_edges_removed"`

	// CyclesRemoved is the number of back-edges removed. Always zero unless
	// [Options.BreakCycles] is set.
	CyclesRemoved int `json:"cycles_removed"`
}

// Options selects which simplification steps [Simplify] applies.
//
// The zero value applies nothing; use [DefaultOptions] for the standard
// view.
type Options struct {
	// HideTechnical elides implementation-detail nodes and bridges them
	// with synthetic edges.
	HideTechnical bool `json:"hide_technical" toml:"hide_technical" yaml:"hide_technical"`

	// TransitiveReduction removes edges implied by longer paths.
	TransitiveReduction bool `json:"transitive_reduction" toml:"transitive_reduction" yaml:"transitive_reduction"`

	// HideOrphaned drops nodes left without edges. Runs last.
	HideOrphaned bool `json:"hide_orphaned" toml:"hide_orphaned" yaml:"hide_orphaned"`

	// BreakCycles removes back-edges before reduction so that reduction
	// operates on a true DAG.
	BreakCycles bool `json:"break_cycles" toml:"break_cycles" yaml:"break_cycles"`
}

// DefaultOptions returns the options used when the caller expresses no
// preference: reduction and orphan pruning on, technical nodes visible.
func DefaultOptions() Options {
	return Options{
		TransitiveReduction: true,
		HideOrphaned:        true,
	}
}

// Simplify applies the selected steps to g in place, in order: technical
// elision, cycle breaking, transitive reduction, orphan pruning.
//
// Simplify never fails: dangling edges were already dropped when the graph
// was built, and every traversal is visited-set bounded.
func Simplify(g *dag.DAG, opts Options) Result {
	var r Result
	if g.NodeCount() == 0 {
		return r
	}
	if opts.HideTechnical {
		r.RemovedNodes, r.SyntheticEdgesCreated = ElideTechnical(g)
	}
	if opts.BreakCycles {
		r.CyclesRemoved = BreakCycles(g)
	}
	if opts.TransitiveReduction {
		r.TransitiveEdgesRemoved = TransitiveReduction(g)
	}
	if opts.HideOrphaned {
		r.OrphanedNodes = PruneOrphans(g)
	}
	return r
}
