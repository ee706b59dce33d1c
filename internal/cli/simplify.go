package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/graph"
)

// simplifyFlags are the transform switches shared by simplify, layout and
// render. Unset flags keep the configured values.
type simplifyFlags struct {
	hideTechnical bool
	keepOrphans   bool
	noReduce      bool
	breakCycles   bool
}

func (f *simplifyFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.hideTechnical, "hide-technical", false, "elide compiler-generated declarations")
	cmd.Flags().BoolVar(&f.keepOrphans, "keep-orphans", false, "keep nodes without edges")
	cmd.Flags().BoolVar(&f.noReduce, "no-reduce", false, "skip transitive reduction")
	cmd.Flags().BoolVar(&f.breakCycles, "break-cycles", false, "remove back edges before reduction")
}

func (f *simplifyFlags) apply(cmd *cobra.Command, opts *transform.Options) {
	if cmd.Flags().Changed("hide-technical") {
		opts.HideTechnical = f.hideTechnical
	}
	if cmd.Flags().Changed("keep-orphans") {
		opts.HideOrphaned = !f.keepOrphans
	}
	if cmd.Flags().Changed("no-reduce") {
		opts.TransitiveReduction = !f.noReduce
	}
	if cmd.Flags().Changed("break-cycles") {
		opts.BreakCycles = f.breakCycles
	}
}

// simplifyCommand creates the simplify command.
func (c *CLI) simplifyCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		flags   simplifyFlags
	)

	cmd := &cobra.Command{
		Use:   "simplify [graph.json]",
		Short: "Elide technical nodes and reduce a dependency graph",
		Long: `Simplify a dependency graph.

Redundant transitive edges are dropped and nodes left without edges are
pruned. With --hide-technical, compiler-generated declarations are removed
and their dependencies bridged with synthetic edges. The result is written
as graph JSON.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSimplify(cmd, args[0], output, noCache, flags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.simplified.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runSimplify(cmd *cobra.Command, input, output string, noCache bool, flags simplifyFlags) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	g, err := c.readGraph(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.pipelineOptions(cfg)
	flags.apply(cmd, &opts.Simplify)

	prog := newProgress(loggerFromContext(ctx))
	simplified, report, hit, err := runner.SimplifyWithCacheInfo(ctx, g, opts)
	if err != nil {
		return fmt.Errorf("simplify: %w", err)
	}
	prog.done("Simplified graph")

	path := outputPath(output, input, ".simplified.json")
	if err := graph.WriteGraphFile(simplified, path); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	printSuccess("Simplify complete")
	printFile(path)
	printStats(simplified.NodeCount(), simplified.EdgeCount(), hit)
	printReport(report)
	printNewline()
	printNextStep("Layout", appName+" layout "+path)
	return ctx.Err()
}

// printReport prints the non-zero counters of a simplification.
func printReport(r transform.Result) {
	items := []struct {
		label string
		n     int
	}{
		{"technical nodes removed", r.RemovedNodes},
		{"synthetic edges", r.SyntheticEdgesCreated},
		{"transitive edges removed", r.TransitiveEdgesRemoved},
		{"orphans pruned", r.OrphanedNodes},
		{"cycle edges removed", r.CyclesRemoved},
	}
	for _, it := range items {
		if it.n > 0 {
			printDetail("%d %s", it.n, it.label)
		}
	}
}
