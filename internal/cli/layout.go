package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
)

// layoutFlags are the layout switches shared by layout and render.
type layoutFlags struct {
	project string
	seed    uint64
	persist bool
	refresh bool
	noCache bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "project whose stored positions seed the layout (default from config)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "spawn seed (default from config)")
	cmd.Flags().BoolVar(&f.persist, "persist", false, "merge solved positions into the project store")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
}

func (f *layoutFlags) apply(opts *pipeline.Options) {
	if f.project != "" {
		opts.Project = f.project
	}
	if f.seed != 0 {
		opts.Seed = f.seed
	}
	opts.Persist = f.persist
	opts.Refresh = f.refresh
}

// layoutCommand creates the layout command for solving 3D positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		sflags simplifyFlags
		lflags layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Solve 3D positions for a dependency graph",
		Long: `Solve 3D positions for a dependency graph.

The graph is simplified, then the force simulation warms up until it
settles and the result is fitted to the target radius. When the project has
stored positions for most nodes, warmup is skipped and only new nodes are
placed near their neighbours.

The output is a layout JSON file (same format as 'render -f json').
Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd, args[0], output, sflags, lflags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	sflags.register(cmd)
	lflags.register(cmd)

	return cmd
}

// runLayout loads the graph, solves the layout, and writes output.
func (c *CLI) runLayout(cmd *cobra.Command, input, output string, sflags simplifyFlags, lflags layoutFlags) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	g, err := c.readGraph(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, lflags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.pipelineOptions(cfg)
	sflags.apply(cmd, &opts.Simplify)
	lflags.apply(&opts)

	simplified, report, err := runner.Simplify(ctx, g, opts)
	if err != nil {
		return fmt.Errorf("simplify: %w", err)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Solving layout for %d nodes...", simplified.NodeCount()))
	spinner.Start()

	l, cacheHit, err := runner.LayoutWithCacheInfo(ctx, simplified, report, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	path := outputPath(output, input, ".layout.json")
	if err := graph.WriteLayoutFile(l, path); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	printSuccess("Layout complete")
	printFile(path)
	printStats(simplified.NodeCount(), simplified.EdgeCount(), cacheHit)
	printSolve(l)
	if opts.Persist {
		printDetail("positions saved to project %s", opts.Project)
	}
	printNewline()
	printNextStep("Render", appName+" render "+input+" --pinned")

	return nil
}

// printSolve prints how the positions were obtained.
func printSolve(l graph.Layout) {
	s := l.Solve
	switch {
	case s.FastPath:
		printDetail("seeded from stored positions, warmup skipped")
	case s.Warmup.Converged:
		printDetail("converged after %d iterations", s.Warmup.Iterations)
	default:
		printDetail("stopped after %d iterations (movement %.3g)", s.Warmup.Iterations, s.Warmup.Movement)
	}
	if s.Dense {
		printDetail("dense graph")
	}
	printKeyValue("radius", fmt.Sprintf("%.1f", l.Radius))
}
