package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/pipeline"
)

// renderCommand creates the render command for exporting a graph.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output string
		sflags simplifyFlags
		lflags layoutFlags
	)
	opts := pipeline.Options{
		Format:       pipeline.DefaultFormat,
		ClusterDepth: pipeline.DefaultClusterDepth,
	}

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Export a dependency graph as DOT, SVG or layout JSON",
		Long: `Export a dependency graph.

The graph runs through the full pipeline (simplify, layout, render).
Formats:
  dot   Graphviz source with namespace clusters
  svg   rendered with the embedded Graphviz
  json  layout JSON with solved positions

With --pinned, nodes are drawn at their solved positions projected onto the
XY plane instead of being ranked by Graphviz.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], output, opts, sflags, lflags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.<format>, - for stdout)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", opts.Format, "output format: dot, svg, json")
	cmd.Flags().IntVar(&opts.ClusterDepth, "cluster-depth", opts.ClusterDepth, "namespace depth for clusters (0 disables)")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show kind and metadata in node labels")
	cmd.Flags().BoolVar(&opts.Pinned, "pinned", false, "draw nodes at their solved positions")
	sflags.register(cmd)
	lflags.register(cmd)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input, output string, flags pipeline.Options, sflags simplifyFlags, lflags layoutFlags) error {
	ctx := cmd.Context()
	if err := pipeline.ValidateFormat(flags.Format); err != nil {
		return err
	}
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
	opts.Format = flags.Format
	opts.ClusterDepth = flags.ClusterDepth
	opts.Detailed = flags.Detailed
	opts.Pinned = flags.Pinned

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.Format))
	spinner.Start()

	res, err := runner.Execute(ctx, g, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if output == "-" {
		_, err := stdout.Write(res.Artifact)
		return err
	}
	path := outputPath(output, input, "."+opts.Format)
	if err := os.WriteFile(path, res.Artifact, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	printSuccess("Render complete")
	printFile(path)
	printStats(res.Stats.SimplifiedNodes, res.Stats.SimplifiedEdges, res.CacheInfo.SimplifyHit && res.CacheInfo.LayoutHit)
	c.Logger.Debug("stage timings",
		"simplify", res.Stats.SimplifyTime,
		"layout", res.Stats.LayoutTime,
		"render", res.Stats.RenderTime)
	return nil
}
