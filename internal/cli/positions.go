package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
)

// positionsCommand creates the positions management command.
func (c *CLI) positionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Manage stored node positions",
		Long: `Manage the node positions stored per project.

Positions are saved by 'layout --persist' and by 'simulate' whenever the
layout settles. The configured positions backend (file, redis or mongo) is
used.`,
	}

	cmd.AddCommand(c.positionsShowCommand())
	cmd.AddCommand(c.positionsImportCommand())
	cmd.AddCommand(c.positionsExportCommand())
	cmd.AddCommand(c.positionsDeleteCommand())

	return cmd
}

// withRunner loads the config, resolves the project and runs fn with a
// runner that is closed afterwards.
func (c *CLI) withRunner(cmd *cobra.Command, args []string, fn func(r *pipeline.Runner, project string) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	project := cfg.Project
	if len(args) > 0 {
		project = args[0]
	}
	if err := errors.ValidateProject(project); err != nil {
		return err
	}
	runner, err := c.newRunner(cmd.Context(), cfg, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	return fn(runner, project)
}

func (c *CLI) positionsShowCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show [project]",
		Short: "Print stored positions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRunner(cmd, args, func(r *pipeline.Runner, project string) error {
				p, err := r.LoadPositions(cmd.Context(), project)
				if err != nil {
					return err
				}
				if len(p) == 0 {
					printInfo("No positions stored for %s", project)
					return nil
				}
				printSuccess("%d positions stored for %s", len(p), project)
				ids := make([]string, 0, len(p))
				for id := range p {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for i, id := range ids {
					if limit > 0 && i == limit {
						printDetail("... %d more", len(ids)-limit)
						break
					}
					v := p[id]
					printDetail("%-40s %8.2f %8.2f %8.2f", id, v.X, v.Y, v.Z)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to print (0 for all)")
	return cmd
}

func (c *CLI) positionsImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [layout.json] [project]",
		Short: "Merge the positions of a layout file into a project",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := graph.ReadLayoutFile(args[0])
			if err != nil {
				return fmt.Errorf("load layout %s: %w", args[0], err)
			}
			return c.withRunner(cmd, args[1:], func(r *pipeline.Runner, project string) error {
				total, err := r.SavePositions(cmd.Context(), project, l.Positions)
				if err != nil {
					return err
				}
				printSuccess("Imported %d positions into %s", len(l.Positions), project)
				printDetail("%d stored in total", total)
				return nil
			})
		},
	}
}

func (c *CLI) positionsExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [project]",
		Short: "Write stored positions as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRunner(cmd, args, func(r *pipeline.Runner, project string) error {
				p, err := r.LoadPositions(cmd.Context(), project)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return graph.Encode(p, stdout)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				if err := graph.Encode(p, f); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				printSuccess("Exported %d positions", len(p))
				printFile(output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *CLI) positionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [project]",
		Short: "Delete all stored positions of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRunner(cmd, args, func(r *pipeline.Runner, project string) error {
				if err := r.Positions.Delete(cmd.Context(), project); err != nil {
					return fmt.Errorf("delete positions: %w", err)
				}
				printSuccess("Deleted positions for %s", project)
				return nil
			})
		},
	}
}
