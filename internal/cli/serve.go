package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/api"
	"github.com/matzehuels/astrolabe/pkg/config"
	"github.com/matzehuels/astrolabe/pkg/observability"
)

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noMetrics bool
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simplify and layout pipeline over HTTP",
		Long: `Serve the pipeline over HTTP.

Routes live under /api (health, simplify, layout, render, graph/deps,
positions). Prometheus metrics are served on /metrics unless disabled.
The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if noMetrics {
				cfg.Server.Metrics = false
			}
			return c.runServe(cmd, cfg, noCache)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", fmt.Sprintf("listen address (default %s)", config.DefaultAddr))
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, cfg *config.Config, noCache bool) error {
	ctx := cmd.Context()
	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := []api.Option{
		api.WithLogger(c.Logger),
		api.WithDefaults(c.pipelineOptions(cfg)),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom := observability.NewPrometheus(reg)
		observability.Register(prom)
		defer observability.Reset()
		opts = append(opts, api.WithMetrics(prom.Handler()))
	}

	srv := api.New(runner, opts...)
	printSuccess("Serving on %s", cfg.Server.Addr)
	printKeyValue("project", cfg.Project)
	printKeyValue("cache", cfg.Storage.Cache.Backend)
	printKeyValue("positions", cfg.Storage.Positions.Backend)
	printKeyValue("events", cfg.Events.Backend)
	if cfg.Server.Metrics {
		printKeyValue("metrics", "/metrics")
	}

	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}
