package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/buildinfo"
	"github.com/matzehuels/astrolabe/pkg/cache"
	"github.com/matzehuels/astrolabe/pkg/config"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/events"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "astrolabe"

// Backend names shared by the cache and events config sections.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNATS  = "nats"
	backendNone  = "none"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Astrolabe lays out proof dependency graphs in 3D",
		Long: `Astrolabe simplifies theorem-prover dependency graphs and lays them out
in three dimensions with a force-directed simulation. Positions persist per
project so a graph that grows keeps its shape between runs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (TOML or YAML)")

	root.AddCommand(c.simplifyCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.simulateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.positionsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig resolves the layered configuration.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(c.Logger).Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// pipelineOptions maps the configuration onto pipeline options.
func (c *CLI) pipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Project = cfg.Project
	opts.Seed = cfg.Seed
	opts.Simplify = cfg.Simplify
	opts.Physics = cfg.Physics
	opts.Solve = cfg.Solve
	opts.Logger = c.Logger
	return opts
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner wired to the configured backends.
// noCache replaces the configured cache with a NullCache.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, cfg.Storage.Cache, noCache)
	if err != nil {
		return nil, err
	}
	// Cached results are only reused by the same build.
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Version+":")
	runner := pipeline.NewRunner(ch, keyer, c.Logger)
	runner.TTL = cfg.Storage.Cache.TTL

	popts := cfg.PositionsOptions()
	store, err := positions.Open(ctx, popts)
	if err != nil {
		_ = runner.Close()
		return nil, fmt.Errorf("open positions store: %w", err)
	}
	runner.Positions = store

	switch cfg.Events.Backend {
	case backendNATS:
		pub, err := events.DialNATS(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			_ = runner.Close()
			return nil, fmt.Errorf("connect events: %w", err)
		}
		runner.Publisher = pub
	case "", backendNone:
	default:
		_ = runner.Close()
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}

	c.Logger.Debug("runner ready",
		"cache", cfg.Storage.Cache.Backend,
		"positions", popts.Backend,
		"events", cfg.Events.Backend)
	return runner, nil
}

func (c *CLI) newCache(ctx context.Context, cc config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cc.Backend {
	case backendRedis:
		rc, err := cache.DialRedis(ctx, cc.URL, cc.Prefix)
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		return rc, nil
	case backendNone:
		return cache.NewNullCache(), nil
	case "", backendFile:
		return c.newFileCache(cc.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}
}

// newFileCache opens a FileCache in dir, or in the XDG cache dir when empty.
func (c *CLI) newFileCache(dir string) (cache.Cache, error) {
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/astrolabe/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// outputPath derives an output path from the input when none is given.
func outputPath(output, input, suffix string) string {
	if output != "" {
		return output
	}
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + suffix
}

// readGraph loads a graph file. Edges to nodes absent from the file are
// dropped with a warning.
func (c *CLI) readGraph(path string) (*dag.DAG, error) {
	gj, err := graph.ReadGraphFile(path)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	g, dropped := graph.ToDAG(gj)
	if dropped > 0 {
		c.Logger.Warn("dropped dangling edges", "count", dropped, "file", path)
	}
	return g, nil
}
