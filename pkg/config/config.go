// Package config loads astrolabe settings from TOML or YAML files.
//
// Settings are layered: built-in defaults, then the user config
// (~/.config/astrolabe/config.toml or .yaml), then the first project file
// (astrolabe.toml, astrolabe.yaml or astrolabe.yml) found in the working
// directory or its parents, then an explicit --config file. Each layer only
// overrides the keys it sets.
package config

import (
	"fmt"
	"time"

	"github.com/matzehuels/astrolabe/pkg/cache"
	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
	"github.com/matzehuels/astrolabe/pkg/core/stability"
	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/events"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

// Config is the complete astrolabe configuration.
type Config struct {
	// Project keys persisted positions and published events.
	Project string `toml:"project" yaml:"project" json:"project"`

	// Seed makes spawning deterministic.
	Seed uint64 `toml:"seed" yaml:"seed" json:"seed"`

	Simplify  transform.Options    `toml:"simplify" yaml:"simplify" json:"simplify"`
	Physics   layout.PhysicsConfig `toml:"physics" yaml:"physics" json:"physics"`
	Solve     layout.SolveOptions  `toml:"solve" yaml:"solve" json:"solve"`
	Stability StabilityConfig      `toml:"stability" yaml:"stability" json:"stability"`
	Storage   StorageConfig        `toml:"storage" yaml:"storage" json:"storage"`
	Events    EventsConfig         `toml:"events" yaml:"events" json:"events"`
	Server    ServerConfig         `toml:"server" yaml:"server" json:"server"`
}

// StabilityConfig controls convergence detection.
type StabilityConfig struct {
	Threshold    float64 `toml:"threshold" yaml:"threshold" json:"threshold"`
	StableTicks  int     `toml:"stable_ticks" yaml:"stable_ticks" json:"stable_ticks"`
	RebuildRatio float64 `toml:"rebuild_ratio" yaml:"rebuild_ratio" json:"rebuild_ratio"`
}

// StorageConfig selects the cache and positions backends.
type StorageConfig struct {
	Cache     CacheConfig     `toml:"cache" yaml:"cache" json:"cache"`
	Positions PositionsConfig `toml:"positions" yaml:"positions" json:"positions"`
}

// CacheConfig configures the simplify/layout cache.
type CacheConfig struct {
	// Backend is "file", "redis" or "none".
	Backend string        `toml:"backend" yaml:"backend" json:"backend"`
	Dir     string        `toml:"dir" yaml:"dir" json:"dir,omitempty"`
	URL     string        `toml:"url" yaml:"url" json:"url,omitempty"`
	Prefix  string        `toml:"prefix" yaml:"prefix" json:"prefix,omitempty"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl" json:"ttl"`
}

// PositionsConfig configures the positions store.
type PositionsConfig struct {
	// Backend is "file", "redis", "mongo" or "none".
	Backend    string `toml:"backend" yaml:"backend" json:"backend"`
	Dir        string `toml:"dir" yaml:"dir" json:"dir,omitempty"`
	URL        string `toml:"url" yaml:"url" json:"url,omitempty"`
	Prefix     string `toml:"prefix" yaml:"prefix" json:"prefix,omitempty"`
	Database   string `toml:"database" yaml:"database" json:"database,omitempty"`
	Collection string `toml:"collection" yaml:"collection" json:"collection,omitempty"`
}

// EventsConfig configures stable-layout event publishing.
type EventsConfig struct {
	// Backend is "none" or "nats".
	Backend       string `toml:"backend" yaml:"backend" json:"backend"`
	URL           string `toml:"url" yaml:"url" json:"url,omitempty"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix" json:"subject_prefix"`
}

// ServerConfig configures `astrolabe serve`.
type ServerConfig struct {
	Addr         string        `toml:"addr" yaml:"addr" json:"addr"`
	Metrics      bool          `toml:"metrics" yaml:"metrics" json:"metrics"`
	ReadTimeout  time.Duration `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Defaults.
const (
	DefaultProject      = "default"
	DefaultSeed         = 42
	DefaultAddr         = ":8420"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 2 * time.Minute
	DefaultMaxBodyBytes = 64 << 20
)

// Default returns the built-in configuration.
func Default() *Config {
	sc := stability.DefaultConfig()
	return &Config{
		Project:  DefaultProject,
		Seed:     DefaultSeed,
		Simplify: transform.DefaultOptions(),
		Physics:  sc.Physics,
		Solve:    sc.Solve,
		Stability: StabilityConfig{
			Threshold:    sc.Threshold,
			StableTicks:  sc.StableTicks,
			RebuildRatio: sc.RebuildRatio,
		},
		Storage: StorageConfig{
			Cache: CacheConfig{
				Backend: "file",
				TTL:     cache.DefaultLayoutTTL,
			},
			Positions: PositionsConfig{
				Backend: positions.BackendFile,
			},
		},
		Events: EventsConfig{
			Backend:       "none",
			SubjectPrefix: events.DefaultSubjectPrefix,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			Metrics:      true,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

// Controller assembles the stability controller configuration.
func (c *Config) Controller() stability.Config {
	return stability.Config{
		Threshold:    c.Stability.Threshold,
		StableTicks:  c.Stability.StableTicks,
		RebuildRatio: c.Stability.RebuildRatio,
		Physics:      c.Physics,
		Solve:        c.Solve,
	}
}

// PositionsOptions converts the positions section for [positions.Open].
func (c *Config) PositionsOptions() positions.Options {
	p := c.Storage.Positions
	return positions.Options{
		Backend:    p.Backend,
		Dir:        p.Dir,
		URL:        p.URL,
		Prefix:     p.Prefix,
		Database:   p.Database,
		Collection: p.Collection,
	}
}

// Validate checks the configuration. Errors carry [errors.ErrCodeInvalidConfig].
func (c *Config) Validate() error {
	if err := errors.ValidateProject(c.Project); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "project")
	}
	if err := c.Physics.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "physics")
	}
	if c.Stability.Threshold <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "stability.threshold must be positive, got %v", c.Stability.Threshold)
	}
	if c.Stability.StableTicks < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "stability.stable_ticks must be at least 1, got %d", c.Stability.StableTicks)
	}
	if c.Stability.RebuildRatio < 0 || c.Stability.RebuildRatio > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "stability.rebuild_ratio must be in [0, 1], got %v", c.Stability.RebuildRatio)
	}
	if c.Solve.TargetRadius <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "solve.target_radius must be positive, got %v", c.Solve.TargetRadius)
	}
	w := c.Solve.Warmup
	if w.MinIterations < 0 || w.MaxIterations < w.MinIterations {
		return errors.New(errors.ErrCodeInvalidConfig, "solve.warmup iterations must satisfy 0 <= min <= max, got %d..%d", w.MinIterations, w.MaxIterations)
	}
	if w.Dt <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "solve.warmup.dt must be positive, got %v", w.Dt)
	}

	if err := oneOf("storage.cache.backend", c.Storage.Cache.Backend, "file", "redis", "none"); err != nil {
		return err
	}
	if c.Storage.Cache.Backend == "redis" && c.Storage.Cache.URL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "storage.cache.url is required for the redis backend")
	}
	pb := c.Storage.Positions.Backend
	if err := oneOf("storage.positions.backend", pb,
		positions.BackendFile, positions.BackendRedis, positions.BackendMongo, positions.BackendNone); err != nil {
		return err
	}
	if (pb == positions.BackendRedis || pb == positions.BackendMongo) && c.Storage.Positions.URL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "storage.positions.url is required for the %s backend", pb)
	}
	if err := oneOf("events.backend", c.Events.Backend, "none", "nats"); err != nil {
		return err
	}
	if c.Events.Backend == "nats" && c.Events.URL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "events.url is required for the nats backend")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_body_bytes must be positive")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidConfig, "%s must be one of %v, got %q", field, allowed, value)
}

// String renders the configuration as TOML for display.
func (c *Config) String() string {
	data, err := Marshal(c, FormatTOML)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
