package layout

import (
	"fmt"
	"math"
	"time"
)

// SpringMode selects how rest lengths adapt to node degree.
type SpringMode string

const (
	// SpringLinear: base + (deg_u+deg_v)*scale.
	SpringLinear SpringMode = "linear"
	// SpringSqrt: base + sqrt(deg_u+deg_v)*scale.
	SpringSqrt SpringMode = "sqrt"
	// SpringLogarithmic: base * (1 + ln(deg_u+deg_v+1)*scale).
	SpringLogarithmic SpringMode = "logarithmic"
)

// Default physics constants.
const (
	DefaultRepulsionStrength = 20.0
	DefaultRepulsionCutoff   = 60.0
	DefaultMinDistance       = 0.5
	DefaultSpringLength      = 8.0
	DefaultSpringStrength    = 0.08
	DefaultCenterStrength    = 0.005
	DefaultDamping           = 0.85
	DefaultMaxVelocity       = 4.0
	DefaultMaxStep           = 50 * time.Millisecond

	DefaultClusterStrength = 0.02
	DefaultClusterDepth    = 1

	DefaultAdaptiveScale     = 1.5
	DefaultAdaptiveMinLength = 4.0
	DefaultAdaptiveMaxLength = 40.0

	// frameRate normalizes dt so the constants above are per-frame at 60 fps.
	frameRate = 60.0
)

// ClusterConfig controls the namespace-cluster attraction force.
type ClusterConfig struct {
	Enabled  bool    `json:"enabled" toml:"enabled" yaml:"enabled"`
	Strength float64 `json:"strength" toml:"strength" yaml:"strength"`
	Depth    int     `json:"depth" toml:"depth" yaml:"depth"`
}

// AdaptiveSpringConfig controls degree-adaptive spring rest lengths.
type AdaptiveSpringConfig struct {
	Enabled   bool       `json:"enabled" toml:"enabled" yaml:"enabled"`
	Mode      SpringMode `json:"mode" toml:"mode" yaml:"mode"`
	Scale     float64    `json:"scale" toml:"scale" yaml:"scale"`
	MinLength float64    `json:"min_length" toml:"min_length" yaml:"min_length"`
	MaxLength float64    `json:"max_length" toml:"max_length" yaml:"max_length"`
}

// PhysicsConfig holds every tunable of the force simulation. It is passed by
// value into each [Engine.Step], so toggling a force never requires
// touching engine state.
type PhysicsConfig struct {
	RepulsionStrength float64       `json:"repulsion_strength" toml:"repulsion_strength" yaml:"repulsion_strength"`
	RepulsionCutoff   float64       `json:"repulsion_cutoff" toml:"repulsion_cutoff" yaml:"repulsion_cutoff"`
	MinDistance       float64       `json:"min_distance" toml:"min_distance" yaml:"min_distance"`
	SpringLength      float64       `json:"spring_length" toml:"spring_length" yaml:"spring_length"`
	SpringStrength    float64       `json:"spring_strength" toml:"spring_strength" yaml:"spring_strength"`
	CenterStrength    float64       `json:"center_strength" toml:"center_strength" yaml:"center_strength"`
	Damping           float64       `json:"damping" toml:"damping" yaml:"damping"`
	MaxVelocity       float64       `json:"max_velocity" toml:"max_velocity" yaml:"max_velocity"`
	MaxStep           time.Duration `json:"max_step" toml:"max_step" yaml:"max_step"`

	Clustering     ClusterConfig        `json:"clustering" toml:"clustering" yaml:"clustering"`
	AdaptiveSpring AdaptiveSpringConfig `json:"adaptive_spring" toml:"adaptive_spring" yaml:"adaptive_spring"`
}

// DefaultPhysics returns the standard simulation parameters: clustering off,
// sqrt-adaptive springs on.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		RepulsionStrength: DefaultRepulsionStrength,
		RepulsionCutoff:   DefaultRepulsionCutoff,
		MinDistance:       DefaultMinDistance,
		SpringLength:      DefaultSpringLength,
		SpringStrength:    DefaultSpringStrength,
		CenterStrength:    DefaultCenterStrength,
		Damping:           DefaultDamping,
		MaxVelocity:       DefaultMaxVelocity,
		MaxStep:           DefaultMaxStep,
		Clustering: ClusterConfig{
			Strength: DefaultClusterStrength,
			Depth:    DefaultClusterDepth,
		},
		AdaptiveSpring: AdaptiveSpringConfig{
			Enabled:   true,
			Mode:      SpringSqrt,
			Scale:     DefaultAdaptiveScale,
			MinLength: DefaultAdaptiveMinLength,
			MaxLength: DefaultAdaptiveMaxLength,
		},
	}
}

// Validate reports configuration values that would make the simulation
// diverge. The engine itself never validates; callers loading user input do.
func (c PhysicsConfig) Validate() error {
	switch {
	case c.Damping < 0 || c.Damping >= 1:
		return fmt.Errorf("damping must be in [0, 1), got %v", c.Damping)
	case c.MaxVelocity <= 0:
		return fmt.Errorf("max velocity must be positive, got %v", c.MaxVelocity)
	case c.MinDistance <= 0:
		return fmt.Errorf("min distance must be positive, got %v", c.MinDistance)
	case c.MaxStep <= 0:
		return fmt.Errorf("max step must be positive, got %v", c.MaxStep)
	case c.Clustering.Depth < 0:
		return fmt.Errorf("cluster depth must not be negative, got %d", c.Clustering.Depth)
	}
	switch c.AdaptiveSpring.Mode {
	case SpringLinear, SpringSqrt, SpringLogarithmic, "":
	default:
		return fmt.Errorf("unknown spring mode %q", c.AdaptiveSpring.Mode)
	}
	return nil
}

// RestLength returns the spring rest length for an edge whose endpoints
// have the given total degrees.
func (c PhysicsConfig) RestLength(degU, degV int) float64 {
	a := c.AdaptiveSpring
	if !a.Enabled {
		return c.SpringLength
	}
	d := float64(degU + degV)
	var l float64
	switch a.Mode {
	case SpringLinear:
		l = c.SpringLength + d*a.Scale
	case SpringLogarithmic:
		l = c.SpringLength * (1 + math.Log(d+1)*a.Scale)
	default:
		l = c.SpringLength + math.Sqrt(d)*a.Scale
	}
	if a.MinLength > 0 {
		l = max(l, a.MinLength)
	}
	if a.MaxLength > 0 {
		l = min(l, a.MaxLength)
	}
	return l
}

// stepScale converts a wall-clock delta into the frame-normalized factor
// applied to forces and velocities.
func (c PhysicsConfig) stepScale(dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	if c.MaxStep > 0 && dt > c.MaxStep {
		dt = c.MaxStep
	}
	return dt.Seconds() * frameRate
}
