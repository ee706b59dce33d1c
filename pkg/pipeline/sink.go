package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/astrolabe/pkg/core/stability"
	"github.com/matzehuels/astrolabe/pkg/events"
	"github.com/matzehuels/astrolabe/pkg/observability"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

// DefaultSinkTimeout bounds persisting and publishing one snapshot.
const DefaultSinkTimeout = 10 * time.Second

// StableSink hands stable snapshots of a running simulation to the
// positions store and the event publisher.
//
// Failures are logged, never returned to the controller: the simulation
// keeps running whether or not a backend is reachable.
type StableSink struct {
	Project   string
	Store     positions.Store
	Publisher events.Publisher
	Logger    *log.Logger
	Timeout   time.Duration
}

// StableSink creates a sink for project that uses the runner's backends.
func (r *Runner) StableSink(project string) *StableSink {
	return &StableSink{
		Project:   project,
		Store:     r.Positions,
		Publisher: r.Publisher,
		Logger:    r.Logger,
		Timeout:   DefaultSinkTimeout,
	}
}

// Attach registers the sink as a stable listener on c.
func (s *StableSink) Attach(ctx context.Context, c *stability.Controller) {
	c.OnStable(func(snap stability.Snapshot) {
		s.Stable(ctx, snap)
	})
}

// Stable persists snap and publishes a [events.TypeStable] event.
// It reports whether both succeeded.
func (s *StableSink) Stable(ctx context.Context, snap stability.Snapshot) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logger := s.logger()

	observability.Simulation().OnStable(ctx, snap.Tick)

	ok := true
	if s.Store != nil {
		total, err := s.Store.Merge(ctx, s.Project, snap.Positions)
		if err != nil {
			logger.Warn("persist stable positions failed", "project", s.Project, "error", err)
			ok = false
		} else {
			logger.Debug("persisted stable positions", "project", s.Project, "stored", total)
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, events.StableEvent(s.Project, snap)); err != nil {
			logger.Warn("publish stable event failed", "project", s.Project, "error", err)
			ok = false
		}
	}
	return ok
}

// Rebuilt reports that the controller discarded incremental state and
// warmed up from scratch for a graph of nodeCount nodes.
func (s *StableSink) Rebuilt(ctx context.Context, nodeCount int, tick uint64) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	observability.Simulation().OnRebuild(ctx, nodeCount)
	if s.Publisher == nil {
		return
	}
	e := events.RebuiltEvent(s.Project, nodeCount, tick, time.Now())
	if err := s.Publisher.Publish(ctx, e); err != nil {
		s.logger().Warn("publish rebuilt event failed", "project", s.Project, "error", err)
	}
}

func (s *StableSink) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *StableSink) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard)
	}
	return s.Logger
}
