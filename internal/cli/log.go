// Package cli implements the astrolabe command-line interface.
//
// The commands drive the simplify, layout and render pipeline on graph
// files, run the interactive stability simulation, serve the HTTP API and
// manage the local cache, stored positions and configuration. The CLI is
// built using cobra and logs via charmbracelet/log.
//
// # Commands
//
//   - simplify: Elide technical nodes and reduce a graph
//   - layout: Solve 3D positions and write a layout file
//   - render: Export DOT, SVG or layout JSON
//   - simulate: Run the live simulation until it settles
//   - serve: Serve the HTTP API
//   - positions: Show, import or delete stored positions
//   - cache: Manage the simplify/layout cache
//   - config: Show or write the resolved configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The root
// command attaches the logger to the command context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger: timestamps as "15:04:05.00", filtered
// at level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long a stage took, e.g. "Simplified 120 nodes (35ms)".
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey struct{}

// withLogger attaches l to ctx for commands that only receive a context.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default when there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
