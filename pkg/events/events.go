// Package events publishes layout lifecycle events to external
// collaborators.
//
// The main event is [TypeStable]: a running simulation settled and its
// positions are worth persisting or showing. Publishers are fire-and-forget
// from the simulation's point of view; errors are returned so callers can
// log them, never retried here.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/stability"
)

// Event types.
const (
	TypeStable  = "layout.stable"
	TypeRebuilt = "layout.rebuilt"
)

// Event is the payload published for layout lifecycle changes.
type Event struct {
	ID        uuid.UUID            `json:"id"`
	Type      string               `json:"type"`
	Project   string               `json:"project"`
	Tick      uint64               `json:"tick"`
	At        time.Time            `json:"at"`
	NodeCount int                  `json:"node_count"`
	Positions map[string]geom.Vec3 `json:"positions,omitempty"`
}

// StableEvent builds a [TypeStable] event from a controller snapshot.
// The event ID is the snapshot ID so consumers can deduplicate.
func StableEvent(project string, s stability.Snapshot) Event {
	return Event{
		ID:        s.ID,
		Type:      TypeStable,
		Project:   project,
		Tick:      s.Tick,
		At:        s.At,
		NodeCount: len(s.Positions),
		Positions: s.Positions,
	}
}

// RebuiltEvent builds a [TypeRebuilt] event. Rebuilds carry no positions;
// a stable event follows once the fresh layout settles.
func RebuiltEvent(project string, nodeCount int, tick uint64, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      TypeRebuilt,
		Project:   project,
		Tick:      tick,
		At:        at,
		NodeCount: nodeCount,
	}
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Encode serializes an event as JSON.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
