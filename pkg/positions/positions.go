// Package positions persists node positions per project.
//
// Positions survive reloads: a layout engine seeded with saved positions
// keeps every unchanged node where the user last saw it. Stores support a
// full replace ([Store.Save]) and an incremental merge ([Store.Merge])
// that only overwrites the given IDs and leaves the rest untouched.
//
// Backends:
//   - [FileStore]: one JSON file per project, for the CLI
//   - [RedisStore]: one hash per project, for shared API deployments
//   - [MongoStore]: one document per project
//
// Use [Open] to construct a backend from [Options] and [Instrument] to
// report operations to observability hooks.
package positions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/observability"
)

// Sentinel errors for position stores.
var (
	// ErrUnknownBackend is returned by [Open] for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown positions backend")

	// ErrInvalidPosition is returned when a position has NaN or infinite
	// coordinates.
	ErrInvalidPosition = errors.New("position must be finite")
)

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Store persists positions keyed by project and node ID.
//
// Load returns an empty, non-nil map when nothing is stored for the
// project. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, project string) (map[string]geom.Vec3, error)
	Save(ctx context.Context, project string, positions map[string]geom.Vec3) error
	// Merge overwrites the given IDs and returns the total stored count.
	Merge(ctx context.Context, project string, positions map[string]geom.Vec3) (int, error)
	Delete(ctx context.Context, project string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Dir is the FileStore directory. Empty means the user config dir.
	Dir string

	// URL is a redis:// or mongodb:// connection string.
	URL string

	// Prefix namespaces Redis keys.
	Prefix string

	// Database and Collection locate the Mongo collection.
	Database   string
	Collection string
}

// Open constructs the backend named by opts.Backend, wrapped with
// [Instrument]. An empty backend name means [BackendFile].
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", BackendFile:
		s, err = NewFileStore(opts.Dir)
	case BackendRedis:
		s, err = DialRedis(ctx, opts.URL, opts.Prefix)
	case BackendMongo:
		s, err = DialMongo(ctx, opts.URL, opts.Database, opts.Collection)
	case BackendNone:
		s = NullStore{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	name := opts.Backend
	if name == "" {
		name = BackendFile
	}
	return Instrument(s, name), nil
}

// Validate rejects non-finite positions.
func Validate(positions map[string]geom.Vec3) error {
	for id, p := range positions {
		if !p.IsFinite() {
			return fmt.Errorf("%w: node %q", ErrInvalidPosition, id)
		}
	}
	return nil
}

// =============================================================================
// NullStore
// =============================================================================

// NullStore stores nothing. Load always returns an empty map.
type NullStore struct{}

// Load returns an empty map.
func (NullStore) Load(context.Context, string) (map[string]geom.Vec3, error) {
	return map[string]geom.Vec3{}, nil
}

// Save does nothing.
func (NullStore) Save(context.Context, string, map[string]geom.Vec3) error {
	return nil
}

// Merge does nothing and reports the update size.
func (NullStore) Merge(_ context.Context, _ string, p map[string]geom.Vec3) (int, error) {
	return len(p), nil
}

// Delete does nothing.
func (NullStore) Delete(context.Context, string) error {
	return nil
}

// Close does nothing.
func (NullStore) Close() error {
	return nil
}

// =============================================================================
// Instrumentation
// =============================================================================

type instrumented struct {
	Store
	backend string
}

// Instrument reports Load, Save and Merge calls on s to the registered
// observability store hooks under the given backend label.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func (s *instrumented) Load(ctx context.Context, project string) (map[string]geom.Vec3, error) {
	start := time.Now()
	p, err := s.Store.Load(ctx, project)
	observability.Store().OnLoad(ctx, s.backend, len(p), time.Since(start), err)
	return p, err
}

func (s *instrumented) Save(ctx context.Context, project string, positions map[string]geom.Vec3) error {
	start := time.Now()
	err := s.Store.Save(ctx, project, positions)
	observability.Store().OnSave(ctx, s.backend, len(positions), time.Since(start), err)
	return err
}

func (s *instrumented) Merge(ctx context.Context, project string, positions map[string]geom.Vec3) (int, error) {
	start := time.Now()
	n, err := s.Store.Merge(ctx, project, positions)
	observability.Store().OnSave(ctx, s.backend, len(positions), time.Since(start), err)
	return n, err
}

// merge copies update into base, allocating base if needed.
func merge(base, update map[string]geom.Vec3) map[string]geom.Vec3 {
	if base == nil {
		base = make(map[string]geom.Vec3, len(update))
	}
	maps.Copy(base, update)
	return base
}
