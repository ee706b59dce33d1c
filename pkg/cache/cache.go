// Package cache provides byte-level caching for simplified graphs and
// solved layouts.
//
// A [Cache] stores opaque byte slices under string keys with an optional
// TTL. A [Keyer] derives those keys from the content hash of the input
// graph plus the options that affect the output, so identical requests
// share entries across CLI runs and API servers.
//
// Implementations:
//   - [FileCache]: one JSON file per entry, used by the CLI
//   - [RedisCache]: shared cache for API deployments
//   - [NullCache]: disables caching
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key.
//
// Get reports a miss with (nil, false, nil); errors are reserved for
// backend failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default TTLs for cached values.
const (
	DefaultSimplifyTTL = 7 * 24 * time.Hour
	DefaultLayoutTTL   = 7 * 24 * time.Hour
)
