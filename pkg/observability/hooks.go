// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without wiring a backend
// into the core packages. Consumers register hooks at startup to receive
// events about simplification, layout, simulation, caching, position
// storage and API requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// [Prometheus] implements every hook interface and is what the CLI
// registers when metrics are enabled.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := observability.NewPrometheus(prometheus.NewRegistry())
//	    observability.Register(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnSimplifyStart(ctx, nodeCount)
//	// ... simplify ...
//	observability.Pipeline().OnSimplifyComplete(ctx, nodeCount, removed, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the simplify and layout pipeline.
type PipelineHooks interface {
	// Simplify events
	OnSimplifyStart(ctx context.Context, nodeCount int)
	OnSimplifyComplete(ctx context.Context, nodeCount, removed int, duration time.Duration, err error)

	// Layout events
	OnLayoutStart(ctx context.Context, nodeCount int)
	OnLayoutComplete(ctx context.Context, iterations int, fastPath bool, duration time.Duration, err error)
}

// =============================================================================
// Simulation Hooks
// =============================================================================

// SimulationHooks receives events from a running stability controller.
type SimulationHooks interface {
	// OnTick records one physics step and the average movement it produced.
	OnTick(ctx context.Context, movement float64)

	// OnStable records that the layout settled after tick.
	OnStable(ctx context.Context, tick uint64)

	// OnRebuild records a full re-layout caused by a large graph change.
	OnRebuild(ctx context.Context, nodeCount int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from position store backends.
type StoreHooks interface {
	// OnLoad records a positions load. count is the number of positions returned.
	OnLoad(ctx context.Context, backend string, count int, duration time.Duration, err error)

	// OnSave records a positions save. count is the number of positions written.
	OnSave(ctx context.Context, backend string, count int, duration time.Duration, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the API server.
type HTTPHooks interface {
	// OnRequest records a served request. route is the matched pattern,
	// not the raw path, to keep label cardinality bounded.
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnSimplifyStart(context.Context, int) {}
func (NoopPipelineHooks) OnSimplifyComplete(context.Context, int, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnLayoutStart(context.Context, int) {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, int, bool, time.Duration, error) {
}

// NoopSimulationHooks is a no-op implementation of SimulationHooks.
type NoopSimulationHooks struct{}

func (NoopSimulationHooks) OnTick(context.Context, float64)  {}
func (NoopSimulationHooks) OnStable(context.Context, uint64) {}
func (NoopSimulationHooks) OnRebuild(context.Context, int)   {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnLoad(context.Context, string, int, time.Duration, error) {}
func (NoopStoreHooks) OnSave(context.Context, string, int, time.Duration, error) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Registry
// =============================================================================

// registry holds the installed hooks. Setters run at startup, getters on
// every event, hence the RWMutex.
type registry struct {
	mu         sync.RWMutex
	pipeline   PipelineHooks
	simulation SimulationHooks
	cache      CacheHooks
	store      StoreHooks
	http       HTTPHooks
}

var hooks = newRegistry()

func newRegistry() *registry {
	return &registry{
		pipeline:   NoopPipelineHooks{},
		simulation: NoopSimulationHooks{},
		cache:      NoopCacheHooks{},
		store:      NoopStoreHooks{},
		http:       NoopHTTPHooks{},
	}
}

// install sets *slot to h under the write lock. A nil h is ignored.
func install[T comparable](slot *T, h T) {
	var zero T
	if h == zero {
		return
	}
	hooks.mu.Lock()
	*slot = h
	hooks.mu.Unlock()
}

func load[T any](slot *T) T {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return *slot
}

// SetPipelineHooks installs h; call it at startup. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) { install(&hooks.pipeline, h) }

// SetSimulationHooks installs h. Nil is ignored.
func SetSimulationHooks(h SimulationHooks) { install(&hooks.simulation, h) }

// SetCacheHooks installs h. Nil is ignored.
func SetCacheHooks(h CacheHooks) { install(&hooks.cache, h) }

// SetStoreHooks installs h. Nil is ignored.
func SetStoreHooks(h StoreHooks) { install(&hooks.store, h) }

// SetHTTPHooks installs h. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) { install(&hooks.http, h) }

// Register installs h for every hook category it implements.
func Register(h any) {
	if v, ok := h.(PipelineHooks); ok {
		SetPipelineHooks(v)
	}
	if v, ok := h.(SimulationHooks); ok {
		SetSimulationHooks(v)
	}
	if v, ok := h.(CacheHooks); ok {
		SetCacheHooks(v)
	}
	if v, ok := h.(StoreHooks); ok {
		SetStoreHooks(v)
	}
	if v, ok := h.(HTTPHooks); ok {
		SetHTTPHooks(v)
	}
}

func Pipeline() PipelineHooks     { return load(&hooks.pipeline) }
func Simulation() SimulationHooks { return load(&hooks.simulation) }
func Cache() CacheHooks           { return load(&hooks.cache) }
func Store() StoreHooks           { return load(&hooks.store) }
func HTTP() HTTPHooks             { return load(&hooks.http) }

// Reset restores the no-op hooks. Tests and `serve` shutdown use it.
func Reset() {
	fresh := newRegistry()
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	hooks.pipeline = fresh.pipeline
	hooks.simulation = fresh.simulation
	hooks.cache = fresh.cache
	hooks.store = fresh.store
	hooks.http = fresh.http
}
