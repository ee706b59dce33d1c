package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "astrolabe"

// Prometheus implements every hook interface by recording Prometheus
// metrics. Create it with [NewPrometheus] and install it with [Register].
type Prometheus struct {
	gatherer prometheus.Gatherer

	simplifyDuration *prometheus.HistogramVec
	simplifyRemoved  prometheus.Counter
	layoutDuration   *prometheus.HistogramVec
	layoutIterations prometheus.Histogram

	ticks        prometheus.Counter
	movement     prometheus.Gauge
	stableEvents prometheus.Counter
	rebuilds     prometheus.Counter

	cacheOps   *prometheus.CounterVec
	cacheBytes *prometheus.CounterVec

	storeDuration *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheus creates metrics and registers them with reg.
// Registering twice on the same registry panics, as with promauto.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		simplifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simplify_duration_seconds",
			Help:      "Time spent simplifying declaration graphs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		simplifyRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simplify_removed_nodes_total",
			Help:      "Nodes removed by simplification.",
		}),
		layoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Time spent solving initial layouts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"path", "outcome"}),
		layoutIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_warmup_iterations",
			Help:      "Warmup iterations per solved layout.",
			Buckets:   prometheus.LinearBuckets(200, 200, 8),
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_ticks_total",
			Help:      "Physics steps executed by running simulations.",
		}),
		movement: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulation_movement",
			Help:      "Average node movement of the most recent tick.",
		}),
		stableEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_stable_total",
			Help:      "Times a simulation settled.",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_rebuilds_total",
			Help:      "Full re-layouts triggered by large graph changes.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache lookups and writes by key type and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the cache by key type.",
		}, []string{"key_type"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "positions_store_duration_seconds",
			Help:      "Position store latency by backend and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_store_errors_total",
			Help:      "Position store failures by backend and operation.",
		}, []string{"backend", "op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		p.simplifyDuration, p.simplifyRemoved, p.layoutDuration, p.layoutIterations,
		p.ticks, p.movement, p.stableEvents, p.rebuilds,
		p.cacheOps, p.cacheBytes,
		p.storeDuration, p.storeErrors,
		p.httpRequests, p.httpDuration,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		p.gatherer = g
	}
	return p
}

// Handler returns an HTTP handler exposing the registry the metrics were
// registered with. It falls back to the default gatherer when the
// registerer cannot gather.
func (p *Prometheus) Handler() http.Handler {
	g := p.gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnSimplifyStart(context.Context, int) {}

func (p *Prometheus) OnSimplifyComplete(_ context.Context, _ int, removed int, d time.Duration, err error) {
	p.simplifyDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
	if err == nil {
		p.simplifyRemoved.Add(float64(removed))
	}
}

func (p *Prometheus) OnLayoutStart(context.Context, int) {}

func (p *Prometheus) OnLayoutComplete(_ context.Context, iterations int, fastPath bool, d time.Duration, err error) {
	path := "warmup"
	if fastPath {
		path = "fast"
	}
	p.layoutDuration.WithLabelValues(path, outcome(err)).Observe(d.Seconds())
	if !fastPath && err == nil {
		p.layoutIterations.Observe(float64(iterations))
	}
}

func (p *Prometheus) OnTick(_ context.Context, movement float64) {
	p.ticks.Inc()
	p.movement.Set(movement)
}

func (p *Prometheus) OnStable(context.Context, uint64) { p.stableEvents.Inc() }

func (p *Prometheus) OnRebuild(context.Context, int) { p.rebuilds.Inc() }

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheOps.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnLoad(_ context.Context, backend string, _ int, d time.Duration, err error) {
	p.observeStore(backend, "load", d, err)
}

func (p *Prometheus) OnSave(_ context.Context, backend string, _ int, d time.Duration, err error) {
	p.observeStore(backend, "save", d, err)
}

func (p *Prometheus) observeStore(backend, op string, d time.Duration, err error) {
	p.storeDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	if err != nil {
		p.storeErrors.WithLabelValues(backend, op).Inc()
	}
}

func (p *Prometheus) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ PipelineHooks   = (*Prometheus)(nil)
	_ SimulationHooks = (*Prometheus)(nil)
	_ CacheHooks      = (*Prometheus)(nil)
	_ StoreHooks      = (*Prometheus)(nil)
	_ HTTPHooks       = (*Prometheus)(nil)
)
