package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnSimplifyStart(ctx, 100)
	p.OnSimplifyComplete(ctx, 100, 12, time.Second, nil)
	p.OnLayoutStart(ctx, 88)
	p.OnLayoutComplete(ctx, 400, false, time.Second, nil)

	s := NoopSimulationHooks{}
	s.OnTick(ctx, 0.5)
	s.OnStable(ctx, 60)
	s.OnRebuild(ctx, 10)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "simplify")
	c.OnCacheMiss(ctx, "layout")
	c.OnCacheSet(ctx, "layout", 1024)

	st := NoopStoreHooks{}
	st.OnLoad(ctx, "file", 3, time.Millisecond, nil)
	st.OnSave(ctx, "redis", 3, time.Millisecond, errors.New("down"))

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "/api/layout", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Simulation().(NoopSimulationHooks); !ok {
		t.Error("Simulation() should return NoopSimulationHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

func TestRegisterInstallsImplementedCategories(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testCacheHooks{}
	Register(custom)

	if Cache() != custom {
		t.Error("Register should install cache hooks")
	}
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Register should leave unimplemented categories untouched")
	}
}

func TestPrometheusRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)
	ctx := context.Background()

	p.OnCacheHit(ctx, "layout")
	p.OnCacheHit(ctx, "layout")
	p.OnCacheMiss(ctx, "simplify")
	p.OnCacheSet(ctx, "simplify", 512)
	p.OnSimplifyComplete(ctx, 10, 4, time.Millisecond, nil)
	p.OnStable(ctx, 60)
	p.OnTick(ctx, 0.25)
	p.OnSave(ctx, "redis", 3, time.Millisecond, errors.New("down"))
	p.OnRequest(ctx, "GET", "/api/health", 200, time.Millisecond)

	if got := testutil.ToFloat64(p.cacheOps.WithLabelValues("layout", "hit")); got != 2 {
		t.Errorf("layout hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.cacheBytes.WithLabelValues("simplify")); got != 512 {
		t.Errorf("simplify bytes = %v, want 512", got)
	}
	if got := testutil.ToFloat64(p.simplifyRemoved); got != 4 {
		t.Errorf("removed = %v, want 4", got)
	}
	if got := testutil.ToFloat64(p.stableEvents); got != 1 {
		t.Errorf("stable = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.movement); got != 0.25 {
		t.Errorf("movement = %v, want 0.25", got)
	}
	if got := testutil.ToFloat64(p.storeErrors.WithLabelValues("redis", "save")); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.httpRequests.WithLabelValues("GET", "/api/health", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())
	p.OnRebuild(context.Background(), 5)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "astrolabe_simulation_rebuilds_total 1") {
		t.Errorf("metrics output missing rebuild counter:\n%s", rec.Body.String())
	}
}

type testPipelineHooks struct{ NoopPipelineHooks }
type testCacheHooks struct{ NoopCacheHooks }
