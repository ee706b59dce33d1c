package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/astrolabe/pkg/observability"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
	"github.com/matzehuels/astrolabe/pkg/positions"
)

const proofGraph = `{
	"nodes": [
		{"id": "Nat.add_comm", "kind": "theorem"},
		{"id": "Nat.instAddNat", "kind": "instance"},
		{"id": "Nat.add", "kind": "definition"},
		{"id": "Nat.succ", "kind": "definition"}
	],
	"edges": [
		{"source": "Nat.add_comm", "target": "Nat.instAddNat"},
		{"source": "Nat.instAddNat", "target": "Nat.add"},
		{"source": "Nat.add", "target": "Nat.succ"},
		{"source": "Nat.add_comm", "target": "Nat.succ"},
		{"source": "Nat.add", "target": "Nat.ghost"}
	]%s
}`

func withOptions(extra string) string {
	if extra == "" {
		return strings.Replace(proofGraph, "%s", "", 1)
	}
	return strings.Replace(proofGraph, "%s", ",\n"+extra, 1)
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *pipeline.Runner) {
	t.Helper()
	store, err := positions.NewFileStore(t.TempDir())
	require.NoError(t, err)
	runner := pipeline.NewRunner(nil, nil, nil)
	runner.Positions = store
	return New(runner, opts...), runner
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"dev"`)
	assert.Contains(t, rec.Body.String(), `"commit":`)
}

func TestSimplify(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/simplify", withOptions(`"simplify": {"hide_technical": true, "transitive_reduction": true}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp simplifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.DroppedEdges)
	assert.Equal(t, 1, resp.Result.RemovedNodes)
	assert.Equal(t, 1, resp.Result.SyntheticEdgesCreated)
	assert.Equal(t, 1, resp.Result.TransitiveEdgesRemoved)
	assert.Len(t, resp.Nodes, 3)
	require.Len(t, resp.Edges, 2)

	var synthetic int
	for _, e := range resp.Edges {
		if e.Synthetic {
			synthetic++
			assert.Equal(t, "Nat.add_comm->Nat.add", e.ID)
		}
	}
	assert.Equal(t, 1, synthetic)
}

func TestSimplifyDefaultsKeepTechnical(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/simplify", withOptions(""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp simplifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Nodes, 4)
	assert.Zero(t, resp.Result.RemovedNodes)
}

func TestLayoutPersists(t *testing.T) {
	s, runner := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/layout", withOptions(`"project": "flt", "persist": true`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp layoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Positions, 4)
	assert.False(t, resp.Solve.FastPath)

	stored, err := runner.LoadPositions(context.Background(), "flt")
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	// A second layout is seeded from the stored positions.
	rec = do(t, s, http.MethodPost, "/api/layout", withOptions(`"project": "flt"`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Solve.FastPath)
}

func TestRender(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/render", withOptions(`"format": "dot", "cluster_depth": 0`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/vnd.graphviz", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "digraph G")
	assert.NotContains(t, rec.Body.String(), "subgraph")
}

func TestDeps(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/graph/deps", withOptions(`"id": "Nat.add"`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var deps pipeline.Deps
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deps))
	assert.Equal(t, []string{"Nat.succ"}, deps.DependsOn)
	assert.Equal(t, []string{"Nat.instAddNat"}, deps.UsedBy)

	rec = do(t, s, http.MethodPost, "/api/graph/deps", withOptions(`"id": "Nat.nope"`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestPositionsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/positions", `{"project": "flt", "positions": {"a": {"x": 1, "y": 2, "z": 3}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/positions", `{"project": "flt", "positions": {"b": {"x": 4, "y": 5, "z": 6}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved positionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, 1, saved.Saved)
	assert.Equal(t, 2, saved.Total)

	rec = do(t, s, http.MethodGet, "/api/positions?project=flt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got positionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2.0, got.Positions["a"].Y)
	assert.Equal(t, 6.0, got.Positions["b"].Z)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"BadJSON", http.MethodPost, "/api/simplify", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"BadVersion", http.MethodPost, "/api/simplify", `{"version": "9", "nodes": [], "edges": []}`, http.StatusBadRequest, "INVALID_GRAPH"},
		{"BadFormat", http.MethodPost, "/api/render", withOptions(`"format": "pdf"`), http.StatusBadRequest, "INVALID_INPUT"},
		{"BadProject", http.MethodGet, "/api/positions?project=a/b", "", http.StatusBadRequest, "INVALID_PROJECT"},
		{"NonFinite", http.MethodPost, "/api/positions", `{"project": "p", "positions": {"a": {"x": 1e400}}}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, WithMaxBodyBytes(16))

	rec := do(t, s, http.MethodPost, "/api/simplify", withOptions(""))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type recordingHTTPHooks struct {
	routes []string
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, method, route string, status int, _ time.Duration) {
	h.routes = append(h.routes, method+" "+route)
}

func TestInstrumentReportsRoutePattern(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)
	s, _ := newTestServer(t)

	do(t, s, http.MethodGet, "/api/positions?project=x", "")

	require.Len(t, hooks.routes, 1)
	assert.Equal(t, "GET /api/positions", hooks.routes[0])
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	s, _ = newTestServer(t, WithMetrics(metrics))
	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListenAndServeShutsDown(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0", time.Second, time.Second) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
