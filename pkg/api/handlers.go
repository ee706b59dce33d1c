package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/astrolabe/pkg/buildinfo"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/errors"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
)

// =============================================================================
// Request / Response Types
// =============================================================================

// graphRequest is a graph plus the options shared by the pipeline routes.
// Nil option fields keep the server defaults.
type graphRequest struct {
	graph.Graph

	Project      string             `json:"project,omitempty"`
	Simplify     *transform.Options `json:"simplify,omitempty"`
	Seed         uint64             `json:"seed,omitempty"`
	Persist      bool               `json:"persist,omitempty"`
	Refresh      bool               `json:"refresh,omitempty"`
	Format       string             `json:"format,omitempty"`
	ClusterDepth *int               `json:"cluster_depth,omitempty"`
	Detailed     bool               `json:"detailed,omitempty"`
	Pinned       bool               `json:"pinned,omitempty"`
}

type simplifyResponse struct {
	graph.Graph
	Result       transform.Result `json:"result"`
	DroppedEdges int              `json:"dropped_edges"`
	Cached       bool             `json:"cached"`
}

type layoutResponse struct {
	graph.Layout
	DroppedEdges int  `json:"dropped_edges"`
	Cached       bool `json:"cached"`
}

type depsRequest struct {
	graph.Graph
	ID string `json:"id"`
}

type positionsRequest struct {
	Project   string               `json:"project"`
	Positions map[string]geom.Vec3 `json:"positions"`
}

type positionsResponse struct {
	Project   string               `json:"project"`
	Positions map[string]geom.Vec3 `json:"positions,omitempty"`
	Saved     int                  `json:"saved,omitempty"`
	Total     int                  `json:"total"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, dropped, err := toDAG(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := s.options(req)

	simplified, report, hit, err := s.runner.SimplifyWithCacheInfo(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, simplifyResponse{
		Graph:        graph.FromDAG(simplified),
		Result:       report,
		DroppedEdges: dropped,
		Cached:       hit,
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, dropped, err := toDAG(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := s.options(req)

	simplified, report, err := s.runner.Simplify(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	l, hit, err := s.runner.LayoutWithCacheInfo(r.Context(), simplified, report, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Layout: l, DroppedEdges: dropped, Cached: hit})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, _, err := toDAG(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := s.options(req)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Execute(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(opts.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifact)
}

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	var req depsRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, _, err := toDAG(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deps, err := pipeline.NodeDeps(g, req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		project = s.defaults.Project
	}
	p, err := s.runner.LoadPositions(r.Context(), project)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{Project: project, Positions: p, Total: len(p)})
}

func (s *Server) handleSavePositions(w http.ResponseWriter, r *http.Request) {
	var req positionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Project == "" {
		req.Project = s.defaults.Project
	}
	total, err := s.runner.SavePositions(r.Context(), req.Project, req.Positions)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{Project: req.Project, Saved: len(req.Positions), Total: total})
}

// =============================================================================
// Helpers
// =============================================================================

// options overlays the request fields onto the server defaults.
func (s *Server) options(req graphRequest) pipeline.Options {
	opts := s.defaults
	opts.Logger = s.logger
	if req.Project != "" {
		opts.Project = req.Project
	}
	if req.Simplify != nil {
		opts.Simplify = *req.Simplify
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	if req.Positions != nil {
		opts.Positions = req.Positions
	}
	if req.Format != "" {
		opts.Format = req.Format
	}
	if req.ClusterDepth != nil {
		opts.ClusterDepth = *req.ClusterDepth
	}
	opts.Persist = req.Persist
	opts.Refresh = req.Refresh
	opts.Detailed = req.Detailed
	opts.Pinned = req.Pinned
	return opts
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: "request body too large",
				Code:  errors.ErrCodeInvalidInput,
			})
			return false
		}
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return false
	}
	return true
}

func toDAG(gj graph.Graph) (*dag.DAG, int, error) {
	if err := gj.Validate(); err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeInvalidGraph, err, "invalid graph")
	}
	g, dropped := graph.ToDAG(gj)
	return g, dropped, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contentType(format string) string {
	switch format {
	case pipeline.FormatSVG:
		return "image/svg+xml"
	case pipeline.FormatJSON:
		return "application/json"
	default:
		return "text/vnd.graphviz"
	}
}
