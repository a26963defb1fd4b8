// Package server exposes stored runs over a read-only HTTP API.
package server

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/danielpatrickdp/xtpatterns/internal/graph"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/logging"
	"github.com/danielpatrickdp/xtpatterns/internal/metrics"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region types

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RunView is a run without its surface values.
type RunView struct {
	RunID         string    `json:"run_id"`
	ParentID      string    `json:"parent_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Grid          grid.Grid `json:"grid"`
	Sequences     int       `json:"sequences"`
	PatternsMined int       `json:"patterns_mined"`
	Converged     bool      `json:"converged"`
	Iterations    int       `json:"iterations"`
	Delta         float64   `json:"delta"`
	EvalPassed    bool      `json:"eval_passed"`
	EvalReason    string    `json:"eval_reason,omitempty"`
	PatternsKept  int       `json:"patterns_kept,omitempty"`
	TopPattern    string    `json:"top_pattern,omitempty"`
	TopLift       float64   `json:"top_lift,omitempty"`
}

// SurfaceView is a run's surface as a [gx][gy] matrix.
type SurfaceView struct {
	RunID     string      `json:"run_id"`
	Grid      grid.Grid   `json:"grid"`
	Converged bool        `json:"converged"`
	Values    [][]float64 `json:"values"`
}

// TransitionsView lists the moves out of one cell and the most likely path from it.
type TransitionsView struct {
	RunID string       `json:"run_id"`
	Cell  grid.Cell    `json:"cell"`
	Index int          `json:"index"`
	Edges []graph.Edge `json:"edges"`
	Path  []grid.Cell  `json:"path"`
	Prob  float64      `json:"path_probability"`
}

func viewOf(rec store.RunRecord) RunView {
	return RunView{
		RunID: rec.RunID, ParentID: rec.ParentID, CreatedAt: rec.CreatedAt, Grid: rec.Grid,
		Sequences: rec.Sequences, PatternsMined: rec.PatternsMined, Converged: rec.Converged,
		Iterations: rec.Iterations, Delta: rec.Delta, EvalPassed: rec.EvalPassed, EvalReason: rec.EvalReason,
	}
}

// #endregion types

// #region handlers

// Handlers serves runs from a store.
type Handlers struct {
	store   *store.Store
	graph   *graph.GraphStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandlers wires the handlers to st. The zone-transition table is created when missing.
func NewHandlers(st *store.Store, m *metrics.Metrics, logger *slog.Logger) (*Handlers, error) {
	gs, err := graph.NewGraphStore(st.DB())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handlers{store: st, graph: gs, metrics: m, logger: logger}, nil
}

func (h *Handlers) fail(c *gin.Context, err error, handler string) {
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found", Code: "NOT_FOUND"})
		return
	}
	h.logger.Error("request failed", "handler", handler, "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleListRuns returns up to ?limit (default 20) runs, newest first.
func (h *Handlers) HandleListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "INVALID_LIMIT"})
		return
	}
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		h.fail(c, err, "HandleListRuns")
		return
	}
	out := make([]RunView, 0, len(runs))
	for _, r := range runs {
		v := viewOf(r.RunRecord)
		v.PatternsKept, v.TopPattern, v.TopLift = r.PatternsKept, r.TopPattern, r.TopLift
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

// run resolves :id, accepting "latest".
func (h *Handlers) run(c *gin.Context) (store.RunRecord, error) {
	id := c.Param("id")
	if id == "latest" {
		return h.store.LatestRun()
	}
	return h.store.GetRun(id)
}

// HandleGetRun returns one run.
func (h *Handlers) HandleGetRun(c *gin.Context) {
	rec, err := h.run(c)
	if err != nil {
		h.fail(c, err, "HandleGetRun")
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

// HandleSurface returns a run's value surface.
func (h *Handlers) HandleSurface(c *gin.Context) {
	rec, err := h.run(c)
	if err != nil {
		h.fail(c, err, "HandleSurface")
		return
	}
	s := xt.Surface{Grid: rec.Grid, Values: rec.Surface, Converged: rec.Converged}
	c.JSON(http.StatusOK, SurfaceView{RunID: rec.RunID, Grid: rec.Grid, Converged: rec.Converged, Values: s.Matrix()})
}

// HandlePatterns returns a run's kept patterns in rank order.
func (h *Handlers) HandlePatterns(c *gin.Context) {
	rec, err := h.run(c)
	if err != nil {
		h.fail(c, err, "HandlePatterns")
		return
	}
	pats, err := h.store.GetPatterns(rec.RunID)
	if err != nil {
		h.fail(c, err, "HandlePatterns")
		return
	}
	if pats == nil {
		pats = []store.RankedPattern{}
	}
	c.JSON(http.StatusOK, pats)
}

// HandleTransitions returns the moves out of :cell (a flat index) with
// probability at least ?min_prob, and the most likely path of ?steps moves.
func (h *Handlers) HandleTransitions(c *gin.Context) {
	rec, err := h.run(c)
	if err != nil {
		h.fail(c, err, "HandleTransitions")
		return
	}
	cell, err := strconv.Atoi(c.Param("cell"))
	if err != nil || cell < 0 || cell >= rec.Grid.Size() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cell must be a flat index inside the grid", Code: "INVALID_CELL"})
		return
	}
	minProb, err := strconv.ParseFloat(c.DefaultQuery("min_prob", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "min_prob must be a number", Code: "INVALID_MIN_PROB"})
		return
	}
	steps, err := strconv.Atoi(c.DefaultQuery("steps", "5"))
	if err != nil || steps < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "steps must be a non-negative integer", Code: "INVALID_STEPS"})
		return
	}

	edges, err := h.graph.Neighbors(rec.RunID, cell, minProb)
	if err != nil {
		h.fail(c, err, "HandleTransitions")
		return
	}
	walk, err := h.graph.LikelyPath(rec.RunID, cell, steps)
	if err != nil {
		h.fail(c, err, "HandleTransitions")
		return
	}

	v := TransitionsView{RunID: rec.RunID, Cell: rec.Grid.CellAt(cell), Index: cell, Edges: edges}
	if v.Edges == nil {
		v.Edges = []graph.Edge{}
	}
	for _, i := range walk.Cells {
		v.Path = append(v.Path, rec.Grid.CellAt(i))
	}
	if n := len(walk.Scores); n > 0 {
		v.Prob = walk.Scores[n-1]
	}
	c.JSON(http.StatusOK, v)
}

// #endregion handlers

// #region routes

// RegisterRoutes mounts the run endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/runs", h.HandleListRuns)
	rg.GET("/runs/:id", h.HandleGetRun)
	rg.GET("/runs/:id/surface", h.HandleSurface)
	rg.GET("/runs/:id/patterns", h.HandlePatterns)
	rg.GET("/runs/:id/cells/:cell/transitions", h.HandleTransitions)
}

// New builds the engine with recovery and tracing. Run routes live under
// /api/v1; /health and /metrics stay on the root.
func New(h *Handlers, service string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(service))
	router.GET("/health", h.HandleHealth)
	RegisterRoutes(router.Group("/api/v1"), h)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
	return router
}

// #endregion routes
