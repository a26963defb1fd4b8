package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/xtpatterns/internal/graph"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/metrics"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter seeds one 2x2 run with two patterns and three moves.
func setupTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rec, err := st.SaveRun(store.RunRecord{
		Grid:       grid.New(2, 2),
		Sequences:  10,
		Converged:  true,
		Iterations: 4,
		EvalPassed: true,
		Surface:    []float64{0.01, 0.2, 0.03, 0.4},
	}, []scoring.Record{
		{Pattern: []string{"PSF", "SHOT"}, Length: 2, SupportCount: 3, Confidence: 0.5, Lift: 2, Target: "SHOT"},
		{Pattern: []string{"KSF", "SHOT"}, Length: 2, SupportCount: 2, Confidence: 0.4, Lift: 1.6, Target: "SHOT"},
	})
	require.NoError(t, err)

	gs, err := graph.NewGraphStore(st.DB())
	require.NoError(t, err)
	require.NoError(t, gs.SaveTransitions(rec.RunID, []xt.Transition{
		{From: 0, To: 1, Count: 3, Prob: 0.75},
		{From: 0, To: 2, Count: 1, Prob: 0.25},
		{From: 1, To: 3, Count: 2, Prob: 1},
	}))

	h, err := NewHandlers(st, metrics.New(), nil)
	require.NoError(t, err)
	return New(h, "xtpatterns-test"), rec.RunID
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)
	w := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunRoutesAreVersioned(t *testing.T) {
	router, _ := setupTestRouter(t)

	assert.Equal(t, http.StatusOK, get(t, router, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/health").Code)
}

func TestHandleListRuns(t *testing.T) {
	router, id := setupTestRouter(t)

	w := get(t, router, "/api/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode[[]RunView](t, w)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
	assert.Equal(t, 2, runs[0].PatternsKept)
	assert.Equal(t, "PSF SHOT", runs[0].TopPattern)

	w = get(t, router, "/api/v1/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_LIMIT", decode[ErrorResponse](t, w).Code)
}

func TestHandleGetRun(t *testing.T) {
	router, id := setupTestRouter(t)

	for _, path := range []string{"/api/v1/runs/" + id, "/api/v1/runs/latest"} {
		w := get(t, router, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		v := decode[RunView](t, w)
		assert.Equal(t, id, v.RunID)
		assert.Equal(t, 10, v.Sequences)
		assert.True(t, v.Converged)
	}

	w := get(t, router, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestHandleSurface(t *testing.T) {
	router, id := setupTestRouter(t)

	w := get(t, router, "/api/v1/runs/"+id+"/surface")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[SurfaceView](t, w)
	require.Len(t, v.Values, 2)
	// [gx][gy]
	assert.Equal(t, []float64{0.01, 0.03}, v.Values[0])
	assert.Equal(t, []float64{0.2, 0.4}, v.Values[1])
}

func TestHandlePatterns(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := get(t, router, "/api/v1/runs/latest/patterns")
	require.Equal(t, http.StatusOK, w.Code)
	pats := decode[[]store.RankedPattern](t, w)
	require.Len(t, pats, 2)
	assert.Equal(t, 1, pats[0].Rank)
	assert.Equal(t, []string{"PSF", "SHOT"}, pats[0].Pattern)
}

func TestHandleTransitions(t *testing.T) {
	router, id := setupTestRouter(t)

	w := get(t, router, "/api/v1/runs/"+id+"/cells/0/transitions")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[TransitionsView](t, w)
	require.Len(t, v.Edges, 2)
	assert.Equal(t, 1, v.Edges[0].Target)
	assert.Equal(t, []grid.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}, v.Path)
	assert.InDelta(t, 0.75, v.Prob, 1e-12)

	w = get(t, router, "/api/v1/runs/"+id+"/cells/0/transitions?min_prob=0.5&steps=1")
	v = decode[TransitionsView](t, w)
	assert.Len(t, v.Edges, 1)
	assert.Len(t, v.Path, 2)

	w = get(t, router, "/api/v1/runs/"+id+"/cells/3/transitions")
	v = decode[TransitionsView](t, w)
	assert.Empty(t, v.Edges)
	assert.NotNil(t, v.Edges)

	w = get(t, router, "/api/v1/runs/"+id+"/cells/4/transitions")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = get(t, router, "/api/v1/runs/"+id+"/cells/x/transitions")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "xtpatterns_"), "expected module metrics")
}
