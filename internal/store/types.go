package store

import (
	"time"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

// #region run-record
// RunRecord is one pipeline run with its fitted surface.
type RunRecord struct {
	RunID         string
	ParentID      string // latest run at the time this one was saved
	CreatedAt     time.Time
	ConfigJSON    string
	Grid          grid.Grid
	Sequences     int
	PatternsMined int
	Converged     bool
	Iterations    int
	Delta         float64
	EvalPassed    bool
	EvalReason    string
	Surface       []float64 // flat, index gy*nx + gx
}

// #endregion run-record

// #region run-summary
// RunSummary pairs a run with its stored pattern count and best row.
type RunSummary struct {
	RunRecord
	PatternsKept int
	TopPattern   string
	TopLift      float64
}

// #endregion run-summary

// #region ranked
// RankedPattern is a stored scored record with its rank (1 = best).
type RankedPattern struct {
	Rank int `json:"rank"`
	scoring.Record
}

// #endregion ranked
