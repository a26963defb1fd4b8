package logging

import "time"

// #region stage-entry
// Pipeline stage names.
const (
	StageLoad     = "load"
	StageFit      = "fit"
	StageTokenize = "tokenize"
	StageMine     = "mine"
	StageScore    = "score"
	StageSelect   = "select"
	StageExport   = "export"
)

// Stage outcomes.
const (
	OutcomeOK   = "ok"
	OutcomeWarn = "warn"
	OutcomeFail = "fail"
)

// StageEntry is a single row in the stage_log table.
type StageEntry struct {
	RunID      string
	Stage      string
	Outcome    string // "ok" | "warn" | "fail"
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion stage-entry

// #region fit-record
// FitRecord captures the solver inputs and result of one fit.
// Serialized as JSON into stage_log.detail_json.
type FitRecord struct {
	NX         int     `json:"nx"`
	NY         int     `json:"ny"`
	Gamma      float64 `json:"gamma"`
	Tol        float64 `json:"tol"`
	MaxIter    int     `json:"max_iter"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Delta      float64 `json:"delta"`
	MaxValue   float64 `json:"max_value"`
	Entries    float64 `json:"entries"` // located events fed to the solver
	Shots      float64 `json:"shots"`
}

// SelectionRecord summarizes the top-K selection.
type SelectionRecord struct {
	Scored   int            `json:"scored"`
	Kept     int            `json:"kept"`
	Rejected map[string]int `json:"rejected,omitempty"` // reason -> count
}

// #endregion fit-record
