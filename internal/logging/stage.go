package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-stage
// LogStage writes one entry to the stage_log table.
func LogStage(db *sql.DB, entry StageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO stage_log (run_id, stage, outcome, reason, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Stage,
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log stage: %w", err)
	}
	return nil
}

// NewStageEntry builds an entry stamped now, with detail marshalled into
// DetailJSON when non-nil.
func NewStageEntry(runID, stage, outcome, reason string, detail any) (StageEntry, error) {
	e := StageEntry{
		RunID:     runID,
		Stage:     stage,
		Outcome:   outcome,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if detail == nil {
		return e, nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return e, fmt.Errorf("marshal stage detail: %w", err)
	}
	e.DetailJSON = string(raw)
	return e, nil
}

// #endregion log-stage

// #region list-stages
// ListStages returns a run's stage entries in insertion order.
func ListStages(db *sql.DB, runID string) ([]StageEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, stage, outcome, reason, detail_json, created_at
		 FROM stage_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []StageEntry
	for rows.Next() {
		var e StageEntry
		var reason, detail sql.NullString
		var created string
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Outcome, &reason, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		e.Reason = reason.String
		e.DetailJSON = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-stages

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
