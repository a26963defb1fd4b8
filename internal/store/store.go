package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	parent_id       TEXT,
	created_at      TEXT NOT NULL,
	config_json     TEXT,
	grid_nx         INTEGER NOT NULL,
	grid_ny         INTEGER NOT NULL,
	sequences       INTEGER NOT NULL,
	patterns_mined  INTEGER NOT NULL,
	converged       INTEGER NOT NULL,
	iterations      INTEGER NOT NULL,
	delta           REAL NOT NULL,
	eval_passed     INTEGER NOT NULL,
	eval_reason     TEXT,
	surface         BLOB NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS scored_patterns (
	run_id           TEXT NOT NULL,
	rank             INTEGER NOT NULL,
	pattern          TEXT NOT NULL,
	length           INTEGER NOT NULL,
	support          REAL NOT NULL,
	support_count    INTEGER NOT NULL,
	antecedent_count INTEGER NOT NULL,
	confidence       REAL NOT NULL,
	lift             REAL NOT NULL,
	avg_dxt          REAL NOT NULL,
	target           TEXT NOT NULL,
	PRIMARY KEY (run_id, rank),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS stage_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	reason      TEXT,
	detail_json TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_run (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	run_id  TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store persists pipeline runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (logging, graph).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region save-run
// SaveRun inserts a run with its ranked patterns and makes it the latest run.
// RunID, ParentID and CreatedAt are filled when empty.
func (s *Store) SaveRun(rec RunRecord, patterns []scoring.Record) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ParentID == "" {
		if latest, err := s.latestID(); err == nil {
			rec.ParentID = latest
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, parent_id, created_at, config_json, grid_nx, grid_ny, sequences,
		  patterns_mined, converged, iterations, delta, eval_passed, eval_reason, surface)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, nullIfEmpty(rec.ParentID), rec.CreatedAt.Format(time.RFC3339Nano),
		nullIfEmpty(rec.ConfigJSON), rec.Grid.NX, rec.Grid.NY, rec.Sequences, rec.PatternsMined,
		rec.Converged, rec.Iterations, rec.Delta, rec.EvalPassed, nullIfEmpty(rec.EvalReason),
		encodeValues(rec.Surface),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	for i, p := range patterns {
		_, err = tx.Exec(
			`INSERT INTO scored_patterns (run_id, rank, pattern, length, support, support_count,
			  antecedent_count, confidence, lift, avg_dxt, target)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, i+1, strings.Join(p.Pattern, " "), p.Length, p.Support, p.SupportCount,
			p.AntecedentCount, p.Confidence, p.Lift, p.AvgDXT, p.Target,
		)
		if err != nil {
			return RunRecord{}, fmt.Errorf("insert pattern %d: %w", i+1, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO latest_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		rec.RunID,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("set latest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save-run

// #region get-run
const runColumns = `run_id, parent_id, created_at, config_json, grid_nx, grid_ny, sequences,
	patterns_mined, converged, iterations, delta, eval_passed, eval_reason, surface`

type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads the run columns followed by any extra destinations.
func scanRun(row scanner, extra ...any) (RunRecord, error) {
	var rec RunRecord
	var parentID, configJSON, evalReason sql.NullString
	var createdStr string
	var blob []byte
	dest := []any{&rec.RunID, &parentID, &createdStr, &configJSON, &rec.Grid.NX, &rec.Grid.NY,
		&rec.Sequences, &rec.PatternsMined, &rec.Converged, &rec.Iterations, &rec.Delta,
		&rec.EvalPassed, &evalReason, &blob}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return RunRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.ConfigJSON = configJSON.String
	rec.EvalReason = evalReason.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.Surface = decodeValues(blob)
	return rec, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// LatestRun reads the run the latest pointer refers to.
func (s *Store) LatestRun() (RunRecord, error) {
	id, err := s.latestID()
	if err != nil {
		return RunRecord{}, err
	}
	return s.GetRun(id)
}

func (s *Store) latestID() (string, error) {
	var id string
	if err := s.db.QueryRow(`SELECT run_id FROM latest_run WHERE id = 1`).Scan(&id); err != nil {
		return "", fmt.Errorf("get latest: %w", err)
	}
	return id, nil
}

// #endregion get-run

// #region set-latest
// SetLatest points the latest pointer at an earlier run.
func (s *Store) SetLatest(runID string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	if _, err := s.db.Exec(`UPDATE latest_run SET run_id = ? WHERE id = 1`, runID); err != nil {
		return fmt.Errorf("set latest: %w", err)
	}
	return nil
}

// #endregion set-latest

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+`,
		   (SELECT COUNT(*) FROM scored_patterns p WHERE p.run_id = runs.run_id),
		   COALESCE((SELECT pattern FROM scored_patterns p WHERE p.run_id = runs.run_id AND p.rank = 1), ''),
		   COALESCE((SELECT lift FROM scored_patterns p WHERE p.run_id = runs.run_id AND p.rank = 1), 0)
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		rec, err := scanRun(rows, &sum.PatternsKept, &sum.TopPattern, &sum.TopLift)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.RunRecord = rec
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list-runs

// #region get-patterns
// GetPatterns returns a run's stored patterns in rank order.
func (s *Store) GetPatterns(runID string) ([]RankedPattern, error) {
	rows, err := s.db.Query(
		`SELECT rank, pattern, length, support, support_count, antecedent_count, confidence, lift, avg_dxt, target
		 FROM scored_patterns WHERE run_id = ? ORDER BY rank`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get patterns: %w", err)
	}
	defer rows.Close()

	var out []RankedPattern
	for rows.Next() {
		var p RankedPattern
		var pattern string
		if err := rows.Scan(&p.Rank, &pattern, &p.Length, &p.Support, &p.SupportCount,
			&p.AntecedentCount, &p.Confidence, &p.Lift, &p.AvgDXT, &p.Target); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Pattern = strings.Fields(pattern)
		out = append(out, p)
	}
	return out, rows.Err()
}

// #endregion get-patterns

// #region surface
// SurfaceValue reads one cell of a run's stored surface.
func (rec RunRecord) SurfaceValue(c grid.Cell) float64 {
	if c.X < 0 || c.Y < 0 || c.X >= rec.Grid.NX || c.Y >= rec.Grid.NY {
		return 0
	}
	i := rec.Grid.Index(c)
	if i >= len(rec.Surface) {
		return 0
	}
	return rec.Surface[i]
}

// ConfigMap decodes the stored config JSON into a generic map.
func (rec RunRecord) ConfigMap() (map[string]any, error) {
	if rec.ConfigJSON == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// #endregion surface

// #region value-encoding
func encodeValues(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeValues(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion value-encoding

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
