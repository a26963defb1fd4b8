// Package graph stores a run's zone-to-zone move probabilities and walks them.
package graph

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS zone_transitions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT NOT NULL,
    source_cell  INTEGER NOT NULL,
    target_cell  INTEGER NOT NULL,
    count        REAL NOT NULL,
    probability  REAL NOT NULL,
    created_at   TEXT NOT NULL,
    UNIQUE(run_id, source_cell, target_cell)
);
CREATE INDEX IF NOT EXISTS idx_transitions_source ON zone_transitions(run_id, source_cell);
`

// #endregion schema

// #region types
// Edge is one observed move between two flat cell indices.
type Edge struct {
	ID          int64     `json:"-"`
	RunID       string    `json:"run_id"`
	Source      int       `json:"source"`
	Target      int       `json:"target"`
	Count       float64   `json:"count"`
	Probability float64   `json:"probability"`
	CreatedAt   time.Time `json:"-"`
}

// WalkResult holds an ordered path from a graph walk.
type WalkResult struct {
	Cells  []int     `json:"cells"`  // flat cell indices in visit order
	Scores []float64 `json:"scores"` // cumulative probability at each cell
}

// GraphStore manages the zone_transitions table.
type GraphStore struct {
	db *sql.DB
}

// #endregion types

// #region constructor
// NewGraphStore creates tables and returns a GraphStore.
func NewGraphStore(db *sql.DB) (*GraphStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &GraphStore{db: db}, nil
}

// #endregion constructor

// #region save
// SaveTransitions replaces the edge set stored under runID with the
// transitions of a fit.
func (g *GraphStore) SaveTransitions(runID string, ts []xt.Transition) error {
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := g.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM zone_transitions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO zone_transitions (run_id, source_cell, target_cell, count, probability, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, source_cell, target_cell) DO UPDATE SET
		   count = excluded.count,
		   probability = excluded.probability`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range ts {
		if _, err := stmt.Exec(runID, t.From, t.To, t.Count, t.Prob, now); err != nil {
			return fmt.Errorf("insert transition %d->%d: %w", t.From, t.To, err)
		}
	}
	return tx.Commit()
}

// #endregion save

// #region neighbors
// Neighbors returns the moves out of cell with probability >= minProb,
// most likely first, ties broken by target cell.
func (g *GraphStore) Neighbors(runID string, cell int, minProb float64) ([]Edge, error) {
	rows, err := g.db.Query(
		`SELECT id, run_id, source_cell, target_cell, count, probability, created_at
		 FROM zone_transitions
		 WHERE run_id = ? AND source_cell = ? AND probability >= ?
		 ORDER BY probability DESC, target_cell ASC`,
		runID, cell, minProb,
	)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Source, &e.Target, &e.Count, &e.Probability, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion neighbors

// #region walk
// Walk performs a BFS from entry, following moves with probability >= minProb,
// up to maxDepth hops and maxNodes cells. Returns cells in visit order with
// the cumulative probability of the path that reached them.
func (g *GraphStore) Walk(runID string, entry, maxDepth int, minProb float64, maxNodes int) (WalkResult, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if maxNodes <= 0 {
		maxNodes = 10
	}

	result := WalkResult{
		Cells:  []int{entry},
		Scores: []float64{1.0},
	}
	visited := map[int]bool{entry: true}

	type queueItem struct {
		cell  int
		depth int
		score float64
	}
	queue := []queueItem{{entry, 0, 1.0}}

	for len(queue) > 0 {
		if len(result.Cells) >= maxNodes {
			break
		}

		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		neighbors, err := g.Neighbors(runID, current.cell, minProb)
		if err != nil {
			return result, fmt.Errorf("walk neighbors: %w", err)
		}

		for _, edge := range neighbors {
			if len(result.Cells) >= maxNodes {
				break
			}
			if visited[edge.Target] {
				continue
			}
			visited[edge.Target] = true
			cum := current.score * edge.Probability
			result.Cells = append(result.Cells, edge.Target)
			result.Scores = append(result.Scores, cum)
			queue = append(queue, queueItem{edge.Target, current.depth + 1, cum})
		}
	}

	return result, nil
}

// LikelyPath follows the most probable unvisited move from entry for at most
// maxSteps moves, stopping early at a cell with no unvisited exits.
func (g *GraphStore) LikelyPath(runID string, entry, maxSteps int) (WalkResult, error) {
	result := WalkResult{Cells: []int{entry}, Scores: []float64{1.0}}
	visited := map[int]bool{entry: true}
	cur, score := entry, 1.0

	for range maxSteps {
		neighbors, err := g.Neighbors(runID, cur, 0)
		if err != nil {
			return result, fmt.Errorf("path neighbors: %w", err)
		}
		i := slices.IndexFunc(neighbors, func(e Edge) bool { return !visited[e.Target] })
		if i < 0 {
			break
		}
		next := neighbors[i]
		visited[next.Target] = true
		score *= next.Probability
		cur = next.Target
		result.Cells = append(result.Cells, cur)
		result.Scores = append(result.Scores, score)
	}
	return result, nil
}

// #endregion walk

// #region prune
// Prune deletes a run's edges observed fewer than minCount times and
// returns how many were removed.
func (g *GraphStore) Prune(runID string, minCount float64) (int64, error) {
	res, err := g.db.Exec(
		`DELETE FROM zone_transitions WHERE run_id = ? AND count < ?`, runID, minCount,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// #endregion prune

// #region summary
// Busiest returns the n most frequently observed moves of a run, ties
// broken by source then target cell. n <= 0 returns every move.
func (g *GraphStore) Busiest(runID string, n int) ([]Edge, error) {
	limit := n
	if limit <= 0 {
		limit = -1
	}
	rows, err := g.db.Query(
		`SELECT id, run_id, source_cell, target_cell, count, probability, created_at
		 FROM zone_transitions WHERE run_id = ?
		 ORDER BY count DESC, source_cell ASC, target_cell ASC
		 LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

// #endregion summary
