// Package xt fits an expected-threat value surface: a Markov reward process
// over pitch zones whose reward is realized only when a shot is taken.
package xt

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
)

// #region model

// Model accumulates entry, move and shot observations and fits a Surface.
// Accumulation must finish before Fit; a Model is not safe for concurrent use.
type Model struct {
	cfg  Config
	grid grid.Grid

	entries   []float64
	trans     []map[int]float64 // source -> destination -> count
	shotCount []float64
	shotXg    [][]float64 // xg observations per cell, reduced in sorted order at fit time

	surface Surface
}

// NewModel validates cfg and allocates empty statistics.
func NewModel(cfg Config) (*Model, error) {
	switch {
	case cfg.NX < 1 || cfg.NY < 1:
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidConfig, cfg.NX, cfg.NY)
	case !(cfg.Gamma > 0 && cfg.Gamma <= 1):
		return nil, fmt.Errorf("%w: gamma %v not in (0, 1]", ErrInvalidConfig, cfg.Gamma)
	case !(cfg.Tol > 0):
		return nil, fmt.Errorf("%w: tol %v must be positive", ErrInvalidConfig, cfg.Tol)
	case cfg.MaxIter < 0:
		return nil, fmt.Errorf("%w: max_iter %d is negative", ErrInvalidConfig, cfg.MaxIter)
	}

	g := grid.New(cfg.NX, cfg.NY)
	n := g.Size()
	return &Model{
		cfg:       cfg,
		grid:      g,
		entries:   make([]float64, n),
		trans:     make([]map[int]float64, n),
		shotCount: make([]float64, n),
		shotXg:    make([][]float64, n),
		surface:   Surface{Grid: g, Values: make([]float64, n)},
	}, nil
}

// Grid returns the model's zone grid.
func (m *Model) Grid() grid.Grid { return m.grid }

// AddEntry records a visit to the cell containing (x, y).
func (m *Model) AddEntry(x, y float64) {
	m.entries[m.grid.IndexOf(x, y)]++
}

// AddTransition records a move between the cells containing the two points.
// Self-transitions are counted.
func (m *Model) AddTransition(x0, y0, x1, y1 float64) {
	from, to := m.grid.IndexOf(x0, y0), m.grid.IndexOf(x1, y1)
	row := m.trans[from]
	if row == nil {
		row = make(map[int]float64)
		m.trans[from] = row
	}
	row[to]++
}

// AddShot records a shot from (x, y) with expected-goal value xg.
func (m *Model) AddShot(x, y, xg float64) {
	i := m.grid.IndexOf(x, y)
	m.shotCount[i]++
	m.shotXg[i] = append(m.shotXg[i], xg)
}

// #endregion model

// #region fit

// sparseRow is a row of P_move in ascending column order.
type sparseRow struct {
	cols  []int
	probs []float64
}

// Fit runs value iteration from V = 0 and stores the result.
// When the iteration cap is hit first the best estimate is returned with Converged=false.
func (m *Model) Fit() Surface {
	n := m.grid.Size()

	reward := make([]float64, n)
	for c := 0; c < n; c++ {
		if m.shotCount[c] == 0 {
			continue
		}
		pShot := m.shotCount[c] / math.Max(m.entries[c], 1)
		avgXg := sortedSum(m.shotXg[c]) / m.shotCount[c]
		reward[c] = pShot * avgXg
	}

	rows := m.moveMatrix()

	v := make([]float64, n)
	next := make([]float64, n)
	s := Surface{Grid: m.grid}
	for it := 0; it < m.cfg.MaxIter; it++ {
		delta := 0.0
		for c := 0; c < n; c++ {
			cont := 0.0
			r := rows[c]
			for k, col := range r.cols {
				cont += r.probs[k] * v[col]
			}
			next[c] = reward[c] + m.cfg.Gamma*cont
			delta = math.Max(delta, math.Abs(next[c]-v[c]))
		}
		v, next = next, v
		s.Iterations = it + 1
		s.Delta = delta
		if delta < m.cfg.Tol {
			s.Converged = true
			break
		}
	}

	s.Values = v
	m.surface = s
	return s
}

// moveMatrix row-normalizes the transition counts. Rows with no outgoing
// moves stay empty and act as absorbing with zero continuation value.
func (m *Model) moveMatrix() []sparseRow {
	rows := make([]sparseRow, len(m.trans))
	for from, row := range m.trans {
		if len(row) == 0 {
			continue
		}
		cols := make([]int, 0, len(row))
		for to := range row {
			cols = append(cols, to)
		}
		slices.Sort(cols)

		total := 0.0
		for _, to := range cols {
			total += row[to]
		}
		total = math.Max(total, 1)

		probs := make([]float64, len(cols))
		for k, to := range cols {
			probs[k] = row[to] / total
		}
		rows[from] = sparseRow{cols: cols, probs: probs}
	}
	return rows
}

func sortedSum(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	sum := 0.0
	for _, x := range sorted {
		sum += x
	}
	return sum
}

// #endregion fit

// #region lookups

// Surface returns the last fitted surface (all zeros before the first Fit).
func (m *Model) Surface() Surface { return m.surface }

// ValueOf returns the fitted value of the cell containing (x, y).
func (m *Model) ValueOf(x, y float64) float64 {
	return m.surface.At(m.grid.ToCell(x, y))
}

// Transitions lists every observed move with its row-normalized probability,
// ordered by source then destination.
func (m *Model) Transitions() []Transition {
	rows := m.moveMatrix()
	var out []Transition
	for from, r := range rows {
		for k, to := range r.cols {
			out = append(out, Transition{
				From:  from,
				To:    to,
				Count: m.trans[from][to],
				Prob:  r.probs[k],
			})
		}
	}
	return out
}

// Entries returns the visit count of cell index i.
func (m *Model) Entries(i int) float64 { return m.entries[i] }

// Shots returns the shot count of cell index i.
func (m *Model) Shots(i int) float64 { return m.shotCount[i] }

// #endregion lookups
