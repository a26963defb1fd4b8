package xt

import (
	"errors"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
)

// #region config

// ErrInvalidConfig is returned by NewModel for out-of-range parameters.
var ErrInvalidConfig = errors.New("invalid solver config")

// Config holds the grid resolution and value-iteration controls.
type Config struct {
	NX      int     // grid columns
	NY      int     // grid rows
	Gamma   float64 // discount in (0, 1]
	Tol     float64 // stop once max|V_new - V| < Tol
	MaxIter int     // iteration cap
}

// DefaultConfig returns a 12x8 grid, undiscounted, tol 1e-6, 500 rounds.
func DefaultConfig() Config {
	return Config{
		NX:      12,
		NY:      8,
		Gamma:   1.0,
		Tol:     1e-6,
		MaxIter: 500,
	}
}

// #endregion config

// #region surface

// Surface is a fitted per-cell value estimate.
type Surface struct {
	Grid       grid.Grid `json:"grid"`
	Values     []float64 `json:"values"` // flat, index gy*nx + gx
	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
	Delta      float64   `json:"delta"` // max|V_new - V| of the last round
}

// At returns the value of cell c. Cells outside the grid read as 0.
func (s Surface) At(c grid.Cell) float64 {
	if c.X < 0 || c.Y < 0 || c.X >= s.Grid.NX || c.Y >= s.Grid.NY {
		return 0
	}
	i := s.Grid.Index(c)
	if i >= len(s.Values) {
		return 0
	}
	return s.Values[i]
}

// Matrix reshapes the surface as m[gx][gy].
func (s Surface) Matrix() [][]float64 {
	m := make([][]float64, s.Grid.NX)
	for gx := range m {
		m[gx] = make([]float64, s.Grid.NY)
		for gy := range m[gx] {
			m[gx][gy] = s.At(grid.Cell{X: gx, Y: gy})
		}
	}
	return m
}

// Max returns the largest cell value, 0 for an empty surface.
func (s Surface) Max() float64 {
	var hi float64
	for _, v := range s.Values {
		hi = max(hi, v)
	}
	return hi
}

// #endregion surface

// #region transition

// Transition is one observed cell-to-cell move with its row-normalized probability.
type Transition struct {
	From  int     `json:"from"`
	To    int     `json:"to"`
	Count float64 `json:"count"`
	Prob  float64 `json:"prob"`
}

// #endregion transition
