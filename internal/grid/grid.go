// Package grid maps continuous pitch coordinates onto a discrete zone grid.
package grid

import "math"

// #region field
// Pitch dimensions in StatsBomb units. Attacking direction is +x.
const (
	FieldWidth  = 120.0
	FieldHeight = 80.0

	boxDepthX = 102.0
	boxMinY   = 18.0
	boxMaxY   = 62.0
)

// #endregion field

// #region cell
// Cell is a zone addressed by column gx and row gy.
type Cell struct {
	X int `json:"gx"`
	Y int `json:"gy"`
}

// Grid is a zone resolution of NX columns by NY rows.
type Grid struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
}

// New returns a grid with at least one column and one row.
func New(nx, ny int) Grid {
	return Grid{NX: max(nx, 1), NY: max(ny, 1)}
}

// Size is the number of cells, N = NX*NY.
func (g Grid) Size() int { return g.NX * g.NY }

// ToCell maps a coordinate to its cell on this grid.
func (g Grid) ToCell(x, y float64) Cell { return ToCell(x, y, g.NX, g.NY) }

// Index returns the flat index of c.
func (g Grid) Index(c Cell) int { return FlatIndex(c.X, c.Y, g.NX) }

// IndexOf returns the flat index of the cell containing (x, y).
func (g Grid) IndexOf(x, y float64) int { return g.Index(g.ToCell(x, y)) }

// CellAt inverts Index.
func (g Grid) CellAt(i int) Cell {
	return Cell{X: i % g.NX, Y: i / g.NX}
}

// #endregion cell

// #region mapping
// ToCell clips (x, y) into the pitch and returns the containing cell.
// Every input maps to a valid cell; non-finite coordinates are treated as 0.
func ToCell(x, y float64, nx, ny int) Cell {
	nx, ny = max(nx, 1), max(ny, 1)
	x = clip(x, FieldWidth)
	y = clip(y, FieldHeight)
	gx := min(int(math.Floor(x/(FieldWidth/float64(nx)))), nx-1)
	gy := min(int(math.Floor(y/(FieldHeight/float64(ny)))), ny-1)
	return Cell{X: gx, Y: gy}
}

// FlatIndex is gy*nx + gx.
func FlatIndex(gx, gy, nx int) int {
	return gy*nx + gx
}

// InAttackingBox reports whether (x, y) lies inside the opposition penalty area.
func InAttackingBox(x, y float64) bool {
	return x >= boxDepthX && y >= boxMinY && y <= boxMaxY
}

func clip(v, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(math.Max(v, 0), hi)
}

// #endregion mapping
