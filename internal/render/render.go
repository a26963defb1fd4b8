// Package render draws the value surface and example paths in the terminal.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// ramp maps a normalized value to a glyph, lowest first.
const ramp = " .:-=+*#%@"

// Palette from cold to hot; one entry per ramp step.
var palette = []lipgloss.Color{
	"#0F1923", "#0D2F39", "#104855", "#157483", "#1D9DA0",
	"#2CD7C7", "#9BE15D", "#F4D03F", "#F39C12", "#E74C3C",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	markerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#E74C3C"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#16858E")).Padding(0, 1)
)

// Level buckets v into [0, len(ramp)) relative to hi. Non-positive and
// non-finite values map to 0.
func Level(v, hi float64) int {
	if hi <= 0 || !(v > 0) || math.IsInf(v, 0) {
		return 0
	}
	l := int(v / hi * float64(len(ramp)-1))
	return min(l, len(ramp)-1)
}

func cell(level int) string {
	g := strings.Repeat(string(ramp[level]), 2)
	return lipgloss.NewStyle().Foreground(palette[level]).Render(g)
}

// #region heatmap

// Heatmap draws the surface with the attacking direction to the right and
// gy = 0 on the bottom row.
func Heatmap(s xt.Surface) string {
	return draw(s, nil, "xT surface")
}

// Path draws the surface with the example's steps numbered in their cells
// and a legend of the matched tokens underneath.
func Path(s xt.Surface, ex scoring.Example, title string) string {
	marks := make(map[grid.Cell]int, len(ex.Cells))
	for k, c := range ex.Cells {
		marks[c] = k + 1
	}
	body := draw(s, marks, title)

	var legend []string
	for k, tok := range ex.Tokens {
		c := ex.Cells[k]
		legend = append(legend, fmt.Sprintf("%d %-6s (%d,%d) %.4f", k+1, tok, c.X, c.Y, s.At(c)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, mutedStyle.Render(strings.Join(legend, "\n")))
}

func draw(s xt.Surface, marks map[grid.Cell]int, title string) string {
	hi := s.Max()
	var rows []string
	for gy := s.Grid.NY - 1; gy >= 0; gy-- {
		var b strings.Builder
		fmt.Fprintf(&b, "%2d ", gy)
		for gx := 0; gx < s.Grid.NX; gx++ {
			c := grid.Cell{X: gx, Y: gy}
			if k, ok := marks[c]; ok {
				b.WriteString(markerStyle.Render(fmt.Sprintf("%2d", k%100)))
				continue
			}
			b.WriteString(cell(Level(s.At(c), hi)))
		}
		rows = append(rows, b.String())
	}

	var axis strings.Builder
	axis.WriteString("   ")
	for gx := 0; gx < s.Grid.NX; gx++ {
		fmt.Fprintf(&axis, "%-2d", gx%100)
	}
	rows = append(rows, mutedStyle.Render(axis.String()))

	head := titleStyle.Render(title) + mutedStyle.Render(fmt.Sprintf("  max %.4f", hi))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, head, strings.Join(rows, "\n")))
}

// #endregion heatmap

// #region table

// Patterns renders the first n records as an aligned table.
func Patterns(rs []scoring.Record, n int) string {
	if n <= 0 || n > len(rs) {
		n = len(rs)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-4s %-36s %8s %8s %8s %9s %-4s", "#", "pattern", "support", "conf", "lift", "avg_dxt", "tgt")))
	for i, r := range rs[:n] {
		pat := strings.Join(r.Pattern, " > ")
		if len(pat) > 36 {
			pat = pat[:33] + "..."
		}
		fmt.Fprintf(&b, "\n%-4d %-36s %8d %8.3f %8.3f %9.5f %-4s", i+1, pat, r.SupportCount, r.Confidence, r.Lift, r.AvgDXT, r.Target)
	}
	return b.String()
}

// #endregion table
