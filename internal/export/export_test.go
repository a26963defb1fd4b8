package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// 3x2 surface where value = gx + 10*gy
func sampleSurface() xt.Surface {
	g := grid.New(3, 2)
	vals := make([]float64, g.Size())
	for i := range vals {
		c := g.CellAt(i)
		vals[i] = float64(c.X) + 10*float64(c.Y)
	}
	return xt.Surface{Grid: g, Values: vals, Converged: true}
}

func readCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestGridRowsAreX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Grid(&buf, sampleSurface()))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"0", "1"}, rows[0])
	assert.Equal(t, []string{"0", "10"}, rows[1])
	assert.Equal(t, []string{"2", "12"}, rows[3])
}

func TestCellsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Cells(&buf, sampleSurface()))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"gx", "gy", "value"}, rows[0])
	assert.Equal(t, []string{"1", "1", "11"}, rows[5])
}

func TestPatternsColumns(t *testing.T) {
	recs := []scoring.Record{{
		Pattern: []string{"PSF", "KMF_B", "SHOT"}, Length: 3, Support: 0.25, SupportCount: 5,
		AntecedentCount: 8, Confidence: 0.625, Lift: 2.5, AvgDXT: 0.0125, Target: "SHOT",
	}}
	var buf bytes.Buffer
	require.NoError(t, Patterns(&buf, recs))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, PatternHeader, rows[0])
	assert.Equal(t, []string{"PSF KMF_B SHOT", "3", "0.25", "5", "8", "0.625", "2.5", "0.0125", "SHOT"}, rows[1])
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteAll(dir, sampleSurface(), nil)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	b, err := os.ReadFile(filepath.Join(dir, PatternsFile))
	require.NoError(t, err)
	assert.Len(t, readCSV(t, b), 1, "header only")
}
