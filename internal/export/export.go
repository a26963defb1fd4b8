// Package export writes the value surface and scored patterns as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// Output file names.
const (
	GridFile     = "xt_grid.csv"
	CellsFile    = "xt_cells.csv"
	PatternsFile = "patterns.csv"
)

// PatternHeader is the column order of patterns.csv.
var PatternHeader = []string{
	"pattern", "length", "support", "support_count", "antecedent_count",
	"confidence", "lift", "avg_dxt", "target",
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// #region writers

// Grid writes the surface as a matrix: one row per gx, one column per gy,
// with the gy indices as header.
func Grid(w io.Writer, s xt.Surface) error {
	cw := csv.NewWriter(w)
	header := make([]string, s.Grid.NY)
	for gy := range header {
		header[gy] = strconv.Itoa(gy)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for gx, col := range s.Matrix() {
		row := make([]string, len(col))
		for gy, v := range col {
			row[gy] = ftoa(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", gx, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Cells writes the surface as a flat gx,gy,value table in flat-index order.
func Cells(w io.Writer, s xt.Surface) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"gx", "gy", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, v := range s.Values {
		c := s.Grid.CellAt(i)
		if err := cw.Write([]string{strconv.Itoa(c.X), strconv.Itoa(c.Y), ftoa(v)}); err != nil {
			return fmt.Errorf("write cell %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Patterns writes scored rows in the given order. Pattern tokens are space separated.
func Patterns(w io.Writer, rs []scoring.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PatternHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rs {
		row := []string{
			strings.Join(r.Pattern, " "),
			strconv.Itoa(r.Length),
			ftoa(r.Support),
			strconv.Itoa(r.SupportCount),
			strconv.Itoa(r.AntecedentCount),
			ftoa(r.Confidence),
			ftoa(r.Lift),
			ftoa(r.AvgDXT),
			r.Target,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write pattern %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// #endregion writers

// #region files

// WriteAll writes the three CSV files into dir, creating it when needed,
// and returns their paths.
func WriteAll(dir string, s xt.Surface, rs []scoring.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	jobs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{GridFile, func(w io.Writer) error { return Grid(w, s) }},
		{CellsFile, func(w io.Writer) error { return Cells(w, s) }},
		{PatternsFile, func(w io.Writer) error { return Patterns(w, rs) }},
	}
	paths := make([]string, 0, len(jobs))
	for _, j := range jobs {
		path := filepath.Join(dir, j.name)
		if err := writeFile(path, j.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// #endregion files
