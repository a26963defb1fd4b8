package store

import (
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(at time.Time) RunRecord {
	return RunRecord{
		CreatedAt:     at,
		ConfigJSON:    `{"grid":{"nx":2,"ny":2}}`,
		Grid:          grid.New(2, 2),
		Sequences:     120,
		PatternsMined: 48,
		Converged:     true,
		Iterations:    37,
		Delta:         4e-7,
		EvalPassed:    true,
		Surface:       []float64{0.01, 0.02, 0.05, 0.3},
	}
}

func samplePatterns() []scoring.Record {
	return []scoring.Record{
		{Pattern: []string{"PSF", "SHOT"}, Length: 2, Support: 0.1, SupportCount: 12, AntecedentCount: 40,
			Confidence: 0.3, Lift: 1.8, AvgDXT: 0.04, Target: "SHOT"},
		{Pattern: []string{"KSF", "PMF_B"}, Length: 2, Support: 0.05, SupportCount: 6, AntecedentCount: 30,
			Confidence: 0.2, Lift: 1.2, AvgDXT: 0.01, Target: "BOX"},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := s.SaveRun(sampleRun(at), samplePatterns())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if rec.RunID == "" {
		t.Fatal("expected generated run ID")
	}
	if rec.ParentID != "" {
		t.Fatalf("expected empty parent on first run, got %s", rec.ParentID)
	}

	got, err := s.GetRun(rec.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at: expected %v, got %v", at, got.CreatedAt)
	}
	if got.Grid != rec.Grid || got.Sequences != 120 || got.Iterations != 37 || !got.Converged || !got.EvalPassed {
		t.Errorf("unexpected run fields: %+v", got)
	}
	if len(got.Surface) != 4 || got.Surface[3] != 0.3 {
		t.Errorf("surface not round-tripped: %v", got.Surface)
	}
	if v := got.SurfaceValue(grid.Cell{X: 1, Y: 1}); v != 0.3 {
		t.Errorf("expected 0.3 at (1,1), got %f", v)
	}
	if v := got.SurfaceValue(grid.Cell{X: 5, Y: 0}); v != 0 {
		t.Errorf("expected 0 off grid, got %f", v)
	}

	cfg, err := got.ConfigMap()
	if err != nil || cfg["grid"] == nil {
		t.Errorf("config map: %v %v", cfg, err)
	}
}

func TestGetPatternsRankOrder(t *testing.T) {
	s := tempDB(t)
	rec, err := s.SaveRun(sampleRun(time.Now().UTC()), samplePatterns())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	ps, err := s.GetPatterns(rec.RunID)
	if err != nil {
		t.Fatalf("GetPatterns: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(ps))
	}
	if ps[0].Rank != 1 || ps[0].Pattern[1] != "SHOT" || ps[0].Lift != 1.8 {
		t.Errorf("unexpected first pattern: %+v", ps[0])
	}
	if ps[1].Target != "BOX" || ps[1].SupportCount != 6 {
		t.Errorf("unexpected second pattern: %+v", ps[1])
	}
}

func TestLatestAndParentChain(t *testing.T) {
	s := tempDB(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.SaveRun(sampleRun(t0), nil)
	if err != nil {
		t.Fatalf("SaveRun first: %v", err)
	}
	second, err := s.SaveRun(sampleRun(t0.Add(time.Hour)), samplePatterns())
	if err != nil {
		t.Fatalf("SaveRun second: %v", err)
	}
	if second.ParentID != first.RunID {
		t.Fatalf("expected parent %s, got %s", first.RunID, second.ParentID)
	}

	latest, err := s.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.RunID != second.RunID {
		t.Fatalf("expected latest %s, got %s", second.RunID, latest.RunID)
	}

	if err := s.SetLatest(first.RunID); err != nil {
		t.Fatalf("SetLatest: %v", err)
	}
	latest, _ = s.LatestRun()
	if latest.RunID != first.RunID {
		t.Fatalf("expected latest %s after reset, got %s", first.RunID, latest.RunID)
	}

	if err := s.SetLatest("missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		var ps []scoring.Record
		if i == 2 {
			ps = samplePatterns()
		}
		if _, err := s.SaveRun(sampleRun(t0.Add(time.Duration(i)*time.Minute)), ps); err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].PatternsKept != 2 || runs[0].TopPattern != "PSF SHOT" || runs[0].TopLift != 1.8 {
		t.Errorf("unexpected newest summary: %+v", runs[0])
	}
	if runs[1].PatternsKept != 0 || runs[1].TopPattern != "" {
		t.Errorf("expected empty summary for pattern-less run: %+v", runs[1])
	}
}

func TestLatestRunEmptyStore(t *testing.T) {
	s := tempDB(t)
	if _, err := s.LatestRun(); err == nil {
		t.Fatal("expected error with no runs")
	}
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	if _, err := s.SaveRun(sampleRun(time.Now().UTC()), samplePatterns()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := s.LatestRun(); err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
}

func TestValueEncoding(t *testing.T) {
	in := []float64{0, -1.5, 3.25e-9, 1}
	out := decodeValues(encodeValues(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: expected %v, got %v", i, in[i], out[i])
		}
	}
}
