package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Grid.NX)
	assert.Equal(t, 8, cfg.Grid.NY)
	assert.Equal(t, 1.0, cfg.Solver.Gamma)
	assert.Equal(t, 1e-6, cfg.Solver.Tol)
	assert.Equal(t, 500, cfg.Solver.MaxIter)
	assert.Equal(t, 0.005, cfg.Mining.MinSupport)
	assert.Equal(t, 5, cfg.Mining.MaxLength)
	assert.Equal(t, 30, cfg.Scoring.TopK)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
grid:
  nx: 16
solver:
  gamma: 0.9
data:
  backoff: 250ms
log:
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Grid.NX)
	assert.Equal(t, 8, cfg.Grid.NY)
	assert.Equal(t, 0.9, cfg.Solver.Gamma)
	assert.Equal(t, 250*time.Millisecond, cfg.Data.Backoff)
	assert.Equal(t, "json", cfg.Log.Format)

	sc := cfg.XT()
	assert.Equal(t, 16, sc.NX)
	assert.Equal(t, 0.9, sc.Gamma)
	assert.Equal(t, 250*time.Millisecond, cfg.OpenDataConfig().Backoff)
	assert.Equal(t, cfg.Data.CacheDir, cfg.CacheConfig().Dir)
	assert.Equal(t, 0.005, cfg.MiningOptions().MinSupportRatio)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"gamma":  "solver:\n  gamma: 1.5\n",
		"ratio":  "mining:\n  min_support: 0\n",
		"level":  "log:\n  level: loud\n",
		"nx":     "grid:\n  nx: 0\n",
		"syntax": "grid: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Default()
	want.Scoring.TopK = 12
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Scoring.MinLift = 1.2
	cfg.Scoring.Workers = 4
	cfg.Solver.RequireConverged = true

	assert.Equal(t, 30, cfg.GateConfig().TopK)
	assert.Equal(t, 1.2, cfg.GateConfig().MinLift)
	assert.Equal(t, 4, cfg.ScoringOptions().Workers)
	assert.True(t, cfg.EvalConfig().RequireConverged)
	assert.Equal(t, 1.0, cfg.EvalConfig().MaxCellValue)
	assert.Equal(t, cfg.Grid.NX, cfg.XT().NX)
	assert.Equal(t, cfg.Data.CacheDir, cfg.CacheConfig().Dir)
}
