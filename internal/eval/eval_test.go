package eval

import (
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

func makeSurface(vals ...float64) xt.Surface {
	return xt.Surface{
		Grid:       grid.New(len(vals), 1),
		Values:     vals,
		Converged:  true,
		Iterations: 12,
		Delta:      1e-7,
	}
}

func TestEvalPassesOnZeroSurface(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(makeSurface(0, 0, 0))

	if !result.Passed {
		t.Fatalf("expected pass on zero surface, got fail: %s", result.Reason)
	}
	if len(result.Metrics) == 0 {
		t.Fatal("expected metrics")
	}
	if m, ok := result.Metric("iterations"); !ok || m.Value != 12 {
		t.Errorf("expected iterations metric 12, got %+v", m)
	}
}

func TestEvalFailsOnValueSpike(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxCellValue = 0.5
	h := NewEvalHarness(config)

	result := h.Run(makeSurface(0.1, 0.7))

	if result.Passed {
		t.Fatal("expected fail on value above cap")
	}
	if m, _ := result.Metric("max_value"); m.Pass || m.Value != 0.7 {
		t.Errorf("expected failing max_value 0.7, got %+v", m)
	}
}

func TestEvalFailsOnNonFinite(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(makeSurface(0.1, math.NaN(), math.Inf(1), -0.2))

	if result.Passed {
		t.Fatal("expected fail on non-finite cells")
	}
	if m, _ := result.Metric("non_finite_cells"); m.Value != 2 {
		t.Errorf("expected 2 non-finite cells, got %v", m.Value)
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Errorf("expected multi-check reason, got %q", result.Reason)
	}
}

func TestEvalConvergence(t *testing.T) {
	s := makeSurface(0.1)
	s.Converged = false

	if r := NewEvalHarness(DefaultEvalConfig()).Run(s); !r.Passed {
		t.Fatalf("non-convergence should be informational by default: %s", r.Reason)
	}

	config := DefaultEvalConfig()
	config.RequireConverged = true
	r := NewEvalHarness(config).Run(s)
	if r.Passed {
		t.Fatal("expected fail when convergence is required")
	}
	if !strings.Contains(r.Reason, "not converged") {
		t.Errorf("unexpected reason %q", r.Reason)
	}
}
