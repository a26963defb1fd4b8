package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region eval-harness
// EvalHarness runs sanity checks on a fitted value surface.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the surface and returns pass/fail with metrics.
func (h *EvalHarness) Run(s xt.Surface) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Convergence
	convergedPass := s.Converged || !h.config.RequireConverged
	metrics = append(metrics, EvalMetric{
		Name:  "converged",
		Value: boolValue(s.Converged),
		Pass:  convergedPass,
	})
	if !convergedPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("not converged after %d iterations (delta %.3g)", s.Iterations, s.Delta))
	}

	// 2. Iterations and final delta: informational
	metrics = append(metrics,
		EvalMetric{Name: "iterations", Value: float64(s.Iterations), Pass: true},
		EvalMetric{Name: "final_delta", Value: s.Delta, Pass: true},
	)

	// 3. Every cell finite and non-negative
	var nonFinite, negative int
	maxValue := 0.0
	for _, v := range s.Values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			nonFinite++
			continue
		case v < 0:
			negative++
		}
		maxValue = math.Max(maxValue, v)
	}
	metrics = append(metrics, EvalMetric{Name: "non_finite_cells", Value: float64(nonFinite), Pass: nonFinite == 0})
	if nonFinite > 0 {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d non-finite cells", nonFinite))
	}
	metrics = append(metrics, EvalMetric{Name: "negative_cells", Value: float64(negative), Pass: negative == 0})
	if negative > 0 {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d negative cells", negative))
	}

	// 4. Value cap
	maxPass := maxValue <= h.config.MaxCellValue
	metrics = append(metrics, EvalMetric{Name: "max_value", Value: maxValue, Pass: maxPass})
	if !maxPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("max cell value %.4f exceeds %.4f", maxValue, h.config.MaxCellValue))
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
