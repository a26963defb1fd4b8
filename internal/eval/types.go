package eval

// #region eval-config
// EvalConfig holds thresholds for validating a fitted surface.
type EvalConfig struct {
	MaxCellValue     float64 // reject if any cell exceeds this
	RequireConverged bool    // reject a surface that hit the iteration cap
}

// DefaultEvalConfig caps cell values at 1, the largest possible xg,
// and tolerates non-convergence.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxCellValue: 1.0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of surface validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Metric looks up a metric by name.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
