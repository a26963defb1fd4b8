// Package gate selects which scored patterns are reported.
package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

// #region gate
// Gate evaluates scored records against selection thresholds.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores soft signals.
func (g *Gate) Evaluate(rec scoring.Record) GateDecision {
	var vetoes []VetoSignal

	// 1. Metrics must be finite and in range
	if !finite(rec.Confidence, rec.Lift, rec.Support, rec.AvgDXT) ||
		rec.Confidence < 0 || rec.Confidence > 1 || rec.Lift < 0 {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoInvalid,
			Reason: "metrics out of range",
		})
	}

	// 2. Support floor
	if rec.SupportCount < g.config.MinSupportCount {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLowSupport,
			Reason: fmt.Sprintf("support count %d below %d", rec.SupportCount, g.config.MinSupportCount),
		})
	}

	// 3. Lift floor
	if rec.Lift < g.config.MinLift {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLowLift,
			Reason: fmt.Sprintf("lift %.4f below %.4f", rec.Lift, g.config.MinLift),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	softScore := computeSoftScore(rec)
	return GateDecision{
		Action:    "keep",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		SoftScore: softScore,
	}
}

// Select walks records in rank order and keeps the first TopK that pass.
// Passing records beyond TopK are rejected with VetoCapacity.
func (g *Gate) Select(records []scoring.Record) Selection {
	var sel Selection
	for _, rec := range records {
		d := g.Evaluate(rec)
		if d.Vetoed {
			sel.Rejected = append(sel.Rejected, Rejection{Record: rec, Decision: d})
			continue
		}
		if g.config.TopK > 0 && len(sel.Kept) >= g.config.TopK {
			d.Action = "reject"
			d.Vetoed = true
			d.VetoSignals = []VetoSignal{{Type: VetoCapacity, Reason: fmt.Sprintf("beyond top %d", g.config.TopK)}}
			d.Reason = "hard veto: " + d.VetoSignals[0].Reason
			sel.Rejected = append(sel.Rejected, Rejection{Record: rec, Decision: d})
			continue
		}
		sel.Kept = append(sel.Kept, rec)
		sel.Scores = append(sel.Scores, d.SoftScore)
	}
	return sel
}

// #endregion gate

// #region helpers
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// computeSoftScore produces a 0-1 composite for display ordering hints:
// confidence (weight 0.4), lift above baseline (0.4) and positive value gain (0.2).
func computeSoftScore(rec scoring.Record) float64 {
	score := 0.4 * rec.Confidence

	// lift of 1 is the baseline; saturate at 3x
	if rec.Lift > 1 {
		score += 0.4 * math.Min((rec.Lift-1)/2, 1)
	}

	if rec.AvgDXT > 0 {
		score += 0.2 * math.Min(rec.AvgDXT/0.1, 1)
	}
	return score
}

// #endregion helpers
