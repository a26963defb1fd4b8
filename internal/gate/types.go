package gate

import "github.com/danielpatrickdp/xtpatterns/internal/scoring"

// #region veto-type
// VetoType enumerates hard rejection categories.
type VetoType string

const (
	VetoLowSupport VetoType = "low_support"
	VetoLowLift    VetoType = "low_lift"
	VetoInvalid    VetoType = "invalid_metrics"
	VetoCapacity   VetoType = "over_top_k"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected rejection condition.
type VetoSignal struct {
	Type   VetoType `json:"type"`
	Reason string   `json:"reason"`
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds selection thresholds.
type GateConfig struct {
	TopK            int     // keep at most this many records
	MinSupportCount int     // reject rows seen in fewer sequences
	MinLift         float64 // reject rows with lower lift
}

// DefaultGateConfig keeps the 30 best rows with no extra thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		TopK: 30,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the verdict on one scored record.
type GateDecision struct {
	Action      string       `json:"action"` // "keep" | "reject"
	Reason      string       `json:"reason"`
	Vetoed      bool         `json:"vetoed"`
	VetoSignals []VetoSignal `json:"veto_signals,omitempty"`
	SoftScore   float64      `json:"soft_score"` // 0-1 composite of confidence, lift and value gain
}

// Rejection pairs a dropped record with the decision that dropped it.
type Rejection struct {
	Record   scoring.Record `json:"record"`
	Decision GateDecision   `json:"decision"`
}

// Selection is the outcome of gating a ranked list.
type Selection struct {
	Kept     []scoring.Record `json:"kept"`
	Scores   []float64        `json:"scores"` // soft score per kept record
	Rejected []Rejection      `json:"rejected"`
}

// RejectedBy counts rejections by their first veto type.
func (s Selection) RejectedBy() map[string]int {
	out := make(map[string]int)
	for _, r := range s.Rejected {
		if len(r.Decision.VetoSignals) > 0 {
			out[string(r.Decision.VetoSignals[0].Type)]++
		}
	}
	return out
}

// #endregion gate-decision
