package gate

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

func makeRecord(lift float64, support int) scoring.Record {
	return scoring.Record{
		Pattern:         []string{"PSF", "SHOT"},
		Length:          2,
		Support:         0.1,
		SupportCount:    support,
		AntecedentCount: support * 2,
		Confidence:      0.5,
		Lift:            lift,
		AvgDXT:          0.02,
		Target:          "SHOT",
	}
}

func TestGateKeepsCleanRecord(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(makeRecord(1.5, 10))

	if decision.Action != "keep" {
		t.Fatalf("expected keep, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	// 0.4*0.5 + 0.4*0.25 + 0.2*0.2
	if math.Abs(decision.SoftScore-0.34) > 1e-9 {
		t.Errorf("expected soft score 0.34, got %f", decision.SoftScore)
	}
}

func TestGateRejectsLowSupport(t *testing.T) {
	config := DefaultGateConfig()
	config.MinSupportCount = 5
	g := NewGate(config)

	decision := g.Evaluate(makeRecord(2, 3))

	if decision.Action != "reject" || !decision.Vetoed {
		t.Fatalf("expected veto, got %+v", decision)
	}
	if decision.VetoSignals[0].Type != VetoLowSupport {
		t.Errorf("expected low_support veto, got %s", decision.VetoSignals[0].Type)
	}
}

func TestGateRejectsLowLiftAndInvalid(t *testing.T) {
	config := DefaultGateConfig()
	config.MinLift = 1.0
	g := NewGate(config)

	d := g.Evaluate(makeRecord(0.8, 10))
	if !d.Vetoed || d.VetoSignals[0].Type != VetoLowLift {
		t.Errorf("expected low_lift veto, got %+v", d)
	}

	bad := makeRecord(math.NaN(), 10)
	d = g.Evaluate(bad)
	if !d.Vetoed || d.VetoSignals[0].Type != VetoInvalid {
		t.Errorf("expected invalid_metrics veto, got %+v", d)
	}
}

func TestSelectTopK(t *testing.T) {
	config := DefaultGateConfig()
	config.TopK = 2
	config.MinSupportCount = 2
	g := NewGate(config)

	recs := []scoring.Record{
		makeRecord(3, 10),
		makeRecord(2.5, 1), // vetoed on support
		makeRecord(2, 10),
		makeRecord(1.5, 10), // over capacity
	}
	sel := g.Select(recs)

	if len(sel.Kept) != 2 || sel.Kept[0].Lift != 3 || sel.Kept[1].Lift != 2 {
		t.Fatalf("unexpected kept rows: %+v", sel.Kept)
	}
	if len(sel.Scores) != 2 {
		t.Errorf("expected a score per kept row, got %d", len(sel.Scores))
	}
	by := sel.RejectedBy()
	if by[string(VetoLowSupport)] != 1 || by[string(VetoCapacity)] != 1 {
		t.Errorf("unexpected rejection counts: %v", by)
	}
}

func TestSelectEmpty(t *testing.T) {
	sel := NewGate(DefaultGateConfig()).Select(nil)
	if len(sel.Kept) != 0 || len(sel.Rejected) != 0 {
		t.Fatalf("expected empty selection, got %+v", sel)
	}
}
