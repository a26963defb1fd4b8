package replay

import (
	"context"
	"testing"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

func corpus(seqs ...[]string) scoring.Corpus {
	var c scoring.Corpus
	for _, s := range seqs {
		c.Tokens = append(c.Tokens, s)
		c.Cells = append(c.Cells, make([]grid.Cell, len(s)))
	}
	return c
}

func passShotConfig() ReplayConfig {
	config := DefaultReplayConfig()
	config.Mining.MinSupportRatio = 1.0
	config.Mining.MaxLength = 2
	return config
}

// 1. Single pass then shot: one scored row, full confidence.
func TestReplay_PassThenShot(t *testing.T) {
	res, err := Replay(context.Background(), nil, corpus([]string{"PSF", "SHOT"}), passShotConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(res.Mined) != 3 {
		t.Errorf("expected 3 mined patterns, got %d", len(res.Mined))
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 scored row, got %d", len(res.Records))
	}
	r := res.Records[0]
	if r.Confidence != 1.0 || r.AntecedentCount != 1 || r.SupportCount != 1 {
		t.Errorf("unexpected row %+v", r)
	}
	if !res.Eval.Passed {
		t.Errorf("expected empty surface to pass the check: %s", res.Eval.Reason)
	}
}

// 2. Unknown observation kinds are an error, not silently dropped.
func TestReplay_BadObservation(t *testing.T) {
	obs := []Observation{{Kind: "tackle", X: 10, Y: 10}}
	if _, err := Replay(context.Background(), obs, corpus([]string{"PSF"}), passShotConfig()); err == nil {
		t.Fatal("expected error for unknown observation kind")
	}
}

// 3. Invalid mining options surface as an error.
func TestReplay_BadMiningOptions(t *testing.T) {
	config := passShotConfig()
	config.Mining.MaxLength = 0
	if _, err := Replay(context.Background(), nil, corpus([]string{"PSF"}), config); err == nil {
		t.Fatal("expected error for max length 0")
	}
}

// 4. Compare reports missing, unexpected and drifted rows.
func TestCompare(t *testing.T) {
	records := []scoring.Record{
		{Pattern: []string{"PSF", "SHOT"}, SupportCount: 1, AntecedentCount: 1, Confidence: 1, Lift: 1},
		{Pattern: []string{"KSF", "SHOT"}, SupportCount: 1, AntecedentCount: 2, Confidence: 0.5, Lift: 0.5},
	}
	expected := []ExpectedRecord{
		{Pattern: []string{"PSF", "SHOT"}, SupportCount: 1, AntecedentCount: 1, Confidence: 1, Lift: 1.2},
		{Pattern: []string{"PLF", "SHOT"}, SupportCount: 1, AntecedentCount: 1, Confidence: 1, Lift: 1},
	}

	divs := Compare(records, expected)
	if len(divs) != 3 {
		t.Fatalf("expected 3 divergences, got %d: %+v", len(divs), divs)
	}
	if divs[0].Field != "lift" || divs[1].Field != "missing" || divs[2].Field != "unexpected" {
		t.Errorf("unexpected divergence order: %+v", divs)
	}

	s := Summarize(ReplayResult{Records: records}, expected, divs, 2)
	if s.Matched != 0 || s.Diverged != 3 || s.Expected != 2 || s.Scored != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
}

// 5. Clean comparison.
func TestCompare_AllMatch(t *testing.T) {
	records := []scoring.Record{{Pattern: []string{"PSF", "SHOT"}, SupportCount: 1, AntecedentCount: 1, Confidence: 1, Lift: 1}}
	expected := []ExpectedRecord{{Pattern: []string{"PSF", "SHOT"}, SupportCount: 1, AntecedentCount: 1, Confidence: 1, Lift: 1}}

	divs := Compare(records, expected)
	if len(divs) != 0 {
		t.Fatalf("expected no divergences, got %+v", divs)
	}
	s := Summarize(ReplayResult{Records: records}, expected, divs, 1)
	if s.Matched != 1 || s.Diverged != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}
