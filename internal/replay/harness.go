// Package replay reruns the solver, miner and scorer on recorded inputs and
// compares the scored rows against expectations.
package replay

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/xtpatterns/internal/eval"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// Tolerance is the absolute slack allowed on float metrics.
const Tolerance = 1e-9

// #region types

// ReplayResult captures one pass through the pipeline core.
type ReplayResult struct {
	Surface xt.Surface
	Eval    eval.EvalResult
	Mined   []mining.Pattern
	Records []scoring.Record
}

// Divergence is one expected row that was missing or different.
type Divergence struct {
	Pattern string
	Field   string // "missing" | "unexpected" | metric name
	Want    string
	Got     string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Sequences int
	Mined     int
	Scored    int
	Expected  int
	Matched   int
	Diverged  int
	Converged bool
}

// #endregion types

// #region replay

// Replay fits the surface from obs, mines corpus and scores the result:
// fit → check → mine → score. Operates entirely in-memory.
func Replay(ctx context.Context, obs []Observation, corpus scoring.Corpus, config ReplayConfig) (ReplayResult, error) {
	var res ReplayResult

	// 1. Fit
	m, err := xt.NewModel(config.XT)
	if err != nil {
		return res, err
	}
	if err := Apply(m, obs); err != nil {
		return res, err
	}
	res.Surface = m.Fit()

	// 2. Check
	res.Eval = eval.NewEvalHarness(config.Eval).Run(res.Surface)

	// 3. Mine
	res.Mined, err = mining.Mine(corpus.Tokens, config.Mining)
	if err != nil {
		return res, fmt.Errorf("mine: %w", err)
	}

	// 4. Score
	res.Records, err = scoring.Score(ctx, corpus, res.Mined, res.Surface, config.Scoring)
	if err != nil {
		return res, err
	}
	return res, nil
}

// RunFixture replays a loaded fixture and compares it with its expectations.
func RunFixture(ctx context.Context, f *Fixture) (ReplayResult, []Divergence, error) {
	res, err := Replay(ctx, f.Observations, f.ToCorpus(), f.Config.ToReplayConfig())
	if err != nil {
		return res, nil, err
	}
	return res, Compare(res.Records, f.Expected), nil
}

// Compare matches scored rows to expected rows by pattern. Every expected
// pattern must be present with equal counts and metrics within Tolerance;
// scored patterns nobody expected are reported too.
func Compare(records []scoring.Record, expected []ExpectedRecord) []Divergence {
	var out []Divergence
	seen := make([]bool, len(records))
	for _, want := range expected {
		name := mining.Pattern{Items: want.Pattern}.String()
		i := slices.IndexFunc(records, func(r scoring.Record) bool { return slices.Equal(r.Pattern, want.Pattern) })
		if i < 0 {
			out = append(out, Divergence{Pattern: name, Field: "missing", Want: "present", Got: "absent"})
			continue
		}
		seen[i] = true
		got := records[i]
		if got.SupportCount != want.SupportCount {
			out = append(out, intDiff(name, "support_count", want.SupportCount, got.SupportCount))
		}
		if got.AntecedentCount != want.AntecedentCount {
			out = append(out, intDiff(name, "antecedent_count", want.AntecedentCount, got.AntecedentCount))
		}
		for _, f := range []struct {
			field     string
			want, got float64
		}{
			{"confidence", want.Confidence, got.Confidence},
			{"lift", want.Lift, got.Lift},
			{"avg_dxt", want.AvgDXT, got.AvgDXT},
		} {
			if math.Abs(f.want-f.got) > Tolerance {
				out = append(out, Divergence{Pattern: name, Field: f.field,
					Want: fmt.Sprintf("%.6f", f.want), Got: fmt.Sprintf("%.6f", f.got)})
			}
		}
	}
	for i, r := range records {
		if !seen[i] {
			name := mining.Pattern{Items: r.Pattern}.String()
			out = append(out, Divergence{Pattern: name, Field: "unexpected", Want: "absent", Got: "present"})
		}
	}
	return out
}

func intDiff(pattern, field string, want, got int) Divergence {
	return Divergence{Pattern: pattern, Field: field, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
}

// Summarize computes aggregate stats from a replay.
func Summarize(res ReplayResult, expected []ExpectedRecord, divs []Divergence, sequences int) ReplaySummary {
	s := ReplaySummary{
		Sequences: sequences,
		Mined:     len(res.Mined),
		Scored:    len(res.Records),
		Expected:  len(expected),
		Converged: res.Surface.Converged,
	}
	bad := make(map[string]bool)
	for _, d := range divs {
		bad[d.Pattern] = true
	}
	for _, e := range expected {
		if !bad[mining.Pattern{Items: e.Pattern}.String()] {
			s.Matched++
		}
	}
	s.Diverged = len(bad)
	return s
}

// #endregion replay
