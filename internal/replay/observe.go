package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/possession"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
)

// #region observe

// Observe converts raw events into solver observations. Every located event
// is an entry; completed passes and carries with an end location add a
// transition; shots add a shot with their xG.
func Observe(evs []events.Event) []Observation {
	var obs []Observation
	for _, e := range evs {
		x0, y0, ok := e.Location.XY()
		if !ok {
			continue
		}
		obs = append(obs, Observation{Kind: "entry", X: x0, Y: y0})
		switch e.Type.Name {
		case events.TypePass:
			if !e.Pass.Complete() {
				continue
			}
			if x1, y1, ok := e.End(); ok {
				obs = append(obs, Observation{Kind: "transition", X: x0, Y: y0, EndX: x1, EndY: y1})
			}
		case events.TypeCarry:
			if x1, y1, ok := e.End(); ok {
				obs = append(obs, Observation{Kind: "transition", X: x0, Y: y0, EndX: x1, EndY: y1})
			}
		case events.TypeShot:
			obs = append(obs, Observation{Kind: "shot", X: x0, Y: y0, XG: e.XG()})
		}
	}
	return obs
}

// #endregion observe

// #region snapshot

// Snapshot builds a fixture that expects records back from the given inputs.
func Snapshot(description string, cfg FixtureConfig, obs []Observation, seqs []possession.Sequence, records []scoring.Record) *Fixture {
	f := &Fixture{Description: description, Config: cfg, Observations: obs}
	for _, s := range seqs {
		f.Sequences = append(f.Sequences, FixtureSequence{Tokens: s.Tokens, Cells: s.Cells})
	}
	for _, r := range records {
		f.Expected = append(f.Expected, ExpectedRecord{
			Pattern:         r.Pattern,
			SupportCount:    r.SupportCount,
			AntecedentCount: r.AntecedentCount,
			Confidence:      r.Confidence,
			Lift:            r.Lift,
			AvgDXT:          r.AvgDXT,
		})
	}
	return f
}

// Save writes f as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion snapshot
