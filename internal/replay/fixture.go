package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/xtpatterns/internal/eval"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/token"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description  string            `json:"description"`
	Config       FixtureConfig     `json:"config"`
	Observations []Observation     `json:"observations"`
	Sequences    []FixtureSequence `json:"sequences"`
	Expected     []ExpectedRecord  `json:"expected"`
}

// Observation is one solver accumulation call.
type Observation struct {
	Kind string  `json:"kind"` // "entry" | "transition" | "shot"
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	EndX float64 `json:"end_x,omitempty"`
	EndY float64 `json:"end_y,omitempty"`
	XG   float64 `json:"xg,omitempty"`
}

// FixtureSequence is one tokenized possession with a cell per token.
type FixtureSequence struct {
	Tokens []string    `json:"tokens"`
	Cells  []grid.Cell `json:"cells"`
}

// ExpectedRecord is the scored row a fixture expects, by pattern.
type ExpectedRecord struct {
	Pattern         []string `json:"pattern"`
	SupportCount    int      `json:"support_count"`
	AntecedentCount int      `json:"antecedent_count"`
	Confidence      float64  `json:"confidence"`
	Lift            float64  `json:"lift"`
	AvgDXT          float64  `json:"avg_dxt"`
}

// FixtureConfig holds solver and miner parameters. Zero fields take defaults.
type FixtureConfig struct {
	NX              int     `json:"nx"`
	NY              int     `json:"ny"`
	Gamma           float64 `json:"gamma"`
	Tol             float64 `json:"tol"`
	MaxIter         int     `json:"max_iter"`
	MinSupportRatio float64 `json:"min_support_ratio"`
	MaxLength       int     `json:"max_length"`
	Workers         int     `json:"workers"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// validate checks that every sequence pairs each token with a cell and that
// every token and expected pattern item is a known label.
func (f *Fixture) validate() error {
	for i, s := range f.Sequences {
		if len(s.Cells) != len(s.Tokens) {
			return fmt.Errorf("sequence %d: %d tokens but %d cells", i, len(s.Tokens), len(s.Cells))
		}
		for _, label := range s.Tokens {
			if _, err := token.Parse(label); err != nil {
				return fmt.Errorf("sequence %d: %w", i, err)
			}
		}
	}
	for i, e := range f.Expected {
		for _, label := range e.Pattern {
			if _, err := token.Parse(label); err != nil {
				return fmt.Errorf("expected row %d: %w", i, err)
			}
		}
	}
	return nil
}

// ToReplayConfig overlays the fixture's non-zero fields on the defaults.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	c := DefaultReplayConfig()
	if fc.NX > 0 {
		c.XT.NX = fc.NX
	}
	if fc.NY > 0 {
		c.XT.NY = fc.NY
	}
	if fc.Gamma > 0 {
		c.XT.Gamma = fc.Gamma
	}
	if fc.Tol > 0 {
		c.XT.Tol = fc.Tol
	}
	if fc.MaxIter > 0 {
		c.XT.MaxIter = fc.MaxIter
	}
	if fc.MinSupportRatio > 0 {
		c.Mining.MinSupportRatio = fc.MinSupportRatio
	}
	if fc.MaxLength > 0 {
		c.Mining.MaxLength = fc.MaxLength
	}
	c.Scoring.Workers = fc.Workers
	return c
}

// ToCorpus converts fixture sequences to a scoring corpus.
func (f *Fixture) ToCorpus() scoring.Corpus {
	var c scoring.Corpus
	for _, s := range f.Sequences {
		c.Tokens = append(c.Tokens, s.Tokens)
		c.Cells = append(c.Cells, s.Cells)
	}
	return c
}

// Apply feeds the observations into m in fixture order.
func Apply(m *xt.Model, obs []Observation) error {
	for i, o := range obs {
		switch o.Kind {
		case "entry":
			m.AddEntry(o.X, o.Y)
		case "transition":
			m.AddTransition(o.X, o.Y, o.EndX, o.EndY)
		case "shot":
			m.AddShot(o.X, o.Y, o.XG)
		default:
			return fmt.Errorf("observation %d: unknown kind %q", i, o.Kind)
		}
	}
	return nil
}

// #endregion fixture-loader

// ReplayConfig bundles the solver, miner, scorer and surface-check configs.
type ReplayConfig struct {
	XT      xt.Config
	Mining  mining.Options
	Scoring scoring.Options
	Eval    eval.EvalConfig
}

// DefaultReplayConfig returns defaults for every stage.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		XT:     xt.DefaultConfig(),
		Mining: mining.DefaultOptions(),
		Eval:   eval.DefaultEvalConfig(),
	}
}
