// Package config loads the run configuration from YAML over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/xtpatterns/internal/cache"
	"github.com/danielpatrickdp/xtpatterns/internal/eval"
	"github.com/danielpatrickdp/xtpatterns/internal/gate"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/opendata"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region types

// Config is the full run configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Grid    GridConfig    `yaml:"grid"`
	Solver  SolverConfig  `yaml:"solver"`
	Mining  MiningConfig  `yaml:"mining"`
	Scoring ScoringConfig `yaml:"scoring"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Trace   TraceConfig   `yaml:"trace"`
	Server  ServerConfig  `yaml:"server"`
}

// DataConfig drives open-data acquisition.
type DataConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	CacheDir          string        `yaml:"cache_dir" validate:"required"`
	UserAgent         string        `yaml:"user_agent"`
	Competition       string        `yaml:"competition"`
	Season            string        `yaml:"season"`
	FallbackComp      int           `yaml:"fallback_competition_id" validate:"gte=0"`
	FallbackSeason    int           `yaml:"fallback_season_id" validate:"gte=0"`
	Retries           int           `yaml:"retries" validate:"gte=1,lte=20"`
	Backoff           time.Duration `yaml:"backoff" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	Workers           int           `yaml:"workers" validate:"gte=1,lte=64"`
}

// GridConfig is the zone resolution.
type GridConfig struct {
	NX int `yaml:"nx" validate:"gte=1,lte=120"`
	NY int `yaml:"ny" validate:"gte=1,lte=80"`
}

// SolverConfig controls value iteration.
type SolverConfig struct {
	Gamma            float64 `yaml:"gamma" validate:"gt=0,lte=1"`
	Tol              float64 `yaml:"tol" validate:"gt=0"`
	MaxIter          int     `yaml:"max_iter" validate:"gte=1"`
	RequireConverged bool    `yaml:"require_converged"`
	MaxValue         float64 `yaml:"max_value" validate:"gt=0"`
}

// MiningConfig bounds the pattern search.
type MiningConfig struct {
	MinSupport float64 `yaml:"min_support" validate:"gt=0,lte=1"`
	MaxLength  int     `yaml:"max_length" validate:"gte=1,lte=12"`
}

// ScoringConfig controls scoring and selection.
type ScoringConfig struct {
	TopK            int     `yaml:"top_k" validate:"gte=1"`
	Workers         int     `yaml:"workers" validate:"gte=0"`
	MinSupportCount int     `yaml:"min_support_count" validate:"gte=0"`
	MinLift         float64 `yaml:"min_lift" validate:"gte=0"`
	Examples        int     `yaml:"examples" validate:"gte=0"`
}

// OutputConfig names the output locations.
type OutputConfig struct {
	Dir             string `yaml:"dir" validate:"required"`
	DBPath          string `yaml:"db_path"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// TraceConfig toggles stdout span export.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

// ServerConfig is the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// #endregion types

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	od := opendata.DefaultConfig()
	sc := xt.DefaultConfig()
	mo := mining.DefaultOptions()
	return Config{
		Data: DataConfig{
			BaseURL:           od.BaseURL,
			CacheDir:          cache.DefaultConfig().Dir,
			UserAgent:         od.UserAgent,
			Competition:       od.CompetitionPrefix,
			Season:            od.SeasonPrefix,
			FallbackComp:      od.FallbackComp,
			FallbackSeason:    od.FallbackSeason,
			Retries:           od.Retries,
			Backoff:           od.Backoff,
			Timeout:           od.Timeout,
			RequestsPerSecond: od.RequestsPerS,
			Burst:             od.Burst,
			Workers:           od.Workers,
		},
		Grid: GridConfig{NX: sc.NX, NY: sc.NY},
		Solver: SolverConfig{
			Gamma:    sc.Gamma,
			Tol:      sc.Tol,
			MaxIter:  sc.MaxIter,
			MaxValue: 1.0,
		},
		Mining: MiningConfig{MinSupport: mo.MinSupportRatio, MaxLength: mo.MaxLength},
		Scoring: ScoringConfig{
			TopK:     30,
			Examples: 5,
		},
		Output: OutputConfig{Dir: "outputs", DBPath: "outputs/runs.db"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Trace:  TraceConfig{Service: "xtpatterns"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// #endregion defaults

// #region load

var validate = validator.New()

// Load reads path over Default and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s fails %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Write saves c as YAML.
func Write(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// #endregion load

// #region conversions

// OpenDataConfig converts the data section into client settings.
func (c Config) OpenDataConfig() opendata.Config {
	return opendata.Config{
		BaseURL:           c.Data.BaseURL,
		UserAgent:         c.Data.UserAgent,
		Timeout:           c.Data.Timeout,
		Retries:           c.Data.Retries,
		Backoff:           c.Data.Backoff,
		RequestsPerS:      c.Data.RequestsPerSecond,
		Burst:             c.Data.Burst,
		Workers:           c.Data.Workers,
		CompetitionPrefix: c.Data.Competition,
		SeasonPrefix:      c.Data.Season,
		FallbackComp:      c.Data.FallbackComp,
		FallbackSeason:    c.Data.FallbackSeason,
	}
}

// XT converts the grid and solver sections.
func (c Config) XT() xt.Config {
	return xt.Config{
		NX:      c.Grid.NX,
		NY:      c.Grid.NY,
		Gamma:   c.Solver.Gamma,
		Tol:     c.Solver.Tol,
		MaxIter: c.Solver.MaxIter,
	}
}

// MiningOptions converts the mining section.
func (c Config) MiningOptions() mining.Options {
	return mining.Options{MinSupportRatio: c.Mining.MinSupport, MaxLength: c.Mining.MaxLength}
}

// ScoringOptions converts the scoring worker count.
func (c Config) ScoringOptions() scoring.Options {
	return scoring.Options{Workers: c.Scoring.Workers}
}

// EvalConfig converts the solver's surface check settings.
func (c Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{MaxCellValue: c.Solver.MaxValue, RequireConverged: c.Solver.RequireConverged}
}

// GateConfig converts the selection thresholds.
func (c Config) GateConfig() gate.GateConfig {
	return gate.GateConfig{TopK: c.Scoring.TopK, MinSupportCount: c.Scoring.MinSupportCount, MinLift: c.Scoring.MinLift}
}

// CacheConfig converts the cache directory into store settings.
func (c Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.Dir = c.Data.CacheDir
	return cc
}

// #endregion conversions
