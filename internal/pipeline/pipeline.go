// Package pipeline runs load → fit → tokenize → mine → score → select →
// export → persist for one season of events.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/xtpatterns/internal/config"
	"github.com/danielpatrickdp/xtpatterns/internal/eval"
	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/export"
	"github.com/danielpatrickdp/xtpatterns/internal/gate"
	"github.com/danielpatrickdp/xtpatterns/internal/graph"
	"github.com/danielpatrickdp/xtpatterns/internal/logging"
	"github.com/danielpatrickdp/xtpatterns/internal/metrics"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/opendata"
	"github.com/danielpatrickdp/xtpatterns/internal/possession"
	"github.com/danielpatrickdp/xtpatterns/internal/replay"
	"github.com/danielpatrickdp/xtpatterns/internal/scoring"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
	"github.com/danielpatrickdp/xtpatterns/internal/telemetry"
	"github.com/danielpatrickdp/xtpatterns/internal/xt"
)

// #region types

// Source yields one season of events.
type Source interface {
	LoadSeason(ctx context.Context) (opendata.Season, error)
}

// Deps are the optional collaborators of a run. Zero values disable them.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Store   *store.Store
}

// Example is a concrete occurrence of a kept pattern.
type Example struct {
	Record scoring.Record  `json:"record"`
	Path   scoring.Example `json:"path"`
}

// Result is everything a run produced.
type Result struct {
	RunID       string
	Matches     int
	Events      int
	Surface     xt.Surface
	Transitions []xt.Transition
	Eval        eval.EvalResult
	Sequences   []possession.Sequence
	Corpus      scoring.Corpus
	Mined       []mining.Pattern
	Scored      []scoring.Record
	Selection   gate.Selection
	Examples    []Example
	Files       []string
	Stages      []logging.StageEntry

	// NoQualifyingPatterns is set when no mined pattern ended in a target
	// with an observed antecedent. It is a normal outcome, not an error.
	NoQualifyingPatterns bool
}

// #endregion types

// #region fit

// FitSurface accumulates solver statistics from raw events and fits the
// value surface. Events without a usable location are skipped; complete
// passes and carries with an end location become transitions; shots add
// their xG.
func FitSurface(evs []events.Event, cfg xt.Config) (*xt.Model, error) {
	m, err := xt.NewModel(cfg)
	if err != nil {
		return nil, err
	}
	if err := replay.Apply(m, replay.Observe(evs)); err != nil {
		return nil, err
	}
	m.Fit()
	return m, nil
}

// #endregion fit

// #region runner

type runner struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	res     *Result
}

func newRunner(cfg config.Config, deps Deps) *runner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	id := uuid.New().String()
	return &runner{
		cfg:     cfg,
		logger:  logger.With("run_id", id),
		metrics: deps.Metrics,
		res:     &Result{RunID: id},
	}
}

// begin opens a span and a duration timer for a stage. The returned end
// marks the span failed when err is non-nil, then closes it and returns err.
func (r *runner) begin(ctx context.Context, stage string) (context.Context, trace.Span, func(err error) error) {
	ctx, span := telemetry.Start(ctx, stage, attribute.String("run.id", r.res.RunID))
	done := r.metrics.Stage(stage)
	return ctx, span, func(err error) error {
		if err != nil {
			fail(span, err)
		}
		done()
		span.End()
		return err
	}
}

// record appends a stage entry and logs it.
func (r *runner) record(stage, outcome, reason string, detail any) {
	e, err := logging.NewStageEntry(r.res.RunID, stage, outcome, reason, detail)
	if err != nil {
		r.logger.Warn("stage detail dropped", "stage", stage, "error", err)
	}
	r.res.Stages = append(r.res.Stages, e)

	level := slog.LevelInfo
	if outcome != logging.OutcomeOK {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "stage", "stage", stage, "outcome", outcome, "reason", reason)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// #endregion runner

// #region analyze

// Analyze runs every in-memory stage on evs: fit, tokenize, mine, score
// and select.
func Analyze(ctx context.Context, evs []events.Event, cfg config.Config, deps Deps) (*Result, error) {
	r := newRunner(cfg, deps)
	r.res.Events = len(evs)
	if err := r.analyze(ctx, evs); err != nil {
		return r.res, err
	}
	return r.res, nil
}

func (r *runner) analyze(ctx context.Context, evs []events.Event) error {
	res := r.res

	// 1. Fit
	_, span, end := r.begin(ctx, logging.StageFit)
	model, err := FitSurface(evs, r.cfg.XT())
	if err != nil {
		return end(fmt.Errorf("fit: %w", err))
	}
	res.Surface = model.Surface()
	res.Transitions = model.Transitions()
	res.Eval = eval.NewEvalHarness(r.cfg.EvalConfig()).Run(res.Surface)
	r.metrics.ObserveFit(res.Surface.Iterations, res.Surface.Converged, res.Surface.Delta)
	span.SetAttributes(
		attribute.Int("solver.iterations", res.Surface.Iterations),
		attribute.Bool("solver.converged", res.Surface.Converged),
	)
	end(nil)

	xc := r.cfg.XT()
	fit := logging.FitRecord{
		NX: xc.NX, NY: xc.NY, Gamma: xc.Gamma, Tol: xc.Tol, MaxIter: xc.MaxIter,
		Iterations: res.Surface.Iterations, Converged: res.Surface.Converged,
		Delta: res.Surface.Delta, MaxValue: res.Surface.Max(),
	}
	for i := range model.Grid().Size() {
		fit.Entries += model.Entries(i)
		fit.Shots += model.Shots(i)
	}
	if !res.Surface.Converged {
		r.logger.Warn("value iteration did not converge",
			"iterations", res.Surface.Iterations, "delta", res.Surface.Delta, "tol", xc.Tol)
	}
	if res.Eval.Passed {
		r.record(logging.StageFit, logging.OutcomeOK, "", fit)
	} else {
		r.record(logging.StageFit, logging.OutcomeWarn, res.Eval.Reason, fit)
	}

	// 2. Tokenize
	_, span, end = r.begin(ctx, logging.StageTokenize)
	res.Sequences = possession.Build(evs, model.Grid())
	res.Corpus = scoring.Corpus{Tokens: possession.Tokens(res.Sequences), Cells: possession.Cells(res.Sequences)}
	span.SetAttributes(attribute.Int("sequences", len(res.Sequences)))
	end(nil)
	r.record(logging.StageTokenize, logging.OutcomeOK, "", map[string]int{"events": len(evs), "sequences": len(res.Sequences)})

	// 3. Mine
	_, span, end = r.begin(ctx, logging.StageMine)
	res.Mined, err = mining.Mine(res.Corpus.Tokens, r.cfg.MiningOptions())
	if err != nil {
		r.record(logging.StageMine, logging.OutcomeFail, err.Error(), nil)
		return end(fmt.Errorf("mine: %w", err))
	}
	span.SetAttributes(attribute.Int("patterns", len(res.Mined)))
	end(nil)
	r.record(logging.StageMine, logging.OutcomeOK, "", map[string]any{
		"patterns":    len(res.Mined),
		"min_support": mining.MinSupport(r.cfg.Mining.MinSupport, res.Corpus.Len()),
	})

	// 4. Score
	sctx, span, end := r.begin(ctx, logging.StageScore)
	res.Scored, err = scoring.Score(sctx, res.Corpus, res.Mined, res.Surface, r.cfg.ScoringOptions())
	if err != nil {
		r.record(logging.StageScore, logging.OutcomeFail, err.Error(), nil)
		return end(err)
	}
	end(nil)
	r.metrics.ObserveCounts(len(res.Sequences), len(res.Mined), len(res.Scored))
	if len(res.Scored) == 0 {
		res.NoQualifyingPatterns = true
		r.record(logging.StageScore, logging.OutcomeWarn, "no qualifying patterns", nil)
	} else {
		r.record(logging.StageScore, logging.OutcomeOK, "", map[string]any{
			"scored":    len(res.Scored),
			"base_rate": scoring.BaseRate(res.Corpus.Tokens),
		})
	}

	// 5. Select
	_, span, end = r.begin(ctx, logging.StageSelect)
	res.Selection = gate.NewGate(r.cfg.GateConfig()).Select(res.Scored)
	for _, rec := range res.Selection.Kept {
		if len(res.Examples) >= r.cfg.Scoring.Examples {
			break
		}
		if path, ok := scoring.Locate(res.Corpus, rec.Pattern); ok {
			res.Examples = append(res.Examples, Example{Record: rec, Path: path})
		}
	}
	span.SetAttributes(attribute.Int("kept", len(res.Selection.Kept)))
	end(nil)
	r.record(logging.StageSelect, logging.OutcomeOK, "", logging.SelectionRecord{
		Scored:   len(res.Scored),
		Kept:     len(res.Selection.Kept),
		Rejected: res.Selection.RejectedBy(),
	})
	return nil
}

// #endregion analyze

// #region run

// Run loads a season from src and runs every stage. Output files are
// written when cfg.Output.Dir is set and the run is persisted when
// deps.Store is set.
func Run(ctx context.Context, src Source, cfg config.Config, deps Deps) (*Result, error) {
	ctx, root := telemetry.Start(ctx, "run")
	defer root.End()

	r := newRunner(cfg, deps)

	// 1. Load
	lctx, _, end := r.begin(ctx, logging.StageLoad)
	season, err := src.LoadSeason(lctx)
	if err != nil {
		return r.res, end(fmt.Errorf("load season: %w", err))
	}
	end(nil)
	r.res.Matches = len(season.Matches)
	r.res.Events = season.EventCount()
	r.record(logging.StageLoad, logging.OutcomeOK, "", map[string]int{
		"competition_id": season.CompetitionID,
		"season_id":      season.SeasonID,
		"matches":        len(season.Matches),
		"events":         season.EventCount(),
	})

	// 2. Analyze
	if err := r.analyze(ctx, season.Events); err != nil {
		return r.res, fail(root, err)
	}

	// 3. Export
	if cfg.Output.Dir != "" {
		_, _, end := r.begin(ctx, logging.StageExport)
		r.res.Files, err = export.WriteAll(cfg.Output.Dir, r.res.Surface, r.res.Selection.Kept)
		if err != nil {
			return r.res, end(fmt.Errorf("export: %w", err))
		}
		end(nil)
		r.record(logging.StageExport, logging.OutcomeOK, "", map[string]any{"files": r.res.Files})
	}

	// 4. Persist
	if deps.Store != nil {
		if err := Persist(deps.Store, r.res, cfg); err != nil {
			return r.res, fail(root, err)
		}
	}

	if cfg.Output.MetricsTextfile != "" {
		if err := deps.Metrics.WriteTextfile(cfg.Output.MetricsTextfile); err != nil {
			r.logger.Warn("write metrics textfile", "path", cfg.Output.MetricsTextfile, "error", err)
		}
	}
	return r.res, nil
}

// Persist stores the run, its kept patterns, its zone transitions and its
// stage log.
func Persist(s *store.Store, res *Result, cfg config.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	rec := store.RunRecord{
		RunID:         res.RunID,
		ConfigJSON:    string(raw),
		Grid:          res.Surface.Grid,
		Sequences:     len(res.Sequences),
		PatternsMined: len(res.Mined),
		Converged:     res.Surface.Converged,
		Iterations:    res.Surface.Iterations,
		Delta:         res.Surface.Delta,
		EvalPassed:    res.Eval.Passed,
		EvalReason:    res.Eval.Reason,
		Surface:       res.Surface.Values,
	}
	if _, err := s.SaveRun(rec, res.Selection.Kept); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	gs, err := graph.NewGraphStore(s.DB())
	if err != nil {
		return err
	}
	if err := gs.SaveTransitions(res.RunID, res.Transitions); err != nil {
		return err
	}

	for _, e := range res.Stages {
		if err := logging.LogStage(s.DB(), e); err != nil {
			return err
		}
	}
	return nil
}

// #endregion run
