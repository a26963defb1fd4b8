package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/xtpatterns/internal/cache"
	"github.com/danielpatrickdp/xtpatterns/internal/config"
	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/logging"
	"github.com/danielpatrickdp/xtpatterns/internal/opendata"
	"github.com/danielpatrickdp/xtpatterns/internal/pipeline"
	"github.com/danielpatrickdp/xtpatterns/internal/replay"
)

// #region main

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults when empty)")
	matches := flag.Int("matches", 1, "number of season matches to snapshot (0 = all)")
	outPath := flag.String("out", "", "output fixture JSON path")
	desc := flag.String("desc", "", "fixture description")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --out path/to/fixture.json [--config cfg.yaml] [--matches N] [--desc text]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *matches, *outPath, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(ctx context.Context, cfg config.Config, matches int, outPath, desc string) error {
	logger, err := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	c, err := cache.Open(cfg.CacheConfig())
	if err != nil {
		return err
	}
	defer c.Close()

	client := opendata.New(cfg.OpenDataConfig(), opendata.WithCache(c), opendata.WithLogger(logger))
	season, err := client.LoadSeason(ctx)
	if err != nil {
		return err
	}

	evs := firstMatches(season, matches)
	res, err := pipeline.Analyze(ctx, evs, cfg, pipeline.Deps{Logger: logger})
	if err != nil {
		return err
	}

	fc := replay.FixtureConfig{
		NX:              cfg.Grid.NX,
		NY:              cfg.Grid.NY,
		Gamma:           cfg.Solver.Gamma,
		Tol:             cfg.Solver.Tol,
		MaxIter:         cfg.Solver.MaxIter,
		MinSupportRatio: cfg.Mining.MinSupport,
		MaxLength:       cfg.Mining.MaxLength,
	}
	if desc == "" {
		desc = fmt.Sprintf("competition %d season %d, %d events", season.CompetitionID, season.SeasonID, len(evs))
	}
	f := replay.Snapshot(desc, fc, replay.Observe(evs), res.Sequences, res.Scored)
	if err := f.Save(outPath); err != nil {
		return err
	}

	fmt.Printf("Exported %d observations, %d sequences, %d expected rows to %s\n",
		len(f.Observations), len(f.Sequences), len(f.Expected), outPath)
	return nil
}

// firstMatches keeps the events of the first n matches in season order.
func firstMatches(s opendata.Season, n int) []events.Event {
	if n <= 0 || n >= len(s.Matches) {
		return s.Events
	}
	keep := make(map[int]bool, n)
	for _, m := range s.Matches[:n] {
		keep[m.MatchID] = true
	}
	var out []events.Event
	for _, e := range s.Events {
		if keep[e.MatchID] {
			out = append(out, e)
		}
	}
	return out
}

// #endregion extract
