package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/pipeline"
	"github.com/danielpatrickdp/xtpatterns/internal/render"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Load a season, fit the surface, mine and score patterns",
		RunE:  runPipeline,
	}

	runNoStore bool
	runQuiet   bool
)

func init() {
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip writing the run to the SQLite database")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "do not draw the heatmap and example paths")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	client, c, err := a.client()
	if err != nil {
		return err
	}
	defer c.Close()

	deps := pipeline.Deps{Logger: a.logger, Metrics: a.metrics}
	if !runNoStore && a.cfg.Output.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.Output.DBPath), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		st, err := store.NewStore(a.cfg.Output.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		deps.Store = st
	}

	res, err := pipeline.Run(ctx, client, a.cfg, deps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d matches, %d events.\n", res.Matches, res.Events)
	fmt.Fprintf(out, "Surface: %d iterations, converged=%v, delta=%.2e\n",
		res.Surface.Iterations, res.Surface.Converged, res.Surface.Delta)
	fmt.Fprintf(out, "Built %d possession sequences.\n", len(res.Sequences))
	fmt.Fprintf(out, "Mined %d patterns with minsup=%g (%d sequences).\n",
		len(res.Mined), a.cfg.Mining.MinSupport, mining.MinSupport(a.cfg.Mining.MinSupport, len(res.Sequences)))

	if !runQuiet {
		fmt.Fprintln(out, render.Heatmap(res.Surface))
	}
	if res.NoQualifyingPatterns {
		fmt.Fprintln(out, "No patterns met the criteria. Try lowering min_support or increasing max_length.")
		return nil
	}

	fmt.Fprintln(out, render.Patterns(res.Selection.Kept, a.cfg.Scoring.TopK))
	if !runQuiet {
		for _, ex := range res.Examples {
			fmt.Fprintln(out, render.Path(res.Surface, ex.Path, mining.Pattern{Items: ex.Record.Pattern}.String()))
		}
	}
	for _, f := range res.Files {
		fmt.Fprintf(out, "Saved %s\n", f)
	}
	if deps.Store != nil {
		fmt.Fprintf(out, "Run %s stored in %s\n", res.RunID, a.cfg.Output.DBPath)
	}
	return nil
}
