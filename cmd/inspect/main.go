package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/xtpatterns/internal/graph"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/logging"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to runs.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail (id or \"latest\")")
	top := flag.Int("top", 10, "patterns to show in run detail")
	busiest := flag.Int("busiest", 5, "busiest zone transitions to show in run detail")
	from := flag.Int("from", -1, "flat cell index to trace the likely path and reach from")
	depth := flag.Int("depth", 3, "walk depth for --from")
	minProb := flag.Float64("min-prob", 0.05, "edge probability floor for --from")
	prune := flag.Float64("prune", 0, "delete transitions of --run with count below this value")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/runs.db [--last N] [--run id|latest] [--from cell] [--prune n] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID == "" {
		if err := runListMode(st, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts := detailOptions{top: *top, busiest: *busiest, from: *from, depth: *depth, minProb: *minProb, prune: *prune}
	if err := runDetailMode(st, *runID, opts, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string  `json:"run_id"`
	Grid       string  `json:"grid"`
	Sequences  int     `json:"sequences"`
	Mined      int     `json:"patterns_mined"`
	Kept       int     `json:"patterns_kept"`
	Converged  bool    `json:"converged"`
	Eval       string  `json:"eval"`
	TopPattern string  `json:"top_pattern,omitempty"`
	TopLift    float64 `json:"top_lift,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// store returns newest first, print chronologically
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:      r.RunID,
			Grid:       fmt.Sprintf("%dx%d", r.Grid.NX, r.Grid.NY),
			Sequences:  r.Sequences,
			Mined:      r.PatternsMined,
			Kept:       r.PatternsKept,
			Converged:  r.Converged,
			Eval:       evalLabel(r.EvalPassed),
			TopPattern: r.TopPattern,
			TopLift:    r.TopLift,
			CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-6s  %9s  %6s  %5s  %-5s  %6s  %s\n",
		"Run", "Grid", "Sequences", "Mined", "Kept", "Eval", "Lift", "Top Pattern")
	fmt.Printf("%-12s+-%-6s+-%9s+-%6s+-%5s+-%-5s+-%6s+-%s\n",
		"------------", "------", "---------", "------", "-----", "-----", "------", "--------------------")
	for _, r := range rows {
		lift := "-"
		if r.TopPattern != "" {
			lift = fmt.Sprintf("%.2f", r.TopLift)
		}
		fmt.Printf("%-12s  %-6s  %9d  %6d  %5d  %-5s  %6s  %s\n",
			shortID(r.RunID), r.Grid, r.Sequences, r.Mined, r.Kept, r.Eval, lift, r.TopPattern)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOptions struct {
	top     int
	busiest int
	from    int
	depth   int
	minProb float64
	prune   float64
}

type stageRow struct {
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type detailOutput struct {
	RunID      string                `json:"run_id"`
	ParentID   string                `json:"parent_id,omitempty"`
	CreatedAt  string                `json:"created_at"`
	Grid       grid.Grid             `json:"grid"`
	Sequences  int                   `json:"sequences"`
	Mined      int                   `json:"patterns_mined"`
	Converged  bool                  `json:"converged"`
	Iterations int                   `json:"iterations"`
	Delta      float64               `json:"delta"`
	Eval       string                `json:"eval"`
	EvalReason string                `json:"eval_reason,omitempty"`
	Stages     []stageRow            `json:"stages"`
	Patterns   []store.RankedPattern `json:"patterns"`
	Busiest    []graph.Edge          `json:"busiest"`
	Pruned     int64                 `json:"pruned,omitempty"`
	Path       *graph.WalkResult     `json:"likely_path,omitempty"`
	Reach      *graph.WalkResult     `json:"reach,omitempty"`
}

func runDetailMode(st *store.Store, id string, opts detailOptions, jsonOut bool) error {
	var (
		rec store.RunRecord
		err error
	)
	if id == "latest" {
		rec, err = st.LatestRun()
	} else {
		rec, err = st.GetRun(id)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	gs, err := graph.NewGraphStore(st.DB())
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:      rec.RunID,
		ParentID:   rec.ParentID,
		CreatedAt:  rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Grid:       rec.Grid,
		Sequences:  rec.Sequences,
		Mined:      rec.PatternsMined,
		Converged:  rec.Converged,
		Iterations: rec.Iterations,
		Delta:      rec.Delta,
		Eval:       evalLabel(rec.EvalPassed),
		EvalReason: rec.EvalReason,
	}

	stages, err := logging.ListStages(st.DB(), rec.RunID)
	if err != nil {
		return err
	}
	for _, s := range stages {
		out.Stages = append(out.Stages, stageRow{Stage: s.Stage, Outcome: s.Outcome, Reason: s.Reason})
	}

	patterns, err := st.GetPatterns(rec.RunID)
	if err != nil {
		return err
	}
	if opts.top > 0 && len(patterns) > opts.top {
		patterns = patterns[:opts.top]
	}
	out.Patterns = patterns

	if opts.prune > 0 {
		if out.Pruned, err = gs.Prune(rec.RunID, opts.prune); err != nil {
			return err
		}
	}
	if out.Busiest, err = gs.Busiest(rec.RunID, opts.busiest); err != nil {
		return err
	}
	if opts.from >= 0 {
		path, err := gs.LikelyPath(rec.RunID, opts.from, opts.depth)
		if err != nil {
			return err
		}
		reach, err := gs.Walk(rec.RunID, opts.from, opts.depth, opts.minProb, 20)
		if err != nil {
			return err
		}
		out.Path, out.Reach = &path, &reach
	}

	if jsonOut {
		return printJSON(out)
	}
	printDetail(out)
	return nil
}

func printDetail(out detailOutput) {
	fmt.Printf("Run:        %s\n", out.RunID)
	fmt.Printf("Parent:     %s\n", out.ParentID)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Grid:       %dx%d\n", out.Grid.NX, out.Grid.NY)
	fmt.Printf("Sequences:  %d\n", out.Sequences)
	fmt.Printf("Mined:      %d\n", out.Mined)
	fmt.Printf("Solver:     %d iterations, converged=%v, delta=%.2e\n", out.Iterations, out.Converged, out.Delta)
	fmt.Printf("Eval:       %s %s\n", out.Eval, out.EvalReason)

	fmt.Printf("\nStages:\n")
	for _, s := range out.Stages {
		fmt.Printf("  %-12s %-5s %s\n", s.Stage, s.Outcome, s.Reason)
	}

	fmt.Printf("\nPatterns:\n")
	if len(out.Patterns) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range out.Patterns {
		fmt.Printf("  %3d  %-40s  sup=%-4d conf=%.3f lift=%.3f dxt=%+.4f\n",
			p.Rank, mining.Pattern{Items: p.Pattern}.String(), p.SupportCount, p.Confidence, p.Lift, p.AvgDXT)
	}

	fmt.Printf("\nBusiest transitions:\n")
	for _, e := range out.Busiest {
		fmt.Printf("  %-12s %6.0f  p=%.3f\n", cellLabel(out.Grid, e.Source)+" -> "+cellLabel(out.Grid, e.Target), e.Count, e.Probability)
	}
	if out.Pruned > 0 {
		fmt.Printf("\nPruned %d transitions\n", out.Pruned)
	}

	if out.Path != nil {
		fmt.Printf("\nLikely path:\n")
		printWalk(out.Grid, *out.Path)
		fmt.Printf("\nReachable cells:\n")
		printWalk(out.Grid, *out.Reach)
	}
}

func printWalk(g grid.Grid, w graph.WalkResult) {
	for i, c := range w.Cells {
		fmt.Printf("  %-10s %.4f\n", cellLabel(g, c), w.Scores[i])
	}
}

// #endregion detail-mode

// #region output

func cellLabel(g grid.Grid, idx int) string {
	c := g.CellAt(idx)
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

func evalLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
