package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/replay"
)

// #region main

func main() {
	verbose := flag.Bool("v", false, "print every scored row, not only divergences")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: replay [-v] path/to/fixture.json [more.json ...]")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	exitCode := 0
	for _, path := range flag.Args() {
		code := runFixture(context.Background(), path, *verbose)
		if code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

// #endregion main

// #region run

func runFixture(ctx context.Context, path string, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	res, divs, err := replay.RunFixture(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay %s: %v\n", path, err)
		return 2
	}

	fmt.Printf("== %s", path)
	if f.Description != "" {
		fmt.Printf(" (%s)", f.Description)
	}
	fmt.Println()

	if verbose {
		printRecords(res)
	}
	printDivergences(divs)

	s := replay.Summarize(res, f.Expected, divs, len(f.Sequences))
	fmt.Printf("\nSummary: %d sequences, %d mined, %d scored, %d expected, %d match, %d diverge, converged=%v\n\n",
		s.Sequences, s.Mined, s.Scored, s.Expected, s.Matched, s.Diverged, s.Converged)

	if len(divs) > 0 {
		return 1
	}
	return 0
}

// #endregion run

// #region output

func printRecords(res replay.ReplayResult) {
	fmt.Printf("%-24s| %5s| %5s| %8s| %8s| %s\n", "Pattern", "Sup", "Ante", "Conf", "Lift", "AvgDXT")
	fmt.Printf("%-24s+%6s+%6s+%9s+%9s+%s\n",
		"------------------------", "------", "------", "---------", "---------", "--------")
	for _, r := range res.Records {
		fmt.Printf("%-24s| %5d| %5d| %8.4f| %8.4f| %+.6f\n",
			mining.Pattern{Items: r.Pattern}.String(), r.SupportCount, r.AntecedentCount, r.Confidence, r.Lift, r.AvgDXT)
	}
	fmt.Println()
}

func printDivergences(divs []replay.Divergence) {
	if len(divs) == 0 {
		fmt.Println("all expected rows match")
		return
	}
	fmt.Printf("%-24s| %-16s| %-14s| %s\n", "Pattern", "Field", "Want", "Got")
	fmt.Printf("%-24s+%-17s+%-15s+%s\n",
		"------------------------", "-----------------", "---------------", "--------------")
	for _, d := range divs {
		fmt.Printf("%-24s| %-16s| %-14s| %s\n", d.Pattern, d.Field, d.Want, d.Got)
	}
}

// #endregion output
