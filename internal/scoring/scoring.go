// Package scoring ranks mined patterns that end in a target token by lift
// over the baseline target rate and by the value gained on the way there.
package scoring

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/mining"
	"github.com/danielpatrickdp/xtpatterns/internal/token"
)

// #region types

// ValueSurface is a per-cell value lookup.
type ValueSurface interface {
	At(c grid.Cell) float64
}

// Corpus is a set of token sequences with the origin cell of every token.
type Corpus struct {
	Tokens [][]string
	Cells  [][]grid.Cell
}

// Len is the number of sequences.
func (c Corpus) Len() int { return len(c.Tokens) }

// Validate checks that tokens and cells are parallel.
func (c Corpus) Validate() error {
	if len(c.Tokens) != len(c.Cells) {
		return fmt.Errorf("corpus: %d token sequences but %d cell sequences", len(c.Tokens), len(c.Cells))
	}
	for i := range c.Tokens {
		if len(c.Tokens[i]) != len(c.Cells[i]) {
			return fmt.Errorf("corpus: sequence %d has %d tokens but %d cells", i, len(c.Tokens[i]), len(c.Cells[i]))
		}
	}
	return nil
}

// Record is one scored pattern.
type Record struct {
	Pattern         []string `json:"pattern"`
	Length          int      `json:"length"`
	Support         float64  `json:"support"` // SupportCount / N
	SupportCount    int      `json:"support_count"`
	AntecedentCount int      `json:"antecedent_count"`
	Confidence      float64  `json:"confidence"`
	Lift            float64  `json:"lift"`
	AvgDXT          float64  `json:"avg_dxt"`
	Target          string   `json:"target"` // SHOT or BOX
}

// Options controls the worker pool.
type Options struct {
	Workers int // <= 0 means one per pattern
}

// #endregion types

// #region score

// BaseRate is the fraction of sequences holding any target token.
func BaseRate(tokens [][]string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, seq := range tokens {
		if slices.ContainsFunc(seq, token.IsTarget) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// Qualifies reports whether p has length >= 2 and ends in a target token.
func Qualifies(p []string) bool {
	return len(p) >= 2 && token.IsTarget(p[len(p)-1])
}

// Score evaluates every qualifying pattern against the corpus and returns
// records ordered by lift, confidence, support and avg dxt, all descending.
// Patterns whose antecedent never occurs are dropped. An empty result is not
// an error.
func Score(ctx context.Context, corpus Corpus, patterns []mining.Pattern, surface ValueSurface, opts Options) ([]Record, error) {
	if err := corpus.Validate(); err != nil {
		return nil, err
	}

	var candidates []mining.Pattern
	for _, p := range patterns {
		if Qualifies(p.Items) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	base := BaseRate(corpus.Tokens)
	slots := make([]*Record, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, p := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = scoreOne(corpus, p.Items, surface, base)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score patterns: %w", err)
	}

	out := make([]Record, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	Sort(out)
	return out, nil
}

// Sort orders records in place, keeping input order among ties.
func Sort(rs []Record) {
	slices.SortStableFunc(rs, func(a, b Record) int {
		if c := cmp.Compare(b.Lift, a.Lift); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Support, a.Support); c != 0 {
			return c
		}
		return cmp.Compare(b.AvgDXT, a.AvgDXT)
	})
}

func scoreOne(corpus Corpus, pattern []string, surface ValueSurface, base float64) *Record {
	antecedent := pattern[:len(pattern)-1]
	family := token.FamilyOf(pattern[len(pattern)-1])

	var antCount, both int
	var dxtSum float64
	for s, seq := range corpus.Tokens {
		end, ok := mining.FirstMatchEnd(seq, antecedent)
		if !ok {
			continue
		}
		antCount++

		j := slices.IndexFunc(seq[end+1:], func(t string) bool { return token.InFamily(t, family) })
		if j < 0 {
			continue
		}
		j += end + 1
		both++
		dxtSum += gain(corpus.Cells[s], end, j, family, surface)
	}
	if antCount == 0 {
		return nil
	}

	n := float64(corpus.Len())
	r := &Record{
		Pattern:         slices.Clone(pattern),
		Length:          len(pattern),
		SupportCount:    both,
		AntecedentCount: antCount,
		Confidence:      float64(both) / float64(antCount),
		Support:         float64(both) / n,
		Target:          family.String(),
	}
	if base > 0 {
		r.Lift = r.Confidence / base
	}
	if both > 0 {
		r.AvgDXT = dxtSum / float64(both)
	}
	return r
}

// gain is the value change attributed to reaching the target at j.
// A shot is credited with every step from the antecedent's end; a box entry
// only with the step into it.
func gain(cells []grid.Cell, end, j int, family token.Family, surface ValueSurface) float64 {
	from := end
	if family == token.FamilyBox {
		from = j - 1
	}
	d := 0.0
	for k := from; k < j; k++ {
		d += surface.At(cellAt(cells, k+1)) - surface.At(cellAt(cells, k))
	}
	return d
}

func cellAt(cells []grid.Cell, k int) grid.Cell {
	return cells[min(k, len(cells)-1)]
}

// #endregion score

// #region locate

// Example is one concrete occurrence of a pattern.
type Example struct {
	Sequence int         `json:"sequence"`
	Indices  []int       `json:"indices"`
	Tokens   []string    `json:"tokens"`
	Cells    []grid.Cell `json:"cells"`
}

// Locate finds the first sequence containing pattern and returns the
// earliest matched positions within it.
func Locate(corpus Corpus, pattern []string) (Example, bool) {
	if len(pattern) == 0 {
		return Example{}, false
	}
	for s, seq := range corpus.Tokens {
		idx := mining.Match(seq, pattern)
		if idx == nil {
			continue
		}
		ex := Example{Sequence: s, Indices: idx}
		for _, k := range idx {
			ex.Tokens = append(ex.Tokens, seq[k])
			ex.Cells = append(ex.Cells, cellAt(corpus.Cells[s], k))
		}
		return ex, true
	}
	return Example{}, false
}

// #endregion locate
