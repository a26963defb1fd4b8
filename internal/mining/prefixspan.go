// Package mining discovers frequent ordered sub-sequences of action tokens
// with prefix growth over projected databases.
package mining

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// #region types

// ErrInvalidOptions is returned for an out-of-range ratio or length.
var ErrInvalidOptions = errors.New("invalid mining options")

// Pattern is an ordered token list with the number of sequences containing it.
type Pattern struct {
	Items   []string `json:"items"`
	Support int      `json:"support"`
}

// String renders the items as "A > B > C".
func (p Pattern) String() string { return strings.Join(p.Items, " > ") }

func key(items []string) string { return strings.Join(items, "\x00") }

// Len is the number of items.
func (p Pattern) Len() int { return len(p.Items) }

// Options bounds the search.
type Options struct {
	MinSupportRatio float64 // in (0, 1]
	MaxLength       int     // >= 1
}

// DefaultOptions returns ratio 0.005 and length 5.
func DefaultOptions() Options {
	return Options{MinSupportRatio: 0.005, MaxLength: 5}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if !(o.MinSupportRatio > 0 && o.MinSupportRatio <= 1) {
		return fmt.Errorf("%w: min support ratio %v not in (0, 1]", ErrInvalidOptions, o.MinSupportRatio)
	}
	if o.MaxLength < 1 {
		return fmt.Errorf("%w: max length %d", ErrInvalidOptions, o.MaxLength)
	}
	return nil
}

// MinSupport converts a ratio into an absolute sequence count, at least 1.
func MinSupport(ratio float64, n int) int {
	return max(1, int(math.Floor(ratio*float64(n)+1e-9)))
}

// #endregion types

// #region projection

// projection is the suffix view of the database under a prefix: sequence
// ids[k] continues at pos[k], just past the prefix's last matched item.
type projection struct {
	ids []int
	pos []int
}

type frame struct {
	prefix []string
	proj   projection
}

type extension struct {
	item    string
	support int
}

// extensions counts each distinct item once per projected sequence and keeps
// those meeting minsup, ordered by support desc then item asc.
func extensions(db [][]string, p projection, minsup int) []extension {
	counts := make(map[string]int)
	seen := make(map[string]struct{})
	for k, id := range p.ids {
		clear(seen)
		for _, item := range db[id][p.pos[k]:] {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			counts[item]++
		}
	}

	var out []extension
	for item, c := range counts {
		if c >= minsup {
			out = append(out, extension{item: item, support: c})
		}
	}
	slices.SortFunc(out, func(a, b extension) int {
		if c := cmp.Compare(b.support, a.support); c != 0 {
			return c
		}
		return cmp.Compare(a.item, b.item)
	})
	return out
}

// project advances every sequence past its first occurrence of item at or
// after its current position, dropping sequences without one.
func project(db [][]string, p projection, item string) projection {
	var next projection
	for k, id := range p.ids {
		seq := db[id]
		for j := p.pos[k]; j < len(seq); j++ {
			if seq[j] == item {
				next.ids = append(next.ids, id)
				next.pos = append(next.pos, j+1)
				break
			}
		}
	}
	return next
}

// #endregion projection

// #region mine

// Mine returns every pattern of length <= MaxLength contained in at least
// MinSupport(ratio, len(db)) sequences, ordered by support desc then items asc.
// The search uses an explicit stack; its depth is bounded by MaxLength.
func Mine(db [][]string, opts Options) ([]Pattern, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(db) == 0 {
		return nil, nil
	}
	minsup := MinSupport(opts.MinSupportRatio, len(db))

	root := projection{ids: make([]int, len(db)), pos: make([]int, len(db))}
	for i := range db {
		root.ids[i] = i
	}

	best := make(map[string]Pattern)
	stack := []frame{{proj: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(f.prefix) >= opts.MaxLength {
			continue
		}

		exts := extensions(db, f.proj, minsup)
		// pushed in reverse so the strongest extension is expanded first
		for i := len(exts) - 1; i >= 0; i-- {
			e := exts[i]
			items := append(slices.Clip(f.prefix), e.item)
			p := Pattern{Items: items, Support: e.support}
			if prev, ok := best[key(items)]; !ok || prev.Support < p.Support {
				best[key(items)] = p
			}
			stack = append(stack, frame{prefix: items, proj: project(db, f.proj, e.item)})
		}
	}

	out := make([]Pattern, 0, len(best))
	for _, p := range best {
		out = append(out, p)
	}
	SortPatterns(out)
	return out, nil
}

// SortPatterns orders by support desc, then item lists lexicographically.
func SortPatterns(ps []Pattern) {
	slices.SortFunc(ps, func(a, b Pattern) int {
		if c := cmp.Compare(b.Support, a.Support); c != 0 {
			return c
		}
		return slices.Compare(a.Items, b.Items)
	})
}

// #endregion mine

// #region containment

// Contains reports whether pattern occurs in seq as an ordered subsequence.
func Contains(seq, pattern []string) bool {
	_, ok := FirstMatchEnd(seq, pattern)
	return ok
}

// FirstMatchEnd greedily matches pattern left to right and returns the index
// in seq of its last item. An empty pattern matches with end -1.
func FirstMatchEnd(seq, pattern []string) (int, bool) {
	idx := Match(seq, pattern)
	if idx == nil {
		return 0, false
	}
	if len(idx) == 0 {
		return -1, true
	}
	return idx[len(idx)-1], true
}

// Match returns the greedy earliest positions of pattern's items in seq,
// or nil when pattern is not contained.
func Match(seq, pattern []string) []int {
	idx := make([]int, 0, len(pattern))
	j := 0
	for _, item := range pattern {
		for j < len(seq) && seq[j] != item {
			j++
		}
		if j == len(seq) {
			return nil
		}
		idx = append(idx, j)
		j++
	}
	return idx
}

// Support counts the sequences of db containing pattern.
func Support(db [][]string, pattern []string) int {
	n := 0
	for _, seq := range db {
		if Contains(seq, pattern) {
			n++
		}
	}
	return n
}

// #endregion containment
