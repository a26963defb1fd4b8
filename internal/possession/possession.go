// Package possession turns an event stream into per-possession token
// sequences with the origin cell of every token.
package possession

import (
	"cmp"
	"math"
	"slices"

	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
	"github.com/danielpatrickdp/xtpatterns/internal/token"
)

// switchMinDY is the lateral distance that makes an unmarked long pass a switch.
const switchMinDY = 30.0

// Sequence is one possession's tokens and their origin cells, index aligned.
type Sequence struct {
	Key    events.PossessionKey `json:"key"`
	Tokens []string             `json:"tokens"`
	Cells  []grid.Cell          `json:"cells"`
}

// Len is the number of tokens.
func (s Sequence) Len() int { return len(s.Tokens) }

// #region build

// Build groups on-ball events by possession in first-seen order, sorts each
// group by event index and labels every usable action. Possessions without a
// single token are dropped.
func Build(evs []events.Event, g grid.Grid) []Sequence {
	var order []events.PossessionKey
	groups := make(map[events.PossessionKey][]events.Event)
	for _, e := range evs {
		switch e.Type.Name {
		case events.TypePass, events.TypeCarry, events.TypeDribble, events.TypeShot:
		default:
			continue
		}
		k := e.Key()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	var out []Sequence
	for _, k := range order {
		group := groups[k]
		slices.SortStableFunc(group, func(a, b events.Event) int {
			return cmp.Compare(a.Order(), b.Order())
		})

		seq := Sequence{Key: k}
		for _, e := range group {
			tok, ok := Label(e)
			if !ok {
				continue
			}
			x, y, _ := e.Location.XY()
			seq.Tokens = append(seq.Tokens, tok.String())
			seq.Cells = append(seq.Cells, g.ToCell(x, y))
		}
		if seq.Len() > 0 {
			out = append(out, seq)
		}
	}
	return out
}

// Tokens projects sequences onto their token lists.
func Tokens(seqs []Sequence) [][]string {
	out := make([][]string, len(seqs))
	for i, s := range seqs {
		out[i] = s.Tokens
	}
	return out
}

// Cells projects sequences onto their cell lists.
func Cells(seqs []Sequence) [][]grid.Cell {
	out := make([][]grid.Cell, len(seqs))
	for i, s := range seqs {
		out[i] = s.Cells
	}
	return out
}

// #endregion build

// #region label

// Label classifies a single event. It reports false for events that do not
// produce a token: missing locations, incomplete passes, dribbles without an
// end point and unsupported types.
func Label(e events.Event) (token.Token, bool) {
	x0, y0, ok := e.Location.XY()
	if !ok {
		return token.Token{}, false
	}

	switch e.Type.Name {
	case events.TypeShot:
		if e.Shot.IsGoal() {
			return token.Token{Action: token.Goal}, true
		}
		return token.Token{Action: token.Shot}, true

	case events.TypePass:
		x1, y1, ok := e.End()
		if !ok || !e.Pass.Complete() {
			return token.Token{}, false
		}
		t := movement(token.Pass, x0, y0, x1, y1)
		t.Marker = passMarker(e.Pass, t.Length, y1-y0)
		return t, true

	case events.TypeCarry:
		x1, y1, ok := e.End()
		if !ok {
			return token.Token{}, false
		}
		return movement(token.Carry, x0, y0, x1, y1), true

	case events.TypeDribble:
		x1, y1, ok := e.End()
		if !ok {
			return token.Token{}, false
		}
		return token.Token{Action: token.Dribble, Box: grid.InAttackingBox(x1, y1)}, true
	}
	return token.Token{}, false
}

func movement(a token.Action, x0, y0, x1, y1 float64) token.Token {
	d, deg := token.Displacement(x0, y0, x1, y1)
	return token.Token{
		Action:    a,
		Length:    token.LengthOf(d),
		Direction: token.DirectionOf(deg),
		Box:       grid.InAttackingBox(x1, y1),
	}
}

func passMarker(p *events.PassDetail, l token.Length, dy float64) token.Marker {
	switch name := p.TypeName(); {
	case p.Cross || name == "Cross":
		return token.Cross
	case p.ThroughBall || name == "Through Ball":
		return token.ThroughBall
	case p.CutBack || name == "Cut Back":
		return token.Cutback
	case l == token.Long && math.Abs(dy) > switchMinDY:
		return token.Switch
	}
	return token.NoMarker
}

// #endregion label
