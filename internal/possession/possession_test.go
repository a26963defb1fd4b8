package possession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/xtpatterns/internal/events"
	"github.com/danielpatrickdp/xtpatterns/internal/grid"
)

func ev(idx, poss, team int, typ string, loc events.Point) events.Event {
	i := idx
	return events.Event{
		Index:      &i,
		MatchID:    1,
		Possession: poss,
		Type:       events.Named{Name: typ},
		Team:       events.Named{ID: team},
		Location:   loc,
	}
}

func pass(idx, poss int, from, to events.Point) events.Event {
	e := ev(idx, poss, 10, events.TypePass, from)
	e.Pass = &events.PassDetail{EndLocation: to}
	return e
}

func carry(idx, poss int, from, to events.Point) events.Event {
	e := ev(idx, poss, 10, events.TypeCarry, from)
	e.Carry = &events.CarryDetail{EndLocation: to}
	return e
}

func shot(idx, poss int, at events.Point, goal bool) events.Event {
	e := ev(idx, poss, 10, events.TypeShot, at)
	e.Shot = &events.ShotDetail{StatsBombXG: 0.1}
	if goal {
		e.Shot.Outcome = &events.Named{Name: events.OutcomeGoal}
	}
	return e
}

func TestLabelPasses(t *testing.T) {
	cases := []struct {
		name string
		e    events.Event
		want string
	}{
		{"short forward", pass(0, 1, events.Point{50, 40}, events.Point{60, 40}), "PSF"},
		{"medium back", pass(0, 1, events.Point{50, 40}, events.Point{30, 40}), "PMB"},
		{"long lateral", pass(0, 1, events.Point{50, 10}, events.Point{50, 45}), "PLLW"},
		{"into box", pass(0, 1, events.Point{95, 40}, events.Point{105, 40}), "PSF_B"},
		{"switch", pass(0, 1, events.Point{40, 5}, events.Point{60, 70}), "PLLW"},
		{"long no switch", pass(0, 1, events.Point{20, 40}, events.Point{60, 40}), "PLF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, ok := Label(tc.e)
			require.True(t, ok)
			assert.Equal(t, tc.want, tok.String())
		})
	}
}

func TestLabelPassMarkers(t *testing.T) {
	e := pass(0, 1, events.Point{90, 10}, events.Point{110, 40})
	e.Pass.Cross = true
	tok, _ := Label(e)
	assert.Equal(t, "PLLX_B", tok.String())

	e = pass(0, 1, events.Point{80, 40}, events.Point{90, 40})
	e.Pass.Type = &events.Named{Name: "Through Ball"}
	tok, _ = Label(e)
	assert.Equal(t, "PSFT", tok.String())

	e = pass(0, 1, events.Point{115, 20}, events.Point{108, 35})
	e.Pass.CutBack = true
	tok, _ = Label(e)
	assert.Equal(t, "PMLC_B", tok.String())
}

func TestLabelSkips(t *testing.T) {
	incomplete := pass(0, 1, events.Point{50, 40}, events.Point{60, 40})
	incomplete.Pass.Outcome = &events.Named{Name: "Incomplete"}
	_, ok := Label(incomplete)
	assert.False(t, ok)

	_, ok = Label(pass(0, 1, events.Point{50}, events.Point{60, 40}))
	assert.False(t, ok)

	noEnd := ev(0, 1, 10, events.TypeDribble, events.Point{50, 40})
	noEnd.Dribble = &events.DribbleDetail{}
	_, ok = Label(noEnd)
	assert.False(t, ok)

	_, ok = Label(ev(0, 1, 10, "Pressure", events.Point{50, 40}))
	assert.False(t, ok)
}

func TestLabelCarryDribbleShot(t *testing.T) {
	tok, ok := Label(carry(0, 1, events.Point{100, 40}, events.Point{104, 41}))
	require.True(t, ok)
	assert.Equal(t, "KSF_B", tok.String())

	d := ev(0, 1, 10, events.TypeDribble, events.Point{60, 40})
	d.Dribble = &events.DribbleDetail{EndLocation: events.Point{62, 40}}
	tok, ok = Label(d)
	require.True(t, ok)
	assert.Equal(t, "KSD", tok.String())

	tok, _ = Label(shot(0, 1, events.Point{110, 40}, true))
	assert.Equal(t, "GOAL", tok.String())
	tok, _ = Label(shot(0, 1, events.Point{110, 40}, false))
	assert.Equal(t, "SHOT", tok.String())
}

func TestBuildGroupsAndOrders(t *testing.T) {
	g := grid.New(12, 8)
	evs := []events.Event{
		shot(5, 1, events.Point{110, 40}, false),
		pass(2, 1, events.Point{50, 40}, events.Point{60, 40}),
		ev(3, 1, 10, "Ball Receipt*", events.Point{60, 40}),
		carry(3, 1, events.Point{60, 40}, events.Point{70, 40}),
		pass(1, 2, events.Point{10, 10}, events.Point{12, 12}),
		ev(0, 3, 11, "Pressure", events.Point{50, 40}),
	}
	// other team, same possession id
	other := pass(4, 1, events.Point{20, 20}, events.Point{25, 20})
	other.Team.ID = 99
	evs = append(evs, other)

	seqs := Build(evs, g)
	require.Len(t, seqs, 3)

	assert.Equal(t, []string{"PSF", "KSF", "SHOT"}, seqs[0].Tokens)
	assert.Equal(t, []grid.Cell{g.ToCell(50, 40), g.ToCell(60, 40), g.ToCell(110, 40)}, seqs[0].Cells)
	assert.Equal(t, events.PossessionKey{MatchID: 1, Possession: 1, TeamID: 10}, seqs[0].Key)

	assert.Equal(t, []string{"PSF"}, seqs[1].Tokens)
	assert.Equal(t, 99, seqs[2].Key.TeamID)

	assert.Len(t, Tokens(seqs), 3)
	assert.Len(t, Cells(seqs), 3)
	for _, s := range seqs {
		assert.Equal(t, len(s.Tokens), len(s.Cells))
	}
}
