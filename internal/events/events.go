// Package events models the subset of StatsBomb open-data event JSON used to
// build possessions and the value surface.
package events

import "math"

// #region names
// Event type names.
const (
	TypePass    = "Pass"
	TypeCarry   = "Carry"
	TypeDribble = "Dribble"
	TypeShot    = "Shot"

	OutcomeGoal = "Goal"
)

// #endregion names

// #region types

// Named is StatsBomb's {id, name} reference object.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Point is a location array. Valid points have at least two finite coordinates.
type Point []float64

// XY returns the coordinates and whether the point is usable.
func (p Point) XY() (x, y float64, ok bool) {
	if len(p) < 2 || !finite(p[0]) || !finite(p[1]) {
		return 0, 0, false
	}
	return p[0], p[1], true
}

// PassDetail is the "pass" object.
type PassDetail struct {
	EndLocation Point  `json:"end_location"`
	Outcome     *Named `json:"outcome,omitempty"` // nil means complete
	Type        *Named `json:"type,omitempty"`
	Cross       bool   `json:"cross,omitempty"`
	ThroughBall bool   `json:"through_ball,omitempty"`
	CutBack     bool   `json:"cut_back,omitempty"`
}

// Complete reports whether the pass reached a teammate.
func (p *PassDetail) Complete() bool { return p != nil && p.Outcome == nil }

// TypeName returns the pass type name or "".
func (p *PassDetail) TypeName() string {
	if p == nil || p.Type == nil {
		return ""
	}
	return p.Type.Name
}

// CarryDetail is the "carry" object.
type CarryDetail struct {
	EndLocation Point `json:"end_location"`
}

// DribbleDetail is the "dribble" object.
type DribbleDetail struct {
	EndLocation Point  `json:"end_location,omitempty"`
	Outcome     *Named `json:"outcome,omitempty"`
}

// ShotDetail is the "shot" object.
type ShotDetail struct {
	StatsBombXG float64 `json:"statsbomb_xg"`
	Outcome     *Named  `json:"outcome,omitempty"`
	EndLocation Point   `json:"end_location,omitempty"`
}

// IsGoal reports whether the shot was scored.
func (s *ShotDetail) IsGoal() bool {
	return s != nil && s.Outcome != nil && s.Outcome.Name == OutcomeGoal
}

// Event is one on-ball action record.
type Event struct {
	ID         string         `json:"id"`
	Index      *int           `json:"index,omitempty"`
	MatchID    int            `json:"match_id,omitempty"`
	Possession int            `json:"possession"`
	Type       Named          `json:"type"`
	Team       Named          `json:"team"`
	Location   Point          `json:"location,omitempty"`
	Pass       *PassDetail    `json:"pass,omitempty"`
	Carry      *CarryDetail   `json:"carry,omitempty"`
	Dribble    *DribbleDetail `json:"dribble,omitempty"`
	Shot       *ShotDetail    `json:"shot,omitempty"`
}

// Order is the event's position within its match (Index, or 0 when unset).
func (e Event) Order() int {
	if e.Index == nil {
		return 0
	}
	return *e.Index
}

// End returns the destination of a pass, carry or dribble.
func (e Event) End() (x, y float64, ok bool) {
	switch {
	case e.Type.Name == TypePass && e.Pass != nil:
		return e.Pass.EndLocation.XY()
	case e.Type.Name == TypeCarry && e.Carry != nil:
		return e.Carry.EndLocation.XY()
	case e.Type.Name == TypeDribble && e.Dribble != nil:
		return e.Dribble.EndLocation.XY()
	}
	return 0, 0, false
}

// XG returns the shot's expected-goal value, 0 for non-shots and non-finite values.
func (e Event) XG() float64 {
	if e.Shot == nil || !finite(e.Shot.StatsBombXG) {
		return 0
	}
	return e.Shot.StatsBombXG
}

// PossessionKey identifies one team's spell of possession within a match.
type PossessionKey struct {
	MatchID    int `json:"match_id"`
	Possession int `json:"possession"`
	TeamID     int `json:"team_id"`
}

// Key returns the event's possession key.
func (e Event) Key() PossessionKey {
	return PossessionKey{MatchID: e.MatchID, Possession: e.Possession, TeamID: e.Team.ID}
}

// #endregion types

// #region catalogue

// Competition is one row of competitions.json.
type Competition struct {
	CompetitionID   int    `json:"competition_id"`
	SeasonID        int    `json:"season_id"`
	CompetitionName string `json:"competition_name"`
	SeasonName      string `json:"season_name"`
}

// Match is one row of matches/{competition}/{season}.json.
type Match struct {
	MatchID   int    `json:"match_id"`
	MatchDate string `json:"match_date"`
	HomeTeam  struct {
		HomeTeamName string `json:"home_team_name"`
	} `json:"home_team"`
	AwayTeam struct {
		AwayTeamName string `json:"away_team_name"`
	} `json:"away_team"`
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// #endregion catalogue

// Normalize tags events with their match and fills missing indices with
// their position in the slice.
func Normalize(matchID int, evs []Event) {
	for i := range evs {
		evs[i].MatchID = matchID
		if evs[i].Index == nil {
			idx := i
			evs[i].Index = &idx
		}
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
