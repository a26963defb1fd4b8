// Package token defines the closed action vocabulary used to label on-ball
// actions inside a possession.
//
// A Token is a tagged variant; miners and scorers work on its canonical
// string label, so two tokens are equal exactly when their labels are.
package token

import (
	"fmt"
	"math"
	"strings"
)

// #region vocabulary

// Action is the on-ball action class.
type Action uint8

const (
	Pass Action = iota + 1
	Carry
	Dribble
	Shot
	Goal
)

// Length bins the distance travelled by a pass or carry.
type Length uint8

const (
	Short Length = iota + 1 // < 15
	Medium                  // < 30
	Long
)

// Direction bins the travel angle relative to the attacking direction.
type Direction uint8

const (
	Forward Direction = iota + 1
	Lateral
	Backward
)

// Marker tags special pass types.
type Marker uint8

const (
	NoMarker Marker = iota
	Cross
	ThroughBall
	Cutback
	Switch
)

// Family groups target tokens.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyShot
	FamilyBox
)

// Terminal labels and the box-entry suffix.
const (
	LabelShot = "SHOT"
	LabelGoal = "GOAL"
	BoxSuffix = "_B"

	labelDribble = "KSD"
)

func (f Family) String() string {
	switch f {
	case FamilyShot:
		return "SHOT"
	case FamilyBox:
		return "BOX"
	default:
		return "NONE"
	}
}

// #endregion vocabulary

// #region token

// Token is one labelled action.
type Token struct {
	Action    Action
	Length    Length
	Direction Direction
	Marker    Marker
	Box       bool // destination inside the attacking box
}

var (
	lengthCodes    = map[Length]byte{Short: 'S', Medium: 'M', Long: 'L'}
	directionCodes = map[Direction]byte{Forward: 'F', Lateral: 'L', Backward: 'B'}
	markerCodes    = map[Marker]byte{Cross: 'X', ThroughBall: 'T', Cutback: 'C', Switch: 'W'}
)

// String renders the canonical label, e.g. "PSF", "PLFX_B", "KMB", "SHOT".
func (t Token) String() string {
	var b strings.Builder
	switch t.Action {
	case Shot:
		return LabelShot
	case Goal:
		return LabelGoal
	case Dribble:
		b.WriteString(labelDribble)
	case Pass, Carry:
		if t.Action == Pass {
			b.WriteByte('P')
		} else {
			b.WriteByte('K')
		}
		b.WriteByte(lengthCodes[t.Length])
		b.WriteByte(directionCodes[t.Direction])
		if c, ok := markerCodes[t.Marker]; ok && t.Action == Pass {
			b.WriteByte(c)
		}
	default:
		return "?"
	}
	if t.Box {
		b.WriteString(BoxSuffix)
	}
	return b.String()
}

// Family reports the target family of t.
func (t Token) Family() Family {
	switch {
	case t.Action == Shot || t.Action == Goal:
		return FamilyShot
	case t.Box:
		return FamilyBox
	default:
		return FamilyNone
	}
}

// Parse reads a canonical label back into a Token.
func Parse(label string) (Token, error) {
	switch label {
	case LabelShot:
		return Token{Action: Shot}, nil
	case LabelGoal:
		return Token{Action: Goal}, nil
	}

	var t Token
	body, box := strings.CutSuffix(label, BoxSuffix)
	t.Box = box

	if body == labelDribble {
		t.Action = Dribble
		return t, nil
	}
	if len(body) < 3 || len(body) > 4 {
		return Token{}, fmt.Errorf("parse token %q: bad length", label)
	}

	switch body[0] {
	case 'P':
		t.Action = Pass
	case 'K':
		t.Action = Carry
	default:
		return Token{}, fmt.Errorf("parse token %q: unknown action %q", label, body[0])
	}
	if t.Length = lookup(lengthCodes, body[1]); t.Length == 0 {
		return Token{}, fmt.Errorf("parse token %q: unknown length %q", label, body[1])
	}
	if t.Direction = lookup(directionCodes, body[2]); t.Direction == 0 {
		return Token{}, fmt.Errorf("parse token %q: unknown direction %q", label, body[2])
	}
	if len(body) == 4 {
		if t.Action != Pass {
			return Token{}, fmt.Errorf("parse token %q: marker on non-pass", label)
		}
		if t.Marker = lookup(markerCodes, body[3]); t.Marker == NoMarker {
			return Token{}, fmt.Errorf("parse token %q: unknown marker %q", label, body[3])
		}
	}
	return t, nil
}

func lookup[K comparable](codes map[K]byte, c byte) K {
	var zero K
	for k, v := range codes {
		if v == c {
			return k
		}
	}
	return zero
}

// #endregion token

// #region label-predicates

// FamilyOf classifies a label without parsing it.
func FamilyOf(label string) Family {
	switch {
	case label == LabelShot || label == LabelGoal:
		return FamilyShot
	case strings.HasSuffix(label, BoxSuffix):
		return FamilyBox
	default:
		return FamilyNone
	}
}

// IsTarget reports whether label is a shot-family or box-entry-family token.
func IsTarget(label string) bool {
	return FamilyOf(label) != FamilyNone
}

// InFamily reports whether label belongs to family f.
func InFamily(label string, f Family) bool {
	return f != FamilyNone && FamilyOf(label) == f
}

// #endregion label-predicates

// #region bins

// LengthOf bins a travel distance.
func LengthOf(d float64) Length {
	switch {
	case d < 15:
		return Short
	case d < 30:
		return Medium
	default:
		return Long
	}
}

// DirectionOf bins an angle in degrees, 0 pointing at the opposition goal.
func DirectionOf(deg float64) Direction {
	switch {
	case deg >= -45 && deg <= 45:
		return Forward
	case deg >= 135 || deg <= -135:
		return Backward
	default:
		return Lateral
	}
}

// Displacement returns distance and angle (degrees, -180..180) from (x0,y0) to (x1,y1).
func Displacement(x0, y0, x1, y1 float64) (dist, deg float64) {
	dx, dy := x1-x0, y1-y0
	return math.Hypot(dx, dy), math.Atan2(dy, dx) * 180 / math.Pi
}

// #endregion bins
