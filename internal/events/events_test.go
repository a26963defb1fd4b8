package events

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[
 {"id":"a","index":3,"possession":2,"type":{"id":30,"name":"Pass"},"team":{"id":7,"name":"X"},
  "location":[60.5,40],"pass":{"end_location":[80,20],"cross":true}},
 {"id":"b","possession":2,"type":{"id":16,"name":"Shot"},"team":{"id":7,"name":"X"},
  "location":[110,40],"shot":{"statsbomb_xg":0.31,"outcome":{"id":97,"name":"Goal"}}},
 {"id":"c","possession":3,"type":{"id":30,"name":"Pass"},"team":{"id":9,"name":"Y"},
  "location":[10],"pass":{"end_location":[20,20],"outcome":{"id":9,"name":"Incomplete"}}}
]`

func TestDecodeSample(t *testing.T) {
	var evs []Event
	require.NoError(t, json.Unmarshal([]byte(sample), &evs))
	require.Len(t, evs, 3)
	Normalize(99, evs)

	pass := evs[0]
	assert.Equal(t, 3, pass.Order())
	assert.True(t, pass.Pass.Complete())
	assert.True(t, pass.Pass.Cross)
	x, y, ok := pass.End()
	assert.True(t, ok)
	assert.Equal(t, 80.0, x)
	assert.Equal(t, 20.0, y)
	assert.Equal(t, PossessionKey{MatchID: 99, Possession: 2, TeamID: 7}, pass.Key())

	shot := evs[1]
	assert.Equal(t, 1, shot.Order(), "missing index defaults to position")
	assert.True(t, shot.Shot.IsGoal())
	assert.InDelta(t, 0.31, shot.XG(), 1e-12)

	bad := evs[2]
	_, _, ok = bad.Location.XY()
	assert.False(t, ok)
	assert.False(t, bad.Pass.Complete())
}

func TestPointXY(t *testing.T) {
	_, _, ok := Point{math.NaN(), 1}.XY()
	assert.False(t, ok)
	_, _, ok = Point(nil).XY()
	assert.False(t, ok)
	x, y, ok := Point{1, 2, 3}.XY()
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, []float64{x, y})
}
