package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/persist"
)

func TestWalkerPosition(t *testing.T) {
	w := Walker{
		Positions: []geo.Point{{X: 100, Y: 100}, {X: 132, Y: 100}, {X: 164, Y: 100}},
	}

	assert.Equal(t, geo.Point{X: 100, Y: 100}, w.Position())
	assert.False(t, w.Done())

	w.CurrentIndex = 2
	assert.Equal(t, geo.Point{X: 164, Y: 100}, w.Position())
	assert.True(t, w.Done())

	// Index past the end clamps to the last waypoint.
	w.CurrentIndex = 9
	assert.Equal(t, geo.Point{X: 164, Y: 100}, w.Position())

	empty := Walker{}
	assert.Equal(t, geo.Point{}, empty.Position())
	assert.True(t, empty.Done())
}

func TestSumWalkSpeeds(t *testing.T) {
	items := []*data.ItemInfo{
		{Stats: data.ItemStats{WalkSpeed: 0.2}},
		{Stats: data.ItemStats{WalkSpeed: 0.1}},
		{Stats: data.ItemStats{}},
	}
	spells := []persist.SpellRow{
		{WalkSpeed: 0.5, Remaining: 10},
		{WalkSpeed: 0.3, Remaining: 0}, // expired, cooldown only
	}

	equipSum, spellSum := sumWalkSpeeds(items, spells)
	assert.InDelta(t, 0.3, equipSum, 1e-9)
	assert.InDelta(t, 0.5, spellSum, 1e-9)

	equipSum, spellSum = sumWalkSpeeds(nil, nil)
	assert.Zero(t, equipSum)
	assert.Zero(t, spellSum)
}

func TestPlayerFromRow(t *testing.T) {
	row := &persist.PlayerRow{
		UserID: 7, Username: "vex", Realm: "B",
		X: 1200, Y: 900,
		Health: 80, MaxHealth: 120, Mana: 30, MaxMana: 50,
		Level: 4, XP: 900, GMLevel: 2,
	}
	p := PlayerFromRow(row)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "B", p.Realm)
	assert.Equal(t, int64(120), p.MaxHealth)
	assert.True(t, p.GM)

	row.GMLevel = 0
	assert.False(t, PlayerFromRow(row).GM)
}

func TestTerritoryFromRow(t *testing.T) {
	since := time.Unix(1700000000, 0)
	row := &persist.TerritoryRow{
		ID: 17, Name: "Keep", Type: persist.TerritoryFort,
		OwnerRealm: "A", Health: 50000, MaxHealth: 100000,
		X: 3000, Y: 2000, Contested: true, ContestedSince: &since,
	}
	tr := TerritoryFromRow(row)
	assert.Equal(t, int64(17), tr.ID)
	assert.True(t, tr.Contested)
	assert.Equal(t, since.Unix(), tr.ContestedSince)

	row.Contested = false
	row.ContestedSince = nil
	tr = TerritoryFromRow(row)
	assert.False(t, tr.Contested)
	assert.Zero(t, tr.ContestedSince)
}
