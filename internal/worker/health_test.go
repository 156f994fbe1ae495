package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/scripting"
)

type fakeHealthCache struct {
	online      []cache.Player
	vitals      map[int64][2]int64
	territories []cache.Territory
	bosses      []cache.Superboss
}

func (f *fakeHealthCache) OnlinePlayers(ctx context.Context, threshold time.Duration) ([]cache.Player, error) {
	return f.online, nil
}

func (f *fakeHealthCache) SetVitals(ctx context.Context, userID int64, health, mana int64) {
	f.vitals[userID] = [2]int64{health, mana}
}

func (f *fakeHealthCache) SetTerritories(ctx context.Context, list []cache.Territory) {
	f.territories = list
}

func (f *fakeHealthCache) SetSuperbosses(ctx context.Context, list []cache.Superboss) {
	f.bosses = list
}

type fakeSpellSource struct {
	rows []persist.SpellRow
}

func (f *fakeSpellSource) ActiveAll(ctx context.Context) ([]persist.SpellRow, error) {
	return f.rows, nil
}

// fakeTerritoryStore mirrors the repo contract: contested rows never
// regen, full restoration drops the contest clock.
type fakeTerritoryStore struct {
	rows []persist.TerritoryRow
}

func (f *fakeTerritoryStore) All(ctx context.Context) ([]persist.TerritoryRow, error) {
	out := make([]persist.TerritoryRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeTerritoryStore) ClearExpiredContests(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for i := range f.rows {
		r := &f.rows[i]
		if r.Contested && r.ContestedSince != nil && !r.ContestedSince.After(cutoff) {
			r.Contested = false
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (f *fakeTerritoryStore) Regen(ctx context.Context, territoryType string, amount int64) ([]persist.TerritoryRow, error) {
	var changed []persist.TerritoryRow
	for i := range f.rows {
		r := &f.rows[i]
		if r.Type != territoryType || r.Contested || r.Health >= r.MaxHealth {
			continue
		}
		r.Health += amount
		if r.Health >= r.MaxHealth {
			r.Health = r.MaxHealth
			r.ContestedSince = nil
		}
		changed = append(changed, *r)
	}
	return changed, nil
}

func (f *fakeTerritoryStore) find(id int64) *persist.TerritoryRow {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i]
		}
	}
	return nil
}

type fakeBossStore struct {
	rows []persist.SuperbossRow
}

func (f *fakeBossStore) All(ctx context.Context) ([]persist.SuperbossRow, error) {
	out := make([]persist.SuperbossRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeBossStore) Regen(ctx context.Context, amount int64) ([]persist.SuperbossRow, error) {
	var changed []persist.SuperbossRow
	for i := range f.rows {
		r := &f.rows[i]
		if r.Health <= 0 || r.Health >= r.MaxHealth {
			continue
		}
		r.Health += amount
		if r.Health > r.MaxHealth {
			r.Health = r.MaxHealth
		}
		changed = append(changed, *r)
	}
	return changed, nil
}

type fakeEngine struct {
	playerHP, playerMP int64
	territoryRate      map[string]int64
	bossRate           int64
}

func (f *fakeEngine) PlayerRegen(ctx scripting.PlayerRegenContext) scripting.RegenAmounts {
	return scripting.RegenAmounts{HP: f.playerHP, MP: f.playerMP}
}

func (f *fakeEngine) TerritoryRegen(territoryType string, maxHealth int64) int64 {
	return f.territoryRate[territoryType]
}

func (f *fakeEngine) SuperbossRegen(maxHealth int64) int64 {
	return f.bossRate
}

type healthFixture struct {
	cache       *fakeHealthCache
	players     *fakePlayers
	spells      *fakeSpellSource
	territories *fakeTerritoryStore
	bosses      *fakeBossStore
	engine      *fakeEngine
	pub         *fakePublisher
	worker      *HealthWorker
}

func newHealthFixture() *healthFixture {
	f := &healthFixture{
		cache:       &fakeHealthCache{vitals: map[int64][2]int64{}},
		players:     newFakePlayers(),
		spells:      &fakeSpellSource{},
		territories: &fakeTerritoryStore{},
		bosses:      &fakeBossStore{},
		engine:      &fakeEngine{territoryRate: map[string]int64{}},
		pub:         &fakePublisher{},
	}
	cfg := config.GameConfig{
		HealthTick:        time.Second,
		PresenceThreshold: 5 * time.Minute,
		ContestHold:       5 * time.Minute,
	}
	f.worker = NewHealthWorker(cfg, f.cache, f.players, f.spells,
		f.territories, f.bosses, f.engine, f.pub, zap.NewNop())
	return f
}

func TestHealthPlayerRegenClamps(t *testing.T) {
	f := newHealthFixture()
	f.engine.playerHP, f.engine.playerMP = 5, 5
	f.cache.online = []cache.Player{
		{UserID: 1, Health: 99, MaxHealth: 100, Mana: 10, MaxMana: 50},
	}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Equal(t, [2]int64{100, 15}, f.cache.vitals[1])
	assert.Equal(t, int64(100), f.players.hp[1])
	assert.Equal(t, int64(15), f.players.mp[1])

	events := f.pub.globalByName(event.PlayerHealth)
	require.Len(t, events, 1)
	h := events[0].data.(event.Health)
	assert.Equal(t, int64(100), h.Health)
	assert.Equal(t, int64(15), h.Mana)
}

func TestHealthSpellEffectsFoldIn(t *testing.T) {
	f := newHealthFixture()
	f.cache.online = []cache.Player{
		{UserID: 2, Health: 50, MaxHealth: 100, Mana: 50, MaxMana: 50},
	}
	f.spells.rows = []persist.SpellRow{
		{UserID: 2, SpellKey: "regen_draught", Remaining: 10, HealPerTick: 10, ManaPerTick: 5},
		{UserID: 2, SpellKey: "burning_brand", Remaining: 4, DamagePerTick: 3},
	}

	require.NoError(t, f.worker.Tick(context.Background()))

	// 50 + 10 - 3 health; mana already full stays clamped.
	assert.Equal(t, [2]int64{57, 50}, f.cache.vitals[2])
}

func TestHealthUntouchedPlayersStayQuiet(t *testing.T) {
	f := newHealthFixture()
	f.cache.online = []cache.Player{
		{UserID: 3, Health: 100, MaxHealth: 100, Mana: 50, MaxMana: 50},
	}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Empty(t, f.pub.globalByName(event.PlayerHealth))
	assert.Zero(t, f.players.batches)
}

func TestHealthContestedTerritoryGating(t *testing.T) {
	f := newHealthFixture()
	f.engine.territoryRate["fort"] = 500
	recent := time.Now().Add(-time.Minute)
	f.territories.rows = []persist.TerritoryRow{{
		ID: 5, Name: "Keep", Type: "fort", OwnerRealm: "A",
		Health: 50000, MaxHealth: 100000,
		Contested: true, ContestedSince: &recent,
	}}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, f.worker.Tick(ctx))
	}
	row := f.territories.find(5)
	assert.Equal(t, int64(50000), row.Health, "contested territory regenerated")
	assert.True(t, row.Contested)
	assert.Empty(t, f.pub.globalByName(event.TerritoriesUpdate))

	// Push the contest past the hold window; regen resumes.
	expired := time.Now().Add(-10 * time.Minute)
	row.ContestedSince = &expired

	require.NoError(t, f.worker.Tick(ctx))
	row = f.territories.find(5)
	assert.False(t, row.Contested)
	assert.Equal(t, int64(50500), row.Health)
	require.NotEmpty(t, f.pub.globalByName(event.TerritoriesUpdate))
	require.NotEmpty(t, f.cache.territories)

	require.NoError(t, f.worker.Tick(ctx))
	assert.Equal(t, int64(51000), f.territories.find(5).Health)
}

func TestHealthFullRestoreDropsContestClock(t *testing.T) {
	f := newHealthFixture()
	f.engine.territoryRate["fort"] = 500
	old := time.Now().Add(-time.Hour)
	f.territories.rows = []persist.TerritoryRow{{
		ID: 6, Name: "Outpost", Type: "fort", OwnerRealm: "B",
		Health: 99800, MaxHealth: 100000, ContestedSince: &old,
	}}

	require.NoError(t, f.worker.Tick(context.Background()))

	row := f.territories.find(6)
	assert.Equal(t, int64(100000), row.Health)
	assert.Nil(t, row.ContestedSince)
}

func TestHealthSuperbossRegenOnlyWounded(t *testing.T) {
	f := newHealthFixture()
	f.engine.bossRate = 100
	f.bosses.rows = []persist.SuperbossRow{
		{ID: 1, Name: "Ancient Wyrm", Health: 0, MaxHealth: 1000},
		{ID: 2, Name: "Frost Giant", Health: 500, MaxHealth: 1000},
		{ID: 3, Name: "Sand Colossus", Health: 1000, MaxHealth: 1000},
	}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Equal(t, int64(0), f.bosses.rows[0].Health, "dead boss stays down")
	assert.Equal(t, int64(600), f.bosses.rows[1].Health)
	assert.Equal(t, int64(1000), f.bosses.rows[2].Health)
	require.Len(t, f.pub.globalByName(event.SuperbossesHealth), 1)
	require.Len(t, f.cache.bosses, 3)
}

func TestSpellEffectsAggregatePerUser(t *testing.T) {
	effects := spellEffects([]persist.SpellRow{
		{UserID: 1, HealPerTick: 5},
		{UserID: 1, HealPerTick: 3, DamagePerTick: 2},
		{UserID: 2, ManaPerTick: 7},
	})
	assert.Equal(t, tickEffect{heal: 8, damage: 2}, effects[1])
	assert.Equal(t, tickEffect{mana: 7}, effects[2])
}
