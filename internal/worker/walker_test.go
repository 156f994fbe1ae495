package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/persist"
)

type fakeWalkerCache struct {
	walkers     []cache.Walker
	speeds      map[int64]float64
	items       map[int64]*data.ItemInfo
	players     map[int64]*cache.Player
	advanced    []cache.Walker
	completed   []cache.Walker
	released    [][2]int64
	invalidated []int64
	completeErr error
}

func newFakeWalkerCache() *fakeWalkerCache {
	return &fakeWalkerCache{
		speeds:  map[int64]float64{},
		items:   map[int64]*data.ItemInfo{},
		players: map[int64]*cache.Player{},
	}
}

func (f *fakeWalkerCache) Walkers(ctx context.Context) ([]cache.Walker, error) {
	out := make([]cache.Walker, len(f.walkers))
	copy(out, f.walkers)
	return out, nil
}

func (f *fakeWalkerCache) WalkSpeed(ctx context.Context, userID int64) (float64, error) {
	if s, ok := f.speeds[userID]; ok {
		return s, nil
	}
	return 1, nil
}

func (f *fakeWalkerCache) AdvanceWalker(ctx context.Context, w *cache.Walker) {
	for i := range f.walkers {
		if f.walkers[i].ID == w.ID {
			f.walkers[i] = *w
		}
	}
	f.advanced = append(f.advanced, *w)
}

func (f *fakeWalkerCache) CompleteWalker(ctx context.Context, w *cache.Walker) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	for i := range f.walkers {
		if f.walkers[i].ID == w.ID {
			f.walkers = append(f.walkers[:i], f.walkers[i+1:]...)
			break
		}
	}
	f.completed = append(f.completed, *w)
	return nil
}

func (f *fakeWalkerCache) ReleaseClaim(ctx context.Context, spawnID, userID int64) {
	f.released = append(f.released, [2]int64{spawnID, userID})
}

func (f *fakeWalkerCache) ItemByID(ctx context.Context, itemID int64) (*data.ItemInfo, error) {
	if it, ok := f.items[itemID]; ok {
		return it, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeWalkerCache) Player(ctx context.Context, userID int64) (*cache.Player, error) {
	if p, ok := f.players[userID]; ok {
		return p, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeWalkerCache) InvalidatePlayer(ctx context.Context, userID int64) {
	f.invalidated = append(f.invalidated, userID)
}

type fakeCollectables struct {
	byCollector map[int64][]persist.CollectableRow
	collected   []int64
	released    []int64
	markFail    bool
}

func (f *fakeCollectables) ByCollector(ctx context.Context, userID int64) ([]persist.CollectableRow, error) {
	return f.byCollector[userID], nil
}

func (f *fakeCollectables) MarkCollected(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	if f.markFail {
		return false, nil
	}
	f.collected = append(f.collected, id)
	f.drop(id)
	return true, nil
}

func (f *fakeCollectables) Release(ctx context.Context, id int64) (bool, error) {
	f.released = append(f.released, id)
	f.drop(id)
	return true, nil
}

// drop mimics the row leaving the collecting state: ByCollector stops
// returning it.
func (f *fakeCollectables) drop(id int64) {
	for uid, rows := range f.byCollector {
		for i := range rows {
			if rows[i].ID == id {
				f.byCollector[uid] = append(rows[:i], rows[i+1:]...)
				break
			}
		}
	}
}

type fakeInventory struct {
	added   []persist.InventoryRow
	stacked []bool
	rows    []persist.InventoryRow
	eq      []persist.EquipmentRow
}

func (f *fakeInventory) AddItem(ctx context.Context, userID, itemID int64, quantity int, stack bool) (*persist.InventoryRow, error) {
	row := persist.InventoryRow{ID: int64(len(f.added) + 1), UserID: userID, ItemID: itemID, Quantity: quantity}
	f.added = append(f.added, row)
	f.stacked = append(f.stacked, stack)
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeInventory) Inventory(ctx context.Context, userID int64) ([]persist.InventoryRow, error) {
	return f.rows, nil
}

func (f *fakeInventory) Equipment(ctx context.Context, userID int64) ([]persist.EquipmentRow, error) {
	return f.eq, nil
}

type fakeLogs struct {
	entries []persist.LogRow
}

func (f *fakeLogs) Insert(ctx context.Context, userID int64, message, logType string) error {
	f.entries = append(f.entries, persist.LogRow{UserID: userID, Message: message, LogType: logType})
	return nil
}

func testLevels(t *testing.T) *data.LevelTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "levels.yaml")
	raw := "levels:\n  - {level: 1, xp: 0}\n  - {level: 2, xp: 50}\n  - {level: 3, xp: 150}\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	table, err := data.LoadLevelTable(path)
	require.NoError(t, err)
	return table
}

type walkerFixture struct {
	cache   *fakeWalkerCache
	spawns  *fakeCollectables
	inv     *fakeInventory
	players *fakePlayers
	logs    *fakeLogs
	pub     *fakePublisher
	worker  *WalkerWorker
}

func newWalkerFixture(t *testing.T) *walkerFixture {
	t.Helper()
	f := &walkerFixture{
		cache:   newFakeWalkerCache(),
		spawns:  &fakeCollectables{byCollector: map[int64][]persist.CollectableRow{}},
		inv:     &fakeInventory{},
		players: newFakePlayers(),
		logs:    &fakeLogs{},
		pub:     &fakePublisher{},
	}
	cfg := config.GameConfig{WalkerTick: time.Second, CollectRadius: 64}
	f.worker = NewWalkerWorker(cfg, f.cache, f.spawns, f.inv, f.players,
		f.logs, testLevels(t), f.pub, zap.NewNop())
	return f
}

func straightPath() []geo.Point {
	return []geo.Point{
		{X: 100, Y: 100}, {X: 132, Y: 100}, {X: 164, Y: 100}, {X: 196, Y: 100}, {X: 200, Y: 100},
	}
}

func TestWalkerAdvancesAndCompletes(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.walkers = []cache.Walker{{ID: "walk-1", UserID: 7, Positions: straightPath()}}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.worker.Tick(ctx))
	}
	steps := f.pub.globalByName(event.WalkerStep)
	require.Len(t, steps, 3)
	last := steps[2].data.(event.Step)
	assert.Equal(t, 3, last.Index)
	assert.Equal(t, 196, last.X)
	assert.Empty(t, f.pub.globalByName(event.WalkerCompleted))

	require.NoError(t, f.worker.Tick(ctx))
	completes := f.pub.globalByName(event.WalkerCompleted)
	require.Len(t, completes, 1)
	done := completes[0].data.(event.Completed)
	assert.Equal(t, "walk-1", done.WalkerID)
	assert.Equal(t, 200, done.X)
	assert.Equal(t, 100, done.Y)
	assert.False(t, done.Interrupted)
	assert.Empty(t, f.cache.walkers, "walker stays after arrival")
	assert.Len(t, f.pub.globalByName(event.WalkerStep), 3, "no step for the final waypoint")
}

func TestWalkerStrideTruncatesMultiplier(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.speeds[7] = 2.9
	positions := []geo.Point{
		{X: 0, Y: 0}, {X: 32, Y: 0}, {X: 64, Y: 0}, {X: 96, Y: 0}, {X: 128, Y: 0}, {X: 160, Y: 0},
	}
	f.cache.walkers = []cache.Walker{{ID: "walk-fast", UserID: 7, Positions: positions}}

	ctx := context.Background()
	require.NoError(t, f.worker.Tick(ctx))
	require.NoError(t, f.worker.Tick(ctx))
	steps := f.pub.globalByName(event.WalkerStep)
	require.Len(t, steps, 2)
	assert.Equal(t, 2, steps[0].data.(event.Step).Index)
	assert.Equal(t, 4, steps[1].data.(event.Step).Index)

	require.NoError(t, f.worker.Tick(ctx))
	require.Len(t, f.pub.globalByName(event.WalkerCompleted), 1)
}

func TestWalkerSlowMultiplierStillMoves(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.speeds[7] = 0.4
	f.cache.walkers = []cache.Walker{{ID: "walk-slow", UserID: 7, Positions: straightPath()}}

	require.NoError(t, f.worker.Tick(context.Background()))
	steps := f.pub.globalByName(event.WalkerStep)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].data.(event.Step).Index)
}

func TestWalkerArrivalCollectsClaimedSpawn(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.walkers = []cache.Walker{{
		ID: "walk-2", UserID: 9,
		Positions: []geo.Point{{X: 960, Y: 960}, {X: 992, Y: 960}},
	}}
	uid := int64(9)
	f.spawns.byCollector[9] = []persist.CollectableRow{{
		ID: 4, ItemID: 300, X: 1000, Y: 980,
		State: persist.CollectableCollecting, CollectingUserID: &uid,
	}}
	f.cache.items[300] = &data.ItemInfo{
		ItemID: 300, TemplateKey: "iron_ore", Name: "Iron Ore",
		Type: "material", Rarity: "common",
	}
	f.cache.players[9] = &cache.Player{UserID: 9, Username: "drake", Level: 1}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Equal(t, []int64{4}, f.spawns.collected)
	require.Len(t, f.inv.added, 1)
	assert.Equal(t, int64(300), f.inv.added[0].ItemID)
	assert.True(t, f.stackedFirst(), "materials stack")

	got := f.pub.globalByName(event.CollectCollected)
	require.Len(t, got, 1)
	assert.Equal(t, int64(300), got[0].data.(event.Collected).ItemID)
	assert.Contains(t, f.cache.released, [2]int64{4, 9})

	require.Len(t, f.pub.userByName(event.InventoryRefresh), 1)
	require.NotEmpty(t, f.logs.entries)
	assert.Equal(t, "Collected 1x Iron Ore", f.logs.entries[0].Message)
	assert.Equal(t, persist.LogSuccess, f.logs.entries[0].LogType)
	assert.Equal(t, int64(10), f.players.xp[9])
}

func (f *walkerFixture) stackedFirst() bool {
	return len(f.inv.stacked) > 0 && f.inv.stacked[0]
}

func TestWalkerArrivalRevertsStrayedClaim(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.walkers = []cache.Walker{{
		ID: "walk-3", UserID: 9,
		Positions: []geo.Point{{X: 100, Y: 100}, {X: 132, Y: 100}},
	}}
	uid := int64(9)
	f.spawns.byCollector[9] = []persist.CollectableRow{{
		ID: 5, ItemID: 300, X: 5000, Y: 5000,
		State: persist.CollectableCollecting, CollectingUserID: &uid,
	}}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Empty(t, f.spawns.collected)
	assert.Equal(t, []int64{5}, f.spawns.released)
	assert.Contains(t, f.cache.released, [2]int64{5, 9})
	assert.Empty(t, f.inv.added)

	failed := f.pub.globalByName(event.CollectFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "strayed", failed[0].data.(event.CollectFail).Reason)
}

func TestWalkerCollectsSpawnPassedEnRoute(t *testing.T) {
	f := newWalkerFixture(t)
	f.cache.walkers = []cache.Walker{{ID: "walk-6", UserID: 9, Positions: straightPath()}}
	uid := int64(9)
	f.spawns.byCollector[9] = []persist.CollectableRow{
		{ID: 8, ItemID: 300, X: 140, Y: 110, State: persist.CollectableCollecting, CollectingUserID: &uid},
		{ID: 9, ItemID: 300, X: 5000, Y: 5000, State: persist.CollectableCollecting, CollectingUserID: &uid},
	}
	f.cache.items[300] = &data.ItemInfo{ItemID: 300, Name: "Iron Ore", Type: "material", Rarity: "common"}
	f.cache.players[9] = &cache.Player{UserID: 9, Level: 1}

	ctx := context.Background()
	require.NoError(t, f.worker.Tick(ctx))

	// The first step comes within reach of spawn 8: collected mid-walk,
	// no need to stop there.
	assert.Equal(t, []int64{8}, f.spawns.collected)
	require.Len(t, f.pub.globalByName(event.CollectCollected), 1)
	// The distant claim is untouched while the walk is still going.
	assert.Empty(t, f.spawns.released)
	assert.Empty(t, f.pub.globalByName(event.CollectFailed))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.worker.Tick(ctx))
	}

	// Arrival settles what is left: the strayed claim reverts.
	assert.Equal(t, []int64{8}, f.spawns.collected)
	assert.Equal(t, []int64{9}, f.spawns.released)
	failed := f.pub.globalByName(event.CollectFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "strayed", failed[0].data.(event.CollectFail).Reason)
}

func TestWalkerCollectLostRaceStaysQuiet(t *testing.T) {
	f := newWalkerFixture(t)
	f.spawns.markFail = true
	f.cache.walkers = []cache.Walker{{
		ID: "walk-4", UserID: 9,
		Positions: []geo.Point{{X: 992, Y: 960}},
	}}
	uid := int64(9)
	f.spawns.byCollector[9] = []persist.CollectableRow{{
		ID: 6, ItemID: 300, X: 1000, Y: 980,
		State: persist.CollectableCollecting, CollectingUserID: &uid,
	}}

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Empty(t, f.inv.added)
	assert.Empty(t, f.pub.globalByName(event.CollectCollected))
	// The claim still unwinds so the key does not linger.
	assert.Contains(t, f.cache.released, [2]int64{6, 9})
}

func TestWalkerCollectLevelsUp(t *testing.T) {
	f := newWalkerFixture(t)
	f.players.xp[9] = 45
	f.cache.walkers = []cache.Walker{{
		ID: "walk-5", UserID: 9,
		Positions: []geo.Point{{X: 992, Y: 960}},
	}}
	uid := int64(9)
	f.spawns.byCollector[9] = []persist.CollectableRow{{
		ID: 7, ItemID: 300, X: 1000, Y: 980,
		State: persist.CollectableCollecting, CollectingUserID: &uid,
	}}
	f.cache.items[300] = &data.ItemInfo{ItemID: 300, Name: "Iron Ore", Type: "material", Rarity: "common"}
	f.cache.players[9] = &cache.Player{UserID: 9, Level: 1}

	require.NoError(t, f.worker.Tick(context.Background()))

	// 45 + 10 crosses the 50 XP threshold for level 2.
	assert.Equal(t, int64(55), f.players.xp[9])
	assert.Equal(t, 2, f.players.levels[9])
	assert.Contains(t, f.cache.invalidated, int64(9))

	var messages []string
	for _, e := range f.logs.entries {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Reached level 2")
}

func TestXPForRarity(t *testing.T) {
	assert.Equal(t, int64(10), xpForRarity("common"))
	assert.Equal(t, int64(400), xpForRarity("legendary"))
	assert.Equal(t, int64(10), xpForRarity("unheard-of"))
}
