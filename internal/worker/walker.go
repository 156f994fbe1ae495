package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/persist"
)

// walkerCache is the hot-state surface the walk loop drives.
type walkerCache interface {
	Walkers(ctx context.Context) ([]cache.Walker, error)
	WalkSpeed(ctx context.Context, userID int64) (float64, error)
	AdvanceWalker(ctx context.Context, w *cache.Walker)
	CompleteWalker(ctx context.Context, w *cache.Walker) error
	ReleaseClaim(ctx context.Context, spawnID, userID int64)
	ItemByID(ctx context.Context, itemID int64) (*data.ItemInfo, error)
	Player(ctx context.Context, userID int64) (*cache.Player, error)
	InvalidatePlayer(ctx context.Context, userID int64)
}

type walkerCollectables interface {
	ByCollector(ctx context.Context, userID int64) ([]persist.CollectableRow, error)
	MarkCollected(ctx context.Context, id, userID int64, at time.Time) (bool, error)
	Release(ctx context.Context, id int64) (bool, error)
}

type walkerInventory interface {
	AddItem(ctx context.Context, userID, itemID int64, quantity int, stack bool) (*persist.InventoryRow, error)
	Inventory(ctx context.Context, userID int64) ([]persist.InventoryRow, error)
	Equipment(ctx context.Context, userID int64) ([]persist.EquipmentRow, error)
}

type walkerPlayers interface {
	AddXP(ctx context.Context, userID int64, amount int64) (int64, error)
	SetLevel(ctx context.Context, userID int64, level int) error
}

type walkerLogs interface {
	Insert(ctx context.Context, userID int64, message, logType string) error
}

// Gathering experience by item rarity.
var collectXP = map[string]int64{
	"common":    10,
	"uncommon":  25,
	"rare":      60,
	"epic":      150,
	"legendary": 400,
}

func xpForRarity(rarity string) int64 {
	if xp, ok := collectXP[rarity]; ok {
		return xp
	}
	return 10
}

// WalkerWorker advances every active walk by its stride each tick. A
// walk that reaches its last waypoint is completed, written through, and
// settled against any collectable claim the user holds.
type WalkerWorker struct {
	interval time.Duration
	radius   int
	cache    walkerCache
	spawns   walkerCollectables
	inv      walkerInventory
	players  walkerPlayers
	logs     walkerLogs
	levels   *data.LevelTable
	pub      event.Publisher
	log      *zap.Logger
}

func NewWalkerWorker(cfg config.GameConfig, c walkerCache,
	spawns walkerCollectables, inv walkerInventory, players walkerPlayers,
	logs walkerLogs, levels *data.LevelTable, pub event.Publisher, log *zap.Logger) *WalkerWorker {
	return &WalkerWorker{
		interval: cfg.WalkerTick,
		radius:   cfg.CollectRadius,
		cache:    c,
		spawns:   spawns,
		inv:      inv,
		players:  players,
		logs:     logs,
		levels:   levels,
		pub:      pub,
		log:      log.Named("walker"),
	}
}

func (w *WalkerWorker) Name() string            { return "walker" }
func (w *WalkerWorker) Interval() time.Duration { return w.interval }

func (w *WalkerWorker) Tick(ctx context.Context) error {
	walkers, err := w.cache.Walkers(ctx)
	if err != nil {
		return fmt.Errorf("list walkers: %w", err)
	}
	for i := range walkers {
		w.advance(ctx, &walkers[i])
	}
	return nil
}

// advance moves one walker. The stride is the walk-speed multiplier
// truncated to ints, never below one waypoint per tick.
func (w *WalkerWorker) advance(ctx context.Context, wk *cache.Walker) {
	stride := 1
	if speed, err := w.cache.WalkSpeed(ctx, wk.UserID); err == nil && int(speed) > 1 {
		stride = int(speed)
	}

	prev := wk.CurrentIndex
	last := len(wk.Positions) - 1
	next := prev + stride
	if next < last {
		wk.CurrentIndex = next
		w.cache.AdvanceWalker(ctx, wk)
		pos := wk.Position()
		w.pub.Global(event.WalkerStep, event.Step{
			WalkerID: wk.ID,
			UserID:   wk.UserID,
			X:        pos.X,
			Y:        pos.Y,
			Index:    next,
		})
		w.collectAlong(ctx, wk.UserID, wk.Positions[prev+1:next+1])
		return
	}

	wk.CurrentIndex = last
	if err := w.cache.CompleteWalker(ctx, wk); err != nil {
		w.log.Error("complete walker", zap.String("walker", wk.ID), zap.Error(err))
		return
	}
	pos := wk.Position()
	w.pub.Global(event.WalkerCompleted, event.Completed{
		WalkerID: wk.ID,
		UserID:   wk.UserID,
		X:        pos.X,
		Y:        pos.Y,
	})
	w.settleCollects(ctx, wk.UserID, wk.Positions[min(prev+1, last):])
}

// collectAlong finishes any claimed spawn the walk came within radius of
// this tick. Claims still out of reach are left alone mid-walk; the
// player may be on the way.
func (w *WalkerWorker) collectAlong(ctx context.Context, userID int64, visited []geo.Point) {
	rows, err := w.spawns.ByCollector(ctx, userID)
	if err != nil {
		w.log.Warn("list claimed spawns", zap.Int64("user", userID), zap.Error(err))
		return
	}
	for i := range rows {
		if w.withinReach(&rows[i], visited) {
			w.finishCollect(ctx, userID, &rows[i])
		}
	}
}

// settleCollects resolves the user's claims at the end of a walk: spawns
// the final stretch passed within radius collect, anything farther
// reverts so another player can try.
func (w *WalkerWorker) settleCollects(ctx context.Context, userID int64, visited []geo.Point) {
	rows, err := w.spawns.ByCollector(ctx, userID)
	if err != nil {
		w.log.Warn("list claimed spawns", zap.Int64("user", userID), zap.Error(err))
		return
	}
	for i := range rows {
		row := &rows[i]
		if w.withinReach(row, visited) {
			w.finishCollect(ctx, userID, row)
		} else {
			w.revertCollect(ctx, userID, row)
		}
	}
}

func (w *WalkerWorker) withinReach(row *persist.CollectableRow, visited []geo.Point) bool {
	target := geo.Point{X: row.X, Y: row.Y}
	for _, p := range visited {
		if geo.Chebyshev(p, target) <= w.radius {
			return true
		}
	}
	return false
}

func (w *WalkerWorker) finishCollect(ctx context.Context, userID int64, row *persist.CollectableRow) {
	defer w.cache.ReleaseClaim(ctx, row.ID, userID)

	ok, err := w.spawns.MarkCollected(ctx, row.ID, userID, time.Now())
	if err != nil || !ok {
		// Lost to a stale-claim revert; the spawn worker already told everyone.
		w.log.Warn("mark collected", zap.Int64("spawn", row.ID), zap.Error(err))
		return
	}
	info, err := w.cache.ItemByID(ctx, row.ItemID)
	if err != nil {
		w.log.Error("resolve collected item", zap.Int64("item", row.ItemID), zap.Error(err))
		return
	}
	if _, err := w.inv.AddItem(ctx, userID, row.ItemID, 1, !info.Equippable()); err != nil {
		w.log.Error("grant collected item", zap.Int64("user", userID), zap.Error(err))
		return
	}
	w.pub.Global(event.CollectCollected, event.Collected{
		SpawnID: row.ID,
		UserID:  userID,
		ItemID:  row.ItemID,
	})
	w.pushBag(ctx, userID)
	w.logLine(ctx, userID, persist.LogSuccess, fmt.Sprintf("Collected 1x %s", info.Name))
	w.awardXP(ctx, userID, xpForRarity(info.Rarity))
}

func (w *WalkerWorker) revertCollect(ctx context.Context, userID int64, row *persist.CollectableRow) {
	if _, err := w.spawns.Release(ctx, row.ID); err != nil {
		w.log.Warn("release strayed spawn", zap.Int64("spawn", row.ID), zap.Error(err))
		return
	}
	w.cache.ReleaseClaim(ctx, row.ID, userID)
	w.pub.Global(event.CollectFailed, event.CollectFail{
		SpawnID: row.ID,
		UserID:  userID,
		Reason:  "strayed",
	})
}

// pushBag sends the refreshed bag and equipment to all the user's tabs.
func (w *WalkerWorker) pushBag(ctx context.Context, userID int64) {
	rows, err := w.inv.Inventory(ctx, userID)
	if err != nil {
		w.log.Warn("refresh inventory", zap.Int64("user", userID), zap.Error(err))
		return
	}
	eq, err := w.inv.Equipment(ctx, userID)
	if err != nil {
		w.log.Warn("refresh equipment", zap.Int64("user", userID), zap.Error(err))
		return
	}
	state := &event.InventoryState{
		Inventory: make([]event.InventoryEntry, 0, len(rows)),
		Equipment: make([]event.EquipmentEntry, 0, len(eq)),
	}
	for _, r := range rows {
		state.Inventory = append(state.Inventory, event.InventoryEntry{ID: r.ID, ItemID: r.ItemID, Quantity: r.Quantity})
	}
	for _, r := range eq {
		state.Equipment = append(state.Equipment, event.EquipmentEntry{Slot: r.Slot, InventoryID: r.InventoryID, ItemID: r.ItemID})
	}
	w.pub.User(userID, event.InventoryRefresh, state)
}

func (w *WalkerWorker) logLine(ctx context.Context, userID int64, logType, msg string) {
	if err := w.logs.Insert(ctx, userID, msg, logType); err != nil {
		w.log.Warn("append player log", zap.Int64("user", userID), zap.Error(err))
	}
	w.pub.User(userID, event.LogMessage, event.Log{
		Message:   msg,
		LogType:   logType,
		CreatedAt: time.Now().Unix(),
	})
}

// awardXP adds gathering experience and promotes the player when the new
// total crosses a level threshold.
func (w *WalkerWorker) awardXP(ctx context.Context, userID, amount int64) {
	total, err := w.players.AddXP(ctx, userID, amount)
	if err != nil {
		w.log.Warn("award xp", zap.Int64("user", userID), zap.Error(err))
		return
	}
	// The snapshot still holds the pre-award level; drop it once we are done.
	defer w.cache.InvalidatePlayer(ctx, userID)
	if w.levels == nil {
		return
	}
	lvl := w.levels.LevelForXP(total)
	p, err := w.cache.Player(ctx, userID)
	if err != nil || lvl <= p.Level {
		return
	}
	if err := w.players.SetLevel(ctx, userID, lvl); err != nil {
		w.log.Warn("set level", zap.Int64("user", userID), zap.Error(err))
		return
	}
	w.logLine(ctx, userID, persist.LogSuccess, fmt.Sprintf("Reached level %d", lvl))
}
