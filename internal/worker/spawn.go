package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
)

type spawnStore interface {
	ReleaseStale(ctx context.Context, cutoff time.Time) ([]persist.CollectableRow, error)
	Respawn(ctx context.Context, cutoff time.Time) ([]persist.CollectableRow, error)
}

type spawnCache interface {
	ReleaseClaim(ctx context.Context, spawnID, userID int64)
}

// SpawnWorker reverts collections that never finished and brings
// collected spawns back after their respawn delay.
type SpawnWorker struct {
	interval time.Duration
	timeout  time.Duration
	respawn  time.Duration
	store    spawnStore
	cache    spawnCache
	pub      event.Publisher
	log      *zap.Logger
}

func NewSpawnWorker(cfg config.GameConfig, store spawnStore, c spawnCache,
	pub event.Publisher, log *zap.Logger) *SpawnWorker {
	return &SpawnWorker{
		interval: cfg.SpawnTick,
		timeout:  cfg.CollectTimeout,
		respawn:  cfg.CollectRespawn,
		store:    store,
		cache:    c,
		pub:      pub,
		log:      log.Named("spawn"),
	}
}

func (w *SpawnWorker) Name() string            { return "spawn" }
func (w *SpawnWorker) Interval() time.Duration { return w.interval }

func (w *SpawnWorker) Tick(ctx context.Context) error {
	now := time.Now()

	stale, err := w.store.ReleaseStale(ctx, now.Add(-w.timeout))
	if err != nil {
		return fmt.Errorf("release stale collections: %w", err)
	}
	for i := range stale {
		row := &stale[i]
		var uid int64
		if row.CollectingUserID != nil {
			uid = *row.CollectingUserID
		}
		if uid != 0 {
			w.cache.ReleaseClaim(ctx, row.ID, uid)
		}
		w.pub.Global(event.CollectFailed, event.CollectFail{
			SpawnID: row.ID,
			UserID:  uid,
			Reason:  "timeout",
		})
	}

	spawned, err := w.store.Respawn(ctx, now.Add(-w.respawn))
	if err != nil {
		return fmt.Errorf("respawn collectables: %w", err)
	}
	for i := range spawned {
		row := &spawned[i]
		w.pub.Global(event.CollectableSpawned, event.Spawned{
			SpawnID: row.ID,
			ItemID:  row.ItemID,
			X:       row.X,
			Y:       row.Y,
		})
	}

	if len(stale) > 0 || len(spawned) > 0 {
		w.log.Debug("spawn pass",
			zap.Int("reverted", len(stale)),
			zap.Int("respawned", len(spawned)))
	}
	return nil
}
