package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/warfeed"
)

type warTerritories interface {
	All(ctx context.Context) ([]persist.TerritoryRow, error)
	Capture(ctx context.Context, id int64, newRealm string, at time.Time) (*persist.TerritoryRow, error)
	RecordCapture(ctx context.Context, territoryID int64, previousRealm, newRealm string, at time.Time) error
}

type warCache interface {
	InvalidateTerritories(ctx context.Context)
}

type fortSource interface {
	Fetch(ctx context.Context) ([]warfeed.Fort, error)
}

// WarWorker polls the external war feed and applies ownership diffs. A
// feed outage skips the pass; only a streak of them raises the alarm.
type WarWorker struct {
	interval time.Duration
	alarmAt  int
	feed     fortSource
	store    warTerritories
	cache    warCache
	pub      event.Publisher
	log      *zap.Logger

	failures int
}

func NewWarWorker(cfg config.WarConfig, feed fortSource, store warTerritories,
	c warCache, pub event.Publisher, log *zap.Logger) *WarWorker {
	return &WarWorker{
		interval: cfg.PollInterval,
		alarmAt:  cfg.AlarmFailures,
		feed:     feed,
		store:    store,
		cache:    c,
		pub:      pub,
		log:      log.Named("territory"),
	}
}

func (w *WarWorker) Name() string            { return "territory" }
func (w *WarWorker) Interval() time.Duration { return w.interval }

func (w *WarWorker) Tick(ctx context.Context) error {
	forts, err := w.feed.Fetch(ctx)
	if err != nil {
		w.failures++
		if w.failures >= w.alarmAt {
			w.log.Error("war feed unreachable",
				zap.Int("consecutive", w.failures), zap.Error(err))
		} else {
			w.log.Warn("war feed fetch failed", zap.Error(err))
		}
		return nil
	}
	w.failures = 0
	if len(forts) == 0 {
		return nil
	}

	rows, err := w.store.All(ctx)
	if err != nil {
		return fmt.Errorf("list territories: %w", err)
	}
	byID := make(map[int64]*persist.TerritoryRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	now := time.Now()
	captured := 0
	for _, fort := range forts {
		cur, ok := byID[fort.TerritoryID]
		if !ok {
			continue
		}
		owner := data.NormalizeRealm(fort.Owner)
		if owner == "" || owner == cur.OwnerRealm {
			continue
		}
		w.capture(ctx, cur, owner, now)
		captured++
	}
	if captured > 0 {
		w.cache.InvalidateTerritories(ctx)
	}
	return nil
}

// capture flips ownership, leaves the fort razed and contested, and
// records the history row the capture log reads.
func (w *WarWorker) capture(ctx context.Context, cur *persist.TerritoryRow, newRealm string, now time.Time) {
	updated, err := w.store.Capture(ctx, cur.ID, newRealm, now)
	if err != nil {
		w.log.Error("apply capture", zap.Int64("territory", cur.ID), zap.Error(err))
		return
	}
	if err := w.store.RecordCapture(ctx, cur.ID, cur.OwnerRealm, newRealm, now); err != nil {
		w.log.Error("record capture", zap.Int64("territory", cur.ID), zap.Error(err))
	}
	w.log.Info("territory captured",
		zap.Int64("territory", cur.ID),
		zap.String("name", updated.Name),
		zap.String("from", cur.OwnerRealm),
		zap.String("to", newRealm))
	w.pub.Global(event.TerritoriesCapture, event.Capture{
		TerritoryID:   cur.ID,
		Name:          updated.Name,
		PreviousRealm: cur.OwnerRealm,
		NewRealm:      newRealm,
		CapturedAt:    now.Unix(),
	})
}
