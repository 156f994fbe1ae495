package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
)

type timeStore interface {
	Get(ctx context.Context) (*persist.TimeRow, error)
	UpdateClock(ctx context.Context, hour, minute int) error
}

type timeCache interface {
	SetClock(ctx context.Context, clk *cache.Clock)
}

// clockPersistEvery forces a durable write even when the reading has not
// moved, so a stalled clock is visible in the table.
const clockPersistEvery = 5 * time.Minute

// TimeWorker derives the ingame clock from the anchored start time. One
// ingame hour passes every tickSeconds real seconds.
type TimeWorker struct {
	interval time.Duration
	store    timeStore
	cache    timeCache
	pub      event.Publisher
	log      *zap.Logger

	// Only the runner's serialized ticks touch these.
	lastHour    int
	lastMinute  int
	lastPersist time.Time
	seeded      bool
}

func NewTimeWorker(cfg config.GameConfig, store timeStore, c timeCache,
	pub event.Publisher, log *zap.Logger) *TimeWorker {
	return &TimeWorker{
		interval: cfg.TimeTick,
		store:    store,
		cache:    c,
		pub:      pub,
		log:      log.Named("worldtime"),
	}
}

func (w *TimeWorker) Name() string            { return "worldtime" }
func (w *TimeWorker) Interval() time.Duration { return w.interval }

// clockReading converts elapsed real seconds into the ingame hour and
// minute for a given clock speed.
func clockReading(elapsed int64, tickSeconds int) (hour, minute int) {
	if tickSeconds <= 0 {
		tickSeconds = 150
	}
	if elapsed < 0 {
		elapsed = 0
	}
	ts := int64(tickSeconds)
	hour = int(elapsed/ts) % 24
	minute = int(elapsed % ts * 60 / ts)
	return hour, minute
}

func (w *TimeWorker) Tick(ctx context.Context) error {
	row, err := w.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load server time: %w", err)
	}
	now := time.Now()
	hour, minute := clockReading(int64(now.Sub(row.StartedAt).Seconds()), row.TickSeconds)

	moved := !w.seeded || hour != w.lastHour || minute != w.lastMinute
	if moved || now.Sub(w.lastPersist) >= clockPersistEvery {
		if err := w.store.UpdateClock(ctx, hour, minute); err != nil {
			w.log.Warn("persist clock", zap.Error(err))
		} else {
			w.lastPersist = now
		}
	}
	w.lastHour, w.lastMinute, w.seeded = hour, minute, true

	w.cache.SetClock(ctx, &cache.Clock{
		Hour:        hour,
		Minute:      minute,
		TickSeconds: row.TickSeconds,
		StartedAt:   row.StartedAt.Unix(),
	})
	w.pub.Global(event.TimeUpdate, event.Clock{Hour: hour, Minute: minute})
	return nil
}
