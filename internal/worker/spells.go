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

type spellStore interface {
	ActiveAll(ctx context.Context) ([]persist.SpellRow, error)
	TickDown(ctx context.Context) ([]persist.SpellRow, error)
	PurgeDead(ctx context.Context) (int64, error)
}

type spellCache interface {
	InvalidateWalkSpeed(ctx context.Context, userID int64)
}

// SpellWorker counts every live spell and cooldown down by one second.
// Rows stay after the effect ends until the cooldown also runs out, so
// readiness checks keep working off the same row.
type SpellWorker struct {
	interval time.Duration
	spells   spellStore
	cache    spellCache
	pub      event.Publisher
	log      *zap.Logger
}

func NewSpellWorker(cfg config.GameConfig, spells spellStore, c spellCache,
	pub event.Publisher, log *zap.Logger) *SpellWorker {
	return &SpellWorker{
		interval: cfg.SpellTick,
		spells:   spells,
		cache:    c,
		pub:      pub,
		log:      log.Named("spells"),
	}
}

func (w *SpellWorker) Name() string            { return "spells" }
func (w *SpellWorker) Interval() time.Duration { return w.interval }

func (w *SpellWorker) Tick(ctx context.Context) error {
	// The pre-tick snapshot tells which effects end this second.
	active, err := w.spells.ActiveAll(ctx)
	if err != nil {
		return fmt.Errorf("list active spells: %w", err)
	}
	if _, err := w.spells.TickDown(ctx); err != nil {
		return fmt.Errorf("tick down spells: %w", err)
	}
	for _, s := range active {
		if s.Remaining != 1 {
			continue
		}
		w.cache.InvalidateWalkSpeed(ctx, s.UserID)
		w.pub.Global(event.SpellExpired, event.Expired{
			UserID:   s.UserID,
			SpellKey: s.SpellKey,
		})
	}
	if n, err := w.spells.PurgeDead(ctx); err != nil {
		w.log.Warn("purge dead spells", zap.Error(err))
	} else if n > 0 {
		w.log.Debug("purged spells", zap.Int64("count", n))
	}
	return nil
}
