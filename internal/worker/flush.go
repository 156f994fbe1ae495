package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
)

type lastActiveFlusher interface {
	FlushLastActive(ctx context.Context) (int, error)
}

// FlushWorker drains the buffered last-active timestamps into the
// players table. The same flush runs once more, synchronously, during
// shutdown.
type FlushWorker struct {
	interval time.Duration
	cache    lastActiveFlusher
	log      *zap.Logger
}

func NewFlushWorker(cfg config.GameConfig, c lastActiveFlusher, log *zap.Logger) *FlushWorker {
	return &FlushWorker{
		interval: cfg.FlushInterval,
		cache:    c,
		log:      log.Named("flush"),
	}
}

func (w *FlushWorker) Name() string            { return "flush" }
func (w *FlushWorker) Interval() time.Duration { return w.interval }

func (w *FlushWorker) Tick(ctx context.Context) error {
	n, err := w.cache.FlushLastActive(ctx)
	if err != nil {
		return fmt.Errorf("flush last active: %w", err)
	}
	if n > 0 {
		w.log.Debug("flushed last active", zap.Int("rows", n))
	}
	return nil
}
