// Package worker holds the periodic game loops: walker advancement,
// regeneration, spell countdowns, the ingame clock, war-feed polling,
// collectable spawns, and the last-active flusher. Each worker owns its
// primary entity; cross-worker effects travel through the cache and the
// event bus.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Worker is one periodic loop. Tick does a single pass and returns; the
// runner owns scheduling, overlap protection, and panic containment.
type Worker interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context) error
}

// tickBudget bounds a single pass. Ticks run on a context detached from
// the run context so shutdown does not sever in-flight writes.
const tickBudget = 30 * time.Second

// Runner drives each worker on its own ticker. A tick that arrives
// while the previous pass is still running is skipped, never queued.
type Runner struct {
	log     *zap.Logger
	workers []Worker
}

func NewRunner(log *zap.Logger, workers ...Worker) *Runner {
	return &Runner{log: log.Named("worker"), workers: workers}
}

// Run blocks until ctx is cancelled and every in-flight pass has
// finished.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range r.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			r.drive(ctx, &wg, w)
		}(w)
	}
	r.log.Info("workers started", zap.Int("count", len(r.workers)))
	wg.Wait()
	return nil
}

func (r *Runner) drive(ctx context.Context, wg *sync.WaitGroup, w Worker) {
	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	var busy atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				r.log.Warn("tick still running, skipping",
					zap.String("worker", w.Name()))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				r.pass(ctx, w)
			}()
		}
	}
}

// pass runs one tick with panic containment. The tick context carries
// the run context's values but not its cancellation, bounded by
// tickBudget instead.
func (r *Runner) pass(ctx context.Context, w Worker) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("worker panic",
				zap.String("worker", w.Name()),
				zap.Any("panic", rec),
				zap.Stack("stack"))
		}
	}()

	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tickBudget)
	defer cancel()

	start := time.Now()
	if err := w.Tick(tickCtx); err != nil {
		r.log.Error("tick failed",
			zap.String("worker", w.Name()),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
	}
}
