package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/geo"
	"github.com/fortrealm/server/internal/ws"
)

// handleMove starts a walk toward the requested point. Runs under the
// user lock so an existing walker is interrupted and the new one created
// without any intermediate state becoming visible.
func handleMove(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		uid := c.UserID()
		dest := geo.Point{X: p.X, Y: p.Y}

		// Cheap pre-check: a doomed request must not interrupt the
		// current walk.
		if !deps.World.Passable(dest, c.Realm()) {
			return nil, fmt.Errorf("%w: (%d,%d)", errs.ErrUnreachable, p.X, p.Y)
		}

		unlock := deps.locks.lock(uid)
		defer unlock()

		if w, err := deps.Cache.WalkerByUser(ctx, uid); err == nil {
			pos := w.Position()
			if err := deps.Cache.CompleteWalker(ctx, w); err != nil {
				return nil, fmt.Errorf("interrupt walker: %w", err)
			}
			deps.Publisher.Global(event.WalkerCompleted, event.Completed{
				WalkerID:    w.ID,
				UserID:      uid,
				X:           pos.X,
				Y:           pos.Y,
				Interrupted: true,
			})
		} else if !errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("look up walker: %w", err)
		}

		self, err := deps.Cache.Player(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("load player: %w", err)
		}
		start := geo.Point{X: self.X, Y: self.Y}

		path, err := deps.World.Find(ctx, start, dest, c.Realm())
		if err != nil {
			return nil, err
		}

		w := &cache.Walker{
			ID:        uuid.NewString(),
			UserID:    uid,
			Positions: path,
			UpdatedAt: time.Now().Unix(),
		}
		if err := deps.Cache.PutWalker(ctx, w); err != nil {
			return nil, fmt.Errorf("store walker: %w", err)
		}

		deps.Publisher.Global(event.MoveStarted, event.Moved{
			UserID:   uid,
			Username: c.Username(),
			WalkerID: w.ID,
			Path:     path,
		})
		return map[string]any{"walkerId": w.ID, "path": path}, nil
	}
}
