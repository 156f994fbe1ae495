package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/ws"
)

// handleCollect claims a collectable for the caller. The Redis SETNX is
// the lock that serializes simultaneous claims; the row update behind it
// is a second CAS so a degraded cache still cannot double-grant. The
// item itself is handed over by the walker tick once the player reaches
// the spawn.
func handleCollect(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			SpawnID int64 `json:"spawnId"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		uid := c.UserID()

		spawn, err := deps.Repos.Collectables.Get(ctx, p.SpawnID)
		if err != nil {
			return nil, err
		}
		switch spawn.State {
		case persist.CollectableAvailable:
		case persist.CollectableCollecting:
			return nil, errs.ErrAlreadyBeingCollected
		default:
			return nil, fmt.Errorf("%w: spawn %d", errs.ErrNotFound, p.SpawnID)
		}

		timeout := deps.Config.Game.CollectTimeout
		won, err := deps.Cache.ClaimCollectable(ctx, p.SpawnID, uid, timeout)
		if err != nil {
			return nil, fmt.Errorf("claim spawn %d: %w", p.SpawnID, err)
		}
		if !won {
			return nil, errs.ErrAlreadyBeingCollected
		}

		now := time.Now()
		ok, err := deps.Repos.Collectables.MarkCollecting(ctx, p.SpawnID, uid, now)
		if err != nil {
			deps.Cache.ReleaseClaim(ctx, p.SpawnID, uid)
			return nil, fmt.Errorf("mark collecting: %w", err)
		}
		if !ok {
			deps.Cache.ReleaseClaim(ctx, p.SpawnID, uid)
			return nil, errs.ErrAlreadyBeingCollected
		}

		deps.Publisher.Global(event.CollectCollecting, event.Collecting{
			SpawnID: p.SpawnID,
			UserID:  uid,
		})
		return map[string]any{
			"spawnId":   p.SpawnID,
			"expiresIn": int(timeout.Seconds()),
		}, nil
	}
}
