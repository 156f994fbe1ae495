package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/ws"
)

type collectableView struct {
	SpawnID          int64  `json:"spawnId"`
	ItemID           int64  `json:"itemId"`
	X                int    `json:"x"`
	Y                int    `json:"y"`
	State            string `json:"state"`
	CollectingUserID int64  `json:"collectingUserId,omitempty"`
}

func collectableViews(rows []persist.CollectableRow) []collectableView {
	out := make([]collectableView, 0, len(rows))
	for _, r := range rows {
		if r.State == persist.CollectableCollected {
			continue
		}
		v := collectableView{SpawnID: r.ID, ItemID: r.ItemID, X: r.X, Y: r.Y, State: r.State}
		if r.CollectingUserID != nil {
			v.CollectingUserID = *r.CollectingUserID
		}
		out = append(out, v)
	}
	return out
}

// handleState assembles the full join snapshot. The self row must load;
// everything else degrades to empty sections rather than failing the
// join, matching how the cache layer degrades when Redis is gone.
func handleState(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		uid := c.UserID()
		self, err := deps.Cache.Player(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("load self: %w", err)
		}

		snapshot := map[string]any{"self": self}
		warn := func(section string, err error) {
			if err != nil {
				deps.Log.Warn("state section failed",
					zap.String("section", section), zap.Int64("user", uid), zap.Error(err))
			}
		}

		territories, err := deps.Cache.Territories(ctx)
		warn("territories", err)
		snapshot["territories"] = territories

		bosses, err := deps.Cache.Superbosses(ctx)
		warn("superbosses", err)
		snapshot["superbosses"] = bosses

		online, err := deps.Cache.OnlinePlayers(ctx, deps.Config.Game.PresenceThreshold)
		warn("online", err)
		snapshot["online"] = online

		walkers, err := deps.Cache.Walkers(ctx)
		warn("walkers", err)
		snapshot["walkers"] = walkers

		shouts, err := deps.Cache.RecentShouts(ctx, shoutHistory)
		warn("shouts", err)
		snapshot["shouts"] = shouts

		clock, err := deps.Cache.ClockNow(ctx)
		warn("time", err)
		snapshot["time"] = clock

		spawns, err := deps.Repos.Collectables.All(ctx)
		warn("collectables", err)
		snapshot["collectables"] = collectableViews(spawns)

		return snapshot, nil
	}
}
