package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/ws"
)

// handleAuth binds a handshake session to the user in a login token. The
// player row must already exist; realm selection happens over HTTP before
// the socket opens.
func handleAuth(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			Token string `json:"token"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.Token == "" {
			return nil, fmt.Errorf("%w: token required", errs.ErrBadRequest)
		}
		claims, err := deps.Auth.ParseToken(p.Token)
		if err != nil {
			return nil, err
		}

		row, err := deps.Repos.Players.Get(ctx, claims.UserID)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: select a realm first", errs.ErrForbidden)
		}
		if err != nil {
			return nil, fmt.Errorf("load player: %w", err)
		}

		gm, err := deps.Cache.IsGM(ctx, row.UserID)
		if err != nil {
			gm = row.GMLevel > 0
		}
		c.Bind(row.UserID, row.Username, row.Realm, gm)

		snap := cache.PlayerFromRow(row)
		deps.Cache.PutPlayer(ctx, snap)
		deps.Cache.TouchOnline(ctx, row.UserID)
		deps.Cache.BufferLastActive(ctx, row.UserID, time.Now())
		deps.Hub.Join(c)

		deps.Log.Info("session bound",
			zap.Int64("user", row.UserID),
			zap.String("username", row.Username),
			zap.String("realm", row.Realm),
		)
		return snap, nil
	}
}
