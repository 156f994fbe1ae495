package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/ws"
)

// appendLog journals a player-visible line and pushes it to the owner's
// open tabs. Journal writes are best effort; gameplay never fails on one.
func appendLog(ctx context.Context, deps *Deps, userID int64, logType, message string) {
	if err := deps.Repos.Logs.Insert(ctx, userID, message, logType); err != nil {
		deps.Log.Warn("player log write failed", zap.Int64("user", userID), zap.Error(err))
	}
	deps.Publisher.User(userID, event.LogMessage, event.Log{
		Message:   message,
		LogType:   logType,
		CreatedAt: time.Now().Unix(),
	})
}

const recentLogLimit = 50

func handleRecentLogs(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		rows, err := deps.Repos.Logs.RecentByUser(ctx, c.UserID(), recentLogLimit)
		if err != nil {
			return nil, err
		}
		out := make([]event.Log, 0, len(rows))
		for _, r := range rows {
			out = append(out, event.Log{
				Message:   r.Message,
				LogType:   r.LogType,
				CreatedAt: r.CreatedAt.Unix(),
			})
		}
		return map[string]any{"logs": out}, nil
	}
}
