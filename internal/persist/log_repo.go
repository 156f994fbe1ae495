package persist

import (
	"context"
	"time"
)

// Player log types, matching the player_logs check constraint.
const (
	LogInfo    = "info"
	LogSuccess = "success"
	LogError   = "error"
	LogWarning = "warning"
	LogCombat  = "combat"
	LogCapture = "capture"
)

type LogRow struct {
	ID        int64
	UserID    int64
	Message   string
	LogType   string
	CreatedAt time.Time
}

// LogRepo is the per-player event journal shown in the client sidebar.
type LogRepo struct {
	db *DB
}

func NewLogRepo(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Insert(ctx context.Context, userID int64, message, logType string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO player_logs (user_id, message, log_type) VALUES ($1, $2, $3)`,
		userID, message, logType,
	)
	return err
}

func (r *LogRepo) RecentByUser(ctx context.Context, userID int64, limit int) ([]LogRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, message, log_type, created_at
		 FROM player_logs WHERE user_id = $1
		 ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LogRow
	for rows.Next() {
		var l LogRow
		if err := rows.Scan(&l.ID, &l.UserID, &l.Message, &l.LogType, &l.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
