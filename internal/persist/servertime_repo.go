package persist

import (
	"context"
	"time"
)

// TimeRow is the singleton ingame clock row. started_at anchors the
// clock; the hour and minute columns are the last computed reading, kept
// so the clock survives restarts without jumping.
type TimeRow struct {
	StartedAt    time.Time
	TickSeconds  int
	IngameHour   int
	IngameMinute int
}

type TimeRepo struct {
	db *DB
}

func NewTimeRepo(db *DB) *TimeRepo {
	return &TimeRepo{db: db}
}

func (r *TimeRepo) Get(ctx context.Context) (*TimeRow, error) {
	var t TimeRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT started_at, tick_seconds, ingame_hour, ingame_minute
		 FROM server_time WHERE id = 1`,
	).Scan(&t.StartedAt, &t.TickSeconds, &t.IngameHour, &t.IngameMinute)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TimeRepo) UpdateClock(ctx context.Context, hour, minute int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE server_time SET ingame_hour = $1, ingame_minute = $2, updated_at = now()
		 WHERE id = 1`, hour, minute)
	return err
}

// SetTickSeconds retunes the clock speed, used by ops tooling.
func (r *TimeRepo) SetTickSeconds(ctx context.Context, seconds int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE server_time SET tick_seconds = $1, updated_at = now() WHERE id = 1`, seconds)
	return err
}
