package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SettingsRepo stores per-user client settings as an opaque JSON blob.
// The server never interprets the contents.
type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the stored settings JSON, or "{}" for users who never
// saved any.
func (r *SettingsRepo) Get(ctx context.Context, userID int64) ([]byte, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT settings FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *SettingsRepo) Put(ctx context.Context, userID int64, raw []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, settings)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		userID, raw,
	)
	return err
}
