package persist

import (
	"context"
	"time"
)

type ShoutRow struct {
	ID        int64
	UserID    int64
	Username  string
	Message   string
	CreatedAt time.Time
}

type ShoutboxRepo struct {
	db *DB
}

func NewShoutboxRepo(db *DB) *ShoutboxRepo {
	return &ShoutboxRepo{db: db}
}

func (r *ShoutboxRepo) Insert(ctx context.Context, userID int64, username, message string) (*ShoutRow, error) {
	row := &ShoutRow{UserID: userID, Username: username, Message: message}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO shoutbox_messages (user_id, username, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		userID, username, message,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Recent returns up to limit messages, newest first.
func (r *ShoutboxRepo) Recent(ctx context.Context, limit int) ([]ShoutRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, username, message, created_at
		 FROM shoutbox_messages ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ShoutRow
	for rows.Next() {
		var s ShoutRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.Message, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
