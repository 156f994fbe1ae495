package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/geo"
)

// WalkerRow is the durable copy of an in-flight walk. The hot copy lives
// in the cache; these rows exist so walks survive a restart.
type WalkerRow struct {
	ID           string
	UserID       int64
	Positions    []geo.Point
	CurrentIndex int
}

type WalkerRepo struct {
	db *DB
}

func NewWalkerRepo(db *DB) *WalkerRepo {
	return &WalkerRepo{db: db}
}

func (r *WalkerRepo) Insert(ctx context.Context, w *WalkerRow) error {
	positions, err := json.Marshal(w.Positions)
	if err != nil {
		return fmt.Errorf("marshal walker positions: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO walkers (id, user_id, positions, current_index)
		 VALUES ($1, $2, $3, $4)`,
		w.ID, w.UserID, positions, w.CurrentIndex,
	)
	return err
}

func (r *WalkerRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM walkers WHERE id = $1`, id)
	return err
}

func (r *WalkerRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM walkers WHERE user_id = $1`, userID)
	return err
}

func (r *WalkerRepo) UpdateIndex(ctx context.Context, id string, index int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE walkers SET current_index = $2, updated_at = now() WHERE id = $1`,
		id, index,
	)
	return err
}

func scanWalker(row pgx.Row) (*WalkerRow, error) {
	var (
		w   WalkerRow
		raw []byte
	)
	if err := row.Scan(&w.ID, &w.UserID, &raw, &w.CurrentIndex); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &w.Positions); err != nil {
		return nil, fmt.Errorf("unmarshal walker positions: %w", err)
	}
	return &w, nil
}

func (r *WalkerRepo) GetByUser(ctx context.Context, userID int64) (*WalkerRow, error) {
	w, err := scanWalker(r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, positions, current_index FROM walkers WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return w, err
}

// All returns every stored walk, used to rewarm the cache at boot.
func (r *WalkerRepo) All(ctx context.Context) ([]WalkerRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, positions, current_index FROM walkers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WalkerRow
	for rows.Next() {
		w, err := scanWalker(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}
