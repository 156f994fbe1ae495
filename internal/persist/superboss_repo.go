package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
)

type SuperbossRow struct {
	ID        int64
	Name      string
	Health    int64
	MaxHealth int64
	X         int
	Y         int
}

type SuperbossRepo struct {
	db *DB
}

func NewSuperbossRepo(db *DB) *SuperbossRepo {
	return &SuperbossRepo{db: db}
}

func (r *SuperbossRepo) All(ctx context.Context) ([]SuperbossRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, health, max_health, x, y FROM superbosses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SuperbossRow
	for rows.Next() {
		var b SuperbossRow
		if err := rows.Scan(&b.ID, &b.Name, &b.Health, &b.MaxHealth, &b.X, &b.Y); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *SuperbossRepo) Get(ctx context.Context, id int64) (*SuperbossRow, error) {
	var b SuperbossRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, health, max_health, x, y FROM superbosses WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.Health, &b.MaxHealth, &b.X, &b.Y)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *SuperbossRepo) Insert(ctx context.Context, b *SuperbossRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO superbosses (id, name, health, max_health, x, y)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, b.Name, b.Health, b.MaxHealth, b.X, b.Y,
	)
	return err
}

func (r *SuperbossRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM superbosses`).Scan(&n)
	return n, err
}

// Regen heals every damaged boss by amount, clamped at max_health, and
// returns the rows that changed.
func (r *SuperbossRepo) Regen(ctx context.Context, amount int64) ([]SuperbossRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE superbosses SET health = LEAST(health + $1, max_health)
		 WHERE health < max_health
		 RETURNING id, name, health, max_health, x, y`, amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SuperbossRow
	for rows.Next() {
		var b SuperbossRow
		if err := rows.Scan(&b.ID, &b.Name, &b.Health, &b.MaxHealth, &b.X, &b.Y); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
