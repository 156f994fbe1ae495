package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
)

type PlayerRow struct {
	UserID     int64
	Username   string
	Realm      string
	X          int
	Y          int
	Health     int64
	MaxHealth  int64
	Mana       int64
	MaxMana    int64
	Level      int
	XP         int64
	GMLevel    int
	LastActive int64
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

const playerColumns = `user_id, username, realm, x, y,
        health, max_health, mana, max_mana,
        level, xp, gm_level, last_active`

func scanPlayer(row pgx.Row) (*PlayerRow, error) {
	var p PlayerRow
	err := row.Scan(
		&p.UserID, &p.Username, &p.Realm, &p.X, &p.Y,
		&p.Health, &p.MaxHealth, &p.Mana, &p.MaxMana,
		&p.Level, &p.XP, &p.GMLevel, &p.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns a player, or errs.ErrNotFound if the user never picked a realm.
func (r *PlayerRepo) Get(ctx context.Context, userID int64) (*PlayerRow, error) {
	p, err := scanPlayer(r.db.Pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// GetByUsername resolves a player by display name, used by GM commands
// that target players by name.
func (r *PlayerRepo) GetByUsername(ctx context.Context, username string) (*PlayerRow, error) {
	p, err := scanPlayer(r.db.Pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// Create inserts the player row on first realm selection.
func (r *PlayerRepo) Create(ctx context.Context, p *PlayerRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (user_id, username, realm, x, y,
		         health, max_health, mana, max_mana, level, xp, gm_level, last_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.UserID, p.Username, p.Realm, p.X, p.Y,
		p.Health, p.MaxHealth, p.Mana, p.MaxMana,
		p.Level, p.XP, p.GMLevel, p.LastActive,
	)
	return err
}

// GetByIDs loads a batch of players in one query. Missing IDs are simply
// absent from the result.
func (r *PlayerRepo) GetByIDs(ctx context.Context, userIDs []int64) ([]PlayerRow, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PlayerRow
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// UpdatePosition writes a player's position through. Used on walker
// completion and interruption; per-tick movement stays in cache.
func (r *PlayerRepo) UpdatePosition(ctx context.Context, userID int64, x, y int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET x = $2, y = $3 WHERE user_id = $1`, userID, x, y)
	return err
}

// UpdateVitals persists one player's health and mana.
func (r *PlayerRepo) UpdateVitals(ctx context.Context, userID, health, mana int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET health = $2, mana = $3 WHERE user_id = $1`,
		userID, health, mana)
	return err
}

// BatchUpdateVitals persists health/mana for many players in a single
// statement via unnested arrays.
func (r *PlayerRepo) BatchUpdateVitals(ctx context.Context, userIDs []int64, health, mana []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players AS p
		 SET health = v.health, mana = v.mana
		 FROM (SELECT unnest($1::bigint[]) AS user_id,
		              unnest($2::bigint[]) AS health,
		              unnest($3::bigint[]) AS mana) v
		 WHERE p.user_id = v.user_id`,
		userIDs, health, mana)
	return err
}

// BatchUpdateLastActive drains the last-active buffer: one statement, a
// CASE/WHEN arm per player.
func (r *PlayerRepo) BatchUpdateLastActive(ctx context.Context, userIDs []int64, stamps []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	sql, args := buildLastActiveUpdate(userIDs, stamps)
	_, err := r.db.Pool.Exec(ctx, sql, args...)
	return err
}

// GMLevel returns a player's GM level (0 = regular player).
func (r *PlayerRepo) GMLevel(ctx context.Context, userID int64) (int, error) {
	var level int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT gm_level FROM players WHERE user_id = $1`, userID).Scan(&level)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return level, err
}

// AddXP grants experience and returns the new total.
func (r *PlayerRepo) AddXP(ctx context.Context, userID int64, amount int64) (int64, error) {
	var xp int64
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE players SET xp = xp + $2 WHERE user_id = $1 RETURNING xp`,
		userID, amount).Scan(&xp)
	return xp, err
}

// SetLevel stores a recomputed level.
func (r *PlayerRepo) SetLevel(ctx context.Context, userID int64, level int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET level = $2 WHERE user_id = $1`, userID, level)
	return err
}

// buildLastActiveUpdate renders the batched CASE/WHEN update. Placeholders
// run pairwise ($1,$2), ($3,$4)… so each player binds its own stamp; the WHERE
// clause reuses the odd placeholders.
func buildLastActiveUpdate(userIDs []int64, stamps []int64) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(userIDs)*2)

	b.WriteString(`UPDATE players SET last_active = CASE user_id`)
	for i, id := range userIDs {
		fmt.Fprintf(&b, " WHEN $%d THEN $%d", len(args)+1, len(args)+2)
		args = append(args, id, stamps[i])
	}
	b.WriteString(` ELSE last_active END WHERE user_id IN (`)
	for i := range userIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i*2+1)
	}
	b.WriteString(")")
	return b.String(), args
}
