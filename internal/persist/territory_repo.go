package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
)

type TerritoryRow struct {
	ID             int64
	Name           string
	Type           string
	OwnerRealm     string
	Health         int64
	MaxHealth      int64
	X              int
	Y              int
	Contested      bool
	ContestedSince *time.Time
}

type CaptureRow struct {
	ID            int64
	TerritoryID   int64
	PreviousRealm string
	NewRealm      string
	CapturedAt    time.Time
}

// Territory types.
const (
	TerritoryFort   = "fort"
	TerritoryCastle = "castle"
	TerritoryWall   = "wall"
)

type TerritoryRepo struct {
	db *DB
}

func NewTerritoryRepo(db *DB) *TerritoryRepo {
	return &TerritoryRepo{db: db}
}

const territoryColumns = `id, name, type, owner_realm, health, max_health,
        x, y, contested, contested_since`

func scanTerritory(row pgx.Row) (*TerritoryRow, error) {
	var t TerritoryRow
	err := row.Scan(
		&t.ID, &t.Name, &t.Type, &t.OwnerRealm, &t.Health, &t.MaxHealth,
		&t.X, &t.Y, &t.Contested, &t.ContestedSince,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TerritoryRepo) All(ctx context.Context) ([]TerritoryRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+territoryColumns+` FROM territories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TerritoryRow
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *TerritoryRepo) Get(ctx context.Context, id int64) (*TerritoryRow, error) {
	t, err := scanTerritory(r.db.Pool.QueryRow(ctx,
		`SELECT `+territoryColumns+` FROM territories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return t, err
}

func (r *TerritoryRepo) Insert(ctx context.Context, t *TerritoryRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO territories (id, name, type, owner_realm, health, max_health, x, y)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, t.Type, t.OwnerRealm, t.Health, t.MaxHealth, t.X, t.Y,
	)
	return err
}

func (r *TerritoryRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM territories`).Scan(&n)
	return n, err
}

// Capture hands a territory to a new realm: health drops to zero and the
// contest clock starts. Returns the updated row.
func (r *TerritoryRepo) Capture(ctx context.Context, id int64, newRealm string, at time.Time) (*TerritoryRow, error) {
	t, err := scanTerritory(r.db.Pool.QueryRow(ctx,
		`UPDATE territories
		 SET owner_realm = $2, health = 0, contested = TRUE, contested_since = $3
		 WHERE id = $1
		 RETURNING `+territoryColumns, id, newRealm, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return t, err
}

func (r *TerritoryRepo) RecordCapture(ctx context.Context, territoryID int64, previousRealm, newRealm string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO territory_captures (territory_id, previous_realm, new_realm, captured_at)
		 VALUES ($1, $2, $3, $4)`,
		territoryID, previousRealm, newRealm, at,
	)
	return err
}

func (r *TerritoryRepo) Captures(ctx context.Context, territoryID int64, limit int) ([]CaptureRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, territory_id, previous_realm, new_realm, captured_at
		 FROM territory_captures
		 WHERE territory_id = $1
		 ORDER BY captured_at DESC LIMIT $2`, territoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CaptureRow
	for rows.Next() {
		var c CaptureRow
		if err := rows.Scan(&c.ID, &c.TerritoryID, &c.PreviousRealm, &c.NewRealm, &c.CapturedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ClearExpiredContests lifts the contested flag from territories whose
// last capture is older than the cutoff, so regeneration can resume.
func (r *TerritoryRepo) ClearExpiredContests(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE territories SET contested = FALSE
		 WHERE contested AND contested_since IS NOT NULL AND contested_since <= $1
		 RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Regen heals every uncontested, damaged territory of one type by amount,
// clamped at max_health. Rows restored to full drop their contest clock.
// Returns the territories that changed.
func (r *TerritoryRepo) Regen(ctx context.Context, territoryType string, amount int64) ([]TerritoryRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE territories
		 SET health = LEAST(health + $2, max_health),
		     contested_since = CASE
		         WHEN health + $2 >= max_health THEN NULL
		         ELSE contested_since
		     END
		 WHERE type = $1 AND NOT contested AND health < max_health
		 RETURNING `+territoryColumns, territoryType, amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TerritoryRow
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}
