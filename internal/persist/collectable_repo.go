package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
)

// Collectable states.
const (
	CollectableAvailable  = "available"
	CollectableCollecting = "collecting"
	CollectableCollected  = "collected"
)

type CollectableRow struct {
	ID               int64
	ItemID           int64
	X                int
	Y                int
	State            string
	CollectingUserID *int64
	CollectingSince  *time.Time
	CollectedAt      *time.Time
}

type CollectableRepo struct {
	db *DB
}

func NewCollectableRepo(db *DB) *CollectableRepo {
	return &CollectableRepo{db: db}
}

const collectableColumns = `id, item_id, x, y, state,
        collecting_user_id, collecting_since, collected_at`

func scanCollectable(row pgx.Row) (*CollectableRow, error) {
	var c CollectableRow
	err := row.Scan(
		&c.ID, &c.ItemID, &c.X, &c.Y, &c.State,
		&c.CollectingUserID, &c.CollectingSince, &c.CollectedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCollectables(rows pgx.Rows) ([]CollectableRow, error) {
	defer rows.Close()
	var result []CollectableRow
	for rows.Next() {
		c, err := scanCollectable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *CollectableRepo) All(ctx context.Context) ([]CollectableRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+collectableColumns+` FROM collectables ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectCollectables(rows)
}

func (r *CollectableRepo) Get(ctx context.Context, id int64) (*CollectableRow, error) {
	c, err := scanCollectable(r.db.Pool.QueryRow(ctx,
		`SELECT `+collectableColumns+` FROM collectables WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return c, err
}

func (r *CollectableRepo) Insert(ctx context.Context, c *CollectableRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO collectables (id, item_id, x, y)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.ItemID, c.X, c.Y,
	)
	return err
}

func (r *CollectableRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM collectables`).Scan(&n)
	return n, err
}

// MarkCollecting moves an available spawn into collecting for the given
// user. Returns false if someone else got there first.
func (r *CollectableRepo) MarkCollecting(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE collectables
		 SET state = $3, collecting_user_id = $2, collecting_since = $4
		 WHERE id = $1 AND state = $5`,
		id, userID, CollectableCollecting, at, CollectableAvailable,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCollected completes a collection. Only the user who claimed the
// spawn can finish it.
func (r *CollectableRepo) MarkCollected(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE collectables
		 SET state = $3, collected_at = $4, collecting_user_id = NULL, collecting_since = NULL
		 WHERE id = $1 AND state = $5 AND collecting_user_id = $2`,
		id, userID, CollectableCollected, at, CollectableCollecting,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Release puts a collecting spawn back to available, for interrupted or
// abandoned collections.
func (r *CollectableRepo) Release(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE collectables
		 SET state = $2, collecting_user_id = NULL, collecting_since = NULL
		 WHERE id = $1 AND state = $3`,
		id, CollectableAvailable, CollectableCollecting,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ByCollector returns the spawns a user is currently collecting.
func (r *CollectableRepo) ByCollector(ctx context.Context, userID int64) ([]CollectableRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+collectableColumns+` FROM collectables
		 WHERE state = $1 AND collecting_user_id = $2`, CollectableCollecting, userID)
	if err != nil {
		return nil, err
	}
	return collectCollectables(rows)
}

// ReleaseStale reverts collections that have been running since before
// the cutoff. RETURNING sees the new values, so the evicted collector is
// carried through a subselect; the returned rows report who lost the
// spawn even though the column is already cleared.
func (r *CollectableRepo) ReleaseStale(ctx context.Context, cutoff time.Time) ([]CollectableRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE collectables c
		 SET state = $1, collecting_user_id = NULL, collecting_since = NULL
		 FROM (SELECT id, collecting_user_id, collecting_since FROM collectables
		       WHERE state = $2 AND collecting_since IS NOT NULL AND collecting_since <= $3
		       FOR UPDATE) old
		 WHERE c.id = old.id
		 RETURNING c.id, c.item_id, c.x, c.y, c.state,
		           old.collecting_user_id, old.collecting_since, c.collected_at`,
		CollectableAvailable, CollectableCollecting, cutoff)
	if err != nil {
		return nil, err
	}
	return collectCollectables(rows)
}

// Respawn returns collected spawns whose respawn delay has elapsed to the
// available state and reports the affected rows.
func (r *CollectableRepo) Respawn(ctx context.Context, cutoff time.Time) ([]CollectableRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE collectables
		 SET state = $1, collected_at = NULL
		 WHERE state = $2 AND collected_at IS NOT NULL AND collected_at <= $3
		 RETURNING `+collectableColumns,
		CollectableAvailable, CollectableCollected, cutoff)
	if err != nil {
		return nil, err
	}
	return collectCollectables(rows)
}
