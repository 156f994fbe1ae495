package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/world"
)

// FeatureRepo stores editor-drawn map polygons. It speaks world.Feature
// directly; the JSONB points column holds the vertex list.
type FeatureRepo struct {
	db *DB
}

func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

func scanFeature(row pgx.Row) (*world.Feature, error) {
	var (
		f   world.Feature
		raw []byte
	)
	if err := row.Scan(&f.ID, &f.Kind, &f.Name, &f.Realm, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &f.Points); err != nil {
		return nil, fmt.Errorf("unmarshal feature points: %w", err)
	}
	return &f, nil
}

func collectFeatures(rows pgx.Rows) ([]world.Feature, error) {
	defer rows.Close()
	var result []world.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

func (r *FeatureRepo) All(ctx context.Context) ([]world.Feature, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, kind, name, realm, points FROM map_features ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectFeatures(rows)
}

func (r *FeatureRepo) ByKind(ctx context.Context, kind string) ([]world.Feature, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, kind, name, realm, points FROM map_features WHERE kind = $1 ORDER BY id`, kind)
	if err != nil {
		return nil, err
	}
	return collectFeatures(rows)
}

// Save inserts a new feature (ID zero) or replaces an existing one,
// filling in the assigned ID.
func (r *FeatureRepo) Save(ctx context.Context, f *world.Feature) error {
	points, err := json.Marshal(f.Points)
	if err != nil {
		return fmt.Errorf("marshal feature points: %w", err)
	}
	if f.ID == 0 {
		return r.db.Pool.QueryRow(ctx,
			`INSERT INTO map_features (kind, name, realm, points)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			f.Kind, f.Name, f.Realm, points,
		).Scan(&f.ID)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE map_features
		 SET kind = $2, name = $3, realm = $4, points = $5, updated_at = now()
		 WHERE id = $1`,
		f.ID, f.Kind, f.Name, f.Realm, points,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *FeatureRepo) Delete(ctx context.Context, id int64) (*world.Feature, error) {
	f, err := scanFeature(r.db.Pool.QueryRow(ctx,
		`DELETE FROM map_features WHERE id = $1
		 RETURNING id, kind, name, realm, points`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return f, err
}
