package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/errs"
)

// ItemRepo persists the item catalog. The catalog is authoritative here and
// mirrored into the in-memory table and Redis at startup.
type ItemRepo struct {
	db *DB
}

func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// UpsertTemplates seeds or refreshes the catalog from the YAML table.
func (r *ItemRepo) UpsertTemplates(ctx context.Context, items []*data.ItemInfo) error {
	for _, it := range items {
		stats, err := json.Marshal(it.Stats)
		if err != nil {
			return fmt.Errorf("marshal stats for %s: %w", it.TemplateKey, err)
		}
		var effect []byte
		if it.Effect != nil {
			if effect, err = json.Marshal(it.Effect); err != nil {
				return fmt.Errorf("marshal effect for %s: %w", it.TemplateKey, err)
			}
		}
		_, err = r.db.Pool.Exec(ctx,
			`INSERT INTO items (id, template_key, name, type, slot, rarity, stats, effect)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
			     template_key = EXCLUDED.template_key,
			     name = EXCLUDED.name,
			     type = EXCLUDED.type,
			     slot = EXCLUDED.slot,
			     rarity = EXCLUDED.rarity,
			     stats = EXCLUDED.stats,
			     effect = EXCLUDED.effect`,
			it.ItemID, it.TemplateKey, it.Name, it.Type, it.Slot, it.Rarity, stats, effect,
		)
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", it.TemplateKey, err)
		}
	}
	return nil
}

func scanItem(row pgx.Row) (*data.ItemInfo, error) {
	var (
		it     data.ItemInfo
		stats  []byte
		effect []byte
	)
	if err := row.Scan(&it.ItemID, &it.TemplateKey, &it.Name, &it.Type,
		&it.Slot, &it.Rarity, &stats, &effect); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stats, &it.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	if len(effect) > 0 {
		it.Effect = &data.ItemEffect{}
		if err := json.Unmarshal(effect, it.Effect); err != nil {
			return nil, fmt.Errorf("decode effect: %w", err)
		}
	}
	return &it, nil
}

const itemColumns = `id, template_key, name, type, slot, rarity, stats, effect`

// GetByID loads one template.
func (r *ItemRepo) GetByID(ctx context.Context, itemID int64) (*data.ItemInfo, error) {
	it, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return it, err
}

// GetByTemplate loads one template by its textual key.
func (r *ItemRepo) GetByTemplate(ctx context.Context, key string) (*data.ItemInfo, error) {
	it, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE template_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return it, err
}

// All loads the whole catalog, for the startup preload.
func (r *ItemRepo) All(ctx context.Context) ([]*data.ItemInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*data.ItemInfo
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}
