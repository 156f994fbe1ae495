package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SpellRow is one applied item effect. A row stays around after the
// effect runs out for as long as its cooldown keeps ticking, so the table
// is also the cooldown book.
type SpellRow struct {
	ID                int64
	UserID            int64
	SpellKey          string
	Duration          int
	Remaining         int
	HealPerTick       int
	ManaPerTick       int
	DamagePerTick     int
	WalkSpeed         float64
	Cooldown          int
	CooldownRemaining int
}

type SpellRepo struct {
	db *DB
}

func NewSpellRepo(db *DB) *SpellRepo {
	return &SpellRepo{db: db}
}

const spellColumns = `id, user_id, spell_key, duration, remaining,
        heal_per_tick, mana_per_tick, damage_per_tick, walk_speed,
        cooldown, cooldown_remaining`

func scanSpell(row pgx.Row) (*SpellRow, error) {
	var s SpellRow
	err := row.Scan(
		&s.ID, &s.UserID, &s.SpellKey, &s.Duration, &s.Remaining,
		&s.HealPerTick, &s.ManaPerTick, &s.DamagePerTick, &s.WalkSpeed,
		&s.Cooldown, &s.CooldownRemaining,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSpells(rows pgx.Rows) ([]SpellRow, error) {
	defer rows.Close()
	var result []SpellRow
	for rows.Next() {
		s, err := scanSpell(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Get returns the row for (user, spell) or nil when none exists.
func (r *SpellRepo) Get(ctx context.Context, userID int64, spellKey string) (*SpellRow, error) {
	s, err := scanSpell(r.db.Pool.QueryRow(ctx,
		`SELECT `+spellColumns+` FROM active_spells
		 WHERE user_id = $1 AND spell_key = $2`, userID, spellKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SpellRepo) ByUser(ctx context.Context, userID int64) ([]SpellRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+spellColumns+` FROM active_spells WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collectSpells(rows)
}

// Upsert applies a fresh cast: an existing row for the same spell is
// replaced wholesale, restarting duration and cooldown.
func (r *SpellRepo) Upsert(ctx context.Context, s *SpellRow) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO active_spells (user_id, spell_key, duration, remaining,
		         heal_per_tick, mana_per_tick, damage_per_tick, walk_speed,
		         cooldown, cooldown_remaining)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, spell_key) DO UPDATE SET
		     duration = EXCLUDED.duration,
		     remaining = EXCLUDED.remaining,
		     heal_per_tick = EXCLUDED.heal_per_tick,
		     mana_per_tick = EXCLUDED.mana_per_tick,
		     damage_per_tick = EXCLUDED.damage_per_tick,
		     walk_speed = EXCLUDED.walk_speed,
		     cooldown = EXCLUDED.cooldown,
		     cooldown_remaining = EXCLUDED.cooldown_remaining,
		     created_at = now()
		 RETURNING id`,
		s.UserID, s.SpellKey, s.Duration, s.Remaining,
		s.HealPerTick, s.ManaPerTick, s.DamagePerTick, s.WalkSpeed,
		s.Cooldown, s.CooldownRemaining,
	).Scan(&s.ID)
}

// ActiveAll returns every spell still applying its per-tick effect.
func (r *SpellRepo) ActiveAll(ctx context.Context) ([]SpellRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+spellColumns+` FROM active_spells WHERE remaining > 0 ORDER BY user_id, id`)
	if err != nil {
		return nil, err
	}
	return collectSpells(rows)
}

// ActiveByUser returns the user's spells still in effect, used for the
// walk speed aggregate.
func (r *SpellRepo) ActiveByUser(ctx context.Context, userID int64) ([]SpellRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+spellColumns+` FROM active_spells
		 WHERE user_id = $1 AND remaining > 0 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collectSpells(rows)
}

// TickDown advances every live counter by one second, flooring at zero,
// and returns the rows it touched.
func (r *SpellRepo) TickDown(ctx context.Context) ([]SpellRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE active_spells
		 SET remaining = GREATEST(remaining - 1, 0),
		     cooldown_remaining = GREATEST(cooldown_remaining - 1, 0)
		 WHERE remaining > 0 OR cooldown_remaining > 0
		 RETURNING `+spellColumns)
	if err != nil {
		return nil, err
	}
	return collectSpells(rows)
}

// PurgeDead removes rows whose effect and cooldown have both run out.
func (r *SpellRepo) PurgeDead(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM active_spells WHERE remaining <= 0 AND cooldown_remaining <= 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
