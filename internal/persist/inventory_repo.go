package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fortrealm/server/internal/errs"
)

type InventoryRow struct {
	ID       int64
	UserID   int64
	ItemID   int64
	Quantity int
}

type EquipmentRow struct {
	UserID      int64
	Slot        string
	InventoryID int64
	ItemID      int64
}

// InventoryRepo persists bag entries and the equipment slot table.
type InventoryRepo struct {
	db *DB
}

func NewInventoryRepo(db *DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

func (r *InventoryRepo) Inventory(ctx context.Context, userID int64) ([]InventoryRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, item_id, quantity
		 FROM inventory WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InventoryRow
	for rows.Next() {
		var e InventoryRow
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemID, &e.Quantity); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *InventoryRepo) Entry(ctx context.Context, entryID int64) (*InventoryRow, error) {
	var e InventoryRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, item_id, quantity FROM inventory WHERE id = $1`, entryID,
	).Scan(&e.ID, &e.UserID, &e.ItemID, &e.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddItem grants quantity of an item. Stackable grants merge into an
// existing entry; non-stackable ones always open a new row so each copy
// can be equipped independently.
func (r *InventoryRepo) AddItem(ctx context.Context, userID, itemID int64, quantity int, stack bool) (*InventoryRow, error) {
	e := InventoryRow{UserID: userID, ItemID: itemID, Quantity: quantity}
	if stack {
		err := r.db.Pool.QueryRow(ctx,
			`UPDATE inventory SET quantity = quantity + $3
			 WHERE user_id = $1 AND item_id = $2
			 RETURNING id, quantity`,
			userID, itemID, quantity,
		).Scan(&e.ID, &e.Quantity)
		if err == nil {
			return &e, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO inventory (user_id, item_id, quantity)
		 VALUES ($1, $2, $3) RETURNING id`,
		userID, itemID, quantity,
	).Scan(&e.ID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ConsumeOne decrements an entry by one, deleting the row when the last
// unit is used. Returns the remaining quantity.
func (r *InventoryRepo) ConsumeOne(ctx context.Context, entryID int64) (int, error) {
	var remaining int
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE inventory SET quantity = quantity - 1
		 WHERE id = $1 AND quantity > 1
		 RETURNING quantity`, entryID,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM inventory WHERE id = $1 AND quantity = 1`, entryID)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, errs.ErrNotFound
	}
	return 0, nil
}

func (r *InventoryRepo) RemoveEntry(ctx context.Context, entryID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM inventory WHERE id = $1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *InventoryRepo) Equipment(ctx context.Context, userID int64) ([]EquipmentRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT e.user_id, e.slot, e.inventory_id, i.item_id
		 FROM equipment e
		 JOIN inventory i ON i.id = e.inventory_id
		 WHERE e.user_id = $1 ORDER BY e.slot`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EquipmentRow
	for rows.Next() {
		var e EquipmentRow
		if err := rows.Scan(&e.UserID, &e.Slot, &e.InventoryID, &e.ItemID); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Equip binds an inventory entry to a slot in one transaction: the slot's
// current occupant is displaced and the entry is pulled out of any other
// slot it sat in.
func (r *InventoryRepo) Equip(ctx context.Context, userID int64, slot string, inventoryID int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM equipment WHERE user_id = $1 AND slot = $2`, userID, slot); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM equipment WHERE inventory_id = $1`, inventoryID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO equipment (user_id, slot, inventory_id) VALUES ($1, $2, $3)`,
		userID, slot, inventoryID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Unequip frees a slot. Returns false when the slot was already empty.
func (r *InventoryRepo) Unequip(ctx context.Context, userID int64, slot string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM equipment WHERE user_id = $1 AND slot = $2`, userID, slot)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
