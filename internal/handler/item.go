package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/ws"
)

func inventoryPayload(ctx context.Context, deps *Deps, userID int64) (*event.InventoryState, error) {
	rows, err := deps.Repos.Inventory.Inventory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	eq, err := deps.Repos.Inventory.Equipment(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}
	state := &event.InventoryState{
		Inventory: make([]event.InventoryEntry, 0, len(rows)),
		Equipment: make([]event.EquipmentEntry, 0, len(eq)),
	}
	for _, r := range rows {
		state.Inventory = append(state.Inventory, event.InventoryEntry{ID: r.ID, ItemID: r.ItemID, Quantity: r.Quantity})
	}
	for _, r := range eq {
		state.Equipment = append(state.Equipment, event.EquipmentEntry{Slot: r.Slot, InventoryID: r.InventoryID, ItemID: r.ItemID})
	}
	return state, nil
}

// pushInventory sends the user's refreshed bag and equipment to all their
// tabs. Best effort; the next inventory:list self-heals.
func pushInventory(ctx context.Context, deps *Deps, userID int64) {
	state, err := inventoryPayload(ctx, deps, userID)
	if err != nil {
		deps.Log.Warn("inventory refresh failed", zap.Int64("user", userID), zap.Error(err))
		return
	}
	deps.Publisher.User(userID, event.InventoryRefresh, state)
}

// ownedEntry loads an inventory entry and verifies it belongs to the
// caller. Other players' entry ids are indistinguishable from missing.
func ownedEntry(ctx context.Context, deps *Deps, userID, entryID int64) (*persist.InventoryRow, error) {
	entry, err := deps.Repos.Inventory.Entry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return entry, nil
}

func handleInventoryList(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		return inventoryPayload(ctx, deps, c.UserID())
	}
}

func handleItemCatalog(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		return map[string]any{"items": deps.Items.All()}, nil
	}
}

// handleEquip moves a bag entry into its equipment slot. The template
// declares the slot; the request must match it exactly. Any occupant of
// the slot, and any other slot holding this entry, are cleared in the
// same transaction.
func handleEquip(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			InventoryID int64  `json:"inventoryId"`
			Slot        string `json:"slot"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		uid := c.UserID()
		unlock := deps.locks.lock(uid)
		defer unlock()

		entry, err := ownedEntry(ctx, deps, uid, p.InventoryID)
		if err != nil {
			return nil, err
		}
		info, err := deps.Cache.ItemByID(ctx, entry.ItemID)
		if err != nil {
			return nil, fmt.Errorf("resolve item %d: %w", entry.ItemID, err)
		}
		if !info.Equippable() {
			return nil, fmt.Errorf("%w: %s is not equippable", errs.ErrBadRequest, info.TemplateKey)
		}
		if info.Slot != p.Slot {
			return nil, fmt.Errorf("%w: %s goes in slot %s", errs.ErrBadRequest, info.TemplateKey, info.Slot)
		}
		if err := deps.Repos.Inventory.Equip(ctx, uid, p.Slot, entry.ID); err != nil {
			return nil, fmt.Errorf("equip: %w", err)
		}
		deps.Cache.InvalidateWalkSpeed(ctx, uid)
		pushInventory(ctx, deps, uid)
		return nil, nil
	}
}

func handleUnequip(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			Slot string `json:"slot"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		uid := c.UserID()
		unlock := deps.locks.lock(uid)
		defer unlock()

		removed, err := deps.Repos.Inventory.Unequip(ctx, uid, p.Slot)
		if err != nil {
			return nil, fmt.Errorf("unequip: %w", err)
		}
		if !removed {
			return nil, fmt.Errorf("%w: slot %s is empty", errs.ErrNotFound, p.Slot)
		}
		deps.Cache.InvalidateWalkSpeed(ctx, uid)
		pushInventory(ctx, deps, uid)
		return nil, nil
	}
}

// handleUse consumes one unit of a consumable and starts its spell. A
// running spell with the same key is replaced, never stacked; a live
// cooldown rejects the use before anything is consumed.
func handleUse(deps *Deps) Func {
	return func(ctx context.Context, c *ws.Client, raw []byte) (any, error) {
		var p struct {
			InventoryID int64 `json:"inventoryId"`
		}
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		uid := c.UserID()
		unlock := deps.locks.lock(uid)
		defer unlock()

		entry, err := ownedEntry(ctx, deps, uid, p.InventoryID)
		if err != nil {
			return nil, err
		}
		info, err := deps.Cache.ItemByID(ctx, entry.ItemID)
		if err != nil {
			return nil, fmt.Errorf("resolve item %d: %w", entry.ItemID, err)
		}
		if !info.Consumable() || info.Effect == nil {
			return nil, fmt.Errorf("%w: %s cannot be used", errs.ErrBadRequest, info.TemplateKey)
		}
		eff := info.Effect

		existing, err := deps.Repos.Spells.Get(ctx, uid, eff.SpellKey)
		if err != nil {
			return nil, fmt.Errorf("check cooldown: %w", err)
		}
		if existing != nil && existing.CooldownRemaining > 0 {
			return nil, fmt.Errorf("%w: %s ready in %ds", errs.ErrOnCooldown, eff.SpellKey, existing.CooldownRemaining)
		}

		left, err := deps.Repos.Inventory.ConsumeOne(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("consume: %w", err)
		}
		spell := &persist.SpellRow{
			UserID:            uid,
			SpellKey:          eff.SpellKey,
			Duration:          eff.Duration,
			Remaining:         eff.Duration,
			HealPerTick:       eff.HealPerTick,
			ManaPerTick:       eff.ManaPerTick,
			DamagePerTick:     eff.DamagePerTick,
			WalkSpeed:         eff.WalkSpeed,
			Cooldown:          eff.Cooldown,
			CooldownRemaining: eff.Cooldown,
		}
		if err := deps.Repos.Spells.Upsert(ctx, spell); err != nil {
			return nil, fmt.Errorf("start spell: %w", err)
		}
		deps.Cache.InvalidateWalkSpeed(ctx, uid)
		pushInventory(ctx, deps, uid)
		appendLog(ctx, deps, uid, persist.LogInfo, fmt.Sprintf("Used %s", info.Name))

		return map[string]any{
			"spellKey": eff.SpellKey,
			"duration": eff.Duration,
			"quantity": left,
		}, nil
	}
}
