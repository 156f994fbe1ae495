package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Equipment slot names. A template's Slot must be one of these (or empty for
// non-equippable items).
const (
	SlotHead      = "head"
	SlotBody      = "body"
	SlotHands     = "hands"
	SlotShoulders = "shoulders"
	SlotLegs      = "legs"
	SlotWeaponR   = "weaponR"
	SlotWeaponL   = "weaponL"
	SlotRingR     = "ringR"
	SlotRingL     = "ringL"
	SlotAmulet    = "amulet"
)

// EquipSlots lists every equipment slot in display order.
var EquipSlots = []string{
	SlotHead, SlotBody, SlotHands, SlotShoulders, SlotLegs,
	SlotWeaponR, SlotWeaponL, SlotRingR, SlotRingL, SlotAmulet,
}

// ValidSlot reports whether s names an equipment slot.
func ValidSlot(s string) bool {
	for _, slot := range EquipSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// ItemStats holds the numeric stat block of a template. Zero values mean the
// stat is absent.
type ItemStats struct {
	Damage    int     `yaml:"damage" json:"damage,omitempty"`
	Armor     int     `yaml:"armor" json:"armor,omitempty"`
	WalkSpeed float64 `yaml:"walk_speed" json:"walkSpeed,omitempty"`
}

// ItemEffect describes the active spell a consumable starts on use.
type ItemEffect struct {
	SpellKey      string  `yaml:"spell_key" json:"spellKey"`
	Duration      int     `yaml:"duration" json:"duration"` // seconds
	Cooldown      int     `yaml:"cooldown" json:"cooldown"` // seconds
	HealPerTick   int     `yaml:"heal_per_tick" json:"healPerTick,omitempty"`
	ManaPerTick   int     `yaml:"mana_per_tick" json:"manaPerTick,omitempty"`
	DamagePerTick int     `yaml:"damage_per_tick" json:"damagePerTick,omitempty"`
	WalkSpeed     float64 `yaml:"walk_speed" json:"walkSpeed,omitempty"`
}

// ItemInfo is one item template. Immutable once loaded.
type ItemInfo struct {
	ItemID      int64       `yaml:"item_id" json:"itemId"`
	TemplateKey string      `yaml:"template_key" json:"templateKey"`
	Name        string      `yaml:"name" json:"name"`
	Type        string      `yaml:"type" json:"type"` // weapon, armor, consumable, material
	Slot        string      `yaml:"slot" json:"slot,omitempty"`
	Rarity      string      `yaml:"rarity" json:"rarity"`
	Stats       ItemStats   `yaml:"stats" json:"stats"`
	Effect      *ItemEffect `yaml:"effect" json:"effect,omitempty"`
}

// Equippable reports whether the template occupies an equipment slot.
func (i *ItemInfo) Equippable() bool { return i.Slot != "" }

// Consumable reports whether using the template consumes one unit.
func (i *ItemInfo) Consumable() bool { return i.Type == "consumable" }

// ItemTable is the in-memory tier of the item catalog, indexed both ways.
type ItemTable struct {
	byID  map[int64]*ItemInfo
	byKey map[string]*ItemInfo
}

type itemListFile struct {
	Items []ItemInfo `yaml:"items"`
}

// LoadItemTable reads the item catalog YAML.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}

	t := &ItemTable{
		byID:  make(map[int64]*ItemInfo, len(f.Items)),
		byKey: make(map[string]*ItemInfo, len(f.Items)),
	}
	for i := range f.Items {
		it := &f.Items[i]
		if it.TemplateKey == "" {
			return nil, fmt.Errorf("item %d has no template_key", it.ItemID)
		}
		if it.Slot != "" && !ValidSlot(it.Slot) {
			return nil, fmt.Errorf("item %q: unknown slot %q", it.TemplateKey, it.Slot)
		}
		if _, dup := t.byKey[it.TemplateKey]; dup {
			return nil, fmt.Errorf("duplicate template_key %q", it.TemplateKey)
		}
		t.byID[it.ItemID] = it
		t.byKey[it.TemplateKey] = it
	}
	return t, nil
}

// Get returns a template by ID, or nil.
func (t *ItemTable) Get(itemID int64) *ItemInfo {
	return t.byID[itemID]
}

// GetByTemplate returns a template by its textual key, or nil.
func (t *ItemTable) GetByTemplate(key string) *ItemInfo {
	return t.byKey[key]
}

// All returns every template. The slice is rebuilt per call; entries are
// shared and must not be mutated.
func (t *ItemTable) All() []*ItemInfo {
	out := make([]*ItemInfo, 0, len(t.byID))
	for _, it := range t.byID {
		out = append(out, it)
	}
	return out
}

// Count returns total loaded templates.
func (t *ItemTable) Count() int {
	return len(t.byID)
}
