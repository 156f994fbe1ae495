package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LevelEntry is one row of the level-XP table: the cumulative XP required to
// reach Level.
type LevelEntry struct {
	Level int   `yaml:"level"`
	XP    int64 `yaml:"xp"`
}

// LevelTable maps levels to cumulative XP thresholds. Preloaded at startup,
// never changes.
type LevelTable struct {
	entries []LevelEntry // sorted ascending by level
	byLevel map[int]int64
}

type levelListFile struct {
	Levels []LevelEntry `yaml:"levels"`
}

// LoadLevelTable reads the level-XP YAML.
func LoadLevelTable(path string) (*LevelTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read levels: %w", err)
	}
	var f levelListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}
	if len(f.Levels) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}

	t := &LevelTable{
		entries: f.Levels,
		byLevel: make(map[int]int64, len(f.Levels)),
	}
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Level < t.entries[j].Level })
	for _, e := range t.entries {
		t.byLevel[e.Level] = e.XP
	}
	if t.entries[0].Level != 1 || t.entries[0].XP != 0 {
		return nil, fmt.Errorf("level table must start at level 1 with xp 0")
	}
	return t, nil
}

// XPForLevel returns the cumulative XP needed to reach level, and whether the
// level exists in the table.
func (t *LevelTable) XPForLevel(level int) (int64, bool) {
	xp, ok := t.byLevel[level]
	return xp, ok
}

// LevelForXP returns the highest level whose threshold is ≤ xp.
func (t *LevelTable) LevelForXP(xp int64) int {
	level := 1
	for _, e := range t.entries {
		if e.XP > xp {
			break
		}
		level = e.Level
	}
	return level
}

// MaxLevel returns the table's highest level.
func (t *LevelTable) MaxLevel() int {
	return t.entries[len(t.entries)-1].Level
}

// Count returns the number of rows.
func (t *LevelTable) Count() int {
	return len(t.entries)
}

// Thresholds returns the table rows in ascending level order.
func (t *LevelTable) Thresholds() []LevelEntry {
	return t.entries
}
