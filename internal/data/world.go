package data

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Realm names. A player picks exactly one, once.
var Realms = []string{"A", "B", "C"}

// ValidRealm reports whether r names a realm. Comparison is case-insensitive
// because the war feed reports owners in mixed case.
func ValidRealm(r string) bool {
	return NormalizeRealm(r) != ""
}

// NormalizeRealm maps a case-insensitive realm name to its canonical form,
// or "" if unknown.
func NormalizeRealm(r string) string {
	up := strings.ToUpper(strings.TrimSpace(r))
	for _, known := range Realms {
		if up == known {
			return known
		}
	}
	return ""
}

// RealmSpawn is the starting position for new players of one realm.
type RealmSpawn struct {
	Realm string `yaml:"realm"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
}

// TerritorySeed is the immutable part of a territory definition.
type TerritorySeed struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // fort, castle, wall
	Owner     string `yaml:"owner"`
	MaxHealth int64  `yaml:"max_health"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
}

// SuperbossSeed defines a world boss.
type SuperbossSeed struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	MaxHealth int64  `yaml:"max_health"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
}

// CollectableSeed defines a collectable spawn point.
type CollectableSeed struct {
	ID          int64  `yaml:"id"`
	TemplateKey string `yaml:"template_key"`
	X           int    `yaml:"x"`
	Y           int    `yaml:"y"`
}

// WorldTable is the static world definition used to seed the database and to
// resolve realm spawn positions.
type WorldTable struct {
	Spawns       []RealmSpawn
	Territories  []TerritorySeed
	Superbosses  []SuperbossSeed
	Collectables []CollectableSeed

	spawnByRealm map[string]RealmSpawn
}

type worldFile struct {
	Spawns       []RealmSpawn      `yaml:"spawns"`
	Territories  []TerritorySeed   `yaml:"territories"`
	Superbosses  []SuperbossSeed   `yaml:"superbosses"`
	Collectables []CollectableSeed `yaml:"collectables"`
}

// LoadWorldTable reads the world seed YAML.
func LoadWorldTable(path string) (*WorldTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world: %w", err)
	}
	var f worldFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse world: %w", err)
	}

	t := &WorldTable{
		Spawns:       f.Spawns,
		Territories:  f.Territories,
		Superbosses:  f.Superbosses,
		Collectables: f.Collectables,
		spawnByRealm: make(map[string]RealmSpawn, len(f.Spawns)),
	}
	for _, s := range f.Spawns {
		realm := NormalizeRealm(s.Realm)
		if realm == "" {
			return nil, fmt.Errorf("spawn for unknown realm %q", s.Realm)
		}
		t.spawnByRealm[realm] = s
	}
	for _, realm := range Realms {
		if _, ok := t.spawnByRealm[realm]; !ok {
			return nil, fmt.Errorf("no spawn defined for realm %s", realm)
		}
	}
	for _, ts := range f.Territories {
		if ts.Type != "fort" && ts.Type != "castle" && ts.Type != "wall" {
			return nil, fmt.Errorf("territory %d: unknown type %q", ts.ID, ts.Type)
		}
	}
	return t, nil
}

// SpawnFor returns the starting position of a realm.
func (t *WorldTable) SpawnFor(realm string) (RealmSpawn, bool) {
	s, ok := t.spawnByRealm[NormalizeRealm(realm)]
	return s, ok
}
