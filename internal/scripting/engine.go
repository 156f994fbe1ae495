// Package scripting hosts the Lua balance layer. Regen rates and the
// walk-speed formula live in scripts so tuning never needs a redeploy;
// every call has a Go fallback so a broken script degrades instead of
// breaking ticks.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. The VM is not goroutine safe;
// calls are serialized internally because tick workers and the cache
// layer reach it from different goroutines.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script from the given
// directory and its balance/ subdirectory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if err := e.loadDir(filepath.Join(scriptsDir, "balance")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load balance scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// PlayerRegenContext holds data for a per-tick player regen calculation.
type PlayerRegenContext struct {
	Level     int
	Health    int64
	MaxHealth int64
	Mana      int64
	MaxMana   int64
}

// RegenAmounts is the per-tick HP/MP gain for one player.
type RegenAmounts struct {
	HP int64
	MP int64
}

func fallbackPlayerRegen(ctx PlayerRegenContext) RegenAmounts {
	hp := ctx.MaxHealth / 100
	if hp < 1 {
		hp = 1
	}
	mp := ctx.MaxMana / 100
	if mp < 1 {
		mp = 1
	}
	return RegenAmounts{HP: hp, MP: mp}
}

// PlayerRegen calls Lua player_regen(ctx).
func (e *Engine) PlayerRegen(ctx PlayerRegenContext) RegenAmounts {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("player_regen")
	if fn == lua.LNil {
		return fallbackPlayerRegen(ctx)
	}

	t := e.vm.NewTable()
	t.RawSetString("level", lua.LNumber(ctx.Level))
	t.RawSetString("health", lua.LNumber(ctx.Health))
	t.RawSetString("max_health", lua.LNumber(ctx.MaxHealth))
	t.RawSetString("mana", lua.LNumber(ctx.Mana))
	t.RawSetString("max_mana", lua.LNumber(ctx.MaxMana))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua player_regen error", zap.Error(err))
		return fallbackPlayerRegen(ctx)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua player_regen returned non-table")
		return fallbackPlayerRegen(ctx)
	}

	return RegenAmounts{
		HP: lInt64(rt, "hp"),
		MP: lInt64(rt, "mp"),
	}
}

func fallbackTerritoryRegen(maxHealth int64) int64 {
	amount := maxHealth / 100
	if amount < 1 {
		amount = 1
	}
	return amount
}

// TerritoryRegen calls Lua territory_regen(type, max_health) for the
// per-tick heal rate of one territory type.
func (e *Engine) TerritoryRegen(territoryType string, maxHealth int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("territory_regen")
	if fn == lua.LNil {
		return fallbackTerritoryRegen(maxHealth)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(territoryType), lua.LNumber(maxHealth)); err != nil {
		e.log.Error("lua territory_regen error", zap.Error(err))
		return fallbackTerritoryRegen(maxHealth)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	amount := int64(lua.LVAsNumber(result))
	if amount < 0 {
		amount = 0
	}
	return amount
}

func fallbackSuperbossRegen(maxHealth int64) int64 {
	amount := maxHealth / 200
	if amount < 1 {
		amount = 1
	}
	return amount
}

// SuperbossRegen calls Lua superboss_regen(max_health).
func (e *Engine) SuperbossRegen(maxHealth int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("superboss_regen")
	if fn == lua.LNil {
		return fallbackSuperbossRegen(maxHealth)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(maxHealth)); err != nil {
		e.log.Error("lua superboss_regen error", zap.Error(err))
		return fallbackSuperbossRegen(maxHealth)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	amount := int64(lua.LVAsNumber(result))
	if amount < 0 {
		amount = 0
	}
	return amount
}

// WalkSpeed calls Lua walk_speed(equip_sum, spell_sum) to fold the gear
// and buff sums into the final multiplier.
func (e *Engine) WalkSpeed(equipSum, spellSum float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("walk_speed")
	if fn == lua.LNil {
		return 1 + equipSum + spellSum
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(equipSum), lua.LNumber(spellSum)); err != nil {
		e.log.Error("lua walk_speed error", zap.Error(err))
		return 1 + equipSum + spellSum
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	speed := float64(lua.LVAsNumber(result))
	if speed <= 0 {
		return 1
	}
	return speed
}

// --- Lua helpers ---

// lInt64 reads an integer field from a Lua table.
func lInt64(t *lua.LTable, key string) int64 {
	return int64(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
