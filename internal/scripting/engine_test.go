package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testScript = `
function player_regen(ctx)
    return {
        hp = math.max(1, math.floor(ctx.max_health / 50)),
        mp = math.max(1, math.floor(ctx.max_mana / 25)),
    }
end

function territory_regen(territory_type, max_health)
    if territory_type == "castle" then
        return max_health / 50
    end
    return max_health / 100
end

function superboss_regen(max_health)
    return 500
end

function walk_speed(equip_sum, spell_sum)
    return 1 + equip_sum + spell_sum
end
`

func testEngine(t *testing.T, script string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if script != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "balance.lua"), []byte(script), 0o644))
	}
	eng, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func TestPlayerRegenFromScript(t *testing.T) {
	eng := testEngine(t, testScript)

	amounts := eng.PlayerRegen(PlayerRegenContext{
		Level: 3, Health: 100, MaxHealth: 1000, Mana: 10, MaxMana: 100,
	})
	assert.Equal(t, int64(20), amounts.HP)
	assert.Equal(t, int64(4), amounts.MP)
}

func TestTerritoryRegenFromScript(t *testing.T) {
	eng := testEngine(t, testScript)

	assert.Equal(t, int64(2000), eng.TerritoryRegen("castle", 100000))
	assert.Equal(t, int64(1000), eng.TerritoryRegen("fort", 100000))
	assert.Equal(t, int64(1000), eng.TerritoryRegen("wall", 100000))
}

func TestSuperbossRegenFromScript(t *testing.T) {
	eng := testEngine(t, testScript)
	assert.Equal(t, int64(500), eng.SuperbossRegen(1000000))
}

func TestWalkSpeedFromScript(t *testing.T) {
	eng := testEngine(t, testScript)
	assert.InDelta(t, 1.5, eng.WalkSpeed(0.3, 0.2), 1e-9)
}

func TestFallbacksWithoutScripts(t *testing.T) {
	eng := testEngine(t, "")

	amounts := eng.PlayerRegen(PlayerRegenContext{MaxHealth: 1000, MaxMana: 40})
	assert.Equal(t, int64(10), amounts.HP)
	assert.Equal(t, int64(1), amounts.MP) // floors at 1

	assert.Equal(t, int64(1000), eng.TerritoryRegen("fort", 100000))
	assert.Equal(t, int64(5000), eng.SuperbossRegen(1000000))
	assert.InDelta(t, 1.5, eng.WalkSpeed(0.2, 0.3), 1e-9)
}

func TestBrokenScriptFallsBack(t *testing.T) {
	eng := testEngine(t, `function walk_speed(a, b) error("boom") end`)
	assert.InDelta(t, 1.25, eng.WalkSpeed(0.25, 0), 1e-9)
}

func TestMissingScriptDirIsFatalOnlyWhenUnreadable(t *testing.T) {
	eng, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(t, err)
	eng.Close()
}
