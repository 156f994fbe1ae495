package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
	"github.com/fortrealm/server/internal/scripting"
)

type healthCache interface {
	OnlinePlayers(ctx context.Context, threshold time.Duration) ([]cache.Player, error)
	SetVitals(ctx context.Context, userID int64, health, mana int64)
	SetTerritories(ctx context.Context, list []cache.Territory)
	SetSuperbosses(ctx context.Context, list []cache.Superboss)
}

type healthPlayers interface {
	BatchUpdateVitals(ctx context.Context, userIDs []int64, health, mana []int64) error
}

type healthSpells interface {
	ActiveAll(ctx context.Context) ([]persist.SpellRow, error)
}

type healthTerritories interface {
	All(ctx context.Context) ([]persist.TerritoryRow, error)
	ClearExpiredContests(ctx context.Context, cutoff time.Time) ([]int64, error)
	Regen(ctx context.Context, territoryType string, amount int64) ([]persist.TerritoryRow, error)
}

type healthSuperbosses interface {
	All(ctx context.Context) ([]persist.SuperbossRow, error)
	Regen(ctx context.Context, amount int64) ([]persist.SuperbossRow, error)
}

type regenEngine interface {
	PlayerRegen(ctx scripting.PlayerRegenContext) scripting.RegenAmounts
	TerritoryRegen(territoryType string, maxHealth int64) int64
	SuperbossRegen(maxHealth int64) int64
}

// HealthWorker runs the regeneration pass: online players, uncontested
// territories, and wounded superbosses, with script-driven amounts.
// Active spell effects fold into the player pass.
type HealthWorker struct {
	interval    time.Duration
	presence    time.Duration
	contestHold time.Duration
	cache       healthCache
	players     healthPlayers
	spells      healthSpells
	territories healthTerritories
	bosses      healthSuperbosses
	engine      regenEngine
	pub         event.Publisher
	log         *zap.Logger
}

func NewHealthWorker(cfg config.GameConfig, c healthCache, players healthPlayers,
	spells healthSpells, territories healthTerritories, bosses healthSuperbosses,
	engine regenEngine, pub event.Publisher, log *zap.Logger) *HealthWorker {
	return &HealthWorker{
		interval:    cfg.HealthTick,
		presence:    cfg.PresenceThreshold,
		contestHold: cfg.ContestHold,
		cache:       c,
		players:     players,
		spells:      spells,
		territories: territories,
		bosses:      bosses,
		engine:      engine,
		pub:         pub,
		log:         log.Named("health"),
	}
}

func (w *HealthWorker) Name() string            { return "health" }
func (w *HealthWorker) Interval() time.Duration { return w.interval }

func (w *HealthWorker) Tick(ctx context.Context) error {
	now := time.Now()
	err := w.regenPlayers(ctx)
	if w.regenTerritories(ctx, now) {
		w.broadcastTerritories(ctx)
	}
	if w.regenSuperbosses(ctx) {
		w.broadcastSuperbosses(ctx)
	}
	return err
}

// tickEffect is the per-user sum of active spell per-tick fields.
type tickEffect struct {
	heal, mana, damage int64
}

func spellEffects(spells []persist.SpellRow) map[int64]tickEffect {
	byUser := make(map[int64]tickEffect, len(spells))
	for _, s := range spells {
		e := byUser[s.UserID]
		e.heal += int64(s.HealPerTick)
		e.mana += int64(s.ManaPerTick)
		e.damage += int64(s.DamagePerTick)
		byUser[s.UserID] = e
	}
	return byUser
}

func (w *HealthWorker) regenPlayers(ctx context.Context) error {
	players, err := w.cache.OnlinePlayers(ctx, w.presence)
	if err != nil {
		return fmt.Errorf("online players: %w", err)
	}
	if len(players) == 0 {
		return nil
	}

	spells, err := w.spells.ActiveAll(ctx)
	if err != nil {
		w.log.Warn("active spells", zap.Error(err))
	}
	effects := spellEffects(spells)

	var ids, hps, mps []int64
	for i := range players {
		p := &players[i]
		amounts := w.engine.PlayerRegen(scripting.PlayerRegenContext{
			Level:     p.Level,
			Health:    p.Health,
			MaxHealth: p.MaxHealth,
			Mana:      p.Mana,
			MaxMana:   p.MaxMana,
		})
		eff := effects[p.UserID]
		hp := clamp(p.Health+amounts.HP+eff.heal-eff.damage, 0, p.MaxHealth)
		mp := clamp(p.Mana+amounts.MP+eff.mana, 0, p.MaxMana)
		if hp == p.Health && mp == p.Mana {
			continue
		}
		w.cache.SetVitals(ctx, p.UserID, hp, mp)
		ids = append(ids, p.UserID)
		hps = append(hps, hp)
		mps = append(mps, mp)
		w.pub.Global(event.PlayerHealth, event.Health{
			UserID:    p.UserID,
			Health:    hp,
			MaxHealth: p.MaxHealth,
			Mana:      mp,
			MaxMana:   p.MaxMana,
		})
	}
	if len(ids) == 0 {
		return nil
	}
	if err := w.players.BatchUpdateVitals(ctx, ids, hps, mps); err != nil {
		return fmt.Errorf("persist vitals: %w", err)
	}
	return nil
}

// regenTerritories lifts expired contests, then heals each territory
// type by its script rate. Contested rows are left alone; the repo skips
// them. Reports whether anything changed.
func (w *HealthWorker) regenTerritories(ctx context.Context, now time.Time) bool {
	cleared, err := w.territories.ClearExpiredContests(ctx, now.Add(-w.contestHold))
	if err != nil {
		w.log.Warn("clear expired contests", zap.Error(err))
	}
	changed := len(cleared) > 0

	rows, err := w.territories.All(ctx)
	if err != nil {
		w.log.Warn("list territories", zap.Error(err))
		return changed
	}
	// Rates key off the type; territories of one type share a max health.
	maxByType := make(map[string]int64, 4)
	for i := range rows {
		if _, ok := maxByType[rows[i].Type]; !ok {
			maxByType[rows[i].Type] = rows[i].MaxHealth
		}
	}
	for typ, maxHealth := range maxByType {
		amount := w.engine.TerritoryRegen(typ, maxHealth)
		if amount <= 0 {
			continue
		}
		healed, err := w.territories.Regen(ctx, typ, amount)
		if err != nil {
			w.log.Warn("territory regen", zap.String("type", typ), zap.Error(err))
			continue
		}
		if len(healed) > 0 {
			changed = true
		}
	}
	return changed
}

func (w *HealthWorker) regenSuperbosses(ctx context.Context) bool {
	rows, err := w.bosses.All(ctx)
	if err != nil {
		w.log.Warn("list superbosses", zap.Error(err))
		return false
	}
	if len(rows) == 0 {
		return false
	}
	amount := w.engine.SuperbossRegen(rows[0].MaxHealth)
	if amount <= 0 {
		return false
	}
	healed, err := w.bosses.Regen(ctx, amount)
	if err != nil {
		w.log.Warn("superboss regen", zap.Error(err))
		return false
	}
	return len(healed) > 0
}

func (w *HealthWorker) broadcastTerritories(ctx context.Context) {
	rows, err := w.territories.All(ctx)
	if err != nil {
		w.log.Warn("reload territories", zap.Error(err))
		return
	}
	list := make([]cache.Territory, 0, len(rows))
	for i := range rows {
		list = append(list, *cache.TerritoryFromRow(&rows[i]))
	}
	w.cache.SetTerritories(ctx, list)
	w.pub.Global(event.TerritoriesUpdate, map[string]any{"territories": list})
}

func (w *HealthWorker) broadcastSuperbosses(ctx context.Context) {
	rows, err := w.bosses.All(ctx)
	if err != nil {
		w.log.Warn("reload superbosses", zap.Error(err))
		return
	}
	list := make([]cache.Superboss, 0, len(rows))
	for i := range rows {
		list = append(list, *cache.SuperbossFromRow(&rows[i]))
	}
	w.cache.SetSuperbosses(ctx, list)
	w.pub.Global(event.SuperbossesHealth, map[string]any{"superbosses": list})
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
