package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/persist"
)

func walkSpeedKey(userID int64) string {
	return prefixWalkSpeed + strconv.FormatInt(userID, 10)
}

// WalkSpeed returns the user's walk-speed multiplier, recomputing the
// aggregate on miss. Equip, unequip and spell transitions invalidate it.
func (c *Cache) WalkSpeed(ctx context.Context, userID int64) (float64, error) {
	val, err := c.rdb.Get(ctx, walkSpeedKey(userID)).Result()
	if err == nil {
		if speed, perr := strconv.ParseFloat(val, 64); perr == nil {
			return speed, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn("read walk speed", err)
	}
	return c.ComputeWalkSpeed(ctx, userID)
}

// ComputeWalkSpeed rebuilds the aggregate from equipped items and active
// spells and caches it.
func (c *Cache) ComputeWalkSpeed(ctx context.Context, userID int64) (float64, error) {
	equipment, err := c.repos.Inventory.Equipment(ctx, userID)
	if err != nil {
		return 1, err
	}
	items := make([]*data.ItemInfo, 0, len(equipment))
	for _, e := range equipment {
		it, err := c.ItemByID(ctx, e.ItemID)
		if err != nil {
			continue
		}
		items = append(items, it)
	}
	spells, err := c.repos.Spells.ActiveByUser(ctx, userID)
	if err != nil {
		return 1, err
	}

	equipSum, spellSum := sumWalkSpeeds(items, spells)
	speed := c.speed(equipSum, spellSum)
	c.warn("cache walk speed",
		c.rdb.Set(ctx, walkSpeedKey(userID), strconv.FormatFloat(speed, 'f', -1, 64), ttlWalkSpeed).Err())
	return speed, nil
}

func (c *Cache) InvalidateWalkSpeed(ctx context.Context, userID int64) {
	c.warn("invalidate walk speed", c.rdb.Del(ctx, walkSpeedKey(userID)).Err())
}

// sumWalkSpeeds adds up the walk-speed stat of equipped items and the
// walk-speed bonus of spells still in effect.
func sumWalkSpeeds(items []*data.ItemInfo, spells []persist.SpellRow) (equipSum, spellSum float64) {
	for _, it := range items {
		equipSum += it.Stats.WalkSpeed
	}
	for _, s := range spells {
		if s.Remaining > 0 {
			spellSum += s.WalkSpeed
		}
	}
	return equipSum, spellSum
}
