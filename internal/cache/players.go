package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

func playerKey(userID int64) string {
	return prefixPlayer + strconv.FormatInt(userID, 10)
}

// Player returns the hot snapshot, loading and caching it from
// persistence on miss.
func (c *Cache) Player(ctx context.Context, userID int64) (*Player, error) {
	var p Player
	err := c.getJSON(ctx, playerKey(userID), &p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read player", err)
	}

	row, err := c.repos.Players.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	loaded := PlayerFromRow(row)
	c.warn("cache player", c.setJSON(ctx, playerKey(userID), loaded, ttlPlayer))
	return loaded, nil
}

// PutPlayer overwrites the snapshot, refreshing its TTL.
func (c *Cache) PutPlayer(ctx context.Context, p *Player) {
	c.warn("put player", c.setJSON(ctx, playerKey(p.UserID), p, ttlPlayer))
}

// InvalidatePlayer drops the snapshot so the next read rebuilds it.
func (c *Cache) InvalidatePlayer(ctx context.Context, userID int64) {
	c.warn("invalidate player", c.rdb.Del(ctx, playerKey(userID)).Err())
}

// SetPosition moves the snapshot only. Durable position writes happen on
// walker completion, not per step.
func (c *Cache) SetPosition(ctx context.Context, userID int64, x, y int) {
	p, err := c.Player(ctx, userID)
	if err != nil {
		return
	}
	p.X, p.Y = x, y
	c.PutPlayer(ctx, p)
}

// SetVitals updates health and mana on the snapshot only. The health
// worker batches the durable write.
func (c *Cache) SetVitals(ctx context.Context, userID int64, health, mana int64) {
	p, err := c.Player(ctx, userID)
	if err != nil {
		return
	}
	p.Health, p.Mana = health, mana
	c.PutPlayer(ctx, p)
}
