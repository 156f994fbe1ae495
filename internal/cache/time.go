package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ClockNow returns the cached ingame clock, falling back to the stored
// reading. The world-time worker overwrites this every tick.
func (c *Cache) ClockNow(ctx context.Context) (*Clock, error) {
	var clk Clock
	err := c.getJSON(ctx, keyTime, &clk)
	if err == nil {
		return &clk, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read clock", err)
	}

	row, err := c.repos.Time.Get(ctx)
	if err != nil {
		return nil, err
	}
	clk = Clock{
		Hour:        row.IngameHour,
		Minute:      row.IngameMinute,
		TickSeconds: row.TickSeconds,
		StartedAt:   row.StartedAt.Unix(),
	}
	c.SetClock(ctx, &clk)
	return &clk, nil
}

func (c *Cache) SetClock(ctx context.Context, clk *Clock) {
	c.warn("cache clock", c.setJSON(ctx, keyTime, clk, ttlTime))
}
