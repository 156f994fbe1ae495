package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Territories returns all territories, cache-first with a 30s TTL.
// Concurrent misses collapse into one store read.
func (c *Cache) Territories(ctx context.Context) ([]Territory, error) {
	var list []Territory
	err := c.getJSON(ctx, keyTerritories, &list)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read territories", err)
	}

	v, err, _ := c.sf.Do(keyTerritories, func() (any, error) {
		rows, err := c.repos.Territories.All(ctx)
		if err != nil {
			return nil, err
		}
		list := make([]Territory, 0, len(rows))
		for i := range rows {
			list = append(list, *TerritoryFromRow(&rows[i]))
		}
		c.warn("cache territories", c.setJSON(ctx, keyTerritories, list, ttlTerritories))
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Territory), nil
}

// SetTerritories replaces the cached list, used by the tick workers
// right after they mutate rows so readers never see the stale copy out
// its full TTL.
func (c *Cache) SetTerritories(ctx context.Context, list []Territory) {
	c.warn("set territories", c.setJSON(ctx, keyTerritories, list, ttlTerritories))
}

func (c *Cache) InvalidateTerritories(ctx context.Context) {
	c.warn("invalidate territories", c.rdb.Del(ctx, keyTerritories).Err())
}

// Superbosses returns all bosses, cache-first with a 10s TTL.
func (c *Cache) Superbosses(ctx context.Context) ([]Superboss, error) {
	var list []Superboss
	err := c.getJSON(ctx, keySuperbosses, &list)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read superbosses", err)
	}

	v, err, _ := c.sf.Do(keySuperbosses, func() (any, error) {
		rows, err := c.repos.Superbosses.All(ctx)
		if err != nil {
			return nil, err
		}
		list := make([]Superboss, 0, len(rows))
		for i := range rows {
			list = append(list, *SuperbossFromRow(&rows[i]))
		}
		c.warn("cache superbosses", c.setJSON(ctx, keySuperbosses, list, ttlSuperbosses))
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Superboss), nil
}

func (c *Cache) SetSuperbosses(ctx context.Context, list []Superboss) {
	c.warn("set superbosses", c.setJSON(ctx, keySuperbosses, list, ttlSuperbosses))
}

func (c *Cache) InvalidateSuperbosses(ctx context.Context) {
	c.warn("invalidate superbosses", c.rdb.Del(ctx, keySuperbosses).Err())
}
