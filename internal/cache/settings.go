package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Settings returns the user's raw settings JSON, cache-first.
func (c *Cache) Settings(ctx context.Context, userID int64) ([]byte, error) {
	key := prefixSettings + strconv.FormatInt(userID, 10)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read settings", err)
	}

	raw, err = c.repos.Settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.warn("cache settings", c.rdb.Set(ctx, key, raw, ttlSettings).Err())
	return raw, nil
}

// PutSettings writes through to the store and refreshes the cache.
func (c *Cache) PutSettings(ctx context.Context, userID int64, raw []byte) error {
	if err := c.repos.Settings.Put(ctx, userID, raw); err != nil {
		return err
	}
	key := prefixSettings + strconv.FormatInt(userID, 10)
	c.warn("cache settings", c.rdb.Set(ctx, key, raw, ttlSettings).Err())
	return nil
}

// IsGM answers GM checks from cache; the flag moves rarely so a long TTL
// is fine.
func (c *Cache) IsGM(ctx context.Context, userID int64) (bool, error) {
	key := prefixGM + strconv.FormatInt(userID, 10)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return val == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read gm flag", err)
	}

	level, err := c.repos.Players.GMLevel(ctx, userID)
	if err != nil {
		return false, err
	}
	flag := "0"
	if level > 0 {
		flag = "1"
	}
	c.warn("cache gm flag", c.rdb.Set(ctx, key, flag, ttlGM).Err())
	return flag == "1", nil
}
