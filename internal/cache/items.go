package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/fortrealm/server/internal/data"
)

// PreloadCatalog pushes the full item catalog and the level curve into
// Redis without expiry. Run once at boot after the catalog is seeded.
func (c *Cache) PreloadCatalog(ctx context.Context, items []*data.ItemInfo) error {
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, it := range items {
			raw, err := json.Marshal(it)
			if err != nil {
				return err
			}
			pipe.Set(ctx, prefixItem+strconv.FormatInt(it.ItemID, 10), raw, 0)
			pipe.Set(ctx, prefixItemKey+it.TemplateKey, raw, 0)
		}
		if c.levels != nil {
			raw, err := json.Marshal(c.levels.Thresholds())
			if err != nil {
				return err
			}
			pipe.Set(ctx, keyLevels, raw, 0)
		}
		return nil
	})
	return err
}

// lookupItem reads a template from one cache key and, on a miss, loads it
// and back-fills both the by-id and by-key entries so either lookup path
// hits next time.
func (c *Cache) lookupItem(ctx context.Context, cacheKey string,
	load func(context.Context) (*data.ItemInfo, error)) (*data.ItemInfo, error) {
	var it data.ItemInfo
	err := c.getJSON(ctx, cacheKey, &it)
	if err == nil {
		return &it, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("read item", err)
	}
	loaded, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.warn("cache item", c.setJSON(ctx, prefixItem+strconv.FormatInt(loaded.ItemID, 10), loaded, 0))
	c.warn("cache item by key", c.setJSON(ctx, prefixItemKey+loaded.TemplateKey, loaded, 0))
	return loaded, nil
}

// ItemByID reads an item template cache-first.
func (c *Cache) ItemByID(ctx context.Context, itemID int64) (*data.ItemInfo, error) {
	return c.lookupItem(ctx, prefixItem+strconv.FormatInt(itemID, 10),
		func(ctx context.Context) (*data.ItemInfo, error) {
			return c.repos.Items.GetByID(ctx, itemID)
		})
}

// ItemByTemplate resolves a template key, used by GM grants.
func (c *Cache) ItemByTemplate(ctx context.Context, key string) (*data.ItemInfo, error) {
	return c.lookupItem(ctx, prefixItemKey+key,
		func(ctx context.Context) (*data.ItemInfo, error) {
			return c.repos.Items.GetByTemplate(ctx, key)
		})
}
