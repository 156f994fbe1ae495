package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortrealm/server/internal/persist"
)

func walkerUserKey(userID int64) string {
	return prefixWalkerUser + strconv.FormatInt(userID, 10)
}

// PutWalker records a new walk: the durable row first, then the hash
// entry and the per-user pointer. The unique user constraint in the
// store is the backstop against two concurrent walks for one user.
func (c *Cache) PutWalker(ctx context.Context, w *Walker) error {
	row := &persist.WalkerRow{
		ID:           w.ID,
		UserID:       w.UserID,
		Positions:    w.Positions,
		CurrentIndex: w.CurrentIndex,
	}
	if err := c.repos.Walkers.Insert(ctx, row); err != nil {
		return err
	}
	c.cacheWalker(ctx, w)
	return nil
}

func (c *Cache) cacheWalker(ctx context.Context, w *Walker) {
	raw, err := json.Marshal(w)
	if err != nil {
		c.warn("marshal walker", err)
		return
	}
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keyWalkers, w.ID, raw)
		pipe.Set(ctx, walkerUserKey(w.UserID), w.ID, 0)
		return nil
	})
	c.warn("cache walker", err)
}

// AdvanceWalker writes the moved index to the hash only; durability
// comes back at completion.
func (c *Cache) AdvanceWalker(ctx context.Context, w *Walker) {
	w.UpdatedAt = time.Now().Unix()
	raw, err := json.Marshal(w)
	if err != nil {
		c.warn("marshal walker", err)
		return
	}
	c.warn("advance walker", c.rdb.HSet(ctx, keyWalkers, w.ID, raw).Err())
}

// Walkers returns every active walk, falling back to the durable rows
// when the hash is unreachable.
func (c *Cache) Walkers(ctx context.Context) ([]Walker, error) {
	entries, err := c.rdb.HGetAll(ctx, keyWalkers).Result()
	if err != nil {
		c.warn("read walkers", err)
		rows, dbErr := c.repos.Walkers.All(ctx)
		if dbErr != nil {
			return nil, dbErr
		}
		out := make([]Walker, 0, len(rows))
		for i := range rows {
			out = append(out, *WalkerFromRow(&rows[i]))
		}
		return out, nil
	}

	out := make([]Walker, 0, len(entries))
	for id, raw := range entries {
		var w Walker
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			c.warn("decode walker "+id, err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// WalkerByUser resolves the user's active walk through the per-user
// pointer, warming the cache from the durable row on miss.
func (c *Cache) WalkerByUser(ctx context.Context, userID int64) (*Walker, error) {
	id, err := c.rdb.Get(ctx, walkerUserKey(userID)).Result()
	if err == nil {
		raw, err := c.rdb.HGet(ctx, keyWalkers, id).Result()
		if err == nil {
			var w Walker
			if err := json.Unmarshal([]byte(raw), &w); err == nil {
				return &w, nil
			}
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn("read walker pointer", err)
	}

	row, err := c.repos.Walkers.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	w := WalkerFromRow(row)
	c.cacheWalker(ctx, w)
	return w, nil
}

// CompleteWalker finishes a walk at the walker's current waypoint: the
// durable row is removed, the final position written through, and the
// hot copies dropped. Used for both arrival and interruption.
func (c *Cache) CompleteWalker(ctx context.Context, w *Walker) error {
	pos := w.Position()
	if err := c.repos.Walkers.Delete(ctx, w.ID); err != nil {
		return err
	}
	if err := c.repos.Players.UpdatePosition(ctx, w.UserID, pos.X, pos.Y); err != nil {
		return err
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, keyWalkers, w.ID)
		pipe.Del(ctx, walkerUserKey(w.UserID))
		return nil
	})
	c.warn("drop walker", err)
	c.SetPosition(ctx, w.UserID, pos.X, pos.Y)
	return nil
}

// WarmWalkers reloads the hash from the durable rows, used at boot so
// walks survive a restart.
func (c *Cache) WarmWalkers(ctx context.Context) (int, error) {
	rows, err := c.repos.Walkers.All(ctx)
	if err != nil {
		return 0, err
	}
	for i := range rows {
		c.cacheWalker(ctx, WalkerFromRow(&rows[i]))
	}
	return len(rows), nil
}
