package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortrealm/server/internal/persist"
)

// Presence lives only in Redis: a sorted set scored by last-seen unix
// time. The durable players.last_active column is fed by the write
// buffer, not by this set.

// TouchOnline refreshes the user's presence score.
func (c *Cache) TouchOnline(ctx context.Context, userID int64) {
	err := c.rdb.ZAdd(ctx, keyOnline, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
	c.warn("touch online", err)
}

// RemoveOnline drops the user from the presence set on confirmed
// disconnect.
func (c *Cache) RemoveOnline(ctx context.Context, userID int64) {
	err := c.rdb.ZRem(ctx, keyOnline, strconv.FormatInt(userID, 10)).Err()
	c.warn("remove online", err)
}

// OnlineIDs prunes entries older than threshold and returns the rest.
func (c *Cache) OnlineIDs(ctx context.Context, threshold time.Duration) ([]int64, error) {
	cutoff := time.Now().Add(-threshold).Unix()
	if err := c.rdb.ZRemRangeByScore(ctx, keyOnline, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		c.warn("prune online", err)
		return nil, err
	}
	members, err := c.rdb.ZRange(ctx, keyOnline, 0, -1).Result()
	if err != nil {
		c.warn("read online", err)
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OnlinePlayers resolves the presence set to player snapshots. Snapshot
// misses are batch-loaded from persistence and backfilled.
func (c *Cache) OnlinePlayers(ctx context.Context, threshold time.Duration) ([]Player, error) {
	ids, err := c.OnlineIDs(ctx, threshold)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = prefixPlayer + strconv.FormatInt(id, 10)
	}
	raws, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.warn("mget players", err)
		raws = make([]any, len(ids))
	}

	players := make([]Player, 0, len(ids))
	var missing []int64
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var p Player
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		players = append(players, p)
	}

	if len(missing) > 0 {
		rows, err := c.repos.Players.GetByIDs(ctx, missing)
		if err != nil {
			return players, err
		}
		for i := range rows {
			p := PlayerFromRow(&rows[i])
			players = append(players, *p)
			c.warn("backfill player", c.setJSON(ctx, prefixPlayer+strconv.FormatInt(p.UserID, 10), p, ttlPlayer))
		}
	}
	return players, nil
}

// BufferLastActive queues a durable last-active update for the flusher.
func (c *Cache) BufferLastActive(ctx context.Context, userID int64, ts time.Time) {
	err := c.rdb.HSet(ctx, keyLastActive,
		strconv.FormatInt(userID, 10), strconv.FormatInt(ts.Unix(), 10)).Err()
	c.warn("buffer last active", err)
}

// FlushLastActive drains the buffered timestamps into the players table
// in one batch and returns how many rows it wrote. Entries are removed
// from the buffer only after the write lands.
func (c *Cache) FlushLastActive(ctx context.Context) (int, error) {
	buffered, err := c.rdb.HGetAll(ctx, keyLastActive).Result()
	if err != nil {
		c.warn("read last active buffer", err)
		return 0, err
	}
	if len(buffered) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(buffered))
	stamps := make([]int64, 0, len(buffered))
	fields := make([]string, 0, len(buffered))
	for field, val := range buffered {
		id, err1 := strconv.ParseInt(field, 10, 64)
		ts, err2 := strconv.ParseInt(val, 10, 64)
		if err1 != nil || err2 != nil {
			fields = append(fields, field) // drop garbage
			continue
		}
		ids = append(ids, id)
		stamps = append(stamps, ts)
		fields = append(fields, field)
	}

	if len(ids) > 0 {
		// Retried because the shutdown flush is the last chance these
		// stamps have to land.
		err := persist.WithRetry(ctx, func(ctx context.Context) error {
			return c.repos.Players.BatchUpdateLastActive(ctx, ids, stamps)
		})
		if err != nil {
			return 0, err
		}
	}
	c.warn("trim last active buffer", c.rdb.HDel(ctx, keyLastActive, fields...).Err())
	return len(ids), nil
}
