package cache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// shoutLastScript advances fr:shouts:last only forward, so replays and
// out-of-order writes never move the high-water mark back.
var shoutLastScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local new = tonumber(ARGV[1])
if new > cur then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// PushShout prepends a message to the capped hot list and bumps the
// monotonic last-ID marker.
func (c *Cache) PushShout(ctx context.Context, s *Shout) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.warn("marshal shout", err)
		return
	}
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, keyShouts, raw)
		pipe.LTrim(ctx, keyShouts, 0, shoutboxDepth-1)
		return nil
	})
	c.warn("push shout", err)

	_, err = shoutLastScript.Run(ctx, c.rdb, []string{keyShoutLast}, s.ID).Result()
	c.warn("bump shout marker", err)
}

// LastShoutID reads the high-water mark; zero when unset.
func (c *Cache) LastShoutID(ctx context.Context) int64 {
	val, err := c.rdb.Get(ctx, keyShoutLast).Result()
	if err != nil {
		c.warn("read shout marker", err)
		return 0
	}
	id, _ := strconv.ParseInt(val, 10, 64)
	return id
}

// RecentShouts returns up to n messages, newest first, backfilling the
// hot list from persistence when it is empty.
func (c *Cache) RecentShouts(ctx context.Context, n int) ([]Shout, error) {
	raws, err := c.rdb.LRange(ctx, keyShouts, 0, int64(n-1)).Result()
	if err != nil {
		c.warn("read shouts", err)
	}
	if len(raws) > 0 {
		out := make([]Shout, 0, len(raws))
		for _, raw := range raws {
			var s Shout
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	}

	rows, err := c.repos.Shoutbox.Recent(ctx, shoutboxDepth)
	if err != nil {
		return nil, err
	}
	out := make([]Shout, 0, len(rows))
	for i := range rows {
		out = append(out, *ShoutFromRow(&rows[i]))
	}

	// Rebuild the hot list oldest-first so the head stays the newest.
	if len(out) > 0 {
		_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := len(out) - 1; i >= 0; i-- {
				raw, err := json.Marshal(&out[i])
				if err != nil {
					return err
				}
				pipe.LPush(ctx, keyShouts, raw)
			}
			pipe.LTrim(ctx, keyShouts, 0, shoutboxDepth-1)
			return nil
		})
		c.warn("backfill shouts", err)
		shoutLastScript.Run(ctx, c.rdb, []string{keyShoutLast}, out[0].ID)
	}
	if n < len(out) {
		out = out[:n]
	}
	return out, nil
}
