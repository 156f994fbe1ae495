package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseClaimScript deletes a claim only while the caller still holds
// it, so a late release cannot evict somebody else's fresh claim.
var releaseClaimScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

func collectKey(spawnID int64) string {
	return prefixCollect + strconv.FormatInt(spawnID, 10)
}

// ClaimCollectable takes the short-lived collection lock for a spawn.
// Exactly one concurrent caller wins; the TTL bounds abandoned claims.
func (c *Cache) ClaimCollectable(ctx context.Context, spawnID, userID int64, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, collectKey(spawnID), strconv.FormatInt(userID, 10), ttl).Result()
	if err != nil {
		c.warn("claim collectable", err)
		return false, err
	}
	return ok, nil
}

// ClaimHolder reports who holds the claim, if anyone.
func (c *Cache) ClaimHolder(ctx context.Context, spawnID int64) (int64, bool) {
	val, err := c.rdb.Get(ctx, collectKey(spawnID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("read claim", err)
		}
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ReleaseClaim frees the lock if userID still holds it.
func (c *Cache) ReleaseClaim(ctx context.Context, spawnID, userID int64) {
	_, err := releaseClaimScript.Run(ctx, c.rdb,
		[]string{collectKey(spawnID)}, strconv.FormatInt(userID, 10)).Result()
	c.warn("release claim", err)
}
