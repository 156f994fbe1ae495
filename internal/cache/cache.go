// Package cache is the hot-state layer between the socket tier and the
// relational store. Reads go cache-first with read-through on miss;
// writes are write-through for anything money-equivalent and buffered
// only for position and activity timestamps. A dead Redis degrades to
// direct persistence reads, it never takes the server down.
package cache

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/persist"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Key namespace. Every key the server touches lives under fr: so a
// shared Redis can be inspected and flushed per concern.
const (
	keyOnline      = "fr:online"     // ZSET userID -> last seen unix
	keyLastActive  = "fr:lastactive" // HASH userID -> unix, write buffer
	keyWalkers     = "fr:walkers"    // HASH walkerID -> walker JSON
	keyTerritories = "fr:territories"
	keySuperbosses = "fr:superbosses"
	keyTime        = "fr:time"
	keyShouts      = "fr:shouts"
	keyShoutLast   = "fr:shouts:last"
	keyLevels      = "fr:levels"

	prefixPlayer     = "fr:player:"
	prefixWalkerUser = "fr:walker:user:"
	prefixSettings   = "fr:settings:"
	prefixGM         = "fr:gm:"
	prefixWalkSpeed  = "fr:walkspeed:"
	prefixItem       = "fr:item:"
	prefixItemKey    = "fr:item:key:"
	prefixCollect    = "fr:collect:"
)

// TTL classes.
const (
	ttlPlayer      = 5 * time.Minute
	ttlTerritories = 30 * time.Second
	ttlSuperbosses = 10 * time.Second
	ttlTime        = 15 * time.Second
	ttlSettings    = 300 * time.Second
	ttlGM          = 600 * time.Second
	ttlWalkSpeed   = 60 * time.Second
)

const shoutboxDepth = 50

// SpeedFunc folds the equipment and spell walk-speed sums into the final
// multiplier. The balance scripts own the formula.
type SpeedFunc func(equipSum, spellSum float64) float64

type Cache struct {
	rdb    *redis.Client
	repos  *persist.Repos
	levels *data.LevelTable
	speed  SpeedFunc
	log    *zap.Logger
	sf     singleflight.Group
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

func New(rdb *redis.Client, repos *persist.Repos, levels *data.LevelTable, speed SpeedFunc, log *zap.Logger) *Cache {
	if speed == nil {
		speed = func(equipSum, spellSum float64) float64 { return 1 + equipSum + spellSum }
	}
	return &Cache{rdb: rdb, repos: repos, levels: levels, speed: speed, log: log}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// getJSON loads and decodes a JSON value. Returns redis.Nil on miss.
func (c *Cache) getJSON(ctx context.Context, key string, out any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Cache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// warn logs a cache fault once per call site. Faults are expected during
// Redis restarts; callers fall through to persistence.
func (c *Cache) warn(op string, err error) {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return
	}
	c.log.Warn("cache fault, falling through", zap.String("op", op), zap.Error(err))
}
