package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/data"
)

// missRecorder intercepts every command before it reaches a connection:
// reads miss, writes succeed, and the written keys are recorded.
type missRecorder struct {
	sets []string
}

func (h *missRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *missRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error { return nil }
}

func (h *missRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch cmd.Name() {
		case "get":
			return redis.Nil
		case "set":
			h.sets = append(h.sets, cmd.Args()[1].(string))
		}
		return nil
	}
}

func TestItemMissBackfillsBothKeys(t *testing.T) {
	hook := &missRecorder{}
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	rdb.AddHook(hook)
	c := New(rdb, nil, nil, nil, zap.NewNop())

	item := &data.ItemInfo{ItemID: 300, TemplateKey: "iron_ore", Name: "Iron Ore"}
	load := func(context.Context) (*data.ItemInfo, error) { return item, nil }

	got, err := c.lookupItem(context.Background(), prefixItem+"300", load)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.ItemID)
	assert.ElementsMatch(t, []string{prefixItem + "300", prefixItemKey + "iron_ore"}, hook.sets,
		"a by-id miss must repopulate the by-key entry too")

	hook.sets = nil
	_, err = c.lookupItem(context.Background(), prefixItemKey+"iron_ore", load)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{prefixItem + "300", prefixItemKey + "iron_ore"}, hook.sets,
		"a by-key miss must repopulate the by-id entry too")
}
