package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/cache"
	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
)

type fakeTimeStore struct {
	row     persist.TimeRow
	updates [][2]int
}

func (f *fakeTimeStore) Get(ctx context.Context) (*persist.TimeRow, error) {
	row := f.row
	return &row, nil
}

func (f *fakeTimeStore) UpdateClock(ctx context.Context, hour, minute int) error {
	f.updates = append(f.updates, [2]int{hour, minute})
	return nil
}

type fakeClockCache struct {
	clock *cache.Clock
}

func (f *fakeClockCache) SetClock(ctx context.Context, clk *cache.Clock) {
	f.clock = clk
}

func TestClockReading(t *testing.T) {
	cases := []struct {
		name        string
		elapsed     int64
		tickSeconds int
		hour        int
		minute      int
	}{
		{"midnight", 0, 150, 0, 0},
		{"half past", 75, 150, 0, 30},
		{"one o'clock", 150, 150, 1, 0},
		{"last minute", 149, 150, 0, 59},
		{"wraps at midnight", 24 * 150, 150, 0, 0},
		{"afternoon", 14*150 + 100, 150, 14, 40},
		{"negative clamps", -30, 150, 0, 0},
		{"zero speed falls back", 300, 0, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hour, minute := clockReading(tc.elapsed, tc.tickSeconds)
			assert.Equal(t, tc.hour, hour)
			assert.Equal(t, tc.minute, minute)
		})
	}
}

func TestTimeWorkerBroadcastsAndPersists(t *testing.T) {
	// Anchored 300s ago at 150s/hour: the clock reads 02:00.
	store := &fakeTimeStore{row: persist.TimeRow{
		StartedAt:   time.Now().Add(-300 * time.Second),
		TickSeconds: 150,
	}}
	cc := &fakeClockCache{}
	pub := &fakePublisher{}
	w := NewTimeWorker(config.GameConfig{TimeTick: 10 * time.Second}, store, cc, pub, zap.NewNop())

	require.NoError(t, w.Tick(context.Background()))

	require.Len(t, store.updates, 1)
	assert.Equal(t, 2, store.updates[0][0])
	require.NotNil(t, cc.clock)
	assert.Equal(t, 2, cc.clock.Hour)
	assert.Equal(t, 150, cc.clock.TickSeconds)

	events := pub.globalByName(event.TimeUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].data.(event.Clock).Hour)
}

func TestTimeWorkerSkipsPersistWhenReadingStable(t *testing.T) {
	store := &fakeTimeStore{row: persist.TimeRow{
		StartedAt:   time.Now(),
		TickSeconds: 150,
	}}
	cc := &fakeClockCache{}
	pub := &fakePublisher{}
	w := NewTimeWorker(config.GameConfig{TimeTick: 10 * time.Second}, store, cc, pub, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, w.Tick(ctx))
	// Both ticks land inside the same ingame minute.
	require.NoError(t, w.Tick(ctx))

	assert.Len(t, store.updates, 1, "unchanged reading persisted again")
	assert.Len(t, pub.globalByName(event.TimeUpdate), 2, "broadcast happens every tick")
}
