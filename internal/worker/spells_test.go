package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/event"
	"github.com/fortrealm/server/internal/persist"
)

// fakeSpellStore applies the same countdown the SQL does.
type fakeSpellStore struct {
	rows   []persist.SpellRow
	purged int64
}

func (f *fakeSpellStore) ActiveAll(ctx context.Context) ([]persist.SpellRow, error) {
	var out []persist.SpellRow
	for _, r := range f.rows {
		if r.Remaining > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSpellStore) TickDown(ctx context.Context) ([]persist.SpellRow, error) {
	var touched []persist.SpellRow
	for i := range f.rows {
		r := &f.rows[i]
		if r.Remaining <= 0 && r.CooldownRemaining <= 0 {
			continue
		}
		if r.Remaining > 0 {
			r.Remaining--
		}
		if r.CooldownRemaining > 0 {
			r.CooldownRemaining--
		}
		touched = append(touched, *r)
	}
	return touched, nil
}

func (f *fakeSpellStore) PurgeDead(ctx context.Context) (int64, error) {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.Remaining <= 0 && r.CooldownRemaining <= 0 {
			f.purged++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return f.purged, nil
}

type fakeSpeedCache struct {
	invalidated []int64
}

func (f *fakeSpeedCache) InvalidateWalkSpeed(ctx context.Context, userID int64) {
	f.invalidated = append(f.invalidated, userID)
}

func newSpellWorker(store *fakeSpellStore, c *fakeSpeedCache, pub *fakePublisher) *SpellWorker {
	cfg := config.GameConfig{SpellTick: time.Second}
	return NewSpellWorker(cfg, store, c, pub, zap.NewNop())
}

func TestSpellExpiryEmitsAndInvalidatesSpeed(t *testing.T) {
	store := &fakeSpellStore{rows: []persist.SpellRow{
		{ID: 1, UserID: 4, SpellKey: "haste", Remaining: 1, CooldownRemaining: 30, WalkSpeed: 0.5},
		{ID: 2, UserID: 5, SpellKey: "regen_draught", Remaining: 5, CooldownRemaining: 10},
	}}
	speed := &fakeSpeedCache{}
	pub := &fakePublisher{}
	w := newSpellWorker(store, speed, pub)

	require.NoError(t, w.Tick(context.Background()))

	expired := pub.globalByName(event.SpellExpired)
	require.Len(t, expired, 1)
	e := expired[0].data.(event.Expired)
	assert.Equal(t, int64(4), e.UserID)
	assert.Equal(t, "haste", e.SpellKey)
	assert.Equal(t, []int64{4}, speed.invalidated)

	// The expired row keeps cooling down instead of vanishing.
	assert.Equal(t, 29, store.rows[0].CooldownRemaining)
	assert.Equal(t, 0, store.rows[0].Remaining)
}

func TestSpellCooldownOnlyRowsStayQuiet(t *testing.T) {
	store := &fakeSpellStore{rows: []persist.SpellRow{
		{ID: 3, UserID: 6, SpellKey: "haste", Remaining: 0, CooldownRemaining: 2},
	}}
	speed := &fakeSpeedCache{}
	pub := &fakePublisher{}
	w := newSpellWorker(store, speed, pub)

	ctx := context.Background()
	require.NoError(t, w.Tick(ctx))
	assert.Len(t, store.rows, 1, "cooling row survives the first tick")

	// Second tick drains the last cooldown second and purges the row.
	require.NoError(t, w.Tick(ctx))
	assert.Empty(t, store.rows)
	assert.Empty(t, pub.globalByName(event.SpellExpired))
	assert.Empty(t, speed.invalidated)
}

func TestSpellFullLifecycle(t *testing.T) {
	store := &fakeSpellStore{rows: []persist.SpellRow{
		{ID: 4, UserID: 7, SpellKey: "haste", Duration: 2, Remaining: 2, Cooldown: 3, CooldownRemaining: 3},
	}}
	speed := &fakeSpeedCache{}
	pub := &fakePublisher{}
	w := newSpellWorker(store, speed, pub)

	ctx := context.Background()
	require.NoError(t, w.Tick(ctx)) // 1 / 2 left
	assert.Empty(t, pub.globalByName(event.SpellExpired))

	require.NoError(t, w.Tick(ctx)) // effect over, cooldown 1 left
	require.Len(t, pub.globalByName(event.SpellExpired), 1)
	require.Len(t, store.rows, 1)

	require.NoError(t, w.Tick(ctx)) // cooldown over, purged
	assert.Empty(t, store.rows)
	assert.Len(t, pub.globalByName(event.SpellExpired), 1, "expiry fires once")
}
