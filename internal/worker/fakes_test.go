package worker

import (
	"context"
	"sync"
	"time"
)

// fakePublisher records fan-out calls for assertions.
type published struct {
	userID int64
	event  string
	data   any
}

type fakePublisher struct {
	mu     sync.Mutex
	global []published
	user   []published
}

func (p *fakePublisher) Global(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = append(p.global, published{event: event, data: data})
}

func (p *fakePublisher) User(userID int64, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = append(p.user, published{userID: userID, event: event, data: data})
}

func (p *fakePublisher) globalByName(name string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.global {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePublisher) userByName(name string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.user {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

// fakePlayers covers the player repo surface both the walker and health
// loops write to.
type fakePlayers struct {
	xp      map[int64]int64
	levels  map[int64]int
	hp      map[int64]int64
	mp      map[int64]int64
	batches int
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{
		xp:     map[int64]int64{},
		levels: map[int64]int{},
		hp:     map[int64]int64{},
		mp:     map[int64]int64{},
	}
}

func (f *fakePlayers) AddXP(ctx context.Context, userID int64, amount int64) (int64, error) {
	f.xp[userID] += amount
	return f.xp[userID], nil
}

func (f *fakePlayers) SetLevel(ctx context.Context, userID int64, level int) error {
	f.levels[userID] = level
	return nil
}

func (f *fakePlayers) BatchUpdateVitals(ctx context.Context, userIDs []int64, health, mana []int64) error {
	f.batches++
	for i, id := range userIDs {
		f.hp[id] = health[i]
		f.mp[id] = mana[i]
	}
	return nil
}

// funcWorker adapts a closure to the Worker interface for runner tests.
type funcWorker struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

func (w *funcWorker) Name() string            { return w.name }
func (w *funcWorker) Interval() time.Duration { return w.interval }
func (w *funcWorker) Tick(ctx context.Context) error {
	return w.fn(ctx)
}
