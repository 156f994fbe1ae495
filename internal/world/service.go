package world

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/geo"
)

// Service answers pathfinding and walkability queries over the current
// map grid. Route computation runs through a bounded worker pool; results
// are memoized per (realm, start cell, goal cell) until the next map edit.
type Service struct {
	log  *zap.Logger
	sem  *semaphore.Weighted
	step int
	size int

	mu      sync.RWMutex
	grid    *Grid
	cache   *pathCache
	cacheMu sync.Mutex
}

// NewService builds a Service for a size x size world quantized to step.
// The grid starts empty (all ground open); call Rebuild with the stored
// map features to rasterize them.
func NewService(size, step, workers, cacheSize int, log *zap.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		log:   log,
		sem:   semaphore.NewWeighted(int64(workers)),
		step:  step,
		size:  size,
		grid:  NewGrid(size, step, nil),
		cache: newPathCache(cacheSize),
	}
}

// Rebuild rasterizes features onto a fresh grid and drops every cached
// path. Called at boot and after each map editor change.
func (s *Service) Rebuild(features []Feature) {
	grid := NewGrid(s.size, s.step, features)
	s.mu.Lock()
	s.grid = grid
	s.cache = newPathCache(s.cache.cap)
	s.mu.Unlock()
	s.log.Info("world grid rebuilt",
		zap.Int("features", len(features)),
		zap.Int("cells", grid.width*grid.height))
}

func (s *Service) snapshot() (*Grid, *pathCache) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid, s.cache
}

// Passable reports whether a mover of the given realm may stand at p.
func (s *Service) Passable(p geo.Point, realm string) bool {
	grid, _ := s.snapshot()
	return grid.Passable(p, realm)
}

// Find computes a waypoint path from start to dest for a mover of the
// given realm. Waypoints are anchored at the exact start point, advance
// one grid step per entry and end at the exact destination. Returns
// errs.ErrUnreachable when no route exists.
func (s *Service) Find(ctx context.Context, start, dest geo.Point, realm string) ([]geo.Point, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	grid, cache := s.snapshot()
	rb := realmBit(realm)

	if start == dest {
		return []geo.Point{start}, nil
	}
	goalCell := grid.cellAt(dest)
	if !grid.passable(goalCell, rb) {
		return nil, errs.ErrUnreachable
	}
	// A player can end up on a cell that a later map edit closed; route
	// from the nearest open cell instead of failing outright.
	startCell, ok := grid.nearestOpen(grid.cellAt(start), rb, 4)
	if !ok {
		return nil, errs.ErrUnreachable
	}
	if startCell == goalCell {
		return []geo.Point{start, dest}, nil
	}

	key := pathKey(rb, startCell, goalCell)
	s.cacheMu.Lock()
	cells, hit := cache.get(key)
	s.cacheMu.Unlock()
	if !hit {
		cells = grid.findPath(startCell, goalCell, rb)
		if cells == nil {
			return nil, errs.ErrUnreachable
		}
		s.cacheMu.Lock()
		cache.put(key, cells)
		s.cacheMu.Unlock()
	}
	return s.waypoints(cells, start, dest), nil
}

// waypoints translates a cell path into world coordinates anchored at the
// caller's exact start point, appending the exact destination.
func (s *Service) waypoints(cells []Cell, start, dest geo.Point) []geo.Point {
	pts := make([]geo.Point, 0, len(cells)+1)
	pts = append(pts, start)
	cur := start
	for i := 1; i < len(cells); i++ {
		cur = geo.Point{
			X: cur.X + (cells[i].X-cells[i-1].X)*s.step,
			Y: cur.Y + (cells[i].Y-cells[i-1].Y)*s.step,
		}
		pts = append(pts, cur)
	}
	if pts[len(pts)-1] != dest {
		pts = append(pts, dest)
	}
	return pts
}
