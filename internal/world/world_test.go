package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
	"github.com/fortrealm/server/internal/geo"
)

func rect(x0, y0, x1, y1 int) []geo.Point {
	return []geo.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func testService(size int, features []Feature) *Service {
	s := NewService(size, 32, 2, 16, zap.NewNop())
	s.Rebuild(features)
	return s
}

func TestFindStraightPath(t *testing.T) {
	s := testService(6144, nil)

	path, err := s.Find(context.Background(), geo.Point{X: 100, Y: 100}, geo.Point{X: 200, Y: 100}, "A")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{
		{X: 100, Y: 100},
		{X: 132, Y: 100},
		{X: 164, Y: 100},
		{X: 196, Y: 100},
		{X: 200, Y: 100},
	}, path)
}

func TestFindTrivialPaths(t *testing.T) {
	s := testService(640, nil)

	// Same point: single waypoint.
	path, err := s.Find(context.Background(), geo.Point{X: 100, Y: 100}, geo.Point{X: 100, Y: 100}, "A")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{{X: 100, Y: 100}}, path)

	// Same cell: straight hop to the exact destination.
	path, err = s.Find(context.Background(), geo.Point{X: 100, Y: 100}, geo.Point{X: 110, Y: 105}, "A")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{{X: 100, Y: 100}, {X: 110, Y: 105}}, path)
}

func TestWallsAndWaterBlock(t *testing.T) {
	s := testService(640, []Feature{
		{ID: 1, Kind: KindWall, Points: rect(128, 128, 191, 191)},
		{ID: 2, Kind: KindWater, Points: rect(320, 320, 383, 383)},
	})

	assert.False(t, s.Passable(geo.Point{X: 140, Y: 140}, "A"))
	assert.False(t, s.Passable(geo.Point{X: 330, Y: 330}, "B"))
	assert.True(t, s.Passable(geo.Point{X: 250, Y: 250}, "A"))

	_, err := s.Find(context.Background(), geo.Point{X: 10, Y: 140}, geo.Point{X: 150, Y: 150}, "A")
	assert.ErrorIs(t, err, errs.ErrUnreachable)

	_, err = s.Find(context.Background(), geo.Point{X: 10, Y: 10}, geo.Point{X: 330, Y: 330}, "A")
	assert.ErrorIs(t, err, errs.ErrUnreachable)
}

func TestPathRoutesAroundWall(t *testing.T) {
	// Vertical wall with open ground above it.
	s := testService(640, []Feature{
		{ID: 1, Kind: KindWall, Points: rect(192, 96, 223, 639)},
	})

	start := geo.Point{X: 100, Y: 300}
	dest := geo.Point{X: 300, Y: 300}
	path, err := s.Find(context.Background(), start, dest, "A")
	require.NoError(t, err)
	assert.Equal(t, start, path[0])
	assert.Equal(t, dest, path[len(path)-1])
	// Detour over the top of the wall is longer than the straight line.
	assert.Greater(t, len(path), 8)
	for _, p := range path {
		assert.True(t, s.Passable(p, "A"), "waypoint %v inside wall", p)
	}
}

func TestRealmRegionsGateMovement(t *testing.T) {
	s := testService(640, []Feature{
		{ID: 1, Kind: KindRegion, Realm: "B", Points: rect(256, 0, 639, 639)},
	})

	dest := geo.Point{X: 400, Y: 100}
	assert.False(t, s.Passable(dest, "A"))
	assert.True(t, s.Passable(dest, "B"))

	_, err := s.Find(context.Background(), geo.Point{X: 10, Y: 100}, dest, "A")
	assert.ErrorIs(t, err, errs.ErrUnreachable)

	path, err := s.Find(context.Background(), geo.Point{X: 10, Y: 100}, dest, "B")
	require.NoError(t, err)
	assert.Equal(t, dest, path[len(path)-1])
}

func TestRoadsArePreferred(t *testing.T) {
	// Road one row above the straight line between start and goal.
	s := testService(640, []Feature{
		{ID: 1, Kind: KindPath, Points: rect(32, 32, 127, 63)},
	})

	start := geo.Point{X: 16, Y: 80}
	dest := geo.Point{X: 150, Y: 85}
	path, err := s.Find(context.Background(), start, dest, "A")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{
		{X: 16, Y: 80},
		{X: 48, Y: 48},
		{X: 80, Y: 48},
		{X: 112, Y: 48},
		{X: 144, Y: 80},
		{X: 150, Y: 85},
	}, path)
}

func TestTwoPointPathStrokesRoad(t *testing.T) {
	// The same road drawn as a single segment rather than an area.
	s := testService(640, []Feature{
		{ID: 1, Kind: KindPath, Points: []geo.Point{{X: 32, Y: 48}, {X: 127, Y: 48}}},
	})

	start := geo.Point{X: 16, Y: 80}
	dest := geo.Point{X: 150, Y: 85}
	path, err := s.Find(context.Background(), start, dest, "A")
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{
		{X: 16, Y: 80},
		{X: 48, Y: 48},
		{X: 80, Y: 48},
		{X: 112, Y: 48},
		{X: 144, Y: 80},
		{X: 150, Y: 85},
	}, path)
}

func TestNoCornerCutting(t *testing.T) {
	// Wall occupies the cell east of the start; the diagonal squeeze
	// past its corner is not allowed.
	s := testService(640, []Feature{
		{ID: 1, Kind: KindWall, Points: rect(32, 0, 63, 31)},
	})

	path, err := s.Find(context.Background(), geo.Point{X: 5, Y: 5}, geo.Point{X: 37, Y: 37}, "A")
	require.NoError(t, err)
	// Forced through (0,1) instead of the straight diagonal.
	require.Len(t, path, 3)
	assert.Equal(t, geo.Point{X: 5, Y: 37}, path[1])
	assert.Equal(t, geo.Point{X: 37, Y: 37}, path[2])
}

func TestStartSnapsOutOfClosedCell(t *testing.T) {
	// A later edit walled the cell the player stands on; routing still
	// works from the nearest open cell.
	s := testService(640, []Feature{
		{ID: 1, Kind: KindWall, Points: rect(96, 96, 127, 127)},
	})

	start := geo.Point{X: 100, Y: 100}
	path, err := s.Find(context.Background(), start, geo.Point{X: 200, Y: 100}, "A")
	require.NoError(t, err)
	assert.Equal(t, start, path[0])
	assert.Equal(t, geo.Point{X: 200, Y: 100}, path[len(path)-1])
}

func TestRebuildDropsCachedPaths(t *testing.T) {
	s := testService(640, nil)

	start := geo.Point{X: 10, Y: 140}
	dest := geo.Point{X: 300, Y: 140}
	_, err := s.Find(context.Background(), start, dest, "A")
	require.NoError(t, err)

	// Wall off the whole corridor; the cached route must not survive.
	s.Rebuild([]Feature{{ID: 1, Kind: KindWall, Points: rect(128, 0, 191, 639)}})
	_, err = s.Find(context.Background(), start, dest, "A")
	assert.ErrorIs(t, err, errs.ErrUnreachable)
}

func TestDegeneratePolygonsIgnored(t *testing.T) {
	s := testService(640, []Feature{
		{ID: 1, Kind: KindWall, Points: []geo.Point{{X: 10, Y: 10}, {X: 50, Y: 50}}},
	})
	assert.True(t, s.Passable(geo.Point{X: 30, Y: 30}, "A"))
}

func TestPassableBounds(t *testing.T) {
	s := testService(640, nil)
	assert.False(t, s.Passable(geo.Point{X: -1, Y: 10}, "A"))
	assert.False(t, s.Passable(geo.Point{X: 10, Y: 640}, "A"))
	assert.True(t, s.Passable(geo.Point{X: 0, Y: 0}, "A"))
}

func TestPathCacheEviction(t *testing.T) {
	c := newPathCache(2)
	c.put("a", []Cell{{X: 1, Y: 1}})
	c.put("b", []Cell{{X: 2, Y: 2}})

	// Touch "a" so "b" is the eviction candidate.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", []Cell{{X: 3, Y: 3}})
	assert.Equal(t, 2, c.len())

	_, ok = c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}
