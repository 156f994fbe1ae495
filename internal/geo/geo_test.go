package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, size int) Polygon {
	return Polygon{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}
}

func TestChebyshev(t *testing.T) {
	assert.Equal(t, 0, Chebyshev(Point{X: 5, Y: 5}, Point{X: 5, Y: 5}))
	assert.Equal(t, 100, Chebyshev(Point{X: 100, Y: 100}, Point{X: 200, Y: 150}))
	assert.Equal(t, 50, Chebyshev(Point{X: 0, Y: 0}, Point{X: 30, Y: -50}))
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, 96, Quantize(100, 32))
	assert.Equal(t, 128, Quantize(120, 32))
	assert.Equal(t, 0, Quantize(15, 32))
	assert.Equal(t, 32, Quantize(16, 32))
	assert.Equal(t, 6144, Quantize(6140, 32))
	assert.Equal(t, 7, Quantize(7, 1))
}

func TestPointInPolygon(t *testing.T) {
	poly := square(100, 100, 50)

	assert.True(t, PointInPolygon(Point{X: 125, Y: 125}, poly))
	assert.False(t, PointInPolygon(Point{X: 99, Y: 125}, poly))
	assert.False(t, PointInPolygon(Point{X: 200, Y: 200}, poly))

	// Boundary counts as inside.
	assert.True(t, PointInPolygon(Point{X: 100, Y: 120}, poly))
	assert.True(t, PointInPolygon(Point{X: 100, Y: 100}, poly))
}

func TestPointInPolygonConcave(t *testing.T) {
	// U shape: the notch between the arms is outside.
	poly := Polygon{
		{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30},
		{X: 20, Y: 30}, {X: 20, Y: 10}, {X: 10, Y: 10},
		{X: 10, Y: 30}, {X: 0, Y: 30},
	}
	assert.True(t, PointInPolygon(Point{X: 5, Y: 20}, poly))
	assert.True(t, PointInPolygon(Point{X: 25, Y: 20}, poly))
	assert.False(t, PointInPolygon(Point{X: 15, Y: 20}, poly))
}

func TestPolygonsContain(t *testing.T) {
	polys := []Polygon{square(0, 0, 10), square(100, 100, 10)}
	assert.True(t, PolygonsContain(Point{X: 105, Y: 105}, polys))
	assert.False(t, PolygonsContain(Point{X: 50, Y: 50}, polys))
	assert.False(t, PolygonsContain(Point{X: 50, Y: 50}, nil))
}

func TestSegmentIntersectsPolygon(t *testing.T) {
	poly := square(100, 100, 50)

	// Crosses straight through.
	assert.True(t, SegmentIntersectsPolygon(Point{X: 50, Y: 125}, Point{X: 200, Y: 125}, poly))
	// Endpoint inside.
	assert.True(t, SegmentIntersectsPolygon(Point{X: 125, Y: 125}, Point{X: 300, Y: 300}, poly))
	// Entirely outside.
	assert.False(t, SegmentIntersectsPolygon(Point{X: 0, Y: 0}, Point{X: 50, Y: 0}, poly))
	// Grazes a corner.
	assert.True(t, SegmentIntersectsPolygon(Point{X: 50, Y: 150}, Point{X: 150, Y: 50}, poly))
}

func TestQuantizePointStaysInBounds(t *testing.T) {
	p := QuantizePoint(Point{X: 6143, Y: 1}, 32)
	require.Equal(t, Point{X: 6144, Y: 0}, p)
}
