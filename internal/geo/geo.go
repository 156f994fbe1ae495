// Package geo holds the pure geometry used by pathfinding, walk-permission
// checks, and collectable proximity tests.
package geo

import "math"

// Point is a position on the world grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Polygon is a closed ring of vertices. The closing edge last→first is
// implicit.
type Polygon []Point

// Chebyshev returns the chessboard distance between a and b. One step of a
// walker covers one unit of it regardless of direction, which makes it the
// admissible heuristic for 8-connected search.
func Chebyshev(a, b Point) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Euclid returns the straight-line distance between a and b.
func Euclid(a, b Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Quantize snaps v to the nearest multiple of step.
func Quantize(v, step int) int {
	if step <= 1 {
		return v
	}
	half := step / 2
	if v >= 0 {
		return ((v + half) / step) * step
	}
	return -(((-v + half) / step) * step)
}

// QuantizePoint snaps both coordinates of p to the step grid.
func QuantizePoint(p Point, step int) Point {
	return Point{X: Quantize(p.X, step), Y: Quantize(p.Y, step)}
}

// PointInPolygon reports whether p lies inside poly, by ray casting along +X.
// Points exactly on an edge count as inside.
func PointInPolygon(p Point, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[j]
		if onSegment(p, a, b) {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			// X of the edge at height p.Y, in float to avoid truncation on
			// steep edges.
			xAt := float64(a.X) + float64(p.Y-a.Y)/float64(b.Y-a.Y)*float64(b.X-a.X)
			if float64(p.X) < xAt {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PolygonsContain reports whether any polygon in polys contains p.
func PolygonsContain(p Point, polys []Polygon) bool {
	for _, poly := range polys {
		if PointInPolygon(p, poly) {
			return true
		}
	}
	return false
}

// SegmentIntersectsPolygon reports whether the segment a-b crosses any edge
// of poly or has an endpoint inside it.
func SegmentIntersectsPolygon(a, b Point, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	if PointInPolygon(a, poly) || PointInPolygon(b, poly) {
		return true
	}
	j := n - 1
	for i := 0; i < n; i++ {
		if segmentsCross(a, b, poly[i], poly[j]) {
			return true
		}
		j = i
	}
	return false
}

// onSegment reports whether p lies on the segment a-b.
func onSegment(p, a, b Point) bool {
	if cross(a, b, p) != 0 {
		return false
	}
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// segmentsCross reports whether segments p1-p2 and p3-p4 intersect.
func segmentsCross(p1, p2, p3, p4 Point) bool {
	d1 := sign(cross(p3, p4, p1))
	d2 := sign(cross(p3, p4, p2))
	d3 := sign(cross(p1, p2, p3))
	d4 := sign(cross(p1, p2, p4))
	if d1 != d2 && d3 != d4 {
		return true
	}
	return (d1 == 0 && onSegment(p1, p3, p4)) ||
		(d2 == 0 && onSegment(p2, p3, p4)) ||
		(d3 == 0 && onSegment(p3, p1, p2)) ||
		(d4 == 0 && onSegment(p4, p1, p2))
}

// cross returns the z component of (b-a)×(c-a).
func cross(a, b, c Point) int {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
