package world

import (
	"strings"

	"github.com/fortrealm/server/internal/geo"
)

// Feature kinds, mirroring the map_features table.
const (
	KindRegion = "region"
	KindPath   = "path"
	KindWall   = "wall"
	KindWater  = "water"
)

// Feature is one drawn map polygon: a realm region, a road, a wall or a
// body of water.
type Feature struct {
	ID     int64       `json:"id"`
	Kind   string      `json:"kind"`
	Name   string      `json:"name"`
	Realm  string      `json:"realm,omitempty"`
	Points []geo.Point `json:"points"`
}

// Cell flag constants. Cells are step-sized squares; a cell carries the
// union of flags of every polygon covering its center.
const (
	cellWall  byte = 0x01
	cellWater byte = 0x02
	cellRoad  byte = 0x04
	// bits 4-6 tag realm regions
	cellRealmA    byte = 0x10
	cellRealmB    byte = 0x20
	cellRealmC    byte = 0x40
	cellRealmMask byte = 0x70
)

func realmBit(realm string) byte {
	switch strings.ToUpper(realm) {
	case "A":
		return cellRealmA
	case "B":
		return cellRealmB
	case "C":
		return cellRealmC
	}
	return 0
}

// Cell is a quantized grid coordinate (world coordinate / step).
type Cell struct {
	X, Y int
}

// Grid is the rasterized passability map: one byte per step-sized cell,
// flat array indexed [y*width + x]. A grid is immutable after build;
// map edits construct a replacement.
type Grid struct {
	cells  []byte
	width  int
	height int
	step   int
}

// NewGrid rasterizes the given features onto a size x size world with the
// given cell step. Degenerate features (polygons under three points,
// paths under two) are ignored.
func NewGrid(size, step int, features []Feature) *Grid {
	w := size / step
	if size%step != 0 {
		w++
	}
	g := &Grid{
		cells:  make([]byte, w*w),
		width:  w,
		height: w,
		step:   step,
	}
	for _, f := range features {
		g.paint(f)
	}
	return g
}

func (g *Grid) paint(f Feature) {
	var flag byte
	switch f.Kind {
	case KindWall:
		flag = cellWall
	case KindWater:
		flag = cellWater
	case KindPath:
		flag = cellRoad
	case KindRegion:
		flag = realmBit(f.Realm)
	}
	if flag == 0 {
		return
	}
	// A two-point path is a road segment, stroked cell by cell. Everything
	// else is an area fill.
	if f.Kind == KindPath && len(f.Points) == 2 {
		g.strokeSegment(f.Points[0], f.Points[1], flag)
		return
	}
	if len(f.Points) < 3 {
		return
	}

	minX, minY, maxX, maxY := polyBounds(f.Points)
	c0 := g.cellAt(geo.Point{X: minX, Y: minY})
	c1 := g.cellAt(geo.Point{X: maxX, Y: maxY})
	for cy := c0.Y; cy <= c1.Y; cy++ {
		for cx := c0.X; cx <= c1.X; cx++ {
			if cx < 0 || cy < 0 || cx >= g.width || cy >= g.height {
				continue
			}
			center := geo.Point{X: cx*g.step + g.step/2, Y: cy*g.step + g.step/2}
			if geo.PointInPolygon(center, f.Points) {
				g.cells[cy*g.width+cx] |= flag
			}
		}
	}
}

// strokeSegment walks the cell line from a to b and ors flag onto every
// cell it crosses.
func (g *Grid) strokeSegment(a, b geo.Point, flag byte) {
	c := g.cellAt(a)
	end := g.cellAt(b)
	dx, dy := iabs(end.X-c.X), -iabs(end.Y-c.Y)
	sx, sy := 1, 1
	if c.X > end.X {
		sx = -1
	}
	if c.Y > end.Y {
		sy = -1
	}
	e := dx + dy
	for {
		if g.inBounds(c) {
			g.cells[c.Y*g.width+c.X] |= flag
		}
		if c == end {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			c.X += sx
		}
		if e2 <= dx {
			e += dx
			c.Y += sy
		}
	}
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func polyBounds(pts []geo.Point) (minX, minY, maxX, maxY int) {
	minX, minY = pts[0].X, pts[0].Y
	maxX, maxY = pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return
}

func (g *Grid) cellAt(p geo.Point) Cell {
	return Cell{X: p.X / g.step, Y: p.Y / g.step}
}

func (g *Grid) inBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

func (g *Grid) flags(c Cell) byte {
	if !g.inBounds(c) {
		return cellWall
	}
	return g.cells[c.Y*g.width+c.X]
}

// passable reports whether a mover of the given realm may stand on cell c.
// Walls and water block everyone. A cell tagged with realm regions blocks
// movers whose realm is not among the tags; untagged cells are neutral
// ground open to all.
func (g *Grid) passable(c Cell, realm byte) bool {
	f := g.flags(c)
	if f&(cellWall|cellWater) != 0 {
		return false
	}
	if mask := f & cellRealmMask; mask != 0 && mask&realm == 0 {
		return false
	}
	return true
}

func (g *Grid) road(c Cell) bool {
	return g.flags(c)&cellRoad != 0
}

// Passable reports whether the world point p is standable for the realm.
func (g *Grid) Passable(p geo.Point, realm string) bool {
	if p.X < 0 || p.Y < 0 || p.X >= g.width*g.step || p.Y >= g.height*g.step {
		return false
	}
	return g.passable(g.cellAt(p), realmBit(realm))
}

// nearestOpen searches outward rings around c for the closest passable
// cell, up to maxR rings. Returns c itself when it is already passable.
func (g *Grid) nearestOpen(c Cell, realm byte, maxR int) (Cell, bool) {
	if g.passable(c, realm) {
		return c, true
	}
	for r := 1; r <= maxR; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx > -r && dx < r && dy > -r && dy < r {
					continue // interior already visited
				}
				n := Cell{X: c.X + dx, Y: c.Y + dy}
				if g.passable(n, realm) {
					return n, true
				}
			}
		}
	}
	return c, false
}
