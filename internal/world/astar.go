package world

import "container/heap"

// Movement costs, scaled by 2 so road discounts stay integral. Roads are
// cheaper than open ground, which pulls paths onto drawn roads without
// breaking heuristic admissibility (min step cost = costRoadOrth).
const (
	costOrth     = 10
	costDiag     = 14
	costRoadOrth = 6
	costRoadDiag = 8
)

var neighborOffsets = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

type pathNode struct {
	cell  Cell
	f     int
	g     int
	order int // insertion tiebreak, keeps expansion deterministic
	index int
}

type nodeHeap []*pathNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].order < h[j].order
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return n
}

func chebyshev(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// findPath runs A* over the cell grid from start to goal for a mover of
// the given realm. Diagonal steps are allowed only when both adjacent
// orthogonal cells are open, so paths never cut wall corners. Returns the
// cell sequence including both endpoints, or nil when no path exists.
func (g *Grid) findPath(start, goal Cell, realm byte) []Cell {
	if start == goal {
		return []Cell{start}
	}
	if !g.passable(goal, realm) {
		return nil
	}

	idx := func(c Cell) int { return c.Y*g.width + c.X }

	gScore := make(map[int]int, 256)
	parent := make(map[int]int, 256)
	closed := make(map[int]bool, 256)

	open := &nodeHeap{}
	heap.Init(open)
	order := 0
	heap.Push(open, &pathNode{cell: start, g: 0, f: chebyshev(start, goal) * costRoadOrth, order: order})
	gScore[idx(start)] = 0

	// Hard cap: a grid can never hold more open states than cells.
	limit := g.width * g.height

	for open.Len() > 0 && limit > 0 {
		limit--
		cur := heap.Pop(open).(*pathNode)
		ci := idx(cur.cell)
		if closed[ci] {
			continue
		}
		closed[ci] = true

		if cur.cell == goal {
			return g.rebuildPath(parent, start, goal)
		}

		for _, off := range neighborOffsets {
			next := Cell{X: cur.cell.X + off[0], Y: cur.cell.Y + off[1]}
			if !g.passable(next, realm) {
				continue
			}
			diag := off[0] != 0 && off[1] != 0
			if diag {
				// corner-cut guard
				if !g.passable(Cell{X: cur.cell.X + off[0], Y: cur.cell.Y}, realm) ||
					!g.passable(Cell{X: cur.cell.X, Y: cur.cell.Y + off[1]}, realm) {
					continue
				}
			}
			step := costOrth
			if g.road(next) {
				step = costRoadOrth
				if diag {
					step = costRoadDiag
				}
			} else if diag {
				step = costDiag
			}
			ni := idx(next)
			tentative := cur.g + step
			if prev, ok := gScore[ni]; ok && tentative >= prev {
				continue
			}
			gScore[ni] = tentative
			parent[ni] = ci
			order++
			heap.Push(open, &pathNode{
				cell:  next,
				g:     tentative,
				f:     tentative + chebyshev(next, goal)*costRoadOrth,
				order: order,
			})
		}
	}
	return nil
}

func (g *Grid) rebuildPath(parent map[int]int, start, goal Cell) []Cell {
	idx := func(c Cell) int { return c.Y*g.width + c.X }
	cellOf := func(i int) Cell { return Cell{X: i % g.width, Y: i / g.width} }

	out := []Cell{goal}
	cur := idx(goal)
	si := idx(start)
	for cur != si {
		p, ok := parent[cur]
		if !ok {
			return nil
		}
		cur = p
		out = append(out, cellOf(cur))
	}
	// reverse in place
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
