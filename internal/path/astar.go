// Package path implements grid shortest-path search for NPC navigation.
//
// The engine is stateless: walkability is supplied by the caller per
// invocation and recomputed from the live world, since entities appear and
// disappear between calls. Route caching belongs to the caller.
package path

import "container/heap"

// Point is an integer grid cell.
type Point struct {
	X, Y int
}

var neighborOffsets = [4]Point{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// FindPath runs A* over the 4-connected grid from start to goal, using
// Manhattan distance as the heuristic and unit step cost. isWalkable decides
// which cells may be entered; start is always expanded, goal must be
// walkable. The returned path includes both endpoints. A nil result means no
// walkable route exists.
func FindPath(start, goal Point, isWalkable func(x, y int) bool) []Point {
	if start == goal {
		return []Point{start}
	}
	if !isWalkable(goal.X, goal.Y) {
		return nil
	}

	open := &nodeQueue{}
	heap.Init(open)
	heap.Push(open, &node{point: start, f: heuristic(start, goal)})
	gScore := map[Point]int{start: 0}
	closed := make(map[Point]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)
		if _, seen := closed[current.point]; seen {
			continue
		}
		closed[current.point] = struct{}{}
		if current.point == goal {
			return reconstruct(current)
		}

		for _, d := range neighborOffsets {
			next := Point{X: current.point.X + d.X, Y: current.point.Y + d.Y}
			if !isWalkable(next.X, next.Y) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}
			tentative := current.g + 1
			if prev, ok := gScore[next]; ok && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			heap.Push(open, &node{
				point:  next,
				g:      tentative,
				f:      tentative + heuristic(next, goal),
				parent: current,
			})
		}
	}
	return nil
}

func heuristic(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type node struct {
	point  Point
	g      int
	f      int
	index  int
	parent *node
}

type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool { return q[i].f < q[j].f }

func (q nodeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *nodeQueue) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

func reconstruct(end *node) []Point {
	out := make([]Point, 0, end.g+1)
	for n := end; n != nil; n = n.parent {
		out = append(out, n.point)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
