package world

import (
	"fmt"

	"github.com/gridvale/server/internal/core/ecs"
)

// cellKey uniquely identifies a grid cell.
type cellKey struct {
	X, Y int
}

// wireKey is the string form used in state snapshots ("x,y").
func (k cellKey) wireKey() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// occupancyGrid is a cell occupancy map for O(1) collision queries.
// One occupant per cell; placement into a cell held by a solid entity is a
// rejected operation, never a silent overwrite.
type occupancyGrid struct {
	cells map[cellKey]ecs.EntityID
}

func newOccupancyGrid() *occupancyGrid {
	return &occupancyGrid{cells: make(map[cellKey]ecs.EntityID)}
}

func (g *occupancyGrid) occupantAt(x, y int) (ecs.EntityID, bool) {
	id, ok := g.cells[cellKey{X: x, Y: y}]
	return id, ok
}

func (g *occupancyGrid) occupy(x, y int, id ecs.EntityID) {
	g.cells[cellKey{X: x, Y: y}] = id
}

func (g *occupancyGrid) vacate(x, y int, id ecs.EntityID) {
	k := cellKey{X: x, Y: y}
	if g.cells[k] == id {
		delete(g.cells, k)
	}
}

// move atomically vacates the old cell and occupies the new one.
func (g *occupancyGrid) move(oldX, oldY, newX, newY int, id ecs.EntityID) {
	if oldX == newX && oldY == newY {
		return
	}
	g.vacate(oldX, oldY, id)
	g.occupy(newX, newY, id)
}

func (g *occupancyGrid) len() int {
	return len(g.cells)
}
