package world

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/gridvale/server/internal/core/ecs"
)

var (
	// ErrOutOfBounds is returned when an entity is placed outside the grid.
	ErrOutOfBounds = errors.New("world: position out of bounds")
	// ErrCellOccupied is returned when an entity is placed onto a cell that
	// already holds a solid occupant.
	ErrCellOccupied = errors.New("world: cell occupied by solid entity")
	// ErrDuplicateEntity is returned when an entity id is added twice.
	ErrDuplicateEntity = errors.New("world: duplicate entity id")
)

// World owns the entity table, component stores, occupancy grid, static
// terrain, and the bounded message log for one session.
// Single-goroutine access only (the session's tick loop).
type World struct {
	Width  int
	Height int

	// C exposes the typed component stores for systems.
	C *Components

	kinds map[ecs.EntityID]Kind
	ids   []ecs.EntityID // insertion order, for deterministic snapshots
	grid  *occupancyGrid
	tiles []Tile
	log   messageLog
	rng   *rand.Rand
}

// New creates an empty world of the given size. Terrain and entities are
// populated by Generate.
func New(width, height int, rng *rand.Rand) *World {
	return &World{
		Width:  width,
		Height: height,
		C:      newComponents(),
		kinds:  make(map[ecs.EntityID]Kind, 64),
		grid:   newOccupancyGrid(),
		tiles:  make([]Tile, width*height),
		rng:    rng,
	}
}

// Rand returns the world's random source.
func (w *World) Rand() *rand.Rand { return w.rng }

// InBounds reports whether the cell lies inside [0,width)×[0,height).
func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.Width && y >= 0 && y < w.Height
}

// Has reports whether an entity with the given id exists.
func (w *World) Has(id ecs.EntityID) bool {
	_, ok := w.kinds[id]
	return ok
}

// KindOf returns the kind tag for an entity.
func (w *World) KindOf(id ecs.EntityID) (Kind, bool) {
	k, ok := w.kinds[id]
	return k, ok
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return len(w.kinds)
}

// EachEntity iterates all entities in insertion order.
func (w *World) EachEntity(fn func(ecs.EntityID, Kind)) {
	for _, id := range w.ids {
		fn(id, w.kinds[id])
	}
}

// AddEntity registers a new entity at the given cell, inserting into both the
// entity table and the occupancy grid. Placement onto a cell held by a solid
// entity is rejected.
func (w *World) AddEntity(id ecs.EntityID, kind Kind, x, y int) error {
	if w.Has(id) {
		return ErrDuplicateEntity
	}
	if !w.InBounds(x, y) {
		return ErrOutOfBounds
	}
	if w.IsOccupied(x, y) {
		return ErrCellOccupied
	}
	w.kinds[id] = kind
	w.ids = append(w.ids, id)
	w.C.Position.Set(id, &Position{X: x, Y: y})
	w.grid.occupy(x, y, id)
	return nil
}

// RemoveEntity deletes an entity from the entity table, the occupancy grid,
// and every component store.
func (w *World) RemoveEntity(id ecs.EntityID) {
	if !w.Has(id) {
		return
	}
	if pos, ok := w.C.Position.Get(id); ok {
		w.grid.vacate(pos.X, pos.Y, id)
	}
	w.C.removeAll(id)
	delete(w.kinds, id)
	for i, eid := range w.ids {
		if eid == id {
			w.ids = append(w.ids[:i], w.ids[i+1:]...)
			break
		}
	}
}

// IsOccupied reports whether the cell's occupant (if any) is solid.
func (w *World) IsOccupied(x, y int) bool {
	id, ok := w.grid.occupantAt(x, y)
	if !ok {
		return false
	}
	col, ok := w.C.Collision.Get(id)
	return ok && col.Solid
}

// OccupantAt returns the entity occupying a cell, if any.
func (w *World) OccupantAt(x, y int) (ecs.EntityID, bool) {
	return w.grid.occupantAt(x, y)
}

// MoveEntity attempts to move an entity to a new cell. It fails (returning
// false with no mutation) when the target is out of bounds or occupied by a
// solid entity; otherwise Position and the occupancy grid are updated
// together. A blocked move is a normal, silent no-op for the caller.
func (w *World) MoveEntity(id ecs.EntityID, newX, newY int) bool {
	pos, ok := w.C.Position.Get(id)
	if !ok {
		return false
	}
	if !w.InBounds(newX, newY) {
		return false
	}
	if w.IsOccupied(newX, newY) {
		return false
	}
	w.grid.move(pos.X, pos.Y, newX, newY, id)
	pos.X = newX
	pos.Y = newY
	return true
}

// RandomFreeCell picks an unoccupied cell uniformly at random, retrying up to
// tries times. ok is false when every attempt hit an occupied cell.
func (w *World) RandomFreeCell(tries int) (Position, bool) {
	for i := 0; i < tries; i++ {
		x := w.rng.Intn(w.Width)
		y := w.rng.Intn(w.Height)
		if !w.IsOccupied(x, y) {
			return Position{X: x, Y: y}, true
		}
	}
	return Position{}, false
}

// AddMessage appends to the world's chat log, evicting the oldest entry once
// the log exceeds its capacity.
func (w *World) AddMessage(m Message) {
	w.log.add(m)
}

// Messages returns a copy of the chat log, oldest first.
func (w *World) Messages() []Message {
	return w.log.all()
}

// sortedIDs returns entity ids in lexical order, for snapshot determinism.
func (w *World) sortedIDs() []ecs.EntityID {
	out := make([]ecs.EntityID, len(w.ids))
	copy(out, w.ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
