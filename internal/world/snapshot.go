package world

import (
	"encoding/json"
	"sort"

	"github.com/gridvale/server/internal/core/ecs"
)

// WireComponents is an entity's component set as serialized to clients.
// Absent components are omitted entirely.
type WireComponents struct {
	Position     *Position     `json:"position,omitempty"`
	Movement     *Movement     `json:"movement,omitempty"`
	Appearance   *Appearance   `json:"appearance,omitempty"`
	Collision    *Collision    `json:"collision,omitempty"`
	Interactable *Interactable `json:"interactable,omitempty"`
	AI           *AI           `json:"ai,omitempty"`
	Pathfinding  *Pathfinding  `json:"pathfinding,omitempty"`
	Speech       *Speech       `json:"speech,omitempty"`
}

// WireEntity is the serialized form of one entity.
type WireEntity struct {
	ID         ecs.EntityID   `json:"id"`
	Type       Kind           `json:"type"`
	Components WireComponents `json:"components"`
}

// EntityPair serializes as a two-element [id, entity] array.
type EntityPair struct {
	ID     ecs.EntityID
	Entity WireEntity
}

func (p EntityPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Entity})
}

// GridPair serializes as a two-element ["x,y", entityId] array.
type GridPair struct {
	Key string
	ID  ecs.EntityID
}

func (p GridPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.ID})
}

// GameState is the full broadcast snapshot of one world. Timestamp is the
// last field so a serialized frame's trailing bytes are the only part that
// varies between identical states; the broadcast layer relies on that to
// stamp the send time without re-serializing.
type GameState struct {
	Entities  []EntityPair `json:"entities"`
	Grid      []GridPair   `json:"grid"`
	Messages  []Message    `json:"messages"`
	Timestamp int64        `json:"timestamp"`
}

// Snapshot exports the world as a deterministic GameState: entities and grid
// cells are sorted so that two snapshots of identical state serialize
// identically, which the broadcast layer relies on for change detection.
func (w *World) Snapshot(now int64) GameState {
	ids := w.sortedIDs()
	entities := make([]EntityPair, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, EntityPair{ID: id, Entity: w.exportEntity(id)})
	}

	grid := make([]GridPair, 0, w.grid.len())
	for k, id := range w.grid.cells {
		grid = append(grid, GridPair{Key: k.wireKey(), ID: id})
	}
	sort.Slice(grid, func(i, j int) bool { return grid[i].Key < grid[j].Key })

	return GameState{
		Entities:  entities,
		Grid:      grid,
		Timestamp: now,
		Messages:  w.log.all(),
	}
}

func (w *World) exportEntity(id ecs.EntityID) WireEntity {
	e := WireEntity{ID: id, Type: w.kinds[id]}
	if c, ok := w.C.Position.Get(id); ok {
		v := *c
		e.Components.Position = &v
	}
	if c, ok := w.C.Movement.Get(id); ok {
		v := *c
		e.Components.Movement = &v
	}
	if c, ok := w.C.Appearance.Get(id); ok {
		v := *c
		e.Components.Appearance = &v
	}
	if c, ok := w.C.Collision.Get(id); ok {
		v := *c
		e.Components.Collision = &v
	}
	if c, ok := w.C.Interactable.Get(id); ok {
		v := *c
		e.Components.Interactable = &v
	}
	if c, ok := w.C.AI.Get(id); ok {
		v := *c
		e.Components.AI = &v
	}
	if c, ok := w.C.Pathfinding.Get(id); ok {
		v := *c
		e.Components.Pathfinding = &v
	}
	if c, ok := w.C.Speech.Get(id); ok {
		v := *c
		e.Components.Speech = &v
	}
	return e
}
