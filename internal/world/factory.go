package world

import (
	"fmt"
	"math/rand"

	"github.com/gridvale/server/internal/core/ecs"
	"github.com/gridvale/server/internal/data"
)

// GenConfig controls world generation and entity defaults.
type GenConfig struct {
	Width            int
	Height           int
	NPCCount         int
	StructureDensity float64
	InteractRadius   int
	PlayerMoveMs     int64
	NPCMoveMs        int64
}

// Generate builds a fresh world: terrain, structures at the configured
// density plus a landmark at the origin, and the initial NPC population.
// Players are created later, on their first action.
// personality supplies per-NPC personality text by spawn index.
func Generate(cfg GenConfig, cat *data.Catalog, personality func(i int) string, rng *rand.Rand) (*World, error) {
	w := New(cfg.Width, cfg.Height, rng)
	w.generateTerrain(cat)

	// Landmark structure at the origin, then random structures. Cells that
	// already hold a solid entity are skipped.
	if err := NewStructure(w, ecs.EntityID("structure-0-0"), 0, 0, cat.LandmarkTile); err != nil {
		return nil, fmt.Errorf("place landmark: %w", err)
	}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			if rng.Float64() >= cfg.StructureDensity || w.IsOccupied(x, y) {
				continue
			}
			id := ecs.EntityID(fmt.Sprintf("structure-%d-%d", x, y))
			if err := NewStructure(w, id, x, y, cat.RandomStructureTile(rng)); err != nil {
				return nil, fmt.Errorf("place structure at (%d,%d): %w", x, y, err)
			}
		}
	}

	for i := 0; i < cfg.NPCCount; i++ {
		cell, ok := w.RandomFreeCell(10 * cfg.Width)
		if !ok {
			return nil, fmt.Errorf("no free cell for npc %d", i)
		}
		id := ecs.EntityID(fmt.Sprintf("npc-%d", i))
		err := NewNPC(w, id, cell.X, cell.Y,
			cat.RandomSprite(rng), cat.RandomDirection(rng),
			personality(i), cfg.NPCMoveMs)
		if err != nil {
			return nil, fmt.Errorf("spawn npc %d: %w", i, err)
		}
	}

	return w, nil
}

// NewPlayer creates a player entity at the given cell.
func NewPlayer(w *World, id ecs.EntityID, x, y int, sprite string, interactRadius int, moveMs int64) error {
	if err := w.AddEntity(id, KindPlayer, x, y); err != nil {
		return err
	}
	w.C.Movement.Set(id, &Movement{Speed: 1, MoveInterval: moveMs})
	w.C.Appearance.Set(id, &Appearance{Sprite: sprite, Direction: DirFront})
	w.C.Collision.Set(id, &Collision{Solid: true})
	w.C.Interactable.Set(id, &Interactable{Radius: interactRadius})
	return nil
}

// SpawnPlayer places a new player on a random free cell, falling back to a
// full scan when random placement keeps colliding.
func SpawnPlayer(w *World, id ecs.EntityID, cat *data.Catalog, interactRadius int, moveMs int64) error {
	if cell, ok := w.RandomFreeCell(10 * w.Width); ok {
		return NewPlayer(w, id, cell.X, cell.Y, cat.RandomSprite(w.rng), interactRadius, moveMs)
	}
	for y := 0; y < w.Height; y++ {
		for x := 0; x < w.Width; x++ {
			if !w.IsOccupied(x, y) {
				return NewPlayer(w, id, x, y, cat.RandomSprite(w.rng), interactRadius, moveMs)
			}
		}
	}
	return fmt.Errorf("spawn player %s: %w", id, ErrCellOccupied)
}

// NewNPC creates an NPC entity with the full behavior component set.
func NewNPC(w *World, id ecs.EntityID, x, y int, sprite, direction, personality string, moveMs int64) error {
	if err := w.AddEntity(id, KindNPC, x, y); err != nil {
		return err
	}
	w.C.Movement.Set(id, &Movement{Speed: 1, MoveInterval: moveMs})
	w.C.Appearance.Set(id, &Appearance{Sprite: sprite, Direction: direction})
	w.C.Collision.Set(id, &Collision{Solid: true})
	w.C.AI.Set(id, &AI{Personality: personality})
	w.C.Pathfinding.Set(id, &Pathfinding{})
	return nil
}

// NewStructure creates a solid, immobile structure entity.
func NewStructure(w *World, id ecs.EntityID, x, y, structureNumber int) error {
	if err := w.AddEntity(id, KindStructure, x, y); err != nil {
		return err
	}
	w.C.Appearance.Set(id, &Appearance{Structure: true, StructureNumber: structureNumber})
	w.C.Collision.Set(id, &Collision{Solid: true})
	return nil
}
