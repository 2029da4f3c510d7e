// Package system implements the per-tick gameplay systems: NPC behavior,
// movement, proximity highlighting, speech expiry, and state broadcast.
package system

import (
	"github.com/gridvale/server/internal/core/ecs"
	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/world"
)

// MoveSystem applies velocity intents to positions. Each entity moves at most
// one cell per MoveInterval; the velocity persists between ticks, so a held
// key keeps the entity walking.
type MoveSystem struct {
	W *world.World
}

func NewMoveSystem(w *world.World) *MoveSystem {
	return &MoveSystem{W: w}
}

func (s *MoveSystem) Phase() coresys.Phase { return coresys.PhaseMove }

func (s *MoveSystem) Update(now int64) {
	ecs.Each2(s.W.C.Movement, s.W.C.Position, func(id ecs.EntityID, mov *world.Movement, pos *world.Position) {
		if mov.DX == 0 && mov.DY == 0 {
			if app, ok := s.W.C.Appearance.Get(id); ok {
				app.IsMoving = false
			}
			return
		}
		if mov.LastMoveTime != 0 && now-mov.LastMoveTime < mov.MoveInterval {
			return
		}

		newX := pos.X + mov.DX
		newY := pos.Y + mov.DY

		if s.W.MoveEntity(id, newX, newY) {
			mov.LastMoveTime = now
			if app, ok := s.W.C.Appearance.Get(id); ok {
				switch {
				case mov.DX > 0:
					app.Direction = world.DirRight
				case mov.DX < 0:
					app.Direction = world.DirLeft
				case mov.DY > 0:
					app.Direction = world.DirFront
				case mov.DY < 0:
					app.Direction = world.DirBack
				}
				app.IsMoving = true
			}
			return
		}

		// Blocked. NPCs drop their cached route so the next AI pass replans
		// around whatever moved into the way; the target survives.
		if pf, ok := s.W.C.Pathfinding.Get(id); ok {
			pf.Path = nil
			mov.DX = 0
			mov.DY = 0
		}
	})
}
