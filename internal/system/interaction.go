package system

import (
	"github.com/gridvale/server/internal/core/ecs"
	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/world"
)

// InteractionSystem highlights NPCs within any player's interaction radius.
type InteractionSystem struct {
	W *world.World
}

func NewInteractionSystem(w *world.World) *InteractionSystem {
	return &InteractionSystem{W: w}
}

func (s *InteractionSystem) Phase() coresys.Phase { return coresys.PhaseInteract }

func (s *InteractionSystem) Update(now int64) {
	// Clear first so NPCs that fell out of everyone's range go dark.
	ecs.Each2(s.W.C.AI, s.W.C.Appearance, func(id ecs.EntityID, _ *world.AI, app *world.Appearance) {
		app.Highlighted = false
	})

	ecs.Each2(s.W.C.Interactable, s.W.C.Position, func(pid ecs.EntityID, inter *world.Interactable, ppos *world.Position) {
		ecs.Each3(s.W.C.AI, s.W.C.Position, s.W.C.Appearance, func(nid ecs.EntityID, _ *world.AI, npos *world.Position, app *world.Appearance) {
			dist := abs(npos.X-ppos.X) + abs(npos.Y-ppos.Y)
			if dist <= inter.Radius {
				app.Highlighted = true
			}
		})
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
