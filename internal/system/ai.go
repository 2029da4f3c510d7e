package system

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gridvale/server/internal/core/ecs"
	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/oracle"
	"github.com/gridvale/server/internal/path"
	"github.com/gridvale/server/internal/world"
)

// Canned lines used when the oracle fails or times out.
const (
	fallbackReply   = "Hmm... interesting."
	fallbackArrival = "I made it!"
)

// replyBubbleMs is how long an NPC reply bubble stays up.
const replyBubbleMs = 3000

const destinationAttempts = 10

// EffectQueue receives deferred world mutations produced off the tick
// goroutine. The session drains it at the start of each tick, so queued
// functions run with exclusive world access.
type EffectQueue interface {
	Enqueue(fn func(now int64))
}

// PromptBuilder constructs oracle prompts. Implemented by scripting.Engine.
type PromptBuilder interface {
	ArrivalPrompt() string
	ProcessPrompt(personality, message string, x, y, bound int) string
}

// AISystem runs the NPC behavior state machine. An NPC is always in exactly
// one of: processing a player message, choosing a destination, replanning a
// route, or walking its route. Oracle calls never block the tick: prompts are
// built here, the request runs on its own goroutine, and the reply comes back
// through the effect queue.
type AISystem struct {
	W       *world.World
	Oracle  oracle.Client
	Prompts PromptBuilder
	Effects EffectQueue
	Log     *zap.Logger

	// Timeout caps each oracle request.
	Timeout time.Duration

	// Observed reports whether anyone is watching this session. Arrival
	// chatter is suppressed when nobody is, to avoid burning oracle calls in
	// empty worlds. Player-triggered replies always go through.
	Observed func() bool

	// Dispatch runs an oracle call. Tests replace it to run synchronously.
	Dispatch func(fn func())
}

func NewAISystem(w *world.World, client oracle.Client, prompts PromptBuilder, effects EffectQueue, timeout time.Duration, observed func() bool, log *zap.Logger) *AISystem {
	return &AISystem{
		W:        w,
		Oracle:   client,
		Prompts:  prompts,
		Effects:  effects,
		Log:      log,
		Timeout:  timeout,
		Observed: observed,
		Dispatch: func(fn func()) { go fn() },
	}
}

func (s *AISystem) Phase() coresys.Phase { return coresys.PhaseAI }

func (s *AISystem) Update(now int64) {
	ecs.Each3(s.W.C.AI, s.W.C.Movement, s.W.C.Pathfinding, func(id ecs.EntityID, ai *world.AI, mov *world.Movement, pf *world.Pathfinding) {
		pos, ok := s.W.C.Position.Get(id)
		if !ok {
			return
		}

		if ai.Processing != nil {
			s.processMessage(id, ai, mov, *pos, now)
			return
		}

		if pf.Target == nil {
			s.pickDestination(pos, pf)
		}

		if len(pf.Path) > 0 {
			s.followPath(id, ai, mov, pf, pos, now)
		} else if pf.Target != nil {
			s.replanRoute(mov, pf, *pos)
		}
	})
}

// processMessage hands the pending player message to the oracle and parks the
// NPC until the reply lands. The pending state is cleared here; the reply (or
// fallback) arrives later through the effect queue.
func (s *AISystem) processMessage(id ecs.EntityID, ai *world.AI, mov *world.Movement, pos world.Position, now int64) {
	pending := ai.Processing
	ai.Processing = nil

	mov.DX = 0
	mov.DY = 0

	// The thinking bubble itself was set when the chat landed; here the
	// indicator only goes into the shared log.
	s.W.AddMessage(world.Message{
		EntityID:   id,
		EntityKind: world.KindNPC,
		Message:    "!",
		Timestamp:  now,
		Position:   pos,
	})

	personality := ai.Personality
	prompt := s.Prompts.ProcessPrompt(personality, pending.Message, pos.X, pos.Y, s.W.Width)

	s.Dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()

		reply, err := s.Oracle.ProcessMessage(ctx, prompt)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.Log.Warn("npc reply failed", zap.String("npc", string(id)), zap.Error(err))
			}
			reply = oracle.Reply{Message: fallbackReply}
		}

		s.Effects.Enqueue(func(now int64) {
			s.applyReply(id, reply, now)
		})
	})
}

// applyReply runs on the tick goroutine. The NPC may have despawned while
// the oracle call was in flight.
func (s *AISystem) applyReply(id ecs.EntityID, reply oracle.Reply, now int64) {
	if !s.W.Has(id) {
		return
	}
	pos, ok := s.W.C.Position.Get(id)
	if !ok {
		return
	}

	state := "notChanged"
	if reply.DestinationChange != nil {
		state = "changed"
	}
	s.W.C.Speech.Set(id, &world.Speech{
		Message:       reply.Message,
		ExpiryTime:    now + replyBubbleMs,
		IsThinking:    true,
		ThinkingState: state,
	})
	s.W.AddMessage(world.Message{
		EntityID:   id,
		EntityKind: world.KindNPC,
		Message:    reply.Message,
		Timestamp:  now,
		Position:   *pos,
	})

	if reply.DestinationChange != nil {
		if pf, ok := s.W.C.Pathfinding.Get(id); ok {
			dest := clampToBounds(*reply.DestinationChange, s.W.Width, s.W.Height)
			pf.Target = &world.Position{X: dest.X, Y: dest.Y}
			pf.Path = nil
		}
	}
}

// pickDestination tries a handful of random cells and keeps the first one a
// route exists to. The pathfinder returns the start cell as the route head;
// only the cells still to visit are cached, so a single-cell route (the pick
// was the cell underfoot) is treated as a miss.
func (s *AISystem) pickDestination(pos *world.Position, pf *world.Pathfinding) {
	rng := s.W.Rand()
	for i := 0; i < destinationAttempts; i++ {
		tx := rng.Intn(s.W.Width)
		ty := rng.Intn(s.W.Height)
		route := path.FindPath(
			path.Point{X: pos.X, Y: pos.Y},
			path.Point{X: tx, Y: ty},
			s.walkable,
		)
		if len(route) > 1 {
			pf.Target = &world.Position{X: tx, Y: ty}
			pf.Path = toPositions(route[1:])
			return
		}
	}
}

// followPath steers toward the head of the cached route and pops waypoints as
// they are reached. Arrival clears the target and triggers arrival chatter.
func (s *AISystem) followPath(id ecs.EntityID, ai *world.AI, mov *world.Movement, pf *world.Pathfinding, pos *world.Position, now int64) {
	next := pf.Path[0]
	mov.DX = sign(next.X - pos.X)
	mov.DY = sign(next.Y - pos.Y)

	if pos.X != next.X || pos.Y != next.Y {
		return
	}
	pf.Path = pf.Path[1:]

	if len(pf.Path) != 0 || pf.Target == nil || pos.X != pf.Target.X || pos.Y != pf.Target.Y {
		return
	}
	pf.Target = nil
	mov.DX = 0
	mov.DY = 0
	s.announceArrival(id, now)
}

// replanRoute rebuilds the route to an existing target, dropping the target
// when it has become unreachable. A single-cell route means the target is
// already underfoot; it is dropped the same way.
func (s *AISystem) replanRoute(mov *world.Movement, pf *world.Pathfinding, pos world.Position) {
	route := path.FindPath(
		path.Point{X: pos.X, Y: pos.Y},
		path.Point{X: pf.Target.X, Y: pf.Target.Y},
		s.walkable,
	)
	if len(route) > 1 {
		pf.Path = toPositions(route[1:])
		return
	}
	pf.Target = nil
	mov.DX = 0
	mov.DY = 0
}

func (s *AISystem) announceArrival(id ecs.EntityID, now int64) {
	if s.Observed != nil && !s.Observed() {
		return
	}
	prompt := s.Prompts.ArrivalPrompt()

	s.Dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()

		msg, err := s.Oracle.GenerateMessage(ctx, prompt)
		if err != nil {
			msg = fallbackArrival
		}

		s.Effects.Enqueue(func(now int64) {
			if !s.W.Has(id) {
				return
			}
			pos, ok := s.W.C.Position.Get(id)
			if !ok {
				return
			}
			s.W.C.Speech.Set(id, &world.Speech{
				Message:    msg,
				ExpiryTime: now + replyBubbleMs,
			})
			s.W.AddMessage(world.Message{
				EntityID:   id,
				EntityKind: world.KindNPC,
				Message:    msg,
				Timestamp:  now,
				Position:   *pos,
			})
		})
	})
}

// walkable is the pathfinding probe: in bounds and not blocked by a solid
// entity.
func (s *AISystem) walkable(x, y int) bool {
	return s.W.InBounds(x, y) && !s.W.IsOccupied(x, y)
}

func toPositions(route []path.Point) []world.Position {
	out := make([]world.Position, len(route))
	for i, p := range route {
		out[i] = world.Position{X: p.X, Y: p.Y}
	}
	return out
}

func clampToBounds(p oracle.Point, width, height int) oracle.Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.X >= width {
		p.X = width - 1
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y >= height {
		p.Y = height - 1
	}
	return p
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
