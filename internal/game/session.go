// Package game owns session lifecycle: one world per session, one goroutine
// per world, actions in through a channel, state frames out to subscribers.
package game

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gridvale/server/internal/core/ecs"
	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/data"
	"github.com/gridvale/server/internal/oracle"
	"github.com/gridvale/server/internal/protocol"
	"github.com/gridvale/server/internal/system"
	"github.com/gridvale/server/internal/world"
)

// Player chat bubble lifetimes in ms.
const (
	chatBubbleMs = 10000
	chatFadeMs   = 8000
)

// npcListenBubbleMs is how long the "!" indicator stays up on an NPC that
// overheard a chat message.
const npcListenBubbleMs = 3000

// Subscriber receives state frames for one session.
type Subscriber interface {
	SendState(frame []byte)
}

// Params are the per-session tuning knobs.
type Params struct {
	TickInterval    time.Duration
	ActionQueueSize int
	InteractRadius  int
	PlayerMoveMs    int64
	OracleTimeout   time.Duration
}

// Session runs one world on its own goroutine. All world access happens on
// that goroutine; the outside talks to it through the action channel, the
// effect queue, and the subscriber set.
type Session struct {
	ID string
	W  *world.World

	params  Params
	catalog *data.Catalog
	log     *zap.Logger

	runner  *coresys.Runner
	actions chan protocol.Action

	mu      sync.Mutex
	effects []func(now int64)
	subs    map[Subscriber]struct{}

	lastActive atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSession wires the system pipeline around an already generated world.
func NewSession(id string, w *world.World, client oracle.Client, prompts system.PromptBuilder, params Params, catalog *data.Catalog, log *zap.Logger) *Session {
	s := &Session{
		ID:      id,
		W:       w,
		params:  params,
		catalog: catalog,
		log:     log.With(zap.String("session", id)),
		runner:  coresys.NewRunner(),
		actions: make(chan protocol.Action, params.ActionQueueSize),
		subs:    make(map[Subscriber]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.lastActive.Store(time.Now().UnixMilli())

	s.runner.Register(system.NewAISystem(w, client, prompts, s, params.OracleTimeout, s.observed, s.log))
	s.runner.Register(system.NewMoveSystem(w))
	s.runner.Register(system.NewInteractionSystem(w))
	s.runner.Register(system.NewSpeechSystem(w))
	s.runner.Register(system.NewBroadcastSystem(w, s.broadcast, s.log))

	return s
}

// Enqueue schedules a deferred world mutation. Safe from any goroutine; the
// function runs at the start of the next tick.
func (s *Session) Enqueue(fn func(now int64)) {
	s.mu.Lock()
	s.effects = append(s.effects, fn)
	s.mu.Unlock()
}

// Dispatch queues an inbound action. A full queue drops the action; movement
// intents are resent every input repeat, so drops self-heal.
func (s *Session) Dispatch(a protocol.Action) {
	s.lastActive.Store(time.Now().UnixMilli())
	select {
	case s.actions <- a:
	default:
		s.log.Warn("action queue full, dropping", zap.String("player", a.PlayerID), zap.String("type", a.Type))
	}
}

// Join registers a subscriber and schedules an initial full snapshot for it.
// The snapshot is built on the tick goroutine, never here.
func (s *Session) Join(sub Subscriber) {
	s.lastActive.Store(time.Now().UnixMilli())
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.Enqueue(func(now int64) {
		frame, err := protocol.MarshalStateUpdate(s.W.Snapshot(now))
		if err != nil {
			s.log.Error("marshal initial state", zap.Error(err))
			return
		}
		sub.SendState(frame)
	})
}

// Leave removes a subscriber. The player entity stays in the world so a
// reconnect resumes where it left off.
func (s *Session) Leave(sub Subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// SubscriberCount returns the number of attached subscribers.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// LastActive returns the ms timestamp of the most recent action or join.
func (s *Session) LastActive() int64 {
	return s.lastActive.Load()
}

func (s *Session) observed() bool {
	return s.SubscriberCount() > 0
}

func (s *Session) broadcast(frame []byte) {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.SendState(frame)
	}
}

// Run drives the tick loop until Stop is called.
func (s *Session) Run() {
	defer close(s.done)

	ticker := time.NewTicker(s.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case t := <-ticker.C:
			s.Step(t.UnixMilli())
		}
	}
}

// Stop halts the tick loop and waits for it to exit.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Step executes one tick: pending oracle effects first, then inbound actions,
// then the system pipeline. Exported so tests can drive the loop directly.
func (s *Session) Step(now int64) {
	s.drainEffects(now)
	s.drainActions(now)
	s.runner.Tick(now)
}

func (s *Session) drainEffects(now int64) {
	s.mu.Lock()
	pending := s.effects
	s.effects = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn(now)
	}
}

func (s *Session) drainActions(now int64) {
	for {
		select {
		case a := <-s.actions:
			s.handleAction(a, now)
		default:
			return
		}
	}
}

func (s *Session) handleAction(a protocol.Action, now int64) {
	id := ecs.EntityID(a.PlayerID)
	if !s.W.Has(id) {
		if err := world.SpawnPlayer(s.W, id, s.catalog, s.params.InteractRadius, s.params.PlayerMoveMs); err != nil {
			s.log.Error("spawn player", zap.String("player", a.PlayerID), zap.Error(err))
			return
		}
		s.log.Info("player joined", zap.String("player", a.PlayerID))
	}

	switch a.Type {
	case protocol.ActionMove:
		if mov, ok := s.W.C.Movement.Get(id); ok {
			mov.DX = a.Move.DX
			mov.DY = a.Move.DY
		}
	case protocol.ActionChat:
		s.handleChat(id, a.Chat.Message, now)
	case protocol.ActionInteract:
		// Proximity highlighting covers interaction today.
	}
}

// handleChat posts the player's bubble and hands the message to every NPC in
// earshot. Earshot is the player's interaction radius, measured as straight
// line distance.
func (s *Session) handleChat(id ecs.EntityID, message string, now int64) {
	pos, ok := s.W.C.Position.Get(id)
	if !ok {
		return
	}
	inter, ok := s.W.C.Interactable.Get(id)
	if !ok {
		return
	}

	s.W.AddMessage(world.Message{
		EntityID:   id,
		EntityKind: world.KindPlayer,
		Message:    message,
		Timestamp:  now,
		Position:   *pos,
	})
	s.W.C.Speech.Set(id, &world.Speech{
		Message:       message,
		ExpiryTime:    now + chatBubbleMs,
		FadeStartTime: now + chatFadeMs,
	})

	radius := float64(inter.Radius)
	ecs.Each2(s.W.C.AI, s.W.C.Position, func(nid ecs.EntityID, ai *world.AI, npos *world.Position) {
		dx := float64(npos.X - pos.X)
		dy := float64(npos.Y - pos.Y)
		if math.Sqrt(dx*dx+dy*dy) > radius {
			return
		}

		s.W.C.Speech.Set(nid, &world.Speech{
			Message:       "!",
			ExpiryTime:    now + npcListenBubbleMs,
			IsThinking:    true,
			ThinkingState: world.ThinkingStates[0],
		})
		if mov, ok := s.W.C.Movement.Get(nid); ok {
			mov.DX = 0
			mov.DY = 0
		}
		ai.Processing = &world.PendingMessage{
			Message:          message,
			FromEntity:       id,
			ProcessStartTime: now,
		}
	})
}
