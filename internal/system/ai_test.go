package system

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridvale/server/internal/core/ecs"
	"github.com/gridvale/server/internal/oracle"
	"github.com/gridvale/server/internal/world"
)

type stubOracle struct {
	generateMsg string
	generateErr error
	reply       oracle.Reply
	replyErr    error

	processPrompts []string
}

func (s *stubOracle) GenerateMessage(ctx context.Context, prompt string) (string, error) {
	return s.generateMsg, s.generateErr
}

func (s *stubOracle) ProcessMessage(ctx context.Context, prompt string) (oracle.Reply, error) {
	s.processPrompts = append(s.processPrompts, prompt)
	return s.reply, s.replyErr
}

type stubPrompts struct{}

func (stubPrompts) ArrivalPrompt() string { return "arrival" }

func (stubPrompts) ProcessPrompt(personality, message string, x, y, bound int) string {
	return fmt.Sprintf("%s|%s|%d,%d|%d", personality, message, x, y, bound)
}

type testQueue struct {
	fns []func(now int64)
}

func (q *testQueue) Enqueue(fn func(now int64)) { q.fns = append(q.fns, fn) }

func (q *testQueue) drain(now int64) {
	fns := q.fns
	q.fns = nil
	for _, fn := range fns {
		fn(now)
	}
}

func newAITestRig(t *testing.T, w *world.World, client oracle.Client) (*AISystem, *testQueue) {
	t.Helper()
	q := &testQueue{}
	sys := NewAISystem(w, client, stubPrompts{}, q, time.Second, func() bool { return true }, zap.NewNop())
	sys.Dispatch = func(fn func()) { fn() }
	return sys, q
}

func spawnTestNPC(t *testing.T, w *world.World, id string, x, y int) {
	t.Helper()
	if err := world.NewNPC(w, ecs.EntityID(id), x, y, "mage", world.DirFront, "grumpy", 1); err != nil {
		t.Fatalf("spawn npc: %v", err)
	}
}

func TestAIPicksDestinationAndWalksToIt(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{generateMsg: "Arrived!"}
	ai, q := newAITestRig(t, w, orc)
	move := NewMoveSystem(w)

	pf, _ := w.C.Pathfinding.Get("npc-0")
	mov, _ := w.C.Movement.Get("npc-0")

	ai.Update(1000)
	if pf.Target == nil || len(pf.Path) == 0 {
		t.Fatal("npc should have picked a reachable destination")
	}
	target := *pf.Target

	// Walk until arrival. Move interval is 1ms, so each tick steps once.
	now := int64(1000)
	for i := 0; i < 500 && pf.Target != nil; i++ {
		ai.Update(now)
		move.Update(now)
		now += 10
	}
	if pf.Target != nil {
		t.Fatalf("npc never reached its destination %v", target)
	}

	pos, _ := w.C.Position.Get("npc-0")
	if pos.X != target.X || pos.Y != target.Y {
		t.Fatalf("npc stopped at (%d,%d), want (%d,%d)", pos.X, pos.Y, target.X, target.Y)
	}
	if mov.DX != 0 || mov.DY != 0 {
		t.Fatal("npc should stop moving on arrival")
	}

	q.drain(now)
	sp, ok := w.C.Speech.Get("npc-0")
	if !ok || sp.Message != "Arrived!" {
		t.Fatalf("arrival speech = %+v", sp)
	}
	msgs := w.Messages()
	if len(msgs) == 0 || msgs[len(msgs)-1].Message != "Arrived!" {
		t.Fatal("arrival message missing from the log")
	}
}

func TestAIRouteHeadIsNextCell(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	ai, _ := newAITestRig(t, w, &stubOracle{})
	move := NewMoveSystem(w)

	ai.Update(1000)

	pf, _ := w.C.Pathfinding.Get("npc-0")
	if pf.Target == nil || len(pf.Path) == 0 {
		t.Fatal("npc should have picked a destination")
	}
	head := pf.Path[0]
	if head.X == 5 && head.Y == 5 {
		t.Fatal("cached route should not start with the current cell")
	}
	if abs(head.X-5)+abs(head.Y-5) != 1 {
		t.Fatalf("route head (%d,%d) is not adjacent to the npc", head.X, head.Y)
	}

	// The plan and the first step land in the same tick.
	move.Update(1000)
	pos, _ := w.C.Position.Get("npc-0")
	if pos.X == 5 && pos.Y == 5 {
		t.Fatal("npc should step toward the route head on the planning tick")
	}
}

func TestAIArrivalFallbackOnOracleError(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{generateErr: errors.New("boom")}
	ai, q := newAITestRig(t, w, orc)

	pf, _ := w.C.Pathfinding.Get("npc-0")
	pf.Target = &world.Position{X: 5, Y: 6}
	pf.Path = []world.Position{{X: 5, Y: 6}}

	// Teleport the walk: place the npc on the final cell, then let the AI
	// observe arrival.
	if !w.MoveEntity("npc-0", 5, 6) {
		t.Fatal("relocate npc")
	}
	ai.Update(1000)
	q.drain(1000)

	sp, ok := w.C.Speech.Get("npc-0")
	if !ok || sp.Message != "I made it!" {
		t.Fatalf("fallback speech = %+v", sp)
	}
}

func TestAIProcessesPlayerMessage(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{reply: oracle.Reply{
		Message:           "Follow me.",
		DestinationChange: &oracle.Point{X: 12, Y: 3},
	}}
	ai, q := newAITestRig(t, w, orc)

	npcAI, _ := w.C.AI.Get("npc-0")
	mov, _ := w.C.Movement.Get("npc-0")
	pf, _ := w.C.Pathfinding.Get("npc-0")
	mov.DX = 1
	npcAI.Processing = &world.PendingMessage{
		Message:          "where is the tavern?",
		FromEntity:       "p1",
		ProcessStartTime: 900,
	}

	ai.Update(1000)

	if npcAI.Processing != nil {
		t.Fatal("processing state should clear the same tick")
	}
	if mov.DX != 0 {
		t.Fatal("npc should stop while thinking")
	}
	if len(orc.processPrompts) != 1 {
		t.Fatalf("oracle calls = %d, want 1", len(orc.processPrompts))
	}
	if orc.processPrompts[0] != "grumpy|where is the tavern?|5,5|20" {
		t.Fatalf("prompt = %q", orc.processPrompts[0])
	}
	msgs := w.Messages()
	if len(msgs) != 1 || msgs[0].Message != "!" {
		t.Fatal("thinking indicator missing from the log")
	}

	q.drain(2000)

	sp, _ := w.C.Speech.Get("npc-0")
	if sp == nil || sp.Message != "Follow me." {
		t.Fatalf("reply speech = %+v", sp)
	}
	if !sp.IsThinking || sp.ThinkingState != "changed" {
		t.Fatalf("reply thinking state = %+v", sp)
	}
	if sp.ExpiryTime != 5000 {
		t.Fatalf("reply expiry = %d, want 5000", sp.ExpiryTime)
	}
	if pf.Target == nil || pf.Target.X != 12 || pf.Target.Y != 3 {
		t.Fatalf("destination = %+v, want (12,3)", pf.Target)
	}
	if pf.Path != nil {
		t.Fatal("old route should be discarded with the new destination")
	}
}

func TestAIReplyFallbackOnOracleError(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{replyErr: errors.New("timeout")}
	ai, q := newAITestRig(t, w, orc)

	npcAI, _ := w.C.AI.Get("npc-0")
	npcAI.Processing = &world.PendingMessage{Message: "hi", FromEntity: "p1"}

	ai.Update(1000)
	q.drain(2000)

	sp, _ := w.C.Speech.Get("npc-0")
	if sp == nil || sp.Message != "Hmm... interesting." {
		t.Fatalf("fallback speech = %+v", sp)
	}
	if sp.ThinkingState != "notChanged" {
		t.Fatalf("fallback thinking state = %q", sp.ThinkingState)
	}
}

func TestAIReplyIgnoredWhenNPCGone(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{reply: oracle.Reply{Message: "late"}}
	ai, q := newAITestRig(t, w, orc)

	npcAI, _ := w.C.AI.Get("npc-0")
	npcAI.Processing = &world.PendingMessage{Message: "hi", FromEntity: "p1"}

	ai.Update(1000)
	w.RemoveEntity("npc-0")
	q.drain(2000)

	if len(w.Messages()) != 1 {
		// Only the "!" indicator should be logged.
		t.Fatalf("messages = %v", w.Messages())
	}
}

func TestAIClampsOutOfBoundsDestination(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 5)
	orc := &stubOracle{reply: oracle.Reply{
		Message:           "Off I go.",
		DestinationChange: &oracle.Point{X: 99, Y: -4},
	}}
	ai, q := newAITestRig(t, w, orc)

	npcAI, _ := w.C.AI.Get("npc-0")
	npcAI.Processing = &world.PendingMessage{Message: "go far", FromEntity: "p1"}

	ai.Update(1000)
	q.drain(2000)

	pf, _ := w.C.Pathfinding.Get("npc-0")
	if pf.Target == nil || pf.Target.X != 19 || pf.Target.Y != 0 {
		t.Fatalf("clamped destination = %+v, want (19,0)", pf.Target)
	}
}

func TestAIUnreachableTargetIsDropped(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 1, 1)
	// Box in the target cell.
	for _, c := range [][2]int{{10, 9}, {10, 11}, {9, 10}, {11, 10}} {
		id := ecs.EntityID(fmt.Sprintf("structure-%d-%d", c[0], c[1]))
		if err := world.NewStructure(w, id, c[0], c[1], 1); err != nil {
			t.Fatalf("place structure: %v", err)
		}
	}
	ai, _ := newAITestRig(t, w, &stubOracle{})

	pf, _ := w.C.Pathfinding.Get("npc-0")
	mov, _ := w.C.Movement.Get("npc-0")
	pf.Target = &world.Position{X: 10, Y: 10}
	mov.DX = 1

	ai.Update(1000)

	if pf.Target != nil {
		t.Fatal("unreachable target should be dropped")
	}
	if mov.DX != 0 {
		t.Fatal("npc should stop when its target is dropped")
	}
}

func TestAIArrivalSuppressedWhenUnobserved(t *testing.T) {
	w := testWorld(t)
	spawnTestNPC(t, w, "npc-0", 5, 6)
	orc := &stubOracle{generateMsg: "nobody hears this"}
	ai, q := newAITestRig(t, w, orc)
	ai.Observed = func() bool { return false }

	pf, _ := w.C.Pathfinding.Get("npc-0")
	pf.Target = &world.Position{X: 5, Y: 6}
	pf.Path = []world.Position{{X: 5, Y: 6}}

	ai.Update(1000)
	q.drain(1000)

	if pf.Target != nil {
		t.Fatal("arrival should still complete")
	}
	if _, ok := w.C.Speech.Get("npc-0"); ok {
		t.Fatal("no arrival speech should be generated in an empty session")
	}
	if len(w.Messages()) != 0 {
		t.Fatal("no arrival message should be logged in an empty session")
	}
}
