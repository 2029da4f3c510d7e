package world

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gridvale/server/internal/core/ecs"
	"github.com/gridvale/server/internal/data"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return New(20, 20, rand.New(rand.NewSource(1)))
}

func TestAddEntityRejectsOccupiedCell(t *testing.T) {
	w := newTestWorld(t)

	if err := NewStructure(w, "structure-3-3", 3, 3, 1); err != nil {
		t.Fatalf("place structure: %v", err)
	}
	err := NewPlayer(w, "p1", 3, 3, "hero", 5, 100)
	if err == nil {
		t.Fatal("expected placement onto solid occupant to fail")
	}
	if w.Has("p1") {
		t.Fatal("failed placement should not register the entity")
	}
}

func TestAddEntityRejectsOutOfBounds(t *testing.T) {
	w := newTestWorld(t)

	if err := w.AddEntity("p1", KindPlayer, 20, 0); err == nil {
		t.Fatal("expected out of bounds placement to fail")
	}
	if err := w.AddEntity("p1", KindPlayer, -1, 5); err == nil {
		t.Fatal("expected negative coordinate placement to fail")
	}
}

func TestAddEntityRejectsDuplicateID(t *testing.T) {
	w := newTestWorld(t)

	if err := w.AddEntity("p1", KindPlayer, 1, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := w.AddEntity("p1", KindPlayer, 2, 2); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestMoveEntityKeepsGridConsistent(t *testing.T) {
	w := newTestWorld(t)
	if err := NewPlayer(w, "p1", 5, 5, "hero", 5, 100); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if !w.MoveEntity("p1", 5, 6) {
		t.Fatal("move into free cell should succeed")
	}
	if _, ok := w.OccupantAt(5, 5); ok {
		t.Fatal("old cell should be vacated")
	}
	id, ok := w.OccupantAt(5, 6)
	if !ok || id != "p1" {
		t.Fatalf("new cell occupant = %q, want p1", id)
	}
	pos, _ := w.C.Position.Get("p1")
	if pos.X != 5 || pos.Y != 6 {
		t.Fatalf("position = (%d,%d), want (5,6)", pos.X, pos.Y)
	}
}

func TestMoveEntityBlockedBySolid(t *testing.T) {
	w := newTestWorld(t)
	if err := NewPlayer(w, "p1", 5, 5, "hero", 5, 100); err != nil {
		t.Fatalf("spawn p1: %v", err)
	}
	if err := NewStructure(w, "structure-5-6", 5, 6, 2); err != nil {
		t.Fatalf("place structure: %v", err)
	}

	if w.MoveEntity("p1", 5, 6) {
		t.Fatal("move into solid occupant should fail")
	}
	pos, _ := w.C.Position.Get("p1")
	if pos.X != 5 || pos.Y != 5 {
		t.Fatalf("blocked move mutated position to (%d,%d)", pos.X, pos.Y)
	}
	if w.MoveEntity("p1", -1, 5) {
		t.Fatal("move out of bounds should fail")
	}
}

func TestRemoveEntityClearsEverything(t *testing.T) {
	w := newTestWorld(t)
	if err := NewNPC(w, "npc-0", 4, 4, "mage", DirFront, "grumpy", 500); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	w.RemoveEntity("npc-0")

	if w.Has("npc-0") {
		t.Fatal("entity still registered after removal")
	}
	if _, ok := w.OccupantAt(4, 4); ok {
		t.Fatal("grid cell still occupied after removal")
	}
	if _, ok := w.C.AI.Get("npc-0"); ok {
		t.Fatal("AI component survived removal")
	}
	if _, ok := w.C.Position.Get("npc-0"); ok {
		t.Fatal("Position component survived removal")
	}
}

func TestMessageLogEvictsOldest(t *testing.T) {
	w := newTestWorld(t)

	for i := 0; i < MessageLogCapacity+50; i++ {
		w.AddMessage(Message{
			EntityID:  "p1",
			Message:   fmt.Sprintf("msg-%d", i),
			Timestamp: int64(i),
		})
	}

	got := w.Messages()
	if len(got) != MessageLogCapacity {
		t.Fatalf("log length = %d, want %d", len(got), MessageLogCapacity)
	}
	if got[0].Message != "msg-50" {
		t.Fatalf("oldest surviving message = %q, want msg-50", got[0].Message)
	}
	if got[len(got)-1].Message != fmt.Sprintf("msg-%d", MessageLogCapacity+49) {
		t.Fatalf("newest message = %q", got[len(got)-1].Message)
	}
}

func TestGeneratePlacesLandmarkAndNPCs(t *testing.T) {
	cat := data.DefaultCatalog()
	w, err := Generate(GenConfig{
		Width:            30,
		Height:           30,
		NPCCount:         5,
		StructureDensity: 0.1,
		InteractRadius:   5,
		PlayerMoveMs:     100,
		NPCMoveMs:        500,
	}, cat, func(i int) string { return "quirky" }, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	id, ok := w.OccupantAt(0, 0)
	if !ok || id != "structure-0-0" {
		t.Fatalf("origin occupant = %q, want landmark structure", id)
	}
	app, _ := w.C.Appearance.Get("structure-0-0")
	if app.StructureNumber != cat.LandmarkTile {
		t.Fatalf("landmark tile = %d, want %d", app.StructureNumber, cat.LandmarkTile)
	}

	npcs := 0
	w.EachEntity(func(id ecs.EntityID, kind Kind) {
		if kind != KindNPC {
			return
		}
		npcs++
		if ai, ok := w.C.AI.Get(id); !ok || ai.Personality != "quirky" {
			t.Fatalf("npc %s missing personality", id)
		}
		if _, ok := w.C.Pathfinding.Get(id); !ok {
			t.Fatalf("npc %s missing pathfinding", id)
		}
	})
	if npcs != 5 {
		t.Fatalf("npc count = %d, want 5", npcs)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	w := newTestWorld(t)
	if err := NewPlayer(w, "zed", 1, 1, "hero", 5, 100); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := NewNPC(w, "npc-0", 2, 2, "mage", DirFront, "p", 500); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	a := w.Snapshot(1000)
	b := w.Snapshot(1000)

	if len(a.Entities) != len(b.Entities) || len(a.Entities) != 2 {
		t.Fatalf("entity counts differ: %d vs %d", len(a.Entities), len(b.Entities))
	}
	for i := range a.Entities {
		if a.Entities[i].ID != b.Entities[i].ID {
			t.Fatalf("entity order not stable at %d: %s vs %s", i, a.Entities[i].ID, b.Entities[i].ID)
		}
	}
	// IDs must come out sorted regardless of insertion order.
	if a.Entities[0].ID != "npc-0" || a.Entities[1].ID != "zed" {
		t.Fatalf("entities not sorted: %s, %s", a.Entities[0].ID, a.Entities[1].ID)
	}
	for i := 1; i < len(a.Grid); i++ {
		if a.Grid[i-1].Key >= a.Grid[i].Key {
			t.Fatalf("grid keys not sorted: %s >= %s", a.Grid[i-1].Key, a.Grid[i].Key)
		}
	}
}

func TestRandomFreeCellAvoidsSolid(t *testing.T) {
	w := New(2, 1, rand.New(rand.NewSource(3)))
	if err := NewStructure(w, "structure-0-0", 0, 0, 1); err != nil {
		t.Fatalf("place structure: %v", err)
	}

	cell, ok := w.RandomFreeCell(100)
	if !ok {
		t.Fatal("expected to find the one free cell")
	}
	if cell.X != 1 || cell.Y != 0 {
		t.Fatalf("free cell = (%d,%d), want (1,0)", cell.X, cell.Y)
	}
}
