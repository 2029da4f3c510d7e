package world

import (
	"github.com/gridvale/server/internal/core/ecs"
)

// Kind tags an entity as player, NPC, or structure.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNPC
	KindStructure
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	case KindStructure:
		return "structure"
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Position is an integer grid cell. It is the single source of truth for an
// entity's location; the occupancy grid is updated in the same operation
// whenever it changes.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Facing directions, matching the client sprite sheets.
const (
	DirFront = "fr"
	DirBack  = "bk"
	DirLeft  = "lf"
	DirRight = "rt"
)

// Movement holds the current velocity intent and the per-entity move cadence.
// DX/DY are -1, 0, or 1. LastMoveTime is 0 until the first accepted move.
type Movement struct {
	DX           int   `json:"dx"`
	DY           int   `json:"dy"`
	Speed        int   `json:"speed"`
	LastMoveTime int64 `json:"lastMoveTime,omitempty"`
	MoveInterval int64 `json:"moveInterval"`
}

// Appearance is presentation state driven by the simulation.
type Appearance struct {
	Sprite          string `json:"sprite,omitempty"`
	Direction       string `json:"direction,omitempty"`
	IsMoving        bool   `json:"isMoving,omitempty"`
	Highlighted     bool   `json:"highlighted,omitempty"`
	Structure       bool   `json:"structure,omitempty"`
	StructureNumber int    `json:"structureNumber,omitempty"`
}

// Collision marks occupancy semantics for the entity's cell.
type Collision struct {
	Solid bool `json:"solid"`
}

// Interactable is the proximity-interaction range for players.
type Interactable struct {
	Radius int `json:"radius"`
}

// PendingMessage is present on an AI component exactly while an inbound chat
// message is waiting for (or in flight to) the oracle.
type PendingMessage struct {
	Message          string       `json:"message"`
	FromEntity       ecs.EntityID `json:"fromEntity"`
	ProcessStartTime int64        `json:"processStartTime"`
}

// AI drives NPC behavior. Move cadence lives on Movement; this component
// carries the conversational state.
type AI struct {
	Personality string          `json:"personality,omitempty"`
	Processing  *PendingMessage `json:"processingMessage,omitempty"`
}

// Pathfinding holds an NPC's navigation goal and cached route. Path, when
// non-nil, is non-empty and its head is the next cell to step toward.
type Pathfinding struct {
	Target *Position  `json:"targetPosition,omitempty"`
	Path   []Position `json:"currentPath,omitempty"`
}

// Thinking states cycled by SpeechSystem while a bubble is marked thinking.
var ThinkingStates = []string{"listening", "changed", "notChanged"}

// Speech is a transient chat bubble. Removed by SpeechSystem once expired.
type Speech struct {
	Message       string `json:"message"`
	ExpiryTime    int64  `json:"expiryTime"`
	FadeStartTime int64  `json:"fadeStartTime,omitempty"`
	IsThinking    bool   `json:"isThinking,omitempty"`
	ThinkingState string `json:"thinkingState,omitempty"`
}

// Components bundles one typed store per component kind, all registered for
// bulk removal on entity destroy.
type Components struct {
	Position     *ecs.PtrComponentStore[Position]
	Movement     *ecs.PtrComponentStore[Movement]
	Appearance   *ecs.PtrComponentStore[Appearance]
	Collision    *ecs.PtrComponentStore[Collision]
	Interactable *ecs.PtrComponentStore[Interactable]
	AI           *ecs.PtrComponentStore[AI]
	Pathfinding  *ecs.PtrComponentStore[Pathfinding]
	Speech       *ecs.PtrComponentStore[Speech]

	registry *ecs.Registry
}

func newComponents() *Components {
	c := &Components{
		Position:     ecs.NewPtrComponentStore[Position](),
		Movement:     ecs.NewPtrComponentStore[Movement](),
		Appearance:   ecs.NewPtrComponentStore[Appearance](),
		Collision:    ecs.NewPtrComponentStore[Collision](),
		Interactable: ecs.NewPtrComponentStore[Interactable](),
		AI:           ecs.NewPtrComponentStore[AI](),
		Pathfinding:  ecs.NewPtrComponentStore[Pathfinding](),
		Speech:       ecs.NewPtrComponentStore[Speech](),
		registry:     ecs.NewRegistry(),
	}
	c.registry.Register(c.Position)
	c.registry.Register(c.Movement)
	c.registry.Register(c.Appearance)
	c.registry.Register(c.Collision)
	c.registry.Register(c.Interactable)
	c.registry.Register(c.AI)
	c.registry.Register(c.Pathfinding)
	c.registry.Register(c.Speech)
	return c
}

func (c *Components) removeAll(id ecs.EntityID) {
	c.registry.RemoveAll(id)
}
