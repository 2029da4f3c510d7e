// Package oracle calls the external text-generation service that voices NPC
// dialogue. Calls are slow and unreliable, so everything here takes a context
// and the game layer always runs them off the tick goroutine with a fallback
// line ready.
package oracle

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the service could not produce a usable reply.
// Callers substitute a canned line rather than surfacing this to players.
var ErrUnavailable = errors.New("oracle: service unavailable")

// Point mirrors a grid cell in oracle replies.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Reply is a structured response to a player message. DestinationChange is
// nil when the NPC decides to stay put.
type Reply struct {
	Message           string `json:"message"`
	DestinationChange *Point `json:"destinationChange"`
}

// Client produces NPC dialogue. Prompts are prebuilt by the caller so the
// client stays free of world state.
type Client interface {
	// GenerateMessage returns a short standalone line, used when an NPC
	// arrives at its destination.
	GenerateMessage(ctx context.Context, prompt string) (string, error)

	// ProcessMessage answers a player's chat message and may include a new
	// destination for the NPC.
	ProcessMessage(ctx context.Context, prompt string) (Reply, error)
}
