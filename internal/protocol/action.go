// Package protocol defines the client-facing wire types: inbound actions
// (with a strict decode/validate boundary) and the outbound state envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action types accepted from clients.
const (
	ActionMove     = "MOVE"
	ActionInteract = "INTERACT"
	ActionChat     = "CHAT"
)

// MaxChatLength bounds a single chat message.
const MaxChatLength = 500

var (
	// ErrBadAction is wrapped by every decode/validation failure.
	ErrBadAction = errors.New("protocol: invalid action")
)

// Action is one inbound client action. Payload stays raw until the type is
// known; DecodeAction validates it eagerly so malformed input is rejected at
// the boundary instead of inside a tick.
type Action struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	ID        string          `json:"id"`
	PlayerID  string          `json:"playerId"`
	Timestamp int64           `json:"timestamp"`

	// Exactly one of these is set after decoding, matching Type.
	Move *MovePayload `json:"-"`
	Chat *ChatPayload `json:"-"`
}

// MovePayload is a directional intent; each axis is -1, 0, or 1.
type MovePayload struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// ChatPayload carries a player chat message.
type ChatPayload struct {
	Message string `json:"message"`
}

// Envelope is the websocket message wrapper.
type Envelope struct {
	Type   string          `json:"type"`
	Action json.RawMessage `json:"action,omitempty"`
}

// EnvelopeAction is the only inbound envelope type.
const EnvelopeAction = "ACTION"

// DecodeAction parses and validates a raw action. All failures wrap
// ErrBadAction so the transport can distinguish client mistakes from server
// faults.
func DecodeAction(raw []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrBadAction, err)
	}
	if a.PlayerID == "" {
		return Action{}, fmt.Errorf("%w: missing playerId", ErrBadAction)
	}
	switch a.Type {
	case ActionMove:
		var p MovePayload
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return Action{}, fmt.Errorf("%w: move payload: %v", ErrBadAction, err)
		}
		if p.DX < -1 || p.DX > 1 || p.DY < -1 || p.DY > 1 {
			return Action{}, fmt.Errorf("%w: move delta out of range (%d,%d)", ErrBadAction, p.DX, p.DY)
		}
		a.Move = &p
	case ActionChat:
		var p ChatPayload
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return Action{}, fmt.Errorf("%w: chat payload: %v", ErrBadAction, err)
		}
		if p.Message == "" {
			return Action{}, fmt.Errorf("%w: empty chat message", ErrBadAction)
		}
		if len(p.Message) > MaxChatLength {
			return Action{}, fmt.Errorf("%w: chat message too long (%d bytes)", ErrBadAction, len(p.Message))
		}
		a.Chat = &p
	case ActionInteract:
		// No payload fields today; accepted for forward compatibility.
	default:
		return Action{}, fmt.Errorf("%w: unknown type %q", ErrBadAction, a.Type)
	}
	return a, nil
}

// DecodeEnvelope parses a websocket frame and extracts its action.
func DecodeEnvelope(raw []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Action{}, fmt.Errorf("%w: envelope: %v", ErrBadAction, err)
	}
	if env.Type != EnvelopeAction {
		return Action{}, fmt.Errorf("%w: unknown envelope type %q", ErrBadAction, env.Type)
	}
	return DecodeAction(env.Action)
}
