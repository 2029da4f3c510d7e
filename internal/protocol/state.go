package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gridvale/server/internal/world"
)

// StateUpdateType is the outbound snapshot envelope type.
const StateUpdateType = "STATE_UPDATE"

// StateUpdate wraps a full world snapshot for broadcast.
type StateUpdate struct {
	Type  string          `json:"type"`
	State world.GameState `json:"state"`
}

// MarshalStateUpdate serializes a snapshot into its broadcast frame.
func MarshalStateUpdate(state world.GameState) ([]byte, error) {
	data, err := json.Marshal(StateUpdate{Type: StateUpdateType, State: state})
	if err != nil {
		return nil, fmt.Errorf("marshal state update: %w", err)
	}
	return data, nil
}
