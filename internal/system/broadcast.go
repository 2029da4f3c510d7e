package system

import (
	"bytes"
	"hash/fnv"
	"strconv"

	"go.uber.org/zap"

	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/protocol"
	"github.com/gridvale/server/internal/world"
)

// BroadcastSystem serializes the world each tick and pushes the frame to
// subscribers, but only when the serialized state actually changed since the
// last send. Snapshots are deterministic, so a hash of the frame is a sound
// change detector.
type BroadcastSystem struct {
	W    *world.World
	Send func(frame []byte)
	Log  *zap.Logger

	lastHash uint64
	sentOnce bool
}

func NewBroadcastSystem(w *world.World, send func([]byte), log *zap.Logger) *BroadcastSystem {
	return &BroadcastSystem{W: w, Send: send, Log: log}
}

func (s *BroadcastSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *BroadcastSystem) Update(now int64) {
	// The timestamp changes every tick, so it is zeroed for serialization and
	// stamped back into the frame bytes just before sending.
	state := s.W.Snapshot(now)
	state.Timestamp = 0

	frame, err := protocol.MarshalStateUpdate(state)
	if err != nil {
		s.Log.Error("marshal state update", zap.Error(err))
		return
	}

	h := fnv.New64a()
	h.Write(frame)
	hash := h.Sum64()
	if s.sentOnce && hash == s.lastHash {
		return
	}
	s.lastHash = hash
	s.sentOnce = true

	s.Send(stampFrame(frame, now))
}

// zeroStamp is the serialized form of the zeroed state timestamp. It is the
// last field of GameState, so its final occurrence in the frame is always the
// top-level one, never a message timestamp.
var zeroStamp = []byte(`"timestamp":0`)

// stampFrame writes the send time over the zeroed timestamp, avoiding a
// second full serialization of the state.
func stampFrame(frame []byte, now int64) []byte {
	i := bytes.LastIndex(frame, zeroStamp)
	if i < 0 {
		return frame
	}
	out := make([]byte, 0, len(frame)+20)
	out = append(out, frame[:i]...)
	out = append(out, `"timestamp":`...)
	out = strconv.AppendInt(out, now, 10)
	out = append(out, frame[i+len(zeroStamp):]...)
	return out
}
