package system

import (
	"github.com/gridvale/server/internal/core/ecs"
	coresys "github.com/gridvale/server/internal/core/system"
	"github.com/gridvale/server/internal/world"
)

// SpeechSystem expires speech bubbles and animates thinking indicators.
type SpeechSystem struct {
	W *world.World
}

func NewSpeechSystem(w *world.World) *SpeechSystem {
	return &SpeechSystem{W: w}
}

func (s *SpeechSystem) Phase() coresys.Phase { return coresys.PhaseSpeech }

func (s *SpeechSystem) Update(now int64) {
	var expired []ecs.EntityID
	s.W.C.Speech.Each(func(id ecs.EntityID, sp *world.Speech) {
		if now >= sp.ExpiryTime {
			expired = append(expired, id)
			return
		}
		if sp.IsThinking && sp.ThinkingState != "" {
			sp.ThinkingState = nextThinkingState(sp.ThinkingState)
		}
	})
	for _, id := range expired {
		s.W.C.Speech.Remove(id)
	}
}

func nextThinkingState(cur string) string {
	for i, st := range world.ThinkingStates {
		if st == cur {
			return world.ThinkingStates[(i+1)%len(world.ThinkingStates)]
		}
	}
	return world.ThinkingStates[0]
}
