package system

// Phase defines execution ordering within a single tick. Pending oracle
// effects and inbound actions are drained by the session before the runner
// ticks, so the first phase here is already game logic.
type Phase int

const (
	PhaseAI       Phase = iota // 0: NPC behavior state machine
	PhaseMove                  // 1: apply velocity intents to positions
	PhaseInteract              // 2: proximity highlight
	PhaseSpeech                // 3: speech bubble expiry
	PhaseOutput                // 4: change detection + broadcast
)

// System is the interface every per-tick system implements. now is the tick
// timestamp in milliseconds since epoch.
type System interface {
	Phase() Phase
	Update(now int64)
}
