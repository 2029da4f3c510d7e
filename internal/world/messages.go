package world

import "github.com/gridvale/server/internal/core/ecs"

// MessageLogCapacity bounds the world's chat history; oldest entries are
// evicted first.
const MessageLogCapacity = 100

// Message is one entry in the world's chat log.
type Message struct {
	EntityID   ecs.EntityID `json:"entityId"`
	EntityKind Kind         `json:"entityType"`
	Message    string       `json:"message"`
	Timestamp  int64        `json:"timestamp"`
	Position   Position     `json:"position"`
}

// messageLog is a FIFO ring capped at MessageLogCapacity entries.
type messageLog struct {
	entries []Message
}

func (l *messageLog) add(m Message) {
	l.entries = append(l.entries, m)
	if len(l.entries) > MessageLogCapacity {
		l.entries = l.entries[len(l.entries)-MessageLogCapacity:]
	}
}

// all returns a copy of the log, oldest first.
func (l *messageLog) all() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}
