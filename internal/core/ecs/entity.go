package ecs

// EntityID is the stable identifier for an entity. Player entities reuse the
// external player id from the client; NPCs and structures get generated ids
// at world creation. IDs are never recycled within a world's lifetime.
type EntityID string

func (id EntityID) IsZero() bool { return id == "" }
