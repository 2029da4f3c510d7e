package persist

import "context"

// Store is the snapshot persistence surface the session manager uses. The
// serialized state is opaque here; the game layer owns its shape.
type Store interface {
	SaveSnapshot(ctx context.Context, sessionID string, state []byte) error
	// LoadSnapshot returns nil with no error when no snapshot exists.
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)
}

// NopStore discards saves and never finds snapshots. Used when the database
// is disabled.
type NopStore struct{}

func (NopStore) SaveSnapshot(context.Context, string, []byte) error { return nil }

func (NopStore) LoadSnapshot(context.Context, string) ([]byte, error) { return nil, nil }
