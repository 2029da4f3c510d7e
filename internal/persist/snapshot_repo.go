package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SnapshotRepo persists one snapshot row per session, newest wins.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, sessionID string, state []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO world_snapshots (session_id, state, saved_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (session_id)
		 DO UPDATE SET state = EXCLUDED.state, saved_at = now()`,
		sessionID, state,
	)
	return err
}

func (r *SnapshotRepo) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var state []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT state FROM world_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}
