// Package snapshot provides durable key-value storage for session
// checkpoints. The medium is opaque to the session engine; any store
// that can round-trip a snapshot qualifies.
package snapshot

import (
	"context"
	"errors"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Load when no snapshot exists for the key.
var ErrNotFound = errors.New("snapshot not found")

// Store persists session snapshots keyed by exam and learner.
type Store interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Load(ctx context.Context, examID uuid.UUID, learnerID int) (*model.Snapshot, error)
	Clear(ctx context.Context, examID uuid.UUID, learnerID int) error
}
