package model

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState enumerates exam session states.
type LifecycleState string

const (
	StateNotStarted LifecycleState = "NOT_STARTED"
	StateInProgress LifecycleState = "IN_PROGRESS"
	StateSubmitted  LifecycleState = "SUBMITTED"
)

// Snapshot is the persisted form of a session: everything needed to
// reconstruct it after an interruption. Position and answers are always
// written together, never out of sync.
type Snapshot struct {
	SessionID uuid.UUID            `json:"session_id"`
	ExamID    uuid.UUID            `json:"exam_id"`
	LearnerID int                  `json:"learner_id"`
	Position  int                  `json:"position"`
	Answers   map[uuid.UUID]Answer `json:"answers"`
	StartedAt time.Time            `json:"started_at"`
	// Budget is the total time allowed, in seconds.
	Budget int64          `json:"budget_seconds"`
	State  LifecycleState `json:"state"`
	// FinalizedAt and Forced are set only on the terminal snapshot.
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	Forced      bool       `json:"forced,omitempty"`
	// Seq orders snapshots of the same session; a restore must never
	// observe snapshot N+1 before snapshot N.
	Seq uint64 `json:"seq"`
}

// Deadline returns the absolute instant at which the session's time
// budget is exhausted.
func (s *Snapshot) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.Budget) * time.Second)
}

// SessionState is the learner-facing view of a live session, returned
// on reload so the client can rebuild its screen.
type SessionState struct {
	SessionID        uuid.UUID            `json:"session_id"`
	ExamID           uuid.UUID            `json:"exam_id"`
	State            LifecycleState       `json:"state"`
	Position         int                  `json:"position"`
	Answers          map[uuid.UUID]Answer `json:"answers"`
	RemainingSeconds float64              `json:"remaining_seconds"`
}
