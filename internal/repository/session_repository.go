package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptSummary is a learner's completed attempt as listed in their
// history.
type AttemptSummary struct {
	SessionID   uuid.UUID  `json:"session_id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	ExamTitle   string     `json:"exam_title"`
	Awarded     float64    `json:"awarded"`
	Available   float64    `json:"available"`
	Forced      bool       `json:"forced"`
	StartedAt   time.Time  `json:"started_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// SessionRepository handles durable exam attempt records. Live session
// state lives in the snapshot store; rows here are the permanent,
// auditable record written by the report worker.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// ListByLearner retrieves a learner's completed attempts, newest first.
func (r *SessionRepository) ListByLearner(ctx context.Context, learnerID int) ([]AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.id, es.exam_id, e.title, es.awarded, es.available, es.forced, es.started_at, es.finalized_at
		 FROM exam_sessions es
		 JOIN exams e ON e.id = es.exam_id
		 WHERE es.learner_id = $1
		 ORDER BY es.started_at DESC`, learnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []AttemptSummary
	for rows.Next() {
		var a AttemptSummary
		if err := rows.Scan(&a.SessionID, &a.ExamID, &a.ExamTitle, &a.Awarded, &a.Available, &a.Forced, &a.StartedAt, &a.FinalizedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetReport retrieves the persisted submission report for an attempt.
func (r *SessionRepository) GetReport(ctx context.Context, examID uuid.UUID, learnerID int) (*model.SubmissionReport, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT report FROM exam_sessions
		 WHERE exam_id = $1 AND learner_id = $2`, examID, learnerID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var report model.SubmissionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
