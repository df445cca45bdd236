package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the scoring outcome of one question.
type ResultStatus string

const (
	ResultCorrect       ResultStatus = "CORRECT"
	ResultIncorrect     ResultStatus = "INCORRECT"
	ResultPartial       ResultStatus = "PARTIAL"
	ResultUnanswered    ResultStatus = "UNANSWERED"
	ResultPendingReview ResultStatus = "PENDING_REVIEW"
)

// QuestionResult is the per-question line of a submission report.
type QuestionResult struct {
	QuestionID uuid.UUID    `json:"question_id"`
	Status     ResultStatus `json:"status"`
	Awarded    float64      `json:"awarded"`
	Available  float64      `json:"available"`
	// Text retains the verbatim subjective answer for later review.
	Text string `json:"text,omitempty"`
}

// Score is an unrounded rational: awarded points over available points.
// Rounding and percentage formatting are presentation concerns.
type Score struct {
	Awarded   float64 `json:"awarded"`
	Available float64 `json:"available"`
}

// Ratio returns awarded/available, or 0 when nothing was gradable.
func (s Score) Ratio() float64 {
	if s.Available == 0 {
		return 0
	}
	return s.Awarded / s.Available
}

// SubmissionReport is produced exactly once per session and never
// mutated afterwards.
type SubmissionReport struct {
	SessionID   uuid.UUID        `json:"session_id"`
	ExamID      uuid.UUID        `json:"exam_id"`
	LearnerID   int              `json:"learner_id"`
	Results     []QuestionResult `json:"results"`
	Aggregate   Score            `json:"aggregate"`
	Policy      string           `json:"policy"`
	Forced      bool             `json:"forced"`
	FinalizedAt time.Time        `json:"finalized_at"`
	// TimeTaken is wall-clock duration from start to finalization,
	// capped at the budget for forced submissions.
	TimeTaken time.Duration `json:"time_taken_ns"`
}
