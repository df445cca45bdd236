package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerPayload is the variant body of a learner response. Exactly one
// side is meaningful for a given question type: Selected for MCQ (empty
// set means "cleared"), Text for subjective (possibly empty).
type AnswerPayload struct {
	Selected []int   `json:"selected,omitempty"`
	Text     *string `json:"text,omitempty"`
}

// Answer is the learner's current response to one question.
type Answer struct {
	QuestionID uuid.UUID    `json:"question_id"`
	Type       QuestionType `json:"type"`
	Selected   []int        `json:"selected,omitempty"`
	Text       string       `json:"text,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AnswerRequest is the payload for answering a question.
type AnswerRequest struct {
	Selected []int   `json:"selected" binding:"omitempty,dive,min=0"`
	Text     *string `json:"text" binding:"omitempty,max=20000"`
}

// PositionRequest is the payload for moving the session cursor.
type PositionRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}
