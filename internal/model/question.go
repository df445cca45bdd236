package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ        QuestionType = "MCQ"
	QuestionTypeSubjective QuestionType = "SUBJECTIVE"
)

// CreditScheme controls how an MCQ awards points.
type CreditScheme string

const (
	// CreditAllOrNothing awards full points only on exact set equality.
	CreditAllOrNothing CreditScheme = "ALL_OR_NOTHING"
	// CreditPartial awards proportional points for correct selections,
	// zero when any incorrect option is selected.
	CreditPartial CreditScheme = "PARTIAL"
)

// Question is a single exam question. Immutable once loaded into a bank.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       uuid.UUID    `json:"exam_id"`
	Prompt       string       `json:"prompt"`
	Type         QuestionType `json:"type"`
	Options      []string     `json:"options,omitempty"`
	CorrectSet   []int        `json:"correct_set,omitempty"`
	CreditScheme CreditScheme `json:"credit_scheme,omitempty"`
	// Rubric, when set on a subjective question, enables automatic full
	// credit on a case-normalized exact text match.
	Rubric   *string `json:"rubric,omitempty"`
	Points   float64 `json:"points"`
	OrderNum int     `json:"order_num"`
}

// QuestionBank is the ordered, immutable list of questions for one exam.
type QuestionBank struct {
	ExamID    uuid.UUID  `json:"exam_id"`
	Title     string     `json:"title"`
	Budget    int        `json:"duration_minutes"`
	Questions []Question `json:"questions"`
}

// Len returns the number of questions in the bank.
func (b *QuestionBank) Len() int { return len(b.Questions) }

// Find returns the question with the given id, or nil if absent.
func (b *QuestionBank) Find(id uuid.UUID) *Question {
	for i := range b.Questions {
		if b.Questions[i].ID == id {
			return &b.Questions[i]
		}
	}
	return nil
}

// QuestionForLearner is a question stripped of the answer key, safe to
// send to clients.
type QuestionForLearner struct {
	ID       uuid.UUID    `json:"id"`
	Prompt   string       `json:"prompt"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Points   float64      `json:"points"`
	OrderNum int          `json:"order_num"`
}

// BankPayload is the sanitized bank served to a learner taking the exam.
type BankPayload struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Budget    int                  `json:"duration_minutes"`
	Questions []QuestionForLearner `json:"questions"`
}

// Sanitize converts a full bank into its learner-facing payload.
func (b *QuestionBank) Sanitize() *BankPayload {
	out := &BankPayload{
		ExamID:    b.ExamID,
		Title:     b.Title,
		Budget:    b.Budget,
		Questions: make([]QuestionForLearner, 0, len(b.Questions)),
	}
	for _, q := range b.Questions {
		out.Questions = append(out.Questions, QuestionForLearner{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Type:     q.Type,
			Options:  q.Options,
			Points:   q.Points,
			OrderNum: q.OrderNum,
		})
	}
	return out
}
