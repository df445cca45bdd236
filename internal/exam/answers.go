package exam

import (
	"fmt"
	"sort"
	"time"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

// answerStore holds the learner's current response per question. It is
// owned exclusively by the session; all access happens under the
// session's lock.
type answerStore struct {
	bank    *model.QuestionBank
	answers map[uuid.UUID]model.Answer
}

func newAnswerStore(bank *model.QuestionBank) *answerStore {
	return &answerStore{
		bank:    bank,
		answers: make(map[uuid.UUID]model.Answer),
	}
}

// set validates the payload against the question's type and overwrites
// any prior answer. An MCQ payload with an empty selection clears the
// entry instead of storing it.
func (s *answerStore) set(questionID uuid.UUID, payload model.AnswerPayload) (model.Answer, error) {
	q := s.bank.Find(questionID)
	if q == nil {
		return model.Answer{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	switch q.Type {
	case model.QuestionTypeMCQ:
		if payload.Text != nil {
			return model.Answer{}, fmt.Errorf("%w: text payload for MCQ question", ErrInvalidAnswer)
		}
		selected, err := normalizeSelection(payload.Selected, len(q.Options))
		if err != nil {
			return model.Answer{}, err
		}
		if len(selected) == 0 {
			delete(s.answers, questionID)
			return model.Answer{QuestionID: questionID, Type: q.Type, UpdatedAt: time.Now()}, nil
		}
		ans := model.Answer{
			QuestionID: questionID,
			Type:       q.Type,
			Selected:   selected,
			UpdatedAt:  time.Now(),
		}
		s.answers[questionID] = ans
		return ans, nil

	case model.QuestionTypeSubjective:
		if payload.Text == nil || len(payload.Selected) > 0 {
			return model.Answer{}, fmt.Errorf("%w: subjective question expects a text payload", ErrInvalidAnswer)
		}
		ans := model.Answer{
			QuestionID: questionID,
			Type:       q.Type,
			Text:       *payload.Text,
			UpdatedAt:  time.Now(),
		}
		s.answers[questionID] = ans
		return ans, nil

	default:
		return model.Answer{}, fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswer, q.Type)
	}
}

// get returns the current answer, or false if unanswered.
func (s *answerStore) get(questionID uuid.UUID) (model.Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// clear removes the entry for the question.
func (s *answerStore) clear(questionID uuid.UUID) error {
	if s.bank.Find(questionID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	delete(s.answers, questionID)
	return nil
}

// snapshotMap returns a copy of the answer map safe to hand to the
// persistence layer.
func (s *answerStore) snapshotMap() map[uuid.UUID]model.Answer {
	out := make(map[uuid.UUID]model.Answer, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// restore replaces the map with persisted answers, rejecting entries
// that reference questions outside the bank or carry a mismatched type.
func (s *answerStore) restore(answers map[uuid.UUID]model.Answer) error {
	restored := make(map[uuid.UUID]model.Answer, len(answers))
	for id, ans := range answers {
		q := s.bank.Find(id)
		if q == nil {
			return fmt.Errorf("%w: answer references unknown question %s", ErrCorruptState, id)
		}
		if ans.Type != q.Type {
			return fmt.Errorf("%w: answer type mismatch for question %s", ErrCorruptState, id)
		}
		if q.Type == model.QuestionTypeMCQ {
			for _, idx := range ans.Selected {
				if idx < 0 || idx >= len(q.Options) {
					return fmt.Errorf("%w: option index %d out of range for question %s", ErrCorruptState, idx, id)
				}
			}
		}
		ans.QuestionID = id
		restored[id] = ans
	}
	s.answers = restored
	return nil
}

// normalizeSelection bounds-checks, deduplicates and sorts an MCQ
// selection so equal selections always compare equal.
func normalizeSelection(selected []int, optionCount int) ([]int, error) {
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= optionCount {
			return nil, fmt.Errorf("%w: option index %d out of range [0,%d)", ErrInvalidAnswer, idx, optionCount)
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}
