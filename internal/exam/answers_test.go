package exam

import (
	"errors"
	"reflect"
	"testing"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

func testBank() *model.QuestionBank {
	return &model.QuestionBank{
		ExamID: uuid.New(),
		Title:  "Algebra I",
		Budget: 30,
		Questions: []model.Question{
			{
				ID:         uuid.New(),
				Type:       model.QuestionTypeMCQ,
				Prompt:     "2 + 2 = ?",
				Options:    []string{"3", "4", "5", "22"},
				CorrectSet: []int{1},
				Points:     2,
			},
			{
				ID:         uuid.New(),
				Type:       model.QuestionTypeMCQ,
				Prompt:     "Which are even?",
				Options:    []string{"1", "2", "3", "4"},
				CorrectSet: []int{1, 3},
				Points:     4,
			},
			{
				ID:     uuid.New(),
				Type:   model.QuestionTypeSubjective,
				Prompt: "Explain the distributive law.",
				Points: 5,
			},
		},
	}
}

func strp(s string) *string { return &s }

func TestAnswerStore_Set(t *testing.T) {
	bank := testBank()
	mcqID := bank.Questions[0].ID
	multiID := bank.Questions[1].ID
	essayID := bank.Questions[2].ID

	tests := []struct {
		name       string
		questionID uuid.UUID
		payload    model.AnswerPayload
		wantErr    error
		selected   []int
		text       string
		stored     bool
	}{
		{
			name:       "valid mcq",
			questionID: mcqID,
			payload:    model.AnswerPayload{Selected: []int{1}},
			selected:   []int{1},
			stored:     true,
		},
		{
			name:       "mcq selection dedupes and sorts",
			questionID: multiID,
			payload:    model.AnswerPayload{Selected: []int{3, 1, 3}},
			selected:   []int{1, 3},
			stored:     true,
		},
		{
			name:       "mcq option out of range",
			questionID: mcqID,
			payload:    model.AnswerPayload{Selected: []int{4}},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "mcq rejects text payload",
			questionID: mcqID,
			payload:    model.AnswerPayload{Text: strp("hello")},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "mcq empty selection clears",
			questionID: mcqID,
			payload:    model.AnswerPayload{Selected: []int{}},
			stored:     false,
		},
		{
			name:       "valid subjective",
			questionID: essayID,
			payload:    model.AnswerPayload{Text: strp("a(b+c) = ab + ac")},
			text:       "a(b+c) = ab + ac",
			stored:     true,
		},
		{
			name:       "empty subjective text is a valid answer",
			questionID: essayID,
			payload:    model.AnswerPayload{Text: strp("")},
			stored:     true,
		},
		{
			name:       "subjective rejects selection payload",
			questionID: essayID,
			payload:    model.AnswerPayload{Selected: []int{0}},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "unknown question",
			questionID: uuid.New(),
			payload:    model.AnswerPayload{Selected: []int{0}},
			wantErr:    ErrUnknownQuestion,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newAnswerStore(bank)
			ans, err := store.set(tc.questionID, tc.payload)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(ans.Selected, tc.selected) {
				t.Errorf("selected = %v, want %v", ans.Selected, tc.selected)
			}
			if ans.Text != tc.text {
				t.Errorf("text = %q, want %q", ans.Text, tc.text)
			}
			if _, ok := store.get(tc.questionID); ok != tc.stored {
				t.Errorf("stored = %v, want %v", ok, tc.stored)
			}
		})
	}
}

func TestAnswerStore_OverwriteAndClear(t *testing.T) {
	bank := testBank()
	store := newAnswerStore(bank)
	qID := bank.Questions[0].ID

	if _, err := store.set(qID, model.AnswerPayload{Selected: []int{0}}); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if _, err := store.set(qID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("second set: %v", err)
	}

	ans, ok := store.get(qID)
	if !ok || !reflect.DeepEqual(ans.Selected, []int{1}) {
		t.Errorf("answer after overwrite = %v, want [1]", ans.Selected)
	}

	if err := store.clear(qID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := store.get(qID); ok {
		t.Error("answer still present after clear")
	}

	if err := store.clear(uuid.New()); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("clear unknown = %v, want ErrUnknownQuestion", err)
	}
}

func TestAnswerStore_SnapshotIsCopy(t *testing.T) {
	bank := testBank()
	store := newAnswerStore(bank)
	qID := bank.Questions[0].ID

	if _, err := store.set(qID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	snap := store.snapshotMap()
	delete(snap, qID)

	if _, ok := store.get(qID); !ok {
		t.Error("mutating the snapshot map affected the store")
	}
}

func TestAnswerStore_Restore(t *testing.T) {
	bank := testBank()
	mcqID := bank.Questions[0].ID
	essayID := bank.Questions[2].ID

	tests := []struct {
		name    string
		answers map[uuid.UUID]model.Answer
		wantErr bool
	}{
		{
			name: "valid",
			answers: map[uuid.UUID]model.Answer{
				mcqID:   {QuestionID: mcqID, Type: model.QuestionTypeMCQ, Selected: []int{1}},
				essayID: {QuestionID: essayID, Type: model.QuestionTypeSubjective, Text: "x"},
			},
		},
		{
			name: "unknown question id",
			answers: map[uuid.UUID]model.Answer{
				uuid.New(): {Type: model.QuestionTypeMCQ, Selected: []int{0}},
			},
			wantErr: true,
		},
		{
			name: "type mismatch",
			answers: map[uuid.UUID]model.Answer{
				mcqID: {QuestionID: mcqID, Type: model.QuestionTypeSubjective, Text: "x"},
			},
			wantErr: true,
		},
		{
			name: "option index out of range",
			answers: map[uuid.UUID]model.Answer{
				mcqID: {QuestionID: mcqID, Type: model.QuestionTypeMCQ, Selected: []int{9}},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newAnswerStore(bank)
			err := store.restore(tc.answers)
			if tc.wantErr {
				if !errors.Is(err, ErrCorruptState) {
					t.Fatalf("err = %v, want ErrCorruptState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(store.snapshotMap()) != len(tc.answers) {
				t.Errorf("restored %d answers, want %d", len(store.snapshotMap()), len(tc.answers))
			}
		})
	}
}
