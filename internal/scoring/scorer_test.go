package scoring

import (
	"reflect"
	"testing"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func mcq(id uuid.UUID, options int, correct []int, scheme model.CreditScheme, points float64) model.Question {
	opts := make([]string, options)
	for i := range opts {
		opts[i] = string(rune('A' + i))
	}
	return model.Question{
		ID:           id,
		Type:         model.QuestionTypeMCQ,
		Options:      opts,
		CorrectSet:   correct,
		CreditScheme: scheme,
		Points:       points,
	}
}

func subjective(id uuid.UUID, rubric *string, points float64) model.Question {
	return model.Question{
		ID:     id,
		Type:   model.QuestionTypeSubjective,
		Rubric: rubric,
		Points: points,
	}
}

func mcqAnswer(id uuid.UUID, selected ...int) model.Answer {
	return model.Answer{QuestionID: id, Type: model.QuestionTypeMCQ, Selected: selected}
}

func textAnswer(id uuid.UUID, text string) model.Answer {
	return model.Answer{QuestionID: id, Type: model.QuestionTypeSubjective, Text: text}
}

func TestScore_MCQ(t *testing.T) {
	qID := uuid.New()

	tests := []struct {
		name     string
		question model.Question
		answer   *model.Answer
		status   model.ResultStatus
		awarded  float64
	}{
		{
			name:     "exact match single",
			question: mcq(qID, 4, []int{0}, model.CreditAllOrNothing, 2),
			answer:   ptr(mcqAnswer(qID, 0)),
			status:   model.ResultCorrect, awarded: 2,
		},
		{
			name:     "exact match multi any order",
			question: mcq(qID, 4, []int{1, 3}, model.CreditAllOrNothing, 4),
			answer:   ptr(mcqAnswer(qID, 3, 1)),
			status:   model.ResultCorrect, awarded: 4,
		},
		{
			name:     "missing one all or nothing",
			question: mcq(qID, 4, []int{1, 3}, model.CreditAllOrNothing, 4),
			answer:   ptr(mcqAnswer(qID, 1)),
			status:   model.ResultIncorrect, awarded: 0,
		},
		{
			name:     "extra one all or nothing",
			question: mcq(qID, 4, []int{1, 3}, model.CreditAllOrNothing, 4),
			answer:   ptr(mcqAnswer(qID, 1, 3, 0)),
			status:   model.ResultIncorrect, awarded: 0,
		},
		{
			name:     "partial credit half",
			question: mcq(qID, 4, []int{1, 3}, model.CreditPartial, 4),
			answer:   ptr(mcqAnswer(qID, 1)),
			status:   model.ResultPartial, awarded: 2,
		},
		{
			name:     "partial credit forfeited by wrong pick",
			question: mcq(qID, 4, []int{1, 3}, model.CreditPartial, 4),
			answer:   ptr(mcqAnswer(qID, 1, 0)),
			status:   model.ResultIncorrect, awarded: 0,
		},
		{
			name:     "unanswered",
			question: mcq(qID, 4, []int{0}, model.CreditAllOrNothing, 2),
			answer:   nil,
			status:   model.ResultUnanswered, awarded: 0,
		},
		{
			name:     "empty selection counts as unanswered",
			question: mcq(qID, 4, []int{0}, model.CreditAllOrNothing, 2),
			answer:   ptr(mcqAnswer(qID)),
			status:   model.ResultUnanswered, awarded: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bank := &model.QuestionBank{ExamID: uuid.New(), Questions: []model.Question{tc.question}}
			answers := map[uuid.UUID]model.Answer{}
			if tc.answer != nil {
				answers[qID] = *tc.answer
			}

			results, agg := Score(bank, answers, PolicyZeroUntilReviewed)
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Status != tc.status {
				t.Errorf("status = %s, want %s", results[0].Status, tc.status)
			}
			if results[0].Awarded != tc.awarded {
				t.Errorf("awarded = %v, want %v", results[0].Awarded, tc.awarded)
			}
			if agg.Available != tc.question.Points {
				t.Errorf("available = %v, want %v", agg.Available, tc.question.Points)
			}
		})
	}
}

func TestScore_Subjective(t *testing.T) {
	qID := uuid.New()

	tests := []struct {
		name     string
		rubric   *string
		answer   *model.Answer
		status   model.ResultStatus
		awarded  float64
		wantText string
	}{
		{
			name:   "rubric exact match",
			rubric: strPtr("photosynthesis"),
			answer: ptr(textAnswer(qID, "photosynthesis")),
			status: model.ResultCorrect, awarded: 3,
		},
		{
			name:   "rubric match ignores case and spacing",
			rubric: strPtr("The Krebs Cycle"),
			answer: ptr(textAnswer(qID, "  the   krebs cycle ")),
			status: model.ResultCorrect, awarded: 3,
		},
		{
			name:     "no rubric goes to review",
			rubric:   nil,
			answer:   ptr(textAnswer(qID, "my essay")),
			status:   model.ResultPendingReview,
			wantText: "my essay",
		},
		{
			name:     "rubric mismatch goes to review",
			rubric:   strPtr("mitochondria"),
			answer:   ptr(textAnswer(qID, "chloroplast")),
			status:   model.ResultPendingReview,
			wantText: "chloroplast",
		},
		{
			name:   "unanswered",
			rubric: strPtr("anything"),
			answer: nil,
			status: model.ResultUnanswered,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bank := &model.QuestionBank{ExamID: uuid.New(), Questions: []model.Question{subjective(qID, tc.rubric, 3)}}
			answers := map[uuid.UUID]model.Answer{}
			if tc.answer != nil {
				answers[qID] = *tc.answer
			}

			results, _ := Score(bank, answers, PolicyZeroUntilReviewed)
			if results[0].Status != tc.status {
				t.Errorf("status = %s, want %s", results[0].Status, tc.status)
			}
			if results[0].Awarded != tc.awarded {
				t.Errorf("awarded = %v, want %v", results[0].Awarded, tc.awarded)
			}
			if results[0].Text != tc.wantText {
				t.Errorf("text = %q, want %q", results[0].Text, tc.wantText)
			}
		})
	}
}

// One correct MCQ plus one essay pending review: how the essay counts
// depends on policy.
func TestScore_PendingReviewPolicies(t *testing.T) {
	mcqID := uuid.New()
	essayID := uuid.New()
	bank := &model.QuestionBank{
		ExamID: uuid.New(),
		Questions: []model.Question{
			mcq(mcqID, 3, []int{0}, model.CreditAllOrNothing, 2),
			subjective(essayID, nil, 5),
		},
	}
	answers := map[uuid.UUID]model.Answer{
		mcqID:   mcqAnswer(mcqID, 0),
		essayID: textAnswer(essayID, "an essay"),
	}

	t.Run("zero until reviewed", func(t *testing.T) {
		results, agg := Score(bank, answers, PolicyZeroUntilReviewed)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if agg.Awarded != 2 || agg.Available != 7 {
			t.Errorf("aggregate = %v/%v, want 2/7", agg.Awarded, agg.Available)
		}
	})

	t.Run("exclude pending", func(t *testing.T) {
		results, agg := Score(bank, answers, PolicyExcludePending)
		if len(results) != 2 {
			t.Fatalf("pending result must stay in the report, got %d results", len(results))
		}
		if results[1].Status != model.ResultPendingReview {
			t.Errorf("second result = %s, want PENDING_REVIEW", results[1].Status)
		}
		if agg.Awarded != 2 || agg.Available != 2 {
			t.Errorf("aggregate = %v/%v, want 2/2", agg.Awarded, agg.Available)
		}
	})
}

func TestScore_Deterministic(t *testing.T) {
	bank := &model.QuestionBank{ExamID: uuid.New()}
	answers := map[uuid.UUID]model.Answer{}
	for i := 0; i < 10; i++ {
		id := uuid.New()
		bank.Questions = append(bank.Questions, mcq(id, 4, []int{i % 4}, model.CreditAllOrNothing, 1))
		if i%2 == 0 {
			answers[id] = mcqAnswer(id, i%4)
		}
	}

	first, firstAgg := Score(bank, answers, PolicyZeroUntilReviewed)
	for i := 0; i < 5; i++ {
		again, againAgg := Score(bank, answers, PolicyZeroUntilReviewed)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced different results", i)
		}
		if firstAgg != againAgg {
			t.Fatalf("run %d produced different aggregate", i)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"zero_until_reviewed", PolicyZeroUntilReviewed},
		{"exclude_pending", PolicyExcludePending},
		{"", PolicyZeroUntilReviewed},
		{"nonsense", PolicyZeroUntilReviewed},
	}
	for _, tc := range tests {
		if got := ParsePolicy(tc.in); got != tc.want {
			t.Errorf("ParsePolicy(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func ptr(a model.Answer) *model.Answer { return &a }
