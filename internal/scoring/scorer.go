// Package scoring grades a finalized answer set against its question
// bank. Scoring is a pure function of its inputs: no shared state, no
// side effects, identical inputs always produce an identical report.
package scoring

import (
	"strings"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

// Score grades every question in bank order and returns the per-question
// results plus the aggregate as an unrounded awarded/available pair.
// The answer map is read-only; absent entries mean unanswered.
func Score(bank *model.QuestionBank, answers map[uuid.UUID]model.Answer, policy Policy) ([]model.QuestionResult, model.Score) {
	results := make([]model.QuestionResult, 0, len(bank.Questions))
	var agg model.Score

	for i := range bank.Questions {
		q := &bank.Questions[i]
		ans, answered := answers[q.ID]

		var res model.QuestionResult
		switch q.Type {
		case model.QuestionTypeMCQ:
			res = scoreMCQ(q, ans, answered)
		case model.QuestionTypeSubjective:
			res = scoreSubjective(q, ans, answered)
		default:
			res = model.QuestionResult{QuestionID: q.ID, Status: model.ResultUnanswered, Available: q.Points}
		}

		if res.Status == model.ResultPendingReview && policy == PolicyExcludePending {
			// Pending items stay in the report but out of the aggregate.
			results = append(results, res)
			continue
		}
		agg.Awarded += res.Awarded
		agg.Available += res.Available
		results = append(results, res)
	}

	return results, agg
}

func scoreMCQ(q *model.Question, ans model.Answer, answered bool) model.QuestionResult {
	res := model.QuestionResult{QuestionID: q.ID, Available: q.Points}
	if !answered || len(ans.Selected) == 0 {
		res.Status = model.ResultUnanswered
		return res
	}

	correct := toSet(q.CorrectSet)
	selected := toSet(ans.Selected)

	if setEqual(correct, selected) {
		res.Status = model.ResultCorrect
		res.Awarded = q.Points
		return res
	}

	if q.CreditScheme == model.CreditPartial && len(correct) > 0 {
		hits := 0
		for idx := range selected {
			if _, ok := correct[idx]; !ok {
				// Any wrong selection forfeits partial credit.
				res.Status = model.ResultIncorrect
				return res
			}
			hits++
		}
		res.Status = model.ResultPartial
		res.Awarded = q.Points * float64(hits) / float64(len(correct))
		return res
	}

	res.Status = model.ResultIncorrect
	return res
}

func scoreSubjective(q *model.Question, ans model.Answer, answered bool) model.QuestionResult {
	res := model.QuestionResult{QuestionID: q.ID, Available: q.Points}
	if !answered {
		res.Status = model.ResultUnanswered
		return res
	}

	res.Text = ans.Text
	if q.Rubric != nil && normalize(ans.Text) == normalize(*q.Rubric) {
		res.Status = model.ResultCorrect
		res.Awarded = q.Points
		return res
	}

	res.Status = model.ResultPendingReview
	return res
}

// normalize lowercases and collapses runs of whitespace so rubric
// comparison ignores case and spacing, nothing else.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func toSet(idxs []int) map[int]struct{} {
	m := make(map[int]struct{}, len(idxs))
	for _, i := range idxs {
		m[i] = struct{}{}
	}
	return m
}

func setEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
