package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRows aliases the driver's no-rows sentinel so callers outside
// the repository layer need not import pgx.
var ErrNoRows = pgx.ErrNoRows

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves a single exam.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, title, description, duration_minutes, question_count, price_cents, status, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.SubjectID, &e.Title, &e.Description, &e.DurationMinutes, &e.QuestionCount, &e.PriceCents, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListBySubject retrieves published exams under a subject.
func (r *ExamRepository) ListBySubject(ctx context.Context, subjectID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, title, description, duration_minutes, question_count, price_cents, status, created_at, updated_at
		 FROM exams
		 WHERE subject_id = $1 AND status = $2
		 ORDER BY title`, subjectID, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

// ListPublished retrieves every published exam, used for cache prewarm.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subject_id, title, description, duration_minutes, question_count, price_cents, status, created_at, updated_at
		 FROM exams
		 WHERE status = $1
		 ORDER BY created_at`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

// GetQuestions retrieves an exam's questions in their fixed order.
func (r *ExamRepository) GetQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, prompt, type, options, correct_set, credit_scheme, rubric, points, order_num
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options, correctSet []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Prompt, &q.Type, &options, &correctSet, &q.CreditScheme, &q.Rubric, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options for question %s: %w", q.ID, err)
			}
		}
		if len(correctSet) > 0 {
			if err := json.Unmarshal(correctSet, &q.CorrectSet); err != nil {
				return nil, fmt.Errorf("unmarshal correct set for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanExams(rows pgx.Rows) ([]model.Exam, error) {
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Title, &e.Description, &e.DurationMinutes, &e.QuestionCount, &e.PriceCents, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
