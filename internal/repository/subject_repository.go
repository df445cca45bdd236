package repository

import (
	"context"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubjectRepository handles catalog subject data access.
type SubjectRepository struct {
	pool *pgxpool.Pool
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{pool: pool}
}

// List retrieves all subjects with their published exam counts.
func (r *SubjectRepository) List(ctx context.Context) ([]model.Subject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.field,
		        COUNT(e.id) FILTER (WHERE e.status = 'PUBLISHED') AS exam_count,
		        s.created_at, s.updated_at
		 FROM subjects s
		 LEFT JOIN exams e ON e.subject_id = s.id
		 GROUP BY s.id
		 ORDER BY s.field, s.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Field, &s.ExamCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// GetByID retrieves a single subject.
func (r *SubjectRepository) GetByID(ctx context.Context, id int) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, field, 0, created_at, updated_at
		 FROM subjects
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Field, &s.ExamCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
