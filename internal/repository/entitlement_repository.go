package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntitlementRepository reads purchase/subscription state. Payment
// processing itself happens elsewhere; this layer only answers whether
// an entitlement row exists.
type EntitlementRepository struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository creates a new EntitlementRepository.
func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

// HasEntitlement reports whether the learner may take the exam.
func (r *EntitlementRepository) HasEntitlement(ctx context.Context, learnerID int, examID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM entitlements
		    WHERE learner_id = $1 AND exam_id = $2
		      AND (expires_at IS NULL OR expires_at > NOW())
		 )`, learnerID, examID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
