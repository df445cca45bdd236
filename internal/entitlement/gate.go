// Package entitlement answers one question: may this learner start or
// continue this exam. The decision derives from purchase/subscription
// state; the session engine itself stays free of payment concerns and
// the check is enforced by the handler before Start.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/examtrail/examtrail-backend/internal/config"
	"github.com/examtrail/examtrail-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnavailable means the entitlement source could not be reached.
// Callers retry with backoff; the check result is never guessed.
var ErrUnavailable = errors.New("entitlement check unavailable")

const cacheTTL = 10 * time.Minute

// Gate reports whether a learner may start a given exam.
type Gate interface {
	MayStart(ctx context.Context, learnerID int, examID uuid.UUID) (bool, error)
}

// CachedGate checks the purchases table with a short-lived Redis cache
// in front. Only positive results are cached: a denied learner who
// completes a purchase should not wait out a negative cache.
type CachedGate struct {
	repo *repository.EntitlementRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewCachedGate creates a Redis-cached entitlement gate.
func NewCachedGate(repo *repository.EntitlementRepository, rdb *redis.Client, log zerolog.Logger) *CachedGate {
	return &CachedGate{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "entitlement_gate").Logger(),
	}
}

func (g *CachedGate) MayStart(ctx context.Context, learnerID int, examID uuid.UUID) (bool, error) {
	key := config.CacheKey.EntitlementKey(examID.String(), learnerID)

	val, err := g.rdb.Get(ctx, key).Result()
	if err == nil && val == "1" {
		return true, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		g.log.Warn().Err(err).Msg("Entitlement cache read failed, falling back to database")
	}

	entitled, err := g.repo.HasEntitlement(ctx, learnerID, examID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if entitled {
		if err := g.rdb.Set(ctx, key, "1", cacheTTL).Err(); err != nil {
			g.log.Warn().Err(err).Msg("Entitlement cache write failed")
		}
	}
	return entitled, nil
}
