// Package bank supplies immutable question banks to the session
// engine. The session never fetches anything itself; it consumes a
// bank handed over by a Loader.
package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/examtrail/examtrail-backend/internal/config"
	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Loader failure modes.
var (
	ErrNotFound    = errors.New("exam not found")
	ErrUnavailable = errors.New("question bank unavailable")
)

// Loader supplies the ordered question list for a chosen exam.
type Loader interface {
	LoadBank(ctx context.Context, examID uuid.UUID) (*model.QuestionBank, error)
}

// CachedLoader reads banks from PostgreSQL and caches them in Redis so
// every learner of the same exam hits the cache, not the database.
type CachedLoader struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewCachedLoader creates a Redis-backed bank loader.
func NewCachedLoader(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *CachedLoader {
	return &CachedLoader{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "bank_loader").Logger(),
	}
}

// LoadBank returns the full bank, answer keys included. Never serve
// the result to a client; use LoadPayload for that.
func (l *CachedLoader) LoadBank(ctx context.Context, examID uuid.UUID) (*model.QuestionBank, error) {
	key := config.CacheKey.BankFullKey(examID.String())

	raw, err := l.rdb.Get(ctx, key).Result()
	if err == nil {
		var bank model.QuestionBank
		if jsonErr := json.Unmarshal([]byte(raw), &bank); jsonErr == nil {
			return &bank, nil
		}
		// Poisoned cache entry: drop it and fall through to the DB.
		_ = l.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		l.log.Warn().Err(err).Msg("Bank cache read failed, falling back to database")
	}

	bank, err := l.loadFromDB(ctx, examID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(bank); err == nil {
		if err := l.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
			l.log.Warn().Err(err).Msg("Bank cache write failed")
		}
	}
	return bank, nil
}

// LoadPayload returns the sanitized bank for the paper endpoint.
func (l *CachedLoader) LoadPayload(ctx context.Context, examID uuid.UUID) (*model.BankPayload, error) {
	key := config.CacheKey.BankPayloadKey(examID.String())

	raw, err := l.rdb.Get(ctx, key).Result()
	if err == nil {
		var payload model.BankPayload
		if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr == nil {
			return &payload, nil
		}
		_ = l.rdb.Del(ctx, key)
	}

	bank, err := l.LoadBank(ctx, examID)
	if err != nil {
		return nil, err
	}
	payload := bank.Sanitize()

	if raw, err := json.Marshal(payload); err == nil {
		if err := l.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
			l.log.Warn().Err(err).Msg("Payload cache write failed")
		}
	}
	return payload, nil
}

// Prewarm loads every published exam's bank into Redis before the
// server accepts traffic, avoiding lazy-load races under load.
func (l *CachedLoader) Prewarm(ctx context.Context) error {
	exams, err := l.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	for _, exam := range exams {
		if _, err := l.LoadBank(ctx, exam.ID); err != nil {
			l.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Prewarm skipped exam")
			continue
		}
		if _, err := l.LoadPayload(ctx, exam.ID); err != nil {
			l.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Prewarm skipped payload")
		}
	}
	l.log.Info().Int("exams", len(exams)).Msg("Bank caches prewarmed")
	return nil
}

func (l *CachedLoader) loadFromDB(ctx context.Context, examID uuid.UUID) (*model.QuestionBank, error) {
	exam, err := l.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, examID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	questions, err := l.examRepo.GetQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &model.QuestionBank{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Budget:    exam.DurationMinutes,
		Questions: questions,
	}, nil
}
