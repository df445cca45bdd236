package worker

import (
	"context"
	"encoding/json"

	"github.com/examtrail/examtrail-backend/internal/config"
	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerEvent is one durable-autosave unit: a learner's latest answer
// to one question, or a clear of it.
type AnswerEvent struct {
	LearnerID  int             `json:"learner_id"`
	ExamID     string          `json:"exam_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Cleared    bool            `json:"cleared,omitempty"`
}

// Queue publishes work onto the Redis worker queues. Publishing is
// fire-and-forget: failures are logged, never bubbled to the session.
type Queue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueue creates a queue publisher.
func NewQueue(rdb *redis.Client, log zerolog.Logger) *Queue {
	return &Queue{
		rdb: rdb,
		log: log.With().Str("component", "worker_queue").Logger(),
	}
}

// PublishAnswer enqueues an answer event for the answer worker.
func (q *Queue) PublishAnswer(ctx context.Context, e AnswerEvent) {
	raw, err := json.Marshal(e)
	if err != nil {
		q.log.Error().Err(err).Msg("Marshal answer event failed")
		return
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
		q.log.Error().Err(err).Msg("Enqueue answer event failed")
	}
}

// PublishReport enqueues a finalized submission report for the report
// worker.
func (q *Queue) PublishReport(ctx context.Context, report *model.SubmissionReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		q.log.Error().Err(err).Msg("Marshal report failed")
		return
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw).Err(); err != nil {
		q.log.Error().Err(err).
			Str("session_id", report.SessionID.String()).
			Msg("Enqueue report failed")
	}
}
