package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/examtrail/examtrail-backend/internal/config"
	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ReportBatchSize    = 50
	ReportBatchTimeout = 2 * time.Second
	ReportPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ReportWorker consumes the persist-reports queue and records finalized
// submission reports in PostgreSQL. The upsert keys on (exam, learner)
// so a report replayed after a crash recovery lands on the same row.
type ReportWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewReportWorker creates a new ReportWorker.
func NewReportWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "report_worker").Logger(),
	}
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *ReportWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReportWorker started")

	batch := make([]*model.SubmissionReport, 0, ReportBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ReportBatchSize || time.Since(lastFlush) >= ReportBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ReportPollTimeout, config.WorkerKey.PersistReportsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var report model.SubmissionReport
			if err := json.Unmarshal([]byte(item[1]), &report); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &report)
		}
	}
}

func (w *ReportWorker) flushSafe(ctx context.Context, batch []*model.SubmissionReport) {
	if len(batch) == 0 {
		return
	}

	if err := w.persistBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Batch report persist failed, using fallback")

		for _, report := range batch {
			if err := w.persistSingle(ctx, report); err != nil {
				w.log.Error().Err(err).
					Str("session_id", report.SessionID.String()).
					Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(report)
				w.rdb.RPush(ctx, config.WorkerKey.PersistReportsQueue, raw)
			}
		}
	}
}

// persistBatch writes the whole batch in one round trip via pgx batch
// pipelining.
func (w *ReportWorker) persistBatch(ctx context.Context, reports []*model.SubmissionReport) error {
	b := &pgx.Batch{}
	for _, report := range reports {
		args, err := reportArgs(report)
		if err != nil {
			return err
		}
		b.Queue(upsertReportSQL, args...)
	}

	results := w.pool.SendBatch(ctx, b)
	defer results.Close()

	for range reports {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (w *ReportWorker) persistSingle(ctx context.Context, report *model.SubmissionReport) error {
	args, err := reportArgs(report)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, upsertReportSQL, args...)
	return err
}

const upsertReportSQL = `
	INSERT INTO exam_sessions (id, exam_id, learner_id, status, started_at, finalized_at, forced, awarded, available, report)
	VALUES ($1, $2, $3, 'COMPLETED', $4, $5, $6, $7, $8, $9)
	ON CONFLICT (exam_id, learner_id) DO UPDATE
	SET status = 'COMPLETED',
	    finalized_at = EXCLUDED.finalized_at,
	    forced = EXCLUDED.forced,
	    awarded = EXCLUDED.awarded,
	    available = EXCLUDED.available,
	    report = EXCLUDED.report
`

func reportArgs(report *model.SubmissionReport) ([]any, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	startedAt := report.FinalizedAt.Add(-report.TimeTaken)
	return []any{
		report.SessionID,
		report.ExamID,
		report.LearnerID,
		startedAt,
		report.FinalizedAt,
		report.Forced,
		report.Aggregate.Awarded,
		report.Aggregate.Available,
		raw,
	}, nil
}
