package exam

import (
	"context"
	"sync"
	"time"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/snapshot"
	"github.com/rs/zerolog"
)

const checkpointWriteTimeout = 5 * time.Second

// checkpointQueue serializes snapshot writes for one session through a
// single in-flight writer. Writes coalesce: only the newest pending
// snapshot is ever written, so the store observes monotonically
// increasing sequence numbers and never an interleaved pair. Enqueue is
// fire-and-forget; a failed write is not rolled back in memory, the
// next write reconciles.
type checkpointQueue struct {
	store snapshot.Store
	log   zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending *model.Snapshot
	writing bool
	closed  bool

	wg sync.WaitGroup
}

func newCheckpointQueue(store snapshot.Store, log zerolog.Logger) *checkpointQueue {
	q := &checkpointQueue{
		store: store,
		log:   log.With().Str("component", "checkpoint_queue").Logger(),
	}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.run()
	return q
}

// enqueue schedules a snapshot write, replacing any not-yet-written
// pending snapshot. No-op after close.
func (q *checkpointQueue) enqueue(snap *model.Snapshot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = snap
	q.cond.Broadcast()
}

// flush blocks until every snapshot enqueued so far has been written.
func (q *checkpointQueue) flush() {
	q.mu.Lock()
	for q.pending != nil || q.writing {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// close writes any pending snapshot and stops the writer goroutine.
func (q *checkpointQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *checkpointQueue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for q.pending == nil && !q.closed {
			q.cond.Wait()
		}
		if q.pending == nil && q.closed {
			q.mu.Unlock()
			return
		}
		snap := q.pending
		q.pending = nil
		q.writing = true
		q.mu.Unlock()

		q.write(snap)

		q.mu.Lock()
		q.writing = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *checkpointQueue) write(snap *model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointWriteTimeout)
	defer cancel()
	if err := q.store.Save(ctx, snap); err != nil {
		q.log.Warn().Err(err).
			Str("session_id", snap.SessionID.String()).
			Uint64("seq", snap.Seq).
			Msg("Checkpoint write failed")
	}
}
