package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/examtrail/examtrail-backend/internal/bank"
	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/scoring"
	"github.com/examtrail/examtrail-backend/internal/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportSink receives finalized submission reports for remote
// recording. Fire-and-forget: delivery retries live behind the sink.
type ReportSink interface {
	PublishReport(ctx context.Context, report *model.SubmissionReport)
}

// Manager owns the live sessions of this process: one explicit session
// object per learner and exam, created on start, rebuilt from its
// snapshot after an interruption, finalized exactly once.
type Manager struct {
	mu   sync.Mutex
	live map[string]*Session

	store  snapshot.Store
	loader bank.Loader
	policy scoring.Policy
	sink   ReportSink
	log    zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(store snapshot.Store, loader bank.Loader, policy scoring.Policy, sink ReportSink, log zerolog.Logger) *Manager {
	return &Manager{
		live:   make(map[string]*Session),
		store:  store,
		loader: loader,
		policy: policy,
		sink:   sink,
		log:    log.With().Str("component", "session_manager").Logger(),
	}
}

func sessionKey(learnerID int, examID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", learnerID, examID)
}

// StartOrResume returns the learner's session for the exam: the live
// one if present, a restored one if a snapshot survives, a freshly
// started one otherwise. The second return reports whether an existing
// attempt was resumed.
func (m *Manager) StartOrResume(ctx context.Context, learnerID int, examID uuid.UUID) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(learnerID, examID)
	if sess, ok := m.live[key]; ok {
		return sess, true, nil
	}

	qbank, err := m.loader.LoadBank(ctx, examID)
	if err != nil {
		return nil, false, err
	}

	// Try to pick up an interrupted attempt first.
	snap, err := m.store.Load(ctx, examID, learnerID)
	switch {
	case err == nil:
		sess, restoreErr := m.restore(ctx, learnerID, examID, qbank, snap)
		if restoreErr == nil {
			m.live[key] = sess
			return sess, true, nil
		}
		if !errors.Is(restoreErr, ErrCorruptState) {
			return nil, false, restoreErr
		}
		// Corrupt snapshot: discard and fall through to a fresh start.
		m.log.Warn().Err(restoreErr).
			Str("exam_id", examID.String()).
			Int("learner_id", learnerID).
			Msg("Discarding corrupt session snapshot")
		if clearErr := m.store.Clear(ctx, examID, learnerID); clearErr != nil {
			m.log.Error().Err(clearErr).Msg("Failed to clear corrupt snapshot")
		}
	case !errors.Is(err, snapshot.ErrNotFound):
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	sess := m.newSession(learnerID, examID)
	budget := time.Duration(qbank.Budget) * time.Minute
	if err := sess.Start(qbank, budget); err != nil {
		sess.Close()
		return nil, false, err
	}
	m.live[key] = sess
	return sess, false, nil
}

// Get returns the live session if one exists in this process.
func (m *Manager) Get(learnerID int, examID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.live[sessionKey(learnerID, examID)]
	return sess, ok
}

// Close flushes and releases every live session. Called on shutdown;
// in-progress attempts survive in the snapshot store.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, sess := range m.live {
		sess.Close()
		delete(m.live, key)
	}
}

func (m *Manager) newSession(learnerID int, examID uuid.UUID) *Session {
	sess := NewSession(examID, learnerID, m.policy, m.store, m.log)
	sess.OnFinalize(func(report *model.SubmissionReport) {
		// Ensure the terminal checkpoint is on disk before the snapshot
		// is cleared, so a crash in between replays deterministically.
		sess.FlushCheckpoints()
		m.sink.PublishReport(context.Background(), report)
		if err := m.store.Clear(context.Background(), examID, learnerID); err != nil {
			m.log.Warn().Err(err).Msg("Failed to clear finalized snapshot")
		}
	})
	return sess
}

func (m *Manager) restore(_ context.Context, learnerID int, examID uuid.UUID, qbank *model.QuestionBank, snap *model.Snapshot) (*Session, error) {
	sess := m.newSession(learnerID, examID)
	if err := sess.Restore(qbank, snap); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}
