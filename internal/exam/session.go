// Package exam implements the exam session engine: a state machine
// that tracks a learner's progress through a question bank, enforces
// the time budget, owns answer commit semantics, and produces the
// final scored submission.
package exam

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/scoring"
	"github.com/examtrail/examtrail-backend/internal/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one learner's attempt at one exam. A single logical
// writer (the HTTP/WS layer) issues operations; the internal mutex
// exists only because the timer's expiry races explicit submission,
// and that race resolves through the idempotent terminal transition.
type Session struct {
	mu sync.Mutex

	id        uuid.UUID
	examID    uuid.UUID
	learnerID int

	bank        *model.QuestionBank
	state       model.LifecycleState
	position    int
	answers     *answerStore
	timer       *Timer
	startedAt   time.Time
	budget      time.Duration
	finalizedAt time.Time
	forced      bool
	report      *model.SubmissionReport

	policy      scoring.Policy
	checkpoints *checkpointQueue
	seq         uint64
	onFinalize  []func(*model.SubmissionReport)

	log zerolog.Logger
}

// NewSession constructs a fresh session in NOT_STARTED. The caller
// then either Starts it with a bank and budget, or Restores it from a
// persisted snapshot.
func NewSession(examID uuid.UUID, learnerID int, policy scoring.Policy, store snapshot.Store, log zerolog.Logger) *Session {
	s := &Session{
		id:        uuid.New(),
		examID:    examID,
		learnerID: learnerID,
		state:     model.StateNotStarted,
		policy:    policy,
		timer:     NewTimer(),
		log: log.With().
			Str("component", "exam_session").
			Str("exam_id", examID.String()).
			Int("learner_id", learnerID).
			Logger(),
	}
	s.checkpoints = newCheckpointQueue(store, s.log)
	s.timer.OnExpire(s.forceSubmit)
	return s
}

// OnFinalize registers a callback invoked exactly once with the
// submission report, whether the submit was explicit or timer-forced.
// Registering after the terminal transition invokes fn immediately.
func (s *Session) OnFinalize(fn func(*model.SubmissionReport)) {
	s.mu.Lock()
	if s.state == model.StateSubmitted {
		report := s.report
		s.mu.Unlock()
		fn(report)
		return
	}
	s.onFinalize = append(s.onFinalize, fn)
	s.mu.Unlock()
}

// Start binds the question bank, starts the timer and transitions to
// IN_PROGRESS. Valid only from NOT_STARTED.
func (s *Session) Start(bank *model.QuestionBank, budget time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.StateNotStarted {
		return ErrAlreadyStarted
	}
	if bank == nil || bank.Len() == 0 {
		return errors.New("question bank is empty")
	}
	if budget <= 0 {
		return errors.New("time budget must be positive")
	}

	s.bank = bank
	s.answers = newAnswerStore(bank)
	s.position = 0
	s.startedAt = time.Now()
	s.budget = budget
	s.state = model.StateInProgress

	if err := s.timer.Start(budget); err != nil {
		return err
	}

	s.checkpointLocked()
	s.log.Info().Dur("budget", budget).Int("questions", bank.Len()).Msg("Session started")
	return nil
}

// GoTo moves the current position. Navigation is unordered: any
// question may be revisited at any time before submission.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	if index < 0 || index >= s.bank.Len() {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, s.bank.Len())
	}
	s.position = index
	s.checkpointLocked()
	return nil
}

// Answer records the learner's response for a question. Position and
// answers are checkpointed together as one snapshot, never apart.
func (s *Session) Answer(questionID uuid.UUID, payload model.AnswerPayload) (model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return model.Answer{}, err
	}
	ans, err := s.answers.set(questionID, payload)
	if err != nil {
		return model.Answer{}, err
	}
	s.checkpointLocked()
	return ans, nil
}

// ClearAnswer removes the learner's response for a question.
func (s *Session) ClearAnswer(questionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgress(); err != nil {
		return err
	}
	if err := s.answers.clear(questionID); err != nil {
		return err
	}
	s.checkpointLocked()
	return nil
}

// GetAnswer returns the current answer for a question, or false if
// unanswered. Read-only, valid in any started state.
func (s *Session) GetAnswer(questionID uuid.UUID) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers == nil {
		return model.Answer{}, false
	}
	return s.answers.get(questionID)
}

// Submit finalizes the session and returns the scored report. Calling
// it again once SUBMITTED is a no-op returning the existing report, so
// an explicit submit racing the timer's forced submit is benign.
func (s *Session) Submit() (*model.SubmissionReport, error) {
	s.mu.Lock()
	switch s.state {
	case model.StateNotStarted:
		s.mu.Unlock()
		return nil, ErrNotStarted
	case model.StateSubmitted:
		report := s.report
		s.mu.Unlock()
		return report, nil
	}

	report := s.finalizeLocked(false, time.Now())
	hooks := s.takeHooksLocked()
	s.mu.Unlock()

	s.runHooks(hooks, report)
	return report, nil
}

// forceSubmit is the timer expiry path. Whichever of forceSubmit and
// Submit transitions out of IN_PROGRESS first wins; the loser observes
// SUBMITTED and takes the idempotent path.
func (s *Session) forceSubmit() {
	s.mu.Lock()
	if s.state != model.StateInProgress {
		s.mu.Unlock()
		return
	}
	report := s.finalizeLocked(true, s.startedAt.Add(s.budget))
	hooks := s.takeHooksLocked()
	s.mu.Unlock()

	s.log.Info().Msg("Time budget exhausted, session force-submitted")
	s.runHooks(hooks, report)
}

// finalizeLocked performs the terminal transition: stops the timer,
// scores synchronously, stores the immutable report and enqueues the
// terminal checkpoint. Caller holds the lock.
func (s *Session) finalizeLocked(forced bool, at time.Time) *model.SubmissionReport {
	s.state = model.StateSubmitted
	s.forced = forced
	s.finalizedAt = at
	s.timer.Stop()

	taken := at.Sub(s.startedAt)
	if taken > s.budget {
		taken = s.budget
	}

	results, agg := scoring.Score(s.bank, s.answers.snapshotMap(), s.policy)
	s.report = &model.SubmissionReport{
		SessionID:   s.id,
		ExamID:      s.examID,
		LearnerID:   s.learnerID,
		Results:     results,
		Aggregate:   agg,
		Policy:      string(s.policy),
		Forced:      forced,
		FinalizedAt: at,
		TimeTaken:   taken,
	}

	s.checkpointLocked()
	return s.report
}

func (s *Session) takeHooksLocked() []func(*model.SubmissionReport) {
	hooks := s.onFinalize
	s.onFinalize = nil
	return hooks
}

func (s *Session) runHooks(hooks []func(*model.SubmissionReport), report *model.SubmissionReport) {
	for _, fn := range hooks {
		fn(report)
	}
}

// Restore reconstructs the session from a persisted snapshot. Valid
// only as the very first operation on a fresh session. A snapshot whose
// deadline has already passed triggers the forced-submit path before
// Restore returns. Inconsistent snapshots fail with ErrCorruptState and
// leave the session NOT_STARTED.
func (s *Session) Restore(bank *model.QuestionBank, snap *model.Snapshot) error {
	s.mu.Lock()

	if s.state != model.StateNotStarted {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := s.validateSnapshot(bank, snap); err != nil {
		s.mu.Unlock()
		return err
	}

	answers := newAnswerStore(bank)
	if err := answers.restore(snap.Answers); err != nil {
		s.mu.Unlock()
		return err
	}

	s.id = snap.SessionID
	s.bank = bank
	s.answers = answers
	s.position = snap.Position
	s.startedAt = snap.StartedAt
	s.budget = time.Duration(snap.Budget) * time.Second
	s.seq = snap.Seq

	if snap.State == model.StateSubmitted {
		// The terminal snapshot survived a crash before it was cleared.
		// Rebuild the report from the checkpointed answers; the scorer's
		// determinism makes the rebuilt report identical.
		report := s.finalizeLocked(snap.Forced, *snap.FinalizedAt)
		hooks := s.takeHooksLocked()
		s.mu.Unlock()
		s.runHooks(hooks, report)
		return nil
	}

	s.state = model.StateInProgress
	s.mu.Unlock()

	// Remaining time derives from the absolute deadline; a retroactively
	// expired timer fires synchronously here, forcing submission of the
	// checkpointed answers instead of granting extra time.
	if err := s.timer.StartAt(snap.StartedAt, s.budget); err != nil {
		return err
	}

	s.log.Info().
		Uint64("seq", snap.Seq).
		Int("position", snap.Position).
		Int("answers", len(snap.Answers)).
		Msg("Session restored from snapshot")
	return nil
}

func (s *Session) validateSnapshot(bank *model.QuestionBank, snap *model.Snapshot) error {
	if bank == nil || bank.Len() == 0 {
		return fmt.Errorf("%w: empty question bank", ErrCorruptState)
	}
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrCorruptState)
	}
	switch snap.State {
	case model.StateInProgress:
		if snap.Position < 0 || snap.Position >= bank.Len() {
			return fmt.Errorf("%w: position %d not in [0,%d)", ErrCorruptState, snap.Position, bank.Len())
		}
	case model.StateSubmitted:
		if snap.Position < 0 || snap.Position > bank.Len() {
			return fmt.Errorf("%w: position %d not in [0,%d]", ErrCorruptState, snap.Position, bank.Len())
		}
		if snap.FinalizedAt == nil {
			return fmt.Errorf("%w: terminal snapshot without finalized timestamp", ErrCorruptState)
		}
	default:
		return fmt.Errorf("%w: lifecycle state %q is not restorable", ErrCorruptState, snap.State)
	}
	if snap.ExamID != s.examID || snap.LearnerID != s.learnerID {
		return fmt.Errorf("%w: snapshot belongs to a different session", ErrCorruptState)
	}
	if snap.Budget <= 0 || snap.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start timestamp or budget", ErrCorruptState)
	}
	return nil
}

// State returns the learner-facing view of the session.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.SessionState{
		SessionID: s.id,
		ExamID:    s.examID,
		State:     s.state,
		Position:  s.position,
	}
	if s.answers != nil {
		st.Answers = s.answers.snapshotMap()
	}
	if s.state == model.StateInProgress {
		st.RemainingSeconds = s.timer.Remaining().Seconds()
	}
	return st
}

// Report returns the submission report once the session is terminal.
func (s *Session) Report() (*model.SubmissionReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.report != nil
}

// Remaining returns the time left on the budget, clamped at zero.
func (s *Session) Remaining() time.Duration {
	return s.timer.Remaining()
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// ExamID returns the bound exam identifier.
func (s *Session) ExamID() uuid.UUID { return s.examID }

// LearnerID returns the owning learner.
func (s *Session) LearnerID() int { return s.learnerID }

// Lifecycle returns the current state.
func (s *Session) Lifecycle() model.LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FlushCheckpoints blocks until all enqueued snapshots are written.
func (s *Session) FlushCheckpoints() {
	s.checkpoints.flush()
}

// Close flushes pending checkpoints and releases the timer and writer.
func (s *Session) Close() {
	s.timer.Stop()
	s.checkpoints.close()
}

func (s *Session) requireInProgress() error {
	switch s.state {
	case model.StateNotStarted:
		return ErrNotStarted
	case model.StateSubmitted:
		return ErrSubmitted
	}
	return nil
}

// checkpointLocked enqueues a snapshot of the current state. Position,
// answers and elapsed time travel as one atomic unit.
func (s *Session) checkpointLocked() {
	s.seq++
	snap := &model.Snapshot{
		SessionID: s.id,
		ExamID:    s.examID,
		LearnerID: s.learnerID,
		Position:  s.position,
		Answers:   s.answers.snapshotMap(),
		StartedAt: s.startedAt,
		Budget:    int64(s.budget / time.Second),
		State:     s.state,
		Seq:       s.seq,
	}
	if s.state == model.StateSubmitted {
		at := s.finalizedAt
		snap.FinalizedAt = &at
		snap.Forced = s.forced
	}
	s.checkpoints.enqueue(snap)
}
