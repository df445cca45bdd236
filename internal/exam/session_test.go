package exam

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/scoring"
	"github.com/examtrail/examtrail-backend/internal/snapshot"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestSession(t *testing.T, bank *model.QuestionBank, store snapshot.Store) *Session {
	t.Helper()
	sess := NewSession(bank.ExamID, 7, scoring.PolicyZeroUntilReviewed, store, zerolog.Nop())
	t.Cleanup(sess.Close)
	return sess
}

func startedSession(t *testing.T, bank *model.QuestionBank, store snapshot.Store, budget time.Duration) *Session {
	t.Helper()
	sess := newTestSession(t, bank, store)
	if err := sess.Start(bank, budget); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return sess
}

func TestSession_Lifecycle(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	sess := newTestSession(t, bank, store)

	// Mutations before Start fail.
	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{0}}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Answer before start = %v, want ErrNotStarted", err)
	}
	if _, err := sess.Submit(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Submit before start = %v, want ErrNotStarted", err)
	}

	if err := sess.Start(bank, 30*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sess.Lifecycle(); got != model.StateInProgress {
		t.Errorf("state after start = %s, want IN_PROGRESS", got)
	}

	// Starting twice fails.
	if err := sess.Start(bank, 30*time.Minute); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}

	st := sess.State()
	if st.Position != 0 {
		t.Errorf("initial position = %d, want 0", st.Position)
	}
	if st.RemainingSeconds <= 0 || st.RemainingSeconds > (30*time.Minute).Seconds() {
		t.Errorf("remaining = %v, want (0, 1800]", st.RemainingSeconds)
	}
}

func TestSession_StartValidation(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()

	empty := &model.QuestionBank{ExamID: bank.ExamID}
	sess := newTestSession(t, bank, store)
	if err := sess.Start(empty, time.Hour); err == nil {
		t.Error("Start with empty bank succeeded")
	}

	sess2 := newTestSession(t, bank, store)
	if err := sess2.Start(bank, 0); err == nil {
		t.Error("Start with zero budget succeeded")
	}
}

func TestSession_GoTo(t *testing.T) {
	bank := testBank()
	sess := startedSession(t, bank, snapshot.NewMemoryStore(), time.Hour)

	if err := sess.GoTo(2); err != nil {
		t.Fatalf("GoTo(2): %v", err)
	}
	if got := sess.State().Position; got != 2 {
		t.Errorf("position = %d, want 2", got)
	}

	// Revisiting an earlier question is allowed.
	if err := sess.GoTo(0); err != nil {
		t.Fatalf("GoTo(0): %v", err)
	}

	for _, idx := range []int{-1, bank.Len()} {
		if err := sess.GoTo(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("GoTo(%d) = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
}

func TestSession_SubmitIdempotent(t *testing.T) {
	bank := testBank()
	sess := startedSession(t, bank, snapshot.NewMemoryStore(), time.Hour)

	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	first, err := sess.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := sess.Submit()
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if first != second {
		t.Error("second Submit returned a different report")
	}
	if first.Forced {
		t.Error("explicit submit marked forced")
	}
	if first.Aggregate.Awarded != 2 {
		t.Errorf("awarded = %v, want 2", first.Aggregate.Awarded)
	}

	// Post-submit mutations fail, reads still work.
	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{0}}); !errors.Is(err, ErrSubmitted) {
		t.Errorf("Answer after submit = %v, want ErrSubmitted", err)
	}
	if err := sess.GoTo(1); !errors.Is(err, ErrSubmitted) {
		t.Errorf("GoTo after submit = %v, want ErrSubmitted", err)
	}
	if _, ok := sess.Report(); !ok {
		t.Error("Report unavailable after submit")
	}
}

func TestSession_ForcedSubmitOnExpiry(t *testing.T) {
	bank := testBank()
	sess := startedSession(t, bank, snapshot.NewMemoryStore(), 30*time.Millisecond)

	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	done := make(chan *model.SubmissionReport, 1)
	sess.OnFinalize(func(r *model.SubmissionReport) { done <- r })

	var report *model.SubmissionReport
	select {
	case report = <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not force submission")
	}

	if !report.Forced {
		t.Error("forced submission not marked forced")
	}
	if report.TimeTaken != 30*time.Millisecond {
		t.Errorf("TimeTaken = %v, want the full budget", report.TimeTaken)
	}
	if report.Aggregate.Awarded != 2 {
		t.Errorf("awarded = %v, want 2 (answers at expiry count)", report.Aggregate.Awarded)
	}

	// An explicit submit racing the expiry takes the idempotent path.
	again, err := sess.Submit()
	if err != nil {
		t.Fatalf("Submit after expiry: %v", err)
	}
	if again != report {
		t.Error("Submit after expiry returned a different report")
	}
}

func TestSession_OnFinalizeAfterSubmitFiresImmediately(t *testing.T) {
	bank := testBank()
	sess := startedSession(t, bank, snapshot.NewMemoryStore(), time.Hour)
	if _, err := sess.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	called := false
	sess.OnFinalize(func(*model.SubmissionReport) { called = true })
	if !called {
		t.Error("hook registered after submit did not fire")
	}
}

func TestSession_CheckpointRestoreRoundTrip(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	sess := startedSession(t, bank, store, time.Hour)

	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := sess.Answer(bank.Questions[2].ID, model.AnswerPayload{Text: strp("an essay")}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := sess.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	sess.FlushCheckpoints()
	before := sess.State()
	sess.Close()

	snap, err := store.Load(context.Background(), bank.ExamID, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	restored := newTestSession(t, bank, store)
	if err := restored.Restore(bank, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	after := restored.State()
	if after.State != model.StateInProgress {
		t.Errorf("restored state = %s, want IN_PROGRESS", after.State)
	}
	if after.Position != before.Position {
		t.Errorf("restored position = %d, want %d", after.Position, before.Position)
	}
	if !reflect.DeepEqual(after.Answers, before.Answers) {
		t.Errorf("restored answers = %v, want %v", after.Answers, before.Answers)
	}
	if after.SessionID != before.SessionID {
		t.Error("restore changed the session identity")
	}
	if after.RemainingSeconds <= 0 {
		t.Error("restored session has no remaining time")
	}
}

func TestSession_RestoreExpiredForcesSubmit(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	qID := bank.Questions[0].ID

	snap := &model.Snapshot{
		SessionID: uuid.New(),
		ExamID:    bank.ExamID,
		LearnerID: 7,
		Position:  1,
		Answers: map[uuid.UUID]model.Answer{
			qID: {QuestionID: qID, Type: model.QuestionTypeMCQ, Selected: []int{1}},
		},
		StartedAt: time.Now().Add(-2 * time.Hour),
		Budget:    3600,
		State:     model.StateInProgress,
		Seq:       4,
	}

	sess := newTestSession(t, bank, store)
	if err := sess.Restore(bank, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if got := sess.Lifecycle(); got != model.StateSubmitted {
		t.Fatalf("state after expired restore = %s, want SUBMITTED", got)
	}
	report, ok := sess.Report()
	if !ok {
		t.Fatal("no report after expired restore")
	}
	if !report.Forced {
		t.Error("expired restore not marked forced")
	}
	// The checkpointed answers count; no extra time is granted.
	if report.Aggregate.Awarded != 2 {
		t.Errorf("awarded = %v, want 2", report.Aggregate.Awarded)
	}
	if report.TimeTaken != time.Hour {
		t.Errorf("TimeTaken = %v, want the full budget", report.TimeTaken)
	}
}

func TestSession_RestoreTerminalSnapshotRebuildsReport(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	sess := startedSession(t, bank, store, time.Hour)

	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{1}}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	original, err := sess.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	sess.FlushCheckpoints()
	sess.Close()

	// Simulate a crash after the terminal checkpoint but before the
	// snapshot clear: the snapshot is still in the store.
	snap, err := store.Load(context.Background(), bank.ExamID, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.State != model.StateSubmitted {
		t.Fatalf("terminal snapshot state = %s, want SUBMITTED", snap.State)
	}

	restored := newTestSession(t, bank, store)
	var hookReport *model.SubmissionReport
	restored.OnFinalize(func(r *model.SubmissionReport) { hookReport = r })
	if err := restored.Restore(bank, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	rebuilt, ok := restored.Report()
	if !ok {
		t.Fatal("no report after terminal restore")
	}
	if hookReport == nil {
		t.Error("finalize hook did not run on terminal restore")
	}
	if !reflect.DeepEqual(rebuilt.Results, original.Results) {
		t.Errorf("rebuilt results differ:\n got %v\nwant %v", rebuilt.Results, original.Results)
	}
	if rebuilt.Aggregate != original.Aggregate {
		t.Errorf("rebuilt aggregate = %v, want %v", rebuilt.Aggregate, original.Aggregate)
	}
	if !rebuilt.FinalizedAt.Equal(original.FinalizedAt) {
		t.Errorf("rebuilt FinalizedAt = %v, want %v", rebuilt.FinalizedAt, original.FinalizedAt)
	}
}

func TestSession_RestoreCorruptSnapshots(t *testing.T) {
	bank := testBank()
	now := time.Now()

	base := func() *model.Snapshot {
		return &model.Snapshot{
			SessionID: uuid.New(),
			ExamID:    bank.ExamID,
			LearnerID: 7,
			Position:  0,
			Answers:   map[uuid.UUID]model.Answer{},
			StartedAt: now,
			Budget:    1800,
			State:     model.StateInProgress,
			Seq:       1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.Snapshot)
	}{
		{"negative position", func(s *model.Snapshot) { s.Position = -1 }},
		{"position past bank", func(s *model.Snapshot) { s.Position = bank.Len() }},
		{"wrong exam", func(s *model.Snapshot) { s.ExamID = uuid.New() }},
		{"wrong learner", func(s *model.Snapshot) { s.LearnerID = 99 }},
		{"not started state", func(s *model.Snapshot) { s.State = model.StateNotStarted }},
		{"unknown state", func(s *model.Snapshot) { s.State = "GARBAGE" }},
		{"zero start", func(s *model.Snapshot) { s.StartedAt = time.Time{} }},
		{"non-positive budget", func(s *model.Snapshot) { s.Budget = 0 }},
		{"terminal without finalized_at", func(s *model.Snapshot) { s.State = model.StateSubmitted }},
		{"answer for unknown question", func(s *model.Snapshot) {
			s.Answers[uuid.New()] = model.Answer{Type: model.QuestionTypeMCQ, Selected: []int{0}}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := base()
			tc.mutate(snap)

			sess := newTestSession(t, bank, snapshot.NewMemoryStore())
			err := sess.Restore(bank, snap)
			if !errors.Is(err, ErrCorruptState) {
				t.Fatalf("Restore = %v, want ErrCorruptState", err)
			}
			if got := sess.Lifecycle(); got != model.StateNotStarted {
				t.Errorf("state after refused restore = %s, want NOT_STARTED", got)
			}
		})
	}
}

func TestSession_InvalidAnswerWritesNoCheckpoint(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	sess := startedSession(t, bank, store, time.Hour)
	sess.FlushCheckpoints()

	before, err := store.Load(context.Background(), bank.ExamID, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{99}}); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("Answer = %v, want ErrInvalidAnswer", err)
	}
	sess.FlushCheckpoints()

	after, err := store.Load(context.Background(), bank.ExamID, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if after.Seq != before.Seq {
		t.Errorf("rejected answer advanced the checkpoint seq: %d -> %d", before.Seq, after.Seq)
	}
	if got := sess.Lifecycle(); got != model.StateInProgress {
		t.Errorf("state after rejected answer = %s, want IN_PROGRESS", got)
	}
}

func TestSession_CheckpointSeqMonotonic(t *testing.T) {
	bank := testBank()
	store := snapshot.NewMemoryStore()
	sess := startedSession(t, bank, store, time.Hour)

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		if _, err := sess.Answer(bank.Questions[0].ID, model.AnswerPayload{Selected: []int{i % 4}}); err != nil {
			t.Fatalf("Answer %d: %v", i, err)
		}
		sess.FlushCheckpoints()
		snap, err := store.Load(context.Background(), bank.ExamID, 7)
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if snap.Seq <= lastSeq {
			t.Fatalf("seq did not advance: %d after %d", snap.Seq, lastSeq)
		}
		lastSeq = snap.Seq
	}
}
