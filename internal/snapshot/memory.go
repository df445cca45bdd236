package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/google/uuid"
)

// MemoryStore is an in-process snapshot store used in tests and
// single-node dev setups. It rejects out-of-order writes so ordering
// violations in the checkpoint path surface as errors.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[string]*model.Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*model.Snapshot)}
}

func memKey(examID uuid.UUID, learnerID int) string {
	return fmt.Sprintf("%d:%s", learnerID, examID)
}

func (s *MemoryStore) Save(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(snap.ExamID, snap.LearnerID)
	if prev, ok := s.snaps[key]; ok && snap.Seq < prev.Seq {
		return fmt.Errorf("stale snapshot write: seq %d after %d", snap.Seq, prev.Seq)
	}
	cp := *snap
	cp.Answers = make(map[uuid.UUID]model.Answer, len(snap.Answers))
	for k, v := range snap.Answers {
		cp.Answers[k] = v
	}
	s.snaps[key] = &cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, examID uuid.UUID, learnerID int) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[memKey(examID, learnerID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	cp.Answers = make(map[uuid.UUID]model.Answer, len(snap.Answers))
	for k, v := range snap.Answers {
		cp.Answers[k] = v
	}
	return &cp, nil
}

func (s *MemoryStore) Clear(_ context.Context, examID uuid.UUID, learnerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, memKey(examID, learnerID))
	return nil
}
