package exam

import (
	"sync"
	"time"
)

// Timer counts down a fixed budget against an absolute deadline and
// fires its expiry callback exactly once, at or after the deadline.
// Remaining time is derived from the absolute start timestamp, never
// from accumulated ticks, so a timer restored past its deadline fires
// immediately instead of silently granting extra time.
type Timer struct {
	mu        sync.Mutex
	startedAt time.Time
	budget    time.Duration
	started   bool
	onExpire  func()
	fired     bool
	stop      *time.Timer
}

// NewTimer creates an unstarted timer.
func NewTimer() *Timer {
	return &Timer{}
}

// OnExpire registers the one-shot expiry callback. Must be called
// before Start; a nil callback is ignored at fire time.
func (t *Timer) OnExpire(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// Start begins counting the budget from now.
func (t *Timer) Start(budget time.Duration) error {
	return t.StartAt(time.Now(), budget)
}

// StartAt begins counting the budget from an explicit start instant.
// Used on restore: if the deadline has already passed, the expiry
// callback fires synchronously before StartAt returns.
func (t *Timer) StartAt(startedAt time.Time, budget time.Duration) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.startedAt = startedAt
	t.budget = budget

	remaining := time.Until(startedAt.Add(budget))
	if remaining <= 0 {
		t.mu.Unlock()
		t.fire()
		return nil
	}

	t.stop = time.AfterFunc(remaining, t.fire)
	t.mu.Unlock()
	return nil
}

// Remaining returns the time left before the deadline, clamped at zero.
// Never blocks, monotonically non-increasing between calls.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	remaining := time.Until(t.startedAt.Add(t.budget))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Deadline returns the absolute expiry instant. Zero if unstarted.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return time.Time{}
	}
	return t.startedAt.Add(t.budget)
}

// Stop cancels the pending expiry without firing it. Used when the
// session submits before the deadline.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired = true
	if t.stop != nil {
		t.stop.Stop()
	}
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}
