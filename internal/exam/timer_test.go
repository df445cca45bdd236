package exam

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimer_RemainingClampsAtZero(t *testing.T) {
	timer := NewTimer()
	if got := timer.Remaining(); got != 0 {
		t.Errorf("unstarted Remaining = %v, want 0", got)
	}

	// Started in the past with an exhausted budget.
	timer2 := NewTimer()
	if err := timer2.StartAt(time.Now().Add(-2*time.Hour), time.Hour); err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	if got := timer2.Remaining(); got != 0 {
		t.Errorf("expired Remaining = %v, want 0", got)
	}
}

func TestTimer_RemainingNonIncreasing(t *testing.T) {
	timer := NewTimer()
	if err := timer.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer timer.Stop()

	prev := timer.Remaining()
	for i := 0; i < 100; i++ {
		cur := timer.Remaining()
		if cur > prev {
			t.Fatalf("Remaining increased: %v > %v", cur, prev)
		}
		prev = cur
	}
}

func TestTimer_StartAtPastFiresSynchronously(t *testing.T) {
	var fired atomic.Bool
	timer := NewTimer()
	timer.OnExpire(func() { fired.Store(true) })

	if err := timer.StartAt(time.Now().Add(-time.Minute), time.Second); err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	if !fired.Load() {
		t.Error("expiry callback did not fire for a past deadline")
	}
}

func TestTimer_FiresOnce(t *testing.T) {
	var count atomic.Int32
	timer := NewTimer()
	timer.OnExpire(func() { count.Add(1) })

	if err := timer.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	timer.fire() // A second fire attempt must be a no-op.

	if got := count.Load(); got != 1 {
		t.Errorf("expiry fired %d times, want 1", got)
	}
}

func TestTimer_StopPreventsFire(t *testing.T) {
	var fired atomic.Bool
	timer := NewTimer()
	timer.OnExpire(func() { fired.Store(true) })

	if err := timer.Start(20 * time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	timer.Stop()
	time.Sleep(60 * time.Millisecond)

	if fired.Load() {
		t.Error("expiry fired after Stop")
	}
}

func TestTimer_DoubleStartFails(t *testing.T) {
	timer := NewTimer()
	if err := timer.Start(time.Hour); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer timer.Stop()

	if err := timer.Start(time.Hour); err == nil {
		t.Error("second Start succeeded, want error")
	}
}

func TestTimer_Deadline(t *testing.T) {
	timer := NewTimer()
	if !timer.Deadline().IsZero() {
		t.Error("unstarted Deadline is not zero")
	}

	start := time.Now()
	if err := timer.StartAt(start, time.Hour); err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	defer timer.Stop()

	if got, want := timer.Deadline(), start.Add(time.Hour); !got.Equal(want) {
		t.Errorf("Deadline = %v, want %v", got, want)
	}
}
