package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestScheduleCoalescesToLastCallback(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	defer r.Stop()

	id := uuid.New()
	var fired atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		value := int32(i)
		r.Schedule(id, func() {
			fired.Add(1)
			last.Store(value)
		})
	}

	waitFor(t, time.Second, func() bool { return fired.Load() > 0 })
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly one callback, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Fatalf("expected last scheduled callback to win, got value %d", got)
	}
}

func TestScheduleKeepsDistinctIDsIndependent(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	defer r.Stop()

	var fired atomic.Int32
	r.Schedule(uuid.New(), func() { fired.Add(1) })
	r.Schedule(uuid.New(), func() { fired.Add(1) })

	waitFor(t, time.Second, func() bool { return fired.Load() == 2 })
}

func TestCancelDropsPendingTimer(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	defer r.Stop()

	id := uuid.New()
	var fired atomic.Int32
	r.Schedule(id, func() { fired.Add(1) })
	r.Cancel(id)

	if r.Pending() != 0 {
		t.Fatalf("expected no pending timers after cancel, got %d", r.Pending())
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("expected cancelled callback not to fire")
	}
}

func TestStopRejectsFurtherScheduling(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)

	var fired atomic.Int32
	r.Schedule(uuid.New(), func() { fired.Add(1) })
	r.Stop()

	if r.Pending() != 0 {
		t.Fatalf("expected stop to cancel pending timers, got %d", r.Pending())
	}

	r.Schedule(uuid.New(), func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)

	if fired.Load() != 0 {
		t.Fatalf("expected no callbacks after stop, got %d", fired.Load())
	}
	if r.Pending() != 0 {
		t.Fatal("expected scheduling after stop to be a no-op")
	}
}

func TestNonPositiveWindowFallsBackToDefault(t *testing.T) {
	r := NewRegistry(0)
	defer r.Stop()

	if r.window != DefaultWindow {
		t.Fatalf("expected default window %v, got %v", DefaultWindow, r.window)
	}
}
