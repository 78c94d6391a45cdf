// Package debounce provides a per-entity timer registry used to coalesce
// rapid successive updates (e.g. message-count increments on one lead) into a
// single deferred callback. This is part of the platform layer and contains
// no business logic.
package debounce

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is the coalescing window used when none is configured.
const DefaultWindow = 150 * time.Millisecond

// Registry coalesces callbacks per entity id: scheduling for an id that
// already has a pending timer replaces the pending callback, so only the last
// one within the window fires. Stop cancels everything and makes the registry
// inert, which is required when the owning component tears down.
type Registry struct {
	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	window  time.Duration
	stopped bool
}

// NewRegistry creates a registry with the given window; non-positive values
// fall back to DefaultWindow.
func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Registry{
		timers: make(map[uuid.UUID]*time.Timer),
		window: window,
	}
}

// Schedule arranges fn to run after the window. A pending timer for the same
// id is replaced, so the last scheduled fn wins. Callbacks run on timer
// goroutines.
func (r *Registry) Schedule(id uuid.UUID, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if existing, ok := r.timers[id]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(r.window, func() {
		r.mu.Lock()
		// A replaced timer may still fire; only the current one proceeds.
		if r.stopped || r.timers[id] != timer {
			r.mu.Unlock()
			return
		}
		delete(r.timers, id)
		r.mu.Unlock()

		fn()
	})
	r.timers[id] = timer
}

// Cancel drops any pending timer for the id.
func (r *Registry) Cancel(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.timers[id]; ok {
		timer.Stop()
		delete(r.timers, id)
	}
}

// Stop cancels all pending timers and rejects further scheduling.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
	r.stopped = true
}

// Pending returns the number of timers currently scheduled.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
