// Package realtime bridges domain events to connected boards. The listener
// validates tenant ownership, coalesces update bursts and keeps the shared
// board cache consistent; the sse subpackage fans the results out.
package realtime

import (
	"context"
	"sync"
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/internal/realtime/sse"
	"funnelboard/platform/debounce"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

// State is the listener lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateUnsubscribed
)

// LeadSource is the unscoped lead read the listener uses to re-validate
// ownership before an event touches any cache.
type LeadSource interface {
	LeadByIDUnscoped(ctx context.Context, leadID uuid.UUID) (boardcache.Lead, error)
}

// Listener consumes lead delta events from the bus and applies them to the
// board cache before broadcasting over SSE.
//
// Inserts invalidate the funnel's whole key namespace (pagination state is
// unknowable after an insert). Updates are debounced per lead and applied as
// targeted patches. Deletes are immediate and never suppressed. While a drag
// gesture is in flight on a funnel, insert and update handling is paused so
// the server echo cannot snap a card back mid-drag.
type Listener struct {
	leads    LeadSource
	cache    *boardcache.Store
	fanout   *sse.Service
	debounce *debounce.Registry
	log      *logger.Logger

	mu           sync.Mutex
	state        State
	paused       map[uuid.UUID]bool // funnelID -> drag in flight
	pendingPatch map[uuid.UUID]pendingUpdate
}

type pendingUpdate struct {
	patch    boardcache.LeadPatch
	funnelID uuid.UUID
	tenantID uuid.UUID
}

// NewListener creates an idle listener. Call Subscribe to attach it.
func NewListener(leads LeadSource, cache *boardcache.Store, fanout *sse.Service, window time.Duration, log *logger.Logger) *Listener {
	return &Listener{
		leads:        leads,
		cache:        cache,
		fanout:       fanout,
		debounce:     debounce.NewRegistry(window),
		log:          log,
		state:        StateIdle,
		paused:       make(map[uuid.UUID]bool),
		pendingPatch: make(map[uuid.UUID]pendingUpdate),
	}
}

// Subscribe attaches the listener to the bus. Idempotent; a torn-down
// listener cannot be resubscribed.
func (l *Listener) Subscribe(bus events.Bus) {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return
	}
	l.state = StateSubscribed
	l.mu.Unlock()

	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(l.onLeadCreated))
	bus.Subscribe(events.LeadUpdated{}.EventName(), events.HandlerFunc(l.onLeadUpdated))
	bus.Subscribe(events.LeadDeleted{}.EventName(), events.HandlerFunc(l.onLeadDeleted))
	bus.Subscribe(events.LeadStageChanged{}.EventName(), events.HandlerFunc(l.onStageChanged))
	bus.Subscribe(events.LeadTagsChanged{}.EventName(), events.HandlerFunc(l.onTagsChanged))
	bus.Subscribe(events.StageListChanged{}.EventName(), events.HandlerFunc(l.onStageListChanged))
	bus.Subscribe(events.DragStarted{}.EventName(), events.HandlerFunc(l.onDragStarted))
	bus.Subscribe(events.DragEnded{}.EventName(), events.HandlerFunc(l.onDragEnded))
}

// Unsubscribe tears the listener down: handlers become no-ops and every
// pending debounce timer is stopped.
func (l *Listener) Unsubscribe() {
	l.mu.Lock()
	l.state = StateUnsubscribed
	l.pendingPatch = make(map[uuid.UUID]pendingUpdate)
	l.mu.Unlock()

	l.debounce.Stop()
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// PendingUpdates returns the number of coalescing timers in flight.
func (l *Listener) PendingUpdates() int {
	return l.debounce.Pending()
}

func (l *Listener) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateSubscribed
}

func (l *Listener) pausedFor(funnelID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused[funnelID]
}

// validate refetches the lead and checks the event's claimed tenant against
// the row. A mismatch is dropped silently; the log line is the only trace.
func (l *Listener) validate(ctx context.Context, eventName string, leadID, claimedTenant uuid.UUID) (boardcache.Lead, bool) {
	lead, err := l.leads.LeadByIDUnscoped(ctx, leadID)
	if err != nil {
		l.log.Warn("realtime validation refetch failed", "event", eventName, "leadId", leadID, "error", err)
		return boardcache.Lead{}, false
	}
	if lead.CreatedByUserID != claimedTenant {
		l.log.RealtimeDropped(eventName, leadID.String(), claimedTenant.String(), lead.CreatedByUserID.String())
		return boardcache.Lead{}, false
	}
	return lead, true
}

func (l *Listener) onLeadCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadCreated)
	if !ok || !l.active() || l.pausedFor(e.FunnelID) {
		return nil
	}

	lead, ok := l.validate(ctx, e.EventName(), e.LeadID, e.CreatedByUserID)
	if !ok {
		return nil
	}

	l.cache.InvalidatePrefix(boardcache.FunnelPrefix(e.FunnelID))
	l.fanout.Broadcast(lead.CreatedByUserID, sse.Event{
		Type:     sse.EventLeadCreated,
		LeadID:   lead.ID,
		FunnelID: e.FunnelID,
		Data:     lead,
	})
	return nil
}

func (l *Listener) onLeadUpdated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadUpdated)
	if !ok || !l.active() || l.pausedFor(e.FunnelID) {
		return nil
	}

	if _, ok := l.validate(ctx, e.EventName(), e.LeadID, e.CreatedByUserID); !ok {
		return nil
	}

	l.mu.Lock()
	l.pendingPatch[e.LeadID] = pendingUpdate{
		patch:    e.Patch,
		funnelID: e.FunnelID,
		tenantID: e.CreatedByUserID,
	}
	l.mu.Unlock()

	leadID := e.LeadID
	l.debounce.Schedule(leadID, func() {
		l.mu.Lock()
		pending, ok := l.pendingPatch[leadID]
		delete(l.pendingPatch, leadID)
		l.mu.Unlock()
		if !ok {
			return
		}

		l.cache.PatchLead(leadID.String(), pending.patch)
		l.fanout.Broadcast(pending.tenantID, sse.Event{
			Type:     sse.EventLeadUpdated,
			LeadID:   leadID,
			FunnelID: pending.funnelID,
		})
	})
	return nil
}

func (l *Listener) onLeadDeleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadDeleted)
	if !ok || !l.active() {
		return nil
	}

	// The row is gone, so there is nothing to refetch; the cache copy is the
	// ownership witness instead.
	l.debounce.Cancel(e.LeadID)
	l.mu.Lock()
	delete(l.pendingPatch, e.LeadID)
	l.mu.Unlock()

	l.cache.RemoveLead(e.LeadID.String())
	l.fanout.Broadcast(e.CreatedByUserID, sse.Event{
		Type:     sse.EventLeadDeleted,
		LeadID:   e.LeadID,
		FunnelID: e.FunnelID,
	})
	return nil
}

func (l *Listener) onStageChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadStageChanged)
	if !ok || !l.active() || l.pausedFor(e.FunnelID) {
		return nil
	}

	lead, ok := l.validate(ctx, e.EventName(), e.LeadID, e.CreatedByUserID)
	if !ok {
		return nil
	}

	l.fanout.Broadcast(lead.CreatedByUserID, sse.Event{
		Type:     sse.EventStageChanged,
		LeadID:   lead.ID,
		FunnelID: e.FunnelID,
		Data: map[string]any{
			"newStageId": e.NewStageID,
			"isWon":      e.IsWon,
			"isLost":     e.IsLost,
		},
	})
	return nil
}

func (l *Listener) onTagsChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadTagsChanged)
	if !ok || !l.active() {
		return nil
	}

	// The publisher already patched the cache; this is fanout only.
	l.fanout.Broadcast(e.CreatedByUserID, sse.Event{
		Type:     sse.EventTagsChanged,
		LeadID:   e.LeadID,
		FunnelID: e.FunnelID,
		Data:     e.Tags,
	})
	return nil
}

func (l *Listener) onStageListChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.StageListChanged)
	if !ok || !l.active() {
		return nil
	}

	l.cache.InvalidatePrefix(boardcache.FunnelPrefix(e.FunnelID))
	l.fanout.Broadcast(e.CreatedByUserID, sse.Event{
		Type:     sse.EventStageChanged,
		FunnelID: e.FunnelID,
	})
	return nil
}

func (l *Listener) onDragStarted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.DragStarted)
	if !ok || !l.active() {
		return nil
	}

	l.mu.Lock()
	l.paused[e.FunnelID] = true
	l.mu.Unlock()
	return nil
}

func (l *Listener) onDragEnded(ctx context.Context, event events.Event) error {
	e, ok := event.(events.DragEnded)
	if !ok || !l.active() {
		return nil
	}

	l.mu.Lock()
	delete(l.paused, e.FunnelID)
	l.mu.Unlock()
	return nil
}
