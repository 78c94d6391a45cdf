package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/internal/realtime/sse"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadSource struct {
	leads map[uuid.UUID]boardcache.Lead
	err   error
}

func (f *fakeLeadSource) LeadByIDUnscoped(ctx context.Context, leadID uuid.UUID) (boardcache.Lead, error) {
	if f.err != nil {
		return boardcache.Lead{}, f.err
	}
	lead, ok := f.leads[leadID]
	if !ok {
		return boardcache.Lead{}, errors.New("lead not found")
	}
	return lead, nil
}

type listenerFixture struct {
	listener *Listener
	cache    *boardcache.Store
	source   *fakeLeadSource
	tenantID uuid.UUID
	funnelID uuid.UUID
	lead     boardcache.Lead
	key      boardcache.Key
}

func newListenerFixture(t *testing.T, window time.Duration) *listenerFixture {
	t.Helper()

	log := logger.New("test")
	tenantID := uuid.New()
	funnelID := uuid.New()

	lead := boardcache.Lead{
		ID:              uuid.New(),
		FunnelID:        funnelID,
		Name:            "Maria",
		Phone:           "+5511999998888",
		CreatedByUserID: tenantID,
		Tags:            []boardcache.Tag{},
	}

	cache := boardcache.New(log)
	key := boardcache.LeadsKey(funnelID, tenantID)
	cache.SetPage(key, 0, []boardcache.Lead{lead})

	source := &fakeLeadSource{leads: map[uuid.UUID]boardcache.Lead{lead.ID: lead}}
	listener := NewListener(source, cache, sse.New(nil, log), window, log)
	listener.Subscribe(events.NewInMemoryBus(log))
	t.Cleanup(listener.Unsubscribe)

	return &listenerFixture{
		listener: listener,
		cache:    cache,
		source:   source,
		tenantID: tenantID,
		funnelID: funnelID,
		lead:     lead,
		key:      key,
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
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

func TestSubscribeTransitionsIdleToSubscribed(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)

	if f.listener.State() != StateSubscribed {
		t.Fatalf("expected subscribed state, got %v", f.listener.State())
	}

	f.listener.Unsubscribe()
	if f.listener.State() != StateUnsubscribed {
		t.Fatalf("expected unsubscribed state, got %v", f.listener.State())
	}

	// A torn-down listener cannot be resubscribed.
	f.listener.Subscribe(events.NewInMemoryBus(logger.New("test")))
	if f.listener.State() != StateUnsubscribed {
		t.Fatal("expected unsubscribed listener to stay down")
	}
}

func TestIdleListenerIgnoresEvents(t *testing.T) {
	log := logger.New("test")
	f := newListenerFixture(t, 10*time.Millisecond)
	idle := NewListener(f.source, f.cache, sse.New(nil, log), 10*time.Millisecond, log)

	err := idle.onLeadCreated(context.Background(), events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.cache.Leads(f.key); !ok {
		t.Fatal("expected idle listener to leave the cache alone")
	}
}

func TestLeadCreatedInvalidatesFunnelNamespace(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)

	err := f.listener.onLeadCreated(context.Background(), events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.cache.Leads(f.key); ok {
		t.Fatal("expected funnel namespace invalidated after insert")
	}
}

func TestCrossTenantEventIsDroppedSilently(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)

	err := f.listener.onLeadCreated(context.Background(), events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: uuid.New(), // claimed tenant does not own the lead
	})
	if err != nil {
		t.Fatalf("expected silent drop, got error: %v", err)
	}

	if _, ok := f.cache.Leads(f.key); !ok {
		t.Fatal("expected cache untouched after cross-tenant drop")
	}
}

func TestValidationRefetchFailureDropsEvent(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)
	f.source.err = errors.New("database down")

	err := f.listener.onLeadUpdated(context.Background(), events.LeadUpdated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if err != nil {
		t.Fatalf("expected drop without error, got: %v", err)
	}
	if f.listener.PendingUpdates() != 0 {
		t.Fatal("expected no debounce timer for a dropped event")
	}
}

func TestLeadUpdatedBurstCoalescesToLastPatch(t *testing.T) {
	f := newListenerFixture(t, 20*time.Millisecond)

	for i := 1; i <= 4; i++ {
		unread := i
		err := f.listener.onLeadUpdated(context.Background(), events.LeadUpdated{
			LeadID:          f.lead.ID,
			FunnelID:        f.funnelID,
			CreatedByUserID: f.tenantID,
			Patch:           boardcache.LeadPatch{UnreadCount: &unread},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if f.listener.PendingUpdates() != 1 {
		t.Fatalf("expected one coalescing timer, got %d", f.listener.PendingUpdates())
	}

	waitForCondition(t, time.Second, func() bool {
		leads, ok := f.cache.Leads(f.key)
		return ok && len(leads) == 1 && leads[0].UnreadCount == 4
	})

	if f.listener.PendingUpdates() != 0 {
		t.Fatal("expected timer cleared after flush")
	}
}

func TestDragPauseSuppressesInsertsAndUpdates(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	if err := f.listener.onDragStarted(ctx, events.DragStarted{FunnelID: f.funnelID, UserID: f.tenantID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = f.listener.onLeadCreated(ctx, events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	unread := 9
	_ = f.listener.onLeadUpdated(ctx, events.LeadUpdated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
		Patch:           boardcache.LeadPatch{UnreadCount: &unread},
	})

	if _, ok := f.cache.Leads(f.key); !ok {
		t.Fatal("expected paused funnel's cache untouched by insert")
	}
	if f.listener.PendingUpdates() != 0 {
		t.Fatal("expected no update scheduled while paused")
	}

	if err := f.listener.onDragEnded(ctx, events.DragEnded{FunnelID: f.funnelID, UserID: f.tenantID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// After the drag ends events flow again.
	_ = f.listener.onLeadCreated(ctx, events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if _, ok := f.cache.Leads(f.key); ok {
		t.Fatal("expected insert applied after drag ended")
	}
}

func TestDragPauseOnlyAffectsItsFunnel(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	otherFunnel := uuid.New()
	if err := f.listener.onDragStarted(ctx, events.DragStarted{FunnelID: otherFunnel, UserID: f.tenantID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = f.listener.onLeadCreated(ctx, events.LeadCreated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if _, ok := f.cache.Leads(f.key); ok {
		t.Fatal("expected unrelated funnel's events to keep flowing")
	}
}

func TestLeadDeletedIsImmediateEvenDuringDrag(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	_ = f.listener.onDragStarted(ctx, events.DragStarted{FunnelID: f.funnelID, UserID: f.tenantID})

	err := f.listener.onLeadDeleted(ctx, events.LeadDeleted{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.cache.ContainsLead(f.lead.ID.String()) {
		t.Fatal("expected delete applied immediately despite drag pause")
	}
}

func TestLeadDeletedCancelsPendingUpdate(t *testing.T) {
	f := newListenerFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	unread := 3
	_ = f.listener.onLeadUpdated(ctx, events.LeadUpdated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
		Patch:           boardcache.LeadPatch{UnreadCount: &unread},
	})
	if f.listener.PendingUpdates() != 1 {
		t.Fatal("expected pending update before delete")
	}

	_ = f.listener.onLeadDeleted(ctx, events.LeadDeleted{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})

	if f.listener.PendingUpdates() != 0 {
		t.Fatal("expected delete to cancel the coalescing timer")
	}

	time.Sleep(100 * time.Millisecond)
	if f.cache.ContainsLead(f.lead.ID.String()) {
		t.Fatal("expected removed lead to stay gone")
	}
}

func TestStageListChangedInvalidatesFunnelNamespace(t *testing.T) {
	f := newListenerFixture(t, 10*time.Millisecond)

	err := f.listener.onStageListChanged(context.Background(), events.StageListChanged{
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := f.cache.Leads(f.key); ok {
		t.Fatal("expected stage list change to invalidate board snapshots")
	}
}

func TestUnsubscribeStopsPendingTimers(t *testing.T) {
	f := newListenerFixture(t, 30*time.Millisecond)

	unread := 5
	_ = f.listener.onLeadUpdated(context.Background(), events.LeadUpdated{
		LeadID:          f.lead.ID,
		FunnelID:        f.funnelID,
		CreatedByUserID: f.tenantID,
		Patch:           boardcache.LeadPatch{UnreadCount: &unread},
	})

	f.listener.Unsubscribe()
	if f.listener.PendingUpdates() != 0 {
		t.Fatal("expected teardown to stop pending timers")
	}

	time.Sleep(60 * time.Millisecond)
	leads, ok := f.cache.Leads(f.key)
	if !ok {
		t.Fatal("expected cache entry to survive teardown")
	}
	if leads[0].UnreadCount != 0 {
		t.Fatal("expected suppressed patch never to apply")
	}
}
