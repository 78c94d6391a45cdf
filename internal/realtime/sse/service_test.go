package sse

import (
	"testing"

	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

func newTestClient(tenantID uuid.UUID, buffer int) *client {
	return &client{
		userID:   uuid.New(),
		tenantID: tenantID,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

func TestCloseThenClientTeardown(t *testing.T) {
	svc := New(nil, logger.New("test"))
	tenantID := uuid.New()
	cl := newTestClient(tenantID, 1)

	svc.addClient(cl)
	svc.Close()

	// The handler goroutine tears down after Close and removes itself again.
	svc.removeClient(cl)

	select {
	case <-cl.done:
	default:
		t.Fatal("expected done signaled after close")
	}
	if svc.ClientCount(tenantID) != 0 {
		t.Fatalf("expected no clients, got %d", svc.ClientCount(tenantID))
	}
}

func TestClientTeardownThenClose(t *testing.T) {
	svc := New(nil, logger.New("test"))
	cl := newTestClient(uuid.New(), 1)

	svc.addClient(cl)
	svc.removeClient(cl)
	svc.Close()

	select {
	case <-cl.done:
	default:
		t.Fatal("expected done signaled after teardown")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	svc := New(nil, logger.New("test"))
	svc.addClient(newTestClient(uuid.New(), 1))

	svc.Close()
	svc.Close()
}

func TestBroadcastAfterClientRemoval(t *testing.T) {
	svc := New(nil, logger.New("test"))
	tenantID := uuid.New()
	cl := newTestClient(tenantID, 1)

	svc.addClient(cl)
	svc.removeClient(cl)

	// A broadcast racing the removal must not panic; events is never closed.
	svc.Broadcast(tenantID, Event{Type: EventLeadUpdated, LeadID: uuid.New()})

	select {
	case cl.events <- Event{Type: EventLeadUpdated}:
	default:
		t.Fatal("expected events channel still writable after removal")
	}
}

func TestBroadcastDeliversToTenantOnly(t *testing.T) {
	svc := New(nil, logger.New("test"))
	tenantA, tenantB := uuid.New(), uuid.New()
	mine := newTestClient(tenantA, 4)
	theirs := newTestClient(tenantB, 4)
	svc.addClient(mine)
	svc.addClient(theirs)

	leadID := uuid.New()
	svc.Broadcast(tenantA, Event{Type: EventLeadCreated, LeadID: leadID})

	select {
	case got := <-mine.events:
		if got.LeadID != leadID {
			t.Fatalf("unexpected event: %+v", got)
		}
	default:
		t.Fatal("expected event delivered to the tenant's client")
	}

	select {
	case got := <-theirs.events:
		t.Fatalf("expected no event for other tenant, got %+v", got)
	default:
	}
}

func TestBroadcastDropsWhenClientBufferFull(t *testing.T) {
	svc := New(nil, logger.New("test"))
	tenantID := uuid.New()
	cl := newTestClient(tenantID, 1)
	svc.addClient(cl)

	svc.Broadcast(tenantID, Event{Type: EventLeadUpdated})
	// The second broadcast finds the buffer full and must not block.
	svc.Broadcast(tenantID, Event{Type: EventLeadUpdated})

	if len(cl.events) != 1 {
		t.Fatalf("expected exactly one buffered event, got %d", len(cl.events))
	}
}
