package presence

import (
	"context"
	"testing"

	"funnelboard/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func testService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, logger.New("test")), mr
}

func TestConnectedMarksAgentOnlineWithTTL(t *testing.T) {
	svc, mr := testService(t)
	tenantID, userID := uuid.New(), uuid.New()

	svc.Connected(context.Background(), tenantID, userID)

	k := key(tenantID, userID)
	if !mr.Exists(k) {
		t.Fatal("expected presence key in redis")
	}
	if ttl := mr.TTL(k); ttl != TTL {
		t.Fatalf("expected TTL %v, got %v", TTL, ttl)
	}
}

func TestConnectedRefreshesTTL(t *testing.T) {
	svc, mr := testService(t)
	tenantID, userID := uuid.New(), uuid.New()
	ctx := context.Background()

	svc.Connected(ctx, tenantID, userID)
	mr.FastForward(TTL / 2)
	svc.Connected(ctx, tenantID, userID)

	if ttl := mr.TTL(key(tenantID, userID)); ttl != TTL {
		t.Fatalf("expected refreshed TTL %v, got %v", TTL, ttl)
	}
}

func TestPresenceExpiresWithoutRefresh(t *testing.T) {
	svc, mr := testService(t)
	tenantID, userID := uuid.New(), uuid.New()
	ctx := context.Background()

	svc.Connected(ctx, tenantID, userID)
	mr.FastForward(TTL + 1)

	online, err := svc.Online(ctx, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("expected expired presence gone, got %v", online)
	}
}

func TestDisconnectedRemovesMark(t *testing.T) {
	svc, mr := testService(t)
	tenantID, userID := uuid.New(), uuid.New()
	ctx := context.Background()

	svc.Connected(ctx, tenantID, userID)
	svc.Disconnected(ctx, tenantID, userID)

	if mr.Exists(key(tenantID, userID)) {
		t.Fatal("expected presence key removed")
	}
}

func TestOnlineListsOnlyTenantAgents(t *testing.T) {
	svc, _ := testService(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	agent1, agent2, stranger := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	svc.Connected(ctx, tenantA, agent1)
	svc.Connected(ctx, tenantA, agent2)
	svc.Connected(ctx, tenantB, stranger)

	online, err := svc.Online(ctx, tenantA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("expected 2 agents online, got %d", len(online))
	}
	for _, id := range online {
		if id == stranger {
			t.Fatal("expected other tenant's agent excluded")
		}
	}
}

func TestOnlineEmptyTenantReturnsEmptySlice(t *testing.T) {
	svc, _ := testService(t)

	online, err := svc.Online(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if online == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if len(online) != 0 {
		t.Fatalf("expected no agents, got %v", online)
	}
}
