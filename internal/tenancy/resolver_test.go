package tenancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"funnelboard/platform/apperr"

	"github.com/google/uuid"
)

type fakeLookup struct {
	role      string
	createdBy *uuid.UUID
	err       error
	calls     int
}

func (f *fakeLookup) LookupAccount(ctx context.Context, userID uuid.UUID) (string, *uuid.UUID, error) {
	f.calls++
	return f.role, f.createdBy, f.err
}

func TestResolveAdminOwnsOwnLeads(t *testing.T) {
	userID := uuid.New()
	r := NewResolver(&fakeLookup{role: RoleAdmin})

	ownership, err := r.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ownership.OwnerID != userID {
		t.Fatalf("expected admin to own own leads, got owner %s", ownership.OwnerID)
	}
	if ownership.Role != RoleAdmin {
		t.Fatalf("expected role admin, got %q", ownership.Role)
	}
}

func TestResolveOperationalMapsToCreatingAdmin(t *testing.T) {
	admin := uuid.New()
	r := NewResolver(&fakeLookup{role: RoleOperational, createdBy: &admin})

	ownership, err := r.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ownership.OwnerID != admin {
		t.Fatalf("expected creating admin %s as owner, got %s", admin, ownership.OwnerID)
	}
}

func TestResolveOperationalWithoutCreatorFails(t *testing.T) {
	r := NewResolver(&fakeLookup{role: RoleOperational})

	_, err := r.Resolve(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for operational account without creator")
	}
	if !apperr.Is(err, apperr.KindUnresolved) {
		t.Fatalf("expected KindUnresolved, got %v", err)
	}
}

func TestResolveNilUserFails(t *testing.T) {
	r := NewResolver(&fakeLookup{role: RoleAdmin})

	if _, err := r.Resolve(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestResolveWrapsLookupFailure(t *testing.T) {
	r := NewResolver(&fakeLookup{err: errors.New("connection refused")})

	_, err := r.Resolve(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperr.Is(err, apperr.KindUnresolved) {
		t.Fatalf("expected KindUnresolved, got %v", err)
	}
}

func TestResolveCachesPositiveResults(t *testing.T) {
	lookup := &fakeLookup{role: RoleAdmin}
	r := NewResolver(lookup)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), userID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if lookup.calls != 1 {
		t.Fatalf("expected one lookup, got %d", lookup.calls)
	}
}

func TestResolveNeverCachesFailures(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("down")}
	r := NewResolver(lookup)
	userID := uuid.New()

	_, _ = r.Resolve(context.Background(), userID)
	_, _ = r.Resolve(context.Background(), userID)
	if lookup.calls != 2 {
		t.Fatalf("expected every failed resolve to hit the lookup, got %d calls", lookup.calls)
	}
}

func TestResolveCacheExpires(t *testing.T) {
	lookup := &fakeLookup{role: RoleAdmin}
	r := NewResolver(lookup)
	userID := uuid.New()

	base := time.Now()
	r.now = func() time.Time { return base }
	if _, err := r.Resolve(context.Background(), userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.now = func() time.Time { return base.Add(cacheTTL + time.Second) }
	if _, err := r.Resolve(context.Background(), userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookup.calls != 2 {
		t.Fatalf("expected expired cache to trigger a fresh lookup, got %d calls", lookup.calls)
	}
}

func TestForgetDropsCachedOwnership(t *testing.T) {
	lookup := &fakeLookup{role: RoleAdmin}
	r := NewResolver(lookup)
	userID := uuid.New()

	_, _ = r.Resolve(context.Background(), userID)
	r.Forget(userID)
	_, _ = r.Resolve(context.Background(), userID)

	if lookup.calls != 2 {
		t.Fatalf("expected forget to force a fresh lookup, got %d calls", lookup.calls)
	}
}
