// Package tenancy centralizes lead-ownership resolution. An admin sees their
// own leads; an operational user sees the leads of the admin that created
// them. Every fetcher and the realtime listener resolve ownership here
// instead of re-implementing the role lookup inline.
package tenancy

import (
	"context"
	"sync"
	"time"

	"funnelboard/platform/apperr"

	"github.com/google/uuid"
)

// Role values stored on accounts.
const (
	RoleAdmin       = "admin"
	RoleOperational = "operational"
)

// Ownership is a resolved owner: the tenant id all lead queries scope by.
type Ownership struct {
	OwnerID uuid.UUID
	Role    string
}

// UserLookup is the narrow read the resolver needs from the account store.
type UserLookup interface {
	LookupAccount(ctx context.Context, userID uuid.UUID) (role string, createdBy *uuid.UUID, err error)
}

const cacheTTL = 1 * time.Minute

type cachedOwnership struct {
	ownership Ownership
	expiresAt time.Time
}

// Resolver resolves and caches ownership per user. Resolution happens on
// every fetch and every realtime event, so positive results are cached
// briefly; failures are never cached.
type Resolver struct {
	lookup UserLookup
	mu     sync.RWMutex
	cache  map[uuid.UUID]cachedOwnership
	now    func() time.Time
}

// NewResolver creates a resolver backed by the given account lookup.
func NewResolver(lookup UserLookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  make(map[uuid.UUID]cachedOwnership),
		now:    time.Now,
	}
}

// Resolve maps a session user to the owner whose leads they see.
// Returns an apperr with KindUnresolved when the account is unknown or an
// operational account has no creating admin on record.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Ownership, error) {
	if userID == uuid.Nil {
		return Ownership{}, apperr.Unresolved("owner could not be resolved: missing user")
	}

	r.mu.RLock()
	if cached, ok := r.cache[userID]; ok && r.now().Before(cached.expiresAt) {
		r.mu.RUnlock()
		return cached.ownership, nil
	}
	r.mu.RUnlock()

	role, createdBy, err := r.lookup.LookupAccount(ctx, userID)
	if err != nil {
		return Ownership{}, apperr.Wrap(apperr.KindUnresolved, "owner could not be resolved", err)
	}

	var ownership Ownership
	switch role {
	case RoleOperational:
		if createdBy == nil || *createdBy == uuid.Nil {
			return Ownership{}, apperr.Unresolved("operational account has no creating admin")
		}
		ownership = Ownership{OwnerID: *createdBy, Role: role}
	default:
		ownership = Ownership{OwnerID: userID, Role: role}
	}

	r.mu.Lock()
	r.cache[userID] = cachedOwnership{ownership: ownership, expiresAt: r.now().Add(cacheTTL)}
	r.mu.Unlock()

	return ownership, nil
}

// Forget drops the cached ownership for a user (e.g. after a role change).
func (r *Resolver) Forget(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}
