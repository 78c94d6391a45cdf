package service

import (
	"context"
	"testing"
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/internal/tags/repository"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

type fakeTagStore struct {
	tags     map[uuid.UUID]repository.Tag
	leadRefs map[uuid.UUID]repository.LeadRef
	links    map[uuid.UUID][]uuid.UUID // leadID -> attached tagIDs in insert order
	attached int
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		tags:     make(map[uuid.UUID]repository.Tag),
		leadRefs: make(map[uuid.UUID]repository.LeadRef),
		links:    make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeTagStore) Create(ctx context.Context, name, color string, ownerID uuid.UUID) (repository.Tag, error) {
	tag := repository.Tag{ID: uuid.New(), Name: name, Color: color, CreatedByUserID: ownerID, CreatedAt: time.Now()}
	f.tags[tag.ID] = tag
	return tag, nil
}

func (f *fakeTagStore) Get(ctx context.Context, id, ownerID uuid.UUID) (repository.Tag, error) {
	tag, ok := f.tags[id]
	if !ok || tag.CreatedByUserID != ownerID {
		return repository.Tag{}, repository.ErrNotFound
	}
	return tag, nil
}

func (f *fakeTagStore) List(ctx context.Context, ownerID uuid.UUID) ([]repository.Tag, error) {
	out := make([]repository.Tag, 0)
	for _, tag := range f.tags {
		if tag.CreatedByUserID == ownerID {
			out = append(out, tag)
		}
	}
	return out, nil
}

func (f *fakeTagStore) Update(ctx context.Context, id, ownerID uuid.UUID, name, color *string) (repository.Tag, error) {
	return repository.Tag{}, repository.ErrNotFound
}

func (f *fakeTagStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return repository.ErrNotFound
}

func (f *fakeTagStore) GetLeadRef(ctx context.Context, leadID uuid.UUID) (repository.LeadRef, error) {
	ref, ok := f.leadRefs[leadID]
	if !ok {
		return repository.LeadRef{}, repository.ErrLeadNotFound
	}
	return ref, nil
}

// AttachToLead mirrors the production insert's conflict behavior: linking an
// already-linked pair is a no-op, not an error.
func (f *fakeTagStore) AttachToLead(ctx context.Context, leadID, tagID uuid.UUID) error {
	f.attached++
	for _, existing := range f.links[leadID] {
		if existing == tagID {
			return nil
		}
	}
	f.links[leadID] = append(f.links[leadID], tagID)
	return nil
}

func (f *fakeTagStore) DetachFromLead(ctx context.Context, leadID, tagID uuid.UUID) error {
	linked := f.links[leadID]
	for i, existing := range linked {
		if existing == tagID {
			f.links[leadID] = append(linked[:i], linked[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeTagStore) AttachToLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error {
	for _, leadID := range leadIDs {
		if err := f.AttachToLead(ctx, leadID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTagStore) DetachFromLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error {
	for _, leadID := range leadIDs {
		if err := f.DetachFromLead(ctx, leadID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTagStore) FilterOwnedLeads(ctx context.Context, leadIDs []uuid.UUID, ownerID uuid.UUID) ([]uuid.UUID, error) {
	owned := make([]uuid.UUID, 0, len(leadIDs))
	for _, leadID := range leadIDs {
		if ref, ok := f.leadRefs[leadID]; ok && ref.OwnerID == ownerID {
			owned = append(owned, leadID)
		}
	}
	return owned, nil
}

func (f *fakeTagStore) ListForLead(ctx context.Context, leadID uuid.UUID) ([]boardcache.Tag, error) {
	out := make([]boardcache.Tag, 0)
	for _, tagID := range f.links[leadID] {
		tag := f.tags[tagID]
		out = append(out, boardcache.Tag{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}
	return out, nil
}

func (f *fakeTagStore) ListLeadIDsWithTag(ctx context.Context, tagID uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0)
	for leadID, linked := range f.links {
		for _, existing := range linked {
			if existing == tagID {
				out = append(out, leadID)
			}
		}
	}
	return out, nil
}

type adminLookup struct{}

func (adminLookup) LookupAccount(ctx context.Context, userID uuid.UUID) (string, *uuid.UUID, error) {
	return tenancy.RoleAdmin, nil, nil
}

func newAttachFixture(t *testing.T) (*Service, *fakeTagStore, *boardcache.Store) {
	t.Helper()
	log := logger.New("test")
	store := newFakeTagStore()
	cache := boardcache.New(log)
	resolver := tenancy.NewResolver(adminLookup{})
	return New(store, resolver, cache, events.NewInMemoryBus(log), log), store, cache
}

func TestAttachTagTwiceYieldsSameTagList(t *testing.T) {
	svc, store, _ := newAttachFixture(t)
	ctx := context.Background()
	userID, leadID, funnelID := uuid.New(), uuid.New(), uuid.New()

	store.leadRefs[leadID] = repository.LeadRef{OwnerID: userID, FunnelID: funnelID}
	tag := repository.Tag{ID: uuid.New(), Name: "Quente", Color: "#ef4444", CreatedByUserID: userID}
	store.tags[tag.ID] = tag

	first, err := svc.AttachTag(ctx, userID, leadID, tag.ID)
	if err != nil {
		t.Fatalf("unexpected error on first attach: %v", err)
	}
	second, err := svc.AttachTag(ctx, userID, leadID, tag.ID)
	if err != nil {
		t.Fatalf("expected repeat attach to succeed, got %v", err)
	}

	if len(first.Tags) != 1 || len(second.Tags) != 1 {
		t.Fatalf("expected exactly one tag after both attaches, got %d then %d", len(first.Tags), len(second.Tags))
	}
	if second.Tags[0].ID != tag.ID || second.LeadID != leadID {
		t.Fatalf("unexpected response: %+v", second)
	}
	if store.attached != 2 {
		t.Fatalf("expected both attaches to reach the store, got %d", store.attached)
	}
}

func TestAttachTagPatchesCachedLead(t *testing.T) {
	svc, store, cache := newAttachFixture(t)
	ctx := context.Background()
	userID, leadID, funnelID := uuid.New(), uuid.New(), uuid.New()

	store.leadRefs[leadID] = repository.LeadRef{OwnerID: userID, FunnelID: funnelID}
	tag := repository.Tag{ID: uuid.New(), Name: "VIP", Color: "#8b5cf6", CreatedByUserID: userID}
	store.tags[tag.ID] = tag

	key := boardcache.LeadsKey(funnelID, userID)
	cache.SetPage(key, 0, []boardcache.Lead{{
		ID:              leadID,
		FunnelID:        funnelID,
		Name:            "Maria",
		Phone:           "+5511988887777",
		CreatedByUserID: userID,
		Tags:            []boardcache.Tag{},
	}})

	if _, err := svc.AttachTag(ctx, userID, leadID, tag.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	leads, ok := cache.Leads(key)
	if !ok || len(leads) != 1 {
		t.Fatalf("expected cached page to survive, got ok=%v len=%d", ok, len(leads))
	}
	if len(leads[0].Tags) != 1 || leads[0].Tags[0].ID != tag.ID {
		t.Fatalf("expected cached lead patched with the tag, got %+v", leads[0].Tags)
	}
}

func TestDetachTagIsIdempotent(t *testing.T) {
	svc, store, _ := newAttachFixture(t)
	ctx := context.Background()
	userID, leadID, funnelID := uuid.New(), uuid.New(), uuid.New()

	store.leadRefs[leadID] = repository.LeadRef{OwnerID: userID, FunnelID: funnelID}
	tag := repository.Tag{ID: uuid.New(), Name: "Frio", Color: "#3b82f6", CreatedByUserID: userID}
	store.tags[tag.ID] = tag

	if _, err := svc.AttachTag(ctx, userID, leadID, tag.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := svc.DetachTag(ctx, userID, leadID, tag.ID)
	if err != nil {
		t.Fatalf("unexpected error on detach: %v", err)
	}
	second, err := svc.DetachTag(ctx, userID, leadID, tag.ID)
	if err != nil {
		t.Fatalf("expected repeat detach to succeed, got %v", err)
	}
	if len(first.Tags) != 0 || len(second.Tags) != 0 {
		t.Fatalf("expected empty tag list after both detaches, got %d then %d", len(first.Tags), len(second.Tags))
	}
}

func TestAttachTagRejectsForeignLead(t *testing.T) {
	svc, store, _ := newAttachFixture(t)
	ctx := context.Background()
	userID, leadID := uuid.New(), uuid.New()

	store.leadRefs[leadID] = repository.LeadRef{OwnerID: uuid.New(), FunnelID: uuid.New()}
	tag := repository.Tag{ID: uuid.New(), Name: "Quente", Color: "#ef4444", CreatedByUserID: userID}
	store.tags[tag.ID] = tag

	if _, err := svc.AttachTag(ctx, userID, leadID, tag.ID); err == nil {
		t.Fatal("expected attach against another tenant's lead to fail")
	}
	if store.attached != 0 {
		t.Fatalf("expected no link insert, got %d", store.attached)
	}
}
