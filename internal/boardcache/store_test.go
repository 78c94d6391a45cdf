package boardcache

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testStore() *Store {
	return New(nil)
}

func testLead(id uuid.UUID, name string) Lead {
	return Lead{
		ID:    id,
		Name:  name,
		Phone: "+5511999998888",
		Tags:  []Tag{},
	}
}

func TestLeadsConcatenatesPagesInOrder(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())

	a, b, c := testLead(uuid.New(), "a"), testLead(uuid.New(), "b"), testLead(uuid.New(), "c")
	s.SetPage(key, 0, []Lead{a, b})
	s.SetPage(key, 1, []Lead{c})

	leads, ok := s.Leads(key)
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if len(leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(leads))
	}
	if leads[0].ID != a.ID || leads[2].ID != c.ID {
		t.Fatal("expected leads in page order")
	}
}

func TestLeadsDeduplicatesAcrossPages(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())

	shared := testLead(uuid.New(), "shared")
	s.SetPage(key, 0, []Lead{shared, testLead(uuid.New(), "a")})
	s.SetPage(key, 1, []Lead{shared, testLead(uuid.New(), "b")})

	leads, _ := s.Leads(key)
	if len(leads) != 3 {
		t.Fatalf("expected duplicate dropped, got %d leads", len(leads))
	}
}

func TestSetPageZeroResetsEntry(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())

	s.SetPage(key, 0, []Lead{testLead(uuid.New(), "old0")})
	s.SetPage(key, 1, []Lead{testLead(uuid.New(), "old1")})

	fresh := testLead(uuid.New(), "fresh")
	s.SetPage(key, 0, []Lead{fresh})

	leads, _ := s.Leads(key)
	if len(leads) != 1 || leads[0].ID != fresh.ID {
		t.Fatalf("expected fresh first page to supersede prior pagination, got %d leads", len(leads))
	}
}

func TestMissingEntryIsStaleAndAbsent(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())

	if _, ok := s.Leads(key); ok {
		t.Fatal("expected missing entry")
	}
	if !s.IsStale(key) {
		t.Fatal("expected missing entry to report stale")
	}
}

func TestIsStaleAfterWindow(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())

	base := time.Now()
	s.now = func() time.Time { return base }
	s.SetPage(key, 0, []Lead{testLead(uuid.New(), "a")})

	if s.IsStale(key) {
		t.Fatal("expected fresh entry not to be stale")
	}

	s.now = func() time.Time { return base.Add(DefaultStaleness + time.Second) }
	if !s.IsStale(key) {
		t.Fatal("expected entry past the window to be stale")
	}

	// Stale entries still serve reads.
	if _, ok := s.Leads(key); !ok {
		t.Fatal("expected stale entry to remain readable")
	}
}

func TestInvalidateDropsEntry(t *testing.T) {
	s := testStore()
	key := LeadsKey(uuid.New(), uuid.New())
	s.SetPage(key, 0, []Lead{testLead(uuid.New(), "a")})

	s.Invalidate(key)
	if _, ok := s.Leads(key); ok {
		t.Fatal("expected entry dropped")
	}
}

func TestInvalidatePrefixOnlyTouchesMatchingFunnel(t *testing.T) {
	s := testStore()
	funnelA, funnelB, owner := uuid.New(), uuid.New(), uuid.New()

	s.SetPage(LeadsKey(funnelA, owner), 0, []Lead{testLead(uuid.New(), "a")})
	s.SetPage(FilteredLeadsKey(funnelA, owner, "abcd"), 0, []Lead{testLead(uuid.New(), "b")})
	s.SetPage(LeadsKey(funnelB, owner), 0, []Lead{testLead(uuid.New(), "c")})

	dropped := s.InvalidatePrefix(FunnelPrefix(funnelA))
	if dropped != 2 {
		t.Fatalf("expected 2 entries dropped, got %d", dropped)
	}
	if _, ok := s.Leads(LeadsKey(funnelB, owner)); !ok {
		t.Fatal("expected other funnel's entry to survive")
	}
}

func TestPatchLeadTouchesEveryCachedCopy(t *testing.T) {
	s := testStore()
	funnel, owner := uuid.New(), uuid.New()
	lead := testLead(uuid.New(), "before")

	s.SetPage(LeadsKey(funnel, owner), 0, []Lead{lead})
	s.SetPage(FilteredLeadsKey(funnel, owner, "abcd"), 0, []Lead{lead})

	name := "after"
	unread := 7
	patched := s.PatchLead(lead.ID.String(), LeadPatch{Name: &name, UnreadCount: &unread})
	if patched != 2 {
		t.Fatalf("expected 2 copies patched, got %d", patched)
	}

	leads, _ := s.Leads(LeadsKey(funnel, owner))
	if leads[0].Name != "after" || leads[0].UnreadCount != 7 {
		t.Fatalf("expected patch applied, got name=%q unread=%d", leads[0].Name, leads[0].UnreadCount)
	}
	// Untouched fields survive.
	if leads[0].Phone != lead.Phone {
		t.Fatal("expected unpatched fields to be preserved")
	}
}

func TestPatchLeadNeverCreatesEntries(t *testing.T) {
	s := testStore()
	if patched := s.PatchLead(uuid.New().String(), LeadPatch{}); patched != 0 {
		t.Fatalf("expected no copies patched, got %d", patched)
	}
}

func TestRemoveLeadDeletesFromEveryPage(t *testing.T) {
	s := testStore()
	funnel, owner := uuid.New(), uuid.New()
	victim := testLead(uuid.New(), "victim")
	survivor := testLead(uuid.New(), "survivor")

	s.SetPage(LeadsKey(funnel, owner), 0, []Lead{victim, survivor})
	s.SetPage(FilteredLeadsKey(funnel, owner, "abcd"), 0, []Lead{victim})

	removed := s.RemoveLead(victim.ID.String())
	if removed != 2 {
		t.Fatalf("expected 2 copies removed, got %d", removed)
	}
	if s.ContainsLead(victim.ID.String()) {
		t.Fatal("expected no trace of the removed lead")
	}
	if !s.ContainsLead(survivor.ID.String()) {
		t.Fatal("expected other leads untouched")
	}
}

func TestUpsertLeadTagsReplacesTagListCopy(t *testing.T) {
	s := testStore()
	funnel, owner := uuid.New(), uuid.New()
	lead := testLead(uuid.New(), "a")
	s.SetPage(LeadsKey(funnel, owner), 0, []Lead{lead})

	tags := []Tag{{ID: uuid.New(), Name: "vip", Color: "#fff"}}
	if patched := s.UpsertLeadTags(lead.ID.String(), tags); patched != 1 {
		t.Fatalf("expected 1 copy patched, got %d", patched)
	}

	// The cached copy must not alias the caller's slice.
	tags[0].Name = "mutated"
	leads, _ := s.Leads(LeadsKey(funnel, owner))
	if leads[0].Tags[0].Name != "vip" {
		t.Fatal("expected cached tags to be an independent copy")
	}
}

func TestUpsertLeadTagsNilBecomesEmptySlice(t *testing.T) {
	s := testStore()
	funnel, owner := uuid.New(), uuid.New()
	lead := testLead(uuid.New(), "a")
	lead.Tags = []Tag{{ID: uuid.New(), Name: "old"}}
	s.SetPage(LeadsKey(funnel, owner), 0, []Lead{lead})

	s.UpsertLeadTags(lead.ID.String(), nil)

	leads, _ := s.Leads(LeadsKey(funnel, owner))
	if leads[0].Tags == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if len(leads[0].Tags) != 0 {
		t.Fatalf("expected tags cleared, got %d", len(leads[0].Tags))
	}
}

func TestPatchStageLeadsOnlyTouchesStage(t *testing.T) {
	s := testStore()
	funnel, owner := uuid.New(), uuid.New()
	stageA, stageB := uuid.New(), uuid.New()

	inStage := testLead(uuid.New(), "in")
	inStage.KanbanStageID = &stageA
	outside := testLead(uuid.New(), "out")
	outside.KanbanStageID = &stageB
	unstaged := testLead(uuid.New(), "none")

	s.SetPage(LeadsKey(funnel, owner), 0, []Lead{inStage, outside, unstaged})

	enabled := true
	patched := s.PatchStageLeads(stageA.String(), LeadPatch{AIEnabled: &enabled})
	if patched != 1 {
		t.Fatalf("expected 1 lead patched, got %d", patched)
	}

	leads, _ := s.Leads(LeadsKey(funnel, owner))
	for _, lead := range leads {
		want := lead.ID == inStage.ID
		if lead.AIEnabled != want {
			t.Fatalf("lead %s: aiEnabled=%v, want %v", lead.Name, lead.AIEnabled, want)
		}
	}
}
