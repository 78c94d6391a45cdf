package service

import (
	"testing"
	"time"

	"funnelboard/internal/board/transport"
	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

func strptr(s string) *string { return &s }

func i64ptr(v int64) *int64 { return &v }

func timeptr(t time.Time) *time.Time { return &t }

func uuidptr(id uuid.UUID) *uuid.UUID { return &id }

func boardLead(name, phoneNumber string) boardcache.Lead {
	return boardcache.Lead{
		ID:    uuid.New(),
		Name:  name,
		Phone: phoneNumber,
		Tags:  []boardcache.Tag{},
	}
}

func TestOptimizationLevelBoundaries(t *testing.T) {
	cases := []struct {
		total int
		want  string
	}{
		{0, OptimizationSimple},
		{199, OptimizationSimple},
		{200, OptimizationModerate},
		{999, OptimizationModerate},
		{1000, OptimizationMassive},
		{5000, OptimizationMassive},
	}

	for _, tc := range cases {
		if got := OptimizationLevel(tc.total); got != tc.want {
			t.Fatalf("OptimizationLevel(%d) = %q, want %q", tc.total, got, tc.want)
		}
	}
}

func TestApplyFiltersEmptyQueryKeepsEverything(t *testing.T) {
	leads := []boardcache.Lead{boardLead("Maria", "+5511999998888"), boardLead("João", "+5511888887777")}

	got := ApplyFilters(leads, transport.BoardQuery{})
	if len(got) != 2 {
		t.Fatalf("expected all leads kept, got %d", len(got))
	}
}

func TestSearchNumericTermMatchesPhoneDigits(t *testing.T) {
	match := boardLead("Maria", "+55 (11) 99999-8888")
	other := boardLead("João", "+5521777776666")

	got := ApplyFilters([]boardcache.Lead{match, other}, transport.BoardQuery{Search: "11 99999"})
	if len(got) != 1 || got[0].ID != match.ID {
		t.Fatalf("expected digit search to match formatted phone, got %d leads", len(got))
	}
}

func TestSearchTextTermMatchesNameEmailCompanyNotes(t *testing.T) {
	byName := boardLead("Maria Silva", "+5511000000001")
	byEmail := boardLead("a", "+5511000000002")
	byEmail.Email = strptr("contato@acme.com.br")
	byCompany := boardLead("b", "+5511000000003")
	byCompany.Company = strptr("ACME Ltda")
	byNotes := boardLead("c", "+5511000000004")
	byNotes.Notes = strptr("indicada pela acme")
	miss := boardLead("d", "+5511000000005")

	got := ApplyFilters([]boardcache.Lead{byName, byEmail, byCompany, byNotes, miss}, transport.BoardQuery{Search: "ACME"})
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}

	got = ApplyFilters([]boardcache.Lead{byName, miss}, transport.BoardQuery{Search: "maria"})
	if len(got) != 1 || got[0].ID != byName.ID {
		t.Fatal("expected case-insensitive name match")
	}
}

func TestSearchNumericTermDoesNotMatchName(t *testing.T) {
	lead := boardLead("Loja 11", "+5521777776666")

	got := ApplyFilters([]boardcache.Lead{lead}, transport.BoardQuery{Search: "11"})
	if len(got) != 0 {
		t.Fatal("expected a digits-only term to search phones, not names")
	}
}

func TestFilterByTagsRequiresAllTags(t *testing.T) {
	vip := boardcache.Tag{ID: uuid.New(), Name: "vip"}
	hot := boardcache.Tag{ID: uuid.New(), Name: "quente"}

	both := boardLead("both", "+5511000000001")
	both.Tags = []boardcache.Tag{vip, hot}
	onlyVIP := boardLead("vip", "+5511000000002")
	onlyVIP.Tags = []boardcache.Tag{vip}
	none := boardLead("none", "+5511000000003")

	got := ApplyFilters([]boardcache.Lead{both, onlyVIP, none}, transport.BoardQuery{TagIDs: []uuid.UUID{vip.ID, hot.ID}})
	if len(got) != 1 || got[0].ID != both.ID {
		t.Fatalf("expected only the lead carrying every required tag, got %d", len(got))
	}
}

func TestFilterByAssignee(t *testing.T) {
	agent := uuid.New()
	mine := boardLead("mine", "+5511000000001")
	mine.OwnerID = uuidptr(agent)
	theirs := boardLead("theirs", "+5511000000002")
	theirs.OwnerID = uuidptr(uuid.New())
	unassigned := boardLead("free", "+5511000000003")

	got := ApplyFilters([]boardcache.Lead{mine, theirs, unassigned}, transport.BoardQuery{AssigneeID: uuidptr(agent)})
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("expected only the assignee's lead, got %d", len(got))
	}
}

func TestFilterByValueRangeIsInclusive(t *testing.T) {
	cheap := boardLead("cheap", "+5511000000001")
	cheap.PurchaseValueCents = 5000
	mid := boardLead("mid", "+5511000000002")
	mid.PurchaseValueCents = 10000
	rich := boardLead("rich", "+5511000000003")
	rich.PurchaseValueCents = 50000

	got := ApplyFilters([]boardcache.Lead{cheap, mid, rich}, transport.BoardQuery{
		MinValueCents: i64ptr(10000),
		MaxValueCents: i64ptr(50000),
	})
	if len(got) != 2 {
		t.Fatalf("expected inclusive bounds to keep 2 leads, got %d", len(got))
	}
}

func TestFilterByCreationDateRange(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	old := boardLead("old", "+5511000000001")
	old.CreatedAt = base.AddDate(0, 0, -10)
	recent := boardLead("recent", "+5511000000002")
	recent.CreatedAt = base

	got := ApplyFilters([]boardcache.Lead{old, recent}, transport.BoardQuery{
		CreatedAfter: timeptr(base.AddDate(0, 0, -5)),
	})
	if len(got) != 1 || got[0].ID != recent.ID {
		t.Fatal("expected createdAfter to drop the older lead")
	}

	got = ApplyFilters([]boardcache.Lead{old, recent}, transport.BoardQuery{
		CreatedBefore: timeptr(base.AddDate(0, 0, -5)),
	})
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatal("expected createdBefore to drop the newer lead")
	}
}

func TestApplyFiltersIsMonotonic(t *testing.T) {
	agent := uuid.New()
	vip := boardcache.Tag{ID: uuid.New(), Name: "vip"}

	leads := make([]boardcache.Lead, 0, 6)
	for i := 0; i < 6; i++ {
		lead := boardLead("Maria", "+5511999998888")
		if i%2 == 0 {
			lead.Tags = []boardcache.Tag{vip}
		}
		if i%3 == 0 {
			lead.OwnerID = uuidptr(agent)
		}
		leads = append(leads, lead)
	}

	queries := []transport.BoardQuery{
		{},
		{Search: "maria"},
		{Search: "maria", TagIDs: []uuid.UUID{vip.ID}},
		{Search: "maria", TagIDs: []uuid.UUID{vip.ID}, AssigneeID: uuidptr(agent)},
	}

	prev := len(leads) + 1
	for i, q := range queries {
		got := len(ApplyFilters(leads, q))
		if got > prev {
			t.Fatalf("query %d: adding a filter grew the result from %d to %d", i, prev, got)
		}
		prev = got
	}
}
