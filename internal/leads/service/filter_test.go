package service

import (
	"testing"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/leads/transport"

	"github.com/google/uuid"
)

func taggedLead(tags ...boardcache.Tag) boardcache.Lead {
	if tags == nil {
		tags = []boardcache.Tag{}
	}
	return boardcache.Lead{ID: uuid.New(), Name: "lead", Tags: tags}
}

func TestFilterByTagsEmptyRequirementKeepsEverything(t *testing.T) {
	leads := []boardcache.Lead{taggedLead(), taggedLead()}

	got := filterByTags(leads, nil)
	if len(got) != 2 {
		t.Fatalf("expected all leads kept, got %d", len(got))
	}
}

func TestFilterByTagsRequiresEveryTag(t *testing.T) {
	vip := boardcache.Tag{ID: uuid.New(), Name: "vip"}
	hot := boardcache.Tag{ID: uuid.New(), Name: "quente"}

	both := taggedLead(vip, hot)
	partial := taggedLead(vip)
	none := taggedLead()

	got := filterByTags([]boardcache.Lead{both, partial, none}, []uuid.UUID{vip.ID, hot.ID})
	if len(got) != 1 || got[0].ID != both.ID {
		t.Fatalf("expected only the fully tagged lead, got %d", len(got))
	}
}

func TestFilterHashIsStable(t *testing.T) {
	agent := uuid.New()
	tagA, tagB := uuid.New(), uuid.New()

	query := transport.FilterQuery{
		Search:     "maria",
		TagIDs:     []uuid.UUID{tagA, tagB},
		AssigneeID: &agent,
	}

	if filterHash(query) != filterHash(query) {
		t.Fatal("expected identical queries to hash identically")
	}
}

func TestFilterHashIgnoresTagOrder(t *testing.T) {
	tagA, tagB := uuid.New(), uuid.New()

	forward := transport.FilterQuery{TagIDs: []uuid.UUID{tagA, tagB}}
	reversed := transport.FilterQuery{TagIDs: []uuid.UUID{tagB, tagA}}

	if filterHash(forward) != filterHash(reversed) {
		t.Fatal("expected tag order not to change the hash")
	}
}

func TestFilterHashNormalizesSearchCaseAndSpace(t *testing.T) {
	a := transport.FilterQuery{Search: "  Maria "}
	b := transport.FilterQuery{Search: "maria"}

	if filterHash(a) != filterHash(b) {
		t.Fatal("expected trimmed lowercase search to hash the same")
	}
}

func TestFilterHashDistinguishesDifferentFilters(t *testing.T) {
	agent := uuid.New()

	base := transport.FilterQuery{Search: "maria"}
	withTag := transport.FilterQuery{Search: "maria", TagIDs: []uuid.UUID{uuid.New()}}
	withAssignee := transport.FilterQuery{Search: "maria", AssigneeID: &agent}

	if filterHash(base) == filterHash(withTag) {
		t.Fatal("expected tag filter to change the hash")
	}
	if filterHash(base) == filterHash(withAssignee) {
		t.Fatal("expected assignee filter to change the hash")
	}
}
