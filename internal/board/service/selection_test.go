package service

import (
	"testing"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func TestSelectAndDeselect(t *testing.T) {
	s := NewSelectionStore()
	user, funnel := uuid.New(), uuid.New()
	a, b := uuid.New(), uuid.New()

	got := s.Select(user, funnel, []uuid.UUID{a, b})
	if len(got) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(got))
	}

	got = s.Deselect(user, funnel, []uuid.UUID{a})
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected only %s selected, got %v", b, got)
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	s := NewSelectionStore()
	user, funnel := uuid.New(), uuid.New()
	a := uuid.New()

	s.Select(user, funnel, []uuid.UUID{a})
	got := s.Select(user, funnel, []uuid.UUID{a})
	if len(got) != 1 {
		t.Fatalf("expected duplicate select to be a no-op, got %d entries", len(got))
	}
}

func TestSelectionsAreScopedPerUserAndFunnel(t *testing.T) {
	s := NewSelectionStore()
	userA, userB := uuid.New(), uuid.New()
	funnel, otherFunnel := uuid.New(), uuid.New()
	lead := uuid.New()

	s.Select(userA, funnel, []uuid.UUID{lead})

	if got := s.Selected(userB, funnel); len(got) != 0 {
		t.Fatalf("expected other user's selection to be empty, got %v", got)
	}
	if got := s.Selected(userA, otherFunnel); len(got) != 0 {
		t.Fatalf("expected other funnel's selection to be empty, got %v", got)
	}
}

func TestSelectAllAddsColumnLeads(t *testing.T) {
	s := NewSelectionStore()
	user, funnel := uuid.New(), uuid.New()
	column := []boardcache.Lead{
		{ID: uuid.New()},
		{ID: uuid.New()},
		{ID: uuid.New()},
	}

	got := s.SelectAll(user, funnel, column)
	if len(got) != 3 {
		t.Fatalf("expected 3 selected, got %d", len(got))
	}
	for _, lead := range column {
		if !contains(got, lead.ID) {
			t.Fatalf("expected %s in selection", lead.ID)
		}
	}
}

func TestClearDropsSelection(t *testing.T) {
	s := NewSelectionStore()
	user, funnel := uuid.New(), uuid.New()

	s.Select(user, funnel, []uuid.UUID{uuid.New()})
	s.Clear(user, funnel)

	if got := s.Selected(user, funnel); len(got) != 0 {
		t.Fatalf("expected cleared selection, got %v", got)
	}
}

func TestRetainIntersectsWithVisibleLeads(t *testing.T) {
	s := NewSelectionStore()
	user, funnel := uuid.New(), uuid.New()
	kept, filteredOut := uuid.New(), uuid.New()

	s.Select(user, funnel, []uuid.UUID{kept, filteredOut})

	got := s.Retain(user, funnel, []boardcache.Lead{{ID: kept}, {ID: uuid.New()}})
	if len(got) != 1 || got[0] != kept {
		t.Fatalf("expected only the still-visible lead retained, got %v", got)
	}

	// Retain mutates the stored set, not just the returned view.
	if stored := s.Selected(user, funnel); len(stored) != 1 || stored[0] != kept {
		t.Fatalf("expected stored selection pruned, got %v", stored)
	}
}

func TestRetainOnEmptySelectionReturnsEmptySlice(t *testing.T) {
	s := NewSelectionStore()

	got := s.Retain(uuid.New(), uuid.New(), []boardcache.Lead{{ID: uuid.New()}})
	if got == nil {
		t.Fatal("expected empty slice, not nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}
}
