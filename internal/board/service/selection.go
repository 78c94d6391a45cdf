package service

import (
	"sort"
	"sync"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

// SelectionStore holds each user's mass selection per funnel. Selections are
// in-memory working state, not persisted; a restart clears them.
type SelectionStore struct {
	mu   sync.Mutex
	sets map[selectionKey]map[uuid.UUID]bool
}

type selectionKey struct {
	userID   uuid.UUID
	funnelID uuid.UUID
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{sets: make(map[selectionKey]map[uuid.UUID]bool)}
}

func (s *SelectionStore) set(key selectionKey) map[uuid.UUID]bool {
	if s.sets[key] == nil {
		s.sets[key] = make(map[uuid.UUID]bool)
	}
	return s.sets[key]
}

// Select adds lead ids to the user's selection.
func (s *SelectionStore) Select(userID, funnelID uuid.UUID, leadIDs []uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.set(selectionKey{userID, funnelID})
	for _, id := range leadIDs {
		set[id] = true
	}
	return sorted(set)
}

// Deselect removes lead ids from the user's selection.
func (s *SelectionStore) Deselect(userID, funnelID uuid.UUID, leadIDs []uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.set(selectionKey{userID, funnelID})
	for _, id := range leadIDs {
		delete(set, id)
	}
	return sorted(set)
}

// SelectAll adds every given lead (one column's visible leads) to the
// selection.
func (s *SelectionStore) SelectAll(userID, funnelID uuid.UUID, leads []boardcache.Lead) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.set(selectionKey{userID, funnelID})
	for _, lead := range leads {
		set[lead.ID] = true
	}
	return sorted(set)
}

// Clear drops the user's selection for the funnel.
func (s *SelectionStore) Clear(userID, funnelID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, selectionKey{userID, funnelID})
}

// Retain intersects the selection with the currently visible leads. Filter
// changes keep only selections that are still on screen.
func (s *SelectionStore) Retain(userID, funnelID uuid.UUID, visible []boardcache.Lead) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := selectionKey{userID, funnelID}
	set, ok := s.sets[key]
	if !ok || len(set) == 0 {
		return []uuid.UUID{}
	}

	onScreen := make(map[uuid.UUID]bool, len(visible))
	for _, lead := range visible {
		onScreen[lead.ID] = true
	}
	for id := range set {
		if !onScreen[id] {
			delete(set, id)
		}
	}
	return sorted(set)
}

// Selected returns the current selection.
func (s *SelectionStore) Selected(userID, funnelID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.sets[selectionKey{userID, funnelID}])
}

func sorted(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
