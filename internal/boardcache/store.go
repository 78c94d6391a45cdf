// Package boardcache holds the process-wide snapshot cache the board fetchers,
// tag mutations and realtime listener share. It is the single auditable
// mutation surface for cached lead data: callers patch through the typed
// functions below instead of rewriting pages by hand.
//
// The cache is not authoritative. Every entry is reconcilable by refetch, and
// a stale entry still serves reads; staleness only tells the owning fetcher
// to refresh.
package boardcache

import (
	"sync"
	"time"

	"funnelboard/platform/logger"
)

// DefaultStaleness is the window after which an entry reports stale.
const DefaultStaleness = 30 * time.Second

type entry struct {
	pages     map[int][]Lead
	pageOrder []int
	fetchedAt time.Time
}

// Store is the in-memory board cache. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	staleness time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// New creates an empty store with the default staleness window.
func New(log *logger.Logger) *Store {
	return &Store{
		entries:   make(map[string]*entry),
		staleness: DefaultStaleness,
		log:       log,
		now:       time.Now,
	}
}

// SetPage stores one fetched page under the key, creating the entry if needed.
// Storing page 0 resets the entry: a fresh first page supersedes whatever
// pagination state the previous snapshot had.
func (s *Store) SetPage(key Key, page int, leads []Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	e, ok := s.entries[k]
	if !ok || page == 0 {
		e = &entry{pages: make(map[int][]Lead)}
		s.entries[k] = e
	}

	if _, exists := e.pages[page]; !exists {
		e.pageOrder = append(e.pageOrder, page)
	}
	e.pages[page] = leads
	e.fetchedAt = s.now()
}

// Leads returns the de-duplicated concatenation of all cached pages for the
// key, in page order. The second result reports whether the entry exists.
func (s *Store) Leads(key Key) ([]Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil, false
	}

	seen := make(map[string]struct{})
	out := make([]Lead, 0)
	for _, page := range e.pageOrder {
		for _, lead := range e.pages[page] {
			if _, dup := seen[lead.ID.String()]; dup {
				continue
			}
			seen[lead.ID.String()] = struct{}{}
			out = append(out, lead)
		}
	}
	return out, true
}

// IsStale reports whether the entry is older than the staleness window.
// Missing entries are stale by definition.
func (s *Store) IsStale(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return true
	}
	return s.now().Sub(e.fetchedAt) > s.staleness
}

// Invalidate drops the entry for the key.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key.String())
	if s.log != nil {
		s.log.CacheEvent("invalidate", key.String(), 1)
	}
}

// InvalidatePrefix drops every entry whose key starts with the prefix and
// returns how many entries were dropped. Reserved for the realtime listener.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for k := range s.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.entries, k)
			dropped++
		}
	}
	if s.log != nil {
		s.log.CacheEvent("invalidate_prefix", prefix, dropped)
	}
	return dropped
}

// PatchLead applies a partial update to every cached copy of the lead across
// all entries and pages. It never creates entries. Returns the number of
// copies patched.
func (s *Store) PatchLead(leadID string, patch LeadPatch) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	patched := 0
	for _, e := range s.entries {
		for page, leads := range e.pages {
			for i, lead := range leads {
				if lead.ID.String() == leadID {
					e.pages[page][i] = patch.apply(lead)
					patched++
				}
			}
		}
	}
	if s.log != nil {
		s.log.CacheEvent("patch_lead", leadID, patched)
	}
	return patched
}

// RemoveLead deletes the lead from every page of every entry. Used by the
// delete path, which is immediate and never debounced.
func (s *Store) RemoveLead(leadID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, e := range s.entries {
		for page, leads := range e.pages {
			kept := leads[:0]
			for _, lead := range leads {
				if lead.ID.String() == leadID {
					removed++
					continue
				}
				kept = append(kept, lead)
			}
			e.pages[page] = kept
		}
	}
	if s.log != nil {
		s.log.CacheEvent("remove_lead", leadID, removed)
	}
	return removed
}

// UpsertLeadTags replaces the tag list on every cached copy of the lead.
// Tag toggles patch in place so the board does not flicker through a refetch.
func (s *Store) UpsertLeadTags(leadID string, tags []Tag) int {
	if tags == nil {
		tags = []Tag{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patched := 0
	for _, e := range s.entries {
		for page, leads := range e.pages {
			for i, lead := range leads {
				if lead.ID.String() == leadID {
					copied := make([]Tag, len(tags))
					copy(copied, tags)
					e.pages[page][i].Tags = copied
					patched++
				}
			}
		}
	}
	if s.log != nil {
		s.log.CacheEvent("upsert_lead_tags", leadID, patched)
	}
	return patched
}

// PatchStageLeads applies a partial update to every cached lead currently in
// the given stage. The drag-end path uses it to settle derived column fields
// without waiting for a refetch.
func (s *Store) PatchStageLeads(stageID string, patch LeadPatch) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	patched := 0
	for _, e := range s.entries {
		for page, leads := range e.pages {
			for i, lead := range leads {
				if lead.KanbanStageID != nil && lead.KanbanStageID.String() == stageID {
					e.pages[page][i] = patch.apply(lead)
					patched++
				}
			}
		}
	}
	if s.log != nil {
		s.log.CacheEvent("patch_stage_leads", stageID, patched)
	}
	return patched
}

// ContainsLead reports whether any cached page still holds the lead.
func (s *Store) ContainsLead(leadID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		for _, leads := range e.pages {
			for _, lead := range leads {
				if lead.ID.String() == leadID {
					return true
				}
			}
		}
	}
	return false
}
