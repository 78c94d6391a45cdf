package service

import (
	"strings"
	"time"

	"funnelboard/internal/board/transport"
	"funnelboard/internal/boardcache"
	"funnelboard/platform/phone"

	"github.com/google/uuid"
)

// Optimization levels advise clients how aggressively to virtualize
// rendering. They change nothing server-side.
const (
	OptimizationSimple   = "simple"
	OptimizationModerate = "moderate"
	OptimizationMassive  = "massive"
)

// OptimizationLevel derives the advisory rendering level from the funnel's
// total lead count.
func OptimizationLevel(totalLeads int) string {
	switch {
	case totalLeads < 200:
		return OptimizationSimple
	case totalLeads < 1000:
		return OptimizationModerate
	default:
		return OptimizationMassive
	}
}

// ApplyFilters runs the board's layered filter pipeline in its fixed order:
// search text, tag membership, assigned user, purchase-value range, creation
// date range. Every stage only removes leads, so the result is monotonic in
// the number of active filters.
func ApplyFilters(leads []boardcache.Lead, query transport.BoardQuery) []boardcache.Lead {
	out := filterBySearch(leads, query.Search)
	out = filterByTags(out, query.TagIDs)
	out = filterByAssignee(out, query.AssigneeID)
	out = filterByValue(out, query.MinValueCents, query.MaxValueCents)
	out = filterByDate(out, query.CreatedAfter, query.CreatedBefore)
	return out
}

func filterBySearch(leads []boardcache.Lead, term string) []boardcache.Lead {
	term = strings.TrimSpace(term)
	if term == "" {
		return leads
	}

	if phone.IsDigitsOnly(term) {
		digits := phone.Digits(term)
		return keep(leads, func(lead boardcache.Lead) bool {
			return strings.Contains(phone.Digits(lead.Phone), digits)
		})
	}

	lowered := strings.ToLower(term)
	return keep(leads, func(lead boardcache.Lead) bool {
		if strings.Contains(strings.ToLower(lead.Name), lowered) {
			return true
		}
		if lead.Email != nil && strings.Contains(strings.ToLower(*lead.Email), lowered) {
			return true
		}
		if lead.Company != nil && strings.Contains(strings.ToLower(*lead.Company), lowered) {
			return true
		}
		return lead.Notes != nil && strings.Contains(strings.ToLower(*lead.Notes), lowered)
	})
}

func filterByTags(leads []boardcache.Lead, tagIDs []uuid.UUID) []boardcache.Lead {
	if len(tagIDs) == 0 {
		return leads
	}
	return keep(leads, func(lead boardcache.Lead) bool {
		carried := make(map[uuid.UUID]bool, len(lead.Tags))
		for _, tag := range lead.Tags {
			carried[tag.ID] = true
		}
		for _, required := range tagIDs {
			if !carried[required] {
				return false
			}
		}
		return true
	})
}

func filterByAssignee(leads []boardcache.Lead, assigneeID *uuid.UUID) []boardcache.Lead {
	if assigneeID == nil {
		return leads
	}
	return keep(leads, func(lead boardcache.Lead) bool {
		return lead.OwnerID != nil && *lead.OwnerID == *assigneeID
	})
}

func filterByValue(leads []boardcache.Lead, minCents, maxCents *int64) []boardcache.Lead {
	if minCents == nil && maxCents == nil {
		return leads
	}
	return keep(leads, func(lead boardcache.Lead) bool {
		if minCents != nil && lead.PurchaseValueCents < *minCents {
			return false
		}
		return maxCents == nil || lead.PurchaseValueCents <= *maxCents
	})
}

func filterByDate(leads []boardcache.Lead, after, before *time.Time) []boardcache.Lead {
	if after == nil && before == nil {
		return leads
	}
	return keep(leads, func(lead boardcache.Lead) bool {
		if after != nil && lead.CreatedAt.Before(*after) {
			return false
		}
		return before == nil || !lead.CreatedAt.After(*before)
	})
}

func keep(leads []boardcache.Lead, pred func(boardcache.Lead) bool) []boardcache.Lead {
	out := make([]boardcache.Lead, 0, len(leads))
	for _, lead := range leads {
		if pred(lead) {
			out = append(out, lead)
		}
	}
	return out
}
