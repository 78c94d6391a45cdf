package boardcache

import (
	"strings"

	"github.com/google/uuid"
)

// Key addresses one cached query snapshot. Keys are built exclusively through
// the builder functions below so every caller shapes them the same way;
// prefix invalidation relies on that.
type Key struct {
	parts []string
}

// String renders the key in its canonical slash-joined form.
func (k Key) String() string {
	return strings.Join(k.parts, "/")
}

// LeadsKey addresses the unfiltered paginated lead list for a funnel,
// scoped to the resolved owner.
func LeadsKey(funnelID, ownerID uuid.UUID) Key {
	return Key{parts: []string{"funnel", funnelID.String(), "leads", ownerID.String()}}
}

// FilteredLeadsKey addresses a filtered lead query. The filter hash is a
// stable digest of the search term, tag set and assignee filter.
func FilteredLeadsKey(funnelID, ownerID uuid.UUID, filterHash string) Key {
	return Key{parts: []string{"funnel", funnelID.String(), "leads-filtered", ownerID.String(), filterHash}}
}

// StagesKey addresses the stage list for a funnel.
func StagesKey(funnelID uuid.UUID) Key {
	return Key{parts: []string{"funnel", funnelID.String(), "stages"}}
}

// FunnelPrefix matches every key belonging to a funnel. Only the realtime
// listener invalidates by prefix; everything else patches keys it owns.
func FunnelPrefix(funnelID uuid.UUID) string {
	return "funnel/" + funnelID.String() + "/"
}
