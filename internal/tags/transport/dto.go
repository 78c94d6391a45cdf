package transport

import (
	"time"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,max=60"`
	Color string `json:"color" binding:"omitempty,max=32"`
}

type UpdateTagRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=60"`
	Color *string `json:"color,omitempty" binding:"omitempty,max=32"`
}

type TagResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

type TagListResponse struct {
	Tags []TagResponse `json:"tags"`
}

// BatchTagRequest applies one tag to a set of leads (mass selection action).
type BatchTagRequest struct {
	LeadIDs []uuid.UUID `json:"leadIds" binding:"required,min=1,max=500"`
}

// BatchTagResponse reports how many of the requested leads were touched.
// Leads outside the caller's tenant are skipped, not errored.
type BatchTagResponse struct {
	TagID        uuid.UUID `json:"tagId"`
	AppliedCount int       `json:"appliedCount"`
	SkippedCount int       `json:"skippedCount"`
}

// LeadTagsResponse is the full tag list of one lead after a mutation. Callers
// replace their local tag list with it wholesale.
type LeadTagsResponse struct {
	LeadID uuid.UUID        `json:"leadId"`
	Tags   []boardcache.Tag `json:"tags"`
}
