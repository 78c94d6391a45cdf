package transport

import (
	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	FunnelID           uuid.UUID  `json:"funnelId" binding:"required"`
	KanbanStageID      *uuid.UUID `json:"kanbanStageId,omitempty"`
	Name               string     `json:"name" binding:"required,max=160"`
	Phone              string     `json:"phone" binding:"required,max=32"`
	Email              *string    `json:"email,omitempty" binding:"omitempty,email"`
	Company            *string    `json:"company,omitempty" binding:"omitempty,max=160"`
	Notes              *string    `json:"notes,omitempty" binding:"omitempty,max=4000"`
	PurchaseValueCents int64      `json:"purchaseValueCents" binding:"omitempty,min=0"`
	OwnerID            *uuid.UUID `json:"ownerId,omitempty"`
}

type UpdateLeadRequest struct {
	Name               *string `json:"name,omitempty" binding:"omitempty,max=160"`
	Phone              *string `json:"phone,omitempty" binding:"omitempty,max=32"`
	Email              *string `json:"email,omitempty" binding:"omitempty,email"`
	Company            *string `json:"company,omitempty" binding:"omitempty,max=160"`
	Notes              *string `json:"notes,omitempty" binding:"omitempty,max=4000"`
	PurchaseValueCents *int64  `json:"purchaseValueCents,omitempty" binding:"omitempty,min=0"`
	AIEnabled          *bool   `json:"aiEnabled,omitempty"`
}

type MoveStageRequest struct {
	StageID uuid.UUID `json:"stageId" binding:"required"`
}

type AssignRequest struct {
	OwnerID *uuid.UUID `json:"ownerId"`
}

// FilterQuery is the filtered-fetch input: free text, required tags and an
// assignee, all optional.
type FilterQuery struct {
	Search     string      `form:"search"`
	TagIDs     []uuid.UUID `form:"tagIds"`
	AssigneeID *uuid.UUID  `form:"assigneeId"`
	Page       int         `form:"page" binding:"omitempty,min=0"`
}

// LeadPageResponse is one page of leads plus pagination bookkeeping.
// FromCache reports whether the page was served from the shared board cache.
type LeadPageResponse struct {
	Leads      []boardcache.Lead `json:"leads"`
	Page       int               `json:"page"`
	HasMore    bool              `json:"hasMore"`
	TotalCount int               `json:"totalCount"`
	FromCache  bool              `json:"fromCache"`
}

type LeadResponse struct {
	Lead boardcache.Lead `json:"lead"`
}
