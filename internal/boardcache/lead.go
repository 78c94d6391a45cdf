package boardcache

import (
	"time"

	"github.com/google/uuid"
)

// Tag is the flattened tag shape carried on cached leads.
type Tag struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

// Lead is the board-facing lead snapshot held in cache pages. Tags is always
// non-nil: a lead without tags carries an empty slice, never null.
type Lead struct {
	ID                 uuid.UUID  `json:"id"`
	FunnelID           uuid.UUID  `json:"funnelId"`
	KanbanStageID      *uuid.UUID `json:"kanbanStageId,omitempty"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	Email              *string    `json:"email,omitempty"`
	Company            *string    `json:"company,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	LastMessageText    *string    `json:"lastMessageText,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount        int        `json:"unreadCount"`
	PurchaseValueCents int64      `json:"purchaseValueCents"`
	OwnerID            *uuid.UUID `json:"ownerId,omitempty"`
	CreatedByUserID    uuid.UUID  `json:"createdByUserId"`
	AIEnabled          bool       `json:"aiEnabled"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Tags               []Tag      `json:"tags"`
}

// LeadPatch is a partial update applied in place to cached leads. Nil fields
// are left untouched.
type LeadPatch struct {
	Name               *string
	Phone              *string
	Email              *string
	Company            *string
	Notes              *string
	KanbanStageID      *uuid.UUID
	LastMessageText    *string
	LastMessageAt      *time.Time
	UnreadCount        *int
	PurchaseValueCents *int64
	OwnerID            *uuid.UUID
	AIEnabled          *bool
	UpdatedAt          *time.Time
}

func (p LeadPatch) apply(lead Lead) Lead {
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Phone != nil {
		lead.Phone = *p.Phone
	}
	if p.Email != nil {
		lead.Email = p.Email
	}
	if p.Company != nil {
		lead.Company = p.Company
	}
	if p.Notes != nil {
		lead.Notes = p.Notes
	}
	if p.KanbanStageID != nil {
		lead.KanbanStageID = p.KanbanStageID
	}
	if p.LastMessageText != nil {
		lead.LastMessageText = p.LastMessageText
	}
	if p.LastMessageAt != nil {
		lead.LastMessageAt = p.LastMessageAt
	}
	if p.UnreadCount != nil {
		lead.UnreadCount = *p.UnreadCount
	}
	if p.PurchaseValueCents != nil {
		lead.PurchaseValueCents = *p.PurchaseValueCents
	}
	if p.OwnerID != nil {
		lead.OwnerID = p.OwnerID
	}
	if p.AIEnabled != nil {
		lead.AIEnabled = *p.AIEnabled
	}
	if p.UpdatedAt != nil {
		lead.UpdatedAt = *p.UpdatedAt
	}
	return lead
}
