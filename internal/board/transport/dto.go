package transport

import (
	"time"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
)

// BoardQuery carries the board's layered filters. Stages apply in a fixed
// order and each one only removes leads.
type BoardQuery struct {
	Search        string      `form:"search"`
	TagIDs        []uuid.UUID `form:"tagIds"`
	AssigneeID    *uuid.UUID  `form:"assigneeId"`
	MinValueCents *int64      `form:"minValueCents" binding:"omitempty,min=0"`
	MaxValueCents *int64      `form:"maxValueCents" binding:"omitempty,min=0"`
	CreatedAfter  *time.Time  `form:"createdAfter" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedBefore *time.Time  `form:"createdBefore" time_format:"2006-01-02T15:04:05Z07:00"`
}

// StageInfo is the column header.
type StageInfo struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Color         string    `json:"color"`
	OrderPosition int       `json:"orderPosition"`
}

// Column is one kanban column: its stage plus the leads currently in it.
type Column struct {
	Stage StageInfo         `json:"stage"`
	Leads []boardcache.Lead `json:"leads"`
	Count int               `json:"count"`
}

// BoardResponse is the composed board view.
type BoardResponse struct {
	FunnelID          uuid.UUID   `json:"funnelId"`
	Columns           []Column    `json:"columns"`
	OrphanedLeadCount int         `json:"orphanedLeadCount"`
	TotalCount        int         `json:"totalCount"`
	OptimizationLevel string      `json:"optimizationLevel"`
	FromCache         bool        `json:"fromCache"`
	SelectedLeadIDs   []uuid.UUID `json:"selectedLeadIds"`
}

// StageLoadResponse is one incremental page appended to a single column.
type StageLoadResponse struct {
	StageID uuid.UUID         `json:"stageId"`
	Page    int               `json:"page"`
	Leads   []boardcache.Lead `json:"leads"`
	HasMore bool              `json:"hasMore"`
}

// DragEndRequest optionally settles derived column fields when the gesture
// completes.
type DragEndRequest struct {
	StageID   *uuid.UUID `json:"stageId,omitempty"`
	AIEnabled *bool      `json:"aiEnabled,omitempty"`
}

type SelectionRequest struct {
	LeadIDs []uuid.UUID `json:"leadIds" binding:"required,min=1,max=500"`
}

type SelectAllRequest struct {
	StageID uuid.UUID `json:"stageId" binding:"required"`
}

type SelectionResponse struct {
	LeadIDs []uuid.UUID `json:"leadIds"`
}
