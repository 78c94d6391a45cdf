// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created, whether by an inbound
// message or a manual action.
type LeadCreated struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	FunnelID        uuid.UUID `json:"funnelId"`
	CreatedByUserID uuid.UUID `json:"createdByUserId"`
	Source          string    `json:"source"` // "inbound_message" or "manual"
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadUpdated is published when lead fields change. Patch carries exactly the
// changed fields so listeners can patch caches without a refetch.
type LeadUpdated struct {
	BaseEvent
	LeadID          uuid.UUID            `json:"leadId"`
	FunnelID        uuid.UUID            `json:"funnelId"`
	CreatedByUserID uuid.UUID            `json:"createdByUserId"`
	Patch           boardcache.LeadPatch `json:"-"`
}

func (e LeadUpdated) EventName() string { return "leads.lead.updated" }

// LeadDeleted is published when a lead is removed.
type LeadDeleted struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	FunnelID        uuid.UUID `json:"funnelId"`
	CreatedByUserID uuid.UUID `json:"createdByUserId"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// LeadStageChanged is published when a lead moves between kanban stages.
type LeadStageChanged struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	FunnelID        uuid.UUID  `json:"funnelId"`
	CreatedByUserID uuid.UUID  `json:"createdByUserId"`
	OldStageID      *uuid.UUID `json:"oldStageId,omitempty"`
	NewStageID      uuid.UUID  `json:"newStageId"`
	IsWon           bool       `json:"isWon"`
	IsLost          bool       `json:"isLost"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// LeadAssigned is published when a lead's owner changes.
type LeadAssigned struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	FunnelID        uuid.UUID  `json:"funnelId"`
	CreatedByUserID uuid.UUID  `json:"createdByUserId"`
	PreviousOwner   *uuid.UUID `json:"previousOwner,omitempty"`
	NewOwner        *uuid.UUID `json:"newOwner,omitempty"`
	AssignedByID    uuid.UUID  `json:"assignedById"`
	LeadName        string     `json:"leadName"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// LeadTagsChanged is published after a tag is attached to or detached from a
// lead. It carries the full post-mutation tag list; the publisher has already
// patched the shared cache, so listeners only fan the change out.
type LeadTagsChanged struct {
	BaseEvent
	LeadID          uuid.UUID        `json:"leadId"`
	FunnelID        uuid.UUID        `json:"funnelId"`
	CreatedByUserID uuid.UUID        `json:"createdByUserId"`
	Tags            []boardcache.Tag `json:"tags"`
}

func (e LeadTagsChanged) EventName() string { return "leads.tags.changed" }

// =============================================================================
// Messaging Events
// =============================================================================

// InboundMessageReceived is published by the webhook when a WhatsApp message
// arrives for a tracked phone number.
type InboundMessageReceived struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	FunnelID        uuid.UUID `json:"funnelId"`
	CreatedByUserID uuid.UUID `json:"createdByUserId"`
	Phone           string    `json:"phone"`
	Text            string    `json:"text"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

func (e InboundMessageReceived) EventName() string { return "whatsapp.message.received" }

// =============================================================================
// Board Coordination Events
// =============================================================================

// DragStarted is published when a client begins a drag-and-drop gesture.
// The realtime listener pauses insert/update handling for the funnel.
type DragStarted struct {
	BaseEvent
	FunnelID uuid.UUID `json:"funnelId"`
	UserID   uuid.UUID `json:"userId"`
}

func (e DragStarted) EventName() string { return "board.drag.started" }

// DragEnded is published when the drag gesture completes. The optional column
// patch lets the board apply derived-field updates (e.g. aiEnabled) without
// waiting for the realtime round-trip.
type DragEnded struct {
	BaseEvent
	FunnelID  uuid.UUID  `json:"funnelId"`
	UserID    uuid.UUID  `json:"userId"`
	StageID   *uuid.UUID `json:"stageId,omitempty"`
	AIEnabled *bool      `json:"aiEnabled,omitempty"`
}

func (e DragEnded) EventName() string { return "board.drag.ended" }

// StageListChanged is published when stages are created, reordered or deleted,
// so board snapshots for the funnel can be refetched wholesale.
type StageListChanged struct {
	BaseEvent
	FunnelID        uuid.UUID `json:"funnelId"`
	CreatedByUserID uuid.UUID `json:"createdByUserId"`
}

func (e StageListChanged) EventName() string { return "funnels.stages.changed" }

// =============================================================================
// Auth Domain Events
// =============================================================================

// UserSignedUp is published when a new account registers.
type UserSignedUp struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func (e UserSignedUp) EventName() string { return "auth.user.signed_up" }
