package notification

import (
	"context"
	"time"

	authrepo "funnelboard/internal/auth/repository"
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

// AccountDirectory resolves user accounts to notification recipients.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (authrepo.Account, error)
}

// LeadSource loads a lead snapshot without tenant scoping.
type LeadSource interface {
	LeadByIDUnscoped(ctx context.Context, leadID uuid.UUID) (boardcache.Lead, error)
}

// ReminderScheduler queues a delayed unread-messages check.
type ReminderScheduler interface {
	ScheduleUnreadReminder(ctx context.Context, leadID, tenantID uuid.UUID, delay time.Duration) error
}

// unreadReminderDelay is how long an inbound message may sit unread before
// the reminder email fires.
const unreadReminderDelay = 30 * time.Minute

// Subscriber routes domain events to email and reminder scheduling. Email
// failures are logged, never propagated: notification is best effort.
type Subscriber struct {
	mailer    *Mailer
	accounts  AccountDirectory
	leads     LeadSource
	reminders ReminderScheduler
	log       *logger.Logger
}

func NewSubscriber(mailer *Mailer, accounts AccountDirectory, leads LeadSource, reminders ReminderScheduler, log *logger.Logger) *Subscriber {
	return &Subscriber{
		mailer:    mailer,
		accounts:  accounts,
		leads:     leads,
		reminders: reminders,
		log:       log,
	}
}

// Subscribe registers the event handlers on the bus.
func (s *Subscriber) Subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(s.onLeadAssigned))
	bus.Subscribe(events.LeadStageChanged{}.EventName(), events.HandlerFunc(s.onLeadStageChanged))
	bus.Subscribe(events.InboundMessageReceived{}.EventName(), events.HandlerFunc(s.onInboundMessage))
}

func (s *Subscriber) onLeadAssigned(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.LeadAssigned)
	if !ok || s.mailer == nil {
		return nil
	}
	if evt.NewOwner == nil || *evt.NewOwner == evt.AssignedByID {
		return nil
	}

	recipient, err := s.accounts.GetByID(ctx, *evt.NewOwner)
	if err != nil {
		s.log.Warn("lead assigned notification skipped", "leadId", evt.LeadID, "error", err)
		return nil
	}

	assignedBy := "um colega"
	if actor, err := s.accounts.GetByID(ctx, evt.AssignedByID); err == nil {
		assignedBy = actor.DisplayName
	}

	if err := s.mailer.SendLeadAssigned(ctx, recipient.Email, evt.LeadName, assignedBy); err != nil {
		s.log.Error("lead assigned email failed", "leadId", evt.LeadID, "error", err)
	}
	return nil
}

func (s *Subscriber) onLeadStageChanged(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.LeadStageChanged)
	if !ok || s.mailer == nil || !evt.IsWon {
		return nil
	}

	lead, err := s.leads.LeadByIDUnscoped(ctx, evt.LeadID)
	if err != nil {
		s.log.Warn("lead won notification skipped", "leadId", evt.LeadID, "error", err)
		return nil
	}

	recipient, err := s.accounts.GetByID(ctx, evt.CreatedByUserID)
	if err != nil {
		s.log.Warn("lead won notification skipped", "leadId", evt.LeadID, "error", err)
		return nil
	}

	if err := s.mailer.SendLeadWon(ctx, recipient.Email, lead.Name, lead.PurchaseValueCents); err != nil {
		s.log.Error("lead won email failed", "leadId", evt.LeadID, "error", err)
	}
	return nil
}

func (s *Subscriber) onInboundMessage(ctx context.Context, event events.Event) error {
	evt, ok := event.(events.InboundMessageReceived)
	if !ok || s.reminders == nil {
		return nil
	}

	if err := s.reminders.ScheduleUnreadReminder(ctx, evt.LeadID, evt.CreatedByUserID, unreadReminderDelay); err != nil {
		s.log.Warn("unread reminder scheduling failed", "leadId", evt.LeadID, "error", err)
	}
	return nil
}
