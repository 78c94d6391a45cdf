package notification

import (
	"funnelboard/internal/events"
	"funnelboard/platform/config"
	"funnelboard/platform/logger"
)

// Module wires the mailer and event subscriber. It registers no HTTP routes.
type Module struct {
	mailer     *Mailer
	subscriber *Subscriber
}

// NewModule creates the notification module and subscribes it to the bus.
// With email disabled the subscriber still runs so reminders get scheduled.
func NewModule(cfg config.EmailConfig, accounts AccountDirectory, leads LeadSource, reminders ReminderScheduler, bus events.Bus, log *logger.Logger) *Module {
	mailer := NewMailer(cfg)
	if mailer == nil {
		log.Info("email notifications disabled")
	}

	subscriber := NewSubscriber(mailer, accounts, leads, reminders, log)
	subscriber.Subscribe(bus)

	return &Module{
		mailer:     mailer,
		subscriber: subscriber,
	}
}

// Mailer returns the mailer for use by the worker binary. May be nil.
func (m *Module) Mailer() *Mailer {
	return m.mailer
}
