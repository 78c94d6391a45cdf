package scheduler

import (
	"context"
	"errors"
	"fmt"

	authrepo "funnelboard/internal/auth/repository"
	leadrepo "funnelboard/internal/leads/repository"
	"funnelboard/platform/config"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageSender delivers a text message to a phone number.
type MessageSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// ReminderMailer sends the unread-lead reminder email. A nil mailer
// disables reminders.
type ReminderMailer interface {
	SendUnreadReminder(ctx context.Context, to, leadName string, unread int) error
}

// Worker consumes queued tasks: outbound WhatsApp delivery and unread
// reminders.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	leads    *leadrepo.Repository
	accounts *authrepo.Repository
	sender   MessageSender
	mailer   ReminderMailer
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, sender MessageSender, mailer ReminderMailer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		leads:    leadrepo.New(pool),
		accounts: authrepo.New(pool),
		sender:   sender,
		mailer:   mailer,
		log:      log,
	}

	mux.HandleFunc(TaskWhatsAppSend, w.handleWhatsAppSend)
	mux.HandleFunc(TaskUnreadReminder, w.handleUnreadReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleWhatsAppSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWhatsAppSendPayload(task)
	if err != nil {
		return err
	}

	if w.sender == nil {
		w.log.Warn("whatsapp sender not configured, dropping send", "leadId", payload.LeadID)
		return nil
	}

	if err := w.sender.SendMessage(ctx, payload.Phone, payload.Message); err != nil {
		w.log.Error("whatsapp delivery failed", "leadId", payload.LeadID, "error", err)
		return err
	}
	return nil
}

// handleUnreadReminder emails the lead's tenant admin when the lead still
// has unread messages at delivery time. A lead read or deleted in the
// meantime makes the task a no-op.
func (w *Worker) handleUnreadReminder(ctx context.Context, task *asynq.Task) error {
	if w.mailer == nil {
		return nil
	}

	payload, err := ParseUnreadReminderPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	lead, err := w.leads.GetByIDUnscoped(ctx, leadID)
	if errors.Is(err, leadrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if lead.UnreadCount == 0 || lead.CreatedByUserID != tenantID {
		return nil
	}

	account, err := w.accounts.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	return w.mailer.SendUnreadReminder(ctx, account.Email, lead.Name, lead.UnreadCount)
}
