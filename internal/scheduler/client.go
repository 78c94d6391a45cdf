package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"funnelboard/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks. A nil Client is valid and drops every
// enqueue, so the API binary runs without Redis configured.
type Client struct {
	client *asynq.Client
	queue  string
}

// sendMaxRetry bounds delivery attempts for outbound messages; beyond this
// the task lands in the asynq archive for manual inspection.
const sendMaxRetry = 5

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueWhatsAppSend queues an outbound message for delivery by the worker.
func (c *Client) EnqueueWhatsAppSend(ctx context.Context, leadID, tenantID uuid.UUID, phoneNumber, message string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler not configured")
	}

	task, err := NewWhatsAppSendTask(WhatsAppSendPayload{
		LeadID:   leadID.String(),
		TenantID: tenantID.String(),
		Phone:    phoneNumber,
		Message:  message,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(sendMaxRetry))
	return err
}

// ScheduleUnreadReminder queues a reminder check to run after the given delay.
func (c *Client) ScheduleUnreadReminder(ctx context.Context, leadID, tenantID uuid.UUID, delay time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewUnreadReminderTask(UnreadReminderPayload{
		LeadID:   leadID.String(),
		TenantID: tenantID.String(),
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
