// Package scheduler provides the asynq task codecs, the enqueue client and
// the background worker that delivers queued work.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskWhatsAppSend = "whatsapp.message.send"

const TaskUnreadReminder = "leads.unread.reminder"

type WhatsAppSendPayload struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
}

type UnreadReminderPayload struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
}

func NewWhatsAppSendTask(payload WhatsAppSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWhatsAppSend, data), nil
}

func ParseWhatsAppSendPayload(task *asynq.Task) (WhatsAppSendPayload, error) {
	var payload WhatsAppSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WhatsAppSendPayload{}, err
	}
	return payload, nil
}

func NewUnreadReminderTask(payload UnreadReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUnreadReminder, data), nil
}

func ParseUnreadReminderPayload(task *asynq.Task) (UnreadReminderPayload, error) {
	var payload UnreadReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return UnreadReminderPayload{}, err
	}
	return payload, nil
}
