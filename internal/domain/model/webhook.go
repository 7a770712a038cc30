package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTryOnCompleted   EventType = "tryon.completed"
	EventTryOnFailed      EventType = "tryon.failed"
	EventCreditsLow       EventType = "credits.low"
	EventPaymentCompleted EventType = "payment.completed"
	EventTest             EventType = "test" // synthetic, never subscribable
)

// SupportedEvents is the closed set a registration may subscribe to.
var SupportedEvents = []EventType{
	EventTryOnCompleted,
	EventTryOnFailed,
	EventCreditsLow,
	EventPaymentCompleted,
}

func IsSupportedEvent(e EventType) bool {
	for _, s := range SupportedEvents {
		if s == e {
			return true
		}
	}
	return false
}

// EventDescriptions is shown by the events listing endpoint.
var EventDescriptions = map[EventType]string{
	EventTryOnCompleted:   "Triggered when a try-on job completes successfully",
	EventTryOnFailed:      "Triggered when a try-on job fails",
	EventCreditsLow:       "Triggered when user credits fall below threshold",
	EventPaymentCompleted: "Triggered when a payment is successfully processed",
}

type Webhook struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"account_id"`
	URL             string      `json:"url"`
	Name            string      `json:"name"`
	Events          []EventType `json:"events"`
	Secret          string      `json:"secret,omitempty"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at,omitempty"`
}

// Subscribes reports whether the registration listens to e.
func (w *Webhook) Subscribes(e EventType) bool {
	for _, s := range w.Events {
		if s == e {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// WebhookDelivery is one event sent to one registration, mutated in place
// across retries. Terminal at success, or failed with Attempts == MaxAttempts.
type WebhookDelivery struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhook_id"`
	EventType    EventType       `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       DeliveryStatus  `json:"status"`
	ResponseCode *int            `json:"response_code,omitempty"`
	ResponseBody *string         `json:"response_body,omitempty"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	NextRetryAt  *time.Time      `json:"next_retry_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
}

// RetryLadder is indexed by attempts-1 and clamped to its last entry.
var RetryLadder = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
	7200 * time.Second,
}

// RetryDelay returns the wait before the next attempt after `attempts` failures.
func RetryDelay(attempts int) time.Duration {
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(RetryLadder) {
		i = len(RetryLadder) - 1
	}
	return RetryLadder[i]
}

// RecordFailure applies a failed attempt: either schedules a retry and leaves
// the delivery pending, or marks it failed for good.
func (d *WebhookDelivery) RecordFailure(now time.Time, msg string) {
	d.Attempts++
	d.ErrorMessage = &msg
	d.UpdatedAt = now
	if d.Attempts < d.MaxAttempts {
		next := now.Add(RetryDelay(d.Attempts))
		d.NextRetryAt = &next
		d.Status = DeliveryStatusPending
		return
	}
	d.NextRetryAt = nil
	d.Status = DeliveryStatusFailed
}

// RecordSuccess marks the delivery delivered.
func (d *WebhookDelivery) RecordSuccess(now time.Time) {
	d.Attempts++
	d.Status = DeliveryStatusSuccess
	d.DeliveredAt = &now
	d.NextRetryAt = nil
	d.ErrorMessage = nil
	d.UpdatedAt = now
}
