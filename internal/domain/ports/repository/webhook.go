package repository

import (
	"context"
	"time"

	"trailroom-billing/internal/domain/model"
)

type WebhookRepository interface {
	Save(ctx context.Context, tx Tx, w *model.Webhook) error
	Update(ctx context.Context, tx Tx, w *model.Webhook) error
	Delete(ctx context.Context, tx Tx, accountID, id string) (int64, error)
	FindByID(ctx context.Context, tx Tx, accountID, id string) (*model.Webhook, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.Webhook, error)
	// ListSubscribed returns active registrations of accountID subscribed to event.
	ListSubscribed(ctx context.Context, tx Tx, accountID string, event model.EventType) ([]*model.Webhook, error)
	// FindActiveByID ignores ownership; used by delivery workers.
	FindActiveByID(ctx context.Context, tx Tx, id string) (*model.Webhook, error)
	TouchTriggered(ctx context.Context, tx Tx, id string, at time.Time) error
}

type DeliveryRepository interface {
	Save(ctx context.Context, tx Tx, d *model.WebhookDelivery) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.WebhookDelivery, error)
	// UpdateAttempt persists the outcome of one attempt, only while the row is
	// still pending. Returns rows affected.
	UpdateAttempt(ctx context.Context, tx Tx, d *model.WebhookDelivery) (int64, error)
	// Reschedule sets next_retry_at of a pending delivery.
	Reschedule(ctx context.Context, tx Tx, id string, at time.Time) error
	ListByWebhook(ctx context.Context, tx Tx, webhookID string, limit int) ([]*model.WebhookDelivery, error)

	// ClaimDue atomically selects pending deliveries whose next_retry_at has
	// passed (FOR UPDATE SKIP LOCKED) and pushes next_retry_at forward by lease
	// so concurrent sweeps skip them.
	ClaimDue(ctx context.Context, tx Tx, now time.Time, lease time.Duration, limit int) ([]*model.WebhookDelivery, error)
}
