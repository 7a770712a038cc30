package usecase

import (
	"context"

	"trailroom-billing/internal/domain/model"
)

// EventPublisher fans a business event out to subscribed webhooks. Trigger
// never fails the caller; delivery problems are logged and retried.
type EventPublisher interface {
	Trigger(ctx context.Context, accountID string, event model.EventType, payload map[string]any)
}

type noopPublisher struct{}

func (noopPublisher) Trigger(context.Context, string, model.EventType, map[string]any) {}
