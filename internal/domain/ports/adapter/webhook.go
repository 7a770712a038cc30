package adapter

import (
	"context"
	"time"
)

// WebhookRequest is one signed POST to a subscriber.
type WebhookRequest struct {
	URL       string
	Body      []byte
	Signature string
	Event     string
	Timestamp time.Time
}

// WebhookResponse is what came back. A transport failure is returned as an
// error instead.
type WebhookResponse struct {
	StatusCode int
	Body       string
}

type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) (WebhookResponse, error)
}
