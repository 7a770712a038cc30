package sched

import (
	"context"

	"github.com/rs/zerolog"
)

// Retrier is the part of the webhook use case the sweep drives.
type Retrier interface {
	RetryDue(ctx context.Context, limit int) (int, error)
}

// WebhookRetrySweep resends deliveries whose next retry time has passed.
type WebhookRetrySweep struct {
	uc    Retrier
	batch int
	log   *zerolog.Logger
}

func NewWebhookRetrySweep(uc Retrier, batch int, logger *zerolog.Logger) *WebhookRetrySweep {
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "WebhookRetrySweep").Logger()
	return &WebhookRetrySweep{uc: uc, batch: batch, log: &l}
}

func (w *WebhookRetrySweep) Name() string { return "webhook_retry" }

func (w *WebhookRetrySweep) Tick(ctx context.Context) error {
	n, err := w.uc.RetryDue(ctx, w.batch)
	if n > 0 {
		w.log.Debug().Int("count", n).Msg("retried webhook deliveries")
	}
	return err
}
