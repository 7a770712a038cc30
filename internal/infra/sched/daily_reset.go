package sched

import (
	"context"

	"github.com/rs/zerolog"
)

// Granter is the part of the credit use case the daily reset drives.
type Granter interface {
	ResetAllDaily(ctx context.Context) (int, error)
}

// DailyCreditReset grants the free daily credits. Grants are guarded per UTC
// day, so running it more often than daily only picks up accounts missed
// by an earlier run.
type DailyCreditReset struct {
	credits Granter
	log     *zerolog.Logger
}

func NewDailyCreditReset(credits Granter, logger *zerolog.Logger) *DailyCreditReset {
	l := logger.With().Str("component", "DailyCreditReset").Logger()
	return &DailyCreditReset{credits: credits, log: &l}
}

func (w *DailyCreditReset) Name() string { return "daily_credit_reset" }

func (w *DailyCreditReset) Tick(ctx context.Context) error {
	n, err := w.credits.ResetAllDaily(ctx)
	if n > 0 {
		w.log.Info().Int("accounts", n).Msg("daily credits granted")
	}
	return err
}
