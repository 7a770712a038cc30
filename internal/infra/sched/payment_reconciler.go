package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler is the part of the payment use case the reconciler drives.
type Reconciler interface {
	Reconcile(ctx context.Context, olderThan time.Time, limit int) (settled, failed int, err error)
}

// PaymentReconciler periodically asks the gateway about pending payments
// whose checkout callback and webhook never arrived.
type PaymentReconciler struct {
	uc         Reconciler
	staleAfter time.Duration
	batch      int
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc Reconciler, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, staleAfter: staleAfter, batch: batch, now: time.Now, log: &l}
}

func (w *PaymentReconciler) Name() string { return "payment_reconciler" }

func (w *PaymentReconciler) Tick(ctx context.Context) error {
	cutoff := w.now().Add(-w.staleAfter)
	settled, failed, err := w.uc.Reconcile(ctx, cutoff, w.batch)
	if settled > 0 || failed > 0 {
		w.log.Info().Int("settled", settled).Int("failed", failed).Msg("reconciled stale payments")
	}
	return err
}
