// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/metrics"
	"trailroom-billing/internal/infra/security"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type SettlementStatus string

const (
	SettlementSettled          SettlementStatus = "settled"
	SettlementAlreadyProcessed SettlementStatus = "already_processed"
)

// PaymentIntent is what a checkout client needs to open the gateway widget.
type PaymentIntent struct {
	PaymentID   string           `json:"payment_id"`
	OrderID     string           `json:"order_id"`
	Amount      int64            `json:"amount"` // minor units
	AmountMajor float64          `json:"amount_inr"`
	Currency    string           `json:"currency"`
	Credits     int64            `json:"credits"`
	Pricing     model.PriceQuote `json:"pricing"`
	KeyID       string           `json:"key_id"`
}

type SettlementResult struct {
	PaymentID  string           `json:"payment_id"`
	Status     SettlementStatus `json:"status"`
	Credits    int64            `json:"credits_added"`
	NewBalance int64            `json:"new_balance,omitempty"`
}

// WebhookNeedsReconciliation is the result for a capture of a payment already
// closed as failed. It is acknowledged, logged and counted.
const WebhookNeedsReconciliation = "needs_reconciliation"

type WebhookOutcome struct {
	Event     string `json:"event"`
	Handled   bool   `json:"handled"`
	PaymentID string `json:"payment_id,omitempty"`
	Result    string `json:"result,omitempty"`
}

type RefundResult struct {
	PaymentID       string `json:"payment_id"`
	CreditsDeducted int64  `json:"credits_deducted"`
	Shortfall       int64  `json:"refund_shortfall"`
}

// InvoiceIssuer is the part of the invoice use case settlement needs.
type InvoiceIssuer interface {
	Issue(ctx context.Context, paymentID string) (*model.Invoice, error)
}

type PaymentUseCase interface {
	CreateIntent(ctx context.Context, accountID string, credits int64) (*PaymentIntent, error)
	// Verify settles a payment from a checkout callback signature.
	Verify(ctx context.Context, orderID, gatewayPaymentID, signature string) (*SettlementResult, error)
	// HandleWebhook processes a server-to-server gateway callback.
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error)
	Refund(ctx context.Context, paymentID, adminID, reason string) (*RefundResult, error)

	Get(ctx context.Context, accountID, paymentID string) (*model.Payment, error)
	History(ctx context.Context, accountID string, limit, offset int) ([]*model.Payment, error)
	// Reconcile asks the gateway about pending payments whose callbacks never came.
	Reconcile(ctx context.Context, olderThan time.Time, limit int) (settled, failed int, err error)
}

type PaymentOptions struct {
	KeySecret     string
	WebhookSecret string
	// ExpireAfter is how long a pending order may live before it is failed
	// when the gateway shows no capture.
	ExpireAfter time.Duration
	Now         func() time.Time
}

type paymentUC struct {
	payments repository.PaymentRepository
	accounts repository.AccountRepository
	credits  CreditUseCase
	pricing  PricingUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	events   EventPublisher
	invoices InvoiceIssuer
	opt      PaymentOptions
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	accounts repository.AccountRepository,
	credits CreditUseCase,
	pricing PricingUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	events EventPublisher,
	invoices InvoiceIssuer,
	opt PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.ExpireAfter <= 0 {
		opt.ExpireAfter = 24 * time.Hour
	}
	if events == nil {
		events = noopPublisher{}
	}
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		payments: payments,
		accounts: accounts,
		credits:  credits,
		pricing:  pricing,
		gateway:  gateway,
		tm:       tm,
		events:   events,
		invoices: invoices,
		opt:      opt,
		log:      &l,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, accountID string, credits int64) (*PaymentIntent, error) {
	if credits < MinCredits || credits > MaxCredits {
		return nil, fmt.Errorf("%w: credits must be between %d and %d", domain.ErrInvalidArgument, MinCredits, MaxCredits)
	}
	if _, err := u.accounts.FindByID(ctx, repository.NoTX, accountID); err != nil {
		return nil, err
	}

	quote := u.pricing.Quote(int(credits))
	now := u.opt.Now().UTC()
	p := &model.Payment{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Provider:  u.gateway.Name(),
		Credits:   int64(quote.Credits),
		Quote:     quote,
		Status:    model.PaymentStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusCreated))

	order, err := u.gateway.CreateOrder(ctx, adapter.OrderRequest{
		AmountMinor: quote.FinalPriceMinorUnits,
		Currency:    quote.Currency,
		Receipt:     p.ID,
		Notes: map[string]string{
			"account_id": accountID,
			"credits":    strconv.FormatInt(p.Credits, 10),
			"payment_id": p.ID,
		},
	})
	if err != nil {
		// the intent call has no retry queue; record and surface
		if _, mErr := u.payments.MarkFailed(ctx, repository.NoTX, p.ID, err.Error()); mErr != nil {
			u.log.Error().Err(mErr).Str("payment_id", p.ID).Msg("failed to mark payment failed after gateway error")
		}
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("gateway order creation failed")
		return nil, fmt.Errorf("%w: create order: %v", domain.ErrExternalService, err)
	}

	if err := u.payments.AttachOrder(ctx, repository.NoTX, p.ID, order.ID); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("payment_id", p.ID).Str("order_id", order.ID).Int64("credits", p.Credits).Msg("payment intent created")

	return &PaymentIntent{
		PaymentID:   p.ID,
		OrderID:     order.ID,
		Amount:      quote.FinalPriceMinorUnits,
		AmountMajor: quote.FinalPrice,
		Currency:    quote.Currency,
		Credits:     p.Credits,
		Pricing:     quote,
		KeyID:       u.gateway.KeyID(),
	}, nil
}

func (u *paymentUC) Verify(ctx context.Context, orderID, gatewayPaymentID, signature string) (*SettlementResult, error) {
	start := time.Now()
	defer func() {
		metrics.PaymentVerifyDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()

	if !security.Verify(u.opt.KeySecret, security.OrderSignaturePayload(orderID, gatewayPaymentID), signature) {
		metrics.IncVerify("verify", "bad_signature")
		u.log.Warn().Str("order_id", orderID).Msg("payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	p, err := u.payments.FindByGatewayOrderID(ctx, repository.NoTX, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncVerify("verify", "not_found")
		}
		return nil, err
	}
	sig := signature
	return u.settle(ctx, p, gatewayPaymentID, &sig, nil, "verify")
}

// settle moves a payment to paid and grants its credits in one transaction.
// The conditional status update is the only guard against double crediting.
func (u *paymentUC) settle(ctx context.Context, p *model.Payment, gatewayPaymentID string, signature, method *string, source string) (*SettlementResult, error) {
	if p.IsSettled() {
		metrics.IncVerify(source, "duplicate")
		return &SettlementResult{PaymentID: p.ID, Status: SettlementAlreadyProcessed}, nil
	}
	if !p.CanSettle() {
		metrics.IncVerify(source, "error")
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidState, p.Status)
	}

	now := u.opt.Now().UTC()
	var (
		won        bool
		newBalance int64
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		won = false
		n, err := u.payments.MarkPaidIfPending(ctx, tx, p.ID, gatewayPaymentID, signature, method, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		won = true
		ref := p.ID
		newBalance, err = u.credits.AddInTx(ctx, tx, CreditChange{
			AccountID:   p.AccountID,
			Amount:      p.Credits,
			Kind:        model.EntryKindPurchase,
			Description: fmt.Sprintf("Purchased %d credits", p.Credits),
			ReferenceID: &ref,
		})
		return err
	})
	if err != nil {
		metrics.IncVerify(source, "error")
		return nil, err
	}

	if !won {
		cur, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		if cur.IsSettled() {
			metrics.IncVerify(source, "duplicate")
			return &SettlementResult{PaymentID: p.ID, Status: SettlementAlreadyProcessed}, nil
		}
		metrics.IncVerify(source, "error")
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidState, cur.Status)
	}

	metrics.IncVerify(source, "ok")
	metrics.IncPayment(string(model.PaymentStatusPaid))
	metrics.AddPaymentRevenue(p.Quote.Currency, p.Quote.FinalPriceMinorUnits)
	u.log.Info().
		Str("payment_id", p.ID).
		Str("account_id", p.AccountID).
		Str("source", source).
		Int64("credits", p.Credits).
		Int64("balance_after", newBalance).
		Msg("payment settled")

	u.afterSettlement(ctx, p)

	return &SettlementResult{
		PaymentID:  p.ID,
		Status:     SettlementSettled,
		Credits:    p.Credits,
		NewBalance: newBalance,
	}, nil
}

// afterSettlement runs the best-effort side effects of a new settlement.
func (u *paymentUC) afterSettlement(ctx context.Context, p *model.Payment) {
	u.events.Trigger(ctx, p.AccountID, model.EventPaymentCompleted, map[string]any{
		"payment_id": p.ID,
		"credits":    p.Credits,
		"amount":     p.Quote.FinalPrice,
		"currency":   p.Quote.Currency,
	})
	if u.invoices == nil {
		return
	}
	if _, err := u.invoices.Issue(ctx, p.ID); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("invoice issue after settlement failed")
	}
}

type gatewayCallback struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Method           string `json:"method"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (u *paymentUC) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error) {
	if u.opt.WebhookSecret == "" {
		u.log.Warn().Msg("gateway webhook secret not configured; rejecting callback")
		metrics.IncVerify("webhook", "bad_signature")
		return nil, domain.ErrInvalidSignature
	}
	canon, err := security.CanonicalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if !security.Verify(u.opt.WebhookSecret, canon, signature) {
		metrics.IncVerify("webhook", "bad_signature")
		return nil, domain.ErrInvalidSignature
	}

	var cb gatewayCallback
	if err := json.Unmarshal(canon, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	entity := cb.Payload.Payment.Entity
	out := &WebhookOutcome{Event: cb.Event}

	switch cb.Event {
	case "payment.captured", "payment.failed":
	default:
		u.log.Debug().Str("event", cb.Event).Msg("ignoring gateway event")
		return out, nil
	}

	p, err := u.payments.FindByGatewayOrderID(ctx, repository.NoTX, entity.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// not ours, or created by another deployment; acknowledge so the
			// gateway stops redelivering
			u.log.Warn().Str("order_id", entity.OrderID).Str("event", cb.Event).Msg("gateway callback for unknown order")
			out.Result = "unknown_order"
			return out, nil
		}
		return nil, err
	}
	out.PaymentID = p.ID
	out.Handled = true

	if cb.Event == "payment.captured" {
		var method *string
		if entity.Method != "" {
			m := entity.Method
			method = &m
		}
		res, err := u.settle(ctx, p, entity.ID, nil, method, "webhook")
		if errors.Is(err, domain.ErrInvalidState) {
			// money was taken for a payment we closed as failed; redelivery
			// cannot fix that, so acknowledge and leave it to an operator
			metrics.IncCapturedAfterFailure()
			u.log.Error().
				Str("payment_id", p.ID).
				Str("account_id", p.AccountID).
				Str("order_id", entity.OrderID).
				Str("gateway_payment_id", entity.ID).
				Int64("credits", p.Credits).
				Msg("gateway captured a payment that is no longer pending; needs reconciliation")
			out.Result = WebhookNeedsReconciliation
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out.Result = string(res.Status)
		return out, nil
	}

	reason := entity.ErrorDescription
	if reason == "" {
		reason = "payment failed"
	}
	n, err := u.payments.MarkFailed(ctx, repository.NoTX, p.ID, reason)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		out.Result = "ignored"
		return out, nil
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	u.log.Info().Str("payment_id", p.ID).Str("reason", reason).Msg("payment marked failed by gateway callback")
	out.Result = string(model.PaymentStatusFailed)
	return out, nil
}

func (u *paymentUC) Refund(ctx context.Context, paymentID, adminID, reason string) (*RefundResult, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if err := refundable(p); err != nil {
		return nil, err
	}

	n, err := u.payments.MarkRefunded(ctx, repository.NoTX, p.ID, reason, u.opt.Now().UTC())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		cur, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		if err := refundable(cur); err != nil {
			return nil, err
		}
		return nil, domain.ErrPersistenceConflict
	}
	metrics.IncPayment(string(model.PaymentStatusRefunded))

	ref := p.ID
	change := CreditChange{
		AccountID:   p.AccountID,
		Amount:      p.Credits,
		Kind:        model.EntryKindRefund,
		Description: fmt.Sprintf("Refund for payment %s: %s", p.ID, reason),
		ReferenceID: &ref,
	}
	deducted := int64(0)
	if _, err := u.credits.Deduct(ctx, change); err == nil {
		deducted = p.Credits
	} else {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("could not deduct full refund amount")
		if errors.Is(err, domain.ErrInsufficientBalance) {
			deducted = u.deductAvailable(ctx, change)
		}
	}

	shortfall := p.Credits - deducted
	if shortfall > 0 {
		metrics.AddRefundShortfall(shortfall)
		if err := u.payments.SetRefundShortfall(ctx, repository.NoTX, p.ID, shortfall); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to record refund shortfall")
		}
		u.log.Warn().
			Str("payment_id", p.ID).
			Str("account_id", p.AccountID).
			Int64("shortfall", shortfall).
			Msg("refund shortfall needs manual reconciliation")
	}
	u.log.Info().Str("payment_id", p.ID).Str("admin_id", adminID).Int64("credits_deducted", deducted).Msg("payment refunded")

	return &RefundResult{PaymentID: p.ID, CreditsDeducted: deducted, Shortfall: shortfall}, nil
}

// deductAvailable takes whatever balance is left, up to the change amount.
func (u *paymentUC) deductAvailable(ctx context.Context, change CreditChange) int64 {
	bal, err := u.credits.Balance(ctx, change.AccountID)
	if err != nil || bal <= 0 {
		return 0
	}
	if bal > change.Amount {
		bal = change.Amount
	}
	change.Amount = bal
	if _, err := u.credits.Deduct(ctx, change); err != nil {
		u.log.Warn().Err(err).Str("account_id", change.AccountID).Msg("partial refund deduction failed")
		return 0
	}
	return bal
}

func refundable(p *model.Payment) error {
	if p.Refunded {
		return domain.ErrAlreadyRefunded
	}
	if p.Status != model.PaymentStatusPaid {
		return fmt.Errorf("%w: only paid payments can be refunded, payment is %s", domain.ErrInvalidState, p.Status)
	}
	return nil
}

func (u *paymentUC) Get(ctx context.Context, accountID, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (u *paymentUC) History(ctx context.Context, accountID string, limit, offset int) ([]*model.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.payments.ListByAccount(ctx, repository.NoTX, accountID, limit, offset)
}

func (u *paymentUC) Reconcile(ctx context.Context, olderThan time.Time, limit int) (int, int, error) {
	stale, err := u.payments.ListStalePending(ctx, repository.NoTX, olderThan, limit)
	if err != nil {
		return 0, 0, err
	}
	settled, failed := 0, 0
	now := u.opt.Now().UTC()
	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return settled, failed, err
		}
		if p.GatewayOrderID == nil {
			continue
		}
		pays, err := u.gateway.FetchOrderPayments(ctx, *p.GatewayOrderID)
		if err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile: fetch order payments failed")
			continue
		}

		if captured := capturedPayment(pays); captured != nil {
			var method *string
			if captured.Method != "" {
				m := captured.Method
				method = &m
			}
			res, err := u.settle(ctx, p, captured.ID, nil, method, "reconcile")
			if err != nil {
				u.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile: settle failed")
				continue
			}
			if res.Status == SettlementSettled {
				settled++
			}
			continue
		}

		if now.Sub(p.CreatedAt) < u.opt.ExpireAfter {
			continue
		}
		reason := "order expired without capture"
		if n := len(pays); n > 0 && pays[n-1].ErrorDescription != "" {
			reason = pays[n-1].ErrorDescription
		}
		n, err := u.payments.MarkFailed(ctx, repository.NoTX, p.ID, reason)
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile: mark failed")
			continue
		}
		if n > 0 {
			failed++
			metrics.IncPayment(string(model.PaymentStatusFailed))
		}
	}
	if settled > 0 || failed > 0 {
		u.log.Info().Int("settled", settled).Int("failed", failed).Msg("payment reconciliation pass")
	}
	return settled, failed, nil
}

func capturedPayment(pays []adapter.GatewayPayment) *adapter.GatewayPayment {
	for i := range pays {
		if pays[i].Status == "captured" {
			return &pays[i]
		}
	}
	return nil
}
