// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/metrics"
	"trailroom-billing/internal/infra/security"
)

const (
	DefaultDeliveryLimit = 50
	maxResponseBody      = 1000
	sweepParallelism     = 8
)

// SecretCipher seals webhook signing secrets at rest.
type SecretCipher interface {
	Seal(plaintext, associated string) (string, error)
	Open(sealed, associated string) (string, error)
}

// TaskSubmitter runs work in the background. Submit fails fast when saturated.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

// WebhookUpdate is a partial update; nil fields stay unchanged.
type WebhookUpdate struct {
	URL      *string
	Name     *string
	Events   []model.EventType
	IsActive *bool
}

type WebhookUseCase interface {
	EventPublisher

	// Register returns the registration with its plaintext secret; List hides it.
	Register(ctx context.Context, accountID, url, name string, events []model.EventType) (*model.Webhook, error)
	Update(ctx context.Context, accountID, id string, upd WebhookUpdate) (*model.Webhook, error)
	Delete(ctx context.Context, accountID, id string) error
	List(ctx context.Context, accountID string) ([]*model.Webhook, error)
	Get(ctx context.Context, accountID, id string) (*model.Webhook, error)
	Deliveries(ctx context.Context, accountID, id string, limit int) ([]*model.WebhookDelivery, error)

	// RetryDue sends every pending delivery whose retry time has passed.
	RetryDue(ctx context.Context, limit int) (int, error)
	TestDelivery(ctx context.Context, accountID, id string) (*model.WebhookDelivery, error)
}

type WebhookOptions struct {
	MaxAttempts int
	Timeout     time.Duration
	// ClaimLease pushes next_retry_at forward on claim so that a crashed
	// attempt is picked up again by a later sweep.
	ClaimLease time.Duration
	Now        func() time.Time
}

var _ WebhookUseCase = (*webhookUC)(nil)

type webhookUC struct {
	hooks      repository.WebhookRepository
	deliveries repository.DeliveryRepository
	sender     adapter.WebhookSender
	cipher     SecretCipher
	pool       TaskSubmitter
	tm         repository.TransactionManager
	validate   *validator.Validate
	opt        WebhookOptions
	log        *zerolog.Logger
}

// NewWebhookUseCase wires the dispatcher. pool may be nil, in which case
// triggered deliveries are attempted inline.
func NewWebhookUseCase(
	hooks repository.WebhookRepository,
	deliveries repository.DeliveryRepository,
	sender adapter.WebhookSender,
	cipher SecretCipher,
	pool TaskSubmitter,
	tm repository.TransactionManager,
	opt WebhookOptions,
	logger *zerolog.Logger,
) WebhookUseCase {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = 5
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	if opt.ClaimLease <= 0 {
		opt.ClaimLease = 2 * time.Minute
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	l := logger.With().Str("component", "WebhookUseCase").Logger()
	return &webhookUC{
		hooks:      hooks,
		deliveries: deliveries,
		sender:     sender,
		cipher:     cipher,
		pool:       pool,
		tm:         tm,
		validate:   validator.New(),
		opt:        opt,
		log:        &l,
	}
}

func (u *webhookUC) checkURL(raw string) error {
	if err := u.validate.Var(raw, "required,http_url"); err != nil {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrInvalidArgument)
	}
	return nil
}

func checkEvents(events []model.EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event is required", domain.ErrInvalidArgument)
	}
	var invalid []string
	for _, e := range events {
		if !model.IsSupportedEvent(e) {
			invalid = append(invalid, string(e))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, strings.Join(invalid, ", "))
	}
	return nil
}

func (u *webhookUC) Register(ctx context.Context, accountID, url, name string, events []model.EventType) (*model.Webhook, error) {
	if err := u.checkURL(url); err != nil {
		return nil, err
	}
	if err := checkEvents(events); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	}

	secret, err := security.NewWebhookSecret()
	if err != nil {
		return nil, err
	}
	now := u.opt.Now().UTC()
	w := &model.Webhook{
		ID:        uuid.NewString(),
		AccountID: accountID,
		URL:       url,
		Name:      name,
		Events:    events,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sealed, err := u.cipher.Seal(secret, w.ID)
	if err != nil {
		return nil, fmt.Errorf("seal webhook secret: %w", err)
	}
	stored := *w
	stored.Secret = sealed
	if err := u.hooks.Save(ctx, repository.NoTX, &stored); err != nil {
		return nil, err
	}
	u.log.Info().Str("webhook_id", w.ID).Str("account_id", accountID).Msg("webhook registered")

	w.Secret = secret
	return w, nil
}

func (u *webhookUC) Update(ctx context.Context, accountID, id string, upd WebhookUpdate) (*model.Webhook, error) {
	w, err := u.hooks.FindByID(ctx, repository.NoTX, accountID, id)
	if err != nil {
		return nil, err
	}
	if upd.URL != nil {
		if err := u.checkURL(*upd.URL); err != nil {
			return nil, err
		}
		w.URL = *upd.URL
	}
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		if n == "" {
			return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
		}
		w.Name = n
	}
	if upd.Events != nil {
		if err := checkEvents(upd.Events); err != nil {
			return nil, err
		}
		w.Events = upd.Events
	}
	if upd.IsActive != nil {
		w.IsActive = *upd.IsActive
	}
	w.UpdatedAt = u.opt.Now().UTC()
	if err := u.hooks.Update(ctx, repository.NoTX, w); err != nil {
		return nil, err
	}
	w.Secret = ""
	return w, nil
}

func (u *webhookUC) Delete(ctx context.Context, accountID, id string) error {
	n, err := u.hooks.Delete(ctx, repository.NoTX, accountID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	u.log.Info().Str("webhook_id", id).Msg("webhook deleted")
	return nil
}

func (u *webhookUC) List(ctx context.Context, accountID string) ([]*model.Webhook, error) {
	ws, err := u.hooks.ListByAccount(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	for _, w := range ws {
		w.Secret = ""
	}
	return ws, nil
}

// Get reveals the plaintext secret to the owner.
func (u *webhookUC) Get(ctx context.Context, accountID, id string) (*model.Webhook, error) {
	w, err := u.hooks.FindByID(ctx, repository.NoTX, accountID, id)
	if err != nil {
		return nil, err
	}
	secret, err := u.cipher.Open(w.Secret, w.ID)
	if err != nil {
		u.log.Error().Err(err).Str("webhook_id", w.ID).Msg("cannot open webhook secret")
		w.Secret = ""
		return w, nil
	}
	w.Secret = secret
	return w, nil
}

func (u *webhookUC) Deliveries(ctx context.Context, accountID, id string, limit int) ([]*model.WebhookDelivery, error) {
	if _, err := u.hooks.FindByID(ctx, repository.NoTX, accountID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = DefaultDeliveryLimit
	}
	return u.deliveries.ListByWebhook(ctx, repository.NoTX, id, limit)
}

// Trigger records one pending delivery per subscribed registration and
// attempts each right away. Nothing here fails the caller.
func (u *webhookUC) Trigger(ctx context.Context, accountID string, event model.EventType, payload map[string]any) {
	hooks, err := u.hooks.ListSubscribed(ctx, repository.NoTX, accountID, event)
	if err != nil {
		u.log.Error().Err(err).Str("account_id", accountID).Str("event", string(event)).Msg("list subscribed webhooks")
		return
	}
	if len(hooks) == 0 {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		u.log.Error().Err(err).Str("event", string(event)).Msg("marshal webhook payload")
		return
	}
	u.log.Info().Int("webhooks", len(hooks)).Str("event", string(event)).Msg("triggering webhooks")

	for _, hook := range hooks {
		d, err := u.newDelivery(ctx, hook.ID, event, body)
		if err != nil {
			u.log.Error().Err(err).Str("webhook_id", hook.ID).Msg("create webhook delivery")
			continue
		}
		u.dispatch(ctx, hook, d)
	}
}

func (u *webhookUC) newDelivery(ctx context.Context, webhookID string, event model.EventType, body []byte) (*model.WebhookDelivery, error) {
	now := u.opt.Now().UTC()
	// the sweep picks the row up if the immediate attempt never lands
	next := now.Add(u.opt.ClaimLease)
	d := &model.WebhookDelivery{
		ID:          uuid.NewString(),
		WebhookID:   webhookID,
		EventType:   event,
		Payload:     body,
		Status:      model.DeliveryStatusPending,
		MaxAttempts: u.opt.MaxAttempts,
		NextRetryAt: &next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.deliveries.Save(ctx, repository.NoTX, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (u *webhookUC) dispatch(ctx context.Context, hook *model.Webhook, d *model.WebhookDelivery) {
	if u.pool == nil {
		u.attempt(ctx, hook, d)
		return
	}
	err := u.pool.Submit(func(ctx context.Context) error {
		u.attempt(ctx, hook, d)
		return nil
	})
	if err == nil {
		return
	}
	u.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("worker pool saturated, leaving delivery to the retry sweep")
	if err := u.deliveries.Reschedule(ctx, repository.NoTX, d.ID, u.opt.Now().UTC()); err != nil {
		u.log.Error().Err(err).Str("delivery_id", d.ID).Msg("reschedule delivery")
	}
}

// attempt performs one signed POST and persists the outcome on d. Once
// started, the POST runs on its own timeout so a caller deadline or shutdown
// cannot be counted against the subscriber. A caller already done skips the
// attempt; the claim lease brings the row back to a later sweep.
func (u *webhookUC) attempt(ctx context.Context, hook *model.Webhook, d *model.WebhookDelivery) bool {
	if ctx.Err() != nil {
		u.log.Debug().Str("delivery_id", d.ID).Msg("caller done, attempt left to the retry sweep")
		return false
	}
	secret, err := u.cipher.Open(hook.Secret, hook.ID)
	if err != nil {
		u.finish(ctx, hook, d, nil, fmt.Errorf("webhook secret unavailable: %w", err))
		return true
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.opt.Timeout)
	defer cancel()
	start := time.Now()
	resp, err := u.sender.Send(sendCtx, adapter.WebhookRequest{
		URL:       hook.URL,
		Body:      d.Payload,
		Signature: security.Sign(secret, d.Payload),
		Event:     string(d.EventType),
		Timestamp: u.opt.Now().UTC(),
	})
	metrics.ObserveWebhookLatency(time.Since(start).Seconds())
	if err != nil {
		u.finish(ctx, hook, d, nil, err)
		return true
	}
	u.finish(ctx, hook, d, &resp, nil)
	return true
}

func (u *webhookUC) finish(ctx context.Context, hook *model.Webhook, d *model.WebhookDelivery, resp *adapter.WebhookResponse, sendErr error) {
	now := u.opt.Now().UTC()
	switch {
	case sendErr != nil:
		d.RecordFailure(now, sendErr.Error())
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		code, body := resp.StatusCode, truncate(resp.Body, maxResponseBody)
		d.ResponseCode, d.ResponseBody = &code, &body
		d.RecordSuccess(now)
	default:
		code, body := resp.StatusCode, truncate(resp.Body, maxResponseBody)
		d.ResponseCode, d.ResponseBody = &code, &body
		d.RecordFailure(now, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	// the attempt must be recorded even if the triggering request is gone
	persistCtx := context.WithoutCancel(ctx)
	n, err := u.deliveries.UpdateAttempt(persistCtx, repository.NoTX, d)
	if err != nil {
		u.log.Error().Err(err).Str("delivery_id", d.ID).Msg("persist webhook attempt")
		return
	}
	if n == 0 {
		u.log.Warn().Str("delivery_id", d.ID).Msg("delivery no longer pending, attempt result dropped")
		return
	}

	outcome := "retry"
	switch d.Status {
	case model.DeliveryStatusSuccess:
		outcome = "success"
		if err := u.hooks.TouchTriggered(persistCtx, repository.NoTX, hook.ID, now); err != nil {
			u.log.Warn().Err(err).Str("webhook_id", hook.ID).Msg("touch last_triggered_at")
		}
		u.log.Info().Str("webhook_id", hook.ID).Str("delivery_id", d.ID).Msg("webhook delivered")
	case model.DeliveryStatusFailed:
		outcome = "failed"
		u.log.Warn().Str("webhook_id", hook.ID).Str("delivery_id", d.ID).Int("attempts", d.Attempts).Msg("webhook delivery gave up")
	default:
		u.log.Warn().Str("webhook_id", hook.ID).Str("delivery_id", d.ID).Int("attempts", d.Attempts).Time("next_retry_at", *d.NextRetryAt).Msg("webhook delivery failed, retry scheduled")
	}
	metrics.IncWebhookDelivery(string(d.EventType), outcome)
}

func (u *webhookUC) RetryDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var claimed []*model.WebhookDelivery
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		claimed, err = u.deliveries.ClaimDue(ctx, tx, u.opt.Now().UTC(), u.opt.ClaimLease, limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("claim due deliveries: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	sent := make(chan struct{}, len(claimed))
	for _, c := range claimed {
		id := c.ID
		g.Go(func() error {
			if u.retryOne(gctx, id) {
				sent <- struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(sent)
	return len(sent), nil
}

// retryOne re-reads the claimed row and sends it if it is still pending.
func (u *webhookUC) retryOne(ctx context.Context, id string) bool {
	if ctx.Err() != nil {
		return false
	}
	d, err := u.deliveries.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		u.log.Error().Err(err).Str("delivery_id", id).Msg("load claimed delivery")
		return false
	}
	if d.Status != model.DeliveryStatusPending {
		return false
	}
	hook, err := u.hooks.FindActiveByID(ctx, repository.NoTX, d.WebhookID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("delivery_id", id).Msg("load webhook for retry")
			return false
		}
		msg := "webhook inactive or deleted"
		d.Status = model.DeliveryStatusFailed
		d.ErrorMessage = &msg
		d.NextRetryAt = nil
		d.UpdatedAt = u.opt.Now().UTC()
		if _, err := u.deliveries.UpdateAttempt(ctx, repository.NoTX, d); err != nil {
			u.log.Error().Err(err).Str("delivery_id", id).Msg("fail orphaned delivery")
		}
		return false
	}
	return u.attempt(ctx, hook, d)
}

func (u *webhookUC) TestDelivery(ctx context.Context, accountID, id string) (*model.WebhookDelivery, error) {
	hook, err := u.hooks.FindByID(ctx, repository.NoTX, accountID, id)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{
		"event":      string(model.EventTest),
		"webhook_id": hook.ID,
		"timestamp":  u.opt.Now().UTC().Format(time.RFC3339),
		"message":    "This is a test webhook delivery",
	})
	if err != nil {
		return nil, err
	}
	d, err := u.newDelivery(ctx, hook.ID, model.EventTest, body)
	if err != nil {
		return nil, err
	}
	u.attempt(ctx, hook, d)
	return d, nil
}

// RetrySweepTimeout is how long one RetryDue run over batch rows may take
// when every attempt uses its full per-attempt timeout.
func RetrySweepTimeout(batch int, perAttempt time.Duration) time.Duration {
	if batch <= 0 {
		batch = 100
	}
	waves := (batch + sweepParallelism - 1) / sweepParallelism
	return time.Duration(waves+1) * perAttempt
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
