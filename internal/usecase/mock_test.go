//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }

// =============================
// Repositories
// =============================

// ---- Accounts ----

type MockAccountRepo struct {
	mu   sync.Mutex
	data map[string]*model.Account

	FindByIDFunc             func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	CompareAndSetCreditsFunc func(ctx context.Context, tx repository.Tx, id string, expected, next int64) (bool, error)

	CASCalls int
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo() *MockAccountRepo {
	return &MockAccountRepo{data: map[string]*model.Account{}}
}

// seed stores an active account with the given balance.
func (r *MockAccountRepo) seed(id string, credits int64) *model.Account {
	a := &model.Account{ID: id, Email: id + "@example.com", Name: "User " + id, Credits: credits, IsActive: true, CreatedAt: time.Now()}
	_ = r.Save(context.Background(), nil, a)
	return a
}

func (r *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.data[a.ID] = &cp
	return nil
}

func (r *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MockAccountRepo) credits(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id].Credits
}

func (r *MockAccountRepo) CompareAndSetCredits(ctx context.Context, tx repository.Tx, id string, expected, next int64) (bool, error) {
	r.mu.Lock()
	r.CASCalls++
	r.mu.Unlock()
	if r.CompareAndSetCreditsFunc != nil {
		return r.CompareAndSetCreditsFunc(ctx, tx, id, expected, next)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok || a.Credits != expected {
		return false, nil
	}
	a.Credits = next
	return true, nil
}

func (r *MockAccountRepo) ApplyDailyGrant(ctx context.Context, tx repository.Tx, id string, expected, next int64, dayStart, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[id]
	if !ok || a.Credits != expected {
		return false, nil
	}
	if a.LastFreeCreditReset != nil && !a.LastFreeCreditReset.Before(dayStart) {
		return false, nil
	}
	a.Credits = next
	a.LastFreeCreditReset = &now
	return true, nil
}

func (r *MockAccountRepo) ListGrantable(ctx context.Context, tx repository.Tx, dayStart time.Time, afterID string, limit int) ([]*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Account
	for _, a := range r.data {
		if !a.IsActive || a.IsSuspended || a.ID <= afterID {
			continue
		}
		if a.LastFreeCreditReset != nil && !a.LastFreeCreditReset.Before(dayStart) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Ledger ----

type MockLedgerRepo struct {
	mu      sync.Mutex
	entries []*model.LedgerEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo { return &MockLedgerRepo{} }

func (r *MockLedgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if r.AppendFunc != nil {
		return r.AppendFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

// forAccount returns entries in append order.
func (r *MockLedgerRepo) forAccount(accountID string) []*model.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

func (r *MockLedgerRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.LedgerEntry, error) {
	all := r.forAccount(accountID)
	out := make([]*model.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockLedgerRepo) CountByAccount(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	return len(r.forAccount(accountID)), nil
}

// ---- Payments ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment

	SaveFunc              func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	MarkPaidIfPendingFunc func(ctx context.Context, tx repository.Tx, id, gatewayPaymentID string, signature, method *string, paidAt time.Time) (int64, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.GatewayOrderID != nil && *p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) AttachOrder(ctx context.Context, tx repository.Tx, id, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.GatewayOrderID = &orderID
	p.Status = model.PaymentStatusPending
	return nil
}

func (r *MockPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || !p.CanSettle() {
		return 0, nil
	}
	p.Status = model.PaymentStatusFailed
	p.ErrorMessage = &reason
	return 1, nil
}

func (r *MockPaymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id, gatewayPaymentID string, signature, method *string, paidAt time.Time) (int64, error) {
	if r.MarkPaidIfPendingFunc != nil {
		return r.MarkPaidIfPendingFunc(ctx, tx, id, gatewayPaymentID, signature, method, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || !p.CanSettle() {
		return 0, nil
	}
	p.Status = model.PaymentStatusPaid
	p.GatewayPaymentID = &gatewayPaymentID
	p.Signature = signature
	p.Method = method
	p.PaidAt = &paidAt
	return 1, nil
}

func (r *MockPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id, reason string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != model.PaymentStatusPaid || p.Refunded {
		return 0, nil
	}
	p.Status = model.PaymentStatusRefunded
	p.Refunded = true
	p.RefundReason = &reason
	p.RefundedAt = &at
	return 1, nil
}

func (r *MockPaymentRepo) SetRefundShortfall(ctx context.Context, tx repository.Tx, id string, shortfall int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		p.RefundShortfall = shortfall
	}
	return nil
}

func (r *MockPaymentRepo) ListStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.GatewayOrderID != nil && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Webhooks ----

type MockWebhookRepo struct {
	mu   sync.Mutex
	data map[string]*model.Webhook
}

var _ repository.WebhookRepository = (*MockWebhookRepo)(nil)

func NewMockWebhookRepo() *MockWebhookRepo {
	return &MockWebhookRepo{data: map[string]*model.Webhook{}}
}

func (r *MockWebhookRepo) Save(ctx context.Context, tx repository.Tx, w *model.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	cp.Events = append([]model.EventType(nil), w.Events...)
	r.data[w.ID] = &cp
	return nil
}

func (r *MockWebhookRepo) Update(ctx context.Context, tx repository.Tx, w *model.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[w.ID]
	if !ok || cur.AccountID != w.AccountID {
		return domain.ErrNotFound
	}
	cur.URL, cur.Name, cur.IsActive, cur.UpdatedAt = w.URL, w.Name, w.IsActive, w.UpdatedAt
	cur.Events = append([]model.EventType(nil), w.Events...)
	return nil
}

func (r *MockWebhookRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.data[id]; ok && w.AccountID == accountID {
		delete(r.data, id)
		return 1, nil
	}
	return 0, nil
}

func (r *MockWebhookRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.data[id]; ok && w.AccountID == accountID {
		cp := *w
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockWebhookRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Webhook
	for _, w := range r.data {
		if w.AccountID == accountID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockWebhookRepo) ListSubscribed(ctx context.Context, tx repository.Tx, accountID string, event model.EventType) ([]*model.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Webhook
	for _, w := range r.data {
		if w.AccountID == accountID && w.IsActive && w.Subscribes(event) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockWebhookRepo) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.data[id]; ok && w.IsActive {
		cp := *w
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockWebhookRepo) TouchTriggered(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.data[id]; ok {
		w.LastTriggeredAt = &at
	}
	return nil
}

// ---- Deliveries ----

type MockDeliveryRepo struct {
	mu   sync.Mutex
	data map[string]*model.WebhookDelivery
}

var _ repository.DeliveryRepository = (*MockDeliveryRepo)(nil)

func NewMockDeliveryRepo() *MockDeliveryRepo {
	return &MockDeliveryRepo{data: map[string]*model.WebhookDelivery{}}
}

func (r *MockDeliveryRepo) Save(ctx context.Context, tx repository.Tx, d *model.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.data[d.ID] = &cp
	return nil
}

func (r *MockDeliveryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.data[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockDeliveryRepo) UpdateAttempt(ctx context.Context, tx repository.Tx, d *model.WebhookDelivery) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[d.ID]
	if !ok || cur.Status != model.DeliveryStatusPending {
		return 0, nil
	}
	cp := *d
	r.data[d.ID] = &cp
	return 1, nil
}

func (r *MockDeliveryRepo) Reschedule(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.data[id]; ok && d.Status == model.DeliveryStatusPending {
		d.NextRetryAt = &at
	}
	return nil
}

func (r *MockDeliveryRepo) ListByWebhook(ctx context.Context, tx repository.Tx, webhookID string, limit int) ([]*model.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookDelivery
	for _, d := range r.data {
		if d.WebhookID == webhookID {
			cp := *d
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockDeliveryRepo) ClaimDue(ctx context.Context, tx repository.Tx, now time.Time, lease time.Duration, limit int) ([]*model.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookDelivery
	for _, d := range r.data {
		if len(out) == limit {
			break
		}
		if d.Status != model.DeliveryStatusPending || d.NextRetryAt == nil || d.NextRetryAt.After(now) {
			continue
		}
		next := now.Add(lease)
		d.NextRetryAt = &next
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockDeliveryRepo) all() []*model.WebhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookDelivery
	for _, d := range r.data {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// ---- Invoices ----

type MockInvoiceRepo struct {
	mu   sync.Mutex
	data map[string]*model.Invoice

	LastNumberFunc func(ctx context.Context, tx repository.Tx) (string, error)
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{data: map[string]*model.Invoice{}}
}

func (r *MockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.data {
		if cur.PaymentID == inv.PaymentID || cur.InvoiceNumber == inv.InvoiceNumber {
			return domain.ErrAlreadyExists
		}
	}
	cp := *inv
	r.data[inv.ID] = &cp
	return nil
}

func (r *MockInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.data[id]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.data {
		if inv.PaymentID == paymentID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockInvoiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Invoice
	for _, inv := range r.data {
		if inv.AccountID == accountID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockInvoiceRepo) LastNumber(ctx context.Context, tx repository.Tx) (string, error) {
	if r.LastNumberFunc != nil {
		return r.LastNumberFunc(ctx, tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *model.Invoice
	for _, inv := range r.data {
		if last == nil || inv.ID > last.ID {
			last = inv
		}
	}
	if last == nil {
		return "", domain.ErrNotFound
	}
	return last.InvoiceNumber, nil
}

// ---- Try-on jobs ----

type MockTryOnJobRepo struct {
	mu   sync.Mutex
	data map[string]*model.TryOnJob
}

var _ repository.TryOnJobRepository = (*MockTryOnJobRepo)(nil)

func NewMockTryOnJobRepo() *MockTryOnJobRepo {
	return &MockTryOnJobRepo{data: map[string]*model.TryOnJob{}}
}

func (r *MockTryOnJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.TryOnJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.data[job.ID] = &cp
	return nil
}

func (r *MockTryOnJobRepo) get(id string) *model.TryOnJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.data[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}

func (r *MockTryOnJobRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.TryOnJob, error) {
	j := r.get(id)
	if j == nil || j.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	j.PersonImage, j.ClothingImage, j.BottomImage = "", "", ""
	return j, nil
}

func (r *MockTryOnJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.TryOnJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.TryOnJob
	for _, j := range r.data {
		if j.AccountID == accountID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockTryOnJobRepo) FindForWork(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	if j := r.get(id); j != nil {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTryOnJobRepo) MarkProcessing(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.data[id]
	if !ok || j.Status != model.JobStatusQueued {
		return 0, nil
	}
	j.Status = model.JobStatusProcessing
	return 1, nil
}

func (r *MockTryOnJobRepo) Finish(ctx context.Context, tx repository.Tx, job *model.TryOnJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	cp.PersonImage, cp.ClothingImage, cp.BottomImage = "", "", ""
	r.data[job.ID] = &cp
	return nil
}

func (r *MockTryOnJobRepo) RequeueProcessing(ctx context.Context, tx repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, j := range r.data {
		if j.Status == model.JobStatusProcessing {
			j.Status = model.JobStatusQueued
			n++
		}
	}
	return n, nil
}

func (r *MockTryOnJobRepo) ListQueued(ctx context.Context, tx repository.Tx, queuedBy time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, j := range r.data {
		if j.Status == model.JobStatusQueued && !j.CreatedAt.After(queuedBy) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Transactions ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	CreateOrderFunc        func(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error)
	FetchOrderPaymentsFunc func(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error)

	Orders []adapter.OrderRequest
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string  { return "mock" }
func (m *MockPaymentGateway) KeyID() string { return "rzp_test_key" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	m.mu.Lock()
	m.Orders = append(m.Orders, req)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &adapter.Order{ID: "order_" + req.Receipt, Amount: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (m *MockPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
	if m.FetchOrderPaymentsFunc != nil {
		return m.FetchOrderPaymentsFunc(ctx, orderID)
	}
	return nil, nil
}

// ---- Mock WebhookSender ----

type MockWebhookSender struct {
	mu   sync.Mutex
	Sent []adapter.WebhookRequest

	SendFunc func(ctx context.Context, req adapter.WebhookRequest) (adapter.WebhookResponse, error)
}

var _ adapter.WebhookSender = (*MockWebhookSender)(nil)

func (m *MockWebhookSender) Send(ctx context.Context, req adapter.WebhookRequest) (adapter.WebhookResponse, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, req)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return adapter.WebhookResponse{StatusCode: 200, Body: "ok"}, nil
}

func (m *MockWebhookSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- Mock TryOnGenerator ----

type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error)
}

var _ adapter.TryOnGenerator = (*MockGenerator)(nil)

func (m *MockGenerator) Generate(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return adapter.Image{Data: pngBytes, MIMEType: "image/png"}, nil
}

// ---- Mock JobQueue ----

type MockQueue struct {
	mu  sync.Mutex
	IDs []string
	Err error
}

func (q *MockQueue) Enqueue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.IDs = append(q.IDs, id)
	return nil
}

// ---- Mock EventPublisher ----

type publishedEvent struct {
	AccountID string
	Event     model.EventType
	Payload   map[string]any
}

type MockPublisher struct {
	mu     sync.Mutex
	Events []publishedEvent
}

func (p *MockPublisher) Trigger(ctx context.Context, accountID string, event model.EventType, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, publishedEvent{AccountID: accountID, Event: event, Payload: payload})
}

func (p *MockPublisher) of(event model.EventType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// ---- Mock TaskSubmitter ----

// MockPool runs tasks inline, or rejects them when Full is set.
type MockPool struct {
	Full      bool
	Submitted int
}

func (p *MockPool) Submit(task func(ctx context.Context) error) error {
	if p.Full {
		return errors.New("worker queue full")
	}
	p.Submitted++
	return task(context.Background())
}

// pngBytes is the 8-byte PNG signature plus padding; enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
