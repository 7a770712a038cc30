//go:build !integration

package postgres

import (
	"context"
	"time"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
	red "trailroom-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerInvoiceRepo mocks the database repository that the invoice decorator wraps.
type mockInnerInvoiceRepo struct {
	SaveFunc            func(ctx context.Context, tx repository.Tx, inv *model.Invoice) error
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error)
	FindByPaymentIDFunc func(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error)
	ListByAccountFunc   func(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Invoice, error)
	LastNumberFunc      func(ctx context.Context, tx repository.Tx) (string, error)
}

func (m *mockInnerInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	return m.SaveFunc(ctx, tx, inv)
}
func (m *mockInnerInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	return m.FindByPaymentIDFunc(ctx, tx, paymentID)
}
func (m *mockInnerInvoiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Invoice, error) {
	return m.ListByAccountFunc(ctx, tx, accountID, limit, offset)
}
func (m *mockInnerInvoiceRepo) LastNumber(ctx context.Context, tx repository.Tx) (string, error) {
	return m.LastNumberFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
