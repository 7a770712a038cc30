package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/metrics"
	red "trailroom-billing/internal/infra/redis"
)

var _ repository.InvoiceRepository = (*invoiceRepoCacheDecorator)(nil)

// invoiceRepoCacheDecorator caches invoice lookups. Invoices never change
// after insert, so entries are only ever added.
type invoiceRepoCacheDecorator struct {
	inner repository.InvoiceRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewInvoiceRepoCacheDecorator(inner repository.InvoiceRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.InvoiceRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "invoiceCache").Logger()
	return &invoiceRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func invoiceIDKey(id string) string             { return fmt.Sprintf("invoice:id:%s", id) }
func invoicePaymentKey(paymentID string) string { return fmt.Sprintf("invoice:payment:%s", paymentID) }

func (d *invoiceRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	if err := d.inner.Save(ctx, tx, inv); err != nil {
		return err
	}
	// inside a tx the row is not visible to others yet; let the next read fill it
	if tx == nil {
		d.store(ctx, inv)
	}
	return nil
}

func (d *invoiceRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	if inv := d.load(ctx, invoiceIDKey(id)); inv != nil {
		return inv, nil
	}
	inv, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, inv)
	return inv, nil
}

func (d *invoiceRepoCacheDecorator) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	if inv := d.load(ctx, invoicePaymentKey(paymentID)); inv != nil {
		return inv, nil
	}
	inv, err := d.inner.FindByPaymentID(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	d.store(ctx, inv)
	return inv, nil
}

func (d *invoiceRepoCacheDecorator) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Invoice, error) {
	return d.inner.ListByAccount(ctx, tx, accountID, limit, offset)
}

func (d *invoiceRepoCacheDecorator) LastNumber(ctx context.Context, tx repository.Tx) (string, error) {
	return d.inner.LastNumber(ctx, tx)
}

func (d *invoiceRepoCacheDecorator) load(ctx context.Context, key string) *model.Invoice {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn().Err(err).Str("key", key).Msg("invoice cache read failed")
			metrics.IncCacheLookup("invoice", "error")
			return nil
		}
		metrics.IncCacheLookup("invoice", "miss")
		return nil
	}
	var inv model.Invoice
	if err := json.Unmarshal([]byte(val), &inv); err != nil {
		metrics.IncCacheLookup("invoice", "error")
		return nil
	}
	metrics.IncCacheLookup("invoice", "hit")
	return &inv
}

func (d *invoiceRepoCacheDecorator) store(ctx context.Context, inv *model.Invoice) {
	b, err := json.Marshal(inv)
	if err != nil {
		return
	}
	for _, key := range []string{invoiceIDKey(inv.ID), invoicePaymentKey(inv.PaymentID)} {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			metrics.IncCacheWriteFailure("invoice")
			d.log.Debug().Err(err).Str("key", key).Msg("invoice cache write failed")
			return
		}
	}
}
