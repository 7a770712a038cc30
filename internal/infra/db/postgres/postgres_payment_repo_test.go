//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
)

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	newPayment := func(t *testing.T) *model.Payment {
		t.Helper()
		p := &model.Payment{
			ID:        uuid.NewString(),
			AccountID: "acc-1",
			Provider:  "razorpay",
			Credits:   500,
			Quote:     model.PriceQuote{Credits: 500, BasePrice: 500, FinalPrice: 500, FinalPriceMinorUnits: 50000, Currency: "INR"},
			Status:    model.PaymentStatusCreated,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Failed to save payment: %v", err)
		}
		return p
	}

	t.Run("should save, attach an order and find it", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		p := newPayment(t)

		if err := repo.AttachOrder(ctx, nil, p.ID, "order_1"); err != nil {
			t.Fatal(err)
		}
		got, err := repo.FindByGatewayOrderID(ctx, nil, "order_1")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != p.ID || got.Status != model.PaymentStatusPending || got.Quote.FinalPriceMinorUnits != 50000 {
			t.Fatalf("unexpected payment %+v", got)
		}
	})

	t.Run("only one concurrent settlement wins", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		p := newPayment(t)
		_ = repo.AttachOrder(ctx, nil, p.ID, "order_2")

		var wins int64
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.MarkPaidIfPending(ctx, nil, p.ID, "pay_x", nil, nil, time.Now())
				if err != nil {
					t.Errorf("mark paid: %v", err)
				}
				atomic.AddInt64(&wins, n)
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("failed payments cannot become paid", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		p := newPayment(t)
		if n, _ := repo.MarkFailed(ctx, nil, p.ID, "declined"); n != 1 {
			t.Fatal("expected failure to apply")
		}
		if n, _ := repo.MarkPaidIfPending(ctx, nil, p.ID, "pay_x", nil, nil, time.Now()); n != 0 {
			t.Fatal("failed payment was settled")
		}
	})

	t.Run("refund applies once", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		p := newPayment(t)
		_, _ = repo.MarkPaidIfPending(ctx, nil, p.ID, "pay_x", nil, nil, time.Now())

		first, _ := repo.MarkRefunded(ctx, nil, p.ID, "chargeback", time.Now())
		second, _ := repo.MarkRefunded(ctx, nil, p.ID, "chargeback", time.Now())
		if err := repo.SetRefundShortfall(ctx, nil, p.ID, 42); err != nil {
			t.Fatal(err)
		}

		if first != 1 || second != 0 {
			t.Fatalf("expected 1/0, got %d/%d", first, second)
		}
		got, _ := repo.FindByID(ctx, nil, p.ID)
		if !got.Refunded || got.RefundShortfall != 42 || got.Status != model.PaymentStatusRefunded {
			t.Fatalf("unexpected payment %+v", got)
		}
	})

	t.Run("duplicate order id", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		a, b := newPayment(t), newPayment(t)
		_ = repo.AttachOrder(ctx, nil, a.ID, "order_dup")
		if err := repo.AttachOrder(ctx, nil, b.ID, "order_dup"); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("stale pending", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		p := newPayment(t)
		_ = repo.AttachOrder(ctx, nil, p.ID, "order_3")

		list, err := repo.ListStalePending(ctx, nil, time.Now().Add(time.Minute), 10)

		if err != nil || len(list) != 1 {
			t.Fatalf("expected one stale payment, got %d (%v)", len(list), err)
		}
	})
}
