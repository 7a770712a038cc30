//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

func TestAccountRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewAccountRepo(testPool)

	t.Run("compare and set only applies on the expected balance", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 10)

		ok, err := repo.CompareAndSetCredits(ctx, nil, "acc-1", 10, 7)
		if err != nil || !ok {
			t.Fatalf("expected first CAS to apply, got %v, %v", ok, err)
		}
		ok, err = repo.CompareAndSetCredits(ctx, nil, "acc-1", 10, 4)
		if err != nil || ok {
			t.Fatalf("expected stale CAS to be rejected, got %v, %v", ok, err)
		}
		a, _ := repo.FindByID(ctx, nil, "acc-1")
		if a.Credits != 7 {
			t.Fatalf("expected 7, got %d", a.Credits)
		}
	})

	t.Run("daily grant is guarded by the day start", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		now := time.Now().UTC()
		day := model.StartOfDayUTC(now)

		ok, err := repo.ApplyDailyGrant(ctx, nil, "acc-1", 0, 3, day, now)
		if err != nil || !ok {
			t.Fatalf("expected grant, got %v, %v", ok, err)
		}
		ok, _ = repo.ApplyDailyGrant(ctx, nil, "acc-1", 3, 6, day, now)
		if ok {
			t.Fatal("second grant on the same day must not apply")
		}
		list, err := repo.ListGrantable(ctx, nil, day, "", 10)
		if err != nil || len(list) != 0 {
			t.Fatalf("granted account must not be listed, got %d (%v)", len(list), err)
		}
		list, _ = repo.ListGrantable(ctx, nil, day.Add(24*time.Hour), "", 10)
		if len(list) != 1 {
			t.Fatalf("expected the account to be grantable tomorrow, got %d", len(list))
		}
	})

	t.Run("missing account", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLedgerRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	accounts := NewAccountRepo(testPool)
	ledger := NewLedgerRepo(testPool)
	tm := NewTxManager(testPool)

	t.Run("rollback discards both the balance and the entry", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 5)

		boom := errors.New("boom")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := accounts.CompareAndSetCredits(ctx, tx, "acc-1", 5, 8); err != nil {
				return err
			}
			if err := ledger.Append(ctx, tx, &model.LedgerEntry{ID: ulid.Make().String(), AccountID: "acc-1", Kind: model.EntryKindFree, Delta: 3, BalanceAfter: 8, CreatedAt: time.Now()}); err != nil {
				return err
			}
			return boom
		})

		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		a, _ := accounts.FindByID(ctx, nil, "acc-1")
		n, _ := ledger.CountByAccount(ctx, nil, "acc-1")
		if a.Credits != 5 || n != 0 {
			t.Fatalf("expected untouched state, got balance %d and %d entries", a.Credits, n)
		}
	})

	t.Run("lists newest first", func(t *testing.T) {
		cleanup(t)
		seedAccount(t, "acc-1", 0)
		base := time.Now().UTC()
		for i := 1; i <= 3; i++ {
			e := &model.LedgerEntry{ID: ulid.Make().String(), AccountID: "acc-1", Kind: model.EntryKindPurchase, Delta: int64(i), BalanceAfter: int64(i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
			if err := ledger.Append(ctx, nil, e); err != nil {
				t.Fatal(err)
			}
		}

		list, err := ledger.ListByAccount(ctx, nil, "acc-1", 2, 0)

		if err != nil || len(list) != 2 || list[0].Delta != 3 {
			t.Fatalf("unexpected list %+v (%v)", list, err)
		}
	})
}
