// File: internal/usecase/credit_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500

	grantPageSize = 500
)

// CreditChange describes one balance mutation. Amount is always positive;
// the direction comes from the operation (Add or Deduct).
type CreditChange struct {
	AccountID   string
	Amount      int64
	Kind        model.EntryKind
	Description string
	ReferenceID *string
}

// CreditUseCase owns every balance mutation. Each mutation writes exactly one
// ledger entry whose BalanceAfter equals the new balance, in the same
// transaction as the balance update.
type CreditUseCase interface {
	Add(ctx context.Context, c CreditChange) (int64, error)
	Deduct(ctx context.Context, c CreditChange) (int64, error)
	// AddInTx and DeductInTx join the caller's transaction. Low-balance
	// notifications are the caller's job on this path.
	AddInTx(ctx context.Context, tx repository.Tx, c CreditChange) (int64, error)
	DeductInTx(ctx context.Context, tx repository.Tx, c CreditChange) (int64, error)

	Balance(ctx context.Context, accountID string) (int64, error)
	ResetDailyGrant(ctx context.Context, accountID string) (bool, error)
	TransactionHistory(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error)

	// ResetAllDaily grants the daily credits to every eligible account.
	ResetAllDaily(ctx context.Context) (int, error)
}

// CreditOptions tunes the credit use case. Zero values fall back to defaults.
type CreditOptions struct {
	FreeDaily     int64
	LowThreshold  int64
	MaxCASRetries int
	SweepWorkers  int
	// BackoffBase is the upper bound of the first retry's jittered sleep.
	BackoffBase time.Duration
	Now         func() time.Time
}

var _ CreditUseCase = (*creditUC)(nil)

type creditUC struct {
	accounts repository.AccountRepository
	ledger   repository.LedgerRepository
	tm       repository.TransactionManager
	events   EventPublisher
	log      *zerolog.Logger
	opt      CreditOptions
}

var errCASLost = errors.New("balance changed underneath")

func NewCreditUseCase(
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	tm repository.TransactionManager,
	events EventPublisher,
	opt CreditOptions,
	logger *zerolog.Logger,
) CreditUseCase {
	if opt.FreeDaily <= 0 {
		opt.FreeDaily = 3
	}
	if opt.LowThreshold <= 0 {
		opt.LowThreshold = 5
	}
	if opt.MaxCASRetries <= 0 {
		opt.MaxCASRetries = 8
	}
	if opt.SweepWorkers <= 0 {
		opt.SweepWorkers = 8
	}
	if opt.BackoffBase <= 0 {
		opt.BackoffBase = 5 * time.Millisecond
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if events == nil {
		events = noopPublisher{}
	}
	l := logger.With().Str("component", "CreditUseCase").Logger()
	return &creditUC{
		accounts: accounts,
		ledger:   ledger,
		tm:       tm,
		events:   events,
		log:      &l,
		opt:      opt,
	}
}

func (u *creditUC) Add(ctx context.Context, c CreditChange) (int64, error) {
	if err := validateChange(c, true); err != nil {
		return 0, err
	}
	var bal int64
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		bal, _, err = u.apply(ctx, tx, c, +1)
		return err
	})
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (u *creditUC) Deduct(ctx context.Context, c CreditChange) (int64, error) {
	if err := validateChange(c, false); err != nil {
		return 0, err
	}
	var bal, prev int64
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		bal, prev, err = u.apply(ctx, tx, c, -1)
		return err
	})
	if err != nil {
		return 0, err
	}
	u.notifyLow(ctx, c.AccountID, prev, bal)
	return bal, nil
}

func (u *creditUC) AddInTx(ctx context.Context, tx repository.Tx, c CreditChange) (int64, error) {
	if err := validateChange(c, true); err != nil {
		return 0, err
	}
	bal, _, err := u.apply(ctx, tx, c, +1)
	return bal, err
}

func (u *creditUC) DeductInTx(ctx context.Context, tx repository.Tx, c CreditChange) (int64, error) {
	if err := validateChange(c, false); err != nil {
		return 0, err
	}
	bal, _, err := u.apply(ctx, tx, c, -1)
	return bal, err
}

// apply runs the optimistic loop: read, compute, conditional write, append the
// ledger entry. A lost race is retried with jittered backoff; the failed
// conditional update wrote nothing so the surrounding tx stays usable.
func (u *creditUC) apply(ctx context.Context, tx repository.Tx, c CreditChange, sign int64) (next, prev int64, err error) {
	for attempt := 1; attempt <= u.opt.MaxCASRetries; attempt++ {
		next, prev, err = u.tryApply(ctx, tx, c, sign)
		if !errors.Is(err, errCASLost) {
			return next, prev, err
		}
		metrics.IncCASConflict()
		u.log.Debug().Str("account_id", c.AccountID).Int("attempt", attempt).Msg("credit CAS conflict, retrying")
		if err := u.backoff(ctx, attempt); err != nil {
			return 0, 0, err
		}
	}
	u.log.Warn().Str("account_id", c.AccountID).Int("retries", u.opt.MaxCASRetries).Msg("credit CAS retries exhausted")
	return 0, 0, domain.ErrPersistenceConflict
}

func (u *creditUC) tryApply(ctx context.Context, tx repository.Tx, c CreditChange, sign int64) (int64, int64, error) {
	acc, err := u.accounts.FindByID(ctx, tx, c.AccountID)
	if err != nil {
		return 0, 0, err
	}
	prev := acc.Credits
	if sign < 0 && prev < c.Amount {
		return 0, 0, domain.ErrInsufficientBalance
	}
	next := prev + sign*c.Amount

	ok, err := u.accounts.CompareAndSetCredits(ctx, tx, c.AccountID, prev, next)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, errCASLost
	}

	entry := &model.LedgerEntry{
		ID:           ulid.Make().String(),
		AccountID:    c.AccountID,
		Kind:         c.Kind,
		Delta:        sign * c.Amount,
		BalanceAfter: next,
		Description:  c.Description,
		ReferenceID:  c.ReferenceID,
		CreatedAt:    u.opt.Now().UTC(),
	}
	if err := u.ledger.Append(ctx, tx, entry); err != nil {
		return 0, 0, fmt.Errorf("append ledger entry: %w", err)
	}
	metrics.IncLedgerEntry(string(c.Kind), entry.Delta)
	u.log.Info().
		Str("account_id", c.AccountID).
		Str("kind", string(c.Kind)).
		Int64("delta", entry.Delta).
		Int64("balance_after", next).
		Msg("credits mutated")
	return next, prev, nil
}

func (u *creditUC) backoff(ctx context.Context, attempt int) error {
	ceil := int64(u.opt.BackoffBase) * int64(attempt)
	d := time.Duration(rand.Int63n(ceil) + 1)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (u *creditUC) notifyLow(ctx context.Context, accountID string, prev, next int64) {
	if prev < u.opt.LowThreshold || next >= u.opt.LowThreshold {
		return
	}
	u.events.Trigger(ctx, accountID, model.EventCreditsLow, map[string]any{
		"account_id": accountID,
		"credits":    next,
		"threshold":  u.opt.LowThreshold,
	})
}

func (u *creditUC) Balance(ctx context.Context, accountID string) (int64, error) {
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Credits, nil
}

func (u *creditUC) ResetDailyGrant(ctx context.Context, accountID string) (bool, error) {
	var granted bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		granted, err = u.grant(ctx, tx, accountID)
		return err
	})
	if err != nil {
		metrics.IncDailyGrant("failed")
		return false, err
	}
	if granted {
		metrics.IncDailyGrant("applied")
	} else {
		metrics.IncDailyGrant("skipped")
	}
	return granted, nil
}

func (u *creditUC) grant(ctx context.Context, tx repository.Tx, accountID string) (bool, error) {
	for attempt := 1; attempt <= u.opt.MaxCASRetries; attempt++ {
		now := u.opt.Now().UTC()
		acc, err := u.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return false, err
		}
		if acc.GrantedOn(now) {
			return false, nil
		}
		next := acc.Credits + u.opt.FreeDaily
		ok, err := u.accounts.ApplyDailyGrant(ctx, tx, accountID, acc.Credits, next, model.StartOfDayUTC(now), now)
		if err != nil {
			return false, err
		}
		if !ok {
			// either the balance moved or a concurrent grant won; the next
			// read tells which
			metrics.IncCASConflict()
			if err := u.backoff(ctx, attempt); err != nil {
				return false, err
			}
			continue
		}
		entry := &model.LedgerEntry{
			ID:           ulid.Make().String(),
			AccountID:    accountID,
			Kind:         model.EntryKindFree,
			Delta:        u.opt.FreeDaily,
			BalanceAfter: next,
			Description:  "Daily free credits",
			CreatedAt:    now,
		}
		if err := u.ledger.Append(ctx, tx, entry); err != nil {
			return false, fmt.Errorf("append ledger entry: %w", err)
		}
		metrics.IncLedgerEntry(string(model.EntryKindFree), entry.Delta)
		return true, nil
	}
	return false, domain.ErrPersistenceConflict
}

func (u *creditUC) TransactionHistory(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return u.ledger.ListByAccount(ctx, repository.NoTX, accountID, limit, 0)
}

func (u *creditUC) ResetAllDaily(ctx context.Context) (int, error) {
	dayStart := model.StartOfDayUTC(u.opt.Now())
	var (
		cursor  string
		granted int
		skipped int
	)
	for {
		page, err := u.accounts.ListGrantable(ctx, repository.NoTX, dayStart, cursor, grantPageSize)
		if err != nil {
			return granted, fmt.Errorf("list grantable accounts: %w", err)
		}
		if len(page) == 0 {
			break
		}

		results := make([]bool, len(page))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(u.opt.SweepWorkers)
		for i, acc := range page {
			id := acc.ID
			g.Go(func() error {
				ok, err := u.ResetDailyGrant(gctx, id)
				if err != nil {
					// one bad account must not stop the sweep
					u.log.Error().Err(err).Str("account_id", id).Msg("daily grant failed")
					return nil
				}
				results[i] = ok
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return granted, err
		}
		for _, ok := range results {
			if ok {
				granted++
			} else {
				skipped++
			}
		}
		cursor = page[len(page)-1].ID
		if len(page) < grantPageSize {
			break
		}
	}
	u.log.Info().Int("granted", granted).Int("skipped", skipped).Msg("daily credit reset completed")
	return granted, nil
}

func validateChange(c CreditChange, credit bool) error {
	if c.AccountID == "" || c.Amount <= 0 {
		return domain.ErrInvalidArgument
	}
	if credit && !c.Kind.IsCredit() {
		return fmt.Errorf("%w: kind %q cannot add credits", domain.ErrInvalidArgument, c.Kind)
	}
	if !credit && !c.Kind.IsDebit() {
		return fmt.Errorf("%w: kind %q cannot deduct credits", domain.ErrInvalidArgument, c.Kind)
	}
	return nil
}
