// File: internal/usecase/invoice_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

const issueAttempts = 3

type InvoiceUseCase interface {
	// Issue creates the invoice of a paid payment, or returns the existing one.
	Issue(ctx context.Context, paymentID string) (*model.Invoice, error)
	Get(ctx context.Context, accountID, invoiceID string) (*model.Invoice, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]*model.Invoice, error)
	RenderText(ctx context.Context, accountID, invoiceID string) (string, error)
}

var _ InvoiceUseCase = (*invoiceUC)(nil)
var _ InvoiceIssuer = (*invoiceUC)(nil)

type invoiceUC struct {
	invoices repository.InvoiceRepository
	payments repository.PaymentRepository
	accounts repository.AccountRepository
	now      func() time.Time
	log      *zerolog.Logger
}

func NewInvoiceUseCase(
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	accounts repository.AccountRepository,
	logger *zerolog.Logger,
) *invoiceUC {
	l := logger.With().Str("component", "InvoiceUseCase").Logger()
	return &invoiceUC{
		invoices: invoices,
		payments: payments,
		accounts: accounts,
		now:      time.Now,
		log:      &l,
	}
}

func (u *invoiceUC) Issue(ctx context.Context, paymentID string) (*model.Invoice, error) {
	if inv, err := u.invoices.FindByPaymentID(ctx, repository.NoTX, paymentID); err == nil {
		return inv, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: invoices are issued for paid payments only, payment is %s", domain.ErrInvalidState, p.Status)
	}
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, p.AccountID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= issueAttempts; attempt++ {
		number, err := u.nextNumber(ctx)
		if err != nil {
			return nil, err
		}
		inv := buildInvoice(number, p, acc, u.now().UTC())
		err = u.invoices.Save(ctx, repository.NoTX, inv)
		if err == nil {
			u.log.Info().Str("invoice_number", inv.InvoiceNumber).Str("payment_id", p.ID).Msg("invoice issued")
			return inv, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		// either this payment was invoiced concurrently or the number was taken
		if existing, ferr := u.invoices.FindByPaymentID(ctx, repository.NoTX, paymentID); ferr == nil {
			return existing, nil
		}
	}
	return nil, domain.ErrPersistenceConflict
}

// nextNumber increments the last issued number within the current year.
// Anything unparseable falls back to a timestamp-based number.
func (u *invoiceUC) nextNumber(ctx context.Context) (string, error) {
	now := u.now().UTC()
	year := now.Year()
	last, err := u.invoices.LastNumber(ctx, repository.NoTX)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("INV-%d-%04d", year, 1), nil
	}
	if err != nil {
		return "", err
	}
	return NextInvoiceNumber(last, now), nil
}

// NextInvoiceNumber derives the number following last, formatted INV-<YYYY>-<NNNN>.
func NextInvoiceNumber(last string, now time.Time) string {
	year := now.UTC().Year()
	parts := strings.Split(last, "-")
	if len(parts) != 3 || parts[0] != "INV" {
		return fmt.Sprintf("INV-%d-%d", year, now.Unix())
	}
	lastYear, yErr := strconv.Atoi(parts[1])
	seq, sErr := strconv.Atoi(parts[2])
	if yErr != nil || sErr != nil || seq < 0 {
		return fmt.Sprintf("INV-%d-%d", year, now.Unix())
	}
	if lastYear != year {
		seq = 0
	}
	return fmt.Sprintf("INV-%d-%04d", year, seq+1)
}

func buildInvoice(number string, p *model.Payment, acc *model.Account, now time.Time) *model.Invoice {
	invoiceDate := now
	if p.PaidAt != nil {
		invoiceDate = p.PaidAt.UTC()
	}
	q := p.Quote
	return &model.Invoice{
		ID:            ulid.Make().String(),
		InvoiceNumber: number,
		AccountID:     p.AccountID,
		PaymentID:     p.ID,
		CustomerName:  acc.DisplayName(),
		CustomerEmail: acc.Email,
		CustomerPhone: acc.Phone,
		LineItems: []model.InvoiceLineItem{{
			Description: fmt.Sprintf("TrailRoom Credits - %d credits", p.Credits),
			Quantity:    p.Credits,
			UnitPrice:   BaseRate,
			Discount:    q.DiscountAmount,
			Amount:      q.FinalPrice,
		}},
		Subtotal:       q.BasePrice,
		DiscountAmount: q.DiscountAmount,
		TaxAmount:      0,
		TotalAmount:    q.FinalPrice,
		Currency:       q.Currency,
		Company:        model.DefaultCompany,
		InvoiceDate:    invoiceDate,
		PaidDate:       p.PaidAt,
		Status:         "paid",
		CreatedAt:      now,
	}
}

func (u *invoiceUC) Get(ctx context.Context, accountID, invoiceID string) (*model.Invoice, error) {
	inv, err := u.invoices.FindByID(ctx, repository.NoTX, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (u *invoiceUC) List(ctx context.Context, accountID string, limit, offset int) ([]*model.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return u.invoices.ListByAccount(ctx, repository.NoTX, accountID, limit, offset)
}

func (u *invoiceUC) RenderText(ctx context.Context, accountID, invoiceID string) (string, error) {
	inv, err := u.Get(ctx, accountID, invoiceID)
	if err != nil {
		return "", err
	}
	return RenderInvoiceText(inv), nil
}

const (
	ruleHeavy = "========================================"
	ruleLight = "----------------------------------------"
)

// RenderInvoiceText formats a plain-text receipt.
func RenderInvoiceText(inv *model.Invoice) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	money := func(v float64) string { return fmt.Sprintf("₹%.2f", v) }

	line(ruleHeavy)
	line("            INVOICE")
	line(ruleHeavy)
	line("Invoice Number: %s", inv.InvoiceNumber)
	line("Invoice Date: %s", inv.InvoiceDate.UTC().Format("2006-01-02 15:04:05"))
	line("")
	line(ruleLight)
	line("COMPANY DETAILS")
	line(ruleLight)
	line("%s", inv.Company.Name)
	line("%s", inv.Company.Address)
	line("Email: %s", inv.Company.Email)
	line("")
	line(ruleLight)
	line("CUSTOMER DETAILS")
	line(ruleLight)
	line("Name: %s", orNA(inv.CustomerName))
	line("Email: %s", orNA(inv.CustomerEmail))
	line("Phone: %s", orNA(inv.CustomerPhone))
	line("")
	line(ruleLight)
	line("LINE ITEMS")
	line(ruleLight)
	for _, it := range inv.LineItems {
		line("%s", it.Description)
		line("Quantity: %d credits", it.Quantity)
		line("Unit Price: %s", money(it.UnitPrice))
		line("Discount: %s", money(it.Discount))
		line("Amount: %s", money(it.Amount))
		line(ruleLight)
	}
	line("")
	line("Subtotal: %s", money(inv.Subtotal))
	line("Discount: -%s", money(inv.DiscountAmount))
	line("Tax: %s", money(inv.TaxAmount))
	line(ruleHeavy)
	line("TOTAL: %s", money(inv.TotalAmount))
	line(ruleHeavy)
	line("")
	line("Status: %s", strings.ToUpper(inv.Status))
	paid := "N/A"
	if inv.PaidDate != nil {
		paid = inv.PaidDate.UTC().Format("2006-01-02 15:04:05")
	}
	line("Paid Date: %s", paid)
	line("")
	line("Thank you for using TrailRoom!")
	line("For support, contact: %s", inv.Company.Email)
	return b.String()
}
