package repository

import (
	"context"

	"trailroom-billing/internal/domain/model"
)

type InvoiceRepository interface {
	// Save inserts the invoice. A duplicate payment id or invoice number
	// returns domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Invoice, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Invoice, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit, offset int) ([]*model.Invoice, error)
	// LastNumber returns the most recently issued invoice number, or
	// domain.ErrNotFound when none exists.
	LastNumber(ctx context.Context, tx Tx) (string, error)
}
