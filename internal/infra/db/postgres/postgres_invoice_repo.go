package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

const invoiceColumns = `id, invoice_number, account_id, payment_id, customer_name, customer_email, customer_phone, line_items,
  subtotal, discount_amount, tax_amount, total_amount, currency, company, invoice_date, paid_date, status, created_at`

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var items, company []byte
	var phone *string
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.AccountID, &inv.PaymentID, &inv.CustomerName, &inv.CustomerEmail, &phone, &items,
		&inv.Subtotal, &inv.DiscountAmount, &inv.TaxAmount, &inv.TotalAmount, &inv.Currency, &company, &inv.InvoiceDate, &inv.PaidDate, &inv.Status, &inv.CreatedAt); err != nil {
		return nil, readErr(err)
	}
	inv.CustomerPhone = derefString(phone)
	if err := json.Unmarshal(items, &inv.LineItems); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(company, &inv.Company); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return inv, nil
}

func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	company, err := json.Marshal(inv.Company)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `INSERT INTO invoices (` + invoiceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`
	_, err = execSQL(ctx, r.pool, tx, q, inv.ID, inv.InvoiceNumber, inv.AccountID, inv.PaymentID, inv.CustomerName, inv.CustomerEmail, nullString(inv.CustomerPhone), items,
		inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.TotalAmount, inv.Currency, company, inv.InvoiceDate, inv.PaidDate, inv.Status, inv.CreatedAt)
	return writeErr(err)
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_id=$1;`, paymentID)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

func (r *invoiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit, offset)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}

// LastNumber orders by id; invoice ids are ULIDs and sort by creation time.
func (r *invoiceRepo) LastNumber(ctx context.Context, tx repository.Tx) (string, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT invoice_number FROM invoices ORDER BY id DESC LIMIT 1;`)
	if err != nil {
		return "", err
	}
	var n string
	if err := row.Scan(&n); err != nil {
		return "", readErr(err)
	}
	return n, nil
}
