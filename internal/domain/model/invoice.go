package model

import "time"

type InvoiceLineItem struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Amount      float64 `json:"amount"`
}

type Company struct {
	Name    string `json:"company_name"`
	Address string `json:"company_address,omitempty"`
	Email   string `json:"company_email,omitempty"`
}

// DefaultCompany is printed on every invoice.
var DefaultCompany = Company{
	Name:    "TrailRoom",
	Address: "Virtual Try-On Platform",
	Email:   "support@trailroom.com",
}

type Invoice struct {
	ID             string            `json:"id"` // ULID
	InvoiceNumber  string            `json:"invoice_number"`
	AccountID      string            `json:"account_id"`
	PaymentID      string            `json:"payment_id"`
	CustomerName   string            `json:"customer_name,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	CustomerPhone  string            `json:"customer_phone,omitempty"`
	LineItems      []InvoiceLineItem `json:"line_items"`
	Subtotal       float64           `json:"subtotal"`
	DiscountAmount float64           `json:"discount_amount"`
	TaxAmount      float64           `json:"tax_amount"`
	TotalAmount    float64           `json:"total_amount"`
	Currency       string            `json:"currency"`
	Company        Company           `json:"company"`
	InvoiceDate    time.Time         `json:"invoice_date"`
	PaidDate       *time.Time        `json:"paid_date,omitempty"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}
