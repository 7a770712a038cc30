package model

// PriceQuote is derived on demand from a credit quantity and never trusted
// from a client. Monetary fields are rounded to 2 decimals; FinalPriceMinorUnits
// is what the payment gateway is charged.
type PriceQuote struct {
	Credits              int     `json:"credits"`
	UnitRate             float64 `json:"unit_rate"`
	BasePrice            float64 `json:"base_price"`
	DiscountPercent      float64 `json:"discount_percent"`
	DiscountAmount       float64 `json:"discount_amount"`
	FinalPrice           float64 `json:"final_price"`
	FinalPriceMinorUnits int64   `json:"final_price_minor_units"`
	Currency             string  `json:"currency"`
	Savings              float64 `json:"savings"`
}
