package usecase

import (
	"trailroom-billing/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	MinCredits       = 300
	MaxCredits       = 50000
	FixedPlanCredits = 2100

	DiscountLowThreshold  = 2100
	DiscountLow           = 10.0 // percent at DiscountLowThreshold
	DiscountHighThreshold = 50000
	DiscountHigh          = 25.0 // percent at and above DiscountHighThreshold

	BaseRate = 1.0 // rupees per credit
	Currency = "INR"
)

// TierQuantities are the sample packs shown on the pricing page.
var TierQuantities = []int{300, 1000, 2100, 5000, 10000, 25000, 50000}

// PricingUseCase turns a credit quantity into a price. Pure; no I/O.
type PricingUseCase interface {
	// Quote clamps quantity into [MinCredits, MaxCredits] and prices it.
	Quote(quantity int) model.PriceQuote
	FixedPlan() model.PriceQuote
	Tiers() []model.PriceQuote
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	rate decimal.Decimal
}

func NewPricingUseCase() PricingUseCase {
	return &pricingUC{rate: decimal.NewFromFloat(BaseRate)}
}

func (p *pricingUC) Quote(quantity int) model.PriceQuote {
	quantity = clampCredits(quantity)

	qty := decimal.NewFromInt(int64(quantity))
	pct := discountPercent(quantity)
	hundred := decimal.NewFromInt(100)

	base := qty.Mul(p.rate)
	discount := base.Mul(pct).Div(hundred)
	final := base.Sub(discount)

	finalRounded := final.Round(2)
	discountRounded := discount.Round(2)

	return model.PriceQuote{
		Credits:              quantity,
		UnitRate:             p.rate.InexactFloat64(),
		BasePrice:            base.Round(2).InexactFloat64(),
		DiscountPercent:      pct.InexactFloat64(),
		DiscountAmount:       discountRounded.InexactFloat64(),
		FinalPrice:           finalRounded.InexactFloat64(),
		FinalPriceMinorUnits: finalRounded.Mul(hundred).IntPart(),
		Currency:             Currency,
		Savings:              discountRounded.InexactFloat64(),
	}
}

func (p *pricingUC) FixedPlan() model.PriceQuote {
	return p.Quote(FixedPlanCredits)
}

func (p *pricingUC) Tiers() []model.PriceQuote {
	out := make([]model.PriceQuote, 0, len(TierQuantities))
	for _, q := range TierQuantities {
		out = append(out, p.Quote(q))
	}
	return out
}

func clampCredits(q int) int {
	if q < MinCredits {
		return MinCredits
	}
	if q > MaxCredits {
		return MaxCredits
	}
	return q
}

// discountPercent interpolates linearly between the two thresholds and floors
// to one decimal place.
func discountPercent(quantity int) decimal.Decimal {
	switch {
	case quantity < DiscountLowThreshold:
		return decimal.Zero
	case quantity == DiscountLowThreshold:
		return decimal.NewFromFloat(DiscountLow)
	case quantity >= DiscountHighThreshold:
		return decimal.NewFromFloat(DiscountHigh)
	}
	span := decimal.NewFromInt(DiscountHighThreshold - DiscountLowThreshold)
	pctSpan := decimal.NewFromFloat(DiscountHigh - DiscountLow)
	progress := decimal.NewFromInt(int64(quantity - DiscountLowThreshold)).Div(span)
	pct := decimal.NewFromFloat(DiscountLow).Add(progress.Mul(pctSpan))
	ten := decimal.NewFromInt(10)
	return pct.Mul(ten).Floor().Div(ten)
}
