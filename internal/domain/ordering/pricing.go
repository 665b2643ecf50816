package ordering

import (
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PricingBreakdown is the itemized pricing of an order.
// Invariant: Total = Subtotal - Discount + Tax + Shipping + Fees, all parts
// non-negative.
type PricingBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Fees     decimal.Decimal `json:"fees"`
	Total    decimal.Decimal `json:"total"`
}

// PricingInput carries the order-level charges applied on top of line items
type PricingInput struct {
	Discount decimal.Decimal
	TaxRate  decimal.Decimal // fraction, e.g. 0.08 for 8%
	Shipping decimal.Decimal
	Fees     decimal.Decimal
}

// ComputePricing derives the pricing breakdown deterministically from the
// line items and order-level charges. Tax applies to the discounted subtotal.
// All monetary results are rounded to 2 decimal places.
func ComputePricing(items []OrderItem, in PricingInput) (PricingBreakdown, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	subtotal = subtotal.Round(2)

	if in.Discount.IsNegative() {
		return PricingBreakdown{}, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot be negative")
	}
	if in.Discount.GreaterThan(subtotal) {
		return PricingBreakdown{}, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot exceed subtotal")
	}
	if in.TaxRate.IsNegative() {
		return PricingBreakdown{}, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if in.Shipping.IsNegative() || in.Fees.IsNegative() {
		return PricingBreakdown{}, shared.NewDomainError("INVALID_CHARGE", "Shipping and fees cannot be negative")
	}

	taxable := subtotal.Sub(in.Discount)
	tax := taxable.Mul(in.TaxRate).Round(2)
	total := taxable.Add(tax).Add(in.Shipping).Add(in.Fees).Round(2)

	return PricingBreakdown{
		Subtotal: subtotal,
		Discount: in.Discount.Round(2),
		Tax:      tax,
		Shipping: in.Shipping.Round(2),
		Fees:     in.Fees.Round(2),
		Total:    total,
	}, nil
}

// Validate checks the breakdown invariants
func (p PricingBreakdown) Validate() error {
	for _, v := range []decimal.Decimal{p.Subtotal, p.Discount, p.Tax, p.Shipping, p.Fees, p.Total} {
		if v.IsNegative() {
			return shared.NewDomainError("INVALID_PRICING", "Pricing components cannot be negative")
		}
	}
	expected := p.Subtotal.Sub(p.Discount).Add(p.Tax).Add(p.Shipping).Add(p.Fees)
	if !expected.Equal(p.Total) {
		return shared.NewDomainError("INVALID_PRICING", "Total does not match pricing components")
	}
	return nil
}
