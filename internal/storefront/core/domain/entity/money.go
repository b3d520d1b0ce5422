package entity

import "github.com/shopspring/decimal"

var (
	DefaultShippingFee           = decimal.RequireFromString("6.99")
	DefaultFreeShippingThreshold = decimal.NewFromInt(80)
)

// Round2 rounds a money value to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineSubtotal is round2(price × quantity).
func LineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return Round2(price.Mul(decimal.NewFromInt(int64(quantity))))
}

// ShippingPolicy charges a flat fee below the free-shipping threshold.
type ShippingPolicy struct {
	FlatFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FlatFee:       DefaultShippingFee,
		FreeThreshold: DefaultFreeShippingThreshold,
	}
}

func (p ShippingPolicy) Cost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return Round2(p.FlatFee)
}

// Totals is the pricing summary of a set of order lines.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// Price sums already-rounded line subtotals; rounding is applied at each
// step, never deferred to the end.
func (p ShippingPolicy) Price(items []OrderItem) Totals {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal)
	}
	subtotal := Round2(sum)
	shipping := p.Cost(subtotal)
	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        Round2(subtotal.Add(shipping)),
	}
}
