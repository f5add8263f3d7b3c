package pricing

import (
	"mealcart/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPrice is the unit price given to every meal added to a cart.
	DefaultPrice = 14.99
	// DefaultTaxRate is applied to the cart subtotal.
	DefaultTaxRate = 0.1
)

// Policy holds the server side prices used for new items and totals.
type Policy struct {
	unitPrice float64
	taxRate   decimal.Decimal
}

// NewPolicy creates a Policy from the configured unit price and tax rate.
func NewPolicy(unitPrice, taxRate float64) Policy {
	return Policy{
		unitPrice: unitPrice,
		taxRate:   decimal.NewFromFloat(taxRate),
	}
}

// UnitPrice is the price stamped on an item when it is first added.
func (p Policy) UnitPrice() float64 {
	return p.unitPrice
}

// Totals computes subtotal, tax and total for the given items.
func (p Policy) Totals(items []models.LineItem) models.Totals {
	return CalculateTotals(items, p.taxRate)
}

// CalculateTotals sums price*quantity over items and derives tax and total.
//
// The three outputs are rounded independently to 2 places, half away from
// zero: tax comes from the unrounded subtotal and total from the unrounded
// subtotal plus unrounded tax.
func CalculateTotals(items []models.LineItem, taxRate decimal.Decimal) models.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	tax := subtotal.Mul(taxRate)
	total := subtotal.Add(tax)

	return models.Totals{
		Subtotal: subtotal.Round(2).InexactFloat64(),
		Tax:      tax.Round(2).InexactFloat64(),
		Total:    total.Round(2).InexactFloat64(),
	}
}
