package cart

import (
	"fmt"

	"github.com/drstein77/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// ShippingCharges is applied to every order. No shipping rule exists yet.
var ShippingCharges = decimal.Zero

// JoinResult separates the cart entries that matched a catalog product
// from the ones that did not.
type JoinResult struct {
	Items   []models.CartLineItem
	Orphans []models.CartEntry
}

// Join combines cart entries with the catalog. Items follow catalog order.
// Entries referencing a product absent from the catalog end up in Orphans
// in their original order.
func Join(entries []models.CartEntry, catalog []models.Product) JoinResult {
	res := JoinResult{Items: []models.CartLineItem{}}
	if len(entries) == 0 {
		return res
	}

	matched := make([]bool, len(entries))
	for _, product := range catalog {
		for i, entry := range entries {
			if product.ID == entry.ProductID {
				res.Items = append(res.Items, models.CartLineItem{Product: product, Qty: entry.Qty})
				matched[i] = true
			}
		}
	}

	for i, entry := range entries {
		if !matched[i] {
			res.Orphans = append(res.Orphans, entry)
		}
	}
	return res
}

// Items returns only the matched line items of Join.
func Items(entries []models.CartEntry, catalog []models.Product) []models.CartLineItem {
	return Join(entries, catalog).Items
}

// TotalValue sums cost x qty over all items.
func TotalValue(items []models.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Summary builds the checkout order summary.
func Summary(items []models.CartLineItem) models.OrderSummary {
	subtotal := TotalValue(items)
	return models.OrderSummary{
		Products:        len(items),
		Subtotal:        subtotal,
		ShippingCharges: ShippingCharges,
		Total:           subtotal.Add(ShippingCharges),
	}
}

// Contains reports whether productID already has a line item.
func Contains(items []models.CartLineItem, productID string) bool {
	for _, item := range items {
		if item.ID == productID {
			return true
		}
	}
	return false
}

// Direction is the quantity stepper button that was pressed.
type Direction string

const (
	Increment Direction = "+"
	Decrement Direction = "-"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Increment, Decrement:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown quantity direction %q", s)
}

// NextQuantity returns current+1 or current-1. The result is not clamped;
// the cart API decides what a quantity below one means.
func NextQuantity(dir Direction, current int) int {
	if dir == Decrement {
		return current - 1
	}
	return current + 1
}
