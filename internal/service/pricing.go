package service

import (
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlatShippingCost is charged on every home delivery.
var FlatShippingCost = decimal.RequireFromString("5.00")

// money rounds to cents, half away from zero.
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTotals aggregates the captured prices of lines.
func CalculateTotals(lines []model.CartLine) model.CartTotals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	count := 0

	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Item.Quantity))
		subtotal = subtotal.Add(l.Item.Price.Mul(qty))
		discount = discount.Add(l.Item.Discount.Mul(qty))
		count += l.Item.Quantity
	}

	return model.CartTotals{
		Subtotal:  money(subtotal),
		Discount:  money(discount),
		Total:     money(subtotal),
		Savings:   money(discount),
		ItemCount: count,
	}
}

// ValidateLines checks every line against the live product state. Inactive
// and sold-out products are errors. Short stock and price drift are warnings.
func ValidateLines(lines []model.CartLine) model.CartValidation {
	v := model.CartValidation{
		Errors:     []model.CartIssue{},
		Warnings:   []model.CartIssue{},
		ItemsCount: len(lines),
	}

	for _, l := range lines {
		issue := model.CartIssue{
			ItemID:      l.Item.ID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
		}

		if !l.Product.IsActive {
			inactive := issue
			inactive.Type = model.IssueInactive
			inactive.Message = fmt.Sprintf("%s is no longer available", l.Product.Name)
			v.Errors = append(v.Errors, inactive)
		}

		if l.Product.Stock < l.Item.Quantity {
			stock := l.Product.Stock
			short := issue
			short.RequestedQuantity = l.Item.Quantity
			short.AvailableStock = &stock
			if stock == 0 {
				short.Type = model.IssueOutOfStock
				short.Message = fmt.Sprintf("%s is out of stock", l.Product.Name)
				v.Errors = append(v.Errors, short)
			} else {
				short.Type = model.IssueInsufficientStock
				short.Message = fmt.Sprintf("Only %d units of %s available", stock, l.Product.Name)
				v.Warnings = append(v.Warnings, short)
			}
		}

		if !l.Item.Price.Equal(l.Product.Price) {
			oldPrice, newPrice := l.Item.Price, l.Product.Price
			changed := issue
			changed.Type = model.IssuePriceChanged
			changed.Message = fmt.Sprintf("The price of %s has changed", l.Product.Name)
			changed.OldPrice = &oldPrice
			changed.NewPrice = &newPrice
			v.Warnings = append(v.Warnings, changed)
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// LineView renders a line with its per-line amounts.
func LineView(l model.CartLine) model.CartLineView {
	qty := decimal.NewFromInt(int64(l.Item.Quantity))
	subtotal := money(l.Item.Price.Mul(qty))
	return model.CartLineView{
		ID: l.Item.ID,
		Product: model.CartProductView{
			ID:       l.Product.ID,
			SKU:      l.Product.SKU,
			Name:     l.Product.Name,
			Price:    l.Product.Price,
			Stock:    l.Product.Stock,
			IsActive: l.Product.IsActive,
		},
		Quantity: l.Item.Quantity,
		Price:    l.Item.Price,
		Discount: l.Item.Discount,
		Subtotal: subtotal,
		Total:    subtotal,
	}
}

// BuildOrderItems snapshots lines into order items. The unit price is the
// list price (captured price plus discount) so that item totals equal what
// the cart charged.
func BuildOrderItems(orderID uuid.UUID, lines []model.CartLine, now time.Time) []model.OrderItem {
	items := make([]model.OrderItem, len(lines))
	for i, l := range lines {
		qty := decimal.NewFromInt(int64(l.Item.Quantity))
		unit := money(l.Item.Price.Add(l.Item.Discount))
		discount := money(l.Item.Discount.Mul(qty))
		subtotal := money(unit.Mul(qty))

		items[i] = model.OrderItem{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			ProductSKU:  l.Product.SKU,
			Quantity:    l.Item.Quantity,
			UnitPrice:   unit,
			Discount:    discount,
			Subtotal:    subtotal,
			Total:       subtotal.Sub(discount),
			CreatedAt:   now,
		}
	}
	return items
}

// ApplyOrderTotals fills the monetary fields of order from its items.
func ApplyOrderTotals(order *model.Order, items []model.OrderItem) {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal)
		discount = discount.Add(it.Discount)
	}

	shipping := decimal.Zero
	if order.DeliveryType == model.DeliveryTypeDelivery {
		shipping = FlatShippingCost
	}

	order.Subtotal = money(subtotal)
	order.Discount = money(discount)
	order.ShippingCost = shipping
	order.Tax = decimal.Zero
	order.Total = order.Subtotal.Sub(order.Discount).Add(order.ShippingCost).Add(order.Tax)
}
