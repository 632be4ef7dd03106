package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue item as seen by the cart and order core.
type Product struct {
	ID           int64            `json:"id" db:"id"`
	SKU          string           `json:"sku" db:"sku"`
	Name         string           `json:"name" db:"name"`
	Price        decimal.Decimal  `json:"price" db:"price"`
	ComparePrice *decimal.Decimal `json:"comparePrice,omitempty" db:"compare_price"`
	Stock        int              `json:"stock" db:"stock"`
	SalesCount   int              `json:"salesCount" db:"sales_count"`
	IsActive     bool             `json:"isActive" db:"is_active"`
	CreatedAt    time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time        `json:"updatedAt" db:"updated_at"`
}

// UnitDiscount is the per-unit saving against the compare price. It is zero
// when the product has no compare price or the compare price is below Price.
func (p *Product) UnitDiscount() decimal.Decimal {
	if p.ComparePrice == nil {
		return decimal.Zero
	}
	return decimal.Max(p.ComparePrice.Sub(p.Price), decimal.Zero)
}

// StockAdjustment is an administrative relative stock change.
type StockAdjustment struct {
	Delta int `json:"delta"`
}
