package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Quantity limits for a single add-to-cart request.
const (
	MinItemQuantity = 1
	MaxItemQuantity = 100
)

// GuestCartTTL is how long an anonymous cart lives before the sweeper may
// reap it.
const GuestCartTTL = 7 * 24 * time.Hour

// Identity names the owner of a cart: a user or an anonymous session, never
// both.
type Identity struct {
	UserID    *int64
	SessionID string
}

// UserIdentity returns an identity for an authenticated user.
func UserIdentity(userID int64) Identity {
	return Identity{UserID: &userID}
}

// SessionIdentity returns an identity for a guest session.
func SessionIdentity(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

// Validate checks that exactly one owner is set.
func (i Identity) Validate() error {
	hasUser := i.UserID != nil
	hasSession := i.SessionID != ""
	if hasUser == hasSession {
		return ErrInvalidIdentity
	}
	return nil
}

// IsGuest reports whether the identity is an anonymous session.
func (i Identity) IsGuest() bool {
	return i.UserID == nil && i.SessionID != ""
}

// Cart is a mutable pre-checkout collection of line items.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *int64     `json:"userId,omitempty" db:"user_id"`
	SessionID *string    `json:"sessionId,omitempty" db:"session_id"`
	Status    CartStatus `json:"status" db:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// CartItem is a line item with the price and discount captured when it was
// added.
type CartItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	CartID    uuid.UUID       `json:"cartId" db:"cart_id"`
	ProductID int64           `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// CartLine pairs a cart item with the live state of its product.
type CartLine struct {
	Item    CartItem
	Product Product
}

// CartTotals is the aggregate over a cart's current line items.
type CartTotals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	Savings   decimal.Decimal `json:"savings"`
	ItemCount int             `json:"itemCount"`
}

// CartIssueType names a finding produced by cart validation.
type CartIssueType string

const (
	IssueInactive          CartIssueType = "inactive"
	IssueOutOfStock        CartIssueType = "out_of_stock"
	IssueInsufficientStock CartIssueType = "insufficient_stock"
	IssuePriceChanged      CartIssueType = "price_changed"
)

// CartIssue describes one problem found on a line item.
type CartIssue struct {
	ItemID            uuid.UUID        `json:"itemId"`
	ProductID         int64            `json:"productId"`
	ProductName       string           `json:"productName"`
	Type              CartIssueType    `json:"type"`
	Message           string           `json:"message"`
	RequestedQuantity int              `json:"requestedQuantity,omitempty"`
	AvailableStock    *int             `json:"availableStock,omitempty"`
	OldPrice          *decimal.Decimal `json:"oldPrice,omitempty"`
	NewPrice          *decimal.Decimal `json:"newPrice,omitempty"`
}

// CartValidation partitions findings into blocking errors and informational
// warnings.
type CartValidation struct {
	Valid      bool        `json:"valid"`
	Errors     []CartIssue `json:"errors"`
	Warnings   []CartIssue `json:"warnings"`
	ItemsCount int         `json:"itemsCount"`
}

// PriceUpdate records one line whose captured price was refreshed.
type PriceUpdate struct {
	ItemID      uuid.UUID       `json:"itemId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	OldPrice    decimal.Decimal `json:"oldPrice"`
	NewPrice    decimal.Decimal `json:"newPrice"`
}

// PriceSync is the result of reconciling captured prices with the catalogue.
type PriceSync struct {
	Updated bool          `json:"updated"`
	Updates []PriceUpdate `json:"updates"`
}

// MergeResult reports the outcome of folding a guest cart into a user cart.
type MergeResult struct {
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// CartLineView is a line item rendered for clients.
type CartLineView struct {
	ID       uuid.UUID       `json:"id"`
	Product  CartProductView `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

// CartProductView is the live product data shown next to a line item.
type CartProductView struct {
	ID       int64           `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
}

// CartSummary is the full client view of a cart.
type CartSummary struct {
	Cart       Cart           `json:"cart"`
	Items      []CartLineView `json:"items"`
	Totals     CartTotals     `json:"totals"`
	Validation CartValidation `json:"validation"`
}

// AddItemRequest is the payload for adding a product to the cart.
type AddItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateItemRequest is the payload for changing a line quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// MergeCartRequest carries the guest session to merge after login.
type MergeCartRequest struct {
	SessionID string `json:"sessionId"`
}
