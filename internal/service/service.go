package service

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// CartService defines the cart engine operations.
type CartService interface {
	// GetOrCreateCart returns the identity's active cart, creating it if absent.
	GetOrCreateCart(ctx context.Context, identity model.Identity) (*model.Cart, error)

	// GetCart retrieves a cart by ID.
	GetCart(ctx context.Context, cartID uuid.UUID) (*model.Cart, error)

	// AddItem adds quantity units of a product, merging with an existing line.
	AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*model.CartItem, error)

	// UpdateItemQuantity sets the quantity of a line.
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*model.CartItem, error)

	// RemoveItem deletes a line. Removing a missing line is not an error.
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error

	// ClearCart deletes every line and keeps the cart.
	ClearCart(ctx context.Context, cartID uuid.UUID) error

	// CalculateTotals aggregates the cart's captured prices.
	CalculateTotals(ctx context.Context, cartID uuid.UUID) (*model.CartTotals, error)

	// ValidateCart checks every line against live product state.
	ValidateCart(ctx context.Context, cartID uuid.UUID) (*model.CartValidation, error)

	// SyncPrices refreshes captured prices that drifted from the catalogue.
	SyncPrices(ctx context.Context, cartID uuid.UUID) (*model.PriceSync, error)

	// MergeGuestCart folds a guest session's cart into the user's cart.
	MergeGuestCart(ctx context.Context, sessionID string, userID int64) (*model.MergeResult, error)

	// Summary returns the cart with its lines, totals and validation.
	Summary(ctx context.Context, cartID uuid.UUID) (*model.CartSummary, error)

	// ItemCount sums the quantities in the identity's active cart.
	ItemCount(ctx context.Context, identity model.Identity) (int, error)

	// SweepExpired deletes guest carts that expired before now.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// OrderService defines the order engine operations.
type OrderService interface {
	// CreateOrderFromCart converts the user's active cart into an order.
	CreateOrderFromCart(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.OrderDetail, error)

	// GetOrder retrieves an order with items and history for its owner or an admin.
	GetOrder(ctx context.Context, orderID uuid.UUID, actor model.Actor) (*model.OrderDetail, error)

	// ListUserOrders returns one page of a user's orders.
	ListUserOrders(ctx context.Context, userID int64, filter model.OrderFilter) (*model.OrderPage, error)

	// UpdateOrderStatus moves an order along the status state machine.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, change model.StatusChange) (*model.Order, error)

	// CancelOrder cancels an order on behalf of its owner or an admin.
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor model.Actor, reason string) (*model.Order, error)

	// UpdatePaymentStatus records the payment state of an order.
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status model.PaymentStatus, reference string) (*model.Order, error)

	// ListOrders returns one page of every user's orders with their items.
	ListOrders(ctx context.Context, filter model.AdminOrderFilter) (*model.AdminOrderPage, error)

	// OrderStats summarises orders created within rng.
	OrderStats(ctx context.Context, rng model.DateRange) (*model.OrderStats, error)

	// RecentOrders returns the latest orders with their items.
	RecentOrders(ctx context.Context, limit int) ([]model.AdminOrder, error)

	// SearchOrders finds orders by number or customer name, email or phone.
	SearchOrders(ctx context.Context, term string) ([]model.AdminOrder, error)
}

// InventoryService defines the inventory ledger operations exposed to callers.
type InventoryService interface {
	// GetProduct retrieves a product by ID.
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)

	// AdjustStock applies a relative administrative stock change.
	AdjustStock(ctx context.Context, productID int64, delta int) (*model.Product, error)
}
