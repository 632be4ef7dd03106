package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrDuplicateOrderNumber is returned by CreateOrder when the generated order
// number is already taken. The transaction stays usable.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

// ProductRepository is the inventory ledger: product reads and relative
// stock movements.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID. Returns nil if absent.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// DecrementStock takes qty units out of stock and adds them to sales,
	// only if enough stock remains. Reports whether a row was updated.
	DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) (bool, error)

	// RestoreStock puts qty units back into stock and takes them off sales.
	RestoreStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) error

	// AdjustStock applies a relative administrative change. Fails with
	// model.ErrInsufficientStock if the result would be negative.
	AdjustStock(ctx context.Context, productID int64, delta int) (*model.Product, error)
}

// CartRepository defines the interface for cart data access operations.
type CartRepository interface {
	// GetOrCreateActive returns the single active cart for identity, creating
	// it when absent.
	GetOrCreateActive(ctx context.Context, identity model.Identity, expiresAt *time.Time) (*model.Cart, error)

	// FindActive returns the active cart for identity, or nil.
	FindActive(ctx context.Context, identity model.Identity) (*model.Cart, error)

	// GetByID retrieves a cart by its ID. Returns nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)

	// LockActiveForUser locks the user's active cart row for the rest of tx.
	LockActiveForUser(ctx context.Context, tx pgx.Tx, userID int64) (*model.Cart, error)

	// ListLines returns the cart's items joined with live product state.
	ListLines(ctx context.Context, cartID uuid.UUID) ([]model.CartLine, error)

	// ListLinesTx is ListLines inside a transaction.
	ListLinesTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartLine, error)

	// GetItem retrieves an item scoped to its cart. Returns nil if absent.
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error)

	// GetItemByProduct retrieves the cart's line for a product. Returns nil if absent.
	GetItemByProduct(ctx context.Context, cartID uuid.UUID, productID int64) (*model.CartItem, error)

	// UpsertItem inserts a line, or adds to the quantity of the existing line
	// for the same product without touching its captured price.
	UpsertItem(ctx context.Context, item *model.CartItem) (*model.CartItem, error)

	// UpdateItemQuantity sets the quantity of an item in the cart.
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error

	// UpdateItemPrice overwrites the captured price and discount of an item.
	UpdateItemPrice(ctx context.Context, itemID uuid.UUID, price, discount decimal.Decimal) error

	// RemoveItem deletes an item from the cart. Absent items are ignored.
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error

	// ClearItems deletes every item of the cart and keeps the cart row.
	ClearItems(ctx context.Context, cartID uuid.UUID) error

	// CountItems sums the quantities of the cart's items.
	CountItems(ctx context.Context, cartID uuid.UUID) (int, error)

	// MarkCompleted closes the cart.
	MarkCompleted(ctx context.Context, cartID uuid.UUID) error

	// MarkCompletedTx closes the cart inside a transaction.
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error

	// DeleteExpired removes active guest carts whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction. A
	// clash on order_number returns ErrDuplicateOrderNumber and leaves tx
	// usable.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// AppendHistory records a status change within the provided transaction.
	AppendHistory(ctx context.Context, tx pgx.Tx, entry *model.OrderStatusHistory) error

	// LockByID locks an order row for the rest of tx. Returns nil if absent.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetItemsTx retrieves an order's items within the provided transaction.
	GetItemsTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error)

	// UpdateState writes the mutable status and payment fields of an order.
	UpdateState(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetItems retrieves an order's items.
	GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error)

	// GetHistory retrieves an order's status trail, oldest first.
	GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error)

	// ListByUser returns one page of a user's orders, newest first, and the
	// total count matching the filter.
	ListByUser(ctx context.Context, userID int64, filter model.OrderFilter) ([]model.Order, int, error)

	// ListAll returns one page of all orders, newest first, and the total
	// count matching the filter.
	ListAll(ctx context.Context, filter model.AdminOrderFilter) ([]model.Order, int, error)

	// ListRecent returns the latest limit orders.
	ListRecent(ctx context.Context, limit int) ([]model.Order, error)

	// Search returns up to limit orders whose number or customer contact
	// fields contain term, ignoring case.
	Search(ctx context.Context, term string, limit int) ([]model.Order, error)

	// GetItemsByOrders retrieves the items of several orders keyed by order ID.
	GetItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error)

	// Stats aggregates orders created within rng, with the topLimit best
	// selling products.
	Stats(ctx context.Context, rng model.DateRange, topLimit int) (*model.OrderStats, error)
}

// CustomerRepository reads customer contact data and saved addresses.
type CustomerRepository interface {
	// GetCustomer retrieves a customer by user ID. Returns nil if absent.
	GetCustomer(ctx context.Context, userID int64) (*model.Customer, error)

	// GetAddress retrieves an address owned by the user. Returns nil if absent.
	GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
