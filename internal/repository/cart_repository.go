package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

const cartColumns = `id, user_id, session_id, status, expires_at, created_at, updated_at`

const cartItemColumns = `id, cart_id, product_id, quantity, price, discount, created_at, updated_at`

func scanCart(row pgx.Row, c *model.Cart) error {
	return row.Scan(&c.ID, &c.UserID, &c.SessionID, &c.Status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
}

func scanCartItem(row pgx.Row, i *model.CartItem) error {
	return row.Scan(&i.ID, &i.CartID, &i.ProductID, &i.Quantity, &i.Price, &i.Discount, &i.CreatedAt, &i.UpdatedAt)
}

// ownerClause returns the WHERE fragment and argument selecting identity's carts.
func ownerClause(identity model.Identity) (string, any) {
	if identity.UserID != nil {
		return "user_id = $1", *identity.UserID
	}
	return "session_id = $1", identity.SessionID
}

// GetOrCreateActive returns the single active cart for identity, creating it
// when absent. Concurrent callers converge on the same row through the
// partial unique indexes.
func (r *cartRepository) GetOrCreateActive(ctx context.Context, identity model.Identity, expiresAt *time.Time) (*model.Cart, error) {
	cart, err := r.FindActive(ctx, identity)
	if err != nil || cart != nil {
		return cart, err
	}

	var sessionID *string
	if identity.SessionID != "" {
		sessionID = &identity.SessionID
	}

	query := `
		INSERT INTO carts (id, user_id, session_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, NOW(), NOW())
		ON CONFLICT DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query, uuid.New(), identity.UserID, sessionID, expiresAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create cart")
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart, err = r.FindActive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("active cart missing after insert")
	}

	r.logger.Debug().Str("cart_id", cart.ID.String()).Msg("cart ready")

	return cart, nil
}

// FindActive returns the active cart for identity, or nil.
func (r *cartRepository) FindActive(ctx context.Context, identity model.Identity) (*model.Cart, error) {
	where, arg := ownerClause(identity)
	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + where + ` AND status = 'active'`

	var c model.Cart
	err := scanCart(r.pool.QueryRow(ctx, query, arg), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query active cart")
		return nil, fmt.Errorf("failed to query active cart: %w", err)
	}

	return &c, nil
}

// GetByID retrieves a cart by its ID.
func (r *cartRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`

	var c model.Cart
	err := scanCart(r.pool.QueryRow(ctx, query, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("cart_id", id.String()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	return &c, nil
}

// LockActiveForUser locks the user's active cart row for the rest of tx.
func (r *cartRepository) LockActiveForUser(ctx context.Context, tx pgx.Tx, userID int64) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND status = 'active' FOR UPDATE`

	var c model.Cart
	err := scanCart(tx.QueryRow(ctx, query, userID), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to lock cart")
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	return &c, nil
}

// ListLines returns the cart's items joined with live product state.
func (r *cartRepository) ListLines(ctx context.Context, cartID uuid.UUID) ([]model.CartLine, error) {
	return r.listLines(ctx, r.pool, cartID)
}

// ListLinesTx is ListLines inside a transaction.
func (r *cartRepository) ListLinesTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartLine, error) {
	return r.listLines(ctx, tx, cartID)
}

func (r *cartRepository) listLines(ctx context.Context, q querier, cartID uuid.UUID) ([]model.CartLine, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price, ci.discount, ci.created_at, ci.updated_at,
		       p.id, p.sku, p.name, p.price, p.compare_price, p.stock, p.sales_count, p.is_active, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`

	rows, err := q.Query(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query cart lines")
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		err := rows.Scan(
			&l.Item.ID, &l.Item.CartID, &l.Item.ProductID, &l.Item.Quantity,
			&l.Item.Price, &l.Item.Discount, &l.Item.CreatedAt, &l.Item.UpdatedAt,
			&l.Product.ID, &l.Product.SKU, &l.Product.Name, &l.Product.Price, &l.Product.ComparePrice,
			&l.Product.Stock, &l.Product.SalesCount, &l.Product.IsActive, &l.Product.CreatedAt, &l.Product.UpdatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart line row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart line rows")
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

// GetItem retrieves an item scoped to its cart.
func (r *cartRepository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE id = $1 AND cart_id = $2`
	return r.getItem(ctx, query, itemID, cartID)
}

// GetItemByProduct retrieves the cart's line for a product.
func (r *cartRepository) GetItemByProduct(ctx context.Context, cartID uuid.UUID, productID int64) (*model.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND product_id = $2`
	return r.getItem(ctx, query, cartID, productID)
}

func (r *cartRepository) getItem(ctx context.Context, query string, args ...any) (*model.CartItem, error) {
	var i model.CartItem
	err := scanCartItem(r.pool.QueryRow(ctx, query, args...), &i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query cart item")
		return nil, fmt.Errorf("failed to query cart item: %w", err)
	}
	return &i, nil
}

// UpsertItem inserts a line or adds to the existing line's quantity.
func (r *cartRepository) UpsertItem(ctx context.Context, item *model.CartItem) (*model.CartItem, error) {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price, discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = NOW()
		RETURNING ` + cartItemColumns

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	var saved model.CartItem
	err := scanCartItem(r.pool.QueryRow(ctx, query,
		item.ID, item.CartID, item.ProductID, item.Quantity, item.Price, item.Discount,
	), &saved)
	if err != nil {
		r.logger.Error().Err(err).
			Str("cart_id", item.CartID.String()).
			Int64("product_id", item.ProductID).
			Msg("failed to upsert cart item")
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	if err := r.touch(ctx, r.pool, item.CartID); err != nil {
		return nil, err
	}

	return &saved, nil
}

// UpdateItemQuantity sets the quantity of an item in the cart.
func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error {
	query := `UPDATE cart_items SET quantity = $3, updated_at = NOW() WHERE id = $1 AND cart_id = $2`

	tag, err := r.pool.Exec(ctx, query, itemID, cartID, quantity)
	if err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to update cart item quantity")
		return fmt.Errorf("failed to update cart item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartItemNotFound
	}

	return r.touch(ctx, r.pool, cartID)
}

// UpdateItemPrice overwrites the captured price and discount of an item.
func (r *cartRepository) UpdateItemPrice(ctx context.Context, itemID uuid.UUID, price, discount decimal.Decimal) error {
	query := `UPDATE cart_items SET price = $2, discount = $3, updated_at = NOW() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, itemID, price, discount); err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to update cart item price")
		return fmt.Errorf("failed to update cart item price: %w", err)
	}

	return nil
}

// RemoveItem deletes an item from the cart.
func (r *cartRepository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

	if _, err := r.pool.Exec(ctx, query, itemID, cartID); err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to remove cart item")
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	return r.touch(ctx, r.pool, cartID)
}

// ClearItems deletes every item of the cart.
func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return r.touch(ctx, r.pool, cartID)
}

// CountItems sums the quantities of the cart's items.
func (r *cartRepository) CountItems(ctx context.Context, cartID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE cart_id = $1`, cartID).Scan(&count)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to count cart items")
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}

// MarkCompleted closes the cart.
func (r *cartRepository) MarkCompleted(ctx context.Context, cartID uuid.UUID) error {
	return r.markCompleted(ctx, r.pool, cartID)
}

// MarkCompletedTx closes the cart inside a transaction.
func (r *cartRepository) MarkCompletedTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	return r.markCompleted(ctx, tx, cartID)
}

func (r *cartRepository) markCompleted(ctx context.Context, q querier, cartID uuid.UUID) error {
	query := `UPDATE carts SET status = 'completed', updated_at = NOW() WHERE id = $1`

	if _, err := q.Exec(ctx, query, cartID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to complete cart")
		return fmt.Errorf("failed to complete cart: %w", err)
	}

	r.logger.Debug().Str("cart_id", cartID.String()).Msg("cart completed")

	return nil
}

// DeleteExpired removes active guest carts whose expiry is before now.
func (r *cartRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM carts
		WHERE session_id IS NOT NULL
		  AND status = 'active'
		  AND expires_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to delete expired carts")
		return 0, fmt.Errorf("failed to delete expired carts: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *cartRepository) touch(ctx context.Context, q querier, cartID uuid.UUID) error {
	if _, err := q.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to touch cart")
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}
