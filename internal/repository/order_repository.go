package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderNumberConstraint = "uq_orders_order_number"

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

const orderColumns = `
	id, order_number, user_id, status, payment_status, payment_method, payment_reference,
	subtotal, discount, shipping_cost, tax, total, shipping_address, delivery_type,
	delivery_date, delivery_time_slot, customer_name, customer_email, customer_phone,
	customer_notes, admin_notes, tracking_number, paid_at, completed_at, cancelled_at,
	cancellation_reason, created_at, updated_at`

const orderItemColumns = `
	id, order_id, product_id, product_name, product_sku, quantity,
	unit_price, discount, subtotal, total, created_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentReference,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Tax, &o.Total, &o.ShippingAddress, &o.DeliveryType,
		&o.DeliveryDate, &o.DeliveryTimeSlot, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.CustomerNotes, &o.AdminNotes, &o.TrackingNumber, &o.PaidAt, &o.CompletedAt, &o.CancelledAt,
		&o.CancellationReason, &o.CreatedAt, &o.UpdatedAt,
	)
}

func scanOrderItem(row pgx.Row, i *model.OrderItem) error {
	return row.Scan(
		&i.ID, &i.OrderID, &i.ProductID, &i.ProductName, &i.ProductSKU, &i.Quantity,
		&i.UnitPrice, &i.Discount, &i.Subtotal, &i.Total, &i.CreatedAt,
	)
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order under a savepoint so that an order number
// clash can be retried within the same transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, user_id, status, payment_status, payment_method, payment_reference,
			subtotal, discount, shipping_cost, tax, total, shipping_address, delivery_type,
			delivery_date, delivery_time_slot, customer_name, customer_email, customer_phone,
			customer_notes, admin_notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	sp, err := tx.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create savepoint")
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	_, err = sp.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus, order.PaymentMethod, order.PaymentReference,
		order.Subtotal, order.Discount, order.ShippingCost, order.Tax, order.Total, order.ShippingAddress, order.DeliveryType,
		order.DeliveryDate, order.DeliveryTimeSlot, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.CustomerNotes, order.AdminNotes, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		_ = sp.Rollback(ctx)
		if isUniqueViolation(err, orderNumberConstraint) {
			r.logger.Warn().Str("order_number", order.OrderNumber).Msg("order number already taken")
			return ErrDuplicateOrderNumber
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (
			id, order_id, product_id, product_name, product_sku, quantity,
			unit_price, discount, subtotal, total, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.ProductSKU, item.Quantity,
			item.UnitPrice, item.Discount, item.Subtotal, item.Total, item.CreatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Int64("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// AppendHistory records a status change within the provided transaction.
func (r *orderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, entry *model.OrderStatusHistory) error {
	query := `
		INSERT INTO order_status_history (id, order_id, previous_status, new_status, changed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.Exec(ctx, query,
		entry.ID, entry.OrderID, entry.PreviousStatus, entry.NewStatus, entry.ChangedBy, entry.Notes, entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", entry.OrderID.String()).Msg("failed to append status history")
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

// LockByID locks an order row for the rest of tx.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.getOrder(ctx, tx, query, id)
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOrder(ctx, r.pool, query, id)
}

func (r *orderRepository) getOrder(ctx context.Context, q querier, query string, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := scanOrder(q.QueryRow(ctx, query, id), &order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return &order, nil
}

// GetItemsTx retrieves an order's items within the provided transaction.
func (r *orderRepository) GetItemsTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error) {
	return r.getItems(ctx, tx, orderID)
}

// GetItems retrieves an order's items.
func (r *orderRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	return r.getItems(ctx, r.pool, orderID)
}

func (r *orderRepository) getItems(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// UpdateState writes the mutable status and payment fields of an order.
func (r *orderRepository) UpdateState(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		UPDATE orders
		SET status = $2,
		    payment_status = $3,
		    payment_reference = $4,
		    paid_at = $5,
		    tracking_number = $6,
		    completed_at = $7,
		    cancelled_at = $8,
		    cancellation_reason = $9,
		    admin_notes = $10,
		    updated_at = $11
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		order.ID, order.Status, order.PaymentStatus, order.PaymentReference, order.PaidAt,
		order.TrackingNumber, order.CompletedAt, order.CancelledAt, order.CancellationReason,
		order.AdminNotes, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// GetHistory retrieves an order's status trail, oldest first.
func (r *orderRepository) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, previous_status, new_status, changed_by, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query status history")
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []model.OrderStatusHistory
	for rows.Next() {
		var h model.OrderStatusHistory
		err := rows.Scan(&h.ID, &h.OrderID, &h.PreviousStatus, &h.NewStatus, &h.ChangedBy, &h.Notes, &h.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan status history row")
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return history, nil
}

// ListByUser returns one page of a user's orders and the total match count.
func (r *orderRepository) ListByUser(ctx context.Context, userID int64, filter model.OrderFilter) ([]model.Order, int, error) {
	status := statusArg(filter.Status)

	var total int
	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)`
	if err := r.pool.QueryRow(ctx, countQuery, userID, status).Scan(&total); err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to count orders")
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, userID, status, filter.Limit, filter.Offset())
	if err != nil {
		r.logger.Error().Err(err).
			Int64("user_id", userID).
			Int("limit", filter.Limit).
			Int("page", filter.Page).
			Msg("failed to query orders")
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := r.collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListAll returns one page of every user's orders, newest first, and the
// total count matching the filter.
func (r *orderRepository) ListAll(ctx context.Context, filter model.AdminOrderFilter) ([]model.Order, int, error) {
	status := statusArg(filter.Status)
	where := `
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, status, filter.From, filter.To).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count all orders")
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + `
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query, status, filter.From, filter.To, filter.Limit, filter.Offset())
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", filter.Limit).
			Int("page", filter.Page).
			Msg("failed to query all orders")
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := r.collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListRecent returns the latest orders across all users.
func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Int("limit", limit).Msg("failed to query recent orders")
		return nil, fmt.Errorf("failed to query recent orders: %w", err)
	}

	return r.collectOrders(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches term case-insensitively against the order number and the
// customer's name, email and phone. Wildcards in term match literally.
func (r *orderRepository) Search(ctx context.Context, term string, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE order_number ILIKE $1
		   OR customer_name ILIKE $1
		   OR customer_email ILIKE $1
		   OR customer_phone ILIKE $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, "%"+likeEscaper.Replace(term)+"%", limit)
	if err != nil {
		r.logger.Error().Err(err).Str("term", term).Msg("failed to search orders")
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}

	return r.collectOrders(rows)
}

// GetItemsByOrders retrieves the items of several orders keyed by order ID.
func (r *orderRepository) GetItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return items, nil
	}

	query := `SELECT ` + orderItemColumns + `
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(orderIDs)).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// Stats aggregates orders created within rng. Revenue counts paid orders
// only; the average covers every order in range.
func (r *orderRepository) Stats(ctx context.Context, rng model.DateRange, topLimit int) (*model.OrderStats, error) {
	stats := &model.OrderStats{
		OrdersByStatus: []model.StatusTotals{},
		TopProducts:    []model.ProductSales{},
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY status
		ORDER BY status
	`, rng.From, rng.To)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order status totals")
		return nil, fmt.Errorf("failed to query order stats: %w", err)
	}
	for rows.Next() {
		var st model.StatusTotals
		if err := rows.Scan(&st.Status, &st.Count, &st.TotalAmount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status totals: %w", err)
		}
		stats.TotalOrders += st.Count
		stats.OrdersByStatus = append(stats.OrdersByStatus, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status totals: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total) FILTER (WHERE payment_status = 'paid'), 0),
		       COALESCE(ROUND(AVG(total), 2), 0)
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
	`, rng.From, rng.To).Scan(&stats.Revenue, &stats.AverageOrderValue)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order revenue")
		return nil, fmt.Errorf("failed to query order revenue: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT oi.product_id, oi.product_name, SUM(oi.quantity)::int, SUM(oi.total)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE ($1::timestamptz IS NULL OR o.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR o.created_at < $2)
		GROUP BY oi.product_id, oi.product_name
		ORDER BY 3 DESC, oi.product_id
		LIMIT $3
	`, rng.From, rng.To, topLimit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query top products")
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ps model.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.TotalSold, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		stats.TopProducts = append(stats.TopProducts, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top products: %w", err)
	}

	return stats, nil
}

func statusArg(status *model.OrderStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

// collectOrders scans and closes rows.
func (r *orderRepository) collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
