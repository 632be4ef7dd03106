package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = `id, sku, name, price, compare_price, stock, sales_count, is_active, created_at, updated_at`

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Price,
		&p.ComparePrice,
		&p.Stock,
		&p.SalesCount,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p model.Product
	err := scanProduct(r.pool.QueryRow(ctx, query, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

// DecrementStock takes qty units out of stock only if enough remain.
func (r *productRepository) DecrementStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) (bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $2,
		    sales_count = sales_count + $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	tag, err := tx.Exec(ctx, query, productID, qty)
	if err != nil {
		r.logger.Error().Err(err).
			Int64("product_id", productID).
			Int("quantity", qty).
			Msg("failed to decrement stock")
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Int64("product_id", productID).
			Int("quantity", qty).
			Msg("stock decrement rejected")
		return false, nil
	}

	return true, nil
}

// RestoreStock puts qty units back into stock and off the sales counter.
func (r *productRepository) RestoreStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) error {
	query := `
		UPDATE products
		SET stock = stock + $2,
		    sales_count = GREATEST(sales_count - $2, 0),
		    updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, productID, qty); err != nil {
		r.logger.Error().Err(err).
			Int64("product_id", productID).
			Int("quantity", qty).
			Msg("failed to restore stock")
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	return nil
}

// AdjustStock applies a relative administrative stock change.
func (r *productRepository) AdjustStock(ctx context.Context, productID int64, delta int) (*model.Product, error) {
	query := `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING ` + productColumns

	var p model.Product
	err := scanProduct(r.pool.QueryRow(ctx, query, productID, delta), &p)
	if err == nil {
		r.logger.Info().
			Int64("product_id", productID).
			Int("delta", delta).
			Int("stock", p.Stock).
			Msg("stock adjusted")
		return &p, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to adjust stock")
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	existing, err := r.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.ErrProductNotFound
	}

	return nil, model.ErrInsufficientStock.WithMessage(
		fmt.Sprintf("Stock of %s cannot go below zero (available: %d)", existing.Name, existing.Stock))
}
