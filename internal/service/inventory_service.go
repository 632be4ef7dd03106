package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// inventoryService implements InventoryService.
type inventoryService struct {
	repo   repository.ProductRepository
	logger zerolog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(repo repository.ProductRepository, logger zerolog.Logger) InventoryService {
	return &inventoryService{
		repo:   repo,
		logger: logger.With().Str("service", "inventory").Logger(),
	}
}

// GetProduct retrieves a product by ID.
func (s *inventoryService) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	if productID <= 0 {
		return nil, model.ErrProductNotFound
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// AdjustStock applies a relative administrative stock change.
func (s *inventoryService) AdjustStock(ctx context.Context, productID int64, delta int) (*model.Product, error) {
	if delta == 0 {
		return s.GetProduct(ctx, productID)
	}

	product, err := s.repo.AdjustStock(ctx, productID, delta)
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("product_id", productID).
			Int("delta", delta).
			Msg("stock adjustment rejected")
		return nil, err
	}

	s.logger.Info().
		Int64("product_id", productID).
		Int("delta", delta).
		Int("stock", product.Stock).
		Msg("stock adjusted")

	return product, nil
}
