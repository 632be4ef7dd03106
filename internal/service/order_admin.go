package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// ListOrders returns one page of every user's orders with their items.
func (s *orderService) ListOrders(ctx context.Context, filter model.AdminOrderFilter) (*model.AdminOrderPage, error) {
	f := filter.Normalize()
	if f.Status != nil && !IsKnownStatus(*f.Status) {
		return nil, model.ErrInvalidStatus
	}
	if err := checkRange(f.DateRange); err != nil {
		return nil, err
	}

	orders, total, err := s.orderRepo.ListAll(ctx, f)
	if err != nil {
		s.logger.Error().Err(err).
			Int("page", f.Page).
			Int("limit", f.Limit).
			Msg("failed to list all orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	withItems, err := s.attachItems(ctx, orders)
	if err != nil {
		return nil, err
	}

	return &model.AdminOrderPage{
		Orders:     withItems,
		Pagination: model.NewPagination(total, f.OrderFilter),
	}, nil
}

// OrderStats summarises orders created within rng.
func (s *orderService) OrderStats(ctx context.Context, rng model.DateRange) (*model.OrderStats, error) {
	if err := checkRange(rng); err != nil {
		return nil, err
	}

	stats, err := s.orderRepo.Stats(ctx, rng, model.TopProductsLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute order stats")
		return nil, fmt.Errorf("failed to compute order stats: %w", err)
	}

	return stats, nil
}

// RecentOrders returns the latest orders with their items. The limit falls
// back to the default when unset and is capped at the page maximum.
func (s *orderService) RecentOrders(ctx context.Context, limit int) ([]model.AdminOrder, error) {
	if limit < 1 {
		limit = model.DefaultRecentLimit
	}
	limit = min(limit, model.MaxPageLimit)

	orders, err := s.orderRepo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Msg("failed to list recent orders")
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}

	return s.attachItems(ctx, orders)
}

// SearchOrders finds orders whose number or customer name, email or phone
// contains term.
func (s *orderService) SearchOrders(ctx context.Context, term string) ([]model.AdminOrder, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < model.MinSearchTermLength {
		return nil, model.ErrSearchTermTooShort
	}

	orders, err := s.orderRepo.Search(ctx, term, model.SearchResultLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("term", term).Msg("failed to search orders")
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}

	return s.attachItems(ctx, orders)
}

func (s *orderService) attachItems(ctx context.Context, orders []model.Order) ([]model.AdminOrder, error) {
	result := make([]model.AdminOrder, len(orders))
	if len(orders) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := s.orderRepo.GetItemsByOrders(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("orders", len(ids)).Msg("failed to get order items")
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	for i, o := range orders {
		lines := items[o.ID]
		if lines == nil {
			lines = []model.OrderItem{}
		}
		result[i] = model.AdminOrder{Order: o, Items: lines}
	}

	return result, nil
}

func checkRange(rng model.DateRange) error {
	if rng.From != nil && rng.To != nil && !rng.From.Before(*rng.To) {
		return model.ErrInvalidDateRange
	}
	return nil
}
