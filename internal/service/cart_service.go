package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	now         func() time.Time
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		now:         time.Now,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// GetOrCreateCart returns the identity's active cart, creating it if absent.
// Guest carts expire after GuestCartTTL.
func (s *cartService) GetOrCreateCart(ctx context.Context, identity model.Identity) (*model.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if identity.IsGuest() {
		exp := s.now().Add(model.GuestCartTTL)
		expiresAt = &exp
	}

	cart, err := s.cartRepo.GetOrCreateActive(ctx, identity, expiresAt)
	if err != nil {
		s.logger.Error().Err(err).Bool("guest", identity.IsGuest()).Msg("failed to get or create cart")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return cart, nil
}

// GetCart retrieves a cart by ID.
func (s *cartService) GetCart(ctx context.Context, cartID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetByID(ctx, cartID)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to get cart")
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	return cart, nil
}

// AddItem adds quantity units of a product to the cart. A product already in
// the cart has its quantity increased and keeps the price captured when it
// was first added.
func (s *cartService) AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*model.CartItem, error) {
	if quantity < model.MinItemQuantity || quantity > model.MaxItemQuantity {
		return nil, model.ErrInvalidQuantity
	}

	if _, err := s.GetCart(ctx, cartID); err != nil {
		return nil, err
	}

	return s.addUnits(ctx, cartID, productID, quantity)
}

// addUnits upserts quantity units of an active product into an existing cart
// provided stock covers the resulting line. The per-request quantity cap is
// left to callers.
func (s *cartService) addUnits(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*model.CartItem, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}
	if !product.IsActive {
		return nil, model.ErrProductInactive
	}

	existing, err := s.cartRepo.GetItemByProduct(ctx, cartID, productID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("cart_id", cartID.String()).
			Int64("product_id", productID).
			Msg("failed to get cart item")
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}

	wanted := quantity
	if existing != nil {
		wanted += existing.Quantity
	}
	if product.Stock < wanted {
		return nil, model.ErrInsufficientStock.WithMessage(
			fmt.Sprintf("Only %d units of %s available", product.Stock, product.Name))
	}

	item, err := s.cartRepo.UpsertItem(ctx, &model.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     product.Price,
		Discount:  product.UnitDiscount(),
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("cart_id", cartID.String()).
			Int64("product_id", productID).
			Msg("failed to add cart item")
		return nil, fmt.Errorf("failed to add item: %w", err)
	}

	s.logger.Debug().
		Str("cart_id", cartID.String()).
		Int64("product_id", productID).
		Int("quantity", item.Quantity).
		Msg("item added to cart")

	return item, nil
}

// UpdateItemQuantity sets the quantity of a line after checking live stock.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*model.CartItem, error) {
	if quantity < model.MinItemQuantity {
		return nil, model.ErrInvalidQuantity
	}

	item, err := s.cartRepo.GetItem(ctx, cartID, itemID)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to get cart item")
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	if item == nil {
		return nil, model.ErrCartItemNotFound
	}

	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", item.ProductID).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, model.ErrInsufficientStock.WithMessage(
			fmt.Sprintf("Only %d units of %s available", product.Stock, product.Name))
	}

	if err := s.cartRepo.UpdateItemQuantity(ctx, cartID, itemID, quantity); err != nil {
		return nil, err
	}

	item.Quantity = quantity
	item.UpdatedAt = s.now()
	return item, nil
}

// RemoveItem deletes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if err := s.cartRepo.RemoveItem(ctx, cartID, itemID); err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to remove cart item")
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// ClearCart deletes every line and keeps the cart.
func (s *cartService) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.cartRepo.ClearItems(ctx, cartID); err != nil {
		s.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *cartService) lines(ctx context.Context, cartID uuid.UUID) ([]model.CartLine, error) {
	lines, err := s.cartRepo.ListLines(ctx, cartID)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to list cart lines")
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	return lines, nil
}

// CalculateTotals aggregates the cart's captured prices.
func (s *cartService) CalculateTotals(ctx context.Context, cartID uuid.UUID) (*model.CartTotals, error) {
	lines, err := s.lines(ctx, cartID)
	if err != nil {
		return nil, err
	}

	totals := CalculateTotals(lines)
	return &totals, nil
}

// ValidateCart checks every line against live product state.
func (s *cartService) ValidateCart(ctx context.Context, cartID uuid.UUID) (*model.CartValidation, error) {
	lines, err := s.lines(ctx, cartID)
	if err != nil {
		return nil, err
	}

	v := ValidateLines(lines)
	return &v, nil
}

// SyncPrices overwrites captured prices that no longer match the catalogue.
func (s *cartService) SyncPrices(ctx context.Context, cartID uuid.UUID) (*model.PriceSync, error) {
	lines, err := s.lines(ctx, cartID)
	if err != nil {
		return nil, err
	}

	updates := []model.PriceUpdate{}
	for _, l := range lines {
		price := l.Product.Price
		discount := l.Product.UnitDiscount()
		if l.Item.Price.Equal(price) && l.Item.Discount.Equal(discount) {
			continue
		}

		if err := s.cartRepo.UpdateItemPrice(ctx, l.Item.ID, price, discount); err != nil {
			s.logger.Error().Err(err).Str("item_id", l.Item.ID.String()).Msg("failed to update item price")
			return nil, fmt.Errorf("failed to sync prices: %w", err)
		}

		updates = append(updates, model.PriceUpdate{
			ItemID:      l.Item.ID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			OldPrice:    l.Item.Price,
			NewPrice:    price,
		})
	}

	if len(updates) > 0 {
		s.logger.Info().
			Str("cart_id", cartID.String()).
			Int("updated", len(updates)).
			Msg("cart prices synced")
	}

	return &model.PriceSync{Updated: len(updates) > 0, Updates: updates}, nil
}

// MergeGuestCart replays every line of the session's active cart into the
// user's cart. Lines that can no longer be added are skipped. The guest cart
// is closed afterwards either way.
func (s *cartService) MergeGuestCart(ctx context.Context, sessionID string, userID int64) (*model.MergeResult, error) {
	guest, err := s.cartRepo.FindActive(ctx, model.SessionIdentity(sessionID))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to find guest cart")
		return nil, fmt.Errorf("failed to merge carts: %w", err)
	}

	var lines []model.CartLine
	if guest != nil {
		if lines, err = s.lines(ctx, guest.ID); err != nil {
			return nil, err
		}
	}

	if len(lines) == 0 {
		return &model.MergeResult{Merged: false, Message: "Guest cart has no items"}, nil
	}

	userCart, err := s.GetOrCreateCart(ctx, model.UserIdentity(userID))
	if err != nil {
		return nil, err
	}

	skipped := 0
	for _, l := range lines {
		if _, err := s.addUnits(ctx, userCart.ID, l.Item.ProductID, l.Item.Quantity); err != nil {
			skipped++
			s.logger.Warn().Err(err).
				Int64("user_id", userID).
				Int64("product_id", l.Item.ProductID).
				Int("quantity", l.Item.Quantity).
				Msg("could not merge guest cart item")
		}
	}

	if err := s.cartRepo.MarkCompleted(ctx, guest.ID); err != nil {
		s.logger.Error().Err(err).Str("cart_id", guest.ID.String()).Msg("failed to close guest cart")
		return nil, fmt.Errorf("failed to merge carts: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("guest_cart_id", guest.ID.String()).
		Int("lines", len(lines)).
		Int("skipped", skipped).
		Msg("guest cart merged")

	return &model.MergeResult{Merged: true, Message: "Guest cart merged"}, nil
}

// Summary returns the cart with its lines, totals and validation.
func (s *cartService) Summary(ctx context.Context, cartID uuid.UUID) (*model.CartSummary, error) {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	lines, err := s.lines(ctx, cartID)
	if err != nil {
		return nil, err
	}

	views := make([]model.CartLineView, len(lines))
	for i, l := range lines {
		views[i] = LineView(l)
	}

	return &model.CartSummary{
		Cart:       *cart,
		Items:      views,
		Totals:     CalculateTotals(lines),
		Validation: ValidateLines(lines),
	}, nil
}

// ItemCount sums the quantities in the identity's active cart. An identity
// without a cart has zero items.
func (s *cartService) ItemCount(ctx context.Context, identity model.Identity) (int, error) {
	if err := identity.Validate(); err != nil {
		return 0, err
	}

	cart, err := s.cartRepo.FindActive(ctx, identity)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to find cart")
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	if cart == nil {
		return 0, nil
	}

	count, err := s.cartRepo.CountItems(ctx, cart.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to count cart items")
		return 0, fmt.Errorf("failed to count items: %w", err)
	}

	return count, nil
}

// SweepExpired deletes guest carts that expired before now.
func (s *cartService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.cartRepo.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete expired carts")
		return 0, fmt.Errorf("failed to sweep carts: %w", err)
	}

	s.logger.Info().Int64("deleted", deleted).Msg("expired guest carts swept")
	return deleted, nil
}
