package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCartService(cartRepo *MockCartRepository, productRepo *MockProductRepository, now time.Time) *cartService {
	svc := NewCartService(cartRepo, productRepo, zerolog.Nop()).(*cartService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCartService_GetOrCreateCart(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("Guest cart expires in seven days", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		identity := model.SessionIdentity("sess-1")
		expected := &model.Cart{ID: uuid.New(), Status: model.CartStatusActive}

		cartRepo.On("GetOrCreateActive", ctx, identity, mock.MatchedBy(func(exp *time.Time) bool {
			return exp != nil && exp.Equal(now.Add(7*24*time.Hour))
		})).Return(expected, nil)

		cart, err := newTestCartService(cartRepo, new(MockProductRepository), now).GetOrCreateCart(ctx, identity)

		require.NoError(t, err)
		assert.Equal(t, expected.ID, cart.ID)
		cartRepo.AssertExpectations(t)
	})

	t.Run("User cart never expires", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		identity := model.UserIdentity(7)

		cartRepo.On("GetOrCreateActive", ctx, identity, (*time.Time)(nil)).
			Return(&model.Cart{ID: uuid.New()}, nil)

		_, err := newTestCartService(cartRepo, new(MockProductRepository), now).GetOrCreateCart(ctx, identity)

		require.NoError(t, err)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Identity with both owners is rejected", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		userID := int64(7)

		_, err := newTestCartService(cartRepo, new(MockProductRepository), now).
			GetOrCreateCart(ctx, model.Identity{UserID: &userID, SessionID: "sess-1"})

		assert.ErrorIs(t, err, model.ErrInvalidIdentity)
		cartRepo.AssertNotCalled(t, "GetOrCreateActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Identity with no owner is rejected", func(t *testing.T) {
		_, err := newTestCartService(new(MockCartRepository), new(MockProductRepository), now).
			GetOrCreateCart(ctx, model.Identity{})

		assert.ErrorIs(t, err, model.ErrInvalidIdentity)
	})
}

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusActive}

	t.Run("New line captures price and discount", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)
		product := testProduct(1, "5.00", "6.00", 10)

		cartRepo.On("GetByID", ctx, cartID).Return(cart, nil)
		productRepo.On("GetByID", ctx, int64(1)).Return(product, nil)
		cartRepo.On("GetItemByProduct", ctx, cartID, int64(1)).Return(nil, nil)
		cartRepo.On("UpsertItem", ctx, mock.MatchedBy(func(i *model.CartItem) bool {
			return i.Quantity == 2 && i.Price.Equal(dec("5.00")) && i.Discount.Equal(dec("1.00"))
		})).Return(func(_ context.Context, i *model.CartItem) *model.CartItem { return i }, nil)

		item, err := newTestCartService(cartRepo, productRepo, time.Now()).AddItem(ctx, cartID, 1, 2)

		require.NoError(t, err)
		assert.Equal(t, 2, item.Quantity)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Repeated adds sum and an add beyond stock changes nothing", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)
		product := testProduct(1, "5.00", "", 5)

		line := &model.CartItem{ID: uuid.New(), CartID: cartID, ProductID: 1, Price: product.Price}

		cartRepo.On("GetByID", ctx, cartID).Return(cart, nil)
		productRepo.On("GetByID", ctx, int64(1)).Return(product, nil)
		cartRepo.On("GetItemByProduct", ctx, cartID, int64(1)).Return(
			func(context.Context, uuid.UUID, int64) *model.CartItem {
				if line.Quantity == 0 {
					return nil
				}
				copied := *line
				return &copied
			}, nil)
		cartRepo.On("UpsertItem", ctx, mock.Anything).Return(
			func(_ context.Context, i *model.CartItem) *model.CartItem {
				line.Quantity += i.Quantity
				copied := *line
				return &copied
			}, nil)

		svc := newTestCartService(cartRepo, productRepo, time.Now())

		item, err := svc.AddItem(ctx, cartID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, item.Quantity)

		item, err = svc.AddItem(ctx, cartID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, item.Quantity)

		_, err = svc.AddItem(ctx, cartID, 1, 2)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)

		assert.Equal(t, 4, line.Quantity)
		cartRepo.AssertNumberOfCalls(t, "UpsertItem", 2)
	})

	tests := []struct {
		name        string
		quantity    int
		product     *model.Product
		expectedErr error
	}{
		{name: "Zero quantity", quantity: 0, expectedErr: model.ErrInvalidQuantity},
		{name: "Quantity above limit", quantity: 101, expectedErr: model.ErrInvalidQuantity},
		{name: "Unknown product", quantity: 1, product: nil, expectedErr: model.ErrProductNotFound},
		{
			name:     "Inactive product",
			quantity: 1,
			product: func() *model.Product {
				p := testProduct(1, "5.00", "", 10)
				p.IsActive = false
				return p
			}(),
			expectedErr: model.ErrProductInactive,
		},
		{name: "Not enough stock", quantity: 3, product: testProduct(1, "5.00", "", 2), expectedErr: model.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cartRepo := new(MockCartRepository)
			productRepo := new(MockProductRepository)

			cartRepo.On("GetByID", ctx, cartID).Return(cart, nil)
			cartRepo.On("GetItemByProduct", ctx, cartID, int64(1)).Return(nil, nil)
			if tt.product != nil {
				productRepo.On("GetByID", ctx, int64(1)).Return(tt.product, nil)
			} else {
				productRepo.On("GetByID", ctx, int64(1)).Return(nil, nil)
			}

			_, err := newTestCartService(cartRepo, productRepo, time.Now()).AddItem(ctx, cartID, 1, tt.quantity)

			assert.ErrorIs(t, err, tt.expectedErr)
			cartRepo.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything)
		})
	}

	t.Run("Unknown cart", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("GetByID", ctx, cartID).Return(nil, nil)

		_, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).AddItem(ctx, cartID, 1, 1)

		assert.ErrorIs(t, err, model.ErrCartNotFound)
	})
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	cartID, itemID := uuid.New(), uuid.New()
	item := &model.CartItem{ID: itemID, CartID: cartID, ProductID: 1, Quantity: 1}

	t.Run("Success", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)

		cartRepo.On("GetItem", ctx, cartID, itemID).Return(item, nil)
		productRepo.On("GetByID", ctx, int64(1)).Return(testProduct(1, "5.00", "", 10), nil)
		cartRepo.On("UpdateItemQuantity", ctx, cartID, itemID, 4).Return(nil)

		updated, err := newTestCartService(cartRepo, productRepo, time.Now()).UpdateItemQuantity(ctx, cartID, itemID, 4)

		require.NoError(t, err)
		assert.Equal(t, 4, updated.Quantity)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Quantity below one", func(t *testing.T) {
		_, err := newTestCartService(new(MockCartRepository), new(MockProductRepository), time.Now()).
			UpdateItemQuantity(ctx, cartID, itemID, 0)

		assert.ErrorIs(t, err, model.ErrInvalidQuantity)
	})

	t.Run("Item not in cart", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("GetItem", ctx, cartID, itemID).Return(nil, nil)

		_, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).
			UpdateItemQuantity(ctx, cartID, itemID, 2)

		assert.ErrorIs(t, err, model.ErrCartItemNotFound)
	})

	t.Run("Above live stock", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)

		cartRepo.On("GetItem", ctx, cartID, itemID).Return(item, nil)
		productRepo.On("GetByID", ctx, int64(1)).Return(testProduct(1, "5.00", "", 3), nil)

		_, err := newTestCartService(cartRepo, productRepo, time.Now()).UpdateItemQuantity(ctx, cartID, itemID, 4)

		assert.ErrorIs(t, err, model.ErrInsufficientStock)
		cartRepo.AssertNotCalled(t, "UpdateItemQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	cartID, itemID := uuid.New(), uuid.New()

	cartRepo := new(MockCartRepository)
	cartRepo.On("RemoveItem", ctx, cartID, itemID).Return(nil)
	cartRepo.On("ClearItems", ctx, cartID).Return(nil)

	svc := newTestCartService(cartRepo, new(MockProductRepository), time.Now())

	require.NoError(t, svc.RemoveItem(ctx, cartID, itemID))
	require.NoError(t, svc.RemoveItem(ctx, cartID, itemID))
	require.NoError(t, svc.ClearCart(ctx, cartID))
	cartRepo.AssertExpectations(t)
}

func TestCartService_Totals(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()

	cartRepo := new(MockCartRepository)
	cartRepo.On("ListLines", ctx, cartID).Return([]model.CartLine{
		testLine(cartID, testProduct(1, "10.00", "", 50), 2),
		testLine(cartID, testProduct(2, "5.00", "6.00", 50), 1),
	}, nil)

	totals, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).CalculateTotals(ctx, cartID)

	require.NoError(t, err)
	assert.Equal(t, "25.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", totals.Discount.StringFixed(2))
	assert.Equal(t, 3, totals.ItemCount)
}

func TestCartService_SyncPrices(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()

	stale := testLine(cartID, testProduct(1, "4.00", "", 10), 1)
	stale.Product.Price = dec("4.50")
	fresh := testLine(cartID, testProduct(2, "9.00", "", 10), 1)

	cartRepo := new(MockCartRepository)
	cartRepo.On("ListLines", ctx, cartID).Return([]model.CartLine{stale, fresh}, nil)
	cartRepo.On("UpdateItemPrice", ctx, stale.Item.ID, mock.MatchedBy(func(p decimal.Decimal) bool {
		return p.Equal(dec("4.50"))
	}), mock.Anything).Return(nil)

	result, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).SyncPrices(ctx, cartID)

	require.NoError(t, err)
	assert.True(t, result.Updated)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, stale.Item.ID, result.Updates[0].ItemID)
	assert.True(t, dec("4.00").Equal(result.Updates[0].OldPrice))
	assert.True(t, dec("4.50").Equal(result.Updates[0].NewPrice))
	cartRepo.AssertNumberOfCalls(t, "UpdateItemPrice", 1)
}

func TestCartService_MergeGuestCart(t *testing.T) {
	ctx := context.Background()
	guestCart := &model.Cart{ID: uuid.New(), Status: model.CartStatusActive}
	userCart := &model.Cart{ID: uuid.New(), Status: model.CartStatusActive}
	userID := int64(42)

	t.Run("Out of stock line is skipped", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)

		inStock := testProduct(1, "3.00", "", 10)
		soldOut := testProduct(2, "7.00", "", 0)

		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-1")).Return(guestCart, nil)
		cartRepo.On("ListLines", ctx, guestCart.ID).Return([]model.CartLine{
			testLine(guestCart.ID, inStock, 2),
			testLine(guestCart.ID, soldOut, 1),
		}, nil)
		cartRepo.On("GetOrCreateActive", ctx, model.UserIdentity(userID), (*time.Time)(nil)).Return(userCart, nil)
		cartRepo.On("GetByID", ctx, userCart.ID).Return(userCart, nil)
		productRepo.On("GetByID", ctx, int64(1)).Return(inStock, nil)
		productRepo.On("GetByID", ctx, int64(2)).Return(soldOut, nil)
		cartRepo.On("GetItemByProduct", ctx, userCart.ID, mock.Anything).Return(nil, nil)
		cartRepo.On("UpsertItem", ctx, mock.MatchedBy(func(i *model.CartItem) bool {
			return i.CartID == userCart.ID && i.ProductID == 1 && i.Quantity == 2
		})).Return(&model.CartItem{ID: uuid.New(), CartID: userCart.ID, ProductID: 1, Quantity: 2}, nil)
		cartRepo.On("MarkCompleted", ctx, guestCart.ID).Return(nil)

		result, err := newTestCartService(cartRepo, productRepo, time.Now()).MergeGuestCart(ctx, "sess-1", userID)

		require.NoError(t, err)
		assert.True(t, result.Merged)
		cartRepo.AssertNumberOfCalls(t, "UpsertItem", 1)
		cartRepo.AssertCalled(t, "MarkCompleted", ctx, guestCart.ID)
	})

	t.Run("Line above the add limit is merged when stock covers it", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)

		bulk := testProduct(3, "0.10", "", 500)

		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-4")).Return(guestCart, nil)
		cartRepo.On("ListLines", ctx, guestCart.ID).Return([]model.CartLine{
			testLine(guestCart.ID, bulk, 150),
		}, nil)
		cartRepo.On("GetOrCreateActive", ctx, model.UserIdentity(userID), (*time.Time)(nil)).Return(userCart, nil)
		productRepo.On("GetByID", ctx, int64(3)).Return(bulk, nil)
		cartRepo.On("GetItemByProduct", ctx, userCart.ID, int64(3)).Return(nil, nil)
		cartRepo.On("UpsertItem", ctx, mock.MatchedBy(func(i *model.CartItem) bool {
			return i.CartID == userCart.ID && i.ProductID == 3 && i.Quantity == 150
		})).Return(&model.CartItem{ID: uuid.New(), CartID: userCart.ID, ProductID: 3, Quantity: 150}, nil)
		cartRepo.On("MarkCompleted", ctx, guestCart.ID).Return(nil)

		result, err := newTestCartService(cartRepo, productRepo, time.Now()).MergeGuestCart(ctx, "sess-4", userID)

		require.NoError(t, err)
		assert.True(t, result.Merged)
		cartRepo.AssertNumberOfCalls(t, "UpsertItem", 1)
	})

	t.Run("Line above the add limit is skipped when stock does not cover it", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)

		bulk := testProduct(3, "0.10", "", 120)

		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-5")).Return(guestCart, nil)
		cartRepo.On("ListLines", ctx, guestCart.ID).Return([]model.CartLine{
			testLine(guestCart.ID, bulk, 150),
		}, nil)
		cartRepo.On("GetOrCreateActive", ctx, model.UserIdentity(userID), (*time.Time)(nil)).Return(userCart, nil)
		productRepo.On("GetByID", ctx, int64(3)).Return(bulk, nil)
		cartRepo.On("GetItemByProduct", ctx, userCart.ID, int64(3)).Return(nil, nil)
		cartRepo.On("MarkCompleted", ctx, guestCart.ID).Return(nil)

		result, err := newTestCartService(cartRepo, productRepo, time.Now()).MergeGuestCart(ctx, "sess-5", userID)

		require.NoError(t, err)
		assert.True(t, result.Merged)
		cartRepo.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything)
	})

	t.Run("No guest cart", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-2")).Return(nil, nil)

		result, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).MergeGuestCart(ctx, "sess-2", userID)

		require.NoError(t, err)
		assert.False(t, result.Merged)
		cartRepo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
	})

	t.Run("Empty guest cart", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-3")).Return(guestCart, nil)
		cartRepo.On("ListLines", ctx, guestCart.ID).Return([]model.CartLine{}, nil)

		result, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).MergeGuestCart(ctx, "sess-3", userID)

		require.NoError(t, err)
		assert.False(t, result.Merged)
	})
}

func TestCartService_Summary(t *testing.T) {
	ctx := context.Background()
	cart := &model.Cart{ID: uuid.New(), Status: model.CartStatusActive}

	cartRepo := new(MockCartRepository)
	cartRepo.On("GetByID", ctx, cart.ID).Return(cart, nil)
	cartRepo.On("ListLines", ctx, cart.ID).Return([]model.CartLine{
		testLine(cart.ID, testProduct(1, "10.00", "", 50), 2),
	}, nil)

	summary, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).Summary(ctx, cart.ID)

	require.NoError(t, err)
	assert.Equal(t, cart.ID, summary.Cart.ID)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "20.00", summary.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, 2, summary.Totals.ItemCount)
	assert.True(t, summary.Validation.Valid)
}

func TestCartService_ItemCount(t *testing.T) {
	ctx := context.Background()

	t.Run("No cart counts zero", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("FindActive", ctx, model.SessionIdentity("sess-1")).Return(nil, nil)

		count, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).
			ItemCount(ctx, model.SessionIdentity("sess-1"))

		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Sums quantities", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cart := &model.Cart{ID: uuid.New()}
		cartRepo.On("FindActive", ctx, model.UserIdentity(3)).Return(cart, nil)
		cartRepo.On("CountItems", ctx, cart.ID).Return(5, nil)

		count, err := newTestCartService(cartRepo, new(MockProductRepository), time.Now()).
			ItemCount(ctx, model.UserIdentity(3))

		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})
}

func TestCartService_SweepExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("DeleteExpired", ctx, now).Return(int64(3), nil)

		deleted, err := newTestCartService(cartRepo, new(MockProductRepository), now).SweepExpired(ctx, now)

		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)
	})

	t.Run("Database error", func(t *testing.T) {
		cartRepo := new(MockCartRepository)
		cartRepo.On("DeleteExpired", ctx, now).Return(int64(0), errors.New("connection reset"))

		_, err := newTestCartService(cartRepo, new(MockProductRepository), now).SweepExpired(ctx, now)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to sweep carts")
	})
}
