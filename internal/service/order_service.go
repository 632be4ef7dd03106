package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo    repository.OrderRepository
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	notifier     notify.Publisher
	metrics      *metrics.Metrics
	now          func() time.Time
	orderNumber  OrderNumberFunc
	logger       zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	notifier notify.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		notifier:     notifier,
		metrics:      m,
		now:          time.Now,
		orderNumber:  GenerateOrderNumber,
		logger:       logger.With().Str("service", "order").Logger(),
	}
}

// rollbackUnlessCommitted is deferred right after BeginTx.
func (s *orderService) rollbackUnlessCommitted(ctx context.Context, tx pgx.Tx, committed *bool) {
	if *committed {
		return
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Error().Err(err).Msg("failed to rollback transaction")
	}
}

func (s *orderService) publish(e notify.Event) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Publish(e) {
		s.logger.Warn().
			Str("event_type", string(e.Type)).
			Str("order_number", e.Order.OrderNumber).
			Msg("notification not queued")
	}
}

// failureReason labels a checkout failure for metrics.
func failureReason(err error) string {
	var de *model.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return model.ErrCodeInternalError
}

// CreateOrderFromCart converts the user's active cart into an order in a
// single transaction: lock the cart, re-validate it, snapshot the items,
// decrement stock and close the cart.
func (s *orderService) CreateOrderFromCart(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.OrderDetail, error) {
	detail, err := s.checkout(ctx, userID, req)
	if err != nil {
		s.metrics.CheckoutFailure(failureReason(err))
		return nil, err
	}

	s.metrics.OrderCreated(string(detail.Order.DeliveryType), string(detail.Order.PaymentMethod))
	s.publish(notify.OrderConfirmed(detail.Order, detail.Items, detail.Order.CreatedAt))

	return detail, nil
}

func validateCheckout(req *model.CheckoutRequest) (model.CheckoutRequest, error) {
	if req == nil {
		return model.CheckoutRequest{}, model.ErrInvalidPayment
	}

	r := *req
	if r.DeliveryType == "" {
		r.DeliveryType = model.DeliveryTypeDelivery
	}
	if !r.DeliveryType.Valid() {
		return r, model.ErrInvalidDelivery
	}
	if !r.PaymentMethod.Valid() {
		return r, model.ErrInvalidPayment
	}
	if r.DeliveryType == model.DeliveryTypeDelivery && r.AddressID == nil {
		return r, model.ErrAddressNotFound.WithMessage("A shipping address is required for delivery")
	}
	return r, nil
}

func (s *orderService) checkout(ctx context.Context, userID int64, req *model.CheckoutRequest) (*model.OrderDetail, error) {
	r, err := validateCheckout(req)
	if err != nil {
		return nil, err
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	committed := false
	defer s.rollbackUnlessCommitted(ctx, tx, &committed)

	cart, err := s.cartRepo.LockActiveForUser(ctx, tx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to lock cart")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if cart == nil {
		return nil, model.ErrEmptyCart
	}

	lines, err := s.cartRepo.ListLinesTx(ctx, tx, cart.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to list cart lines")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if len(lines) == 0 {
		return nil, model.ErrEmptyCart
	}

	if v := ValidateLines(lines); !v.Valid {
		s.logger.Info().
			Int64("user_id", userID).
			Int("errors", len(v.Errors)).
			Msg("checkout rejected: cart has invalid items")
		return nil, model.ErrInvalidCart.WithDetails(v.Errors)
	}

	customer, err := s.customerRepo.GetCustomer(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get customer")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if customer == nil {
		return nil, model.ErrCustomerNotFound
	}

	shipping := model.PickupAddress
	if r.DeliveryType == model.DeliveryTypeDelivery {
		address, err := s.customerRepo.GetAddress(ctx, userID, *r.AddressID)
		if err != nil {
			s.logger.Error().Err(err).Int64("address_id", *r.AddressID).Msg("failed to get address")
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		if address == nil {
			return nil, model.ErrAddressNotFound
		}
		shipping = address.Snapshot()
	}

	now := s.now()
	order := &model.Order{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           model.OrderStatusPending,
		PaymentStatus:    model.PaymentStatusPending,
		PaymentMethod:    r.PaymentMethod,
		ShippingAddress:  shipping,
		DeliveryType:     r.DeliveryType,
		DeliveryDate:     r.DeliveryDate,
		DeliveryTimeSlot: r.DeliveryTimeSlot,
		CustomerName:     customer.FullName(),
		CustomerEmail:    customer.Email,
		CustomerPhone:    customer.Phone,
		CustomerNotes:    r.CustomerNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	items := BuildOrderItems(order.ID, lines, now)
	ApplyOrderTotals(order, items)

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", order.ID.String()).
			Int("item_count", len(items)).
			Msg("failed to create order items")
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}

	for _, l := range lines {
		ok, err := s.productRepo.DecrementStock(ctx, tx, l.Product.ID, l.Item.Quantity)
		if err != nil {
			s.logger.Error().Err(err).Int64("product_id", l.Product.ID).Msg("failed to decrement stock")
			return nil, fmt.Errorf("failed to reserve stock: %w", err)
		}
		if !ok {
			s.logger.Info().
				Int64("product_id", l.Product.ID).
				Int("quantity", l.Item.Quantity).
				Msg("checkout rejected: stock changed")
			return nil, model.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("Not enough stock for %s", l.Product.Name))
		}
	}

	note := "Order created"
	entry := model.OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   order.ID,
		NewStatus: model.OrderStatusPending,
		ChangedBy: &userID,
		Notes:     &note,
		CreatedAt: now,
	}
	if err := s.orderRepo.AppendHistory(ctx, tx, &entry); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to record status history")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.cartRepo.MarkCompletedTx(ctx, tx, cart.ID); err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to close cart")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	committed = true

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int64("user_id", userID).
		Int("item_count", len(items)).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created successfully")

	return &model.OrderDetail{
		Order:   *order,
		Items:   items,
		History: []model.OrderStatusHistory{entry},
	}, nil
}

// insertOrder inserts order under a fresh order number, drawing a new one
// whenever the previous candidate is already taken.
func (s *orderService) insertOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.orderNumber(order.CreatedAt)

		err := s.orderRepo.CreateOrder(ctx, tx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
			return fmt.Errorf("failed to create order: %w", err)
		}

		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Int("attempt", attempt).
			Msg("order number taken, retrying")
	}

	return model.ErrOrderNumberConflict
}

// GetOrder retrieves an order with its items and history.
func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID, actor model.Actor) (*model.OrderDetail, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if !actor.IsAdmin() && !actor.Owns(order.UserID) {
		return nil, model.ErrForbidden
	}

	items, err := s.orderRepo.GetItems(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order items")
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	history, err := s.orderRepo.GetHistory(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order history")
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}

	return &model.OrderDetail{Order: *order, Items: items, History: history}, nil
}

// ListUserOrders returns one page of a user's orders, newest first.
func (s *orderService) ListUserOrders(ctx context.Context, userID int64, filter model.OrderFilter) (*model.OrderPage, error) {
	f := filter.Normalize()
	if f.Status != nil && !IsKnownStatus(*f.Status) {
		return nil, model.ErrInvalidStatus
	}

	orders, total, err := s.orderRepo.ListByUser(ctx, userID, f)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", userID).
			Int("page", f.Page).
			Int("limit", f.Limit).
			Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &model.OrderPage{
		Orders:     orders,
		Pagination: model.NewPagination(total, f),
	}, nil
}

// UpdateOrderStatus moves an order along the status state machine.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, change model.StatusChange) (*model.Order, error) {
	return s.transition(ctx, orderID, status, change, nil)
}

// CancelOrder cancels an order for its owner or an admin. Customers may
// only cancel orders that have not entered preparation.
func (s *orderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor model.Actor, reason string) (*model.Order, error) {
	guard := func(order *model.Order) error {
		if !actor.IsAdmin() && !actor.Owns(order.UserID) {
			return model.ErrForbidden
		}
		if !CanCancel(order.Status, actor.IsAdmin()) {
			return model.ErrOrderNotCancellable
		}
		return nil
	}

	return s.transition(ctx, orderID, model.OrderStatusCancelled, model.StatusChange{
		Actor: actor,
		Notes: reason,
	}, guard)
}

// transition applies a status change under a row lock. guard, when set,
// runs against the locked order before anything is written.
func (s *orderService) transition(
	ctx context.Context,
	orderID uuid.UUID,
	status model.OrderStatus,
	change model.StatusChange,
	guard func(*model.Order) error,
) (*model.Order, error) {
	if !IsKnownStatus(status) {
		return nil, model.ErrInvalidStatus
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	committed := false
	defer s.rollbackUnlessCommitted(ctx, tx, &committed)

	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if guard != nil {
		if err := guard(order); err != nil {
			return nil, err
		}
	}

	previous := order.Status
	if !CanTransition(previous, status) {
		return nil, model.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("Cannot change status from %s to %s", previous, status))
	}

	now := s.now()
	order.Status = status
	order.UpdatedAt = now

	switch status {
	case model.OrderStatusCancelled:
		if err := s.restoreStock(ctx, tx, order.ID); err != nil {
			return nil, err
		}
		reason := change.Notes
		if reason == "" {
			reason = model.DefaultCancellationReason
		}
		order.CancelledAt = &now
		order.CancellationReason = &reason

	case model.OrderStatusDelivered:
		order.CompletedAt = &now
		order.PaymentStatus = model.PaymentStatusPaid
		if order.PaidAt == nil {
			order.PaidAt = &now
		}

	case model.OrderStatusShipped:
		if change.TrackingNumber != "" {
			tracking := change.TrackingNumber
			order.TrackingNumber = &tracking
		}
	}

	if change.Actor.IsAdmin() && change.Notes != "" && status != model.OrderStatusCancelled {
		notes := change.Notes
		order.AdminNotes = &notes
	}

	if err := s.orderRepo.UpdateState(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order state")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	entry := model.OrderStatusHistory{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: &previous,
		NewStatus:      status,
		ChangedBy:      change.Actor.UserID,
		CreatedAt:      now,
	}
	if change.Notes != "" {
		notes := change.Notes
		entry.Notes = &notes
	}
	if err := s.orderRepo.AppendHistory(ctx, tx, &entry); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to record status history")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	committed = true

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("order status updated")

	s.metrics.StatusTransition(string(previous), string(status))
	s.publish(notify.StatusChanged(*order, StatusMessage(status), now))

	return order, nil
}

// restoreStock returns every item of the order to the shelf.
func (s *orderService) restoreStock(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	items, err := s.orderRepo.GetItemsTx(ctx, tx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order items")
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	for _, it := range items {
		if err := s.productRepo.RestoreStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			s.logger.Error().Err(err).
				Str("order_id", orderID.String()).
				Int64("product_id", it.ProductID).
				Msg("failed to restore stock")
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	return nil
}

// UpdatePaymentStatus records the payment state of an order.
func (s *orderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status model.PaymentStatus, reference string) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus.WithMessage("Unknown payment status")
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	committed := false
	defer s.rollbackUnlessCommitted(ctx, tx, &committed)

	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	now := s.now()
	order.PaymentStatus = status
	order.UpdatedAt = now
	if reference != "" {
		order.PaymentReference = &reference
	}
	if status == model.PaymentStatusPaid && order.PaidAt == nil {
		order.PaidAt = &now
	}

	if err := s.orderRepo.UpdateState(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to update payment")
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	committed = true

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("payment_status", string(status)).
		Msg("payment status updated")

	return order, nil
}
