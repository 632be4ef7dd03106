package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus tracks payment outside of any gateway.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusPartial  PaymentStatus = "partial"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusPartial:
		return true
	}
	return false
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentYappy    PaymentMethod = "yappy"
	PaymentNequi    PaymentMethod = "nequi"
	PaymentOther    PaymentMethod = "other"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentCash:     "Cash on delivery",
	PaymentTransfer: "Bank transfer",
	PaymentCard:     "Credit/debit card",
	PaymentYappy:    "Yappy",
	PaymentNequi:    "Nequi",
	PaymentOther:    "Other",
}

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodLabels[m]
	return ok
}

// Label is the human readable name used in notifications.
func (m PaymentMethod) Label() string {
	if l, ok := paymentMethodLabels[m]; ok {
		return l
	}
	return string(m)
}

// DeliveryType selects home delivery or in-store pickup.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// Valid reports whether d is a known delivery type.
func (d DeliveryType) Valid() bool {
	return d == DeliveryTypeDelivery || d == DeliveryTypePickup
}

// DefaultCancellationReason is recorded when a cancellation carries no note.
const DefaultCancellationReason = "Cancelled by customer"

// Order represents an immutable purchase record and its fulfilment state.
type Order struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	OrderNumber        string          `json:"orderNumber" db:"order_number"`
	UserID             int64           `json:"userId" db:"user_id"`
	Status             OrderStatus     `json:"status" db:"status"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	PaymentReference   *string         `json:"paymentReference,omitempty" db:"payment_reference"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount           decimal.Decimal `json:"discount" db:"discount"`
	ShippingCost       decimal.Decimal `json:"shippingCost" db:"shipping_cost"`
	Tax                decimal.Decimal `json:"tax" db:"tax"`
	Total              decimal.Decimal `json:"total" db:"total"`
	ShippingAddress    ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	DeliveryType       DeliveryType    `json:"deliveryType" db:"delivery_type"`
	DeliveryDate       *time.Time      `json:"deliveryDate,omitempty" db:"delivery_date"`
	DeliveryTimeSlot   *string         `json:"deliveryTimeSlot,omitempty" db:"delivery_time_slot"`
	CustomerName       string          `json:"customerName" db:"customer_name"`
	CustomerEmail      string          `json:"customerEmail" db:"customer_email"`
	CustomerPhone      string          `json:"customerPhone" db:"customer_phone"`
	CustomerNotes      *string         `json:"customerNotes,omitempty" db:"customer_notes"`
	AdminNotes         *string         `json:"adminNotes,omitempty" db:"admin_notes"`
	TrackingNumber     *string         `json:"trackingNumber,omitempty" db:"tracking_number"`
	PaidAt             *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CancellationReason *string         `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a snapshot of a purchased product at checkout time.
type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"orderId" db:"order_id"`
	ProductID   int64           `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	ProductSKU  string          `json:"productSku" db:"product_sku"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Discount    decimal.Decimal `json:"discount" db:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	Total       decimal.Decimal `json:"total" db:"total"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// OrderStatusHistory is one append-only entry of an order's status trail.
type OrderStatusHistory struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrderID        uuid.UUID    `json:"orderId" db:"order_id"`
	PreviousStatus *OrderStatus `json:"previousStatus,omitempty" db:"previous_status"`
	NewStatus      OrderStatus  `json:"newStatus" db:"new_status"`
	ChangedBy      *int64       `json:"changedBy,omitempty" db:"changed_by"`
	Notes          *string      `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
}

// OrderDetail is an order with its items and status trail.
type OrderDetail struct {
	Order   Order                `json:"order"`
	Items   []OrderItem          `json:"items"`
	History []OrderStatusHistory `json:"history"`
}

// CheckoutRequest is the payload for converting the active cart into an order.
type CheckoutRequest struct {
	DeliveryType     DeliveryType  `json:"deliveryType"`
	AddressID        *int64        `json:"addressId,omitempty"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	DeliveryDate     *time.Time    `json:"deliveryDate,omitempty"`
	DeliveryTimeSlot *string       `json:"deliveryTimeSlot,omitempty"`
	CustomerNotes    *string       `json:"customerNotes,omitempty"`
}

// StatusChange carries the context of a status transition.
type StatusChange struct {
	Actor          Actor
	Notes          string
	TrackingNumber string
}

// StatusUpdateRequest is the admin payload for moving an order along.
type StatusUpdateRequest struct {
	Status         OrderStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
}

// PaymentUpdateRequest is the admin payload for recording payment state.
type PaymentUpdateRequest struct {
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	PaymentReference string        `json:"paymentReference,omitempty"`
}

// CancelRequest is the customer payload for cancelling an order.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Pagination defaults for order listings.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// OrderFilter narrows a user's order listing.
type OrderFilter struct {
	Page   int
	Limit  int
	Status *OrderStatus
}

// Normalize clamps page and limit to usable values.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset is the number of rows to skip for the filter's page.
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination computes page metadata for total rows under filter f.
func NewPagination(total int, f OrderFilter) Pagination {
	pages := 0
	if f.Limit > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return Pagination{
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: pages,
		HasNext:    f.Page < pages,
		HasPrev:    f.Page > 1,
	}
}

// OrderPage is one page of a user's orders.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Admin listing limits.
const (
	DefaultAdminPageLimit = 20
	DefaultRecentLimit    = 10
	SearchResultLimit     = 20
	MinSearchTermLength   = 2
	TopProductsLimit      = 10
)

// DateRange bounds order creation times. From is inclusive, To exclusive.
// Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// AdminOrderFilter narrows the back-office order listing across all users.
type AdminOrderFilter struct {
	OrderFilter
	DateRange
}

// Normalize clamps page and limit, defaulting the limit to the admin page size.
func (f AdminOrderFilter) Normalize() AdminOrderFilter {
	if f.Limit < 1 {
		f.Limit = DefaultAdminPageLimit
	}
	f.OrderFilter = f.OrderFilter.Normalize()
	return f
}

// AdminOrder is an order with its items, as listed in the back office.
type AdminOrder struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// AdminOrderPage is one page of the back-office order listing.
type AdminOrderPage struct {
	Orders     []AdminOrder `json:"orders"`
	Pagination Pagination   `json:"pagination"`
}

// StatusTotals is the order count and summed total for one status.
type StatusTotals struct {
	Status      OrderStatus     `json:"status"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// ProductSales aggregates sold units and revenue for one product.
type ProductSales struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	TotalSold   int             `json:"totalSold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// OrderStats summarises orders created within a date range.
type OrderStats struct {
	TotalOrders       int             `json:"totalOrders"`
	OrdersByStatus    []StatusTotals  `json:"ordersByStatus"`
	Revenue           decimal.Decimal `json:"revenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	TopProducts       []ProductSales  `json:"topProducts"`
}
