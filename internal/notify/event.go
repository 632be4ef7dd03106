package notify

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// EventType names a notification raised by the order pipeline.
type EventType string

const (
	EventOrderConfirmed EventType = "order.confirmed"
	EventStatusChanged  EventType = "order.status_changed"
)

// Event is a post-commit fact about an order.
type Event struct {
	ID                 uuid.UUID              `json:"id"`
	Type               EventType              `json:"type"`
	OccurredAt         time.Time              `json:"occurredAt"`
	Order              model.Order            `json:"order"`
	Items              []model.OrderItem      `json:"items,omitempty"`
	Address            *model.ShippingAddress `json:"address,omitempty"`
	PaymentMethodLabel string                 `json:"paymentMethodLabel,omitempty"`
	NewStatus          model.OrderStatus      `json:"newStatus,omitempty"`
	StatusMessage      string                 `json:"statusMessage,omitempty"`
	TrackingNumber     string                 `json:"trackingNumber,omitempty"`
}

// OrderConfirmed builds the event published after a successful checkout.
func OrderConfirmed(order model.Order, items []model.OrderItem, now time.Time) Event {
	address := order.ShippingAddress
	return Event{
		ID:                 uuid.New(),
		Type:               EventOrderConfirmed,
		OccurredAt:         now,
		Order:              order,
		Items:              items,
		Address:            &address,
		PaymentMethodLabel: order.PaymentMethod.Label(),
	}
}

// StatusChanged builds the event published after a status transition.
func StatusChanged(order model.Order, statusMessage string, now time.Time) Event {
	e := Event{
		ID:            uuid.New(),
		Type:          EventStatusChanged,
		OccurredAt:    now,
		Order:         order,
		NewStatus:     order.Status,
		StatusMessage: statusMessage,
	}
	if order.TrackingNumber != nil {
		e.TrackingNumber = *order.TrackingNumber
	}
	return e
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	// Publish enqueues e and reports whether it was accepted.
	Publish(e Event) bool
}

// Sink delivers events to one downstream channel.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver sends e. Errors wrapped with backoff.Permanent are not retried.
	Deliver(ctx context.Context, e Event) error
}
