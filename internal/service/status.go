package service

import "storefront/internal/model"

// allowedTransitions is the order status state machine.
var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:  {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusReady, model.OrderStatusCancelled},
	model.OrderStatusReady:      {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered},
	model.OrderStatusDelivered:  {},
	model.OrderStatusCancelled:  {},
	model.OrderStatusRefunded:   {},
}

var statusMessages = map[model.OrderStatus]string{
	model.OrderStatusPending:    "Order pending confirmation",
	model.OrderStatusConfirmed:  "Order confirmed",
	model.OrderStatusProcessing: "Order being prepared",
	model.OrderStatusReady:      "Order ready for delivery",
	model.OrderStatusShipped:    "Order shipped",
	model.OrderStatusDelivered:  "Order delivered",
	model.OrderStatusCancelled:  "Order cancelled",
	model.OrderStatusRefunded:   "Order refunded",
}

// IsKnownStatus reports whether s is part of the state machine.
func IsKnownStatus(s model.OrderStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.OrderStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// CanCancel reports whether an order in status s may be cancelled. Customers
// may only cancel before preparation starts; elevated actors may cancel
// wherever the state machine allows it.
func CanCancel(s model.OrderStatus, elevated bool) bool {
	if !CanTransition(s, model.OrderStatusCancelled) {
		return false
	}
	if elevated {
		return true
	}
	return s == model.OrderStatusPending || s == model.OrderStatusConfirmed
}

// StatusMessage is the customer-facing description of s.
func StatusMessage(s model.OrderStatus) string {
	if m, ok := statusMessages[s]; ok {
		return m
	}
	return string(s)
}
