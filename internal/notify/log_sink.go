package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every event to the application log. It is the fallback when
// no external channel is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "log-sink").Logger()}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, e Event) error {
	ev := s.logger.Info().
		Str("event_id", e.ID.String()).
		Str("event_type", string(e.Type)).
		Str("order_number", e.Order.OrderNumber).
		Str("customer_email", e.Order.CustomerEmail)

	switch e.Type {
	case EventOrderConfirmed:
		ev = ev.Int("items", len(e.Items)).
			Str("total", e.Order.Total.StringFixed(2)).
			Str("payment_method", e.PaymentMethodLabel)
	case EventStatusChanged:
		ev = ev.Str("status", string(e.NewStatus))
		if e.TrackingNumber != "" {
			ev = ev.Str("tracking_number", e.TrackingNumber)
		}
	}

	ev.Msg("order notification")
	return nil
}
