package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the application's Prometheus collectors on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	OrdersCreated  *prometheus.CounterVec
	CheckoutFailed *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	NotifyDropped  prometheus.Counter
	CartsSwept     prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders created from carts.",
		}, []string{"delivery_type", "payment_method"}),
		CheckoutFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "checkout_failures_total",
			Help:      "Checkouts that were rolled back, by reason.",
		}, []string{"reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Order status transitions applied.",
		}, []string{"from", "to"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries per sink and outcome.",
		}, []string{"sink", "outcome"}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch queue was full or closed.",
		}),
		CartsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "carts",
			Name:      "swept_total",
			Help:      "Expired guest carts deleted.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.LatencyMS,
		m.OrdersCreated,
		m.CheckoutFailed,
		m.Transitions,
		m.Notifications,
		m.NotifyDropped,
		m.CartsSwept,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, durationMS float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(durationMS)
}

// OrderCreated counts a committed checkout.
func (m *Metrics) OrderCreated(deliveryType, paymentMethod string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(deliveryType, paymentMethod).Inc()
}

// CheckoutFailure counts a rolled back checkout.
func (m *Metrics) CheckoutFailure(reason string) {
	if m == nil {
		return
	}
	m.CheckoutFailed.WithLabelValues(reason).Inc()
}

// StatusTransition counts an applied order status change.
func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// NotificationDelivered counts a delivery attempt outcome for a sink.
func (m *Metrics) NotificationDelivered(sink string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Notifications.WithLabelValues(sink, outcome).Inc()
}

// NotificationDropped counts an event that never reached the queue.
func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.NotifyDropped.Inc()
}

// CartsDeleted counts guest carts removed by the sweeper.
func (m *Metrics) CartsDeleted(n int64) {
	if m == nil {
		return
	}
	m.CartsSwept.Add(float64(n))
}
