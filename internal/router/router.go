package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Product *handler.ProductHandler
	Admin   *handler.AdminHandler
}

// Options carries the auth material and collectors the router needs.
type Options struct {
	APIKey    string
	JWTSecret []byte
	Metrics   *metrics.Metrics
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = middleware.MethodNotAllowed()
	r.Use(middleware.Logging(logger, opts.Metrics))

	// Operational endpoints (no identity required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.Use(middleware.Identity(opts.JWTSecret, logger))

	cart := api.PathPrefix("/cart").Subrouter()
	cart.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	cart.HandleFunc("", h.Cart.Get).Methods(http.MethodGet)
	cart.HandleFunc("", h.Cart.Clear).Methods(http.MethodDelete)
	cart.HandleFunc("/count", h.Cart.Count).Methods(http.MethodGet)
	cart.HandleFunc("/validate", h.Cart.Validate).Methods(http.MethodGet)
	cart.HandleFunc("/items", h.Cart.AddItem).Methods(http.MethodPost)
	cart.HandleFunc("/items/{itemId}", h.Cart.UpdateItem).Methods(http.MethodPut)
	cart.HandleFunc("/items/{itemId}", h.Cart.RemoveItem).Methods(http.MethodDelete)
	cart.HandleFunc("/sync-prices", h.Cart.SyncPrices).Methods(http.MethodPost)
	cart.Handle("/merge", middleware.RequireUser(http.HandlerFunc(h.Cart.Merge))).Methods(http.MethodPost)

	orders := api.PathPrefix("/orders").Subrouter()
	orders.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	orders.Use(middleware.RequireUser)
	orders.HandleFunc("", h.Order.Create).Methods(http.MethodPost)
	orders.HandleFunc("", h.Order.List).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", h.Order.GetByID).Methods(http.MethodGet)
	orders.HandleFunc("/{id}/cancel", h.Order.Cancel).Methods(http.MethodPost)

	api.HandleFunc("/products/{id}", h.Product.GetByID).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	admin.Use(middleware.RequireAdmin(opts.APIKey, logger))
	admin.HandleFunc("/orders", h.Admin.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/stats", h.Admin.Stats).Methods(http.MethodGet)
	admin.HandleFunc("/orders/recent", h.Admin.Recent).Methods(http.MethodGet)
	admin.HandleFunc("/orders/search", h.Admin.Search).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.Admin.UpdateStatus).Methods(http.MethodPut)
	admin.HandleFunc("/orders/{id}/payment", h.Admin.UpdatePayment).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}/stock", h.Admin.AdjustStock).Methods(http.MethodPost)

	// Apply outer middleware: Recovery -> CORS -> router
	var wrapped http.Handler = r
	wrapped = middleware.CORS(wrapped)
	wrapped = middleware.Recovery(logger)(wrapped)

	return wrapped
}
