package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// AdminHandler handles back-office order and stock operations. Routes are
// guarded by middleware.RequireAdmin.
type AdminHandler struct {
	orders    service.OrderService
	inventory service.InventoryService
	logger    zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(orders service.OrderService, inventory service.InventoryService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		orders:    orders,
		inventory: inventory,
		logger:    logger.With().Str("handler", "admin").Logger(),
	}
}

// adminActor identifies the caller for the status history. API-key callers
// have no user id.
func adminActor(r *http.Request) model.Actor {
	p := principal(r)
	return model.Actor{UserID: p.UserID, Role: model.RoleAdmin}
}

// UpdateStatus handles PUT /api/admin/orders/{id}/status requests.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Status == "" {
		badRequest(w, model.ErrCodeMissingField, "status is required", h.logger)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, req.Status, model.StatusChange{
		Actor:          adminActor(r),
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdatePayment handles PUT /api/admin/orders/{id}/payment requests.
func (h *AdminHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req model.PaymentUpdateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.orders.UpdatePaymentStatus(r.Context(), orderID, req.PaymentStatus, req.PaymentReference)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// AdjustStock handles POST /api/admin/products/{id}/stock requests.
func (h *AdminHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathInt64(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req model.StockAdjustment
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	product, err := h.inventory.AdjustStock(r.Context(), productID, req.Delta)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// ListOrders handles GET /api/admin/orders requests.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page", h.logger)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", h.logger)
	if !ok {
		return
	}
	rng, ok := queryDateRange(w, r, h.logger)
	if !ok {
		return
	}

	filter := model.AdminOrderFilter{
		OrderFilter: model.OrderFilter{Page: page, Limit: limit},
		DateRange:   rng,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := model.OrderStatus(status)
		filter.Status = &s
	}

	result, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/admin/orders/stats requests.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	rng, ok := queryDateRange(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.orders.OrderStats(r.Context(), rng)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Recent handles GET /api/admin/orders/recent requests.
func (h *AdminHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.RecentOrders(r.Context(), limit)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": len(orders), "orders": orders})
}

// Search handles GET /api/admin/orders/search?q= requests.
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	orders, err := h.orders.SearchOrders(r.Context(), term)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": len(orders), "searchTerm": term, "orders": orders})
}
