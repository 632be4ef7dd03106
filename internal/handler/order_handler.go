package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests by checking out the caller's cart.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.UserID == nil {
		respondError(w, model.ErrForbidden.WithMessage("Sign in to place an order"), h.logger)
		return
	}

	var req model.CheckoutRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	detail, err := h.service.CreateOrderFromCart(r.Context(), *p.UserID, &req)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

// List handles GET /api/orders requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.UserID == nil {
		respondError(w, model.ErrForbidden, h.logger)
		return
	}

	query := r.URL.Query()
	var filter model.OrderFilter

	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			badRequest(w, model.ErrCodeInvalidJSON, "invalid page parameter", h.logger)
			return
		}
		filter.Page = page
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			badRequest(w, model.ErrCodeInvalidJSON, "invalid limit parameter", h.logger)
			return
		}
		filter.Limit = limit
	}

	if status := query.Get("status"); status != "" {
		s := model.OrderStatus(status)
		filter.Status = &s
	}

	page, err := h.service.ListUserOrders(r.Context(), *p.UserID, filter)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	detail, err := h.service.GetOrder(r.Context(), orderID, principal(r).Actor())
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Cancel handles POST /api/orders/{id}/cancel requests.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req model.CancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), orderID, principal(r).Actor(), req.Reason)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
