package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CartHandler handles cart-related HTTP requests for the caller's active cart.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// activeCart resolves the caller's cart, creating it on first access.
func (h *CartHandler) activeCart(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cart, err := h.service.GetOrCreateCart(r.Context(), principal(r).CartIdentity())
	if err != nil {
		respondError(w, err, h.logger)
		return uuid.Nil, false
	}
	return cart.ID, true
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), cartID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Count handles GET /api/cart/count requests. It never creates a cart.
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ItemCount(r.Context(), principal(r).CartIdentity())
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// Validate handles GET /api/cart/validate requests.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	validation, err := h.service.ValidateCart(r.Context(), cartID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, validation)
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.ProductID <= 0 {
		badRequest(w, model.ErrCodeMissingField, "productId is required", h.logger)
		return
	}

	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	item, err := h.service.AddItem(r.Context(), cartID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/cart/items/{itemId} requests.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathUUID(w, r, "itemId", h.logger)
	if !ok {
		return
	}

	var req model.UpdateItemRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	item, err := h.service.UpdateItemQuantity(r.Context(), cartID, itemID, req.Quantity)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/cart/items/{itemId} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathUUID(w, r, "itemId", h.logger)
	if !ok {
		return
	}

	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), cartID, itemID); err != nil {
		respondError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/cart requests.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), cartID); err != nil {
		respondError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncPrices handles POST /api/cart/sync-prices requests.
func (h *CartHandler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.activeCart(w, r)
	if !ok {
		return
	}

	result, err := h.service.SyncPrices(r.Context(), cartID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Merge handles POST /api/cart/merge requests. The guest session comes from
// the body, falling back to the session the request carries.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.UserID == nil {
		respondError(w, model.ErrInvalidIdentity, h.logger)
		return
	}

	var req model.MergeCartRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = p.SessionID
	}
	if sessionID == "" {
		badRequest(w, model.ErrCodeMissingField, "sessionId is required", h.logger)
		return
	}

	result, err := h.service.MergeGuestCart(r.Context(), sessionID, *p.UserID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
