package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/application/services"
	"github.com/stablepay/vault-indexer/internal/domain/repositories"
)

// OrderHandler handles HTTP requests for order registration and lookup
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{orderID}", h.GetOrder)
	r.Post("/orders/{orderID}/cancel", h.CancelOrder)
}

// CreateOrder handles POST /orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	order, err := h.service.CreateOrder(ctx, req)
	if err != nil {
		var invalid *services.ErrInvalidOrder
		switch {
		case errors.As(err, &invalid):
			respondError(w, http.StatusBadRequest, invalid.Error())
		case errors.Is(err, repositories.ErrOrderExists):
			respondError(w, http.StatusConflict, "Order already exists")
		default:
			h.logger.Error("Failed to create order", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to create order")
		}
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	if !isValidOrderID(orderID) {
		respondError(w, http.StatusBadRequest, "Invalid order id format")
		return
	}

	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("Failed to get order", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// CancelOrder handles POST /orders/{orderID}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	if !isValidOrderID(orderID) {
		respondError(w, http.StatusBadRequest, "Invalid order id format")
		return
	}

	if err := h.service.CancelOrder(ctx, orderID); err != nil {
		if errors.Is(err, repositories.ErrOrderNotCancellable) {
			respondError(w, http.StatusConflict, "Order is not pending")
			return
		}
		h.logger.Error("Failed to cancel order", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to cancel order")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
