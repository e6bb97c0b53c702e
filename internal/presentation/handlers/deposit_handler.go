package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/application/services"
	"github.com/stablepay/vault-indexer/internal/domain/entities"
)

// DepositHandler handles HTTP requests for deposit events
type DepositHandler struct {
	service *services.DepositService
	logger  *zap.Logger
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(service *services.DepositService, logger *zap.Logger) *DepositHandler {
	return &DepositHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the deposit routes
func (h *DepositHandler) RegisterRoutes(r chi.Router) {
	r.Get("/deposits", h.GetDeposits)
	r.Get("/deposits/payer/{payer}", h.GetDepositsByPayer)
	r.Get("/orders/{orderID}/deposits", h.GetDepositsByOrder)
}

// GetDeposits handles GET /deposits
func (h *DepositHandler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := entities.DefaultDepositEventFilter()

	if v := r.URL.Query().Get("chain"); v != "" {
		chain := v
		filter.ChainID = &chain
	}
	if v := r.URL.Query().Get("order"); v != "" {
		id := strings.ToLower(v)
		filter.OrderID = &id
	}
	if v := r.URL.Query().Get("payer"); v != "" {
		payer := strings.ToLower(v)
		filter.Payer = &payer
	}
	if v := r.URL.Query().Get("processed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Processed = &b
		}
	}
	if v := r.URL.Query().Get("needs_review"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.NeedsReview = &b
		}
	}
	if v := r.URL.Query().Get("from_position"); v != "" {
		if pos, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.FromPosition = &pos
		}
	}
	if v := r.URL.Query().Get("to_position"); v != "" {
		if pos, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ToPosition = &pos
		}
	}
	filter.Limit, filter.Offset = parsePagination(r, filter.Limit, filter.Offset)

	response, err := h.service.GetDeposits(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to get deposits", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get deposits")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetDepositsByPayer handles GET /deposits/payer/{payer}
func (h *DepositHandler) GetDepositsByPayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payer := chi.URLParam(r, "payer")

	limit, offset := parsePagination(r, 100, 0)

	response, err := h.service.GetDepositsByPayer(ctx, payer, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get deposits by payer", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get deposits")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetDepositsByOrder handles GET /orders/{orderID}/deposits
func (h *DepositHandler) GetDepositsByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	if !isValidOrderID(orderID) {
		respondError(w, http.StatusBadRequest, "Invalid order id format")
		return
	}

	limit, offset := parsePagination(r, 100, 0)

	response, err := h.service.GetDepositsByOrder(ctx, orderID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get deposits by order", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get deposits")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

func parsePagination(r *http.Request, limit, offset int) (int, int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// isValidOrderID checks the canonical 0x-prefixed 32-byte hex form
func isValidOrderID(id string) bool {
	if len(id) != 66 {
		return false
	}
	if !strings.HasPrefix(id, "0x") {
		return false
	}
	for _, c := range id[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
