package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stablepay/vault-indexer/internal/application/services"
)

// StatusHandler handles HTTP requests for indexing status and anomalies
type StatusHandler struct {
	service *services.StatusService
	logger  *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(service *services.StatusService, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the status routes
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/anomalies", h.GetAnomalies)
}

// GetStatus handles GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response, err := h.service.GetStatus(ctx)
	if err != nil {
		h.logger.Error("Failed to get status", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetAnomalies handles GET /anomalies
func (h *StatusHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePagination(r, 100, 0)

	response, err := h.service.GetAnomalies(ctx, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get anomalies", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get anomalies")
		return
	}

	respondJSON(w, http.StatusOK, response)
}
