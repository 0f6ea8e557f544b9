package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aradit/smsc-gateway/internal/smsc/app"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// AdminHandler exposes the monitoring and route administration endpoints.
type AdminHandler struct {
	stats    *app.StatsService
	routes   *app.RouteAdminService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(stats *app.StatsService, routes *app.RouteAdminService, validate *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		stats:    stats,
		routes:   routes,
		validate: validate,
		logger:   logger.With("handler", "admin"),
	}
}

// RegisterRoutes mounts the admin endpoints on the router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/operators/{operatorID}/stats", h.GetOperatorStats)
	r.Put("/routes", h.UpdateRoutes)
}

// GetOperatorStats handles GET /operators/{operatorID}/stats.
func (h *AdminHandler) GetOperatorStats(w http.ResponseWriter, r *http.Request) {
	operatorID, err := strconv.ParseInt(chi.URLParam(r, "operatorID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid operator ID", "")
		return
	}

	stats, err := h.stats.OperatorStats(r.Context(), operatorID)
	if err != nil {
		if errors.Is(err, domain.ErrOperatorNotFound) {
			respondError(w, http.StatusNotFound, "Operator not found", "")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to compute operator stats", "operator_id", operatorID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to compute operator stats", "")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// UpdateRoutes handles PUT /routes.
func (h *AdminHandler) UpdateRoutes(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoutesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	updates := make([]domain.RouteUpdate, 0, len(req.Routes))
	for _, item := range req.Routes {
		updates = append(updates, domain.RouteUpdate{
			Prefix:     item.Prefix,
			OperatorID: item.OperatorID,
			Priority:   item.Priority,
			Cost:       item.Cost,
		})
	}

	if err := h.routes.UpdateRoutes(r.Context(), updates); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to update routes", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update routes", "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"updated": len(updates)})
}
