package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"evslot/backend/services/reservation-service/internal/http/middleware"
	"evslot/backend/services/reservation-service/internal/models"
)

// ChargerStatusUpdater applies charger status reports.
type ChargerStatusUpdater interface {
	UpdateStatus(ctx context.Context, chargerID, status string) (*models.Charger, error)
}

// StationChangeNotifier reacts to station CRUD done elsewhere.
type StationChangeNotifier interface {
	StationChanged(ctx context.Context, stationID string)
}

// InternalHandlers serves the operator endpoints under /internal.
type InternalHandlers struct {
	status   ChargerStatusUpdater
	stations StationChangeNotifier
	logger   *zap.Logger
}

// NewInternalHandlers returns handlers.
func NewInternalHandlers(status ChargerStatusUpdater, stations StationChangeNotifier, logger *zap.Logger) *InternalHandlers {
	return &InternalHandlers{status: status, stations: stations, logger: logger}
}

// UpdateChargerStatus handles PATCH /internal/chargers/{chargerID}/status.
func (h *InternalHandlers) UpdateChargerStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	charger, err := h.status.UpdateStatus(r.Context(), chi.URLParam(r, "chargerID"), req.Status)
	if err != nil {
		writeServiceError(w, h.logger, "update charger status", err)
		return
	}
	h.logger.Info("charger status reported",
		zap.String("charger_id", charger.ID),
		zap.String("status", charger.Status),
		zap.String("reported_by", reporter(r.Context())),
	)
	writeJSON(w, http.StatusOK, charger)
}

// reporter names the caller of an internal endpoint: its token role, or the shared key.
func reporter(ctx context.Context) string {
	if role := middleware.RoleFromContext(ctx); role != "" {
		return role
	}
	return "internal-key"
}

// StationChanged handles POST /internal/stations/{stationID}/changed.
func (h *InternalHandlers) StationChanged(w http.ResponseWriter, r *http.Request) {
	stationID := strings.TrimSpace(chi.URLParam(r, "stationID"))
	if stationID == "" {
		writeError(w, http.StatusBadRequest, "stationID is required")
		return
	}
	h.stations.StationChanged(r.Context(), stationID)
	w.WriteHeader(http.StatusNoContent)
}
