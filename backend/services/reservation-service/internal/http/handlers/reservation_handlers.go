package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"evslot/backend/libs/timerange"
	"evslot/backend/services/reservation-service/internal/http/middleware"
	"evslot/backend/services/reservation-service/internal/models"
)

// ReservationService is the ledger as seen by HTTP handlers.
type ReservationService interface {
	CreateReservation(ctx context.Context, userID int64, chargerID string, from, to time.Time) (*models.ReservationDetails, error)
	CancelReservation(ctx context.Context, reservationID string, userID int64) (*models.Reservation, error)
	GetChargerSlots(ctx context.Context, chargerID string, date *time.Time) (*models.ChargerSlots, error)
	GetUserReservations(ctx context.Context, userID int64) ([]models.Reservation, error)
	GetReservation(ctx context.Context, reservationID string, userID int64) (*models.Reservation, error)
}

// ReservationHandlers serves reservation and slot endpoints.
type ReservationHandlers struct {
	ledger ReservationService
	logger *zap.Logger
}

// NewReservationHandlers returns handlers.
func NewReservationHandlers(ledger ReservationService, logger *zap.Logger) *ReservationHandlers {
	return &ReservationHandlers{ledger: ledger, logger: logger}
}

type createReservationRequest struct {
	ChargerID    string     `json:"chargerId"`
	ReservedFrom *time.Time `json:"reservedFrom"`
	ReservedTo   *time.Time `json:"reservedTo"`
}

// Create handles POST /api/reservations.
func (h *ReservationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ChargerID) == "" || req.ReservedFrom == nil || req.ReservedTo == nil {
		writeError(w, http.StatusBadRequest, "chargerId, reservedFrom and reservedTo are required")
		return
	}

	details, err := h.ledger.CreateReservation(r.Context(), userID, req.ChargerID, *req.ReservedFrom, *req.ReservedTo)
	if err != nil {
		writeServiceError(w, h.logger, "create reservation", err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

// ListMine handles GET /api/reservations.
func (h *ReservationHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reservations, err := h.ledger.GetUserReservations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "list reservations", err)
		return
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	writeJSON(w, http.StatusOK, reservations)
}

// Get handles GET /api/reservations/{id}.
func (h *ReservationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reservation, err := h.ledger.GetReservation(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeServiceError(w, h.logger, "get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// Cancel handles DELETE /api/reservations/{id}.
func (h *ReservationHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reservation, err := h.ledger.CancelReservation(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeServiceError(w, h.logger, "cancel reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// Slots handles GET /api/chargers/{chargerID}/slots.
func (h *ReservationHandlers) Slots(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := timerange.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = &day.From
	}

	slots, err := h.ledger.GetChargerSlots(r.Context(), chi.URLParam(r, "chargerID"), date)
	if err != nil {
		writeServiceError(w, h.logger, "charger slots", err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}
