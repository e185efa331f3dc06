package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"evslot/backend/services/reservation-service/internal/models"
)

// StationReader is the projector as seen by HTTP handlers.
type StationReader interface {
	SearchStations(ctx context.Context, filter models.StationFilter) (*models.StationPage, error)
	StationAvailability(ctx context.Context, stationID string) (*models.StationAvailability, error)
}

// StationsHandlers serves station search and availability.
type StationsHandlers struct {
	projector StationReader
	logger    *zap.Logger
}

// NewStationsHandlers returns handler.
func NewStationsHandlers(projector StationReader, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{projector: projector, logger: logger}
}

// List handles GET /api/stations.
func (h *StationsHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStationFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.projector.SearchStations(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "search stations", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Availability handles GET /api/stations/{stationID}/availability.
func (h *StationsHandlers) Availability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.projector.StationAvailability(r.Context(), chi.URLParam(r, "stationID"))
	if err != nil {
		writeServiceError(w, h.logger, "station availability", err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func parseStationFilter(q url.Values) (models.StationFilter, error) {
	filter := models.StationFilter{
		Status:      strings.TrimSpace(q.Get("status")),
		City:        strings.TrimSpace(q.Get("city")),
		Operator:    strings.TrimSpace(q.Get("operator")),
		ChargerType: strings.TrimSpace(q.Get("chargerType")),
	}

	var err error
	if filter.Page, err = intParam(q, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Latitude, err = floatParam(q, "latitude"); err != nil {
		return filter, err
	}
	if filter.Longitude, err = floatParam(q, "longitude"); err != nil {
		return filter, err
	}
	if filter.Radius, err = floatParam(q, "radius"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}
