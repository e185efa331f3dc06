package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	gorillahandlers "github.com/gorilla/handlers"
	"go.uber.org/zap"

	"evslot/backend/services/reservation-service/internal/http/handlers"
	"evslot/backend/services/reservation-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Reservations   *handlers.ReservationHandlers
	Stations       *handlers.StationsHandlers
	Internal       *handlers.InternalHandlers
	HealthHandler  http.HandlerFunc
	WSHandler      http.HandlerFunc
	Auth           *middleware.Authenticator
	InternalKey    string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))

	r.Get("/health", deps.HealthHandler)
	r.Get("/ws", deps.WSHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stations", deps.Stations.List)
		r.Get("/stations/{stationID}/availability", deps.Stations.Availability)
		r.Get("/chargers/{chargerID}/slots", deps.Reservations.Slots)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Authenticate)
			r.Post("/reservations", deps.Reservations.Create)
			r.Get("/reservations", deps.Reservations.ListMine)
			r.Get("/reservations/{id}", deps.Reservations.Get)
			r.Delete("/reservations/{id}", deps.Reservations.Cancel)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(deps.Auth.RequireOperator(deps.InternalKey))
		r.Patch("/chargers/{chargerID}/status", deps.Internal.UpdateChargerStatus)
		r.Post("/stations/{stationID}/changed", deps.Internal.StationChanged)
	})

	return withCORS(r, deps.AllowedOrigins)
}

func withCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return h
	}
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type", middleware.InternalKeyHeader}),
	)(h)
}
