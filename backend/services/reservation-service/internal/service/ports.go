package service

import (
	"context"
	"time"

	"evslot/backend/libs/geo"
	"evslot/backend/services/reservation-service/internal/models"
	"evslot/backend/services/reservation-service/internal/repository"
)

// ReservationStore is the durable reservations table.
type ReservationStore interface {
	WithChargerLock(ctx context.Context, chargerID string, fn func(repository.LockedReservations) error) error
	FindOverlapping(ctx context.Context, chargerID string, from, to time.Time) ([]models.Reservation, error)
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error)
	Cancel(ctx context.Context, id string) (*models.Reservation, error)
	ExpireEnded(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

// ChargerStore reads chargers and writes their status.
type ChargerStore interface {
	GetByID(ctx context.Context, id string) (*models.Charger, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Charger, error)
}

// StationStore reads stations.
type StationStore interface {
	GetByID(ctx context.Context, id string) (*models.Station, error)
	Availability(ctx context.Context, stationID string) (*models.StationAvailability, error)
	Search(ctx context.Context, filter models.StationFilter) ([]models.Station, int, error)
	Candidates(ctx context.Context, filter models.StationFilter, box geo.BoundingBox) ([]models.StationLocation, error)
	Hydrate(ctx context.Context, ids []string) ([]models.Station, error)
}

// Broadcaster delivers an event to every member of a room and returns how many clients it
// was queued for.
type Broadcaster interface {
	Broadcast(room, event string, payload interface{}) int
}

// EventSink receives a copy of every published event, e.g. a message broker.
type EventSink interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

// ReservationNotifier is told about every reservation lifecycle change.
type ReservationNotifier interface {
	ReservationCreated(ctx context.Context, reservation models.Reservation)
	ReservationCancelled(ctx context.Context, reservation models.Reservation)
	ReservationExpired(ctx context.Context, reservation models.Reservation)
}
