package models

import "time"

// Reservation status values.
const (
	ReservationStatusPending   = "PENDING"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusExpired   = "EXPIRED"
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusCompleted = "COMPLETED"
)

// BlockingStatuses are the states that hold a slot.
var BlockingStatuses = []string{ReservationStatusPending, ReservationStatusConfirmed}

// Reservation is a user's claim on a charger for [ReservedFrom, ReservedTo).
type Reservation struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId"`
	ChargerID    string    `json:"chargerId"`
	StationID    string    `json:"stationId"`
	ReservedFrom time.Time `json:"reservedFrom"`
	ReservedTo   time.Time `json:"reservedTo"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsBlocking reports whether the reservation occupies its slot.
func (r Reservation) IsBlocking() bool {
	for _, status := range BlockingStatuses {
		if r.Status == status {
			return true
		}
	}
	return false
}

// ReservationDetails is a reservation with its charger and station context.
type ReservationDetails struct {
	Reservation
	Charger *Charger `json:"charger,omitempty"`
	Station *Station `json:"station,omitempty"`
}

// ChargerSlots lists the blocking reservations of a charger for one day.
type ChargerSlots struct {
	ChargerID     string        `json:"chargerId"`
	StationID     string        `json:"stationId"`
	ChargerStatus string        `json:"chargerStatus"`
	Date          string        `json:"date"`
	Reservations  []Reservation `json:"reservations"`
}
