package models

import "time"

// Event names pushed to gateway rooms and the broker.
const (
	EventChargerStatusUpdated = "chargerStatusUpdated"
	EventSlotsUpdated         = "slotsUpdated"
	EventStationAvailability  = "stationAvailability"
)

// Slot change actions.
const (
	SlotActionCreated   = "created"
	SlotActionCancelled = "cancelled"
	SlotActionExpired   = "expired"
)

// ChargerStatusUpdatedEvent is emitted after a charger status write.
type ChargerStatusUpdatedEvent struct {
	ChargerID string    `json:"chargerId"`
	StationID string    `json:"stationId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SlotsUpdatedEvent is emitted whenever a reservation changes the slots of a charger.
type SlotsUpdatedEvent struct {
	ChargerID     string    `json:"chargerId"`
	StationID     string    `json:"stationId"`
	ReservationID string    `json:"reservationId"`
	ReservedFrom  time.Time `json:"reservedFrom"`
	ReservedTo    time.Time `json:"reservedTo"`
	Action        string    `json:"action"`
}

// ChargerRoom is the gateway room for one charger.
func ChargerRoom(chargerID string) string {
	return "charger:" + chargerID
}

// StationRoom is the gateway room for one station.
func StationRoom(stationID string) string {
	return "station:" + stationID
}
