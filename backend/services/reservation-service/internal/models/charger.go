package models

import (
	"strings"
	"time"
)

// Charger status values.
const (
	ChargerStatusAvailable   = "AVAILABLE"
	ChargerStatusOccupied    = "OCCUPIED"
	ChargerStatusOffline     = "OFFLINE"
	ChargerStatusMaintenance = "MAINTENANCE"
)

// Charger is a single connector at a station.
type Charger struct {
	ID            string    `json:"id"`
	StationID     string    `json:"stationId"`
	ConnectorType string    `json:"connectorType"`
	PowerKW       float64   `json:"powerKw"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NormalizeChargerStatus upper-cases status and maps the IN_USE alias to OCCUPIED. The second
// result is false for anything outside the known status set.
func NormalizeChargerStatus(status string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(status))
	if s == "IN_USE" {
		s = ChargerStatusOccupied
	}
	switch s {
	case ChargerStatusAvailable, ChargerStatusOccupied, ChargerStatusOffline, ChargerStatusMaintenance:
		return s, true
	}
	return "", false
}
