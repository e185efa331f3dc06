package models

import "time"

// Station status values.
const (
	StationStatusActive      = "ACTIVE"
	StationStatusInactive    = "INACTIVE"
	StationStatusMaintenance = "MAINTENANCE"
)

// Station groups chargers at one location.
type Station struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	City         string    `json:"city"`
	Address      string    `json:"address"`
	OperatorID   int64     `json:"operatorId"`
	OperatorName string    `json:"operatorName"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Chargers     []Charger `json:"chargers"`
}

// StationView is a search result row.
type StationView struct {
	Station
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

// StationLocation is the minimal projection used for proximity filtering.
type StationLocation struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// StationAvailability counts chargers of a station by status.
type StationAvailability struct {
	StationID   string    `json:"stationId"`
	Total       int       `json:"total"`
	Available   int       `json:"available"`
	Occupied    int       `json:"occupied"`
	Offline     int       `json:"offline"`
	Maintenance int       `json:"maintenance"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PageMeta describes a paginated result.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// StationPage is a page of search results.
type StationPage struct {
	Data []StationView `json:"data"`
	Meta PageMeta      `json:"meta"`
}
