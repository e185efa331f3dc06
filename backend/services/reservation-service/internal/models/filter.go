package models

// Search paging bounds.
const (
	DefaultPage         = 1
	DefaultLimit        = 20
	MaxLimit            = 100
	DefaultRadiusMeters = 5000
)

// StationFilter narrows a station search. Latitude and Longitude must be set together.
type StationFilter struct {
	Page        int
	Limit       int
	Status      string
	City        string
	Operator    string
	ChargerType string
	Latitude    *float64
	Longitude   *float64
	Radius      *float64
}

// HasPoint reports whether the filter carries a search center.
func (f StationFilter) HasPoint() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Normalized applies paging defaults and the default radius.
func (f StationFilter) Normalized() StationFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.HasPoint() && f.Radius == nil {
		r := float64(DefaultRadiusMeters)
		f.Radius = &r
	}
	return f
}

// Offset returns the number of rows skipped before the current page.
func (f StationFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// CacheParams returns the filter as cache key parameters.
func (f StationFilter) CacheParams() map[string]interface{} {
	return map[string]interface{}{
		"page":        f.Page,
		"limit":       f.Limit,
		"status":      f.Status,
		"city":        f.City,
		"operator":    f.Operator,
		"chargerType": f.ChargerType,
		"latitude":    f.Latitude,
		"longitude":   f.Longitude,
		"radius":      f.Radius,
	}
}
