package models

import "testing"

func TestStationFilterNormalizedRadius(t *testing.T) {
	lat, lon := 52.52, 13.40

	f := StationFilter{Latitude: &lat, Longitude: &lon}.Normalized()
	if f.Radius == nil || *f.Radius != DefaultRadiusMeters {
		t.Fatalf("missing radius must default to %d, got %v", DefaultRadiusMeters, f.Radius)
	}

	zero := 0.0
	f = StationFilter{Latitude: &lat, Longitude: &lon, Radius: &zero}.Normalized()
	if f.Radius == nil || *f.Radius != 0 {
		t.Fatalf("explicit radius must be kept for validation, got %v", f.Radius)
	}

	f = StationFilter{}.Normalized()
	if f.Radius != nil || f.Page != DefaultPage || f.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults %+v", f)
	}
}
