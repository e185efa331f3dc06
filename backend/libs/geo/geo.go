// Package geo provides geodesic helpers for proximity search.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by Distance.
const EarthRadiusMeters = 6371008.8

// ErrInvalidPoint is returned for coordinates outside the WGS84 range.
var ErrInvalidPoint = errors.New("geo: coordinates out of range")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Validate checks latitude and longitude bounds.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return ErrInvalidPoint
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidPoint
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters (haversine).
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Destination returns the point reached from origin after travelling meters along bearing
// (degrees clockwise from north).
func Destination(origin Point, bearing, meters float64) Point {
	delta := meters / EarthRadiusMeters
	theta := radians(bearing)
	lat1 := radians(origin.Latitude)
	lon1 := radians(origin.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Latitude: degrees(lat2), Longitude: normalizeLongitude(degrees(lon2))}
}

// BoundingBox is a lat/lng rectangle. When the box crosses the antimeridian MinLongitude is
// greater than MaxLongitude.
type BoundingBox struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// CrossesAntimeridian reports whether the longitude span wraps around ±180.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.MinLongitude > b.MaxLongitude
}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if p.Latitude < b.MinLatitude || p.Latitude > b.MaxLatitude {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Longitude >= b.MinLongitude || p.Longitude <= b.MaxLongitude
	}
	return p.Longitude >= b.MinLongitude && p.Longitude <= b.MaxLongitude
}

// BoundsAround returns a box that contains every point within meters of center. It is a
// prefilter: callers still compare Distance against the radius.
func BoundsAround(center Point, meters float64) BoundingBox {
	angular := meters / EarthRadiusMeters
	latDelta := degrees(angular)

	minLat := center.Latitude - latDelta
	maxLat := center.Latitude + latDelta
	if minLat <= -90 || maxLat >= 90 {
		return BoundingBox{
			MinLatitude:  math.Max(minLat, -90),
			MaxLatitude:  math.Min(maxLat, 90),
			MinLongitude: -180,
			MaxLongitude: 180,
		}
	}

	lonDelta := degrees(math.Asin(math.Min(1, math.Sin(angular)/math.Cos(radians(center.Latitude)))))
	if lonDelta >= 180 {
		return BoundingBox{MinLatitude: minLat, MaxLatitude: maxLat, MinLongitude: -180, MaxLongitude: 180}
	}

	return BoundingBox{
		MinLatitude:  minLat,
		MaxLatitude:  maxLat,
		MinLongitude: normalizeLongitude(center.Longitude - lonDelta),
		MaxLongitude: normalizeLongitude(center.Longitude + lonDelta),
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
