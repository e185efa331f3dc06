package geo

import (
	"math"
	"testing"
)

func TestDistanceKnownPair(t *testing.T) {
	berlin := Point{Latitude: 52.5200, Longitude: 13.4050}
	munich := Point{Latitude: 48.1351, Longitude: 11.5820}

	got := Distance(berlin, munich)
	// roughly 504 km
	if got < 500_000 || got > 508_000 {
		t.Fatalf("unexpected distance %.0f m", got)
	}
	if Distance(berlin, berlin) != 0 {
		t.Fatalf("distance to self must be zero")
	}
	if math.Abs(Distance(berlin, munich)-Distance(munich, berlin)) > 1e-6 {
		t.Fatalf("distance must be symmetric")
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	origin := Point{Latitude: 40.4168, Longitude: -3.7038}
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		p := Destination(origin, bearing, 1000)
		if d := Distance(origin, p); math.Abs(d-1000) > 0.5 {
			t.Fatalf("bearing %.0f: expected 1000 m, got %.3f", bearing, d)
		}
	}
}

func TestBoundsAroundContainsCircle(t *testing.T) {
	center := Point{Latitude: 59.9139, Longitude: 10.7522}
	radius := 2500.0
	box := BoundsAround(center, radius)

	for bearing := 0.0; bearing < 360; bearing += 15 {
		edge := Destination(center, bearing, radius*0.999)
		if !box.Contains(edge) {
			t.Fatalf("box %+v misses point at bearing %.0f: %+v", box, bearing, edge)
		}
	}
	far := Destination(center, 0, radius*1.5)
	if box.Contains(far) {
		t.Fatalf("box should not contain a point 1.5 radius north")
	}
}

func TestBoundsAroundAntimeridian(t *testing.T) {
	center := Point{Latitude: 0, Longitude: 179.999}
	box := BoundsAround(center, 5000)
	if !box.CrossesAntimeridian() {
		t.Fatalf("expected wrap-around box, got %+v", box)
	}
	if !box.Contains(Point{Latitude: 0, Longitude: -179.99}) {
		t.Fatalf("box should contain point across the antimeridian")
	}
}

func TestValidate(t *testing.T) {
	if err := (Point{Latitude: 91}).Validate(); err == nil {
		t.Fatalf("expected latitude error")
	}
	if err := (Point{Longitude: -181}).Validate(); err == nil {
		t.Fatalf("expected longitude error")
	}
	if err := (Point{Latitude: 45, Longitude: 45}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
