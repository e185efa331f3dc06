package timerange

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := New(at(10, 0), at(11, 0))

	cases := []struct {
		name  string
		other Range
		want  bool
	}{
		{"identical", New(at(10, 0), at(11, 0)), true},
		{"starts inside", New(at(10, 30), at(11, 30)), true},
		{"ends inside", New(at(9, 30), at(10, 30)), true},
		{"covers", New(at(9, 0), at(12, 0)), true},
		{"inside", New(at(10, 15), at(10, 45)), true},
		{"touches end", New(at(11, 0), at(12, 0)), false},
		{"touches start", New(at(9, 0), at(10, 0)), false},
		{"before", New(at(8, 0), at(9, 0)), false},
		{"after", New(at(12, 0), at(13, 0)), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(base, tc.other); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.other, base); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %s", tc.other)
			}
			if got := OverlapsThreeWay(base, tc.other); got != tc.want {
				t.Fatalf("OverlapsThreeWay = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverlapFormulationsAgree(t *testing.T) {
	// every pair of valid ranges on a 15 minute grid between 08:00 and 12:00
	var ranges []Range
	for s := 0; s < 16; s++ {
		for e := s + 1; e <= 16; e++ {
			ranges = append(ranges, New(at(8, 0).Add(time.Duration(s)*15*time.Minute), at(8, 0).Add(time.Duration(e)*15*time.Minute)))
		}
	}
	for _, a := range ranges {
		for _, b := range ranges {
			if Overlaps(a, b) != OverlapsThreeWay(a, b) {
				t.Fatalf("formulations disagree for %s and %s", a, b)
			}
		}
	}
}

func TestContains(t *testing.T) {
	outer := New(at(8, 0), at(12, 0))
	if !Contains(outer, New(at(8, 0), at(12, 0))) {
		t.Fatalf("range must contain itself")
	}
	if Contains(outer, New(at(11, 0), at(12, 1))) {
		t.Fatalf("range sticking out must not be contained")
	}
	if !ContainsInstant(outer, at(8, 0)) {
		t.Fatalf("From is inclusive")
	}
	if ContainsInstant(outer, at(12, 0)) {
		t.Fatalf("To is exclusive")
	}
}

func TestValid(t *testing.T) {
	if New(at(10, 0), at(10, 0)).Valid() {
		t.Fatalf("empty range must be invalid")
	}
	if New(at(11, 0), at(10, 0)).Valid() {
		t.Fatalf("reversed range must be invalid")
	}
	if !New(at(10, 0), at(10, 1)).Valid() {
		t.Fatalf("one minute range must be valid")
	}
}

func TestDayAndParseDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	day := Day(time.Date(2026, 3, 10, 1, 30, 0, 0, loc))
	if !day.From.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day start %s", day.From)
	}
	if day.Duration() != 24*time.Hour {
		t.Fatalf("unexpected day length %s", day.Duration())
	}

	parsed, err := ParseDay("2026-03-09")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	if parsed != day {
		t.Fatalf("ParseDay = %s, want %s", parsed, day)
	}

	if _, err := ParseDay("09/03/2026"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
