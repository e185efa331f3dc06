// Package timerange implements half-open [From, To) time interval arithmetic.
package timerange

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the calendar-day format accepted by ParseDay.
const DayLayout = "2006-01-02"

// Range is a half-open interval: From is inclusive, To is exclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// New returns the range [from, to) normalized to UTC.
func New(from, to time.Time) Range {
	return Range{From: from.UTC(), To: to.UTC()}
}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool {
	return r.From.Before(r.To)
}

// Duration returns To - From.
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.From.UTC().Format(time.RFC3339), r.To.UTC().Format(time.RFC3339))
}

// Overlaps reports whether a and b share at least one instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Range) bool {
	return a.From.Before(b.To) && b.From.Before(a.To)
}

// OverlapsThreeWay is the case-by-case formulation of Overlaps: b starts inside a,
// b ends inside a, or b covers a entirely. It agrees with Overlaps for valid ranges.
func OverlapsThreeWay(a, b Range) bool {
	startsInside := !b.From.Before(a.From) && b.From.Before(a.To)
	endsInside := b.To.After(a.From) && !b.To.After(a.To)
	covers := !b.From.After(a.From) && !b.To.Before(a.To)
	return startsInside || endsInside || covers
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Range) bool {
	return !inner.From.Before(outer.From) && !inner.To.After(outer.To)
}

// ContainsInstant reports whether t falls inside r.
func ContainsInstant(r Range, t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Day returns the UTC calendar day containing t.
func Day(t time.Time) Range {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Range{From: start, To: start.AddDate(0, 0, 1)}
}

// ParseDay parses a YYYY-MM-DD string (an RFC3339 timestamp is also accepted) and returns
// the UTC day it names.
func ParseDay(value string) (Range, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DayLayout, value); err == nil {
		return Day(t), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return Range{}, fmt.Errorf("timerange: invalid day %q", value)
	}
	return Day(t), nil
}
