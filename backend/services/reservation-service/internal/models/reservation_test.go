package models

import "testing"

func TestReservationIsBlocking(t *testing.T) {
	cases := map[string]bool{
		ReservationStatusPending:   true,
		ReservationStatusConfirmed: true,
		ReservationStatusCancelled: false,
		ReservationStatusExpired:   false,
		ReservationStatusActive:    false,
		ReservationStatusCompleted: false,
	}
	for status, want := range cases {
		if got := (Reservation{Status: status}).IsBlocking(); got != want {
			t.Fatalf("%s: expected blocking=%v, got %v", status, want, got)
		}
	}
}
