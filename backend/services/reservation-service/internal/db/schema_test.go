package db

import (
	"regexp"
	"strings"
	"testing"
)

func TestSchemaGuardsChargerDeleteWithLiveReservations(t *testing.T) {
	if !strings.Contains(schema, "BEFORE DELETE ON chargers") {
		t.Fatalf("charger delete guard trigger missing from schema")
	}
	if !strings.Contains(schema, "ERRCODE = 'restrict_violation'") {
		t.Fatalf("guard must raise restrict_violation")
	}

	guard := regexp.MustCompile(`(?s)FUNCTION chargers_reject_delete_with_live_reservations\(\).*?status IN \(([^)]*)\)`)
	m := guard.FindStringSubmatch(schema)
	if m == nil {
		t.Fatalf("guard function status filter not found")
	}
	for _, status := range []string{"'PENDING'", "'CONFIRMED'", "'ACTIVE'"} {
		if !strings.Contains(m[1], status) {
			t.Fatalf("guard must reject deletes with %s reservations, filter is %s", status, m[1])
		}
	}
	for _, status := range []string{"'CANCELLED'", "'EXPIRED'", "'COMPLETED'"} {
		if strings.Contains(m[1], status) {
			t.Fatalf("terminal %s reservations must not block deletes", status)
		}
	}
}
