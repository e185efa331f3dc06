package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"evslot/backend/libs/cache"
	"evslot/backend/libs/geo"
	"evslot/backend/services/reservation-service/internal/models"
	"evslot/backend/services/reservation-service/internal/repository"
)

var testNow = time.Date(2030, 1, 10, 8, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2030, 1, 10, hour, minute, 0, 0, time.UTC)
}

// fakeReservations keeps reservations in memory and serializes writers per charger.
type fakeReservations struct {
	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	rows      map[string]models.Reservation
	order     []string
	findCalls int
	insertErr error
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{
		locks: make(map[string]*sync.Mutex),
		rows:  make(map[string]models.Reservation),
	}
}

func (f *fakeReservations) chargerLock(chargerID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[chargerID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[chargerID] = l
	}
	return l
}

func (f *fakeReservations) WithChargerLock(ctx context.Context, chargerID string, fn func(repository.LockedReservations) error) error {
	l := f.chargerLock(chargerID)
	l.Lock()
	defer l.Unlock()
	return fn(f)
}

func (f *fakeReservations) FindOverlapping(ctx context.Context, chargerID string, from, to time.Time) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++

	out := make([]models.Reservation, 0)
	for _, id := range f.order {
		r := f.rows[id]
		if r.ChargerID == chargerID && r.IsBlocking() && r.ReservedFrom.Before(to) && from.Before(r.ReservedTo) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedFrom.Before(out[j].ReservedFrom) })
	return out, nil
}

func (f *fakeReservations) Insert(ctx context.Context, reservation *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	reservation.CreatedAt = testNow.Add(time.Duration(len(f.order)) * time.Second)
	reservation.UpdatedAt = reservation.CreatedAt
	f.rows[reservation.ID] = *reservation
	f.order = append(f.order, reservation.ID)
	return nil
}

func (f *fakeReservations) put(r models.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[r.ID] = r
	f.order = append(f.order, r.ID)
}

func (f *fakeReservations) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeReservations) ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Reservation, 0)
	for i := len(f.order) - 1; i >= 0; i-- {
		if r := f.rows[f.order[i]]; r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservations) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.IsBlocking() {
		return nil, repository.ErrStaleState
	}
	r.Status = models.ReservationStatusCancelled
	f.rows[id] = r
	return &r, nil
}

func (f *fakeReservations) ExpireEnded(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, id := range f.order {
		r := f.rows[id]
		if r.IsBlocking() && !r.ReservedTo.After(now) && len(out) < limit {
			r.Status = models.ReservationStatusExpired
			f.rows[id] = r
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservations) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

type fakeChargers struct {
	mu   sync.Mutex
	rows map[string]models.Charger
}

func newFakeChargers(chargers ...models.Charger) *fakeChargers {
	f := &fakeChargers{rows: make(map[string]models.Charger)}
	for _, c := range chargers {
		f.rows[c.ID] = c
	}
	return f
}

func (f *fakeChargers) GetByID(ctx context.Context, id string) (*models.Charger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeChargers) UpdateStatus(ctx context.Context, id, status string) (*models.Charger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = testNow
	f.rows[id] = c
	return &c, nil
}

func (f *fakeChargers) byStation(stationID string) []models.Charger {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Charger, 0)
	for _, c := range f.rows {
		if c.StationID == stationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeStations struct {
	mu               sync.Mutex
	rows             []models.Station
	chargers         *fakeChargers
	availabilityHits int
	candidateCalls   int
}

func newFakeStations(chargers *fakeChargers, stations ...models.Station) *fakeStations {
	return &fakeStations{rows: stations, chargers: chargers}
}

func (f *fakeStations) find(id string) (models.Station, bool) {
	for _, s := range f.rows {
		if s.ID == id {
			s.Chargers = f.chargers.byStation(id)
			return s, true
		}
	}
	return models.Station{}, false
}

func (f *fakeStations) GetByID(ctx context.Context, id string) (*models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.find(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStations) Availability(ctx context.Context, stationID string) (*models.StationAvailability, error) {
	f.mu.Lock()
	f.availabilityHits++
	_, ok := f.find(stationID)
	f.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	av := &models.StationAvailability{StationID: stationID, UpdatedAt: testNow}
	for _, c := range f.chargers.byStation(stationID) {
		av.Total++
		switch c.Status {
		case models.ChargerStatusAvailable:
			av.Available++
		case models.ChargerStatusOccupied:
			av.Occupied++
		case models.ChargerStatusOffline:
			av.Offline++
		case models.ChargerStatusMaintenance:
			av.Maintenance++
		}
	}
	return av, nil
}

func (f *fakeStations) matches(s models.Station, filter models.StationFilter) bool {
	if filter.City != "" && !strings.Contains(strings.ToLower(s.City), strings.ToLower(filter.City)) {
		return false
	}
	if filter.Status != "" && !strings.EqualFold(s.Status, filter.Status) {
		return false
	}
	return true
}

func (f *fakeStations) Search(ctx context.Context, filter models.StationFilter) ([]models.Station, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Station
	for _, s := range f.rows {
		if f.matches(s, filter) {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStations) Candidates(ctx context.Context, filter models.StationFilter, box geo.BoundingBox) ([]models.StationLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidateCalls++
	var out []models.StationLocation
	for _, s := range f.rows {
		if f.matches(s, filter) && box.Contains(geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}) {
			out = append(out, models.StationLocation{ID: s.ID, Latitude: s.Latitude, Longitude: s.Longitude})
		}
	}
	return out, nil
}

func (f *fakeStations) Hydrate(ctx context.Context, ids []string) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Station, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.find(id); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type broadcast struct {
	room    string
	event   string
	payload interface{}
}

type recordingRooms struct {
	mu     sync.Mutex
	events []broadcast
}

func (r *recordingRooms) Broadcast(room, event string, payload interface{}) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, broadcast{room: room, event: event, payload: payload})
	return 1
}

func (r *recordingRooms) inRoom(room string) []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcast
	for _, b := range r.events {
		if b.room == room {
			out = append(out, b)
		}
	}
	return out
}

func (r *recordingRooms) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.events...)
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (s *fakeSink) Publish(ctx context.Context, event string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func newTestCache(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, cache.Options{Namespace: "test"}, zap.NewNop()), mr
}

type fixture struct {
	reservations *fakeReservations
	chargers     *fakeChargers
	stations     *fakeStations
	rooms        *recordingRooms
	sink         *fakeSink
	cache        *cache.Store
	redis        *miniredis.Miniredis
	publisher    *Publisher
	ledger       *Ledger
	projector    *Projector
	status       *ChargerStatusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chargers := newFakeChargers(
		models.Charger{ID: "c1", StationID: "s1", ConnectorType: "CCS", PowerKW: 150, Status: models.ChargerStatusAvailable},
		models.Charger{ID: "c2", StationID: "s1", ConnectorType: "TYPE2", PowerKW: 22, Status: models.ChargerStatusAvailable},
		models.Charger{ID: "c3", StationID: "s2", ConnectorType: "CCS", PowerKW: 50, Status: models.ChargerStatusOffline},
	)
	stations := newFakeStations(chargers,
		models.Station{ID: "s1", Name: "Alexanderplatz", City: "Berlin", Latitude: 52.5219, Longitude: 13.4132, Status: models.StationStatusActive, CreatedAt: testNow.Add(-2 * time.Hour)},
		models.Station{ID: "s2", Name: "Potsdamer Platz", City: "Berlin", Latitude: 52.5096, Longitude: 13.3760, Status: models.StationStatusActive, CreatedAt: testNow.Add(-1 * time.Hour)},
	)
	store, mr := newTestCache(t)
	rooms := &recordingRooms{}
	sink := &fakeSink{}
	reservations := newFakeReservations()

	ids := 0
	var idMu sync.Mutex
	publisher := NewPublisher(store, rooms, sink, time.Second, zap.NewNop())
	ledger := NewLedger(reservations, chargers, stations, store, publisher, LedgerOptions{
		SlotsTTL: time.Minute,
		Now:      func() time.Time { return testNow },
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			ids++
			return fmt.Sprintf("r%d", ids)
		},
	}, zap.NewNop())
	projector := NewProjector(stations, store, ProjectorOptions{}, zap.NewNop())
	status := NewChargerStatusService(chargers, projector, publisher, zap.NewNop())

	return &fixture{
		reservations: reservations,
		chargers:     chargers,
		stations:     stations,
		rooms:        rooms,
		sink:         sink,
		cache:        store,
		redis:        mr,
		publisher:    publisher,
		ledger:       ledger,
		projector:    projector,
		status:       status,
	}
}

func requireErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
