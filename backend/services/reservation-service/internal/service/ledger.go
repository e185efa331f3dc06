package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evslot/backend/libs/cache"
	"evslot/backend/libs/timerange"
	"evslot/backend/services/reservation-service/internal/models"
	"evslot/backend/services/reservation-service/internal/repository"
)

// Ledger owns the reservation lifecycle and the overlap invariant: for one charger no two
// PENDING or CONFIRMED reservations intersect.
type Ledger struct {
	reservations ReservationStore
	chargers     ChargerStore
	stations     StationStore
	cache        *cache.Store
	notifier     ReservationNotifier
	slotsTTL     time.Duration
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// LedgerOptions tunes the ledger.
type LedgerOptions struct {
	SlotsTTL time.Duration
	// Now and NewID default to the wall clock and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// NewLedger builds the reservation ledger.
func NewLedger(
	reservations ReservationStore,
	chargers ChargerStore,
	stations StationStore,
	store *cache.Store,
	notifier ReservationNotifier,
	opts LedgerOptions,
	logger *zap.Logger,
) *Ledger {
	if opts.SlotsTTL <= 0 {
		opts.SlotsTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		reservations: reservations,
		chargers:     chargers,
		stations:     stations,
		cache:        store,
		notifier:     notifier,
		slotsTTL:     opts.SlotsTTL,
		logger:       logger,
		now:          opts.Now,
		newID:        opts.NewID,
	}
}

// CreateReservation books [from, to) on a charger for userID.
func (l *Ledger) CreateReservation(ctx context.Context, userID int64, chargerID string, from, to time.Time) (*models.ReservationDetails, error) {
	slot := timerange.New(from, to)
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: reservedTo must be after reservedFrom", ErrInvalidInput)
	}
	chargerID = strings.TrimSpace(chargerID)
	if chargerID == "" {
		return nil, fmt.Errorf("%w: chargerId is required", ErrInvalidInput)
	}

	charger, err := l.chargers.GetByID(ctx, chargerID)
	if err != nil {
		return nil, translateLookup(err, "charger")
	}
	if !slot.From.After(l.now()) {
		return nil, fmt.Errorf("%w: reservation must start in the future", ErrInvalidInput)
	}

	reservation := models.Reservation{
		ID:           l.newID(),
		UserID:       userID,
		ChargerID:    charger.ID,
		StationID:    charger.StationID,
		ReservedFrom: slot.From,
		ReservedTo:   slot.To,
		Status:       models.ReservationStatusConfirmed,
	}

	// the write must not stop halfway because the client went away
	writeCtx := context.WithoutCancel(ctx)
	err = l.reservations.WithChargerLock(writeCtx, charger.ID, func(locked repository.LockedReservations) error {
		existing, err := locked.FindOverlapping(writeCtx, charger.ID, slot.From, slot.To)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if timerange.Overlaps(slot, timerange.New(other.ReservedFrom, other.ReservedTo)) {
				return ErrConflict
			}
		}
		return locked.Insert(writeCtx, &reservation)
	})
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, repository.ErrOverlap):
		return nil, fmt.Errorf("%w: charger %s is already reserved in %s", ErrConflict, charger.ID, slot)
	case err != nil:
		return nil, err
	}

	l.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.Int64("user_id", userID),
		zap.String("charger_id", charger.ID),
		zap.Time("reserved_from", slot.From),
		zap.Time("reserved_to", slot.To),
	)

	l.notifier.ReservationCreated(ctx, reservation)

	details := &models.ReservationDetails{Reservation: reservation, Charger: charger}
	station, err := l.stations.GetByID(ctx, charger.StationID)
	if err != nil {
		l.logger.Warn("station lookup failed", zap.String("station_id", charger.StationID), zap.Error(err))
	} else {
		details.Station = station
	}
	return details, nil
}

// CancelReservation cancels a PENDING or CONFIRMED reservation owned by userID.
func (l *Ledger) CancelReservation(ctx context.Context, reservationID string, userID int64) (*models.Reservation, error) {
	current, err := l.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, translateLookup(err, "reservation")
	}
	if current.UserID != userID {
		return nil, fmt.Errorf("%w: reservation belongs to another user", ErrForbidden)
	}
	if current.Status == models.ReservationStatusCancelled {
		return nil, fmt.Errorf("%w: reservation already cancelled", ErrInvalidState)
	}
	if !current.IsBlocking() {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, strings.ToLower(current.Status))
	}

	cancelled, err := l.reservations.Cancel(context.WithoutCancel(ctx), reservationID)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, fmt.Errorf("%w: reservation already cancelled", ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("reservation cancelled",
		zap.String("reservation_id", cancelled.ID),
		zap.Int64("user_id", userID),
		zap.String("charger_id", cancelled.ChargerID),
	)
	l.notifier.ReservationCancelled(ctx, *cancelled)
	return cancelled, nil
}

// GetChargerSlots lists the blocking reservations of a charger on the UTC day of date, today
// when date is nil.
func (l *Ledger) GetChargerSlots(ctx context.Context, chargerID string, date *time.Time) (*models.ChargerSlots, error) {
	day := timerange.Day(l.now())
	if date != nil {
		day = timerange.Day(*date)
	}
	key := SlotsPrefix(chargerID) + day.From.Format(timerange.DayLayout)

	return cache.RememberVersioned(ctx, l.cache, SlotsScope(chargerID), key, l.slotsTTL, func(ctx context.Context) (*models.ChargerSlots, error) {
		charger, err := l.chargers.GetByID(ctx, chargerID)
		if err != nil {
			return nil, translateLookup(err, "charger")
		}
		reservations, err := l.reservations.FindOverlapping(ctx, chargerID, day.From, day.To)
		if err != nil {
			return nil, err
		}
		return &models.ChargerSlots{
			ChargerID:     charger.ID,
			StationID:     charger.StationID,
			ChargerStatus: charger.Status,
			Date:          day.From.Format(timerange.DayLayout),
			Reservations:  reservations,
		}, nil
	})
}

// GetUserReservations returns the reservations of userID, newest first.
func (l *Ledger) GetUserReservations(ctx context.Context, userID int64) ([]models.Reservation, error) {
	return l.reservations.ListByUser(ctx, userID)
}

// GetReservation returns a reservation owned by userID.
func (l *Ledger) GetReservation(ctx context.Context, reservationID string, userID int64) (*models.Reservation, error) {
	reservation, err := l.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, translateLookup(err, "reservation")
	}
	if reservation.UserID != userID {
		return nil, fmt.Errorf("%w: reservation belongs to another user", ErrForbidden)
	}
	return reservation, nil
}

func translateLookup(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
