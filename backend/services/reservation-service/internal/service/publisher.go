package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"evslot/backend/libs/cache"
	"evslot/backend/services/reservation-service/internal/models"
)

// Cache key layout shared by the read paths and the publisher. Each scope names the
// generation bumped when its views change.
const (
	SearchScope  = "stations:search"
	SearchPrefix = SearchScope + ":"
)

// SlotsScope is the cache generation scope of a charger's slot views.
func SlotsScope(chargerID string) string {
	return "slots:" + chargerID
}

// SlotsPrefix is the prefix of every cached slot view of a charger.
func SlotsPrefix(chargerID string) string {
	return SlotsScope(chargerID) + ":"
}

// AvailabilityKey is the cache key of a station availability snapshot.
func AvailabilityKey(stationID string) string {
	return "availability:" + stationID
}

// Publisher invalidates cached read models after a write and pushes the matching domain event
// to gateway rooms and the optional sink. It never fails the caller.
type Publisher struct {
	cache       *cache.Store
	rooms       Broadcaster
	sink        EventSink
	sinkTimeout time.Duration
	logger      *zap.Logger
}

// NewPublisher builds a publisher. sink may be nil.
func NewPublisher(store *cache.Store, rooms Broadcaster, sink EventSink, sinkTimeout time.Duration, logger *zap.Logger) *Publisher {
	if sinkTimeout <= 0 {
		sinkTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		cache:       store,
		rooms:       rooms,
		sink:        sink,
		sinkTimeout: sinkTimeout,
		logger:      logger,
	}
}

// ReservationCreated handles a new reservation.
func (p *Publisher) ReservationCreated(ctx context.Context, reservation models.Reservation) {
	p.slotsChanged(ctx, reservation, models.SlotActionCreated)
}

// ReservationCancelled handles a cancelled reservation.
func (p *Publisher) ReservationCancelled(ctx context.Context, reservation models.Reservation) {
	p.slotsChanged(ctx, reservation, models.SlotActionCancelled)
}

// ReservationExpired handles a reservation moved to EXPIRED by the sweeper.
func (p *Publisher) ReservationExpired(ctx context.Context, reservation models.Reservation) {
	p.slotsChanged(ctx, reservation, models.SlotActionExpired)
}

func (p *Publisher) slotsChanged(ctx context.Context, reservation models.Reservation, action string) {
	p.invalidateSlots(ctx, reservation.ChargerID)

	p.emit(ctx, reservation.ChargerID, reservation.StationID, models.EventSlotsUpdated, models.SlotsUpdatedEvent{
		ChargerID:     reservation.ChargerID,
		StationID:     reservation.StationID,
		ReservationID: reservation.ID,
		ReservedFrom:  reservation.ReservedFrom,
		ReservedTo:    reservation.ReservedTo,
		Action:        action,
	})
}

// ChargerStatusChanged handles a charger status write. availability is the freshly computed
// snapshot of the charger's station; nil skips the stationAvailability event.
func (p *Publisher) ChargerStatusChanged(ctx context.Context, charger models.Charger, availability *models.StationAvailability) {
	p.invalidateSlots(ctx, charger.ID)
	p.invalidateAvailability(ctx, charger.StationID)
	p.invalidateSearch(ctx)

	p.emit(ctx, charger.ID, charger.StationID, models.EventChargerStatusUpdated, models.ChargerStatusUpdatedEvent{
		ChargerID: charger.ID,
		StationID: charger.StationID,
		Status:    charger.Status,
		UpdatedAt: charger.UpdatedAt,
	})
	if availability != nil {
		p.emit(ctx, charger.ID, charger.StationID, models.EventStationAvailability, availability)
	}
}

// StationChanged drops the cached views of a station after an external station write.
func (p *Publisher) StationChanged(ctx context.Context, stationID string) {
	p.invalidateAvailability(ctx, stationID)
	p.invalidateSearch(ctx)
}

// The bump retires fills still in flight; the delete frees what is already stored.
func (p *Publisher) invalidateSlots(ctx context.Context, chargerID string) {
	p.cache.Bump(ctx, SlotsScope(chargerID))
	p.cache.InvalidatePrefix(ctx, SlotsPrefix(chargerID))
}

func (p *Publisher) invalidateAvailability(ctx context.Context, stationID string) {
	p.cache.Bump(ctx, AvailabilityKey(stationID))
	p.cache.InvalidatePrefix(ctx, AvailabilityKey(stationID)+"@")
}

func (p *Publisher) invalidateSearch(ctx context.Context) {
	p.cache.Bump(ctx, SearchScope)
	p.cache.InvalidatePrefix(ctx, SearchPrefix)
}

// emit delivers to the charger room then the station room. Room order is fixed so that a
// client in both rooms sees every event in publication order.
func (p *Publisher) emit(ctx context.Context, chargerID, stationID, event string, payload interface{}) {
	if p.rooms != nil {
		delivered := 0
		if chargerID != "" {
			delivered += p.rooms.Broadcast(models.ChargerRoom(chargerID), event, payload)
		}
		if stationID != "" {
			delivered += p.rooms.Broadcast(models.StationRoom(stationID), event, payload)
		}
		p.logger.Debug("event broadcast",
			zap.String("event", event),
			zap.String("charger_id", chargerID),
			zap.String("station_id", stationID),
			zap.Int("deliveries", delivered),
		)
	}

	if p.sink == nil {
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.sinkTimeout)
	defer cancel()
	if err := p.sink.Publish(sinkCtx, event, payload); err != nil {
		p.logger.Warn("event sink publish failed", zap.String("event", event), zap.Error(err))
	}
}
