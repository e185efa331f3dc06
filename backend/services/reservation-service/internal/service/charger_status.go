package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evslot/backend/services/reservation-service/internal/models"
)

// ChargerStatusService accepts status reports for chargers.
type ChargerStatusService struct {
	chargers  ChargerStore
	projector *Projector
	publisher *Publisher
	logger    *zap.Logger
}

// NewChargerStatusService builds service.
func NewChargerStatusService(chargers ChargerStore, projector *Projector, publisher *Publisher, logger *zap.Logger) *ChargerStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargerStatusService{
		chargers:  chargers,
		projector: projector,
		publisher: publisher,
		logger:    logger,
	}
}

// UpdateStatus persists a new charger status and notifies subscribers of the charger and its
// station.
func (s *ChargerStatusService) UpdateStatus(ctx context.Context, chargerID, status string) (*models.Charger, error) {
	normalized, ok := models.NormalizeChargerStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown charger status %q", ErrInvalidInput, status)
	}
	chargerID = strings.TrimSpace(chargerID)
	if chargerID == "" {
		return nil, fmt.Errorf("%w: charger id is required", ErrInvalidInput)
	}

	charger, err := s.chargers.UpdateStatus(context.WithoutCancel(ctx), chargerID, normalized)
	if err != nil {
		return nil, translateLookup(err, "charger")
	}

	availability, err := s.projector.ComputeAvailability(ctx, charger.StationID)
	if err != nil {
		s.logger.Warn("availability recompute failed", zap.String("station_id", charger.StationID), zap.Error(err))
		availability = nil
	}

	s.logger.Info("charger status updated",
		zap.String("charger_id", charger.ID),
		zap.String("station_id", charger.StationID),
		zap.String("status", charger.Status),
	)
	s.publisher.ChargerStatusChanged(ctx, *charger, availability)
	return charger, nil
}
