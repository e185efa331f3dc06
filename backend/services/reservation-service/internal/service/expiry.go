package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpirySweeper moves reservations whose slot has ended to EXPIRED.
type ExpirySweeper struct {
	reservations ReservationStore
	notifier     ReservationNotifier
	batch        int
	now          func() time.Time
	logger       *zap.Logger
}

// NewExpirySweeper builds the sweeper. batch bounds the rows expired per run.
func NewExpirySweeper(reservations ReservationStore, notifier ReservationNotifier, batch int, logger *zap.Logger) *ExpirySweeper {
	if batch <= 0 {
		batch = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{
		reservations: reservations,
		notifier:     notifier,
		batch:        batch,
		now:          time.Now,
		logger:       logger,
	}
}

// Sweep expires ended reservations once and returns how many were expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.reservations.ExpireEnded(ctx, s.now().UTC(), s.batch)
	if err != nil {
		return 0, fmt.Errorf("expiry sweep: %w", err)
	}
	for _, reservation := range expired {
		s.notifier.ReservationExpired(ctx, reservation)
	}
	if len(expired) > 0 {
		s.logger.Info("reservations expired", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// Schedule registers the sweep on c with the given cron spec. Runs use ctx and stop doing
// work once it is cancelled.
func (s *ExpirySweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("expiry sweep failed", zap.Error(err))
		}
	})
}
