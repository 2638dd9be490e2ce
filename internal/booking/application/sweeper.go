package application

import (
	"context"
	"time"

	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
)

// HoldSweeper periodically releases expired holds and cancels the pending
// bookings behind them.
type HoldSweeper struct {
	inventory   *SeatInventory
	coordinator *Coordinator
	interval    time.Duration
	logger      pkgApp.AppLogger
}

func NewHoldSweeper(inventory *SeatInventory, coordinator *Coordinator, interval time.Duration, logger pkgApp.AppLogger) *HoldSweeper {
	return &HoldSweeper{
		inventory:   inventory,
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
	}
}

// Run sweeps every interval until ctx is done.
func (s *HoldSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pkgApp.LogInfo(ctx, s.logger, "hold sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			pkgApp.LogInfo(ctx, s.logger, "hold sweeper stopped", nil)
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				pkgApp.LogError(ctx, s.logger, "hold sweep failed", err, nil)
			}
		}
	}
}

// SweepOnce returns how many holds it expired.
func (s *HoldSweeper) SweepOnce(ctx context.Context) (int, error) {
	tokens, err := s.inventory.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	for _, token := range tokens {
		if err := s.coordinator.ExpireHold(ctx, token); err != nil {
			pkgApp.LogError(ctx, s.logger, "failed to expire booking", err, map[string]interface{}{
				"hold_token": token,
			})
		}
	}
	return len(tokens), nil
}
