package application

import (
	"context"
	"strings"
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
)

// CancellationEngine reverses bookings. The refund is derived only from the
// booking's paid amount, its departure time and the policy, so the same
// history always yields the same refund.
type CancellationEngine struct {
	inventory           *SeatInventory
	ledger              *BookingLedger
	policy              domain.RefundPolicy
	events              EventBus
	now                 Clock
	compensationTimeout time.Duration
	logger              pkgApp.AppLogger
}

func NewCancellationEngine(
	inventory *SeatInventory,
	ledger *BookingLedger,
	policy domain.RefundPolicy,
	events EventBus,
	clock Clock,
	compensationTimeout time.Duration,
	logger pkgApp.AppLogger,
) *CancellationEngine {
	if clock == nil {
		clock = time.Now
	}
	return &CancellationEngine{
		inventory:           inventory,
		ledger:              ledger,
		policy:              policy,
		events:              events,
		now:                 clock,
		compensationTimeout: compensationTimeout,
		logger:              logger,
	}
}

func (e *CancellationEngine) Policy() domain.RefundPolicy { return e.policy }

// Quote returns the refund a cancellation of b would earn at now.
func (e *CancellationEngine) Quote(b domain.Booking, now time.Time) domain.Money {
	if b.PaymentStatus != domain.PaymentPaid {
		return 0
	}
	return e.policy.Refund(b.TotalAmount, b.DepartureTime.Sub(now))
}

// QuoteBooking prices cancelling the stored booking right now without
// changing it.
func (e *CancellationEngine) QuoteBooking(ctx context.Context, bookingID string) (domain.Money, error) {
	b, err := e.ledger.Find(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	return e.Quote(b, e.now()), nil
}

func (e *CancellationEngine) Cancel(ctx context.Context, bookingID, reason string) (domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	return retryStale(ctx, e.ledger, e.logger, bookingID, func(b domain.Booking) (domain.Booking, error) {
		if b.Status != domain.StatusPending && b.Status != domain.StatusConfirmed {
			return domain.Booking{}, domain.TransitionError{Machine: "booking", From: string(b.Status), To: string(domain.StatusCancelled)}
		}

		at := e.now()
		refund := e.Quote(b, at)
		cancelled, err := e.ledger.Transition(ctx, b, domain.StatusCancelled, func(next *domain.Booking) {
			if next.PaymentStatus == domain.PaymentPaid {
				next.PaymentStatus = domain.PaymentRefunded
			}
			next.RefundAmount = refund
			next.CancellationReason = reason
			next.CancelledAt = &at
		})
		if err != nil {
			return domain.Booking{}, err
		}

		cctx, cancel := compensationContext(ctx, e.compensationTimeout)
		defer cancel()
		freed, err := e.inventory.ReleaseSeats(cctx, b.JourneyID, b.SeatNumbers(), b.HoldToken)
		if err != nil {
			pkgApp.LogError(ctx, e.logger, "booking cancelled but seats not released", err, map[string]interface{}{
				"booking_id": b.ID,
				"hold_token": b.HoldToken,
			})
		}

		pkgApp.LogInfo(ctx, e.logger, "booking cancelled", map[string]interface{}{
			"booking_id":    b.ID,
			"refund_amount": refund,
			"lead_time":     b.DepartureTime.Sub(at).String(),
			"seats_freed":   freed,
		})
		publish(ctx, e.events, e.logger, BookingCancelledEvent, cancelled, at)
		return cancelled, nil
	})
}
