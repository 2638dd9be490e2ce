package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

type ReservationRequest struct {
	UserID        string                    `json:"userId"`
	JourneyID     string                    `json:"journeyId"`
	Passengers    []domain.PassengerRequest `json:"passengers"`
	BoardingPoint string                    `json:"boardingPoint"`
	DroppingPoint string                    `json:"droppingPoint"`
}

type Reservation struct {
	Booking domain.Booking `json:"booking"`
	Hold    domain.Hold    `json:"hold"`
}

// Coordinator drives a booking from seat hold through payment to
// confirmation, compensating when a later step fails.
type Coordinator struct {
	inventory           *SeatInventory
	ledger              *BookingLedger
	ids                 pkgDomain.IDGenerator[string]
	events              EventBus
	now                 Clock
	compensationTimeout time.Duration
	logger              pkgApp.AppLogger
}

func NewCoordinator(
	inventory *SeatInventory,
	ledger *BookingLedger,
	ids pkgDomain.IDGenerator[string],
	events EventBus,
	clock Clock,
	compensationTimeout time.Duration,
	logger pkgApp.AppLogger,
) *Coordinator {
	if clock == nil {
		clock = time.Now
	}
	return &Coordinator{
		inventory:           inventory,
		ledger:              ledger,
		ids:                 ids,
		events:              events,
		now:                 clock,
		compensationTimeout: compensationTimeout,
		logger:              logger,
	}
}

func (c *Coordinator) Reserve(ctx context.Context, req ReservationRequest) (Reservation, error) {
	seats, err := validateReservation(req)
	if err != nil {
		return Reservation{}, err
	}
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, c.logger, "context cancelled", ctx.Err(), nil)
		return Reservation{}, unavailableOnTimeout(req.JourneyID, seats, ctx.Err())
	}

	journey, err := c.inventory.Journey(ctx, req.JourneyID)
	if err != nil {
		return Reservation{}, unavailableOnTimeout(req.JourneyID, seats, err)
	}
	if journey.Departed(c.now()) {
		return Reservation{}, domain.ValidationError{Field: "journeyId", Msg: "journey has already departed"}
	}

	hold, err := c.inventory.Hold(ctx, req.JourneyID, seats)
	if err != nil {
		pkgApp.LogInfo(ctx, c.logger, "hold refused", map[string]interface{}{
			"journey_id": req.JourneyID,
			"seats":      seats,
			"error":      err.Error(),
		})
		return Reservation{}, err
	}

	booking, err := domain.NewBooking(c.ids(), strings.TrimSpace(req.UserID), journey, req.Passengers, hold,
		strings.TrimSpace(req.BoardingPoint), strings.TrimSpace(req.DroppingPoint), c.now())
	if err == nil {
		err = c.ledger.Record(ctx, booking)
	}
	if err != nil {
		pkgApp.LogError(ctx, c.logger, "failed to record booking, releasing hold", err, map[string]interface{}{
			"hold_token": hold.Token,
		})
		cctx, cancel := c.compensationContext(ctx)
		defer cancel()
		if relErr := c.inventory.Release(cctx, hold.Token); relErr != nil {
			pkgApp.LogError(ctx, c.logger, "failed to release hold", relErr, map[string]interface{}{
				"hold_token": hold.Token,
			})
		}
		return Reservation{}, unavailableOnTimeout(req.JourneyID, seats, err)
	}

	pkgApp.LogInfo(ctx, c.logger, "booking reserved", map[string]interface{}{
		"booking_id":   booking.ID,
		"journey_id":   booking.JourneyID,
		"seats":        seats,
		"total_amount": booking.TotalAmount,
		"expires_at":   hold.ExpiresAt,
	})
	publish(ctx, c.events, c.logger, BookingReservedEvent, booking, c.now())
	return Reservation{Booking: booking, Hold: hold}, nil
}

// ConfirmPayment commits the seats first and only then marks the booking
// paid and confirmed. If the hold is gone the booking ends cancelled with a
// failed payment and a HoldExpiredError carrying paymentID is returned so
// the caller can reverse the charge.
func (c *Coordinator) ConfirmPayment(ctx context.Context, bookingID, paymentID string, method domain.PaymentMethod) (domain.Booking, error) {
	if strings.TrimSpace(paymentID) == "" {
		return domain.Booking{}, domain.ValidationError{Field: "paymentId", Msg: "is required"}
	}
	if !method.Valid() {
		return domain.Booking{}, domain.ValidationError{Field: "paymentMethod", Msg: "must be card, upi, netbanking or wallet"}
	}

	// committed is set once this call has sold the seats. A booking found
	// cancelled after that was cancelled under a collected payment.
	committed := false
	return c.retryStale(ctx, bookingID, func(b domain.Booking) (domain.Booking, error) {
		if committed && b.Status == domain.StatusCancelled {
			return c.orphanedPayment(ctx, b, paymentID, method)
		}
		if b.Status == domain.StatusCancelled && b.CancellationReason == domain.ReasonHoldExpired {
			c.requestRefund(ctx, b, paymentID, c.now())
			return domain.Booking{}, &domain.HoldExpiredError{BookingID: b.ID, PaymentID: paymentID}
		}
		if b.Status != domain.StatusPending || b.PaymentStatus != domain.PaymentPending {
			return domain.Booking{}, domain.TransitionError{Machine: "booking", From: string(b.Status), To: string(domain.StatusConfirmed)}
		}

		if err := c.inventory.Commit(ctx, b.HoldToken); err != nil {
			return c.handleCommitFailure(ctx, b, paymentID, method, err)
		}
		committed = true

		confirmed, err := c.ledger.Transition(ctx, b, domain.StatusConfirmed, func(next *domain.Booking) {
			next.PaymentStatus = domain.PaymentPaid
			next.PaymentID = paymentID
			next.PaymentMethod = method
		})
		if err != nil {
			pkgApp.LogError(ctx, c.logger, "seats sold but booking not confirmed, releasing seats", err, map[string]interface{}{
				"booking_id": b.ID,
				"payment_id": paymentID,
			})
			c.releaseOwnedSeats(ctx, b)
			return domain.Booking{}, err
		}

		pkgApp.LogInfo(ctx, c.logger, "booking confirmed", map[string]interface{}{
			"booking_id": confirmed.ID,
			"payment_id": paymentID,
		})
		publish(ctx, c.events, c.logger, BookingConfirmedEvent, confirmed, c.now())
		return confirmed, nil
	})
}

func (c *Coordinator) handleCommitFailure(ctx context.Context, b domain.Booking, paymentID string, method domain.PaymentMethod, commitErr error) (domain.Booking, error) {
	expired := isTimeout(commitErr) || (errors.Is(commitErr, domain.ErrInvalidToken) && !c.now().Before(b.HoldExpiresAt))
	if !expired {
		if errors.Is(commitErr, domain.ErrInvalidToken) {
			// The hold was resolved by a concurrent writer; re-read the booking.
			return domain.Booking{}, fmt.Errorf("hold %s resolved concurrently: %w", b.HoldToken, domain.ErrStaleState)
		}
		return domain.Booking{}, commitErr
	}

	cctx, cancel := c.compensationContext(ctx)
	defer cancel()

	at := c.now()
	cancelled, err := c.ledger.Transition(cctx, b, domain.StatusCancelled, func(next *domain.Booking) {
		next.PaymentStatus = domain.PaymentFailed
		next.PaymentID = paymentID
		next.PaymentMethod = method
		next.CancellationReason = domain.ReasonHoldExpired
		next.CancelledAt = &at
	})
	if err != nil {
		return domain.Booking{}, err
	}
	c.releaseOwnedSeats(cctx, cancelled)

	pkgApp.LogInfo(ctx, c.logger, "payment arrived after hold expired", map[string]interface{}{
		"booking_id": b.ID,
		"payment_id": paymentID,
	})
	publish(cctx, c.events, c.logger, BookingExpiredEvent, cancelled, at)
	c.requestRefund(cctx, cancelled, paymentID, at)
	return domain.Booking{}, &domain.HoldExpiredError{BookingID: b.ID, PaymentID: paymentID, Err: commitErr}
}

// orphanedPayment handles a booking cancelled between this call's seat
// commit and its confirmation. The payment is recorded as failed on the
// cancelled booking when it is still pending, and the caller gets a
// HoldExpiredError carrying paymentID so the charge is reversed.
func (c *Coordinator) orphanedPayment(ctx context.Context, b domain.Booking, paymentID string, method domain.PaymentMethod) (domain.Booking, error) {
	cctx, cancel := c.compensationContext(ctx)
	defer cancel()

	at := c.now()
	if b.PaymentStatus == domain.PaymentPending {
		recorded, err := c.ledger.Transition(cctx, b, domain.StatusCancelled, func(next *domain.Booking) {
			next.PaymentStatus = domain.PaymentFailed
			next.PaymentID = paymentID
			next.PaymentMethod = method
		})
		if err != nil {
			pkgApp.LogError(ctx, c.logger, "failed to record payment on cancelled booking", err, map[string]interface{}{
				"booking_id": b.ID,
				"payment_id": paymentID,
			})
		} else {
			b = recorded
		}
	}

	pkgApp.LogError(ctx, c.logger, "booking cancelled while payment was being confirmed", nil, map[string]interface{}{
		"booking_id": b.ID,
		"payment_id": paymentID,
	})
	c.requestRefund(cctx, b, paymentID, at)
	return domain.Booking{}, &domain.HoldExpiredError{
		BookingID: b.ID,
		PaymentID: paymentID,
		Err:       errors.New("booking was cancelled before the payment was confirmed"),
	}
}

// requestRefund announces a collected payment that no booking kept.
func (c *Coordinator) requestRefund(ctx context.Context, b domain.Booking, paymentID string, at time.Time) {
	b = b.Clone()
	b.PaymentID = paymentID
	publish(ctx, c.events, c.logger, PaymentRefundRequiredEvent, b, at)
}

func (c *Coordinator) FailPayment(ctx context.Context, bookingID, paymentID, reason string) (domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		reason = domain.ReasonPaymentFailed
	}
	return c.retryStale(ctx, bookingID, func(b domain.Booking) (domain.Booking, error) {
		if b.Status != domain.StatusPending || b.PaymentStatus != domain.PaymentPending {
			return domain.Booking{}, domain.TransitionError{Machine: "payment", From: string(b.PaymentStatus), To: string(domain.PaymentFailed)}
		}

		at := c.now()
		failed, err := c.ledger.Transition(ctx, b, domain.StatusCancelled, func(next *domain.Booking) {
			next.PaymentStatus = domain.PaymentFailed
			next.PaymentID = paymentID
			next.CancellationReason = reason
			next.CancelledAt = &at
		})
		if err != nil {
			return domain.Booking{}, err
		}

		cctx, cancel := c.compensationContext(ctx)
		defer cancel()
		if err := c.inventory.Release(cctx, b.HoldToken); err != nil {
			pkgApp.LogError(ctx, c.logger, "failed to release hold", err, map[string]interface{}{
				"booking_id": b.ID,
				"hold_token": b.HoldToken,
			})
		}

		pkgApp.LogInfo(ctx, c.logger, "payment failed", map[string]interface{}{
			"booking_id": b.ID,
			"payment_id": paymentID,
			"reason":     reason,
		})
		publish(ctx, c.events, c.logger, BookingPaymentFailedEvent, failed, at)
		return failed, nil
	})
}

// Complete closes a confirmed booking once its journey has departed.
func (c *Coordinator) Complete(ctx context.Context, bookingID string) (domain.Booking, error) {
	return c.retryStale(ctx, bookingID, func(b domain.Booking) (domain.Booking, error) {
		completed, err := c.ledger.Transition(ctx, b, domain.StatusCompleted, nil)
		if err != nil {
			return domain.Booking{}, err
		}
		publish(ctx, c.events, c.logger, BookingCompletedEvent, completed, c.now())
		return completed, nil
	})
}

// ExpireHold cancels the pending booking behind a hold the sweeper released.
// Holds without a booking, or whose booking already moved on, are ignored.
func (c *Coordinator) ExpireHold(ctx context.Context, token domain.HoldToken) error {
	for attempt := 0; ; attempt++ {
		b, err := c.ledger.FindByHoldToken(ctx, token)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if b.Status != domain.StatusPending || b.PaymentStatus != domain.PaymentPending {
			return nil
		}

		at := c.now()
		expired, err := c.ledger.Transition(ctx, b, domain.StatusCancelled, func(next *domain.Booking) {
			next.PaymentStatus = domain.PaymentFailed
			next.CancellationReason = domain.ReasonHoldExpired
			next.CancelledAt = &at
		})
		if errors.Is(err, domain.ErrStaleState) && attempt == 0 {
			continue
		}
		if err != nil {
			return err
		}

		pkgApp.LogInfo(ctx, c.logger, "booking expired", map[string]interface{}{
			"booking_id": b.ID,
			"hold_token": token,
		})
		publish(ctx, c.events, c.logger, BookingExpiredEvent, expired, at)
		return nil
	}
}

func (c *Coordinator) Booking(ctx context.Context, bookingID string) (domain.Booking, error) {
	return c.ledger.Find(ctx, bookingID)
}

func (c *Coordinator) UserBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	return c.ledger.ListByUser(ctx, userID)
}

func (c *Coordinator) JourneyBookings(ctx context.Context, journeyID string) ([]domain.Booking, error) {
	return c.ledger.ListByJourney(ctx, journeyID)
}

// retryStale runs step against a fresh read of the booking and runs it once
// more if it lost a compare-and-set race.
func (c *Coordinator) retryStale(ctx context.Context, bookingID string, step func(domain.Booking) (domain.Booking, error)) (domain.Booking, error) {
	return retryStale(ctx, c.ledger, c.logger, bookingID, step)
}

func retryStale(ctx context.Context, ledger *BookingLedger, logger pkgApp.AppLogger, bookingID string, step func(domain.Booking) (domain.Booking, error)) (domain.Booking, error) {
	for attempt := 0; ; attempt++ {
		b, err := ledger.Find(ctx, bookingID)
		if err != nil {
			return domain.Booking{}, err
		}
		out, err := step(b)
		if errors.Is(err, domain.ErrStaleState) && attempt == 0 {
			pkgApp.LogDebug(ctx, logger, "stale booking, retrying", map[string]interface{}{
				"booking_id": bookingID,
			})
			continue
		}
		return out, err
	}
}

func (c *Coordinator) releaseOwnedSeats(ctx context.Context, b domain.Booking) {
	cctx, cancel := c.compensationContext(ctx)
	defer cancel()
	if _, err := c.inventory.ReleaseSeats(cctx, b.JourneyID, b.SeatNumbers(), b.HoldToken); err != nil {
		pkgApp.LogError(ctx, c.logger, "failed to release seats", err, map[string]interface{}{
			"booking_id": b.ID,
			"hold_token": b.HoldToken,
		})
	}
}

// compensationContext outlives a cancelled request so that undo steps still
// reach the store.
func (c *Coordinator) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return compensationContext(ctx, c.compensationTimeout)
}

func compensationContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}

// unavailableOnTimeout reports a deadline hit while reserving as the seats
// being unavailable; other errors pass through.
func unavailableOnTimeout(journeyID string, seats []string, err error) error {
	if !isTimeout(err) {
		return err
	}
	return &domain.SeatsUnavailableError{JourneyID: journeyID, Seats: seats, Err: err}
}

func validateReservation(req ReservationRequest) ([]string, error) {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return nil, domain.ValidationError{Field: "userId", Msg: "is required"}
	case strings.TrimSpace(req.JourneyID) == "":
		return nil, domain.ValidationError{Field: "journeyId", Msg: "is required"}
	case len(req.Passengers) == 0:
		return nil, domain.ValidationError{Field: "passengers", Msg: "at least one passenger is required"}
	case strings.TrimSpace(req.BoardingPoint) == "":
		return nil, domain.ValidationError{Field: "boardingPoint", Msg: "is required"}
	case strings.TrimSpace(req.DroppingPoint) == "":
		return nil, domain.ValidationError{Field: "droppingPoint", Msg: "is required"}
	}

	seats := make([]string, 0, len(req.Passengers))
	seen := make(map[string]struct{}, len(req.Passengers))
	for _, p := range req.Passengers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.SeatNumber]; dup {
			return nil, domain.ValidationError{Field: "passengers.seatNumber", Msg: "seat " + p.SeatNumber + " assigned twice"}
		}
		seen[p.SeatNumber] = struct{}{}
		seats = append(seats, p.SeatNumber)
	}
	return seats, nil
}
