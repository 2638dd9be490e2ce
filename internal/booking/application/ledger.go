package application

import (
	"context"
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
)

// BookingLedger is the only writer of bookings. Every status change goes
// through Transition, which checks the state machines and then performs a
// compare-and-set on status and version.
type BookingLedger struct {
	repository domain.BookingRepository
	now        Clock
	logger     pkgApp.AppLogger
}

func NewBookingLedger(repository domain.BookingRepository, clock Clock, logger pkgApp.AppLogger) *BookingLedger {
	if clock == nil {
		clock = time.Now
	}
	return &BookingLedger{
		repository: repository,
		now:        clock,
		logger:     logger,
	}
}

func (l *BookingLedger) Record(ctx context.Context, booking domain.Booking) error {
	return l.repository.Record(ctx, booking)
}

func (l *BookingLedger) Find(ctx context.Context, bookingID string) (domain.Booking, error) {
	return l.repository.FindByID(ctx, bookingID)
}

func (l *BookingLedger) FindByHoldToken(ctx context.Context, token domain.HoldToken) (domain.Booking, error) {
	return l.repository.FindByHoldToken(ctx, token)
}

func (l *BookingLedger) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return l.repository.ListByUser(ctx, userID)
}

func (l *BookingLedger) ListByJourney(ctx context.Context, journeyID string) ([]domain.Booking, error) {
	return l.repository.ListByJourney(ctx, journeyID)
}

// Transition moves current to status to, applying mutate to the copy first.
// It fails with a TransitionError for illegal moves and with ErrStaleState
// when current is no longer what the store holds.
func (l *BookingLedger) Transition(ctx context.Context, current domain.Booking, to domain.BookingStatus, mutate func(*domain.Booking)) (domain.Booking, error) {
	now := l.now()
	next := current.Clone()
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}
	next.UpdatedAt = now

	if err := domain.CheckTransition(current, next, now); err != nil {
		pkgApp.LogDebug(ctx, l.logger, "transition rejected", map[string]interface{}{
			"booking_id": current.ID,
			"error":      err.Error(),
		})
		return domain.Booking{}, err
	}
	return l.repository.CompareAndSet(ctx, next, current.Status, current.Version)
}
