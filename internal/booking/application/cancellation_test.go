package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
)

func (f *fixture) confirmedBooking(t *testing.T, user string, seats ...string) domain.Booking {
	t.Helper()
	ctx := context.Background()
	res, err := f.coordinator.Reserve(ctx, request(user, seats...))
	require.NoError(t, err)
	b, err := f.coordinator.ConfirmPayment(ctx, res.Booking.ID, "pay-"+res.Booking.ID, domain.PaymentCard)
	require.NoError(t, err)
	return b
}

func TestCancellationEngine_RefundTiers(t *testing.T) {
	cases := []struct {
		name   string
		lead   time.Duration
		refund domain.Money
	}{
		{"two days ahead", 48 * time.Hour, 100000},
		{"exactly a day ahead", 24 * time.Hour, 50000},
		{"three hours ahead", 3 * time.Hour, 50000},
		{"exactly two hours ahead", 2 * time.Hour, 0},
		{"after departure", -time.Hour, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.confirmedBooking(t, "u1", "S1")
			f.clock.Set(departure.Add(-tc.lead))

			cancelled, err := f.cancellation.Cancel(context.Background(), b.ID, "")

			require.NoError(t, err)
			assert.Equal(t, tc.refund, cancelled.RefundAmount)
			assert.Equal(t, domain.PaymentRefunded, cancelled.PaymentStatus)
		})
	}
}

func TestCancellationEngine_PendingBookingHasNoRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, err := f.coordinator.Reserve(ctx, request("u1", "S1", "S2"))
	require.NoError(t, err)

	cancelled, err := f.cancellation.Cancel(ctx, res.Booking.ID, "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentPending, cancelled.PaymentStatus)
	assert.Equal(t, domain.Money(0), cancelled.RefundAmount)
	assert.Equal(t, domain.SeatAvailable, f.seatState(t, "S1"))

	err = f.inventory.Commit(ctx, res.Hold.Token)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken), "released hold cannot be committed")
}

func TestCancellationEngine_LeavesOtherBookingsAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.confirmedBooking(t, "u1", "S1", "S2")
	theirs := f.confirmedBooking(t, "u2", "S3")

	_, err := f.cancellation.Cancel(ctx, mine.ID, "")
	require.NoError(t, err)

	other, err := f.coordinator.Booking(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, theirs, other)
	assert.Equal(t, domain.SeatSold, f.seatState(t, "S3"))
	assert.Equal(t, domain.SeatAvailable, f.seatState(t, "S1"))
}

func TestCancellationEngine_SecondCancelIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.confirmedBooking(t, "u1", "S1")

	first, err := f.cancellation.Cancel(ctx, b.ID, "")
	require.NoError(t, err)
	_, err = f.cancellation.Cancel(ctx, b.ID, "")

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "got %v", err)
	again, err := f.coordinator.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.RefundAmount, again.RefundAmount)
	assert.Equal(t, first.Version, again.Version)
}

func TestCancellationEngine_ConcurrentCancelsRefundOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.confirmedBooking(t, "u1", "S1")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cancellation.Cancel(ctx, b.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrStaleState), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

type staleOnce struct {
	domain.BookingRepository
	mu    sync.Mutex
	fired bool
}

func (s *staleOnce) CompareAndSet(ctx context.Context, next domain.Booking, status domain.BookingStatus, version int64) (domain.Booking, error) {
	s.mu.Lock()
	fire := !s.fired && next.Status == domain.StatusCancelled
	s.fired = s.fired || fire
	s.mu.Unlock()
	if fire {
		return domain.Booking{}, fmt.Errorf("injected: %w", domain.ErrStaleState)
	}
	return s.BookingRepository.CompareAndSet(ctx, next, status, version)
}

func TestCancellationEngine_RetriesStaleStateOnce(t *testing.T) {
	ctx := context.Background()
	var repo *staleOnce
	f := newFixtureWithRepository(t, func(r domain.BookingRepository) domain.BookingRepository {
		repo = &staleOnce{BookingRepository: r}
		return repo
	})
	b := f.confirmedBooking(t, "u1", "S1")

	cancelled, err := f.cancellation.Cancel(ctx, b.ID, "")

	require.NoError(t, err)
	assert.True(t, repo.fired)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, domain.SeatAvailable, f.seatState(t, "S1"))
}

func TestCancellationEngine_UnknownBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.cancellation.Cancel(context.Background(), "BKG404", "")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NotContains(t, f.events.Names(), application.BookingCancelledEvent)
}

func TestCancellationEngine_QuoteBookingLeavesBookingUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.confirmedBooking(t, "u1", "S1", "S2")
	f.clock.Set(departure.Add(-5 * time.Hour))

	refund, err := f.cancellation.QuoteBooking(ctx, b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.Money(100000), refund)
	stored, err := f.coordinator.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)

	_, err = f.cancellation.QuoteBooking(ctx, "BKG0000000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
