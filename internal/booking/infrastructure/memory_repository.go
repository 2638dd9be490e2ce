package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/pkg/application"
)

type InMemoryBookingRepository struct {
	mu      sync.RWMutex
	data    map[string]domain.Booking
	byToken map[domain.HoldToken]string
	logger  application.AppLogger
}

func NewInMemoryBookingRepository(logger application.AppLogger) *InMemoryBookingRepository {
	return &InMemoryBookingRepository{
		data:    make(map[string]domain.Booking),
		byToken: make(map[domain.HoldToken]string),
		logger:  logger,
	}
}

func (r *InMemoryBookingRepository) Record(ctx context.Context, booking domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[booking.ID]; exists {
		application.LogInfo(ctx, r.logger, "booking already exists", map[string]interface{}{
			"booking_id": booking.ID,
		})
		return fmt.Errorf("booking %s already exists", booking.ID)
	}

	r.data[booking.ID] = booking.Clone()
	if booking.HoldToken != "" {
		r.byToken[booking.HoldToken] = booking.ID
	}

	application.LogInfo(ctx, r.logger, "booking recorded", map[string]interface{}{
		"booking_id": booking.ID,
		"status":     booking.Status,
	})
	return nil
}

func (r *InMemoryBookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, exists := r.data[bookingID]
	if !exists {
		return domain.Booking{}, domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	return booking.Clone(), nil
}

func (r *InMemoryBookingRepository) FindByHoldToken(ctx context.Context, token domain.HoldToken) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byToken[token]
	if !exists {
		return domain.Booking{}, domain.NotFoundError{Resource: "booking for hold", ID: string(token)}
	}
	return r.data[id].Clone(), nil
}

func (r *InMemoryBookingRepository) ListByJourney(ctx context.Context, journeyID string) ([]domain.Booking, error) {
	return r.list(ctx, func(b domain.Booking) bool { return b.JourneyID == journeyID })
}

func (r *InMemoryBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.list(ctx, func(b domain.Booking) bool { return b.UserID == userID })
}

func (r *InMemoryBookingRepository) CompareAndSet(ctx context.Context, next domain.Booking, expectedStatus domain.BookingStatus, expectedVersion int64) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.data[next.ID]
	if !exists {
		return domain.Booking{}, domain.NotFoundError{Resource: "booking", ID: next.ID}
	}
	if current.Status != expectedStatus || current.Version != expectedVersion {
		application.LogDebug(ctx, r.logger, "stale booking write", map[string]interface{}{
			"booking_id":       next.ID,
			"expected_status":  expectedStatus,
			"expected_version": expectedVersion,
			"status":           current.Status,
			"version":          current.Version,
		})
		return domain.Booking{}, fmt.Errorf("booking %s: %w", next.ID, domain.ErrStaleState)
	}

	next.Version = expectedVersion + 1
	r.data[next.ID] = next.Clone()

	application.LogInfo(ctx, r.logger, "booking updated", map[string]interface{}{
		"booking_id":     next.ID,
		"status":         next.Status,
		"payment_status": next.PaymentStatus,
		"version":        next.Version,
	})
	return next.Clone(), nil
}

func (r *InMemoryBookingRepository) list(ctx context.Context, match func(domain.Booking) bool) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []domain.Booking
	for _, b := range r.data {
		if match(b) {
			bookings = append(bookings, b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}
