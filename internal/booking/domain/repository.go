package domain

import (
	"context"
	"time"
)

// SeatStore owns seat state. Every mutation is all-or-nothing: on error no seat
// has changed.
type SeatStore interface {
	SaveJourney(ctx context.Context, journey JourneyInstance, seats []Seat) error
	FindJourney(ctx context.Context, journeyID string) (JourneyInstance, error)
	ListSeats(ctx context.Context, journeyID string) ([]Seat, error)
	UpdateSeatPrice(ctx context.Context, journeyID, seatNumber string, price Money) error

	// HoldSeats grants hold.SeatNumbers to hold.Token until hold.ExpiresAt and
	// returns the hold with its seat snapshot.
	HoldSeats(ctx context.Context, hold Hold, now time.Time) (Hold, error)
	CommitHold(ctx context.Context, token HoldToken, now time.Time) error
	ReleaseHold(ctx context.Context, token HoldToken) error
	// ReleaseSeats frees the listed seats that owner still holds or bought and
	// reports how many changed.
	ReleaseSeats(ctx context.Context, journeyID string, seatNumbers []string, owner HoldToken) (int, error)
	ReleaseExpired(ctx context.Context, now time.Time) ([]HoldToken, error)
}

type BookingRepository interface {
	Record(ctx context.Context, booking Booking) error
	FindByID(ctx context.Context, bookingID string) (Booking, error)
	FindByHoldToken(ctx context.Context, token HoldToken) (Booking, error)
	ListByJourney(ctx context.Context, journeyID string) ([]Booking, error)
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	// CompareAndSet stores next only if the stored booking still has
	// expectedStatus and expectedVersion. next.Version is set to
	// expectedVersion+1 on success.
	CompareAndSet(ctx context.Context, next Booking, expectedStatus BookingStatus, expectedVersion int64) (Booking, error)
}
