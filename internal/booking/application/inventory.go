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

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// SeatInventory grants, commits and releases time-bounded seat holds on top
// of a SeatStore.
type SeatInventory struct {
	store    domain.SeatStore
	ttl      time.Duration
	now      Clock
	newToken pkgDomain.IDGenerator[string]
	logger   pkgApp.AppLogger
}

func NewSeatInventory(store domain.SeatStore, ttl time.Duration, clock Clock, tokens pkgDomain.IDGenerator[string], logger pkgApp.AppLogger) (*SeatInventory, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive, got %s", ttl)
	}
	if clock == nil {
		clock = time.Now
	}
	return &SeatInventory{
		store:    store,
		ttl:      ttl,
		now:      clock,
		newToken: tokens,
		logger:   logger,
	}, nil
}

func (i *SeatInventory) TTL() time.Duration { return i.ttl }

func (i *SeatInventory) CreateJourney(ctx context.Context, spec domain.JourneySpec) (domain.JourneyInstance, error) {
	journey, seats, err := domain.NewJourneyInstance(spec)
	if err != nil {
		return domain.JourneyInstance{}, err
	}
	if err := i.store.SaveJourney(ctx, journey, seats); err != nil {
		return domain.JourneyInstance{}, err
	}
	pkgApp.LogInfo(ctx, i.logger, "journey created", map[string]interface{}{
		"journey_id": journey.ID,
		"route_id":   journey.RouteID,
		"seats":      journey.TotalSeats,
	})
	return journey, nil
}

func (i *SeatInventory) Journey(ctx context.Context, journeyID string) (domain.JourneyInstance, error) {
	return i.store.FindJourney(ctx, journeyID)
}

// SeatMap reports every seat as a reader should see it now: holds that ran
// out show as available.
func (i *SeatInventory) SeatMap(ctx context.Context, journeyID string) ([]domain.Seat, error) {
	seats, err := i.store.ListSeats(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	now := i.now()
	for n, s := range seats {
		if s.State == domain.SeatHeld && s.AvailableAt(now) {
			seats[n].State = domain.SeatAvailable
			seats[n].HoldToken = ""
			seats[n].HeldUntil = time.Time{}
		}
	}
	return seats, nil
}

func (i *SeatInventory) Availability(ctx context.Context, journeyID string) (domain.Availability, error) {
	seats, err := i.store.ListSeats(ctx, journeyID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.SummariseSeats(journeyID, seats, i.now()), nil
}

// UpdateSeatPrice affects future holds only; bookings keep their fare snapshot.
func (i *SeatInventory) UpdateSeatPrice(ctx context.Context, journeyID, seatNumber string, price domain.Money) error {
	if price < 0 {
		return domain.ValidationError{Field: "price", Msg: "must not be negative"}
	}
	return i.store.UpdateSeatPrice(ctx, journeyID, seatNumber, price)
}

// Hold claims all of seatNumbers or none of them. A timeout is reported as
// the seats being unavailable.
func (i *SeatInventory) Hold(ctx context.Context, journeyID string, seatNumbers []string) (domain.Hold, error) {
	if len(seatNumbers) == 0 {
		return domain.Hold{}, domain.ValidationError{Field: "seatNumbers", Msg: "at least one seat is required"}
	}
	seen := make(map[string]struct{}, len(seatNumbers))
	for _, number := range seatNumbers {
		if strings.TrimSpace(number) == "" {
			return domain.Hold{}, domain.ValidationError{Field: "seatNumbers", Msg: "seat number is required"}
		}
		if _, dup := seen[number]; dup {
			return domain.Hold{}, domain.ValidationError{Field: "seatNumbers", Msg: "seat " + number + " requested twice"}
		}
		seen[number] = struct{}{}
	}

	now := i.now()
	hold, err := i.store.HoldSeats(ctx, domain.Hold{
		Token:       domain.HoldToken(i.newToken()),
		JourneyID:   journeyID,
		SeatNumbers: append([]string(nil), seatNumbers...),
		ExpiresAt:   now.Add(i.ttl),
	}, now)
	if err != nil {
		if isTimeout(err) {
			return domain.Hold{}, &domain.SeatsUnavailableError{JourneyID: journeyID, Seats: seatNumbers, Err: err}
		}
		return domain.Hold{}, err
	}
	return hold, nil
}

func (i *SeatInventory) Commit(ctx context.Context, token domain.HoldToken) error {
	return i.store.CommitHold(ctx, token, i.now())
}

func (i *SeatInventory) Release(ctx context.Context, token domain.HoldToken) error {
	return i.store.ReleaseHold(ctx, token)
}

func (i *SeatInventory) ReleaseSeats(ctx context.Context, journeyID string, seatNumbers []string, owner domain.HoldToken) (int, error) {
	return i.store.ReleaseSeats(ctx, journeyID, seatNumbers, owner)
}

// Sweep releases every hold whose lease has run out.
func (i *SeatInventory) Sweep(ctx context.Context) ([]domain.HoldToken, error) {
	return i.store.ReleaseExpired(ctx, i.now())
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
