package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/pkg/application"
)

type memorySeat struct {
	mu   sync.Mutex
	seat domain.Seat
}

type memoryJourney struct {
	journey domain.JourneyInstance
	order   []string
	seats   map[string]*memorySeat
}

type memoryHold struct {
	journeyID string
	seats     []string
	expiresAt time.Time
	status    domain.HoldStatus
}

// InMemorySeatStore keeps one mutex per seat. Multi-seat operations lock their
// seats in sorted order, so overlapping requests serialize without deadlock.
// Hold bookkeeping is only touched while the hold's seats are locked.
type InMemorySeatStore struct {
	mu       sync.RWMutex
	journeys map[string]*memoryJourney

	holdsMu sync.Mutex
	holds   map[domain.HoldToken]*memoryHold

	logger application.AppLogger
}

func NewInMemorySeatStore(logger application.AppLogger) *InMemorySeatStore {
	return &InMemorySeatStore{
		journeys: make(map[string]*memoryJourney),
		holds:    make(map[domain.HoldToken]*memoryHold),
		logger:   logger,
	}
}

func (s *InMemorySeatStore) SaveJourney(ctx context.Context, journey domain.JourneyInstance, seats []domain.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mj := &memoryJourney{
		journey: journey,
		order:   make([]string, 0, len(seats)),
		seats:   make(map[string]*memorySeat, len(seats)),
	}
	for _, seat := range seats {
		mj.order = append(mj.order, seat.Number)
		mj.seats[seat.Number] = &memorySeat{seat: seat}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.journeys[journey.ID]; exists {
		application.LogInfo(ctx, s.logger, "journey already exists", map[string]interface{}{
			"journey_id": journey.ID,
		})
		return domain.ValidationError{Field: "id", Msg: fmt.Sprintf("journey %s already exists", journey.ID)}
	}
	s.journeys[journey.ID] = mj

	application.LogInfo(ctx, s.logger, "journey saved", map[string]interface{}{
		"journey_id": journey.ID,
		"seats":      len(seats),
	})
	return nil
}

func (s *InMemorySeatStore) FindJourney(ctx context.Context, journeyID string) (domain.JourneyInstance, error) {
	mj, err := s.journey(ctx, journeyID)
	if err != nil {
		return domain.JourneyInstance{}, err
	}
	return mj.journey, nil
}

func (s *InMemorySeatStore) ListSeats(ctx context.Context, journeyID string) ([]domain.Seat, error) {
	mj, err := s.journey(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	seats := make([]domain.Seat, 0, len(mj.order))
	for _, number := range mj.order {
		ms := mj.seats[number]
		ms.mu.Lock()
		seats = append(seats, ms.seat)
		ms.mu.Unlock()
	}
	return seats, nil
}

func (s *InMemorySeatStore) UpdateSeatPrice(ctx context.Context, journeyID, seatNumber string, price domain.Money) error {
	locked, err := s.lockSeats(ctx, journeyID, []string{seatNumber})
	if err != nil {
		return err
	}
	defer unlockSeats(locked)

	locked[0].seat.Price = price
	application.LogInfo(ctx, s.logger, "seat price updated", map[string]interface{}{
		"journey_id":  journeyID,
		"seat_number": seatNumber,
		"price":       price,
	})
	return nil
}

func (s *InMemorySeatStore) HoldSeats(ctx context.Context, hold domain.Hold, now time.Time) (domain.Hold, error) {
	locked, err := s.lockSeats(ctx, hold.JourneyID, hold.SeatNumbers)
	if err != nil {
		return domain.Hold{}, err
	}
	defer unlockSeats(locked)

	var conflicts []string
	for _, ms := range locked {
		if !ms.seat.AvailableAt(now) {
			conflicts = append(conflicts, ms.seat.Number)
		}
	}
	if len(conflicts) > 0 {
		application.LogDebug(ctx, s.logger, "seats unavailable", map[string]interface{}{
			"journey_id": hold.JourneyID,
			"seats":      conflicts,
		})
		return domain.Hold{}, &domain.SeatsUnavailableError{JourneyID: hold.JourneyID, Seats: conflicts}
	}

	s.holdsMu.Lock()
	if _, exists := s.holds[hold.Token]; exists {
		s.holdsMu.Unlock()
		return domain.Hold{}, fmt.Errorf("hold token %s already used", hold.Token)
	}
	numbers := make([]string, len(locked))
	for i, ms := range locked {
		numbers[i] = ms.seat.Number
	}
	s.holds[hold.Token] = &memoryHold{
		journeyID: hold.JourneyID,
		seats:     numbers,
		expiresAt: hold.ExpiresAt,
		status:    domain.HoldActive,
	}
	s.holdsMu.Unlock()

	for _, ms := range locked {
		ms.seat.State = domain.SeatHeld
		ms.seat.HoldToken = hold.Token
		ms.seat.HeldUntil = hold.ExpiresAt
	}

	hold.Status = domain.HoldActive
	hold.Seats = snapshot(locked, hold.SeatNumbers)
	application.LogInfo(ctx, s.logger, "seats held", map[string]interface{}{
		"journey_id": hold.JourneyID,
		"hold_token": hold.Token,
		"seats":      hold.SeatNumbers,
		"expires_at": hold.ExpiresAt,
	})
	return hold, nil
}

func (s *InMemorySeatStore) CommitHold(ctx context.Context, token domain.HoldToken, now time.Time) error {
	rec, locked, err := s.lockHold(ctx, token)
	if err != nil {
		return err
	}
	defer unlockSeats(locked)

	s.holdsMu.Lock()
	defer s.holdsMu.Unlock()

	if rec.status != domain.HoldActive || !now.Before(rec.expiresAt) {
		return fmt.Errorf("commit hold %s (%s): %w", token, rec.status, domain.ErrInvalidToken)
	}
	for _, ms := range locked {
		if ms.seat.State != domain.SeatHeld || ms.seat.HoldToken != token || !now.Before(ms.seat.HeldUntil) {
			return fmt.Errorf("commit hold %s: seat %s no longer held: %w", token, ms.seat.Number, domain.ErrInvalidToken)
		}
	}

	for _, ms := range locked {
		ms.seat.State = domain.SeatSold
	}
	rec.status = domain.HoldCommitted

	application.LogInfo(ctx, s.logger, "hold committed", map[string]interface{}{
		"hold_token": token,
		"journey_id": rec.journeyID,
		"seats":      rec.seats,
	})
	return nil
}

func (s *InMemorySeatStore) ReleaseHold(ctx context.Context, token domain.HoldToken) error {
	rec, locked, err := s.lockHold(ctx, token)
	if err != nil {
		if isUnknownHold(err) {
			return nil
		}
		return err
	}
	defer unlockSeats(locked)

	s.holdsMu.Lock()
	defer s.holdsMu.Unlock()

	if rec.status != domain.HoldActive {
		return nil
	}
	freed := 0
	for _, ms := range locked {
		if ms.seat.State == domain.SeatHeld && ms.seat.HoldToken == token {
			freeSeat(&ms.seat)
			freed++
		}
	}
	rec.status = domain.HoldReleased

	application.LogInfo(ctx, s.logger, "hold released", map[string]interface{}{
		"hold_token": token,
		"freed":      freed,
	})
	return nil
}

func (s *InMemorySeatStore) ReleaseSeats(ctx context.Context, journeyID string, seatNumbers []string, owner domain.HoldToken) (int, error) {
	locked, err := s.lockSeats(ctx, journeyID, seatNumbers)
	if err != nil {
		return 0, err
	}
	defer unlockSeats(locked)

	freed := 0
	for _, ms := range locked {
		if ms.seat.HoldToken == owner && (ms.seat.State == domain.SeatHeld || ms.seat.State == domain.SeatSold) {
			freeSeat(&ms.seat)
			freed++
		}
	}

	s.holdsMu.Lock()
	if rec, ok := s.holds[owner]; ok && rec.status == domain.HoldActive {
		rec.status = domain.HoldReleased
	}
	s.holdsMu.Unlock()

	application.LogInfo(ctx, s.logger, "seats released", map[string]interface{}{
		"journey_id": journeyID,
		"hold_token": owner,
		"freed":      freed,
	})
	return freed, nil
}

// ReleaseExpired frees the seats of every active hold whose lease ran out and
// returns their tokens. A hold committed in the meantime is left alone.
func (s *InMemorySeatStore) ReleaseExpired(ctx context.Context, now time.Time) ([]domain.HoldToken, error) {
	s.holdsMu.Lock()
	var candidates []domain.HoldToken
	for token, rec := range s.holds {
		if rec.status == domain.HoldActive && !now.Before(rec.expiresAt) {
			candidates = append(candidates, token)
		}
	}
	s.holdsMu.Unlock()
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var expired []domain.HoldToken
	for _, token := range candidates {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if s.expireHold(ctx, token, now) {
			expired = append(expired, token)
		}
	}

	if len(expired) > 0 {
		application.LogInfo(ctx, s.logger, "expired holds released", map[string]interface{}{
			"holds": expired,
		})
	}
	return expired, nil
}

func (s *InMemorySeatStore) expireHold(ctx context.Context, token domain.HoldToken, now time.Time) bool {
	rec, locked, err := s.lockHold(ctx, token)
	if err != nil {
		return false
	}
	defer unlockSeats(locked)

	s.holdsMu.Lock()
	defer s.holdsMu.Unlock()

	if rec.status != domain.HoldActive || now.Before(rec.expiresAt) {
		return false
	}
	for _, ms := range locked {
		if ms.seat.State == domain.SeatHeld && ms.seat.HoldToken == token {
			freeSeat(&ms.seat)
		}
	}
	rec.status = domain.HoldExpired
	return true
}

func (s *InMemorySeatStore) journey(ctx context.Context, journeyID string) (*memoryJourney, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	mj, ok := s.journeys[journeyID]
	if !ok {
		return nil, domain.NotFoundError{Resource: "journey", ID: journeyID}
	}
	return mj, nil
}

// lockSeats locks the named seats in sorted order. The caller must call
// unlockSeats on the result.
func (s *InMemorySeatStore) lockSeats(ctx context.Context, journeyID string, seatNumbers []string) ([]*memorySeat, error) {
	mj, err := s.journey(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), seatNumbers...)
	sort.Strings(sorted)

	locked := make([]*memorySeat, 0, len(sorted))
	for i, number := range sorted {
		if i > 0 && sorted[i-1] == number {
			continue
		}
		ms, ok := mj.seats[number]
		if !ok {
			return nil, domain.NotFoundError{Resource: "seat", ID: journeyID + "/" + number}
		}
		locked = append(locked, ms)
	}
	for _, ms := range locked {
		ms.mu.Lock()
	}
	return locked, nil
}

var errUnknownHold = fmt.Errorf("unknown hold: %w", domain.ErrInvalidToken)

func isUnknownHold(err error) bool { return errors.Is(err, errUnknownHold) }

func (s *InMemorySeatStore) lockHold(ctx context.Context, token domain.HoldToken) (*memoryHold, []*memorySeat, error) {
	s.holdsMu.Lock()
	rec, ok := s.holds[token]
	s.holdsMu.Unlock()
	if !ok {
		return nil, nil, errUnknownHold
	}

	locked, err := s.lockSeats(ctx, rec.journeyID, rec.seats)
	if err != nil {
		return nil, nil, err
	}
	return rec, locked, nil
}

func unlockSeats(locked []*memorySeat) {
	for _, ms := range locked {
		ms.mu.Unlock()
	}
}

func freeSeat(seat *domain.Seat) {
	seat.State = domain.SeatAvailable
	seat.HoldToken = ""
	seat.HeldUntil = time.Time{}
}

// snapshot returns the seats in the order the caller asked for them.
func snapshot(locked []*memorySeat, order []string) []domain.Seat {
	byNumber := make(map[string]domain.Seat, len(locked))
	for _, ms := range locked {
		byNumber[ms.seat.Number] = ms.seat
	}
	seats := make([]domain.Seat, 0, len(order))
	for _, number := range order {
		seats = append(seats, byNumber[number])
	}
	return seats
}
