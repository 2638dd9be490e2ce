package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/pkg/application"
)

// holdSeatsSQL claims every listed seat that is free or whose hold lapsed, in
// one statement. Postgres row locks make it the serialization point between
// competing holds.
const holdSeatsSQL = `UPDATE seats SET state = ?, hold_token = ?, held_until = ?, updated_at = ?
WHERE journey_id = ? AND seat_number IN ? AND (state = ? OR (state = ? AND held_until <= ?))`

type gormSeatStore struct {
	db     *gorm.DB
	logger application.AppLogger
}

func NewGormSeatStore(db *gorm.DB, logger application.AppLogger) domain.SeatStore {
	return &gormSeatStore{
		db:     db,
		logger: logger,
	}
}

func (s *gormSeatStore) SaveJourney(ctx context.Context, journey domain.JourneyInstance, seats []domain.Seat) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toJourneyRecord(journey)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		records := make([]seatRecord, len(seats))
		for i, seat := range seats {
			records[i] = toSeatRecord(seat, i, now)
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		application.LogError(ctx, s.logger, "failed to save journey", err, map[string]interface{}{
			"journey_id": journey.ID,
		})
		return err
	}

	application.LogInfo(ctx, s.logger, "journey saved", map[string]interface{}{
		"journey_id": journey.ID,
		"seats":      len(seats),
	})
	return nil
}

func (s *gormSeatStore) FindJourney(ctx context.Context, journeyID string) (domain.JourneyInstance, error) {
	var rec journeyRecord
	if err := s.db.WithContext(ctx).Where("id = ?", journeyID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.JourneyInstance{}, domain.NotFoundError{Resource: "journey", ID: journeyID}
		}
		application.LogError(ctx, s.logger, "failed to find journey", err, map[string]interface{}{
			"journey_id": journeyID,
		})
		return domain.JourneyInstance{}, err
	}
	return rec.toDomain(), nil
}

func (s *gormSeatStore) ListSeats(ctx context.Context, journeyID string) ([]domain.Seat, error) {
	if _, err := s.FindJourney(ctx, journeyID); err != nil {
		return nil, err
	}

	var records []seatRecord
	if err := s.db.WithContext(ctx).Where("journey_id = ?", journeyID).Order("position").Find(&records).Error; err != nil {
		application.LogError(ctx, s.logger, "failed to list seats", err, map[string]interface{}{
			"journey_id": journeyID,
		})
		return nil, err
	}

	seats := make([]domain.Seat, len(records))
	for i, rec := range records {
		seats[i] = rec.toDomain()
	}
	return seats, nil
}

func (s *gormSeatStore) UpdateSeatPrice(ctx context.Context, journeyID, seatNumber string, price domain.Money) error {
	res := s.db.WithContext(ctx).Model(&seatRecord{}).
		Where("journey_id = ? AND seat_number = ?", journeyID, seatNumber).
		Updates(map[string]interface{}{"price": int64(price), "updated_at": time.Now()})
	if res.Error != nil {
		application.LogError(ctx, s.logger, "failed to update seat price", res.Error, map[string]interface{}{
			"journey_id":  journeyID,
			"seat_number": seatNumber,
		})
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "seat", ID: journeyID + "/" + seatNumber}
	}

	application.LogInfo(ctx, s.logger, "seat price updated", map[string]interface{}{
		"journey_id":  journeyID,
		"seat_number": seatNumber,
		"price":       price,
	})
	return nil
}

func (s *gormSeatStore) HoldSeats(ctx context.Context, hold domain.Hold, now time.Time) (domain.Hold, error) {
	numbers := uniqueSorted(hold.SeatNumbers)

	var records []seatRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(holdSeatsSQL,
			string(domain.SeatHeld), string(hold.Token), hold.ExpiresAt, now,
			hold.JourneyID, numbers, string(domain.SeatAvailable), string(domain.SeatHeld), now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(numbers)) {
			return s.holdConflict(tx, hold.JourneyID, hold.Token, numbers, now)
		}

		rec := holdRecord{
			Token:     string(hold.Token),
			JourneyID: hold.JourneyID,
			SeatCount: len(numbers),
			Status:    string(domain.HoldActive),
			ExpiresAt: hold.ExpiresAt,
			CreatedAt: now,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		return tx.Where("journey_id = ? AND seat_number IN ?", hold.JourneyID, numbers).Find(&records).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSeatsUnavailable) && !errors.Is(err, domain.ErrNotFound) {
			application.LogError(ctx, s.logger, "failed to hold seats", err, map[string]interface{}{
				"journey_id": hold.JourneyID,
				"seats":      hold.SeatNumbers,
			})
		}
		return domain.Hold{}, err
	}

	byNumber := make(map[string]domain.Seat, len(records))
	for _, rec := range records {
		byNumber[rec.SeatNumber] = rec.toDomain()
	}
	hold.Seats = make([]domain.Seat, 0, len(hold.SeatNumbers))
	for _, number := range hold.SeatNumbers {
		hold.Seats = append(hold.Seats, byNumber[number])
	}
	hold.Status = domain.HoldActive

	application.LogInfo(ctx, s.logger, "seats held", map[string]interface{}{
		"journey_id": hold.JourneyID,
		"hold_token": hold.Token,
		"seats":      hold.SeatNumbers,
		"expires_at": hold.ExpiresAt,
	})
	return hold, nil
}

// holdConflict explains a short conditional update. Returning an error makes
// the surrounding transaction roll back the seats that were claimed.
func (s *gormSeatStore) holdConflict(tx *gorm.DB, journeyID string, token domain.HoldToken, numbers []string, now time.Time) error {
	var records []seatRecord
	if err := tx.Where("journey_id = ? AND seat_number IN ?", journeyID, numbers).Find(&records).Error; err != nil {
		return err
	}
	if len(records) == 0 {
		return domain.NotFoundError{Resource: "journey", ID: journeyID}
	}

	found := make(map[string]domain.Seat, len(records))
	for _, rec := range records {
		found[rec.SeatNumber] = rec.toDomain()
	}
	var conflicts []string
	for _, number := range numbers {
		seat, ok := found[number]
		if !ok {
			return domain.NotFoundError{Resource: "seat", ID: journeyID + "/" + number}
		}
		if seat.HoldToken != token && !seat.AvailableAt(now) {
			conflicts = append(conflicts, number)
		}
	}
	return &domain.SeatsUnavailableError{JourneyID: journeyID, Seats: conflicts}
}

func (s *gormSeatStore) CommitHold(ctx context.Context, token domain.HoldToken, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec holdRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("token = ?", string(token)).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("commit hold %s: unknown: %w", token, domain.ErrInvalidToken)
			}
			return err
		}
		if rec.Status != string(domain.HoldActive) || !now.Before(rec.ExpiresAt) {
			return fmt.Errorf("commit hold %s (%s): %w", token, rec.Status, domain.ErrInvalidToken)
		}

		res := tx.Model(&seatRecord{}).
			Where("hold_token = ? AND state = ? AND held_until > ?", string(token), string(domain.SeatHeld), now).
			Updates(map[string]interface{}{"state": string(domain.SeatSold), "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(rec.SeatCount) {
			return fmt.Errorf("commit hold %s: %d of %d seats still held: %w", token, res.RowsAffected, rec.SeatCount, domain.ErrInvalidToken)
		}

		return tx.Model(&holdRecord{}).Where("token = ?", string(token)).Update("status", string(domain.HoldCommitted)).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidToken) {
			application.LogError(ctx, s.logger, "failed to commit hold", err, map[string]interface{}{
				"hold_token": token,
			})
		}
		return err
	}

	application.LogInfo(ctx, s.logger, "hold committed", map[string]interface{}{
		"hold_token": token,
	})
	return nil
}

func (s *gormSeatStore) ReleaseHold(ctx context.Context, token domain.HoldToken) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec holdRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("token = ?", string(token)).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if rec.Status != string(domain.HoldActive) {
			return nil
		}
		if err := freeHeldSeats(tx, []string{rec.Token}); err != nil {
			return err
		}
		return tx.Model(&holdRecord{}).Where("token = ?", rec.Token).Update("status", string(domain.HoldReleased)).Error
	})
	if err != nil {
		application.LogError(ctx, s.logger, "failed to release hold", err, map[string]interface{}{
			"hold_token": token,
		})
		return err
	}

	application.LogInfo(ctx, s.logger, "hold released", map[string]interface{}{
		"hold_token": token,
	})
	return nil
}

func (s *gormSeatStore) ReleaseSeats(ctx context.Context, journeyID string, seatNumbers []string, owner domain.HoldToken) (int, error) {
	var freed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&seatRecord{}).
			Where("journey_id = ? AND seat_number IN ? AND hold_token = ? AND state IN ?",
				journeyID, uniqueSorted(seatNumbers), string(owner), []string{string(domain.SeatHeld), string(domain.SeatSold)}).
			Updates(freedSeatColumns())
		if res.Error != nil {
			return res.Error
		}
		freed = res.RowsAffected

		return tx.Model(&holdRecord{}).
			Where("token = ? AND status = ?", string(owner), string(domain.HoldActive)).
			Update("status", string(domain.HoldReleased)).Error
	})
	if err != nil {
		application.LogError(ctx, s.logger, "failed to release seats", err, map[string]interface{}{
			"journey_id": journeyID,
			"hold_token": owner,
		})
		return 0, err
	}

	application.LogInfo(ctx, s.logger, "seats released", map[string]interface{}{
		"journey_id": journeyID,
		"hold_token": owner,
		"freed":      freed,
	})
	return int(freed), nil
}

// ReleaseExpired skips hold rows locked by a concurrent commit; the next sweep
// sees them resolved one way or the other.
func (s *gormSeatStore) ReleaseExpired(ctx context.Context, now time.Time) ([]domain.HoldToken, error) {
	var tokens []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []holdRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND expires_at <= ?", string(domain.HoldActive), now).
			Order("token").
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		tokens = make([]string, len(expired))
		for i, h := range expired {
			tokens[i] = h.Token
		}
		if err := freeHeldSeats(tx, tokens); err != nil {
			return err
		}
		return tx.Model(&holdRecord{}).Where("token IN ?", tokens).Update("status", string(domain.HoldExpired)).Error
	})
	if err != nil {
		application.LogError(ctx, s.logger, "failed to release expired holds", err, nil)
		return nil, err
	}

	released := make([]domain.HoldToken, len(tokens))
	for i, t := range tokens {
		released[i] = domain.HoldToken(t)
	}
	if len(released) > 0 {
		application.LogInfo(ctx, s.logger, "expired holds released", map[string]interface{}{
			"holds": released,
		})
	}
	return released, nil
}

func freeHeldSeats(tx *gorm.DB, tokens []string) error {
	return tx.Model(&seatRecord{}).
		Where("hold_token IN ? AND state = ?", tokens, string(domain.SeatHeld)).
		Updates(freedSeatColumns()).Error
}

func freedSeatColumns() map[string]interface{} {
	return map[string]interface{}{
		"state":      string(domain.SeatAvailable),
		"hold_token": "",
		"held_until": nil,
		"updated_at": time.Now(),
	}
}

func uniqueSorted(values []string) []string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || sorted[i-1] != v {
			out = append(out, v)
		}
	}
	return out
}
