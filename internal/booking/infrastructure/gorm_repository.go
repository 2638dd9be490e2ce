package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/pkg/application"
)

type gormBookingRepository struct {
	db     *gorm.DB
	logger application.AppLogger
}

func NewGormBookingRepository(db *gorm.DB, logger application.AppLogger) domain.BookingRepository {
	return &gormBookingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *gormBookingRepository) Record(ctx context.Context, booking domain.Booking) error {
	rec := toBookingRecord(booking)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		application.LogError(ctx, r.logger, "failed to record booking", err, map[string]interface{}{
			"booking_id": booking.ID,
		})
		return err
	}

	application.LogInfo(ctx, r.logger, "booking recorded", map[string]interface{}{
		"booking_id": booking.ID,
		"status":     booking.Status,
	})
	return nil
}

func (r *gormBookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	return r.findOne(ctx, "booking", bookingID, "booking_id = ?", bookingID)
}

func (r *gormBookingRepository) FindByHoldToken(ctx context.Context, token domain.HoldToken) (domain.Booking, error) {
	return r.findOne(ctx, "booking for hold", string(token), "hold_token = ?", string(token))
}

func (r *gormBookingRepository) ListByJourney(ctx context.Context, journeyID string) ([]domain.Booking, error) {
	return r.list(ctx, "journey_id = ?", journeyID)
}

func (r *gormBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.list(ctx, "user_id = ?", userID)
}

// CompareAndSet writes the mutable booking columns guarded by status and
// version. Passengers never change after Record.
func (r *gormBookingRepository) CompareAndSet(ctx context.Context, next domain.Booking, expectedStatus domain.BookingStatus, expectedVersion int64) (domain.Booking, error) {
	next.Version = expectedVersion + 1
	res := r.db.WithContext(ctx).Model(&bookingRecord{}).
		Where("booking_id = ? AND status = ? AND version = ?", next.ID, string(expectedStatus), expectedVersion).
		Updates(map[string]interface{}{
			"status":              string(next.Status),
			"payment_status":      string(next.PaymentStatus),
			"payment_id":          next.PaymentID,
			"payment_method":      string(next.PaymentMethod),
			"cancellation_reason": next.CancellationReason,
			"cancelled_at":        next.CancelledAt,
			"refund_amount":       int64(next.RefundAmount),
			"updated_at":          next.UpdatedAt,
			"version":             next.Version,
		})
	if res.Error != nil {
		application.LogError(ctx, r.logger, "failed to update booking", res.Error, map[string]interface{}{
			"booking_id": next.ID,
		})
		return domain.Booking{}, res.Error
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&bookingRecord{}).Where("booking_id = ?", next.ID).Count(&count).Error; err != nil {
			return domain.Booking{}, err
		}
		if count == 0 {
			return domain.Booking{}, domain.NotFoundError{Resource: "booking", ID: next.ID}
		}
		application.LogDebug(ctx, r.logger, "stale booking write", map[string]interface{}{
			"booking_id":       next.ID,
			"expected_status":  expectedStatus,
			"expected_version": expectedVersion,
		})
		return domain.Booking{}, fmt.Errorf("booking %s: %w", next.ID, domain.ErrStaleState)
	}

	application.LogInfo(ctx, r.logger, "booking updated", map[string]interface{}{
		"booking_id":     next.ID,
		"status":         next.Status,
		"payment_status": next.PaymentStatus,
		"version":        next.Version,
	})
	return next, nil
}

func (r *gormBookingRepository) findOne(ctx context.Context, resource, id string, query string, args ...interface{}) (domain.Booking, error) {
	var rec bookingRecord
	err := r.db.WithContext(ctx).
		Preload("Passengers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where(query, args...).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Booking{}, domain.NotFoundError{Resource: resource, ID: id}
		}
		application.LogError(ctx, r.logger, "failed to find booking", err, map[string]interface{}{
			"resource": resource,
			"id":       id,
		})
		return domain.Booking{}, err
	}
	return rec.toDomain(), nil
}

func (r *gormBookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Booking, error) {
	var records []bookingRecord
	err := r.db.WithContext(ctx).
		Preload("Passengers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where(query, args...).
		Order("booking_id").
		Find(&records).Error
	if err != nil {
		application.LogError(ctx, r.logger, "failed to list bookings", err, map[string]interface{}{
			"query": query,
		})
		return nil, err
	}

	bookings := make([]domain.Booking, len(records))
	for i, rec := range records {
		bookings[i] = rec.toDomain()
	}
	return bookings, nil
}
