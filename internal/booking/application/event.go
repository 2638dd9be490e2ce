package application

import (
	"context"
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

const (
	BookingReservedEvent      = "BookingReserved"
	BookingConfirmedEvent     = "BookingConfirmed"
	BookingPaymentFailedEvent = "BookingPaymentFailed"
	BookingExpiredEvent       = "BookingExpired"
	BookingCancelledEvent     = "BookingCancelled"
	BookingCompletedEvent     = "BookingCompleted"

	// PaymentRefundRequiredEvent carries a payment id that was collected for
	// a booking that ended without seats.
	PaymentRefundRequiredEvent = "PaymentRefundRequired"
)

// BookingEvents lists every lifecycle event the coordinator and the
// cancellation engine publish.
var BookingEvents = []string{
	BookingReservedEvent,
	BookingConfirmedEvent,
	BookingPaymentFailedEvent,
	BookingExpiredEvent,
	BookingCancelledEvent,
	BookingCompletedEvent,
	PaymentRefundRequiredEvent,
}

type BookingEvent struct {
	BookingID     string               `json:"bookingId"`
	UserID        string               `json:"userId"`
	JourneyID     string               `json:"journeyId"`
	Seats         []string             `json:"seats"`
	Status        domain.BookingStatus `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	PaymentID     string               `json:"paymentId,omitempty"`
	TotalAmount   domain.Money         `json:"totalAmount"`
	RefundAmount  domain.Money         `json:"refundAmount"`
	Reason        string               `json:"reason,omitempty"`
	Version       int64                `json:"version"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

type EventBus = pkgApp.EventBus[pkgDomain.Event[BookingEvent], BookingEvent]

func NewBookingEvent(name string, b domain.Booking, at time.Time) pkgDomain.Event[BookingEvent] {
	return pkgDomain.NewEvent(name, BookingEvent{
		BookingID:     b.ID,
		UserID:        b.UserID,
		JourneyID:     b.JourneyID,
		Seats:         b.SeatNumbers(),
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		PaymentID:     b.PaymentID,
		TotalAmount:   b.TotalAmount,
		RefundAmount:  b.RefundAmount,
		Reason:        b.CancellationReason,
		Version:       b.Version,
		OccurredAt:    at,
	})
}

// publish never fails the caller: the ledger is already the source of truth.
func publish(ctx context.Context, bus EventBus, logger pkgApp.AppLogger, name string, b domain.Booking, at time.Time) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, NewBookingEvent(name, b, at)); err != nil {
		pkgApp.LogError(ctx, logger, "failed to publish booking event", err, map[string]interface{}{
			"event_name": name,
			"booking_id": b.ID,
		})
	}
}
