package application

import (
	"context"
	"errors"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

type paymentResultHandler struct {
	coordinator *Coordinator
	logger      pkgApp.AppLogger
}

// Handle applies a payment result. Outcomes that redelivery cannot change
// are logged and acknowledged; only infrastructure failures are returned.
func (h *paymentResultHandler) Handle(ctx context.Context, command pkgDomain.Command[PaymentResultData]) error {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return ctx.Err()
	}

	data := command.Payload()
	var err error
	if data.Succeeded {
		_, err = h.coordinator.ConfirmPayment(ctx, data.BookingID, data.PaymentID, data.Method)
	} else {
		_, err = h.coordinator.FailPayment(ctx, data.BookingID, data.PaymentID, data.Reason)
	}

	fields := map[string]interface{}{
		"booking_id": data.BookingID,
		"payment_id": data.PaymentID,
		"succeeded":  data.Succeeded,
	}
	switch {
	case err == nil:
		pkgApp.LogInfo(ctx, h.logger, "payment result applied", fields)
		return nil
	case errors.Is(err, domain.ErrHoldExpired):
		pkgApp.LogError(ctx, h.logger, "payment collected for a booking without seats, refund required", err, fields)
		return nil
	case isBusinessError(err):
		pkgApp.LogError(ctx, h.logger, "payment result rejected", err, fields)
		return nil
	default:
		pkgApp.LogError(ctx, h.logger, "failed to apply payment result", err, fields)
		return err
	}
}

func NewPaymentResultHandler(coordinator *Coordinator, logger pkgApp.AppLogger) pkgApp.CommandHandler[pkgDomain.Command[PaymentResultData], PaymentResultData] {
	return &paymentResultHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

type findBookingHandler struct {
	coordinator *Coordinator
	logger      pkgApp.AppLogger
}

func (h *findBookingHandler) Handle(ctx context.Context, query pkgDomain.Query[FindBookingData]) (domain.Booking, error) {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return domain.Booking{}, ctx.Err()
	}

	booking, err := h.coordinator.Booking(ctx, query.Payload().BookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	pkgApp.LogDebug(ctx, h.logger, "booking found", map[string]interface{}{"booking_id": booking.ID})
	return booking, nil
}

func NewFindBookingHandler(coordinator *Coordinator, logger pkgApp.AppLogger) pkgApp.QueryHandler[pkgDomain.Query[FindBookingData], FindBookingData, domain.Booking] {
	return &findBookingHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

type seatAvailabilityHandler struct {
	inventory *SeatInventory
	logger    pkgApp.AppLogger
}

func (h *seatAvailabilityHandler) Handle(ctx context.Context, query pkgDomain.Query[SeatAvailabilityData]) (domain.Availability, error) {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return domain.Availability{}, ctx.Err()
	}
	return h.inventory.Availability(ctx, query.Payload().JourneyID)
}

func NewSeatAvailabilityHandler(inventory *SeatInventory, logger pkgApp.AppLogger) pkgApp.QueryHandler[pkgDomain.Query[SeatAvailabilityData], SeatAvailabilityData, domain.Availability] {
	return &seatAvailabilityHandler{
		inventory: inventory,
		logger:    logger,
	}
}

type bookingEventLogHandler struct {
	logger pkgApp.AppLogger
}

func (h *bookingEventLogHandler) Handle(ctx context.Context, event pkgDomain.Event[BookingEvent]) error {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return ctx.Err()
	}

	payload := event.Payload()
	pkgApp.LogInfo(ctx, h.logger, "booking event", map[string]interface{}{
		"event_name":     event.EventName(),
		"booking_id":     payload.BookingID,
		"status":         payload.Status,
		"payment_status": payload.PaymentStatus,
	})
	return nil
}

// NewBookingEventLogHandler records every lifecycle event in the application log.
func NewBookingEventLogHandler(logger pkgApp.AppLogger) pkgApp.EventHandler[pkgDomain.Event[BookingEvent], BookingEvent] {
	return &bookingEventLogHandler{
		logger: logger,
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrHoldExpired) ||
		errors.Is(err, domain.ErrSeatsUnavailable)
}
