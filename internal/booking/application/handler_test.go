package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
	pkgInfra "github.com/mateusmacedo/bus-booking/pkg/infrastructure"
)

func TestPaymentResultHandler_ConfirmsAndFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bus := pkgInfra.NewSimpleCommandBus[pkgDomain.Command[application.PaymentResultData], application.PaymentResultData](f.logger)
	bus.RegisterHandler(application.PaymentResultCommand, application.NewPaymentResultHandler(f.coordinator, f.logger))

	paid, err := f.coordinator.Reserve(ctx, request("u1", "S1"))
	require.NoError(t, err)
	unpaid, err := f.coordinator.Reserve(ctx, request("u2", "S2"))
	require.NoError(t, err)

	require.NoError(t, bus.Dispatch(ctx, application.NewPaymentResultCommand(application.PaymentResultData{
		BookingID: paid.Booking.ID,
		PaymentID: "pay-1",
		Method:    domain.PaymentUPI,
		Succeeded: true,
	})))
	require.NoError(t, bus.Dispatch(ctx, application.NewPaymentResultCommand(application.PaymentResultData{
		BookingID: unpaid.Booking.ID,
		PaymentID: "pay-2",
		Reason:    "card declined",
	})))

	b, err := f.coordinator.Booking(ctx, paid.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.Equal(t, domain.PaymentUPI, b.PaymentMethod)

	b, err = f.coordinator.Booking(ctx, unpaid.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, b.PaymentStatus)
	assert.Equal(t, "card declined", b.CancellationReason)
}

func TestPaymentResultHandler_AcknowledgesBusinessOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	handler := application.NewPaymentResultHandler(f.coordinator, f.logger)
	res, err := f.coordinator.Reserve(ctx, request("u1", "S1"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	late := application.NewPaymentResultCommand(application.PaymentResultData{
		BookingID: res.Booking.ID,
		PaymentID: "pay-late",
		Method:    domain.PaymentCard,
		Succeeded: true,
	})
	unknown := application.NewPaymentResultCommand(application.PaymentResultData{
		BookingID: "BKG404",
		PaymentID: "pay-x",
		Method:    domain.PaymentCard,
		Succeeded: true,
	})

	assert.NoError(t, handler.Handle(ctx, late))
	assert.NoError(t, handler.Handle(ctx, unknown))
}

func TestPaymentResultHandler_ReturnsCancelledContext(t *testing.T) {
	f := newFixture(t)
	handler := application.NewPaymentResultHandler(f.coordinator, f.logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Handle(ctx, application.NewPaymentResultCommand(application.PaymentResultData{BookingID: "B"}))

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestQueryHandlers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	findBus := pkgInfra.NewSimpleQueryBus[pkgDomain.Query[application.FindBookingData], application.FindBookingData, domain.Booking](f.logger)
	findBus.RegisterHandler(application.FindBookingQuery, application.NewFindBookingHandler(f.coordinator, f.logger))
	seatBus := pkgInfra.NewSimpleQueryBus[pkgDomain.Query[application.SeatAvailabilityData], application.SeatAvailabilityData, domain.Availability](f.logger)
	seatBus.RegisterHandler(application.SeatAvailabilityQuery, application.NewSeatAvailabilityHandler(f.inventory, f.logger))

	held, err := f.coordinator.Reserve(ctx, request("u1", "S1"))
	require.NoError(t, err)
	f.confirmedBooking(t, "u2", "S2", "S3")

	b, err := findBus.Dispatch(ctx, application.NewFindBookingQuery(application.FindBookingData{BookingID: held.Booking.ID}))
	require.NoError(t, err)
	assert.Equal(t, held.Booking.ID, b.ID)

	a, err := seatBus.Dispatch(ctx, application.NewSeatAvailabilityQuery(application.SeatAvailabilityData{JourneyID: "J-1"}))
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{JourneyID: "J-1", Total: 6, Available: 3, Held: 1, Sold: 2}, a)

	_, err = findBus.Dispatch(ctx, application.NewFindBookingQuery(application.FindBookingData{BookingID: "missing"}))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestBookingEventLogHandler(t *testing.T) {
	f := newFixture(t)
	handler := application.NewBookingEventLogHandler(f.logger)
	event := application.NewBookingEvent(application.BookingReservedEvent, domain.Booking{ID: "B1"}, start)

	assert.NoError(t, handler.Handle(context.Background(), event))
	assert.Equal(t, "B1", event.Payload().BookingID)
}
