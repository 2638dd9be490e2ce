package infrastructure_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mateusmacedo/bus-booking/pkg/application"
	"github.com/mateusmacedo/bus-booking/pkg/domain"
	"github.com/mateusmacedo/bus-booking/pkg/infrastructure"
	"github.com/mateusmacedo/bus-booking/pkg/infrastructure/zaplogger/adapter"
)

type seatRequest struct {
	JourneyID string
	Seat      string
}

func testLogger(t *testing.T) application.AppLogger {
	return adapter.NewZapAppLoggerFrom(zaptest.NewLogger(t))
}

func TestSimpleCommandBus_Dispatch(t *testing.T) {
	bus := infrastructure.NewSimpleCommandBus[domain.Command[seatRequest], seatRequest](testLogger(t))
	var got seatRequest
	bus.RegisterHandler("HoldSeat", application.CommandHandlerFunc[domain.Command[seatRequest], seatRequest](
		func(_ context.Context, cmd domain.Command[seatRequest]) error {
			got = cmd.Payload()
			return nil
		}))

	require.NoError(t, bus.Dispatch(context.Background(), domain.NewCommand("HoldSeat", seatRequest{"J-1", "S1"})))
	assert.Equal(t, seatRequest{"J-1", "S1"}, got)

	err := bus.Dispatch(context.Background(), domain.NewCommand("ReleaseSeat", seatRequest{}))
	assert.ErrorContains(t, err, "ReleaseSeat")
}

func TestSimpleCommandBus_ReturnsHandlerError(t *testing.T) {
	bus := infrastructure.NewSimpleCommandBus[domain.Command[seatRequest], seatRequest](testLogger(t))
	boom := errors.New("boom")
	bus.RegisterHandler("HoldSeat", application.CommandHandlerFunc[domain.Command[seatRequest], seatRequest](
		func(context.Context, domain.Command[seatRequest]) error { return boom }))

	assert.ErrorIs(t, bus.Dispatch(context.Background(), domain.NewCommand("HoldSeat", seatRequest{})), boom)
}

func TestSimpleQueryBus_Dispatch(t *testing.T) {
	bus := infrastructure.NewSimpleQueryBus[domain.Query[string], string, int](testLogger(t))
	bus.RegisterHandler("FreeSeats", application.QueryHandlerFunc[domain.Query[string], string, int](
		func(_ context.Context, q domain.Query[string]) (int, error) {
			if q.Payload() == "J-404" {
				return 0, errors.New("unknown journey")
			}
			return 7, nil
		}))

	n, err := bus.Dispatch(context.Background(), domain.NewQuery("FreeSeats", "J-1"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = bus.Dispatch(context.Background(), domain.NewQuery("FreeSeats", "J-404"))
	assert.ErrorContains(t, err, "unknown journey")

	_, err = bus.Dispatch(context.Background(), domain.NewQuery("Other", "J-1"))
	assert.Error(t, err)
}

func TestSimpleQueryBus_HonoursCancellation(t *testing.T) {
	bus := infrastructure.NewSimpleQueryBus[domain.Query[string], string, int](testLogger(t))
	release := make(chan struct{})
	defer close(release)
	bus.RegisterHandler("Slow", application.QueryHandlerFunc[domain.Query[string], string, int](
		func(context.Context, domain.Query[string]) (int, error) {
			<-release
			return 1, nil
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := bus.Dispatch(ctx, domain.NewQuery("Slow", ""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimpleEventBus_FansOutAndJoinsErrors(t *testing.T) {
	bus := infrastructure.NewSimpleEventBus[domain.Event[string], string](testLogger(t))
	var calls atomic.Int32
	ok := application.EventHandlerFunc[domain.Event[string], string](func(context.Context, domain.Event[string]) error {
		calls.Add(1)
		return nil
	})
	failing := application.EventHandlerFunc[domain.Event[string], string](func(context.Context, domain.Event[string]) error {
		calls.Add(1)
		return errors.New("projection down")
	})

	bus.RegisterHandler("BookingConfirmed", ok)
	bus.RegisterHandler("BookingConfirmed", ok)
	require.NoError(t, bus.Publish(context.Background(), domain.NewEvent("BookingConfirmed", "BKG1")))
	assert.Equal(t, int32(2), calls.Load())

	bus.RegisterHandler("BookingConfirmed", failing)
	err := bus.Publish(context.Background(), domain.NewEvent("BookingConfirmed", "BKG1"))
	assert.ErrorContains(t, err, "projection down")
	assert.Equal(t, int32(5), calls.Load())

	assert.NoError(t, bus.Publish(context.Background(), domain.NewEvent("Unheard", "BKG1")))
}
