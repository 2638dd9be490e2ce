package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/internal/booking/infrastructure"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

// Dependencies is everything the booking slice needs from the outside.
type Dependencies struct {
	SeatStore       domain.SeatStore
	Bookings        domain.BookingRepository
	CommandBus      application.CommandBus
	FindBookingBus  application.FindBookingBus
	AvailabilityBus application.SeatAvailabilityBus
	EventBus        application.EventBus
	Tokens          pkgDomain.IDGenerator[string]
	Clock           application.Clock
	Logger          pkgApp.AppLogger

	RefundPolicy        domain.RefundPolicy
	HoldTTL             time.Duration
	SweepInterval       time.Duration
	RequestTimeout      time.Duration
	CompensationTimeout time.Duration
}

type BookingSlice struct {
	Inventory    *application.SeatInventory
	Ledger       *application.BookingLedger
	Coordinator  *application.Coordinator
	Cancellation *application.CancellationEngine
	Sweeper      *application.HoldSweeper

	httpHandler *infrastructure.BookingHTTPHandler
}

func (deps Dependencies) validate() error {
	var missing []string
	if deps.SeatStore == nil {
		missing = append(missing, "seat store")
	}
	if deps.Bookings == nil {
		missing = append(missing, "booking repository")
	}
	if deps.CommandBus == nil {
		missing = append(missing, "command bus")
	}
	if deps.FindBookingBus == nil {
		missing = append(missing, "find booking bus")
	}
	if deps.AvailabilityBus == nil {
		missing = append(missing, "availability bus")
	}
	if len(missing) > 0 {
		return fmt.Errorf("booking slice: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func NewBookingSlice(deps Dependencies) (*BookingSlice, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	inventory, err := application.NewSeatInventory(deps.SeatStore, deps.HoldTTL, deps.Clock, deps.Tokens, deps.Logger)
	if err != nil {
		return nil, err
	}
	ledger := application.NewBookingLedger(deps.Bookings, deps.Clock, deps.Logger)
	ids := domain.NewBookingIDGenerator(deps.Clock)
	coordinator := application.NewCoordinator(inventory, ledger, ids.Next, deps.EventBus, deps.Clock, deps.CompensationTimeout, deps.Logger)
	cancellation := application.NewCancellationEngine(inventory, ledger, deps.RefundPolicy, deps.EventBus, deps.Clock, deps.CompensationTimeout, deps.Logger)

	deps.CommandBus.RegisterHandler(application.PaymentResultCommand, application.NewPaymentResultHandler(coordinator, deps.Logger))
	deps.FindBookingBus.RegisterHandler(application.FindBookingQuery, application.NewFindBookingHandler(coordinator, deps.Logger))
	deps.AvailabilityBus.RegisterHandler(application.SeatAvailabilityQuery, application.NewSeatAvailabilityHandler(inventory, deps.Logger))
	if deps.EventBus != nil {
		eventHandler := application.NewBookingEventLogHandler(deps.Logger)
		for _, name := range application.BookingEvents {
			deps.EventBus.RegisterHandler(name, eventHandler)
		}
	}

	return &BookingSlice{
		Inventory:    inventory,
		Ledger:       ledger,
		Coordinator:  coordinator,
		Cancellation: cancellation,
		Sweeper:      application.NewHoldSweeper(inventory, coordinator, deps.SweepInterval, deps.Logger),
		httpHandler: infrastructure.NewBookingHTTPHandler(
			coordinator,
			cancellation,
			inventory,
			deps.CommandBus,
			deps.FindBookingBus,
			deps.AvailabilityBus,
			deps.RequestTimeout,
			deps.Logger,
		),
	}, nil
}

func (s *BookingSlice) RegisterRoutes(router chi.Router) {
	s.httpHandler.RegisterRoutes(router)
}

// RunSweeper blocks until ctx is done.
func (s *BookingSlice) RunSweeper(ctx context.Context) {
	s.Sweeper.Run(ctx)
}
