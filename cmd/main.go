package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mateusmacedo/bus-booking/internal/booking"
	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	"github.com/mateusmacedo/bus-booking/internal/booking/infrastructure"
	"github.com/mateusmacedo/bus-booking/internal/config"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
	pkgInfra "github.com/mateusmacedo/bus-booking/pkg/infrastructure"
	zapAdapter "github.com/mateusmacedo/bus-booking/pkg/infrastructure/zaplogger/adapter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	appLogger, err := zapAdapter.NewZapAppLogger(cfg.AppName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		pkgApp.LogError(context.Background(), appLogger, "bus-booking stopped with error", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, appLogger pkgApp.AppLogger) error {
	seatStore, bookings, err := newStores(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	bus, err := newTransport(cfg, appLogger)
	if err != nil {
		pkgApp.LogError(ctx, appLogger, "failed to start transport", err, map[string]interface{}{
			"transport": cfg.Transport,
		})
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			pkgApp.LogError(context.Background(), appLogger, "failed to close transport", err, nil)
		}
	}()

	slice, err := booking.NewBookingSlice(booking.Dependencies{
		SeatStore:           seatStore,
		Bookings:            bookings,
		CommandBus:          bus.commandBus,
		FindBookingBus:      pkgInfra.NewSimpleQueryBus[pkgDomain.Query[application.FindBookingData], application.FindBookingData, domain.Booking](appLogger),
		AvailabilityBus:     pkgInfra.NewSimpleQueryBus[pkgDomain.Query[application.SeatAvailabilityData], application.SeatAvailabilityData, domain.Availability](appLogger),
		EventBus:            bus.eventBus,
		Tokens:              pkgInfra.GenerateUUID,
		Logger:              appLogger,
		RefundPolicy:        cfg.RefundPolicy,
		HoldTTL:             cfg.HoldTTL,
		SweepInterval:       cfg.SweepInterval,
		RequestTimeout:      cfg.RequestTimeout,
		CompensationTimeout: cfg.CompensationTimeout,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	router := chi.NewRouter()
	router.Use(middleware.RequestID, infrastructure.RequestContext, middleware.Recoverer)
	slice.RegisterRoutes(router)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		slice.RunSweeper(ctx)
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		pkgApp.LogInfo(ctx, appLogger, "server starting", map[string]interface{}{
			"addr":      cfg.HTTPAddr,
			"storage":   cfg.Storage,
			"transport": cfg.Transport,
			"hold_ttl":  cfg.HoldTTL.String(),
			"refunds":   cfg.RefundPolicy.String(),
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}
	cancel()
	pkgApp.LogInfo(context.Background(), appLogger, "shutting down server", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		pkgApp.LogError(shutdownCtx, appLogger, "failed to shut down server", shutdownErr, nil)
	}
	<-sweeperDone

	pkgApp.LogInfo(context.Background(), appLogger, "server stopped", nil)
	return err
}

func newStores(ctx context.Context, cfg config.Config, appLogger pkgApp.AppLogger) (domain.SeatStore, domain.BookingRepository, error) {
	if cfg.Storage != config.StoragePostgres {
		return infrastructure.NewInMemorySeatStore(appLogger), infrastructure.NewInMemoryBookingRepository(appLogger), nil
	}

	db, err := infrastructure.OpenPostgres(ctx, cfg.PostgresDSN, appLogger)
	if err != nil {
		return nil, nil, err
	}
	return infrastructure.NewGormSeatStore(db, appLogger), infrastructure.NewGormBookingRepository(db, appLogger), nil
}
