package infrastructure

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mateusmacedo/bus-booking/pkg/application"
)

// OpenPostgres connects to dsn and migrates the booking schema.
func OpenPostgres(ctx context.Context, dsn string, logger application.AppLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		application.LogError(ctx, logger, "failed to connect to postgres", err, nil)
		return nil, err
	}

	if err = Migrate(db.WithContext(ctx)); err != nil {
		application.LogError(ctx, logger, "failed to migrate postgres schema", err, nil)
		return nil, err
	}
	application.LogInfo(ctx, logger, "postgres schema migrated", map[string]interface{}{
		"tables": []string{"journeys", "seats", "holds", "bookings", "booking_passengers"},
	})
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&journeyRecord{}, &seatRecord{}, &holdRecord{}, &bookingRecord{}, &passengerRecord{})
}
