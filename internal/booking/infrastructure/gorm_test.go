package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
)

var seatColumns = []string{"journey_id", "seat_number", "position", "class", "price", "state", "hold_token", "held_until", "updated_at"}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormSeatStore_HoldSeats(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	expires := testNow.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE seats SET state = \$1, hold_token = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO "holds"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "seats" WHERE journey_id = \$1 AND seat_number IN`).
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("J-1", "S1", 0, "standard", 50000, "held", "t1", expires, testNow).
			AddRow("J-1", "S2", 1, "sleeper", 90000, "held", "t1", expires, testNow))
	mock.ExpectCommit()

	h, err := store.HoldSeats(context.Background(), domain.Hold{
		Token:       "t1",
		JourneyID:   "J-1",
		SeatNumbers: []string{"S2", "S1"},
		ExpiresAt:   expires,
	}, testNow)

	require.NoError(t, err)
	require.Len(t, h.Seats, 2)
	assert.Equal(t, "S2", h.Seats[0].Number)
	assert.Equal(t, domain.Money(90000), h.Seats[0].Price)
	assert.Equal(t, domain.SeatClassSleeper, h.Seats[0].Class)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_HoldSeatsConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	expires := testNow.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE seats SET state = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "seats" WHERE journey_id = \$1 AND seat_number IN`).
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow("J-1", "S1", 0, "standard", 50000, "held", "t1", expires, testNow).
			AddRow("J-1", "S2", 1, "standard", 50000, "sold", "other", expires, testNow))
	mock.ExpectRollback()

	_, err := store.HoldSeats(context.Background(), domain.Hold{
		Token:       "t1",
		JourneyID:   "J-1",
		SeatNumbers: []string{"S1", "S2"},
		ExpiresAt:   expires,
	}, testNow)

	var unavailable *domain.SeatsUnavailableError
	require.True(t, errors.As(err, &unavailable), "got %v", err)
	assert.Equal(t, []string{"S2"}, unavailable.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_CommitHold(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "holds" WHERE token = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(holdColumns).AddRow("t1", "J-1", 2, "active", testNow.Add(time.Minute), testNow))
	mock.ExpectExec(`UPDATE "seats" SET .*WHERE hold_token = \$\d+ AND state = \$\d+ AND held_until > \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "holds" SET "status"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CommitHold(context.Background(), "t1", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_CommitExpiredHold(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "holds" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows(holdColumns).AddRow("t1", "J-1", 2, "active", testNow.Add(-time.Second), testNow))
	mock.ExpectRollback()

	err := store.CommitHold(context.Background(), "t1", testNow)

	assert.True(t, errors.Is(err, domain.ErrInvalidToken), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_UpdateSeatPriceUnknownSeat(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))

	mock.ExpectExec(`UPDATE "seats" SET .*WHERE journey_id = \$\d+ AND seat_number = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateSeatPrice(context.Background(), "J-1", "S9", 1000)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBookingRepository_CompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db, testLogger(t))
	next := sampleBooking("B1", "u1", "t1")
	next.Status = domain.StatusConfirmed
	next.PaymentStatus = domain.PaymentPaid

	mock.ExpectExec(`UPDATE "bookings" SET .*WHERE booking_id = \$\d+ AND status = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.CompareAndSet(context.Background(), next, domain.StatusPending, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBookingRepository_CompareAndSetStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db, testLogger(t))
	next := sampleBooking("B1", "u1", "t1")
	next.Status = domain.StatusCancelled

	mock.ExpectExec(`UPDATE "bookings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings" WHERE booking_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := repo.CompareAndSet(context.Background(), next, domain.StatusPending, 1)

	assert.True(t, errors.Is(err, domain.ErrStaleState), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBookingRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormBookingRepository(db, testLogger(t))

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE booking_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}))

	_, err := repo.FindByID(context.Background(), "B404")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_ReleaseHold(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "holds" WHERE token = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(holdColumns).AddRow("t1", "J-1", 2, "active", testNow.Add(time.Minute), testNow))
	mock.ExpectExec(`UPDATE "seats" SET "held_until"=\$1,"hold_token"=\$2,"state"=\$3,"updated_at"=\$4 WHERE hold_token IN \(\$5\) AND state = \$6`).
		WithArgs(sqlmock.AnyArg(), "", "available", sqlmock.AnyArg(), "t1", "held").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "holds" SET "status"=\$1 WHERE token = \$2`).
		WithArgs("released", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.ReleaseHold(context.Background(), "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_ReleaseHoldLeavesResolvedHolds(t *testing.T) {
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	t.Run("committed hold", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewGormSeatStore(db, testLogger(t))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "holds" WHERE token = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(holdColumns).AddRow("t1", "J-1", 2, "committed", testNow.Add(time.Minute), testNow))
		mock.ExpectCommit()

		require.NoError(t, store.ReleaseHold(context.Background(), "t1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown hold", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewGormSeatStore(db, testLogger(t))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "holds" WHERE token = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(holdColumns))
		mock.ExpectCommit()

		require.NoError(t, store.ReleaseHold(context.Background(), "t404"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSeatStore_ReleaseSeats(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "seats" SET .* WHERE journey_id = \$5 AND seat_number IN \(\$6,\$7\) AND hold_token = \$8 AND state IN \(\$9,\$10\)`).
		WithArgs(sqlmock.AnyArg(), "", "available", sqlmock.AnyArg(), "J-1", "S1", "S2", "t1", "held", "sold").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "holds" SET "status"=\$1 WHERE token = \$2 AND status = \$3`).
		WithArgs("released", "t1", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	freed, err := store.ReleaseSeats(context.Background(), "J-1", []string{"S2", "S1", "S2"}, "t1")

	require.NoError(t, err)
	assert.Equal(t, 2, freed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_ReleaseSeatsRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "seats" SET .* AND hold_token = \$\d+ AND state IN`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	freed, err := store.ReleaseSeats(context.Background(), "J-1", []string{"S1"}, "t1")

	assert.Error(t, err)
	assert.Zero(t, freed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_ReleaseExpired(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "holds" WHERE status = \$1 AND expires_at <= \$2 ORDER BY token FOR UPDATE SKIP LOCKED`).
		WithArgs("active", testNow).
		WillReturnRows(sqlmock.NewRows(holdColumns).
			AddRow("t1", "J-1", 2, "active", testNow.Add(-time.Minute), testNow).
			AddRow("t2", "J-2", 1, "active", testNow, testNow))
	mock.ExpectExec(`UPDATE "seats" SET "held_until"=\$1,"hold_token"=\$2,"state"=\$3,"updated_at"=\$4 WHERE hold_token IN \(\$5,\$6\) AND state = \$7`).
		WithArgs(sqlmock.AnyArg(), "", "available", sqlmock.AnyArg(), "t1", "t2", "held").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE "holds" SET "status"=\$1 WHERE token IN \(\$2,\$3\)`).
		WithArgs("expired", "t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	released, err := store.ReleaseExpired(context.Background(), testNow)

	require.NoError(t, err)
	assert.Equal(t, []domain.HoldToken{"t1", "t2"}, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSeatStore_ReleaseExpiredNothingDue(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormSeatStore(db, testLogger(t))
	holdColumns := []string{"token", "journey_id", "seat_count", "status", "expires_at", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "holds" WHERE status = \$1 AND expires_at <= \$2 ORDER BY token FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows(holdColumns))
	mock.ExpectCommit()

	released, err := store.ReleaseExpired(context.Background(), testNow)

	require.NoError(t, err)
	assert.Empty(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}
