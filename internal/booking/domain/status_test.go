package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_Moves(t *testing.T) {
	assert.True(t, StatusPending.CanMoveTo(StatusConfirmed))
	assert.True(t, StatusPending.CanMoveTo(StatusCancelled))
	assert.True(t, StatusConfirmed.CanMoveTo(StatusCompleted))
	assert.True(t, StatusConfirmed.CanMoveTo(StatusCancelled))

	assert.False(t, StatusPending.CanMoveTo(StatusCompleted))
	assert.False(t, StatusCancelled.CanMoveTo(StatusConfirmed))
	assert.False(t, StatusCompleted.CanMoveTo(StatusCancelled))
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}

func TestPaymentStatus_Moves(t *testing.T) {
	assert.True(t, PaymentPending.CanMoveTo(PaymentPaid))
	assert.True(t, PaymentPending.CanMoveTo(PaymentFailed))
	assert.True(t, PaymentPaid.CanMoveTo(PaymentRefunded))

	assert.False(t, PaymentPaid.CanMoveTo(PaymentFailed))
	assert.False(t, PaymentFailed.CanMoveTo(PaymentPaid))
	assert.True(t, PaymentRefunded.Terminal())
}

func TestCheckTransition(t *testing.T) {
	now := departure.Add(-48 * time.Hour)
	pending := Booking{Status: StatusPending, PaymentStatus: PaymentPending, DepartureTime: departure}
	confirmed := Booking{Status: StatusConfirmed, PaymentStatus: PaymentPaid, DepartureTime: departure}

	cases := []struct {
		name   string
		before Booking
		after  Booking
		now    time.Time
		ok     bool
	}{
		{"confirm with payment", pending, confirmed, now, true},
		{"confirm unpaid", pending, Booking{Status: StatusConfirmed, PaymentStatus: PaymentPending}, now, false},
		{"fail payment", pending, Booking{Status: StatusCancelled, PaymentStatus: PaymentFailed}, now, true},
		{"cancel unpaid", pending, Booking{Status: StatusCancelled, PaymentStatus: PaymentPending}, now, true},
		{"pay while pending", pending, Booking{Status: StatusPending, PaymentStatus: PaymentPaid}, now, false},
		{"cancel with refund", confirmed, Booking{Status: StatusCancelled, PaymentStatus: PaymentRefunded}, now, true},
		{"refund without cancel", confirmed, Booking{Status: StatusConfirmed, PaymentStatus: PaymentRefunded}, now, false},
		{"complete before departure", confirmed, Booking{Status: StatusCompleted, PaymentStatus: PaymentPaid, DepartureTime: departure}, now, false},
		{"complete after departure", confirmed, Booking{Status: StatusCompleted, PaymentStatus: PaymentPaid, DepartureTime: departure}, departure.Add(time.Hour), true},
		{"no change", confirmed, confirmed, now, false},
		{"re-cancel", Booking{Status: StatusCancelled, PaymentStatus: PaymentRefunded}, Booking{Status: StatusCancelled, PaymentStatus: PaymentRefunded}, now, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.before, tc.after, tc.now)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
		})
	}
}
