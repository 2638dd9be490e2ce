package domain

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHold() Hold {
	return Hold{
		Token:       "hold-1",
		JourneyID:   "J-100",
		SeatNumbers: []string{"S1", "S2"},
		Seats: []Seat{
			{JourneyID: "J-100", Number: "S1", Class: SeatClassStandard, Price: 80000, State: SeatHeld},
			{JourneyID: "J-100", Number: "S2", Class: SeatClassSleeper, Price: 120000, State: SeatHeld},
		},
		ExpiresAt: departure.Add(-47 * time.Hour),
	}
}

func samplePassengers() []PassengerRequest {
	return []PassengerRequest{
		{Name: "Asha", Age: 31, Gender: GenderFemale, SeatNumber: "S1"},
		{Name: "Ravi", Age: 35, Gender: GenderMale, SeatNumber: "S2"},
	}
}

func TestNewBooking_SnapshotsFares(t *testing.T) {
	journey, _, err := NewJourneyInstance(sampleJourneySpec())
	require.NoError(t, err)
	now := departure.Add(-48 * time.Hour)

	b, err := NewBooking("BKG0000000000000001", "user-1", journey, samplePassengers(), sampleHold(), "Majestic", "Ameerpet", now)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentPending, b.PaymentStatus)
	assert.Equal(t, 2, b.TotalSeats)
	assert.Equal(t, Money(200000), b.TotalAmount)
	assert.Equal(t, SeatClassSleeper, b.Passengers[1].SeatClass)
	assert.Equal(t, []string{"S1", "S2"}, b.SeatNumbers())
	assert.Equal(t, departure, b.DepartureTime)
	assert.Equal(t, int64(1), b.Version)
}

func TestNewBooking_SeatOutsideHold(t *testing.T) {
	journey, _, _ := NewJourneyInstance(sampleJourneySpec())
	passengers := samplePassengers()
	passengers[1].SeatNumber = "S3"

	_, err := NewBooking("id", "user-1", journey, passengers, sampleHold(), "a", "b", time.Now())

	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPassengerRequest_Validate(t *testing.T) {
	ok := PassengerRequest{Name: "Asha", Age: 31, Gender: GenderFemale, SeatNumber: "S1"}
	assert.NoError(t, ok.Validate())

	bad := []PassengerRequest{
		{Age: 31, Gender: GenderFemale, SeatNumber: "S1"},
		{Name: "Asha", Age: 0, Gender: GenderFemale, SeatNumber: "S1"},
		{Name: "Asha", Age: 31, Gender: "female", SeatNumber: "S1"},
		{Name: "Asha", Age: 31, Gender: GenderFemale},
	}
	for _, p := range bad {
		assert.True(t, errors.Is(p.Validate(), ErrValidation), "%+v", p)
	}
}

func TestBooking_CloneDoesNotShare(t *testing.T) {
	at := time.Now()
	b := Booking{Passengers: []Passenger{{Name: "Asha"}}, CancelledAt: &at}

	c := b.Clone()
	c.Passengers[0].Name = "changed"
	*c.CancelledAt = at.Add(time.Hour)

	assert.Equal(t, "Asha", b.Passengers[0].Name)
	assert.Equal(t, at, *b.CancelledAt)
}

func TestBookingIDGenerator_FormatAndOrder(t *testing.T) {
	fixed := time.UnixMilli(1760000000123)
	gen := NewBookingIDGeneratorWithNode(func() time.Time { return fixed }, "a1b2c3")
	pattern := regexp.MustCompile(`^BKG\d{16}[0-9A-F]{6}$`)

	first := gen.Next()
	second := gen.Next()

	assert.Regexp(t, pattern, first)
	assert.Equal(t, "BKG1760000000123000A1B2C3", first)
	assert.Equal(t, "BKG1760000000123001A1B2C3", second)
	assert.Regexp(t, pattern, NewBookingIDGenerator(nil).Next())
}

func TestBookingIDGenerator_InstancesOnOneClockDiffer(t *testing.T) {
	fixed := time.UnixMilli(1773003600000)
	clock := func() time.Time { return fixed }
	a := NewBookingIDGenerator(clock)
	b := NewBookingIDGenerator(clock)

	require.NotEqual(t, a.Node(), b.Node())
	assert.NotEqual(t, a.Next(), b.Next())

	restarted := NewBookingIDGenerator(clock)
	assert.NotEqual(t, "BKG1773003600000000"+a.Node(), restarted.Next())
}

func TestNewBookingIDGeneratorWithNode_NormalisesNode(t *testing.T) {
	fixed := time.UnixMilli(1760000000123)
	clock := func() time.Time { return fixed }

	assert.Equal(t, "AB0000", NewBookingIDGeneratorWithNode(clock, "ab").Node())
	assert.Equal(t, "ABCDEF", NewBookingIDGeneratorWithNode(clock, "abcdef99").Node())
}

func TestBookingIDGenerator_ClockGoesBack(t *testing.T) {
	clock := time.UnixMilli(1760000000500)
	gen := NewBookingIDGenerator(func() time.Time { return clock })

	a := gen.Next()
	clock = clock.Add(-time.Second)
	b := gen.Next()

	assert.Less(t, a, b)
}

func TestBookingIDGenerator_Concurrent(t *testing.T) {
	gen := NewBookingIDGenerator(nil)
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, n)
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}
