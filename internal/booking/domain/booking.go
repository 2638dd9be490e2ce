package domain

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentWallet     PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentUPI, PaymentNetBanking, PaymentWallet:
		return true
	}
	return false
}

// Cancellation reasons recorded by the system itself.
const (
	ReasonHoldExpired   = "hold expired before payment"
	ReasonPaymentFailed = "payment failed"
)

// PassengerRequest is what a caller supplies per traveller.
type PassengerRequest struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Gender     Gender `json:"gender"`
	SeatNumber string `json:"seatNumber"`
}

func (p PassengerRequest) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return ValidationError{Field: "passengers.name", Msg: "is required"}
	case p.Age < 1 || p.Age > 120:
		return ValidationError{Field: "passengers.age", Msg: "must be between 1 and 120"}
	case !p.Gender.Valid():
		return ValidationError{Field: "passengers.gender", Msg: "must be Male, Female or Other"}
	case strings.TrimSpace(p.SeatNumber) == "":
		return ValidationError{Field: "passengers.seatNumber", Msg: "is required"}
	}
	return nil
}

// Passenger is a traveller bound to a seat, with the fare fixed at booking time.
type Passenger struct {
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Gender     Gender    `json:"gender"`
	SeatNumber string    `json:"seatNumber"`
	SeatClass  SeatClass `json:"seatClass"`
	Fare       Money     `json:"fare"`
}

type Booking struct {
	ID                 string        `json:"bookingId"`
	UserID             string        `json:"userId"`
	JourneyID          string        `json:"journeyId"`
	DepartureTime      time.Time     `json:"departureTime"`
	Passengers         []Passenger   `json:"passengers"`
	BoardingPoint      string        `json:"boardingPoint"`
	DroppingPoint      string        `json:"droppingPoint"`
	TotalSeats         int           `json:"totalSeats"`
	TotalAmount        Money         `json:"totalAmount"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentID          string        `json:"paymentId,omitempty"`
	PaymentMethod      PaymentMethod `json:"paymentMethod,omitempty"`
	HoldToken          HoldToken     `json:"holdToken"`
	HoldExpiresAt      time.Time     `json:"holdExpiresAt"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty"`
	RefundAmount       Money         `json:"refundAmount"`
	BookedAt           time.Time     `json:"bookedAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	Version            int64         `json:"version"`
}

// NewBooking builds a pending booking from a granted hold. Fares come from the
// hold's seat snapshot so later price changes never reach the booking.
func NewBooking(id, userID string, journey JourneyInstance, passengers []PassengerRequest, hold Hold, boarding, dropping string, now time.Time) (Booking, error) {
	priced := make(map[string]Seat, len(hold.Seats))
	for _, s := range hold.Seats {
		priced[s.Number] = s
	}

	booked := make([]Passenger, 0, len(passengers))
	var total Money
	for _, p := range passengers {
		seat, ok := priced[p.SeatNumber]
		if !ok {
			return Booking{}, ValidationError{Field: "passengers.seatNumber", Msg: "seat " + p.SeatNumber + " is not part of the hold"}
		}
		booked = append(booked, Passenger{
			Name:       strings.TrimSpace(p.Name),
			Age:        p.Age,
			Gender:     p.Gender,
			SeatNumber: seat.Number,
			SeatClass:  seat.Class,
			Fare:       seat.Price,
		})
		total += seat.Price
	}
	if len(booked) != len(hold.SeatNumbers) {
		return Booking{}, ValidationError{Field: "passengers", Msg: "passenger count does not match held seats"}
	}

	return Booking{
		ID:            id,
		UserID:        userID,
		JourneyID:     journey.ID,
		DepartureTime: journey.DepartureTime,
		Passengers:    booked,
		BoardingPoint: boarding,
		DroppingPoint: dropping,
		TotalSeats:    len(booked),
		TotalAmount:   total,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		HoldToken:     hold.Token,
		HoldExpiresAt: hold.ExpiresAt,
		BookedAt:      now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

func (b Booking) SeatNumbers() []string {
	seats := make([]string, len(b.Passengers))
	for i, p := range b.Passengers {
		seats[i] = p.SeatNumber
	}
	return seats
}

// Clone returns a copy that shares no slices or pointers with b.
func (b Booking) Clone() Booking {
	c := b
	c.Passengers = append([]Passenger(nil), b.Passengers...)
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		c.CancelledAt = &t
	}
	return c
}
