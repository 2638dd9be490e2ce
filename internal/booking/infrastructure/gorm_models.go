package infrastructure

import (
	"time"

	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
)

type journeyRecord struct {
	ID            string    `gorm:"primaryKey"`
	RouteID       string    `gorm:"index"`
	BusID         string    `gorm:"index"`
	DepartureTime time.Time `gorm:"index"`
	ArrivalTime   time.Time
	TotalSeats    int
	BasePrice     int64
}

func (journeyRecord) TableName() string { return "journeys" }

type seatRecord struct {
	JourneyID  string `gorm:"primaryKey"`
	SeatNumber string `gorm:"primaryKey"`
	Position   int
	Class      string
	Price      int64
	State      string `gorm:"index"`
	HoldToken  string `gorm:"index"`
	HeldUntil  *time.Time
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (seatRecord) TableName() string { return "seats" }

type holdRecord struct {
	Token     string `gorm:"primaryKey"`
	JourneyID string `gorm:"index"`
	SeatCount int
	Status    string    `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (holdRecord) TableName() string { return "holds" }

type bookingRecord struct {
	BookingID          string `gorm:"primaryKey"`
	UserID             string `gorm:"index"`
	JourneyID          string `gorm:"index"`
	DepartureTime      time.Time
	BoardingPoint      string
	DroppingPoint      string
	TotalSeats         int
	TotalAmount        int64
	Status             string `gorm:"index"`
	PaymentStatus      string
	PaymentID          string `gorm:"index"`
	PaymentMethod      string
	HoldToken          string `gorm:"uniqueIndex"`
	HoldExpiresAt      time.Time
	CancellationReason string
	CancelledAt        *time.Time
	RefundAmount       int64
	BookedAt           time.Time
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
	Version            int64
	Passengers         []passengerRecord `gorm:"foreignKey:BookingID;references:BookingID"`
}

func (bookingRecord) TableName() string { return "bookings" }

type passengerRecord struct {
	ID         uint   `gorm:"primaryKey"`
	BookingID  string `gorm:"index"`
	Position   int
	Name       string
	Age        int
	Gender     string
	SeatNumber string
	SeatClass  string
	Fare       int64
}

func (passengerRecord) TableName() string { return "booking_passengers" }

func toJourneyRecord(j domain.JourneyInstance) journeyRecord {
	return journeyRecord{
		ID:            j.ID,
		RouteID:       j.RouteID,
		BusID:         j.BusID,
		DepartureTime: j.DepartureTime,
		ArrivalTime:   j.ArrivalTime,
		TotalSeats:    j.TotalSeats,
		BasePrice:     int64(j.BasePrice),
	}
}

func (r journeyRecord) toDomain() domain.JourneyInstance {
	return domain.JourneyInstance{
		ID:            r.ID,
		RouteID:       r.RouteID,
		BusID:         r.BusID,
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		TotalSeats:    r.TotalSeats,
		BasePrice:     domain.Money(r.BasePrice),
	}
}

func toSeatRecord(s domain.Seat, position int, now time.Time) seatRecord {
	rec := seatRecord{
		JourneyID:  s.JourneyID,
		SeatNumber: s.Number,
		Position:   position,
		Class:      string(s.Class),
		Price:      int64(s.Price),
		State:      string(s.State),
		HoldToken:  string(s.HoldToken),
		UpdatedAt:  now,
	}
	if !s.HeldUntil.IsZero() {
		t := s.HeldUntil
		rec.HeldUntil = &t
	}
	return rec
}

func (r seatRecord) toDomain() domain.Seat {
	seat := domain.Seat{
		JourneyID: r.JourneyID,
		Number:    r.SeatNumber,
		Class:     domain.SeatClass(r.Class),
		Price:     domain.Money(r.Price),
		State:     domain.SeatState(r.State),
		HoldToken: domain.HoldToken(r.HoldToken),
	}
	if r.HeldUntil != nil {
		seat.HeldUntil = *r.HeldUntil
	}
	return seat
}

func toBookingRecord(b domain.Booking) bookingRecord {
	rec := bookingRecord{
		BookingID:          b.ID,
		UserID:             b.UserID,
		JourneyID:          b.JourneyID,
		DepartureTime:      b.DepartureTime,
		BoardingPoint:      b.BoardingPoint,
		DroppingPoint:      b.DroppingPoint,
		TotalSeats:         b.TotalSeats,
		TotalAmount:        int64(b.TotalAmount),
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentID:          b.PaymentID,
		PaymentMethod:      string(b.PaymentMethod),
		HoldToken:          string(b.HoldToken),
		HoldExpiresAt:      b.HoldExpiresAt,
		CancellationReason: b.CancellationReason,
		CancelledAt:        b.CancelledAt,
		RefundAmount:       int64(b.RefundAmount),
		BookedAt:           b.BookedAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
	for i, p := range b.Passengers {
		rec.Passengers = append(rec.Passengers, passengerRecord{
			BookingID:  b.ID,
			Position:   i,
			Name:       p.Name,
			Age:        p.Age,
			Gender:     string(p.Gender),
			SeatNumber: p.SeatNumber,
			SeatClass:  string(p.SeatClass),
			Fare:       int64(p.Fare),
		})
	}
	return rec
}

func (r bookingRecord) toDomain() domain.Booking {
	b := domain.Booking{
		ID:                 r.BookingID,
		UserID:             r.UserID,
		JourneyID:          r.JourneyID,
		DepartureTime:      r.DepartureTime,
		BoardingPoint:      r.BoardingPoint,
		DroppingPoint:      r.DroppingPoint,
		TotalSeats:         r.TotalSeats,
		TotalAmount:        domain.Money(r.TotalAmount),
		Status:             domain.BookingStatus(r.Status),
		PaymentStatus:      domain.PaymentStatus(r.PaymentStatus),
		PaymentID:          r.PaymentID,
		PaymentMethod:      domain.PaymentMethod(r.PaymentMethod),
		HoldToken:          domain.HoldToken(r.HoldToken),
		HoldExpiresAt:      r.HoldExpiresAt,
		CancellationReason: r.CancellationReason,
		CancelledAt:        r.CancelledAt,
		RefundAmount:       domain.Money(r.RefundAmount),
		BookedAt:           r.BookedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
	b.Passengers = make([]domain.Passenger, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		b.Passengers = append(b.Passengers, domain.Passenger{
			Name:       p.Name,
			Age:        p.Age,
			Gender:     domain.Gender(p.Gender),
			SeatNumber: p.SeatNumber,
			SeatClass:  domain.SeatClass(p.SeatClass),
			Fare:       domain.Money(p.Fare),
		})
	}
	return b
}
