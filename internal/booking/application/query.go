package application

import (
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

const (
	FindBookingQuery      = "FindBooking"
	SeatAvailabilityQuery = "SeatAvailability"
)

type FindBookingData struct {
	BookingID string
}

type SeatAvailabilityData struct {
	JourneyID string
}

type (
	FindBookingBus      = pkgApp.QueryBus[pkgDomain.Query[FindBookingData], FindBookingData, domain.Booking]
	SeatAvailabilityBus = pkgApp.QueryBus[pkgDomain.Query[SeatAvailabilityData], SeatAvailabilityData, domain.Availability]
)

func NewFindBookingQuery(data FindBookingData) pkgDomain.Query[FindBookingData] {
	return pkgDomain.NewQuery(FindBookingQuery, data)
}

func NewSeatAvailabilityQuery(data SeatAvailabilityData) pkgDomain.Query[SeatAvailabilityData] {
	return pkgDomain.NewQuery(SeatAvailabilityQuery, data)
}
