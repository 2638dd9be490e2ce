package domain

import (
	"fmt"
	"strings"
	"time"
)

// JourneyInstance is one dated run of a bus along a route. It never changes
// once created.
type JourneyInstance struct {
	ID            string    `json:"id"`
	RouteID       string    `json:"routeId"`
	BusID         string    `json:"busId"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	TotalSeats    int       `json:"totalSeats"`
	BasePrice     Money     `json:"basePrice"`
}

// SeatSpec describes one seat of a custom layout.
type SeatSpec struct {
	Number string    `json:"number"`
	Class  SeatClass `json:"class"`
	Price  Money     `json:"price"`
}

type JourneySpec struct {
	ID            string     `json:"id"`
	RouteID       string     `json:"routeId"`
	BusID         string     `json:"busId"`
	DepartureTime time.Time  `json:"departureTime"`
	ArrivalTime   time.Time  `json:"arrivalTime"`
	TotalSeats    int        `json:"totalSeats"`
	BasePrice     Money      `json:"basePrice"`
	Layout        []SeatSpec `json:"layout,omitempty"`
}

// NewJourneyInstance validates spec and builds the journey with its seats.
// Without a layout the seats are S1..Sn, standard class, at the base price.
func NewJourneyInstance(spec JourneySpec) (JourneyInstance, []Seat, error) {
	switch {
	case strings.TrimSpace(spec.ID) == "":
		return JourneyInstance{}, nil, ValidationError{Field: "id", Msg: "is required"}
	case strings.TrimSpace(spec.RouteID) == "":
		return JourneyInstance{}, nil, ValidationError{Field: "routeId", Msg: "is required"}
	case strings.TrimSpace(spec.BusID) == "":
		return JourneyInstance{}, nil, ValidationError{Field: "busId", Msg: "is required"}
	case spec.DepartureTime.IsZero():
		return JourneyInstance{}, nil, ValidationError{Field: "departureTime", Msg: "is required"}
	case !spec.ArrivalTime.After(spec.DepartureTime):
		return JourneyInstance{}, nil, ValidationError{Field: "arrivalTime", Msg: "must be after departure"}
	case spec.BasePrice < 0:
		return JourneyInstance{}, nil, ValidationError{Field: "basePrice", Msg: "must not be negative"}
	}

	layout := spec.Layout
	if len(layout) == 0 {
		if spec.TotalSeats <= 0 {
			return JourneyInstance{}, nil, ValidationError{Field: "totalSeats", Msg: "must be positive"}
		}
		layout = make([]SeatSpec, spec.TotalSeats)
		for i := range layout {
			layout[i] = SeatSpec{Number: fmt.Sprintf("S%d", i+1), Class: SeatClassStandard, Price: spec.BasePrice}
		}
	} else if spec.TotalSeats != 0 && spec.TotalSeats != len(layout) {
		return JourneyInstance{}, nil, ValidationError{Field: "totalSeats", Msg: "does not match layout"}
	}

	seats := make([]Seat, 0, len(layout))
	seen := make(map[string]struct{}, len(layout))
	for _, s := range layout {
		number := strings.TrimSpace(s.Number)
		if number == "" {
			return JourneyInstance{}, nil, ValidationError{Field: "layout", Msg: "seat number is required"}
		}
		if _, dup := seen[number]; dup {
			return JourneyInstance{}, nil, ValidationError{Field: "layout", Msg: "duplicate seat " + number}
		}
		seen[number] = struct{}{}
		if !s.Class.Valid() {
			return JourneyInstance{}, nil, ValidationError{Field: "layout", Msg: "unknown seat class " + string(s.Class)}
		}
		if s.Price < 0 {
			return JourneyInstance{}, nil, ValidationError{Field: "layout", Msg: "negative price for seat " + number}
		}
		seats = append(seats, Seat{
			JourneyID: spec.ID,
			Number:    number,
			Class:     s.Class,
			Price:     s.Price,
			State:     SeatAvailable,
		})
	}

	journey := JourneyInstance{
		ID:            spec.ID,
		RouteID:       spec.RouteID,
		BusID:         spec.BusID,
		DepartureTime: spec.DepartureTime,
		ArrivalTime:   spec.ArrivalTime,
		TotalSeats:    len(seats),
		BasePrice:     spec.BasePrice,
	}
	return journey, seats, nil
}

// Departed reports whether the bus has left at now.
func (j JourneyInstance) Departed(now time.Time) bool {
	return !now.Before(j.DepartureTime)
}
