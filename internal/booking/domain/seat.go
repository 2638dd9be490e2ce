package domain

import "time"

type SeatClass string

const (
	SeatClassStandard    SeatClass = "standard"
	SeatClassSleeper     SeatClass = "sleeper"
	SeatClassSemiSleeper SeatClass = "semi-sleeper"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassStandard, SeatClassSleeper, SeatClassSemiSleeper:
		return true
	}
	return false
}

type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatHeld      SeatState = "held"
	SeatSold      SeatState = "sold"
)

// Seat belongs to exactly one journey. HoldToken names the hold that owns a
// held or sold seat and is empty while the seat is available.
type Seat struct {
	JourneyID string    `json:"journeyId"`
	Number    string    `json:"number"`
	Class     SeatClass `json:"class"`
	Price     Money     `json:"price"`
	State     SeatState `json:"state"`
	HoldToken HoldToken `json:"-"`
	HeldUntil time.Time `json:"-"`
}

// AvailableAt treats a hold whose lease ran out as already released.
func (s Seat) AvailableAt(now time.Time) bool {
	return s.State == SeatAvailable || (s.State == SeatHeld && !now.Before(s.HeldUntil))
}

// EffectiveState is the state a reader should see at now.
func (s Seat) EffectiveState(now time.Time) SeatState {
	if s.AvailableAt(now) {
		return SeatAvailable
	}
	return s.State
}

// Availability summarises a journey's seat map.
type Availability struct {
	JourneyID string `json:"journeyId"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Held      int    `json:"held"`
	Sold      int    `json:"sold"`
}

func SummariseSeats(journeyID string, seats []Seat, now time.Time) Availability {
	a := Availability{JourneyID: journeyID, Total: len(seats)}
	for _, s := range seats {
		switch s.EffectiveState(now) {
		case SeatAvailable:
			a.Available++
		case SeatHeld:
			a.Held++
		case SeatSold:
			a.Sold++
		}
	}
	return a
}
