package domain

import "time"

type HoldToken string

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldCommitted HoldStatus = "committed"
	HoldReleased  HoldStatus = "released"
	HoldExpired   HoldStatus = "expired"
)

// Hold is a time-bounded exclusive claim on seats of one journey. Seats carries
// the seat snapshot taken when the hold was granted, prices included.
type Hold struct {
	Token       HoldToken  `json:"token"`
	JourneyID   string     `json:"journeyId"`
	SeatNumbers []string   `json:"seatNumbers"`
	Seats       []Seat     `json:"seats,omitempty"`
	Status      HoldStatus `json:"status"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

func (h Hold) ExpiredAt(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
