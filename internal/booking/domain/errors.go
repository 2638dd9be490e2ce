package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrSeatsUnavailable  = errors.New("seats unavailable")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrStaleState        = errors.New("stale state")
	ErrHoldExpired       = errors.New("hold expired")
	ErrInvalidToken      = errors.New("invalid hold token")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// SeatsUnavailableError names the seats that blocked a hold.
type SeatsUnavailableError struct {
	JourneyID string
	Seats     []string
	Err       error
}

func (e *SeatsUnavailableError) Error() string {
	msg := fmt.Sprintf("seats unavailable on journey %s: %s", e.JourneyID, strings.Join(e.Seats, ","))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }
func (e *SeatsUnavailableError) Unwrap() error        { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionError reports a move that the status machines forbid.
type TransitionError struct {
	Machine string
	From    string
	To      string
	Reason  string
}

func (e TransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot move from %s to %s", e.Machine, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// HoldExpiredError is returned when payment arrived after the seats were lost.
// PaymentID identifies money that must be reconciled by the caller.
type HoldExpiredError struct {
	BookingID string
	PaymentID string
	Err       error
}

func (e *HoldExpiredError) Error() string {
	msg := fmt.Sprintf("hold for booking %s expired before payment %s was applied", e.BookingID, e.PaymentID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HoldExpiredError) Is(target error) bool { return target == ErrHoldExpired }
func (e *HoldExpiredError) Unwrap() error        { return e.Err }
