package domain

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var bookingMoves = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

var paymentMoves = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

func (s BookingStatus) CanMoveTo(to BookingStatus) bool {
	for _, next := range bookingMoves[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingMoves[s]) == 0
}

func (s PaymentStatus) CanMoveTo(to PaymentStatus) bool {
	for _, next := range paymentMoves[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	return len(paymentMoves[s]) == 0
}

// CheckTransition validates that after is a legal successor of before at now.
// Either status may stay put, but not both, and the pair must satisfy the
// coupling rules between booking and payment status.
func CheckTransition(before, after Booking, now time.Time) error {
	statusMoved := before.Status != after.Status
	paymentMoved := before.PaymentStatus != after.PaymentStatus

	if !statusMoved && !paymentMoved {
		return TransitionError{Machine: "booking", From: string(before.Status), To: string(after.Status), Reason: "no change"}
	}
	if statusMoved && !before.Status.CanMoveTo(after.Status) {
		return TransitionError{Machine: "booking", From: string(before.Status), To: string(after.Status)}
	}
	if paymentMoved && !before.PaymentStatus.CanMoveTo(after.PaymentStatus) {
		return TransitionError{Machine: "payment", From: string(before.PaymentStatus), To: string(after.PaymentStatus)}
	}

	switch {
	case after.Status == StatusConfirmed && after.PaymentStatus != PaymentPaid:
		return TransitionError{Machine: "booking", From: string(before.Status), To: string(after.Status), Reason: "payment is " + string(after.PaymentStatus)}
	case after.Status == StatusCompleted && statusMoved && now.Before(after.DepartureTime):
		return TransitionError{Machine: "booking", From: string(before.Status), To: string(after.Status), Reason: "journey has not departed"}
	case after.PaymentStatus == PaymentRefunded && after.Status != StatusCancelled:
		return TransitionError{Machine: "payment", From: string(before.PaymentStatus), To: string(after.PaymentStatus), Reason: "booking is " + string(after.Status)}
	case after.PaymentStatus == PaymentPaid && after.Status == StatusPending:
		return TransitionError{Machine: "payment", From: string(before.PaymentStatus), To: string(after.PaymentStatus), Reason: "booking must be confirmed with payment"}
	}
	return nil
}
