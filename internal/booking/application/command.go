package application

import (
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
	pkgDomain "github.com/mateusmacedo/bus-booking/pkg/domain"
)

const PaymentResultCommand = "PaymentResult"

// PaymentResultData is what the payment collaborator reports, correlated to
// a booking by BookingID and PaymentID.
type PaymentResultData struct {
	BookingID string               `json:"bookingId"`
	PaymentID string               `json:"paymentId"`
	Method    domain.PaymentMethod `json:"method"`
	Succeeded bool                 `json:"succeeded"`
	Reason    string               `json:"reason,omitempty"`
}

type CommandBus = pkgApp.CommandBus[pkgDomain.Command[PaymentResultData], PaymentResultData]

func NewPaymentResultCommand(data PaymentResultData) pkgDomain.Command[PaymentResultData] {
	return pkgDomain.NewCommand(PaymentResultCommand, data)
}
