package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mateusmacedo/bus-booking/internal/booking/application"
	"github.com/mateusmacedo/bus-booking/internal/booking/domain"
	pkgApp "github.com/mateusmacedo/bus-booking/pkg/application"
)

type BookingHTTPHandler struct {
	coordinator  *application.Coordinator
	cancellation *application.CancellationEngine
	inventory    *application.SeatInventory
	commandBus   application.CommandBus
	findBooking  application.FindBookingBus
	availability application.SeatAvailabilityBus
	timeout      time.Duration
	logger       pkgApp.AppLogger
}

func NewBookingHTTPHandler(
	coordinator *application.Coordinator,
	cancellation *application.CancellationEngine,
	inventory *application.SeatInventory,
	commandBus application.CommandBus,
	findBooking application.FindBookingBus,
	availability application.SeatAvailabilityBus,
	timeout time.Duration,
	logger pkgApp.AppLogger,
) *BookingHTTPHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BookingHTTPHandler{
		coordinator:  coordinator,
		cancellation: cancellation,
		inventory:    inventory,
		commandBus:   commandBus,
		findBooking:  findBooking,
		availability: availability,
		timeout:      timeout,
		logger:       logger,
	}
}

func (h *BookingHTTPHandler) RegisterRoutes(router chi.Router) {
	router.Route("/journeys", func(r chi.Router) {
		r.Post("/", h.HandleCreateJourney)
		r.Get("/{journeyID}/seats", h.HandleSeatMap)
		r.Get("/{journeyID}/availability", h.HandleAvailability)
		r.Get("/{journeyID}/bookings", h.HandleJourneyBookings)
		r.Put("/{journeyID}/seats/{seatNumber}/price", h.HandleUpdateSeatPrice)
	})
	router.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.HandleReserve)
		r.Get("/{bookingID}", h.HandleFindBooking)
		r.Get("/{bookingID}/refund-quote", h.HandleRefundQuote)
		r.Post("/{bookingID}/payment/confirm", h.HandleConfirmPayment)
		r.Post("/{bookingID}/payment/fail", h.HandleFailPayment)
		r.Post("/{bookingID}/cancel", h.HandleCancel)
		r.Post("/{bookingID}/complete", h.HandleComplete)
	})
	router.Post("/payments/callback", h.HandlePaymentCallback)
	router.Get("/users/{userID}/bookings", h.HandleUserBookings)
}

// RequestContext copies chi's request id into the context the application
// loggers read from.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(pkgApp.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *BookingHTTPHandler) HandleCreateJourney(w http.ResponseWriter, r *http.Request) {
	var spec domain.JourneySpec
	if !h.decode(w, r, &spec) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	journey, err := h.inventory.CreateJourney(ctx, spec)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, journey)
}

func (h *BookingHTTPHandler) HandleSeatMap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	seats, err := h.inventory.SeatMap(ctx, chi.URLParam(r, "journeyID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, seats)
}

func (h *BookingHTTPHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	query := application.NewSeatAvailabilityQuery(application.SeatAvailabilityData{
		JourneyID: chi.URLParam(r, "journeyID"),
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	availability, err := h.availability.Dispatch(ctx, query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, availability)
}

type seatPriceRequest struct {
	Price domain.Money `json:"price"`
}

func (h *BookingHTTPHandler) HandleUpdateSeatPrice(w http.ResponseWriter, r *http.Request) {
	var req seatPriceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	journeyID, seatNumber := chi.URLParam(r, "journeyID"), chi.URLParam(r, "seatNumber")
	if err := h.inventory.UpdateSeatPrice(ctx, journeyID, seatNumber, req.Price); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHTTPHandler) HandleJourneyBookings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookings, err := h.coordinator.JourneyBookings(ctx, chi.URLParam(r, "journeyID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, bookings)
}

func (h *BookingHTTPHandler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req application.ReservationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reservation, err := h.coordinator.Reserve(ctx, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, reservation)
}

func (h *BookingHTTPHandler) HandleFindBooking(w http.ResponseWriter, r *http.Request) {
	query := application.NewFindBookingQuery(application.FindBookingData{
		BookingID: chi.URLParam(r, "bookingID"),
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	booking, err := h.findBooking.Dispatch(ctx, query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, booking)
}

type refundQuoteResponse struct {
	BookingID    string       `json:"bookingId"`
	RefundAmount domain.Money `json:"refundAmount"`
	Policy       string       `json:"policy"`
}

func (h *BookingHTTPHandler) HandleRefundQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookingID := chi.URLParam(r, "bookingID")
	refund, err := h.cancellation.QuoteBooking(ctx, bookingID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, refundQuoteResponse{
		BookingID:    bookingID,
		RefundAmount: refund,
		Policy:       h.cancellation.Policy().String(),
	})
}

type confirmPaymentRequest struct {
	PaymentID string               `json:"paymentId"`
	Method    domain.PaymentMethod `json:"method"`
}

func (h *BookingHTTPHandler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	booking, err := h.coordinator.ConfirmPayment(ctx, chi.URLParam(r, "bookingID"), req.PaymentID, req.Method)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, booking)
}

type failPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

func (h *BookingHTTPHandler) HandleFailPayment(w http.ResponseWriter, r *http.Request) {
	var req failPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	booking, err := h.coordinator.FailPayment(ctx, chi.URLParam(r, "bookingID"), req.PaymentID, req.Reason)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, booking)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHTTPHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	booking, err := h.cancellation.Cancel(ctx, chi.URLParam(r, "bookingID"), req.Reason)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, booking)
}

func (h *BookingHTTPHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	booking, err := h.coordinator.Complete(ctx, chi.URLParam(r, "bookingID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, booking)
}

// HandlePaymentCallback accepts an asynchronous payment result. The command
// bus decides whether it is applied inline or queued on a broker.
func (h *BookingHTTPHandler) HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var data application.PaymentResultData
	if !h.decode(w, r, &data) {
		return
	}
	if data.BookingID == "" || data.PaymentID == "" {
		h.handleError(w, r, domain.ValidationError{Field: "bookingId/paymentId", Msg: "are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.commandBus.Dispatch(ctx, application.NewPaymentResultCommand(data)); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusAccepted, map[string]interface{}{"message": "payment result accepted", "data": data})
}

func (h *BookingHTTPHandler) HandleUserBookings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookings, err := h.coordinator.UserBookings(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, bookings)
}

func (h *BookingHTTPHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *BookingHTTPHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error(context.Background(), "failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	PaymentID string `json:"paymentId,omitempty"`
}

func (h *BookingHTTPHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var expired *domain.HoldExpiredError
	if errors.As(err, &expired) {
		body.PaymentID = expired.PaymentID
	}
	if status == http.StatusInternalServerError {
		pkgApp.LogError(r.Context(), h.logger, "request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		body.Error = "internal error"
	}
	h.respond(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrHoldExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrSeatsUnavailable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
