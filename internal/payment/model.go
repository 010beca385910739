package payment

import (
	"net/http"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
)

var (
	ErrBookingNotFound      = apperror.New(http.StatusNotFound, "booking not found")
	ErrBookingCancelled     = apperror.New(http.StatusConflict, "booking was cancelled and cannot be confirmed")
	ErrBookingConfirmFailed = apperror.New(http.StatusInternalServerError, "booking confirm failed")
	ErrItemsConfirmFailed   = apperror.New(http.StatusInternalServerError, "booking items confirm failed")
	ErrSessionCreateFailed  = apperror.New(http.StatusInternalServerError, "session creation failed")
)

// BookingRef is the slice of a booking the confirmation needs.
type BookingRef struct {
	ID     string
	UserID string
	Status string
}

// Result reports what a confirmation changed.
type Result struct {
	BookingID        string
	UserID           string
	AlreadyConfirmed bool
	SessionsCreated  int
}

// PaidEvent is the payment.paid message body.
type PaidEvent struct {
	BookingID string `json:"booking_id"`
	OrderID   string `json:"order_id,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

const RoutingKeyPaid = "payment.paid"
