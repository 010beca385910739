package http

import "github.com/nekogravitycat/locker-booking-backend/internal/payment"

type ConfirmPaymentRequest struct {
	BookingID string `uri:"booking_id" binding:"required,uuid"`
}

type ConfirmPaymentResponse struct {
	BookingID        string `json:"booking_id"`
	Status           string `json:"status"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
	SessionsCreated  int    `json:"sessions_created"`
}

func NewConfirmPaymentResponse(r *payment.Result) ConfirmPaymentResponse {
	return ConfirmPaymentResponse{
		BookingID:        r.BookingID,
		Status:           "confirmed",
		AlreadyConfirmed: r.AlreadyConfirmed,
		SessionsCreated:  r.SessionsCreated,
	}
}
