package http

import (
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/session"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/shopspring/decimal"
)

// SessionIDRequest binds the :session_id path segment.
type SessionIDRequest struct {
	ID string `uri:"session_id" binding:"required,uuid"`
}

type ExtendHourlyRequest struct {
	SlotCount int `json:"slot_count" binding:"required,min=1,max=2"`
}

type CalculateRequest struct {
	LockerID   string `json:"locker_id" binding:"required,uuid"`
	NewSlotIDs []int  `json:"new_slot_ids" binding:"required,min=1"`
}

type ConfirmExtensionRequest struct {
	SessionID     string `json:"session_id" binding:"required,uuid"`
	SlotIDs       []int  `json:"slot_ids" binding:"required,min=1"`
	PaymentStatus string `json:"payment_status" binding:"required"`
	OrderID       string `json:"order_id"`
}

type SessionResponse struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	BookingItemID string    `json:"booking_item_id"`
	LockerID      string    `json:"locker_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	GraceUntil    time.Time `json:"grace_until"`
	Status        string    `json:"status"`
	LockerState   string    `json:"locker_state"`
}

func NewSessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		BookingID:     s.BookingID,
		BookingItemID: s.BookingItemID,
		LockerID:      s.LockerID,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		GraceUntil:    s.GraceUntil,
		Status:        string(s.Status),
		LockerState:   string(s.LockerState),
	}
}

type SlotResponse struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func NewSlotResponses(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = SlotResponse{
			ID:    s.ID,
			Label: s.Label,
			Start: slot.FormatClock(s.Start),
			End:   slot.FormatClock(s.End),
		}
	}
	return out
}

type ExtendHourlyResponse struct {
	ExtendedSlots []int           `json:"extended_slots"`
	AddedCost     decimal.Decimal `json:"added_cost"`
	NewEndTime    time.Time       `json:"new_end_time"`
	Session       SessionResponse `json:"session"`
}

type CalculateResponse struct {
	LockerID   string          `json:"locker_id"`
	SlotIDs    []int           `json:"slot_ids"`
	ExtraHours decimal.Decimal `json:"extra_hours"`
	ExtraCost  decimal.Decimal `json:"extra_cost"`
}

type ConfirmExtensionResponse struct {
	OrderID        string          `json:"order_id"`
	AlreadyApplied bool            `json:"already_applied"`
	AddedCost      decimal.Decimal `json:"added_cost"`
	Session        SessionResponse `json:"session"`
}
