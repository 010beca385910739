package http

import (
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/booking"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
	"github.com/shopspring/decimal"
)

// CartLocker accepts the nested `locker: {id}` shape some clients send.
type CartLocker struct {
	ID string `json:"id"`
}

type CartEntryRequest struct {
	LockerID string      `json:"locker_id"`
	Locker   *CartLocker `json:"locker"`
	Type     string      `json:"type" binding:"required,oneof=hourly day"`
	SlotIDs  []int       `json:"slot_ids"`
}

func (e *CartEntryRequest) lockerID() string {
	if e.LockerID != "" {
		return e.LockerID
	}
	if e.Locker != nil {
		return e.Locker.ID
	}
	return ""
}

type CreateGroupBookingRequest struct {
	UserID string             `json:"user_id"`
	HubID  string             `json:"hub_id" binding:"required,uuid"`
	Date   string             `json:"date" binding:"required"`
	Mode   string             `json:"mode" binding:"required,oneof=hourly day"`
	Cart   []CartEntryRequest `json:"cart" binding:"required,min=1,dive"`
}

// Validate performs custom validation for CreateGroupBookingRequest.
func (r *CreateGroupBookingRequest) Validate() error {
	for i := range r.Cart {
		if r.Cart[i].lockerID() == "" {
			return booking.ErrInvalidInput
		}
	}
	return nil
}

func (r *CreateGroupBookingRequest) ToDomain(userID string, date time.Time) booking.CreateGroupRequest {
	cart := make([]booking.CartEntry, len(r.Cart))
	for i, e := range r.Cart {
		cart[i] = booking.CartEntry{
			LockerID: e.lockerID(),
			Type:     booking.Mode(e.Type),
			SlotIDs:  e.SlotIDs,
		}
	}
	return booking.CreateGroupRequest{
		UserID: userID,
		HubID:  r.HubID,
		Date:   date,
		Mode:   booking.Mode(r.Mode),
		Cart:   cart,
	}
}

type CreateGroupBookingResponse struct {
	BookingID   string          `json:"booking_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type AvailableBySlotRequest struct {
	HubID  string `form:"hub_id" binding:"required,uuid"`
	SlotID int    `form:"slot_id" binding:"required,min=1"`
	Date   string `form:"date" binding:"required"`
}

type AvailableByDayRequest struct {
	HubID string `form:"hub_id" binding:"required,uuid"`
	Date  string `form:"date" binding:"required"`
}

// CheckRequest asks whether one locker is free. A missing slot_id checks the
// full day; a missing date means today.
type CheckRequest struct {
	LockerID string `json:"locker_id" binding:"required,uuid"`
	SlotID   *int   `json:"slot_id" binding:"omitempty,min=1"`
	Date     string `json:"date"`
}

type ExtendBookingRequest struct {
	LockerID      string `json:"locker_id" binding:"omitempty,uuid"`
	NewSlotIDs    []int  `json:"new_slot_ids" binding:"required,min=1"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=online cash"`
}

type ExtendBookingResponse struct {
	BookingID           string          `json:"booking_id"`
	LockerID            string          `json:"locker_id"`
	AddedSlots          int             `json:"added_slots"`
	ExtraHours          decimal.Decimal `json:"extra_hours"`
	ExtraCost           decimal.Decimal `json:"extra_cost"`
	NewEndTime          time.Time       `json:"new_end_time"`
	ExtendPaymentStatus string          `json:"extend_payment_status"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
}

func NewExtendBookingResponse(r *booking.ExtendResult) ExtendBookingResponse {
	return ExtendBookingResponse{
		BookingID:           r.Booking.ID,
		LockerID:            r.LockerID,
		AddedSlots:          r.AddedSlots,
		ExtraHours:          r.ExtraHours,
		ExtraCost:           r.ExtraCost,
		NewEndTime:          r.NewEndTime,
		ExtendPaymentStatus: string(r.ExtendPaymentStatus),
		TotalAmount:         r.Booking.TotalAmount,
	}
}

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled pending_extension_payment completed"`
}

type BookingItemResponse struct {
	ID       string          `json:"id"`
	LockerID string          `json:"locker_id"`
	SlotID   *int            `json:"slot_id"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
}

type BookingResponse struct {
	ID                  string                `json:"id"`
	UserID              string                `json:"user_id"`
	HubID               string                `json:"hub_id"`
	Date                string                `json:"date"`
	Mode                string                `json:"mode"`
	TotalAmount         decimal.Decimal       `json:"total_amount"`
	TotalHours          decimal.Decimal       `json:"total_hours"`
	Status              string                `json:"status"`
	ExtendPaymentStatus *string               `json:"extend_payment_status"`
	ExtendedSlotIDs     []int                 `json:"extended_slot_ids"`
	EndTime             *time.Time            `json:"end_time"`
	Items               []BookingItemResponse `json:"items,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		HubID:           b.HubID,
		Date:            b.Date.Format(request.DateLayout),
		Mode:            string(b.Mode),
		TotalAmount:     b.TotalAmount,
		TotalHours:      b.TotalHours,
		Status:          string(b.Status),
		ExtendedSlotIDs: b.ExtendedSlotIDs,
		EndTime:         b.EndTime,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.ExtendPaymentStatus != nil {
		s := string(*b.ExtendPaymentStatus)
		resp.ExtendPaymentStatus = &s
	}
	if resp.ExtendedSlotIDs == nil {
		resp.ExtendedSlotIDs = []int{}
	}
	for _, it := range b.Items {
		resp.Items = append(resp.Items, BookingItemResponse{
			ID:       it.ID,
			LockerID: it.LockerID,
			SlotID:   it.SlotID,
			Price:    it.Price,
			Status:   string(it.Status),
		})
	}
	return resp
}
