package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, "booking not found")
	ErrSlotConflict         = apperror.New(http.StatusConflict, "one or more selected slots are already booked")
	ErrInvalidInput         = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrEmptyCart            = apperror.New(http.StatusBadRequest, "cart must not be empty")
	ErrInvalidMode          = apperror.New(http.StatusBadRequest, "mode must be 'hourly' or 'day'")
	ErrInvalidEntryType     = apperror.New(http.StatusBadRequest, "cart entry type must be 'hourly' or 'day'")
	ErrModeMismatch         = apperror.New(http.StatusBadRequest, "day bookings accept only day entries")
	ErrMissingSlots         = apperror.New(http.StatusBadRequest, "hourly entries need at least one slot")
	ErrUnexpectedSlots      = apperror.New(http.StatusBadRequest, "day entries must not list slots")
	ErrNotContiguous        = apperror.New(http.StatusBadRequest, "selected slots must be consecutive")
	ErrDuplicateLocker      = apperror.New(http.StatusBadRequest, "locker appears more than once in cart")
	ErrLockerNotInHub       = apperror.New(http.StatusBadRequest, "locker does not belong to hub")
	ErrDateInPast           = apperror.New(http.StatusBadRequest, "cannot book a date in the past")
	ErrSlotInPast           = apperror.New(http.StatusBadRequest, "cannot book a slot that has already ended")
	ErrPermissionDenied     = apperror.New(http.StatusForbidden, "permission denied")
	ErrAlreadyCancelled     = apperror.New(http.StatusConflict, "booking already cancelled")
	ErrNotCancellable       = apperror.New(http.StatusConflict, "booking can no longer be cancelled")
	ErrNotExtendable        = apperror.New(http.StatusConflict, "booking cannot be extended in its current status")
	ErrNoHourlyItems        = apperror.New(http.StatusConflict, "booking has no hourly reservation to extend")
	ErrLockerRequired       = apperror.New(http.StatusBadRequest, "locker_id is required when the booking has several hourly lockers")
	ErrLockerNotInBooking   = apperror.New(http.StatusBadRequest, "locker is not part of this booking")
	ErrSlotsNotAfterCurrent = apperror.New(http.StatusBadRequest, "selected slots must directly follow the current slot")
	ErrInvalidPaymentMethod = apperror.New(http.StatusBadRequest, "payment_method must be 'online' or 'cash'")
	ErrNoPendingExtension   = apperror.New(http.StatusConflict, "booking has no pending extension payment")
	ErrNoLiveSession        = apperror.New(http.StatusConflict, "locker has no live session to extend")
)

type Mode string

const (
	ModeHourly Mode = "hourly"
	ModeDay    Mode = "day"
)

func (m Mode) Valid() bool {
	return m == ModeHourly || m == ModeDay
}

type Status string

const (
	StatusPending                 Status = "pending"
	StatusConfirmed               Status = "confirmed"
	StatusCancelled               Status = "cancelled"
	StatusPendingExtensionPayment Status = "pending_extension_payment"
	StatusCompleted               Status = "completed"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemConfirmed ItemStatus = "confirmed"
	ItemCancelled ItemStatus = "cancelled"
)

type ExtendPaymentStatus string

const (
	ExtendPaymentPending ExtendPaymentStatus = "pending"
	ExtendPaymentPaid    ExtendPaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

// Booking is a priced group order for one hub and date.
type Booking struct {
	ID                  string
	UserID              string
	HubID               string
	Date                time.Time
	Mode                Mode
	TotalAmount         decimal.Decimal
	TotalHours          decimal.Decimal
	Status              Status
	ExtendPaymentStatus *ExtendPaymentStatus
	ExtendedSlotIDs     []int
	EndTime             *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Items []*Item
}

// Item is one locker-slot or locker-day price line.
type Item struct {
	ID        string
	BookingID string
	LockerID  string
	SlotID    *int // nil means full day
	Date      time.Time
	Price     decimal.Decimal
	Status    ItemStatus
	CreatedAt time.Time
}

func (i *Item) IsDay() bool {
	return i.SlotID == nil
}

func (i *Item) Live() bool {
	return i.Status == ItemPending || i.Status == ItemConfirmed
}

// ItemsTotal sums item prices.
func ItemsTotal(items []*Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

type CartEntry struct {
	LockerID string
	Type     Mode
	SlotIDs  []int
}

type CreateGroupRequest struct {
	UserID string
	HubID  string
	Date   time.Time
	Mode   Mode
	Cart   []CartEntry
}

type ExtendRequest struct {
	BookingID     string
	ActorID       string
	LockerID      string // optional when the booking has one hourly locker
	NewSlotIDs    []int
	PaymentMethod PaymentMethod
}

type ExtendResult struct {
	Booking             *Booking
	LockerID            string
	AddedSlots          int
	ExtraHours          decimal.Decimal
	ExtraCost           decimal.Decimal
	NewEndTime          time.Time
	ExtendPaymentStatus ExtendPaymentStatus
}

// ExtendParams is everything the repository needs to apply an extension
// atomically.
type ExtendParams struct {
	BookingID           string
	LockerID            string
	Date                time.Time
	Items               []*Item
	ExtraHours          decimal.Decimal
	ExtraCost           decimal.Decimal
	PreviousEnd         time.Time
	NewEnd              time.Time
	GraceUntil          time.Time
	Status              Status
	ExtendPaymentStatus ExtendPaymentStatus
}

type Filter struct {
	UserID   string
	Status   string
	Page     int
	PageSize int
}
