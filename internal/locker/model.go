package locker

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "locker not found")
	ErrUnavailable  = apperror.New(http.StatusConflict, "locker unavailable")
	ErrInvalidInput = apperror.New(http.StatusBadRequest, "invalid input parameters")
)

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

var dayPrices = map[Size]decimal.Decimal{
	SizeSmall:  decimal.NewFromInt(800),
	SizeMedium: decimal.NewFromInt(1200),
	SizeLarge:  decimal.NewFromInt(2000),
}

// DayPrice returns the full-day rate for a size. ok is false for unknown sizes.
func DayPrice(size Size) (decimal.Decimal, bool) {
	p, ok := dayPrices[size]
	return p, ok
}

// AvailabilityStatus is the coarse flag stored on the locker row. The live
// state is derived from bookings and sessions.
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityBooked      AvailabilityStatus = "booked"
	AvailabilityMaintenance AvailabilityStatus = "maintenance"
)

type Locker struct {
	ID                 string
	HubID              string
	LockerNumber       string
	Size               Size
	PricePerHour       decimal.Decimal
	AvailabilityStatus AvailabilityStatus
	CreatedAt          time.Time
}

func (l *Locker) DayPrice() (decimal.Decimal, bool) {
	return DayPrice(l.Size)
}

type LiveStatus string

const (
	LiveAwaitingPayment LiveStatus = "awaiting_payment"
	LiveOccupied        LiveStatus = "occupied"
	LiveAvailable       LiveStatus = "available"
)

// DeriveLiveStatus applies the display priority:
// awaiting_payment > occupied > available.
func DeriveLiveStatus(awaitingPayment, occupied bool) LiveStatus {
	switch {
	case awaitingPayment:
		return LiveAwaitingPayment
	case occupied:
		return LiveOccupied
	default:
		return LiveAvailable
	}
}

type LiveLocker struct {
	Locker
	Status LiveStatus
}
