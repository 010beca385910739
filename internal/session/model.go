package session

import (
	"net/http"
	"sort"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, "session not found")
	ErrPermissionDenied     = apperror.New(http.StatusForbidden, "permission denied")
	ErrAccessWindowClosed   = apperror.New(http.StatusForbidden, "locker can only be opened during an active session")
	ErrNotActive            = apperror.New(http.StatusConflict, "session is no longer active")
	ErrNotExtendable        = apperror.New(http.StatusConflict, "full-day sessions cannot be extended")
	ErrNoSlotsLeft          = apperror.New(http.StatusConflict, "not enough slots left today")
	ErrSlotConflict         = apperror.New(http.StatusConflict, "one or more selected slots are already booked")
	ErrStaleSession         = apperror.New(http.StatusConflict, "session changed while extending, retry")
	ErrDuplicateExtension   = apperror.New(http.StatusConflict, "extension already applied")
	ErrInvalidSlotCount     = apperror.New(http.StatusBadRequest, "slot_count must be 1 or 2")
	ErrInvalidInput         = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrNotContiguous        = apperror.New(http.StatusBadRequest, "selected slots must be consecutive")
	ErrSlotsNotNext         = apperror.New(http.StatusBadRequest, "selected slots must directly follow the session")
	ErrSlotInPast           = apperror.New(http.StatusBadRequest, "cannot extend into a slot that has already ended")
	ErrPaymentNotSuccessful = apperror.New(http.StatusBadRequest, "payment was not successful")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

type LockerState string

const (
	LockerLocked   LockerState = "locked"
	LockerUnlocked LockerState = "unlocked"
)

// MaxHourlyExtension caps slot_count for session-level extensions.
const MaxHourlyExtension = 2

// Session is a physical access window derived from paid booking items.
type Session struct {
	ID            string
	BookingID     string
	BookingItemID string
	UserID        string
	LockerID      string
	StartTime     time.Time
	EndTime       time.Time
	GraceUntil    time.Time
	Status        Status
	LockerState   LockerState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Session) Live() bool {
	return s.Status == StatusPending || s.Status == StatusActive
}

// SourceItem is a confirmed booking item sessions are built from.
type SourceItem struct {
	ID       string
	LockerID string
	SlotID   *int
	Date     time.Time
}

// Materialize turns confirmed items into sessions: one full-day session per
// locker with a day item, and one session per run of consecutive slots for
// hourly items. Each session references the first item of its group.
func Materialize(bookingID, userID string, items []SourceItem, cal *slot.Calendar, loc *time.Location, grace time.Duration) ([]*Session, error) {
	type group struct {
		day   *SourceItem
		slots map[int]SourceItem
		date  time.Time
	}
	groups := make(map[string]*group)
	var order []string

	for _, it := range items {
		g, ok := groups[it.LockerID]
		if !ok {
			g = &group{slots: make(map[int]SourceItem), date: clock.DateIn(it.Date, loc)}
			groups[it.LockerID] = g
			order = append(order, it.LockerID)
		}
		if it.SlotID == nil {
			if g.day == nil {
				item := it
				g.day = &item
			}
			continue
		}
		g.slots[*it.SlotID] = it
	}
	sort.Strings(order)

	var sessions []*Session
	newSession := func(itemID, lockerID string, start, end time.Time) {
		sessions = append(sessions, &Session{
			BookingID:     bookingID,
			BookingItemID: itemID,
			UserID:        userID,
			LockerID:      lockerID,
			StartTime:     start,
			EndTime:       end,
			GraceUntil:    end.Add(grace),
			Status:        StatusPending,
			LockerState:   LockerLocked,
		})
	}

	for _, lockerID := range order {
		g := groups[lockerID]
		if g.day != nil {
			newSession(g.day.ID, lockerID, g.date, g.date.Add(24*time.Hour-time.Second))
			continue
		}

		ids := make([]int, 0, len(g.slots))
		for id := range g.slots {
			ids = append(ids, id)
		}
		for _, run := range slot.Runs(ids) {
			slots, err := cal.Lookup(run)
			if err != nil {
				return nil, err
			}
			start, _ := slots[0].On(g.date)
			_, end := slots[len(slots)-1].On(g.date)
			newSession(g.slots[run[0]].ID, lockerID, start, end)
		}
	}
	return sessions, nil
}

// ExtensionItem is one slot appended to a session.
type ExtensionItem struct {
	SlotID int
	Price  decimal.Decimal
}

// ExtendParams is applied by the repository in one transaction. A non-empty
// OrderID is recorded so the same payment cannot be applied twice.
type ExtendParams struct {
	SessionID   string
	BookingID   string
	LockerID    string
	Date        time.Time
	Items       []ExtensionItem
	Cost        decimal.Decimal
	Hours       decimal.Decimal
	PreviousEnd time.Time
	NewEnd      time.Time
	GraceUntil  time.Time
	OrderID     string
}

type ExtendResult struct {
	Session   *Session
	SlotIDs   []int
	AddedCost decimal.Decimal
	NewEnd    time.Time
}

type ConfirmExtensionRequest struct {
	SessionID     string
	SlotIDs       []int
	PaymentStatus string
	OrderID       string
}

type ConfirmExtensionResult struct {
	Session        *Session
	OrderID        string
	AddedCost      decimal.Decimal
	AlreadyApplied bool
}

// Quote is the price of appending slots to a locker's reservation.
type Quote struct {
	LockerID string
	SlotIDs  []int
	Hours    decimal.Decimal
	Cost     decimal.Decimal
}
