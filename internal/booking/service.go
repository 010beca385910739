package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/nekogravitycat/locker-booking-backend/internal/metrics"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/shopspring/decimal"
)

// dayHours is what a full-day item contributes to total_hours.
var dayHours = decimal.NewFromInt(24)

// dayEnd is the last second of a full-day window.
const dayEnd = 24*time.Hour - time.Second

type Service interface {
	CreateGroupBooking(ctx context.Context, req CreateGroupRequest) (*Booking, error)
	// GetByID returns the booking when actorID owns it.
	GetByID(ctx context.Context, id, actorID string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Cancel(ctx context.Context, id, actorID string) (*Booking, error)
	Extend(ctx context.Context, req ExtendRequest) (*ExtendResult, error)
	// SettleExtension records a cash extension as paid.
	SettleExtension(ctx context.Context, id string) (*Booking, error)
}

// Options carries the time settings the service interprets dates with.
type Options struct {
	Location *time.Location
	Grace    time.Duration
}

type service struct {
	repo     Repository
	hubs     hub.Service
	lockers  locker.Service
	slots    slot.Service
	notifier notify.Notifier
	clock    clock.Clock
	loc      *time.Location
	grace    time.Duration
}

func NewService(
	repo Repository,
	hubs hub.Service,
	lockers locker.Service,
	slots slot.Service,
	notifier notify.Notifier,
	clk clock.Clock,
	opts Options,
) Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     repo,
		hubs:     hubs,
		lockers:  lockers,
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		loc:      loc,
		grace:    opts.Grace,
	}
}

// validateCart checks the request shape before anything is read.
func validateCart(req CreateGroupRequest) error {
	if req.UserID == "" || req.HubID == "" {
		return ErrInvalidInput
	}
	if !req.Mode.Valid() {
		return ErrInvalidMode
	}
	if len(req.Cart) == 0 {
		return ErrEmptyCart
	}

	seen := make(map[string]bool, len(req.Cart))
	for _, entry := range req.Cart {
		if entry.LockerID == "" {
			return ErrInvalidInput
		}
		if seen[entry.LockerID] {
			return ErrDuplicateLocker.WithErr(fmt.Errorf("locker %s", entry.LockerID))
		}
		seen[entry.LockerID] = true

		switch entry.Type {
		case ModeDay:
			if len(entry.SlotIDs) > 0 {
				return ErrUnexpectedSlots
			}
		case ModeHourly:
			if req.Mode == ModeDay {
				return ErrModeMismatch
			}
			if len(entry.SlotIDs) == 0 {
				return ErrMissingSlots
			}
			if _, ok := slot.Consecutive(entry.SlotIDs); !ok {
				return ErrNotContiguous
			}
		default:
			return ErrInvalidEntryType
		}
	}
	return nil
}

func (s *service) CreateGroupBooking(ctx context.Context, req CreateGroupRequest) (*Booking, error) {
	// 1. Validate
	if err := validateCart(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := clock.DateIn(req.Date, s.loc)
	if date.Before(clock.Today(s.clock, s.loc)) {
		return nil, ErrDateInPast
	}

	if _, err := s.hubs.GetByID(ctx, req.HubID); err != nil {
		return nil, err
	}
	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Cart))
	for i, entry := range req.Cart {
		ids[i] = entry.LockerID
	}
	lockers, err := s.lockers.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	// 2. Price every line from the stored locker
	b := &Booking{
		UserID:      req.UserID,
		HubID:       req.HubID,
		Date:        date,
		Mode:        req.Mode,
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		TotalHours:  decimal.Zero,
	}
	var end time.Time

	for _, entry := range req.Cart {
		l := lockers[entry.LockerID]
		if l.HubID != req.HubID {
			return nil, ErrLockerNotInHub.WithErr(fmt.Errorf("locker %s", l.ID))
		}
		if l.AvailabilityStatus == locker.AvailabilityMaintenance {
			return nil, locker.ErrUnavailable.WithErr(fmt.Errorf("locker %s under maintenance", l.ID))
		}

		if entry.Type == ModeDay {
			price, ok := l.DayPrice()
			if !ok {
				return nil, locker.ErrInvalidInput.WithErr(fmt.Errorf("locker %s has unknown size %q", l.ID, l.Size))
			}
			b.Items = append(b.Items, &Item{
				LockerID: l.ID,
				Date:     date,
				Price:    price,
				Status:   ItemPending,
			})
			b.TotalHours = b.TotalHours.Add(dayHours)
			if dayEndAt := date.Add(dayEnd); dayEndAt.After(end) {
				end = dayEndAt
			}
			continue
		}

		sorted, _ := slot.Consecutive(entry.SlotIDs)
		slots, err := cal.Lookup(sorted)
		if err != nil {
			return nil, err
		}
		for _, sl := range slots {
			_, slotEnd := sl.On(date)
			if !slotEnd.After(now) {
				return nil, ErrSlotInPast.WithErr(fmt.Errorf("slot %d", sl.ID))
			}
			id := sl.ID
			b.Items = append(b.Items, &Item{
				LockerID: l.ID,
				SlotID:   &id,
				Date:     date,
				Price:    l.PricePerHour,
				Status:   ItemPending,
			})
			b.TotalHours = b.TotalHours.Add(sl.Hours())
			if slotEnd.After(end) {
				end = slotEnd
			}
		}
	}
	b.TotalAmount = ItemsTotal(b.Items)
	b.EndTime = &end

	// 3. Persist atomically
	if err := s.repo.CreateGroup(ctx, b); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			metrics.RecordBooking(string(req.Mode), "conflict")
		}
		return nil, err
	}
	metrics.RecordBooking(string(req.Mode), "created")
	return b, nil
}

func (s *service) GetByID(ctx context.Context, id, actorID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != actorID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Cancel(ctx context.Context, id, actorID string) (*Booking, error) {
	if _, err := s.GetByID(ctx, id, actorID); err != nil {
		return nil, err
	}

	if err := s.repo.Cancel(ctx, id, clock.Today(s.clock, s.loc)); err != nil {
		return nil, err
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Event{
		Type:      notify.BookingCancelled,
		BookingID: b.ID,
		UserID:    b.UserID,
		Data:      map[string]any{"reason": "user"},
	})
	return b, nil
}

// hourlySlots maps each locker to the slot ids of its live hourly items.
func hourlySlots(items []*Item) map[string][]int {
	out := make(map[string][]int)
	for _, it := range items {
		if it.IsDay() || !it.Live() {
			continue
		}
		out[it.LockerID] = append(out[it.LockerID], *it.SlotID)
	}
	return out
}

func (s *service) Extend(ctx context.Context, req ExtendRequest) (*ExtendResult, error) {
	// 1. Validate
	if len(req.NewSlotIDs) == 0 {
		return nil, ErrMissingSlots
	}
	if req.PaymentMethod != PaymentCash && req.PaymentMethod != PaymentOnline {
		return nil, ErrInvalidPaymentMethod
	}

	b, err := s.GetByID(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, ErrNotExtendable
	}

	// 2. Resolve which locker is being extended
	byLocker := hourlySlots(b.Items)
	if len(byLocker) == 0 {
		return nil, ErrNoHourlyItems
	}
	lockerID := req.LockerID
	if lockerID == "" {
		if len(byLocker) > 1 {
			return nil, ErrLockerRequired
		}
		for id := range byLocker {
			lockerID = id
		}
	}
	current, ok := byLocker[lockerID]
	if !ok {
		return nil, ErrLockerNotInBooking
	}
	last := current[0]
	for _, id := range current[1:] {
		last = max(last, id)
	}

	// 3. Contiguity
	sorted, ok := slot.Consecutive(req.NewSlotIDs)
	if !ok {
		return nil, ErrNotContiguous
	}
	if sorted[0] != last+1 {
		return nil, ErrSlotsNotAfterCurrent
	}

	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	lastSlot, ok := cal.Get(last)
	if !ok {
		return nil, slot.ErrNotFound.WithErr(fmt.Errorf("slot %d", last))
	}
	added, err := cal.Lookup(sorted)
	if err != nil {
		return nil, err
	}

	l, err := s.lockers.GetByID(ctx, lockerID)
	if err != nil {
		return nil, err
	}

	// 4. Price and time the extension
	date := clock.DateIn(b.Date, s.loc)
	now := s.clock.Now()
	itemStatus := ItemConfirmed
	status, payStatus := StatusConfirmed, ExtendPaymentPaid
	if req.PaymentMethod == PaymentCash {
		itemStatus = ItemPending
		status, payStatus = StatusPendingExtensionPayment, ExtendPaymentPending
	}

	params := ExtendParams{
		BookingID:           b.ID,
		LockerID:            lockerID,
		Date:                date,
		ExtraHours:          decimal.Zero,
		ExtraCost:           decimal.Zero,
		Status:              status,
		ExtendPaymentStatus: payStatus,
	}
	_, params.PreviousEnd = lastSlot.On(date)
	for _, sl := range added {
		_, slotEnd := sl.On(date)
		if !slotEnd.After(now) {
			return nil, ErrSlotInPast.WithErr(fmt.Errorf("slot %d", sl.ID))
		}
		id := sl.ID
		price := l.PricePerHour.Mul(sl.Hours())
		params.Items = append(params.Items, &Item{
			BookingID: b.ID,
			LockerID:  lockerID,
			SlotID:    &id,
			Date:      date,
			Price:     price,
			Status:    itemStatus,
		})
		params.ExtraHours = params.ExtraHours.Add(sl.Hours())
		params.ExtraCost = params.ExtraCost.Add(price)
		params.NewEnd = slotEnd
	}
	params.GraceUntil = params.NewEnd.Add(s.grace)

	// 5. Apply
	if err := s.repo.Extend(ctx, params); err != nil {
		return nil, err
	}
	metrics.RecordExtension("booking")
	updated, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Type:      notify.BookingExtended,
		BookingID: b.ID,
		UserID:    b.UserID,
		Data: map[string]any{
			"locker_id":      lockerID,
			"slot_ids":       sorted,
			"extra_cost":     params.ExtraCost.StringFixed(2),
			"payment_method": string(req.PaymentMethod),
		},
	})

	return &ExtendResult{
		Booking:             updated,
		LockerID:            lockerID,
		AddedSlots:          len(added),
		ExtraHours:          params.ExtraHours,
		ExtraCost:           params.ExtraCost,
		NewEndTime:          params.NewEnd,
		ExtendPaymentStatus: payStatus,
	}, nil
}

func (s *service) SettleExtension(ctx context.Context, id string) (*Booking, error) {
	if err := s.repo.SettleExtension(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) notify(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	ev.OccurredAt = s.clock.Now()
	// Notifier errors never fail the booking operation.
	_ = s.notifier.Notify(ctx, ev)
}
