package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/nekogravitycat/locker-booking-backend/internal/metrics"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Get(ctx context.Context, id, actorID string) (*Session, error)
	ListActive(ctx context.Context, userID string) ([]*Session, error)
	Unlock(ctx context.Context, id, actorID string) (*Session, error)
	Lock(ctx context.Context, id, actorID string) (*Session, error)
	Release(ctx context.Context, id, actorID string) (*Session, error)
	// ExtendableSlots returns the free run of slots directly after the
	// session, in order.
	ExtendableSlots(ctx context.Context, id, actorID string) ([]slot.Slot, error)
	CalculateExtensionCost(ctx context.Context, lockerID string, slotIDs []int) (*Quote, error)
	ExtendHourly(ctx context.Context, id, actorID string, slotCount int) (*ExtendResult, error)
	// ConfirmExtensionPayment applies a paid extension once per order id.
	ConfirmExtensionPayment(ctx context.Context, req ConfirmExtensionRequest) (*ConfirmExtensionResult, error)
}

type Options struct {
	Location *time.Location
	Grace    time.Duration
}

type service struct {
	repo     Repository
	lockers  locker.Service
	slots    slot.Service
	notifier notify.Notifier
	clock    clock.Clock
	loc      *time.Location
	grace    time.Duration
}

func NewService(
	repo Repository,
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
		lockers:  lockers,
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		loc:      loc,
		grace:    opts.Grace,
	}
}

func (s *service) Get(ctx context.Context, id, actorID string) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != actorID {
		return nil, ErrPermissionDenied
	}
	return sess, nil
}

func (s *service) ListActive(ctx context.Context, userID string) ([]*Session, error) {
	return s.repo.ListLiveByUser(ctx, userID)
}

func (s *service) Unlock(ctx context.Context, id, actorID string) (*Session, error) {
	sess, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusActive || s.clock.Now().After(sess.GraceUntil) {
		return nil, ErrAccessWindowClosed
	}
	if err := s.repo.SetLockerState(ctx, id, LockerUnlocked); err != nil {
		return nil, err
	}
	sess.LockerState = LockerUnlocked
	return sess, nil
}

func (s *service) Lock(ctx context.Context, id, actorID string) (*Session, error) {
	sess, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetLockerState(ctx, id, LockerLocked); err != nil {
		return nil, err
	}
	sess.LockerState = LockerLocked
	return sess, nil
}

func (s *service) Release(ctx context.Context, id, actorID string) (*Session, error) {
	if _, err := s.Get(ctx, id, actorID); err != nil {
		return nil, err
	}
	if err := s.repo.Release(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// lastSlot finds the calendar slot the session currently ends with, along
// with the session date. Full-day sessions end on no slot boundary.
func (s *service) lastSlot(sess *Session, cal *slot.Calendar) (slot.Slot, time.Time, error) {
	end := sess.EndTime.In(s.loc)
	date := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, s.loc)
	last, ok := cal.EndingAt(end.Sub(date))
	if !ok {
		// A slot ending at 24:00 lands on the next calendar day.
		prev := date.AddDate(0, 0, -1)
		if last, ok = cal.EndingAt(end.Sub(prev)); !ok {
			return slot.Slot{}, time.Time{}, ErrNotExtendable
		}
		date = prev
	}
	return last, date, nil
}

func (s *service) ExtendableSlots(ctx context.Context, id, actorID string) ([]slot.Slot, error) {
	sess, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if !sess.Live() {
		return nil, ErrNotActive
	}

	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	last, date, err := s.lastSlot(sess, cal)
	if err != nil {
		return nil, err
	}

	taken, fullDay, err := s.repo.TakenSlots(ctx, sess.LockerID, date)
	if err != nil {
		return nil, err
	}
	out := []slot.Slot{}
	if fullDay {
		return out, nil
	}

	now := s.clock.Now()
	prev := last.ID
	for _, sl := range cal.After(last.ID) {
		_, end := sl.On(date)
		if sl.ID != prev+1 || taken[sl.ID] || !end.After(now) {
			break
		}
		out = append(out, sl)
		prev = sl.ID
	}
	return out, nil
}

// quote prices slots at the locker's hourly rate.
func quote(l *locker.Locker, slots []slot.Slot) (*Quote, []ExtensionItem) {
	q := &Quote{LockerID: l.ID, Hours: decimal.Zero, Cost: decimal.Zero}
	items := make([]ExtensionItem, 0, len(slots))
	for _, sl := range slots {
		price := l.PricePerHour.Mul(sl.Hours())
		items = append(items, ExtensionItem{SlotID: sl.ID, Price: price})
		q.SlotIDs = append(q.SlotIDs, sl.ID)
		q.Hours = q.Hours.Add(sl.Hours())
		q.Cost = q.Cost.Add(price)
	}
	return q, items
}

func (s *service) CalculateExtensionCost(ctx context.Context, lockerID string, slotIDs []int) (*Quote, error) {
	if lockerID == "" || len(slotIDs) == 0 {
		return nil, ErrInvalidInput
	}
	sorted, ok := slot.Consecutive(slotIDs)
	if !ok {
		return nil, ErrNotContiguous
	}

	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := cal.Lookup(sorted)
	if err != nil {
		return nil, err
	}
	l, err := s.lockers.GetByID(ctx, lockerID)
	if err != nil {
		return nil, err
	}

	q, _ := quote(l, slots)
	return q, nil
}

// plan validates that slots directly follow sess and builds the extension.
func (s *service) plan(ctx context.Context, sess *Session, slotIDs []int) (ExtendParams, *Quote, error) {
	if !sess.Live() {
		return ExtendParams{}, nil, ErrNotActive
	}
	sorted, ok := slot.Consecutive(slotIDs)
	if !ok {
		return ExtendParams{}, nil, ErrNotContiguous
	}

	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return ExtendParams{}, nil, err
	}
	last, date, err := s.lastSlot(sess, cal)
	if err != nil {
		return ExtendParams{}, nil, err
	}
	if sorted[0] != last.ID+1 {
		return ExtendParams{}, nil, ErrSlotsNotNext
	}
	slots, ok := cal.Next(last.ID, len(sorted))
	if !ok {
		return ExtendParams{}, nil, ErrNoSlotsLeft
	}

	now := s.clock.Now()
	for _, sl := range slots {
		if _, end := sl.On(date); !end.After(now) {
			return ExtendParams{}, nil, ErrSlotInPast.WithErr(fmt.Errorf("slot %d", sl.ID))
		}
	}

	l, err := s.lockers.GetByID(ctx, sess.LockerID)
	if err != nil {
		return ExtendParams{}, nil, err
	}
	q, items := quote(l, slots)
	_, newEnd := slots[len(slots)-1].On(date)

	return ExtendParams{
		SessionID:   sess.ID,
		BookingID:   sess.BookingID,
		LockerID:    sess.LockerID,
		Date:        date,
		Items:       items,
		Cost:        q.Cost,
		Hours:       q.Hours,
		PreviousEnd: sess.EndTime,
		NewEnd:      newEnd,
		GraceUntil:  newEnd.Add(s.grace),
	}, q, nil
}

func (s *service) ExtendHourly(ctx context.Context, id, actorID string, slotCount int) (*ExtendResult, error) {
	if slotCount < 1 || slotCount > MaxHourlyExtension {
		return nil, ErrInvalidSlotCount
	}

	sess, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	last, _, err := s.lastSlot(sess, cal)
	if err != nil {
		return nil, err
	}
	next, ok := cal.Next(last.ID, slotCount)
	if !ok {
		return nil, ErrNoSlotsLeft
	}
	ids := make([]int, len(next))
	for i, sl := range next {
		ids[i] = sl.ID
	}

	params, q, err := s.plan(ctx, sess, ids)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Extend(ctx, params); err != nil {
		return nil, err
	}
	metrics.RecordExtension("session")
	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Type:      notify.SessionExtended,
		BookingID: sess.BookingID,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Data:      map[string]any{"slot_ids": ids, "added_cost": q.Cost.StringFixed(2)},
	})
	return &ExtendResult{
		Session:   updated,
		SlotIDs:   ids,
		AddedCost: q.Cost,
		NewEnd:    params.NewEnd,
	}, nil
}

var successfulPaymentStatuses = map[string]bool{
	"completed":  true,
	"paid":       true,
	"success":    true,
	"successful": true,
}

// PaymentSucceeded reports whether a gateway status string means captured.
func PaymentSucceeded(status string) bool {
	return successfulPaymentStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// ExtensionOrderID derives a stable dedupe key when the gateway sends none.
func ExtensionOrderID(sessionID string, slotIDs []int) string {
	sorted, _ := slot.Consecutive(slotIDs)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return sessionID + ":" + strings.Join(parts, ",")
}

func (s *service) ConfirmExtensionPayment(ctx context.Context, req ConfirmExtensionRequest) (*ConfirmExtensionResult, error) {
	// 1. Validate
	if !PaymentSucceeded(req.PaymentStatus) {
		return nil, ErrPaymentNotSuccessful
	}
	if req.SessionID == "" || len(req.SlotIDs) == 0 {
		return nil, ErrInvalidInput
	}
	orderID := req.OrderID
	if orderID == "" {
		orderID = ExtensionOrderID(req.SessionID, req.SlotIDs)
	}

	sess, err := s.repo.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// 2. A retried webhook returns the session as it stands
	applied, err := s.repo.ExtensionApplied(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if applied {
		return &ConfirmExtensionResult{Session: sess, OrderID: orderID, AddedCost: decimal.Zero, AlreadyApplied: true}, nil
	}

	// 3. Apply
	params, q, err := s.plan(ctx, sess, req.SlotIDs)
	if err != nil {
		return nil, err
	}
	params.OrderID = orderID
	if err := s.repo.Extend(ctx, params); err != nil {
		if errors.Is(err, ErrDuplicateExtension) {
			current, getErr := s.repo.GetByID(ctx, req.SessionID)
			if getErr != nil {
				return nil, getErr
			}
			return &ConfirmExtensionResult{Session: current, OrderID: orderID, AddedCost: decimal.Zero, AlreadyApplied: true}, nil
		}
		return nil, err
	}

	metrics.RecordExtension("payment")
	updated, err := s.repo.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"order_id":   orderID,
		"slot_ids":   q.SlotIDs,
	}).Info("extension payment applied")

	s.notify(ctx, notify.Event{
		Type:      notify.SessionExtended,
		BookingID: sess.BookingID,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Data:      map[string]any{"slot_ids": q.SlotIDs, "added_cost": q.Cost.StringFixed(2), "order_id": orderID},
	})
	return &ConfirmExtensionResult{Session: updated, OrderID: orderID, AddedCost: q.Cost}, nil
}

func (s *service) notify(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	ev.OccurredAt = s.clock.Now()
	_ = s.notifier.Notify(ctx, ev)
}
