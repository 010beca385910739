package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo holds bookings in memory. CreateGroup and Extend check and insert
// under one mutex, standing in for the advisory lock.
type memRepo struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]*Booking
	extends  []ExtendParams
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: make(map[string]*Booking)}
}

func (m *memRepo) taken(lockerID string, date time.Time, slotID *int) bool {
	for _, b := range m.bookings {
		for _, it := range b.Items {
			if it.LockerID != lockerID || !it.Date.Equal(date) || !it.Live() {
				continue
			}
			if it.SlotID == nil || slotID == nil || *it.SlotID == *slotID {
				return true
			}
		}
	}
	return false
}

func (m *memRepo) CreateGroup(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range b.Items {
		if m.taken(it.LockerID, it.Date, it.SlotID) {
			return ErrSlotConflict
		}
	}
	m.seq++
	b.ID = fmt.Sprintf("booking-%d", m.seq)
	for i, it := range b.Items {
		it.ID = fmt.Sprintf("%s-item-%d", b.ID, i)
		it.BookingID = b.ID
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *memRepo) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Booking
	for _, b := range m.bookings {
		if b.UserID == filter.UserID {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) Cancel(ctx context.Context, id string, today time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	switch b.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusPending, StatusConfirmed:
	default:
		return ErrNotCancellable
	}
	b.Status = StatusCancelled
	for _, it := range b.Items {
		it.Status = ItemCancelled
	}
	return nil
}

func (m *memRepo) Extend(ctx context.Context, p ExtendParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[p.BookingID]
	if !ok {
		return ErrNotFound
	}
	for _, it := range p.Items {
		if m.taken(it.LockerID, it.Date, it.SlotID) {
			return ErrSlotConflict
		}
	}
	b.Items = append(b.Items, p.Items...)
	b.TotalAmount = b.TotalAmount.Add(p.ExtraCost)
	b.TotalHours = b.TotalHours.Add(p.ExtraHours)
	for _, it := range p.Items {
		b.ExtendedSlotIDs = append(b.ExtendedSlotIDs, *it.SlotID)
	}
	end := p.NewEnd
	b.EndTime = &end
	b.Status = p.Status
	ps := p.ExtendPaymentStatus
	b.ExtendPaymentStatus = &ps
	m.extends = append(m.extends, p)
	return nil
}

func (m *memRepo) SettleExtension(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status != StatusPendingExtensionPayment {
		return ErrNoPendingExtension
	}
	b.Status = StatusConfirmed
	paid := ExtendPaymentPaid
	b.ExtendPaymentStatus = &paid
	for _, it := range b.Items {
		if it.Status == ItemPending {
			it.Status = ItemConfirmed
		}
	}
	return nil
}

type fakeHubs struct{}

func (fakeHubs) GetByID(ctx context.Context, id string) (*hub.Hub, error) {
	if id != "hub-1" {
		return nil, hub.ErrNotFound
	}
	return &hub.Hub{ID: id}, nil
}

func (fakeHubs) List(ctx context.Context, filter hub.Filter) ([]*hub.Hub, int, error) {
	return nil, 0, nil
}

type fakeLockers struct {
	locker.Service
	byID map[string]*locker.Locker
}

func (f fakeLockers) GetByID(ctx context.Context, id string) (*locker.Locker, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, locker.ErrNotFound
	}
	return l, nil
}

func (f fakeLockers) GetMany(ctx context.Context, ids []string) (map[string]*locker.Locker, error) {
	out := make(map[string]*locker.Locker)
	for _, id := range ids {
		l, ok := f.byID[id]
		if !ok {
			return nil, locker.ErrNotFound
		}
		out[id] = l
	}
	return out, nil
}

type fakeSlots struct{ cal *slot.Calendar }

func (f fakeSlots) Seed(ctx context.Context) error { return nil }

func (f fakeSlots) Calendar(ctx context.Context) (*slot.Calendar, error) { return f.cal, nil }

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

var testDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc      Service
	repo     *memRepo
	clock    *clock.Fake
	notifier *recordingNotifier
}

// newFixture uses back-to-back hourly slots so slot N covers
// (N-1):00 to N:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	clk := clock.NewFake(testDate.Add(-24 * time.Hour))
	lockers := fakeLockers{byID: map[string]*locker.Locker{
		"A": {ID: "A", HubID: "hub-1", Size: locker.SizeSmall, PricePerHour: decimal.NewFromInt(100), AvailabilityStatus: locker.AvailabilityAvailable},
		"B": {ID: "B", HubID: "hub-1", Size: locker.SizeSmall, PricePerHour: decimal.NewFromInt(150), AvailabilityStatus: locker.AvailabilityAvailable},
		"C": {ID: "C", HubID: "hub-2", Size: locker.SizeLarge, PricePerHour: decimal.NewFromInt(300)},
		"M": {ID: "M", HubID: "hub-1", Size: locker.SizeSmall, AvailabilityStatus: locker.AvailabilityMaintenance},
	}}
	cal := slot.NewCalendar(slot.Generate(0, time.Hour, 0, 24))
	n := &recordingNotifier{}
	svc := NewService(repo, fakeHubs{}, lockers, fakeSlots{cal: cal}, n, clk, Options{
		Location: time.UTC,
		Grace:    10 * time.Minute,
	})
	return &fixture{svc: svc, repo: repo, clock: clk, notifier: n}
}

func exampleCart() CreateGroupRequest {
	return CreateGroupRequest{
		UserID: "user-1",
		HubID:  "hub-1",
		Date:   testDate,
		Mode:   ModeHourly,
		Cart: []CartEntry{
			{LockerID: "A", Type: ModeHourly, SlotIDs: []int{9, 10}},
			{LockerID: "B", Type: ModeDay},
		},
	}
}

func TestCreateGroupBookingTotals(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.CreateGroupBooking(context.Background(), exampleCart())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, b.Status)
	assert.True(t, decimal.NewFromInt(1000).Equal(b.TotalAmount), "got %s", b.TotalAmount)
	assert.True(t, b.TotalAmount.Equal(ItemsTotal(b.Items)))
	assert.True(t, decimal.NewFromInt(26).Equal(b.TotalHours))
	require.Len(t, b.Items, 3)
	assert.Equal(t, 9, *b.Items[0].SlotID)
	assert.Equal(t, 10, *b.Items[1].SlotID)
	assert.True(t, b.Items[2].IsDay())
	assert.Equal(t, testDate.Add(24*time.Hour-time.Second), *b.EndTime)
}

func TestCreateGroupBookingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateGroupRequest)
		want   error
	}{
		{"empty cart", func(r *CreateGroupRequest) { r.Cart = nil }, ErrEmptyCart},
		{"bad mode", func(r *CreateGroupRequest) { r.Mode = "weekly" }, ErrInvalidMode},
		{"bad entry type", func(r *CreateGroupRequest) { r.Cart[0].Type = "weekly" }, ErrInvalidEntryType},
		{"hourly in day booking", func(r *CreateGroupRequest) { r.Mode = ModeDay }, ErrModeMismatch},
		{"hourly without slots", func(r *CreateGroupRequest) { r.Cart[0].SlotIDs = nil }, ErrMissingSlots},
		{"day with slots", func(r *CreateGroupRequest) { r.Cart[1].SlotIDs = []int{3} }, ErrUnexpectedSlots},
		{"gap", func(r *CreateGroupRequest) { r.Cart[0].SlotIDs = []int{9, 11} }, ErrNotContiguous},
		{"repeated slot", func(r *CreateGroupRequest) { r.Cart[0].SlotIDs = []int{9, 9} }, ErrNotContiguous},
		{"duplicate locker", func(r *CreateGroupRequest) { r.Cart[1].LockerID = "A" }, ErrDuplicateLocker},
		{"unknown hub", func(r *CreateGroupRequest) { r.HubID = "hub-404" }, hub.ErrNotFound},
		{"unknown slot", func(r *CreateGroupRequest) { r.Cart[0].SlotIDs = []int{24, 25} }, slot.ErrNotFound},
		{"unknown locker", func(r *CreateGroupRequest) { r.Cart[1].LockerID = "Z" }, locker.ErrNotFound},
		{"foreign locker", func(r *CreateGroupRequest) { r.Cart[1].LockerID = "C" }, ErrLockerNotInHub},
		{"maintenance", func(r *CreateGroupRequest) { r.Cart[1].LockerID = "M" }, locker.ErrUnavailable},
		{"past date", func(r *CreateGroupRequest) { r.Date = testDate.Add(-48 * time.Hour) }, ErrDateInPast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := exampleCart()
			tt.mutate(&req)

			_, err := f.svc.CreateGroupBooking(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.repo.bookings)
		})
	}
}

func TestCreateGroupBookingRejectsEndedSlot(t *testing.T) {
	f := newFixture(t)
	// 09:30 on the booking date: slot 9 (08:00-09:00) has ended, slot 10 has not.
	f.clock.Set(testDate.Add(9*time.Hour + 30*time.Minute))

	_, err := f.svc.CreateGroupBooking(context.Background(), exampleCart())
	assert.ErrorIs(t, err, ErrSlotInPast)

	req := exampleCart()
	req.Cart[0].SlotIDs = []int{10, 11}
	_, err = f.svc.CreateGroupBooking(context.Background(), req)
	assert.NoError(t, err)
}

func TestDayItemBlocksSlotsOnSameLocker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateGroupBooking(ctx, exampleCart())
	require.NoError(t, err)

	req := CreateGroupRequest{
		UserID: "user-2", HubID: "hub-1", Date: testDate, Mode: ModeHourly,
		Cart: []CartEntry{{LockerID: "B", Type: ModeHourly, SlotIDs: []int{5}}},
	}
	_, err = f.svc.CreateGroupBooking(ctx, req)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestConcurrentBookingsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateGroupBooking(context.Background(), CreateGroupRequest{
				UserID: fmt.Sprintf("user-%d", i), HubID: "hub-1", Date: testDate, Mode: ModeHourly,
				Cart: []CartEntry{{LockerID: "A", Type: ModeHourly, SlotIDs: []int{12}}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrSlotConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
}

func confirmedBooking(t *testing.T, f *fixture, slots []int) *Booking {
	t.Helper()
	b, err := f.svc.CreateGroupBooking(context.Background(), CreateGroupRequest{
		UserID: "user-1", HubID: "hub-1", Date: testDate, Mode: ModeHourly,
		Cart: []CartEntry{{LockerID: "A", Type: ModeHourly, SlotIDs: slots}},
	})
	require.NoError(t, err)
	b.Status = StatusConfirmed
	for _, it := range b.Items {
		it.Status = ItemConfirmed
	}
	return b
}

func TestExtendContiguity(t *testing.T) {
	tests := []struct {
		name  string
		slots []int
		want  error
	}{
		{"next slot", []int{11}, nil},
		{"next two", []int{12, 11}, nil},
		{"gap", []int{12}, ErrSlotsNotAfterCurrent},
		{"overlap", []int{10, 11}, ErrSlotsNotAfterCurrent},
		{"holes", []int{11, 13}, ErrNotContiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := confirmedBooking(t, f, []int{9, 10})

			_, err := f.svc.Extend(context.Background(), ExtendRequest{
				BookingID: b.ID, ActorID: "user-1", NewSlotIDs: tt.slots, PaymentMethod: PaymentOnline,
			})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.repo.extends)
		})
	}
}

func TestExtendCashDefersPayment(t *testing.T) {
	f := newFixture(t)
	b := confirmedBooking(t, f, []int{9, 10})

	res, err := f.svc.Extend(context.Background(), ExtendRequest{
		BookingID: b.ID, ActorID: "user-1", NewSlotIDs: []int{11, 12}, PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.AddedSlots)
	assert.True(t, decimal.NewFromInt(2).Equal(res.ExtraHours))
	assert.True(t, decimal.NewFromInt(200).Equal(res.ExtraCost))
	assert.Equal(t, testDate.Add(12*time.Hour), res.NewEndTime)
	assert.Equal(t, ExtendPaymentPending, res.ExtendPaymentStatus)
	assert.Equal(t, StatusPendingExtensionPayment, res.Booking.Status)
	assert.True(t, res.Booking.TotalAmount.Equal(ItemsTotal(res.Booking.Items)))
	assert.Equal(t, []int{11, 12}, res.Booking.ExtendedSlotIDs)

	p := f.repo.extends[0]
	assert.Equal(t, testDate.Add(10*time.Hour), p.PreviousEnd)
	assert.Equal(t, p.NewEnd.Add(10*time.Minute), p.GraceUntil)
	for _, it := range p.Items {
		assert.Equal(t, ItemPending, it.Status)
	}

	// Another extension waits for settlement.
	_, err = f.svc.Extend(context.Background(), ExtendRequest{
		BookingID: b.ID, ActorID: "user-1", NewSlotIDs: []int{13}, PaymentMethod: PaymentCash,
	})
	assert.ErrorIs(t, err, ErrNotExtendable)

	settled, err := f.svc.SettleExtension(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, settled.Status)
	assert.Equal(t, ExtendPaymentPaid, *settled.ExtendPaymentStatus)
}

func TestExtendOnlineConfirmsImmediately(t *testing.T) {
	f := newFixture(t)
	b := confirmedBooking(t, f, []int{9})

	res, err := f.svc.Extend(context.Background(), ExtendRequest{
		BookingID: b.ID, ActorID: "user-1", NewSlotIDs: []int{10}, PaymentMethod: PaymentOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.Equal(t, ExtendPaymentPaid, res.ExtendPaymentStatus)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.BookingExtended, f.notifier.events[0].Type)
}

func TestExtendRejectsTakenSlot(t *testing.T) {
	f := newFixture(t)
	b := confirmedBooking(t, f, []int{9, 10})
	_, err := f.svc.CreateGroupBooking(context.Background(), CreateGroupRequest{
		UserID: "user-2", HubID: "hub-1", Date: testDate, Mode: ModeHourly,
		Cart: []CartEntry{{LockerID: "A", Type: ModeHourly, SlotIDs: []int{11}}},
	})
	require.NoError(t, err)

	_, err = f.svc.Extend(context.Background(), ExtendRequest{
		BookingID: b.ID, ActorID: "user-1", NewSlotIDs: []int{11}, PaymentMethod: PaymentOnline,
	})
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.True(t, decimal.NewFromInt(200).Equal(b.TotalAmount))
}

func TestExtendGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := confirmedBooking(t, f, []int{9})

	_, err := f.svc.Extend(ctx, ExtendRequest{BookingID: b.ID, ActorID: "user-1", NewSlotIDs: []int{10}, PaymentMethod: "card"})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = f.svc.Extend(ctx, ExtendRequest{BookingID: b.ID, ActorID: "user-2", NewSlotIDs: []int{10}, PaymentMethod: PaymentCash})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.Extend(ctx, ExtendRequest{BookingID: b.ID, ActorID: "user-1", LockerID: "B", NewSlotIDs: []int{10}, PaymentMethod: PaymentCash})
	assert.ErrorIs(t, err, ErrLockerNotInBooking)

	day, err := f.svc.CreateGroupBooking(ctx, CreateGroupRequest{
		UserID: "user-1", HubID: "hub-1", Date: testDate, Mode: ModeDay,
		Cart: []CartEntry{{LockerID: "B", Type: ModeDay}},
	})
	require.NoError(t, err)
	day.Status = StatusConfirmed
	_, err = f.svc.Extend(ctx, ExtendRequest{BookingID: day.ID, ActorID: "user-1", NewSlotIDs: []int{1}, PaymentMethod: PaymentCash})
	assert.ErrorIs(t, err, ErrNoHourlyItems)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateGroupBooking(ctx, exampleCart())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b.ID, "someone-else")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	cancelled, err := f.svc.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.BookingCancelled, f.notifier.events[0].Type)

	_, err = f.svc.Cancel(ctx, b.ID, "user-1")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// The slots are free again.
	_, err = f.svc.CreateGroupBooking(ctx, exampleCart())
	assert.NoError(t, err)
}
