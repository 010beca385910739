package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSession struct {
	status     string
	lockState  string
	start      time.Time
	graceUntil time.Time
}

type memBooking struct {
	userID    string
	status    string
	createdAt time.Time
}

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	bookings map[string]*memBooking
	failing  map[string]error
	calls    []string
}

func (m *memRepo) fail(task string) error {
	m.calls = append(m.calls, task)
	return m.failing[task]
}

func (m *memRepo) ActivateSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(TaskActivateSessions); err != nil {
		return 0, err
	}
	var n int64
	for _, s := range m.sessions {
		if s.status == "pending" && !s.start.After(now) {
			s.status = "active"
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(TaskExpireSessions); err != nil {
		return 0, err
	}
	var n int64
	for _, s := range m.sessions {
		if s.status == "active" && s.graceUntil.Before(now) {
			s.status, s.lockState = "expired", "locked"
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CancelUnpaidBookings(ctx context.Context, cutoff time.Time) ([]CancelledBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(TaskCancelUnpaid); err != nil {
		return nil, err
	}
	var out []CancelledBooking
	for id, b := range m.bookings {
		if b.status == "pending" && !b.createdAt.After(cutoff) {
			b.status = "cancelled"
			out = append(out, CancelledBooking{ID: id, UserID: b.userID})
		}
	}
	return out, nil
}

func (m *memRepo) ReleaseLockers(ctx context.Context, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return 0, m.fail(TaskReleaseLockers)
}

func (m *memRepo) CompleteBookings(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return 0, m.fail(TaskCompleteBookings)
}

type fakeLock struct {
	granted bool
	err     error
	ttl     time.Duration
}

func (l *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.ttl = ttl
	return l.granted, l.err
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	sweeper *Sweeper
	repo    *memRepo
	clock   *clock.Fake
	lock    *fakeLock
	events  *recorder
	hook    *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	repo := &memRepo{
		sessions: map[string]*memSession{
			"s-1": {status: "pending", lockState: "locked", start: base, graceUntil: base.Add(70 * time.Minute)},
		},
		bookings: map[string]*memBooking{
			"b-1": {userID: "u-1", status: "pending", createdAt: base},
		},
		failing: map[string]error{},
	}
	f := &fixture{
		repo:   repo,
		clock:  clock.NewFake(base.Add(-time.Minute)),
		lock:   &fakeLock{granted: true},
		events: &recorder{},
		hook:   hook,
	}
	f.sweeper = New(repo, f.clock, f.lock, f.events, Options{
		Interval:       time.Minute,
		PaymentTimeout: 10 * time.Minute,
		Logger:         log,
	})
	return f
}

func TestSessionLifecycleBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.repo.sessions["s-1"]

	f.sweeper.RunOnce(ctx)
	assert.Equal(t, "pending", s.status, "before start_time")

	f.clock.Set(base)
	r := f.sweeper.RunOnce(ctx)
	assert.Equal(t, "active", s.status, "at start_time")
	assert.Equal(t, int64(1), r.Affected[TaskActivateSessions])

	f.clock.Set(base.Add(70 * time.Minute))
	f.sweeper.RunOnce(ctx)
	assert.Equal(t, "active", s.status, "at grace_until")

	f.clock.Set(base.Add(70*time.Minute + time.Second))
	r = f.sweeper.RunOnce(ctx)
	assert.Equal(t, "expired", s.status)
	assert.Equal(t, "locked", s.lockState)
	assert.Equal(t, int64(1), r.Affected[TaskExpireSessions])

	f.clock.Set(base.Add(2 * time.Hour))
	f.sweeper.RunOnce(ctx)
	assert.Equal(t, "expired", s.status, "never moves backwards")
}

func TestActivationIgnoresGrace(t *testing.T) {
	f := newFixture(t)
	s := f.repo.sessions["s-1"]

	// Missed the whole window: activated and then expired in the same sweep.
	f.clock.Set(base.Add(3 * time.Hour))
	r := f.sweeper.RunOnce(context.Background())
	assert.Equal(t, int64(1), r.Affected[TaskActivateSessions])
	assert.Equal(t, int64(1), r.Affected[TaskExpireSessions])
	assert.Equal(t, "expired", s.status)
}

func TestUnpaidBookingTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.bookings["b-paid"] = &memBooking{userID: "u-2", status: "confirmed", createdAt: base}

	f.clock.Set(base.Add(10*time.Minute - time.Second))
	f.sweeper.RunOnce(ctx)
	assert.Equal(t, "pending", f.repo.bookings["b-1"].status)

	f.clock.Set(base.Add(10 * time.Minute))
	r := f.sweeper.RunOnce(ctx)
	assert.Equal(t, "cancelled", f.repo.bookings["b-1"].status)
	assert.Equal(t, "confirmed", f.repo.bookings["b-paid"].status)
	assert.Equal(t, int64(1), r.Affected[TaskCancelUnpaid])

	require.Len(t, f.events.events, 1)
	assert.Equal(t, notify.BookingCancelled, f.events.events[0].Type)
	assert.Equal(t, "b-1", f.events.events[0].BookingID)
}

func TestFailingTaskDoesNotStopSweep(t *testing.T) {
	f := newFixture(t)
	f.repo.failing[TaskExpireSessions] = errors.New("statement timeout")
	f.clock.Set(base.Add(10 * time.Minute))

	r := f.sweeper.RunOnce(context.Background())

	assert.Equal(t, []string{
		TaskActivateSessions, TaskExpireSessions, TaskCancelUnpaid, TaskReleaseLockers, TaskCompleteBookings,
	}, f.repo.calls)
	require.Contains(t, r.Errors, TaskExpireSessions)
	assert.Len(t, r.Errors, 1)
	assert.Equal(t, "cancelled", f.repo.bookings["b-1"].status)

	var failed *logrus.Entry
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failed = e
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "sweep task failed", failed.Message)
	assert.Equal(t, TaskExpireSessions, failed.Data["task"])
	assert.Equal(t, "statement timeout", failed.Data["error"])
}

func TestSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	f.lock.granted = false
	f.clock.Set(base)

	r := f.sweeper.RunOnce(context.Background())
	assert.True(t, r.Skipped)
	assert.Empty(t, f.repo.calls)
	assert.Equal(t, "pending", f.repo.sessions["s-1"].status)
	assert.Equal(t, 54*time.Second, f.lock.ttl)
}

func TestRunsUnguardedWhenLockErrors(t *testing.T) {
	f := newFixture(t)
	f.lock.err = errors.New("redis down")
	f.clock.Set(base)

	r := f.sweeper.RunOnce(context.Background())
	assert.False(t, r.Skipped)
	assert.Equal(t, "active", f.repo.sessions["s-1"].status)
	assert.Equal(t, logrus.WarnLevel, f.hook.Entries[0].Level)
}

func TestStartStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(base)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.sweeper.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		f.repo.mu.Lock()
		defer f.repo.mu.Unlock()
		return len(f.repo.calls) >= 5
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
