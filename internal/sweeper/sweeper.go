package sweeper

import (
	"context"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/lock"
	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/nekogravitycat/locker-booking-backend/internal/metrics"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/obs"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskActivateSessions = "activate_sessions"
	TaskExpireSessions   = "expire_sessions"
	TaskCancelUnpaid     = "cancel_unpaid_bookings"
	TaskReleaseLockers   = "release_lockers"
	TaskCompleteBookings = "complete_bookings"

	lockKey = "sweep"
)

type Options struct {
	Interval       time.Duration
	PaymentTimeout time.Duration
	// TaskTimeout bounds each task. Defaults to a quarter of Interval.
	TaskTimeout time.Duration
	Location    *time.Location
	Logger      *logrus.Logger
}

// Report is the outcome of one sweep.
type Report struct {
	// Skipped is set when another replica holds the sweep lease.
	Skipped  bool
	Affected map[string]int64
	Errors   map[string]error
}

// Sweeper runs the timer-driven lifecycle transitions.
type Sweeper struct {
	repo     Repository
	clock    clock.Clock
	lock     lock.Locker
	notifier notify.Notifier
	opts     Options
	log      *logrus.Logger
}

func New(repo Repository, clk clock.Clock, locker lock.Locker, notifier notify.Notifier, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 10 * time.Minute
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = opts.Interval / 4
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logger.Log
	}
	return &Sweeper{
		repo:     repo,
		clock:    clk,
		lock:     locker,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// Start sweeps once immediately and then on every interval until ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.opts.Interval.String()).Info("sweeper started")
	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs every task in order. A failing task is logged and the
// rest still run.
func (s *Sweeper) RunOnce(ctx context.Context) *Report {
	report := &Report{
		Affected: make(map[string]int64),
		Errors:   make(map[string]error),
	}

	// Expire the lease just before the next tick.
	ttl := s.opts.Interval - s.opts.Interval/10
	ok, err := s.lock.Acquire(ctx, lockKey, ttl)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("sweep lock unavailable, running unguarded")
	} else if !ok {
		s.log.Debug("sweep lease held elsewhere, skipping")
		report.Skipped = true
		return report
	}

	ctx, span := obs.Tracer("sweeper").Start(ctx, "sweeper.run")
	defer span.End()

	started := s.clock.Now()
	now := started
	today := clock.Today(s.clock, s.opts.Location)

	s.run(ctx, report, TaskActivateSessions, func(ctx context.Context) (int64, error) {
		return s.repo.ActivateSessions(ctx, now)
	})
	s.run(ctx, report, TaskExpireSessions, func(ctx context.Context) (int64, error) {
		return s.repo.ExpireSessions(ctx, now)
	})
	s.run(ctx, report, TaskCancelUnpaid, func(ctx context.Context) (int64, error) {
		cancelled, err := s.repo.CancelUnpaidBookings(ctx, now.Add(-s.opts.PaymentTimeout))
		if err != nil {
			return 0, err
		}
		s.notifyCancelled(ctx, cancelled)
		return int64(len(cancelled)), nil
	})
	s.run(ctx, report, TaskReleaseLockers, func(ctx context.Context) (int64, error) {
		return s.repo.ReleaseLockers(ctx, today)
	})
	s.run(ctx, report, TaskCompleteBookings, func(ctx context.Context) (int64, error) {
		return s.repo.CompleteBookings(ctx, now)
	})

	metrics.ObserveSweepDuration(s.clock.Now().Sub(started))
	span.SetAttributes(attribute.Int("sweep.failed_tasks", len(report.Errors)))
	return report
}

func (s *Sweeper) run(ctx context.Context, report *Report, task string, fn func(ctx context.Context) (int64, error)) {
	taskCtx, cancel := context.WithTimeout(ctx, s.opts.TaskTimeout)
	defer cancel()

	affected, err := fn(taskCtx)
	metrics.RecordSweep(task, affected, err)
	if err != nil {
		report.Errors[task] = err
		s.log.WithFields(logrus.Fields{
			"task":  task,
			"error": err.Error(),
		}).Error("sweep task failed")
		return
	}

	report.Affected[task] = affected
	if affected > 0 {
		s.log.WithFields(logrus.Fields{
			"task":     task,
			"affected": affected,
		}).Info("sweep task applied")
	}
}

func (s *Sweeper) notifyCancelled(ctx context.Context, cancelled []CancelledBooking) {
	if s.notifier == nil {
		return
	}
	for _, b := range cancelled {
		_ = s.notifier.Notify(ctx, notify.Event{
			Type:       notify.BookingCancelled,
			BookingID:  b.ID,
			UserID:     b.UserID,
			Data:       map[string]any{"reason": "payment_timeout"},
			OccurredAt: s.clock.Now(),
		})
	}
}
