package payment

import (
	"context"
	"errors"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/metrics"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/obs"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/locker-booking-backend/internal/session"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Service interface {
	// ConfirmPayment marks a paid booking confirmed and materializes its
	// sessions. Confirming twice is a no-op.
	ConfirmPayment(ctx context.Context, bookingID string) (*Result, error)
}

type Options struct {
	Location *time.Location
	Grace    time.Duration
}

type service struct {
	repo     Repository
	slots    slot.Service
	notifier notify.Notifier
	clock    clock.Clock
	loc      *time.Location
	grace    time.Duration
}

func NewService(repo Repository, slots slot.Service, notifier notify.Notifier, clk clock.Clock, opts Options) Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     repo,
		slots:    slots,
		notifier: notifier,
		clock:    clk,
		loc:      loc,
		grace:    opts.Grace,
	}
}

func (s *service) ConfirmPayment(ctx context.Context, bookingID string) (*Result, error) {
	ctx, span := obs.Tracer("payment").Start(ctx, "payment.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID))

	res, err := s.confirm(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordPaymentConfirmation("failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("sessions.created", res.SessionsCreated))
	if res.AlreadyConfirmed {
		metrics.RecordPaymentConfirmation("already_confirmed")
		return res, nil
	}
	metrics.RecordPaymentConfirmation("confirmed")
	metrics.RecordSessionsCreated(res.SessionsCreated)

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, notify.Event{
			Type:       notify.BookingConfirmed,
			BookingID:  res.BookingID,
			UserID:     res.UserID,
			Data:       map[string]any{"sessions_created": res.SessionsCreated},
			OccurredAt: s.clock.Now(),
		})
	}
	return res, nil
}

func (s *service) confirm(ctx context.Context, bookingID string) (*Result, error) {
	cal, err := s.slots.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{BookingID: bookingID}
	err = s.repo.InTx(ctx, func(tx TxRepository) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		res.UserID = b.UserID

		switch b.Status {
		case "cancelled":
			return ErrBookingCancelled
		case "pending":
		default:
			res.AlreadyConfirmed = true
			return nil
		}

		// 1. Booking
		if err := tx.ConfirmBooking(ctx, bookingID); err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return err
			}
			return ErrBookingConfirmFailed.WithErr(err)
		}

		// 2. Items
		if _, err := tx.ConfirmItems(ctx, bookingID); err != nil {
			return ErrItemsConfirmFailed.WithErr(err)
		}

		// 3. Sessions
		items, err := tx.ConfirmedItems(ctx, bookingID)
		if err != nil {
			return ErrSessionCreateFailed.WithErr(err)
		}
		sessions, err := session.Materialize(bookingID, b.UserID, items, cal, s.loc, s.grace)
		if err != nil {
			return ErrSessionCreateFailed.WithErr(err)
		}
		created, err := tx.InsertSessions(ctx, sessions)
		if err != nil {
			return ErrSessionCreateFailed.WithErr(err)
		}
		res.SessionsCreated = int(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
