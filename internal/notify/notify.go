package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	BookingCancelled EventType = "booking.cancelled"
	BookingExtended  EventType = "booking.extended"
	SessionExtended  EventType = "session.extended"
)

// Event is published as JSON with the type as routing key.
type Event struct {
	Type       EventType      `json:"type"`
	BookingID  string         `json:"booking_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier delivers user-facing notifications. Failures never affect the
// operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type mqNotifier struct {
	pub Publisher
}

func NewMQNotifier(pub Publisher) Notifier {
	return &mqNotifier{pub: pub}
}

func (n *mqNotifier) Notify(ctx context.Context, ev Event) error {
	return n.pub.PublishJSON(ctx, string(ev.Type), ev)
}

type logNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier writes events to the log. Used when no broker is configured.
func NewLogNotifier(log *logrus.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(ctx context.Context, ev Event) error {
	n.log.WithFields(logrus.Fields{
		"event":      ev.Type,
		"booking_id": ev.BookingID,
		"session_id": ev.SessionID,
		"user_id":    ev.UserID,
	}).Info("notification")
	return nil
}

// Async sends notifications in the background with a per-event timeout and
// logs delivery errors.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	return &Async{next: next, timeout: timeout}
}

// Notify returns immediately. The caller's context only contributes values,
// not cancellation.
func (a *Async) Notify(ctx context.Context, ev Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, ev); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"event":      ev.Type,
				"booking_id": ev.BookingID,
				"session_id": ev.SessionID,
				"error":      err.Error(),
			}).Warn("notification failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight notifications finish.
func (a *Async) Wait() {
	a.wg.Wait()
}
