package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/apperror"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Acknowledger is the part of amqp.Delivery the consumer settles with.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consume confirms bookings from payment.paid deliveries until ctx ends or
// the channel closes.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, svc Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			Handle(ctx, svc, d.RoutingKey, d.Body, &d)
		}
	}
}

// Handle processes one message. Malformed bodies, client errors and input
// Postgres rejects are dropped; anything else is requeued.
func Handle(ctx context.Context, svc Service, key string, body []byte, ack Acknowledger) {
	log := logger.Log.WithField("routing_key", key)

	if key != RoutingKeyPaid {
		log.Warn("skip unknown routing key")
		_ = ack.Ack(false)
		return
	}

	var ev PaidEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.BookingID == "" {
		log.WithField("error", err).Error("drop malformed payment event")
		_ = ack.Nack(false, false)
		return
	}
	if _, err := uuid.Parse(ev.BookingID); err != nil {
		log.WithField("booking_id", ev.BookingID).Error("drop payment event with invalid booking id")
		_ = ack.Nack(false, false)
		return
	}
	log = log.WithField("booking_id", ev.BookingID)

	res, err := svc.ConfirmPayment(ctx, ev.BookingID)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
			log.WithField("error", err.Error()).Warn("payment event rejected")
			_ = ack.Ack(false)
			return
		}
		if db.IsDataException(err) {
			log.WithField("error", err.Error()).Error("drop payment event rejected by database")
			_ = ack.Nack(false, false)
			return
		}
		log.WithField("error", err.Error()).Error("payment confirmation failed, requeue")
		_ = ack.Nack(false, true)
		return
	}

	log.WithFields(logrus.Fields{
		"already_confirmed": res.AlreadyConfirmed,
		"sessions_created":  res.SessionsCreated,
	}).Info("payment confirmed")
	_ = ack.Ack(false)
}
