package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
	"github.com/nekogravitycat/locker-booking-backend/internal/session"
)

// Repository runs a confirmation in one transaction.
type Repository interface {
	InTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is bound to an open transaction.
type TxRepository interface {
	LockBooking(ctx context.Context, id string) (*BookingRef, error)
	ConfirmBooking(ctx context.Context, id string) error
	ConfirmItems(ctx context.Context, bookingID string) (int64, error)
	ConfirmedItems(ctx context.Context, bookingID string) ([]session.SourceItem, error)
	// InsertSessions skips sessions whose booking item already has one and
	// returns how many were written.
	InsertSessions(ctx context.Context, sessions []*session.Session) (int64, error)
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) InTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockBooking(ctx context.Context, id string) (*BookingRef, error) {
	var b BookingRef
	err := r.tx.QueryRow(ctx,
		"SELECT id, user_id, status FROM public.bookings WHERE id = $1 FOR UPDATE", id,
	).Scan(&b.ID, &b.UserID, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("lock booking failed: %w", err)
	}
	return &b, nil
}

func (r *txRepository) ConfirmBooking(ctx context.Context, id string) error {
	ct, err := r.tx.Exec(ctx,
		"UPDATE public.bookings SET status = 'confirmed', updated_at = now() WHERE id = $1 AND status = 'pending'", id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *txRepository) ConfirmItems(ctx context.Context, bookingID string) (int64, error) {
	ct, err := r.tx.Exec(ctx,
		"UPDATE public.booking_items SET status = 'confirmed' WHERE booking_id = $1 AND status = 'pending'", bookingID,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *txRepository) ConfirmedItems(ctx context.Context, bookingID string) ([]session.SourceItem, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, locker_id, slot_id, date FROM public.booking_items
		WHERE booking_id = $1 AND status = 'confirmed'
		ORDER BY locker_id, slot_id NULLS FIRST`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []session.SourceItem
	for rows.Next() {
		var it session.SourceItem
		if err := rows.Scan(&it.ID, &it.LockerID, &it.SlotID, &it.Date); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *txRepository) InsertSessions(ctx context.Context, sessions []*session.Session) (int64, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	insert := psql.Insert("public.sessions").
		Columns("booking_id", "booking_item_id", "user_id", "locker_id", "start_time", "end_time",
			"grace_until", "status", "locker_state")
	for _, s := range sessions {
		insert = insert.Values(s.BookingID, s.BookingItemID, s.UserID, s.LockerID, s.StartTime, s.EndTime,
			s.GraceUntil, s.Status, s.LockerState)
	}
	query, args, err := insert.Suffix("ON CONFLICT (booking_item_id) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create sessions query failed: %w", err)
	}

	ct, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
