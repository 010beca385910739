package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/db"
)

// CancelledBooking identifies a booking the sweeper cancelled.
type CancelledBooking struct {
	ID     string
	UserID string
}

type Repository interface {
	// ActivateSessions moves pending sessions whose start_time has been
	// reached to active.
	ActivateSessions(ctx context.Context, now time.Time) (int64, error)
	// ExpireSessions moves active sessions past grace_until to expired and
	// locks them.
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)
	// CancelUnpaidBookings cancels pending bookings created at or before
	// cutoff together with their pending items.
	CancelUnpaidBookings(ctx context.Context, cutoff time.Time) ([]CancelledBooking, error)
	// ReleaseLockers marks booked lockers available when no live item
	// holds them on or after today.
	ReleaseLockers(ctx context.Context, today time.Time) (int64, error)
	// CompleteBookings closes confirmed bookings that have ended and have no
	// live session left.
	CompleteBookings(ctx context.Context, now time.Time) (int64, error)
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) ActivateSessions(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE public.sessions SET status = 'active', updated_at = now()
		WHERE status = 'pending' AND start_time <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("activate sessions failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE public.sessions SET status = 'expired', locker_state = 'locked', updated_at = now()
		WHERE status = 'active' AND grace_until < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire sessions failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) CancelUnpaidBookings(ctx context.Context, cutoff time.Time) ([]CancelledBooking, error) {
	rows, err := r.pool.Query(ctx, `
		WITH cancelled AS (
			UPDATE public.bookings SET status = 'cancelled', updated_at = now()
			WHERE status = 'pending' AND created_at <= $1
			RETURNING id, user_id
		), items AS (
			UPDATE public.booking_items bi SET status = 'cancelled'
			FROM cancelled c
			WHERE bi.booking_id = c.id AND bi.status = 'pending'
		)
		SELECT id, user_id FROM cancelled`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cancel unpaid bookings failed: %w", err)
	}
	defer rows.Close()

	var cancelled []CancelledBooking
	for rows.Next() {
		var b CancelledBooking
		if err := rows.Scan(&b.ID, &b.UserID); err != nil {
			return nil, fmt.Errorf("scan cancelled booking failed: %w", err)
		}
		cancelled = append(cancelled, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cancelled bookings failed: %w", err)
	}
	return cancelled, nil
}

func (r *pgxRepository) ReleaseLockers(ctx context.Context, today time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE public.lockers l SET availability_status = 'available'
		WHERE l.availability_status = 'booked'
		  AND NOT EXISTS (
			SELECT 1 FROM public.booking_items bi
			WHERE bi.locker_id = l.id AND bi.status IN ('pending', 'confirmed') AND bi.date >= $1
		  )`, today.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("release lockers failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) CompleteBookings(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE public.bookings b SET status = 'completed', updated_at = now()
		WHERE b.status = 'confirmed' AND b.end_time IS NOT NULL AND b.end_time < $1
		  AND NOT EXISTS (
			SELECT 1 FROM public.sessions s
			WHERE s.booking_id = b.id AND s.status IN ('pending', 'active')
		  )`, now)
	if err != nil {
		return 0, fmt.Errorf("complete bookings failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
