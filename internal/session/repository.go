package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Session, error)
	ListLiveByUser(ctx context.Context, userID string) ([]*Session, error)
	SetLockerState(ctx context.Context, id string, state LockerState) error
	// Release expires a pending or active session and locks it.
	Release(ctx context.Context, id string) error
	// TakenSlots lists slot ids with a live reservation for the locker and
	// date. fullDay reports a live full-day reservation.
	TakenSlots(ctx context.Context, lockerID string, date time.Time) (taken map[int]bool, fullDay bool, err error)
	ExtensionApplied(ctx context.Context, orderID string) (bool, error)
	Extend(ctx context.Context, p ExtendParams) error
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var sessionColumns = []string{
	"id", "booking_id", "booking_item_id", "user_id", "locker_id", "start_time", "end_time",
	"grace_until", "status", "locker_state", "created_at", "updated_at",
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.BookingID, &s.BookingItemID, &s.UserID, &s.LockerID, &s.StartTime, &s.EndTime,
		&s.GraceUntil, &s.Status, &s.LockerState, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(sessionColumns...).
		From("public.sessions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get session query failed: %w", err)
	}

	s, err := scanSession(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return s, nil
}

func (r *pgxRepository) ListLiveByUser(ctx context.Context, userID string) ([]*Session, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(sessionColumns...).
		From("public.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"status": []string{string(StatusPending), string(StatusActive)}}).
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session failed: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *pgxRepository) SetLockerState(ctx context.Context, id string, state LockerState) error {
	ct, err := r.pool.Exec(ctx,
		"UPDATE public.sessions SET locker_state = $1, updated_at = now() WHERE id = $2",
		state, id,
	)
	if err != nil {
		return fmt.Errorf("set locker state failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) Release(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE public.sessions SET status = 'expired', locker_state = 'locked', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'active')`, id)
	if err != nil {
		return fmt.Errorf("release session failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotActive
	}
	return nil
}

func (r *pgxRepository) TakenSlots(ctx context.Context, lockerID string, date time.Time) (map[int]bool, bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("slot_id").
		From("public.booking_items").
		Where(squirrel.Eq{"locker_id": lockerID}).
		Where(squirrel.Eq{"date": date.Format("2006-01-02")}).
		Where(squirrel.Eq{"status": locker.LiveItemStatuses}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build taken slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list taken slots failed: %w", err)
	}
	defer rows.Close()

	taken := make(map[int]bool)
	fullDay := false
	for rows.Next() {
		var slotID *int
		if err := rows.Scan(&slotID); err != nil {
			return nil, false, fmt.Errorf("scan taken slot failed: %w", err)
		}
		if slotID == nil {
			fullDay = true
			continue
		}
		taken[*slotID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate taken slots failed: %w", err)
	}
	return taken, fullDay, nil
}

func (r *pgxRepository) ExtensionApplied(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM public.extension_payments WHERE order_id = $1)", orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check extension payment failed: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) Extend(ctx context.Context, p ExtendParams) error {
	slotIDs := make([]int, len(p.Items))
	for i, it := range p.Items {
		slotIDs[i] = it.SlotID
	}
	day := p.Date.Format("2006-01-02")

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// 1. Dedupe the payment
		if p.OrderID != "" {
			ct, err := tx.Exec(ctx, `
				INSERT INTO public.extension_payments (order_id, session_id, slot_ids, amount)
				VALUES ($1, $2, $3, $4) ON CONFLICT (order_id) DO NOTHING`,
				p.OrderID, p.SessionID, slotIDs, p.Cost,
			)
			if err != nil {
				return fmt.Errorf("record extension payment failed: %w", err)
			}
			if ct.RowsAffected() == 0 {
				return ErrDuplicateExtension
			}
		}

		// 2. Serialize with other reservations on this locker and day
		if err := db.LockKeys(ctx, tx, []string{db.ReservationKey(p.LockerID, p.Date)}); err != nil {
			return err
		}

		var end time.Time
		var status Status
		err := tx.QueryRow(ctx,
			"SELECT end_time, status FROM public.sessions WHERE id = $1 FOR UPDATE", p.SessionID,
		).Scan(&end, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock session failed: %w", err)
		}
		if status != StatusPending && status != StatusActive {
			return ErrNotActive
		}
		if !end.Equal(p.PreviousEnd) {
			return ErrStaleSession
		}

		conflict, err := locker.ReservationConflict(ctx, tx, p.LockerID, p.Date, slotIDs)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		// 3. Price lines, session window, booking totals
		psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
		insert := psql.Insert("public.booking_items").
			Columns("booking_id", "locker_id", "slot_id", "date", "price", "status")
		for _, it := range p.Items {
			insert = insert.Values(p.BookingID, p.LockerID, it.SlotID, day, it.Price, "confirmed")
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build extension items query failed: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("create extension items failed: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE public.sessions SET end_time = $1, grace_until = $2, updated_at = now() WHERE id = $3",
			p.NewEnd, p.GraceUntil, p.SessionID,
		); err != nil {
			return fmt.Errorf("extend session failed: %w", err)
		}

		query, args, err = psql.Update("public.bookings").
			Set("total_amount", squirrel.Expr("total_amount + ?", p.Cost)).
			Set("total_hours", squirrel.Expr("total_hours + ?", p.Hours)).
			Set("extended_slot_ids", squirrel.Expr("extended_slot_ids || ?::int[]", slotIDs)).
			Set("end_time", squirrel.Expr("GREATEST(COALESCE(end_time, ?), ?)", p.NewEnd, p.NewEnd)).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": p.BookingID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build extend booking query failed: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("extend booking failed: %w", err)
		}
		return nil
	})
	if db.IsUniqueViolation(err) {
		return ErrSlotConflict.WithErr(err)
	}
	return err
}
