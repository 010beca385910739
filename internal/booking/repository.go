package booking

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
	// CreateGroup stores the booking and its items in one transaction after
	// re-checking every (locker, date) under an advisory lock.
	CreateGroup(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Cancel(ctx context.Context, id string, today time.Time) error
	Extend(ctx context.Context, p ExtendParams) error
	SettleExtension(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

const dateLayout = "2006-01-02"

var bookingColumns = []string{
	"b.id", "b.user_id", "b.hub_id", "b.date", "b.mode", "b.total_amount", "b.total_hours", "b.status",
	"b.extend_payment_status", "b.extended_slot_ids", "b.end_time", "b.created_at", "b.updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	dest := append([]any{
		&b.ID, &b.UserID, &b.HubID, &b.Date, &b.Mode, &b.TotalAmount, &b.TotalHours, &b.Status,
		&b.ExtendPaymentStatus, &b.ExtendedSlotIDs, &b.EndTime, &b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &b, nil
}

// reservations groups the cart by locker, preserving first-seen order. A nil
// slot list means the full day.
func reservations(items []*Item) ([]string, map[string][]int) {
	var order []string
	slots := make(map[string][]int)
	for _, it := range items {
		if _, ok := slots[it.LockerID]; !ok {
			order = append(order, it.LockerID)
			slots[it.LockerID] = nil
		}
		if it.SlotID != nil {
			slots[it.LockerID] = append(slots[it.LockerID], *it.SlotID)
		}
	}
	return order, slots
}

func (r *pgxRepository) CreateGroup(ctx context.Context, b *Booking) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lockerIDs, slots := reservations(b.Items)

		// 1. Serialize writers per (locker, date)
		keys := make([]string, len(lockerIDs))
		for i, id := range lockerIDs {
			keys[i] = db.ReservationKey(id, b.Date)
		}
		if err := db.LockKeys(ctx, tx, keys); err != nil {
			return err
		}

		// 2. Re-check availability under the lock
		for _, id := range lockerIDs {
			conflict, err := locker.ReservationConflict(ctx, tx, id, b.Date, slots[id])
			if err != nil {
				return err
			}
			if conflict {
				return ErrSlotConflict.WithErr(fmt.Errorf("locker %s", id))
			}
		}

		// 3. Booking row
		psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
		query, args, err := psql.Insert("public.bookings").
			Columns("user_id", "hub_id", "date", "mode", "total_amount", "total_hours", "status", "end_time").
			Values(b.UserID, b.HubID, b.Date.Format(dateLayout), b.Mode, b.TotalAmount, b.TotalHours, b.Status, b.EndTime).
			Suffix("RETURNING id, created_at, updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build create booking query failed: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("create booking failed: %w", err)
		}

		// 4. Items
		for _, it := range b.Items {
			it.BookingID = b.ID
		}
		if err := insertItems(ctx, tx, b.Items); err != nil {
			return err
		}

		// 5. Coarse locker flag
		return markLockersBooked(ctx, tx, lockerIDs)
	})
	if db.IsUniqueViolation(err) {
		return ErrSlotConflict.WithErr(err)
	}
	return err
}

func insertItems(ctx context.Context, q db.Querier, items []*Item) error {
	if len(items) == 0 {
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	insert := psql.Insert("public.booking_items").
		Columns("booking_id", "locker_id", "slot_id", "date", "price", "status")
	for _, it := range items {
		insert = insert.Values(it.BookingID, it.LockerID, it.SlotID, it.Date.Format(dateLayout), it.Price, it.Status)
	}
	query, args, err := insert.Suffix("RETURNING id, created_at").ToSql()
	if err != nil {
		return fmt.Errorf("build create booking items query failed: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("create booking items failed: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(items) {
			break
		}
		if err := rows.Scan(&items[i].ID, &items[i].CreatedAt); err != nil {
			return fmt.Errorf("scan booking item failed: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("create booking items failed: %w", err)
	}
	return nil
}

func markLockersBooked(ctx context.Context, q db.Querier, lockerIDs []string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.lockers").
		Set("availability_status", string(locker.AvailabilityBooked)).
		Where(squirrel.Eq{"id": lockerIDs}).
		Where(squirrel.Eq{"availability_status": string(locker.AvailabilityAvailable)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark lockers query failed: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark lockers booked failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Items = items
	return b, nil
}

func (r *pgxRepository) listItems(ctx context.Context, bookingID string) ([]*Item, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "booking_id", "locker_id", "slot_id", "date", "price", "status", "created_at").
		From("public.booking_items").
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("locker_id ASC", "slot_id ASC NULLS FIRST").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list booking items query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list booking items failed: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.BookingID, &it.LockerID, &it.SlotID, &it.Date, &it.Price, &it.Status, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking item failed: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking items failed: %w", err)
	}
	return items, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(bookingColumns, "count(*) OVER() as total_count")...).
		From("public.bookings b")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"b.user_id": filter.UserID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.OrderBy("b.created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, total, nil
}

// lockStatus reads the booking status with a row lock held until commit.
func lockStatus(ctx context.Context, tx pgx.Tx, id string) (Status, error) {
	var status Status
	err := tx.QueryRow(ctx, "SELECT status FROM public.bookings WHERE id = $1 FOR UPDATE", id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lock booking failed: %w", err)
	}
	return status, nil
}

func (r *pgxRepository) Cancel(ctx context.Context, id string, today time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// 1. Status gate
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		switch status {
		case StatusCancelled:
			return ErrAlreadyCancelled
		case StatusPending, StatusConfirmed:
		default:
			return ErrNotCancellable
		}

		var active bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM public.sessions WHERE booking_id = $1 AND status = 'active')", id,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("check active sessions failed: %w", err)
		}
		if active {
			return ErrNotCancellable.WithErr(errors.New("session in progress"))
		}

		// 2. Booking, items, sessions
		if _, err := tx.Exec(ctx,
			"UPDATE public.bookings SET status = 'cancelled', updated_at = now() WHERE id = $1", id,
		); err != nil {
			return fmt.Errorf("cancel booking failed: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"UPDATE public.booking_items SET status = 'cancelled' WHERE booking_id = $1 AND status IN ('pending', 'confirmed')", id,
		); err != nil {
			return fmt.Errorf("cancel booking items failed: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE public.sessions SET status = 'expired', locker_state = 'locked', updated_at = now()
			 WHERE booking_id = $1 AND status = 'pending'`, id,
		); err != nil {
			return fmt.Errorf("expire pending sessions failed: %w", err)
		}

		// 3. Release lockers with nothing else ahead of them
		if _, err := tx.Exec(ctx, `
			UPDATE public.lockers l SET availability_status = 'available'
			WHERE l.availability_status = 'booked'
			  AND l.id IN (SELECT locker_id FROM public.booking_items WHERE booking_id = $1)
			  AND NOT EXISTS (
				SELECT 1 FROM public.booking_items bi
				WHERE bi.locker_id = l.id AND bi.status IN ('pending', 'confirmed') AND bi.date >= $2
			  )`, id, today.Format(dateLayout),
		); err != nil {
			return fmt.Errorf("release lockers failed: %w", err)
		}
		return nil
	})
}

func (r *pgxRepository) Extend(ctx context.Context, p ExtendParams) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// 1. Status gate
		status, err := lockStatus(ctx, tx, p.BookingID)
		if err != nil {
			return err
		}
		if status != StatusConfirmed {
			return ErrNotExtendable
		}

		// 2. Availability under the (locker, date) lock
		if err := db.LockKeys(ctx, tx, []string{db.ReservationKey(p.LockerID, p.Date)}); err != nil {
			return err
		}
		slotIDs := make([]int, 0, len(p.Items))
		for _, it := range p.Items {
			slotIDs = append(slotIDs, *it.SlotID)
		}
		conflict, err := locker.ReservationConflict(ctx, tx, p.LockerID, p.Date, slotIDs)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		// 3. Stretch the locker's live session. Without one there is nothing
		// to extend and nothing may be charged.
		ct, err := tx.Exec(ctx, `
			UPDATE public.sessions SET end_time = $1, grace_until = $2, updated_at = now()
			WHERE booking_id = $3 AND locker_id = $4 AND status IN ('pending', 'active') AND end_time = $5`,
			p.NewEnd, p.GraceUntil, p.BookingID, p.LockerID, p.PreviousEnd,
		)
		if err != nil {
			return fmt.Errorf("extend session failed: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrNoLiveSession
		}

		// 4. New price lines
		if err := insertItems(ctx, tx, p.Items); err != nil {
			return err
		}

		// 5. Booking totals and status. end_time never moves earlier.
		psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
		query, args, err := psql.Update("public.bookings").
			Set("total_amount", squirrel.Expr("total_amount + ?", p.ExtraCost)).
			Set("total_hours", squirrel.Expr("total_hours + ?", p.ExtraHours)).
			Set("extended_slot_ids", squirrel.Expr("extended_slot_ids || ?::int[]", slotIDs)).
			Set("end_time", squirrel.Expr("GREATEST(COALESCE(end_time, ?), ?)", p.NewEnd, p.NewEnd)).
			Set("status", p.Status).
			Set("extend_payment_status", p.ExtendPaymentStatus).
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

func (r *pgxRepository) SettleExtension(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE public.bookings SET status = 'confirmed', extend_payment_status = 'paid', updated_at = now()
			WHERE id = $1 AND status = 'pending_extension_payment' AND extend_payment_status = 'pending'`, id)
		if err != nil {
			return fmt.Errorf("settle extension failed: %w", err)
		}
		if ct.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM public.bookings WHERE id = $1)", id).Scan(&exists); err != nil {
				return fmt.Errorf("check booking failed: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrNoPendingExtension
		}

		if _, err := tx.Exec(ctx,
			"UPDATE public.booking_items SET status = 'confirmed' WHERE booking_id = $1 AND status = 'pending'", id,
		); err != nil {
			return fmt.Errorf("confirm extension items failed: %w", err)
		}
		return nil
	})
}
