package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Locker, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Locker, error)
	// ListAvailable returns the hub's lockers without a live reservation on
	// date. A nil slotID means the whole day must be free.
	ListAvailable(ctx context.Context, hubID string, date time.Time, slotID *int) ([]*Locker, error)
	IsAvailable(ctx context.Context, lockerID string, date time.Time, slotID *int) (bool, error)
	ListLive(ctx context.Context, hubID string, now time.Time) ([]*LiveLocker, error)
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var lockerColumns = []string{
	"l.id", "l.hub_id", "l.locker_number", "l.size", "l.price_per_hour", "l.availability_status", "l.created_at",
}

func scanLocker(row pgx.Row, extra ...any) (*Locker, error) {
	var l Locker
	dest := append([]any{
		&l.ID, &l.HubID, &l.LockerNumber, &l.Size, &l.PricePerHour, &l.AvailabilityStatus, &l.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Locker, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(lockerColumns...).
		From("public.lockers l").
		Where(squirrel.Eq{"l.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get locker query failed: %w", err)
	}

	l, err := scanLocker(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get locker failed: %w", err)
	}
	return l, nil
}

func (r *pgxRepository) ListByIDs(ctx context.Context, ids []string) ([]*Locker, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(lockerColumns...).
		From("public.lockers l").
		Where(squirrel.Eq{"l.id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lockers query failed: %w", err)
	}

	return r.queryLockers(ctx, query, args)
}

func (r *pgxRepository) ListAvailable(ctx context.Context, hubID string, date time.Time, slotID *int) ([]*Locker, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	taken := psql.Select("1").
		From("public.booking_items bi").
		Where("bi.locker_id = l.id").
		Where(squirrel.Eq{"bi.date": date.Format("2006-01-02")}).
		Where(squirrel.Eq{"bi.status": LiveItemStatuses})
	if slotID != nil {
		taken = taken.Where(squirrel.Or{
			squirrel.Eq{"bi.slot_id": nil},
			squirrel.Eq{"bi.slot_id": *slotID},
		})
	}

	query, args, err := psql.Select(lockerColumns...).
		From("public.lockers l").
		Where(squirrel.Eq{"l.hub_id": hubID}).
		Where(squirrel.NotEq{"l.availability_status": string(AvailabilityMaintenance)}).
		Where(squirrel.Expr("NOT EXISTS (?)", taken)).
		OrderBy("l.locker_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list available lockers query failed: %w", err)
	}

	return r.queryLockers(ctx, query, args)
}

func (r *pgxRepository) IsAvailable(ctx context.Context, lockerID string, date time.Time, slotID *int) (bool, error) {
	var slots []int
	if slotID != nil {
		slots = []int{*slotID}
	}
	conflict, err := ReservationConflict(ctx, r.pool, lockerID, date, slots)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

func (r *pgxRepository) ListLive(ctx context.Context, hubID string, now time.Time) ([]*LiveLocker, error) {
	const query = `
		SELECT l.id, l.hub_id, l.locker_number, l.size, l.price_per_hour, l.availability_status, l.created_at,
			EXISTS (
				SELECT 1
				FROM public.booking_items bi
				JOIN public.bookings b ON b.id = bi.booking_id
				WHERE bi.locker_id = l.id
				  AND b.extend_payment_status = 'pending'
				  AND b.status = 'pending_extension_payment'
			) AS awaiting_payment,
			EXISTS (
				SELECT 1
				FROM public.sessions s
				WHERE s.locker_id = l.id
				  AND s.status = 'active'
				  AND s.start_time <= $2
				  AND s.end_time > $2
			) AS occupied
		FROM public.lockers l
		WHERE l.hub_id = $1
		ORDER BY l.locker_number ASC`

	rows, err := r.pool.Query(ctx, query, hubID, now)
	if err != nil {
		return nil, fmt.Errorf("list live lockers failed: %w", err)
	}
	defer rows.Close()

	var out []*LiveLocker
	for rows.Next() {
		var awaiting, occupied bool
		l, err := scanLocker(rows, &awaiting, &occupied)
		if err != nil {
			return nil, fmt.Errorf("scan live locker failed: %w", err)
		}
		out = append(out, &LiveLocker{Locker: *l, Status: DeriveLiveStatus(awaiting, occupied)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live lockers failed: %w", err)
	}
	return out, nil
}

func (r *pgxRepository) queryLockers(ctx context.Context, query string, args []any) ([]*Locker, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lockers failed: %w", err)
	}
	defer rows.Close()

	var lockers []*Locker
	for rows.Next() {
		l, err := scanLocker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locker failed: %w", err)
		}
		lockers = append(lockers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lockers failed: %w", err)
	}
	return lockers, nil
}
