package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
)

// LiveItemStatuses are the booking item statuses that hold a reservation.
var LiveItemStatuses = []string{"pending", "confirmed"}

// ReservationConflict reports whether lockerID already holds a live
// reservation on date that overlaps the request. An empty slotIDs asks for
// the full day, which collides with any live item. A slot request collides
// with the same slot or with a full-day item.
//
// Callers reserving inside a transaction must hold the (locker, date)
// advisory lock first.
func ReservationConflict(ctx context.Context, q db.Querier, lockerID string, date time.Time, slotIDs []int) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	sub := psql.Select("1").
		From("public.booking_items").
		Where(squirrel.Eq{"locker_id": lockerID}).
		Where(squirrel.Eq{"date": date.Format("2006-01-02")}).
		Where(squirrel.Eq{"status": LiveItemStatuses})

	if len(slotIDs) > 0 {
		sub = sub.Where(squirrel.Or{
			squirrel.Eq{"slot_id": nil},
			squirrel.Eq{"slot_id": slotIDs},
		})
	}

	sql, args, err := sub.ToSql()
	if err != nil {
		return false, fmt.Errorf("build reservation conflict query failed: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reservation conflict failed: %w", err)
	}
	return exists, nil
}
