package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelUnpaidBookings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 3, 1, 8, 50, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)UPDATE public.bookings SET status = 'cancelled'.*UPDATE public.booking_items bi SET status = 'cancelled'`).
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id"}).
			AddRow("b-1", "u-1").
			AddRow("b-2", "u-2"))

	cancelled, err := NewPgxRepository(mock).CancelUnpaidBookings(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []CancelledBooking{{ID: "b-1", UserID: "u-1"}, {ID: "b-2", UserID: "u-2"}}, cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireSessions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)UPDATE public.sessions SET status = 'expired', locker_state = 'locked'.*grace_until < \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewPgxRepository(mock).ExpireSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLockersUsesDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE public.lockers l SET availability_status = 'available'`).
		WithArgs("2026-03-01").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := NewPgxRepository(mock).ReleaseLockers(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
