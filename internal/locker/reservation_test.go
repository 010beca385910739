package locker

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationConflictSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM public.booking_items WHERE locker_id = \$1 AND date = \$2 AND status IN .* slot_id IS NULL OR slot_id IN`).
		WithArgs("locker-a", "2026-03-01", "pending", "confirmed", 9, 10).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	conflict, err := ReservationConflict(context.Background(), mock, "locker-a", date, []int{9, 10})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationConflictFullDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM public.booking_items WHERE locker_id = \$1 AND date = \$2 AND status IN`).
		WithArgs("locker-a", "2026-03-01", "pending", "confirmed").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	conflict, err := ReservationConflict(context.Background(), mock, "locker-a", date, nil)
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
