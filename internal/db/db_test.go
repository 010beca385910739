package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/locker", migrateURL("postgres://u:p@localhost:5432/locker"))
	assert.Equal(t, "pgx5://localhost/locker", migrateURL("postgresql://localhost/locker"))
	assert.Equal(t, "pgx5://localhost/locker", migrateURL("pgx5://localhost/locker"))
}

func TestLockKeysSortsAndDedupes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b := ReservationKey("b", date)
	a := ReservationKey("a", date)

	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(a).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(b).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, LockKeys(context.Background(), mock, []string{b, a, b}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE bookings SET status = 'confirmed'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	invalidID := fmt.Errorf("lock booking failed: %w", &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	assert.True(t, IsDataException(invalidID))
	assert.False(t, IsDataException(unique))
	assert.False(t, IsDataException(errors.New("connection reset")))

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(invalidID))
}
