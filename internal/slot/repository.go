package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
)

type Repository interface {
	List(ctx context.Context) ([]Slot, error)
	// Seed inserts slots whose id is not present yet.
	Seed(ctx context.Context, slots []Slot) (int64, error)
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) List(ctx context.Context) ([]Slot, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "label", "start_time::text", "end_time::text").
		From("public.slots").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots failed: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var (
			s          Slot
			start, end string
		)
		if err := rows.Scan(&s.ID, &s.Label, &start, &end); err != nil {
			return nil, fmt.Errorf("scan slot failed: %w", err)
		}
		if s.Start, err = ParseClock(start); err != nil {
			return nil, err
		}
		if s.End, err = ParseClock(end); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots failed: %w", err)
	}
	return slots, nil
}

func (r *pgxRepository) Seed(ctx context.Context, slots []Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	insert := psql.Insert("public.slots").Columns("id", "label", "start_time", "end_time")
	for _, s := range slots {
		insert = insert.Values(s.ID, s.Label, clockLiteral(s.Start), clockLiteral(s.End))
	}
	query, args, err := insert.Suffix("ON CONFLICT (id) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build seed slots query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("seed slots failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func clockLiteral(d time.Duration) string {
	return FormatClock(d) + ":00"
}
