package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Hub, error)
	List(ctx context.Context, filter Filter) ([]*Hub, int, error)
}

type pgxRepository struct {
	pool db.Pool
}

func NewPgxRepository(pool db.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var hubColumns = []string{"id", "name", "city", "address", "latitude", "longitude", "created_at"}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Hub, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(hubColumns...).
		From("public.hubs").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get hub query failed: %w", err)
	}

	var h Hub
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&h.ID, &h.Name, &h.City, &h.Address, &h.Latitude, &h.Longitude, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hub failed: %w", err)
	}
	return &h, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Hub, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(hubColumns, "count(*) OVER() as total_count")...).
		From("public.hubs")

	if filter.City != "" {
		query = query.Where(squirrel.ILike{"city": filter.City})
	}
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"name": kw},
			squirrel.ILike{"address": kw},
		})
	}

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.OrderBy("name ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list hubs query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list hubs failed: %w", err)
	}
	defer rows.Close()

	var hubs []*Hub
	var total int
	for rows.Next() {
		var h Hub
		if err := rows.Scan(
			&h.ID, &h.Name, &h.City, &h.Address, &h.Latitude, &h.Longitude, &h.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan hub failed: %w", err)
		}
		hubs = append(hubs, &h)
	}
	return hubs, total, nil
}
