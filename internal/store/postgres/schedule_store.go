package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ScheduleStore implements domain.ScheduleStore using PostgreSQL.
type ScheduleStore struct {
	pool *pgxpool.Pool
}

// NewScheduleStore creates a new ScheduleStore backed by the given connection pool.
func NewScheduleStore(pool *pgxpool.Pool) *ScheduleStore {
	return &ScheduleStore{pool: pool}
}

const scheduleCols = `id, product_id, store_domain, cron_expression, active, last_run_at, next_run_at, deleted_at`

func scanSchedule(row pgx.Row) (domain.Schedule, error) {
	var sc domain.Schedule
	err := row.Scan(&sc.ID, &sc.ProductID, &sc.StoreDomain, &sc.CronExpression, &sc.Active, &sc.LastRunAt, &sc.NextRunAt, &sc.DeletedAt)
	if err != nil {
		return domain.Schedule{}, err
	}
	return sc, nil
}

// Create inserts a new Schedule row.
func (s *ScheduleStore) Create(ctx context.Context, sc domain.Schedule) (domain.Schedule, error) {
	const query = `
		INSERT INTO schedules (id, product_id, store_domain, cron_expression, active, last_run_at, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + scheduleCols

	row := s.pool.QueryRow(ctx, query, sc.ID, sc.ProductID, sc.StoreDomain, sc.CronExpression, sc.Active, sc.LastRunAt, sc.NextRunAt)
	out, err := scanSchedule(row)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("postgres: create schedule %s: %w", sc.ID, err)
	}
	return out, nil
}

// GetByID retrieves a non-deleted Schedule by its primary key.
func (s *ScheduleStore) GetByID(ctx context.Context, id string) (domain.Schedule, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id = $1 AND deleted_at IS NULL`, id)
	sc, err := scanSchedule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Schedule{}, domain.ErrNotFound
		}
		return domain.Schedule{}, fmt.Errorf("postgres: get schedule %s: %w", id, err)
	}
	return sc, nil
}

// Update writes back a Schedule's mutable fields.
func (s *ScheduleStore) Update(ctx context.Context, sc domain.Schedule) error {
	const query = `
		UPDATE schedules SET
			cron_expression = $2, active = $3, last_run_at = $4, next_run_at = $5
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, sc.ID, sc.CronExpression, sc.Active, sc.LastRunAt, sc.NextRunAt)
	if err != nil {
		return fmt.Errorf("postgres: update schedule %s: %w", sc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete marks a Schedule as deleted.
func (s *ScheduleStore) SoftDelete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: soft delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDue returns active, non-deleted schedules whose next_run_at has passed.
func (s *ScheduleStore) ListDue(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE deleted_at IS NULL AND active AND next_run_at <= $1
		 ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due schedule: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list due schedules rows: %w", err)
	}
	return out, nil
}

// EffectiveForProduct resolves the schedule that governs a product: a
// product-level schedule takes priority over a store-level one. The bool
// return is false when neither exists and the system default applies
// (§4.10).
func (s *ScheduleStore) EffectiveForProduct(ctx context.Context, productID, storeDomain string) (domain.Schedule, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE deleted_at IS NULL AND active AND product_id = $1
		 LIMIT 1`, productID)
	sc, err := scanSchedule(row)
	if err == nil {
		return sc, true, nil
	}
	if err != pgx.ErrNoRows {
		return domain.Schedule{}, false, fmt.Errorf("postgres: effective schedule (product) for %s: %w", productID, err)
	}

	row = s.pool.QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE deleted_at IS NULL AND active AND store_domain = $1
		 LIMIT 1`, storeDomain)
	sc, err = scanSchedule(row)
	if err == nil {
		return sc, true, nil
	}
	if err != pgx.ErrNoRows {
		return domain.Schedule{}, false, fmt.Errorf("postgres: effective schedule (store) for %s: %w", storeDomain, err)
	}

	return domain.Schedule{}, false, nil
}
