package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertCols = `id, product_id, type, target_value, min_change_threshold, active, triggered, triggered_at, deleted_at`

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	var typ string
	err := row.Scan(&a.ID, &a.ProductID, &typ, &a.TargetValue, &a.MinChangeThreshold, &a.Active, &a.Triggered, &a.TriggeredAt, &a.DeletedAt)
	if err != nil {
		return domain.Alert{}, err
	}
	a.Type = domain.AlertType(typ)
	return a, nil
}

// Create inserts a new Alert row.
func (s *AlertStore) Create(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	const query = `
		INSERT INTO alerts (id, product_id, type, target_value, min_change_threshold, active, triggered)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + alertCols

	row := s.pool.QueryRow(ctx, query,
		a.ID, a.ProductID, string(a.Type), a.TargetValue, a.MinChangeThreshold, a.Active, a.Triggered)
	out, err := scanAlert(row)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("postgres: create alert for %s: %w", a.ProductID, err)
	}
	return out, nil
}

// GetByID retrieves a non-deleted Alert by its primary key.
func (s *AlertStore) GetByID(ctx context.Context, id string) (domain.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1 AND deleted_at IS NULL`, id)
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Alert{}, domain.ErrNotFound
		}
		return domain.Alert{}, fmt.Errorf("postgres: get alert %s: %w", id, err)
	}
	return a, nil
}

// ListByProduct returns non-deleted alerts attached to a product.
func (s *AlertStore) ListByProduct(ctx context.Context, productID string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE product_id = $1 AND deleted_at IS NULL`, productID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts rows: %w", err)
	}
	return out, nil
}

// Update writes back an Alert's mutable fields, typically triggered/triggered_at
// after the Alert Evaluator fires (§4.11).
func (s *AlertStore) Update(ctx context.Context, a domain.Alert) error {
	const query = `
		UPDATE alerts SET
			target_value = $2, min_change_threshold = $3, active = $4,
			triggered = $5, triggered_at = $6
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, a.ID, a.TargetValue, a.MinChangeThreshold, a.Active, a.Triggered, a.TriggeredAt)
	if err != nil {
		return fmt.Errorf("postgres: update alert %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete marks an Alert as deleted.
func (s *AlertStore) SoftDelete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: soft delete alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
