package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// StoreRegistry implements domain.StoreRegistry using PostgreSQL.
type StoreRegistry struct {
	pool *pgxpool.Pool
}

// NewStoreRegistry creates a new StoreRegistry backed by the given connection pool.
func NewStoreRegistry(pool *pgxpool.Pool) *StoreRegistry {
	return &StoreRegistry{pool: pool}
}

const storeCols = `domain, display_name, whitelisted, active, rate_limit_rpm,
	selectors, success_rate, last_success_at, created_at, updated_at`

func scanStore(row pgx.Row) (domain.Store, error) {
	var s domain.Store
	var selectorsJSON []byte
	err := row.Scan(
		&s.Domain, &s.DisplayName, &s.Whitelisted, &s.Active, &s.RateLimitRPM,
		&selectorsJSON, &s.SuccessRate, &s.LastSuccessAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Store{}, err
	}
	if len(selectorsJSON) > 0 {
		if err := json.Unmarshal(selectorsJSON, &s.Selectors); err != nil {
			return domain.Store{}, fmt.Errorf("postgres: unmarshal selectors for %s: %w", s.Domain, err)
		}
	}
	return s, nil
}

// Lookup retrieves a Store by its domain primary key.
func (r *StoreRegistry) Lookup(ctx context.Context, storeDomain string) (domain.Store, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+storeCols+` FROM stores WHERE domain = $1`, storeDomain)
	s, err := scanStore(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Store{}, domain.ErrNotFound
		}
		return domain.Store{}, fmt.Errorf("postgres: lookup store %s: %w", storeDomain, err)
	}
	return s, nil
}

// SelectorsFor is a convenience wrapper around Lookup for callers that only
// need the selector set.
func (r *StoreRegistry) SelectorsFor(ctx context.Context, storeDomain string) (domain.SelectorSet, error) {
	s, err := r.Lookup(ctx, storeDomain)
	if err != nil {
		return domain.SelectorSet{}, err
	}
	return s.Selectors, nil
}

// RecordSuccess stamps last_success_at for a store.
func (r *StoreRegistry) RecordSuccess(ctx context.Context, storeDomain string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stores SET last_success_at = $2, updated_at = NOW() WHERE domain = $1`,
		storeDomain, at)
	if err != nil {
		return fmt.Errorf("postgres: record success for %s: %w", storeDomain, err)
	}
	return nil
}

// UpdateSelectors overwrites a store's selector set, typically with the
// result of a Store Registry update_selectors merge (§4.1) or a healing
// merge (§4.13).
func (r *StoreRegistry) UpdateSelectors(ctx context.Context, storeDomain string, newSelectors domain.SelectorSet) error {
	payload, err := json.Marshal(newSelectors)
	if err != nil {
		return fmt.Errorf("postgres: marshal selectors for %s: %w", storeDomain, err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE stores SET selectors = $2, updated_at = NOW() WHERE domain = $1`,
		storeDomain, payload)
	if err != nil {
		return fmt.Errorf("postgres: update selectors for %s: %w", storeDomain, err)
	}
	return nil
}

// UpdateSuccessRate overwrites the rolling success-rate statistic used by the
// Store Health Calculator (§4.16).
func (r *StoreRegistry) UpdateSuccessRate(ctx context.Context, storeDomain string, rate float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stores SET success_rate = $2, updated_at = NOW() WHERE domain = $1`,
		storeDomain, rate)
	if err != nil {
		return fmt.Errorf("postgres: update success rate for %s: %w", storeDomain, err)
	}
	return nil
}

// Upsert reconciles a seed entry into the persistent store. A new domain is
// inserted with every seed field. For an existing domain only display_name,
// whitelisted and rate_limit_rpm are overwritten; active, selectors,
// success_rate and last_success_at keep their stored values, so selectors
// learned by a prior healing run survive a reseed.
func (r *StoreRegistry) Upsert(ctx context.Context, seed domain.Store) error {
	payload, err := json.Marshal(seed.Selectors)
	if err != nil {
		return fmt.Errorf("postgres: marshal seed selectors for %s: %w", seed.Domain, err)
	}

	const query = `
		INSERT INTO stores (domain, display_name, whitelisted, active, rate_limit_rpm, selectors, success_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1.0, NOW(), NOW())
		ON CONFLICT (domain) DO UPDATE SET
			display_name   = EXCLUDED.display_name,
			whitelisted    = EXCLUDED.whitelisted,
			rate_limit_rpm = EXCLUDED.rate_limit_rpm,
			updated_at     = NOW()`

	_, err = r.pool.Exec(ctx, query,
		seed.Domain, seed.DisplayName, seed.Whitelisted, seed.Active, seed.RateLimitRPM, payload)
	if err != nil {
		return fmt.Errorf("postgres: upsert store %s: %w", seed.Domain, err)
	}
	return nil
}

// List returns every known Store.
func (r *StoreRegistry) List(ctx context.Context) ([]domain.Store, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+storeCols+` FROM stores ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stores: %w", err)
	}
	defer rows.Close()

	var out []domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan store: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list stores rows: %w", err)
	}
	return out, nil
}
