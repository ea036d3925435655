package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
// Rows are append-only: writers never update or delete existing entries.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given connection pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

const priceHistoryCols = `id, product_id, price, original_price, in_stock, scraped_at`

func scanPriceHistory(row pgx.Row) (domain.PriceHistory, error) {
	var h domain.PriceHistory
	err := row.Scan(&h.ID, &h.ProductID, &h.Price, &h.OriginalPrice, &h.InStock, &h.ScrapedAt)
	if err != nil {
		return domain.PriceHistory{}, err
	}
	return h, nil
}

// Append inserts a new PriceHistory row.
func (s *PriceHistoryStore) Append(ctx context.Context, h domain.PriceHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (product_id, price, original_price, in_stock, scraped_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		h.ProductID, h.Price, h.OriginalPrice, h.InStock, h.ScrapedAt)
	if err != nil {
		return fmt.Errorf("postgres: append price history for %s: %w", h.ProductID, err)
	}
	return nil
}

// ListByProduct returns a product's price history, newest first.
func (s *PriceHistoryStore) ListByProduct(ctx context.Context, productID string, opts domain.ListOpts) ([]domain.PriceHistory, error) {
	query := `SELECT ` + priceHistoryCols + ` FROM price_history WHERE product_id = $1`
	args := []any{productID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND scraped_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND scraped_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY scraped_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.PriceHistory
	for rows.Next() {
		h, err := scanPriceHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan price history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list price history rows: %w", err)
	}
	return out, nil
}

// LatestForProduct returns the most recent price history row for a product.
func (s *PriceHistoryStore) LatestForProduct(ctx context.Context, productID string) (domain.PriceHistory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+priceHistoryCols+` FROM price_history WHERE product_id = $1 ORDER BY scraped_at DESC LIMIT 1`,
		productID)
	h, err := scanPriceHistory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PriceHistory{}, domain.ErrNotFound
		}
		return domain.PriceHistory{}, fmt.Errorf("postgres: latest price history for %s: %w", productID, err)
	}
	return h, nil
}
