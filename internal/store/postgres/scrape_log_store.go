package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ScrapeLogStore implements domain.ScrapeLogStore using PostgreSQL. Rows are
// append-only with a 30-day rolling retention window enforced by the cleanup
// job rather than by the database (§3, §4.14).
type ScrapeLogStore struct {
	pool *pgxpool.Pool
}

// NewScrapeLogStore creates a new ScrapeLogStore backed by the given connection pool.
func NewScrapeLogStore(pool *pgxpool.Pool) *ScrapeLogStore {
	return &ScrapeLogStore{pool: pool}
}

const scrapeLogCols = `id, product_id, success, strategy_used, error_type, error_message, response_time_ms, scraped_at`

func scanScrapeLog(row pgx.Row) (domain.ScrapeLog, error) {
	var l domain.ScrapeLog
	err := row.Scan(&l.ID, &l.ProductID, &l.Success, &l.StrategyUsed, &l.ErrorType, &l.ErrorMessage, &l.ResponseTimeMs, &l.ScrapedAt)
	if err != nil {
		return domain.ScrapeLog{}, err
	}
	return l, nil
}

// Append inserts a new ScrapeLog row, assigning an id if the caller left it blank.
func (s *ScrapeLogStore) Append(ctx context.Context, l domain.ScrapeLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_logs (id, product_id, success, strategy_used, error_type, error_message, response_time_ms, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.ProductID, l.Success, l.StrategyUsed, l.ErrorType, l.ErrorMessage, l.ResponseTimeMs, l.ScrapedAt)
	if err != nil {
		return fmt.Errorf("postgres: append scrape log for %s: %w", l.ProductID, err)
	}
	return nil
}

// LatestForProduct returns the most recent scrape log for a product.
func (s *ScrapeLogStore) LatestForProduct(ctx context.Context, productID string) (domain.ScrapeLog, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+scrapeLogCols+` FROM scrape_logs WHERE product_id = $1 ORDER BY scraped_at DESC LIMIT 1`,
		productID)
	l, err := scanScrapeLog(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ScrapeLog{}, domain.ErrNotFound
		}
		return domain.ScrapeLog{}, fmt.Errorf("postgres: latest scrape log for %s: %w", productID, err)
	}
	return l, nil
}

// RecentForProduct returns the most recent N scrape logs for a product.
func (s *ScrapeLogStore) RecentForProduct(ctx context.Context, productID string, limit int) ([]domain.ScrapeLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scrapeLogCols+` FROM scrape_logs WHERE product_id = $1 ORDER BY scraped_at DESC LIMIT $2`,
		productID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent scrape logs for %s: %w", productID, err)
	}
	defer rows.Close()

	var out []domain.ScrapeLog
	for rows.Next() {
		l, err := scanScrapeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scrape log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recent scrape logs rows: %w", err)
	}
	return out, nil
}

// CountSince returns the total and successful scrape counts for a store
// since a given time, used by the Store Health Calculator (§4.16).
func (s *ScrapeLogStore) CountSince(ctx context.Context, storeDomain string, since time.Time) (total, successful int64, err error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE sl.success)
		FROM scrape_logs sl
		JOIN products p ON p.id = sl.product_id
		WHERE p.store_domain = $1 AND sl.scraped_at >= $2`,
		storeDomain, since)
	if err := row.Scan(&total, &successful); err != nil {
		return 0, 0, fmt.Errorf("postgres: count scrape logs since for %s: %w", storeDomain, err)
	}
	return total, successful, nil
}

// ListOlderThan returns all scrape log rows older than before, for archival
// prior to deletion.
func (s *ScrapeLogStore) ListOlderThan(ctx context.Context, before time.Time) ([]domain.ScrapeLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scrapeLogCols+` FROM scrape_logs WHERE scraped_at < $1 ORDER BY scraped_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scrape logs older than %s: %w", before, err)
	}
	defer rows.Close()

	var out []domain.ScrapeLog
	for rows.Next() {
		l, err := scanScrapeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scrape log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scrape logs rows: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes scrape log rows older than the retention cutoff.
func (s *ScrapeLogStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scrape_logs WHERE scraped_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete scrape logs older than %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
