package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a new ProductStore backed by the given connection pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productCols = `id, url, store_domain, name, brand, upc, image_url,
	current_price, original_price, currency, in_stock, status,
	consecutive_failures, last_checked_at, canonical_id, deleted_at, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var status string
	err := row.Scan(
		&p.ID, &p.URL, &p.StoreDomain, &p.Name, &p.Brand, &p.UPC, &p.ImageURL,
		&p.CurrentPrice, &p.OriginalPrice, &p.Currency, &p.InStock, &status,
		&p.ConsecutiveFailures, &p.LastCheckedAt, &p.CanonicalID, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.Status = domain.ProductStatus(status)
	return p, nil
}

// Create inserts a new Product row.
func (s *ProductStore) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	const query = `
		INSERT INTO products (
			id, url, store_domain, name, brand, upc, image_url,
			current_price, original_price, currency, in_stock, status,
			consecutive_failures, last_checked_at, canonical_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, NOW(), NOW()
		)
		RETURNING ` + productCols

	row := s.pool.QueryRow(ctx, query,
		p.ID, p.URL, p.StoreDomain, p.Name, p.Brand, p.UPC, p.ImageURL,
		p.CurrentPrice, p.OriginalPrice, p.Currency, p.InStock, string(p.Status),
		p.ConsecutiveFailures, p.LastCheckedAt, p.CanonicalID)

	out, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, fmt.Errorf("postgres: create product %s: %w", p.URL, err)
	}
	return out, nil
}

// GetByID retrieves a non-deleted Product by its primary key.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id)
	p, err := scanProduct(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: get product %s: %w", id, err)
	}
	return p, nil
}

// GetByURL retrieves a non-deleted Product by its tracked URL.
func (s *ProductStore) GetByURL(ctx context.Context, url string) (domain.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE url = $1 AND deleted_at IS NULL`, url)
	p, err := scanProduct(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: get product by url %s: %w", url, err)
	}
	return p, nil
}

// Update writes back the mutable fields of a Product after a scrape or
// status transition.
func (s *ProductStore) Update(ctx context.Context, p domain.Product) error {
	const query = `
		UPDATE products SET
			name = $2, brand = $3, upc = $4, image_url = $5,
			current_price = $6, original_price = $7, currency = $8, in_stock = $9,
			status = $10, consecutive_failures = $11, last_checked_at = $12,
			canonical_id = $13, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.Brand, p.UPC, p.ImageURL,
		p.CurrentPrice, p.OriginalPrice, p.Currency, p.InStock,
		string(p.Status), p.ConsecutiveFailures, p.LastCheckedAt, p.CanonicalID)
	if err != nil {
		return fmt.Errorf("postgres: update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStore returns non-deleted products for a given store, newest first.
func (s *ProductStore) ListByStore(ctx context.Context, storeDomain string, opts domain.ListOpts) ([]domain.Product, error) {
	query := `SELECT ` + productCols + ` FROM products WHERE store_domain = $1 AND deleted_at IS NULL`
	args := []any{storeDomain}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list products by store %s: %w", storeDomain, err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list products by store rows: %w", err)
	}
	return out, nil
}

// ListDue returns non-deleted, active products whose effective schedule's
// next_run_at has passed, or which have never been checked (§4.9, §4.10).
func (s *ProductStore) ListDue(ctx context.Context, now time.Time) ([]domain.Product, error) {
	const query = `
		SELECT ` + productCols + ` FROM products p
		WHERE p.deleted_at IS NULL AND p.status != 'ARCHIVED'
		AND (
			EXISTS (
				SELECT 1 FROM schedules sc
				WHERE sc.deleted_at IS NULL AND sc.active
				AND (sc.product_id = p.id OR sc.store_domain = p.store_domain)
				AND sc.next_run_at <= $1
			)
			OR p.last_checked_at IS NULL
		)
		ORDER BY p.last_checked_at NULLS FIRST`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list due products rows: %w", err)
	}
	return out, nil
}

// SoftDelete marks a Product as deleted without removing its history.
func (s *ProductStore) SoftDelete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: soft delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
