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

// NotificationStore implements domain.NotificationStore using PostgreSQL.
// Rows are append-only with a 90-day rolling retention window enforced by
// the cleanup job rather than by the database (§3, §4.14).
type NotificationStore struct {
	pool *pgxpool.Pool
}

// NewNotificationStore creates a new NotificationStore backed by the given connection pool.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

const notificationCols = `id, alert_id, product_id, channel, status, payload, sent_at, error_message`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	var status string
	var payloadJSON []byte
	err := row.Scan(&n.ID, &n.AlertID, &n.ProductID, &n.Channel, &status, &payloadJSON, &n.SentAt, &n.ErrorMessage)
	if err != nil {
		return domain.Notification{}, err
	}
	n.Status = domain.NotificationStatus(status)
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
			return domain.Notification{}, fmt.Errorf("postgres: unmarshal notification payload %s: %w", n.ID, err)
		}
	}
	return n, nil
}

// Create inserts a new Notification row.
func (s *NotificationStore) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("postgres: marshal notification payload: %w", err)
	}

	const query = `
		INSERT INTO notifications (id, alert_id, product_id, channel, status, payload, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + notificationCols

	row := s.pool.QueryRow(ctx, query,
		n.ID, n.AlertID, n.ProductID, n.Channel, string(n.Status), payload, n.SentAt, n.ErrorMessage)
	out, err := scanNotification(row)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("postgres: create notification for %s: %w", n.ProductID, err)
	}
	return out, nil
}

// Update writes back a Notification's delivery bookkeeping (status, sent_at,
// error_message) after a send attempt.
func (s *NotificationStore) Update(ctx context.Context, n domain.Notification) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET status = $2, sent_at = $3, error_message = $4 WHERE id = $1`,
		n.ID, string(n.Status), n.SentAt, n.ErrorMessage)
	if err != nil {
		return fmt.Errorf("postgres: update notification %s: %w", n.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LastSent returns the most recent SENT notification for a product (and
// optionally a specific alert) since a given time, used by the duplicate
// suppression gate (§4.12).
func (s *NotificationStore) LastSent(ctx context.Context, productID string, alertID *string, since time.Time) (domain.Notification, error) {
	var row pgx.Row
	if alertID != nil {
		row = s.pool.QueryRow(ctx,
			`SELECT `+notificationCols+` FROM notifications
			 WHERE product_id = $1 AND alert_id = $2 AND status = 'SENT' AND sent_at >= $3
			 ORDER BY sent_at DESC LIMIT 1`,
			productID, *alertID, since)
	} else {
		row = s.pool.QueryRow(ctx,
			`SELECT `+notificationCols+` FROM notifications
			 WHERE product_id = $1 AND alert_id IS NULL AND status = 'SENT' AND sent_at >= $2
			 ORDER BY sent_at DESC LIMIT 1`,
			productID, since)
	}

	n, err := scanNotification(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("postgres: last sent notification for %s: %w", productID, err)
	}
	return n, nil
}

// ListOlderThan returns all notification rows older than before, for
// archival prior to deletion.
func (s *NotificationStore) ListOlderThan(ctx context.Context, before time.Time) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications older than %s: %w", before, err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list notifications rows: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes notification rows older than the retention cutoff.
func (s *NotificationStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete notifications older than %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
