package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// rows past their retention window, serializing them to JSONL, and uploading
// the result to S3-compatible storage.
//
// Deletion from the primary store happens only after the upload succeeds, so
// a failed upload never loses rows.
type ArchiveImpl struct {
	writer domain.BlobWriter
	logs   domain.ScrapeLogStore
	notifs domain.NotificationStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, logs domain.ScrapeLogStore, notifs domain.NotificationStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		logs:   logs,
		notifs: notifs,
	}
}

// ArchiveScrapeLogs uploads all scrape logs older than before to
// archive/scrape_logs/YYYY-MM.jsonl, then deletes them from Postgres. The
// count of archived rows is returned.
func (a *ArchiveImpl) ArchiveScrapeLogs(ctx context.Context, before time.Time) (int64, error) {
	logs, err := a.logs.ListOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive scrape logs query: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(logs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive scrape logs marshal: %w", err)
	}

	path := archivePath("scrape_logs", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive scrape logs upload: %w", err)
	}

	deleted, err := a.logs.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive scrape logs cleanup: %w", err)
	}
	return deleted, nil
}

// ArchiveNotifications uploads all notifications older than before to
// archive/notifications/YYYY-MM.jsonl, then deletes them from Postgres.
func (a *ArchiveImpl) ArchiveNotifications(ctx context.Context, before time.Time) (int64, error) {
	notifs, err := a.notifs.ListOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications query: %w", err)
	}
	if len(notifs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(notifs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications marshal: %w", err)
	}

	path := archivePath("notifications", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications upload: %w", err)
	}

	deleted, err := a.notifs.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications cleanup: %w", err)
	}
	return deleted, nil
}

// PutHTMLSample stashes a raw HTML snapshot captured during selector
// regeneration at archive/html_samples/<store>/<timestamp>.html so a human
// can inspect what the regenerator saw.
func (a *ArchiveImpl) PutHTMLSample(ctx context.Context, storeDomain string, at time.Time, html string) error {
	path := fmt.Sprintf("archive/html_samples/%s/%s.html", storeDomain, at.UTC().Format("20060102T150405Z"))
	if err := a.writer.Put(ctx, path, bytes.NewReader([]byte(html)), "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("s3blob: put html sample %s: %w", path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/scrape_logs/2026-07.jsonl
//	archive/notifications/2026-07.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
