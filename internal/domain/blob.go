package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobDeleter removes data from object storage. Implemented by the same
// type as BlobReader in this codebase.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Archiver moves rows past their retention window out of Postgres and into
// cold object storage, and stashes raw HTML samples captured during selector
// regeneration so a human can inspect what the regenerator saw.
type Archiver interface {
	ArchiveScrapeLogs(ctx context.Context, before time.Time) (int64, error)
	ArchiveNotifications(ctx context.Context, before time.Time) (int64, error)
	PutHTMLSample(ctx context.Context, storeDomain string, at time.Time, html string) error
}
