// Package objectstore defines the S3-shaped storage interface the browser
// works against.
//
// Implementations: services.MinioStore for any S3-compatible endpoint,
// MemoryStore for tests and local demos, and Instrumented which wraps
// either with Prometheus metrics.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Entry describes one stored object.
type Entry struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	VersionID    string
	Owner        string
	ContentType  string
	// Metadata holds user metadata with lower-cased keys and no
	// x-amz-meta- prefix. Nil when the listing did not include it.
	Metadata map[string]string
}

// ListOptions controls ListObjects.
type ListOptions struct {
	Prefix string
	// Recursive lists every key under Prefix. Otherwise keys are grouped on
	// the "/" delimiter and deeper keys are returned as CommonPrefixes.
	Recursive bool
	// WithMetadata asks the backend to include user metadata per entry.
	WithMetadata bool
}

// ListResult is one full listing.
type ListResult struct {
	Objects        []Entry
	CommonPrefixes []string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type CopyOptions struct {
	// ReplaceMetadata writes Metadata on the destination instead of keeping
	// the source metadata.
	ReplaceMetadata bool
	Metadata        map[string]string
}

// DeleteError reports one key a bulk delete could not remove.
type DeleteError struct {
	Key string
	Err error
}

// Client is the storage surface used by the mapper, the metadata adapter and
// the browser controller.
type Client interface {
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (ListResult, error)
	// GetObject opens the object body. The caller must close it.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, Entry, error)
	HeadObject(ctx context.Context, bucket, key string) (Entry, error)
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (Entry, error)
	CopyObject(ctx context.Context, bucket, src, dst string, opts CopyOptions) error
	DeleteObject(ctx context.Context, bucket, key string) error
	// DeleteObjects removes keys in bulk and returns the ones that failed.
	DeleteObjects(ctx context.Context, bucket string, keys []string) []DeleteError
}

// PresignFunc issues a time-limited GET URL for key.
type PresignFunc func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
