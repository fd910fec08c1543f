package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/damacus/iron-drawer/internal/metrics"
)

// Instrumented records a counter and a latency sample for every call to the
// wrapped Client.
type Instrumented struct {
	next Client
}

// Instrument wraps c with Prometheus metrics.
func Instrument(c Client) *Instrumented {
	return &Instrumented{next: c}
}

func observe(op string, start time.Time, err error) {
	record(op, start, err != nil)
}

func record(op string, start time.Time, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	metrics.StorageOps.WithLabelValues(op, outcome).Inc()
	metrics.StorageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) ListObjects(ctx context.Context, bucket string, opts ListOptions) (ListResult, error) {
	start := time.Now()
	res, err := i.next.ListObjects(ctx, bucket, opts)
	observe("list", start, err)
	return res, err
}

func (i *Instrumented) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, Entry, error) {
	start := time.Now()
	body, entry, err := i.next.GetObject(ctx, bucket, key)
	observe("get", start, err)
	return body, entry, err
}

func (i *Instrumented) HeadObject(ctx context.Context, bucket, key string) (Entry, error) {
	start := time.Now()
	entry, err := i.next.HeadObject(ctx, bucket, key)
	observe("head", start, err)
	return entry, err
}

func (i *Instrumented) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (Entry, error) {
	start := time.Now()
	entry, err := i.next.PutObject(ctx, bucket, key, body, size, opts)
	observe("put", start, err)
	return entry, err
}

func (i *Instrumented) CopyObject(ctx context.Context, bucket, src, dst string, opts CopyOptions) error {
	start := time.Now()
	err := i.next.CopyObject(ctx, bucket, src, dst, opts)
	observe("copy", start, err)
	return err
}

func (i *Instrumented) DeleteObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := i.next.DeleteObject(ctx, bucket, key)
	observe("delete", start, err)
	return err
}

func (i *Instrumented) DeleteObjects(ctx context.Context, bucket string, keys []string) []DeleteError {
	start := time.Now()
	failed := i.next.DeleteObjects(ctx, bucket, keys)
	record("delete_many", start, len(failed) > 0)
	return failed
}
