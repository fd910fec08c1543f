// Package metadata reads and rewrites the user metadata Iron Drawer keeps on
// every file: a stable id and the original upload date.
package metadata

import (
	"context"
	"time"

	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/objectstore"
)

const (
	KeyID         = "id"
	KeyUploadDate = "upload-date"
)

// TimeFormat is ISO-8601 in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Metadata is an object's user metadata with normalized keys.
type Metadata map[string]string

func (m Metadata) ID() string {
	return m[KeyID]
}

// UploadDate parses the upload-date value. ok is false when it is missing
// or malformed.
func (m Metadata) UploadDate() (t time.Time, ok bool) {
	raw, present := m[KeyUploadDate]
	if !present || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FormatTime renders t the way upload-date values are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Fresh returns metadata for a new upload.
func Fresh(id string, uploaded time.Time) Metadata {
	return Metadata{KeyID: id, KeyUploadDate: FormatTime(uploaded)}
}

// Adapter reads and writes metadata for objects in one bucket.
type Adapter struct {
	client objectstore.Client
	bucket string
	log    *logger.Logger
}

func NewAdapter(client objectstore.Client, bucket string, log *logger.Logger) *Adapter {
	return &Adapter{client: client, bucket: bucket, log: log.Component("metadata")}
}

// Read fetches the metadata of key without its body.
func (a *Adapter) Read(ctx context.Context, key string) (Metadata, error) {
	entry, err := a.client.HeadObject(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	md := make(Metadata, len(entry.Metadata))
	for k, v := range entry.Metadata {
		md[objectstore.NormalizeMetadataKey(k)] = v
	}
	return md, nil
}

// Write replaces the metadata of key by copying the object onto itself, then
// reads it back and checks every written value. It reports false on any
// failure, which is logged.
func (a *Adapter) Write(ctx context.Context, key string, md Metadata) bool {
	err := a.client.CopyObject(ctx, a.bucket, key, key, objectstore.CopyOptions{
		ReplaceMetadata: true,
		Metadata:        md,
	})
	if err != nil {
		a.log.ErrorWith("metadata copy failed", err, map[string]interface{}{"key": key})
		return false
	}

	stored, err := a.Read(ctx, key)
	if err != nil {
		a.log.ErrorWith("metadata verify read failed", err, map[string]interface{}{"key": key})
		return false
	}
	for k, want := range md {
		if got := stored[objectstore.NormalizeMetadataKey(k)]; got != want {
			a.log.With().Str("key", key).Str("field", k).Logger().
				Warnf("metadata mismatch after write: want %q, got %q", want, got)
			return false
		}
	}
	return true
}
