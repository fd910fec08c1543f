package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/damacus/iron-drawer/internal/objectstore"
	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Credentials represents the MinIO connection details
type Credentials struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	// UseSSL overrides the endpoint-based guess when set.
	UseSSL *bool
}

// MinioAdminClient is an interface for the madmin methods we use
type MinioAdminClient interface {
	DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error)
	GetBucketQuota(ctx context.Context, bucket string) (madmin.BucketQuota, error)
}

// MinioClientFactory creates clients for the configured endpoint
type MinioClientFactory interface {
	NewAdminClient(creds Credentials) (MinioAdminClient, error)
	NewStore(creds Credentials) (*MinioStore, error)
}

// RealMinioFactory is the production implementation
type RealMinioFactory struct{}

// shouldUseSSL determines if SSL should be used based on the endpoint.
// Returns false for localhost, 127.0.0.1, and docker service names.
func shouldUseSSL(endpoint string) bool {
	// Local development endpoints
	if endpoint == "localhost:9000" || endpoint == "127.0.0.1:9000" {
		return false
	}
	// Docker service names (minio:9000, minio1:9000, minio2:9000, etc.)
	// Only match simple hostnames without dots (not domain names like minio.example.com)
	if strings.HasPrefix(endpoint, "minio") && !strings.Contains(strings.Split(endpoint, ":")[0], ".") && strings.Contains(endpoint, ":9000") {
		return false
	}
	return true
}

func secure(creds Credentials) bool {
	if creds.UseSSL != nil {
		return *creds.UseSSL
	}
	return shouldUseSSL(creds.Endpoint)
}

func (f *RealMinioFactory) NewAdminClient(creds Credentials) (MinioAdminClient, error) {
	return madmin.NewWithOptions(creds.Endpoint, &madmin.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: secure(creds),
	})
}

func (f *RealMinioFactory) NewStore(creds Credentials) (*MinioStore, error) {
	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: secure(creds),
		Region: creds.Region,
	})
	if err != nil {
		return nil, mapError(err, "failed to create minio client")
	}
	return &MinioStore{client: client}, nil
}

// MinioStore implements objectstore.Client on top of minio-go.
type MinioStore struct {
	client *minio.Client
}

var _ objectstore.Client = (*MinioStore)(nil)

// Ping checks that bucket exists and the credentials can reach it.
func (s *MinioStore) Ping(ctx context.Context, bucket string) error {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return mapError(minio.ErrorResponse{Code: "NoSuchBucket", Message: "bucket " + bucket + " does not exist"}, "ping failed")
	}
	return nil
}

func (s *MinioStore) ListObjects(ctx context.Context, bucket string, opts objectstore.ListOptions) (objectstore.ListResult, error) {
	var result objectstore.ListResult
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:       opts.Prefix,
		Recursive:    opts.Recursive,
		WithMetadata: opts.WithMetadata,
	}) {
		if obj.Err != nil {
			return objectstore.ListResult{}, mapError(obj.Err, "failed to list objects")
		}
		// Common prefixes arrive as bare keys ending in the delimiter; the
		// prefix's own marker is a real object.
		if !opts.Recursive && strings.HasSuffix(obj.Key, "/") && obj.Key != opts.Prefix {
			result.CommonPrefixes = append(result.CommonPrefixes, obj.Key)
			continue
		}
		entry := toEntry(obj)
		if !opts.WithMetadata {
			entry.Metadata = nil
		}
		result.Objects = append(result.Objects, entry)
	}
	return result, nil
}

func (s *MinioStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.Entry, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectstore.Entry{}, mapError(err, "failed to get object")
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, objectstore.Entry{}, mapError(err, "failed to get object")
	}
	return obj, toEntry(info), nil
}

func (s *MinioStore) HeadObject(ctx context.Context, bucket, key string) (objectstore.Entry, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return objectstore.Entry{}, mapError(err, "failed to stat object")
	}
	return toEntry(info), nil
}

func (s *MinioStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts objectstore.PutOptions) (objectstore.Entry, error) {
	info, err := s.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return objectstore.Entry{}, mapError(err, "failed to upload object")
	}
	return objectstore.Entry{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		VersionID:    info.VersionID,
		ContentType:  opts.ContentType,
		Metadata:     normalize(opts.Metadata),
	}, nil
}

func (s *MinioStore) CopyObject(ctx context.Context, bucket, src, dst string, opts objectstore.CopyOptions) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          bucket,
			Object:          dst,
			UserMetadata:    opts.Metadata,
			ReplaceMetadata: opts.ReplaceMetadata,
		},
		minio.CopySrcOptions{Bucket: bucket, Object: src},
	)
	if err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

func (s *MinioStore) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

func (s *MinioStore) DeleteObjects(ctx context.Context, bucket string, keys []string) []objectstore.DeleteError {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var failed []objectstore.DeleteError
	for rerr := range s.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed = append(failed, objectstore.DeleteError{
			Key: rerr.ObjectName,
			Err: mapError(rerr.Err, "failed to delete object"),
		})
	}
	return failed
}

// Presign implements objectstore.PresignFunc.
func (s *MinioStore) Presign(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", mapError(err, "failed to presign object")
	}
	return u.String(), nil
}

func toEntry(info minio.ObjectInfo) objectstore.Entry {
	owner := info.Owner.DisplayName
	if owner == "" {
		owner = info.Owner.ID
	}
	return objectstore.Entry{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		VersionID:    info.VersionID,
		Owner:        owner,
		ContentType:  info.ContentType,
		Metadata:     normalize(info.UserMetadata),
	}
}

func normalize(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[objectstore.NormalizeMetadataKey(k)] = v
	}
	return out
}
