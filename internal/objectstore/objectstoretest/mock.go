// Package objectstoretest provides a testify mock of objectstore.Client.
package objectstoretest

import (
	"context"
	"io"

	"github.com/damacus/iron-drawer/internal/objectstore"
	"github.com/stretchr/testify/mock"
)

// MockClient implements objectstore.Client for tests.
type MockClient struct {
	mock.Mock
}

var _ objectstore.Client = (*MockClient)(nil)

func (m *MockClient) ListObjects(ctx context.Context, bucket string, opts objectstore.ListOptions) (objectstore.ListResult, error) {
	args := m.Called(ctx, bucket, opts)
	return args.Get(0).(objectstore.ListResult), args.Error(1)
}

func (m *MockClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.Entry, error) {
	args := m.Called(ctx, bucket, key)
	var body io.ReadCloser
	if v := args.Get(0); v != nil {
		body = v.(io.ReadCloser)
	}
	return body, args.Get(1).(objectstore.Entry), args.Error(2)
}

func (m *MockClient) HeadObject(ctx context.Context, bucket, key string) (objectstore.Entry, error) {
	args := m.Called(ctx, bucket, key)
	return args.Get(0).(objectstore.Entry), args.Error(1)
}

func (m *MockClient) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts objectstore.PutOptions) (objectstore.Entry, error) {
	args := m.Called(ctx, bucket, key, body, size, opts)
	return args.Get(0).(objectstore.Entry), args.Error(1)
}

func (m *MockClient) CopyObject(ctx context.Context, bucket, src, dst string, opts objectstore.CopyOptions) error {
	args := m.Called(ctx, bucket, src, dst, opts)
	return args.Error(0)
}

func (m *MockClient) DeleteObject(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockClient) DeleteObjects(ctx context.Context, bucket string, keys []string) []objectstore.DeleteError {
	args := m.Called(ctx, bucket, keys)
	if v := args.Get(0); v != nil {
		return v.([]objectstore.DeleteError)
	}
	return nil
}
