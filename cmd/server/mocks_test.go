package main

import (
	"context"

	"github.com/damacus/iron-drawer/internal/services"
	"github.com/minio/madmin-go/v3"
	"github.com/stretchr/testify/mock"
)

// MockMinioClient implements MinioAdminClient for testing
type MockMinioClient struct {
	mock.Mock
}

func (m *MockMinioClient) DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.DataUsageInfo), args.Error(1)
}

func (m *MockMinioClient) GetBucketQuota(ctx context.Context, bucket string) (madmin.BucketQuota, error) {
	args := m.Called(ctx, bucket)
	return args.Get(0).(madmin.BucketQuota), args.Error(1)
}

// MockMinioFactory implements MinioClientFactory for testing
type MockMinioFactory struct {
	mock.Mock
}

func (m *MockMinioFactory) NewAdminClient(creds services.Credentials) (services.MinioAdminClient, error) {
	args := m.Called(creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.MinioAdminClient), args.Error(1)
}

func (m *MockMinioFactory) NewStore(creds services.Credentials) (*services.MinioStore, error) {
	args := m.Called(creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MinioStore), args.Error(1)
}
