package mocks

import (
	"context"
	"io"

	"assetapi/internal/model"
	"assetapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Upload(ctx context.Context, in service.UploadInput) (*model.Asset, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetService) Delete(ctx context.Context, filename, requestID string) (bool, error) {
	args := m.Called(ctx, filename, requestID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetService) Stat(ctx context.Context, filename string) (*model.Asset, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetService) Open(ctx context.Context, filename string) (io.ReadCloser, *model.Asset, error) {
	args := m.Called(ctx, filename)
	rc, _ := args.Get(0).(io.ReadCloser)
	asset, _ := args.Get(1).(*model.Asset)
	return rc, asset, args.Error(2)
}

func (m *MockAssetService) List(ctx context.Context) (*service.AssetListResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssetListResult), args.Error(1)
}

func (m *MockAssetService) Events(ctx context.Context, filename string, limit, offset int) (*service.EventListResult, error) {
	args := m.Called(ctx, filename, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventListResult), args.Error(1)
}
