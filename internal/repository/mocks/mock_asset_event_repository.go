package mocks

import (
	"context"

	"assetapi/internal/model"
	"assetapi/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockAssetEventRepository struct {
	mock.Mock
}

func (m *MockAssetEventRepository) Record(ctx context.Context, ev *model.AssetEvent) (*model.AssetEvent, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssetEvent), args.Error(1)
}

func (m *MockAssetEventRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AssetEvent], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AssetEvent]), args.Error(1)
}

func (m *MockAssetEventRepository) ListByFilename(ctx context.Context, filename string, pq repository.PageQuery) (*repository.PageResult[model.AssetEvent], error) {
	args := m.Called(ctx, filename, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AssetEvent]), args.Error(1)
}
