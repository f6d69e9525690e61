package repository

import (
	"context"

	"assetapi/internal/model"
)

// AssetEventRepository persists the asset audit trail using SQL queries only.
type AssetEventRepository interface {
	// Record inserts one event. CreatedAt is filled by the database when zero.
	Record(ctx context.Context, ev *model.AssetEvent) (*model.AssetEvent, error)

	// List returns a page of events, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.AssetEvent], error)

	// ListByFilename returns the history of one asset, newest first.
	ListByFilename(ctx context.Context, filename string, pq PageQuery) (*PageResult[model.AssetEvent], error)
}
