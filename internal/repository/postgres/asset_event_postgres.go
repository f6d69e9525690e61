package postgres

import (
	"context"
	"database/sql"
	"time"

	"assetapi/internal/model"
	"assetapi/internal/repository"
)

// AssetEventPostgres is a PostgreSQL implementation of repository.AssetEventRepository.
type AssetEventPostgres struct {
	db *sql.DB
}

// NewAssetEventPostgres creates a new AssetEventPostgres repository.
func NewAssetEventPostgres(db *sql.DB) *AssetEventPostgres {
	return &AssetEventPostgres{db: db}
}

var _ repository.AssetEventRepository = (*AssetEventPostgres)(nil)

const eventColumns = `id, filename, action, original_name, size, content_type, request_id, created_at`

// Record inserts an event row and returns the stored record.
func (r *AssetEventPostgres) Record(ctx context.Context, ev *model.AssetEvent) (*model.AssetEvent, error) {
	const q = `
		INSERT INTO asset_events (id, filename, action, original_name, size, content_type, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		RETURNING ` + eventColumns

	var createdAt any
	if !ev.CreatedAt.IsZero() {
		createdAt = ev.CreatedAt
	}
	row := r.db.QueryRowContext(ctx, q,
		ev.ID,
		ev.Filename,
		string(ev.Action),
		ev.OriginalName,
		ev.Size,
		ev.ContentType,
		ev.RequestID,
		createdAt,
	)
	out, err := scanEvent(row)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns events using LIMIT/OFFSET pagination and a total count.
func (r *AssetEventPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AssetEvent], error) {
	const qCount = `SELECT COUNT(*) FROM asset_events`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + eventColumns + `
		FROM asset_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows, total)
}

// ListByFilename returns the events recorded for one filename.
func (r *AssetEventPostgres) ListByFilename(ctx context.Context, filename string, pq repository.PageQuery) (*repository.PageResult[model.AssetEvent], error) {
	const qCount = `SELECT COUNT(*) FROM asset_events WHERE filename = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, filename).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + eventColumns + `
		FROM asset_events
		WHERE filename = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, filename, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows, total)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*model.AssetEvent, error) {
	var (
		ev     model.AssetEvent
		action string
		at     time.Time
	)
	if err := s.Scan(
		&ev.ID,
		&ev.Filename,
		&action,
		&ev.OriginalName,
		&ev.Size,
		&ev.ContentType,
		&ev.RequestID,
		&at,
	); err != nil {
		return nil, err
	}
	ev.Action = model.AssetAction(action)
	ev.CreatedAt = at
	return &ev, nil
}

func collectEvents(rows *sql.Rows, total int) (*repository.PageResult[model.AssetEvent], error) {
	defer rows.Close()

	items := make([]model.AssetEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.AssetEvent]{
		Items: items,
		Total: total,
	}, nil
}
