package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"assetapi/internal/config"
	"assetapi/internal/logger"
	"assetapi/internal/model"
	"assetapi/internal/repository"
	"assetapi/internal/storage"
)

var (
	ErrFileRequired      = errors.New("image file is required")
	ErrTooLarge          = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType   = errors.New("unsupported image type")
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrNotFound          = errors.New("image not found")
	ErrEventsUnavailable = errors.New("audit trail is not configured")
)

// maxNameAttempts bounds regeneration when a generated name is already taken.
const maxNameAttempts = 5

const auditTimeout = 3 * time.Second

// UploadInput describes one incoming file.
type UploadInput struct {
	Reader       io.Reader
	OriginalName string
	ContentType  string
	// Size is the declared size; -1 when unknown. The byte count is enforced while streaming regardless.
	Size      int64
	RequestID string
}

// AssetListResult is the service-level DTO for the asset listing.
type AssetListResult struct {
	Items []model.Asset `json:"data"`
	Total int           `json:"total"`
}

// EventListResult is the service-level DTO for paginated audit events.
type EventListResult struct {
	Items []model.AssetEvent `json:"data"`
	Total int                `json:"total"`
}

// AssetService defines the use cases of the storage manager.
type AssetService interface {
	// Upload validates the input, stores it under a freshly generated name and returns the asset.
	Upload(ctx context.Context, in UploadInput) (*model.Asset, error)

	// Delete removes an asset. It reports whether something was removed; a missing asset is not an error.
	Delete(ctx context.Context, filename, requestID string) (bool, error)

	// Stat returns asset metadata or ErrNotFound.
	Stat(ctx context.Context, filename string) (*model.Asset, error)

	// Open streams an asset's bytes. The caller closes the reader.
	Open(ctx context.Context, filename string) (io.ReadCloser, *model.Asset, error)

	// List returns every stored asset, newest first.
	List(ctx context.Context) (*AssetListResult, error)

	// Events returns a page of the audit trail, optionally for one filename.
	Events(ctx context.Context, filename string, limit, offset int) (*EventListResult, error)
}

// Option customizes the asset service.
type Option func(*assetService)

// WithPublicBaseURL makes returned URLs absolute.
func WithPublicBaseURL(base string) Option {
	return func(s *assetService) { s.publicBaseURL = base }
}

// WithMaxBytes overrides the upload ceiling.
func WithMaxBytes(n int64) Option {
	return func(s *assetService) { s.maxBytes = n }
}

// WithClock replaces time.Now for name generation.
func WithClock(now func() time.Time) Option {
	return func(s *assetService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *assetService) { s.log = l }
}

type assetService struct {
	store         storage.Storage
	events        repository.AssetEventRepository
	publicBaseURL string
	maxBytes      int64
	now           func() time.Time
	log           *slog.Logger
}

// NewAssetService constructs a new AssetService. events may be nil, in which
// case no audit trail is recorded and Events returns ErrEventsUnavailable.
func NewAssetService(store storage.Storage, events repository.AssetEventRepository, opts ...Option) AssetService {
	s := &assetService{
		store:    store,
		events:   events,
		maxBytes: config.MaxUploadBytes,
		now:      time.Now,
		log:      logger.L,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *assetService) Upload(ctx context.Context, in UploadInput) (*model.Asset, error) {
	if in.Reader == nil {
		return nil, ErrFileRequired
	}
	ct := model.NormalizeContentType(in.ContentType)
	if !model.IsAllowedContentType(ct) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, in.ContentType)
	}
	if in.Size > s.maxBytes {
		return nil, ErrTooLarge
	}

	body := &limitedReader{r: in.Reader, remaining: s.maxBytes}
	size := in.Size
	if size <= 0 {
		size = -1
	}

	var (
		name string
		info storage.ObjectInfo
		err  error
	)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err = GenerateFilename(s.now(), in.OriginalName, ct)
		if err != nil {
			return nil, err
		}
		info, err = s.store.Put(ctx, name, body, storage.PutObjectOptions{
			Size:        size,
			ContentType: ct,
			Metadata:    map[string]string{"original-filename": in.OriginalName},
		})
		if !errors.Is(err, storage.ErrExists) || body.read > 0 {
			break
		}
		s.log.Debug("generated name taken, retrying", slog.String("filename", name))
	}
	if err != nil {
		// backends may not keep the reader's error in their chain
		if body.remaining < 0 {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	asset := s.toAsset(info)
	asset.OriginalName = in.OriginalName
	asset.ContentType = ct

	s.record(ctx, &model.AssetEvent{
		Filename:     name,
		Action:       model.AssetActionUpload,
		OriginalName: in.OriginalName,
		Size:         info.Size,
		ContentType:  ct,
		RequestID:    in.RequestID,
	})
	return asset, nil
}

func (s *assetService) Delete(ctx context.Context, filename, requestID string) (bool, error) {
	if err := ValidateFilename(filename); err != nil {
		return false, err
	}
	err := s.store.Delete(ctx, filename)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	case errors.Is(err, storage.ErrInvalidKey):
		return false, ErrInvalidFilename
	case err != nil:
		return false, fmt.Errorf("delete storage: %w", err)
	}

	s.record(ctx, &model.AssetEvent{
		Filename:    filename,
		Action:      model.AssetActionDelete,
		ContentType: model.ContentTypeForName(filename),
		RequestID:   requestID,
	})
	return true, nil
}

func (s *assetService) Stat(ctx context.Context, filename string) (*model.Asset, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	info, err := s.store.Stat(ctx, filename)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return s.toAsset(info), nil
}

func (s *assetService) Open(ctx context.Context, filename string) (io.ReadCloser, *model.Asset, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, nil, err
	}
	rc, info, err := s.store.Get(ctx, filename)
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	return rc, s.toAsset(info), nil
}

func (s *assetService) List(ctx context.Context) (*AssetListResult, error) {
	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list storage: %w", err)
	}
	items := make([]model.Asset, 0, len(infos))
	for _, info := range infos {
		items = append(items, *s.toAsset(info))
	}
	return &AssetListResult{Items: items, Total: len(items)}, nil
}

func (s *assetService) Events(ctx context.Context, filename string, limit, offset int) (*EventListResult, error) {
	if s.events == nil {
		return nil, ErrEventsUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	pq := repository.PageQuery{Limit: limit, Offset: offset}

	var (
		res *repository.PageResult[model.AssetEvent]
		err error
	)
	if filename != "" {
		if err := ValidateFilename(filename); err != nil {
			return nil, err
		}
		res, err = s.events.ListByFilename(ctx, filename, pq)
	} else {
		res, err = s.events.List(ctx, pq)
	}
	if err != nil {
		return nil, err
	}
	return &EventListResult{Items: res.Items, Total: res.Total}, nil
}

// record writes an audit event. Failures are logged and never fail the caller.
func (s *assetService) record(ctx context.Context, ev *model.AssetEvent) {
	if s.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if _, err := s.events.Record(ctx, ev); err != nil {
		s.log.Warn("audit record failed",
			slog.String("filename", ev.Filename),
			slog.String("action", string(ev.Action)),
			slog.Any("error", err),
		)
	}
}

func (s *assetService) toAsset(info storage.ObjectInfo) *model.Asset {
	ct := info.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = model.ContentTypeForName(info.Key)
	}
	return &model.Asset{
		Filename:    info.Key,
		ContentType: ct,
		Size:        info.Size,
		URL:         s.publicBaseURL + model.PublicPath(info.Key),
		ModifiedAt:  info.LastModified,
	}
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return ErrInvalidFilename
	default:
		return err
	}
}

// limitedReader fails with ErrTooLarge once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	// allow one byte past the limit so an exact-size upload still sees EOF
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
