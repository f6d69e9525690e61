package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Package storage holds the asset byte stores: a local serving directory and an
// S3-compatible object store. Keys are flat filenames; nested keys are refused.

var (
	// ErrNotFound is returned when no object exists under a key.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("object already exists")
	// ErrInvalidKey guards against keys that could escape the flat namespace.
	ErrInvalidKey = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the asset byte store. Implementations are safe for concurrent use.
// An object becomes visible under its key only once Put has fully completed.
type Storage interface {
	// Put stores r under key. It fails with ErrExists rather than replacing an existing
	// object, and reports an already-taken key before reading from r.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object for streaming alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object info without opening the content.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object. It returns ErrNotFound when there was nothing to remove.
	Delete(ctx context.Context, key string) error
	// List returns every stored object.
	List(ctx context.Context) ([]ObjectInfo, error)
	// PingContext checks that the backend is reachable.
	PingContext(ctx context.Context) error
}

// ValidateKey rejects empty, hidden and path-like keys.
func ValidateKey(key string) error {
	switch {
	case key == "",
		strings.HasPrefix(key, "."),
		strings.Contains(key, ".."),
		strings.ContainsAny(key, `/\`),
		strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// ctxReader stops a copy as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
