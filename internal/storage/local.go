package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"assetapi/internal/model"
)

// PartialDirName is the staging directory inside the serving root. Uploads are
// written here and linked into the root only once complete; keys can never
// address it because ValidateKey refuses hidden names and separators.
const PartialDirName = ".partial"

// StalePartialAge is how old a staged file must be before the startup sweep removes it.
const StalePartialAge = time.Hour

// localStorage keeps assets as plain files in one flat directory.
type localStorage struct {
	root    string
	partial string
	log     *slog.Logger
}

// NewLocal prepares dir as a serving directory and sweeps abandoned partial uploads.
func NewLocal(dir string, log *slog.Logger) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if log == nil {
		log = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	partial := filepath.Join(root, PartialDirName)
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	s := &localStorage{root: root, partial: partial, log: log.With(slog.String("component", "storage"))}
	if n, err := s.sweepPartials(time.Now().Add(-StalePartialAge)); err != nil {
		s.log.Warn("partial sweep failed", slog.Any("error", err))
	} else if n > 0 {
		s.log.Info("removed abandoned partial uploads", slog.Int("count", n))
	}
	return s, nil
}

// Put writes r to a staging file and links it into place. Concurrent Puts of
// one key leave exactly one winner; the rest get ErrExists.
func (s *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	final := filepath.Join(s.root, key)
	// Refuse before consuming r so a caller can retry under another key.
	if _, err := os.Lstat(final); err == nil {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrExists, key)
	}

	tmp, err := os.CreateTemp(s.partial, "upload-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		return ObjectInfo{}, fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return ObjectInfo{}, fmt.Errorf("sync staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("close staging file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	// A hard link fails with EEXIST when the name is taken, unlike rename.
	if err := os.Link(tmpPath, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrExists, key)
		}
		return ObjectInfo{}, fmt.Errorf("link into place: %w", err)
	}
	committed = true
	if err := os.Remove(tmpPath); err != nil {
		s.log.Warn("remove staging file", slog.String("path", tmpPath), slog.Any("error", err))
	}

	info, err := s.Stat(ctx, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Metadata = opt.Metadata
	return info, nil
}

// Get opens a stored file.
func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, ObjectInfo{}, err
	}
	return f, info, nil
}

// Stat looks the file up; directories are reported as absent.
func (s *localStorage) Stat(_ context.Context, key string) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return ObjectInfo{}, err
	}
	if !fi.Mode().IsRegular() {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fileInfo(key, fi), nil
}

// Delete removes a stored file.
func (s *localStorage) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	return nil
}

// List returns regular files in the serving directory, newest first.
func (s *localStorage) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, fileInfo(e.Name(), fi))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].Key > out[j].Key
		}
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out, nil
}

// PingContext checks the serving directory is still there.
func (s *localStorage) PingContext(_ context.Context) error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}

func (s *localStorage) sweepPartials(olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.partial)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(olderThan) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.partial, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func fileInfo(key string, fi fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ContentType:  model.ContentTypeForName(key),
		LastModified: fi.ModTime(),
	}
}
