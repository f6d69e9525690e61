package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetapi/internal/logger"
)

func newTestLocal(t *testing.T) (Storage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocal(dir, logger.Discard())
	require.NoError(t, err)
	return s, dir
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", ".partial", "..", "a..b", "a/b", `a\b`, "../etc/passwd", "a\x00b"} {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidKey, key)
	}
	assert.NoError(t, ValidateKey("1700000000000-abcDEF-cat.jpg"))
}

func TestLocalPutGetStatDelete(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "a.png", strings.NewReader("png-bytes"), PutObjectOptions{Size: 9, ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "a.png", info.Key)
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.FileExists(t, filepath.Join(dir, "a.png"))

	rc, got, err := s.Get(ctx, "a.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, int64(9), got.Size)

	st, err := s.Stat(ctx, "a.png")
	require.NoError(t, err)
	assert.False(t, st.LastModified.IsZero())

	require.NoError(t, s.Delete(ctx, "a.png"))
	assert.ErrorIs(t, s.Delete(ctx, "a.png"), ErrNotFound)
	_, err = s.Stat(ctx, "a.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Get(ctx, "a.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalPutRefusesExistingKey(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "same.jpg", strings.NewReader("first"), PutObjectOptions{})
	require.NoError(t, err)

	_, err = s.Put(ctx, "same.jpg", strings.NewReader("second"), PutObjectOptions{})
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(filepath.Join(dir, "same.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assertNoPartials(t, dir)
}

func TestLocalConcurrentPutsOfOneKeyHaveOneWinner(t *testing.T) {
	const writers = 16
	for round := 0; round < 20; round++ {
		s, dir := newTestLocal(t)
		ctx := context.Background()

		var (
			wg       sync.WaitGroup
			start    = make(chan struct{})
			wins     atomic.Int32
			conflict atomic.Int32
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := s.Put(ctx, "same.png", strings.NewReader(strings.Repeat("x", 1+i)), PutObjectOptions{})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrExists):
					conflict.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		require.EqualValues(t, 1, wins.Load(), "round %d", round)
		assert.EqualValues(t, writers-1, conflict.Load())
		assertNoPartials(t, dir)
	}
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n > 0 {
		f.n--
		return copy(p, bytes.Repeat([]byte{1}, len(p))), nil
	}
	return 0, errors.New("connection reset")
}

func TestLocalPutFailureLeavesNothingVisible(t *testing.T) {
	s, dir := newTestLocal(t)

	_, err := s.Put(context.Background(), "broken.jpg", &failingReader{n: 3}, PutObjectOptions{})
	require.Error(t, err)

	_, err = s.Stat(context.Background(), "broken.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assertNoPartials(t, dir)
}

func TestLocalPutCancelled(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "cancelled.jpg", strings.NewReader("data"), PutObjectOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "cancelled.jpg"))
	assertNoPartials(t, dir)
}

func TestLocalRejectsInvalidKeys(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "../escape.jpg", strings.NewReader("x"), PutObjectOptions{})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Stat(ctx, PartialDirName)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.Delete(ctx, "a/b.jpg"), ErrInvalidKey)
}

func TestLocalList(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "old.jpg", strings.NewReader("1"), PutObjectOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "new.png", strings.NewReader("22"), PutObjectOptions{})
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.jpg"), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new.png", items[0].Key)
	assert.Equal(t, "old.jpg", items[1].Key)
}

func TestNewLocalSweepsStalePartials(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, PartialDirName)
	require.NoError(t, os.MkdirAll(partial, 0o755))

	stale := filepath.Join(partial, "upload-stale")
	fresh := filepath.Join(partial, "upload-fresh")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	old := time.Now().Add(-2 * StalePartialAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	_, err := NewLocal(dir, logger.Discard())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestLocalPing(t *testing.T) {
	s, dir := newTestLocal(t)
	assert.NoError(t, s.PingContext(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, s.PingContext(context.Background()))
}

func TestNewLocalRequiresDir(t *testing.T) {
	_, err := NewLocal("", nil)
	assert.Error(t, err)
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, PartialDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
